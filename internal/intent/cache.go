package intent

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"strconv"
	"sync"
	"time"

	"github.com/redis/go-redis/v9"
)

// Entry is the last classification made for a user.
type Entry struct {
	Query        string    `json:"query"`
	Intent       Intent    `json:"intent"`
	ClassifiedAt time.Time `json:"classified_at"`
}

// Cache stores one Entry per user.
type Cache interface {
	Get(ctx context.Context, userID int64) (Entry, bool, error)
	Set(ctx context.Context, userID int64, entry Entry) error
}

// MemoryCache is a process-local Cache. Entries older than ttl are swept on
// write, so the map stays bounded by the number of recently active users.
type MemoryCache struct {
	mu      sync.Mutex
	entries map[int64]Entry
	ttl     time.Duration
	now     func() time.Time
}

func NewMemoryCache(ttl time.Duration, now func() time.Time) *MemoryCache {
	if now == nil {
		now = time.Now
	}
	return &MemoryCache{entries: make(map[int64]Entry), ttl: ttl, now: now}
}

func (c *MemoryCache) Get(_ context.Context, userID int64) (Entry, bool, error) {
	c.mu.Lock()
	defer c.mu.Unlock()
	entry, ok := c.entries[userID]
	if !ok {
		return Entry{}, false, nil
	}
	if c.ttl > 0 && c.now().Sub(entry.ClassifiedAt) >= c.ttl {
		delete(c.entries, userID)
		return Entry{}, false, nil
	}
	return entry, true, nil
}

func (c *MemoryCache) Set(_ context.Context, userID int64, entry Entry) error {
	c.mu.Lock()
	defer c.mu.Unlock()
	now := c.now()
	if c.ttl > 0 {
		for id, e := range c.entries {
			if now.Sub(e.ClassifiedAt) >= c.ttl {
				delete(c.entries, id)
			}
		}
	}
	c.entries[userID] = entry
	return nil
}

// Len reports the number of stored entries.
func (c *MemoryCache) Len() int {
	c.mu.Lock()
	defer c.mu.Unlock()
	return len(c.entries)
}

// RedisCache keeps entries in redis with the cache TTL as key expiry.
type RedisCache struct {
	client *redis.Client
	ttl    time.Duration
}

func NewRedisCache(client *redis.Client, ttl time.Duration) *RedisCache {
	if client == nil {
		panic("intent: redis client cannot be nil")
	}
	return &RedisCache{client: client, ttl: ttl}
}

func (c *RedisCache) key(userID int64) string {
	return "intent:last:" + strconv.FormatInt(userID, 10)
}

func (c *RedisCache) Get(ctx context.Context, userID int64) (Entry, bool, error) {
	raw, err := c.client.Get(ctx, c.key(userID)).Bytes()
	if errors.Is(err, redis.Nil) {
		return Entry{}, false, nil
	}
	if err != nil {
		return Entry{}, false, fmt.Errorf("intent: redis get: %w", err)
	}
	var entry Entry
	if err := json.Unmarshal(raw, &entry); err != nil {
		return Entry{}, false, fmt.Errorf("intent: decode cache entry: %w", err)
	}
	return entry, true, nil
}

func (c *RedisCache) Set(ctx context.Context, userID int64, entry Entry) error {
	raw, err := json.Marshal(entry)
	if err != nil {
		return fmt.Errorf("intent: encode cache entry: %w", err)
	}
	if err := c.client.Set(ctx, c.key(userID), raw, c.ttl).Err(); err != nil {
		return fmt.Errorf("intent: redis set: %w", err)
	}
	return nil
}
