package booking

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"time"

	"github.com/redis/go-redis/v9"
	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/trace"

	"github.com/wolfman30/cosmetology-assistant/internal/apperr"
)

// StateTTL bounds how long an abandoned flow is kept.
const StateTTL = 24 * time.Hour

// StateStore persists one flow payload per user.
type StateStore interface {
	// Load returns nil, nil when the user has no flow. Undecodable state
	// yields an error in the integrity category.
	Load(ctx context.Context, userID int64) (Payload, error)
	Save(ctx context.Context, userID int64, p Payload) error
	// Clear is idempotent.
	Clear(ctx context.Context, userID int64) error
}

// RedisStateStore keeps flow state in redis under a TTL.
type RedisStateStore struct {
	redis  *redis.Client
	tracer trace.Tracer
	ttl    time.Duration
}

// NewRedisStateStore panics on a nil client.
func NewRedisStateStore(client *redis.Client, tracer trace.Tracer) *RedisStateStore {
	if client == nil {
		panic("booking: redis client cannot be nil")
	}
	if tracer == nil {
		tracer = otel.Tracer("cosmetology.internal.booking.state")
	}
	return &RedisStateStore{redis: client, tracer: tracer, ttl: StateTTL}
}

func stateKey(userID int64) string {
	return fmt.Sprintf("booking:state:%d", userID)
}

func (s *RedisStateStore) Save(ctx context.Context, userID int64, p Payload) error {
	ctx, span := s.tracer.Start(ctx, "booking.save_state")
	defer span.End()

	data, err := encodeState(p)
	if err != nil {
		span.RecordError(err)
		return apperr.Integrity("booking: save state", err)
	}
	if err := s.redis.Set(ctx, stateKey(userID), data, s.ttl).Err(); err != nil {
		span.RecordError(err)
		return apperr.Transient("booking: save state", err)
	}
	return nil
}

func (s *RedisStateStore) Load(ctx context.Context, userID int64) (Payload, error) {
	ctx, span := s.tracer.Start(ctx, "booking.load_state")
	defer span.End()

	data, err := s.redis.Get(ctx, stateKey(userID)).Bytes()
	if errors.Is(err, redis.Nil) {
		return nil, nil
	}
	if err != nil {
		span.RecordError(err)
		return nil, apperr.Transient("booking: load state", err)
	}
	p, err := decodeState(data)
	if err != nil {
		span.RecordError(err)
		return nil, apperr.Integrity("booking: load state", err)
	}
	return p, nil
}

func (s *RedisStateStore) Clear(ctx context.Context, userID int64) error {
	ctx, span := s.tracer.Start(ctx, "booking.clear_state")
	defer span.End()

	if err := s.redis.Del(ctx, stateKey(userID)).Err(); err != nil {
		span.RecordError(err)
		return apperr.Transient("booking: clear state", err)
	}
	return nil
}

// MemoryStateStore is an in-process StateStore with the same TTL and
// encoding as the redis store.
type MemoryStateStore struct {
	mu    sync.Mutex
	items map[int64]memoryState
	ttl   time.Duration
	now   func() time.Time
}

type memoryState struct {
	data    []byte
	expires time.Time
}

// NewMemoryStateStore uses time.Now when now is nil.
func NewMemoryStateStore(now func() time.Time) *MemoryStateStore {
	if now == nil {
		now = time.Now
	}
	return &MemoryStateStore{items: make(map[int64]memoryState), ttl: StateTTL, now: now}
}

func (s *MemoryStateStore) Save(_ context.Context, userID int64, p Payload) error {
	data, err := encodeState(p)
	if err != nil {
		return apperr.Integrity("booking: save state", err)
	}
	s.mu.Lock()
	defer s.mu.Unlock()
	s.items[userID] = memoryState{data: data, expires: s.now().Add(s.ttl)}
	return nil
}

func (s *MemoryStateStore) Load(_ context.Context, userID int64) (Payload, error) {
	s.mu.Lock()
	item, ok := s.items[userID]
	if ok && !s.now().Before(item.expires) {
		delete(s.items, userID)
		ok = false
	}
	s.mu.Unlock()
	if !ok {
		return nil, nil
	}
	p, err := decodeState(item.data)
	if err != nil {
		return nil, apperr.Integrity("booking: load state", err)
	}
	return p, nil
}

func (s *MemoryStateStore) Clear(_ context.Context, userID int64) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	delete(s.items, userID)
	return nil
}

// PutRaw stores undecoded bytes; tests use it to simulate corruption.
func (s *MemoryStateStore) PutRaw(userID int64, data []byte) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.items[userID] = memoryState{data: data, expires: s.now().Add(s.ttl)}
}

var (
	_ StateStore = (*RedisStateStore)(nil)
	_ StateStore = (*MemoryStateStore)(nil)
)
