package retrieval

import (
	"context"
	"crypto/sha256"
	"encoding/hex"
	"encoding/json"
	"errors"
	"strconv"
	"time"

	"github.com/redis/go-redis/v9"
	"github.com/wolfman30/cosmetology-assistant/pkg/logging"
	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/trace"
)

// CachedSearcher memoizes search results in redis. Cache failures fall
// through to the wrapped searcher.
type CachedSearcher struct {
	next   Searcher
	redis  *redis.Client
	ttl    time.Duration
	tracer trace.Tracer
	logger *logging.Logger
}

func NewCachedSearcher(next Searcher, client *redis.Client, ttl time.Duration, logger *logging.Logger) *CachedSearcher {
	if logger == nil {
		logger = logging.Default()
	}
	return &CachedSearcher{
		next:   next,
		redis:  client,
		ttl:    ttl,
		tracer: otel.Tracer("cosmetology.internal.retrieval"),
		logger: logger,
	}
}

func (c *CachedSearcher) Search(ctx context.Context, query string, filters *Filters, topK int) ([]Document, error) {
	ctx, span := c.tracer.Start(ctx, "retrieval.cached_search")
	defer span.End()

	key := cacheKey(query, filters, topK)
	raw, err := c.redis.Get(ctx, key).Bytes()
	switch {
	case err == nil:
		var docs []Document
		if jsonErr := json.Unmarshal(raw, &docs); jsonErr == nil {
			return docs, nil
		}
		c.logger.Warn("retrieval: dropping undecodable cache entry", "key", key)
	case !errors.Is(err, redis.Nil):
		c.logger.Warn("retrieval: cache read failed", "error", err)
	}

	docs, err := c.next.Search(ctx, query, filters, topK)
	if err != nil {
		span.RecordError(err)
		return nil, err
	}
	if data, err := json.Marshal(docs); err == nil {
		if err := c.redis.Set(ctx, key, data, c.ttl).Err(); err != nil {
			c.logger.Warn("retrieval: cache write failed", "error", err)
		}
	}
	return docs, nil
}

func cacheKey(query string, filters *Filters, topK int) string {
	h := sha256.New()
	h.Write([]byte(query))
	h.Write([]byte{0})
	if !filters.IsZero() {
		data, _ := json.Marshal(filters)
		h.Write(data)
	}
	h.Write([]byte{0})
	h.Write([]byte(strconv.Itoa(topK)))
	return "kb:search:" + hex.EncodeToString(h.Sum(nil))
}
