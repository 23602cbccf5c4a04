// Package ratelimit throttles chat users per action category.
package ratelimit

import (
	"context"
	"fmt"
	"sync"
	"time"

	"github.com/redis/go-redis/v9"
	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"golang.org/x/time/rate"

	"github.com/wolfman30/cosmetology-assistant/internal/observability/metrics"
	"github.com/wolfman30/cosmetology-assistant/pkg/logging"
)

var tracer = otel.Tracer("cosmetology.internal.ratelimit")

// Category groups actions that share a budget.
type Category string

const (
	CategoryText    Category = "text"
	CategoryBooking Category = "booking"
)

// Rule allows Limit actions per Window.
type Rule struct {
	Limit  int
	Window time.Duration
}

// Config holds one rule per category.
type Config struct {
	Text    Rule
	Booking Rule
}

// DefaultConfig allows 20 messages a minute and 3 booking starts per five
// minutes.
func DefaultConfig() Config {
	return Config{
		Text:    Rule{Limit: 20, Window: time.Minute},
		Booking: Rule{Limit: 3, Window: 5 * time.Minute},
	}
}

func (c Config) rule(cat Category) Rule {
	if cat == CategoryBooking {
		return c.Booking
	}
	return c.Text
}

// Result is the outcome of one check.
type Result struct {
	Allowed bool
	Count   int
	Limit   int
	// Local is set when the in-process fallback decided.
	Local bool
}

// Limiter counts actions in redis with INCR and EXPIRE. When redis is
// missing or failing it falls back to an in-process token bucket per user
// and category.
type Limiter struct {
	redis   *redis.Client
	cfg     Config
	metrics *metrics.BotMetrics
	logger  *logging.Logger
	now     func() time.Time

	mu    sync.Mutex
	local map[string]*rate.Limiter
}

// NewLimiter creates a limiter. client may be nil.
func NewLimiter(client *redis.Client, cfg Config, m *metrics.BotMetrics, logger *logging.Logger) *Limiter {
	if logger == nil {
		logger = logging.Default()
	}
	return &Limiter{
		redis:   client,
		cfg:     cfg,
		metrics: m,
		logger:  logger,
		now:     time.Now,
		local:   make(map[string]*rate.Limiter),
	}
}

// WithClock overrides the time source of the fallback buckets.
func (l *Limiter) WithClock(now func() time.Time) *Limiter {
	if now != nil {
		l.now = now
	}
	return l
}

func key(cat Category, userID int64) string {
	return fmt.Sprintf("ratelimit:%s:%d", cat, userID)
}

// Allow records one action and reports whether it fits the budget.
func (l *Limiter) Allow(ctx context.Context, userID int64, cat Category) Result {
	ctx, span := tracer.Start(ctx, "ratelimit.allow")
	defer span.End()
	span.SetAttributes(
		attribute.Int64("cosmetology.user_id", userID),
		attribute.String("ratelimit.category", string(cat)),
	)

	rule := l.cfg.rule(cat)
	if rule.Limit <= 0 || rule.Window <= 0 {
		return Result{Allowed: true}
	}

	var res Result
	if l.redis != nil {
		count, err := l.incrementAndGet(ctx, key(cat, userID), rule.Window)
		if err == nil {
			res = Result{Allowed: count <= rule.Limit, Count: count, Limit: rule.Limit}
		} else {
			l.logger.Warn("rate limit store unavailable, using local bucket", "category", cat, "error", err)
			res = l.allowLocal(userID, cat, rule)
		}
	} else {
		res = l.allowLocal(userID, cat, rule)
	}

	if !res.Allowed {
		l.metrics.ObserveRateLimited(string(cat))
		l.logger.ForUser(userID).Warn("rate limit exceeded", "category", cat, "count", res.Count, "max", rule.Limit)
		span.SetAttributes(attribute.Bool("ratelimit.exceeded", true))
	}
	return res
}

// incrementAndGet increments the window counter. INCR and EXPIRE NX run in
// one transaction, so a counter never outlives its window even when it
// was left without a TTL.
func (l *Limiter) incrementAndGet(ctx context.Context, k string, window time.Duration) (int, error) {
	var incr *redis.IntCmd
	_, err := l.redis.TxPipelined(ctx, func(pipe redis.Pipeliner) error {
		incr = pipe.Incr(ctx, k)
		pipe.ExpireNX(ctx, k, window)
		return nil
	})
	if err != nil {
		return 0, err
	}
	return int(incr.Val()), nil
}

func (l *Limiter) allowLocal(userID int64, cat Category, rule Rule) Result {
	l.mu.Lock()
	bucket, ok := l.local[key(cat, userID)]
	if !ok {
		bucket = rate.NewLimiter(rate.Every(rule.Window/time.Duration(rule.Limit)), rule.Limit)
		l.local[key(cat, userID)] = bucket
	}
	l.mu.Unlock()
	return Result{Allowed: bucket.AllowN(l.now(), 1), Limit: rule.Limit, Local: true}
}
