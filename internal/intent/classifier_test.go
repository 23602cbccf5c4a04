package intent

import (
	"context"
	"errors"
	"strings"
	"testing"
	"time"

	"github.com/alicebob/miniredis/v2"
	"github.com/redis/go-redis/v9"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"github.com/wolfman30/cosmetology-assistant/internal/llm"
)

type stubModel struct {
	calls  int
	intent Intent
	err    error
}

func (s *stubModel) ClassifyModel(context.Context, string) (Intent, error) {
	s.calls++
	return s.intent, s.err
}

type fakeClock struct{ now time.Time }

func (c *fakeClock) Now() time.Time          { return c.now }
func (c *fakeClock) Advance(d time.Duration) { c.now = c.now.Add(d) }

func TestClassifierAcceptsConfidentRules(t *testing.T) {
	model := &stubModel{intent: General}
	c := NewClassifier(nil, WithModel(model))

	assert.Equal(t, Pricing, c.Classify(context.Background(), 1, "сколько стоит чистка"))
	assert.Equal(t, Consultation, c.Classify(context.Background(), 1, "добрый день"))
	assert.Equal(t, 0, model.calls)
}

func TestClassifierEscalatesBelowThreshold(t *testing.T) {
	model := &stubModel{intent: Booking}
	c := NewClassifier(nil, WithModel(model), WithThresholds(map[Intent]float64{Pricing: 0.9}))

	assert.Equal(t, Booking, c.Classify(context.Background(), 1, "цена"))
	assert.Equal(t, 1, model.calls)
}

func TestClassifierModelFailureIsGeneral(t *testing.T) {
	model := &stubModel{err: errors.New("quota")}
	c := NewClassifier(nil, WithModel(model), WithThresholds(map[Intent]float64{Pricing: 0.9}))
	assert.Equal(t, General, c.Classify(context.Background(), 1, "цена"))

	noModel := NewClassifier(nil, WithThresholds(map[Intent]float64{Pricing: 0.9}))
	assert.Equal(t, General, noModel.Classify(context.Background(), 1, "цена"))
}

func TestClassifierCachesIdenticalQuery(t *testing.T) {
	clock := &fakeClock{now: time.Date(2024, 12, 1, 10, 0, 0, 0, time.UTC)}
	model := &stubModel{intent: Booking}
	cache := NewMemoryCache(300*time.Second, clock.Now)
	c := NewClassifier(nil,
		WithModel(model),
		WithCache(cache, 300*time.Second),
		WithClock(clock.Now),
		WithThresholds(map[Intent]float64{Pricing: 0.9}),
	)
	ctx := context.Background()

	assert.Equal(t, Booking, c.Classify(ctx, 7, "цена"))
	clock.Advance(299 * time.Second)
	assert.Equal(t, Booking, c.Classify(ctx, 7, "цена"))
	assert.Equal(t, 1, model.calls)

	assert.Equal(t, Booking, c.Classify(ctx, 7, "  ЦЕНА "))
	assert.Equal(t, 1, model.calls, "same normalized text must hit the cache")

	assert.Equal(t, Booking, c.Classify(ctx, 7, "цена за чистку"))
	assert.Equal(t, 2, model.calls, "different text must not hit the cache")

	clock.Advance(301 * time.Second)
	c.Classify(ctx, 7, "цена за чистку")
	assert.Equal(t, 3, model.calls, "expired entry must not be reused")

	c.Classify(ctx, 8, "цена за чистку")
	assert.Equal(t, 4, model.calls, "cache is per user")
}

func TestMemoryCacheSweepsExpired(t *testing.T) {
	clock := &fakeClock{now: time.Date(2024, 12, 1, 10, 0, 0, 0, time.UTC)}
	cache := NewMemoryCache(time.Minute, clock.Now)
	ctx := context.Background()

	require.NoError(t, cache.Set(ctx, 1, Entry{Query: "a", Intent: Pricing, ClassifiedAt: clock.Now()}))
	require.NoError(t, cache.Set(ctx, 2, Entry{Query: "b", Intent: Booking, ClassifiedAt: clock.Now()}))
	clock.Advance(2 * time.Minute)
	require.NoError(t, cache.Set(ctx, 3, Entry{Query: "c", Intent: General, ClassifiedAt: clock.Now()}))

	assert.Equal(t, 1, cache.Len())
	_, ok, err := cache.Get(ctx, 1)
	require.NoError(t, err)
	assert.False(t, ok)
}

func TestRedisCacheRoundTrip(t *testing.T) {
	mr := miniredis.RunT(t)
	client := redis.NewClient(&redis.Options{Addr: mr.Addr()})
	t.Cleanup(func() { _ = client.Close() })

	cache := NewRedisCache(client, 300*time.Second)
	ctx := context.Background()
	at := time.Date(2024, 12, 1, 10, 0, 0, 0, time.UTC)

	_, ok, err := cache.Get(ctx, 42)
	require.NoError(t, err)
	assert.False(t, ok)

	require.NoError(t, cache.Set(ctx, 42, Entry{Query: "цена", Intent: Pricing, ClassifiedAt: at}))
	entry, ok, err := cache.Get(ctx, 42)
	require.NoError(t, err)
	require.True(t, ok)
	assert.Equal(t, Pricing, entry.Intent)
	assert.True(t, entry.ClassifiedAt.Equal(at))
	assert.Equal(t, 300*time.Second, mr.TTL("intent:last:42"))

	mr.FastForward(301 * time.Second)
	_, ok, err = cache.Get(ctx, 42)
	require.NoError(t, err)
	assert.False(t, ok)
}

func TestLLMClassifierRequest(t *testing.T) {
	var captured llm.Request
	client := llm.ClientFunc(func(_ context.Context, req llm.Request) (llm.Response, error) {
		captured = req
		return llm.Response{Text: " Aftercare\n"}, nil
	})

	got, err := NewLLMClassifier(client, "fast-model", llm.RetryPolicy{MaxAttempts: 1}).
		ClassifyModel(context.Background(), "можно ли в баню")
	require.NoError(t, err)
	assert.Equal(t, Aftercare, got)
	assert.Equal(t, "fast-model", captured.Model)
	assert.Equal(t, int32(10), captured.MaxTokens)
	assert.InDelta(t, 0.1, captured.Temperature, 1e-6)
	require.Len(t, captured.System, 1)
	assert.True(t, strings.Contains(captured.System[0], "emergency"))
}
