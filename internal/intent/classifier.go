package intent

import (
	"context"
	"time"

	"github.com/wolfman30/cosmetology-assistant/internal/llm"
	"github.com/wolfman30/cosmetology-assistant/internal/observability/metrics"
	"github.com/wolfman30/cosmetology-assistant/pkg/logging"
)

const classificationPrompt = `Определи намерение клиента косметологической клиники.
Верни ТОЛЬКО одно слово:

emergency - экстренные ситуации, осложнения, аллергии, боль, воспаления
consultation - вопросы о процедурах, советы по уходу, рекомендации
booking - запись на прием, расписание, хочу записаться
pricing - вопросы о ценах, стоимости, сколько стоит
aftercare - уход после процедур, что можно/нельзя делать после
general - общие вопросы о клинике, контакты, режим работы`

// ModelClassifier asks a language model for the intent.
type ModelClassifier interface {
	ClassifyModel(ctx context.Context, text string) (Intent, error)
}

// LLMClassifier implements ModelClassifier over an llm.Client.
type LLMClassifier struct {
	client llm.Client
	model  string
	retry  llm.RetryPolicy
}

func NewLLMClassifier(client llm.Client, model string, retry llm.RetryPolicy) *LLMClassifier {
	return &LLMClassifier{client: client, model: model, retry: retry}
}

func (c *LLMClassifier) ClassifyModel(ctx context.Context, text string) (Intent, error) {
	var resp llm.Response
	err := c.retry.Do(ctx, "intent: model classify", func(ctx context.Context) error {
		var err error
		resp, err = c.client.Complete(ctx, llm.Request{
			Model:       c.model,
			System:      []string{classificationPrompt},
			Messages:    []llm.Message{{Role: llm.RoleUser, Content: text}},
			MaxTokens:   10,
			Temperature: 0.1,
		})
		return err
	})
	if err != nil {
		return General, err
	}
	return Parse(resp.Text), nil
}

// Classifier combines rules, a model fallback and a per-user cache.
type Classifier struct {
	rules *Rules
	model ModelClassifier
	cache Cache
	ttl   time.Duration
	now   func() time.Time
	// thresholds override Intent.Threshold per intent.
	thresholds map[Intent]float64
	metrics    *metrics.BotMetrics
	logger     *logging.Logger
}

// Option customizes a Classifier.
type Option func(*Classifier)

func WithModel(m ModelClassifier) Option { return func(c *Classifier) { c.model = m } }

// WithCache enables the last-query cache; ttl bounds how long an identical
// query may reuse the cached intent.
func WithCache(cache Cache, ttl time.Duration) Option {
	return func(c *Classifier) {
		c.cache = cache
		c.ttl = ttl
	}
}

func WithClock(now func() time.Time) Option {
	return func(c *Classifier) {
		if now != nil {
			c.now = now
		}
	}
}

// WithThresholds overrides acceptance thresholds for the given intents.
func WithThresholds(t map[Intent]float64) Option {
	return func(c *Classifier) { c.thresholds = t }
}

func WithMetrics(m *metrics.BotMetrics) Option { return func(c *Classifier) { c.metrics = m } }

func NewClassifier(logger *logging.Logger, opts ...Option) *Classifier {
	if logger == nil {
		logger = logging.Default()
	}
	c := &Classifier{
		rules:  NewRules(),
		now:    time.Now,
		logger: logger,
	}
	for _, opt := range opts {
		opt(c)
	}
	return c
}

// Classify never fails: model errors degrade to General. Cached results
// are reused for the same normalized text.
func (c *Classifier) Classify(ctx context.Context, userID int64, text string) Intent {
	query := Normalize(text)
	if c.cache != nil {
		entry, ok, err := c.cache.Get(ctx, userID)
		if err != nil {
			c.logger.Warn("intent: cache read failed", "user_id", userID, "error", err)
		} else if ok && entry.Query == query && c.now().Sub(entry.ClassifiedAt) < c.ttl {
			c.metrics.ObserveIntent(string(entry.Intent), "cache")
			return entry.Intent
		}
	}

	got, source := c.classify(ctx, userID, text)
	c.metrics.ObserveIntent(string(got), source)

	if c.cache != nil {
		entry := Entry{Query: query, Intent: got, ClassifiedAt: c.now()}
		if err := c.cache.Set(ctx, userID, entry); err != nil {
			c.logger.Warn("intent: cache write failed", "user_id", userID, "error", err)
		}
	}
	return got
}

func (c *Classifier) classify(ctx context.Context, userID int64, text string) (Intent, string) {
	ruled, confidence := c.rules.Classify(text)
	if Normalize(text) == "" {
		return General, "rules"
	}
	if confidence >= c.threshold(ruled) {
		c.logger.Debug("intent: rules accepted", "user_id", userID, "intent", ruled, "confidence", confidence)
		return ruled, "rules"
	}
	if c.model == nil {
		return General, "fallback"
	}

	start := c.now()
	modeled, err := c.model.ClassifyModel(ctx, text)
	c.metrics.ObserveLLMLatency("classify", c.now().Sub(start).Seconds(), err)
	if err != nil {
		c.logger.Warn("intent: model classification failed", "user_id", userID, "error", err)
		return General, "fallback"
	}
	return modeled, "model"
}

func (c *Classifier) threshold(i Intent) float64 {
	if t, ok := c.thresholds[i]; ok {
		return t
	}
	return i.Threshold()
}
