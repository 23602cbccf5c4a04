package metrics

import "github.com/prometheus/client_golang/prometheus"

// BotMetrics exposes counters/histograms for the assistant's flows.
type BotMetrics struct {
	updatesTotal   *prometheus.CounterVec
	intentsTotal   *prometheus.CounterVec
	commitsTotal   *prometheus.CounterVec
	remindersTotal *prometheus.CounterVec
	rateLimited    *prometheus.CounterVec
	llmLatency     *prometheus.HistogramVec
}

func NewBotMetrics(reg prometheus.Registerer) *BotMetrics {
	m := &BotMetrics{
		updatesTotal: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: "cosmetology",
			Subsystem: "chat",
			Name:      "updates_total",
			Help:      "Inbound chat updates by kind and channel",
		}, []string{"kind", "channel"}),
		intentsTotal: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: "cosmetology",
			Subsystem: "intent",
			Name:      "classified_total",
			Help:      "Classified messages by intent and source (rules, model, cache)",
		}, []string{"intent", "source"}),
		commitsTotal: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: "cosmetology",
			Subsystem: "booking",
			Name:      "commits_total",
			Help:      "Booking commit outcomes",
		}, []string{"outcome"}),
		remindersTotal: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: "cosmetology",
			Subsystem: "reminders",
			Name:      "dispatched_total",
			Help:      "Reminder dispatch results by type",
		}, []string{"type", "status"}),
		rateLimited: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: "cosmetology",
			Subsystem: "chat",
			Name:      "rate_limited_total",
			Help:      "Requests rejected by the per-user rate limiter",
		}, []string{"category"}),
		llmLatency: prometheus.NewHistogramVec(prometheus.HistogramOpts{
			Namespace: "cosmetology",
			Subsystem: "llm",
			Name:      "latency_seconds",
			Help:      "Latency of language model calls",
			Buckets:   []float64{0.1, 0.25, 0.5, 1, 2, 4, 8, 16, 32},
		}, []string{"purpose", "status"}),
	}
	if reg == nil {
		reg = prometheus.DefaultRegisterer
	}
	reg.MustRegister(m.updatesTotal, m.intentsTotal, m.commitsTotal, m.remindersTotal, m.rateLimited, m.llmLatency)
	return m
}

func (m *BotMetrics) ObserveUpdate(kind, channel string) {
	if m == nil {
		return
	}
	m.updatesTotal.WithLabelValues(kind, channel).Inc()
}

func (m *BotMetrics) ObserveIntent(intent, source string) {
	if m == nil {
		return
	}
	m.intentsTotal.WithLabelValues(intent, source).Inc()
}

func (m *BotMetrics) ObserveCommit(outcome string) {
	if m == nil {
		return
	}
	m.commitsTotal.WithLabelValues(outcome).Inc()
}

func (m *BotMetrics) ObserveReminder(reminderType, status string) {
	if m == nil {
		return
	}
	m.remindersTotal.WithLabelValues(reminderType, status).Inc()
}

func (m *BotMetrics) ObserveRateLimited(category string) {
	if m == nil {
		return
	}
	m.rateLimited.WithLabelValues(category).Inc()
}

func (m *BotMetrics) ObserveLLMLatency(purpose string, seconds float64, err error) {
	if m == nil {
		return
	}
	status := "ok"
	if err != nil {
		status = "error"
	}
	m.llmLatency.WithLabelValues(purpose, status).Observe(seconds)
}
