package bootstrap

import (
	"context"
	"fmt"
	"time"

	"github.com/redis/go-redis/v9"
	"go.opentelemetry.io/otel"

	"github.com/wolfman30/cosmetology-assistant/internal/availability"
	"github.com/wolfman30/cosmetology-assistant/internal/booking"
	"github.com/wolfman30/cosmetology-assistant/internal/bookings"
	"github.com/wolfman30/cosmetology-assistant/internal/calendar"
	"github.com/wolfman30/cosmetology-assistant/internal/chat"
	"github.com/wolfman30/cosmetology-assistant/internal/clinic"
	appconfig "github.com/wolfman30/cosmetology-assistant/internal/config"
	"github.com/wolfman30/cosmetology-assistant/internal/conversation"
	"github.com/wolfman30/cosmetology-assistant/internal/dispatch"
	"github.com/wolfman30/cosmetology-assistant/internal/events"
	"github.com/wolfman30/cosmetology-assistant/internal/intent"
	"github.com/wolfman30/cosmetology-assistant/internal/notify"
	"github.com/wolfman30/cosmetology-assistant/internal/observability/metrics"
	"github.com/wolfman30/cosmetology-assistant/internal/ratelimit"
	"github.com/wolfman30/cosmetology-assistant/internal/reminders"
	"github.com/wolfman30/cosmetology-assistant/internal/retrieval"
	"github.com/wolfman30/cosmetology-assistant/internal/transport"
	"github.com/wolfman30/cosmetology-assistant/internal/webchat"
	"github.com/wolfman30/cosmetology-assistant/pkg/logging"
)

// AssistantDeps are the connections shared by the assistant components.
// Redis, Calendar and Email may be nil.
type AssistantDeps struct {
	Config    *appconfig.Config
	Info      clinic.Info
	DB        bookings.DB
	Redis     *redis.Client
	LLM       *LLMStack
	Calendar  calendar.Client
	Email     notify.EmailSender
	Publisher events.Publisher
	Metrics   *metrics.BotMetrics
	Logger    *logging.Logger
}

// Assistant is the fully wired chat assistant.
type Assistant struct {
	Dispatcher *dispatch.Dispatcher
	WebChat    *webchat.Handler
	Bookings   *bookings.Repository
	Reminders  *reminders.Store
	Notifier   *notify.Service
	Sender     transport.Sender
}

// processorRef lets the web chat handler be built before the dispatcher
// it feeds, since operator alerts are delivered through the web chat too.
type processorRef struct {
	d *dispatch.Dispatcher
}

func (p *processorRef) Handle(ctx context.Context, channel string, u chat.Update) []chat.Reply {
	return p.d.Handle(ctx, channel, u)
}

// BuildAssistant wires the conversation pipeline, the booking flow and the
// dispatcher on top of deps.
func BuildAssistant(deps AssistantDeps) (*Assistant, error) {
	cfg, info, logger := deps.Config, deps.Info, deps.Logger
	if logger == nil {
		logger = logging.Default()
	}
	publisher := deps.Publisher
	if publisher == nil {
		publisher = events.NoopPublisher{}
	}

	bookingRepo := bookings.NewRepository(deps.DB)
	reminderStore := reminders.NewStore(deps.DB)
	logStore := conversation.NewLogStore(deps.DB)

	var searcher retrieval.Searcher = retrieval.NopSearcher{}
	if deps.LLM.Embedder != nil {
		searcher = retrieval.NewPGVectorSearcher(deps.DB, deps.LLM.Embedder, cfg.RetrievalMinScore)
		if deps.Redis != nil {
			searcher = retrieval.NewCachedSearcher(searcher, deps.Redis, cfg.RetrievalCacheTTL, logger)
		}
	} else {
		logger.Warn("no embedding model configured; knowledge base search disabled")
	}

	var intentCache intent.Cache = intent.NewMemoryCache(cfg.IntentCacheTTL, time.Now)
	if deps.Redis != nil {
		intentCache = intent.NewRedisCache(deps.Redis, cfg.IntentCacheTTL)
	}
	classifier := intent.NewClassifier(logger,
		intent.WithModel(intent.NewLLMClassifier(deps.LLM.Client, deps.LLM.Models.Fast, deps.LLM.Retry)),
		intent.WithCache(intentCache, cfg.IntentCacheTTL),
		intent.WithMetrics(deps.Metrics),
	)
	generator := conversation.NewGenerator(deps.LLM.Client, deps.LLM.Models, deps.LLM.Retry, info, deps.Metrics, logger)
	convo := conversation.NewService(classifier, searcher, generator, logStore, info, conversation.Options{
		TopK:             cfg.RetrievalTopK,
		HistorySize:      cfg.ConversationHistorySize,
		MaxContextLength: cfg.MaxContextLength,
	}, logger)

	ref := &processorRef{}
	sessions, err := webchat.NewSessions(cfg.WebchatSessionSecret, cfg.WebchatSessionTTL)
	if err != nil {
		return nil, fmt.Errorf("bootstrap: webchat sessions: %w", err)
	}
	if cfg.WebchatSessionSecret == "" {
		logger.Warn("WEBCHAT_SESSION_SECRET not set; web chat sessions end on restart")
	}
	web := webchat.NewHandler(ref, logStore, sessions, logger)
	sender := transport.NewMultiSender(logger, web, transport.NewGatewaySender(cfg.OutboundGatewayURL, cfg.OutboundGatewayToken, logger))
	notifier := notify.NewService(sender, deps.Email, notify.Config{
		OperatorChatID: cfg.OperatorChatID,
		OperatorEmail:  cfg.OperatorEmail,
	}, logger)

	var states booking.StateStore = booking.NewMemoryStateStore(time.Now)
	if deps.Redis != nil {
		states = booking.NewRedisStateStore(deps.Redis, otel.Tracer("cosmetology.internal.booking"))
	}
	engine := availability.NewEngine(deps.Calendar, info.Location, logger)
	scheduler := reminders.NewScheduler(reminderStore, info.Location, logger)
	coordinator := booking.NewCoordinator(deps.Calendar, bookingRepo, scheduler, notifier, publisher, logger,
		booking.WithCommitMetrics(deps.Metrics),
		booking.WithCommitLeadTime(availability.DefaultSchedule().LeadTime))
	machine := booking.NewMachine(states, convo, engine, coordinator, info, booking.Config{
		DaysAhead:    cfg.BookingDaysAhead,
		SlotDuration: time.Duration(cfg.SlotDurationMinutes) * time.Minute,
	}, logger)
	appointments := booking.NewAppointments(deps.Calendar, bookingRepo, reminderStore, notifier, publisher, info, logger)

	limiter := ratelimit.NewLimiter(deps.Redis, ratelimit.Config{
		Text:    ratelimit.Rule{Limit: cfg.RateLimitTextCount, Window: cfg.RateLimitTextWindow},
		Booking: ratelimit.Rule{Limit: cfg.RateLimitBookingCount, Window: cfg.RateLimitBookingWindow},
	}, deps.Metrics, logger)

	ref.d = dispatch.New(dispatch.Deps{
		Users:        bookingRepo,
		Conversation: convo,
		Flow:         machine,
		Appointments: appointments,
		Reminders:    reminderStore,
		Limiter:      limiter,
		Metrics:      deps.Metrics,
		Info:         info,
	}, logger)

	return &Assistant{
		Dispatcher: ref.d,
		WebChat:    web,
		Bookings:   bookingRepo,
		Reminders:  reminderStore,
		Notifier:   notifier,
		Sender:     sender,
	}, nil
}
