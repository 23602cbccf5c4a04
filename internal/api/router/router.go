package router

import (
	"net/http"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"

	"github.com/wolfman30/cosmetology-assistant/internal/http/handlers"
	httpmiddleware "github.com/wolfman30/cosmetology-assistant/internal/http/middleware"
	"github.com/wolfman30/cosmetology-assistant/internal/webchat"
	"github.com/wolfman30/cosmetology-assistant/pkg/logging"
)

// Config holds router configuration
type Config struct {
	Logger             *logging.Logger
	Updates            *handlers.UpdatesHandler
	WebChat            *webchat.Handler
	Health             *handlers.HealthHandler
	Admin              *handlers.AdminHandler
	OperatorJWTSecret  string
	MetricsHandler     http.Handler
	CORSAllowedOrigins []string
}

// New creates a new Chi router with all routes configured
func New(cfg *Config) http.Handler {
	r := chi.NewRouter()

	r.Use(middleware.RealIP)
	r.Use(middleware.Recoverer)
	if len(cfg.CORSAllowedOrigins) > 0 {
		r.Use(httpmiddleware.CORS(cfg.CORSAllowedOrigins))
	}
	r.Use(httpmiddleware.RequestLogger(cfg.Logger))

	health := cfg.Health
	if health == nil {
		health = handlers.NewHealthHandler(nil, cfg.Logger)
	}
	r.Get("/health", health.Health)
	r.Get("/ready", health.Ready)
	if cfg.MetricsHandler != nil {
		r.Handle("/metrics", cfg.MetricsHandler)
	}

	if cfg.Updates != nil {
		r.Post("/v1/updates", cfg.Updates.HandleUpdate)
	}
	if cfg.WebChat != nil {
		r.Route("/webchat", func(wc chi.Router) {
			wc.Get("/ws", cfg.WebChat.HandleWebSocket)
			wc.Get("/history", cfg.WebChat.HandleHistory)
		})
	}

	if cfg.Admin != nil {
		r.Route("/admin", func(admin chi.Router) {
			admin.Use(httpmiddleware.OperatorJWT(cfg.OperatorJWTSecret))
			admin.Get("/bookings/pending", cfg.Admin.ListPendingBookings)
			admin.Get("/users/{userID}/reminders", cfg.Admin.ListUserReminders)
		})
	}

	return r
}
