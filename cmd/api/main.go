package main

import (
	"context"
	"errors"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/joho/godotenv"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/collectors"
	"github.com/prometheus/client_golang/prometheus/promhttp"

	"github.com/wolfman30/cosmetology-assistant/cmd/mainconfig"
	"github.com/wolfman30/cosmetology-assistant/internal/api/router"
	"github.com/wolfman30/cosmetology-assistant/internal/app/bootstrap"
	appconfig "github.com/wolfman30/cosmetology-assistant/internal/config"
	"github.com/wolfman30/cosmetology-assistant/internal/http/handlers"
	"github.com/wolfman30/cosmetology-assistant/internal/observability/metrics"
	"github.com/wolfman30/cosmetology-assistant/pkg/logging"
)

func main() {
	_ = godotenv.Load()
	cfg := appconfig.Load()

	logger := logging.New(cfg.LogLevel)
	logger.Info("starting cosmetology assistant API server",
		"env", cfg.Env,
		"port", cfg.Port,
	)

	if err := run(cfg, logger); err != nil {
		logger.Error("api server failed", "error", err)
		os.Exit(1)
	}
	logger.Info("server stopped")
}

func run(cfg *appconfig.Config, logger *logging.Logger) error {
	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	info, err := bootstrap.ClinicInfo(cfg)
	if err != nil {
		return err
	}
	pool, err := bootstrap.BuildPostgresPool(ctx, cfg.DatabaseURL)
	if err != nil {
		return err
	}
	defer pool.Close()

	redisClient := bootstrap.BuildRedisClient(ctx, cfg, logger, true)
	if redisClient != nil {
		defer func() { _ = redisClient.Close() }()
	}

	awsCfg, err := mainconfig.LoadAWSConfig(ctx, cfg)
	if err != nil {
		return err
	}
	llmStack, err := bootstrap.BuildLLM(ctx, cfg, awsCfg, logger)
	if err != nil {
		return err
	}
	defer llmStack.Close()

	cal, err := bootstrap.BuildCalendar(ctx, cfg, info, logger)
	if err != nil {
		return err
	}
	publisher, err := bootstrap.BuildPublisher(cfg, logger)
	if err != nil {
		return err
	}
	defer publisher.Close()

	var metricsHandler http.Handler
	var botMetrics *metrics.BotMetrics
	if cfg.MetricsEnabled {
		reg := prometheus.NewRegistry()
		reg.MustRegister(collectors.NewGoCollector(), collectors.NewProcessCollector(collectors.ProcessCollectorOpts{}))
		botMetrics = metrics.NewBotMetrics(reg)
		metricsHandler = promhttp.HandlerFor(reg, promhttp.HandlerOpts{})
	}

	assistant, err := bootstrap.BuildAssistant(bootstrap.AssistantDeps{
		Config:    cfg,
		Info:      info,
		DB:        pool,
		Redis:     redisClient,
		LLM:       llmStack,
		Calendar:  cal,
		Email:     bootstrap.BuildEmailSender(cfg, awsCfg, logger),
		Publisher: publisher,
		Metrics:   botMetrics,
		Logger:    logger,
	})
	if err != nil {
		return err
	}

	checks := map[string]handlers.Pinger{"postgres": handlers.PingFunc(pool.Ping)}
	if redisClient != nil {
		checks["redis"] = handlers.PingFunc(func(ctx context.Context) error { return redisClient.Ping(ctx).Err() })
	}

	r := router.New(&router.Config{
		Logger:             logger,
		Updates:            handlers.NewUpdatesHandler(assistant.Dispatcher, logger),
		WebChat:            assistant.WebChat,
		Health:             handlers.NewHealthHandler(checks, logger),
		Admin:              handlers.NewAdminHandler(assistant.Bookings, assistant.Reminders, logger),
		OperatorJWTSecret:  cfg.AdminJWTSecret,
		MetricsHandler:     metricsHandler,
		CORSAllowedOrigins: cfg.CORSAllowedOrigins,
	})

	srv := &http.Server{
		Addr:        ":" + cfg.Port,
		Handler:     r,
		ReadTimeout: 15 * time.Second,
		// Booking commits and LLM retries can take a while.
		WriteTimeout: 90 * time.Second,
		IdleTimeout:  60 * time.Second,
	}

	errCh := make(chan error, 1)
	go func() {
		logger.Info("server listening", "addr", srv.Addr)
		if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			errCh <- err
		}
		close(errCh)
	}()

	select {
	case err := <-errCh:
		return err
	case <-ctx.Done():
	}

	logger.Info("shutting down server...")
	shutdownCtx, cancel := context.WithTimeout(context.Background(), cfg.ShutdownTimeout)
	defer cancel()
	return srv.Shutdown(shutdownCtx)
}
