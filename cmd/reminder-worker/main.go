package main

import (
	"context"
	"errors"
	"net/http"
	"os"
	"os/signal"
	"sync"
	"syscall"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/joho/godotenv"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	"github.com/robfig/cron/v3"

	"github.com/wolfman30/cosmetology-assistant/cmd/mainconfig"
	"github.com/wolfman30/cosmetology-assistant/internal/app/bootstrap"
	"github.com/wolfman30/cosmetology-assistant/internal/bookings"
	appconfig "github.com/wolfman30/cosmetology-assistant/internal/config"
	"github.com/wolfman30/cosmetology-assistant/internal/http/handlers"
	"github.com/wolfman30/cosmetology-assistant/internal/notify"
	"github.com/wolfman30/cosmetology-assistant/internal/observability/metrics"
	"github.com/wolfman30/cosmetology-assistant/internal/reminders"
	"github.com/wolfman30/cosmetology-assistant/internal/transport"
	"github.com/wolfman30/cosmetology-assistant/pkg/logging"
)

func main() {
	_ = godotenv.Load()
	cfg := appconfig.Load()
	logger := logging.New(cfg.LogLevel).With("component", "reminder-worker")

	if err := run(cfg, logger); err != nil {
		logger.Error("reminder worker failed", "error", err)
		os.Exit(1)
	}
	logger.Info("reminder worker stopped")
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

	awsCfg, err := mainconfig.LoadAWSConfig(ctx, cfg)
	if err != nil {
		return err
	}

	gateway := transport.NewGatewaySender(cfg.OutboundGatewayURL, cfg.OutboundGatewayToken, logger)
	if gateway == nil {
		logger.Warn("OUTBOUND_GATEWAY_URL is empty; reminders will fail until it is set")
	}
	sender := transport.NewMultiSender(logger, gateway)
	botMetrics := metrics.NewBotMetrics(nil)

	poller := reminders.NewPoller(reminders.NewStore(pool), sender, botMetrics, logger).
		WithInterval(cfg.ReminderPollInterval).
		WithBatchSize(cfg.ReminderBatchSize)

	repo := bookings.NewRepository(pool)
	notifier := notify.NewService(sender, bootstrap.BuildEmailSender(cfg, awsCfg, logger), notify.Config{
		OperatorChatID: cfg.OperatorChatID,
		OperatorEmail:  cfg.OperatorEmail,
	}, logger)

	scheduler := cron.New(cron.WithLocation(info.Location))
	if _, err := scheduler.AddFunc(cfg.PendingDigestCron, func() {
		if err := sendPendingDigest(ctx, repo, notifier, info.Location, logger); err != nil {
			logger.Error("pending digest failed", "error", err)
		}
	}); err != nil {
		return err
	}
	scheduler.Start()
	logger.Info("pending digest scheduled", "cron", cfg.PendingDigestCron)

	r := chi.NewRouter()
	health := handlers.NewHealthHandler(map[string]handlers.Pinger{"postgres": handlers.PingFunc(pool.Ping)}, logger)
	r.Get("/health", health.Health)
	r.Get("/ready", health.Ready)
	r.Handle("/metrics", promhttp.Handler())
	srv := &http.Server{Addr: ":" + cfg.Port, Handler: r, ReadHeaderTimeout: 5 * time.Second}

	var wg sync.WaitGroup
	wg.Add(2)
	go func() {
		defer wg.Done()
		poller.Run(ctx)
	}()
	go func() {
		defer wg.Done()
		if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			logger.Error("worker http server failed", "error", err)
		}
	}()

	<-ctx.Done()
	logger.Info("shutting down reminder worker...")
	<-scheduler.Stop().Done()

	shutdownCtx, cancel := context.WithTimeout(context.Background(), cfg.ShutdownTimeout)
	defer cancel()
	if err := srv.Shutdown(shutdownCtx); err != nil {
		logger.Error("worker http shutdown failed", "error", err)
	}
	wg.Wait()
	return nil
}
