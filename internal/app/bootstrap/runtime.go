package bootstrap

import (
	"context"
	"fmt"
	"strings"

	"github.com/jackc/pgx/v5/pgxpool"
	"github.com/redis/go-redis/v9"

	"github.com/wolfman30/cosmetology-assistant/internal/clinic"
	appconfig "github.com/wolfman30/cosmetology-assistant/internal/config"
	"github.com/wolfman30/cosmetology-assistant/pkg/logging"
)

// BuildRedisClient returns a configured Redis client or nil when disabled.
// When verify is true, a ping is issued and failures are only logged: the
// rate limiter and caches degrade without Redis.
func BuildRedisClient(ctx context.Context, cfg *appconfig.Config, logger *logging.Logger, verify bool) *redis.Client {
	if cfg == nil || strings.TrimSpace(cfg.RedisAddr) == "" {
		return nil
	}
	if logger == nil {
		logger = logging.Default()
	}
	client := redis.NewClient(&redis.Options{
		Addr:     cfg.RedisAddr,
		Password: cfg.RedisPassword,
		DB:       cfg.RedisDB,
	})
	if verify {
		if err := client.Ping(ctx).Err(); err != nil {
			logger.Warn("redis not available", "addr", cfg.RedisAddr, "error", err)
		}
	}
	return client
}

// BuildPostgresPool connects and pings the database.
func BuildPostgresPool(ctx context.Context, databaseURL string) (*pgxpool.Pool, error) {
	if strings.TrimSpace(databaseURL) == "" {
		return nil, fmt.Errorf("bootstrap: DATABASE_URL is required")
	}
	pool, err := pgxpool.New(ctx, databaseURL)
	if err != nil {
		return nil, fmt.Errorf("bootstrap: connect postgres: %w", err)
	}
	if err := pool.Ping(ctx); err != nil {
		pool.Close()
		return nil, fmt.Errorf("bootstrap: ping postgres: %w", err)
	}
	return pool, nil
}

// ClinicInfo collects the clinic contact details from config.
func ClinicInfo(cfg *appconfig.Config) (clinic.Info, error) {
	loc, err := clinic.LoadLocation(cfg.Timezone)
	if err != nil {
		return clinic.Info{}, fmt.Errorf("bootstrap: clinic timezone: %w", err)
	}
	return clinic.Info{
		Name:         cfg.ClinicName,
		Phone:        cfg.ClinicPhone,
		Address:      cfg.ClinicAddress,
		WorkingHours: cfg.WorkingHours,
		Location:     loc,
	}, nil
}
