package app

import (
	"context"
	"log/slog"

	"github.com/jackc/pgx/v5/pgxpool"
	"github.com/redis/go-redis/v9"

	"github.com/fmc-ops/opsdash/internal/analytics"
	"github.com/fmc-ops/opsdash/internal/invoices"
	"github.com/fmc-ops/opsdash/internal/orders"
	"github.com/fmc-ops/opsdash/internal/platform/cache"
	"github.com/fmc-ops/opsdash/internal/platform/db"
	"github.com/fmc-ops/opsdash/internal/stats"
)

// Services bundles the data-access layer shared by the API and the worker.
type Services struct {
	Pool      *pgxpool.Pool
	Redis     *redis.Client
	Orders    *orders.Service
	Invoices  *invoices.Service
	Stats     *stats.Service
	Analytics *analytics.Service
	Cache     *analytics.Cache
}

// NewServices picks the seeded in-memory stores in mock mode and Postgres
// otherwise. Redis is optional: without it the analytics cache is off and
// the upload log stays in memory. An unreachable backend is not fatal; the
// failure shows up in each envelope and in diagnostics.
func NewServices(ctx context.Context, cfg *Config, logger *slog.Logger) (*Services, error) {
	s := &Services{}

	redisClient, err := cache.New(ctx, cfg.RedisAddr)
	if err != nil {
		logger.Warn("redis unavailable, continuing without cache", slog.Any("error", err))
	}
	s.Redis = redisClient

	var (
		orderRepo   orders.Repository
		invoiceRepo invoices.Repository
		feed        stats.FeedRepository
	)
	if cfg.UseMockData {
		orderRepo = orders.NewSeededRepository()
		invoiceRepo = invoices.NewSeededRepository()
		feed = stats.NewSeededFeed()
	} else {
		s.Pool = openPool(ctx, cfg, logger)
		orderRepo = orders.NewPGRepository(s.Pool)
		invoiceRepo = invoices.NewPGRepository(s.Pool)
		feed = stats.NewPGFeed(s.Pool)
	}

	s.Orders = orders.NewService(orderRepo, cfg.BackendQueryTimeout)
	s.Invoices = invoices.NewService(invoiceRepo, cfg.BackendQueryTimeout)
	s.Stats = stats.NewService(s.Orders, s.Invoices, feed, cfg.HighValueThreshold)
	s.Cache = analytics.NewCache(s.Redis, cfg.AnalyticsCacheTTL, logger)
	s.Analytics = analytics.NewService(s.Orders, s.Invoices, s.Cache)
	return s, nil
}

// openPool returns nil when the backend URL is missing or unparsable. The
// repositories then fail every call with their not-configured error.
func openPool(ctx context.Context, cfg *Config, logger *slog.Logger) *pgxpool.Pool {
	if cfg.BackendURL == "" {
		logger.Warn("backend not configured")
		return nil
	}
	pool, err := db.New(ctx, cfg.BackendURL, cfg.BackendQueryTimeout)
	if err != nil {
		logger.Warn("backend url rejected", slog.Any("error", err))
		return nil
	}
	if err := db.Ping(ctx, pool); err != nil {
		logger.Warn("backend unreachable", slog.Any("error", err))
	}
	return pool
}

// OnChange registers fn on both mutating services.
func (s *Services) OnChange(fn func(ctx context.Context, table string)) {
	s.Orders.OnChange(fn)
	s.Invoices.OnChange(fn)
}

// Close releases the pool and the Redis client.
func (s *Services) Close() {
	if s.Pool != nil {
		s.Pool.Close()
	}
	if s.Redis != nil {
		_ = s.Redis.Close()
	}
}
