package main

import (
	"context"
	"errors"
	"log/slog"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/hibiken/asynq"

	"github.com/fmc-ops/opsdash/internal/app"
	"github.com/fmc-ops/opsdash/internal/observability"
	"github.com/fmc-ops/opsdash/internal/platform/storage"
	"github.com/fmc-ops/opsdash/internal/realtime"
	"github.com/fmc-ops/opsdash/internal/result"
	"github.com/fmc-ops/opsdash/jobs"
)

func main() {
	if app.InTestMode() {
		slog.Default().Info("test mode detected, skipping worker startup")
		return
	}

	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	cfg, err := app.LoadConfig()
	if err != nil {
		slog.Default().Error("load config", slog.Any("error", err))
		os.Exit(1)
	}
	logger := app.NewLogger(cfg)
	if cfg.RedisAddr == "" {
		logger.Error("worker needs REDIS_ADDR")
		os.Exit(1)
	}

	metrics := observability.NewMetrics()
	result.SetObserver(observability.ResultObserver(metrics, logger))

	svcs, err := app.NewServices(ctx, cfg, logger)
	if err != nil {
		logger.Error("init services", slog.Any("error", err))
		os.Exit(1)
	}
	defer svcs.Close()

	store, err := newStore(cfg, logger)
	if err != nil {
		logger.Error("init storage", slog.Any("error", err))
		os.Exit(1)
	}

	if cfg.EnableRealtime && svcs.Pool != nil && svcs.Redis != nil {
		local := realtime.NewHub(true, logger)
		local.SubscribeAll(func(ev realtime.Event) {
			svcs.Cache.Invalidate(ctx, ev.Table)
		})
		bridge := realtime.NewRedisBridge(svcs.Redis, local, logger)
		listener := realtime.NewPGListener(svcs.Pool, cfg.RealtimeChannel, bridge, logger)
		go func() {
			if err := listener.Run(ctx); err != nil && !errors.Is(err, context.Canceled) {
				logger.Error("realtime listener", slog.Any("error", err))
			}
		}()
	}

	warmupJob := jobs.NewWarmupJob(svcs.Analytics, logger, metrics.Jobs())
	exportJob := jobs.NewExportJob(svcs.Orders, svcs.Invoices, svcs.Analytics, store, logger, metrics.Jobs())

	warmupTask, err := jobs.NewWarmupTask("nightly")
	if err != nil {
		logger.Error("build warmup task", slog.Any("error", err))
		os.Exit(1)
	}

	worker, err := jobs.NewWorker(jobs.WorkerConfig{
		RedisOpts:   asynq.RedisClientOpt{Addr: cfg.RedisAddr},
		Logger:      logger,
		Concurrency: cfg.WorkerConcurrency,
		Handlers: []jobs.TaskHandler{
			{Type: jobs.TaskAnalyticsWarmup, Handler: warmupJob.Handle},
			{Type: jobs.TaskExportReport, Handler: exportJob.Handle},
		},
		Cron: []jobs.CronRegistration{
			{Spec: jobs.WarmupCron, Task: warmupTask, Options: []asynq.Option{asynq.MaxRetry(3)}},
		},
	})
	if err != nil {
		logger.Error("init worker", slog.Any("error", err))
		os.Exit(1)
	}

	metricsServer := &http.Server{Addr: cfg.WorkerMetricsAddr, Handler: metrics.Handler(), ReadHeaderTimeout: 5 * time.Second}
	go func() {
		if err := metricsServer.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			logger.Warn("metrics server", slog.Any("error", err))
		}
	}()
	defer func() {
		shutdownCtx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
		defer cancel()
		_ = metricsServer.Shutdown(shutdownCtx)
	}()

	if err := worker.Run(ctx); err != nil && !errors.Is(err, context.Canceled) {
		logger.Error("worker run", slog.Any("error", err))
		os.Exit(1)
	}
}

func newStore(cfg *app.Config, logger *slog.Logger) (storage.Store, error) {
	if cfg.S3Bucket == "" {
		logger.Warn("S3_BUCKET not set, exports are kept in memory")
		return storage.NewMemory(), nil
	}
	return storage.NewS3(storage.S3Config{
		Bucket:    cfg.S3Bucket,
		Region:    cfg.S3Region,
		Endpoint:  cfg.S3Endpoint,
		AccessKey: cfg.S3AccessKey,
		SecretKey: cfg.S3SecretKey,
		PublicURL: cfg.S3PublicBaseURL,
	})
}
