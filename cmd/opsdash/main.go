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

	analytichttp "github.com/fmc-ops/opsdash/internal/analytics/http"
	"github.com/fmc-ops/opsdash/internal/app"
	"github.com/fmc-ops/opsdash/internal/assistant"
	"github.com/fmc-ops/opsdash/internal/diagnostics"
	"github.com/fmc-ops/opsdash/internal/invoices"
	"github.com/fmc-ops/opsdash/internal/live"
	"github.com/fmc-ops/opsdash/internal/observability"
	"github.com/fmc-ops/opsdash/internal/orders"
	"github.com/fmc-ops/opsdash/internal/platform/wsx"
	"github.com/fmc-ops/opsdash/internal/realtime"
	"github.com/fmc-ops/opsdash/internal/result"
	"github.com/fmc-ops/opsdash/internal/stats"
	"github.com/fmc-ops/opsdash/internal/upload"
	"github.com/fmc-ops/opsdash/jobs"
)

func main() {
	if app.InTestMode() {
		slog.Default().Info("test mode detected, skipping server startup")
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
	issues := cfg.Validate()
	for _, issue := range issues {
		logger.Warn("configuration issue", slog.String("field", issue.Field), slog.String("message", issue.Message))
	}

	metrics := observability.NewMetrics()
	result.SetObserver(observability.ResultObserver(metrics, logger))

	svcs, err := app.NewServices(ctx, cfg, logger)
	if err != nil {
		logger.Error("init services", slog.Any("error", err))
		os.Exit(1)
	}
	defer svcs.Close()
	logger.Info("data source selected", slog.String("mode", cfg.Mode()))

	var (
		jobsClient *jobs.Client
		enqueuer   jobs.Enqueuer
		inspector  jobs.QueueInspector
	)
	if svcs.Redis != nil {
		redisOpts := asynq.RedisClientOpt{Addr: cfg.RedisAddr}
		jobsClient = jobs.NewClient(redisOpts, logger)
		defer func() {
			if err := jobsClient.Close(); err != nil {
				logger.Warn("jobs client close", slog.Any("error", err))
			}
		}()
		queueInspector := asynq.NewInspector(redisOpts)
		defer func() {
			if err := queueInspector.Close(); err != nil {
				logger.Warn("inspector close", slog.Any("error", err))
			}
		}()
		enqueuer, inspector = jobsClient, queueInspector
	}

	svcs.OnChange(func(ctx context.Context, table string) {
		svcs.Cache.Invalidate(ctx, table)
		jobsClient.WarmAfterChange(ctx, table)
	})
	if err := svcs.Cache.ListenForInvalidation(ctx, func(version int64) {
		logger.Debug("analytics cache bumped", slog.Int64("version", version))
	}); err != nil {
		logger.Warn("analytics cache listener", slog.Any("error", err))
	}

	hub := realtime.NewHub(cfg.EnableRealtime && !cfg.UseMockData, logger)
	hub.SubscribeAll(func(ev realtime.Event) {
		svcs.Cache.Invalidate(ctx, ev.Table)
	})
	startChangeFeed(ctx, cfg, svcs, hub, logger)

	socket := wsx.Options{AllowedOrigins: cfg.CORSOrigins}

	uploadClient := upload.NewClient(upload.Options{
		WebhookURL: cfg.WebhookURL,
		Timeout:    cfg.UploadTimeout,
		MaxBytes:   cfg.UploadMaxBytes,
		Mock:       cfg.UseMockData,
	}, logger)
	var seed []upload.Entry
	if cfg.UseMockData {
		seed = upload.MockEntries(time.Now())
	}
	recent := upload.NewRecentLog(svcs.Redis, logger, seed...)

	var probe diagnostics.Probe
	if svcs.Pool != nil {
		probe = diagnostics.NewPGProbe(svcs.Pool)
	}
	checker := diagnostics.NewChecker(probe, diagnostics.Options{
		Mock:       cfg.UseMockData,
		BackendURL: cfg.BackendURL,
		APIKey:     cfg.BackendAPIKey,
		JWTSecret:  cfg.BackendJWTSecret,
		Realtime:   cfg.EnableRealtime,
	}, logger)

	router := app.NewRouter(app.RouterParams{
		Logger:           logger,
		Config:           cfg,
		Metrics:          metrics,
		OrdersHandler:    orders.NewHandler(logger, svcs.Orders),
		InvoicesHandler:  invoices.NewHandler(logger, svcs.Invoices),
		StatsHandler:     stats.NewHandler(svcs.Stats),
		AnalyticsHandler: analytichttp.NewHandler(logger, svcs.Analytics, cfg.DefaultCurrency),
		AssistantHandler: assistant.NewHandler(logger, assistant.New(svcs.Orders, svcs.Invoices, svcs.Stats, cfg.HighValueThreshold, cfg.DefaultCurrency)),
		UploadHandler:    upload.NewHandler(logger, uploadClient, recent),
		DiagnosticsHandler: diagnostics.NewHandler(checker, diagnostics.Settings{
			Mock:             cfg.UseMockData,
			Realtime:         cfg.EnableRealtime,
			UploadConfigured: uploadClient.Configured(),
			HighValue:        cfg.HighValueThreshold,
			Currency:         cfg.DefaultCurrency,
			Issues:           issues,
		}),
		JobHandler: jobs.NewHandler(enqueuer, inspector, logger),
		LiveHandler: live.NewHandler(svcs.Orders, svcs.Invoices, hub, live.Options{
			Debounce: cfg.RefreshDebounce,
			Timeout:  cfg.BackendQueryTimeout,
			Socket:   socket,
			Gauge:    metrics,
		}, logger),
		RealtimeStream: realtime.NewStream(hub, socket, logger),
	})

	server := &http.Server{
		Addr:         cfg.AppAddr,
		Handler:      router,
		ReadTimeout:  cfg.AppReadTimeout,
		WriteTimeout: cfg.AppWriteTimeout,
	}

	go func() {
		logger.Info("starting http server", slog.String("addr", cfg.AppAddr))
		if err := server.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			logger.Error("http server", slog.Any("error", err))
			stop()
		}
	}()

	<-ctx.Done()
	logger.Info("shutting down")

	shutdownCtx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()
	if err := server.Shutdown(shutdownCtx); err != nil {
		logger.Error("graceful shutdown", slog.Any("error", err))
	}
}

// startChangeFeed feeds the hub. With Redis the worker owns the Postgres
// listener and fans out through the bridge; without it this process listens
// itself.
func startChangeFeed(ctx context.Context, cfg *app.Config, svcs *app.Services, hub *realtime.Hub, logger *slog.Logger) {
	if !hub.Enabled() {
		return
	}
	if svcs.Redis != nil {
		bridge := realtime.NewRedisBridge(svcs.Redis, hub, logger)
		go func() {
			if err := bridge.Run(ctx); err != nil && !errors.Is(err, context.Canceled) {
				logger.Error("realtime bridge", slog.Any("error", err))
			}
		}()
		return
	}
	if svcs.Pool == nil {
		return
	}
	listener := realtime.NewPGListener(svcs.Pool, cfg.RealtimeChannel, hub, logger)
	go func() {
		if err := listener.Run(ctx); err != nil && !errors.Is(err, context.Canceled) {
			logger.Error("realtime listener", slog.Any("error", err))
		}
	}()
}
