package jobs

import (
	"context"
	"encoding/json"
	"errors"
	"log/slog"
	"time"

	"github.com/hibiken/asynq"

	jobmetrics "github.com/fmc-ops/opsdash/internal/jobs"
)

var defaultJobMetrics = jobmetrics.NewMetrics(nil)

// Warmer fills the analytics cache.
type Warmer interface {
	Warm(ctx context.Context) error
}

// WarmupJob precomputes the current year and the rolling twelve months.
type WarmupJob struct {
	Analytics Warmer
	Logger    *slog.Logger
	Metrics   *jobmetrics.Metrics
	Timeout   time.Duration
}

// NewWarmupJob wires dependencies for the warmup handler.
func NewWarmupJob(analytics Warmer, logger *slog.Logger, metrics *jobmetrics.Metrics) *WarmupJob {
	return &WarmupJob{Analytics: analytics, Logger: logger, Metrics: metrics, Timeout: time.Minute}
}

// Handle processes analytics warmup tasks.
func (j *WarmupJob) Handle(ctx context.Context, t *asynq.Task) (resultErr error) {
	if j == nil || j.Analytics == nil {
		return errors.New("analytics warmup: handler not configured")
	}
	var payload WarmupPayload
	if len(t.Payload()) > 0 {
		if err := json.Unmarshal(t.Payload(), &payload); err != nil {
			return asynq.SkipRetry
		}
	}

	tracker := metricsOr(j.Metrics).Track(TaskAnalyticsWarmup)
	defer func() {
		resultErr = tracker.End(resultErr)
	}()

	logger := jobLogger(j.Logger, TaskAnalyticsWarmup).With(slog.String("reason", payload.Reason))
	start := time.Now()
	logger.Info("starting analytics warmup")

	if j.Timeout > 0 {
		var cancel context.CancelFunc
		ctx, cancel = context.WithTimeout(ctx, j.Timeout)
		defer cancel()
	}
	if err := j.Analytics.Warm(ctx); err != nil {
		logger.Error("analytics warmup", slog.Any("error", err))
		return err
	}
	logger.Info("completed analytics warmup", slog.Duration("duration", time.Since(start)))
	return nil
}

func jobLogger(logger *slog.Logger, job string) *slog.Logger {
	if logger == nil {
		logger = slog.Default()
	}
	return logger.With(slog.String("job", job))
}

func metricsOr(m *jobmetrics.Metrics) *jobmetrics.Metrics {
	if m != nil {
		return m
	}
	return defaultJobMetrics
}
