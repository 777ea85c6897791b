package jobs

import (
	"context"
	"errors"
	"log/slog"
	"net/http"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/hibiken/asynq"

	"github.com/fmc-ops/opsdash/internal/analytics"
	"github.com/fmc-ops/opsdash/internal/platform/httpx"
	"github.com/fmc-ops/opsdash/internal/result"
)

// Worker wraps the Asynq server and optional scheduler.
type Worker struct {
	server    *asynq.Server
	mux       *asynq.ServeMux
	scheduler *asynq.Scheduler
	logger    *slog.Logger
}

// TaskHandler allows injecting custom Asynq handlers during worker setup.
type TaskHandler struct {
	Type    string
	Handler asynq.HandlerFunc
}

// CronRegistration wires a cron expression to a prepared task.
type CronRegistration struct {
	Spec    string
	Task    *asynq.Task
	Options []asynq.Option
}

// WorkerConfig collects dependencies required to bootstrap the worker.
type WorkerConfig struct {
	RedisOpts   asynq.RedisClientOpt
	Logger      *slog.Logger
	Concurrency int
	Handlers    []TaskHandler
	Cron        []CronRegistration
}

// NewWorker constructs a Worker instance.
func NewWorker(cfg WorkerConfig) (*Worker, error) {
	if cfg.Logger == nil {
		cfg.Logger = slog.Default()
	}
	if cfg.Concurrency <= 0 {
		cfg.Concurrency = 5
	}
	srv := asynq.NewServer(cfg.RedisOpts, asynq.Config{
		Concurrency: cfg.Concurrency,
		Queues: map[string]int{
			QueueDefault: 1,
		},
		ErrorHandler: asynq.ErrorHandlerFunc(func(ctx context.Context, task *asynq.Task, err error) {
			cfg.Logger.Error("task failed", slog.String("type", task.Type()), slog.Any("error", err))
		}),
	})
	mux := asynq.NewServeMux()
	for _, h := range cfg.Handlers {
		if h.Type == "" || h.Handler == nil {
			continue
		}
		mux.HandleFunc(h.Type, h.Handler)
	}

	var scheduler *asynq.Scheduler
	if len(cfg.Cron) > 0 {
		scheduler = asynq.NewScheduler(cfg.RedisOpts, &asynq.SchedulerOpts{Location: time.UTC})
		for _, entry := range cfg.Cron {
			if entry.Spec == "" || entry.Task == nil {
				continue
			}
			if _, err := scheduler.Register(entry.Spec, entry.Task, entry.Options...); err != nil {
				return nil, err
			}
		}
	}

	return &Worker{server: srv, mux: mux, scheduler: scheduler, logger: cfg.Logger}, nil
}

// Run starts processing jobs until context cancellation.
func (w *Worker) Run(ctx context.Context) error {
	if w == nil {
		return errors.New("worker: not configured")
	}
	if w.scheduler != nil {
		if err := w.scheduler.Start(); err != nil {
			return err
		}
	}
	errCh := make(chan error, 1)
	go func() {
		errCh <- w.server.Run(w.mux)
	}()
	select {
	case <-ctx.Done():
		if w.scheduler != nil {
			w.scheduler.Shutdown()
		}
		w.server.Shutdown()
		return ctx.Err()
	case err := <-errCh:
		if w.scheduler != nil {
			w.scheduler.Shutdown()
		}
		return err
	}
}

// Client submits jobs to the queue.
type Client struct {
	client *asynq.Client
	logger *slog.Logger
}

// NewClient constructs an Asynq client.
func NewClient(redisOpts asynq.RedisClientOpt, logger *slog.Logger) *Client {
	if logger == nil {
		logger = slog.Default()
	}
	return &Client{client: asynq.NewClient(redisOpts), logger: logger}
}

// EnqueueExport enqueues an export task.
func (c *Client) EnqueueExport(ctx context.Context, payload ExportPayload) (*asynq.TaskInfo, error) {
	task, err := NewExportTask(payload)
	if err != nil {
		return nil, err
	}
	return c.client.EnqueueContext(ctx, task, asynq.Queue(QueueDefault))
}

// EnqueueWarmup schedules a warmup shortly after a burst of changes. Bursts
// inside the uniqueness window collapse into one task.
func (c *Client) EnqueueWarmup(ctx context.Context, reason string) (*asynq.TaskInfo, error) {
	task, err := NewWarmupTask(reason)
	if err != nil {
		return nil, err
	}
	return c.client.EnqueueContext(ctx, task,
		asynq.Queue(QueueDefault),
		asynq.ProcessIn(30*time.Second),
		asynq.Unique(time.Minute))
}

// WarmAfterChange is a change hook that requests a warmup. Duplicate
// requests inside the uniqueness window are expected and ignored.
func (c *Client) WarmAfterChange(ctx context.Context, table string) {
	if c == nil {
		return
	}
	if _, err := c.EnqueueWarmup(context.WithoutCancel(ctx), "change:"+table); err != nil && !errors.Is(err, asynq.ErrDuplicateTask) {
		c.logger.Warn("enqueue analytics warmup", slog.String("table", table), slog.Any("error", err))
	}
}

// Close releases client resources.
func (c *Client) Close() error {
	return c.client.Close()
}

// Enqueuer submits export tasks.
type Enqueuer interface {
	EnqueueExport(ctx context.Context, payload ExportPayload) (*asynq.TaskInfo, error)
}

// QueueInspector reports queue state.
type QueueInspector interface {
	GetQueueInfo(queue string) (*asynq.QueueInfo, error)
}

// Queued is the reply to an accepted export.
type Queued struct {
	TaskID string `json:"task_id"`
	Queue  string `json:"queue"`
	Kind   string `json:"kind"`
}

// QueueHealth is the reply of the health endpoint.
type QueueHealth struct {
	Queue     string `json:"queue"`
	Pending   int    `json:"pending"`
	Active    int    `json:"active"`
	Scheduled int    `json:"scheduled"`
	Retry     int    `json:"retry"`
	Failed    int    `json:"failed_today"`
	Enabled   bool   `json:"enabled"`
}

// Handler exposes HTTP endpoints for exports and job observability.
type Handler struct {
	enqueuer  Enqueuer
	inspector QueueInspector
	logger    *slog.Logger
	now       func() time.Time
}

// NewHandler constructs an HTTP handler for jobs endpoints. Both
// dependencies may be nil when no Redis is configured.
func NewHandler(enqueuer Enqueuer, inspector QueueInspector, logger *slog.Logger) *Handler {
	if logger == nil {
		logger = slog.Default()
	}
	return &Handler{enqueuer: enqueuer, inspector: inspector, logger: logger, now: time.Now}
}

// MountRoutes registers the routes under an /api router.
func (h *Handler) MountRoutes(r chi.Router) {
	r.Post("/exports", h.enqueueExport)
	r.Get("/jobs/health", h.health)
}

func (h *Handler) enqueueExport(w http.ResponseWriter, r *http.Request) {
	if h.enqueuer == nil {
		httpx.Problem(w, http.StatusServiceUnavailable, "Jobs Unavailable", "Background jobs need REDIS_ADDR")
		return
	}
	var payload ExportPayload
	if err := httpx.DecodeJSON(w, r, &payload); err != nil {
		httpx.Problem(w, http.StatusBadRequest, "Invalid Request", err.Error())
		return
	}
	if verr := httpx.Validate("jobs.export", payload); verr != nil {
		httpx.Fail(w, verr)
		return
	}
	if payload.Kind == ExportMonthly {
		if _, perr := analytics.ParsePeriod(payload.Period, h.now()); perr != nil {
			httpx.Fail(w, perr)
			return
		}
	}
	info, err := h.enqueuer.EnqueueExport(r.Context(), payload)
	if err != nil {
		h.logger.Error("enqueue export", slog.String("kind", payload.Kind), slog.Any("error", err))
		httpx.Fail(w, &result.Error{Kind: result.KindNetwork, Message: "Could not queue the export. Please try again.", Op: "jobs.export", Cause: err})
		return
	}
	h.logger.Info("export queued", slog.String("task_id", info.ID), slog.String("kind", payload.Kind))
	httpx.JSON(w, http.StatusAccepted, result.Ok(Queued{TaskID: info.ID, Queue: info.Queue, Kind: payload.Kind}))
}

func (h *Handler) health(w http.ResponseWriter, _ *http.Request) {
	if h.inspector == nil {
		httpx.Envelope(w, result.Ok(QueueHealth{Queue: QueueDefault}))
		return
	}
	info, err := h.inspector.GetQueueInfo(QueueDefault)
	if err != nil {
		h.logger.Warn("jobs health", slog.Any("error", err))
		httpx.Problem(w, http.StatusServiceUnavailable, "Jobs Unavailable", "Queue state could not be read")
		return
	}
	out := QueueHealth{Queue: QueueDefault, Enabled: true}
	if info != nil {
		out.Queue = info.Queue
		out.Pending = info.Pending
		out.Active = info.Active
		out.Scheduled = info.Scheduled
		out.Retry = info.Retry
		out.Failed = info.Failed
	}
	httpx.Envelope(w, result.Ok(out))
}
