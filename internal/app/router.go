package app

import (
	"log/slog"
	"net/http"
	"time"

	"github.com/go-chi/chi/v5"
	chimw "github.com/go-chi/chi/v5/middleware"

	analytichttp "github.com/fmc-ops/opsdash/internal/analytics/http"
	"github.com/fmc-ops/opsdash/internal/assistant"
	"github.com/fmc-ops/opsdash/internal/diagnostics"
	"github.com/fmc-ops/opsdash/internal/invoices"
	"github.com/fmc-ops/opsdash/internal/live"
	"github.com/fmc-ops/opsdash/internal/observability"
	"github.com/fmc-ops/opsdash/internal/orders"
	"github.com/fmc-ops/opsdash/internal/realtime"
	"github.com/fmc-ops/opsdash/internal/stats"
	"github.com/fmc-ops/opsdash/internal/upload"
	"github.com/fmc-ops/opsdash/jobs"
)

// RouterParams groups dependencies for building the HTTP router. Nil
// handlers are not mounted.
type RouterParams struct {
	Logger  *slog.Logger
	Config  *Config
	Metrics *observability.Metrics

	OrdersHandler      *orders.Handler
	InvoicesHandler    *invoices.Handler
	StatsHandler       *stats.Handler
	AnalyticsHandler   *analytichttp.Handler
	AssistantHandler   *assistant.Handler
	UploadHandler      *upload.Handler
	DiagnosticsHandler *diagnostics.Handler
	JobHandler         *jobs.Handler
	LiveHandler        *live.Handler
	RealtimeStream     *realtime.Stream
}

// NewRouter constructs the chi.Router with the dashboard defaults.
func NewRouter(params RouterParams) http.Handler {
	r := chi.NewRouter()

	for _, mw := range MiddlewareStack(MiddlewareConfig{
		Logger:  params.Logger,
		Config:  params.Config,
		Metrics: params.Metrics,
	}) {
		r.Use(mw)
	}

	r.Use(chimw.Logger)

	r.Get("/healthz", func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("Content-Type", "application/json")
		w.WriteHeader(http.StatusOK)
		_, _ = w.Write([]byte(`{"status":"ok"}`))
	})
	if params.Metrics != nil {
		r.Method(http.MethodGet, "/metrics", params.Metrics.Handler())
	}

	timeout := 30 * time.Second
	if params.Config != nil && params.Config.AppRequestTimeout > 0 {
		timeout = params.Config.AppRequestTimeout
	}

	r.Route("/api", func(r chi.Router) {
		r.Group(func(r chi.Router) {
			r.Use(chimw.Timeout(timeout))
			if params.OrdersHandler != nil {
				r.Route("/orders", params.OrdersHandler.MountRoutes)
			}
			if params.InvoicesHandler != nil {
				r.Route("/invoices", params.InvoicesHandler.MountRoutes)
			}
			if params.AnalyticsHandler != nil {
				r.Route("/analytics", params.AnalyticsHandler.MountRoutes)
			}
			if params.AssistantHandler != nil {
				r.Route("/assistant", params.AssistantHandler.MountRoutes)
			}
			if params.StatsHandler != nil {
				params.StatsHandler.MountRoutes(r)
			}
			if params.DiagnosticsHandler != nil {
				params.DiagnosticsHandler.MountRoutes(r)
			}
			if params.JobHandler != nil {
				params.JobHandler.MountRoutes(r)
			}
		})

		// Uploads may run for the full webhook timeout.
		if params.UploadHandler != nil {
			r.Route("/uploads", params.UploadHandler.MountRoutes)
		}
		if params.LiveHandler != nil {
			params.LiveHandler.MountRoutes(r)
		}
		if params.RealtimeStream != nil {
			params.RealtimeStream.MountRoutes(r)
		}
	})

	return r
}
