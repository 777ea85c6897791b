package analytichttp

import (
	"net/http"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/httprate"

	"github.com/fmc-ops/opsdash/internal/platform/httpx"
)

// ExportsPerMinute caps report downloads per client IP.
const ExportsPerMinute = 10

// MountRoutes registers the analytics endpoints on a router mounted at
// /api/analytics.
func (h *Handler) MountRoutes(r chi.Router) {
	if h == nil {
		return
	}
	limiter := httprate.Limit(ExportsPerMinute, time.Minute,
		httprate.WithKeyFuncs(httprate.KeyByIP),
		httprate.WithLimitHandler(func(w http.ResponseWriter, r *http.Request) {
			httpx.Problem(w, http.StatusTooManyRequests, "Too Many Requests", "export limit reached, try again shortly")
		}),
	)

	r.Get("/monthly", h.monthly)
	r.Get("/report", h.report)
	r.Get("/status", h.status)
	r.Get("/top-suppliers", h.topSuppliers)
	r.Get("/yearly", h.yearly)
	r.Get("/monthly.svg", h.monthlyChart)
	r.Group(func(gr chi.Router) {
		gr.Use(limiter)
		gr.Get("/report.csv", h.reportCSV)
		gr.Get("/report.xlsx", h.reportXLSX)
		gr.Get("/report.pdf", h.reportPDF)
	})
}
