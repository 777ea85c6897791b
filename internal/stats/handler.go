package stats

import (
	"net/http"
	"strconv"

	"github.com/go-chi/chi/v5"

	"github.com/fmc-ops/opsdash/internal/platform/httpx"
)

// Handler exposes the summary, alerts, activity and supplier union.
type Handler struct {
	service *Service
}

func NewHandler(service *Service) *Handler {
	return &Handler{service: service}
}

// MountRoutes registers the routes under an /api router.
func (h *Handler) MountRoutes(r chi.Router) {
	r.Get("/stats", h.dashboard)
	r.Get("/alerts", h.alerts)
	r.Post("/alerts/{id}/read", h.markRead)
	r.Get("/activity", h.activity)
	r.Get("/suppliers", h.suppliers)
}

func (h *Handler) dashboard(w http.ResponseWriter, r *http.Request) {
	httpx.Envelope(w, h.service.Dashboard(r.Context()))
}

func (h *Handler) alerts(w http.ResponseWriter, r *http.Request) {
	unread, _ := strconv.ParseBool(r.URL.Query().Get("unread"))
	httpx.Envelope(w, h.service.Alerts(r.Context(), unread))
}

func (h *Handler) markRead(w http.ResponseWriter, r *http.Request) {
	httpx.Envelope(w, h.service.MarkAlertRead(r.Context(), chi.URLParam(r, "id")))
}

func (h *Handler) activity(w http.ResponseWriter, r *http.Request) {
	limit, _ := strconv.Atoi(r.URL.Query().Get("limit"))
	httpx.Envelope(w, h.service.RecentActivity(r.Context(), limit))
}

func (h *Handler) suppliers(w http.ResponseWriter, r *http.Request) {
	httpx.Envelope(w, h.service.AllSuppliers(r.Context()))
}
