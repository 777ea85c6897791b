package invoices

import (
	"fmt"
	"log/slog"
	"net/http"
	"time"

	"github.com/go-chi/chi/v5"

	"github.com/fmc-ops/opsdash/internal/listing"
	"github.com/fmc-ops/opsdash/internal/platform/httpx"
)

// Handler exposes the invoice service as JSON.
type Handler struct {
	logger  *slog.Logger
	service *Service
}

// NewHandler builds a Handler.
func NewHandler(logger *slog.Logger, service *Service) *Handler {
	return &Handler{logger: logger, service: service}
}

// MountRoutes registers the invoice routes on r, which is expected to be
// mounted at /api/invoices.
func (h *Handler) MountRoutes(r chi.Router) {
	r.Get("/", h.list)
	r.Post("/", h.create)
	r.Get("/suppliers", h.suppliers)
	r.Get("/count", h.count)
	r.Get("/export.csv", h.exportCSV)
	r.Post("/delete", h.deleteMany)
	r.Get("/{id}", h.get)
	r.Patch("/{id}", h.update)
	r.Delete("/{id}", h.delete)
	r.Get("/{id}/items", h.items)
}

func (h *Handler) list(w http.ResponseWriter, r *http.Request) {
	httpx.Envelope(w, h.service.List(r.Context(), listing.FromRequest(r)))
}

func (h *Handler) get(w http.ResponseWriter, r *http.Request) {
	httpx.Envelope(w, h.service.Get(r.Context(), chi.URLParam(r, "id")))
}

func (h *Handler) items(w http.ResponseWriter, r *http.Request) {
	httpx.Envelope(w, h.service.Items(r.Context(), chi.URLParam(r, "id")))
}

func (h *Handler) create(w http.ResponseWriter, r *http.Request) {
	var in CreateInput
	if err := httpx.DecodeJSON(w, r, &in); err != nil {
		httpx.Problem(w, http.StatusBadRequest, "Invalid Request", err.Error())
		return
	}
	if verr := httpx.Validate("invoices.create", in); verr != nil {
		httpx.Fail(w, verr)
		return
	}
	res := h.service.Create(r.Context(), in)
	if res.IsOk() {
		h.logger.Info("invoice created", slog.String("id", res.Value().ID), slog.String("supplier", res.Value().Supplier))
	}
	httpx.EnvelopeCreated(w, res)
}

func (h *Handler) update(w http.ResponseWriter, r *http.Request) {
	var in UpdateInput
	if err := httpx.DecodeJSON(w, r, &in); err != nil {
		httpx.Problem(w, http.StatusBadRequest, "Invalid Request", err.Error())
		return
	}
	if verr := httpx.Validate("invoices.update", in); verr != nil {
		httpx.Fail(w, verr)
		return
	}
	httpx.Envelope(w, h.service.Update(r.Context(), chi.URLParam(r, "id"), in))
}

func (h *Handler) delete(w http.ResponseWriter, r *http.Request) {
	httpx.Envelope(w, h.service.Delete(r.Context(), chi.URLParam(r, "id")))
}

type bulkDeleteRequest struct {
	IDs []string `json:"ids"`
}

func (h *Handler) deleteMany(w http.ResponseWriter, r *http.Request) {
	var req bulkDeleteRequest
	if err := httpx.DecodeJSON(w, r, &req); err != nil {
		httpx.Problem(w, http.StatusBadRequest, "Invalid Request", err.Error())
		return
	}
	res := h.service.DeleteMany(r.Context(), req.IDs)
	if res.IsOk() {
		h.logger.Info("invoices deleted", slog.Int("requested", len(req.IDs)), slog.Int("deleted", res.Value().Count))
	}
	httpx.Envelope(w, res)
}

func (h *Handler) suppliers(w http.ResponseWriter, r *http.Request) {
	httpx.Envelope(w, h.service.Suppliers(r.Context()))
}

func (h *Handler) count(w http.ResponseWriter, r *http.Request) {
	httpx.Envelope(w, h.service.Count(r.Context(), r.URL.Query().Get("status")))
}

func (h *Handler) exportCSV(w http.ResponseWriter, r *http.Request) {
	q := listing.FromRequest(r)
	q.Page = 1
	q.PageSize = listing.MaxPageSize
	res := h.service.List(r.Context(), q)
	if !res.IsOk() {
		httpx.Envelope(w, res)
		return
	}
	filename := fmt.Sprintf("invoices-%s.csv", time.Now().UTC().Format("20060102"))
	w.Header().Set("Content-Type", "text/csv; charset=utf-8")
	w.Header().Set("Content-Disposition", fmt.Sprintf("attachment; filename=%q", filename))
	if err := WriteCSV(w, res.Value().Items); err != nil {
		h.logger.Error("invoices csv export", slog.Any("error", err))
	}
}
