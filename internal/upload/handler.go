package upload

import (
	"errors"
	"log/slog"
	"net/http"
	"strconv"
	"time"

	"github.com/go-chi/chi/v5"

	"github.com/fmc-ops/opsdash/internal/platform/httpx"
)

// multipart overhead allowed on top of the file ceiling
const formSlack = 1 << 20

type statusParams struct {
	ID string `json:"id" validate:"required,max=128,printascii"`
}

// Handler accepts browser uploads and relays them to the webhook.
type Handler struct {
	logger *slog.Logger
	client *Client
	recent *RecentLog
	now    func() time.Time
}

func NewHandler(logger *slog.Logger, client *Client, recent *RecentLog) *Handler {
	if logger == nil {
		logger = slog.Default()
	}
	return &Handler{logger: logger, client: client, recent: recent, now: time.Now}
}

// MountRoutes registers the routes on a router mounted at /api/uploads.
func (h *Handler) MountRoutes(r chi.Router) {
	r.Post("/", h.upload)
	r.Get("/recent", h.list)
	r.Get("/{id}/status", h.status)
}

func (h *Handler) upload(w http.ResponseWriter, r *http.Request) {
	// The server write timeout is shorter than a webhook round trip.
	_ = http.NewResponseController(w).SetWriteDeadline(h.now().Add(h.client.timeout + time.Minute))
	r.Body = http.MaxBytesReader(w, r.Body, h.client.MaxBytes()+formSlack)
	if err := r.ParseMultipartForm(8 << 20); err != nil {
		var tooLarge *http.MaxBytesError
		if errors.As(err, &tooLarge) {
			httpx.Fail(w, ErrFileTooLarge)
			return
		}
		if !errors.Is(err, http.ErrNotMultipart) {
			httpx.Problem(w, http.StatusBadRequest, "Invalid Request", err.Error())
			return
		}
	}
	file, header, err := r.FormFile("file")
	if err != nil {
		httpx.Fail(w, ErrNoFile)
		return
	}
	defer func() {
		_ = file.Close()
	}()

	f := File{Name: header.Filename, ContentType: header.Header.Get("Content-Type"), Size: header.Size, Body: file}
	log := h.logger.With(slog.String("file", f.Name))
	next := 25.0
	res := h.client.Upload(r.Context(), f, func(pct float64) {
		for pct >= next {
			log.Debug("upload progress", slog.Float64("percent", next))
			next += 25
		}
	})
	if res.IsOk() {
		out := res.Value()
		h.recent.Add(r.Context(), Entry{ID: out.DocumentID, Filename: f.Name, Status: out.Status, Type: out.Type, UploadedAt: h.now()})
	}
	httpx.Envelope(w, res)
}

func (h *Handler) list(w http.ResponseWriter, r *http.Request) {
	limit, _ := strconv.Atoi(r.URL.Query().Get("limit"))
	httpx.Envelope(w, h.recent.Recent(r.Context(), limit))
}

func (h *Handler) status(w http.ResponseWriter, r *http.Request) {
	params := statusParams{ID: chi.URLParam(r, "id")}
	if verr := httpx.Validate("upload.status", params); verr != nil {
		httpx.Fail(w, verr)
		return
	}
	httpx.Envelope(w, h.client.CheckStatus(r.Context(), params.ID))
}
