package assistant

import (
	"log/slog"
	"net/http"

	"github.com/go-chi/chi/v5"

	"github.com/fmc-ops/opsdash/internal/platform/httpx"
	"github.com/fmc-ops/opsdash/internal/result"
)

// MessageInput is a chat message from the user.
type MessageInput struct {
	Message string `json:"message" validate:"required,max=500"`
}

// Handler exposes the assistant over HTTP.
type Handler struct {
	logger    *slog.Logger
	assistant *Assistant
}

func NewHandler(logger *slog.Logger, a *Assistant) *Handler {
	if logger == nil {
		logger = slog.Default()
	}
	return &Handler{logger: logger, assistant: a}
}

// MountRoutes registers the routes on a router mounted at /api/assistant.
func (h *Handler) MountRoutes(r chi.Router) {
	r.Post("/messages", h.message)
}

func (h *Handler) message(w http.ResponseWriter, r *http.Request) {
	var in MessageInput
	if err := httpx.DecodeJSON(w, r, &in); err != nil {
		httpx.Problem(w, http.StatusBadRequest, "Invalid Request", err.Error())
		return
	}
	if verr := httpx.Validate("assistant.message", in); verr != nil {
		httpx.Fail(w, verr)
		return
	}
	reply := h.assistant.Reply(r.Context(), in.Message)
	h.logger.Debug("assistant reply", slog.String("type", reply.Type))
	httpx.Envelope(w, result.Ok(reply))
}
