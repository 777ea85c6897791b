package diagnostics

import (
	"net/http"

	"github.com/go-chi/chi/v5"

	"github.com/fmc-ops/opsdash/internal/platform/httpx"
	"github.com/fmc-ops/opsdash/internal/result"
)

// Issue is a configuration problem shown as a banner. It never stops the
// process.
type Issue struct {
	Field   string `json:"field"`
	Message string `json:"message"`
}

// Settings is the runtime configuration the UI may see.
type Settings struct {
	Mock             bool
	Realtime         bool
	UploadConfigured bool
	HighValue        float64
	Currency         string
	Issues           []Issue
}

// ConfigView is served by GET /api/config.
type ConfigView struct {
	Mode             string  `json:"mode"`
	UseMockData      bool    `json:"use_mock_data"`
	RealtimeEnabled  bool    `json:"realtime_enabled"`
	UploadConfigured bool    `json:"upload_configured"`
	Issues           []Issue `json:"issues"`
}

// Preferences is served by GET /api/settings/preferences.
type Preferences struct {
	HighValueThreshold float64 `json:"high_value_threshold"`
	DefaultCurrency    string  `json:"default_currency"`
	RealtimeEnabled    bool    `json:"realtime_enabled"`
}

// Handler exposes diagnostics and read-only settings.
type Handler struct {
	checker  *Checker
	settings Settings
}

func NewHandler(checker *Checker, settings Settings) *Handler {
	if settings.Issues == nil {
		settings.Issues = []Issue{}
	}
	return &Handler{checker: checker, settings: settings}
}

// MountRoutes registers the routes under an /api router.
func (h *Handler) MountRoutes(r chi.Router) {
	r.Get("/config", h.config)
	r.Get("/settings/diagnostics", h.diagnostics)
	r.Get("/settings/preferences", h.preferences)
}

func (h *Handler) config(w http.ResponseWriter, _ *http.Request) {
	mode := "remote"
	if h.settings.Mock {
		mode = "mock"
	}
	httpx.Envelope(w, result.Ok(ConfigView{
		Mode:             mode,
		UseMockData:      h.settings.Mock,
		RealtimeEnabled:  h.settings.Realtime,
		UploadConfigured: h.settings.UploadConfigured,
		Issues:           h.settings.Issues,
	}))
}

func (h *Handler) diagnostics(w http.ResponseWriter, r *http.Request) {
	httpx.Envelope(w, result.Ok(h.checker.Run(r.Context())))
}

func (h *Handler) preferences(w http.ResponseWriter, _ *http.Request) {
	httpx.Envelope(w, result.Ok(Preferences{
		HighValueThreshold: h.settings.HighValue,
		DefaultCurrency:    h.settings.Currency,
		RealtimeEnabled:    h.settings.Realtime,
	}))
}
