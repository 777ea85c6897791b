package realtime

import (
	"errors"
	"fmt"
	"log/slog"
	"net/http"
	"slices"
	"strings"

	"github.com/go-chi/chi/v5"

	"github.com/fmc-ops/opsdash/internal/platform/httpx"
	"github.com/fmc-ops/opsdash/internal/platform/wsx"
)

// Frame is what the stream writes to browsers.
type Frame struct {
	Type    string   `json:"type"`
	Enabled *bool    `json:"enabled,omitempty"`
	Tables  []string `json:"tables,omitempty"`
	Event   *Event   `json:"event,omitempty"`
}

// Stream forwards hub events to browsers over a websocket.
type Stream struct {
	hub    *Hub
	opts   wsx.Options
	logger *slog.Logger
}

// NewStream builds the websocket endpoint.
func NewStream(hub *Hub, opts wsx.Options, logger *slog.Logger) *Stream {
	if logger == nil {
		logger = slog.Default()
	}
	return &Stream{hub: hub, opts: opts, logger: logger.With(slog.String("component", "realtime_stream"))}
}

// MountRoutes registers the routes under an /api router.
func (s *Stream) MountRoutes(r chi.Router) {
	r.Get("/realtime/ws", s.ServeHTTP)
	r.Get("/realtime/status", s.status)
}

func (s *Stream) status(w http.ResponseWriter, r *http.Request) {
	httpx.JSON(w, http.StatusOK, map[string]any{
		"enabled":     s.hub.Enabled(),
		"subscribers": s.hub.Subscribers(),
		"tables":      KnownTables,
	})
}

// ParseTables reads a comma separated table list. Blank selects every known
// table.
func ParseTables(raw string) ([]string, error) {
	if strings.TrimSpace(raw) == "" {
		return slices.Clone(KnownTables), nil
	}
	var out []string
	for _, part := range strings.Split(raw, ",") {
		table := strings.ToLower(strings.TrimSpace(part))
		if table == "" || slices.Contains(out, table) {
			continue
		}
		if !slices.Contains(KnownTables, table) {
			return nil, fmt.Errorf("unknown table %q", table)
		}
		out = append(out, table)
	}
	return out, nil
}

func (s *Stream) ServeHTTP(w http.ResponseWriter, r *http.Request) {
	tables, err := ParseTables(r.URL.Query().Get("tables"))
	if err != nil {
		httpx.Problem(w, http.StatusBadRequest, "Invalid Tables", err.Error())
		return
	}
	conn, err := wsx.Upgrade(w, r, s.opts)
	if err != nil {
		s.logger.Warn("upgrade failed", slog.Any("error", err))
		return
	}

	enabled := s.hub.Enabled()
	_ = conn.Send(Frame{Type: "hello", Enabled: &enabled, Tables: tables})
	if !enabled {
		// Nothing will ever arrive; say so and hang up.
		conn.Close()
		conn.Serve(r.Context(), nil)
		return
	}

	unsubscribe := s.hub.SubscribeTables(tables, func(ev Event) {
		ev.Origin = ""
		if err := conn.Send(Frame{Type: "change", Event: &ev}); errors.Is(err, wsx.ErrBackpressure) {
			s.logger.Warn("client too slow, closing", slog.String("table", ev.Table))
			conn.Close()
		}
	})
	defer unsubscribe()

	s.logger.Debug("client connected", slog.Any("tables", tables))
	conn.Serve(r.Context(), nil)
	s.logger.Debug("client disconnected")
}
