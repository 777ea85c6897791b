// Package live binds list controllers to browser sessions over websockets.
// Each connection owns one controller and its row selection.
package live

import (
	"context"
	"encoding/json"
	"errors"
	"log/slog"
	"sync"

	"github.com/fmc-ops/opsdash/internal/listing"
	"github.com/fmc-ops/opsdash/internal/platform/wsx"
)

// ClientFrame is a message from the browser. Query fields are read only
// for type "query"; IDs only for type "select".
type ClientFrame struct {
	Type string   `json:"type"`
	IDs  []string `json:"ids,omitempty"`
	listing.Query
}

// Client frame types.
const (
	FrameQuery          = "query"
	FrameRefresh        = "refresh"
	FrameSelect         = "select"
	FrameClearSelection = "clear_selection"
)

// ServerFrame is a controller snapshot plus the current selection.
type ServerFrame[T any] struct {
	Type string `json:"type"`
	listing.Snapshot[T]
	Selected []string `json:"selected"`
}

// Sender delivers frames to the browser.
type Sender interface {
	Send(v any) error
}

// Session owns one controller and the selection of the view bound to it.
type Session[T any] struct {
	ctrl   *listing.Controller[T]
	id     func(T) string
	out    Sender
	logger *slog.Logger

	mu        sync.Mutex
	selection *listing.Selection
	visible   []string
	last      listing.Snapshot[T]
}

// NewSession wires a controller to out. Call Start to issue the first fetch.
func NewSession[T any](ctrl *listing.Controller[T], id func(T) string, out Sender, logger *slog.Logger) *Session[T] {
	if logger == nil {
		logger = slog.Default()
	}
	s := &Session[T]{ctrl: ctrl, id: id, out: out, logger: logger, selection: listing.NewSelection()}
	ctrl.OnChange(s.onSnapshot)
	return s
}

// Start issues the initial fetch.
func (s *Session[T]) Start() { s.ctrl.Start() }

// Close tears down the controller.
func (s *Session[T]) Close() { s.ctrl.Close() }

func (s *Session[T]) onSnapshot(snap listing.Snapshot[T]) {
	s.mu.Lock()
	s.last = snap
	if snap.State == listing.Loaded {
		s.visible = make([]string, len(snap.Items))
		for i, item := range snap.Items {
			s.visible[i] = s.id(item)
		}
		s.selection.Retain(s.visible)
	}
	frame := ServerFrame[T]{Type: "snapshot", Snapshot: snap, Selected: s.selection.IDs()}
	s.mu.Unlock()
	s.send(frame)
}

// Handle applies one client frame.
func (s *Session[T]) Handle(raw []byte) {
	var f ClientFrame
	if err := json.Unmarshal(raw, &f); err != nil {
		s.send(map[string]string{"type": "error", "error": "malformed frame"})
		return
	}
	switch f.Type {
	case FrameQuery:
		s.ctrl.SetQuery(f.Query)
	case FrameRefresh:
		s.ctrl.Refresh()
	case FrameSelect:
		s.mu.Lock()
		s.selection.Set(f.IDs)
		s.selection.Retain(s.visible)
		s.mu.Unlock()
		s.resend()
	case FrameClearSelection:
		s.mu.Lock()
		s.selection.Clear()
		s.mu.Unlock()
		s.resend()
	default:
		s.send(map[string]string{"type": "error", "error": "unknown frame type " + f.Type})
	}
}

// Selected returns the selected ids.
func (s *Session[T]) Selected() []string {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.selection.IDs()
}

func (s *Session[T]) resend() {
	s.mu.Lock()
	frame := ServerFrame[T]{Type: "snapshot", Snapshot: s.last, Selected: s.selection.IDs()}
	s.mu.Unlock()
	s.send(frame)
}

func (s *Session[T]) send(v any) {
	if err := s.out.Send(v); err != nil && !errors.Is(err, wsx.ErrClosed) {
		s.logger.Warn("live frame dropped", slog.Any("error", err))
	}
}

// Run serves conn until it closes or ctx ends, then tears down the session.
func (s *Session[T]) Run(ctx context.Context, conn *wsx.Conn) {
	defer s.Close()
	s.Start()
	conn.Serve(ctx, s.Handle)
}
