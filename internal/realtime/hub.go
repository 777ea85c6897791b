package realtime

import (
	"log/slog"
	"sync"
)

// Handler receives events. It runs on the publishing goroutine and must not
// block.
type Handler func(Event)

// Publisher accepts events for fan-out.
type Publisher interface {
	Publish(Event)
}

const allTables = "*"

type subscription struct {
	fn    Handler
	types map[EventType]struct{}
}

func (s subscription) wants(t EventType) bool {
	if len(s.types) == 0 {
		return true
	}
	_, ok := s.types[t]
	return ok
}

// Hub is the in-process event bus. A disabled hub accepts subscriptions but
// never delivers, so callers need no mode checks.
type Hub struct {
	enabled bool
	logger  *slog.Logger

	mu   sync.RWMutex
	next uint64
	subs map[string]map[uint64]subscription
}

// NewHub builds a hub. Pass enabled=false in mock mode or when realtime is
// switched off.
func NewHub(enabled bool, logger *slog.Logger) *Hub {
	if logger == nil {
		logger = slog.Default()
	}
	return &Hub{enabled: enabled, logger: logger, subs: make(map[string]map[uint64]subscription)}
}

// Enabled reports whether events are delivered.
func (h *Hub) Enabled() bool { return h != nil && h.enabled }

// Subscribe registers fn for changes to table, optionally limited to types.
// The returned function removes the subscription and is idempotent.
func (h *Hub) Subscribe(table string, fn Handler, types ...EventType) (unsubscribe func()) {
	if !h.Enabled() || fn == nil {
		return func() {}
	}
	sub := subscription{fn: fn}
	if len(types) > 0 {
		sub.types = make(map[EventType]struct{}, len(types))
		for _, t := range types {
			sub.types[t] = struct{}{}
		}
	}

	h.mu.Lock()
	h.next++
	id := h.next
	if h.subs[table] == nil {
		h.subs[table] = make(map[uint64]subscription)
	}
	h.subs[table][id] = sub
	h.mu.Unlock()

	var once sync.Once
	return func() {
		once.Do(func() {
			h.mu.Lock()
			delete(h.subs[table], id)
			if len(h.subs[table]) == 0 {
				delete(h.subs, table)
			}
			h.mu.Unlock()
		})
	}
}

// SubscribeAll registers fn for every table.
func (h *Hub) SubscribeAll(fn Handler) (unsubscribe func()) {
	return h.Subscribe(allTables, fn)
}

// SubscribeTables registers fn for each named table and returns one
// function that removes them all.
func (h *Hub) SubscribeTables(tables []string, fn Handler) (unsubscribe func()) {
	unsubs := make([]func(), 0, len(tables))
	for _, table := range tables {
		var types []EventType
		if table == TableAlerts {
			types = []EventType{Insert}
		}
		unsubs = append(unsubs, h.Subscribe(table, fn, types...))
	}
	return func() {
		for _, u := range unsubs {
			u()
		}
	}
}

// Publish delivers ev to the subscribers of its table and to catch-all
// subscribers. A panicking handler is logged and skipped.
func (h *Hub) Publish(ev Event) {
	if !h.Enabled() {
		return
	}
	h.mu.RLock()
	targets := make([]subscription, 0, len(h.subs[ev.Table])+len(h.subs[allTables]))
	for _, sub := range h.subs[ev.Table] {
		targets = append(targets, sub)
	}
	for _, sub := range h.subs[allTables] {
		targets = append(targets, sub)
	}
	h.mu.RUnlock()

	for _, sub := range targets {
		if sub.wants(ev.Type) {
			h.deliver(sub.fn, ev)
		}
	}
}

func (h *Hub) deliver(fn Handler, ev Event) {
	defer func() {
		if r := recover(); r != nil {
			h.logger.Error("realtime handler panicked", slog.String("table", ev.Table), slog.Any("panic", r))
		}
	}()
	fn(ev)
}

// Subscribers counts live subscriptions, for diagnostics.
func (h *Hub) Subscribers() int {
	if h == nil {
		return 0
	}
	h.mu.RLock()
	defer h.mu.RUnlock()
	n := 0
	for _, subs := range h.subs {
		n += len(subs)
	}
	return n
}
