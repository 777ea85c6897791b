// Package realtime fans table change events out to in-process subscribers,
// other API instances and browsers.
package realtime

import (
	"encoding/json"
	"fmt"
	"strings"
	"time"
)

// EventType is the kind of row change.
type EventType string

const (
	Insert EventType = "INSERT"
	Update EventType = "UPDATE"
	Delete EventType = "DELETE"
)

// Tables that publish change events.
const (
	TableOrders   = "orders"
	TableInvoices = "invoices"
	TableAlerts   = "alerts"
)

// KnownTables lists every table a client may subscribe to.
var KnownTables = []string{TableOrders, TableInvoices, TableAlerts}

// Event is one row change. New is absent for deletes and Old for inserts.
type Event struct {
	Table  string          `json:"table"`
	Type   EventType       `json:"type"`
	New    json.RawMessage `json:"new,omitempty"`
	Old    json.RawMessage `json:"old,omitempty"`
	At     time.Time       `json:"at"`
	Origin string          `json:"origin,omitempty"`
}

// DecodeEvent parses a notification payload as written by the change
// trigger. A missing timestamp is set to now.
func DecodeEvent(payload []byte, now time.Time) (Event, error) {
	var ev Event
	if err := json.Unmarshal(payload, &ev); err != nil {
		return Event{}, fmt.Errorf("realtime: decode event: %w", err)
	}
	ev.Table = strings.ToLower(strings.TrimSpace(ev.Table))
	ev.Type = EventType(strings.ToUpper(string(ev.Type)))
	if ev.Table == "" {
		return Event{}, fmt.Errorf("realtime: decode event: table missing")
	}
	switch ev.Type {
	case Insert, Update, Delete:
	default:
		return Event{}, fmt.Errorf("realtime: decode event: unknown type %q", ev.Type)
	}
	if isNull(ev.New) {
		ev.New = nil
	}
	if isNull(ev.Old) {
		ev.Old = nil
	}
	if ev.At.IsZero() {
		ev.At = now.UTC()
	}
	return ev, nil
}

func isNull(raw json.RawMessage) bool {
	return len(raw) == 0 || string(raw) == "null"
}
