package live

import (
	"context"
	"net/http/httptest"
	"strings"
	"sync"
	"sync/atomic"
	"testing"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/gorilla/websocket"
	"github.com/stretchr/testify/require"

	"github.com/fmc-ops/opsdash/internal/invoices"
	"github.com/fmc-ops/opsdash/internal/listing"
	"github.com/fmc-ops/opsdash/internal/orders"
	"github.com/fmc-ops/opsdash/internal/realtime"
	"github.com/fmc-ops/opsdash/internal/result"
)

type item struct{ ID string }

type captureSender struct {
	mu     sync.Mutex
	frames []ServerFrame[item]
}

func (c *captureSender) Send(v any) error {
	c.mu.Lock()
	defer c.mu.Unlock()
	if f, ok := v.(ServerFrame[item]); ok {
		c.frames = append(c.frames, f)
	}
	return nil
}

func (c *captureSender) lastLoaded() (ServerFrame[item], bool) {
	c.mu.Lock()
	defer c.mu.Unlock()
	for i := len(c.frames) - 1; i >= 0; i-- {
		if c.frames[i].State == listing.Loaded {
			return c.frames[i], true
		}
	}
	return ServerFrame[item]{}, false
}

func (c *captureSender) last() ServerFrame[item] {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.frames[len(c.frames)-1]
}

func pagedFetch(all []item) listing.Fetcher[item] {
	return func(_ context.Context, q listing.Query) result.Result[listing.Page[item]] {
		q = q.Normalize()
		start := min(q.Offset(), len(all))
		end := min(start+q.PageSize, len(all))
		return result.Ok(listing.NewPage(all[start:end], len(all), q))
	}
}

func TestSessionRetainsSelectionAgainstVisibleItems(t *testing.T) {
	rows := []item{{"a"}, {"b"}, {"c"}}
	out := &captureSender{}
	ctrl := listing.NewController(pagedFetch(rows), listing.Options{Query: listing.Query{PageSize: 2}})
	s := NewSession(ctrl, func(i item) string { return i.ID }, out, nil)
	defer s.Close()

	s.Start()
	require.Eventually(t, func() bool { _, ok := out.lastLoaded(); return ok }, time.Second, 5*time.Millisecond)

	s.Handle([]byte(`{"type":"select","ids":["a","b","c"]}`))
	require.Equal(t, []string{"a", "b"}, s.Selected(), "c is not on the visible page")
	require.Equal(t, []string{"a", "b"}, out.last().Selected)

	s.Handle([]byte(`{"type":"query","page":2,"page_size":2}`))
	require.Eventually(t, func() bool {
		f, ok := out.lastLoaded()
		return ok && f.Query.Page == 2
	}, time.Second, 5*time.Millisecond)
	require.Empty(t, s.Selected())

	s.Handle([]byte(`{"type":"select","ids":["c"]}`))
	require.Equal(t, []string{"c"}, s.Selected())
	s.Handle([]byte(`{"type":"clear_selection"}`))
	require.Empty(t, s.Selected())
}

func TestSessionRejectsUnknownFrames(t *testing.T) {
	var got []any
	var mu sync.Mutex
	sender := senderFunc(func(v any) error {
		mu.Lock()
		got = append(got, v)
		mu.Unlock()
		return nil
	})
	ctrl := listing.NewController(pagedFetch(nil), listing.Options{})
	s := NewSession(ctrl, func(i item) string { return i.ID }, sender, nil)
	defer s.Close()

	s.Handle([]byte(`{"type":"dance"}`))
	s.Handle([]byte(`{`))
	mu.Lock()
	defer mu.Unlock()
	require.Len(t, got, 2)
	require.Equal(t, "unknown frame type dance", got[0].(map[string]string)["error"])
	require.Equal(t, "malformed frame", got[1].(map[string]string)["error"])
}

type senderFunc func(v any) error

func (f senderFunc) Send(v any) error { return f(v) }

type countingGauge struct{ n atomic.Int64 }

func (g *countingGauge) Inc() { g.n.Add(1) }
func (g *countingGauge) Dec() { g.n.Add(-1) }

type wireFrame struct {
	Type       string         `json:"type"`
	State      string         `json:"state"`
	Items      []orders.Order `json:"items"`
	Total      int            `json:"total"`
	TotalPages int            `json:"total_pages"`
	Query      listing.Query  `json:"query"`
	Selected   []string       `json:"selected"`
	Error      string         `json:"error"`
}

func readLoaded(t *testing.T, conn *websocket.Conn) wireFrame {
	t.Helper()
	require.NoError(t, conn.SetReadDeadline(time.Now().Add(3*time.Second)))
	for {
		var f wireFrame
		require.NoError(t, conn.ReadJSON(&f))
		if f.State == "loaded" {
			return f
		}
	}
}

func TestLiveOrdersOverWebsocket(t *testing.T) {
	repo := orders.NewSeededRepository()
	ordersSvc := orders.NewService(repo, time.Second)
	hub := realtime.NewHub(true, nil)
	gauge := &countingGauge{}
	h := NewHandler(ordersSvc, invoices.NewService(invoices.NewSeededRepository(), time.Second), hub,
		Options{Debounce: 20 * time.Millisecond, Gauge: gauge}, nil)

	r := chi.NewRouter()
	h.MountRoutes(r)
	srv := httptest.NewServer(r)
	defer srv.Close()

	url := "ws" + strings.TrimPrefix(srv.URL, "http") + "/live/orders?limit=5"
	conn, resp, err := websocket.DefaultDialer.Dial(url, nil)
	require.NoError(t, err)
	_ = resp.Body.Close()
	defer func() { _ = conn.Close() }()

	first := readLoaded(t, conn)
	require.Len(t, first.Items, 5)
	require.Equal(t, 5, first.Query.PageSize)
	require.Eventually(t, func() bool { return gauge.n.Load() == 1 }, time.Second, 5*time.Millisecond)

	require.NoError(t, conn.WriteJSON(map[string]any{"type": "query", "page": 1, "page_size": 5, "filters": map[string]string{"status": "Pending"}}))
	filtered := readLoaded(t, conn)
	for _, o := range filtered.Items {
		require.Equal(t, orders.StatusPending, o.Status)
	}

	// A change notification triggers a debounced refetch that sees the deletion.
	victim := filtered.Items[0].ID
	require.True(t, ordersSvc.Delete(context.Background(), victim).IsOk())
	hub.Publish(realtime.Event{Table: realtime.TableOrders, Type: realtime.Delete})
	refreshed := readLoaded(t, conn)
	require.Equal(t, filtered.Total-1, refreshed.Total)

	require.NoError(t, conn.Close())
	require.Eventually(t, func() bool { return gauge.n.Load() == 0 && hub.Subscribers() == 0 }, 2*time.Second, 10*time.Millisecond)
}
