package realtime

import (
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"strings"
	"sync"
	"testing"
	"time"

	miniredis "github.com/alicebob/miniredis/v2"
	"github.com/go-chi/chi/v5"
	"github.com/gorilla/websocket"
	"github.com/redis/go-redis/v9"
	"github.com/stretchr/testify/require"

	"github.com/fmc-ops/opsdash/internal/platform/wsx"
)

type recorder struct {
	mu     sync.Mutex
	events []Event
}

func (r *recorder) Publish(ev Event) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.events = append(r.events, ev)
}

func (r *recorder) handle(ev Event) { r.Publish(ev) }

func (r *recorder) len() int {
	r.mu.Lock()
	defer r.mu.Unlock()
	return len(r.events)
}

func (r *recorder) last() Event {
	r.mu.Lock()
	defer r.mu.Unlock()
	return r.events[len(r.events)-1]
}

func TestDecodeEvent(t *testing.T) {
	now := time.Date(2024, 12, 20, 10, 0, 0, 0, time.UTC)
	ev, err := DecodeEvent([]byte(`{"table":"Orders","type":"insert","new":{"id":"a"},"old":null}`), now)
	require.NoError(t, err)
	require.Equal(t, TableOrders, ev.Table)
	require.Equal(t, Insert, ev.Type)
	require.JSONEq(t, `{"id":"a"}`, string(ev.New))
	require.Nil(t, ev.Old)
	require.Equal(t, now, ev.At)

	_, err = DecodeEvent([]byte(`{"table":"orders","type":"TRUNCATE"}`), now)
	require.Error(t, err)
	_, err = DecodeEvent([]byte(`{"type":"INSERT"}`), now)
	require.Error(t, err)
	_, err = DecodeEvent([]byte(`not json`), now)
	require.Error(t, err)
}

func TestHubRoutesByTableAndType(t *testing.T) {
	hub := NewHub(true, nil)
	var orders, alerts, all recorder
	unsubOrders := hub.Subscribe(TableOrders, orders.handle)
	hub.SubscribeTables([]string{TableAlerts}, alerts.handle)
	hub.SubscribeAll(all.handle)

	hub.Publish(Event{Table: TableOrders, Type: Update})
	hub.Publish(Event{Table: TableInvoices, Type: Insert})
	hub.Publish(Event{Table: TableAlerts, Type: Update})
	hub.Publish(Event{Table: TableAlerts, Type: Insert})

	require.Equal(t, 1, orders.len())
	require.Equal(t, 1, alerts.len(), "alerts only deliver inserts")
	require.Equal(t, 4, all.len())

	unsubOrders()
	unsubOrders()
	hub.Publish(Event{Table: TableOrders, Type: Delete})
	require.Equal(t, 1, orders.len())
	require.Equal(t, 2, hub.Subscribers())
}

func TestDisabledHubNeverDelivers(t *testing.T) {
	hub := NewHub(false, nil)
	var rec recorder
	unsub := hub.Subscribe(TableOrders, rec.handle)
	hub.Publish(Event{Table: TableOrders, Type: Insert})
	unsub()
	require.Zero(t, rec.len())
	require.False(t, hub.Enabled())
	require.Zero(t, hub.Subscribers())
}

func TestHubSurvivesPanickingHandler(t *testing.T) {
	hub := NewHub(true, nil)
	var rec recorder
	hub.Subscribe(TableOrders, func(Event) { panic("boom") })
	hub.Subscribe(TableOrders, rec.handle)
	hub.Publish(Event{Table: TableOrders, Type: Insert})
	require.Equal(t, 1, rec.len())
}

func TestRedisBridgeRelaysWithoutEcho(t *testing.T) {
	mr := miniredis.RunT(t)
	newClient := func() *redis.Client {
		c := redis.NewClient(&redis.Options{Addr: mr.Addr()})
		t.Cleanup(func() { _ = c.Close() })
		return c
	}
	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	var workerLocal, apiLocal recorder
	worker := NewRedisBridge(newClient(), &workerLocal, nil)
	api := NewRedisBridge(newClient(), &apiLocal, nil)
	require.NotEqual(t, worker.Origin(), api.Origin())

	go func() { _ = worker.Run(ctx) }()
	go func() { _ = api.Run(ctx) }()
	require.Eventually(t, func() bool {
		return mr.PubSubNumSub(BridgeChannel)[BridgeChannel] == 2
	}, 2*time.Second, 10*time.Millisecond)

	worker.Publish(Event{Table: TableInvoices, Type: Update, New: json.RawMessage(`{"id":"x"}`)})

	require.Eventually(t, func() bool { return apiLocal.len() == 1 }, 2*time.Second, 10*time.Millisecond)
	require.Equal(t, TableInvoices, apiLocal.last().Table)
	require.Equal(t, worker.Origin(), apiLocal.last().Origin)
	require.Never(t, func() bool { return workerLocal.len() > 1 }, 100*time.Millisecond, 10*time.Millisecond)
	require.Equal(t, 1, workerLocal.len(), "local delivery happens once, the echo is ignored")
}

func TestParseTables(t *testing.T) {
	tables, err := ParseTables("")
	require.NoError(t, err)
	require.Equal(t, KnownTables, tables)

	tables, err = ParseTables(" Orders, invoices,orders ")
	require.NoError(t, err)
	require.Equal(t, []string{TableOrders, TableInvoices}, tables)

	_, err = ParseTables("orders,users")
	require.Error(t, err)
}

func dial(t *testing.T, srv *httptest.Server, path string) *websocket.Conn {
	t.Helper()
	url := "ws" + strings.TrimPrefix(srv.URL, "http") + path
	conn, resp, err := websocket.DefaultDialer.Dial(url, nil)
	require.NoError(t, err)
	_ = resp.Body.Close()
	t.Cleanup(func() { _ = conn.Close() })
	return conn
}

func readFrame(t *testing.T, conn *websocket.Conn) Frame {
	t.Helper()
	require.NoError(t, conn.SetReadDeadline(time.Now().Add(2*time.Second)))
	var f Frame
	require.NoError(t, conn.ReadJSON(&f))
	return f
}

func newStreamServer(t *testing.T, hub *Hub) *httptest.Server {
	t.Helper()
	r := chi.NewRouter()
	NewStream(hub, wsx.Options{}, nil).MountRoutes(r)
	srv := httptest.NewServer(r)
	t.Cleanup(srv.Close)
	return srv
}

func TestStreamForwardsSubscribedTables(t *testing.T) {
	hub := NewHub(true, nil)
	srv := newStreamServer(t, hub)
	conn := dial(t, srv, "/realtime/ws?tables=orders")

	hello := readFrame(t, conn)
	require.Equal(t, "hello", hello.Type)
	require.True(t, *hello.Enabled)
	require.Equal(t, []string{TableOrders}, hello.Tables)

	require.Eventually(t, func() bool { return hub.Subscribers() == 1 }, time.Second, 5*time.Millisecond)
	hub.Publish(Event{Table: TableInvoices, Type: Insert})
	hub.Publish(Event{Table: TableOrders, Type: Delete, Old: json.RawMessage(`{"id":"gone"}`), Origin: "someone"})

	change := readFrame(t, conn)
	require.Equal(t, "change", change.Type)
	require.Equal(t, TableOrders, change.Event.Table)
	require.Equal(t, Delete, change.Event.Type)
	require.Empty(t, change.Event.Origin)

	require.NoError(t, conn.Close())
	require.Eventually(t, func() bool { return hub.Subscribers() == 0 }, 2*time.Second, 10*time.Millisecond)
}

func TestStreamDisabledSaysSoAndCloses(t *testing.T) {
	srv := newStreamServer(t, NewHub(false, nil))
	conn := dial(t, srv, "/realtime/ws")

	hello := readFrame(t, conn)
	require.False(t, *hello.Enabled)
	_, _, err := conn.ReadMessage()
	require.True(t, websocket.IsCloseError(err, websocket.CloseNormalClosure))
}

func TestStreamRejectsUnknownTable(t *testing.T) {
	srv := newStreamServer(t, NewHub(true, nil))
	resp, err := http.Get(srv.URL + "/realtime/ws?tables=payroll")
	require.NoError(t, err)
	defer func() { _ = resp.Body.Close() }()
	require.Equal(t, http.StatusBadRequest, resp.StatusCode)
}
