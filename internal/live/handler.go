package live

import (
	"log/slog"
	"net/http"
	"time"

	"github.com/go-chi/chi/v5"

	"github.com/fmc-ops/opsdash/internal/invoices"
	"github.com/fmc-ops/opsdash/internal/listing"
	"github.com/fmc-ops/opsdash/internal/orders"
	"github.com/fmc-ops/opsdash/internal/platform/wsx"
	"github.com/fmc-ops/opsdash/internal/realtime"
)

// Gauge tracks open sessions. prometheus.Gauge satisfies it.
type Gauge interface {
	Inc()
	Dec()
}

type noopGauge struct{}

func (noopGauge) Inc() {}
func (noopGauge) Dec() {}

// Options tunes every session the handler opens.
type Options struct {
	Debounce time.Duration
	Timeout  time.Duration
	Socket   wsx.Options
	Gauge    Gauge
}

// Handler upgrades list views to live sessions.
type Handler struct {
	orders   *orders.Service
	invoices *invoices.Service
	hub      *realtime.Hub
	opts     Options
	logger   *slog.Logger
}

// NewHandler builds the live list endpoints.
func NewHandler(o *orders.Service, i *invoices.Service, hub *realtime.Hub, opts Options, logger *slog.Logger) *Handler {
	if opts.Gauge == nil {
		opts.Gauge = noopGauge{}
	}
	if logger == nil {
		logger = slog.Default()
	}
	return &Handler{orders: o, invoices: i, hub: hub, opts: opts, logger: logger.With(slog.String("component", "live"))}
}

// MountRoutes registers the routes under an /api router.
func (h *Handler) MountRoutes(r chi.Router) {
	r.Get("/live/orders", h.serveOrders)
	r.Get("/live/invoices", h.serveInvoices)
}

func (h *Handler) serveOrders(w http.ResponseWriter, r *http.Request) {
	serve(h, w, r, realtime.TableOrders, h.orders.Fetch, func(o orders.Order) string { return o.ID })
}

func (h *Handler) serveInvoices(w http.ResponseWriter, r *http.Request) {
	serve(h, w, r, realtime.TableInvoices, h.invoices.Fetch, func(i invoices.Invoice) string { return i.ID })
}

// subscriber adapts the hub to the controller's change feed.
func (h *Handler) subscriber(table string) listing.Subscribe {
	if !h.hub.Enabled() {
		return nil
	}
	return func(onChange func()) func() {
		return h.hub.Subscribe(table, func(realtime.Event) { onChange() })
	}
}

func serve[T any](h *Handler, w http.ResponseWriter, r *http.Request, table string, fetch listing.Fetcher[T], id func(T) string) {
	initial := listing.FromRequest(r)
	conn, err := wsx.Upgrade(w, r, h.opts.Socket)
	if err != nil {
		h.logger.Warn("upgrade failed", slog.String("table", table), slog.Any("error", err))
		return
	}

	ctrl := listing.NewController(fetch, listing.Options{
		Query:     initial,
		Debounce:  h.opts.Debounce,
		Timeout:   h.opts.Timeout,
		Subscribe: h.subscriber(table),
	})
	session := NewSession(ctrl, id, conn, h.logger)

	h.opts.Gauge.Inc()
	defer h.opts.Gauge.Dec()
	h.logger.Debug("session opened", slog.String("table", table))
	session.Run(r.Context(), conn)
	h.logger.Debug("session closed", slog.String("table", table))
}
