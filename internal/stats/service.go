package stats

import (
	"context"
	"math"
	"sort"
	"time"

	"github.com/shopspring/decimal"
	"golang.org/x/sync/errgroup"

	"github.com/fmc-ops/opsdash/internal/invoices"
	"github.com/fmc-ops/opsdash/internal/orders"
	"github.com/fmc-ops/opsdash/internal/result"
)

// OrderSource is the slice of the order service the summary needs.
type OrderSource interface {
	Range(ctx context.Context, from, to string) result.Result[[]orders.Order]
	Suppliers(ctx context.Context) result.Result[[]string]
}

// InvoiceSource is the slice of the invoice service the summary needs.
type InvoiceSource interface {
	Range(ctx context.Context, from, to string) result.Result[[]invoices.Invoice]
	Suppliers(ctx context.Context) result.Result[[]string]
}

// Service computes the dashboard figures.
type Service struct {
	orders    OrderSource
	invoices  InvoiceSource
	feed      FeedRepository
	threshold float64
	now       func() time.Time
}

// NewService builds a Service. A non-positive threshold uses
// DefaultHighValueThreshold.
func NewService(o OrderSource, i InvoiceSource, feed FeedRepository, threshold float64) *Service {
	if threshold <= 0 {
		threshold = DefaultHighValueThreshold
	}
	return &Service{orders: o, invoices: i, feed: feed, threshold: threshold, now: time.Now}
}

// Threshold is the configured high-value threshold.
func (s *Service) Threshold() float64 { return s.threshold }

// Dashboard loads every order and invoice in parallel and summarises them.
func (s *Service) Dashboard(ctx context.Context) result.Result[Dashboard] {
	var (
		orderList   []orders.Order
		invoiceList []invoices.Invoice
	)
	g, gctx := errgroup.WithContext(ctx)
	g.Go(func() error {
		res := s.orders.Range(gctx, "", "")
		if !res.IsOk() {
			return res.Err()
		}
		orderList = res.Value()
		return nil
	})
	g.Go(func() error {
		res := s.invoices.Range(gctx, "", "")
		if !res.IsOk() {
			return res.Err()
		}
		invoiceList = res.Value()
		return nil
	})
	if err := g.Wait(); err != nil {
		return result.From("stats.dashboard", Dashboard{}, err)
	}
	return result.Ok(Summarize(orderList, invoiceList, s.threshold, s.now()))
}

// Summarize computes the dashboard figures relative to now.
func Summarize(orderList []orders.Order, invoiceList []invoices.Invoice, threshold float64, now time.Time) Dashboard {
	d := Dashboard{TotalOrders: len(orderList), TotalInvoices: len(invoiceList)}

	today := now.UTC().Format("2006-01-02")
	thisMonth := now.UTC().Format("2006-01")
	lastMonth := now.UTC().AddDate(0, 0, -now.UTC().Day()).Format("2006-01")

	orderSum := decimal.Zero
	current, previous := decimal.Zero, decimal.Zero
	suppliers := make(map[string]struct{})
	for _, o := range orderList {
		amount := decimal.NewFromFloat(o.TotalAmount)
		orderSum = orderSum.Add(amount)
		if o.Status == orders.StatusPending {
			d.PendingOrders++
		}
		if o.TotalAmount >= threshold {
			d.HighValueTransactions++
		}
		if o.CreatedAt.UTC().Format("2006-01-02") == today {
			d.ProcessedToday++
		}
		if o.Supplier != "" {
			suppliers[o.Supplier] = struct{}{}
		}
		switch {
		case len(o.OrderDate) >= 7 && o.OrderDate[:7] == thisMonth:
			current = current.Add(amount)
		case len(o.OrderDate) >= 7 && o.OrderDate[:7] == lastMonth:
			previous = previous.Add(amount)
		}
	}
	d.TotalOrderAmount = orderSum.InexactFloat64()
	d.ActiveSuppliers = len(suppliers)
	d.MonthlyGrowth = growth(current, previous)

	invoiceSum := decimal.Zero
	for _, inv := range invoiceList {
		invoiceSum = invoiceSum.Add(decimal.NewFromFloat(inv.TotalAmount))
		switch inv.Status {
		case invoices.StatusPending:
			d.PendingInvoices++
		case invoices.StatusOverdue:
			d.OverdueInvoices++
		}
	}
	d.TotalInvoiceAmount = invoiceSum.InexactFloat64()
	return d
}

// growth is the percent change from previous to current, rounded to one
// decimal. It is 0 when there is nothing to compare against.
func growth(current, previous decimal.Decimal) float64 {
	if previous.IsZero() {
		return 0
	}
	pct := current.Sub(previous).Div(previous).Mul(decimal.NewFromInt(100)).Round(1).InexactFloat64()
	if math.IsNaN(pct) || math.IsInf(pct, 0) {
		return 0
	}
	return pct
}

// Alerts returns up to AlertLimit alerts, newest first.
func (s *Service) Alerts(ctx context.Context, unreadOnly bool) result.Result[[]Alert] {
	list, err := s.feed.Alerts(ctx, unreadOnly, AlertLimit)
	return result.FromList("stats.alerts", list, err)
}

// MarkAlertRead flags an alert read. A missing alert or alerts table is not
// an error.
func (s *Service) MarkAlertRead(ctx context.Context, id string) result.Result[AlertRef] {
	err := s.feed.MarkAlertRead(ctx, id)
	return result.FromOr("stats.mark_alert_read", AlertRef{ID: id}, AlertRef{ID: id}, err)
}

// RecentActivity returns the newest activity entries.
func (s *Service) RecentActivity(ctx context.Context, limit int) result.Result[[]Activity] {
	if limit <= 0 {
		limit = DefaultActivityLimit
	}
	list, err := s.feed.Activity(ctx, limit)
	return result.FromList("stats.activity", list, err)
}

// AllSuppliers is the sorted union of order and invoice suppliers.
func (s *Service) AllSuppliers(ctx context.Context) result.Result[[]string] {
	var orderSuppliers, invoiceSuppliers []string
	g, gctx := errgroup.WithContext(ctx)
	g.Go(func() error {
		res := s.orders.Suppliers(gctx)
		if !res.IsOk() {
			return res.Err()
		}
		orderSuppliers = res.Value()
		return nil
	})
	g.Go(func() error {
		res := s.invoices.Suppliers(gctx)
		if !res.IsOk() {
			return res.Err()
		}
		invoiceSuppliers = res.Value()
		return nil
	})
	if err := g.Wait(); err != nil {
		return result.FromList[string]("stats.suppliers", nil, err)
	}

	seen := make(map[string]struct{}, len(orderSuppliers)+len(invoiceSuppliers))
	out := []string{}
	for _, name := range append(orderSuppliers, invoiceSuppliers...) {
		if _, ok := seen[name]; ok || name == "" {
			continue
		}
		seen[name] = struct{}{}
		out = append(out, name)
	}
	sort.Strings(out)
	return result.Ok(out)
}
