package analytics

import (
	"context"
	"errors"
	"sort"
	"strconv"
	"time"

	"github.com/shopspring/decimal"
	"golang.org/x/sync/errgroup"

	"github.com/fmc-ops/opsdash/internal/invoices"
	"github.com/fmc-ops/opsdash/internal/orders"
	"github.com/fmc-ops/opsdash/internal/result"
)

// DefaultTopSuppliers is the TopSuppliers limit when none is given.
const DefaultTopSuppliers = 10

// Kind selects the dataset an aggregation runs over.
type Kind string

const (
	KindOrders   Kind = "orders"
	KindInvoices Kind = "invoices"
)

// ParseKind reads a dataset name. Blank selects orders.
func ParseKind(raw string) (Kind, *result.Error) {
	switch Kind(raw) {
	case "", KindOrders:
		return KindOrders, nil
	case KindInvoices:
		return KindInvoices, nil
	}
	return "", result.Invalid("analytics.kind", "type must be one of: orders, invoices")
}

// OrderSource is the slice of the order service analytics reads.
type OrderSource interface {
	Range(ctx context.Context, from, to string) result.Result[[]orders.Order]
}

// InvoiceSource is the slice of the invoice service analytics reads.
type InvoiceSource interface {
	Range(ctx context.Context, from, to string) result.Result[[]invoices.Invoice]
}

// Record is the part of an order or invoice the aggregations use.
type Record struct {
	Date     string
	Supplier string
	Status   string
	Amount   float64
}

// MonthlyTotal is one month of the totals chart.
type MonthlyTotal struct {
	Month    string  `json:"month"`
	Orders   float64 `json:"orders"`
	Invoices float64 `json:"invoices"`
}

// ReportRow is one month of the monthly report.
type ReportRow struct {
	Month         string  `json:"month"`
	OrderCount    int     `json:"orderCount"`
	OrderAmount   float64 `json:"orderAmount"`
	InvoiceCount  int     `json:"invoiceCount"`
	InvoiceAmount float64 `json:"invoiceAmount"`
}

// StatusSlice is one segment of the status distribution.
type StatusSlice struct {
	Name  string `json:"name"`
	Value int    `json:"value"`
}

// SupplierTotal is the summed amount for one supplier.
type SupplierTotal struct {
	Supplier string  `json:"supplier"`
	Amount   float64 `json:"amount"`
}

// YearTotal is one year of the yearly comparison.
type YearTotal struct {
	Year     int     `json:"year"`
	Orders   float64 `json:"orders"`
	Invoices float64 `json:"invoices"`
}

// Service computes chart aggregations over orders and invoices.
type Service struct {
	orders   OrderSource
	invoices InvoiceSource
	cache    *Cache
	now      func() time.Time
}

// NewService builds a Service. cache may be nil.
func NewService(o OrderSource, i InvoiceSource, cache *Cache) *Service {
	return &Service{orders: o, invoices: i, cache: cache, now: time.Now}
}

// WithNow overrides the service clock for testing.
func (s *Service) WithNow(fn func() time.Time) {
	if fn != nil {
		s.now = fn
	}
}

// Now is the service clock.
func (s *Service) Now() time.Time { return s.now() }

func (s *Service) load(ctx context.Context, kind Kind, from, to string) ([]Record, error) {
	if kind == KindInvoices {
		res := s.invoices.Range(ctx, from, to)
		if !res.IsOk() {
			return nil, res.Err()
		}
		out := make([]Record, 0, len(res.Value()))
		for _, inv := range res.Value() {
			out = append(out, Record{Date: inv.InvoiceDate, Supplier: inv.Supplier, Status: inv.Status, Amount: inv.TotalAmount})
		}
		return out, nil
	}
	res := s.orders.Range(ctx, from, to)
	if !res.IsOk() {
		return nil, res.Err()
	}
	out := make([]Record, 0, len(res.Value()))
	for _, o := range res.Value() {
		out = append(out, Record{Date: o.OrderDate, Supplier: o.Supplier, Status: o.Status, Amount: o.TotalAmount})
	}
	return out, nil
}

func (s *Service) loadBoth(ctx context.Context, from, to string) ([]Record, []Record, error) {
	var orderRecs, invoiceRecs []Record
	g, gctx := errgroup.WithContext(ctx)
	g.Go(func() error {
		var err error
		orderRecs, err = s.load(gctx, KindOrders, from, to)
		return err
	})
	g.Go(func() error {
		var err error
		invoiceRecs, err = s.load(gctx, KindInvoices, from, to)
		return err
	})
	if err := g.Wait(); err != nil {
		return nil, nil, err
	}
	return orderRecs, invoiceRecs, nil
}

// MonthlyTotals sums order and invoice amounts per month of p. Every month
// is present, zero when nothing falls in it.
func (s *Service) MonthlyTotals(ctx context.Context, p Period) result.Result[[]MonthlyTotal] {
	rows, err := Fetch(ctx, s.cache, func(ctx context.Context) ([]MonthlyTotal, error) {
		report, err := s.report(ctx, p)
		if err != nil {
			return nil, err
		}
		out := make([]MonthlyTotal, len(report))
		for i, r := range report {
			out[i] = MonthlyTotal{Month: r.Month, Orders: r.OrderAmount, Invoices: r.InvoiceAmount}
		}
		return out, nil
	}, "monthly", p.String(), s.monthToken(p))
	return finish("analytics.monthly", rows, err)
}

// MonthlyReport is MonthlyTotals with per-month counts.
func (s *Service) MonthlyReport(ctx context.Context, p Period) result.Result[[]ReportRow] {
	rows, err := Fetch(ctx, s.cache, func(ctx context.Context) ([]ReportRow, error) {
		return s.report(ctx, p)
	}, "report", p.String(), s.monthToken(p))
	return finish("analytics.report", rows, err)
}

// monthToken keys rolling windows by the current month so a cached window
// never outlives its month.
func (s *Service) monthToken(p Period) string {
	if p.Last12 {
		return s.now().Format("2006-01")
	}
	return "-"
}

func (s *Service) report(ctx context.Context, p Period) ([]ReportRow, error) {
	now := s.now()
	from, to := p.Bounds(now)
	orderRecs, invoiceRecs, err := s.loadBoth(ctx, from, to)
	if err != nil {
		return nil, err
	}
	buckets := p.Buckets(now)
	orderSums := accumulate(buckets, orderRecs)
	invoiceSums := accumulate(buckets, invoiceRecs)
	out := make([]ReportRow, len(buckets))
	for i, b := range buckets {
		out[i] = ReportRow{
			Month:         b.Label,
			OrderCount:    orderSums[i].count,
			OrderAmount:   orderSums[i].amount.InexactFloat64(),
			InvoiceCount:  invoiceSums[i].count,
			InvoiceAmount: invoiceSums[i].amount.InexactFloat64(),
		}
	}
	return out, nil
}

type monthSum struct {
	count  int
	amount decimal.Decimal
}

func accumulate(buckets []Bucket, records []Record) []monthSum {
	type ym struct {
		year  int
		month time.Month
	}
	index := make(map[ym]int, len(buckets))
	for i, b := range buckets {
		index[ym{b.Year, b.Month}] = i
	}
	sums := make([]monthSum, len(buckets))
	for _, r := range records {
		t, ok := parseDate(r.Date)
		if !ok {
			continue
		}
		i, ok := index[ym{t.Year(), t.Month()}]
		if !ok {
			continue
		}
		sums[i].count++
		sums[i].amount = sums[i].amount.Add(decimal.NewFromFloat(r.Amount))
	}
	return sums
}

// StatusDistribution counts records per status in first-seen order.
func (s *Service) StatusDistribution(ctx context.Context, kind Kind) result.Result[[]StatusSlice] {
	rows, err := Fetch(ctx, s.cache, func(ctx context.Context) ([]StatusSlice, error) {
		records, err := s.load(ctx, kind, "", "")
		if err != nil {
			return nil, err
		}
		return Distribution(records), nil
	}, "status", string(kind))
	return finish("analytics.status", rows, err)
}

// Distribution counts records per status in first-seen order.
func Distribution(records []Record) []StatusSlice {
	out := []StatusSlice{}
	pos := make(map[string]int)
	for _, r := range records {
		i, ok := pos[r.Status]
		if !ok {
			pos[r.Status] = len(out)
			out = append(out, StatusSlice{Name: r.Status})
			i = len(out) - 1
		}
		out[i].Value++
	}
	return out
}

// TopSuppliers ranks suppliers by summed amount. A non-positive limit uses
// DefaultTopSuppliers.
func (s *Service) TopSuppliers(ctx context.Context, kind Kind, limit int) result.Result[[]SupplierTotal] {
	if limit <= 0 {
		limit = DefaultTopSuppliers
	}
	rows, err := Fetch(ctx, s.cache, func(ctx context.Context) ([]SupplierTotal, error) {
		records, err := s.load(ctx, kind, "", "")
		if err != nil {
			return nil, err
		}
		return RankSuppliers(records, limit), nil
	}, "top", string(kind), strconv.Itoa(limit))
	return finish("analytics.top_suppliers", rows, err)
}

// RankSuppliers sums amounts per supplier, largest first. Ties keep
// alphabetical order.
func RankSuppliers(records []Record, limit int) []SupplierTotal {
	sums := make(map[string]decimal.Decimal)
	for _, r := range records {
		sums[r.Supplier] = sums[r.Supplier].Add(decimal.NewFromFloat(r.Amount))
	}
	names := make([]string, 0, len(sums))
	for name := range sums {
		names = append(names, name)
	}
	sort.Slice(names, func(i, j int) bool {
		if c := sums[names[i]].Cmp(sums[names[j]]); c != 0 {
			return c > 0
		}
		return names[i] < names[j]
	})
	if limit > 0 && len(names) > limit {
		names = names[:limit]
	}
	out := make([]SupplierTotal, len(names))
	for i, name := range names {
		out[i] = SupplierTotal{Supplier: name, Amount: sums[name].InexactFloat64()}
	}
	return out
}

// YearlyComparison totals the previous and the current year.
func (s *Service) YearlyComparison(ctx context.Context) result.Result[[]YearTotal] {
	current := s.now().Year()
	rows, err := Fetch(ctx, s.cache, func(ctx context.Context) ([]YearTotal, error) {
		from := Period{Year: current - 1}
		start, _ := from.Bounds(time.Time{})
		_, end := Period{Year: current}.Bounds(time.Time{})
		orderRecs, invoiceRecs, err := s.loadBoth(ctx, start, end)
		if err != nil {
			return nil, err
		}
		years := []int{current - 1, current}
		orderSums := sumByYear(years, orderRecs)
		invoiceSums := sumByYear(years, invoiceRecs)
		out := make([]YearTotal, len(years))
		for i, y := range years {
			out[i] = YearTotal{Year: y, Orders: orderSums[i].InexactFloat64(), Invoices: invoiceSums[i].InexactFloat64()}
		}
		return out, nil
	}, "yearly", strconv.Itoa(current))
	return finish("analytics.yearly", rows, err)
}

func sumByYear(years []int, records []Record) []decimal.Decimal {
	out := make([]decimal.Decimal, len(years))
	for _, r := range records {
		t, ok := parseDate(r.Date)
		if !ok {
			continue
		}
		for i, y := range years {
			if t.Year() == y {
				out[i] = out[i].Add(decimal.NewFromFloat(r.Amount))
			}
		}
	}
	return out
}

// Warm precomputes the current year and the rolling window so the first
// dashboard visit after an invalidation is served from cache.
func (s *Service) Warm(ctx context.Context) error {
	periods := []Period{{Year: s.now().Year()}, {Last12: true}}
	for _, p := range periods {
		if res := s.MonthlyTotals(ctx, p); !res.IsOk() {
			return res.Err()
		}
		if res := s.MonthlyReport(ctx, p); !res.IsOk() {
			return res.Err()
		}
	}
	if res := s.YearlyComparison(ctx); !res.IsOk() {
		return res.Err()
	}
	return nil
}

func finish[T any](op string, rows []T, err error) result.Result[[]T] {
	var classified *result.Error
	if errors.As(err, &classified) {
		return result.Fail[[]T](classified.WithOp(op))
	}
	return result.FromList(op, rows, err)
}
