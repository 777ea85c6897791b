package stats

import (
	"context"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/jackc/pgx/v5/pgconn"
	"github.com/stretchr/testify/require"

	"github.com/fmc-ops/opsdash/internal/invoices"
	"github.com/fmc-ops/opsdash/internal/orders"
	"github.com/fmc-ops/opsdash/internal/result"
)

type missingTableFeed struct{}

func (missingTableFeed) Alerts(context.Context, bool, int) ([]Alert, error) {
	return nil, &pgconn.PgError{Code: "42P01", Message: `relation "alerts" does not exist`}
}

func (missingTableFeed) MarkAlertRead(context.Context, string) error {
	return &pgconn.PgError{Code: "42P01", Message: `relation "alerts" does not exist`}
}

func (missingTableFeed) Activity(context.Context, int) ([]Activity, error) {
	return nil, &pgconn.PgError{Code: "42P01", Message: `relation "activity" does not exist`}
}

type brokenOrders struct{}

func (brokenOrders) Range(context.Context, string, string) result.Result[[]orders.Order] {
	return result.Fail[[]orders.Order](&result.Error{Kind: result.KindNetwork, Message: result.MsgNetwork})
}

func (brokenOrders) Suppliers(context.Context) result.Result[[]string] {
	return result.Ok([]string{})
}

func newSeededService() *Service {
	return NewService(
		orders.NewService(orders.NewSeededRepository(), 0),
		invoices.NewService(invoices.NewSeededRepository(), 0),
		NewSeededFeed(),
		0,
	)
}

func TestSummarizeSeed(t *testing.T) {
	o, _ := orders.Seed()
	i, _ := invoices.Seed()
	now := time.Date(2024, 12, 20, 15, 0, 0, 0, time.UTC)

	d := Summarize(o, i, DefaultHighValueThreshold, now)
	require.Equal(t, 8, d.TotalOrders)
	require.Equal(t, 6, d.TotalInvoices)
	require.Equal(t, 520000.0, d.TotalOrderAmount)
	require.Equal(t, 482192.0, d.TotalInvoiceAmount)
	require.Equal(t, 2, d.PendingOrders)
	require.Equal(t, 2, d.PendingInvoices)
	require.Equal(t, 1, d.OverdueInvoices)
	require.Equal(t, 5, d.HighValueTransactions)
	require.Equal(t, 1, d.ProcessedToday)
	require.Equal(t, 8, d.ActiveSuppliers)
	require.Zero(t, d.MonthlyGrowth, "no November orders to compare against")
}

func TestSummarizeMonthlyGrowth(t *testing.T) {
	list := []orders.Order{
		{ID: "a", Supplier: "A", OrderDate: "2024-11-03", TotalAmount: 1000},
		{ID: "b", Supplier: "A", OrderDate: "2024-12-03", TotalAmount: 1250},
		{ID: "c", Supplier: "B", OrderDate: "2024-10-03", TotalAmount: 9999},
	}
	d := Summarize(list, nil, 50000, time.Date(2024, 12, 31, 0, 0, 0, 0, time.UTC))
	require.Equal(t, 25.0, d.MonthlyGrowth)
	require.Equal(t, 2, d.ActiveSuppliers)

	d = Summarize(list, nil, 50000, time.Date(2025, 1, 5, 0, 0, 0, 0, time.UTC))
	require.Equal(t, -100.0, d.MonthlyGrowth)
}

func TestDashboardPropagatesBackendFailure(t *testing.T) {
	svc := NewService(brokenOrders{}, invoices.NewService(invoices.NewSeededRepository(), 0), NewSeededFeed(), 0)
	res := svc.Dashboard(context.Background())
	require.False(t, res.IsOk())
	require.Equal(t, result.MsgNetwork, res.ErrorMessage())
}

func TestAlertsNewestFirstAndUnreadFilter(t *testing.T) {
	svc := newSeededService()
	ctx := context.Background()

	all := svc.Alerts(ctx, false).Value()
	require.Len(t, all, 4)
	require.Equal(t, "alert-001", all[0].ID)

	unread := svc.Alerts(ctx, true).Value()
	require.Len(t, unread, 2)

	require.True(t, svc.MarkAlertRead(ctx, "alert-001").IsOk())
	require.True(t, svc.MarkAlertRead(ctx, "no-such-alert").IsOk())
	require.Len(t, svc.Alerts(ctx, true).Value(), 1)
}

func TestMissingFeedTablesDegradeToEmpty(t *testing.T) {
	svc := NewService(nil, nil, missingTableFeed{}, 0)
	ctx := context.Background()

	alerts := svc.Alerts(ctx, false)
	require.True(t, alerts.IsOk())
	require.NotNil(t, alerts.Value())
	require.Empty(t, alerts.Value())

	mark := svc.MarkAlertRead(ctx, "alert-001")
	require.True(t, mark.IsOk())
	require.Equal(t, "alert-001", mark.Value().ID)

	activity := svc.RecentActivity(ctx, 0)
	require.True(t, activity.IsOk())
	require.Empty(t, activity.Value())
}

func TestRecentActivityLimit(t *testing.T) {
	svc := newSeededService()
	require.Len(t, svc.RecentActivity(context.Background(), 0).Value(), 5)
	list := svc.RecentActivity(context.Background(), 2).Value()
	require.Len(t, list, 2)
	require.Equal(t, "act-001", list[0].ID)
}

func TestAllSuppliersUnion(t *testing.T) {
	svc := newSeededService()
	res := svc.AllSuppliers(context.Background())
	require.True(t, res.IsOk())
	require.Len(t, res.Value(), 9)
	require.Equal(t, "Acme Corporation", res.Value()[0])
	require.Equal(t, "ValueFirst Inc", res.Value()[8])
	require.Contains(t, res.Value(), "TOKYO-YA, S.A.")
}

func TestStatsRoutes(t *testing.T) {
	r := chi.NewRouter()
	NewHandler(newSeededService()).MountRoutes(r)

	for _, path := range []string{"/stats", "/alerts?unread=true", "/activity?limit=3", "/suppliers"} {
		rec := httptest.NewRecorder()
		r.ServeHTTP(rec, httptest.NewRequest(http.MethodGet, path, nil))
		require.Equal(t, http.StatusOK, rec.Code, path)
		require.Contains(t, rec.Body.String(), `"success":true`, path)
	}
	rec := httptest.NewRecorder()
	r.ServeHTTP(rec, httptest.NewRequest(http.MethodPost, "/alerts/alert-002/read", nil))
	require.JSONEq(t, `{"success":true,"data":{"id":"alert-002"},"error":null}`, rec.Body.String())
}
