package jobs

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/hibiken/asynq"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/stretchr/testify/require"
	"github.com/xuri/excelize/v2"

	"github.com/fmc-ops/opsdash/internal/analytics"
	"github.com/fmc-ops/opsdash/internal/invoices"
	jobmetrics "github.com/fmc-ops/opsdash/internal/jobs"
	"github.com/fmc-ops/opsdash/internal/orders"
	"github.com/fmc-ops/opsdash/internal/platform/storage"
)

var testNow = time.Date(2024, 12, 20, 9, 0, 0, 0, time.UTC)

type warmerFunc func(ctx context.Context) error

func (f warmerFunc) Warm(ctx context.Context) error { return f(ctx) }

func TestWarmupJobRunsWarm(t *testing.T) {
	calls := 0
	job := NewWarmupJob(warmerFunc(func(context.Context) error { calls++; return nil }), nil, jobmetrics.NewMetrics(prometheus.NewRegistry()))
	task, err := NewWarmupTask("nightly")
	require.NoError(t, err)
	require.NoError(t, job.Handle(context.Background(), task))
	require.Equal(t, 1, calls)

	failing := NewWarmupJob(warmerFunc(func(context.Context) error { return errors.New("redis down") }), nil, nil)
	require.EqualError(t, failing.Handle(context.Background(), task), "redis down")

	require.ErrorIs(t, job.Handle(context.Background(), asynq.NewTask(TaskAnalyticsWarmup, []byte("{"))), asynq.SkipRetry)
}

type memoryExport struct {
	job   *ExportJob
	store *storage.Memory
}

func newExportJob(t *testing.T) memoryExport {
	t.Helper()
	ordersSvc := orders.NewService(orders.NewSeededRepository(), time.Second)
	invoicesSvc := invoices.NewService(invoices.NewSeededRepository(), time.Second)
	reports := analytics.NewService(ordersSvc, invoicesSvc, nil)
	reports.WithNow(func() time.Time { return testNow })
	store := storage.NewMemory()
	job := NewExportJob(ordersSvc, invoicesSvc, reports, store, nil, jobmetrics.NewMetrics(prometheus.NewRegistry()))
	job.clock = func() time.Time { return testNow }
	return memoryExport{job: job, store: store}
}

func TestExportJobStoresWorkbook(t *testing.T) {
	env := newExportJob(t)
	task, err := NewExportTask(ExportPayload{Kind: ExportMonthly, Period: "2024"})
	require.NoError(t, err)
	require.NoError(t, env.job.Handle(context.Background(), task))

	keys := env.store.Keys()
	require.Len(t, keys, 1)
	require.True(t, strings.HasPrefix(keys[0], "exports/2024/12/20/monthly-report-2024-"))
	data, ok := env.store.Get(keys[0])
	require.True(t, ok)

	f, err := excelize.OpenReader(bytes.NewReader(data))
	require.NoError(t, err)
	defer func() { _ = f.Close() }()
	require.Equal(t, []string{"Report 2024"}, f.GetSheetList())
}

func TestExportJobOrders(t *testing.T) {
	env := newExportJob(t)
	task, err := NewExportTask(ExportPayload{Kind: ExportOrders})
	require.NoError(t, err)
	require.NoError(t, env.job.Handle(context.Background(), task))
	require.Len(t, env.store.Keys(), 1)
}

func TestExportJobRejectsBadPayload(t *testing.T) {
	env := newExportJob(t)
	bad := asynq.NewTask(TaskExportReport, []byte(`{"kind":"payroll"}`))
	require.ErrorIs(t, env.job.Handle(context.Background(), bad), asynq.SkipRetry)

	badPeriod, err := NewExportTask(ExportPayload{Kind: ExportMonthly, Period: "someday"})
	require.NoError(t, err)
	require.ErrorIs(t, env.job.Handle(context.Background(), badPeriod), asynq.SkipRetry)
	require.Empty(t, env.store.Keys())
}

type fakeEnqueuer struct {
	got []ExportPayload
	err error
}

func (f *fakeEnqueuer) EnqueueExport(_ context.Context, p ExportPayload) (*asynq.TaskInfo, error) {
	if f.err != nil {
		return nil, f.err
	}
	f.got = append(f.got, p)
	return &asynq.TaskInfo{ID: "task-1", Queue: QueueDefault}, nil
}

type fakeInspector struct{ info *asynq.QueueInfo }

func (f fakeInspector) GetQueueInfo(string) (*asynq.QueueInfo, error) { return f.info, nil }

func post(r http.Handler, path, body string) *httptest.ResponseRecorder {
	rr := httptest.NewRecorder()
	r.ServeHTTP(rr, httptest.NewRequest(http.MethodPost, path, strings.NewReader(body)))
	return rr
}

func TestExportEndpoint(t *testing.T) {
	enq := &fakeEnqueuer{}
	h := NewHandler(enq, fakeInspector{info: &asynq.QueueInfo{Queue: QueueDefault, Pending: 2, Active: 1}}, nil)
	h.now = func() time.Time { return testNow }
	r := chi.NewRouter()
	r.Route("/api", h.MountRoutes)

	rr := post(r, "/api/exports", `{"kind":"monthly","period":"last12months"}`)
	require.Equal(t, http.StatusAccepted, rr.Code)
	var body struct {
		Data Queued `json:"data"`
	}
	require.NoError(t, json.Unmarshal(rr.Body.Bytes(), &body))
	require.Equal(t, Queued{TaskID: "task-1", Queue: QueueDefault, Kind: ExportMonthly}, body.Data)
	require.Len(t, enq.got, 1)

	require.Equal(t, http.StatusBadRequest, post(r, "/api/exports", `{"kind":"payroll"}`).Code)
	require.Equal(t, http.StatusBadRequest, post(r, "/api/exports", `{"kind":"monthly","period":"soon"}`).Code)
	require.Len(t, enq.got, 1)

	rr = httptest.NewRecorder()
	r.ServeHTTP(rr, httptest.NewRequest(http.MethodGet, "/api/jobs/health", nil))
	require.Equal(t, http.StatusOK, rr.Code)
	require.Contains(t, rr.Body.String(), `"pending":2`)
	require.Contains(t, rr.Body.String(), `"enabled":true`)
}

func TestExportEndpointWithoutRedis(t *testing.T) {
	r := chi.NewRouter()
	r.Route("/api", NewHandler(nil, nil, nil).MountRoutes)
	require.Equal(t, http.StatusServiceUnavailable, post(r, "/api/exports", `{"kind":"orders"}`).Code)

	rr := httptest.NewRecorder()
	r.ServeHTTP(rr, httptest.NewRequest(http.MethodGet, "/api/jobs/health", nil))
	require.Contains(t, rr.Body.String(), `"enabled":false`)
}

func TestWarmAfterChangeIgnoresNilClient(t *testing.T) {
	var c *Client
	c.WarmAfterChange(context.Background(), "orders")
}
