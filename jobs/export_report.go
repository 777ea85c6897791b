package jobs

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"log/slog"
	"time"

	"github.com/google/uuid"
	"github.com/hibiken/asynq"

	"github.com/fmc-ops/opsdash/internal/analytics"
	"github.com/fmc-ops/opsdash/internal/analytics/export"
	"github.com/fmc-ops/opsdash/internal/invoices"
	jobmetrics "github.com/fmc-ops/opsdash/internal/jobs"
	"github.com/fmc-ops/opsdash/internal/orders"
	"github.com/fmc-ops/opsdash/internal/platform/httpx"
	"github.com/fmc-ops/opsdash/internal/platform/storage"
	"github.com/fmc-ops/opsdash/internal/result"
)

// OrderSource lists every order for an export.
type OrderSource interface {
	Range(ctx context.Context, from, to string) result.Result[[]orders.Order]
}

// InvoiceSource lists every invoice for an export.
type InvoiceSource interface {
	Range(ctx context.Context, from, to string) result.Result[[]invoices.Invoice]
}

// ReportSource builds the monthly report.
type ReportSource interface {
	MonthlyReport(ctx context.Context, p analytics.Period) result.Result[[]analytics.ReportRow]
}

// ExportJob renders a workbook and puts it into object storage.
type ExportJob struct {
	Orders   OrderSource
	Invoices InvoiceSource
	Reports  ReportSource
	Store    storage.Store
	Logger   *slog.Logger
	Metrics  *jobmetrics.Metrics
	clock    func() time.Time
}

// NewExportJob wires dependencies for the export handler.
func NewExportJob(o OrderSource, i InvoiceSource, r ReportSource, store storage.Store, logger *slog.Logger, metrics *jobmetrics.Metrics) *ExportJob {
	return &ExportJob{
		Orders: o, Invoices: i, Reports: r, Store: store, Logger: logger, Metrics: metrics,
		clock: func() time.Time { return time.Now().UTC() },
	}
}

// Handle processes export tasks. Malformed payloads are not retried.
func (j *ExportJob) Handle(ctx context.Context, t *asynq.Task) (resultErr error) {
	if j == nil || j.Store == nil {
		return errors.New("export report: handler not configured")
	}
	var payload ExportPayload
	if err := json.Unmarshal(t.Payload(), &payload); err != nil {
		return fmt.Errorf("export report: decode payload: %v: %w", err, asynq.SkipRetry)
	}
	if verr := httpx.Validate("jobs.export", payload); verr != nil {
		return fmt.Errorf("export report: %s: %w", verr.Message, asynq.SkipRetry)
	}

	tracker := metricsOr(j.Metrics).Track(TaskExportReport)
	defer func() {
		resultErr = tracker.End(resultErr)
	}()
	logger := jobLogger(j.Logger, TaskExportReport).With(slog.String("kind", payload.Kind))

	now := j.now()
	table, name, err := j.render(ctx, payload, now)
	if err != nil {
		logger.Error("load export data", slog.Any("error", err))
		return err
	}
	data, err := export.Workbook(table)
	if err != nil {
		logger.Error("render export workbook", slog.Any("error", err))
		return err
	}
	key := fmt.Sprintf("exports/%s/%s-%s.xlsx", now.Format("2006/01/02"), name, uuid.NewString()[:8])
	url, err := j.Store.Put(ctx, key, export.ContentTypeXLSX, data)
	if err != nil {
		logger.Error("store export", slog.String("key", key), slog.Any("error", err))
		return err
	}
	metricsOr(j.Metrics).ObserveExport(payload.Kind, "xlsx", len(data))
	logger.Info("export stored", slog.String("url", url), slog.Int("bytes", len(data)))
	return nil
}

func (j *ExportJob) render(ctx context.Context, payload ExportPayload, now time.Time) (export.Table, string, error) {
	switch payload.Kind {
	case ExportOrders:
		res := j.Orders.Range(ctx, "", "")
		if !res.IsOk() {
			return export.Table{}, "", res.Err()
		}
		return export.OrdersTable(res.Value()), "orders", nil
	case ExportInvoices:
		res := j.Invoices.Range(ctx, "", "")
		if !res.IsOk() {
			return export.Table{}, "", res.Err()
		}
		return export.InvoicesTable(res.Value()), "invoices", nil
	default:
		period, perr := analytics.ParsePeriod(payload.Period, now)
		if perr != nil {
			return export.Table{}, "", fmt.Errorf("%s: %w", perr.Message, asynq.SkipRetry)
		}
		res := j.Reports.MonthlyReport(ctx, period)
		if !res.IsOk() {
			return export.Table{}, "", res.Err()
		}
		return export.ReportTable(period.String(), res.Value()), "monthly-report-" + period.String(), nil
	}
}

func (j *ExportJob) now() time.Time {
	if j.clock != nil {
		return j.clock()
	}
	return time.Now().UTC()
}
