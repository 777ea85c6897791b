package analytichttp

import (
	"bytes"
	"context"
	"fmt"
	"log/slog"
	"net/http"
	"strconv"
	"sync"
	"time"

	"github.com/fmc-ops/opsdash/internal/analytics"
	"github.com/fmc-ops/opsdash/internal/analytics/export"
	"github.com/fmc-ops/opsdash/internal/analytics/svg"
	"github.com/fmc-ops/opsdash/internal/platform/httpx"
	"github.com/fmc-ops/opsdash/internal/result"
)

// AnalyticsService defines the aggregation contract used by the handler.
type AnalyticsService interface {
	MonthlyTotals(ctx context.Context, p analytics.Period) result.Result[[]analytics.MonthlyTotal]
	MonthlyReport(ctx context.Context, p analytics.Period) result.Result[[]analytics.ReportRow]
	StatusDistribution(ctx context.Context, kind analytics.Kind) result.Result[[]analytics.StatusSlice]
	TopSuppliers(ctx context.Context, kind analytics.Kind, limit int) result.Result[[]analytics.SupplierTotal]
	YearlyComparison(ctx context.Context) result.Result[[]analytics.YearTotal]
}

// Handler serves chart data, the monthly chart and report downloads.
type Handler struct {
	logger   *slog.Logger
	service  AnalyticsService
	currency string
	bufPool  sync.Pool
	now      func() time.Time
}

// NewHandler constructs the analytics HTTP handler. currency labels PDF amounts.
func NewHandler(logger *slog.Logger, service AnalyticsService, currency string) *Handler {
	if logger == nil {
		logger = slog.Default()
	}
	h := &Handler{logger: logger, service: service, currency: currency, now: time.Now}
	h.bufPool.New = func() any { return new(bytes.Buffer) }
	return h
}

// WithNow overrides the handler clock for testing.
func (h *Handler) WithNow(fn func() time.Time) {
	if fn != nil {
		h.now = fn
	}
}

func (h *Handler) period(w http.ResponseWriter, r *http.Request) (analytics.Period, bool) {
	p, err := analytics.ParsePeriod(r.URL.Query().Get("period"), h.now())
	if err != nil {
		httpx.Fail(w, err)
		return analytics.Period{}, false
	}
	return p, true
}

func (h *Handler) kind(w http.ResponseWriter, r *http.Request) (analytics.Kind, bool) {
	k, err := analytics.ParseKind(r.URL.Query().Get("type"))
	if err != nil {
		httpx.Fail(w, err)
		return "", false
	}
	return k, true
}

func (h *Handler) monthly(w http.ResponseWriter, r *http.Request) {
	p, ok := h.period(w, r)
	if !ok {
		return
	}
	httpx.Envelope(w, h.service.MonthlyTotals(r.Context(), p))
}

func (h *Handler) report(w http.ResponseWriter, r *http.Request) {
	p, ok := h.period(w, r)
	if !ok {
		return
	}
	httpx.Envelope(w, h.service.MonthlyReport(r.Context(), p))
}

func (h *Handler) status(w http.ResponseWriter, r *http.Request) {
	k, ok := h.kind(w, r)
	if !ok {
		return
	}
	httpx.Envelope(w, h.service.StatusDistribution(r.Context(), k))
}

func (h *Handler) topSuppliers(w http.ResponseWriter, r *http.Request) {
	k, ok := h.kind(w, r)
	if !ok {
		return
	}
	limit, _ := strconv.Atoi(r.URL.Query().Get("limit"))
	httpx.Envelope(w, h.service.TopSuppliers(r.Context(), k, limit))
}

func (h *Handler) yearly(w http.ResponseWriter, r *http.Request) {
	httpx.Envelope(w, h.service.YearlyComparison(r.Context()))
}

func (h *Handler) monthlyChart(w http.ResponseWriter, r *http.Request) {
	p, ok := h.period(w, r)
	if !ok {
		return
	}
	res := h.service.MonthlyTotals(r.Context(), p)
	if !res.IsOk() {
		httpx.Fail(w, res.Err())
		return
	}
	rows := res.Value()
	labels := make([]string, len(rows))
	ordersSeries := svg.Series{Label: "Orders", Values: make([]float64, len(rows))}
	invoicesSeries := svg.Series{Label: "Invoices", Values: make([]float64, len(rows))}
	for i, row := range rows {
		labels[i] = row.Month
		ordersSeries.Values[i] = row.Orders
		invoicesSeries.Values[i] = row.Invoices
	}
	width, _ := strconv.Atoi(r.URL.Query().Get("width"))
	height, _ := strconv.Atoi(r.URL.Query().Get("height"))
	out, err := svg.Bars(width, height, labels, []svg.Series{ordersSeries, invoicesSeries}, svg.BarOpts{
		Title:       "Monthly Totals " + p.String(),
		Description: "Order and invoice amounts per month",
	})
	if err != nil {
		h.logger.Warn("render monthly chart", slog.Any("error", err))
		httpx.Problem(w, http.StatusBadRequest, "Invalid Chart", err.Error())
		return
	}
	w.Header().Set("Content-Type", "image/svg+xml")
	w.Header().Set("Cache-Control", "no-cache")
	_, _ = w.Write(out)
}

func (h *Handler) loadReport(w http.ResponseWriter, r *http.Request) (analytics.Period, []analytics.ReportRow, bool) {
	p, ok := h.period(w, r)
	if !ok {
		return p, nil, false
	}
	res := h.service.MonthlyReport(r.Context(), p)
	if !res.IsOk() {
		httpx.Fail(w, res.Err())
		return p, nil, false
	}
	return p, res.Value(), true
}

func (h *Handler) reportCSV(w http.ResponseWriter, r *http.Request) {
	p, rows, ok := h.loadReport(w, r)
	if !ok {
		return
	}
	buf := h.bufPool.Get().(*bytes.Buffer)
	buf.Reset()
	defer h.bufPool.Put(buf)

	if err := export.WriteReportCSV(buf, rows); err != nil {
		h.serverError(w, "write report csv", err)
		return
	}
	h.attachment(w, "text/csv; charset=utf-8", reportFilename(p, "csv"), buf.Bytes())
}

func (h *Handler) reportXLSX(w http.ResponseWriter, r *http.Request) {
	p, rows, ok := h.loadReport(w, r)
	if !ok {
		return
	}
	data, err := export.Workbook(export.ReportTable(p.String(), rows))
	if err != nil {
		h.serverError(w, "write report xlsx", err)
		return
	}
	h.attachment(w, export.ContentTypeXLSX, reportFilename(p, "xlsx"), data)
}

func (h *Handler) reportPDF(w http.ResponseWriter, r *http.Request) {
	p, rows, ok := h.loadReport(w, r)
	if !ok {
		return
	}
	data, err := export.ReportPDF{Period: p.String(), Currency: h.currency, GeneratedAt: h.now(), Rows: rows}.Render()
	if err != nil {
		h.serverError(w, "render report pdf", err)
		return
	}
	h.attachment(w, "application/pdf", reportFilename(p, "pdf"), data)
}

func (h *Handler) attachment(w http.ResponseWriter, contentType, filename string, data []byte) {
	w.Header().Set("Content-Type", contentType)
	w.Header().Set("Content-Disposition", fmt.Sprintf("attachment; filename=%q", filename))
	w.Header().Set("Content-Length", strconv.Itoa(len(data)))
	if _, err := w.Write(data); err != nil {
		h.logger.Warn("stream export", slog.String("file", filename), slog.Any("error", err))
	}
}

func (h *Handler) serverError(w http.ResponseWriter, msg string, err error) {
	h.logger.Error(msg, slog.Any("error", err))
	httpx.Problem(w, http.StatusInternalServerError, "Export Failed", result.MsgUnexpected)
}

func reportFilename(p analytics.Period, ext string) string {
	return fmt.Sprintf("monthly-report-%s.%s", p.String(), ext)
}
