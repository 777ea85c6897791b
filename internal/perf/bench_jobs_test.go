package perf

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/hibiken/asynq"
	"github.com/prometheus/client_golang/prometheus"
	dto "github.com/prometheus/client_model/go"

	"github.com/fmc-ops/opsdash/internal/analytics"
	"github.com/fmc-ops/opsdash/internal/invoices"
	jobmetrics "github.com/fmc-ops/opsdash/internal/jobs"
	"github.com/fmc-ops/opsdash/internal/orders"
	"github.com/fmc-ops/opsdash/internal/platform/storage"
	"github.com/fmc-ops/opsdash/jobs"
)

type flakyWarmer struct {
	inner *analytics.Service
	fail  int
}

func (w *flakyWarmer) Warm(ctx context.Context) error {
	if w.fail > 0 {
		w.fail--
		return errors.New("timeout")
	}
	return w.inner.Warm(ctx)
}

func seededAnalytics() (*orders.Service, *invoices.Service, *analytics.Service) {
	o := orders.NewService(orders.NewSeededRepository(), time.Second)
	i := invoices.NewService(invoices.NewSeededRepository(), time.Second)
	return o, i, analytics.NewService(o, i, nil)
}

func TestWarmupAndExportThroughputAndReliability(t *testing.T) {
	reg := prometheus.NewRegistry()
	metrics := jobmetrics.NewMetrics(reg)
	o, i, a := seededAnalytics()

	warmer := &flakyWarmer{inner: a, fail: 2}
	warmup := jobs.NewWarmupJob(warmer, nil, metrics)
	task, err := jobs.NewWarmupTask("perf")
	if err != nil {
		t.Fatalf("build warmup task: %v", err)
	}
	for n := 0; n < 40; n++ {
		_ = warmup.Handle(context.Background(), task)
	}

	exporter := jobs.NewExportJob(o, i, a, storage.NewMemory(), nil, metrics)
	for _, kind := range []string{jobs.ExportOrders, jobs.ExportInvoices, jobs.ExportMonthly} {
		exportTask, err := jobs.NewExportTask(jobs.ExportPayload{Kind: kind, Period: "last12months"})
		if err != nil {
			t.Fatalf("build export task: %v", err)
		}
		if err := exporter.Handle(context.Background(), exportTask); err != nil {
			t.Fatalf("export %s: %v", kind, err)
		}
	}

	families, err := reg.Gather()
	if err != nil {
		t.Fatalf("failed to gather metrics: %v", err)
	}

	success := metricValue(t, families, "opsdash_jobs_total", map[string]string{"job": jobs.TaskAnalyticsWarmup, "status": "success"})
	failure := metricValue(t, families, "opsdash_jobs_total", map[string]string{"job": jobs.TaskAnalyticsWarmup, "status": "failure"})
	if success+failure != 40 {
		t.Fatalf("expected 40 warmup runs, got %v", success+failure)
	}
	if ratio := success / (success + failure); ratio < 0.9 {
		t.Fatalf("warmup success ratio too low: %f", ratio)
	}
	if exports := metricValue(t, families, "opsdash_exports_total", map[string]string{"kind": jobs.ExportMonthly, "format": "xlsx"}); exports != 1 {
		t.Fatalf("expected one monthly export, got %v", exports)
	}

	if mean := histogramMean(t, families, "opsdash_job_duration_seconds", map[string]string{"job": jobs.TaskAnalyticsWarmup}); mean > 0.5 {
		t.Fatalf("warmup duration above budget: %f", mean)
	}
	if mean := histogramMean(t, families, "opsdash_job_duration_seconds", map[string]string{"job": jobs.TaskExportReport}); mean > 2.0 {
		t.Fatalf("export duration above budget: %f", mean)
	}
}

func BenchmarkExportMonthly(b *testing.B) {
	o, i, a := seededAnalytics()
	exporter := jobs.NewExportJob(o, i, a, storage.NewMemory(), nil, jobmetrics.NewMetrics(prometheus.NewRegistry()))
	task := asynq.NewTask(jobs.TaskExportReport, []byte(`{"kind":"monthly","period":"last12months"}`))
	b.ResetTimer()
	for n := 0; n < b.N; n++ {
		if err := exporter.Handle(context.Background(), task); err != nil {
			b.Fatal(err)
		}
	}
}

func metricValue(t *testing.T, families []*dto.MetricFamily, name string, labels map[string]string) float64 {
	t.Helper()
	for _, fam := range families {
		if fam.GetName() != name {
			continue
		}
		for _, metric := range fam.GetMetric() {
			if hasLabels(metric, labels) {
				if fam.GetType() == dto.MetricType_COUNTER {
					return metric.GetCounter().GetValue()
				}
				if fam.GetType() == dto.MetricType_GAUGE {
					return metric.GetGauge().GetValue()
				}
			}
		}
	}
	t.Fatalf("metric %s with labels %v not found", name, labels)
	return 0
}

func histogramMean(t *testing.T, families []*dto.MetricFamily, name string, labels map[string]string) float64 {
	t.Helper()
	for _, fam := range families {
		if fam.GetName() != name {
			continue
		}
		for _, metric := range fam.GetMetric() {
			if hasLabels(metric, labels) {
				hist := metric.GetHistogram()
				if hist == nil || hist.GetSampleCount() == 0 {
					t.Fatalf("histogram %s missing samples", name)
				}
				return hist.GetSampleSum() / float64(hist.GetSampleCount())
			}
		}
	}
	t.Fatalf("histogram %s with labels %v not found", name, labels)
	return 0
}

func hasLabels(metric *dto.Metric, labels map[string]string) bool {
	for _, lp := range metric.GetLabel() {
		if val, ok := labels[lp.GetName()]; ok {
			if lp.GetValue() != val {
				return false
			}
		}
	}
	for key := range labels {
		found := false
		for _, lp := range metric.GetLabel() {
			if lp.GetName() == key {
				found = true
				break
			}
		}
		if !found {
			return false
		}
	}
	return true
}
