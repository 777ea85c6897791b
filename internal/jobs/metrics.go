package jobmetrics

import (
	"sync"
	"time"

	"github.com/prometheus/client_golang/prometheus"
)

const (
	statusSuccess = "success"
	statusFailure = "failure"
)

// Metrics holds the worker collectors: run outcomes, durations, the time of
// the last good run per job, and stored export files.
type Metrics struct {
	runs        *prometheus.CounterVec
	failures    *prometheus.CounterVec
	duration    *prometheus.HistogramVec
	lastSuccess *prometheus.GaugeVec
	exports     *prometheus.CounterVec
	exportBytes *prometheus.HistogramVec
	now         func() time.Time
}

var (
	sharedOnce sync.Once
	shared     *Metrics
)

// NewMetrics registers the collectors on reg. A nil reg returns a process-wide
// instance registered once on the default registerer.
func NewMetrics(reg prometheus.Registerer) *Metrics {
	if reg != nil {
		return register(reg)
	}
	sharedOnce.Do(func() { shared = register(prometheus.DefaultRegisterer) })
	return shared
}

// Tracker times one job run.
type Tracker struct {
	m     *Metrics
	job   string
	start time.Time
}

// Track starts timing a run of job. Safe on a nil receiver.
func (m *Metrics) Track(job string) *Tracker {
	t := &Tracker{m: m, job: job, start: time.Now()}
	if m != nil {
		t.start = m.now()
	}
	return t
}

// End records the outcome and passes err through so callers can write
// `return tracker.End(err)` or use it in a deferred assignment.
func (t *Tracker) End(err error) error {
	if t == nil || t.m == nil || t.job == "" {
		return err
	}
	end := t.m.now()
	t.m.duration.WithLabelValues(t.job).Observe(end.Sub(t.start).Seconds())
	if err != nil {
		t.m.failures.WithLabelValues(t.job).Inc()
		t.m.runs.WithLabelValues(t.job, statusFailure).Inc()
		return err
	}
	t.m.runs.WithLabelValues(t.job, statusSuccess).Inc()
	t.m.lastSuccess.WithLabelValues(t.job).Set(float64(end.Unix()))
	return nil
}

// ObserveExport counts a stored export and its size.
func (m *Metrics) ObserveExport(kind, format string, size int) {
	if m == nil {
		return
	}
	m.exports.WithLabelValues(kind, format).Inc()
	m.exportBytes.WithLabelValues(kind).Observe(float64(size))
}

func register(reg prometheus.Registerer) *Metrics {
	m := &Metrics{
		runs: prometheus.NewCounterVec(prometheus.CounterOpts{
			Name: "opsdash_jobs_total",
			Help: "Background job runs by job and status.",
		}, []string{"job", "status"}),
		failures: prometheus.NewCounterVec(prometheus.CounterOpts{
			Name: "opsdash_jobs_failures_total",
			Help: "Failed background job runs by job.",
		}, []string{"job"}),
		duration: prometheus.NewHistogramVec(prometheus.HistogramOpts{
			Name:    "opsdash_job_duration_seconds",
			Help:    "Background job run time.",
			Buckets: prometheus.DefBuckets,
		}, []string{"job"}),
		lastSuccess: prometheus.NewGaugeVec(prometheus.GaugeOpts{
			Name: "opsdash_job_last_success_timestamp_seconds",
			Help: "Unix time of the last successful run by job.",
		}, []string{"job"}),
		exports: prometheus.NewCounterVec(prometheus.CounterOpts{
			Name: "opsdash_exports_total",
			Help: "Export files written to object storage by kind and format.",
		}, []string{"kind", "format"}),
		exportBytes: prometheus.NewHistogramVec(prometheus.HistogramOpts{
			Name:    "opsdash_export_bytes",
			Help:    "Size of stored export files.",
			Buckets: prometheus.ExponentialBuckets(4096, 4, 6),
		}, []string{"kind"}),
		now: time.Now,
	}
	reg.MustRegister(m.runs, m.failures, m.duration, m.lastSuccess, m.exports, m.exportBytes)
	return m
}
