package jobmetrics

import (
	"errors"
	"testing"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/testutil"
	"github.com/stretchr/testify/require"
)

func TestTrackerRecordsOutcomes(t *testing.T) {
	m := NewMetrics(prometheus.NewRegistry())
	at := time.Date(2024, 12, 20, 2, 0, 0, 0, time.UTC)
	m.now = func() time.Time { return at }

	require.NoError(t, m.Track("analytics:warmup").End(nil))
	boom := errors.New("boom")
	require.ErrorIs(t, m.Track("analytics:warmup").End(boom), boom)

	require.Equal(t, 1.0, testutil.ToFloat64(m.runs.WithLabelValues("analytics:warmup", statusSuccess)))
	require.Equal(t, 1.0, testutil.ToFloat64(m.runs.WithLabelValues("analytics:warmup", statusFailure)))
	require.Equal(t, 1.0, testutil.ToFloat64(m.failures.WithLabelValues("analytics:warmup")))
	require.Equal(t, float64(at.Unix()), testutil.ToFloat64(m.lastSuccess.WithLabelValues("analytics:warmup")))
}

func TestNilMetricsAreSafe(t *testing.T) {
	var m *Metrics
	boom := errors.New("boom")
	require.ErrorIs(t, m.Track("x").End(boom), boom)
	m.ObserveExport("orders", "xlsx", 10)
}

func TestObserveExport(t *testing.T) {
	m := NewMetrics(prometheus.NewRegistry())
	m.ObserveExport("orders", "xlsx", 8192)
	require.Equal(t, 1.0, testutil.ToFloat64(m.exports.WithLabelValues("orders", "xlsx")))
	require.Equal(t, 1, testutil.CollectAndCount(m.exportBytes, "opsdash_export_bytes"))
}
