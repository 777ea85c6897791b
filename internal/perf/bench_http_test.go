package perf

import (
	"net/http"
	"net/http/httptest"
	"sort"
	"testing"
	"time"

	"github.com/go-chi/chi/v5"

	"github.com/fmc-ops/opsdash/internal/orders"
)

func ordersRouter() http.Handler {
	r := chi.NewRouter()
	h := orders.NewHandler(nil, orders.NewService(orders.NewSeededRepository(), time.Second))
	r.Route("/api/orders", h.MountRoutes)
	return r
}

func TestOrderListLatencyTargets(t *testing.T) {
	router := ordersRouter()
	paths := map[string]string{
		"page":     "/api/orders?page=1&page_size=20",
		"filtered": "/api/orders?status=Pending&search=corp&page_size=50",
	}
	for name, path := range paths {
		samples := make([]time.Duration, 0, 50)
		for i := 0; i < 50; i++ {
			start := time.Now()
			rr := httptest.NewRecorder()
			router.ServeHTTP(rr, httptest.NewRequest(http.MethodGet, path, nil))
			samples = append(samples, time.Since(start))
			if rr.Code != http.StatusOK {
				t.Fatalf("%s: unexpected status %d", name, rr.Code)
			}
		}
		if p95 := percentile95(samples); p95 > 250*time.Millisecond {
			t.Fatalf("%s latency regression: p95=%s", name, p95)
		}
	}
}

func BenchmarkOrderList(b *testing.B) {
	router := ordersRouter()
	req := httptest.NewRequest(http.MethodGet, "/api/orders?page_size=20&search=tech", nil)
	b.ResetTimer()
	for n := 0; n < b.N; n++ {
		router.ServeHTTP(httptest.NewRecorder(), req)
	}
}

func percentile95(samples []time.Duration) time.Duration {
	if len(samples) == 0 {
		return 0
	}
	sorted := append([]time.Duration(nil), samples...)
	sort.Slice(sorted, func(i, j int) bool { return sorted[i] < sorted[j] })
	index := int(float64(len(sorted)-1) * 0.95)
	if index < 0 {
		index = 0
	}
	if index >= len(sorted) {
		index = len(sorted) - 1
	}
	return sorted[index]
}
