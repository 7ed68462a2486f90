package metrics

import (
	"net/http"
	"testing"
	"time"

	"github.com/prometheus/client_golang/prometheus"
)

func TestHTTPMetricsStatusClass(t *testing.T) {
	cases := map[int]string{
		http.StatusOK:                 "2xx",
		http.StatusConflict:           "4xx",
		http.StatusServiceUnavailable: "5xx",
		0:                             "unknown",
		1000:                          "unknown",
	}
	for status, want := range cases {
		if got := statusClass(status); got != want {
			t.Fatalf("status %d: expected %s got %s", status, want, got)
		}
	}
}

func TestHTTPMetricsUnmatchedRoute(t *testing.T) {
	reg := prometheus.NewRegistry()
	m := NewHTTPMetrics(reg)
	m.ObserveRequest(http.MethodGet, "", http.StatusNotFound, time.Millisecond)

	if got := sample(t, reg, "http_requests_total", "route", "unmatched", "status", "4xx").GetCounter().GetValue(); got != 1 {
		t.Fatalf("expected unmatched request counted once, got %f", got)
	}

	var nilMetrics *HTTPMetrics
	nilMetrics.ObserveRequest(http.MethodGet, "/", http.StatusOK, time.Millisecond)
	NewHTTPMetrics(nil).ObserveRequest(http.MethodGet, "/", http.StatusOK, time.Millisecond)
}
