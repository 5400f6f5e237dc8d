package metrics

import (
	"strconv"

	"github.com/prometheus/client_golang/prometheus"
)

func init() {
	register(httpRequests, httpLatency)
}

var (
	httpRequests = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Name: "minutes_http_requests_total",
			Help: "HTTP requests per route, method and status code.",
		},
		[]string{"route", "method", "code"},
	)

	httpLatency = prometheus.NewHistogramVec(
		prometheus.HistogramOpts{
			Name:    "minutes_http_request_duration_ms",
			Help:    "HTTP request latency in milliseconds.",
			Buckets: []float64{5, 10, 25, 50, 100, 250, 500, 1000, 2500, 5000, 15000},
		},
		[]string{"route", "method"},
	)
)

// ObserveHTTP records one served request. route is the matched pattern,
// not the raw path, to keep label cardinality bounded.
func ObserveHTTP(route, method string, code int, latencyMs int64) {
	if route == "" {
		route = "unmatched"
	}
	httpRequests.WithLabelValues(route, method, strconv.Itoa(code)).Inc()
	httpLatency.WithLabelValues(route, method).Observe(float64(latencyMs))
}
