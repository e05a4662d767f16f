// Package metrics exposes Prometheus metrics for the ratings service.
package metrics

import (
	"net/http"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

var (
	httpRequests = promauto.NewCounterVec(prometheus.CounterOpts{
		Namespace: "ratings",
		Subsystem: "http",
		Name:      "requests_total",
		Help:      "HTTP requests by route, method and status code.",
	}, []string{"route", "method", "code"})

	httpDuration = promauto.NewHistogramVec(prometheus.HistogramOpts{
		Namespace: "ratings",
		Subsystem: "http",
		Name:      "request_duration_seconds",
		Help:      "HTTP request latency.",
		Buckets:   prometheus.DefBuckets,
	}, []string{"route", "method"})

	ratingsLoaded = promauto.NewCounter(prometheus.CounterOpts{
		Namespace: "ratings",
		Name:      "loaded_total",
		Help:      "Ratings ingested from the bulk file at startup.",
	})

	mutations = promauto.NewCounterVec(prometheus.CounterOpts{
		Namespace: "ratings",
		Name:      "mutations_total",
		Help:      "Single-rating mutations by operation and outcome.",
	}, []string{"op", "outcome"})
)

func RecordHTTPRequest(route, method, code string) {
	httpRequests.WithLabelValues(route, method, code).Inc()
}

func ObserveHTTPDuration(route, method string, seconds float64) {
	httpDuration.WithLabelValues(route, method).Observe(seconds)
}

func RecordLoad(n int) {
	ratingsLoaded.Add(float64(n))
}

func RecordMutation(op, outcome string) {
	mutations.WithLabelValues(op, outcome).Inc()
}

// Handler serves the Prometheus exposition format.
func Handler() http.Handler {
	return promhttp.Handler()
}
