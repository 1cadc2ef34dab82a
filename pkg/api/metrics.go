package api

import (
	"net/http"
	"strconv"
	"time"

	"github.com/prometheus/client_golang/prometheus"
)

var (
	// HTTPRequestsTotal counts API requests by route and status code.
	HTTPRequestsTotal = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Name: "pipeforge_http_requests_total",
			Help: "Total number of API requests",
		},
		[]string{"route", "status"},
	)

	// HTTPRequestDurationSeconds tracks API latency by route.
	HTTPRequestDurationSeconds = prometheus.NewHistogramVec(
		prometheus.HistogramOpts{
			Name:    "pipeforge_http_request_duration_seconds",
			Help:    "Duration of API requests",
			Buckets: prometheus.DefBuckets,
		},
		[]string{"route"},
	)

	// DuplicationsTotal counts successful duplications by connection mode.
	DuplicationsTotal = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Name: "pipeforge_duplications_total",
			Help: "Total number of graph duplications",
		},
		[]string{"connection"},
	)
)

func init() {
	prometheus.MustRegister(HTTPRequestsTotal)
	prometheus.MustRegister(HTTPRequestDurationSeconds)
	prometheus.MustRegister(DuplicationsTotal)
}

// withMetrics records count and latency under a fixed route label, so ids in
// paths do not become label values.
func withMetrics(route string, next http.HandlerFunc) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		start := time.Now()
		ww := &statusWriter{ResponseWriter: w, status: http.StatusOK}
		next(ww, r)
		HTTPRequestsTotal.WithLabelValues(route, strconv.Itoa(ww.status)).Inc()
		HTTPRequestDurationSeconds.WithLabelValues(route).Observe(time.Since(start).Seconds())
	}
}
