package hydrate

import (
	"github.com/prometheus/client_golang/prometheus"

	"github.com/rmax-ai/pipeforge/pkg/componentref"
)

var (
	// HydrationTotal counts finished Hydrate calls by outcome (hydrated or null).
	HydrationTotal = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Name: "pipeforge_hydration_total",
			Help: "Total number of hydration calls by result",
		},
		[]string{"result"},
	)

	// HydrationTransitionsTotal counts chain steps by the shape they started from.
	HydrationTransitionsTotal = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Name: "pipeforge_hydration_transitions_total",
			Help: "Total number of hydration chain transitions by input shape",
		},
		[]string{"shape"},
	)

	// FetchDurationSeconds tracks network fetch latency.
	FetchDurationSeconds = prometheus.NewHistogram(
		prometheus.HistogramOpts{
			Name:    "pipeforge_fetch_duration_seconds",
			Help:    "Duration of component fetches",
			Buckets: prometheus.DefBuckets,
		},
	)

	// StoreWriteFailuresTotal counts cache writes that failed in the background.
	StoreWriteFailuresTotal = prometheus.NewCounter(
		prometheus.CounterOpts{
			Name: "pipeforge_store_write_failures_total",
			Help: "Total number of failed background component cache writes",
		},
	)
)

func init() {
	prometheus.MustRegister(HydrationTotal)
	prometheus.MustRegister(HydrationTransitionsTotal)
	prometheus.MustRegister(FetchDurationSeconds)
	prometheus.MustRegister(StoreWriteFailuresTotal)

	// Export a zero series per shape and result so rates work from the first scrape.
	for _, shape := range componentref.Shapes {
		HydrationTransitionsTotal.WithLabelValues(shape.String())
	}
	HydrationTotal.WithLabelValues("hydrated")
	HydrationTotal.WithLabelValues("null")
}
