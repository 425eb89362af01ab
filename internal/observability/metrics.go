package observability

import (
	"github.com/prometheus/client_golang/prometheus"
)

var (
	// total requests per endpoint, method and status code
	RequestCount = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Name: "mobiplan_requests_total",
			Help: "Total API requests received",
		},
		[]string{"endpoint", "method", "status"},
	)

	// request latency in seconds per endpoint/method
	RequestLatency = prometheus.NewHistogramVec(
		prometheus.HistogramOpts{
			Name:    "mobiplan_request_duration_seconds",
			Help:    "Histogram of request latencies",
			Buckets: prometheus.DefBuckets,
		},
		[]string{"endpoint", "method"},
	)

	// resolver runs, labelled by outcome
	ResolverRuns = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Name: "mobiplan_resolver_runs_total",
			Help: "Total scheduling resolver invocations",
		},
		[]string{"outcome"},
	)

	// segments produced per resolver run
	ResolverSegments = prometheus.NewHistogram(
		prometheus.HistogramOpts{
			Name:    "mobiplan_resolver_segments",
			Help:    "Histogram of presence segments per resolution",
			Buckets: prometheus.ExponentialBuckets(1, 2, 12),
		},
	)

	// conflicts found, labelled blocking/warning
	ConflictCount = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Name: "mobiplan_conflicts_total",
			Help: "Total conflicts found by the detector",
		},
		[]string{"kind"},
	)

	// notifications emitted, labelled by severity
	NotificationCount = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Name: "mobiplan_notifications_total",
			Help: "Total notifications emitted by the scanner",
		},
		[]string{"severity"},
	)

	// campaign reports generated
	ReportCount = prometheus.NewCounter(
		prometheus.CounterOpts{
			Name: "mobiplan_reports_total",
			Help: "Total campaign reports generated",
		},
	)

	// external city-data fetches, labelled by source and outcome
	CityFetchCount = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Name: "mobiplan_city_fetch_total",
			Help: "Total external city data fetches",
		},
		[]string{"source", "outcome"},
	)

	// vehicle/driver replacements performed by the reconciler
	ReconcilerSwaps = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Name: "mobiplan_reconciler_swaps_total",
			Help: "Total resource replacements performed",
		},
		[]string{"resource"},
	)
)

func init() {
	prometheus.MustRegister(
		RequestCount,
		RequestLatency,
		ResolverRuns,
		ResolverSegments,
		ConflictCount,
		NotificationCount,
		ReportCount,
		CityFetchCount,
		ReconcilerSwaps,
	)
}
