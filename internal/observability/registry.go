package observability

import "time"

// MetricsRegistry provides an interface for recording application metrics.
// This replaces direct access to global Prometheus metrics with dependency injection.
type MetricsRegistry interface {
	// HTTP request metrics
	IncrementRequests(endpoint, method, status string)
	RecordRequestLatency(endpoint, method string, duration time.Duration)

	// Scheduling resolver metrics
	IncrementResolverRuns(outcome string)
	RecordResolverSegments(count int)

	// Conflict detection metrics
	IncrementConflicts(kind string)

	// Notification metrics
	IncrementNotifications(severity string)

	// Reporting metrics
	IncrementReports()

	// City data source metrics
	IncrementCityFetch(source, outcome string)

	// Reconciler metrics
	IncrementReconcilerSwaps(resource string)
}

// PrometheusRegistry implements MetricsRegistry using the package-level
// Prometheus collectors.
type PrometheusRegistry struct{}

// NewPrometheusRegistry creates a new PrometheusRegistry.
func NewPrometheusRegistry() *PrometheusRegistry {
	return &PrometheusRegistry{}
}

func (r *PrometheusRegistry) IncrementRequests(endpoint, method, status string) {
	RequestCount.WithLabelValues(endpoint, method, status).Inc()
}

func (r *PrometheusRegistry) RecordRequestLatency(endpoint, method string, duration time.Duration) {
	RequestLatency.WithLabelValues(endpoint, method).Observe(duration.Seconds())
}

func (r *PrometheusRegistry) IncrementResolverRuns(outcome string) {
	ResolverRuns.WithLabelValues(outcome).Inc()
}

func (r *PrometheusRegistry) RecordResolverSegments(count int) {
	ResolverSegments.Observe(float64(count))
}

func (r *PrometheusRegistry) IncrementConflicts(kind string) {
	ConflictCount.WithLabelValues(kind).Inc()
}

func (r *PrometheusRegistry) IncrementNotifications(severity string) {
	NotificationCount.WithLabelValues(severity).Inc()
}

func (r *PrometheusRegistry) IncrementReports() {
	ReportCount.Inc()
}

func (r *PrometheusRegistry) IncrementCityFetch(source, outcome string) {
	CityFetchCount.WithLabelValues(source, outcome).Inc()
}

func (r *PrometheusRegistry) IncrementReconcilerSwaps(resource string) {
	ReconcilerSwaps.WithLabelValues(resource).Inc()
}
