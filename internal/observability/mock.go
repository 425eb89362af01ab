package observability

import "time"

// MockMetricsRegistry is a mock implementation of MetricsRegistry for testing.
type MockMetricsRegistry struct{}

func (m *MockMetricsRegistry) IncrementRequests(endpoint, method, status string)                    {}
func (m *MockMetricsRegistry) RecordRequestLatency(endpoint, method string, duration time.Duration) {}
func (m *MockMetricsRegistry) IncrementResolverRuns(outcome string)                                 {}
func (m *MockMetricsRegistry) RecordResolverSegments(count int)                                     {}
func (m *MockMetricsRegistry) IncrementConflicts(kind string)                                       {}
func (m *MockMetricsRegistry) IncrementNotifications(severity string)                               {}
func (m *MockMetricsRegistry) IncrementReports()                                                    {}
func (m *MockMetricsRegistry) IncrementCityFetch(source, outcome string)                            {}
func (m *MockMetricsRegistry) IncrementReconcilerSwaps(resource string)                             {}
