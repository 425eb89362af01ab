package analytics

import (
	"context"
	"sync"
)

// MockAnalyticsService collects events in memory for tests and for
// deployments without ClickHouse.
type MockAnalyticsService struct {
	mu     sync.Mutex
	Events []EventRecord
}

// NewMockAnalyticsService constructs an empty mock.
func NewMockAnalyticsService() *MockAnalyticsService {
	return &MockAnalyticsService{}
}

func (m *MockAnalyticsService) RecordEvent(_ context.Context, eventType, campaignID, userRef string, detail map[string]string) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.Events = append(m.Events, EventRecord{
		EventType:  eventType,
		CampaignID: campaignID,
		UserRef:    userRef,
		Detail:     detail,
	})
	return nil
}

func (m *MockAnalyticsService) GetEventsByCampaign(_ context.Context, campaignID string) ([]EventRecord, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	var out []EventRecord
	for _, ev := range m.Events {
		if ev.CampaignID == campaignID {
			out = append(out, ev)
		}
	}
	return out, nil
}

func (m *MockAnalyticsService) Close() {}
