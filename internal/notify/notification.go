package notify

import "time"

// Severity orders notifications by urgency.
type Severity string

const (
	SeverityInfo     Severity = "info"
	SeverityWarning  Severity = "warning"
	SeverityError    Severity = "error"
	SeverityCritical Severity = "critical"
)

// Category groups notifications by the subsystem they concern.
type Category string

const (
	CategoryFleet     Category = "Fleet"
	CategoryDocuments Category = "Documents"
	CategoryCampaigns Category = "Campaigns"
)

// Notification is one alert produced by the Scanner. IDs are stable
// derivations of the underlying state ("veh_exp_V1_RCA"), so acknowledging
// an item keeps it suppressed across rescans until the state changes.
type Notification struct {
	ID        string    `json:"id"`
	Type      string    `json:"type"`
	Severity  Severity  `json:"severity"`
	Category  Category  `json:"category"`
	Message   string    `json:"message"`
	Details   string    `json:"details,omitempty"`
	EntityRef string    `json:"entity_ref,omitempty"`
	CreatedAt time.Time `json:"created_at"`
}
