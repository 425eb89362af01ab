package models

import "time"

// Conflict classification. Blocking conflicts stop a save; warnings are
// surfaced but may be overridden by the operator.
const (
	ConflictTypeExclusive = "exclusive"
	ConflictTypeOverlap   = "overlap"
	ConflictTypeTransit   = "transit"
)

// ConflictItem describes one overlapping campaign discovered by the
// Conflict Detector, deduplicated per other-campaign with the earliest
// and latest dates on which any overlap occurs. Vehicles lists every
// shared vehicle the overlap was seen on, in candidate order.
type ConflictItem struct {
	OtherCampaignID   string    `json:"other_campaign_id"`
	Client            string    `json:"client"`
	Name              string    `json:"name"`
	Vehicles          []string  `json:"vehicles"`
	City              string    `json:"city,omitempty"`
	FirstConflictDate time.Time `json:"first_conflict_date"`
	LastConflictDate  time.Time `json:"last_conflict_date"`
	Type              string    `json:"type"`
}

// ConflictReport is the Conflict Detector output for one candidate
// campaign.
type ConflictReport struct {
	Blocking []ConflictItem `json:"blocking"`
	Warnings []ConflictItem `json:"warnings"`
}

// HasBlocking reports whether the save must be rejected.
func (r *ConflictReport) HasBlocking() bool { return len(r.Blocking) > 0 }

// Err converts the report into a ConflictError, or nil when clean enough
// to save (warnings alone do not fail a save).
func (r *ConflictReport) Err() error {
	if r.HasBlocking() {
		return &ConflictError{Blocking: r.Blocking, Warnings: r.Warnings}
	}
	return nil
}
