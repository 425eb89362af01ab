package models

import "time"

// SpotStatus is the review state of a media item.
type SpotStatus string

const (
	SpotOK       SpotStatus = "OK"
	SpotTest     SpotStatus = "Test"
	SpotReplaced SpotStatus = "Replaced"
)

// Spot is a media item attached to a campaign. A spot may narrow its
// parent's targeting to a subset of vehicles and cities and may carry its
// own period/schedule maps; empty maps mean the spot inherits the parent
// plan wholesale.
type Spot struct {
	ID         string     `json:"id"`
	CampaignID string     `json:"campaign_id"`
	Index      int        `json:"index"`
	Name       string     `json:"name"`
	FilePath   string     `json:"file_path,omitempty"`
	Status     SpotStatus `json:"status"`
	DurationSec int       `json:"duration_sec"`
	Active     bool       `json:"active"`
	Notes      string     `json:"notes,omitempty"`

	TargetCities   []string `json:"target_cities,omitempty"`
	TargetVehicles []string `json:"target_vehicles,omitempty"`

	SpotPeriods   PeriodMap   `json:"spot_periods"`
	SpotSchedules ScheduleMap `json:"spot_schedules"`

	CreatedAt time.Time `json:"created_at,omitempty"`
	UpdatedAt time.Time `json:"updated_at,omitempty"`
}

// HasOwnPlan reports whether the spot carries period data of its own
// rather than inheriting the campaign plan.
func (s *Spot) HasOwnPlan() bool { return !s.SpotPeriods.IsEmpty() }

// Validate checks the spot against its parent campaign: scope tokens must
// be subsets of the parent's vehicles and cities and every period must lie
// inside the parent's global range.
func (s *Spot) Validate(parent *Campaign) error {
	if parent == nil {
		return NewValidationError("campaign_id", "spot %s has no parent campaign", s.ID)
	}
	if s.Name == "" {
		return NewValidationError("name", "must not be empty")
	}
	switch s.Status {
	case SpotOK, SpotTest, SpotReplaced:
	default:
		return NewValidationError("status", "unknown spot status %q", s.Status)
	}

	parentCities := map[string]struct{}{}
	for _, c := range parent.TargetCities() {
		parentCities[c] = struct{}{}
	}
	parentVehicles := map[string]struct{}{}
	for _, v := range parent.Vehicles {
		parentVehicles[v] = struct{}{}
	}

	for _, c := range s.TargetCities {
		if _, ok := parentCities[c]; !ok {
			return NewValidationError("target_cities", "city %q is not targeted by the campaign", c)
		}
	}
	for _, v := range s.TargetVehicles {
		if _, ok := parentVehicles[v]; !ok {
			return NewValidationError("target_vehicles", "vehicle %q is not assigned to the campaign", v)
		}
	}

	if s.SpotPeriods.Mode == ScopeIndividual {
		for v := range s.SpotPeriods.ByVehicle {
			if _, ok := parentVehicles[v]; !ok {
				return NewValidationError("spot_periods", "scope vehicle %q is not assigned to the campaign", v)
			}
		}
	}
	scopes := []string{""}
	if s.SpotPeriods.Mode == ScopeIndividual {
		scopes = parent.Vehicles
	}
	for _, city := range s.SpotPeriods.Cities() {
		if _, ok := parentCities[city]; !ok {
			return NewValidationError("spot_periods", "city %q is not targeted by the campaign", city)
		}
		for _, v := range scopes {
			for _, p := range s.SpotPeriods.PeriodsFor(v, city) {
				if p.Start.Before(parent.StartDate) || p.End.After(parent.EndDate) {
					return NewValidationError("spot_periods", "%s: period %s..%s escapes the campaign range", city, DateKey(p.Start), DateKey(p.End))
				}
			}
		}
	}
	return nil
}
