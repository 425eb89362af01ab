package models

import (
	"sort"
	"strings"
	"time"
)

// CampaignStatus is the lifecycle state of a campaign. Completed and
// cancelled are soft-terminal: the record stays readable but is never
// scheduled again.
type CampaignStatus string

const (
	StatusDraft     CampaignStatus = "draft"
	StatusPending   CampaignStatus = "pending"
	StatusConfirmed CampaignStatus = "confirmed"
	StatusCompleted CampaignStatus = "completed"
	StatusCancelled CampaignStatus = "cancelled"
)

// ValidCampaignStatus reports whether s is a recognized status value.
func ValidCampaignStatus(s CampaignStatus) bool {
	switch s {
	case StatusDraft, StatusPending, StatusConfirmed, StatusCompleted, StatusCancelled:
		return true
	}
	return false
}

// Schedulable reports whether campaigns in this status occupy vehicles.
// Draft and cancelled campaigns never participate in conflict detection.
func (s CampaignStatus) Schedulable() bool {
	return s != StatusDraft && s != StatusCancelled
}

// CampaignMode describes how the campaign distributes vehicles over cities.
type CampaignMode string

const (
	ModeNearbyTour        CampaignMode = "NEARBY_TOUR"
	ModeMultiVehicleSame  CampaignMode = "MULTI_VEHICLE_SAME"
	ModeMultiVehicleCust  CampaignMode = "MULTI_VEHICLE_CUSTOM"
	ModeSingleVehicleCity CampaignMode = "SINGLE_VEHICLE_CITY"
)

// TimelineEntry assigns one resource (vehicle or driver) to a contiguous
// stretch of a campaign. Entries are append-only; a replacement inserts a
// boundary instead of mutating history.
type TimelineEntry struct {
	ResourceID string    `json:"resource_id"`
	Start      time.Time `json:"start_date"`
	End        time.Time `json:"end_date"`
}

// TransitPeriod is planned road movement that is not broadcasting. It is
// either user-entered or inserted by the transit planner (Auto=true).
type TransitPeriod struct {
	VehicleID       string    `json:"vehicle_id"`
	StartDate       time.Time `json:"start_date"`
	EndDate         time.Time `json:"end_date"`
	OriginCity      string    `json:"origin_city"`
	DestinationCity string    `json:"destination_city"`
	Hours           string    `json:"hours"`
	Km              float64   `json:"km"`
	DurationHours   float64   `json:"duration_hours"`
	Auto            bool      `json:"auto,omitempty"`
}

// Campaign is the central planning entity: a client engagement executed by
// one or more vehicles across one or more cities over a date range. The
// period and schedule maps carry the per-city presence plan; everything
// downstream (conflicts, audience, finance) derives from them.
type Campaign struct {
	ID       string         `json:"id"`
	Name     string         `json:"name"`
	Client   string         `json:"client"`
	PONumber string         `json:"po_number,omitempty"`
	Status   CampaignStatus `json:"status"`
	Mode     CampaignMode   `json:"campaign_mode"`

	StartDate time.Time `json:"start_date"`
	EndDate   time.Time `json:"end_date"`

	Exclusive       bool `json:"exclusive"`
	SpotDurationSec int  `json:"spot_duration_sec"`
	LoopDurationSec int  `json:"loop_duration_sec"`

	// Fleet parameters used when distance must be computed rather than known.
	AvgSpeedKmh          float64 `json:"avg_speed_kmh"`
	StationingMinPerHour float64 `json:"stationing_min_per_hour"`

	// Distance selection inputs, in priority order: per-day overrides,
	// known total, computed from effective hours.
	DailyDistanceKm      map[string]float64 `json:"daily_distance_km,omitempty"`
	KnownDistanceTotalKm float64            `json:"known_distance_total_km,omitempty"`

	CostPerKm       float64 `json:"cost_per_km"`
	FixedCosts      float64 `json:"fixed_costs"`
	ExpectedRevenue float64 `json:"expected_revenue"`

	// Vehicles is ordered; the first entry is the primary vehicle kept for
	// legacy single-vehicle consumers.
	Vehicles        []string          `json:"vehicles"`
	DriverOverrides map[string]string `json:"driver_overrides,omitempty"`

	// DailyHours is the fallback schedule used when a date has no explicit
	// day plan, e.g. "09:00-17:00".
	DailyHours string `json:"daily_hours"`

	CityPeriods   PeriodMap   `json:"city_periods"`
	CitySchedules ScheduleMap `json:"city_schedules"`

	TransitPeriods []TransitPeriod `json:"transit_periods,omitempty"`

	VehicleTimeline []TimelineEntry `json:"vehicle_timeline,omitempty"`
	DriverTimeline  []TimelineEntry `json:"driver_timeline,omitempty"`

	CreatedAt time.Time `json:"created_at,omitempty"`
	UpdatedAt time.Time `json:"updated_at,omitempty"`
}

// Clone returns a deep copy. Campaigns read from a store snapshot share
// their maps and slices with every other reader; mutations must go through
// a clone and be written back via the store.
func (c *Campaign) Clone() *Campaign {
	out := *c
	out.Vehicles = append([]string(nil), c.Vehicles...)
	if c.DailyDistanceKm != nil {
		out.DailyDistanceKm = make(map[string]float64, len(c.DailyDistanceKm))
		for k, v := range c.DailyDistanceKm {
			out.DailyDistanceKm[k] = v
		}
	}
	if c.DriverOverrides != nil {
		out.DriverOverrides = make(map[string]string, len(c.DriverOverrides))
		for k, v := range c.DriverOverrides {
			out.DriverOverrides[k] = v
		}
	}
	out.CityPeriods = c.CityPeriods.Clone()
	out.CitySchedules = c.CitySchedules.Clone()
	out.TransitPeriods = append([]TransitPeriod(nil), c.TransitPeriods...)
	out.VehicleTimeline = append([]TimelineEntry(nil), c.VehicleTimeline...)
	out.DriverTimeline = append([]TimelineEntry(nil), c.DriverTimeline...)
	return &out
}

// PrimaryVehicle returns the first assigned vehicle, or "".
func (c *Campaign) PrimaryVehicle() string {
	if len(c.Vehicles) == 0 {
		return ""
	}
	return c.Vehicles[0]
}

// HasVehicle reports whether the vehicle is assigned, either directly or
// through a timeline segment.
func (c *Campaign) HasVehicle(vehicleID string) bool {
	for _, v := range c.Vehicles {
		if v == vehicleID {
			return true
		}
	}
	for _, e := range c.VehicleTimeline {
		if e.ResourceID == vehicleID {
			return true
		}
	}
	return false
}

// VehicleOn returns the vehicle serving the campaign on the given date,
// honoring the timeline when present and falling back to the primary.
func (c *Campaign) VehicleOn(date time.Time) string {
	for _, e := range c.VehicleTimeline {
		if !date.Before(e.Start) && !date.After(e.End) {
			return e.ResourceID
		}
	}
	return c.PrimaryVehicle()
}

// DriverFor returns the driver override for a vehicle, or "".
func (c *Campaign) DriverFor(vehicleID string) string {
	if c.DriverOverrides == nil {
		return ""
	}
	return c.DriverOverrides[vehicleID]
}

// TargetCities is the sorted union of cities across the period map.
func (c *Campaign) TargetCities() []string {
	return c.CityPeriods.Cities()
}

// ContainsDate reports whether d falls inside the global range.
func (c *Campaign) ContainsDate(d time.Time) bool {
	return !d.Before(c.StartDate) && !d.After(c.EndDate)
}

// RunningOn reports whether the campaign occupies its fleet on the given
// date, i.e. it is schedulable and the date is inside the global range.
func (c *Campaign) RunningOn(d time.Time) bool {
	return c.Status.Schedulable() && c.ContainsDate(d)
}

// ShareOfVoice is the loop fraction occupied by the campaign's spot.
// Exclusive campaigns own the whole loop.
func (c *Campaign) ShareOfVoice() float64 {
	if c.Exclusive {
		return 1.0
	}
	if c.LoopDurationSec <= 0 {
		return 1.0
	}
	return float64(c.SpotDurationSec) / float64(c.LoopDurationSec)
}

// VisibilityFactor discounts impressions for campaigns that share the
// vehicle with other advertisers.
func (c *Campaign) VisibilityFactor() float64 {
	if c.Exclusive {
		return 1.0
	}
	return 0.7
}

// Validate checks the campaign's structural invariants. Violations that
// legacy data is known to contain (periods escaping the global range) are
// reported as warnings instead of errors.
func (c *Campaign) Validate() (warnings []string, err error) {
	if strings.TrimSpace(c.Name) == "" {
		return nil, NewValidationError("name", "must not be empty")
	}
	if c.StartDate.IsZero() || c.EndDate.IsZero() {
		return nil, NewValidationError("dates", "start_date and end_date are required")
	}
	if c.EndDate.Before(c.StartDate) {
		return nil, NewValidationError("dates", "end_date %s precedes start_date %s", DateKey(c.EndDate), DateKey(c.StartDate))
	}
	if !ValidCampaignStatus(c.Status) {
		return nil, NewValidationError("status", "unknown status %q", c.Status)
	}
	if c.CityPeriods.Mode != c.CitySchedules.Mode {
		return nil, NewValidationError("city_schedules", "schedule map mode %q disagrees with period map mode %q", c.CitySchedules.Mode, c.CityPeriods.Mode)
	}
	if c.CityPeriods.Mode == ScopeIndividual {
		assigned := map[string]struct{}{}
		for _, v := range c.Vehicles {
			assigned[v] = struct{}{}
		}
		vehicles := make([]string, 0, len(c.CityPeriods.ByVehicle))
		for v := range c.CityPeriods.ByVehicle {
			vehicles = append(vehicles, v)
		}
		sort.Strings(vehicles)
		for _, v := range vehicles {
			if _, ok := assigned[v]; !ok {
				return nil, NewValidationError("city_periods", "scope vehicle %q is not assigned to the campaign", v)
			}
		}
	}
	scopes := []string{""}
	if c.CityPeriods.Mode == ScopeIndividual {
		scopes = c.Vehicles
	}
	for _, city := range c.CityPeriods.Cities() {
		for _, v := range scopes {
			for _, p := range c.CityPeriods.PeriodsFor(v, city) {
				if p.End.Before(p.Start) {
					return nil, NewValidationError("city_periods", "%s: period end %s precedes start %s", city, DateKey(p.End), DateKey(p.Start))
				}
				if p.Start.Before(c.StartDate) || p.End.After(c.EndDate) {
					warnings = append(warnings, "period "+DateKey(p.Start)+".."+DateKey(p.End)+" for "+city+" escapes the campaign range")
				}
			}
		}
	}
	return dedupeStrings(warnings), nil
}

func dedupeStrings(in []string) []string {
	if len(in) == 0 {
		return nil
	}
	seen := map[string]struct{}{}
	out := in[:0]
	for _, s := range in {
		if _, ok := seen[s]; ok {
			continue
		}
		seen[s] = struct{}{}
		out = append(out, s)
	}
	return out
}
