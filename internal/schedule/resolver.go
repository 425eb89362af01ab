// Package schedule turns a campaign's period and schedule maps into the
// canonical per-vehicle, per-city, per-day presence timeline every
// downstream calculator consumes. Resolution is pure: given a frozen
// campaign snapshot it produces a deterministic segment list and never
// invents data — every segment traces back to an explicit period and day
// plan (or the campaign's documented daily-hours fallback).
package schedule

import (
	"fmt"
	"time"

	"go.uber.org/zap"

	"github.com/avasilescu/mobiplan/internal/models"
	"github.com/avasilescu/mobiplan/internal/observability"
)

// Result is one resolver run: the ordered presence segments plus the
// warnings produced while folding the maps (discarded schedule entries,
// unparseable hours replaced by the fallback).
type Result struct {
	Segments []models.PresenceSegment
	Warnings []string
}

// Resolver flattens campaign plans into presence timelines.
type Resolver struct {
	Logger  *zap.Logger
	Metrics observability.MetricsRegistry
}

// NewResolver constructs a Resolver. A nil metrics registry is replaced
// with the mock so library callers need not wire one.
func NewResolver(logger *zap.Logger, metrics observability.MetricsRegistry) *Resolver {
	if logger == nil {
		logger = zap.NewNop()
	}
	if metrics == nil {
		metrics = &observability.MockMetricsRegistry{}
	}
	return &Resolver{Logger: logger, Metrics: metrics}
}

// Resolve produces the canonical presence timeline for a campaign.
func (r *Resolver) Resolve(c *models.Campaign) (*Result, error) {
	if c == nil {
		return nil, models.NewValidationError("campaign", "nil campaign")
	}
	if len(c.Vehicles) == 0 {
		return &Result{Segments: []models.PresenceSegment{}, Warnings: []string{"campaign has no assigned vehicles"}}, nil
	}

	res := &Result{Segments: make([]models.PresenceSegment, 0, 64)}

	if c.CityPeriods.Mode == models.ScopeIndividual {
		for _, vehicleID := range c.Vehicles {
			r.resolveScope(c, vehicleID, vehicleID, res)
		}
	} else {
		// Shared mode: one logical plan replicated onto every vehicle.
		for _, vehicleID := range c.Vehicles {
			r.resolveScope(c, vehicleID, "", res)
		}
	}

	models.SortSegments(res.Segments)
	res.Warnings = append(res.Warnings, r.orphanScheduleWarnings(c)...)

	r.Metrics.IncrementResolverRuns("ok")
	r.Metrics.RecordResolverSegments(len(res.Segments))
	r.Logger.Debug("resolved campaign timeline",
		zap.String("campaign_id", c.ID),
		zap.Int("segments", len(res.Segments)),
		zap.Int("warnings", len(res.Warnings)),
	)
	return res, nil
}

// ResolveVehicle resolves the timeline restricted to a single vehicle.
func (r *Resolver) ResolveVehicle(c *models.Campaign, vehicleID string) (*Result, error) {
	full, err := r.Resolve(c)
	if err != nil {
		return nil, err
	}
	return &Result{
		Segments: models.SegmentsForVehicle(full.Segments, vehicleID),
		Warnings: full.Warnings,
	}, nil
}

// ResolveSpot resolves a spot's own plan against its parent campaign.
// Spots without a plan of their own inherit the parent timeline, narrowed
// to the spot's target vehicles and cities. Scope vehicles that are no
// longer assigned to the campaign are silently dropped.
func (r *Resolver) ResolveSpot(c *models.Campaign, s *models.Spot) (*Result, error) {
	if s == nil {
		return nil, models.NewValidationError("spot", "nil spot")
	}
	if !s.HasOwnPlan() {
		parent, err := r.Resolve(c)
		if err != nil {
			return nil, err
		}
		return &Result{Segments: filterSegments(parent.Segments, s), Warnings: parent.Warnings}, nil
	}

	overlay := &models.Campaign{
		ID:            c.ID,
		Name:          c.Name,
		Status:        c.Status,
		StartDate:     c.StartDate,
		EndDate:       c.EndDate,
		Vehicles:      spotVehicles(c, s),
		DailyHours:    c.DailyHours,
		CityPeriods:   s.SpotPeriods,
		CitySchedules: s.SpotSchedules,
	}
	res, err := r.Resolve(overlay)
	if err != nil {
		return nil, err
	}
	res.Segments = filterSegments(res.Segments, s)
	return res, nil
}

// spotVehicles intersects the spot's targeting with the vehicles still on
// the campaign, preserving campaign order.
func spotVehicles(c *models.Campaign, s *models.Spot) []string {
	if len(s.TargetVehicles) == 0 {
		return c.Vehicles
	}
	targeted := map[string]struct{}{}
	for _, v := range s.TargetVehicles {
		targeted[v] = struct{}{}
	}
	out := make([]string, 0, len(c.Vehicles))
	for _, v := range c.Vehicles {
		if _, ok := targeted[v]; ok {
			out = append(out, v)
		}
	}
	return out
}

func filterSegments(segs []models.PresenceSegment, s *models.Spot) []models.PresenceSegment {
	cities := map[string]struct{}{}
	for _, c := range s.TargetCities {
		cities[c] = struct{}{}
	}
	vehicles := map[string]struct{}{}
	for _, v := range s.TargetVehicles {
		vehicles[v] = struct{}{}
	}
	out := make([]models.PresenceSegment, 0, len(segs))
	for _, seg := range segs {
		if len(cities) > 0 {
			if _, ok := cities[seg.City]; !ok {
				continue
			}
		}
		if len(vehicles) > 0 {
			if _, ok := vehicles[seg.VehicleID]; !ok {
				continue
			}
		}
		out = append(out, seg)
	}
	return out
}

// resolveScope emits segments for one vehicle. scopeKey is "" in shared
// mode and the vehicle id in individual mode.
func (r *Resolver) resolveScope(c *models.Campaign, vehicleID, scopeKey string, res *Result) {
	for _, city := range c.CityPeriods.Cities() {
		periods := c.CityPeriods.PeriodsFor(scopeKey, city)
		for _, p := range periods {
			for d := p.Start; !d.After(p.End); d = d.AddDate(0, 0, 1) {
				r.emitDay(c, vehicleID, scopeKey, city, d, res)
			}
		}
	}
}

// emitDay resolves one (vehicle, city, date) cell into zero or more
// segments, splitting overnight sub-intervals at midnight.
func (r *Resolver) emitDay(c *models.Campaign, vehicleID, scopeKey, city string, date time.Time, res *Result) {
	plan, explicit := c.CitySchedules.PlanFor(scopeKey, city, date)
	if !explicit {
		plan = models.DayPlan{Active: true, Hours: c.DailyHours}
	}
	if !plan.Active {
		return
	}
	hours := plan.Hours
	if hours == "" {
		hours = c.DailyHours
	}
	ranges, err := ParseHours(hours)
	if err != nil {
		if hours != c.DailyHours && c.DailyHours != "" {
			// A corrupt explicit entry falls back to the campaign default.
			if fallback, ferr := ParseHours(c.DailyHours); ferr == nil {
				res.Warnings = append(res.Warnings, fmt.Sprintf("%s %s: unparseable hours %q, using daily hours", city, models.DateKey(date), hours))
				ranges = fallback
			} else {
				res.Warnings = append(res.Warnings, fmt.Sprintf("%s %s: unparseable hours %q, day skipped", city, models.DateKey(date), hours))
				return
			}
		} else {
			res.Warnings = append(res.Warnings, fmt.Sprintf("%s %s: unparseable hours %q, day skipped", city, models.DateKey(date), hours))
			return
		}
	}
	for _, hr := range ranges {
		if hr.End <= 24 {
			res.Segments = append(res.Segments, models.PresenceSegment{
				VehicleID: vehicleID, City: city, Date: date,
				HourStart: hr.Start, HourEnd: hr.End,
			})
			continue
		}
		// Overnight: split at midnight onto adjacent days.
		res.Segments = append(res.Segments, models.PresenceSegment{
			VehicleID: vehicleID, City: city, Date: date,
			HourStart: hr.Start, HourEnd: 24,
		})
		res.Segments = append(res.Segments, models.PresenceSegment{
			VehicleID: vehicleID, City: city, Date: date.AddDate(0, 0, 1),
			HourStart: 0, HourEnd: hr.End - 24,
		})
	}
}

// orphanScheduleWarnings reports explicit schedule entries whose dates lie
// outside every period for their scope. Such entries are never resolved
// into segments; the warning is the only trace they leave.
func (r *Resolver) orphanScheduleWarnings(c *models.Campaign) []string {
	var warnings []string
	check := func(scopeKey, city string) {
		periods := c.CityPeriods.PeriodsFor(scopeKey, city)
		for _, dateKey := range c.CitySchedules.DatesFor(scopeKey, city) {
			d, err := models.ParseDate(dateKey)
			if err != nil {
				warnings = append(warnings, fmt.Sprintf("%s: schedule entry with invalid date %q discarded", city, dateKey))
				continue
			}
			covered := false
			for _, p := range periods {
				if p.Contains(d) {
					covered = true
					break
				}
			}
			if !covered {
				warnings = append(warnings, fmt.Sprintf("%s: schedule entry for %s lies outside every period and was discarded", city, dateKey))
			}
		}
	}
	if c.CitySchedules.Mode == models.ScopeIndividual {
		for _, v := range c.Vehicles {
			for _, city := range c.CityPeriods.Cities() {
				check(v, city)
			}
		}
	} else {
		for _, city := range c.CityPeriods.Cities() {
			check("", city)
		}
	}
	return warnings
}
