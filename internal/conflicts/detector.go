package conflicts

import (
	"fmt"
	"time"

	"go.uber.org/zap"

	"github.com/avasilescu/mobiplan/internal/models"
	"github.com/avasilescu/mobiplan/internal/observability"
	"github.com/avasilescu/mobiplan/internal/schedule"
)

// Detector finds campaigns competing for the same vehicle hours. It is run
// as a pre-save check, so the candidate may not exist in the store yet.
type Detector struct {
	Store    models.PlanStore
	Resolver *schedule.Resolver
	Logger   *zap.Logger
	Metrics  observability.MetricsRegistry
}

// NewDetector constructs a Detector.
func NewDetector(store models.PlanStore, resolver *schedule.Resolver, logger *zap.Logger, metrics observability.MetricsRegistry) *Detector {
	if logger == nil {
		logger = zap.NewNop()
	}
	if metrics == nil {
		metrics = &observability.MockMetricsRegistry{}
	}
	if resolver == nil {
		resolver = schedule.NewResolver(logger, metrics)
	}
	return &Detector{Store: store, Resolver: resolver, Logger: logger, Metrics: metrics}
}

// overlapAgg accumulates conflict evidence while scanning segment pairs.
type overlapAgg struct {
	item     models.ConflictItem
	blocking bool
}

// campaignAgg groups one other campaign's aggregates across all shared
// vehicles, so the report carries a single item per conflicting campaign
// and type.
type campaignAgg struct {
	overlap *overlapAgg
	transit *overlapAgg
}

// Check resolves the candidate campaign and compares it, vehicle by
// vehicle, against every other schedulable campaign sharing a vehicle.
// excludeID additionally skips one stored campaign, used when checking an
// edited copy against the store. The report carries one item per
// conflicting campaign and type, however many vehicles they share.
// Exclusivity on either side makes the overlap blocking; otherwise it is
// a warning. Manual transit periods of other campaigns block outright,
// the vehicle is on the road.
func (d *Detector) Check(candidate *models.Campaign, excludeID string) (*models.ConflictReport, error) {
	res, err := d.Resolver.Resolve(candidate)
	if err != nil {
		return nil, fmt.Errorf("resolving candidate timeline: %w", err)
	}

	report := &models.ConflictReport{}
	aggs := make(map[string]*campaignAgg)
	var order []string
	seen := make(map[string]bool)
	for _, v := range candidate.Vehicles {
		mine := models.SegmentsForVehicle(res.Segments, v)
		if len(mine) == 0 {
			continue
		}
		for _, other := range d.Store.GetCampaignsByVehicle(v) {
			if other.ID == candidate.ID || other.ID == excludeID || !other.Status.Schedulable() {
				continue
			}
			key := other.ID + "|" + v
			if seen[key] {
				continue
			}
			seen[key] = true
			agg := aggs[other.ID]
			if agg == nil {
				agg = &campaignAgg{}
				aggs[other.ID] = agg
				order = append(order, other.ID)
			}
			if err := d.compareAgainst(candidate, &other, v, mine, agg); err != nil {
				return nil, err
			}
		}
	}

	for _, id := range order {
		for _, agg := range []*overlapAgg{aggs[id].overlap, aggs[id].transit} {
			if agg == nil {
				continue
			}
			if agg.blocking {
				report.Blocking = append(report.Blocking, agg.item)
			} else {
				report.Warnings = append(report.Warnings, agg.item)
			}
		}
	}

	for _, item := range report.Blocking {
		d.Metrics.IncrementConflicts(item.Type)
	}
	for _, item := range report.Warnings {
		d.Metrics.IncrementConflicts(item.Type)
	}
	if report.HasBlocking() {
		d.Logger.Info("blocking conflicts detected",
			zap.String("campaign_id", candidate.ID),
			zap.Int("blocking", len(report.Blocking)),
			zap.Int("warnings", len(report.Warnings)),
		)
	}
	return report, nil
}

// compareAgainst scans one other campaign's segments for the vehicle and
// extends the per-campaign aggregate, so a conflict spanning several
// shared vehicles still yields one item per type.
func (d *Detector) compareAgainst(candidate, other *models.Campaign, vehicleID string, mine []models.PresenceSegment, agg *campaignAgg) error {
	otherRes, err := d.Resolver.ResolveVehicle(other, vehicleID)
	if err != nil {
		return fmt.Errorf("resolving campaign %s: %w", other.ID, err)
	}

	for _, sc := range mine {
		for _, sx := range otherRes.Segments {
			if !sc.OverlapsHours(sx) {
				continue
			}
			agg.overlap = extend(agg.overlap, models.ConflictItem{
				OtherCampaignID:   other.ID,
				Client:            other.Client,
				Name:              other.Name,
				Vehicles:          []string{vehicleID},
				City:              sx.City,
				FirstConflictDate: sc.Date,
				LastConflictDate:  sc.Date,
				Type:              overlapType(candidate, other),
			}, candidate.Exclusive || other.Exclusive, sc.Date)
		}
		for _, tp := range other.TransitPeriods {
			if tp.VehicleID != vehicleID || !transitBlocks(tp, sc) {
				continue
			}
			agg.transit = extend(agg.transit, models.ConflictItem{
				OtherCampaignID:   other.ID,
				Client:            other.Client,
				Name:              other.Name,
				Vehicles:          []string{vehicleID},
				City:              tp.DestinationCity,
				FirstConflictDate: sc.Date,
				LastConflictDate:  sc.Date,
				Type:              models.ConflictTypeTransit,
			}, true, sc.Date)
		}
	}
	return nil
}

func overlapType(a, b *models.Campaign) string {
	if a.Exclusive || b.Exclusive {
		return models.ConflictTypeExclusive
	}
	return models.ConflictTypeOverlap
}

// extend widens the aggregate's date window, keeping the earliest first
// date and the latest last date, and collects the vehicles involved.
func extend(agg *overlapAgg, item models.ConflictItem, blocking bool, date time.Time) *overlapAgg {
	if agg == nil {
		return &overlapAgg{item: item, blocking: blocking}
	}
	if date.Before(agg.item.FirstConflictDate) {
		agg.item.FirstConflictDate = date
	}
	if date.After(agg.item.LastConflictDate) {
		agg.item.LastConflictDate = date
	}
	for _, v := range item.Vehicles {
		if !containsVehicle(agg.item.Vehicles, v) {
			agg.item.Vehicles = append(agg.item.Vehicles, v)
		}
	}
	agg.blocking = agg.blocking || blocking
	return agg
}

func containsVehicle(list []string, id string) bool {
	for _, v := range list {
		if v == id {
			return true
		}
	}
	return false
}

// transitBlocks reports whether a manual transit period occupies the
// vehicle during the segment. Auto periods are derived data and do not
// claim the vehicle. A period without parseable hours blocks the whole
// day.
func transitBlocks(tp models.TransitPeriod, seg models.PresenceSegment) bool {
	if tp.Auto {
		return false
	}
	if seg.Date.Before(tp.StartDate) || seg.Date.After(tp.EndDate) {
		return false
	}
	ranges, err := schedule.ParseHours(tp.Hours)
	if err != nil {
		return true
	}
	for _, r := range ranges {
		if seg.HourStart < r.End && r.Start < seg.HourEnd {
			return true
		}
	}
	return false
}
