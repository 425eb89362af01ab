package fleet

import (
	"fmt"
	"time"

	"go.uber.org/zap"

	"github.com/avasilescu/mobiplan/internal/models"
	"github.com/avasilescu/mobiplan/internal/observability"
)

// Reconciler repairs campaigns when a vehicle or driver becomes
// unavailable mid-flight. Replacements preserve history: past timeline
// stretches are never rewritten, a boundary is inserted instead.
type Reconciler struct {
	Store   models.PlanStore
	Logger  *zap.Logger
	Metrics observability.MetricsRegistry

	// now is swappable for tests.
	now func() time.Time
}

// NewReconciler constructs a Reconciler.
func NewReconciler(store models.PlanStore, logger *zap.Logger, metrics observability.MetricsRegistry) *Reconciler {
	if logger == nil {
		logger = zap.NewNop()
	}
	if metrics == nil {
		metrics = &observability.MockMetricsRegistry{}
	}
	return &Reconciler{Store: store, Logger: logger, Metrics: metrics, now: time.Now}
}

// ImpactedCampaigns lists campaigns a vehicle going unavailable at date
// effective would disturb: the vehicle is assigned, the campaign has not
// ended, and its status still occupies fleet.
func (rc *Reconciler) ImpactedCampaigns(vehicleID string, effective time.Time) []models.Campaign {
	var out []models.Campaign
	for _, c := range rc.Store.GetCampaignsByVehicle(vehicleID) {
		if c.EndDate.Before(effective) {
			continue
		}
		if c.Status != models.StatusPending && c.Status != models.StatusConfirmed {
			continue
		}
		out = append(out, c)
	}
	return out
}

// ReplaceVehicle substitutes newID for oldID in every impacted campaign,
// effective at a date. Campaigns that have not started yet get an outright
// swap; running campaigns get a timeline split at effective−1/effective.
// Returns the ids of the campaigns touched.
func (rc *Reconciler) ReplaceVehicle(oldID, newID string, effective time.Time) ([]string, error) {
	if oldID == newID {
		return nil, models.NewValidationError("vehicle_id", "replacement vehicle equals the replaced one")
	}
	if rc.Store.GetVehicle(newID) == nil {
		return nil, fmt.Errorf("replacement vehicle %s: %w", newID, models.ErrNotFound)
	}

	var touched []string
	for _, c := range rc.ImpactedCampaigns(oldID, effective) {
		if !c.HasVehicle(oldID) {
			continue
		}
		// The campaign's maps and slices alias the store snapshot.
		c = *c.Clone()
		if c.StartDate.Before(effective) {
			rc.splitVehicleTimeline(&c, oldID, newID, effective)
		} else {
			swapVehicleOutright(&c, oldID, newID)
		}
		remapScopeKeys(&c, oldID, newID)
		moveDriverOverride(&c, oldID, newID)
		c.UpdatedAt = rc.now().UTC()
		if err := rc.Store.UpdateCampaign(c); err != nil {
			return touched, fmt.Errorf("updating campaign %s: %w", c.ID, err)
		}
		touched = append(touched, c.ID)
		rc.Metrics.IncrementReconcilerSwaps("vehicle")
		rc.Logger.Info("vehicle replaced on campaign",
			zap.String("campaign_id", c.ID),
			zap.String("old_vehicle", oldID),
			zap.String("new_vehicle", newID),
			zap.Time("effective", effective),
		)
	}
	return touched, nil
}

// splitVehicleTimeline inserts the effective−1/effective boundary and
// appends the replacement stretch. The primary vehicle field is updated
// to whichever vehicle serves the later of today and the effective date,
// for consumers that only read a single vehicle id.
func (rc *Reconciler) splitVehicleTimeline(c *models.Campaign, oldID, newID string, effective time.Time) {
	if len(c.VehicleTimeline) == 0 {
		c.VehicleTimeline = []models.TimelineEntry{{
			ResourceID: c.PrimaryVehicle(),
			Start:      c.StartDate,
			End:        c.EndDate,
		}}
	}
	var next []models.TimelineEntry
	for _, e := range c.VehicleTimeline {
		switch {
		case e.ResourceID != oldID || e.End.Before(effective):
			next = append(next, e)
		case !e.Start.Before(effective):
			e.ResourceID = newID
			next = append(next, e)
		default:
			next = append(next,
				models.TimelineEntry{ResourceID: oldID, Start: e.Start, End: effective.AddDate(0, 0, -1)},
				models.TimelineEntry{ResourceID: newID, Start: effective, End: e.End},
			)
		}
	}
	c.VehicleTimeline = next

	ref := rc.now().UTC().Truncate(24 * time.Hour)
	if ref.Before(effective) {
		ref = effective
	}
	winner := c.VehicleOn(ref)
	replaceInList(c.Vehicles, oldID, newID)
	if winner != "" && len(c.Vehicles) > 0 {
		promotePrimary(c.Vehicles, winner)
	}
}

func swapVehicleOutright(c *models.Campaign, oldID, newID string) {
	replaceInList(c.Vehicles, oldID, newID)
	for i := range c.VehicleTimeline {
		if c.VehicleTimeline[i].ResourceID == oldID {
			c.VehicleTimeline[i].ResourceID = newID
		}
	}
	for i := range c.TransitPeriods {
		if c.TransitPeriods[i].VehicleID == oldID {
			c.TransitPeriods[i].VehicleID = newID
		}
	}
}

// remapScopeKeys moves individual-mode period and schedule plans from the
// replaced vehicle's key to the replacement's, so the plan survives the
// swap.
func remapScopeKeys(c *models.Campaign, oldID, newID string) {
	if c.CityPeriods.Mode == models.ScopeIndividual {
		if plan, ok := c.CityPeriods.ByVehicle[oldID]; ok {
			if _, taken := c.CityPeriods.ByVehicle[newID]; !taken {
				c.CityPeriods.ByVehicle[newID] = plan
			}
			delete(c.CityPeriods.ByVehicle, oldID)
		}
	}
	if c.CitySchedules.Mode == models.ScopeIndividual {
		if plan, ok := c.CitySchedules.ByVehicle[oldID]; ok {
			if _, taken := c.CitySchedules.ByVehicle[newID]; !taken {
				c.CitySchedules.ByVehicle[newID] = plan
			}
			delete(c.CitySchedules.ByVehicle, oldID)
		}
	}
}

func moveDriverOverride(c *models.Campaign, oldID, newID string) {
	if c.DriverOverrides == nil {
		return
	}
	if drv, ok := c.DriverOverrides[oldID]; ok {
		if _, taken := c.DriverOverrides[newID]; !taken {
			c.DriverOverrides[newID] = drv
		}
		delete(c.DriverOverrides, oldID)
	}
}

// ReplaceDriver mirrors ReplaceVehicle over the driver timeline and the
// per-vehicle driver overrides.
func (rc *Reconciler) ReplaceDriver(oldID, newID string, effective time.Time) ([]string, error) {
	if oldID == newID {
		return nil, models.NewValidationError("driver_id", "replacement driver equals the replaced one")
	}
	if rc.Store.GetDriver(newID) == nil {
		return nil, fmt.Errorf("replacement driver %s: %w", newID, models.ErrNotFound)
	}

	var touched []string
	for _, c := range rc.Store.GetAllCampaigns() {
		if c.EndDate.Before(effective) {
			continue
		}
		if c.Status != models.StatusPending && c.Status != models.StatusConfirmed {
			continue
		}
		if !driverAssigned(&c, oldID) {
			continue
		}
		c = *c.Clone()
		if c.StartDate.Before(effective) {
			splitDriverTimeline(&c, oldID, newID, effective)
		} else {
			for i := range c.DriverTimeline {
				if c.DriverTimeline[i].ResourceID == oldID {
					c.DriverTimeline[i].ResourceID = newID
				}
			}
		}
		for vehicle, drv := range c.DriverOverrides {
			if drv == oldID {
				c.DriverOverrides[vehicle] = newID
			}
		}
		c.UpdatedAt = rc.now().UTC()
		if err := rc.Store.UpdateCampaign(c); err != nil {
			return touched, fmt.Errorf("updating campaign %s: %w", c.ID, err)
		}
		touched = append(touched, c.ID)
		rc.Metrics.IncrementReconcilerSwaps("driver")
	}
	return touched, nil
}

func driverAssigned(c *models.Campaign, driverID string) bool {
	for _, drv := range c.DriverOverrides {
		if drv == driverID {
			return true
		}
	}
	for _, e := range c.DriverTimeline {
		if e.ResourceID == driverID {
			return true
		}
	}
	return false
}

func splitDriverTimeline(c *models.Campaign, oldID, newID string, effective time.Time) {
	if len(c.DriverTimeline) == 0 {
		c.DriverTimeline = []models.TimelineEntry{{
			ResourceID: oldID,
			Start:      c.StartDate,
			End:        c.EndDate,
		}}
	}
	var next []models.TimelineEntry
	for _, e := range c.DriverTimeline {
		switch {
		case e.ResourceID != oldID || e.End.Before(effective):
			next = append(next, e)
		case !e.Start.Before(effective):
			e.ResourceID = newID
			next = append(next, e)
		default:
			next = append(next,
				models.TimelineEntry{ResourceID: oldID, Start: e.Start, End: effective.AddDate(0, 0, -1)},
				models.TimelineEntry{ResourceID: newID, Start: effective, End: e.End},
			)
		}
	}
	c.DriverTimeline = next
}

func replaceInList(list []string, oldID, newID string) {
	for i, v := range list {
		if v == oldID {
			list[i] = newID
		}
	}
}

// promotePrimary moves winner to the front of the vehicle list.
func promotePrimary(list []string, winner string) {
	for i, v := range list {
		if v == winner && i > 0 {
			copy(list[1:i+1], list[0:i])
			list[0] = winner
			return
		}
	}
}
