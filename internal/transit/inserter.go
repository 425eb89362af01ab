package transit

import (
	"time"

	"go.uber.org/zap"

	"github.com/avasilescu/mobiplan/internal/models"
	"github.com/avasilescu/mobiplan/internal/schedule"
)

// departureSlack keeps a short buffer between the end of a broadcast leg
// and the planned departure (15 minutes).
const departureSlack = 0.25

// LegConflict flags two adjacent legs that leave too little time for the
// vehicle to relocate between their cities.
type LegConflict struct {
	VehicleID     string                 `json:"vehicle_id"`
	From          models.PresenceSegment `json:"from"`
	To            models.PresenceSegment `json:"to"`
	GapHours      float64                `json:"gap_hours"`
	RequiredHours float64                `json:"required_hours"`
}

// Plan is the inserter output: feasible auto-transit segments plus the
// infeasible leg pairs.
type Plan struct {
	Transits  []models.TransitPeriod `json:"transits"`
	Conflicts []LegConflict          `json:"conflicts"`
}

// Inserter plans transit between consecutive city legs.
type Inserter struct {
	Matrix *Matrix
	Logger *zap.Logger
}

// NewInserter constructs an Inserter.
func NewInserter(matrix *Matrix, logger *zap.Logger) *Inserter {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &Inserter{Matrix: matrix, Logger: logger}
}

// PlanVehicle walks one vehicle's time-ordered presence segments and, for
// each change of city, either emits an auto-transit window or flags the
// pair as conflicting. Manual transit periods are authoritative: any auto
// candidate overlapping one is suppressed.
func (ins *Inserter) PlanVehicle(vehicleID string, segs []models.PresenceSegment, manual []models.TransitPeriod) *Plan {
	plan := &Plan{}
	legs := models.SegmentsForVehicle(segs, vehicleID)
	if len(legs) < 2 {
		return plan
	}

	for i := 0; i+1 < len(legs); i++ {
		cur, next := legs[i], legs[i+1]
		if cur.City == next.City {
			continue
		}
		dist, ok := ins.Matrix.Lookup(cur.City, next.City)
		if !ok || dist.Hours <= 0 {
			// Unknown pair: no auto-transit and no conflict either; the
			// planner has nothing to base a judgement on.
			continue
		}

		gap := next.StartTime().Sub(cur.EndTime()).Hours()
		switch {
		case gap < dist.Hours:
			plan.Conflicts = append(plan.Conflicts, LegConflict{
				VehicleID:     vehicleID,
				From:          cur,
				To:            next,
				GapHours:      gap,
				RequiredHours: dist.Hours,
			})
		case gap < dist.Hours+24:
			tp := ins.buildAutoTransit(vehicleID, cur, next, dist, gap)
			if overlapsManual(tp, manual) {
				continue
			}
			plan.Transits = append(plan.Transits, tp)
		default:
			// A day or more of slack: leave the gap unannotated.
		}
	}

	if len(plan.Conflicts) > 0 {
		ins.Logger.Debug("transit conflicts found",
			zap.String("vehicle_id", vehicleID),
			zap.Int("conflicts", len(plan.Conflicts)),
		)
	}
	return plan
}

// PlanCampaign runs PlanVehicle for every vehicle on the campaign's
// resolved timeline.
func (ins *Inserter) PlanCampaign(c *models.Campaign, segs []models.PresenceSegment) *Plan {
	plan := &Plan{}
	for _, v := range c.Vehicles {
		sub := ins.PlanVehicle(v, segs, c.TransitPeriods)
		plan.Transits = append(plan.Transits, sub.Transits...)
		plan.Conflicts = append(plan.Conflicts, sub.Conflicts...)
	}
	return plan
}

// buildAutoTransit schedules the earliest feasible relocation window
// after the departure leg ends.
func (ins *Inserter) buildAutoTransit(vehicleID string, cur, next models.PresenceSegment, dist Distance, gap float64) models.TransitPeriod {
	departHour := cur.HourEnd + departureSlack
	departDate := cur.Date
	for departHour >= 24 {
		departHour -= 24
		departDate = departDate.AddDate(0, 0, 1)
	}
	arrive := departDate.Add(time.Duration((departHour + dist.Hours) * float64(time.Hour)))
	arriveDate := time.Date(arrive.Year(), arrive.Month(), arrive.Day(), 0, 0, 0, 0, time.UTC)

	return models.TransitPeriod{
		VehicleID:       vehicleID,
		StartDate:       departDate,
		EndDate:         arriveDate,
		OriginCity:      cur.City,
		DestinationCity: next.City,
		Hours:           schedule.FormatHours([]schedule.HourRange{{Start: departHour, End: departHour + dist.Hours}}),
		Km:              dist.Km,
		DurationHours:   dist.Hours,
		Auto:            true,
	}
}

// overlapsManual reports whether an auto candidate intersects a manual
// transit entry for the same vehicle.
func overlapsManual(tp models.TransitPeriod, manual []models.TransitPeriod) bool {
	for _, m := range manual {
		if m.Auto || m.VehicleID != tp.VehicleID {
			continue
		}
		if !m.StartDate.After(tp.EndDate) && !m.EndDate.Before(tp.StartDate) {
			return true
		}
	}
	return false
}
