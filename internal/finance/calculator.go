package finance

import (
	"go.uber.org/zap"

	"github.com/avasilescu/mobiplan/internal/models"
)

// DistanceSource records which rule produced the campaign distance.
type DistanceSource string

const (
	DistanceFromOverrides DistanceSource = "daily_overrides"
	DistanceFromKnown     DistanceSource = "known_total"
	DistanceFromTimeline  DistanceSource = "timeline"
)

// Report is the financial outcome for a campaign.
type Report struct {
	DistanceKm     float64        `json:"distance_km"`
	DistanceSource DistanceSource `json:"distance_source"`
	VariableCost   float64        `json:"variable_cost"`
	FixedCosts     float64        `json:"fixed_costs"`
	TotalCost      float64        `json:"total_cost"`
	Revenue        float64        `json:"revenue"`
	Profit         float64        `json:"profit"`
	ROIPct         float64        `json:"roi_pct"`
	// ROIDefined is false when total cost is zero and ROI has no meaning.
	ROIDefined bool `json:"roi_defined"`
}

// Calculator derives distance and cost figures from a campaign and its
// resolved timeline.
type Calculator struct {
	Logger *zap.Logger
}

// NewCalculator constructs a Calculator.
func NewCalculator(logger *zap.Logger) *Calculator {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &Calculator{Logger: logger}
}

// Distance selects the campaign distance: explicit per-day overrides win,
// then a known odometer total, then an estimate from presence hours at the
// planned speed with stationing time deducted.
func (calc *Calculator) Distance(c *models.Campaign, segs []models.PresenceSegment) (float64, DistanceSource) {
	if len(c.DailyDistanceKm) > 0 {
		var sum float64
		for _, km := range c.DailyDistanceKm {
			sum += km
		}
		return sum, DistanceFromOverrides
	}
	if c.KnownDistanceTotalKm > 0 {
		return c.KnownDistanceTotalKm, DistanceFromKnown
	}
	driveShare := 1.0 - c.StationingMinPerHour/60.0
	if driveShare < 0 {
		driveShare = 0
	}
	var km float64
	for _, seg := range segs {
		km += seg.Hours() * driveShare * c.AvgSpeedKmh
	}
	return km, DistanceFromTimeline
}

// Calculate produces the full financial report.
func (calc *Calculator) Calculate(c *models.Campaign, segs []models.PresenceSegment) *Report {
	km, source := calc.Distance(c, segs)
	rep := &Report{
		DistanceKm:     km,
		DistanceSource: source,
		VariableCost:   km * c.CostPerKm,
		FixedCosts:     c.FixedCosts,
		Revenue:        c.ExpectedRevenue,
	}
	rep.TotalCost = rep.VariableCost + rep.FixedCosts
	rep.Profit = rep.Revenue - rep.TotalCost
	if rep.TotalCost > 0 {
		rep.ROIPct = 100 * rep.Profit / rep.TotalCost
		rep.ROIDefined = true
	}
	return rep
}
