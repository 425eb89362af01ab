package finance

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/avasilescu/mobiplan/internal/models"
)

func day(y int, m time.Month, d int) time.Time {
	return time.Date(y, m, d, 0, 0, 0, 0, time.UTC)
}

func TestDistancePreferenceOrder(t *testing.T) {
	calc := NewCalculator(nil)
	segs := []models.PresenceSegment{
		{VehicleID: "v1", City: "Arad", Date: day(2026, 6, 1), HourStart: 9, HourEnd: 17},
	}
	c := &models.Campaign{
		DailyDistanceKm:      map[string]float64{"2026-06-01": 120, "2026-06-02": 80},
		KnownDistanceTotalKm: 500,
		AvgSpeedKmh:          30,
	}

	km, src := calc.Distance(c, segs)
	assert.Equal(t, DistanceFromOverrides, src)
	assert.InDelta(t, 200.0, km, 1e-9)

	c.DailyDistanceKm = nil
	km, src = calc.Distance(c, segs)
	assert.Equal(t, DistanceFromKnown, src)
	assert.InDelta(t, 500.0, km, 1e-9)

	c.KnownDistanceTotalKm = 0
	km, src = calc.Distance(c, segs)
	assert.Equal(t, DistanceFromTimeline, src)
	assert.InDelta(t, 240.0, km, 1e-9)
}

func TestDistanceDeductsStationing(t *testing.T) {
	calc := NewCalculator(nil)
	segs := []models.PresenceSegment{
		{VehicleID: "v1", City: "Arad", Date: day(2026, 6, 1), HourStart: 10, HourEnd: 14},
	}
	c := &models.Campaign{AvgSpeedKmh: 30, StationingMinPerHour: 15}

	// 4 h × (1 − 15/60) × 30 km/h = 90 km.
	km, _ := calc.Distance(c, segs)
	assert.InDelta(t, 90.0, km, 1e-9)
}

func TestCalculateProfitAndROI(t *testing.T) {
	calc := NewCalculator(nil)
	c := &models.Campaign{
		KnownDistanceTotalKm: 1000,
		CostPerKm:            2,
		FixedCosts:           500,
		ExpectedRevenue:      5000,
	}

	rep := calc.Calculate(c, nil)
	assert.InDelta(t, 2500.0, rep.TotalCost, 1e-9)
	assert.InDelta(t, 2500.0, rep.Profit, 1e-9)
	require.True(t, rep.ROIDefined)
	assert.InDelta(t, 100.0, rep.ROIPct, 1e-9)
}

func TestCalculateZeroCostROIUndefined(t *testing.T) {
	rep := NewCalculator(nil).Calculate(&models.Campaign{ExpectedRevenue: 1000}, nil)
	assert.Zero(t, rep.TotalCost)
	assert.False(t, rep.ROIDefined)
	assert.Zero(t, rep.ROIPct)
}

func TestROIMonotoneInDistance(t *testing.T) {
	calc := NewCalculator(nil)
	base := models.Campaign{CostPerKm: 1.5, FixedCosts: 300, ExpectedRevenue: 4000}

	prev := 1e18
	for _, km := range []float64{100, 500, 1000, 2000, 5000} {
		c := base
		c.KnownDistanceTotalKm = km
		rep := calc.Calculate(&c, nil)
		require.True(t, rep.ROIDefined)
		assert.Less(t, rep.ROIPct, prev, "ROI must strictly decrease as distance grows")
		prev = rep.ROIPct
	}
}
