package audience

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/avasilescu/mobiplan/internal/models"
)

type fakeProfiles struct {
	records map[string]models.CityRecord
	events  map[string][]models.SpecialEvent
}

func (f *fakeProfiles) EffectiveRecord(city string, date time.Time) (models.CityRecord, bool) {
	rec, ok := f.records[city]
	return rec, ok
}

func (f *fakeProfiles) EventMultipliers(city string, date time.Time) (float64, float64) {
	for _, e := range f.events[city] {
		if e.Covers(date) {
			return e.TrafficMultiplier, e.PedestrianMultiplier
		}
	}
	return 1.0, 1.0
}

func day(y int, m time.Month, d int) time.Time {
	return time.Date(y, m, d, 0, 0, 0, 0, time.UTC)
}

func testRecord() models.CityRecord {
	return models.CityRecord{
		Population:           100_000,
		ActivePopulationPct:  60,
		DailyTrafficTotal:    50_000,
		DailyPedestrianTotal: 50_000,
		Modal:                models.ModalSplit{Auto: 35, Walking: 27, Cycling: 4, PublicTransport: 34},
		AvgCommuteDistanceKm: 8,
	}
}

func TestCalculateSingleDayEightHours(t *testing.T) {
	profiles := &fakeProfiles{records: map[string]models.CityRecord{"Arad": testRecord()}}
	c := &models.Campaign{
		Exclusive:       false,
		SpotDurationSec: 10,
		LoopDurationSec: 60,
	}
	segs := []models.PresenceSegment{
		{VehicleID: "v1", City: "Arad", Date: day(2026, 5, 4), HourStart: 9, HourEnd: 17},
	}

	est := NewCalculator(profiles, nil).Calculate(c, segs, 160)

	assert.InDelta(t, 1.0/6.0, est.ShareOfVoice, 1e-9)
	assert.InDelta(t, 0.7, est.VisibilityFactor, 1e-9)
	// 50000 × 8/24 × 0.35 × 1.65 × 0.7 × 1/6
	assert.InDelta(t, 1122.9, est.ImpressionsAuto, 0.5)
	// 50000 × 8/24 × (0.27+0.04) × 0.7 × 1/6
	assert.InDelta(t, 602.8, est.ImpressionsPedestrian, 0.5)
	assert.InDelta(t, est.ImpressionsAuto+est.ImpressionsPedestrian, est.ImpressionsTotal, 1e-9)

	// 160 km / 8 km commute = 20 loops, full coverage.
	assert.InDelta(t, 20.0, est.RouteLoops, 1e-9)
	assert.InDelta(t, 60_000*0.6, est.Reach, 1e-6)
	assert.InDelta(t, est.ImpressionsTotal/est.Reach, est.OTS, 1e-9)
	assert.Empty(t, est.Warnings)
}

func TestCalculateExclusiveSkipsSharingFactors(t *testing.T) {
	profiles := &fakeProfiles{records: map[string]models.CityRecord{"Arad": testRecord()}}
	c := &models.Campaign{Exclusive: true, SpotDurationSec: 10, LoopDurationSec: 60}
	segs := []models.PresenceSegment{
		{VehicleID: "v1", City: "Arad", Date: day(2026, 5, 4), HourStart: 9, HourEnd: 17},
	}

	est := NewCalculator(profiles, nil).Calculate(c, segs, 160)
	assert.InDelta(t, 1.0, est.ShareOfVoice, 1e-9)
	assert.InDelta(t, 1.0, est.VisibilityFactor, 1e-9)
	// Same flows without the 0.7 × 1/6 discount.
	assert.InDelta(t, 50_000.0/24*8*0.35*1.65, est.ImpressionsAuto, 0.5)
}

func TestCalculateEventMultiplierApplies(t *testing.T) {
	profiles := &fakeProfiles{
		records: map[string]models.CityRecord{"Arad": testRecord()},
		events: map[string][]models.SpecialEvent{"Arad": {{
			Name:                 "Festival",
			StartDate:            day(2026, 5, 4),
			EndDate:              day(2026, 5, 5),
			TrafficMultiplier:    2.0,
			PedestrianMultiplier: 3.0,
		}}},
	}
	c := &models.Campaign{Exclusive: true}
	segs := []models.PresenceSegment{
		{VehicleID: "v1", City: "Arad", Date: day(2026, 5, 4), HourStart: 9, HourEnd: 17},
		{VehicleID: "v1", City: "Arad", Date: day(2026, 5, 10), HourStart: 9, HourEnd: 17},
	}

	est := NewCalculator(profiles, nil).Calculate(c, segs, 0)
	// Day one doubled traffic, day two at baseline: 3× one plain day.
	plainAuto := 50_000.0 / 24 * 8 * 0.35 * 1.65
	assert.InDelta(t, 3*plainAuto, est.ImpressionsAuto, 0.5)
	plainPed := 50_000.0 / 24 * 8 * 0.31
	assert.InDelta(t, 4*plainPed, est.ImpressionsPedestrian, 0.5)
}

func TestCalculateMissingProfileWarnsNotFails(t *testing.T) {
	profiles := &fakeProfiles{records: map[string]models.CityRecord{}}
	c := &models.Campaign{}
	segs := []models.PresenceSegment{
		{VehicleID: "v1", City: "Nowhere", Date: day(2026, 5, 4), HourStart: 9, HourEnd: 17},
	}

	est := NewCalculator(profiles, nil).Calculate(c, segs, 100)
	assert.Zero(t, est.ImpressionsTotal)
	assert.Zero(t, est.Reach)
	assert.InDelta(t, 1.0, est.OTS, 1e-9)
	require.Len(t, est.Warnings, 1)
	assert.Contains(t, est.Warnings[0], "Nowhere")
}

func TestCalculatePartialCoverageScalesReach(t *testing.T) {
	profiles := &fakeProfiles{records: map[string]models.CityRecord{"Arad": testRecord()}}
	c := &models.Campaign{Exclusive: true}
	segs := []models.PresenceSegment{
		{VehicleID: "v1", City: "Arad", Date: day(2026, 5, 4), HourStart: 9, HourEnd: 17},
	}

	// 40 km / 8 km commute = 5 loops, half coverage.
	est := NewCalculator(profiles, nil).Calculate(c, segs, 40)
	assert.InDelta(t, 60_000*0.6*0.5, est.Reach, 1e-6)
}

func TestCalculateTwoCitiesPopulationWeightedModal(t *testing.T) {
	small := testRecord()
	small.Population = 50_000
	small.Modal = models.ModalSplit{Auto: 55, Walking: 20, Cycling: 5, PublicTransport: 20}
	profiles := &fakeProfiles{records: map[string]models.CityRecord{
		"Arad":   testRecord(),
		"Lipova": small,
	}}
	c := &models.Campaign{Exclusive: true}
	segs := []models.PresenceSegment{
		{VehicleID: "v1", City: "Arad", Date: day(2026, 5, 4), HourStart: 9, HourEnd: 13},
		{VehicleID: "v1", City: "Lipova", Date: day(2026, 5, 5), HourStart: 9, HourEnd: 13},
	}

	est := NewCalculator(profiles, nil).Calculate(c, segs, 0)
	// Weighted auto share: (35×100k + 55×50k) / 150k = 41.6667 %.
	flow := 2 * (50_000.0 / 24 * 4)
	assert.InDelta(t, flow*(125.0/3.0)/100*1.65, est.ImpressionsAuto, 0.5)
}
