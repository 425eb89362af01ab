package schedule

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"

	"github.com/avasilescu/mobiplan/internal/models"
)

func day(y int, m time.Month, d int) time.Time {
	return time.Date(y, m, d, 0, 0, 0, 0, time.UTC)
}

func sharedCampaign(vehicles []string, cities map[string][]models.Period, hours string) *models.Campaign {
	return &models.Campaign{
		ID:         "c-test",
		Name:       "Test",
		Status:     models.StatusConfirmed,
		StartDate:  day(2026, 1, 1),
		EndDate:    day(2026, 12, 31),
		Vehicles:   vehicles,
		DailyHours: hours,
		CityPeriods: models.PeriodMap{
			Mode:   models.ScopeShared,
			ByCity: cities,
		},
		CitySchedules: models.ScheduleMap{Mode: models.ScopeShared},
	}
}

func TestResolveSharedTwoCities(t *testing.T) {
	// Jan 1-5, cities A and B, 09:00-17:00, one vehicle: 40 presence-hours
	// per city, 80 attributed in total, 40 deduplicated vehicle-hours.
	p := []models.Period{{Start: day(2026, 1, 1), End: day(2026, 1, 5)}}
	c := sharedCampaign([]string{"v1"}, map[string][]models.Period{"Arad": p, "Brasov": p}, "09:00-17:00")

	r := NewResolver(zap.NewNop(), nil)
	res, err := r.Resolve(c)
	require.NoError(t, err)

	require.Len(t, res.Segments, 10)
	perCity := map[string]float64{}
	for _, s := range res.Segments {
		perCity[s.City] += s.Hours()
	}
	assert.InDelta(t, 40.0, perCity["Arad"], 1e-9)
	assert.InDelta(t, 40.0, perCity["Brasov"], 1e-9)
	assert.InDelta(t, 80.0, models.TotalHours(res.Segments), 1e-9)
	assert.InDelta(t, 40.0, VehicleHours(res.Segments), 1e-9)
}

func TestResolveNearbyTourConsecutiveLegs(t *testing.T) {
	// One vehicle touring three cities, two days each over a six-day
	// window, 10:00-14:00: 24 vehicle-hours, not 72.
	c := sharedCampaign([]string{"v1"}, map[string][]models.Period{
		"Arad":   {{Start: day(2026, 3, 1), End: day(2026, 3, 2)}},
		"Brasov": {{Start: day(2026, 3, 3), End: day(2026, 3, 4)}},
		"Cluj":   {{Start: day(2026, 3, 5), End: day(2026, 3, 6)}},
	}, "10:00-14:00")

	res, err := NewResolver(zap.NewNop(), nil).Resolve(c)
	require.NoError(t, err)

	assert.Len(t, res.Segments, 6)
	assert.InDelta(t, 24.0, models.TotalHours(res.Segments), 1e-9)
	assert.InDelta(t, 24.0, VehicleHours(res.Segments), 1e-9)
}

func TestResolvePurity(t *testing.T) {
	p := []models.Period{{Start: day(2026, 1, 1), End: day(2026, 1, 10)}}
	c := sharedCampaign([]string{"v1", "v2"}, map[string][]models.Period{"Arad": p}, "08:00-20:00")

	r := NewResolver(zap.NewNop(), nil)
	first, err := r.Resolve(c)
	require.NoError(t, err)
	second, err := r.Resolve(c)
	require.NoError(t, err)

	assert.Equal(t, first.Segments, second.Segments)
	assert.Equal(t, first.Warnings, second.Warnings)
}

func TestResolveSharedEqualsNVehicleCopies(t *testing.T) {
	p := []models.Period{{Start: day(2026, 2, 1), End: day(2026, 2, 3)}}
	cities := map[string][]models.Period{"Arad": p, "Brasov": p}

	multi := sharedCampaign([]string{"v1", "v2", "v3"}, cities, "09:00-13:00")
	single := sharedCampaign([]string{"v1"}, cities, "09:00-13:00")

	r := NewResolver(zap.NewNop(), nil)
	multiRes, err := r.Resolve(multi)
	require.NoError(t, err)
	singleRes, err := r.Resolve(single)
	require.NoError(t, err)

	assert.Len(t, multiRes.Segments, 3*len(singleRes.Segments))
	for _, v := range multi.Vehicles {
		got := models.SegmentsForVehicle(multiRes.Segments, v)
		require.Len(t, got, len(singleRes.Segments))
		for i, s := range got {
			want := singleRes.Segments[i]
			assert.Equal(t, want.City, s.City)
			assert.Equal(t, want.Date, s.Date)
			assert.Equal(t, want.HourStart, s.HourStart)
			assert.Equal(t, want.HourEnd, s.HourEnd)
		}
	}
}

func TestResolveScopeRoundtrip(t *testing.T) {
	// Every resolver-emitted (vehicle, city, date) triple must derive from
	// the period maps, honoring active=false skips.
	c := sharedCampaign([]string{"v1"}, map[string][]models.Period{
		"Arad": {{Start: day(2026, 4, 1), End: day(2026, 4, 3)}},
	}, "09:00-17:00")
	c.CitySchedules.ByCity = map[string]map[string]models.DayPlan{
		"Arad": {
			"2026-04-02": {Active: false},
			"2026-04-03": {Active: true, Hours: "10:00-12:00"},
		},
	}

	res, err := NewResolver(zap.NewNop(), nil).Resolve(c)
	require.NoError(t, err)

	var dates []string
	for _, s := range res.Segments {
		dates = append(dates, models.DateKey(s.Date))
	}
	assert.Equal(t, []string{"2026-04-01", "2026-04-03"}, dates)
	assert.InDelta(t, 8.0, res.Segments[0].Hours(), 1e-9)
	assert.InDelta(t, 2.0, res.Segments[1].Hours(), 1e-9)
}

func TestResolveIndividualMode(t *testing.T) {
	c := &models.Campaign{
		ID:        "c-ind",
		Name:      "Individual",
		Status:    models.StatusConfirmed,
		StartDate: day(2026, 5, 1),
		EndDate:   day(2026, 5, 31),
		Vehicles:  []string{"v1", "v2"},
		DailyHours: "09:00-17:00",
		CityPeriods: models.PeriodMap{
			Mode: models.ScopeIndividual,
			ByVehicle: map[string]map[string][]models.Period{
				"v1": {"Arad": {{Start: day(2026, 5, 1), End: day(2026, 5, 2)}}},
				"v2": {"Cluj": {{Start: day(2026, 5, 1), End: day(2026, 5, 3)}}},
			},
		},
		CitySchedules: models.ScheduleMap{Mode: models.ScopeIndividual},
	}

	res, err := NewResolver(zap.NewNop(), nil).Resolve(c)
	require.NoError(t, err)

	v1 := models.SegmentsForVehicle(res.Segments, "v1")
	v2 := models.SegmentsForVehicle(res.Segments, "v2")
	require.Len(t, v1, 2)
	require.Len(t, v2, 3)
	for _, s := range v1 {
		assert.Equal(t, "Arad", s.City)
	}
	for _, s := range v2 {
		assert.Equal(t, "Cluj", s.City)
	}
}

func TestResolveOvernightSplitsAtMidnight(t *testing.T) {
	c := sharedCampaign([]string{"v1"}, map[string][]models.Period{
		"Arad": {{Start: day(2026, 6, 1), End: day(2026, 6, 1)}},
	}, "22:00-02:00")

	res, err := NewResolver(zap.NewNop(), nil).Resolve(c)
	require.NoError(t, err)

	require.Len(t, res.Segments, 2)
	assert.Equal(t, day(2026, 6, 1), res.Segments[0].Date)
	assert.InDelta(t, 22.0, res.Segments[0].HourStart, 1e-9)
	assert.InDelta(t, 24.0, res.Segments[0].HourEnd, 1e-9)
	assert.Equal(t, day(2026, 6, 2), res.Segments[1].Date)
	assert.InDelta(t, 0.0, res.Segments[1].HourStart, 1e-9)
	assert.InDelta(t, 2.0, res.Segments[1].HourEnd, 1e-9)
}

func TestResolveOrphanScheduleWarned(t *testing.T) {
	c := sharedCampaign([]string{"v1"}, map[string][]models.Period{
		"Arad": {{Start: day(2026, 7, 1), End: day(2026, 7, 2)}},
	}, "09:00-17:00")
	c.CitySchedules.ByCity = map[string]map[string]models.DayPlan{
		"Arad": {"2026-07-15": {Active: true, Hours: "09:00-17:00"}},
	}

	res, err := NewResolver(zap.NewNop(), nil).Resolve(c)
	require.NoError(t, err)

	assert.Len(t, res.Segments, 2)
	require.Len(t, res.Warnings, 1)
	assert.Contains(t, res.Warnings[0], "2026-07-15")
}

func TestResolveSpotDropsUnassignedVehicle(t *testing.T) {
	c := sharedCampaign([]string{"v1"}, map[string][]models.Period{
		"Arad": {{Start: day(2026, 8, 1), End: day(2026, 8, 2)}},
	}, "09:00-17:00")
	spot := &models.Spot{
		ID:         "s1",
		CampaignID: c.ID,
		Name:       "Spot",
		Status:     models.SpotOK,
		Active:     true,
		SpotPeriods: models.PeriodMap{
			Mode: models.ScopeIndividual,
			ByVehicle: map[string]map[string][]models.Period{
				"v1":   {"Arad": {{Start: day(2026, 8, 1), End: day(2026, 8, 1)}}},
				"gone": {"Arad": {{Start: day(2026, 8, 1), End: day(2026, 8, 2)}}},
			},
		},
		SpotSchedules: models.ScheduleMap{Mode: models.ScopeIndividual},
	}

	res, err := NewResolver(zap.NewNop(), nil).ResolveSpot(c, spot)
	require.NoError(t, err)

	for _, s := range res.Segments {
		assert.Equal(t, "v1", s.VehicleID)
	}
	require.Len(t, res.Segments, 1)
}
