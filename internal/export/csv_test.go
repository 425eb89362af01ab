package export

import (
	"bytes"
	"encoding/csv"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"

	"github.com/avasilescu/mobiplan/internal/models"
	"github.com/avasilescu/mobiplan/internal/schedule"
)

func day(y int, m time.Month, d int) time.Time {
	return time.Date(y, m, d, 0, 0, 0, 0, time.UTC)
}

func exportCampaign() *models.Campaign {
	return &models.Campaign{
		ID:              "c1",
		Name:            "Spring Push",
		Status:          models.StatusConfirmed,
		StartDate:       day(2026, 4, 1),
		EndDate:         day(2026, 4, 3),
		Vehicles:        []string{"v1"},
		SpotDurationSec: 15,
		DailyHours:      "09:00-17:00",
		CityPeriods: models.PeriodMap{
			Mode:   models.ScopeShared,
			ByCity: map[string][]models.Period{"Arad": {{Start: day(2026, 4, 1), End: day(2026, 4, 3)}}},
		},
		CitySchedules: models.ScheduleMap{Mode: models.ScopeShared},
	}
}

func TestMediaPlanRowsOrderedByIndex(t *testing.T) {
	e := NewExporter(schedule.NewResolver(zap.NewNop(), nil), zap.NewNop())
	spots := []models.Spot{
		{ID: "s2", Index: 2, Name: "Second", Status: models.SpotOK, DurationSec: 20, FilePath: "/data/spots/c1/1712_second.mp4"},
		{ID: "s1", Index: 1, Name: "First", Status: models.SpotTest, DurationSec: 10, Notes: "pilot"},
	}

	var buf bytes.Buffer
	require.NoError(t, e.MediaPlan(&buf, exportCampaign(), spots))

	rows, err := csv.NewReader(&buf).ReadAll()
	require.NoError(t, err)
	require.Len(t, rows, 3)
	assert.Equal(t, header, rows[0])

	assert.Equal(t, "1", rows[1][0])
	assert.Equal(t, "First", rows[1][1])
	assert.Equal(t, "10s", rows[1][2])
	assert.Equal(t, "Test", rows[1][3])
	assert.Equal(t, "Arad", rows[1][4])
	assert.Equal(t, "v1", rows[1][5])
	assert.Equal(t, "2026-04-01", rows[1][6])
	assert.Equal(t, "2026-04-03", rows[1][7])
	assert.Equal(t, "09:00-17:00", rows[1][8])
	assert.Equal(t, "pilot", rows[1][10])

	assert.Equal(t, "Second", rows[2][1])
	assert.Equal(t, "1712_second.mp4", rows[2][9])
}

func TestScheduleRowPerSegment(t *testing.T) {
	e := NewExporter(schedule.NewResolver(zap.NewNop(), nil), zap.NewNop())

	var buf bytes.Buffer
	require.NoError(t, e.Schedule(&buf, exportCampaign()))

	rows, err := csv.NewReader(&buf).ReadAll()
	require.NoError(t, err)
	// Header plus three days in one city.
	require.Len(t, rows, 4)
	assert.Equal(t, "Arad", rows[1][4])
	assert.Equal(t, "v1", rows[1][5])
	assert.Equal(t, "09:00-17:00", rows[1][8])
	assert.Equal(t, "2026-04-01", rows[1][6])
	assert.Equal(t, "2026-04-03", rows[3][6])
}

func TestMediaPlanSpotOwnPeriodRange(t *testing.T) {
	e := NewExporter(schedule.NewResolver(zap.NewNop(), nil), zap.NewNop())
	sp := models.Spot{
		ID: "s1", Index: 1, Name: "Teaser", Status: models.SpotOK,
		SpotPeriods: models.PeriodMap{
			Mode:   models.ScopeShared,
			ByCity: map[string][]models.Period{"Arad": {{Start: day(2026, 4, 2), End: day(2026, 4, 3)}}},
		},
	}

	var buf bytes.Buffer
	require.NoError(t, e.MediaPlan(&buf, exportCampaign(), []models.Spot{sp}))

	rows, err := csv.NewReader(&buf).ReadAll()
	require.NoError(t, err)
	assert.Equal(t, "2026-04-02", rows[1][6])
	assert.Equal(t, "2026-04-03", rows[1][7])
}
