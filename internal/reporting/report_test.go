package reporting

import (
	"encoding/json"
	"os"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"

	"github.com/avasilescu/mobiplan/internal/audience"
	"github.com/avasilescu/mobiplan/internal/config"
	"github.com/avasilescu/mobiplan/internal/finance"
	"github.com/avasilescu/mobiplan/internal/models"
	"github.com/avasilescu/mobiplan/internal/schedule"
	"github.com/avasilescu/mobiplan/internal/transit"
)

type staticProfiles struct{ rec models.CityRecord }

func (s *staticProfiles) EffectiveRecord(string, time.Time) (models.CityRecord, bool) {
	return s.rec, true
}

func (s *staticProfiles) EventMultipliers(string, time.Time) (float64, float64) { return 1, 1 }

func day(y int, m time.Month, d int) time.Time {
	return time.Date(y, m, d, 0, 0, 0, 0, time.UTC)
}

func reportBuilder(t *testing.T) *Builder {
	t.Helper()
	profiles := &staticProfiles{rec: models.CityRecord{
		Population:           100_000,
		ActivePopulationPct:  60,
		DailyTrafficTotal:    50_000,
		DailyPedestrianTotal: 50_000,
		Modal:                models.ModalSplit{Auto: 35, Walking: 27, Cycling: 4, PublicTransport: 34},
		AvgCommuteDistanceKm: 8,
	}}
	settings := config.DefaultSettings()
	settings.ReportsOutputPath = t.TempDir()
	return NewBuilder(
		schedule.NewResolver(zap.NewNop(), nil),
		audience.NewCalculator(profiles, zap.NewNop()),
		finance.NewCalculator(zap.NewNop()),
		transit.NewInserter(transit.NewMatrix(""), zap.NewNop()),
		config.NewSettingsStore(settings, nil),
		zap.NewNop(), nil,
	)
}

func reportCampaign() *models.Campaign {
	return &models.Campaign{
		ID: "c1", Name: "Spring", Client: "Acme",
		Status:          models.StatusConfirmed,
		StartDate:       day(2026, 4, 1),
		EndDate:         day(2026, 4, 5),
		Vehicles:        []string{"v1"},
		DailyHours:      "09:00-17:00",
		SpotDurationSec: 10, LoopDurationSec: 60,
		KnownDistanceTotalKm: 400,
		CostPerKm:            2,
		ExpectedRevenue:      5000,
		CityPeriods: models.PeriodMap{
			Mode:   models.ScopeShared,
			ByCity: map[string][]models.Period{"Arad": {{Start: day(2026, 4, 1), End: day(2026, 4, 5)}}},
		},
		CitySchedules: models.ScheduleMap{Mode: models.ScopeShared},
	}
}

func TestBuildAssemblesAllSections(t *testing.T) {
	b := reportBuilder(t)
	rep, err := b.Build(reportCampaign())
	require.NoError(t, err)

	assert.Equal(t, "c1", rep.CampaignID)
	assert.Equal(t, []string{"Arad"}, rep.Cities)
	assert.Equal(t, 5, rep.SegmentCount)
	assert.Equal(t, 5, rep.ActiveDays)
	assert.InDelta(t, 40.0, rep.AttributedHours, 1e-9)
	assert.InDelta(t, 40.0, rep.VehicleHours, 1e-9)

	require.NotNil(t, rep.Finance)
	assert.Equal(t, finance.DistanceFromKnown, rep.Finance.DistanceSource)
	assert.InDelta(t, 400.0, rep.Finance.DistanceKm, 1e-9)

	require.NotNil(t, rep.Audience)
	assert.Greater(t, rep.Audience.ImpressionsTotal, 0.0)
	assert.InDelta(t, 400.0, rep.Audience.TotalDistanceKm, 1e-9)
	require.NotNil(t, rep.Transit)
}

func TestWriteProducesReadableJSON(t *testing.T) {
	b := reportBuilder(t)
	rep, err := b.Build(reportCampaign())
	require.NoError(t, err)

	path, err := b.Write(rep)
	require.NoError(t, err)

	raw, err := os.ReadFile(path)
	require.NoError(t, err)
	var decoded CampaignReport
	require.NoError(t, json.Unmarshal(raw, &decoded))
	assert.Equal(t, rep.CampaignID, decoded.CampaignID)
	assert.Equal(t, rep.SegmentCount, decoded.SegmentCount)
}
