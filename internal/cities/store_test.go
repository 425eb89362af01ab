package cities

import (
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"path/filepath"
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

func record(pop int) models.CityRecord {
	return models.CityRecord{
		Population:           pop,
		ActivePopulationPct:  58,
		DailyTrafficTotal:    pop / 2,
		DailyPedestrianTotal: pop * 6 / 10,
		Modal:                models.ModalSplit{Auto: 35, Walking: 27, Cycling: 4, PublicTransport: 34},
		AvgCommuteDistanceKm: 8,
	}
}

func tempStore(t *testing.T) *Store {
	t.Helper()
	dir := t.TempDir()
	return NewStore(filepath.Join(dir, "cities.json"), filepath.Join(dir, "events.json"), zap.NewNop())
}

func TestEffectiveRecordQuarterFallback(t *testing.T) {
	s := tempStore(t)
	require.NoError(t, s.SetRecord("Arad", "2025-Q1", record(100)))
	require.NoError(t, s.SetRecord("Arad", "2025-Q3", record(300)))
	require.NoError(t, s.SetRecord("Arad", "2026-Q2", record(600)))

	// Exact quarter wins.
	rec, ok := s.EffectiveRecord("Arad", day(2025, 8, 1))
	require.True(t, ok)
	assert.Equal(t, 300, rec.Population)

	// Between quarters: most recent earlier one.
	rec, ok = s.EffectiveRecord("Arad", day(2026, 2, 1))
	require.True(t, ok)
	assert.Equal(t, 300, rec.Population)

	// Before all records: oldest.
	rec, ok = s.EffectiveRecord("Arad", day(2024, 1, 1))
	require.True(t, ok)
	assert.Equal(t, 100, rec.Population)

	// After all records: newest.
	rec, ok = s.EffectiveRecord("Arad", day(2027, 12, 1))
	require.True(t, ok)
	assert.Equal(t, 600, rec.Population)

	_, ok = s.EffectiveRecord("Cluj", day(2026, 1, 1))
	assert.False(t, ok)
}

func TestLookupCaseInsensitive(t *testing.T) {
	s := tempStore(t)
	require.NoError(t, s.SetRecord("Târgu Mureș", "2026-Q1", record(130_000)))

	p, ok := s.Get("tÂrgu mureș")
	require.True(t, ok)
	assert.Equal(t, "Târgu Mureș", p.Name)
}

func TestSaveLoadRoundTrip(t *testing.T) {
	dir := t.TempDir()
	paths := []string{filepath.Join(dir, "cities.json"), filepath.Join(dir, "events.json")}
	s := NewStore(paths[0], paths[1], zap.NewNop())
	require.NoError(t, s.SetRecord("Brașov", "2026-Q1", record(250_000)))
	s.SetEvents("Brașov", []models.SpecialEvent{{
		Name:              "Oktoberfest",
		StartDate:         day(2026, 9, 1),
		EndDate:           day(2026, 9, 7),
		TrafficMultiplier: 1.4, PedestrianMultiplier: 2.0,
	}})
	require.NoError(t, s.Save())

	reloaded := NewStore(paths[0], paths[1], zap.NewNop())
	require.NoError(t, reloaded.Load())

	rec, ok := reloaded.EffectiveRecord("brașov", day(2026, 2, 1))
	require.True(t, ok)
	assert.Equal(t, 250_000, rec.Population)
	tm, pm := reloaded.EventMultipliers("Brașov", day(2026, 9, 3))
	assert.InDelta(t, 1.4, tm, 1e-9)
	assert.InDelta(t, 2.0, pm, 1e-9)
}

func TestLoadMissingFilesStartsEmpty(t *testing.T) {
	s := tempStore(t)
	require.NoError(t, s.Load())
	assert.Empty(t, s.Names())
}

func TestEventMultipliersFirstMatch(t *testing.T) {
	s := tempStore(t)
	s.SetEvents("Arad", []models.SpecialEvent{
		{Name: "first", StartDate: day(2026, 5, 1), EndDate: day(2026, 5, 10), TrafficMultiplier: 2, PedestrianMultiplier: 2},
		{Name: "second", StartDate: day(2026, 5, 5), EndDate: day(2026, 5, 15), TrafficMultiplier: 9, PedestrianMultiplier: 9},
	})

	tm, _ := s.EventMultipliers("Arad", day(2026, 5, 7))
	assert.InDelta(t, 2.0, tm, 1e-9)

	tm, pm := s.EventMultipliers("Arad", day(2026, 6, 1))
	assert.InDelta(t, 1.0, tm, 1e-9)
	assert.InDelta(t, 1.0, pm, 1e-9)
}

func TestExtrapolateInterpolatesBetweenBrackets(t *testing.T) {
	s := tempStore(t)
	small := record(100_000)
	small.AvgCommuteDistanceKm = 6
	big := record(300_000)
	big.AvgCommuteDistanceKm = 10
	require.NoError(t, s.SetRecord("Small", "2026-Q1", small))
	require.NoError(t, s.SetRecord("Big", "2026-Q1", big))

	rec := s.Extrapolate(200_000)
	assert.Equal(t, 200_000, rec.Population)
	assert.Equal(t, 100_000, rec.DailyTrafficTotal)
	assert.InDelta(t, 8.0, rec.AvgCommuteDistanceKm, 1e-9)
	assert.Equal(t, "extrapolated", rec.Source)
}

func TestExtrapolateClonesNearestOutOfRange(t *testing.T) {
	s := tempStore(t)
	require.NoError(t, s.SetRecord("Small", "2026-Q1", record(100_000)))
	require.NoError(t, s.SetRecord("Big", "2026-Q1", record(300_000)))

	rec := s.Extrapolate(50_000)
	assert.Equal(t, 50_000, rec.Population)
	assert.Equal(t, record(100_000).DailyTrafficTotal, rec.DailyTrafficTotal)

	rec = s.Extrapolate(900_000)
	assert.Equal(t, record(300_000).DailyTrafficTotal, rec.DailyTrafficTotal)
}

func TestExtrapolateDefaultsWithoutReferences(t *testing.T) {
	rec := tempStore(t).Extrapolate(40_000)
	assert.Equal(t, 40_000, rec.Population)
	assert.InDelta(t, 58.0, rec.ActivePopulationPct, 1e-9)
	assert.Equal(t, 20_000, rec.DailyTrafficTotal)
	assert.Equal(t, 24_000, rec.DailyPedestrianTotal)
	assert.InDelta(t, 100.0, rec.Modal.Sum(), 1e-9)
}

func TestFetcherCachesAndFallsThrough(t *testing.T) {
	calls := 0
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		calls++
		if r.URL.Query().Get("city") == "Nowhere" {
			w.WriteHeader(http.StatusNotFound)
			return
		}
		_ = json.NewEncoder(w).Encode(record(80_000))
	}))
	defer srv.Close()

	f := NewFetcher(
		[]DataSource{NewPublicSource(srv.URL, srv.Client())},
		t.TempDir(), 30*24*time.Hour, zap.NewNop(), nil,
	)

	rec, err := f.Fetch(context.Background(), "Deva")
	require.NoError(t, err)
	require.NotNil(t, rec)
	assert.Equal(t, 80_000, rec.Population)
	assert.Equal(t, "public", rec.Source)
	assert.Equal(t, 1, calls)

	// Second fetch is served from the disk cache.
	rec, err = f.Fetch(context.Background(), "Deva")
	require.NoError(t, err)
	require.NotNil(t, rec)
	assert.Equal(t, 1, calls)

	// 404 from every source means no data, not an error.
	rec, err = f.Fetch(context.Background(), "Nowhere")
	require.NoError(t, err)
	assert.Nil(t, rec)
}

func TestSourcesForManualDisablesFetching(t *testing.T) {
	pub := NewPublicSource("http://example.invalid", nil)
	assert.Nil(t, SourcesFor(models.UpdateManual, pub, nil, nil))
	assert.Equal(t, []DataSource{pub}, SourcesFor(models.UpdatePublic, pub, nil, nil))
}
