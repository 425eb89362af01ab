package api

import (
	"bytes"
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/alicebob/miniredis/v2"
	"github.com/gorilla/mux"
	"github.com/redis/go-redis/v9"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"

	"github.com/avasilescu/mobiplan/internal/analytics"
	"github.com/avasilescu/mobiplan/internal/audience"
	"github.com/avasilescu/mobiplan/internal/cities"
	"github.com/avasilescu/mobiplan/internal/config"
	"github.com/avasilescu/mobiplan/internal/conflicts"
	"github.com/avasilescu/mobiplan/internal/db"
	"github.com/avasilescu/mobiplan/internal/export"
	"github.com/avasilescu/mobiplan/internal/files"
	"github.com/avasilescu/mobiplan/internal/finance"
	"github.com/avasilescu/mobiplan/internal/fleet"
	"github.com/avasilescu/mobiplan/internal/models"
	"github.com/avasilescu/mobiplan/internal/notify"
	"github.com/avasilescu/mobiplan/internal/observability"
	"github.com/avasilescu/mobiplan/internal/reporting"
	"github.com/avasilescu/mobiplan/internal/schedule"
	"github.com/avasilescu/mobiplan/internal/transit"
)

func day(y int, m time.Month, d int) time.Time {
	return time.Date(y, m, d, 0, 0, 0, 0, time.UTC)
}

func sharedCampaign(id, vehicle, hours string, exclusive bool, start, end time.Time) models.Campaign {
	return models.Campaign{
		ID:         id,
		Name:       "Campaign " + id,
		Client:     "Client " + id,
		Status:     models.StatusConfirmed,
		Exclusive:  exclusive,
		StartDate:  start,
		EndDate:    end,
		Vehicles:   []string{vehicle},
		DailyHours: hours,
		CityPeriods: models.PeriodMap{
			Mode:   models.ScopeShared,
			ByCity: map[string][]models.Period{"Arad": {{Start: start, End: end}}},
		},
		CitySchedules: models.ScheduleMap{Mode: models.ScopeShared},
	}
}

func newTestServer(t *testing.T) *Server {
	t.Helper()
	logger := zap.NewNop()
	metrics := &observability.MockMetricsRegistry{}

	mr := miniredis.RunT(t)
	cache := &db.RedisStore{
		Client: redis.NewClient(&redis.Options{Addr: mr.Addr()}),
		Ctx:    context.Background(),
		TTL:    time.Hour,
	}

	store := models.NewInMemoryPlanStore()
	resolver := schedule.NewResolver(logger, metrics)
	cityStore := cities.NewStore(t.TempDir()+"/cities.json", t.TempDir()+"/events.json", logger)
	settings := config.NewSettingsStore(config.DefaultSettings(), nil)
	fin := finance.NewCalculator(logger)
	aud := audience.NewCalculator(cityStore, logger)
	ins := transit.NewInserter(transit.NewMatrix(""), logger)

	return NewServer(Deps{
		Logger:     logger,
		Store:      store,
		Cache:      cache,
		Analytics:  analytics.NewMockAnalyticsService(),
		Resolver:   resolver,
		Detector:   conflicts.NewDetector(store, resolver, logger, metrics),
		Inserter:   ins,
		Audience:   aud,
		Finance:    fin,
		Reporting:  reporting.NewBuilder(resolver, aud, fin, ins, settings, logger, metrics),
		Exporter:   export.NewExporter(resolver, logger),
		Cities:     cityStore,
		CityFetch:  nil,
		Registry:   fleet.NewRegistry(store, logger),
		Reconciler: fleet.NewReconciler(store, logger, metrics),
		Scanner:    notify.NewScanner(store, settings, logger, metrics),
		Acks:       notify.NewAckStore(cache.Client),
		Mailer:     notify.NewMailer(settings, logger),
		Files:      files.NewManager(t.TempDir(), logger),
		Settings:   settings,
		Metrics:    metrics,
	})
}

func doJSON(t *testing.T, handler http.HandlerFunc, method, target string, body any, vars map[string]string) *httptest.ResponseRecorder {
	t.Helper()
	var buf bytes.Buffer
	if body != nil {
		require.NoError(t, json.NewEncoder(&buf).Encode(body))
	}
	req := httptest.NewRequest(method, target, &buf)
	if vars != nil {
		req = mux.SetURLVars(req, vars)
	}
	rec := httptest.NewRecorder()
	handler(rec, req)
	return rec
}

func TestCreateCampaignPersistsAndAssignsID(t *testing.T) {
	s := newTestServer(t)
	c := sharedCampaign("", "v1", "09:00-17:00", false, day(2026, 5, 1), day(2026, 5, 3))

	rec := doJSON(t, s.CreateCampaign, http.MethodPost, "/api/campaigns", c, nil)
	require.Equal(t, http.StatusCreated, rec.Code)

	var resp saveResponse
	require.NoError(t, json.NewDecoder(rec.Body).Decode(&resp))
	assert.NotEmpty(t, resp.Campaign.ID)
	assert.NotNil(t, s.Store.GetCampaign(resp.Campaign.ID))
}

func TestCreateCampaignRejectsBlockingConflict(t *testing.T) {
	s := newTestServer(t)
	existing := sharedCampaign("c1", "v1", "09:00-12:00", true, day(2026, 5, 1), day(2026, 5, 10))
	require.NoError(t, s.Store.InsertCampaign(&existing))

	candidate := sharedCampaign("c2", "v1", "11:00-13:00", false, day(2026, 5, 5), day(2026, 5, 6))
	rec := doJSON(t, s.CreateCampaign, http.MethodPost, "/api/campaigns", candidate, nil)
	require.Equal(t, http.StatusConflict, rec.Code)

	var resp struct {
		Error    string                `json:"error"`
		Blocking []models.ConflictItem `json:"blocking"`
	}
	require.NoError(t, json.NewDecoder(rec.Body).Decode(&resp))
	assert.Equal(t, "conflict", resp.Error)
	require.Len(t, resp.Blocking, 1)
	assert.Equal(t, "c1", resp.Blocking[0].OtherCampaignID)

	// nothing was stored
	assert.Nil(t, s.Store.GetCampaign("c2"))
}

func TestCreateCampaignValidationError(t *testing.T) {
	s := newTestServer(t)
	c := sharedCampaign("c1", "v1", "09:00-17:00", false, day(2026, 5, 1), day(2026, 5, 3))
	c.Name = ""

	rec := doJSON(t, s.CreateCampaign, http.MethodPost, "/api/campaigns", c, nil)
	require.Equal(t, http.StatusBadRequest, rec.Code)

	var resp map[string]string
	require.NoError(t, json.NewDecoder(rec.Body).Decode(&resp))
	assert.Equal(t, "validation", resp["error"])
	assert.Equal(t, "name", resp["field"])
}

func TestUpdateCampaignExcludesOwnStoredCopy(t *testing.T) {
	s := newTestServer(t)
	c := sharedCampaign("c1", "v1", "09:00-12:00", true, day(2026, 5, 1), day(2026, 5, 3))
	require.NoError(t, s.Store.InsertCampaign(&c))

	// editing its own hours must not conflict with itself
	c.DailyHours = "10:00-13:00"
	rec := doJSON(t, s.UpdateCampaign, http.MethodPut, "/api/campaigns/c1", c, map[string]string{"id": "c1"})
	require.Equal(t, http.StatusOK, rec.Code)
	assert.Equal(t, "10:00-13:00", s.Store.GetCampaign("c1").DailyHours)
}

func TestCreateSpotRejectsOutOfScopeTargets(t *testing.T) {
	s := newTestServer(t)
	c := sharedCampaign("c1", "v1", "09:00-17:00", false, day(2026, 1, 1), day(2026, 1, 5))
	require.NoError(t, s.Store.InsertCampaign(&c))

	sp := models.Spot{Name: "Teaser", Active: true, TargetCities: []string{"Oradea"}}
	rec := doJSON(t, s.CreateSpot, http.MethodPost, "/api/campaigns/c1/spots", sp, map[string]string{"id": "c1"})
	require.Equal(t, http.StatusBadRequest, rec.Code)

	var resp map[string]string
	require.NoError(t, json.NewDecoder(rec.Body).Decode(&resp))
	assert.Equal(t, "validation", resp["error"])
	assert.Equal(t, "target_cities", resp["field"])
	assert.Empty(t, s.Store.GetSpotsByCampaign("c1"))
}

func TestCreateSpotRejectsPeriodOutsideCampaign(t *testing.T) {
	s := newTestServer(t)
	c := sharedCampaign("c1", "v1", "09:00-17:00", false, day(2026, 1, 1), day(2026, 1, 5))
	require.NoError(t, s.Store.InsertCampaign(&c))

	sp := models.Spot{
		Name:   "Teaser",
		Active: true,
		SpotPeriods: models.PeriodMap{
			Mode:   models.ScopeShared,
			ByCity: map[string][]models.Period{"Arad": {{Start: day(2027, 6, 1), End: day(2027, 6, 5)}}},
		},
	}
	rec := doJSON(t, s.CreateSpot, http.MethodPost, "/api/campaigns/c1/spots", sp, map[string]string{"id": "c1"})
	require.Equal(t, http.StatusBadRequest, rec.Code)

	var resp map[string]string
	require.NoError(t, json.NewDecoder(rec.Body).Decode(&resp))
	assert.Equal(t, "spot_periods", resp["field"])
	assert.Empty(t, s.Store.GetSpotsByCampaign("c1"))
}

func TestUpdateSpotRejectsOutOfScopeVehicle(t *testing.T) {
	s := newTestServer(t)
	c := sharedCampaign("c1", "v1", "09:00-17:00", false, day(2026, 1, 1), day(2026, 1, 5))
	require.NoError(t, s.Store.InsertCampaign(&c))
	sp := models.Spot{ID: "sp1", CampaignID: "c1", Name: "Teaser", Status: models.SpotOK, Active: true}
	require.NoError(t, s.Store.InsertSpot(&sp))

	sp.TargetVehicles = []string{"v9"}
	rec := doJSON(t, s.UpdateSpot, http.MethodPut, "/api/campaigns/c1/spots/sp1", sp,
		map[string]string{"id": "c1", "spotID": "sp1"})
	require.Equal(t, http.StatusBadRequest, rec.Code)

	var resp map[string]string
	require.NoError(t, json.NewDecoder(rec.Body).Decode(&resp))
	assert.Equal(t, "target_vehicles", resp["field"])
	assert.Empty(t, s.Store.GetSpot("sp1").TargetVehicles)
}

func TestTimelineHandlerCachesResolution(t *testing.T) {
	s := newTestServer(t)
	c := sharedCampaign("c1", "v1", "09:00-17:00", false, day(2026, 5, 1), day(2026, 5, 3))
	require.NoError(t, s.Store.InsertCampaign(&c))

	rec := doJSON(t, s.TimelineHandler, http.MethodGet, "/api/campaigns/c1/timeline", nil, map[string]string{"id": "c1"})
	require.Equal(t, http.StatusOK, rec.Code)
	var first struct {
		Segments []models.PresenceSegment `json:"segments"`
		Cached   bool                     `json:"cached"`
	}
	require.NoError(t, json.NewDecoder(rec.Body).Decode(&first))
	assert.Len(t, first.Segments, 3)
	assert.False(t, first.Cached)

	rec = doJSON(t, s.TimelineHandler, http.MethodGet, "/api/campaigns/c1/timeline", nil, map[string]string{"id": "c1"})
	require.Equal(t, http.StatusOK, rec.Code)
	var second struct {
		Segments []models.PresenceSegment `json:"segments"`
		Cached   bool                     `json:"cached"`
	}
	require.NoError(t, json.NewDecoder(rec.Body).Decode(&second))
	assert.True(t, second.Cached)
	assert.Len(t, second.Segments, 3)
}

func TestTimelineHandlerUnknownCampaign(t *testing.T) {
	s := newTestServer(t)
	rec := doJSON(t, s.TimelineHandler, http.MethodGet, "/api/campaigns/nope/timeline", nil, map[string]string{"id": "nope"})
	assert.Equal(t, http.StatusNotFound, rec.Code)
}

func TestConflictCheckHandlerReportsWithoutPersisting(t *testing.T) {
	s := newTestServer(t)
	existing := sharedCampaign("c1", "v1", "09:00-12:00", false, day(2026, 5, 1), day(2026, 5, 10))
	require.NoError(t, s.Store.InsertCampaign(&existing))

	candidate := sharedCampaign("c2", "v1", "11:00-13:00", false, day(2026, 5, 5), day(2026, 5, 6))
	rec := doJSON(t, s.ConflictCheckHandler, http.MethodPost, "/api/campaigns/conflicts", candidate, nil)
	require.Equal(t, http.StatusOK, rec.Code)

	var report models.ConflictReport
	require.NoError(t, json.NewDecoder(rec.Body).Decode(&report))
	assert.Empty(t, report.Blocking)
	require.Len(t, report.Warnings, 1)
	assert.Nil(t, s.Store.GetCampaign("c2"))
}

func TestAudienceHandlerWarnsOnMissingProfile(t *testing.T) {
	s := newTestServer(t)
	c := sharedCampaign("c1", "v1", "09:00-17:00", false, day(2026, 5, 1), day(2026, 5, 2))
	c.SpotDurationSec = 30
	c.LoopDurationSec = 300
	require.NoError(t, s.Store.InsertCampaign(&c))

	rec := doJSON(t, s.AudienceHandler, http.MethodGet, "/api/campaigns/c1/audience", nil, map[string]string{"id": "c1"})
	require.Equal(t, http.StatusOK, rec.Code)

	var est audience.Estimate
	require.NoError(t, json.NewDecoder(rec.Body).Decode(&est))
	assert.NotEmpty(t, est.Warnings)
}

func TestReplaceVehicleHandler(t *testing.T) {
	s := newTestServer(t)
	require.NoError(t, s.Store.InsertVehicle(&models.Vehicle{ID: "v1", Name: "Van 1", Status: models.VehicleActive}))
	require.NoError(t, s.Store.InsertVehicle(&models.Vehicle{ID: "v2", Name: "Van 2", Status: models.VehicleActive}))
	c := sharedCampaign("c1", "v1", "09:00-17:00", false, day(2030, 3, 1), day(2030, 3, 31))
	require.NoError(t, s.Store.InsertCampaign(&c))

	body := replaceRequest{OldID: "v1", NewID: "v2", Effective: "2030-03-15"}
	rec := doJSON(t, s.ReplaceVehicleHandler, http.MethodPost, "/api/fleet/replace-vehicle", body, nil)
	require.Equal(t, http.StatusOK, rec.Code)

	var resp struct {
		Campaigns []string `json:"campaigns"`
	}
	require.NoError(t, json.NewDecoder(rec.Body).Decode(&resp))
	assert.Equal(t, []string{"c1"}, resp.Campaigns)
	assert.True(t, s.Store.GetCampaign("c1").HasVehicle("v2"))
}

func TestReplaceVehicleHandlerUnknownReplacement(t *testing.T) {
	s := newTestServer(t)
	require.NoError(t, s.Store.InsertVehicle(&models.Vehicle{ID: "v1", Name: "Van 1", Status: models.VehicleActive}))

	body := replaceRequest{OldID: "v1", NewID: "ghost", Effective: "2030-03-15"}
	rec := doJSON(t, s.ReplaceVehicleHandler, http.MethodPost, "/api/fleet/replace-vehicle", body, nil)
	assert.Equal(t, http.StatusNotFound, rec.Code)
}

func TestNotificationAckRoundTrip(t *testing.T) {
	s := newTestServer(t)
	expired := day(2020, 1, 1)
	require.NoError(t, s.Store.InsertVehicle(&models.Vehicle{
		ID: "v1", Name: "Van 1", Status: models.VehicleActive, RCAExpiry: &expired,
	}))

	rec := doJSON(t, s.ListNotifications, http.MethodGet, "/api/notifications", nil, nil)
	require.Equal(t, http.StatusOK, rec.Code)
	var items []notify.Notification
	require.NoError(t, json.NewDecoder(rec.Body).Decode(&items))
	require.NotEmpty(t, items)
	id := items[0].ID

	rec = doJSON(t, s.AcknowledgeNotification, http.MethodPost, "/api/notifications/"+id+"/ack", nil, map[string]string{"id": id})
	require.Equal(t, http.StatusNoContent, rec.Code)

	rec = doJSON(t, s.ListNotifications, http.MethodGet, "/api/notifications", nil, nil)
	var after []notify.Notification
	require.NoError(t, json.NewDecoder(rec.Body).Decode(&after))
	for _, n := range after {
		assert.NotEqual(t, id, n.ID)
	}

	rec = doJSON(t, s.UnacknowledgeNotification, http.MethodDelete, "/api/notifications/"+id+"/ack", nil, map[string]string{"id": id})
	require.Equal(t, http.StatusNoContent, rec.Code)
}

func TestUpdateSettingsNormalizesLanguage(t *testing.T) {
	s := newTestServer(t)
	next := s.Settings.Get()
	next.Language = "de"

	rec := doJSON(t, s.UpdateSettings, http.MethodPut, "/api/settings", next, nil)
	require.Equal(t, http.StatusOK, rec.Code)
	assert.Equal(t, "ro", s.Settings.Get().Language)
}

func TestExportScheduleStreamsCSV(t *testing.T) {
	s := newTestServer(t)
	c := sharedCampaign("c1", "v1", "09:00-17:00", false, day(2026, 5, 1), day(2026, 5, 2))
	require.NoError(t, s.Store.InsertCampaign(&c))

	rec := doJSON(t, s.ExportScheduleHandler, http.MethodGet, "/api/campaigns/c1/export/schedule", nil, map[string]string{"id": "c1"})
	require.Equal(t, http.StatusOK, rec.Code)
	assert.Equal(t, "text/csv", rec.Header().Get("Content-Type"))
	assert.Contains(t, rec.Body.String(), "Arad")
}

func TestHealthHandler(t *testing.T) {
	s := newTestServer(t)
	rec := doJSON(t, s.HealthHandler, http.MethodGet, "/health", nil, nil)
	require.Equal(t, http.StatusOK, rec.Code)
	assert.JSONEq(t, `{"status":"ok"}`, rec.Body.String())
}
