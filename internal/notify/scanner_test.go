package notify

import (
	"context"
	"net/smtp"
	"testing"
	"time"

	"github.com/alicebob/miniredis/v2"
	"github.com/redis/go-redis/v9"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"

	"github.com/avasilescu/mobiplan/internal/config"
	"github.com/avasilescu/mobiplan/internal/models"
)

func day(y int, m time.Month, d int) time.Time {
	return time.Date(y, m, d, 0, 0, 0, 0, time.UTC)
}

var today = day(2026, 7, 1)

func scanner(t *testing.T, st *models.InMemoryPlanStore) *Scanner {
	t.Helper()
	settings := config.NewSettingsStore(config.DefaultSettings(), nil)
	sc := NewScanner(st, settings, zap.NewNop(), nil)
	sc.now = func() time.Time { return today }
	return sc
}

func baseStore(t *testing.T) *models.InMemoryPlanStore {
	t.Helper()
	st := models.NewInMemoryPlanStore()
	require.NoError(t, st.SetVehicles([]models.Vehicle{
		{ID: "V1", Name: "Truck 1", Status: models.VehicleActive, DriverID: "d1"},
	}))
	require.NoError(t, st.SetDrivers([]models.Driver{
		{ID: "d1", Name: "Ion", Status: models.DriverActive},
	}))
	return st
}

func campaign(status models.CampaignStatus, start, end time.Time) models.Campaign {
	return models.Campaign{
		ID: "c1", Name: "Summer", Status: status,
		StartDate: start, EndDate: end,
		Vehicles: []string{"V1"},
	}
}

func findByID(items []Notification, id string) *Notification {
	for i := range items {
		if items[i].ID == id {
			return &items[i]
		}
	}
	return nil
}

func TestScanDocumentExpiryThreshold(t *testing.T) {
	st := baseStore(t)
	soon := today.AddDate(0, 0, 3)
	past := today.AddDate(0, 0, -2)
	far := today.AddDate(0, 0, 30)
	v := *st.GetVehicle("V1")
	v.RCAExpiry = &soon
	v.ITPExpiry = &past
	v.CascoExpiry = &far
	require.NoError(t, st.UpdateVehicle(v))

	items := scanner(t, st).Scan()

	expiring := findByID(items, "veh_exp_V1_RCA")
	require.NotNil(t, expiring)
	assert.Equal(t, SeverityWarning, expiring.Severity)
	assert.Equal(t, CategoryDocuments, expiring.Category)

	expired := findByID(items, "veh_exp_V1_ITP")
	require.NotNil(t, expired)
	assert.Equal(t, SeverityError, expired.Severity)

	assert.Nil(t, findByID(items, "veh_exp_V1_casco"), "expiry beyond threshold must not alert")
}

func TestScanVehicleDownSeverityDependsOnRunning(t *testing.T) {
	st := baseStore(t)
	v := *st.GetVehicle("V1")
	v.Status = models.VehicleDefective
	require.NoError(t, st.UpdateVehicle(v))

	running := campaign(models.StatusConfirmed, today.AddDate(0, 0, -5), today.AddDate(0, 0, 5))
	require.NoError(t, st.SetCampaigns([]models.Campaign{running}))
	n := findByID(scanner(t, st).Scan(), "veh_down_c1_V1")
	require.NotNil(t, n)
	assert.Equal(t, SeverityCritical, n.Severity)

	future := campaign(models.StatusConfirmed, today.AddDate(0, 0, 10), today.AddDate(0, 0, 20))
	require.NoError(t, st.SetCampaigns([]models.Campaign{future}))
	n = findByID(scanner(t, st).Scan(), "veh_down_c1_V1")
	require.NotNil(t, n)
	assert.Equal(t, SeverityWarning, n.Severity)
}

func TestScanDriverLeaveOverlap(t *testing.T) {
	st := baseStore(t)
	d := *st.GetDriver("d1")
	d.Leave = []models.ScheduleEntry{{
		StartDate: today.AddDate(0, 0, 2),
		EndDate:   today.AddDate(0, 0, 4),
		EventType: "vacation",
	}}
	require.NoError(t, st.UpdateDriver(d))
	require.NoError(t, st.SetCampaigns([]models.Campaign{
		campaign(models.StatusConfirmed, today, today.AddDate(0, 0, 10)),
	}))

	n := findByID(scanner(t, st).Scan(), "drv_leave_c1_d1")
	require.NotNil(t, n)
	assert.Equal(t, SeverityError, n.Severity)
	assert.Equal(t, CategoryFleet, n.Category)
}

func TestScanCampaignCompleteness(t *testing.T) {
	st := baseStore(t)
	noVehicle := campaign(models.StatusConfirmed, today, today.AddDate(0, 0, 10))
	noVehicle.Vehicles = nil
	require.NoError(t, st.SetCampaigns([]models.Campaign{noVehicle}))

	items := scanner(t, st).Scan()
	require.NotNil(t, findByID(items, "camp_no_vehicle_c1"))
	assert.Equal(t, SeverityError, findByID(items, "camp_no_vehicle_c1").Severity)
	require.NotNil(t, findByID(items, "camp_no_spots_c1"))
	assert.Equal(t, SeverityError, findByID(items, "camp_no_spots_c1").Severity)
}

func TestScanSkipsDraftAndEndedCampaigns(t *testing.T) {
	st := baseStore(t)
	draft := campaign(models.StatusDraft, today, today.AddDate(0, 0, 10))
	ended := campaign(models.StatusConfirmed, today.AddDate(0, 0, -20), today.AddDate(0, 0, -10))
	ended.ID = "c2"
	require.NoError(t, st.SetCampaigns([]models.Campaign{draft, ended}))

	items := scanner(t, st).Scan()
	assert.Nil(t, findByID(items, "camp_no_spots_c1"))
	assert.Nil(t, findByID(items, "camp_no_spots_c2"))
}

func TestAckStoreSuppressesAcknowledged(t *testing.T) {
	mr := miniredis.RunT(t)
	client := redis.NewClient(&redis.Options{Addr: mr.Addr()})
	acks := NewAckStore(client)
	ctx := context.Background()

	items := []Notification{
		{ID: "veh_exp_V1_RCA", Severity: SeverityWarning},
		{ID: "camp_no_spots_c1", Severity: SeverityError},
	}

	require.NoError(t, acks.Acknowledge(ctx, "veh_exp_V1_RCA", 7*24*time.Hour))
	left := acks.Filter(ctx, items)
	require.Len(t, left, 1)
	assert.Equal(t, "camp_no_spots_c1", left[0].ID)

	// TTL expiry resurfaces the alert.
	mr.FastForward(8 * 24 * time.Hour)
	items[0] = Notification{ID: "veh_exp_V1_RCA", Severity: SeverityWarning}
	assert.Len(t, acks.Filter(ctx, []Notification{items[0], left[0]}), 2)

	require.NoError(t, acks.Acknowledge(ctx, "camp_no_spots_c1", time.Hour))
	require.NoError(t, acks.Unacknowledge(ctx, "camp_no_spots_c1"))
	assert.Len(t, acks.Filter(ctx, []Notification{{ID: "camp_no_spots_c1"}}), 1)
}

func TestMailerSendsUrgentDigestOnly(t *testing.T) {
	settings := config.DefaultSettings()
	settings.SMTPHost = "smtp.example.com"
	settings.SMTPPort = "587"
	settings.SMTPFrom = "alerts@example.com"
	settings.SMTPTo = "ops@example.com"
	store := config.NewSettingsStore(settings, nil)

	var sentTo []string
	var sentBody string
	m := NewMailer(store, zap.NewNop())
	m.send = func(addr string, a smtp.Auth, from string, to []string, msg []byte) error {
		sentTo = to
		sentBody = string(msg)
		return nil
	}

	items := []Notification{
		{ID: "a", Severity: SeverityInfo, Message: "routine"},
		{ID: "b", Severity: SeverityCritical, Message: "vehicle down"},
	}
	require.NoError(t, m.SendDigest(items, ""))
	assert.Equal(t, []string{"ops@example.com"}, sentTo)
	assert.Contains(t, sentBody, "vehicle down")
	assert.NotContains(t, sentBody, "routine")
}

func TestMailerNoConfigNoSend(t *testing.T) {
	m := NewMailer(config.NewSettingsStore(config.DefaultSettings(), nil), zap.NewNop())
	called := false
	m.send = func(string, smtp.Auth, string, []string, []byte) error { called = true; return nil }

	require.NoError(t, m.SendDigest([]Notification{{Severity: SeverityCritical}}, ""))
	assert.False(t, called)
}
