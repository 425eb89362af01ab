package fleet

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

func marchCampaign() models.Campaign {
	return models.Campaign{
		ID:        "c1",
		Name:      "March",
		Status:    models.StatusConfirmed,
		StartDate: day(2026, 3, 1),
		EndDate:   day(2026, 3, 31),
		Vehicles:  []string{"V1"},
		CityPeriods: models.PeriodMap{
			Mode:   models.ScopeShared,
			ByCity: map[string][]models.Period{"Arad": {{Start: day(2026, 3, 1), End: day(2026, 3, 31)}}},
		},
		CitySchedules: models.ScheduleMap{Mode: models.ScopeShared},
	}
}

func fleetStore(t *testing.T, campaigns ...models.Campaign) *models.InMemoryPlanStore {
	t.Helper()
	st := models.NewInMemoryPlanStore()
	require.NoError(t, st.SetCampaigns(campaigns))
	require.NoError(t, st.SetVehicles([]models.Vehicle{
		{ID: "V1", Name: "Truck 1", Status: models.VehicleActive},
		{ID: "V2", Name: "Truck 2", Status: models.VehicleActive},
	}))
	require.NoError(t, st.SetDrivers([]models.Driver{
		{ID: "d1", Name: "Driver 1", Status: models.DriverActive},
		{ID: "d2", Name: "Driver 2", Status: models.DriverActive},
	}))
	return st
}

func TestReplaceVehicleMidCampaignSplitsTimeline(t *testing.T) {
	st := fleetStore(t, marchCampaign())
	rc := NewReconciler(st, zap.NewNop(), nil)
	rc.now = func() time.Time { return day(2026, 3, 10) }

	touched, err := rc.ReplaceVehicle("V1", "V2", day(2026, 3, 15))
	require.NoError(t, err)
	assert.Equal(t, []string{"c1"}, touched)

	c := st.GetCampaign("c1")
	require.NotNil(t, c)
	require.Len(t, c.VehicleTimeline, 2)
	assert.Equal(t, models.TimelineEntry{ResourceID: "V1", Start: day(2026, 3, 1), End: day(2026, 3, 14)}, c.VehicleTimeline[0])
	assert.Equal(t, models.TimelineEntry{ResourceID: "V2", Start: day(2026, 3, 15), End: day(2026, 3, 31)}, c.VehicleTimeline[1])
	assert.Equal(t, "V2", c.PrimaryVehicle())

	// History is preserved: the timeline still answers for past dates.
	assert.Equal(t, "V1", c.VehicleOn(day(2026, 3, 5)))
	assert.Equal(t, "V2", c.VehicleOn(day(2026, 3, 20)))
}

func TestReplaceVehicleBeforeStartSwapsOutright(t *testing.T) {
	st := fleetStore(t, marchCampaign())
	rc := NewReconciler(st, zap.NewNop(), nil)
	rc.now = func() time.Time { return day(2026, 2, 1) }

	_, err := rc.ReplaceVehicle("V1", "V2", day(2026, 2, 15))
	require.NoError(t, err)

	c := st.GetCampaign("c1")
	assert.Empty(t, c.VehicleTimeline)
	assert.Equal(t, []string{"V2"}, c.Vehicles)
}

func TestReplaceVehicleSkipsEndedAndDraft(t *testing.T) {
	ended := marchCampaign()
	ended.ID = "ended"
	draft := marchCampaign()
	draft.ID = "draft"
	draft.Status = models.StatusDraft
	st := fleetStore(t, ended, draft)
	rc := NewReconciler(st, zap.NewNop(), nil)

	touched, err := rc.ReplaceVehicle("V1", "V2", day(2026, 5, 1))
	require.NoError(t, err)
	assert.Empty(t, touched)
	assert.Equal(t, []string{"V1"}, st.GetCampaign("draft").Vehicles)
}

func TestReplaceVehicleUnknownReplacement(t *testing.T) {
	st := fleetStore(t, marchCampaign())
	rc := NewReconciler(st, zap.NewNop(), nil)

	_, err := rc.ReplaceVehicle("V1", "ghost", day(2026, 3, 15))
	require.ErrorIs(t, err, models.ErrNotFound)
}

func TestReplaceVehicleRemapsIndividualScope(t *testing.T) {
	c := marchCampaign()
	c.CityPeriods = models.PeriodMap{
		Mode: models.ScopeIndividual,
		ByVehicle: map[string]map[string][]models.Period{
			"V1": {"Arad": {{Start: day(2026, 3, 1), End: day(2026, 3, 31)}}},
		},
	}
	c.CitySchedules = models.ScheduleMap{Mode: models.ScopeIndividual}
	c.DriverOverrides = map[string]string{"V1": "d1"}
	st := fleetStore(t, c)
	rc := NewReconciler(st, zap.NewNop(), nil)
	rc.now = func() time.Time { return day(2026, 2, 1) }

	_, err := rc.ReplaceVehicle("V1", "V2", day(2026, 2, 10))
	require.NoError(t, err)

	got := st.GetCampaign("c1")
	_, hasOld := got.CityPeriods.ByVehicle["V1"]
	assert.False(t, hasOld)
	assert.NotEmpty(t, got.CityPeriods.ByVehicle["V2"]["Arad"])
	assert.Equal(t, "d1", got.DriverOverrides["V2"])
}

func TestReplaceDriverSplitsTimeline(t *testing.T) {
	c := marchCampaign()
	c.DriverOverrides = map[string]string{"V1": "d1"}
	st := fleetStore(t, c)
	rc := NewReconciler(st, zap.NewNop(), nil)
	rc.now = func() time.Time { return day(2026, 3, 10) }

	touched, err := rc.ReplaceDriver("d1", "d2", day(2026, 3, 15))
	require.NoError(t, err)
	assert.Equal(t, []string{"c1"}, touched)

	got := st.GetCampaign("c1")
	require.Len(t, got.DriverTimeline, 2)
	assert.Equal(t, "d1", got.DriverTimeline[0].ResourceID)
	assert.Equal(t, day(2026, 3, 14), got.DriverTimeline[0].End)
	assert.Equal(t, "d2", got.DriverTimeline[1].ResourceID)
	assert.Equal(t, "d2", got.DriverOverrides["V1"])
}

func TestReplaceVehicleLeavesPriorSnapshotUntouched(t *testing.T) {
	c := marchCampaign()
	c.CityPeriods = models.PeriodMap{
		Mode: models.ScopeIndividual,
		ByVehicle: map[string]map[string][]models.Period{
			"V1": {"Arad": {{Start: day(2026, 3, 1), End: day(2026, 3, 31)}}},
		},
	}
	st := fleetStore(t, c)
	rc := NewReconciler(st, zap.NewNop(), nil)
	rc.now = func() time.Time { return day(2026, 2, 1) }

	before := st.GetCampaign("c1")
	_, err := rc.ReplaceVehicle("V1", "V2", day(2026, 2, 20))
	require.NoError(t, err)

	// the pointer handed out before the swap still reads the old state
	assert.Equal(t, []string{"V1"}, before.Vehicles)
	assert.Contains(t, before.CityPeriods.ByVehicle, "V1")
	assert.NotContains(t, before.CityPeriods.ByVehicle, "V2")

	after := st.GetCampaign("c1")
	assert.Equal(t, []string{"V2"}, after.Vehicles)
	assert.Contains(t, after.CityPeriods.ByVehicle, "V2")
}

func TestRegistryStatusChangeAppendsHistory(t *testing.T) {
	st := fleetStore(t)
	reg := NewRegistry(st, zap.NewNop())

	v, err := reg.SetVehicleStatus("V1", models.VehicleDefective, day(2026, 3, 15), "gearbox")
	require.NoError(t, err)
	assert.Equal(t, models.VehicleDefective, v.Status)
	require.Len(t, v.History, 1)
	assert.Equal(t, "defective", v.History[0].Status)

	_, err = reg.SetVehicleStatus("V1", models.VehicleActive, day(2026, 4, 1), "")
	require.NoError(t, err)
	assert.Len(t, st.GetVehicle("V1").History, 2)
}

func TestRegistryStatusChangeLeavesPriorSnapshotUntouched(t *testing.T) {
	st := fleetStore(t)
	reg := NewRegistry(st, zap.NewNop())

	before := st.GetVehicle("V1")
	_, err := reg.SetVehicleStatus("V1", models.VehicleMaintenance, day(2026, 3, 1), "engine")
	require.NoError(t, err)

	assert.Equal(t, models.VehicleActive, before.Status)
	assert.Empty(t, before.History)

	after := st.GetVehicle("V1")
	assert.Equal(t, models.VehicleMaintenance, after.Status)
	require.Len(t, after.History, 1)
}

func TestRegistryAssignDriverClosesOpenAssignment(t *testing.T) {
	st := fleetStore(t)
	reg := NewRegistry(st, zap.NewNop())

	require.NoError(t, reg.AssignDriver("d1", "V1", day(2026, 1, 1)))
	require.NoError(t, reg.AssignDriver("d1", "V2", day(2026, 2, 1)))

	d := st.GetDriver("d1")
	require.Len(t, d.Assignments, 2)
	assert.Equal(t, day(2026, 2, 1), d.Assignments[0].To)
	assert.Equal(t, "V2", d.VehicleID)
	assert.Equal(t, "d1", st.GetVehicle("V2").DriverID)
}

func TestRegistryMirrorsDocumentExpiry(t *testing.T) {
	st := fleetStore(t)
	reg := NewRegistry(st, zap.NewNop())
	exp := day(2026, 9, 1)

	require.NoError(t, reg.MirrorDocumentExpiry(&models.Document{
		OwnerType: models.OwnerVehicle, OwnerID: "V1", DocType: models.DocRCA, Expiry: &exp,
	}))
	v := st.GetVehicle("V1")
	require.NotNil(t, v.RCAExpiry)
	assert.Equal(t, exp, *v.RCAExpiry)
}
