package notify

import (
	"fmt"
	"time"

	"go.uber.org/zap"

	"github.com/avasilescu/mobiplan/internal/config"
	"github.com/avasilescu/mobiplan/internal/i18n"
	"github.com/avasilescu/mobiplan/internal/models"
	"github.com/avasilescu/mobiplan/internal/observability"
)

// Scanner walks fleet, document, and campaign state and emits alerts.
// Scans are read-only and safe to run on every dashboard refresh.
type Scanner struct {
	Store    models.PlanStore
	Settings *config.SettingsStore
	Logger   *zap.Logger
	Metrics  observability.MetricsRegistry

	// now is swappable for tests.
	now func() time.Time
}

// NewScanner constructs a Scanner.
func NewScanner(store models.PlanStore, settings *config.SettingsStore, logger *zap.Logger, metrics observability.MetricsRegistry) *Scanner {
	if logger == nil {
		logger = zap.NewNop()
	}
	if metrics == nil {
		metrics = &observability.MockMetricsRegistry{}
	}
	return &Scanner{Store: store, Settings: settings, Logger: logger, Metrics: metrics, now: time.Now}
}

func (sc *Scanner) settings() config.Settings {
	if sc.Settings == nil {
		return config.DefaultSettings()
	}
	return sc.Settings.Get()
}

// Scan produces the full notification list for the current state.
func (sc *Scanner) Scan() []Notification {
	cfg := sc.settings()
	lang := i18n.Lang(cfg.Language)
	today := sc.now().UTC().Truncate(24 * time.Hour)
	threshold := today.AddDate(0, 0, cfg.NotificationExpiryDays)

	var out []Notification
	out = append(out, sc.scanVehicleDocuments(lang, today, threshold)...)
	out = append(out, sc.scanDriverDocuments(lang, today, threshold)...)
	out = append(out, sc.scanCampaignFleet(lang, today)...)
	out = append(out, sc.scanCampaignCompleteness(lang, today)...)

	for _, n := range out {
		sc.Metrics.IncrementNotifications(string(n.Severity))
	}
	sc.Logger.Debug("notification scan complete", zap.Int("count", len(out)))
	return out
}

// scanVehicleDocuments checks the denormalized expiry fields on every
// vehicle.
func (sc *Scanner) scanVehicleDocuments(lang i18n.Lang, today, threshold time.Time) []Notification {
	var out []Notification
	for _, v := range sc.Store.GetAllVehicles() {
		for _, doc := range []struct {
			docType string
			expiry  *time.Time
		}{
			{models.DocRCA, v.RCAExpiry},
			{models.DocITP, v.ITPExpiry},
			{models.DocRovinieta, v.RovinietaExpiry},
			{models.DocCasco, v.CascoExpiry},
		} {
			n, ok := sc.expiryNotification(lang, today, threshold, doc.expiry, doc.docType, v.Name,
				fmt.Sprintf("veh_exp_%s_%s", v.ID, doc.docType), "vehicle:"+v.ID)
			if ok {
				out = append(out, n)
			}
		}
	}
	return out
}

// scanDriverDocuments checks licence and medical documents attached to
// drivers. Vehicle documents are covered by the denormalized fields.
func (sc *Scanner) scanDriverDocuments(lang i18n.Lang, today, threshold time.Time) []Notification {
	var out []Notification
	for _, d := range sc.Store.GetAllDocuments() {
		if d.OwnerType != models.OwnerDriver || d.Expiry == nil {
			continue
		}
		owner := d.OwnerID
		if drv := sc.Store.GetDriver(d.OwnerID); drv != nil {
			owner = drv.Name
		}
		n, ok := sc.expiryNotification(lang, today, threshold, d.Expiry, d.DocType, owner,
			"doc_exp_"+d.ID, "driver:"+d.OwnerID)
		if ok {
			out = append(out, n)
		}
	}
	return out
}

func (sc *Scanner) expiryNotification(lang i18n.Lang, today, threshold time.Time, expiry *time.Time, docType, ownerName, id, ref string) (Notification, bool) {
	if expiry == nil || expiry.After(threshold) {
		return Notification{}, false
	}
	key, severity := "notify.doc_expiring", SeverityWarning
	if expiry.Before(today) {
		key, severity = "notify.doc_expired", SeverityError
	}
	return Notification{
		ID:        id,
		Type:      "document_expiry",
		Severity:  severity,
		Category:  CategoryDocuments,
		Message:   i18n.T(lang, key, docType, ownerName, models.DateKey(*expiry)),
		EntityRef: ref,
		CreatedAt: sc.now().UTC(),
	}, true
}

// scanCampaignFleet flags campaigns whose assigned resources are not
// available: vehicles down for maintenance or defect, drivers on leave.
func (sc *Scanner) scanCampaignFleet(lang i18n.Lang, today time.Time) []Notification {
	var out []Notification
	for _, c := range sc.Store.GetAllCampaigns() {
		if !c.Status.Schedulable() || c.EndDate.Before(today) {
			continue
		}
		for _, vid := range c.Vehicles {
			v := sc.Store.GetVehicle(vid)
			if v == nil {
				continue
			}
			if v.Status == models.VehicleMaintenance || v.Status == models.VehicleDefective {
				severity := SeverityWarning
				if c.RunningOn(today) {
					severity = SeverityCritical
				}
				out = append(out, Notification{
					ID:        fmt.Sprintf("veh_down_%s_%s", c.ID, vid),
					Type:      "vehicle_unavailable",
					Severity:  severity,
					Category:  CategoryFleet,
					Message:   i18n.T(lang, "notify.vehicle_down", v.Name, string(v.Status), c.Name),
					EntityRef: "campaign:" + c.ID,
					CreatedAt: sc.now().UTC(),
				})
			}
			if d := sc.driverFor(&c, v); d != nil {
				for _, leave := range d.Leave {
					if leave.Overlaps(c.StartDate, c.EndDate) {
						out = append(out, Notification{
							ID:        fmt.Sprintf("drv_leave_%s_%s", c.ID, d.ID),
							Type:      "driver_on_leave",
							Severity:  SeverityError,
							Category:  CategoryFleet,
							Message:   i18n.T(lang, "notify.driver_on_leave", d.Name, c.Name),
							EntityRef: "campaign:" + c.ID,
							CreatedAt: sc.now().UTC(),
						})
						break
					}
				}
			}
		}
	}
	return out
}

func (sc *Scanner) driverFor(c *models.Campaign, v *models.Vehicle) *models.Driver {
	id := c.DriverFor(v.ID)
	if id == "" {
		id = v.DriverID
	}
	if id == "" {
		return nil
	}
	return sc.Store.GetDriver(id)
}

// scanCampaignCompleteness flags schedulable campaigns missing a vehicle,
// a driver, or spots.
func (sc *Scanner) scanCampaignCompleteness(lang i18n.Lang, today time.Time) []Notification {
	var out []Notification
	for _, c := range sc.Store.GetAllCampaigns() {
		if !c.Status.Schedulable() || c.EndDate.Before(today) {
			continue
		}
		if len(c.Vehicles) == 0 {
			out = append(out, sc.completeness(lang, &c, "camp_no_vehicle_", "notify.campaign_no_fleet", SeverityError))
		} else if !sc.anyDriver(&c) {
			out = append(out, sc.completeness(lang, &c, "camp_no_driver_", "notify.campaign_no_driver", SeverityWarning))
		}
		if len(sc.Store.GetSpotsByCampaign(c.ID)) == 0 {
			out = append(out, sc.completeness(lang, &c, "camp_no_spots_", "notify.campaign_no_spots", SeverityError))
		}
	}
	return out
}

func (sc *Scanner) anyDriver(c *models.Campaign) bool {
	for _, vid := range c.Vehicles {
		if c.DriverFor(vid) != "" {
			return true
		}
		if v := sc.Store.GetVehicle(vid); v != nil && v.DriverID != "" {
			return true
		}
	}
	return false
}

func (sc *Scanner) completeness(lang i18n.Lang, c *models.Campaign, idPrefix, msgKey string, severity Severity) Notification {
	return Notification{
		ID:        idPrefix + c.ID,
		Type:      "campaign_incomplete",
		Severity:  severity,
		Category:  CategoryCampaigns,
		Message:   i18n.T(lang, msgKey, c.Name),
		EntityRef: "campaign:" + c.ID,
		CreatedAt: sc.now().UTC(),
	}
}
