package reporting

import (
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"
	"time"

	"go.uber.org/zap"

	"github.com/avasilescu/mobiplan/internal/audience"
	"github.com/avasilescu/mobiplan/internal/config"
	"github.com/avasilescu/mobiplan/internal/finance"
	"github.com/avasilescu/mobiplan/internal/models"
	"github.com/avasilescu/mobiplan/internal/observability"
	"github.com/avasilescu/mobiplan/internal/schedule"
	"github.com/avasilescu/mobiplan/internal/transit"
)

// CampaignReport bundles everything a client-facing report needs: the
// resolved timeline summary, the audience estimate, the financial outcome,
// and the transit plan.
type CampaignReport struct {
	CampaignID   string    `json:"campaign_id"`
	CampaignName string    `json:"campaign_name"`
	Client       string    `json:"client"`
	GeneratedAt  time.Time `json:"generated_at"`

	StartDate string   `json:"start_date"`
	EndDate   string   `json:"end_date"`
	Cities    []string `json:"cities"`
	Vehicles  []string `json:"vehicles"`

	SegmentCount     int     `json:"segment_count"`
	ActiveDays       int     `json:"active_days"`
	AttributedHours  float64 `json:"attributed_hours"`
	VehicleHours     float64 `json:"vehicle_hours"`
	ResolverWarnings []string `json:"resolver_warnings,omitempty"`

	Audience *audience.Estimate `json:"audience"`
	Finance  *finance.Report    `json:"finance"`
	Transit  *transit.Plan      `json:"transit"`
}

// Builder assembles campaign reports and writes them to disk.
type Builder struct {
	Resolver *schedule.Resolver
	Audience *audience.Calculator
	Finance  *finance.Calculator
	Transit  *transit.Inserter
	Settings *config.SettingsStore
	Logger   *zap.Logger
	Metrics  observability.MetricsRegistry
}

// NewBuilder constructs a Builder.
func NewBuilder(resolver *schedule.Resolver, aud *audience.Calculator, fin *finance.Calculator, tr *transit.Inserter, settings *config.SettingsStore, logger *zap.Logger, metrics observability.MetricsRegistry) *Builder {
	if logger == nil {
		logger = zap.NewNop()
	}
	if metrics == nil {
		metrics = &observability.MockMetricsRegistry{}
	}
	return &Builder{
		Resolver: resolver,
		Audience: aud,
		Finance:  fin,
		Transit:  tr,
		Settings: settings,
		Logger:   logger,
		Metrics:  metrics,
	}
}

// Build assembles a report for one campaign.
func (b *Builder) Build(c *models.Campaign) (*CampaignReport, error) {
	res, err := b.Resolver.Resolve(c)
	if err != nil {
		return nil, fmt.Errorf("resolving campaign %s: %w", c.ID, err)
	}
	fin := b.Finance.Calculate(c, res.Segments)
	est := b.Audience.Calculate(c, res.Segments, fin.DistanceKm)

	rep := &CampaignReport{
		CampaignID:       c.ID,
		CampaignName:     c.Name,
		Client:           c.Client,
		GeneratedAt:      time.Now().UTC(),
		StartDate:        models.DateKey(c.StartDate),
		EndDate:          models.DateKey(c.EndDate),
		Cities:           c.TargetCities(),
		Vehicles:         c.Vehicles,
		SegmentCount:     len(res.Segments),
		ActiveDays:       len(schedule.PresenceDates(res.Segments)),
		AttributedHours:  models.TotalHours(res.Segments),
		VehicleHours:     schedule.VehicleHours(res.Segments),
		ResolverWarnings: res.Warnings,
		Audience:         est,
		Finance:          fin,
	}
	if b.Transit != nil {
		rep.Transit = b.Transit.PlanCampaign(c, res.Segments)
	}
	b.Metrics.IncrementReports()
	return rep, nil
}

// Write persists the report as JSON under the configured reports output
// path and returns the file path.
func (b *Builder) Write(rep *CampaignReport) (string, error) {
	dir := config.DefaultSettings().ReportsOutputPath
	if b.Settings != nil {
		dir = b.Settings.Get().ReportsOutputPath
	}
	if err := os.MkdirAll(dir, 0o755); err != nil {
		return "", &models.FileIOError{Path: dir, Err: err}
	}
	name := fmt.Sprintf("campaign_%s_%s.json", rep.CampaignID, rep.GeneratedAt.Format("20060102_150405"))
	path := filepath.Join(dir, name)

	raw, err := json.MarshalIndent(rep, "", "  ")
	if err != nil {
		return "", fmt.Errorf("encoding report: %w", err)
	}
	if err := os.WriteFile(path, raw, 0o644); err != nil {
		return "", &models.FileIOError{Path: path, Err: err}
	}
	b.Logger.Info("campaign report written",
		zap.String("campaign_id", rep.CampaignID),
		zap.String("path", path),
	)
	return path, nil
}
