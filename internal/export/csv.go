package export

import (
	"encoding/csv"
	"fmt"
	"io"
	"path/filepath"
	"sort"
	"strings"
	"time"

	"go.uber.org/zap"

	"github.com/avasilescu/mobiplan/internal/models"
	"github.com/avasilescu/mobiplan/internal/schedule"
)

// header is shared by the media-plan and schedule exports so downstream
// spreadsheets can merge them.
var header = []string{
	"Order", "Spot Name", "Duration", "Status", "Target Cities",
	"Target Vehicles", "Start Date", "End Date", "Schedule/Hours",
	"File Name", "Notes",
}

// Exporter writes campaign plans as CSV.
type Exporter struct {
	Resolver *schedule.Resolver
	Logger   *zap.Logger
}

// NewExporter constructs an Exporter.
func NewExporter(resolver *schedule.Resolver, logger *zap.Logger) *Exporter {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &Exporter{Resolver: resolver, Logger: logger}
}

// MediaPlan writes one row per spot, in index order, describing what each
// media item targets and when it runs.
func (e *Exporter) MediaPlan(w io.Writer, c *models.Campaign, spots []models.Spot) error {
	cw := csv.NewWriter(w)
	if err := cw.Write(header); err != nil {
		return fmt.Errorf("writing media plan header: %w", err)
	}

	ordered := make([]models.Spot, len(spots))
	copy(ordered, spots)
	sort.SliceStable(ordered, func(i, j int) bool { return ordered[i].Index < ordered[j].Index })

	for _, sp := range ordered {
		cities := sp.TargetCities
		if len(cities) == 0 {
			cities = c.TargetCities()
		}
		vehicles := sp.TargetVehicles
		if len(vehicles) == 0 {
			vehicles = c.Vehicles
		}
		start, end := spotRange(c, &sp)
		row := []string{
			fmt.Sprintf("%d", sp.Index),
			sp.Name,
			fmt.Sprintf("%ds", sp.DurationSec),
			string(sp.Status),
			strings.Join(cities, ", "),
			strings.Join(vehicles, ", "),
			models.DateKey(start),
			models.DateKey(end),
			spotHours(c, &sp),
			filepath.Base(sp.FilePath),
			sp.Notes,
		}
		if err := cw.Write(row); err != nil {
			return fmt.Errorf("writing media plan row: %w", err)
		}
	}
	cw.Flush()
	return cw.Error()
}

// Schedule writes one row per resolved presence segment, the broadcast
// truth downstream traffic teams work from.
func (e *Exporter) Schedule(w io.Writer, c *models.Campaign) error {
	res, err := e.Resolver.Resolve(c)
	if err != nil {
		return fmt.Errorf("resolving campaign %s: %w", c.ID, err)
	}

	cw := csv.NewWriter(w)
	if err := cw.Write(header); err != nil {
		return fmt.Errorf("writing schedule header: %w", err)
	}
	for i, seg := range res.Segments {
		row := []string{
			fmt.Sprintf("%d", i+1),
			c.Name,
			fmt.Sprintf("%ds", c.SpotDurationSec),
			string(c.Status),
			seg.City,
			seg.VehicleID,
			models.DateKey(seg.Date),
			models.DateKey(seg.Date),
			schedule.FormatHours([]schedule.HourRange{{Start: seg.HourStart, End: seg.HourEnd}}),
			"",
			"",
		}
		if err := cw.Write(row); err != nil {
			return fmt.Errorf("writing schedule row: %w", err)
		}
	}
	cw.Flush()
	return cw.Error()
}

// spotRange picks the spot's own date range when it carries one, falling
// back to the campaign range.
func spotRange(c *models.Campaign, sp *models.Spot) (start, end time.Time) {
	if !sp.HasOwnPlan() {
		return c.StartDate, c.EndDate
	}
	first, last := c.EndDate, c.StartDate
	scopes := []string{""}
	if sp.SpotPeriods.Mode == models.ScopeIndividual {
		scopes = c.Vehicles
	}
	for _, city := range sp.SpotPeriods.Cities() {
		for _, v := range scopes {
			for _, p := range sp.SpotPeriods.PeriodsFor(v, city) {
				if p.Start.Before(first) {
					first = p.Start
				}
				if p.End.After(last) {
					last = p.End
				}
			}
		}
	}
	return first, last
}

func spotHours(c *models.Campaign, sp *models.Spot) string {
	if sp.HasOwnPlan() {
		return "per spot plan"
	}
	return c.DailyHours
}
