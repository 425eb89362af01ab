package audience

import (
	"fmt"
	"time"

	"go.uber.org/zap"

	"github.com/avasilescu/mobiplan/internal/models"
)

// Audience model constants.
const (
	// AutoOccupancy is the average number of persons per vehicle.
	AutoOccupancy = 1.65
	// SharedVisibility is the visibility factor for non-exclusive campaigns.
	SharedVisibility = 0.7
	// UniqueRate converts coverage into the fraction of active population
	// reached at full coverage.
	UniqueRate = 0.6
	// FullCoverageLoops is the number of route loops treated as complete
	// city coverage.
	FullCoverageLoops = 10.0
)

// ProfileSource supplies demographic data for a city on a date. Implemented
// by the city profile store; a nil source yields defaults plus warnings.
type ProfileSource interface {
	EffectiveRecord(city string, date time.Time) (models.CityRecord, bool)
	EventMultipliers(city string, date time.Time) (trafficMult, pedestrianMult float64)
}

// CityBreakdown is the per-city slice of the aggregate numbers.
type CityBreakdown struct {
	Hours           float64 `json:"hours"`
	TrafficFlow     float64 `json:"traffic_flow"`
	PedestrianFlow  float64 `json:"pedestrian_flow"`
	Population      int     `json:"population"`
	ActivePop       float64 `json:"active_population"`
	CommuteKm       float64 `json:"avg_commute_distance_km"`
	Modal           models.ModalSplit `json:"modal_split"`
}

// Estimate is the audience forecast for a campaign.
type Estimate struct {
	ImpressionsAuto       float64 `json:"impressions_auto"`
	ImpressionsPedestrian float64 `json:"impressions_pedestrian"`
	ImpressionsTotal      float64 `json:"impressions_total"`
	Reach                 float64 `json:"reach"`
	OTS                   float64 `json:"ots"`
	ShareOfVoice          float64 `json:"share_of_voice"`
	VisibilityFactor      float64 `json:"visibility_factor"`
	RouteLoops            float64 `json:"route_loops"`
	TotalHours            float64 `json:"total_hours"`
	TotalDistanceKm       float64 `json:"total_distance_km"`
	PerCity               map[string]*CityBreakdown `json:"per_city"`
	Warnings              []string                  `json:"warnings,omitempty"`
}

// Calculator turns a resolved timeline into an audience Estimate.
type Calculator struct {
	Profiles ProfileSource
	Logger   *zap.Logger
}

// NewCalculator constructs a Calculator.
func NewCalculator(profiles ProfileSource, logger *zap.Logger) *Calculator {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &Calculator{Profiles: profiles, Logger: logger}
}

// Calculate walks the campaign's presence segments, accumulates hourly
// traffic and pedestrian flow per city with event multipliers applied,
// then converts the totals into impressions, reach and OTS. Missing city
// profiles substitute zero flow and are reported as warnings, never as
// errors. distanceKm is the campaign's planned distance, used for the
// route-loop coverage factor.
func (calc *Calculator) Calculate(c *models.Campaign, segs []models.PresenceSegment, distanceKm float64) *Estimate {
	est := &Estimate{
		ShareOfVoice:     c.ShareOfVoice(),
		VisibilityFactor: c.VisibilityFactor(),
		TotalDistanceKm:  distanceKm,
		PerCity:          make(map[string]*CityBreakdown),
	}

	var totalTraffic, totalPedestrian float64
	for _, seg := range segs {
		bd := est.PerCity[seg.City]
		if bd == nil {
			bd = calc.cityBreakdown(seg.City, seg.Date, est)
			est.PerCity[seg.City] = bd
		}
		rec, ok := calc.record(seg.City, seg.Date)
		if !ok {
			continue
		}
		tm, pm := 1.0, 1.0
		if calc.Profiles != nil {
			tm, pm = calc.Profiles.EventMultipliers(seg.City, seg.Date)
		}
		h := seg.Hours()
		traffic := float64(rec.DailyTrafficTotal) / 24.0 * h * tm
		pedestrian := float64(rec.DailyPedestrianTotal) / 24.0 * h * pm

		bd.Hours += h
		bd.TrafficFlow += traffic
		bd.PedestrianFlow += pedestrian
		est.TotalHours += h
		totalTraffic += traffic
		totalPedestrian += pedestrian
	}

	modal, commuteKm := calc.weightedProfile(est)
	autoFlow := totalTraffic * modal.Auto / 100.0
	cyclingFlow := totalTraffic * modal.Cycling / 100.0
	walkingFlow := totalPedestrian * modal.Walking / 100.0

	est.ImpressionsAuto = autoFlow * AutoOccupancy * est.VisibilityFactor * est.ShareOfVoice
	est.ImpressionsPedestrian = (walkingFlow + cyclingFlow) * est.VisibilityFactor * est.ShareOfVoice
	est.ImpressionsTotal = est.ImpressionsAuto + est.ImpressionsPedestrian

	est.RouteLoops = 0
	if commuteKm > 0 {
		est.RouteLoops = distanceKm / commuteKm
	}
	coverage := est.RouteLoops / FullCoverageLoops
	if coverage > 1 {
		coverage = 1
	}
	est.Reach = calc.durationWeightedActivePop(est) * UniqueRate * coverage

	if est.Reach > 0 {
		est.OTS = est.ImpressionsTotal / est.Reach
	} else {
		est.OTS = 1.0
	}
	return est
}

// cityBreakdown seeds the per-city slot with the city's demographic base,
// warning when no profile is available.
func (calc *Calculator) cityBreakdown(city string, date time.Time, est *Estimate) *CityBreakdown {
	bd := &CityBreakdown{}
	rec, ok := calc.record(city, date)
	if !ok {
		est.Warnings = append(est.Warnings, fmt.Sprintf("no city profile for %q, audience contribution is zero", city))
		calc.Logger.Warn("city profile missing", zap.String("city", city))
		return bd
	}
	bd.Population = rec.Population
	bd.ActivePop = rec.ActivePopulation()
	bd.CommuteKm = rec.AvgCommuteDistanceKm
	bd.Modal = rec.Modal
	return bd
}

func (calc *Calculator) record(city string, date time.Time) (models.CityRecord, bool) {
	if calc.Profiles == nil {
		return models.CityRecord{}, false
	}
	return calc.Profiles.EffectiveRecord(city, date)
}

// weightedProfile averages modal split and commute distance across touched
// cities, weighted by city population.
func (calc *Calculator) weightedProfile(est *Estimate) (models.ModalSplit, float64) {
	var modal models.ModalSplit
	var commute, weight float64
	for _, bd := range est.PerCity {
		w := float64(bd.Population)
		if w <= 0 {
			continue
		}
		modal.Auto += bd.Modal.Auto * w
		modal.Walking += bd.Modal.Walking * w
		modal.Cycling += bd.Modal.Cycling * w
		modal.PublicTransport += bd.Modal.PublicTransport * w
		commute += bd.CommuteKm * w
		weight += w
	}
	if weight == 0 {
		return models.ModalSplit{}, 0
	}
	modal.Auto /= weight
	modal.Walking /= weight
	modal.Cycling /= weight
	modal.PublicTransport /= weight
	return modal, commute / weight
}

// durationWeightedActivePop sums active population across cities weighted
// by each city's share of the total presence hours.
func (calc *Calculator) durationWeightedActivePop(est *Estimate) float64 {
	if est.TotalHours == 0 {
		return 0
	}
	var total float64
	for _, bd := range est.PerCity {
		total += bd.ActivePop * (bd.Hours / est.TotalHours)
	}
	return total
}
