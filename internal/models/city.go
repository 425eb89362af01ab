package models

import (
	"fmt"
	"time"
)

// UpdatePreference selects which external data source refreshes a city
// profile: public web scrape, INS (national statistics institute), BRAT
// (audience measurement bureau), or manual entry only.
type UpdatePreference string

const (
	UpdatePublic UpdatePreference = "public"
	UpdateINS    UpdatePreference = "ins"
	UpdateBRAT   UpdatePreference = "brat"
	UpdateManual UpdatePreference = "manual"
)

// ModalSplit is the percentage distribution of daily mobility. The four
// shares are expected to sum to roughly 100.
type ModalSplit struct {
	Auto            float64 `json:"auto"`
	Walking         float64 `json:"walking"`
	Cycling         float64 `json:"cycling"`
	PublicTransport float64 `json:"public_transport"`
}

// Sum returns the total of all shares.
func (m ModalSplit) Sum() float64 {
	return m.Auto + m.Walking + m.Cycling + m.PublicTransport
}

// CityRecord is one historical demographic + mobility snapshot for a city,
// keyed by quarter ("2026-Q1") in the owning profile.
type CityRecord struct {
	Population           int              `json:"population"`
	ActivePopulationPct  float64          `json:"active_population_pct"`
	DailyTrafficTotal    int              `json:"daily_traffic_total"`
	DailyPedestrianTotal int              `json:"daily_pedestrian_total"`
	Modal                ModalSplit       `json:"modal_split"`
	AvgCommuteDistanceKm float64          `json:"avg_commute_distance_km"`
	County               string           `json:"county,omitempty"`
	Source               string           `json:"source,omitempty"`
	LastUpdated          time.Time        `json:"last_updated,omitempty"`
	UpdatePreference     UpdatePreference `json:"update_preference,omitempty"`
}

// ActivePopulation is the working-age population estimate.
func (r CityRecord) ActivePopulation() float64 {
	return float64(r.Population) * r.ActivePopulationPct / 100.0
}

// CityProfile is the full history for one city plus a pointer to the
// record considered current.
type CityProfile struct {
	Name    string                `json:"name"`
	Records map[string]CityRecord `json:"records"`
	Current string                `json:"current,omitempty"`
}

// QuarterKey converts a date to the "YYYY-Qn" key used by city histories.
func QuarterKey(d time.Time) string {
	q := (int(d.Month())-1)/3 + 1
	return fmt.Sprintf("%d-Q%d", d.Year(), q)
}

// SpecialEvent raises (or lowers) a city's traffic for a date window, e.g.
// a festival or a road closure. Overlapping events apply first-match.
type SpecialEvent struct {
	Name                 string    `json:"name"`
	StartDate            time.Time `json:"start_date"`
	EndDate              time.Time `json:"end_date"`
	TrafficMultiplier    float64   `json:"traffic_multiplier"`
	PedestrianMultiplier float64   `json:"pedestrian_multiplier"`
}

// Covers reports whether the event window includes the date.
func (e SpecialEvent) Covers(d time.Time) bool {
	return !d.Before(e.StartDate) && !d.After(e.EndDate)
}
