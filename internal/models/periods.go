package models

import (
	"encoding/json"
	"fmt"
	"sort"
	"time"
)

// DateLayout is the wire format for calendar dates throughout the planner.
const DateLayout = "2006-01-02"

// DateKey formats a time as the canonical date key used by schedule maps.
func DateKey(t time.Time) string { return t.Format(DateLayout) }

// ParseDate parses a canonical date key into a UTC midnight time.
func ParseDate(s string) (time.Time, error) {
	t, err := time.ParseInLocation(DateLayout, s, time.UTC)
	if err != nil {
		return time.Time{}, NewValidationError("date", "invalid date %q", s)
	}
	return t, nil
}

// Period is a closed date interval. Both endpoints are inclusive and are
// normalized to UTC midnight.
type Period struct {
	Start time.Time `json:"start"`
	End   time.Time `json:"end"`
}

// Contains reports whether d falls inside the period.
func (p Period) Contains(d time.Time) bool {
	return !d.Before(p.Start) && !d.After(p.End)
}

// Days returns the number of calendar days covered, inclusive.
func (p Period) Days() int {
	return int(p.End.Sub(p.Start).Hours()/24) + 1
}

// MarshalJSON writes the period endpoints as date keys.
func (p Period) MarshalJSON() ([]byte, error) {
	return json.Marshal(map[string]string{
		"start": DateKey(p.Start),
		"end":   DateKey(p.End),
	})
}

// UnmarshalJSON accepts date-key endpoints.
func (p *Period) UnmarshalJSON(data []byte) error {
	var raw struct {
		Start string `json:"start"`
		End   string `json:"end"`
	}
	if err := json.Unmarshal(data, &raw); err != nil {
		return err
	}
	start, err := ParseDate(raw.Start)
	if err != nil {
		return err
	}
	end, err := ParseDate(raw.End)
	if err != nil {
		return err
	}
	p.Start, p.End = start, end
	return nil
}

// ScopeMode distinguishes how a campaign's period and schedule maps are
// keyed. In shared mode one logical plan is replicated across every
// assigned vehicle; in individual mode each vehicle carries its own plan.
type ScopeMode string

const (
	ScopeShared     ScopeMode = "shared"
	ScopeIndividual ScopeMode = "individual"
)

// DayPlan describes broadcast activity for one city on one date. Hours is
// one or more "HH:MM-HH:MM" intervals separated by commas. An inactive
// plan suppresses presence for the day entirely.
type DayPlan struct {
	Active bool   `json:"active"`
	Hours  string `json:"hours"`
}

// PeriodMap holds the date intervals a campaign (or spot) spends in each
// city. The legacy serialization overloaded string keys and signalled the
// mode through a "__meta__" entry; that shape is still accepted on read
// but is never written back.
type PeriodMap struct {
	Mode      ScopeMode
	ByCity    map[string][]Period            // shared: city -> periods
	ByVehicle map[string]map[string][]Period // individual: vehicle -> city -> periods
}

// Cities returns the sorted union of cities that appear anywhere in the map.
func (m PeriodMap) Cities() []string {
	set := map[string]struct{}{}
	if m.Mode == ScopeIndividual {
		for _, byCity := range m.ByVehicle {
			for c := range byCity {
				set[c] = struct{}{}
			}
		}
	} else {
		for c := range m.ByCity {
			set[c] = struct{}{}
		}
	}
	out := make([]string, 0, len(set))
	for c := range set {
		out = append(out, c)
	}
	sort.Strings(out)
	return out
}

// Clone returns a deep copy. Maps read from a store snapshot are shared
// with other readers and must be cloned before mutation.
func (m PeriodMap) Clone() PeriodMap {
	out := PeriodMap{Mode: m.Mode}
	if m.ByCity != nil {
		out.ByCity = make(map[string][]Period, len(m.ByCity))
		for city, ps := range m.ByCity {
			out.ByCity[city] = append([]Period(nil), ps...)
		}
	}
	if m.ByVehicle != nil {
		out.ByVehicle = make(map[string]map[string][]Period, len(m.ByVehicle))
		for v, byCity := range m.ByVehicle {
			inner := make(map[string][]Period, len(byCity))
			for city, ps := range byCity {
				inner[city] = append([]Period(nil), ps...)
			}
			out.ByVehicle[v] = inner
		}
	}
	return out
}

// PeriodsFor returns the intervals for a given scope. In shared mode the
// vehicle argument is ignored.
func (m PeriodMap) PeriodsFor(vehicleID, city string) []Period {
	if m.Mode == ScopeIndividual {
		if byCity, ok := m.ByVehicle[vehicleID]; ok {
			return byCity[city]
		}
		return nil
	}
	return m.ByCity[city]
}

// IsEmpty reports whether the map carries no intervals at all.
func (m PeriodMap) IsEmpty() bool {
	if m.Mode == ScopeIndividual {
		for _, byCity := range m.ByVehicle {
			for _, ps := range byCity {
				if len(ps) > 0 {
					return false
				}
			}
		}
		return true
	}
	for _, ps := range m.ByCity {
		if len(ps) > 0 {
			return false
		}
	}
	return true
}

// taggedPeriodMap is the canonical wire shape.
type taggedPeriodMap struct {
	Mode      ScopeMode                      `json:"mode"`
	ByCity    map[string][]Period            `json:"by_city,omitempty"`
	ByVehicle map[string]map[string][]Period `json:"by_vehicle,omitempty"`
}

// MarshalJSON always emits the tagged shape; the legacy "__meta__" entry
// is dropped on write.
func (m PeriodMap) MarshalJSON() ([]byte, error) {
	mode := m.Mode
	if mode == "" {
		mode = ScopeShared
	}
	return json.Marshal(taggedPeriodMap{Mode: mode, ByCity: m.ByCity, ByVehicle: m.ByVehicle})
}

// UnmarshalJSON accepts both the tagged shape and the legacy overloaded
// map with a "__meta__.shared_mode" flag.
func (m *PeriodMap) UnmarshalJSON(data []byte) error {
	var probe map[string]json.RawMessage
	if err := json.Unmarshal(data, &probe); err != nil {
		return err
	}
	if _, ok := probe["mode"]; ok {
		var tagged taggedPeriodMap
		if err := json.Unmarshal(data, &tagged); err != nil {
			return err
		}
		m.Mode = tagged.Mode
		m.ByCity = tagged.ByCity
		m.ByVehicle = tagged.ByVehicle
		return nil
	}
	return m.unmarshalLegacy(probe)
}

func (m *PeriodMap) unmarshalLegacy(probe map[string]json.RawMessage) error {
	shared := true
	if metaRaw, ok := probe["__meta__"]; ok {
		var meta struct {
			SharedMode *bool `json:"shared_mode"`
		}
		if err := json.Unmarshal(metaRaw, &meta); err == nil && meta.SharedMode != nil {
			shared = *meta.SharedMode
		}
		delete(probe, "__meta__")
	}
	if shared {
		m.Mode = ScopeShared
		m.ByCity = make(map[string][]Period, len(probe))
		for city, raw := range probe {
			var ps []Period
			if err := json.Unmarshal(raw, &ps); err != nil {
				return fmt.Errorf("legacy periods for %q: %w", city, err)
			}
			m.ByCity[city] = ps
		}
		return nil
	}
	m.Mode = ScopeIndividual
	m.ByVehicle = make(map[string]map[string][]Period, len(probe))
	for vehicle, raw := range probe {
		var byCity map[string][]Period
		if err := json.Unmarshal(raw, &byCity); err != nil {
			return fmt.Errorf("legacy periods for vehicle %q: %w", vehicle, err)
		}
		m.ByVehicle[vehicle] = byCity
	}
	return nil
}

// ScheduleMap holds the per-date day plans, keyed like its sibling
// PeriodMap: (city, date) in shared mode, (vehicle, city, date) otherwise.
type ScheduleMap struct {
	Mode      ScopeMode
	ByCity    map[string]map[string]DayPlan            // city -> date -> plan
	ByVehicle map[string]map[string]map[string]DayPlan // vehicle -> city -> date -> plan
}

// Clone returns a deep copy, mirroring PeriodMap.Clone.
func (m ScheduleMap) Clone() ScheduleMap {
	out := ScheduleMap{Mode: m.Mode}
	if m.ByCity != nil {
		out.ByCity = make(map[string]map[string]DayPlan, len(m.ByCity))
		for city, byDate := range m.ByCity {
			out.ByCity[city] = cloneDayPlans(byDate)
		}
	}
	if m.ByVehicle != nil {
		out.ByVehicle = make(map[string]map[string]map[string]DayPlan, len(m.ByVehicle))
		for v, byCity := range m.ByVehicle {
			inner := make(map[string]map[string]DayPlan, len(byCity))
			for city, byDate := range byCity {
				inner[city] = cloneDayPlans(byDate)
			}
			out.ByVehicle[v] = inner
		}
	}
	return out
}

func cloneDayPlans(byDate map[string]DayPlan) map[string]DayPlan {
	out := make(map[string]DayPlan, len(byDate))
	for d, plan := range byDate {
		out[d] = plan
	}
	return out
}

// PlanFor resolves the day plan for a scope and date. The boolean reports
// whether an explicit entry exists; callers synthesize a default otherwise.
func (m ScheduleMap) PlanFor(vehicleID, city string, date time.Time) (DayPlan, bool) {
	key := DateKey(date)
	if m.Mode == ScopeIndividual {
		if byCity, ok := m.ByVehicle[vehicleID]; ok {
			if byDate, ok := byCity[city]; ok {
				plan, ok := byDate[key]
				return plan, ok
			}
		}
		return DayPlan{}, false
	}
	if byDate, ok := m.ByCity[city]; ok {
		plan, ok := byDate[key]
		return plan, ok
	}
	return DayPlan{}, false
}

// DatesFor lists the explicit schedule dates for a scope, sorted.
func (m ScheduleMap) DatesFor(vehicleID, city string) []string {
	var byDate map[string]DayPlan
	if m.Mode == ScopeIndividual {
		if byCity, ok := m.ByVehicle[vehicleID]; ok {
			byDate = byCity[city]
		}
	} else {
		byDate = m.ByCity[city]
	}
	out := make([]string, 0, len(byDate))
	for d := range byDate {
		out = append(out, d)
	}
	sort.Strings(out)
	return out
}

type taggedScheduleMap struct {
	Mode      ScopeMode                                `json:"mode"`
	ByCity    map[string]map[string]DayPlan            `json:"by_city,omitempty"`
	ByVehicle map[string]map[string]map[string]DayPlan `json:"by_vehicle,omitempty"`
}

// MarshalJSON always emits the tagged shape.
func (m ScheduleMap) MarshalJSON() ([]byte, error) {
	mode := m.Mode
	if mode == "" {
		mode = ScopeShared
	}
	return json.Marshal(taggedScheduleMap{Mode: mode, ByCity: m.ByCity, ByVehicle: m.ByVehicle})
}

// UnmarshalJSON accepts the tagged shape and the legacy overloaded map.
func (m *ScheduleMap) UnmarshalJSON(data []byte) error {
	var probe map[string]json.RawMessage
	if err := json.Unmarshal(data, &probe); err != nil {
		return err
	}
	if _, ok := probe["mode"]; ok {
		var tagged taggedScheduleMap
		if err := json.Unmarshal(data, &tagged); err != nil {
			return err
		}
		m.Mode = tagged.Mode
		m.ByCity = tagged.ByCity
		m.ByVehicle = tagged.ByVehicle
		return nil
	}
	shared := true
	if metaRaw, ok := probe["__meta__"]; ok {
		var meta struct {
			SharedMode *bool `json:"shared_mode"`
		}
		if err := json.Unmarshal(metaRaw, &meta); err == nil && meta.SharedMode != nil {
			shared = *meta.SharedMode
		}
		delete(probe, "__meta__")
	}
	if shared {
		m.Mode = ScopeShared
		m.ByCity = make(map[string]map[string]DayPlan, len(probe))
		for city, raw := range probe {
			var byDate map[string]DayPlan
			if err := json.Unmarshal(raw, &byDate); err != nil {
				return fmt.Errorf("legacy schedules for %q: %w", city, err)
			}
			m.ByCity[city] = byDate
		}
		return nil
	}
	m.Mode = ScopeIndividual
	m.ByVehicle = make(map[string]map[string]map[string]DayPlan, len(probe))
	for vehicle, raw := range probe {
		var byCity map[string]map[string]DayPlan
		if err := json.Unmarshal(raw, &byCity); err != nil {
			return fmt.Errorf("legacy schedules for vehicle %q: %w", vehicle, err)
		}
		m.ByVehicle[vehicle] = byCity
	}
	return nil
}
