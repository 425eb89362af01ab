package models

import (
	"fmt"
	"sort"
	"time"
)

// PresenceSegment is the atomic unit of resolved campaign time: one
// vehicle broadcasting in one city on one date between two clock hours.
// Hours are fractional (17.5 = 17:30) and bounded to [0, 24].
type PresenceSegment struct {
	VehicleID string    `json:"vehicle_id"`
	City      string    `json:"city"`
	Date      time.Time `json:"date"`
	HourStart float64   `json:"hour_start"`
	HourEnd   float64   `json:"hour_end"`
}

// Hours is the segment duration in hours.
func (s PresenceSegment) Hours() float64 { return s.HourEnd - s.HourStart }

// StartTime anchors the segment start on the calendar.
func (s PresenceSegment) StartTime() time.Time {
	return s.Date.Add(time.Duration(s.HourStart * float64(time.Hour)))
}

// EndTime anchors the segment end on the calendar.
func (s PresenceSegment) EndTime() time.Time {
	return s.Date.Add(time.Duration(s.HourEnd * float64(time.Hour)))
}

// OverlapsHours reports whether two same-date segments share clock time.
func (s PresenceSegment) OverlapsHours(o PresenceSegment) bool {
	if !s.Date.Equal(o.Date) {
		return false
	}
	return s.HourStart < o.HourEnd && o.HourStart < s.HourEnd
}

func (s PresenceSegment) String() string {
	return fmt.Sprintf("%s@%s %s %05.2f-%05.2f", s.VehicleID, s.City, DateKey(s.Date), s.HourStart, s.HourEnd)
}

// SortSegments orders segments canonically by (vehicle, date, hour_start,
// city). Every resolver output passes through this before being returned.
func SortSegments(segs []PresenceSegment) {
	sort.SliceStable(segs, func(i, j int) bool {
		a, b := segs[i], segs[j]
		if a.VehicleID != b.VehicleID {
			return a.VehicleID < b.VehicleID
		}
		if !a.Date.Equal(b.Date) {
			return a.Date.Before(b.Date)
		}
		if a.HourStart != b.HourStart {
			return a.HourStart < b.HourStart
		}
		return a.City < b.City
	})
}

// TotalHours sums segment durations.
func TotalHours(segs []PresenceSegment) float64 {
	var total float64
	for _, s := range segs {
		total += s.Hours()
	}
	return total
}

// SegmentsForVehicle filters segments by vehicle, preserving order.
func SegmentsForVehicle(segs []PresenceSegment, vehicleID string) []PresenceSegment {
	out := make([]PresenceSegment, 0)
	for _, s := range segs {
		if s.VehicleID == vehicleID {
			out = append(out, s)
		}
	}
	return out
}
