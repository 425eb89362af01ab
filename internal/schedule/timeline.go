package schedule

import (
	"sort"

	"github.com/avasilescu/mobiplan/internal/models"
)

// VehicleHours returns the deduplicated vehicle occupation across the
// segments: overlapping clock time of one vehicle on one date counts once
// even when the plan attributes it to multiple cities. City-attributed
// hours (models.TotalHours) stay available for audience figures.
func VehicleHours(segs []models.PresenceSegment) float64 {
	type key struct {
		vehicle string
		date    string
	}
	byDay := map[key][]HourRange{}
	for _, s := range segs {
		k := key{s.VehicleID, models.DateKey(s.Date)}
		byDay[k] = append(byDay[k], HourRange{Start: s.HourStart, End: s.HourEnd})
	}
	var total float64
	for _, ranges := range byDay {
		total += mergedHours(ranges)
	}
	return total
}

// mergedHours sums a set of ranges after merging overlaps.
func mergedHours(ranges []HourRange) float64 {
	if len(ranges) == 0 {
		return 0
	}
	sort.Slice(ranges, func(i, j int) bool { return ranges[i].Start < ranges[j].Start })
	var total float64
	cur := ranges[0]
	for _, r := range ranges[1:] {
		if r.Start <= cur.End {
			if r.End > cur.End {
				cur.End = r.End
			}
			continue
		}
		total += cur.Hours()
		cur = r
	}
	total += cur.Hours()
	return total
}

// PresenceDates lists the distinct dates a vehicle is present, sorted.
func PresenceDates(segs []models.PresenceSegment) []string {
	set := map[string]struct{}{}
	for _, s := range segs {
		set[models.DateKey(s.Date)] = struct{}{}
	}
	out := make([]string, 0, len(set))
	for d := range set {
		out = append(out, d)
	}
	sort.Strings(out)
	return out
}
