package schedule

import (
	"fmt"
	"strconv"
	"strings"

	"github.com/avasilescu/mobiplan/internal/models"
)

// HourRange is one parsed clock interval within a day plan. End may exceed
// 24 when the interval crosses midnight ("22:00-02:00" parses to 22..26);
// the resolver splits such ranges at the day boundary.
type HourRange struct {
	Start float64
	End   float64
}

// Hours returns the range duration in hours.
func (h HourRange) Hours() float64 { return h.End - h.Start }

// ParseHours parses an hours string: one or more "HH:MM-HH:MM" intervals
// separated by commas. "24:00" normalizes to the following midnight. An
// interval whose end does not exceed its start is treated as overnight and
// extended past 24.
func ParseHours(s string) ([]HourRange, error) {
	s = strings.TrimSpace(s)
	if s == "" {
		return nil, models.NewValidationError("hours", "empty hours string")
	}
	parts := strings.Split(s, ",")
	ranges := make([]HourRange, 0, len(parts))
	for _, part := range parts {
		part = strings.TrimSpace(part)
		if part == "" {
			continue
		}
		bounds := strings.SplitN(part, "-", 2)
		if len(bounds) != 2 {
			return nil, models.NewValidationError("hours", "interval %q is not HH:MM-HH:MM", part)
		}
		start, err := parseClock(bounds[0])
		if err != nil {
			return nil, err
		}
		end, err := parseClock(bounds[1])
		if err != nil {
			return nil, err
		}
		if end <= start {
			// Overnight interval; it continues into the next day.
			end += 24
		}
		ranges = append(ranges, HourRange{Start: start, End: end})
	}
	if len(ranges) == 0 {
		return nil, models.NewValidationError("hours", "no intervals in %q", s)
	}
	return ranges, nil
}

// parseClock converts "HH:MM" to fractional hours. "24:00" maps to 24.
func parseClock(s string) (float64, error) {
	s = strings.TrimSpace(s)
	bits := strings.SplitN(s, ":", 2)
	if len(bits) != 2 {
		return 0, models.NewValidationError("hours", "clock value %q is not HH:MM", s)
	}
	hh, err := strconv.Atoi(bits[0])
	if err != nil || hh < 0 || hh > 24 {
		return 0, models.NewValidationError("hours", "bad hour in %q", s)
	}
	mm, err := strconv.Atoi(bits[1])
	if err != nil || mm < 0 || mm > 59 {
		return 0, models.NewValidationError("hours", "bad minute in %q", s)
	}
	if hh == 24 && mm != 0 {
		return 0, models.NewValidationError("hours", "%q exceeds 24:00", s)
	}
	return float64(hh) + float64(mm)/60.0, nil
}

// FormatHours renders ranges back into the canonical string form, used by
// exports and auto-transit annotations.
func FormatHours(ranges []HourRange) string {
	parts := make([]string, 0, len(ranges))
	for _, r := range ranges {
		parts = append(parts, fmt.Sprintf("%s-%s", formatClock(r.Start), formatClock(r.End)))
	}
	return strings.Join(parts, ", ")
}

func formatClock(h float64) string {
	for h >= 24 {
		h -= 24
	}
	hh := int(h)
	mm := int((h - float64(hh)) * 60.0)
	return fmt.Sprintf("%02d:%02d", hh, mm)
}
