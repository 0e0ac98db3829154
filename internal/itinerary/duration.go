package itinerary

import (
	"fmt"
	"regexp"
	"strconv"
	"strings"

	"tripbench/internal/types"
)

var (
	colonDuration = regexp.MustCompile(`^(\d+):([0-5]\d)$`)
	bareNumber    = regexp.MustCompile(`^\d+(?:\.\d+)?$`)
	unitPair      = regexp.MustCompile(`(\d+(?:\.\d+)?)\s*(days?|d|hours?|hrs?|h|minutes?|mins?|m)\b`)
	pairFiller    = regexp.MustCompile(`^[\s,]*(?:and)?[\s,]*$`)
)

// ParseDuration parses a number or a duration string into the given unit.
// Accepted strings: "H:MM", number+unit pairs ("2 hours", "1h 30m", "3 days"),
// "half day", or a bare number taken in unit.
func ParseDuration(v any, unit Unit) (float64, bool) {
	switch x := v.(type) {
	case nil:
		return 0, false
	case string:
		return parseDurationString(x, unit)
	default:
		n, ok := asNumber(v)
		if !ok {
			return 0, false
		}
		return n, true
	}
}

func parseDurationString(s string, unit Unit) (float64, bool) {
	s = strings.ToLower(strings.TrimSpace(s))
	if s == "" {
		return 0, false
	}
	if s == "half day" || s == "half-day" || s == "half a day" {
		return fromHours(12, unit), true
	}
	if m := colonDuration.FindStringSubmatch(s); m != nil {
		h, _ := strconv.Atoi(m[1])
		mins, _ := strconv.Atoi(m[2])
		return fromHours(float64(h)+float64(mins)/60, unit), true
	}
	if bareNumber.MatchString(s) {
		n, err := strconv.ParseFloat(s, 64)
		if err != nil {
			return 0, false
		}
		return n, true
	}

	matches := unitPair.FindAllStringSubmatchIndex(s, -1)
	if len(matches) == 0 {
		return 0, false
	}
	var hours float64
	last := 0
	for _, m := range matches {
		if !pairFiller.MatchString(s[last:m[0]]) {
			return 0, false
		}
		n, err := strconv.ParseFloat(s[m[2]:m[3]], 64)
		if err != nil {
			return 0, false
		}
		switch s[m[4]] {
		case 'd':
			hours += n * 24
		case 'h':
			hours += n
		case 'm':
			hours += n / 60
		}
		last = m[1]
	}
	if !pairFiller.MatchString(s[last:]) {
		return 0, false
	}
	return fromHours(hours, unit), true
}

func fromHours(h float64, unit Unit) float64 {
	if unit == UnitDays {
		return types.Round(h/24, 6)
	}
	return types.Round(h, 6)
}

func decodeDuration(v any, present bool, unit Unit) Duration {
	d := Duration{Present: present && v != nil}
	if !d.Present {
		return d
	}
	if s, ok := v.(string); ok {
		d.Raw = s
	} else {
		d.Numeric = true
		d.Raw = fmt.Sprint(v)
	}
	d.Value, d.OK = ParseDuration(v, unit)
	if d.Numeric && !d.OK {
		d.Numeric = false
	}
	return d
}
