package itinerary

import (
	"encoding/json"
	"fmt"
	"math"
	"strconv"
	"strings"

	"github.com/samber/lo"
)

// Decode normalizes a raw generated object into the canonical Itinerary.
// Shape variants (string vs number durations, list vs string activity types,
// countryInfo object/array/map) are resolved here.
func Decode(raw map[string]any) *Itinerary {
	it := &Itinerary{
		Title:   firstString(raw, "title", "tripTitle", "name"),
		Summary: firstString(raw, "summary", "overview"),
	}
	for _, k := range RequiredKeys {
		if v, ok := raw[k]; !ok || v == nil {
			it.MissingKeys = append(it.MissingKeys, k)
		}
	}

	for _, item := range asList(raw, "cities", it) {
		it.Cities = append(it.Cities, decodeCity(item))
	}
	for _, item := range asList(raw, "activities", it) {
		it.Activities = append(it.Activities, decodeActivity(item))
	}
	for _, item := range asList(raw, "travelSegments", it) {
		it.Travel = append(it.Travel, decodeTravel(item))
	}
	if v, ok := raw["countryInfo"]; ok && v != nil {
		it.Country = collectCountryInfo(v)
	}
	return it
}

func asList(raw map[string]any, key string, it *Itinerary) []any {
	v, ok := raw[key]
	if !ok || v == nil {
		return nil
	}
	list, ok := v.([]any)
	if !ok {
		it.Problems = append(it.Problems, fmt.Sprintf("%s must be an array", key))
		return nil
	}
	return list
}

func decodeCity(item any) City {
	m, ok := item.(map[string]any)
	if !ok {
		return City{NotObject: true}
	}
	c := City{
		Name:        firstString(m, "name", "city", "cityName"),
		Description: firstString(m, "description", "details"),
		Days:        firstNumber(m, "days", "durationDays", "duration"),
		Lat:         firstNumber(m, "lat", "latitude"),
		Lng:         firstNumber(m, "lng", "lon", "longitude"),
	}
	if coords, ok := m["coordinates"].(map[string]any); ok {
		if c.Lat == nil {
			c.Lat = firstNumber(coords, "lat", "latitude")
		}
		if c.Lng == nil {
			c.Lng = firstNumber(coords, "lng", "lon", "longitude")
		}
	}
	return c
}

func decodeActivity(item any) Activity {
	m, ok := item.(map[string]any)
	if !ok {
		return Activity{NotObject: true}
	}
	a := Activity{
		CityIndex:   firstIndex(m, "cityIndex", "city_index"),
		Title:       firstString(m, "title", "name"),
		Description: firstString(m, "description", "details"),
	}
	if off := firstNumber(m, "dayOffset", "day_offset", "dayOffsetInCity"); off != nil && *off >= 0 {
		a.DayOffset = *off
	}

	for _, key := range []string{"activityTypes", "activityType", "types", "type"} {
		if v, ok := m[key]; ok && v != nil {
			a.RawTypes = stringList(v)
			break
		}
	}
	for _, rt := range a.RawTypes {
		t, ok := MapActivityType(rt)
		if !ok {
			a.UnmappedTypes = append(a.UnmappedTypes, rt)
			continue
		}
		a.Types = append(a.Types, t)
	}
	a.Types = lo.Uniq(a.Types)

	v, present := firstValue(m, "duration", "durationDays")
	a.Duration = decodeDuration(v, present, UnitDays)
	return a
}

func decodeTravel(item any) TravelSegment {
	m, ok := item.(map[string]any)
	if !ok {
		return TravelSegment{NotObject: true}
	}
	t := TravelSegment{
		FromIndex:   firstIndex(m, "fromCityIndex", "fromIndex", "from"),
		ToIndex:     firstIndex(m, "toCityIndex", "toIndex", "to"),
		RawMode:     firstString(m, "transportMode", "mode", "transport"),
		Description: firstString(m, "description", "details"),
	}
	if mode, ok := MapTransportMode(t.RawMode); ok {
		t.Mode = mode
	}
	v, present := firstValue(m, "duration", "durationHours")
	t.Duration = decodeDuration(v, present, UnitHours)
	return t
}

func firstValue(m map[string]any, keys ...string) (any, bool) {
	for _, k := range keys {
		if v, ok := m[k]; ok && v != nil {
			return v, true
		}
	}
	return nil, false
}

func firstString(m map[string]any, keys ...string) string {
	for _, k := range keys {
		if s, ok := m[k].(string); ok && strings.TrimSpace(s) != "" {
			return strings.TrimSpace(s)
		}
	}
	return ""
}

func firstNumber(m map[string]any, keys ...string) *float64 {
	for _, k := range keys {
		if n, ok := asNumber(m[k]); ok {
			return &n
		}
	}
	return nil
}

func firstIndex(m map[string]any, keys ...string) *int {
	n := firstNumber(m, keys...)
	if n == nil || *n < 0 || *n != math.Trunc(*n) {
		return nil
	}
	i := int(*n)
	return &i
}

// asNumber accepts JSON numbers and numeric strings; the result is always finite.
func asNumber(v any) (float64, bool) {
	var n float64
	switch x := v.(type) {
	case float64:
		n = x
	case float32:
		n = float64(x)
	case int:
		n = float64(x)
	case int64:
		n = float64(x)
	case json.Number:
		f, err := x.Float64()
		if err != nil {
			return 0, false
		}
		n = f
	case string:
		f, err := strconv.ParseFloat(strings.TrimSpace(x), 64)
		if err != nil {
			return 0, false
		}
		n = f
	default:
		return 0, false
	}
	if math.IsNaN(n) || math.IsInf(n, 0) {
		return 0, false
	}
	return n, true
}

// stringList accepts a list of strings or a single delimited string.
func stringList(v any) []string {
	var out []string
	switch x := v.(type) {
	case string:
		for _, part := range strings.FieldsFunc(x, func(r rune) bool { return r == ',' || r == '/' || r == '|' || r == ';' }) {
			if p := strings.TrimSpace(part); p != "" {
				out = append(out, p)
			}
		}
	case []any:
		for _, item := range x {
			if s, ok := item.(string); ok && strings.TrimSpace(s) != "" {
				out = append(out, strings.TrimSpace(s))
			}
		}
	case []string:
		for _, s := range x {
			if strings.TrimSpace(s) != "" {
				out = append(out, strings.TrimSpace(s))
			}
		}
	}
	return out
}
