package itinerary

import (
	"encoding/json"
	"math"
	"strings"
	"testing"
)

const lisbonPorto = `{
  "title": "Lisbon and Porto",
  "cities": [
    {"name": "Lisbon", "description": "Capital on the Tagus.\n\n### Must See\n- Belem Tower\n\n### Must Try\n- Pastel de nata\n\n### Must Do\n- Ride tram 28", "days": 2, "lat": 38.7223, "lng": -9.1393},
    {"name": "Porto", "description": "City of bridges.\n\n## Must See\n- Ribeira\n\n## Must Try\n- Francesinha\n\n## Must Do\n- Douro cruise", "days": 1, "lat": 41.1579, "lng": -8.6291}
  ],
  "activities": [
    {"cityIndex": 0, "dayOffset": 0, "title": "Belem", "description": "Tower and monastery", "activityTypes": ["culture", "sightseeing"], "duration": 0.5},
    {"cityIndex": 1, "dayOffset": 0, "title": "Cellars", "description": "Wine tasting in Gaia", "activityTypes": ["food"], "duration": 0.25}
  ],
  "travelSegments": [
    {"fromCityIndex": 0, "toCityIndex": 1, "transportMode": "train", "duration": 3}
  ],
  "countryInfo": {"country": "Portugal", "currency": "EUR", "exchangeRate": 0.92, "languages": ["Portuguese"], "socketType": "F", "visaInfoUrl": "https://vistos.mne.gov.pt", "travelAdvisoryUrl": "https://travel.state.gov/portugal"}
}`

func fixture(t *testing.T) map[string]any {
	t.Helper()
	var raw map[string]any
	if err := json.Unmarshal([]byte(lisbonPorto), &raw); err != nil {
		t.Fatalf("fixture: %v", err)
	}
	return raw
}

func item(raw map[string]any, key string, i int) map[string]any {
	return raw[key].([]any)[i].(map[string]any)
}

func TestParseDuration(t *testing.T) {
	cases := []struct {
		in     any
		unit   Unit
		want   float64
		wantOK bool
	}{
		{"2 hours", UnitHours, 2, true},
		{"1:30", UnitHours, 1.5, true},
		{2.5, UnitHours, 2.5, true},
		{2.5, UnitDays, 2.5, true},
		{"abc", UnitHours, 0, false},
		{"", UnitDays, 0, false},
		{nil, UnitDays, 0, false},
		{"3 days", UnitDays, 3, true},
		{"3 days", UnitHours, 72, true},
		{"1h 30m", UnitHours, 1.5, true},
		{"1 hour and 30 minutes", UnitHours, 1.5, true},
		{"45 min", UnitHours, 0.75, true},
		{"2 hours", UnitDays, 0.083333, true},
		{"half day", UnitDays, 0.5, true},
		{"2", UnitDays, 2, true},
		{"2 hours of fun", UnitHours, 0, false},
		{true, UnitHours, 0, false},
	}
	for _, tc := range cases {
		got, ok := ParseDuration(tc.in, tc.unit)
		if ok != tc.wantOK {
			t.Errorf("ParseDuration(%v) ok = %v, want %v", tc.in, ok, tc.wantOK)
			continue
		}
		if ok && math.Abs(got-tc.want) > 1e-9 {
			t.Errorf("ParseDuration(%v) = %v, want %v", tc.in, got, tc.want)
		}
	}
}

func TestValidateAcceptsCompleteItinerary(t *testing.T) {
	report, it := Validate(fixture(t))
	if !report.SchemaValid {
		t.Fatalf("expected schema valid, errors: %v", report.Errors)
	}
	if len(report.Warnings) != 0 {
		t.Errorf("expected no warnings, got %v", report.Warnings)
	}
	if len(it.Cities) != 2 || len(it.Activities) != 2 || len(it.Travel) != 1 {
		t.Errorf("decoded counts = %d/%d/%d", len(it.Cities), len(it.Activities), len(it.Travel))
	}
	for name, ok := range report.Checks {
		if !ok {
			t.Errorf("check %s failed", name)
		}
	}
}

func TestValidateMissingCountryInfoOnlyWarns(t *testing.T) {
	raw := fixture(t)
	delete(raw, "countryInfo")
	report, _ := Validate(raw)
	if !report.SchemaValid {
		t.Fatalf("expected schema valid, errors: %v", report.Errors)
	}
	if len(report.Warnings) == 0 {
		t.Fatal("expected warnings for missing countryInfo")
	}
	if report.Checks[CheckCountryInfo] {
		t.Error("countryInfo check should be false")
	}
}

func TestValidateBlockingFailures(t *testing.T) {
	cases := []struct {
		name   string
		mutate func(raw map[string]any)
		check  string
	}{
		{"missing cities key", func(raw map[string]any) { delete(raw, "cities") }, CheckRequiredKeys},
		{"empty cities", func(raw map[string]any) { raw["cities"] = []any{} }, CheckHasCities},
		{"cities not array", func(raw map[string]any) { raw["cities"] = "Lisbon" }, CheckRequiredKeys},
		{"null activities", func(raw map[string]any) { raw["activities"] = nil }, CheckRequiredKeys},
		{"null travel segments", func(raw map[string]any) { raw["travelSegments"] = nil }, CheckRequiredKeys},
		{"city without name", func(raw map[string]any) { delete(item(raw, "cities", 0), "name") }, CheckCityFields},
		{"city zero days", func(raw map[string]any) { item(raw, "cities", 0)["days"] = 0.0 }, CheckCityFields},
		{"city without lat", func(raw map[string]any) { delete(item(raw, "cities", 1), "lat") }, CheckCityFields},
		{"missing must try", func(raw map[string]any) {
			item(raw, "cities", 1)["description"] = "### Must See\n- x\n### Must Do\n- y"
		}, CheckCitySections},
		{"activity without title", func(raw map[string]any) { delete(item(raw, "activities", 0), "title") }, CheckActivityFields},
		{"activity bad city index", func(raw map[string]any) { item(raw, "activities", 0)["cityIndex"] = 5.0 }, CheckActivityFields},
		{"activity unknown type", func(raw map[string]any) { item(raw, "activities", 0)["activityTypes"] = []any{"zzz"} }, CheckActivityTypes},
		{"activity too many types", func(raw map[string]any) {
			item(raw, "activities", 0)["activityTypes"] = []any{"culture", "food", "nature", "shopping"}
		}, CheckActivityTypes},
		{"activity unparseable duration", func(raw map[string]any) { item(raw, "activities", 1)["duration"] = "abc" }, CheckActivityDurations},
		{"travel same city", func(raw map[string]any) { item(raw, "travelSegments", 0)["toCityIndex"] = 0.0 }, CheckTravelFields},
		{"travel unknown mode", func(raw map[string]any) { item(raw, "travelSegments", 0)["transportMode"] = "teleport" }, CheckTransportModes},
		{"travel negative duration", func(raw map[string]any) { item(raw, "travelSegments", 0)["duration"] = -1.0 }, CheckTravelDurations},
	}
	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			raw := fixture(t)
			tc.mutate(raw)
			report, _ := Validate(raw)
			if report.SchemaValid {
				t.Fatal("expected schemaValid=false")
			}
			if report.Checks[tc.check] {
				t.Errorf("expected check %s to fail; errors: %v", tc.check, report.Errors)
			}
			if len(report.Errors) == 0 {
				t.Error("expected errors")
			}
		})
	}
}

func TestValidateFuzzyValuesWarn(t *testing.T) {
	raw := fixture(t)
	item(raw, "activities", 0)["activityTypes"] = "Museum visit, Sightseeing"
	item(raw, "activities", 1)["duration"] = "6 hours"
	item(raw, "travelSegments", 0)["transportMode"] = "High-speed rail"

	report, it := Validate(raw)
	if !report.SchemaValid {
		t.Fatalf("expected schema valid, errors: %v", report.Errors)
	}
	if report.Checks[CheckCanonicalValues] || report.Checks[CheckNumericDurations] {
		t.Errorf("expected canonical and numeric checks to warn: %v", report.Checks)
	}
	if got := it.Activities[0].Types; len(got) != 2 || got[0] != ActivityCulture || got[1] != ActivitySightseeing {
		t.Errorf("mapped types = %v", got)
	}
	if it.Travel[0].Mode != TransportTrain {
		t.Errorf("mode = %q, want train", it.Travel[0].Mode)
	}
	if d := it.Activities[1].Duration; !d.OK || math.Abs(d.Value-0.25) > 1e-9 {
		t.Errorf("duration = %+v, want 0.25 days", d)
	}
}

func TestCountryInfoShapes(t *testing.T) {
	cases := []struct {
		name string
		in   string
	}{
		{"object", `{"country":"Spain","currency":"EUR","exchangeRate":0.92,"languages":"Spanish, Catalan","plugType":"F","visaLink":"https://example.com/visa","travelAdvisory":"https://example.com/adv"}`},
		{"array", `[{"country":"Spain","currencyCode":"EUR","exchange_rate":0.92,"languages":["Spanish","Catalan"],"socketTypes":["F"],"visaUrl":"https://example.com/visa","advisoryUrl":"https://example.com/adv"},{"country":"Portugal","currency":"EUR","exchangeRate":0.93,"language":"spanish"}]`},
		{"keyed map", `{"ES":{"currency":{"code":"EUR","exchangeRate":0.92},"languages":["Spanish","catalan","Catalan"],"socketType":"F","visaInfoUrl":"https://example.com/visa","travelAdvisoryUrl":"https://example.com/adv"},"PT":{"currency":"EUR","exchangeRate":0.93}}`},
	}
	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			var v any
			if err := json.Unmarshal([]byte(tc.in), &v); err != nil {
				t.Fatal(err)
			}
			info := collectCountryInfo(v)
			if info.ExchangeRate == nil || *info.ExchangeRate != 0.92 {
				t.Errorf("exchange rate = %v, want first finite 0.92", info.ExchangeRate)
			}
			if len(info.Currencies) != 1 || info.Currencies[0] != "EUR" {
				t.Errorf("currencies = %v", info.Currencies)
			}
			if len(info.Languages) != 2 {
				t.Errorf("languages = %v, want Spanish and Catalan deduped", info.Languages)
			}
			if info.VisaURL == "" || info.AdvisoryURL == "" {
				t.Errorf("links = %q %q", info.VisaURL, info.AdvisoryURL)
			}
			if len(info.SocketTypes) != 1 {
				t.Errorf("sockets = %v", info.SocketTypes)
			}
		})
	}
}

func TestCountryInfoInvalidLinkWarns(t *testing.T) {
	raw := fixture(t)
	raw["countryInfo"].(map[string]any)["visaInfoUrl"] = "see embassy website"
	report, _ := Validate(raw)
	if !report.SchemaValid {
		t.Fatal("link problems must not block")
	}
	found := false
	for _, w := range report.Warnings {
		if strings.Contains(w, "see embassy website") {
			found = true
		}
	}
	if !found {
		t.Errorf("expected invalid link warning, got %v", report.Warnings)
	}
}

func TestMapActivityTypeHeuristics(t *testing.T) {
	cases := map[string]ActivityType{
		"culture":           ActivityCulture,
		"Art Gallery":       ActivityCulture,
		"street food":       ActivityFood,
		"Hiking":            ActivityNature,
		"Surfing lesson":    ActivityAdventure,
		"souvenir shopping": ActivityShopping,
		"rooftop bar":       ActivityNightlife,
		"Spa afternoon":     ActivityRelaxation,
		"city tour":         ActivitySightseeing,
	}
	for in, want := range cases {
		got, ok := MapActivityType(in)
		if !ok || got != want {
			t.Errorf("MapActivityType(%q) = %q, %v; want %q", in, got, ok, want)
		}
	}
	if _, ok := MapActivityType("zzz"); ok {
		t.Error("expected zzz to be unmapped")
	}
}
