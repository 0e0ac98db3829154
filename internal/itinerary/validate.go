package itinerary

import (
	"fmt"
	"regexp"
	"strings"
)

// Check names. The first group is blocking; the second only produces warnings.
const (
	CheckRequiredKeys      = "requiredKeys"
	CheckHasCities         = "hasCities"
	CheckCityFields        = "cityFields"
	CheckCitySections      = "citySections"
	CheckActivityFields    = "activityFields"
	CheckActivityTypes     = "activityTypes"
	CheckActivityDurations = "activityDurations"
	CheckTravelFields      = "travelFields"
	CheckTransportModes    = "transportModes"
	CheckTravelDurations   = "travelDurations"

	CheckCountryInfo      = "countryInfo"
	CheckCanonicalValues  = "canonicalValues"
	CheckNumericDurations = "numericDurations"
)

var blockingChecks = []string{
	CheckRequiredKeys, CheckHasCities, CheckCityFields, CheckCitySections,
	CheckActivityFields, CheckActivityTypes, CheckActivityDurations,
	CheckTravelFields, CheckTransportModes, CheckTravelDurations,
}

var advisoryChecks = []string{CheckCountryInfo, CheckCanonicalValues, CheckNumericDurations}

// RequiredSections are the markdown headers every city description must contain.
var RequiredSections = []string{"Must See", "Must Try", "Must Do"}

var sectionPatterns = func() map[string]*regexp.Regexp {
	out := make(map[string]*regexp.Regexp, len(RequiredSections))
	for _, s := range RequiredSections {
		words := strings.Fields(strings.ToLower(s))
		out[s] = regexp.MustCompile(`(?im)^\s{0,3}#{1,6}\s*\**\s*` + strings.Join(words, `[\s-]+`) + `\b`)
	}
	return out
}()

const (
	minActivityTypes = 1
	maxActivityTypes = 3
)

// Report is the outcome of validating one itinerary.
type Report struct {
	SchemaValid bool            `json:"schemaValid"`
	Checks      map[string]bool `json:"checks"`
	Errors      []string        `json:"errors"`
	Warnings    []string        `json:"warnings"`
}

func newReport() *Report {
	r := &Report{Checks: map[string]bool{}, Errors: []string{}, Warnings: []string{}}
	for _, c := range blockingChecks {
		r.Checks[c] = true
	}
	for _, c := range advisoryChecks {
		r.Checks[c] = true
	}
	return r
}

func (r *Report) fail(check, format string, args ...any) {
	r.Checks[check] = false
	r.Errors = append(r.Errors, fmt.Sprintf(format, args...))
}

func (r *Report) warn(check, format string, args ...any) {
	r.Checks[check] = false
	r.Warnings = append(r.Warnings, fmt.Sprintf(format, args...))
}

// Warn appends an advisory warning under check. Used by callers that layer
// extra non-blocking checks on top of structural validation.
func (r *Report) Warn(check, format string, args ...any) {
	r.warn(check, format, args...)
}

// Validate decodes raw and runs every structural check on it.
func Validate(raw map[string]any) (*Report, *Itinerary) {
	it := Decode(raw)
	return ValidateItinerary(it), it
}

// ValidateItinerary classifies issues in it as blocking errors or warnings.
func ValidateItinerary(it *Itinerary) *Report {
	r := newReport()

	for _, k := range it.MissingKeys {
		r.fail(CheckRequiredKeys, "missing required key %q", k)
	}
	for _, p := range it.Problems {
		r.fail(CheckRequiredKeys, "%s", p)
	}
	if len(it.Cities) == 0 {
		r.fail(CheckHasCities, "itinerary must contain at least one city")
	}

	validateCities(r, it)
	validateActivities(r, it)
	validateTravel(r, it)
	validateCountry(r, it.Country)

	r.SchemaValid = true
	for _, c := range blockingChecks {
		if !r.Checks[c] {
			r.SchemaValid = false
			break
		}
	}
	return r
}

func validateCities(r *Report, it *Itinerary) {
	for i, c := range it.Cities {
		if c.NotObject {
			r.fail(CheckCityFields, "cities[%d] must be an object", i)
			continue
		}
		if c.Name == "" {
			r.fail(CheckCityFields, "cities[%d].name is required", i)
		}
		if c.Description == "" {
			r.fail(CheckCityFields, "cities[%d].description is required", i)
		} else {
			for _, s := range RequiredSections {
				if !sectionPatterns[s].MatchString(c.Description) {
					r.fail(CheckCitySections, "cities[%d].description is missing the %q section", i, s)
				}
			}
		}
		if c.Days == nil || *c.Days <= 0 {
			r.fail(CheckCityFields, "cities[%d].days must be a positive number", i)
		}
		if c.Lat == nil || *c.Lat < -90 || *c.Lat > 90 {
			r.fail(CheckCityFields, "cities[%d].lat must be a finite latitude", i)
		}
		if c.Lng == nil || *c.Lng < -180 || *c.Lng > 180 {
			r.fail(CheckCityFields, "cities[%d].lng must be a finite longitude", i)
		}
	}
}

func validateActivities(r *Report, it *Itinerary) {
	for i, a := range it.Activities {
		if a.NotObject {
			r.fail(CheckActivityFields, "activities[%d] must be an object", i)
			continue
		}
		if a.CityIndex == nil || *a.CityIndex >= len(it.Cities) {
			r.fail(CheckActivityFields, "activities[%d].cityIndex must reference an existing city", i)
		}
		if a.Title == "" {
			r.fail(CheckActivityFields, "activities[%d].title is required", i)
		}
		if a.Description == "" {
			r.fail(CheckActivityFields, "activities[%d].description is required", i)
		}

		switch {
		case len(a.UnmappedTypes) > 0:
			r.fail(CheckActivityTypes, "activities[%d].activityTypes has unrecognized values %q", i, a.UnmappedTypes)
		case len(a.Types) < minActivityTypes || len(a.Types) > maxActivityTypes:
			r.fail(CheckActivityTypes, "activities[%d].activityTypes must have %d-%d values, got %d", i, minActivityTypes, maxActivityTypes, len(a.Types))
		}
		for _, raw := range a.RawTypes {
			if t, ok := MapActivityType(raw); ok && raw != string(t) {
				r.warn(CheckCanonicalValues, "activities[%d].activityTypes value %q should be %q", i, raw, t)
			}
		}

		if !a.Duration.Positive() {
			r.fail(CheckActivityDurations, "activities[%d].duration must be a positive number of days", i)
		} else if !a.Duration.Numeric {
			r.warn(CheckNumericDurations, "activities[%d].duration %q should be a number", i, a.Duration.Raw)
		}
	}
}

func validateTravel(r *Report, it *Itinerary) {
	for i, t := range it.Travel {
		if t.NotObject {
			r.fail(CheckTravelFields, "travelSegments[%d] must be an object", i)
			continue
		}
		validFrom := t.FromIndex != nil && *t.FromIndex < len(it.Cities)
		validTo := t.ToIndex != nil && *t.ToIndex < len(it.Cities)
		switch {
		case !validFrom || !validTo:
			r.fail(CheckTravelFields, "travelSegments[%d] must reference two existing cities", i)
		case *t.FromIndex == *t.ToIndex:
			r.fail(CheckTravelFields, "travelSegments[%d] must connect two different cities", i)
		}

		if t.Mode == "" {
			r.fail(CheckTransportModes, "travelSegments[%d].transportMode %q is not a supported mode", i, t.RawMode)
		} else if t.RawMode != string(t.Mode) {
			r.warn(CheckCanonicalValues, "travelSegments[%d].transportMode %q should be %q", i, t.RawMode, t.Mode)
		}

		if !t.Duration.Positive() {
			r.fail(CheckTravelDurations, "travelSegments[%d].duration must be a positive number of hours", i)
		} else if !t.Duration.Numeric {
			r.warn(CheckNumericDurations, "travelSegments[%d].duration %q should be a number", i, t.Duration.Raw)
		}
	}
}

func validateCountry(r *Report, c *CountryInfo) {
	if c == nil {
		r.warn(CheckCountryInfo, "countryInfo is missing")
		return
	}
	if c.Entries == 0 {
		r.warn(CheckCountryInfo, "countryInfo has no readable entries")
		return
	}
	if len(c.Currencies) == 0 {
		r.warn(CheckCountryInfo, "countryInfo.currency is missing")
	}
	if c.ExchangeRate == nil {
		r.warn(CheckCountryInfo, "countryInfo.exchangeRate is missing or not a number")
	}
	if len(c.Languages) == 0 {
		r.warn(CheckCountryInfo, "countryInfo.languages is empty")
	}
	if len(c.SocketTypes) == 0 {
		r.warn(CheckCountryInfo, "countryInfo.socketType is missing")
	}
	if c.VisaURL == "" {
		r.warn(CheckCountryInfo, "countryInfo visa link is missing")
	}
	if c.AdvisoryURL == "" {
		r.warn(CheckCountryInfo, "countryInfo travel advisory link is missing")
	}
	for _, l := range c.InvalidLinks {
		r.warn(CheckCountryInfo, "countryInfo link %q is not a valid http(s) URL", l)
	}
}
