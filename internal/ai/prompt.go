package ai

import (
	"encoding/json"
	"fmt"
	"strings"
)

// Appended to the prompt of the single malformed-output retry.
const (
	StrictJSONRetrySuffix = "\n\nIMPORTANT: Your previous answer could not be parsed. Return exactly one minified JSON object and nothing else: no markdown fences, no comments, no prose before or after it."
	TruncationRetrySuffix = StrictJSONRetrySuffix + " Your previous answer was cut off: use fewer cities and activities and keep every description short so the whole object fits."
)

type PromptInput struct {
	Prompt    string
	StartDate string
	RoundTrip bool
	// Input is the structured form data collected by the wizard flows.
	Input map[string]any
}

// BuildItineraryPrompt renders the generation instructions for one scenario.
func BuildItineraryPrompt(in PromptInput) string {
	startDate := in.StartDate
	if startDate == "" {
		startDate = "UNSPECIFIED"
	}
	roundTrip := "no"
	if in.RoundTrip {
		roundTrip = "yes, the trip ends where it starts"
	}
	extra := "NONE"
	if len(in.Input) > 0 {
		if b, err := json.Marshal(in.Input); err == nil {
			extra = string(b)
		}
	}

	return fmt.Sprintf(`Role: You are the itinerary planner of a travel-planning app.
Context:
- Start Date: %s
- Round Trip: %s
- Structured Preferences: %s

Traveler Request:
%s

RULES:
1. Return ONE JSON object. No markdown fences, no prose.
2. "cities" lists the stops in visiting order. Every city has:
   - "name", "days" (positive number), "lat" and "lng" (decimal degrees).
   - "description" in markdown with exactly these three subsections:
     "### Must See", "### Must Try", "### Must Do".
3. "activities" reference a city by its zero-based "cityIndex" and have:
   - "title", "description", "dayOffset" (days from the city's arrival),
   - "activityTypes": 1 to 3 of [%s],
   - "duration" in days as a number (e.g. 0.25 for a few hours).
4. "travelSegments" connect two different cities:
   - "fromCityIndex", "toCityIndex", "description",
   - "transportMode": one of [%s],
   - "duration" in hours as a number.
5. "countryInfo" for the visited country or countries:
   - "currency", "exchangeRate" (units per USD, number), "languages" (array),
   - "socketTypes" (array), "visaInfoUrl", "travelAdvisoryUrl".

Output JSON Schema:
{
  "title": "string",
  "summary": "string",
  "cities": [{"name": "string", "description": "markdown", "days": number, "lat": number, "lng": number}],
  "activities": [{"cityIndex": integer, "dayOffset": number, "title": "string", "description": "string", "activityTypes": ["string"], "duration": number}],
  "travelSegments": [{"fromCityIndex": integer, "toCityIndex": integer, "transportMode": "string", "duration": number, "description": "string"}],
  "countryInfo": {"currency": "string", "exchangeRate": number, "languages": ["string"], "socketTypes": ["string"], "visaInfoUrl": "string", "travelAdvisoryUrl": "string"}
}
`, startDate, roundTrip, extra, strings.TrimSpace(in.Prompt),
		"culture, food, nature, adventure, shopping, nightlife, relaxation, sightseeing",
		"plane, train, bus, car, ferry, walk, bike")
}
