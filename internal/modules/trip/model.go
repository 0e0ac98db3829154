// README: Canonical trip produced from a validated itinerary (city blocks, activities, travel, provenance).
package trip

import (
	"time"

	"tripbench/internal/itinerary"
	"tripbench/internal/types"
)

const SourceBenchmark = "benchmark"

type CityStop struct {
	Name        string      `json:"name"`
	Description string      `json:"description"`
	StartOffset float64     `json:"startOffset"`
	Duration    float64     `json:"duration"`
	Location    types.Point `json:"location"`
	Color       string      `json:"color"`
	Closing     bool        `json:"closing,omitempty"`
}

type ActivityEntry struct {
	Title       string                   `json:"title"`
	Description string                   `json:"description"`
	City        string                   `json:"city"`
	StartOffset float64                  `json:"startOffset"`
	Duration    float64                  `json:"duration"`
	Types       []itinerary.ActivityType `json:"types"`
	Color       string                   `json:"color"`
}

type TravelEntry struct {
	From        string                  `json:"from"`
	To          string                  `json:"to"`
	Mode        itinerary.TransportMode `json:"mode"`
	StartOffset float64                 `json:"startOffset"`
	Duration    float64                 `json:"duration"`
	Color       string                  `json:"color"`
	Description string                  `json:"description,omitempty"`
}

type Provenance struct {
	SourceKind  string    `json:"sourceKind"`
	SessionID   types.ID  `json:"sessionId"`
	RunID       types.ID  `json:"runId"`
	Provider    string    `json:"provider"`
	Model       string    `json:"model"`
	GeneratedAt time.Time `json:"generatedAt"`
}

// Trip is the product's canonical trip. Offsets and durations are in days.
type Trip struct {
	ID          types.ID               `json:"id,omitempty"`
	Title       string                 `json:"title"`
	StartDate   string                 `json:"startDate"`
	EndDate     string                 `json:"endDate"`
	TotalDays   float64                `json:"totalDays"`
	Cities      []CityStop             `json:"cities"`
	Activities  []ActivityEntry        `json:"activities"`
	Travel      []TravelEntry          `json:"travel"`
	CountryInfo *itinerary.CountryInfo `json:"countryInfo,omitempty"`
	Provenance  Provenance             `json:"provenance"`
}
