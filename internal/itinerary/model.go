// README: Canonical itinerary shape produced from raw model output; every later stage reads only this shape.
package itinerary

// RequiredKeys are the top-level keys every generated itinerary must carry.
var RequiredKeys = []string{"cities", "activities", "travelSegments"}

type ActivityType string

const (
	ActivityCulture     ActivityType = "culture"
	ActivityFood        ActivityType = "food"
	ActivityNature      ActivityType = "nature"
	ActivityAdventure   ActivityType = "adventure"
	ActivityShopping    ActivityType = "shopping"
	ActivityNightlife   ActivityType = "nightlife"
	ActivityRelaxation  ActivityType = "relaxation"
	ActivitySightseeing ActivityType = "sightseeing"
)

// ActivityTypes is the closed activity vocabulary, in display order.
var ActivityTypes = []ActivityType{
	ActivityCulture, ActivityFood, ActivityNature, ActivityAdventure,
	ActivityShopping, ActivityNightlife, ActivityRelaxation, ActivitySightseeing,
}

type TransportMode string

const (
	TransportPlane TransportMode = "plane"
	TransportTrain TransportMode = "train"
	TransportBus   TransportMode = "bus"
	TransportCar   TransportMode = "car"
	TransportFerry TransportMode = "ferry"
	TransportWalk  TransportMode = "walk"
	TransportBike  TransportMode = "bike"
)

var TransportModes = []TransportMode{
	TransportPlane, TransportTrain, TransportBus, TransportCar,
	TransportFerry, TransportWalk, TransportBike,
}

// Unit is the unit a duration field is expressed in.
type Unit int

const (
	UnitDays Unit = iota
	UnitHours
)

// Duration is a decoded duration field. Value is in the field's unit and only
// meaningful when OK is true.
type Duration struct {
	Value   float64
	OK      bool
	Present bool
	Numeric bool
	Raw     string
}

// Positive reports whether the duration parsed to a value greater than zero.
func (d Duration) Positive() bool {
	return d.OK && d.Value > 0
}

type City struct {
	Name        string
	Description string
	Days        *float64
	Lat         *float64
	Lng         *float64
	NotObject   bool
}

type Activity struct {
	CityIndex     *int
	DayOffset     float64
	Title         string
	Description   string
	RawTypes      []string
	Types         []ActivityType
	UnmappedTypes []string
	Duration      Duration
	NotObject     bool
}

type TravelSegment struct {
	FromIndex   *int
	ToIndex     *int
	RawMode     string
	Mode        TransportMode
	Duration    Duration
	Description string
	NotObject   bool
}

// CountryInfo is the merged view of every country entry found in the output.
type CountryInfo struct {
	Countries    []string `json:"countries,omitempty"`
	Currencies   []string `json:"currencies,omitempty"`
	ExchangeRate *float64 `json:"exchangeRate,omitempty"`
	Languages    []string `json:"languages,omitempty"`
	SocketTypes  []string `json:"socketTypes,omitempty"`
	VisaURL      string   `json:"visaUrl,omitempty"`
	AdvisoryURL  string   `json:"travelAdvisoryUrl,omitempty"`

	Entries      int      `json:"-"`
	InvalidLinks []string `json:"-"`
}

type Itinerary struct {
	Title       string
	Summary     string
	Cities      []City
	Activities  []Activity
	Travel      []TravelSegment
	Country     *CountryInfo
	MissingKeys []string
	Problems    []string
}
