package trip

import (
	"math"
	"strings"
	"time"

	"tripbench/internal/itinerary"
	"tripbench/internal/types"
)

const dateLayout = "2006-01-02"

const (
	GeneralColor = "#64748B"
	TravelColor  = "#94A3B8"

	defaultActivityDays = 1.0
	defaultTravelDays   = 0.1
	travelLeadDays      = 0.5
	closingStopDays     = 1.0
)

// CityPalette is cycled by first appearance of each city name.
var CityPalette = []string{
	"#4F46E5", "#0EA5E9", "#10B981", "#F59E0B",
	"#EF4444", "#8B5CF6", "#EC4899", "#14B8A6",
}

var ActivityColors = map[itinerary.ActivityType]string{
	itinerary.ActivityCulture:     "#7C3AED",
	itinerary.ActivityFood:        "#F97316",
	itinerary.ActivityNature:      "#16A34A",
	itinerary.ActivityAdventure:   "#DC2626",
	itinerary.ActivityShopping:    "#DB2777",
	itinerary.ActivityNightlife:   "#1E3A8A",
	itinerary.ActivityRelaxation:  "#0891B2",
	itinerary.ActivitySightseeing: "#CA8A04",
}

type BuildOptions struct {
	RoundTrip bool
	Provider  string
	Model     string
	SessionID types.ID
	RunID     types.ID
	// Now stamps provenance and supplies the default start date.
	Now time.Time
}

// SameCity compares city names ignoring case and runs of whitespace.
func SameCity(a, b string) bool {
	return normalizeName(a) == normalizeName(b)
}

func normalizeName(s string) string {
	return strings.Join(strings.Fields(strings.ToLower(s)), " ")
}

// Build lays the itinerary out on a day axis. It does not mutate it.
func Build(it *itinerary.Itinerary, startDate string, opts BuildOptions) *Trip {
	now := opts.Now
	if now.IsZero() {
		now = time.Now()
	}
	start, err := time.Parse(dateLayout, strings.TrimSpace(startDate))
	if err != nil {
		y, m, d := now.UTC().Date()
		start = time.Date(y, m, d, 0, 0, 0, 0, time.UTC)
	}

	t := &Trip{
		Title:      it.Title,
		Cities:     []CityStop{},
		Activities: []ActivityEntry{},
		Travel:     []TravelEntry{},
		Provenance: Provenance{
			SourceKind:  SourceBenchmark,
			SessionID:   opts.SessionID,
			RunID:       opts.RunID,
			Provider:    opts.Provider,
			Model:       opts.Model,
			GeneratedAt: now.UTC(),
		},
	}
	if it.Country != nil {
		c := *it.Country
		t.CountryInfo = &c
	}

	colors := cityColorer{assigned: map[string]string{}}
	var total float64
	names := make([]string, 0, len(it.Cities))
	for _, c := range it.Cities {
		days := defaultActivityDays
		if c.Days != nil && *c.Days > 0 {
			days = *c.Days
		}
		stop := CityStop{
			Name:        c.Name,
			Description: c.Description,
			StartOffset: types.Round(total, 6),
			Duration:    days,
			Location:    types.Point{Lat: deref(c.Lat), Lng: deref(c.Lng)},
			Color:       colors.colorFor(c.Name),
		}
		t.Cities = append(t.Cities, stop)
		names = append(names, c.Name)
		total += days
	}
	blocks := len(t.Cities)

	if opts.RoundTrip && blocks > 0 {
		first, last := t.Cities[0], t.Cities[blocks-1]
		if !SameCity(first.Name, last.Name) {
			t.Cities = append(t.Cities, CityStop{
				Name:        first.Name,
				Description: "Return to " + first.Name,
				StartOffset: types.Round(total, 6),
				Duration:    closingStopDays,
				Location:    first.Location,
				Color:       colors.colorFor(first.Name),
				Closing:     true,
			})
			total += closingStopDays
		}
	}

	for _, a := range it.Activities {
		if a.CityIndex == nil || *a.CityIndex >= blocks {
			continue
		}
		city := t.Cities[*a.CityIndex]
		dur := defaultActivityDays
		if a.Duration.Positive() {
			dur = a.Duration.Value
		}
		color := GeneralColor
		if len(a.Types) > 0 {
			if c, ok := ActivityColors[a.Types[0]]; ok {
				color = c
			}
		}
		t.Activities = append(t.Activities, ActivityEntry{
			Title:       a.Title,
			Description: a.Description,
			City:        city.Name,
			StartOffset: types.Round(city.StartOffset+a.DayOffset, 6),
			Duration:    dur,
			Types:       append([]itinerary.ActivityType(nil), a.Types...),
			Color:       color,
		})
	}

	for _, s := range it.Travel {
		if s.FromIndex == nil || s.ToIndex == nil || *s.FromIndex >= blocks || *s.ToIndex >= blocks {
			continue
		}
		from, to := t.Cities[*s.FromIndex], t.Cities[*s.ToIndex]
		dur := defaultTravelDays
		if s.Duration.Positive() {
			dur = types.Round(s.Duration.Value/24, 6)
		}
		t.Travel = append(t.Travel, TravelEntry{
			From:        from.Name,
			To:          to.Name,
			Mode:        s.Mode,
			StartOffset: types.Round(from.StartOffset+from.Duration-travelLeadDays, 6),
			Duration:    dur,
			Color:       TravelColor,
			Description: s.Description,
		})
	}

	if t.Title == "" {
		t.Title = strings.Join(names, ", ")
	}
	t.TotalDays = types.Round(total, 6)
	t.StartDate = start.Format(dateLayout)
	span := int(math.Ceil(t.TotalDays))
	if span < 1 {
		span = 1
	}
	t.EndDate = start.AddDate(0, 0, span-1).Format(dateLayout)
	return t
}

type cityColorer struct {
	assigned map[string]string
	next     int
}

func (c *cityColorer) colorFor(name string) string {
	key := normalizeName(name)
	if color, ok := c.assigned[key]; ok {
		return color
	}
	color := CityPalette[c.next%len(CityPalette)]
	c.next++
	c.assigned[key] = color
	return color
}

func deref(v *float64) float64 {
	if v == nil {
		return 0
	}
	return *v
}
