// README: Advisory coordinate and driving-time checks of model itineraries against Google Maps.
package maps

import (
	"context"
	"log/slog"
	"time"

	"tripbench/internal/itinerary"
)

// Advisory check names added to validation reports.
const (
	CheckCoordinates  = "coordinates"
	CheckDrivingTimes = "drivingTimes"
)

const (
	DefaultMaxOffsetKm  = 150.0
	DefaultMaxTimeRatio = 2.5
	lookupTimeout       = 5 * time.Second
)

type Locator interface {
	Locate(ctx context.Context, place string) (lat, lng float64, err error)
}

type Router interface {
	DrivingTime(ctx context.Context, origin, destination string) (time.Duration, error)
}

// Checker never blocks an itinerary. Lookup errors only skip the check.
type Checker struct {
	locator      Locator
	router       Router
	MaxOffsetKm  float64
	MaxTimeRatio float64
}

// NewChecker accepts a nil router to skip driving-time checks.
func NewChecker(locator Locator, router Router) *Checker {
	return &Checker{
		locator:      locator,
		router:       router,
		MaxOffsetKm:  DefaultMaxOffsetKm,
		MaxTimeRatio: DefaultMaxTimeRatio,
	}
}

func (c *Checker) Check(ctx context.Context, it *itinerary.Itinerary, r *itinerary.Report) {
	r.Checks[CheckCoordinates] = true
	for _, city := range it.Cities {
		if city.Name == "" || city.Lat == nil || city.Lng == nil {
			continue
		}
		lat, lng, err := c.locate(ctx, city.Name)
		if err != nil {
			slog.Debug("geocode skipped", "city", city.Name, "error", err)
			continue
		}
		if d := HaversineKm(*city.Lat, *city.Lng, lat, lng); d > c.MaxOffsetKm {
			r.Warn(CheckCoordinates, "city %q coordinates are %.0f km from its geocoded location", city.Name, d)
		}
	}

	if c.router == nil {
		return
	}
	r.Checks[CheckDrivingTimes] = true
	for _, seg := range it.Travel {
		if seg.Mode != itinerary.TransportCar || !seg.Duration.Positive() {
			continue
		}
		from, ok1 := cityName(it, seg.FromIndex)
		to, ok2 := cityName(it, seg.ToIndex)
		if !ok1 || !ok2 {
			continue
		}
		actual, err := c.drive(ctx, from, to)
		if err != nil || actual <= 0 {
			continue
		}
		claimed := seg.Duration.Value
		hours := actual.Hours()
		if claimed > hours*c.MaxTimeRatio || claimed*c.MaxTimeRatio < hours {
			r.Warn(CheckDrivingTimes, "drive %s -> %s claims %.1fh, route takes %.1fh", from, to, claimed, hours)
		}
	}
}

func (c *Checker) locate(ctx context.Context, place string) (float64, float64, error) {
	ctx, cancel := context.WithTimeout(ctx, lookupTimeout)
	defer cancel()
	return c.locator.Locate(ctx, place)
}

func (c *Checker) drive(ctx context.Context, from, to string) (time.Duration, error) {
	ctx, cancel := context.WithTimeout(ctx, lookupTimeout)
	defer cancel()
	return c.router.DrivingTime(ctx, from, to)
}

func cityName(it *itinerary.Itinerary, idx *int) (string, bool) {
	if idx == nil || *idx < 0 || *idx >= len(it.Cities) {
		return "", false
	}
	name := it.Cities[*idx].Name
	return name, name != ""
}
