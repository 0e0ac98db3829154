package maps

import (
	"context"
	"errors"
	"math"
	"strings"
	"testing"
	"time"

	"tripbench/internal/itinerary"
)

type fakeLocator map[string][2]float64

func (f fakeLocator) Locate(_ context.Context, place string) (float64, float64, error) {
	p, ok := f[place]
	if !ok {
		return 0, 0, ErrNoResult
	}
	return p[0], p[1], nil
}

type fakeRouter struct {
	d   time.Duration
	err error
}

func (f fakeRouter) DrivingTime(context.Context, string, string) (time.Duration, error) {
	return f.d, f.err
}

func num(v float64) *float64 { return &v }
func idx(v int) *int          { return &v }

func newReport(t *testing.T) *itinerary.Report {
	t.Helper()
	return &itinerary.Report{Checks: map[string]bool{}}
}

func TestHaversineKm(t *testing.T) {
	// Lisbon to Porto is roughly 274 km.
	d := HaversineKm(38.7223, -9.1393, 41.1579, -8.6291)
	if math.Abs(d-274) > 5 {
		t.Errorf("distance = %.1f", d)
	}
	if HaversineKm(1, 1, 1, 1) != 0 {
		t.Error("same point should be 0")
	}
}

func TestCheckerCoordinates(t *testing.T) {
	it := &itinerary.Itinerary{Cities: []itinerary.City{
		{Name: "Lisbon", Lat: num(38.72), Lng: num(-9.14)},
		{Name: "Porto", Lat: num(38.72), Lng: num(-9.14)},
		{Name: "Atlantis", Lat: num(0), Lng: num(0)},
		{Name: "Sintra"},
	}}
	loc := fakeLocator{"Lisbon": {38.7223, -9.1393}, "Porto": {41.1579, -8.6291}, "Sintra": {38.8, -9.38}}
	r := newReport(t)
	NewChecker(loc, nil).Check(context.Background(), it, r)

	if r.Checks[CheckCoordinates] {
		t.Error("coordinates check should fail")
	}
	if len(r.Warnings) != 1 || !strings.Contains(r.Warnings[0], "Porto") {
		t.Errorf("warnings = %v", r.Warnings)
	}
	if _, ok := r.Checks[CheckDrivingTimes]; ok {
		t.Error("driving check ran without a router")
	}
}

func TestCheckerDrivingTimes(t *testing.T) {
	it := &itinerary.Itinerary{
		Cities: []itinerary.City{{Name: "Lisbon"}, {Name: "Porto"}},
		Travel: []itinerary.TravelSegment{
			{FromIndex: idx(0), ToIndex: idx(1), Mode: itinerary.TransportCar, Duration: itinerary.Duration{Value: 3, OK: true}},
			{FromIndex: idx(0), ToIndex: idx(1), Mode: itinerary.TransportCar, Duration: itinerary.Duration{Value: 12, OK: true}},
			{FromIndex: idx(0), ToIndex: idx(1), Mode: itinerary.TransportTrain, Duration: itinerary.Duration{Value: 12, OK: true}},
			{FromIndex: idx(0), ToIndex: idx(5), Mode: itinerary.TransportCar, Duration: itinerary.Duration{Value: 12, OK: true}},
		},
	}
	cases := []struct {
		name   string
		router fakeRouter
		warns  int
	}{
		{"one implausible drive", fakeRouter{d: 3 * time.Hour}, 1},
		{"router error is ignored", fakeRouter{err: errors.New("quota")}, 0},
	}
	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			r := newReport(t)
			NewChecker(fakeLocator{}, tc.router).Check(context.Background(), it, r)
			if len(r.Warnings) != tc.warns {
				t.Errorf("warnings = %v", r.Warnings)
			}
			if r.Checks[CheckDrivingTimes] != (tc.warns == 0) {
				t.Errorf("check = %v", r.Checks[CheckDrivingTimes])
			}
		})
	}
}
