package trip

import (
	"context"
	"errors"
	"math"
	"testing"
	"time"

	"tripbench/internal/itinerary"
)

func num(v float64) *float64 { return &v }
func idx(v int) *int          { return &v }

func threeCities(last string) *itinerary.Itinerary {
	return &itinerary.Itinerary{
		Cities: []itinerary.City{
			{Name: "Lisbon", Days: num(2), Lat: num(38.72), Lng: num(-9.14)},
			{Name: "Porto", Days: num(1.5), Lat: num(41.16), Lng: num(-8.63)},
			{Name: last, Days: num(1), Lat: num(38.72), Lng: num(-9.14)},
		},
		Activities: []itinerary.Activity{
			{CityIndex: idx(1), DayOffset: 1, Title: "Cellars", Types: []itinerary.ActivityType{itinerary.ActivityFood},
				Duration: itinerary.Duration{Value: 0.25, OK: true, Present: true, Numeric: true}},
			{CityIndex: idx(0), Title: "Walk", Duration: itinerary.Duration{Present: true, Raw: "abc"}},
		},
		Travel: []itinerary.TravelSegment{
			{FromIndex: idx(0), ToIndex: idx(1), Mode: itinerary.TransportTrain, Duration: itinerary.Duration{Value: 3, OK: true}},
			{FromIndex: idx(1), ToIndex: idx(2), Mode: itinerary.TransportBus},
		},
	}
}

func almost(a, b float64) bool { return math.Abs(a-b) < 1e-9 }

func TestBuildOffsetsAndPlacement(t *testing.T) {
	now := time.Date(2026, 5, 1, 10, 0, 0, 0, time.UTC)
	trip := Build(threeCities("Madrid"), "2026-06-10", BuildOptions{Provider: "gemini", Model: "gemini-2.5-pro", SessionID: "s1", RunID: "r1", Now: now})

	wantStarts := []float64{0, 2, 3.5}
	if len(trip.Cities) != 3 {
		t.Fatalf("cities = %d, want 3", len(trip.Cities))
	}
	for i, w := range wantStarts {
		if !almost(trip.Cities[i].StartOffset, w) {
			t.Errorf("city %d start = %v, want %v", i, trip.Cities[i].StartOffset, w)
		}
	}
	if !almost(trip.TotalDays, 4.5) {
		t.Errorf("total = %v", trip.TotalDays)
	}

	if a := trip.Activities[0]; !almost(a.StartOffset, 3) || !almost(a.Duration, 0.25) || a.Color != ActivityColors[itinerary.ActivityFood] || a.City != "Porto" {
		t.Errorf("activity 0 = %+v", a)
	}
	if a := trip.Activities[1]; !almost(a.Duration, 1) || a.Color != GeneralColor {
		t.Errorf("activity 1 should default to 1 day general, got %+v", a)
	}

	if s := trip.Travel[0]; !almost(s.StartOffset, 1.5) || !almost(s.Duration, 0.125) || s.Color != TravelColor {
		t.Errorf("travel 0 = %+v", s)
	}
	if s := trip.Travel[1]; !almost(s.StartOffset, 3) || !almost(s.Duration, 0.1) {
		t.Errorf("travel 1 = %+v", s)
	}

	if trip.StartDate != "2026-06-10" || trip.EndDate != "2026-06-14" {
		t.Errorf("dates = %s..%s", trip.StartDate, trip.EndDate)
	}
	p := trip.Provenance
	if p.SourceKind != SourceBenchmark || p.SessionID != "s1" || p.RunID != "r1" || p.Provider != "gemini" || !p.GeneratedAt.Equal(now) {
		t.Errorf("provenance = %+v", p)
	}
}

func TestBuildRoundTripClosingStop(t *testing.T) {
	trip := Build(threeCities("Madrid"), "", BuildOptions{RoundTrip: true})
	if len(trip.Cities) != 4 {
		t.Fatalf("cities = %d, want 4", len(trip.Cities))
	}
	closing := trip.Cities[3]
	if !closing.Closing || closing.Name != "Lisbon" || !almost(closing.Duration, 1) || !almost(closing.StartOffset, 4.5) {
		t.Errorf("closing = %+v", closing)
	}
	if closing.Color != trip.Cities[0].Color {
		t.Errorf("closing color %s should reuse %s", closing.Color, trip.Cities[0].Color)
	}
	if !almost(trip.TotalDays, 5.5) {
		t.Errorf("total = %v", trip.TotalDays)
	}
}

func TestBuildRoundTripSameCityNoClosingStop(t *testing.T) {
	trip := Build(threeCities("  LISBON  "), "", BuildOptions{RoundTrip: true})
	if len(trip.Cities) != 3 {
		t.Fatalf("cities = %d, want 3 (no synthetic stop)", len(trip.Cities))
	}
	if trip.Cities[2].Color != trip.Cities[0].Color {
		t.Error("repeated city should reuse its first color")
	}
	if trip.Cities[1].Color == trip.Cities[0].Color {
		t.Error("distinct cities should get distinct colors")
	}
}

func TestBuildDefaultsStartDateToNow(t *testing.T) {
	now := time.Date(2027, 1, 31, 23, 30, 0, 0, time.UTC)
	trip := Build(threeCities("Madrid"), "not-a-date", BuildOptions{Now: now})
	if trip.StartDate != "2027-01-31" {
		t.Errorf("start = %s", trip.StartDate)
	}
	if trip.Title != "Lisbon, Porto, Madrid" {
		t.Errorf("title = %q", trip.Title)
	}
}

func TestMemoryStore(t *testing.T) {
	ctx := context.Background()
	m := NewMemoryStore()
	tr := Build(threeCities("Madrid"), "", BuildOptions{SessionID: "s1"})
	id, err := m.Save(ctx, tr)
	if err != nil || id == "" {
		t.Fatalf("save: %v", err)
	}
	other := Build(threeCities("Madrid"), "", BuildOptions{SessionID: "s2"})
	if _, err := m.Save(ctx, other); err != nil {
		t.Fatal(err)
	}
	got, err := m.Get(ctx, id)
	if err != nil || got.ID != id {
		t.Fatalf("get: %v %+v", err, got)
	}
	n, _ := m.DeleteBySession(ctx, "s1")
	if n != 1 || m.Len() != 1 {
		t.Errorf("deleted %d, remaining %d", n, m.Len())
	}
	if _, err := m.Get(ctx, id); !errors.Is(err, ErrNotFound) {
		t.Errorf("expected ErrNotFound, got %v", err)
	}
}
