package maps

import (
	"context"
	"errors"
	"fmt"
	"time"

	"googlemaps.github.io/maps"
)

var ErrNoResult = errors.New("maps: no result")

// Service wraps the Google Maps geocoding and directions APIs.
type Service struct {
	client *maps.Client
}

// NewService creates a Service with the given API key.
func NewService(apiKey string) (*Service, error) {
	client, err := maps.NewClient(maps.WithAPIKey(apiKey))
	if err != nil {
		return nil, fmt.Errorf("failed to create maps client: %w", err)
	}
	return &Service{client: client}, nil
}

// Locate geocodes a place name to its coordinates.
func (s *Service) Locate(ctx context.Context, place string) (lat, lng float64, err error) {
	results, err := s.client.Geocode(ctx, &maps.GeocodingRequest{Address: place, Language: "en"})
	if err != nil {
		return 0, 0, fmt.Errorf("geocoding api error: %w", err)
	}
	if len(results) == 0 {
		return 0, 0, ErrNoResult
	}
	loc := results[0].Geometry.Location
	return loc.Lat, loc.Lng, nil
}

// DrivingTime returns the driving duration of the first route between two places.
func (s *Service) DrivingTime(ctx context.Context, origin, destination string) (time.Duration, error) {
	routes, _, err := s.client.Directions(ctx, &maps.DirectionsRequest{
		Origin:      origin,
		Destination: destination,
		Mode:        maps.TravelModeDriving,
		Language:    "en",
	})
	if err != nil {
		return 0, fmt.Errorf("directions api error: %w", err)
	}
	if len(routes) == 0 || len(routes[0].Legs) == 0 {
		return 0, ErrNoResult
	}
	return routes[0].Legs[0].Duration, nil
}
