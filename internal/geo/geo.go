// Package geo resolves farm coordinates from postal addresses.
package geo

import (
	"context"
	"errors"
	"fmt"

	"github.com/kelvins/geocoder"

	"github.com/i474232898/cropple-dashboard/internal/farm"
)

// ErrNoAddress is returned when there is nothing to geocode.
var ErrNoAddress = errors.New("farm has no address to geocode")

// Resolver turns an address into latitude/longitude.
type Resolver interface {
	Resolve(ctx context.Context, addr farm.Address) (lat, lon float64, err error)
}

// GoogleGeocoder resolves addresses through the Google Geocoding API.
type GoogleGeocoder struct{}

// NewGoogleGeocoder configures the geocoder package with apiKey.
func NewGoogleGeocoder(apiKey string) *GoogleGeocoder {
	geocoder.ApiKey = apiKey
	return &GoogleGeocoder{}
}

func (g *GoogleGeocoder) Resolve(ctx context.Context, addr farm.Address) (float64, float64, error) {
	if err := ctx.Err(); err != nil {
		return 0, 0, err
	}
	loc, err := geocoder.Geocoding(geocoder.Address{
		Street:  addr.Street,
		City:    addr.City,
		State:   addr.State,
		Country: addr.Country,
	})
	if err != nil {
		return 0, 0, fmt.Errorf("geocode %s, %s: %w", addr.City, addr.Country, err)
	}
	return loc.Latitude, loc.Longitude, nil
}

// Locate fills in f's coordinates from its address when they are missing.
// A farm that already has coordinates is returned unchanged.
func Locate(ctx context.Context, r Resolver, f farm.Farm) (farm.Farm, error) {
	if f.HasCoordinates() {
		return f, nil
	}
	if r == nil || f.Address.IsZero() {
		return f, ErrNoAddress
	}
	lat, lon, err := r.Resolve(ctx, f.Address)
	if err != nil {
		return f, err
	}
	f.Latitude, f.Longitude = &lat, &lon
	return f, nil
}
