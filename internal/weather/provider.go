package weather

import (
	"context"
)

// GeoProvider resolves location text against an upstream geocoding API.
type GeoProvider interface {
	// LookupZip resolves a postal code. A nil candidate with a nil error
	// means the upstream answered without a match.
	LookupZip(ctx context.Context, zip, country string) (*GeoCandidate, error)
	// LookupDirect resolves free text to at most limit candidates, best first.
	LookupDirect(ctx context.Context, query string, limit int) ([]GeoCandidate, error)
}

// Provider abstracts a current-conditions source (OpenWeatherMap).
type Provider interface {
	Current(ctx context.Context, c Coordinates) (Snapshot, error)
	CurrentByCity(ctx context.Context, city, lang string) (Snapshot, error)
}

// TimezoneResolver maps coordinates to an IANA zone name such as "America/Los_Angeles".
type TimezoneResolver interface {
	TimezoneName(lat, lon float64) (string, error)
}
