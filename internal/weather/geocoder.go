package weather

import (
	"context"
	"fmt"
	"log"
	"strings"
	"time"

	"github.com/i474232898/weather-widget/internal/common"
	"github.com/i474232898/weather-widget/internal/metrics"
	"github.com/i474232898/weather-widget/internal/store"
)

const (
	DefaultGeocodeTTL     = time.Hour
	DefaultGeocodeCountry = "US"
	DefaultGeocodeLimit   = 1
	// SearchLimit is the candidate count returned by Search.
	SearchLimit = 5
)

// GeocoderConfig tunes a Geocoder. Zero values take the defaults above.
type GeocoderConfig struct {
	CacheTTL time.Duration
	// Country is appended to postal codes and two-letter state queries.
	Country string
	// Limit is the number of free-text candidates requested upstream.
	Limit int
}

// Geocoder resolves location text to coordinates, caching results per
// lower-cased query.
type Geocoder struct {
	provider GeoProvider
	cache    *store.TimedCache[GeoResult]
	country  string
	limit    int
	metrics  *metrics.Metrics
}

// NewGeocoder creates a Geocoder backed by provider.
func NewGeocoder(provider GeoProvider, cfg GeocoderConfig, opts ...Option) *Geocoder {
	o := applyOptions(opts)

	if cfg.CacheTTL <= 0 {
		cfg.CacheTTL = DefaultGeocodeTTL
	}
	if cfg.Country == "" {
		cfg.Country = DefaultGeocodeCountry
	}
	if cfg.Limit <= 0 {
		cfg.Limit = DefaultGeocodeLimit
	}

	return &Geocoder{
		provider: provider,
		cache:    store.NewTimedCache[GeoResult](cfg.CacheTTL),
		country:  cfg.Country,
		limit:    cfg.Limit,
		metrics:  o.metrics,
	}
}

// Geocode resolves query to a single best match.
//
// Postal codes go to the postal-code endpoint; everything else goes to the
// free-text endpoint. A cached result short-circuits the network entirely.
func (g *Geocoder) Geocode(ctx context.Context, query string) (GeoResult, error) {
	q := strings.TrimSpace(query)
	if q == "" {
		return GeoResult{}, fmt.Errorf("%w: location required", ErrValidation)
	}

	key := strings.ToLower(q)
	if cached, ok := g.cache.Get(key); ok {
		g.metrics.CacheLookup("geocode", true)
		return cached, nil
	}
	g.metrics.CacheLookup("geocode", false)

	var (
		cand *GeoCandidate
		err  error
	)
	isZip := IsPostalCode(q)
	if isZip {
		cand, err = g.lookupZip(ctx, q)
	} else {
		cand, err = g.lookupDirect(ctx, q)
	}
	if err != nil {
		return GeoResult{}, err
	}
	if cand == nil {
		return GeoResult{}, fmt.Errorf("%w: %q", ErrNotFound, q)
	}

	result, err := g.toResult(q, *cand, isZip)
	if err != nil {
		return GeoResult{}, err
	}

	g.cache.Set(key, result)
	log.Printf("DEBUG: geocoded %q to %s (%s)", q, result.Coordinates().Key(), result.DisplayName)
	return result, nil
}

// Search returns up to SearchLimit candidates for a location picker.
// Results are not cached and candidates with unusable coordinates are skipped.
func (g *Geocoder) Search(ctx context.Context, query string) ([]GeoResult, error) {
	q := strings.TrimSpace(query)
	if q == "" {
		return nil, fmt.Errorf("%w: location required", ErrValidation)
	}

	if IsPostalCode(q) {
		cand, err := g.lookupZip(ctx, q)
		if err != nil {
			return nil, err
		}
		if cand == nil {
			return nil, fmt.Errorf("%w: %q", ErrNotFound, q)
		}
		res, err := g.toResult(q, *cand, true)
		if err != nil {
			return nil, err
		}
		return []GeoResult{res}, nil
	}

	cands, err := g.provider.LookupDirect(ctx, NormalizeCityQuery(q, g.country), SearchLimit)
	g.metrics.Upstream("geocode_direct", err)
	if err != nil {
		return nil, classify("geocode", err)
	}

	results := make([]GeoResult, 0, len(cands))
	for _, c := range cands {
		res, err := g.toResult(q, c, false)
		if err != nil {
			continue
		}
		results = append(results, res)
	}
	if len(results) == 0 {
		return nil, fmt.Errorf("%w: %q", ErrNotFound, q)
	}
	return results, nil
}

func (g *Geocoder) lookupZip(ctx context.Context, q string) (*GeoCandidate, error) {
	cand, err := g.provider.LookupZip(ctx, compact(q), g.country)
	g.metrics.Upstream("geocode_zip", err)
	if err != nil {
		return nil, classify("geocode", err)
	}
	return cand, nil
}

func (g *Geocoder) lookupDirect(ctx context.Context, q string) (*GeoCandidate, error) {
	cands, err := g.provider.LookupDirect(ctx, NormalizeCityQuery(q, g.country), g.limit)
	g.metrics.Upstream("geocode_direct", err)
	if err != nil {
		return nil, classify("geocode", err)
	}
	if len(cands) == 0 {
		return nil, nil
	}
	return &cands[0], nil
}

func (g *Geocoder) toResult(q string, c GeoCandidate, isZip bool) (GeoResult, error) {
	if !isFinite(c.Lat) || !isFinite(c.Lon) {
		return GeoResult{}, fmt.Errorf("geocode: %w: invalid coordinates for %q", ErrInvalidData, q)
	}

	var label string
	if isZip {
		label = fmt.Sprintf("%s (%s)", common.FirstNonEmpty(c.Name, q), q)
	} else {
		var parts []string
		if c.Name != "" {
			parts = append(parts, c.Name)
		}
		if region := common.FirstNonEmpty(c.State, c.Country); region != "" {
			parts = append(parts, region)
		}
		label = common.FirstNonEmpty(strings.Join(parts, ", "), q)
	}

	return GeoResult{
		Latitude:    c.Lat,
		Longitude:   c.Lon,
		DisplayName: label,
	}, nil
}
