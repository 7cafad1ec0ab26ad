package timezone

import (
	"fmt"
	"sync"

	"github.com/ringsaturn/tzf"
)

// Finder is the subset of tzf.F used here.
type Finder interface {
	GetTimezoneName(lng, lat float64) string
}

// Resolver maps coordinates to IANA timezone names using tzf's embedded
// polygon data.
type Resolver struct {
	finder Finder
}

var (
	defaultFinder    tzf.F
	defaultFinderErr error
	loadOnce         sync.Once
)

// NewResolver returns a Resolver over tzf's default finder. The finder
// data is loaded once per process.
func NewResolver() (*Resolver, error) {
	loadOnce.Do(func() {
		defaultFinder, defaultFinderErr = tzf.NewDefaultFinder()
	})
	if defaultFinderErr != nil {
		return nil, fmt.Errorf("failed to initialize timezone finder: %w", defaultFinderErr)
	}
	return &Resolver{finder: defaultFinder}, nil
}

// NewResolverWithFinder wraps an existing finder.
func NewResolverWithFinder(f Finder) *Resolver {
	return &Resolver{finder: f}
}

// TimezoneName returns the zone name such as "America/Denver".
func (r *Resolver) TimezoneName(lat, lon float64) (string, error) {
	name := r.finder.GetTimezoneName(lon, lat)
	if name == "" {
		return "", fmt.Errorf("could not determine timezone for coordinates lat=%f, lon=%f", lat, lon)
	}
	return name, nil
}
