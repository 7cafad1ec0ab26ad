package weather

import (
	"context"
	"errors"
	"sync"
	"time"
)

type geoCall struct {
	Kind    string // "zip" or "direct"
	Query   string
	Country string
	Limit   int
}

type fakeGeoProvider struct {
	mu     sync.Mutex
	calls  []geoCall
	zip    *GeoCandidate
	direct []GeoCandidate
	err    error
}

func (f *fakeGeoProvider) LookupZip(_ context.Context, zip, country string) (*GeoCandidate, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.calls = append(f.calls, geoCall{Kind: "zip", Query: zip, Country: country})
	return f.zip, f.err
}

func (f *fakeGeoProvider) LookupDirect(_ context.Context, query string, limit int) ([]GeoCandidate, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.calls = append(f.calls, geoCall{Kind: "direct", Query: query, Limit: limit})
	return f.direct, f.err
}

func (f *fakeGeoProvider) Calls() []geoCall {
	f.mu.Lock()
	defer f.mu.Unlock()
	return append([]geoCall(nil), f.calls...)
}

type fakeProvider struct {
	mu      sync.Mutex
	starts  []time.Time
	coords  []Coordinates
	cities  []string
	delay   time.Duration
	release chan struct{}
	result  func(Coordinates) (Snapshot, error)
}

func (f *fakeProvider) Current(ctx context.Context, c Coordinates) (Snapshot, error) {
	f.mu.Lock()
	f.starts = append(f.starts, time.Now())
	f.coords = append(f.coords, c)
	delay, release, result := f.delay, f.release, f.result
	f.mu.Unlock()

	if release != nil {
		select {
		case <-release:
		case <-ctx.Done():
			return Snapshot{}, ctx.Err()
		}
	}
	if delay > 0 {
		time.Sleep(delay)
	}
	if result != nil {
		return result(c)
	}
	return Snapshot{TemperatureF: 72, Condition: "Clear sky", Category: ConditionClear, FetchedAt: time.Now()}, nil
}

func (f *fakeProvider) CurrentByCity(_ context.Context, city, lang string) (Snapshot, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.starts = append(f.starts, time.Now())
	f.cities = append(f.cities, city+"|"+lang)
	return Snapshot{TemperatureF: 60, Condition: "Nuageux", Location: city, FetchedAt: time.Now()}, nil
}

func (f *fakeProvider) Starts() []time.Time {
	f.mu.Lock()
	defer f.mu.Unlock()
	return append([]time.Time(nil), f.starts...)
}

func (f *fakeProvider) Calls() int {
	f.mu.Lock()
	defer f.mu.Unlock()
	return len(f.starts)
}

type fakeResolver struct {
	mu    sync.Mutex
	calls int
	name  string
	err   error
}

func (f *fakeResolver) TimezoneName(lat, lon float64) (string, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.calls++
	return f.name, f.err
}

var errBoom = errors.New("boom")

func intPtr(i int) *int { return &i }
