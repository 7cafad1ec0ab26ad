package weather

import (
	"context"
	"errors"
	"fmt"
	"log"
	"strings"
	"sync"
	"time"

	"golang.org/x/sync/singleflight"
	"golang.org/x/text/language"
	"golang.org/x/time/rate"

	"github.com/i474232898/weather-widget/internal/metrics"
	"github.com/i474232898/weather-widget/internal/store"
)

const (
	DefaultWeatherTTL  = 10 * time.Minute
	DefaultTimezoneTTL = 24 * time.Hour
	DefaultRateLimit   = time.Second
	DefaultLanguage    = "en"
)

// ServiceConfig tunes a Service. Zero values take the defaults above;
// a negative RateLimit disables rate limiting.
type ServiceConfig struct {
	CacheTTL    time.Duration
	RateLimit   time.Duration
	TimezoneTTL time.Duration
}

// Service fetches current conditions, caching them per location and
// spacing outbound calls by at least the configured rate limit.
//
// Failures are absorbed into State rather than only returned, so a
// long-lived display can keep rendering the last outcome.
type Service struct {
	provider Provider
	resolver TimezoneResolver
	metrics  *metrics.Metrics

	cache   *store.TimedCache[Snapshot]
	tzCache *store.TimedCache[string]
	limiter *rate.Limiter
	flights singleflight.Group

	flightMu  sync.Mutex
	pending   map[string]*flight
	flightSeq uint64

	mu       sync.RWMutex
	state    State
	inflight int
}

// NewService creates a Service backed by provider.
func NewService(provider Provider, cfg ServiceConfig, opts ...Option) *Service {
	o := applyOptions(opts)

	if cfg.CacheTTL <= 0 {
		cfg.CacheTTL = DefaultWeatherTTL
	}
	if cfg.TimezoneTTL <= 0 {
		cfg.TimezoneTTL = DefaultTimezoneTTL
	}
	if cfg.RateLimit == 0 {
		cfg.RateLimit = DefaultRateLimit
	}

	limit := rate.Inf
	if cfg.RateLimit > 0 {
		limit = rate.Every(cfg.RateLimit)
	}

	return &Service{
		provider: provider,
		resolver: o.resolver,
		metrics:  o.metrics,
		cache:    store.NewTimedCache[Snapshot](cfg.CacheTTL),
		tzCache:  store.NewTimedCache[string](cfg.TimezoneTTL),
		limiter:  rate.NewLimiter(limit, 1),
		pending:  make(map[string]*flight),
		state:    State{TimezoneLabel: DetectingTimezone},
	}
}

// State returns a copy of the current observable state.
func (s *Service) State() State {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.state
}

// FetchWeather returns current conditions for c. A nil c is a no-op that
// leaves State untouched. Any error is also recorded in State.
func (s *Service) FetchWeather(ctx context.Context, c *Coordinates) (*Snapshot, error) {
	if c == nil {
		return nil, nil
	}
	if !c.Valid() {
		err := fmt.Errorf("%w: coordinates must be finite", ErrValidation)
		s.fail(err)
		return nil, err
	}

	coords := *c
	return s.fetch(ctx, coords.Key(), "weather", func(ctx context.Context) (Snapshot, error) {
		snap, err := s.provider.Current(ctx, coords)
		if err != nil {
			return Snapshot{}, err
		}
		if snap.Coordinates == nil {
			snap.Coordinates = &coords
		}
		return snap, nil
	})
}

// FetchWeatherByCity returns current conditions for a city name, with
// condition text localized to lang (an OpenWeatherMap language code,
// empty for English).
func (s *Service) FetchWeatherByCity(ctx context.Context, city, lang string) (*Snapshot, error) {
	city = strings.TrimSpace(city)
	if city == "" {
		err := fmt.Errorf("%w: city required", ErrValidation)
		s.fail(err)
		return nil, err
	}
	if lang == "" {
		lang = DefaultLanguage
	}
	if _, err := language.Parse(lang); err != nil {
		err = fmt.Errorf("%w: unsupported language %q", ErrValidation, lang)
		s.fail(err)
		return nil, err
	}

	key := "city:" + strings.ToLower(city) + "|" + lang
	return s.fetch(ctx, key, "weather_city", func(ctx context.Context) (Snapshot, error) {
		return s.provider.CurrentByCity(ctx, city, lang)
	})
}

// SetError reports a failure detected by the caller, such as an
// unresolvable selection, without a fetch. The last snapshot and its
// timezone label stay in place; the next fetch clears the message.
func (s *Service) SetError(msg string) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.state.Error = msg
	s.state.Err = nil
}

// Purge drops every cached snapshot so the next fetch goes upstream.
func (s *Service) Purge() {
	s.cache.Flush()
}

func (s *Service) fetch(ctx context.Context, key, endpoint string, call func(context.Context) (Snapshot, error)) (*Snapshot, error) {
	if snap, ok := s.cache.Get(key); ok {
		s.metrics.CacheLookup("weather", true)
		s.succeed(snap)
		return &snap, nil
	}
	s.metrics.CacheLookup("weather", false)

	s.begin()
	defer s.end()

	// Concurrent misses for the same key share one upstream call. The call
	// runs detached from any single caller and is cancelled only once every
	// caller has gone.
	f := s.join(ctx, key)
	ch := s.flights.DoChan(f.key, func() (interface{}, error) {
		if snap, ok := s.cache.Get(key); ok {
			return snap, nil
		}

		if err := s.wait(f.ctx); err != nil {
			return nil, err
		}

		snap, err := call(f.ctx)
		s.metrics.Upstream(endpoint, err)
		if err != nil {
			return nil, classify("weather", err)
		}

		s.attachTimezoneName(&snap)
		s.cache.Set(key, snap)
		return snap, nil
	})

	var (
		v   interface{}
		err error
	)
	select {
	case res := <-ch:
		v, err = res.Val, res.Err
	case <-ctx.Done():
		err = classify("weather", fmt.Errorf("%w: %w", ErrTimeout, ctx.Err()))
	}
	s.leave(key, f)

	if errors.Is(ctx.Err(), context.Canceled) {
		// The caller lost interest; its outcome must not replace state
		// written by a newer fetch.
		return nil, classify("weather", ctx.Err())
	}
	if err != nil {
		log.Printf("ERROR: weather fetch failed for %s: %v", key, err)
		s.fail(err)
		return nil, err
	}

	snap := v.(Snapshot)
	s.succeed(snap)
	return &snap, nil
}

// flight is one shared upstream call and the callers waiting on it.
type flight struct {
	key     string
	ctx     context.Context
	cancel  context.CancelFunc
	waiters int
}

func (s *Service) join(ctx context.Context, key string) *flight {
	s.flightMu.Lock()
	defer s.flightMu.Unlock()

	f, ok := s.pending[key]
	if !ok {
		s.flightSeq++
		fctx, cancel := context.WithCancel(context.WithoutCancel(ctx))
		f = &flight{key: fmt.Sprintf("%s#%d", key, s.flightSeq), ctx: fctx, cancel: cancel}
		s.pending[key] = f
	}
	f.waiters++
	return f
}

func (s *Service) leave(key string, f *flight) {
	s.flightMu.Lock()
	defer s.flightMu.Unlock()

	f.waiters--
	if f.waiters > 0 {
		return
	}
	f.cancel()
	if s.pending[key] == f {
		delete(s.pending, key)
	}
}

// wait blocks until the rate limiter admits another upstream call.
func (s *Service) wait(ctx context.Context) error {
	start := time.Now()
	err := s.limiter.Wait(ctx)
	waited := time.Since(start)
	s.metrics.RateLimitWait(waited)
	if err != nil {
		return fmt.Errorf("rate limiter: %w", err)
	}
	if waited > 10*time.Millisecond {
		log.Printf("DEBUG: weather request delayed %s by rate limiter", waited.Round(time.Millisecond))
	}
	return nil
}

func (s *Service) attachTimezoneName(snap *Snapshot) {
	if s.resolver == nil || snap.Coordinates == nil || snap.TimezoneName != "" {
		return
	}

	key := snap.Coordinates.Key()
	if name, ok := s.tzCache.Get(key); ok {
		snap.TimezoneName = name
		return
	}

	name, err := s.resolver.TimezoneName(snap.Coordinates.Lat, snap.Coordinates.Lon)
	if err != nil {
		log.Printf("DEBUG: timezone lookup failed for %s: %v", key, err)
		return
	}
	s.tzCache.Set(key, name)
	snap.TimezoneName = name
}

func (s *Service) begin() {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.inflight++
	s.state.Loading = true
	s.state.Error = ""
	s.state.Err = nil
}

func (s *Service) end() {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.inflight--
	s.state.Loading = s.inflight > 0
}

func (s *Service) succeed(snap Snapshot) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.state.Data = &snap
	s.state.Error = ""
	s.state.Err = nil
	s.state.TimezoneLabel = FormatTimezone(snap.UTCOffsetSeconds)
}

// fail discards any previous snapshot so stale conditions are never shown as current.
func (s *Service) fail(err error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.state.Data = nil
	s.state.Error = err.Error()
	s.state.Err = err
	s.state.TimezoneLabel = UnknownTimezone
}
