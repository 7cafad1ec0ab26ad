package scheduler

import (
	"context"
	"errors"
	"log"
	"sync"
	"time"

	"github.com/go-co-op/gocron"
	"github.com/google/uuid"

	"github.com/i474232898/weather-widget/internal/metrics"
	"github.com/i474232898/weather-widget/internal/weather"
)

const (
	// DefaultInterval is how often the current selection is refreshed.
	DefaultInterval = time.Hour
	// DefaultRunTimeout bounds a single refresh, including rate-limit waits.
	DefaultRunTimeout = 30 * time.Second
)

// ErrStopped is returned by Select after Stop.
var ErrStopped = errors.New("scheduler stopped")

// Fetcher is the part of weather.Service the scheduler drives.
type Fetcher interface {
	FetchWeather(ctx context.Context, c *weather.Coordinates) (*weather.Snapshot, error)
}

// Option customizes a Scheduler.
type Option func(*Scheduler)

// WithMetrics counts refresh outcomes.
func WithMetrics(m *metrics.Metrics) Option {
	return func(s *Scheduler) { s.metrics = m }
}

// WithRunTimeout overrides DefaultRunTimeout.
func WithRunTimeout(d time.Duration) Option {
	return func(s *Scheduler) {
		if d > 0 {
			s.runTimeout = d
		}
	}
}

type selection struct {
	tag    string
	coords weather.Coordinates
	ctx    context.Context
	cancel context.CancelFunc
}

// Scheduler refreshes weather for the selected coordinates: once right away
// and then every interval. At most one selection, and so one job, is active.
type Scheduler struct {
	scheduler  *gocron.Scheduler
	fetcher    Fetcher
	metrics    *metrics.Metrics
	runTimeout time.Duration

	mu       sync.Mutex
	interval time.Duration
	current  *selection
	stopped  bool
}

// New creates a Scheduler and starts its gocron loop. A non-positive
// interval means DefaultInterval.
func New(fetcher Fetcher, interval time.Duration, opts ...Option) *Scheduler {
	if interval <= 0 {
		interval = DefaultInterval
	}
	s := &Scheduler{
		scheduler:  gocron.NewScheduler(time.UTC),
		fetcher:    fetcher,
		runTimeout: DefaultRunTimeout,
		interval:   interval,
	}
	for _, opt := range opts {
		opt(s)
	}
	s.scheduler.StartAsync()
	return s
}

// Interval returns the current refresh interval.
func (s *Scheduler) Interval() time.Duration {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.interval
}

// Selection returns the coordinates being refreshed, if any.
func (s *Scheduler) Selection() (weather.Coordinates, bool) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.current == nil {
		return weather.Coordinates{}, false
	}
	return s.current.coords, true
}

// Select replaces the current selection. The previous job is removed and
// its in-flight refresh cancelled before the new one is scheduled.
func (s *Scheduler) Select(c weather.Coordinates) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	if s.stopped {
		return ErrStopped
	}
	s.dropLocked()
	return s.scheduleLocked(c)
}

// SetInterval changes the refresh interval and re-arms the current
// selection, which triggers an immediate refresh.
func (s *Scheduler) SetInterval(d time.Duration) error {
	if d <= 0 {
		d = DefaultInterval
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	s.interval = d
	if s.stopped || s.current == nil {
		return nil
	}
	c := s.current.coords
	s.dropLocked()
	return s.scheduleLocked(c)
}

// Clear drops the selection. Nothing is refreshed until the next Select.
func (s *Scheduler) Clear() {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.dropLocked()
}

// Stop cancels the selection and stops the gocron loop. It is safe to
// call more than once.
func (s *Scheduler) Stop() {
	s.mu.Lock()
	if s.stopped {
		s.mu.Unlock()
		return
	}
	s.stopped = true
	s.dropLocked()
	s.mu.Unlock()

	s.scheduler.Stop()
	log.Println("scheduler: stopped")
}

func (s *Scheduler) scheduleLocked(c weather.Coordinates) error {
	ctx, cancel := context.WithCancel(context.Background())
	sel := &selection{
		tag:    uuid.NewString(),
		coords: c,
		ctx:    ctx,
		cancel: cancel,
	}

	_, err := s.scheduler.Every(s.interval).
		Tag(sel.tag).
		SingletonMode().
		StartImmediately().
		Do(s.run, sel)
	if err != nil {
		cancel()
		return err
	}

	s.current = sel
	log.Printf("scheduler: refreshing %s every %s", c.Key(), s.interval)
	return nil
}

func (s *Scheduler) dropLocked() {
	if s.current == nil {
		return
	}
	s.current.cancel()
	if err := s.scheduler.RemoveByTag(s.current.tag); err != nil {
		log.Printf("scheduler: remove job %s: %v", s.current.tag, err)
	}
	s.current = nil
}

func (s *Scheduler) run(sel *selection) {
	if sel.ctx.Err() != nil {
		return
	}

	ctx, cancel := context.WithTimeout(sel.ctx, s.runTimeout)
	defer cancel()

	c := sel.coords
	_, err := s.fetcher.FetchWeather(ctx, &c)
	if sel.ctx.Err() != nil {
		// Superseded while in flight; the outcome belongs to nobody.
		return
	}
	s.metrics.Refresh(err)
	if err != nil {
		log.Printf("scheduler: refresh failed for %s: %v", c.Key(), err)
	}
}
