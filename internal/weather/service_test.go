package weather

import (
	"context"
	"errors"
	"math"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/i474232898/weather-widget/internal/fetch"
)

func noLimit() ServiceConfig {
	return ServiceConfig{RateLimit: -1}
}

func TestService_InitialState(t *testing.T) {
	s := NewService(&fakeProvider{}, noLimit())

	st := s.State()
	assert.Nil(t, st.Data)
	assert.Empty(t, st.Error)
	assert.False(t, st.Loading)
	assert.Equal(t, DetectingTimezone, st.TimezoneLabel)
}

func TestService_NilCoordinatesIsNoop(t *testing.T) {
	p := &fakeProvider{}
	s := NewService(p, noLimit())

	before := s.State()
	snap, err := s.FetchWeather(context.Background(), nil)
	assert.NoError(t, err)
	assert.Nil(t, snap)
	assert.Equal(t, before, s.State())
	assert.Zero(t, p.Calls())
}

func TestService_NonFiniteCoordinates(t *testing.T) {
	p := &fakeProvider{}
	s := NewService(p, noLimit())

	_, err := s.FetchWeather(context.Background(), &Coordinates{Lat: math.NaN(), Lon: 1})
	require.Error(t, err)
	assert.True(t, errors.Is(err, ErrValidation))
	assert.NotEmpty(t, s.State().Error)
	assert.Zero(t, p.Calls())
}

func TestService_Success(t *testing.T) {
	p := &fakeProvider{result: func(c Coordinates) (Snapshot, error) {
		return Snapshot{TemperatureF: 72, Condition: "Clear sky", UTCOffsetSeconds: intPtr(-28800)}, nil
	}}
	s := NewService(p, noLimit())

	c := Coordinates{Lat: 37.38, Lon: -122.08}
	snap, err := s.FetchWeather(context.Background(), &c)
	require.NoError(t, err)
	require.NotNil(t, snap)
	assert.Equal(t, 72.0, snap.TemperatureF)
	assert.Equal(t, &c, snap.Coordinates)

	st := s.State()
	require.NotNil(t, st.Data)
	assert.Equal(t, 72.0, st.Data.TemperatureF)
	assert.Empty(t, st.Error)
	assert.False(t, st.Loading)
	assert.Equal(t, "Pacific Time Zone (UTC-08:00)", st.TimezoneLabel)
}

func TestService_CacheHit(t *testing.T) {
	p := &fakeProvider{}
	s := NewService(p, ServiceConfig{RateLimit: time.Hour})

	c := &Coordinates{Lat: 1, Lon: 2}
	_, err := s.FetchWeather(context.Background(), c)
	require.NoError(t, err)

	// A cache hit must neither go upstream nor wait on the (hour-long) rate limit.
	start := time.Now()
	snap, err := s.FetchWeather(context.Background(), c)
	require.NoError(t, err)
	require.NotNil(t, snap)
	assert.Less(t, time.Since(start), 100*time.Millisecond)
	assert.Equal(t, 1, p.Calls())
	assert.NotNil(t, s.State().Data)
}

func TestService_CacheHitClearsError(t *testing.T) {
	p := &fakeProvider{result: func(c Coordinates) (Snapshot, error) {
		if c.Lat == 9 {
			return Snapshot{}, &fetch.HTTPError{StatusCode: 500}
		}
		return Snapshot{TemperatureF: 50}, nil
	}}
	s := NewService(p, noLimit())

	good := &Coordinates{Lat: 1, Lon: 1}
	_, err := s.FetchWeather(context.Background(), good)
	require.NoError(t, err)

	_, err = s.FetchWeather(context.Background(), &Coordinates{Lat: 9, Lon: 9})
	require.Error(t, err)
	assert.NotEmpty(t, s.State().Error)

	_, err = s.FetchWeather(context.Background(), good)
	require.NoError(t, err)
	st := s.State()
	assert.Empty(t, st.Error)
	require.NotNil(t, st.Data)
	assert.Equal(t, 50.0, st.Data.TemperatureF)
}

func TestService_ErrorDiscardsPreviousData(t *testing.T) {
	p := &fakeProvider{result: func(c Coordinates) (Snapshot, error) {
		if c.Lat == 2 {
			return Snapshot{}, &fetch.HTTPError{StatusCode: 404}
		}
		return Snapshot{TemperatureF: 72}, nil
	}}
	s := NewService(p, noLimit())

	_, err := s.FetchWeather(context.Background(), &Coordinates{Lat: 1, Lon: 1})
	require.NoError(t, err)
	require.NotNil(t, s.State().Data)

	snap, err := s.FetchWeather(context.Background(), &Coordinates{Lat: 2, Lon: 2})
	require.Error(t, err)
	assert.Nil(t, snap)
	assert.True(t, errors.Is(err, ErrUpstream))

	st := s.State()
	assert.Nil(t, st.Data)
	assert.NotEmpty(t, st.Error)
	assert.Contains(t, st.Error, "404")
	assert.False(t, st.Loading)
	assert.Equal(t, UnknownTimezone, st.TimezoneLabel)
	assert.Equal(t, KindNotFound, KindOf(st.Err))
}

func TestService_FailuresAreNotCached(t *testing.T) {
	p := &fakeProvider{result: func(Coordinates) (Snapshot, error) {
		return Snapshot{}, errBoom
	}}
	s := NewService(p, noLimit())

	c := &Coordinates{Lat: 1, Lon: 1}
	_, _ = s.FetchWeather(context.Background(), c)
	_, _ = s.FetchWeather(context.Background(), c)
	assert.Equal(t, 2, p.Calls())
}

func TestService_LoadingDuringFetch(t *testing.T) {
	release := make(chan struct{})
	p := &fakeProvider{release: release}
	s := NewService(p, noLimit())

	done := make(chan struct{})
	go func() {
		defer close(done)
		_, _ = s.FetchWeather(context.Background(), &Coordinates{Lat: 1, Lon: 1})
	}()

	assert.Eventually(t, func() bool { return s.State().Loading }, time.Second, 5*time.Millisecond)
	close(release)
	<-done
	assert.False(t, s.State().Loading)
}

func TestService_RateLimitSpacesCalls(t *testing.T) {
	const interval = 200 * time.Millisecond
	p := &fakeProvider{}
	s := NewService(p, ServiceConfig{RateLimit: interval})

	_, err := s.FetchWeather(context.Background(), &Coordinates{Lat: 1, Lon: 1})
	require.NoError(t, err)
	_, err = s.FetchWeather(context.Background(), &Coordinates{Lat: 2, Lon: 2})
	require.NoError(t, err)

	starts := p.Starts()
	require.Len(t, starts, 2)
	assert.GreaterOrEqual(t, starts[1].Sub(starts[0]), interval-10*time.Millisecond)
}

func TestService_RateLimitHonoursContext(t *testing.T) {
	p := &fakeProvider{}
	s := NewService(p, ServiceConfig{RateLimit: time.Hour})

	_, err := s.FetchWeather(context.Background(), &Coordinates{Lat: 1, Lon: 1})
	require.NoError(t, err)

	ctx, cancel := context.WithTimeout(context.Background(), 20*time.Millisecond)
	defer cancel()
	_, err = s.FetchWeather(ctx, &Coordinates{Lat: 2, Lon: 2})
	require.Error(t, err)
	assert.Equal(t, 1, p.Calls())
	assert.False(t, s.State().Loading)
}

func TestService_CollapsesConcurrentIdenticalRequests(t *testing.T) {
	release := make(chan struct{})
	p := &fakeProvider{release: release}
	s := NewService(p, noLimit())

	c := &Coordinates{Lat: 1, Lon: 1}
	var wg sync.WaitGroup
	for i := 0; i < 5; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			snap, err := s.FetchWeather(context.Background(), c)
			assert.NoError(t, err)
			assert.NotNil(t, snap)
		}()
	}

	assert.Eventually(t, func() bool { return p.Calls() == 1 }, time.Second, 5*time.Millisecond)
	time.Sleep(20 * time.Millisecond)
	close(release)
	wg.Wait()

	assert.Equal(t, 1, p.Calls())
	assert.False(t, s.State().Loading)
}

func TestService_CancelledCallerDoesNotFailJoinedCaller(t *testing.T) {
	release := make(chan struct{})
	p := &fakeProvider{release: release}
	s := NewService(p, noLimit())
	c := &Coordinates{Lat: 1, Lon: 1}

	ctx, cancel := context.WithCancel(context.Background())
	firstErr := make(chan error, 1)
	go func() {
		_, err := s.FetchWeather(ctx, c)
		firstErr <- err
	}()
	assert.Eventually(t, func() bool { return p.Calls() == 1 }, time.Second, 5*time.Millisecond)

	type result struct {
		snap *Snapshot
		err  error
	}
	second := make(chan result, 1)
	go func() {
		snap, err := s.FetchWeather(context.Background(), c)
		second <- result{snap, err}
	}()
	time.Sleep(20 * time.Millisecond)

	cancel()
	assert.ErrorIs(t, <-firstErr, context.Canceled)

	close(release)
	res := <-second
	require.NoError(t, res.err)
	require.NotNil(t, res.snap)

	st := s.State()
	assert.NotNil(t, st.Data)
	assert.Empty(t, st.Error)
	assert.Equal(t, 1, p.Calls())
}

func TestService_AbandonedFetchLeavesStateAlone(t *testing.T) {
	p := &fakeProvider{}
	s := NewService(p, noLimit())

	newer := &Coordinates{Lat: 2, Lon: 2}
	_, err := s.FetchWeather(context.Background(), newer)
	require.NoError(t, err)

	release := make(chan struct{})
	t.Cleanup(func() { close(release) })
	p.mu.Lock()
	p.release = release
	p.mu.Unlock()

	ctx, cancel := context.WithCancel(context.Background())
	abandoned := make(chan error, 1)
	go func() {
		_, err := s.FetchWeather(ctx, &Coordinates{Lat: 1, Lon: 1})
		abandoned <- err
	}()
	assert.Eventually(t, func() bool { return p.Calls() == 2 }, time.Second, 5*time.Millisecond)

	snap, err := s.FetchWeather(context.Background(), newer)
	require.NoError(t, err)

	cancel()
	assert.ErrorIs(t, <-abandoned, context.Canceled)

	st := s.State()
	require.NotNil(t, st.Data)
	assert.Equal(t, *snap, *st.Data)
	assert.Empty(t, st.Error)
	assert.False(t, st.Loading)
}

func TestService_CallerDeadlineIsRecorded(t *testing.T) {
	release := make(chan struct{})
	t.Cleanup(func() { close(release) })
	s := NewService(&fakeProvider{release: release}, noLimit())

	ctx, cancel := context.WithTimeout(context.Background(), 20*time.Millisecond)
	defer cancel()
	_, err := s.FetchWeather(ctx, &Coordinates{Lat: 1, Lon: 1})
	require.Error(t, err)
	assert.ErrorIs(t, err, ErrTimeout)
	assert.Equal(t, KindTimeout, KindOf(err))

	st := s.State()
	assert.Nil(t, st.Data)
	assert.NotEmpty(t, st.Error)
}

func TestService_TimezoneNameResolvedAndCached(t *testing.T) {
	r := &fakeResolver{name: "America/Los_Angeles"}
	s := NewService(&fakeProvider{}, ServiceConfig{RateLimit: -1, CacheTTL: 20 * time.Millisecond}, WithTimezoneResolver(r))

	c := &Coordinates{Lat: 37.38, Lon: -122.08}
	snap, err := s.FetchWeather(context.Background(), c)
	require.NoError(t, err)
	assert.Equal(t, "America/Los_Angeles", snap.TimezoneName)

	time.Sleep(40 * time.Millisecond)
	snap, err = s.FetchWeather(context.Background(), c)
	require.NoError(t, err)
	assert.Equal(t, "America/Los_Angeles", snap.TimezoneName)
	assert.Equal(t, 1, r.calls)
}

func TestService_TimezoneFailureIsNotFatal(t *testing.T) {
	r := &fakeResolver{err: errBoom}
	s := NewService(&fakeProvider{}, noLimit(), WithTimezoneResolver(r))

	snap, err := s.FetchWeather(context.Background(), &Coordinates{Lat: 1, Lon: 1})
	require.NoError(t, err)
	assert.Empty(t, snap.TimezoneName)
}

func TestService_FetchWeatherByCity(t *testing.T) {
	p := &fakeProvider{}
	s := NewService(p, noLimit())

	snap, err := s.FetchWeatherByCity(context.Background(), "Paris", "fr")
	require.NoError(t, err)
	assert.Equal(t, "Nuageux", snap.Condition)

	_, err = s.FetchWeatherByCity(context.Background(), "paris", "fr")
	require.NoError(t, err)
	assert.Equal(t, 1, p.Calls(), "same city and language is cached")

	_, err = s.FetchWeatherByCity(context.Background(), "Paris", "")
	require.NoError(t, err)
	assert.Equal(t, []string{"Paris|fr", "Paris|en"}, p.cities)
}

func TestService_FetchWeatherByCityValidation(t *testing.T) {
	s := NewService(&fakeProvider{}, noLimit())

	_, err := s.FetchWeatherByCity(context.Background(), "  ", "en")
	assert.True(t, errors.Is(err, ErrValidation))

	_, err = s.FetchWeatherByCity(context.Background(), "Paris", "not a language!")
	assert.True(t, errors.Is(err, ErrValidation))
}

func TestService_SetError(t *testing.T) {
	s := NewService(&fakeProvider{}, noLimit())
	_, err := s.FetchWeather(context.Background(), &Coordinates{Lat: 1, Lon: 1})
	require.NoError(t, err)

	label := s.State().TimezoneLabel

	s.SetError("City not found")
	st := s.State()
	require.NotNil(t, st.Data)
	assert.Equal(t, 72.0, st.Data.TemperatureF)
	assert.Equal(t, "City not found", st.Error)
	assert.Nil(t, st.Err)
	assert.Equal(t, label, st.TimezoneLabel)

	_, err = s.FetchWeather(context.Background(), &Coordinates{Lat: 1, Lon: 1})
	require.NoError(t, err)
	assert.Empty(t, s.State().Error)
}

func TestService_Purge(t *testing.T) {
	p := &fakeProvider{}
	s := NewService(p, noLimit())
	c := &Coordinates{Lat: 1, Lon: 1}

	_, _ = s.FetchWeather(context.Background(), c)
	s.Purge()
	_, _ = s.FetchWeather(context.Background(), c)
	assert.Equal(t, 2, p.Calls())
}
