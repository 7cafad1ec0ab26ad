package cmd

import (
	"log"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/collectors"

	"github.com/i474232898/weather-widget/internal/config"
	"github.com/i474232898/weather-widget/internal/fetch"
	"github.com/i474232898/weather-widget/internal/metrics"
	"github.com/i474232898/weather-widget/internal/timezone"
	"github.com/i474232898/weather-widget/internal/weather"
	"github.com/i474232898/weather-widget/internal/weather/providers"
)

const userAgent = "weather-widget/1.0"

// stack is the wired core shared by every command.
type stack struct {
	registry *prometheus.Registry
	metrics  *metrics.Metrics
	geocoder *weather.Geocoder
	service  *weather.Service
}

func newStack(cfg *config.AppConfig) *stack {
	reg := prometheus.NewRegistry()
	reg.MustRegister(collectors.NewGoCollector(), collectors.NewProcessCollector(collectors.ProcessCollectorOpts{}))
	m := metrics.New(reg)

	fetcher := fetch.New(fetch.Config{
		Name:      "openweathermap",
		Timeout:   cfg.HTTPTimeout,
		UserAgent: userAgent,
	})
	owm := providers.NewOpenWeather(fetcher, providers.Options{
		BaseURL: cfg.OpenWeatherBaseURL,
		APIKey:  cfg.OpenWeatherAPIKey,
		Timeout: cfg.HTTPTimeout,
		Country: cfg.GeocodeCountry,
	})

	serviceOpts := []weather.Option{weather.WithMetrics(m)}
	if cfg.TimezoneLookup {
		resolver, err := timezone.NewResolver()
		if err != nil {
			log.Printf("ERROR: timezone lookup disabled: %v", err)
		} else {
			serviceOpts = append(serviceOpts, weather.WithTimezoneResolver(resolver))
		}
	}

	// A zero interval from config means "no limit" to the service.
	rateLimit := cfg.RateLimitInterval
	if rateLimit == 0 {
		rateLimit = -1
	}

	return &stack{
		registry: reg,
		metrics:  m,
		geocoder: weather.NewGeocoder(owm, weather.GeocoderConfig{
			CacheTTL: cfg.GeocodeCacheTTL,
			Country:  cfg.GeocodeCountry,
			Limit:    cfg.GeocodeLimit,
		}, weather.WithMetrics(m)),
		service: weather.NewService(owm, weather.ServiceConfig{
			CacheTTL:    cfg.WeatherCacheTTL,
			RateLimit:   rateLimit,
			TimezoneTTL: cfg.TimezoneCacheTTL,
		}, serviceOpts...),
	}
}

func loadConfig() (*config.AppConfig, error) {
	cfg, err := config.Load()
	if err != nil {
		return nil, err
	}
	if err := cfg.RequireAPIKey(); err != nil {
		return nil, err
	}
	return cfg, nil
}
