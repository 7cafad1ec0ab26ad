package config

import (
	"errors"
	"fmt"
	"log"
	"os"
	"strconv"
	"strings"
	"time"

	"github.com/go-playground/validator/v10"
	"github.com/joho/godotenv"
)

// ErrMissingAPIKey is returned by RequireAPIKey when OPENWEATHER_API_KEY is unset.
var ErrMissingAPIKey = errors.New("OPENWEATHER_API_KEY is not set")

type AppConfig struct {
	OpenWeatherAPIKey  string
	OpenWeatherBaseURL string `validate:"required,url"`

	// HTTPTimeout bounds every upstream request.
	HTTPTimeout time.Duration `validate:"gt=0"`

	GeocodeCacheTTL  time.Duration `validate:"gt=0"`
	WeatherCacheTTL  time.Duration `validate:"gt=0"`
	TimezoneCacheTTL time.Duration `validate:"gt=0"`

	// RateLimitInterval is the minimum spacing between weather calls; 0 disables it.
	RateLimitInterval time.Duration `validate:"gte=0"`

	// RefreshInterval controls how often the selected location is refreshed.
	RefreshInterval time.Duration `validate:"gt=0"`

	GeocodeCountry string `validate:"required,len=2,alpha"`
	GeocodeLimit   int    `validate:"min=1,max=5"`

	// DefaultLocation is selected at startup when set (ZIP code or "City, ST").
	DefaultLocation string

	// TimezoneLookup enables coordinate to IANA name resolution.
	TimezoneLookup bool

	Port string `validate:"required,numeric"`
}

var validate = validator.New()

// Load reads configuration from environment with sensible defaults.
func Load() (*AppConfig, error) {
	if err := godotenv.Load(); err != nil {
		log.Printf("INFO: No .env file found or error loading it: %v", err)
	}
	return FromEnv()
}

// FromEnv builds the configuration from the process environment only.
func FromEnv() (*AppConfig, error) {
	cfg := &AppConfig{
		OpenWeatherAPIKey:  strings.TrimSpace(os.Getenv("OPENWEATHER_API_KEY")),
		OpenWeatherBaseURL: getenvDefault("OPENWEATHER_BASE_URL", "https://api.openweathermap.org"),
		GeocodeCountry:     strings.ToUpper(getenvDefault("GEOCODE_COUNTRY", "US")),
		GeocodeLimit:       getenvInt("GEOCODE_LIMIT", 1),
		DefaultLocation:    strings.TrimSpace(os.Getenv("DEFAULT_LOCATION")),
		TimezoneLookup:     getenvBool("TIMEZONE_LOOKUP", true),
		Port:               getenvDefault("PORT", "8080"),
	}

	durations := []struct {
		key string
		def string
		dst *time.Duration
	}{
		{"HTTP_TIMEOUT", "5s", &cfg.HTTPTimeout},
		{"GEOCODE_CACHE_TTL", "1h", &cfg.GeocodeCacheTTL},
		{"WEATHER_CACHE_TTL", "10m", &cfg.WeatherCacheTTL},
		{"TIMEZONE_CACHE_TTL", "24h", &cfg.TimezoneCacheTTL},
		{"RATE_LIMIT_INTERVAL", "1s", &cfg.RateLimitInterval},
	}
	for _, d := range durations {
		v, err := time.ParseDuration(getenvDefault(d.key, d.def))
		if err != nil {
			return nil, fmt.Errorf("invalid %s: %w", d.key, err)
		}
		*d.dst = v
	}

	refresh, err := parseRefresh(getenvDefault("REFRESH_INTERVAL", "1h"))
	if err != nil {
		return nil, fmt.Errorf("invalid REFRESH_INTERVAL: %w", err)
	}
	cfg.RefreshInterval = refresh

	if err := validate.Struct(cfg); err != nil {
		return nil, fmt.Errorf("invalid configuration: %w", err)
	}
	return cfg, nil
}

// RequireAPIKey fails when no OpenWeatherMap key is configured.
func (c *AppConfig) RequireAPIKey() error {
	if c.OpenWeatherAPIKey == "" {
		return ErrMissingAPIKey
	}
	return nil
}

// parseRefresh accepts a Go duration ("90m") or a bare number of minutes ("60").
func parseRefresh(s string) (time.Duration, error) {
	if n, err := strconv.Atoi(s); err == nil {
		return time.Duration(n) * time.Minute, nil
	}
	return time.ParseDuration(s)
}

func getenvDefault(key, def string) string {
	if v := strings.TrimSpace(os.Getenv(key)); v != "" {
		return v
	}
	return def
}

func getenvInt(key string, def int) int {
	if v := os.Getenv(key); v != "" {
		n, err := strconv.Atoi(v)
		if err == nil {
			return n
		}
	}
	return def
}

func getenvBool(key string, def bool) bool {
	if v := os.Getenv(key); v != "" {
		b, err := strconv.ParseBool(v)
		if err == nil {
			return b
		}
	}
	return def
}
