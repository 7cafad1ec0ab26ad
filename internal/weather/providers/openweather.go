package providers

import (
	"context"
	"fmt"
	"net/url"
	"strconv"
	"strings"
	"time"

	"github.com/i474232898/weather-widget/internal/fetch"
	"github.com/i474232898/weather-widget/internal/weather"
)

/*
	OpenWeatherMap endpoints consumed here

	GET /geo/1.0/zip?zip={code},{country}&appid=     -> single object {name, lat, lon, country}
	GET /geo/1.0/direct?q={text}&limit={n}&appid=    -> array of {name, state?, country, lat, lon}
	GET /data/2.5/weather?lat=&lon=&units=imperial   -> current conditions
	GET /data/2.5/weather?q=&units=imperial&lang=    -> current conditions by city text

	A 404 from /zip or /data/2.5/weather means "not found".
*/

const DefaultBaseURL = "https://api.openweathermap.org"

// Getter is the transport the provider needs; *fetch.Fetcher satisfies it.
type Getter interface {
	Get(ctx context.Context, rawURL string, timeout time.Duration) (*fetch.Response, error)
}

// Options configures an OpenWeather provider.
type Options struct {
	BaseURL string
	APIKey  string
	// Timeout overrides the fetcher default per request.
	Timeout time.Duration
	// Country is appended to city-text weather queries of the form "City, ST".
	Country string
}

// OpenWeather implements weather.GeoProvider and weather.Provider for OpenWeatherMap.
type OpenWeather struct {
	fetcher Getter
	baseURL string
	apiKey  string
	timeout time.Duration
	country string
}

var (
	_ weather.GeoProvider = (*OpenWeather)(nil)
	_ weather.Provider    = (*OpenWeather)(nil)
)

func NewOpenWeather(fetcher Getter, opts Options) *OpenWeather {
	base := strings.TrimRight(opts.BaseURL, "/")
	if base == "" {
		base = DefaultBaseURL
	}
	country := opts.Country
	if country == "" {
		country = weather.DefaultGeocodeCountry
	}
	return &OpenWeather{
		fetcher: fetcher,
		baseURL: base,
		apiKey:  opts.APIKey,
		timeout: opts.Timeout,
		country: country,
	}
}

func (p *OpenWeather) LookupZip(ctx context.Context, zip, country string) (*weather.GeoCandidate, error) {
	values := url.Values{}
	values.Set("zip", zip+","+country)

	body, err := p.get(ctx, "/geo/1.0/zip", values)
	if err != nil {
		return nil, err
	}
	return parseZip(body)
}

func (p *OpenWeather) LookupDirect(ctx context.Context, query string, limit int) ([]weather.GeoCandidate, error) {
	values := url.Values{}
	values.Set("q", query)
	values.Set("limit", strconv.Itoa(limit))

	body, err := p.get(ctx, "/geo/1.0/direct", values)
	if err != nil {
		return nil, err
	}
	return parseDirect(body)
}

func (p *OpenWeather) Current(ctx context.Context, c weather.Coordinates) (weather.Snapshot, error) {
	values := url.Values{}
	values.Set("lat", strconv.FormatFloat(c.Lat, 'f', -1, 64))
	values.Set("lon", strconv.FormatFloat(c.Lon, 'f', -1, 64))
	values.Set("units", "imperial")

	body, err := p.get(ctx, "/data/2.5/weather", values)
	if err != nil {
		return weather.Snapshot{}, err
	}
	return ParseCurrent(body, "", time.Now().UTC())
}

func (p *OpenWeather) CurrentByCity(ctx context.Context, city, lang string) (weather.Snapshot, error) {
	values := url.Values{}
	values.Set("q", weather.NormalizeCityQuery(city, p.country))
	values.Set("units", "imperial")
	if lang != "" {
		values.Set("lang", lang)
	}

	body, err := p.get(ctx, "/data/2.5/weather", values)
	if err != nil {
		return weather.Snapshot{}, err
	}
	return ParseCurrent(body, lang, time.Now().UTC())
}

func (p *OpenWeather) get(ctx context.Context, path string, values url.Values) ([]byte, error) {
	if p.apiKey == "" {
		return nil, fmt.Errorf("openweather api key is not configured")
	}
	values.Set("appid", p.apiKey)

	u := fmt.Sprintf("%s%s?%s", p.baseURL, path, values.Encode())
	resp, err := p.fetcher.Get(ctx, u, p.timeout)
	if err != nil {
		return nil, err
	}
	return resp.Body, nil
}
