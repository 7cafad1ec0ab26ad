package providers

import (
	"bytes"
	"encoding/json"
	"fmt"
	"math"
	"strconv"
	"strings"
	"time"
	"unicode/utf8"

	"golang.org/x/text/cases"
	"golang.org/x/text/language"

	"github.com/i474232898/weather-widget/internal/weather"
)

// flexFloat accepts a JSON number or a numeric string. A value that is
// neither decodes as NaN.
type flexFloat float64

func (f *flexFloat) UnmarshalJSON(b []byte) error {
	s := strings.Trim(strings.TrimSpace(string(b)), `"`)
	v, err := strconv.ParseFloat(s, 64)
	if err != nil {
		v = math.NaN()
	}
	*f = flexFloat(v)
	return nil
}

// value returns NaN for a field the payload omitted.
func (f *flexFloat) value() float64 {
	if f == nil {
		return math.NaN()
	}
	return float64(*f)
}

type geoPayload struct {
	Name    string     `json:"name"`
	State   string     `json:"state"`
	Country string     `json:"country"`
	Lat     *flexFloat `json:"lat"`
	Lon     *flexFloat `json:"lon"`
}

func (g geoPayload) candidate() weather.GeoCandidate {
	return weather.GeoCandidate{
		Name:    g.Name,
		State:   g.State,
		Country: g.Country,
		Lat:     g.Lat.value(),
		Lon:     g.Lon.value(),
	}
}

// parseZip decodes the single-object zip response. null or an object
// without a name or position means no match.
func parseZip(body []byte) (*weather.GeoCandidate, error) {
	if len(bytes.TrimSpace(body)) == 0 {
		return nil, nil
	}

	var payload *geoPayload
	if err := json.Unmarshal(body, &payload); err != nil {
		return nil, fmt.Errorf("%w: decode zip response: %v", weather.ErrInvalidData, err)
	}
	if payload == nil || (payload.Name == "" && payload.Lat == nil && payload.Lon == nil) {
		return nil, nil
	}

	c := payload.candidate()
	return &c, nil
}

// parseDirect decodes the free-text response array, best match first.
func parseDirect(body []byte) ([]weather.GeoCandidate, error) {
	var payload []geoPayload
	if err := json.Unmarshal(body, &payload); err != nil {
		return nil, fmt.Errorf("%w: decode direct response: %v", weather.ErrInvalidData, err)
	}

	out := make([]weather.GeoCandidate, 0, len(payload))
	for _, g := range payload {
		out = append(out, g.candidate())
	}
	return out, nil
}

type currentPayload struct {
	Name  string `json:"name"`
	Coord *struct {
		Lat *flexFloat `json:"lat"`
		Lon *flexFloat `json:"lon"`
	} `json:"coord"`
	Main struct {
		Temp     *float64 `json:"temp"`
		Humidity *float64 `json:"humidity"`
	} `json:"main"`
	Wind struct {
		Speed *float64 `json:"speed"`
	} `json:"wind"`
	Weather []struct {
		Main        string `json:"main"`
		Description string `json:"description"`
	} `json:"weather"`
	Timezone *int `json:"timezone"`
}

// ParseCurrent turns a /data/2.5/weather body into a Snapshot.
//
// Field sources, in priority order:
//   - TemperatureF: main.temp, rounded (required)
//   - Condition: weather[0].description, then weather[0].main, then "Unknown";
//     first letter upper-cased for lang
//   - Humidity: main.humidity
//   - WindSpeed: wind.speed, rounded
//   - UTCOffsetSeconds: timezone
//   - Location: name
//   - Coordinates: coord.lat/coord.lon when both are finite
func ParseCurrent(body []byte, lang string, fetchedAt time.Time) (weather.Snapshot, error) {
	var payload currentPayload
	if err := json.Unmarshal(body, &payload); err != nil {
		return weather.Snapshot{}, fmt.Errorf("%w: decode weather response: %v", weather.ErrInvalidData, err)
	}

	if payload.Main.Temp == nil {
		return weather.Snapshot{}, fmt.Errorf("%w: weather response has no main.temp", weather.ErrInvalidData)
	}

	condition := "Unknown"
	if len(payload.Weather) > 0 {
		w := payload.Weather[0]
		switch {
		case w.Description != "":
			condition = capitalize(w.Description, lang)
		case w.Main != "":
			condition = capitalize(w.Main, lang)
		}
	}

	snap := weather.Snapshot{
		TemperatureF:     weather.Round(*payload.Main.Temp),
		Condition:        condition,
		Category:         weather.ClassifyCondition(condition),
		Humidity:         payload.Main.Humidity,
		UTCOffsetSeconds: payload.Timezone,
		Location:         payload.Name,
		FetchedAt:        fetchedAt,
	}

	if payload.Wind.Speed != nil {
		speed := weather.Round(*payload.Wind.Speed)
		snap.WindSpeed = &speed
	}

	if payload.Coord != nil {
		c := weather.Coordinates{Lat: payload.Coord.Lat.value(), Lon: payload.Coord.Lon.value()}
		if c.Valid() {
			snap.Coordinates = &c
		}
	}

	return snap, nil
}

// capitalize upper-cases the first letter using lang's casing rules.
func capitalize(s, lang string) string {
	if s == "" {
		return s
	}
	tag := language.Und
	if lang != "" {
		if t, err := language.Parse(lang); err == nil {
			tag = t
		}
	}
	_, size := utf8.DecodeRuneInString(s)
	return cases.Upper(tag).String(s[:size]) + s[size:]
}
