package weather

import (
	"math"
	"strconv"
	"strings"
	"time"

	"github.com/i474232898/weather-widget/internal/common"
)

// Condition represents a normalized high-level weather condition.
type Condition string

const (
	ConditionUnknown Condition = "unknown"
	ConditionClear   Condition = "clear"
	ConditionCloudy  Condition = "cloudy"
	ConditionRain    Condition = "rain"
	ConditionSnow    Condition = "snow"
	ConditionStorm   Condition = "storm"
	ConditionFog     Condition = "fog"
	ConditionWind    Condition = "wind"
)

// ClassifyCondition maps free-form condition text (in any casing) to a Condition.
func ClassifyCondition(text string) Condition {
	t := strings.ToLower(text)
	switch {
	case t == "":
		return ConditionUnknown
	case common.HasAny(t, "thunder", "storm"):
		return ConditionStorm
	case common.HasAny(t, "rain", "shower", "drizzle"):
		return ConditionRain
	case common.HasAny(t, "snow", "sleet", "hail", "blizzard"):
		return ConditionSnow
	case common.HasAny(t, "fog", "haze", "smog", "mist"):
		return ConditionFog
	case common.HasAny(t, "cloud", "overcast"):
		return ConditionCloudy
	case common.HasAny(t, "clear", "sun"):
		return ConditionClear
	case common.HasAny(t, "wind", "squall", "tornado"):
		return ConditionWind
	default:
		return ConditionUnknown
	}
}

// Coordinates is a latitude/longitude pair in decimal degrees.
type Coordinates struct {
	Lat float64 `json:"lat"`
	Lon float64 `json:"lon"`
}

// Key returns the "<lat>,<lon>" cache key for these coordinates.
func (c Coordinates) Key() string {
	return strconv.FormatFloat(c.Lat, 'f', -1, 64) + "," + strconv.FormatFloat(c.Lon, 'f', -1, 64)
}

// Valid reports whether both components are finite numbers.
func (c Coordinates) Valid() bool {
	return isFinite(c.Lat) && isFinite(c.Lon)
}

// GeoResult is a resolved location. Immutable once returned.
type GeoResult struct {
	Latitude    float64 `json:"latitude"`
	Longitude   float64 `json:"longitude"`
	DisplayName string  `json:"displayName"`
}

// Coordinates returns the position of the result.
func (g GeoResult) Coordinates() Coordinates {
	return Coordinates{Lat: g.Latitude, Lon: g.Longitude}
}

// GeoCandidate is a raw match returned by a geocoding provider.
// Lat and Lon are NaN when the upstream omitted or garbled them.
type GeoCandidate struct {
	Name    string
	State   string
	Country string
	Lat     float64
	Lon     float64
}

// Snapshot is the current conditions at one location. A newer fetch
// supersedes it; it is never mutated after being returned.
type Snapshot struct {
	// TemperatureF is rounded to the nearest whole degree Fahrenheit.
	TemperatureF     float64      `json:"temperatureF"`
	Condition        string       `json:"condition"`
	Category         Condition    `json:"category"`
	Humidity         *float64     `json:"humidity,omitempty"`
	WindSpeed        *float64     `json:"windSpeed,omitempty"`
	UTCOffsetSeconds *int         `json:"utcOffsetSeconds,omitempty"`
	TimezoneName     string       `json:"timezoneName,omitempty"`
	Location         string       `json:"location,omitempty"`
	Coordinates      *Coordinates `json:"coordinates,omitempty"`
	FetchedAt        time.Time    `json:"fetchedAt"`
}

// State is the observable status of a Service. After a completed fetch
// exactly one of Data and Error is set; both are empty before the first one.
type State struct {
	Data          *Snapshot `json:"data"`
	Error         string    `json:"error,omitempty"`
	Loading       bool      `json:"loading"`
	TimezoneLabel string    `json:"timezoneLabel"`

	// Err is the structured cause behind Error.
	Err error `json:"-"`
}

func isFinite(f float64) bool {
	return !math.IsNaN(f) && !math.IsInf(f, 0)
}
