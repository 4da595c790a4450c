package weather

import (
	"errors"
	"math"
	"strconv"
	"time"
)

const (
	// DefaultHours is the window used by the hourly view when none is requested.
	DefaultHours = 24
	// MaxHours caps the hourly view to one week.
	MaxHours = 168

	// minHours is the most negative window whose duration still fits in a time.Duration.
	minHours = -int(math.MaxInt64 / int64(time.Hour))
)

// Location represents the fixed place for which we track weather.
type Location struct {
	Lat float64 `json:"lat" validate:"latitude"`
	Lon float64 `json:"lon" validate:"longitude"`
}

// Validate reports whether the coordinates are finite decimal degrees in range.
func (l Location) Validate() error {
	return validate.Struct(l)
}

func (l Location) String() string {
	return strconv.FormatFloat(l.Lat, 'f', -1, 64) + "," + strconv.FormatFloat(l.Lon, 'f', -1, 64)
}

// Measurement is one stored reading. Its identity is (Source, Lat, Lon, Timestamp).
type Measurement struct {
	Source    string    `json:"source"`
	Lat       float64   `json:"lat"`
	Lon       float64   `json:"lon"`
	Timestamp time.Time `json:"timestamp"` // always UTC, as reported upstream

	Temperature2m      float64 `json:"temperature_2m"`
	RelativeHumidity2m float64 `json:"relative_humidity_2m"`
	WindSpeed10m       float64 `json:"wind_speed_10m"`
}

// Key is the identity key of a Measurement, usable as a map key.
type Key struct {
	Source    string
	Lat       float64
	Lon       float64
	Timestamp int64 // unix nanoseconds
}

// Key returns the measurement's identity key.
func (m Measurement) Key() Key {
	return Key{
		Source:    m.Source,
		Lat:       m.Lat,
		Lon:       m.Lon,
		Timestamp: m.Timestamp.UnixNano(),
	}
}

// SeriesPoint is the projection of a Measurement used by the hourly view.
// Identity coordinates are omitted since a deployment tracks one location.
type SeriesPoint struct {
	Time               time.Time `json:"time"`
	Temperature2m      float64   `json:"temperature_2m"`
	RelativeHumidity2m float64   `json:"relative_humidity_2m"`
	WindSpeed10m       float64   `json:"wind_speed_10m"`
}

// HourlyWindow is the response envelope of the hourly view.
type HourlyWindow struct {
	From   time.Time     `json:"from"`
	To     time.Time     `json:"to"`
	Count  int           `json:"count"`
	Series []SeriesPoint `json:"series"`
}

// NormalizeHours turns a raw query value into a window size.
// Anything that does not parse as an integer falls back to DefaultHours and
// values above MaxHours are clamped. Integer literals too large for an int
// still count as integers and clamp the same way.
func NormalizeHours(raw string) int {
	// On ErrRange, Atoi saturates to the int bound carrying the literal's sign.
	hours, err := strconv.Atoi(raw)
	if err != nil && !errors.Is(err, strconv.ErrRange) {
		return DefaultHours
	}
	return ClampHours(hours)
}

// ClampHours caps hours at MaxHours. Negative windows are kept, floored only
// where their span would overflow a time.Duration.
func ClampHours(hours int) int {
	if hours > MaxHours {
		return MaxHours
	}
	if hours < minHours {
		return minHours
	}
	return hours
}
