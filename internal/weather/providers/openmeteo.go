package providers

import (
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"strconv"
	"strings"
	"time"

	"github.com/go-playground/validator/v10"
	"github.com/go-resty/resty/v2"
	"github.com/rs/zerolog"
	"github.com/sony/gobreaker"

	"github.com/i474232898/weather-data-aggregation/internal/weather"
)

const (
	// OpenMeteoName is the source recorded on every Open-Meteo measurement.
	OpenMeteoName = "open-meteo"
	// OpenMeteoBaseURL is the public Open-Meteo API host.
	OpenMeteoBaseURL = "https://api.open-meteo.com"

	openMeteoCurrentFields = "temperature_2m,relative_humidity_2m,wind_speed_10m"
)

var validate = validator.New()

// local time layouts returned by Open-Meteo with timezone=auto
var openMeteoTimeLayouts = []string{
	"2006-01-02T15:04",
	"2006-01-02T15:04:05",
}

// OpenMeteoProvider implements the weather.Provider interface for Open-Meteo.
type OpenMeteoProvider struct {
	name    string
	baseURL string
	client  *resty.Client
	circuit *gobreaker.CircuitBreaker
}

// NewOpenMeteoProvider creates a provider that calls baseURL through client.
// The client's timeout bounds every fetch.
func NewOpenMeteoProvider(client *http.Client, baseURL string, log zerolog.Logger) *OpenMeteoProvider {
	if baseURL == "" {
		baseURL = OpenMeteoBaseURL
	}

	rc := resty.NewWithClient(client).
		SetLogger(restyLogger{log: log}).
		SetHeader("Accept", "application/json").
		SetRetryCount(0)

	return &OpenMeteoProvider{
		name:    OpenMeteoName,
		baseURL: strings.TrimRight(baseURL, "/"),
		client:  rc,
		circuit: newCircuitBreaker("openmeteo"),
	}
}

func (p *OpenMeteoProvider) Name() string {
	return p.name
}

type openMeteoCurrent struct {
	Time               string   `json:"time" validate:"required"`
	Temperature2m      *float64 `json:"temperature_2m" validate:"required"`
	RelativeHumidity2m *float64 `json:"relative_humidity_2m" validate:"required"`
	WindSpeed10m       *float64 `json:"wind_speed_10m" validate:"required"`
}

type openMeteoResponse struct {
	UTCOffsetSeconds     int               `json:"utc_offset_seconds"`
	TimezoneAbbreviation string            `json:"timezone_abbreviation"`
	Current              *openMeteoCurrent `json:"current" validate:"required"`
}

// Fetch requests the current conditions for loc. Wind speed is requested in m/s.
func (p *OpenMeteoProvider) Fetch(ctx context.Context, loc weather.Location) (weather.ProviderReading, error) {
	req := p.client.R().
		SetContext(ctx).
		SetQueryParams(map[string]string{
			"latitude":        strconv.FormatFloat(loc.Lat, 'f', -1, 64),
			"longitude":       strconv.FormatFloat(loc.Lon, 'f', -1, 64),
			"current":         openMeteoCurrentFields,
			"wind_speed_unit": "ms",
			"timezone":        "auto",
		})

	body, err := doGet(p.circuit, req, p.baseURL+"/v1/forecast")
	if err != nil {
		return weather.ProviderReading{}, err
	}

	return parseOpenMeteo(p.name, body)
}

func parseOpenMeteo(name string, body []byte) (weather.ProviderReading, error) {
	var payload openMeteoResponse
	if err := json.Unmarshal(body, &payload); err != nil {
		return weather.ProviderReading{}, fmt.Errorf("%w: decode: %v", weather.ErrUpstreamPayload, err)
	}
	if err := validate.Struct(payload); err != nil {
		return weather.ProviderReading{}, fmt.Errorf("%w: %v", weather.ErrUpstreamPayload, err)
	}

	ts, err := parseOpenMeteoTime(payload.Current.Time, payload.UTCOffsetSeconds, payload.TimezoneAbbreviation)
	if err != nil {
		return weather.ProviderReading{}, err
	}

	return weather.ProviderReading{
		ProviderName: name,
		Timestamp:    ts,
		TemperatureC: *payload.Current.Temperature2m,
		HumidityPct:  *payload.Current.RelativeHumidity2m,
		WindSpeedMS:  *payload.Current.WindSpeed10m,
	}, nil
}

// parseOpenMeteoTime interprets a local timestamp in the zone the provider
// declared for the response and returns it in UTC.
func parseOpenMeteoTime(value string, offsetSeconds int, abbreviation string) (time.Time, error) {
	if ts, err := time.Parse(time.RFC3339, value); err == nil {
		return ts.UTC(), nil
	}

	zone := time.UTC
	if offsetSeconds != 0 {
		zone = time.FixedZone(abbreviation, offsetSeconds)
	}
	for _, layout := range openMeteoTimeLayouts {
		if ts, err := time.ParseInLocation(layout, value, zone); err == nil {
			return ts.UTC(), nil
		}
	}
	return time.Time{}, fmt.Errorf("%w: unrecognized time %q", weather.ErrUpstreamPayload, value)
}
