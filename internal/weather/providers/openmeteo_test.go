package providers

import (
	"context"
	"errors"
	"io"
	"net/http"
	"net/http/httptest"
	"net/url"
	"sync/atomic"
	"testing"
	"time"

	"github.com/matryer/is"
	"github.com/rs/zerolog"

	"github.com/i474232898/weather-data-aggregation/internal/weather"
)

var bangkok = weather.Location{Lat: 13.7563, Lon: 100.5018}

const currentPayload = `{
	"latitude": 13.75,
	"longitude": 100.5,
	"current": {
		"time": "2024-01-01T12:00",
		"interval": 900,
		"temperature_2m": 28.5,
		"relative_humidity_2m": 70,
		"wind_speed_10m": 3.2
	}
}`

func mockOpenMeteo(t *testing.T, status int, body string) (*httptest.Server, chan *url.URL) {
	t.Helper()
	requests := make(chan *url.URL, 16)
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		requests <- r.URL
		w.Header().Set("Content-Type", "application/json")
		w.WriteHeader(status)
		io.WriteString(w, body)
	}))
	t.Cleanup(server.Close)
	return server, requests
}

func newTestProvider(url string, timeout time.Duration) *OpenMeteoProvider {
	return NewOpenMeteoProvider(&http.Client{Timeout: timeout}, url, zerolog.Nop())
}

func TestFetchCurrentConditions(t *testing.T) {
	is := is.New(t)
	server, requests := mockOpenMeteo(t, http.StatusOK, currentPayload)

	r, err := newTestProvider(server.URL, time.Second).Fetch(context.Background(), bangkok)
	is.NoErr(err)

	is.Equal(r.ProviderName, "open-meteo")
	is.True(r.Timestamp.Equal(time.Date(2024, 1, 1, 12, 0, 0, 0, time.UTC)))
	is.Equal(r.TemperatureC, 28.5)
	is.Equal(r.HumidityPct, 70.0)
	is.Equal(r.WindSpeedMS, 3.2)

	got := <-requests
	is.Equal(got.Path, "/v1/forecast")
	q := got.Query()
	is.Equal(q.Get("latitude"), "13.7563")
	is.Equal(q.Get("longitude"), "100.5018")
	is.Equal(q.Get("current"), "temperature_2m,relative_humidity_2m,wind_speed_10m")
	is.Equal(q.Get("timezone"), "auto")
	is.Equal(q.Get("wind_speed_unit"), "ms")
}

func TestFetchUsesDeclaredTimezone(t *testing.T) {
	is := is.New(t)
	server, _ := mockOpenMeteo(t, http.StatusOK, `{
		"utc_offset_seconds": 25200,
		"timezone": "Asia/Bangkok",
		"timezone_abbreviation": "ICT",
		"current": {"time": "2024-01-01T12:00", "temperature_2m": 28.5, "relative_humidity_2m": 70, "wind_speed_10m": 3.2}
	}`)

	r, err := newTestProvider(server.URL, time.Second).Fetch(context.Background(), bangkok)
	is.NoErr(err)
	is.True(r.Timestamp.Equal(time.Date(2024, 1, 1, 5, 0, 0, 0, time.UTC)))
	is.Equal(r.Timestamp.Location(), time.UTC)
}

func TestFetchNon2xxIsFetchError(t *testing.T) {
	for _, status := range []int{http.StatusBadRequest, http.StatusTooManyRequests, http.StatusBadGateway} {
		is := is.New(t)
		server, _ := mockOpenMeteo(t, status, `{"error": true, "reason": "nope"}`)

		_, err := newTestProvider(server.URL, time.Second).Fetch(context.Background(), bangkok)
		is.True(errors.Is(err, weather.ErrUpstreamFetch))
	}
}

func TestFetchMalformedPayload(t *testing.T) {
	payloads := map[string]string{
		"not json":        `<html>`,
		"missing current": `{"latitude": 13.75}`,
		"missing field":   `{"current": {"time": "2024-01-01T12:00", "temperature_2m": 28.5, "relative_humidity_2m": 70}}`,
		"bad time":        `{"current": {"time": "yesterday", "temperature_2m": 28.5, "relative_humidity_2m": 70, "wind_speed_10m": 3.2}}`,
		"wrong type":      `{"current": {"time": "2024-01-01T12:00", "temperature_2m": "hot", "relative_humidity_2m": 70, "wind_speed_10m": 3.2}}`,
	}

	for name, body := range payloads {
		t.Run(name, func(t *testing.T) {
			is := is.New(t)
			server, _ := mockOpenMeteo(t, http.StatusOK, body)

			_, err := newTestProvider(server.URL, time.Second).Fetch(context.Background(), bangkok)
			is.True(errors.Is(err, weather.ErrUpstreamPayload))
		})
	}
}

func TestFetchTimeout(t *testing.T) {
	is := is.New(t)
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		select {
		case <-r.Context().Done():
		case <-time.After(2 * time.Second):
		}
	}))
	defer server.Close()

	_, err := newTestProvider(server.URL, 50*time.Millisecond).Fetch(context.Background(), bangkok)
	is.True(errors.Is(err, weather.ErrUpstreamFetch))
}

func TestFetchDoesNotRetry(t *testing.T) {
	is := is.New(t)
	var calls atomic.Int32
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		calls.Add(1)
		w.WriteHeader(http.StatusServiceUnavailable)
	}))
	defer server.Close()

	_, err := newTestProvider(server.URL, time.Second).Fetch(context.Background(), bangkok)
	is.True(errors.Is(err, weather.ErrUpstreamFetch))
	is.Equal(calls.Load(), int32(1))
}

func TestCircuitOpensAfterConsecutiveFailures(t *testing.T) {
	is := is.New(t)
	var calls atomic.Int32
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		calls.Add(1)
		w.WriteHeader(http.StatusInternalServerError)
	}))
	defer server.Close()

	p := newTestProvider(server.URL, time.Second)
	for i := 0; i < 6; i++ {
		_, err := p.Fetch(context.Background(), bangkok)
		is.True(errors.Is(err, weather.ErrUpstreamFetch))
	}

	_, err := p.Fetch(context.Background(), bangkok)
	is.True(errors.Is(err, weather.ErrUpstreamFetch))
	is.True(errors.Is(err, errCircuitOpen))
	is.Equal(calls.Load(), int32(6))
}

func TestParseOpenMeteoTime(t *testing.T) {
	is := is.New(t)

	ts, err := parseOpenMeteoTime("2024-01-01T12:00:30", 0, "")
	is.NoErr(err)
	is.True(ts.Equal(time.Date(2024, 1, 1, 12, 0, 30, 0, time.UTC)))

	ts, err = parseOpenMeteoTime("2024-01-01T12:00:00+07:00", 0, "")
	is.NoErr(err)
	is.True(ts.Equal(time.Date(2024, 1, 1, 5, 0, 0, 0, time.UTC)))

	ts, err = parseOpenMeteoTime("2024-01-01T12:00", -18000, "EST")
	is.NoErr(err)
	is.True(ts.Equal(time.Date(2024, 1, 1, 17, 0, 0, 0, time.UTC)))

	_, err = parseOpenMeteoTime("", 0, "")
	is.True(errors.Is(err, weather.ErrUpstreamPayload))
}
