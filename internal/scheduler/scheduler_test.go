package scheduler

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"testing"
	"time"

	"github.com/matryer/is"
	"github.com/rs/zerolog"

	"github.com/i474232898/weather-data-aggregation/internal/weather"
)

var bangkok = weather.Location{Lat: 13.7563, Lon: 100.5018}

type collectorFunc func(ctx context.Context) error

func (f collectorFunc) CollectOnce(ctx context.Context) error { return f(ctx) }

func (collectorFunc) Location() weather.Location { return bangkok }

func waitFor(t *testing.T, ch <-chan int) int {
	t.Helper()
	select {
	case n := <-ch:
		return n
	case <-time.After(5 * time.Second):
		t.Fatal("tick did not run")
		return 0
	}
}

func TestFirstTickRunsImmediately(t *testing.T) {
	is := is.New(t)
	ticks := make(chan int, 4)
	n := 0

	s := New("*/15 * * * *", time.Second, collectorFunc(func(ctx context.Context) error {
		n++
		ticks <- n
		return nil
	}), zerolog.Nop())
	is.NoErr(s.Start())
	defer s.Stop()

	is.Equal(waitFor(t, ticks), 1)
}

func TestFailedTickDoesNotStopSchedule(t *testing.T) {
	is := is.New(t)
	ticks := make(chan int, 4)
	n := 0

	// upstream times out on the first tick
	s := New("*/15 * * * *", time.Second, collectorFunc(func(ctx context.Context) error {
		n++
		defer func() { ticks <- n }()
		if n == 1 {
			return errors.New("upstream fetch failed: timeout")
		}
		return nil
	}), zerolog.Nop())
	is.NoErr(s.Start())
	defer s.Stop()

	is.Equal(waitFor(t, ticks), 1)

	is.True(s.scheduler.IsRunning())
	is.Equal(len(s.scheduler.Jobs()), 1)

	s.tick()
	is.Equal(waitFor(t, ticks), 2)
}

func TestFailedTickLogsLocation(t *testing.T) {
	is := is.New(t)
	var buf bytes.Buffer

	s := New("*/15 * * * *", time.Second, collectorFunc(func(ctx context.Context) error {
		return errors.New("upstream fetch failed: HTTP 502")
	}), zerolog.New(&buf))

	before := time.Now().UTC().Truncate(time.Second)
	s.tick()

	var entry struct {
		Level       string    `json:"level"`
		Error       string    `json:"error"`
		Lat         float64   `json:"lat"`
		Lon         float64   `json:"lon"`
		AttemptedAt time.Time `json:"attempted_at"`
		Message     string    `json:"message"`
	}
	is.NoErr(json.Unmarshal(buf.Bytes(), &entry))
	is.Equal(entry.Level, "error")
	is.Equal(entry.Error, "upstream fetch failed: HTTP 502")
	is.Equal(entry.Lat, 13.7563)
	is.Equal(entry.Lon, 100.5018)
	is.True(!entry.AttemptedAt.Before(before))
	is.Equal(entry.Message, "fetch/store failed")
}

func TestTickIsBoundedByTimeout(t *testing.T) {
	is := is.New(t)
	deadlines := make(chan time.Duration, 1)

	s := New("*/15 * * * *", 250*time.Millisecond, collectorFunc(func(ctx context.Context) error {
		deadline, ok := ctx.Deadline()
		if !ok {
			deadlines <- 0
			return nil
		}
		deadlines <- time.Until(deadline)
		return nil
	}), zerolog.Nop())
	is.NoErr(s.Start())
	defer s.Stop()

	select {
	case left := <-deadlines:
		is.True(left > 0)
		is.True(left <= 250*time.Millisecond)
	case <-time.After(5 * time.Second):
		t.Fatal("tick did not run")
	}
}

func TestInvalidCronExpression(t *testing.T) {
	is := is.New(t)

	s := New("every now and then", time.Second, collectorFunc(func(context.Context) error { return nil }), zerolog.Nop())
	is.True(s.Start() != nil)
}
