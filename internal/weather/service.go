package weather

import (
	"context"
	"fmt"
	"time"

	"github.com/rs/zerolog"
)

// Service ties the provider and the store together: it collects readings on
// the write path and serves the latest and hourly views on the read path.
type Service struct {
	store    Store
	provider Provider
	location Location
	now      func() time.Time
	log      zerolog.Logger

	fetchTimeout time.Duration
}

// NewService creates a new Service for a single location.
func NewService(store Store, provider Provider, loc Location, log zerolog.Logger) *Service {
	return &Service{
		store:    store,
		provider: provider,
		location: loc,
		now:      time.Now,
		log:      log,
	}
}

// SetFetchTimeout bounds the provider call of each CollectOnce, leaving the rest
// of the caller's deadline to the store. Zero means only the caller's deadline applies.
func (s *Service) SetFetchTimeout(d time.Duration) {
	s.fetchTimeout = d
}

// CollectOnce fetches the current conditions and upserts them as one Measurement.
// The record is keyed by the timestamp the provider reports, not the fetch time,
// so repeated or overlapping calls for the same upstream reading store one record.
func (s *Service) CollectOnce(ctx context.Context) error {
	if err := s.location.Validate(); err != nil {
		return fmt.Errorf("invalid location %s: %w", s.location, err)
	}
	if s.provider == nil {
		return fmt.Errorf("no weather provider configured")
	}

	r, err := s.fetch(ctx)
	if err != nil {
		return fmt.Errorf("fetch %s from %s: %w", s.location, s.provider.Name(), err)
	}

	m := Measurement{
		Source:             r.ProviderName,
		Lat:                s.location.Lat,
		Lon:                s.location.Lon,
		Timestamp:          r.Timestamp.UTC(),
		Temperature2m:      r.TemperatureC,
		RelativeHumidity2m: r.HumidityPct,
		WindSpeed10m:       r.WindSpeedMS,
	}
	if m.Source == "" {
		m.Source = s.provider.Name()
	}

	if err := s.store.Upsert(ctx, m); err != nil {
		return fmt.Errorf("store reading for %s at %s: %w", s.location, m.Timestamp.Format(time.RFC3339), err)
	}

	s.log.Info().
		Time("t", m.Timestamp).
		Float64("temp", m.Temperature2m).
		Msg("stored current weather")
	return nil
}

func (s *Service) fetch(ctx context.Context) (ProviderReading, error) {
	if s.fetchTimeout > 0 {
		var cancel context.CancelFunc
		ctx, cancel = context.WithTimeout(ctx, s.fetchTimeout)
		defer cancel()
	}
	return s.provider.Fetch(ctx, s.location)
}

// Location returns the place this service collects for.
func (s *Service) Location() Location {
	return s.location
}

// GetLatest returns the newest measurement, or nil when nothing is stored yet.
func (s *Service) GetLatest(ctx context.Context) (*Measurement, error) {
	m, ok, err := s.store.Latest(ctx)
	if err != nil {
		return nil, err
	}
	if !ok {
		return nil, nil
	}
	return &m, nil
}

// GetHourly returns the measurements of the last hours hours, oldest first.
// hours is clamped to MaxHours. A negative hours puts the window start in the
// future, so the series is empty and the store is not queried.
func (s *Service) GetHourly(ctx context.Context, hours int) (HourlyWindow, error) {
	hours = ClampHours(hours)
	now := s.now().UTC()
	since := now.Add(-time.Duration(hours) * time.Hour)

	var items []Measurement
	if hours >= 0 {
		var err error
		items, err = s.store.WindowSince(ctx, since)
		if err != nil {
			return HourlyWindow{}, err
		}
	}

	series := make([]SeriesPoint, 0, len(items))
	for _, m := range items {
		series = append(series, SeriesPoint{
			Time:               m.Timestamp,
			Temperature2m:      m.Temperature2m,
			RelativeHumidity2m: m.RelativeHumidity2m,
			WindSpeed10m:       m.WindSpeed10m,
		})
	}

	return HourlyWindow{
		From:   since,
		To:     now,
		Count:  len(series),
		Series: series,
	}, nil
}
