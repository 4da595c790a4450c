package weather

import (
	"context"
	"time"

	"github.com/go-playground/validator/v10"
)

var validate = validator.New()

// ProviderReading represents a provider's normalized current-conditions reading.
type ProviderReading struct {
	ProviderName string
	Timestamp    time.Time

	TemperatureC float64
	HumidityPct  float64
	WindSpeedMS  float64
}

// Provider abstracts a weather data source (e.g. Open-Meteo).
type Provider interface {
	Name() string
	Fetch(ctx context.Context, loc Location) (ProviderReading, error)
}

// Store is the contract every measurement store must satisfy.
// Implementations wrap their failures with ErrStorageUnavailable.
type Store interface {
	// Upsert inserts m or replaces the record sharing its identity key.
	// Keys compare timestamps to the nanosecond.
	Upsert(ctx context.Context, m Measurement) error
	// Latest returns the record with the greatest timestamp; ok is false when empty.
	Latest(ctx context.Context) (m Measurement, ok bool, err error)
	// WindowSince returns every record with Timestamp >= since, oldest first.
	WindowSince(ctx context.Context, since time.Time) ([]Measurement, error)
}
