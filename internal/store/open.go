package store

import (
	"context"
	"fmt"

	"github.com/i474232898/weather-data-aggregation/internal/weather"
)

const (
	DriverSQLite   = "sqlite"
	DriverInfluxDB = "influxdb"
	DriverMemory   = "memory"
)

// Options selects and configures a store backend.
type Options struct {
	Driver string `validate:"oneof=sqlite influxdb memory"`
	URI    string `validate:"required_if=Driver sqlite"`
	Influx InfluxOptions
}

// InfluxOptions configures the influxdb driver.
type InfluxOptions struct {
	URL    string `validate:"omitempty,url"`
	Token  string
	Org    string
	Bucket string
}

// Backend is a weather.Store with its lifecycle operations.
type Backend interface {
	weather.Store
	EnsureIndexes(ctx context.Context) error
	Ping(ctx context.Context) error
	Close() error
}

// Open creates the configured backend, checks it is reachable and ensures its
// indexes. Any error means the store cannot be used.
func Open(ctx context.Context, opts Options) (Backend, error) {
	var (
		b   Backend
		err error
	)

	switch opts.Driver {
	case DriverSQLite, "":
		b, err = NewSQLiteStore(opts.URI)
	case DriverInfluxDB:
		b = NewInfluxStore(opts.Influx.URL, opts.Influx.Token, opts.Influx.Org, opts.Influx.Bucket)
	case DriverMemory:
		b = NewMemoryStore()
	default:
		return nil, fmt.Errorf("unknown store driver %q", opts.Driver)
	}
	if err != nil {
		return nil, err
	}

	if err := b.Ping(ctx); err != nil {
		b.Close()
		return nil, err
	}
	if err := b.EnsureIndexes(ctx); err != nil {
		b.Close()
		return nil, err
	}

	return b, nil
}
