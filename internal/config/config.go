package config

import (
	"errors"
	"fmt"
	"io/fs"
	"os"
	"strconv"
	"time"

	"github.com/go-playground/validator/v10"
	"github.com/joho/godotenv"
	"github.com/robfig/cron/v3"

	"github.com/i474232898/weather-data-aggregation/internal/store"
	"github.com/i474232898/weather-data-aggregation/internal/weather"
)

var validate = validator.New()

type AppConfig struct {
	Store store.Options

	// Location is the single place the collector samples.
	Location weather.Location

	// IntervalCron is a standard five-field cron expression.
	IntervalCron string `validate:"required"`
	// FetchTimeout bounds each outbound provider call.
	FetchTimeout time.Duration `validate:"gt=0"`
	// StoreTimeout is the tick budget left for the upsert after the fetch.
	StoreTimeout time.Duration `validate:"gt=0"`
	OpenMeteoURL string        `validate:"required,url"`

	Port     string `validate:"required,numeric"`
	LogLevel string `validate:"oneof=trace debug info warn error"`
}

// Load reads configuration from .env (when present) and the environment with sensible defaults.
func Load() (*AppConfig, error) {
	if err := godotenv.Load(); err != nil && !errors.Is(err, fs.ErrNotExist) {
		return nil, fmt.Errorf("failed to load .env: %w", err)
	}
	cfg := &AppConfig{}

	cfg.Store = store.Options{
		Driver: getenvDefault("STORE_DRIVER", store.DriverSQLite),
		URI:    getenvDefault("STORE_URI", "file:data/weather.db?_busy_timeout=5000&_journal_mode=WAL"),
		Influx: store.InfluxOptions{
			URL:    getenvDefault("INFLUX_URL", "http://localhost:8086"),
			Token:  os.Getenv("INFLUX_TOKEN"),
			Org:    getenvDefault("INFLUX_ORG", "weather"),
			Bucket: getenvDefault("INFLUX_BUCKET", "weatherdb"),
		},
	}

	lat, err := getenvFloat("LAT", 13.7563)
	if err != nil {
		return nil, err
	}
	lon, err := getenvFloat("LON", 100.5018)
	if err != nil {
		return nil, err
	}
	cfg.Location = weather.Location{Lat: lat, Lon: lon}

	// Scheduler: default every 15 minutes.
	cfg.IntervalCron = getenvDefault("INTERVAL_CRON", "*/15 * * * *")
	if _, err := cron.ParseStandard(cfg.IntervalCron); err != nil {
		return nil, fmt.Errorf("invalid INTERVAL_CRON: %w", err)
	}

	timeout, err := time.ParseDuration(getenvDefault("FETCH_TIMEOUT", "10s"))
	if err != nil {
		return nil, fmt.Errorf("invalid FETCH_TIMEOUT: %w", err)
	}
	cfg.FetchTimeout = timeout

	storeTimeout, err := time.ParseDuration(getenvDefault("STORE_TIMEOUT", "5s"))
	if err != nil {
		return nil, fmt.Errorf("invalid STORE_TIMEOUT: %w", err)
	}
	cfg.StoreTimeout = storeTimeout
	cfg.OpenMeteoURL = getenvDefault("OPEN_METEO_URL", "https://api.open-meteo.com")

	cfg.Port = getenvDefault("PORT", "3000")
	cfg.LogLevel = getenvDefault("LOG_LEVEL", "info")

	if err := validate.Struct(cfg); err != nil {
		return nil, fmt.Errorf("invalid configuration: %w", err)
	}

	return cfg, nil
}

func getenvDefault(key, def string) string {
	if v := os.Getenv(key); v != "" {
		return v
	}
	return def
}

func getenvFloat(key string, def float64) (float64, error) {
	v := os.Getenv(key)
	if v == "" {
		return def, nil
	}
	f, err := strconv.ParseFloat(v, 64)
	if err != nil {
		return 0, fmt.Errorf("invalid %s: %w", key, err)
	}
	return f, nil
}

// TickTimeout bounds a whole collector tick: the fetch and then the upsert.
func (c *AppConfig) TickTimeout() time.Duration {
	return c.FetchTimeout + c.StoreTimeout
}
