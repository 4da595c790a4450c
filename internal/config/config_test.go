package config

import (
	"os"
	"testing"
	"time"

	"github.com/matryer/is"
)

func TestLoadDefaults(t *testing.T) {
	is := is.New(t)
	chdir(t, t.TempDir()) // no .env

	cfg, err := Load()
	is.NoErr(err)

	is.Equal(cfg.Store.Driver, "sqlite")
	is.Equal(cfg.Location.Lat, 13.7563)
	is.Equal(cfg.Location.Lon, 100.5018)
	is.Equal(cfg.IntervalCron, "*/15 * * * *")
	is.Equal(cfg.FetchTimeout, 10*time.Second)
	is.Equal(cfg.StoreTimeout, 5*time.Second)
	is.Equal(cfg.TickTimeout(), 15*time.Second)
	is.Equal(cfg.Port, "3000")
	is.Equal(cfg.OpenMeteoURL, "https://api.open-meteo.com")
}

func TestLoadFromEnvironment(t *testing.T) {
	is := is.New(t)
	chdir(t, t.TempDir())
	t.Setenv("STORE_DRIVER", "influxdb")
	t.Setenv("INFLUX_URL", "http://influx:8086")
	t.Setenv("LAT", "18.7883")
	t.Setenv("LON", "98.9853")
	t.Setenv("INTERVAL_CRON", "0 * * * *")
	t.Setenv("FETCH_TIMEOUT", "3s")
	t.Setenv("STORE_TIMEOUT", "2s")
	t.Setenv("PORT", "8080")

	cfg, err := Load()
	is.NoErr(err)

	is.Equal(cfg.Store.Driver, "influxdb")
	is.Equal(cfg.Store.Influx.URL, "http://influx:8086")
	is.Equal(cfg.Location.Lat, 18.7883)
	is.Equal(cfg.Location.Lon, 98.9853)
	is.Equal(cfg.IntervalCron, "0 * * * *")
	is.Equal(cfg.FetchTimeout, 3*time.Second)
	is.Equal(cfg.TickTimeout(), 5*time.Second)
	is.Equal(cfg.Port, "8080")
}

func TestLoadRejectsInvalidValues(t *testing.T) {
	cases := map[string][2]string{
		"lat not a number":  {"LAT", "north"},
		"lat out of range":  {"LAT", "95"},
		"lon not finite":    {"LON", "Inf"},
		"bad cron":          {"INTERVAL_CRON", "every quarter hour"},
		"bad timeout":       {"FETCH_TIMEOUT", "soon"},
		"negative timeout":  {"FETCH_TIMEOUT", "-1s"},
		"zero store budget": {"STORE_TIMEOUT", "0s"},
		"unknown driver":    {"STORE_DRIVER", "mongo"},
		"non-numeric port":  {"PORT", "http"},
		"unknown log level": {"LOG_LEVEL", "loud"},
	}

	for name, kv := range cases {
		t.Run(name, func(t *testing.T) {
			is := is.New(t)
			chdir(t, t.TempDir())
			t.Setenv(kv[0], kv[1])

			_, err := Load()
			is.True(err != nil)
		})
	}
}

// chdir changes the working directory for the duration of the test,
// mirroring testing.T.Chdir (Go 1.24+) for older toolchains.
func chdir(t *testing.T, dir string) {
	t.Helper()
	old, err := os.Getwd()
	if err != nil {
		t.Fatal(err)
	}
	if err := os.Chdir(dir); err != nil {
		t.Fatal(err)
	}
	t.Cleanup(func() {
		if err := os.Chdir(old); err != nil {
			t.Fatal(err)
		}
	})
}
