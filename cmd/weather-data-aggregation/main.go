package main

import (
	"context"
	"flag"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/gofiber/fiber/v2"
	"github.com/rs/zerolog"

	httpapi "github.com/i474232898/weather-data-aggregation/internal/api/http"
	"github.com/i474232898/weather-data-aggregation/internal/config"
	"github.com/i474232898/weather-data-aggregation/internal/scheduler"
	"github.com/i474232898/weather-data-aggregation/internal/store"
	"github.com/i474232898/weather-data-aggregation/internal/weather"
	"github.com/i474232898/weather-data-aggregation/internal/weather/providers"
)

const (
	roleCollector = "collector"
	roleAPI       = "api"
	roleAll       = "all"
)

func main() {
	role := flag.String("role", roleAll, "what to run: collector, api or all")
	flag.Parse()

	log := zerolog.New(os.Stdout).With().Timestamp().Str("role", *role).Logger()

	// Load configuration.
	cfg, err := config.Load()
	if err != nil {
		log.Fatal().Err(err).Msg("failed to load config")
	}
	if level, err := zerolog.ParseLevel(cfg.LogLevel); err == nil {
		log = log.Level(level)
	}

	runCollector := *role == roleCollector || *role == roleAll
	runAPI := *role == roleAPI || *role == roleAll
	if !runCollector && !runAPI {
		log.Fatal().Msgf("unknown role %q", *role)
	}
	if cfg.Store.Driver == store.DriverMemory && *role != roleAll {
		log.Fatal().Msg("the memory store is only usable with -role=all")
	}

	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	// The store must be reachable and indexed before anything is scheduled or served.
	openCtx, cancelOpen := context.WithTimeout(ctx, 30*time.Second)
	backend, err := store.Open(openCtx, cfg.Store)
	cancelOpen()
	if err != nil {
		log.Fatal().Err(err).Str("driver", cfg.Store.Driver).Msg("failed to open store")
	}
	defer backend.Close()

	// Shared HTTP client for outbound provider calls.
	httpClient := &http.Client{
		Timeout: cfg.FetchTimeout,
	}
	provider := providers.NewOpenMeteoProvider(httpClient, cfg.OpenMeteoURL, log)

	service := weather.NewService(backend, provider, cfg.Location, log)
	service.SetFetchTimeout(cfg.FetchTimeout)

	if runCollector {
		sched := scheduler.New(cfg.IntervalCron, cfg.TickTimeout(), service, log)
		if err := sched.Start(); err != nil {
			log.Fatal().Err(err).Msg("failed to start scheduler")
		}
		defer sched.Stop()
		log.Info().Str("location", cfg.Location.String()).Msg("collector started")
	}

	var app *fiber.App
	if runAPI {
		app = httpapi.NewApp(service, log)

		go func() {
			log.Info().Msgf("API listening on :%s", cfg.Port)
			if err := app.Listen(":" + cfg.Port); err != nil {
				log.Error().Err(err).Msg("fiber server stopped")
				stop()
			}
		}()
	}

	// Wait for termination signal
	<-ctx.Done()

	if app != nil {
		shutdownCtx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
		defer cancel()

		if err := app.ShutdownWithContext(shutdownCtx); err != nil {
			log.Error().Err(err).Msg("error during shutdown")
		}
	}
}
