package scheduler

import (
	"context"
	"time"

	"github.com/go-co-op/gocron"
	"github.com/rs/zerolog"

	"github.com/i474232898/weather-data-aggregation/internal/weather"
)

// Collector is the unit of work run on every tick.
type Collector interface {
	CollectOnce(ctx context.Context) error
	Location() weather.Location
}

// Scheduler runs the collector on a cron schedule, once immediately at start.
// Ticks may overlap; the collector's upserts are idempotent so no guard is taken.
type Scheduler struct {
	scheduler *gocron.Scheduler
	collector Collector
	cronExpr  string
	timeout   time.Duration
	log       zerolog.Logger
}

// New creates a new Scheduler. timeout bounds each tick, fetch and upsert together.
func New(cronExpr string, timeout time.Duration, collector Collector, log zerolog.Logger) *Scheduler {
	s := gocron.NewScheduler(time.UTC)
	return &Scheduler{
		scheduler: s,
		collector: collector,
		cronExpr:  cronExpr,
		timeout:   timeout,
		log:       log,
	}
}

// Start schedules the tick and starts the underlying scheduler.
func (s *Scheduler) Start() error {
	_, err := s.scheduler.Cron(s.cronExpr).StartImmediately().Do(s.tick)
	if err != nil {
		return err
	}

	s.scheduler.StartAsync()
	s.log.Info().Str("schedule", s.cronExpr).Msg("collector running")
	return nil
}

// Stop stops the scheduler and cancels any future ticks.
func (s *Scheduler) Stop() {
	if s.scheduler != nil {
		s.scheduler.Stop()
	}
}

// tick never fails from the scheduler's point of view: errors are logged and
// the next tick proceeds normally.
func (s *Scheduler) tick() {
	attempted := time.Now().UTC()
	ctx, cancel := context.WithTimeout(context.Background(), s.timeout)
	defer cancel()

	if err := s.collector.CollectOnce(ctx); err != nil {
		loc := s.collector.Location()
		s.log.Error().
			Err(err).
			Float64("lat", loc.Lat).
			Float64("lon", loc.Lon).
			Time("attempted_at", attempted).
			Msg("fetch/store failed")
	}
}
