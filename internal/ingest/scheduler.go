package ingest

import (
	"context"
	"fmt"
	"time"

	"github.com/go-co-op/gocron"
)

// ScheduleConfig controls the jobs run in serve mode.
type ScheduleConfig struct {
	ForecastInterval time.Duration `yaml:"forecast_interval"`
	LongForecast     bool          `yaml:"long_forecast"`
	HistoryAt        string        `yaml:"history_at"`
	Concurrency      int           `yaml:"concurrency" validate:"gte=0"`
}

// Scheduler periodically runs forecast ingestion and history catch-up.
type Scheduler struct {
	scheduler *gocron.Scheduler
	runner    *Runner
	cfg       ScheduleConfig
}

// NewScheduler creates a new Scheduler.
func NewScheduler(runner *Runner, cfg ScheduleConfig) *Scheduler {
	s := gocron.NewScheduler(time.UTC)
	// A slow run must not overlap with the next tick.
	s.SingletonModeAll()
	return &Scheduler{scheduler: s, runner: runner, cfg: cfg}
}

// Start schedules the jobs and starts the underlying scheduler. Jobs run
// with ctx and stop receiving work once it is cancelled.
func (s *Scheduler) Start(ctx context.Context) error {
	if s.cfg.ForecastInterval > 0 {
		_, err := s.scheduler.Every(s.cfg.ForecastInterval).Do(func() {
			s.runner.log.Info("Running scheduled forecast", "long", s.cfg.LongForecast)
			if err := s.runner.RunForecast(ctx, s.cfg.LongForecast); err != nil {
				s.runner.log.Error("Scheduled forecast failed", "error", err)
			}
		})
		if err != nil {
			return fmt.Errorf("failed to schedule forecast: %w", err)
		}
	}

	if s.cfg.HistoryAt != "" {
		_, err := s.scheduler.Every(1).Day().At(s.cfg.HistoryAt).Do(func() {
			s.runner.log.Info("Running scheduled history catch-up")
			if err := s.runner.RunHistoryCatchUp(ctx); err != nil {
				s.runner.log.Error("Scheduled history catch-up failed", "error", err)
			}
		})
		if err != nil {
			return fmt.Errorf("failed to schedule history at %q: %w", s.cfg.HistoryAt, err)
		}
	}

	if len(s.scheduler.Jobs()) == 0 {
		s.runner.log.Warn("No jobs scheduled")
		return nil
	}

	s.scheduler.StartAsync()
	return nil
}

// Stop stops the scheduler and waits for running jobs.
func (s *Scheduler) Stop() {
	s.scheduler.Stop()
}
