package usecase

import (
	"context"
	"errors"
	"log/slog"
	"time"

	"KiddoNews/internal/domain"
	"KiddoNews/internal/ports"
)

// Scheduler wires the cron driver with the crawl run.
type Scheduler struct {
	driver       ports.Scheduler
	orchestrator *Orchestrator
	logger       *slog.Logger
}

// NewScheduler returns a helper to start/stop the recurring crawl.
func NewScheduler(driver ports.Scheduler, orchestrator *Orchestrator, logger *slog.Logger) *Scheduler {
	return &Scheduler{driver: driver, orchestrator: orchestrator, logger: logger}
}

// Start registers RunOnce with the driver. A tick that finds a manual run active is skipped.
func (s *Scheduler) Start(ctx context.Context) error {
	if s.driver == nil || s.orchestrator == nil {
		return nil
	}

	job := func(trigger time.Time) {
		_, err := s.orchestrator.RunOnce(ctx)
		if s.logger == nil {
			return
		}
		switch {
		case errors.Is(err, domain.ErrRunInProgress):
			s.logger.Info("scheduled crawl skipped, run in progress", "trigger", trigger)
		case err != nil:
			s.logger.Error("scheduled crawl failed", "trigger", trigger, "error", err)
		}
	}

	return s.driver.Start(ctx, job)
}

// Stop gracefully tears down the underlying scheduler.
func (s *Scheduler) Stop(ctx context.Context) error {
	if s.driver == nil {
		return nil
	}

	return s.driver.Stop(ctx)
}
