package usecase

import (
	"context"
	"log/slog"
	"os"
	"time"

	"tldrchinese/internal/ports"
)

// Scheduler wires the cron driver with the daily build-and-send job.
type Scheduler struct {
	driver     ports.Scheduler
	newsletter *Newsletter
	logger     *slog.Logger
}

// NewScheduler returns a helper to start/stop the recurring job.
func NewScheduler(driver ports.Scheduler, newsletter *Newsletter, logger *slog.Logger) *Scheduler {
	if logger == nil {
		logger = slog.New(slog.NewTextHandler(os.Stderr, nil))
	}
	return &Scheduler{driver: driver, newsletter: newsletter, logger: logger}
}

// Start registers the daily job with the provided scheduler.
func (s *Scheduler) Start(ctx context.Context) error {
	if s.driver == nil || s.newsletter == nil {
		return nil
	}

	job := func(trigger time.Time) {
		// Empty date means "today" in the reference timezone; the
		// assembler resolves it against the trigger moment.
		if err := s.newsletter.SendDaily(ctx, ""); err != nil {
			s.logger.Error("scheduled newsletter run failed",
				"trigger", trigger, "error", err)
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
