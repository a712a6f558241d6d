package scheduler

import (
	"context"
	"errors"
	"log/slog"
	"time"

	"github.com/go-co-op/gocron"
	"github.com/weather-notify/internal/application/notification"
)

// DefaultCron fires at the top of every hour.
const DefaultCron = "0 * * * *"

type sweeper interface {
	Sweep(ctx context.Context) (*notification.Report, error)
}

// Scheduler fires the notification sweep on a cron expression.
type Scheduler struct {
	scheduler *gocron.Scheduler
	sweeper   sweeper
	cron      string
	logger    *slog.Logger

	ctx    context.Context
	cancel context.CancelFunc
}

// New creates a Scheduler. An empty cron expression falls back to DefaultCron.
func New(cron string, sw sweeper, logger *slog.Logger) *Scheduler {
	if cron == "" {
		cron = DefaultCron
	}
	if logger == nil {
		logger = slog.Default()
	}
	s := gocron.NewScheduler(time.UTC)
	// A firing that arrives while the previous sweep is still running is dropped.
	s.SingletonModeAll()
	ctx, cancel := context.WithCancel(context.Background())
	return &Scheduler{
		scheduler: s,
		sweeper:   sw,
		cron:      cron,
		logger:    logger,
		ctx:       ctx,
		cancel:    cancel,
	}
}

// Start registers the sweep job and starts the underlying scheduler.
func (s *Scheduler) Start() error {
	job, err := s.scheduler.Cron(s.cron).Do(s.run)
	if err != nil {
		return err
	}
	s.scheduler.StartAsync()
	s.logger.Info("scheduler started", "cron", s.cron, "next_run", job.NextRun())
	return nil
}

// RunNow triggers the sweep immediately, outside the cron cadence.
func (s *Scheduler) RunNow() {
	s.scheduler.RunAll()
}

// Stop cancels an in-flight sweep and waits for it to return.
func (s *Scheduler) Stop() {
	s.cancel()
	s.scheduler.Stop()
	s.logger.Info("scheduler stopped")
}

func (s *Scheduler) run() {
	_, err := s.sweeper.Sweep(s.ctx)
	switch {
	case err == nil:
	case errors.Is(err, notification.ErrSweepInProgress):
		s.logger.Warn("sweep skipped, previous run still in progress")
	case errors.Is(err, context.Canceled):
		s.logger.Info("sweep interrupted by shutdown")
	default:
		s.logger.Error("sweep failed", "err", err)
	}
}
