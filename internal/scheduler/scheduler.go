package scheduler

import (
	"context"
	"fmt"
	"log/slog"
	"time"

	"github.com/robfig/cron/v3"

	"blog_trans_bot/internal/domain"
)

type Syncer interface {
	Sync(ctx context.Context) (*domain.DispatchStats, error)
}

type Config struct {
	Interval time.Duration
	// Schedule is a five-field cron expression or descriptor. It takes
	// precedence over Interval.
	Schedule string
	Timeout  time.Duration
}

type Scheduler struct {
	syncer Syncer
	cfg    Config
	logger *slog.Logger
}

func NewScheduler(syncer Syncer, cfg Config, logger *slog.Logger) *Scheduler {
	return &Scheduler{
		syncer: syncer,
		cfg:    cfg,
		logger: logger,
	}
}

// Start runs discovery immediately and then on every tick until ctx ends.
func (s *Scheduler) Start(ctx context.Context) error {
	if s.cfg.Schedule != "" {
		return s.startCron(ctx)
	}

	s.logger.Info("scheduler started", "interval", s.cfg.Interval)

	s.runSync(ctx)

	ticker := time.NewTicker(s.cfg.Interval)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			s.logger.Info("scheduler stopped")
			return ctx.Err()
		case <-ticker.C:
			s.runSync(ctx)
		}
	}
}

func (s *Scheduler) startCron(ctx context.Context) error {
	parser := cron.NewParser(cron.Minute | cron.Hour | cron.Dom | cron.Month | cron.Dow | cron.Descriptor)
	c := cron.New(
		cron.WithParser(parser),
		cron.WithChain(cron.SkipIfStillRunning(cron.DiscardLogger)),
	)

	if _, err := c.AddFunc(s.cfg.Schedule, func() { s.runSync(ctx) }); err != nil {
		return fmt.Errorf("parse schedule %q: %w", s.cfg.Schedule, err)
	}

	s.logger.Info("scheduler started", "schedule", s.cfg.Schedule)
	c.Start()

	<-ctx.Done()
	<-c.Stop().Done()

	s.logger.Info("scheduler stopped")
	return ctx.Err()
}

// RunOnce performs a single bounded discovery run.
func (s *Scheduler) RunOnce(ctx context.Context) (*domain.DispatchStats, error) {
	syncCtx, cancel := context.WithTimeout(ctx, s.cfg.Timeout)
	defer cancel()

	return s.syncer.Sync(syncCtx)
}

func (s *Scheduler) runSync(ctx context.Context) {
	if _, err := s.RunOnce(ctx); err != nil {
		s.logger.Error("sync failed", "error", err)
	}
}
