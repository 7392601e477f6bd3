// Package janitor periodically reclaims the remote residue of interrupted
// uploads. The upload sequence has no rollback, so a crash between its steps
// leaves a staging directory behind; the sweeper deletes those and purges
// the deletions from trash.
package janitor

import (
	"context"
	"fmt"

	"github.com/robfig/cron/v3"
	"go.uber.org/zap"

	"github.com/jradxl/idrived2backend/internal/config"
	"github.com/jradxl/idrived2backend/internal/storage"
)

type Sweeper struct {
	config    *config.Config
	logger    *zap.Logger
	store     storage.Adapter
	scheduler *cron.Cron
}

func NewSweeper(cfg *config.Config, logger *zap.Logger, store storage.Adapter) *Sweeper {
	return &Sweeper{
		config:    cfg,
		logger:    logger,
		store:     store,
		scheduler: cron.New(),
	}
}

type sweepJob struct {
	sweeper *Sweeper
}

func (j sweepJob) Run() {
	if err := j.sweeper.Sweep(context.Background()); err != nil {
		j.sweeper.logger.Error("staging sweep failed", zap.Error(err))
	}
}

// Start schedules the sweep according to configuration.
func (s *Sweeper) Start() error {
	if _, err := s.scheduler.AddJob(s.config.Janitor.Schedule, sweepJob{sweeper: s}); err != nil {
		return fmt.Errorf("failed to schedule staging sweep: %w", err)
	}
	s.scheduler.Start()

	s.logger.Info("staging sweep scheduled",
		zap.String("schedule", s.config.Janitor.Schedule),
	)
	return nil
}

// Sweep removes every staging entry currently visible under the remote
// prefix in a single batch delete.
func (s *Sweeper) Sweep(ctx context.Context) error {
	entries, err := s.store.List(ctx)
	if err != nil {
		return fmt.Errorf("failed to list remote prefix: %w", err)
	}

	var stale []string
	for _, e := range entries {
		if storage.IsStagingName(e.Name) {
			stale = append(stale, e.Name)
		}
	}
	if len(stale) == 0 {
		return nil
	}

	if err := s.store.DeleteMany(ctx, stale); err != nil {
		return fmt.Errorf("failed to delete staging entries: %w", err)
	}

	// Deletion only moves entries to the service trash; purge each so the
	// residue stops counting against quota.
	for _, name := range stale {
		if err := s.store.PurgeTrash(ctx, name); err != nil {
			s.logger.Warn("failed to purge staging entry from trash",
				zap.String("name", name),
				zap.Error(err),
			)
		}
	}

	s.logger.Info("removed stale staging entries",
		zap.Int("count", len(stale)),
	)
	return nil
}

// Stop halts the scheduler; a sweep already running finishes first.
func (s *Sweeper) Stop(ctx context.Context) error {
	stopped := s.scheduler.Stop()
	select {
	case <-stopped.Done():
	case <-ctx.Done():
		return ctx.Err()
	}
	return nil
}
