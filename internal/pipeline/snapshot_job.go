// Package pipeline runs the ledger's scheduled background work.
package pipeline

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"time"

	"github.com/robfig/cron/v3"

	"github.com/alanyoungcy/optionsledger/internal/domain"
)

const snapshotLockKey = "snapshot"

// Snapshotter is the part of service.Snapshotter the job drives.
type Snapshotter interface {
	Snapshot(ctx context.Context) (domain.BlobInfo, error)
	Prune(ctx context.Context, keep int) (int, error)
}

// SnapshotJob writes a CSV snapshot of the ledger and prunes old ones.
type SnapshotJob struct {
	snapshotter Snapshotter
	lock        domain.LockManager
	retain      int
	logger      *slog.Logger
}

// NewSnapshotJob creates a SnapshotJob keeping the newest retain snapshots
// (retain <= 0 keeps all). lock may be nil when a single replica runs.
func NewSnapshotJob(s Snapshotter, lock domain.LockManager, retain int, logger *slog.Logger) *SnapshotJob {
	return &SnapshotJob{
		snapshotter: s,
		lock:        lock,
		retain:      retain,
		logger:      logger.With(slog.String("component", "snapshot_job")),
	}
}

// Run takes one snapshot. When another replica holds the lock the run is
// skipped without error.
func (j *SnapshotJob) Run(ctx context.Context) error {
	if j.lock != nil {
		unlock, err := j.lock.Acquire(ctx, snapshotLockKey, 10*time.Minute)
		if errors.Is(err, domain.ErrLockHeld) {
			j.logger.InfoContext(ctx, "snapshot skipped, another replica holds the lock")
			return nil
		}
		if err != nil {
			return fmt.Errorf("snapshot job: lock: %w", err)
		}
		defer unlock()
	}

	info, err := j.snapshotter.Snapshot(ctx)
	if err != nil {
		return fmt.Errorf("snapshot job: %w", err)
	}
	removed, err := j.snapshotter.Prune(ctx, j.retain)
	if err != nil {
		return fmt.Errorf("snapshot job: prune: %w", err)
	}
	j.logger.InfoContext(ctx, "snapshot run complete",
		slog.String("path", info.Path),
		slog.Int("pruned", removed),
	)
	return nil
}

// RunCron runs the job on a standard five-field cron schedule (descriptors
// such as "@daily" are accepted) until ctx is cancelled.
func (j *SnapshotJob) RunCron(ctx context.Context, spec string) error {
	sched, err := cron.ParseStandard(spec)
	if err != nil {
		return fmt.Errorf("parsing cron expression %q: %w", spec, err)
	}

	c := cron.New()
	c.Schedule(sched, cron.FuncJob(func() {
		if err := j.Run(ctx); err != nil {
			j.logger.ErrorContext(ctx, "snapshot run failed", slog.String("error", err.Error()))
		}
	}))
	c.Start()
	j.logger.Info("snapshot cron started",
		slog.String("cron", spec),
		slog.Time("next_run", sched.Next(time.Now())),
	)

	<-ctx.Done()
	// Wait for a run in progress before returning.
	<-c.Stop().Done()
	j.logger.Info("snapshot cron stopped")
	return ctx.Err()
}
