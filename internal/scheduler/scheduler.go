// Package scheduler runs periodic notification sweeps.
package scheduler

import (
	"context"
	"fmt"
	"log/slog"
	"time"

	"github.com/robfig/cron/v3"

	"github.com/evcraddock/matchmaker/internal/notify"
)

// DefaultSweep runs the sweep once a day at 03:00.
const DefaultSweep = "0 3 * * *"

// Sweeper re-runs notifications across all available listings.
type Sweeper interface {
	SweepListings(ctx context.Context) (notify.Summary, error)
}

// Runner wraps a cron scheduler. Overlapping runs of the same job are
// skipped.
type Runner struct {
	cron *cron.Cron
}

// New creates a runner.
func New() *Runner {
	logger := cron.PrintfLogger(slog.NewLogLogger(slog.Default().Handler(), slog.LevelWarn))
	return &Runner{
		cron: cron.New(
			cron.WithLogger(logger),
			cron.WithChain(cron.Recover(logger), cron.SkipIfStillRunning(logger)),
		),
	}
}

// ScheduleSweep registers a sweep on a standard five-field cron spec or a
// descriptor such as "@hourly".
func (r *Runner) ScheduleSweep(ctx context.Context, spec string, s Sweeper) error {
	if _, err := r.cron.AddFunc(spec, sweepJob(ctx, s)); err != nil {
		return fmt.Errorf("scheduling sweep %q: %w", spec, err)
	}
	slog.Info("sweep scheduled", "spec", spec)
	return nil
}

func sweepJob(ctx context.Context, s Sweeper) func() {
	return func() {
		start := time.Now()
		summary, err := s.SweepListings(ctx)
		if err != nil {
			slog.ErrorContext(ctx, "sweep failed", "error", err)
		}
		slog.InfoContext(ctx, "sweep finished",
			"qualified", summary.Qualified,
			"sent", summary.Sent,
			"failed", summary.Failed,
			"duration", time.Since(start).String(),
		)
	}
}

// Run starts the scheduler and blocks until ctx is done, then waits for
// running jobs to finish.
func (r *Runner) Run(ctx context.Context) error {
	r.cron.Start()
	slog.Info("scheduler started", "jobs", len(r.cron.Entries()))

	<-ctx.Done()

	<-r.cron.Stop().Done()
	slog.Info("scheduler stopped")
	return nil
}
