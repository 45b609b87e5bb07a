package services

import (
	"context"
	"time"

	"github.com/go-co-op/gocron/v2"
	"go.uber.org/zap"
)

// RecomputeScheduler periodically resumes recompute jobs left unfinished by a
// crashed or interrupted process.
type RecomputeScheduler struct {
	Maintainer *TierLadderMaintainer
	Interval   time.Duration
	StaleAfter time.Duration
	Logger     *zap.Logger

	sched gocron.Scheduler
}

func NewRecomputeScheduler(maintainer *TierLadderMaintainer, interval, staleAfter time.Duration, logger *zap.Logger) *RecomputeScheduler {
	if interval <= 0 {
		interval = time.Minute
	}
	if staleAfter <= 0 {
		staleAfter = 5 * time.Minute
	}
	return &RecomputeScheduler{
		Maintainer: maintainer,
		Interval:   interval,
		StaleAfter: staleAfter,
		Logger:     loggerOrNop(logger),
	}
}

// Start registers the sweep and starts the scheduler. A sweep still running
// when the next one is due delays it rather than overlapping.
func (r *RecomputeScheduler) Start() error {
	sched, err := gocron.NewScheduler()
	if err != nil {
		return err
	}
	_, err = sched.NewJob(
		gocron.DurationJob(r.Interval),
		gocron.NewTask(func() {
			r.Sweep(context.Background())
		}),
		gocron.WithSingletonMode(gocron.LimitModeReschedule),
	)
	if err != nil {
		_ = sched.Shutdown()
		return err
	}
	sched.Start()
	r.sched = sched
	r.Logger.Info("recompute scheduler started",
		zap.Duration("interval", r.Interval),
		zap.Duration("stale_after", r.StaleAfter),
	)
	return nil
}

// Sweep claims stale jobs and runs each to completion. It returns how many
// jobs were resumed.
func (r *RecomputeScheduler) Sweep(ctx context.Context) int {
	ids, err := r.Maintainer.ClaimStaleJobs(ctx, r.StaleAfter)
	if err != nil {
		r.Logger.Error("failed to claim stale recompute jobs", zap.Error(err))
	}
	for _, id := range ids {
		job, err := r.Maintainer.RunJob(ctx, id)
		if err != nil {
			r.Logger.Error("resumed recompute job failed", zap.String("job_id", id.String()), zap.Error(err))
			continue
		}
		r.Logger.Info("resumed recompute job",
			zap.String("job_id", id.String()),
			zap.String("status", job.Status),
		)
	}
	return len(ids)
}

func (r *RecomputeScheduler) Shutdown() {
	if r.sched == nil {
		return
	}
	if err := r.sched.Shutdown(); err != nil {
		r.Logger.Warn("recompute scheduler shutdown", zap.Error(err))
	}
}
