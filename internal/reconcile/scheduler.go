package reconcile

import (
	"context"
	"time"

	"go.uber.org/zap"
)

// Scheduler runs reconciliation sweeps on a fixed interval in the background.
type Scheduler struct {
	reconciler *Reconciler
	interval   time.Duration
}

// NewScheduler creates a background sweep scheduler.
func NewScheduler(reconciler *Reconciler, interval time.Duration) *Scheduler {
	if interval <= 0 {
		interval = time.Minute
	}
	return &Scheduler{reconciler: reconciler, interval: interval}
}

// Run starts the periodic sweep loop. It blocks until ctx is cancelled.
func (s *Scheduler) Run(ctx context.Context) {
	log := zap.L().With(zap.String("component", "reconcile.scheduler"))
	log.Info("starting reconciliation scheduler",
		zap.Duration("interval", s.interval),
	)

	ticker := time.NewTicker(s.interval)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			log.Info("reconciliation scheduler stopped")
			return
		case <-ticker.C:
			// Sweep errors are already logged; the loop always continues.
			_ = s.reconciler.Sweep(ctx)
		}
	}
}
