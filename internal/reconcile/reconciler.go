package reconcile

import (
	"context"
	"time"

	"go.uber.org/zap"

	"github.com/stylekeep/wardrobe-pipeline/internal/model"
	"github.com/stylekeep/wardrobe-pipeline/internal/store"
)

// Reconciler finds items that missed feature extraction and re-runs analysis
// for them. A sweep only considers users whose last upload is older than the
// quiet window, so it never races a batch that is still arriving.
type Reconciler struct {
	store       store.Store
	analyzer    Analyzer
	quietWindow time.Duration
	maxBatch    int
}

// NewReconciler creates a Reconciler.
func NewReconciler(st store.Store, analyzer Analyzer, quietWindow time.Duration, maxBatch int) *Reconciler {
	if quietWindow <= 0 {
		quietWindow = 10 * time.Minute
	}
	if maxBatch <= 0 {
		maxBatch = 5
	}
	return &Reconciler{
		store:       st,
		analyzer:    analyzer,
		quietWindow: quietWindow,
		maxBatch:    maxBatch,
	}
}

// Sweep runs one reconciliation pass. Errors for a single user are logged and
// the sweep moves on; only a failure to list stale users aborts the pass.
// Sweeps are idempotent: items fixed by an earlier pass have features and are
// never selected again.
func (r *Reconciler) Sweep(ctx context.Context) error {
	log := zap.L().With(zap.String("component", "reconcile"))

	users, err := r.store.FindStaleUsers(ctx, r.quietWindow)
	if err != nil {
		log.Error("reconcile: failed to list stale users", zap.Error(err))
		return err
	}
	if len(users) == 0 {
		log.Debug("reconcile: no stale users")
		return nil
	}

	var repaired int
	for _, u := range users {
		if ctx.Err() != nil {
			return ctx.Err()
		}
		repaired += r.sweepUser(ctx, log, u)
	}

	log.Info("reconcile: sweep complete",
		zap.Int("stale_users", len(users)),
		zap.Int("items_repaired", repaired),
	)
	return nil
}

// sweepUser repairs one user's pending items. Each user is a failure bulkhead:
// nothing returned here can abort the sweep.
func (r *Reconciler) sweepUser(ctx context.Context, log *zap.Logger, u model.StaleUser) int {
	ulog := log.With(zap.String("user_id", u.UserID))

	pending, err := r.store.FindItemsMissingFeatures(ctx, u.UserID)
	if err != nil {
		ulog.Error("reconcile: failed to list pending items", zap.Error(err))
		return 0
	}
	if len(pending) == 0 {
		ulog.Debug("reconcile: user has no pending items")
		return 0
	}

	urls := make([]string, len(pending))
	for i, it := range pending {
		urls[i] = it.ImageURL
	}

	var repaired int
	for start := 0; start < len(urls); start += r.maxBatch {
		end := start + r.maxBatch
		if end > len(urls) {
			end = len(urls)
		}
		repaired += r.repairBatch(ctx, ulog, u.UserID, urls[start:end])
	}

	ulog.Info("reconcile: user swept",
		zap.Int("pending", len(pending)),
		zap.Int("repaired", repaired),
	)
	return repaired
}

func (r *Reconciler) repairBatch(ctx context.Context, log *zap.Logger, userID string, urls []string) int {
	features, err := r.analyzer.Analyze(ctx, userID, urls)
	if err != nil {
		// Left pending; the next sweep retries.
		log.Warn("reconcile: batch analysis failed",
			zap.Int("batch_size", len(urls)),
			zap.Error(err),
		)
		return 0
	}

	var repaired int
	for _, url := range urls {
		fs, ok := features[url]
		if !ok {
			continue
		}
		if err := r.store.UpdateItemFeatures(ctx, url, fs); err != nil {
			log.Error("reconcile: failed to persist features",
				zap.String("image_url", url),
				zap.Error(err),
			)
			continue
		}
		repaired++
	}
	return repaired
}
