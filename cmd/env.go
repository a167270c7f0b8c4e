package main

import (
	"context"

	"github.com/rotisserie/eris"
	"go.uber.org/zap"

	"github.com/stylekeep/wardrobe-pipeline/internal/fetcher"
	"github.com/stylekeep/wardrobe-pipeline/internal/pipeline"
	"github.com/stylekeep/wardrobe-pipeline/internal/reconcile"
	"github.com/stylekeep/wardrobe-pipeline/internal/store"
	"github.com/stylekeep/wardrobe-pipeline/internal/vision"
	"github.com/stylekeep/wardrobe-pipeline/pkg/claude"
)

// pipelineEnv holds the initialized store, pipeline, and reconciler shared by
// the serve/extract/reconcile commands.
type pipelineEnv struct {
	Store      store.Store
	Pipeline   *pipeline.Pipeline
	Reconciler *reconcile.Reconciler
}

// Close releases resources held by the pipeline environment.
func (pe *pipelineEnv) Close() {
	if pe.Store != nil {
		_ = pe.Store.Close()
	}
}

// initEnv opens the store, builds the extraction pipeline, and wires the
// reconciler. Callers should defer env.Close().
func initEnv(ctx context.Context) (*pipelineEnv, error) {
	if cfg.Anthropic.Key == "" {
		return nil, eris.New("WARDROBE_ANTHROPIC_KEY is required")
	}

	st, err := store.Open(ctx, cfg.Store.Driver, cfg.Store.DatabaseURL)
	if err != nil {
		return nil, eris.Wrap(err, "open store")
	}
	if err := st.Migrate(ctx); err != nil {
		_ = st.Close()
		return nil, eris.Wrap(err, "migrate store")
	}

	httpFetcher := fetcher.NewHTTPFetcher(fetcher.HTTPOptions{
		UserAgent: cfg.Image.UserAgent,
		Timeout:   cfg.Image.Timeout(),
	})
	acquirer := pipeline.NewAcquirer(httpFetcher, cfg.Image.MaxBytes, cfg.Image.DownloadRetry)

	claudeClient := claude.NewClient(cfg.Anthropic.Key)
	invoker := vision.NewFallbackInvoker(claudeClient,
		cfg.Anthropic.PrimaryModel,
		cfg.Anthropic.FallbackModel,
		cfg.Anthropic.MaxTokens,
	)

	p := pipeline.New(acquirer, invoker, pipeline.Options{
		MaxBatchRefs:        cfg.Extract.MaxBatchRefs,
		ConfidenceThreshold: cfg.Extract.ConfidenceThreshold,
	})

	// Reconciliation uses the remote batch-analysis service when configured,
	// otherwise the in-process pipeline.
	var analyzer reconcile.Analyzer
	if cfg.Analysis.BaseURL != "" {
		analyzer = reconcile.NewRemoteAnalyzer(cfg.Analysis.BaseURL, cfg.Analysis.Timeout())
		zap.L().Info("reconciler using remote analysis service",
			zap.String("base_url", cfg.Analysis.BaseURL),
		)
	} else {
		analyzer = reconcile.NewPipelineAnalyzer(p)
	}
	reconciler := reconcile.NewReconciler(st, analyzer,
		cfg.Reconcile.QuietWindow(), cfg.Extract.MaxBatchRefs)

	return &pipelineEnv{
		Store:      st,
		Pipeline:   p,
		Reconciler: reconciler,
	}, nil
}
