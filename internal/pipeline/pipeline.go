// Package pipeline converts a batch of user-submitted image URLs into
// validated wardrobe feature records: validate → acquire → assemble → invoke
// → parse → sanitize.
package pipeline

import (
	"context"
	"time"

	"github.com/rotisserie/eris"
	"go.uber.org/zap"

	"github.com/stylekeep/wardrobe-pipeline/internal/model"
	"github.com/stylekeep/wardrobe-pipeline/internal/vision"
	"github.com/stylekeep/wardrobe-pipeline/pkg/claude"
)

// Options tunes a Pipeline.
type Options struct {
	// MaxBatchRefs caps the number of references per invocation. Default 5.
	MaxBatchRefs int
	// ConfidenceThreshold is the exclusive acceptance cutoff. Default 0.6.
	ConfidenceThreshold float64
}

// Result is the outcome of one pipeline invocation.
type Result struct {
	// Features are the accepted, sanitized records. May be empty — a model
	// that found nothing trustworthy is a valid (if disappointing) outcome.
	Features []model.FeatureSet `json:"features"`
	// Skipped lists the references dropped during acquisition.
	Skipped []SkippedImage `json:"skipped,omitempty"`
	// Duration is wall time for the whole invocation in milliseconds.
	Duration int64 `json:"duration_ms"`
}

// Pipeline runs the extraction stages against injected collaborators. It
// holds no mutable state across invocations and is safe for concurrent use.
type Pipeline struct {
	acquirer *Acquirer
	invoker  vision.Invoker
	opts     Options
}

// New creates a Pipeline.
func New(acquirer *Acquirer, invoker vision.Invoker, opts Options) *Pipeline {
	if opts.MaxBatchRefs <= 0 {
		opts.MaxBatchRefs = 5
	}
	if opts.ConfidenceThreshold <= 0 {
		opts.ConfidenceThreshold = 0.6
	}
	return &Pipeline{acquirer: acquirer, invoker: invoker, opts: opts}
}

// Run executes one extraction over req. Per-item failures (bad URI, oversized
// image, rejected item) are absorbed into the Result; the returned error is
// always batch-fatal and carries a Kind for status mapping.
func (p *Pipeline) Run(ctx context.Context, req model.ExtractionRequest) (*Result, error) {
	start := time.Now()
	log := zap.L().With(
		zap.String("component", "pipeline"),
		zap.String("user_id", req.UserID),
	)

	refs, err := ValidateRefs(req.ImageURLs, p.opts.MaxBatchRefs)
	if err != nil {
		return nil, err
	}

	images, skipped := p.acquirer.AcquireAll(ctx, refs)
	if len(images) == 0 {
		return nil, NewError(KindNoUsableImages,
			eris.Errorf("pipeline: no usable images among %d references", len(refs)))
	}

	content := AssembleContent(images)

	rawText, err := p.invoker.Invoke(ctx, content)
	if err != nil {
		return nil, NewError(classifyModelError(err), err)
	}

	items, err := ParseItems(rawText)
	if err != nil {
		return nil, err
	}

	// The sanitizer resolves image_index against the images the model actually
	// saw, in the order they were assembled.
	sent := make([]string, len(images))
	for i, img := range images {
		sent[i] = img.SourceURL
	}
	features := Sanitizer{Threshold: p.opts.ConfidenceThreshold}.Sanitize(items, sent)

	log.Info("pipeline: extraction complete",
		zap.Int("refs", len(refs)),
		zap.Int("acquired", len(images)),
		zap.Int("skipped", len(skipped)),
		zap.Int("raw_items", len(items)),
		zap.Int("accepted", len(features)),
	)

	return &Result{
		Features: features,
		Skipped:  skipped,
		Duration: time.Since(start).Milliseconds(),
	}, nil
}

// classifyModelError maps a model-invocation failure onto the error taxonomy.
func classifyModelError(err error) Kind {
	switch {
	case claude.IsCapacityExhausted(err):
		return KindCapacity
	case claude.IsAuthFailure(err):
		return KindAuth
	default:
		return KindModelFailure
	}
}
