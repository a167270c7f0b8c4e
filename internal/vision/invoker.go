// Package vision submits assembled multimodal content to the vision-language
// model, escalating from the primary to a cheaper fallback model when — and
// only when — the primary reports capacity exhaustion.
package vision

import (
	"context"

	"go.uber.org/zap"

	"github.com/stylekeep/wardrobe-pipeline/pkg/claude"
)

// Invoker submits content to a model and returns its raw response text.
type Invoker interface {
	Invoke(ctx context.Context, content []claude.ContentBlock) (string, error)
}

// FallbackInvoker tries the primary model first and escalates to the fallback
// once, only on capacity exhaustion. Quota pressure is the one error class
// cheaply recoverable by substituting a cheaper model; auth failures,
// malformed requests, and network errors surface immediately so
// misconfiguration is never masked.
type FallbackInvoker struct {
	client    claude.Client
	primary   string
	fallback  string
	maxTokens int64
}

// NewFallbackInvoker creates a FallbackInvoker over the given client and
// model pair.
func NewFallbackInvoker(client claude.Client, primary, fallback string, maxTokens int64) *FallbackInvoker {
	if maxTokens <= 0 {
		maxTokens = 4096
	}
	return &FallbackInvoker{
		client:    client,
		primary:   primary,
		fallback:  fallback,
		maxTokens: maxTokens,
	}
}

// Invoke runs the two-state escalation: PRIMARY, then SECONDARY (terminal).
// When both models fail, the fallback's error is returned, not the primary's.
func (v *FallbackInvoker) Invoke(ctx context.Context, content []claude.ContentBlock) (string, error) {
	resp, err := v.createMessage(ctx, v.primary, content)
	if err == nil {
		return resp, nil
	}
	if !claude.IsCapacityExhausted(err) {
		return "", err
	}

	zap.L().Warn("vision: primary model out of capacity, escalating to fallback",
		zap.String("primary", v.primary),
		zap.String("fallback", v.fallback),
		zap.Error(err),
	)

	return v.createMessage(ctx, v.fallback, content)
}

func (v *FallbackInvoker) createMessage(ctx context.Context, modelID string, content []claude.ContentBlock) (string, error) {
	resp, err := v.client.CreateMessage(ctx, claude.MessageRequest{
		Model:     modelID,
		MaxTokens: v.maxTokens,
		Content:   content,
	})
	if err != nil {
		return "", err
	}

	zap.L().Debug("vision: model responded",
		zap.String("model", modelID),
		zap.String("stop_reason", resp.StopReason),
		zap.Int64("input_tokens", resp.Usage.InputTokens),
		zap.Int64("output_tokens", resp.Usage.OutputTokens),
	)
	return resp.Text, nil
}
