package pipeline

import (
	"encoding/json"
	"strings"

	"github.com/rotisserie/eris"
)

// ParseItems decodes the model's raw response text into untyped JSON values.
// Models are instructed to return a bare JSON array but commonly wrap it in a
// markdown code fence anyway, so fencing is stripped first. Element shape is
// deliberately not validated here — that is the sanitizer's job.
func ParseItems(raw string) ([]any, error) {
	cleaned := stripFence(raw)

	var top any
	if err := json.Unmarshal([]byte(cleaned), &top); err != nil {
		return nil, NewError(KindParseFailure, eris.Wrap(err, "parse: decode response"))
	}

	items, ok := top.([]any)
	if !ok {
		return nil, NewError(KindParseFailure, eris.Errorf("parse: expected a JSON array, got %T", top))
	}
	return items, nil
}

// stripFence removes a surrounding triple-backtick code fence (optionally
// tagged json) from text. It is tolerant and idempotent: text without a fence
// passes through unchanged.
func stripFence(text string) string {
	text = strings.TrimSpace(text)

	if strings.HasPrefix(text, "```json") {
		text = strings.TrimPrefix(text, "```json")
		if idx := strings.LastIndex(text, "```"); idx >= 0 {
			text = text[:idx]
		}
	} else if strings.HasPrefix(text, "```") {
		text = strings.TrimPrefix(text, "```")
		if idx := strings.LastIndex(text, "```"); idx >= 0 {
			text = text[:idx]
		}
	}

	return strings.TrimSpace(text)
}
