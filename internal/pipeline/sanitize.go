package pipeline

import (
	"go.uber.org/zap"

	"github.com/stylekeep/wardrobe-pipeline/internal/model"
)

// Sanitizer enforces the per-item output contract: field completeness, the
// confidence cutoff, and image-index traceability. Items are judged
// independently — one bad item never discards the batch.
type Sanitizer struct {
	// Threshold is the exclusive confidence cutoff: only confidence strictly
	// greater than it is trusted. A value of exactly Threshold is rejected.
	Threshold float64
}

// Sanitize filters the decoded items and maps each accepted one to a
// FeatureSet with its originating image URL re-attached. refs is the original
// submission-order list used to resolve the model's 1-based image_index.
// An empty result is a valid outcome, not an error.
func (s Sanitizer) Sanitize(items []any, refs []string) []model.FeatureSet {
	var accepted []model.FeatureSet

	for i, it := range items {
		m, ok := it.(map[string]any)
		if !ok {
			zap.L().Debug("sanitize: dropping non-object item", zap.Int("item", i))
			continue
		}

		if _, ok := m["description"]; !ok {
			zap.L().Debug("sanitize: dropping item without description", zap.Int("item", i))
			continue
		}
		conf, ok := toFloat64(m["confidence"])
		if !ok {
			zap.L().Debug("sanitize: dropping item without confidence", zap.Int("item", i))
			continue
		}
		if conf <= s.Threshold {
			zap.L().Debug("sanitize: dropping low-confidence item",
				zap.Int("item", i),
				zap.Float64("confidence", conf),
			)
			continue
		}

		idx, ok := toInt(m["image_index"])
		if !ok || idx < 1 || idx > len(refs) {
			// The model hallucinated an index; the item cannot be traced back
			// to a submitted image.
			zap.L().Warn("sanitize: dropping item with out-of-range image_index",
				zap.Int("item", i),
				zap.Any("image_index", m["image_index"]),
			)
			continue
		}

		accepted = append(accepted, model.FeatureSet{
			Class:          stringField(m, "class"),
			Type:           stringField(m, "type"),
			Subtype:        stringField(m, "subtype"),
			Colors:         stringField(m, "colors"),
			Pattern:        stringField(m, "pattern"),
			Fabric:         stringField(m, "fabric"),
			Texture:        stringField(m, "texture"),
			Neck:           stringField(m, "neck"),
			Sleeves:        stringField(m, "sleeves"),
			Fit:            stringField(m, "fit"),
			Length:         stringField(m, "length"),
			Style:          stringField(m, "style"),
			Occasion:       stringField(m, "occasion"),
			Season:         stringField(m, "season"),
			EthnicCategory: stringField(m, "ethnic_category"),
			Description:    stringField(m, "description"),
			Confidence:     conf,
			SourceImage:    refs[idx-1],
		})
	}

	return accepted
}

// stringField reads a descriptive field, coercing null or missing values to
// "" — the output contract forbids null leakage downstream.
func stringField(m map[string]any, key string) string {
	v, ok := m[key]
	if !ok || v == nil {
		return ""
	}
	s, ok := v.(string)
	if !ok {
		return ""
	}
	return s
}

// toFloat64 attempts to convert an any value to float64.
func toFloat64(v any) (float64, bool) {
	switch n := v.(type) {
	case float64:
		return n, true
	case int:
		return float64(n), true
	case int64:
		return float64(n), true
	default:
		return 0, false
	}
}

// toInt attempts to convert an any value to int. JSON numbers decode as
// float64; only integral values are accepted.
func toInt(v any) (int, bool) {
	switch n := v.(type) {
	case float64:
		if n != float64(int(n)) {
			return 0, false
		}
		return int(n), true
	case int:
		return n, true
	case int64:
		return int(n), true
	default:
		return 0, false
	}
}
