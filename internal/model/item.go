package model

import "time"

// AcquiredImage is a downloaded image ready for model submission. It retains
// the source URL so accepted features can be re-associated after analysis.
type AcquiredImage struct {
	SourceURL string
	MediaType string
	Data      []byte
}

// Size returns the payload size in bytes.
func (a AcquiredImage) Size() int {
	return len(a.Data)
}

// FeatureSet is the sanitized descriptive record extracted for one clothing
// image. All descriptive fields are plain strings; the sanitizer coerces
// null/missing model output to "" so nothing downstream sees a null.
type FeatureSet struct {
	Class          string `json:"class"`
	Type           string `json:"type"`
	Subtype        string `json:"subtype"`
	Colors         string `json:"colors"`
	Pattern        string `json:"pattern"`
	Fabric         string `json:"fabric"`
	Texture        string `json:"texture"`
	Neck           string `json:"neck"`
	Sleeves        string `json:"sleeves"`
	Fit            string `json:"fit"`
	Length         string `json:"length"`
	Style          string `json:"style"`
	Occasion       string `json:"occasion"`
	Season         string `json:"season"`
	EthnicCategory string `json:"ethnic_category"`
	Description    string `json:"description"`

	Confidence float64 `json:"confidence"`

	// SourceImage is the original submitted URL resolved from the model's
	// image_index. Set by the sanitizer, never by the model.
	SourceImage string `json:"source_image"`
}

// WardrobeItem is the persisted item record. An item with a nil FeatureSet is
// pending: uploaded but not yet analyzed.
type WardrobeItem struct {
	ID        string      `json:"id"`
	UserID    string      `json:"user_id"`
	ImageURL  string      `json:"image_url"`
	Features  *FeatureSet `json:"features,omitempty"`
	CreatedAt time.Time   `json:"created_at"`
	UpdatedAt time.Time   `json:"updated_at"`
}

// Pending reports whether the item still lacks extracted features.
func (w WardrobeItem) Pending() bool {
	return w.Features == nil
}

// StaleUser is a user whose last upload is older than the quiet window,
// signaling their batch is likely complete and ready for reconciliation.
type StaleUser struct {
	UserID       string    `json:"user_id"`
	LastUploadAt time.Time `json:"last_upload_at"`
}
