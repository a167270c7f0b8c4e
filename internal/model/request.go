package model

// ExtractionRequest is one pipeline invocation: an ordered batch of image URLs
// owned by a single user. Order matters — the model addresses images by their
// 1-based position in this list.
type ExtractionRequest struct {
	UserID    string   `json:"user_id"`
	ImageURLs []string `json:"image_urls"`
}
