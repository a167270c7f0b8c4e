// Package fetcher provides bounded HTTP retrieval of user-submitted image URLs.
package fetcher

import (
	"context"
	"io"
)

// Result is a successful fetch. Callers own the body and must close it.
type Result struct {
	Body          io.ReadCloser
	ContentType   string
	ContentLength int64 // -1 when the origin did not declare a length
}

// Fetcher retrieves a URL's binary content.
type Fetcher interface {
	Fetch(ctx context.Context, rawURL string) (*Result, error)
}
