package pipeline

import (
	"bytes"
	"context"
	"io"
	"sync"
	"testing"

	"github.com/rotisserie/eris"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/stylekeep/wardrobe-pipeline/internal/fetcher"
	"github.com/stylekeep/wardrobe-pipeline/internal/resilience"
)

// fakeFetch is a canned response for one URL.
type fakeFetch struct {
	body        []byte
	contentType string
	declaredLen int64
	err         error
}

// fakeFetcher serves canned responses and counts calls per URL.
type fakeFetcher struct {
	mu        sync.Mutex
	responses map[string]fakeFetch
	calls     map[string]int
}

func newFakeFetcher() *fakeFetcher {
	return &fakeFetcher{
		responses: make(map[string]fakeFetch),
		calls:     make(map[string]int),
	}
}

func (f *fakeFetcher) Fetch(ctx context.Context, rawURL string) (*fetcher.Result, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.calls[rawURL]++

	r, ok := f.responses[rawURL]
	if !ok {
		return nil, eris.Errorf("unexpected fetch: %s", rawURL)
	}
	if r.err != nil {
		return nil, r.err
	}
	length := r.declaredLen
	if length == 0 {
		length = int64(len(r.body))
	}
	return &fetcher.Result{
		Body:          io.NopCloser(bytes.NewReader(r.body)),
		ContentType:   r.contentType,
		ContentLength: length,
	}, nil
}

func (f *fakeFetcher) callCount(url string) int {
	f.mu.Lock()
	defer f.mu.Unlock()
	return f.calls[url]
}

var pngHeader = []byte{0x89, 0x50, 0x4e, 0x47, 0x0d, 0x0a, 0x1a, 0x0a, 0, 0, 0, 0}

func TestAcquireAll_MixedOutcomes(t *testing.T) {
	ff := newFakeFetcher()
	ff.responses["https://cdn.example.com/good.jpg"] = fakeFetch{
		body: []byte("jpegdata"), contentType: "image/jpeg",
	}
	ff.responses["https://cdn.example.com/down.jpg"] = fakeFetch{
		err: eris.New("404 not found"),
	}
	ff.responses["https://cdn.example.com/huge.jpg"] = fakeFetch{
		body: bytes.Repeat([]byte("x"), 64), contentType: "image/jpeg",
	}
	ff.responses["https://cdn.example.com/doc.pdf"] = fakeFetch{
		body: []byte("%PDF-1.4"), contentType: "application/pdf",
	}

	a := NewAcquirer(ff, 32, 1)
	refs := []string{
		"https://cdn.example.com/good.jpg",
		"https://cdn.example.com/down.jpg",
		"https://cdn.example.com/huge.jpg",
		"https://cdn.example.com/doc.pdf",
		"not a url",
	}

	images, skipped := a.AcquireAll(context.Background(), refs)

	require.Len(t, images, 1)
	assert.Equal(t, "https://cdn.example.com/good.jpg", images[0].SourceURL)
	assert.Equal(t, "image/jpeg", images[0].MediaType)
	assert.Equal(t, []byte("jpegdata"), images[0].Data)

	require.Len(t, skipped, 4)
	reasons := map[string]SkipReason{}
	for _, s := range skipped {
		reasons[s.URL] = s.Reason
	}
	assert.Equal(t, SkipFetchFailed, reasons["https://cdn.example.com/down.jpg"])
	assert.Equal(t, SkipOversized, reasons["https://cdn.example.com/huge.jpg"])
	assert.Equal(t, SkipUnsupportedType, reasons["https://cdn.example.com/doc.pdf"])
	assert.Equal(t, SkipInvalidURI, reasons["not a url"])
}

func TestAcquireAll_PreservesSubmissionOrder(t *testing.T) {
	ff := newFakeFetcher()
	refs := []string{
		"https://cdn.example.com/1.jpg",
		"https://cdn.example.com/2.jpg",
		"https://cdn.example.com/3.jpg",
	}
	for _, r := range refs {
		ff.responses[r] = fakeFetch{body: []byte(r), contentType: "image/jpeg"}
	}

	a := NewAcquirer(ff, 1024, 1)
	images, skipped := a.AcquireAll(context.Background(), refs)

	require.Empty(t, skipped)
	require.Len(t, images, 3)
	for i, r := range refs {
		assert.Equal(t, r, images[i].SourceURL)
	}
}

func TestAcquireAll_InvalidURINeverFetched(t *testing.T) {
	ff := newFakeFetcher()
	a := NewAcquirer(ff, 1024, 3)

	_, skipped := a.AcquireAll(context.Background(), []string{"/relative/path.jpg"})
	require.Len(t, skipped, 1)
	assert.Equal(t, SkipInvalidURI, skipped[0].Reason)
	assert.Zero(t, ff.callCount("/relative/path.jpg"))
}

func TestAcquire_DeclaredOversizedRejectedWithoutReading(t *testing.T) {
	ff := newFakeFetcher()
	ff.responses["https://cdn.example.com/big.jpg"] = fakeFetch{
		body:        []byte("tiny"),
		contentType: "image/jpeg",
		declaredLen: 100 * 1024 * 1024,
	}

	a := NewAcquirer(ff, 1024, 1)
	images, skipped := a.AcquireAll(context.Background(), []string{"https://cdn.example.com/big.jpg"})
	assert.Empty(t, images)
	require.Len(t, skipped, 1)
	assert.Equal(t, SkipOversized, skipped[0].Reason)
}

func TestAcquire_ActualSizeRecheckedAfterRead(t *testing.T) {
	// Origin declares a small length but streams more than the cap.
	ff := newFakeFetcher()
	ff.responses["https://cdn.example.com/liar.jpg"] = fakeFetch{
		body:        bytes.Repeat([]byte("x"), 2048),
		contentType: "image/jpeg",
		declaredLen: 10,
	}

	a := NewAcquirer(ff, 1024, 1)
	images, skipped := a.AcquireAll(context.Background(), []string{"https://cdn.example.com/liar.jpg"})
	assert.Empty(t, images)
	require.Len(t, skipped, 1)
	assert.Equal(t, SkipOversized, skipped[0].Reason)
}

func TestAcquire_MediaTypeNormalization(t *testing.T) {
	tests := []struct {
		name        string
		contentType string
		body        []byte
		want        string
		skipped     bool
	}{
		{"jpg alias", "image/jpg", []byte("data"), "image/jpeg", false},
		{"uppercase", "IMAGE/PNG", []byte("data"), "image/png", false},
		{"octet-stream sniffs png", "application/octet-stream", pngHeader, "image/png", false},
		{"empty type sniffs png", "", pngHeader, "image/png", false},
		{"octet-stream non-image", "application/octet-stream", []byte("plain text here"), "", true},
		{"text", "text/html", []byte("<html>"), "", true},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			ff := newFakeFetcher()
			url := "https://cdn.example.com/item"
			ff.responses[url] = fakeFetch{body: tt.body, contentType: tt.contentType}

			a := NewAcquirer(ff, 1024, 1)
			images, skipped := a.AcquireAll(context.Background(), []string{url})
			if tt.skipped {
				require.Len(t, skipped, 1)
				assert.Equal(t, SkipUnsupportedType, skipped[0].Reason)
				return
			}
			require.Len(t, images, 1)
			assert.Equal(t, tt.want, images[0].MediaType)
		})
	}
}

func TestAcquire_TransientFailureRetried(t *testing.T) {
	ff := newFakeFetcher()
	url := "https://cdn.example.com/flaky.jpg"
	ff.responses[url] = fakeFetch{err: resilience.NewTransientError(eris.New("connection reset"), 503)}

	a := NewAcquirer(ff, 1024, 2)
	_, skipped := a.AcquireAll(context.Background(), []string{url})

	require.Len(t, skipped, 1)
	assert.Equal(t, SkipFetchFailed, skipped[0].Reason)
	assert.Equal(t, 2, ff.callCount(url))
}

func TestAcquire_PermanentFailureNotRetried(t *testing.T) {
	ff := newFakeFetcher()
	url := "https://cdn.example.com/gone.jpg"
	ff.responses[url] = fakeFetch{err: eris.New("404 not found")}

	a := NewAcquirer(ff, 1024, 3)
	_, skipped := a.AcquireAll(context.Background(), []string{url})

	require.Len(t, skipped, 1)
	assert.Equal(t, 1, ff.callCount(url))
}
