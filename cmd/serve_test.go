package main

import (
	"bytes"
	"context"
	"encoding/json"
	"io"
	"net/http"
	"net/http/httptest"
	"path/filepath"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/stylekeep/wardrobe-pipeline/internal/fetcher"
	"github.com/stylekeep/wardrobe-pipeline/internal/pipeline"
	"github.com/stylekeep/wardrobe-pipeline/internal/store"
	"github.com/stylekeep/wardrobe-pipeline/pkg/claude"
)

// stubFetcher serves the same jpeg bytes for every URL.
type stubFetcher struct{}

func (stubFetcher) Fetch(ctx context.Context, rawURL string) (*fetcher.Result, error) {
	body := []byte("jpegdata")
	return &fetcher.Result{
		Body:          io.NopCloser(bytes.NewReader(body)),
		ContentType:   "image/jpeg",
		ContentLength: int64(len(body)),
	}, nil
}

// stubInvoker returns a fixed model response.
type stubInvoker struct {
	response string
}

func (s stubInvoker) Invoke(ctx context.Context, content []claude.ContentBlock) (string, error) {
	return s.response, nil
}

func newTestEnv(t *testing.T, modelResponse string) *pipelineEnv {
	t.Helper()

	st, err := store.NewSQLite(filepath.Join(t.TempDir(), "test.db"))
	require.NoError(t, err)
	t.Cleanup(func() { st.Close() }) //nolint:errcheck
	require.NoError(t, st.Migrate(context.Background()))

	p := pipeline.New(
		pipeline.NewAcquirer(stubFetcher{}, 1024*1024, 1),
		stubInvoker{response: modelResponse},
		pipeline.Options{},
	)
	return &pipelineEnv{Store: st, Pipeline: p}
}

func TestHandleRegisterItems(t *testing.T) {
	env := newTestEnv(t, "[]")

	body := `{"user_id": "user-1", "image_urls": ["https://cdn.example.com/a.jpg", "https://cdn.example.com/b.jpg"]}`
	req := httptest.NewRequest(http.MethodPost, "/v1/items", strings.NewReader(body))
	rec := httptest.NewRecorder()

	handleRegisterItems(rec, req, env)
	require.Equal(t, http.StatusCreated, rec.Code)

	var resp struct {
		Items []struct {
			ID       string `json:"id"`
			UserID   string `json:"user_id"`
			ImageURL string `json:"image_url"`
		} `json:"items"`
	}
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &resp))
	require.Len(t, resp.Items, 2)
	assert.Equal(t, "user-1", resp.Items[0].UserID)

	// Registered items are pending until extraction completes.
	pending, err := env.Store.FindItemsMissingFeatures(context.Background(), "user-1")
	require.NoError(t, err)
	assert.Len(t, pending, 2)
}

func TestHandleRegisterItems_BadRequests(t *testing.T) {
	env := newTestEnv(t, "[]")

	tests := []struct {
		name string
		body string
	}{
		{"malformed json", `{`},
		{"missing user", `{"image_urls": ["https://cdn.example.com/a.jpg"]}`},
		{"missing urls", `{"user_id": "user-1"}`},
		{"empty url entry", `{"user_id": "user-1", "image_urls": [""]}`},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			req := httptest.NewRequest(http.MethodPost, "/v1/items", strings.NewReader(tt.body))
			rec := httptest.NewRecorder()
			handleRegisterItems(rec, req, env)
			assert.Equal(t, http.StatusBadRequest, rec.Code)
		})
	}
}

func TestHandleExtract(t *testing.T) {
	env := newTestEnv(t, `[{"image_index": 1, "class": "topwear", "description": "white tee", "confidence": 0.9}]`)

	// Register the item first so extraction can persist its features.
	_, err := env.Store.CreateItem(context.Background(), "user-1", "https://cdn.example.com/a.jpg")
	require.NoError(t, err)

	body := `{"user_id": "user-1", "image_urls": ["https://cdn.example.com/a.jpg"]}`
	req := httptest.NewRequest(http.MethodPost, "/v1/extract", strings.NewReader(body))
	rec := httptest.NewRecorder()

	handleExtract(rec, req, env)
	require.Equal(t, http.StatusOK, rec.Code)

	var result pipeline.Result
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &result))
	require.Len(t, result.Features, 1)
	assert.Equal(t, "white tee", result.Features[0].Description)

	// Features were persisted; the item is no longer pending.
	pending, err := env.Store.FindItemsMissingFeatures(context.Background(), "user-1")
	require.NoError(t, err)
	assert.Empty(t, pending)
}

func TestHandleExtract_InvalidInputMapsTo400(t *testing.T) {
	env := newTestEnv(t, "[]")

	body := `{"user_id": "user-1", "image_urls": []}`
	req := httptest.NewRequest(http.MethodPost, "/v1/extract", strings.NewReader(body))
	rec := httptest.NewRecorder()

	handleExtract(rec, req, env)
	assert.Equal(t, http.StatusBadRequest, rec.Code)
}

func TestHandleExtract_ParseFailureMapsTo500(t *testing.T) {
	env := newTestEnv(t, "not json at all")

	body := `{"user_id": "user-1", "image_urls": ["https://cdn.example.com/a.jpg"]}`
	req := httptest.NewRequest(http.MethodPost, "/v1/extract", strings.NewReader(body))
	rec := httptest.NewRecorder()

	handleExtract(rec, req, env)
	assert.Equal(t, http.StatusInternalServerError, rec.Code)
}
