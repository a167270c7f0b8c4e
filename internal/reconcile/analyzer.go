// Package reconcile periodically sweeps for wardrobe items whose feature
// extraction never completed and retries them once their owner has stopped
// uploading.
package reconcile

import (
	"bytes"
	"context"
	"encoding/json"
	"io"
	"net/http"
	"time"

	"github.com/rotisserie/eris"

	"github.com/stylekeep/wardrobe-pipeline/internal/model"
	"github.com/stylekeep/wardrobe-pipeline/internal/pipeline"
)

// Analyzer produces feature sets for a batch of image URLs, keyed by the URL
// each set was derived from. URLs absent from the result simply failed this
// round and stay pending for the next sweep.
type Analyzer interface {
	Analyze(ctx context.Context, userID string, imageURLs []string) (map[string]model.FeatureSet, error)
}

// PipelineAnalyzer runs the in-process extraction pipeline.
type PipelineAnalyzer struct {
	pipe *pipeline.Pipeline
}

// NewPipelineAnalyzer wraps the extraction pipeline as an Analyzer.
func NewPipelineAnalyzer(pipe *pipeline.Pipeline) *PipelineAnalyzer {
	return &PipelineAnalyzer{pipe: pipe}
}

func (a *PipelineAnalyzer) Analyze(ctx context.Context, userID string, imageURLs []string) (map[string]model.FeatureSet, error) {
	res, err := a.pipe.Run(ctx, model.ExtractionRequest{UserID: userID, ImageURLs: imageURLs})
	if err != nil {
		return nil, eris.Wrap(err, "reconcile: pipeline analysis")
	}

	out := make(map[string]model.FeatureSet, len(res.Features))
	for _, fs := range res.Features {
		// One set per image; when the model reports several items in the same
		// photo the highest-confidence one wins.
		if prev, ok := out[fs.SourceImage]; ok && prev.Confidence >= fs.Confidence {
			continue
		}
		out[fs.SourceImage] = fs
	}
	return out, nil
}

// RemoteAnalyzer delegates analysis to an external batch endpoint.
type RemoteAnalyzer struct {
	baseURL string
	client  *http.Client
}

// NewRemoteAnalyzer creates a RemoteAnalyzer against baseURL.
func NewRemoteAnalyzer(baseURL string, timeout time.Duration) *RemoteAnalyzer {
	if timeout <= 0 {
		timeout = 30 * time.Second
	}
	return &RemoteAnalyzer{
		baseURL: baseURL,
		client:  &http.Client{Timeout: timeout},
	}
}

type remoteRequest struct {
	ImageURLs []string `json:"image_urls"`
}

type remoteResponse struct {
	Results []struct {
		ImageURL     string            `json:"image_url"`
		AnalysisData *model.FeatureSet `json:"analysis_data"`
	} `json:"results"`
}

func (a *RemoteAnalyzer) Analyze(ctx context.Context, userID string, imageURLs []string) (map[string]model.FeatureSet, error) {
	body, err := json.Marshal(remoteRequest{ImageURLs: imageURLs})
	if err != nil {
		return nil, eris.Wrap(err, "reconcile: marshal analysis request")
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, a.baseURL, bytes.NewReader(body))
	if err != nil {
		return nil, eris.Wrap(err, "reconcile: build analysis request")
	}
	req.Header.Set("Content-Type", "application/json")

	resp, err := a.client.Do(req)
	if err != nil {
		return nil, eris.Wrap(err, "reconcile: call analysis endpoint")
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		b, _ := io.ReadAll(io.LimitReader(resp.Body, 4096))
		return nil, eris.Errorf("reconcile: analysis endpoint returned %d: %s", resp.StatusCode, string(b))
	}

	var parsed remoteResponse
	if err := json.NewDecoder(resp.Body).Decode(&parsed); err != nil {
		return nil, eris.Wrap(err, "reconcile: decode analysis response")
	}

	out := make(map[string]model.FeatureSet, len(parsed.Results))
	for _, r := range parsed.Results {
		if r.ImageURL == "" || r.AnalysisData == nil {
			continue
		}
		fs := *r.AnalysisData
		fs.SourceImage = r.ImageURL
		out[r.ImageURL] = fs
	}
	return out, nil
}
