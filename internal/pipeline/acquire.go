package pipeline

import (
	"context"
	"errors"
	"io"
	"net/http"
	"net/url"
	"strings"

	"github.com/rotisserie/eris"
	"go.uber.org/zap"
	"golang.org/x/sync/errgroup"

	"github.com/stylekeep/wardrobe-pipeline/internal/fetcher"
	"github.com/stylekeep/wardrobe-pipeline/internal/model"
	"github.com/stylekeep/wardrobe-pipeline/internal/resilience"
)

// SkipReason explains why a single reference was dropped during acquisition.
type SkipReason string

const (
	SkipInvalidURI      SkipReason = "invalid-uri"
	SkipFetchFailed     SkipReason = "fetch-failed"
	SkipOversized       SkipReason = "oversized"
	SkipUnsupportedType SkipReason = "unsupported-type"
)

// SkippedImage records a per-item acquisition failure. Skips are expected
// outcomes, not errors; only an all-skip batch is fatal.
type SkippedImage struct {
	URL    string     `json:"url"`
	Reason SkipReason `json:"reason"`
}

// allowedMediaTypes is the set of image formats the vision model accepts.
var allowedMediaTypes = map[string]bool{
	"image/jpeg": true,
	"image/png":  true,
	"image/webp": true,
	"image/gif":  true,
}

// Acquirer resolves image references to binary content, enforcing size and
// format constraints per reference.
type Acquirer struct {
	fetcher       fetcher.Fetcher
	maxBytes      int64
	retryAttempts int
}

// NewAcquirer creates an Acquirer. maxBytes caps each image payload;
// retryAttempts is the total number of download attempts for transient
// failures (minimum 1).
func NewAcquirer(f fetcher.Fetcher, maxBytes int64, retryAttempts int) *Acquirer {
	if maxBytes <= 0 {
		maxBytes = 20 * 1024 * 1024
	}
	if retryAttempts < 1 {
		retryAttempts = 1
	}
	return &Acquirer{fetcher: f, maxBytes: maxBytes, retryAttempts: retryAttempts}
}

// AcquireAll downloads every reference concurrently (the batch is at most
// five, so downloads are bounded by batch size) and returns the usable images
// in original submission order plus the skip record for each failed one. It
// never returns an error: a bad reference costs only itself.
func (a *Acquirer) AcquireAll(ctx context.Context, refs []string) ([]model.AcquiredImage, []SkippedImage) {
	// Indexed slots keep submission order without locking.
	acquired := make([]*model.AcquiredImage, len(refs))
	skips := make([]*SkippedImage, len(refs))

	g, gCtx := errgroup.WithContext(ctx)
	g.SetLimit(len(refs))

	for i, ref := range refs {
		g.Go(func() error {
			acquired[i], skips[i] = a.acquireOne(gCtx, ref)
			return nil
		})
	}
	_ = g.Wait()

	var images []model.AcquiredImage
	var skipped []SkippedImage
	for i := range refs {
		if acquired[i] != nil {
			images = append(images, *acquired[i])
		} else if skips[i] != nil {
			skipped = append(skipped, *skips[i])
		}
	}
	return images, skipped
}

// acquireOne resolves a single reference. Exactly one of the returns is non-nil.
func (a *Acquirer) acquireOne(ctx context.Context, ref string) (*model.AcquiredImage, *SkippedImage) {
	u, err := url.Parse(ref)
	if err != nil || !u.IsAbs() || u.Host == "" {
		zap.L().Debug("acquire: skipping invalid uri", zap.String("ref", ref))
		return nil, &SkippedImage{URL: ref, Reason: SkipInvalidURI}
	}

	img, err := resilience.DoVal(ctx, resilience.RetryConfig{
		MaxAttempts: a.retryAttempts,
		OnRetry:     resilience.RetryLogger("acquirer", "download"),
	}, func(ctx context.Context) (*model.AcquiredImage, error) {
		return a.download(ctx, ref)
	})
	if err != nil {
		reason := SkipFetchFailed
		switch {
		case errors.Is(err, errOversized):
			reason = SkipOversized
		case errors.Is(err, errUnsupportedType):
			reason = SkipUnsupportedType
		}
		zap.L().Warn("acquire: skipping reference",
			zap.String("ref", ref),
			zap.String("reason", string(reason)),
			zap.Error(err),
		)
		return nil, &SkippedImage{URL: ref, Reason: reason}
	}
	return img, nil
}

var (
	errOversized       = eris.New("acquire: image exceeds size cap")
	errUnsupportedType = eris.New("acquire: unsupported media type")
)

func (a *Acquirer) download(ctx context.Context, ref string) (*model.AcquiredImage, error) {
	res, err := a.fetcher.Fetch(ctx, ref)
	if err != nil {
		return nil, err
	}
	defer res.Body.Close() //nolint:errcheck

	// Reject early on a declared oversized body; re-check after reading since
	// origins lie about Content-Length.
	if res.ContentLength > a.maxBytes {
		return nil, errOversized
	}

	data, err := io.ReadAll(io.LimitReader(res.Body, a.maxBytes+1))
	if err != nil {
		return nil, eris.Wrap(err, "acquire: read body")
	}
	if int64(len(data)) > a.maxBytes {
		return nil, errOversized
	}

	mediaType := normalizeMediaType(res.ContentType, data)
	if !allowedMediaTypes[mediaType] {
		return nil, eris.Wrapf(errUnsupportedType, "got %q", mediaType)
	}

	return &model.AcquiredImage{
		SourceURL: ref,
		MediaType: mediaType,
		Data:      data,
	}, nil
}

// normalizeMediaType resolves the effective media type: the declared
// Content-Type when specific, otherwise sniffed from the payload.
func normalizeMediaType(declared string, data []byte) string {
	declared = strings.ToLower(strings.TrimSpace(declared))
	if declared == "image/jpg" {
		declared = "image/jpeg"
	}
	if declared != "" && declared != "application/octet-stream" && declared != "binary/octet-stream" {
		return declared
	}
	if len(data) == 0 {
		return ""
	}
	mt := http.DetectContentType(data)
	if idx := strings.Index(mt, ";"); idx >= 0 {
		mt = strings.TrimSpace(mt[:idx])
	}
	return mt
}
