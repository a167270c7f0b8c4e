package fetcher

import (
	"context"
	"mime"
	"net/http"
	"net/url"
	"sync"
	"time"

	"github.com/rotisserie/eris"
	"go.uber.org/zap"
	"golang.org/x/time/rate"

	"github.com/stylekeep/wardrobe-pipeline/internal/resilience"
)

// HTTPOptions configures the HTTP fetcher.
type HTTPOptions struct {
	// UserAgent identifies the client; some image origins reject requests
	// without a realistic one.
	UserAgent string
	// Timeout bounds a single download end to end.
	Timeout time.Duration
	// PerHostRate throttles requests per origin host. Zero means the default.
	PerHostRate rate.Limit
	// PerHostBurst is the limiter burst size. Zero means the default.
	PerHostBurst int
}

// HTTPFetcher implements Fetcher using net/http with per-host rate limiting.
type HTTPFetcher struct {
	client   *http.Client
	opts     HTTPOptions
	limiters *hostLimiters
}

// NewHTTPFetcher creates a new HTTPFetcher with the given options.
func NewHTTPFetcher(opts HTTPOptions) *HTTPFetcher {
	if opts.Timeout == 0 {
		opts.Timeout = 30 * time.Second
	}
	if opts.UserAgent == "" {
		opts.UserAgent = "wardrobe-pipeline/1.0"
	}
	if opts.PerHostRate == 0 {
		opts.PerHostRate = 10
	}
	if opts.PerHostBurst == 0 {
		opts.PerHostBurst = 10
	}
	transport := &http.Transport{
		MaxIdleConnsPerHost: 5,
		MaxConnsPerHost:     10,
		IdleConnTimeout:     90 * time.Second,
	}
	return &HTTPFetcher{
		client: &http.Client{
			Timeout:   opts.Timeout,
			Transport: transport,
		},
		opts:     opts,
		limiters: newHostLimiters(opts.PerHostRate, opts.PerHostBurst),
	}
}

// Fetch downloads rawURL and returns the open response body with its declared
// content type. A non-2xx status is an error; 429 and 5xx are marked transient
// so callers can retry them.
func (f *HTTPFetcher) Fetch(ctx context.Context, rawURL string) (*Result, error) {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, rawURL, nil)
	if err != nil {
		return nil, eris.Wrap(err, "fetcher: create request")
	}
	req.Header.Set("User-Agent", f.opts.UserAgent)
	req.Header.Set("Accept", "image/*")

	if lim := f.limiters.forURL(rawURL); lim != nil {
		if err := lim.Wait(ctx); err != nil {
			return nil, eris.Wrap(err, "fetcher: rate limiter wait")
		}
	}

	resp, err := f.client.Do(req)
	if err != nil {
		return nil, eris.Wrap(err, "fetcher: get")
	}

	if resp.StatusCode != http.StatusOK {
		_ = resp.Body.Close()
		statusErr := eris.Errorf("fetcher: unexpected status %d from %s", resp.StatusCode, rawURL)
		if resilience.IsTransientHTTPStatus(resp.StatusCode) {
			return nil, resilience.NewTransientError(statusErr, resp.StatusCode)
		}
		return nil, statusErr
	}

	contentType := resp.Header.Get("Content-Type")
	if mt, _, err := mime.ParseMediaType(contentType); err == nil {
		contentType = mt
	}

	zap.L().Debug("fetcher: downloaded",
		zap.String("url", rawURL),
		zap.String("content_type", contentType),
		zap.Int64("content_length", resp.ContentLength),
	)

	return &Result{
		Body:          resp.Body,
		ContentType:   contentType,
		ContentLength: resp.ContentLength,
	}, nil
}

// hostLimiters lazily builds one rate limiter per origin host.
type hostLimiters struct {
	rate   rate.Limit
	burst  int
	mu     sync.Mutex
	byHost map[string]*rate.Limiter
}

func newHostLimiters(r rate.Limit, burst int) *hostLimiters {
	return &hostLimiters{
		rate:   r,
		burst:  burst,
		byHost: make(map[string]*rate.Limiter),
	}
}

func (h *hostLimiters) forURL(rawURL string) *rate.Limiter {
	u, err := url.Parse(rawURL)
	if err != nil || u.Host == "" {
		return nil
	}
	h.mu.Lock()
	defer h.mu.Unlock()
	lim, ok := h.byHost[u.Host]
	if !ok {
		lim = rate.NewLimiter(h.rate, h.burst)
		h.byHost[u.Host] = lim
	}
	return lim
}
