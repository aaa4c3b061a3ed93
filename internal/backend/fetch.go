package backend

import (
	"context"
	"encoding/json"
	"fmt"
	"io"
	"log/slog"
	"net/http"
	"net/url"
	"time"

	"golang.org/x/time/rate"
)

const (
	// DefaultHTTPTimeout bounds a single outbound request.
	DefaultHTTPTimeout = 30 * time.Second
	maxBodyBytes       = 5 << 20
	defaultUserAgent   = "WestBay-Research/1.0"
)

// FetchConfig configures a Fetcher.
type FetchConfig struct {
	Timeout           time.Duration
	RequestsPerSecond float64
	Burst             int
	UserAgent         string
	Policy            RetryPolicy
}

// Page is a fetched HTTP response body.
type Page struct {
	URL         string
	StatusCode  int
	ContentType string
	Body        []byte
	FetchedAt   time.Time
}

// Fetcher performs rate-limited GET requests with retries and a
// per-host circuit breaker.
type Fetcher struct {
	client   *http.Client
	limiter  *rate.Limiter
	policy   RetryPolicy
	breakers *BreakerRegistry
	agent    string
	logger   *slog.Logger
	// OnRetry is called before each retry; used for metrics.
	OnRetry func(target string)
}

// NewFetcher creates a Fetcher. client may be nil.
func NewFetcher(cfg FetchConfig, client *http.Client, breakers *BreakerRegistry, logger *slog.Logger) *Fetcher {
	if logger == nil {
		logger = slog.New(slog.DiscardHandler)
	}
	if cfg.Timeout <= 0 {
		cfg.Timeout = DefaultHTTPTimeout
	}
	if client == nil {
		client = &http.Client{}
	}
	client.Timeout = cfg.Timeout
	if cfg.UserAgent == "" {
		cfg.UserAgent = defaultUserAgent
	}
	if cfg.Policy.MaxAttempts == 0 {
		cfg.Policy = DefaultRetryPolicy()
	}
	limit := rate.Inf
	if cfg.RequestsPerSecond > 0 {
		limit = rate.Limit(cfg.RequestsPerSecond)
	}
	burst := cfg.Burst
	if burst <= 0 {
		burst = 1
	}
	if breakers == nil {
		breakers = NewBreakerRegistry(logger)
	}
	return &Fetcher{
		client:   client,
		limiter:  rate.NewLimiter(limit, burst),
		policy:   cfg.Policy,
		breakers: breakers,
		agent:    cfg.UserAgent,
		logger:   logger,
	}
}

// Get fetches rawURL with optional query parameters and headers.
func (f *Fetcher) Get(ctx context.Context, rawURL string, params, headers map[string]string) (*Page, error) {
	u, err := url.Parse(rawURL)
	if err != nil || u.Host == "" {
		return nil, fmt.Errorf("invalid url %q", rawURL)
	}
	if len(params) > 0 {
		q := u.Query()
		for k, v := range params {
			q.Set(k, v)
		}
		u.RawQuery = q.Encode()
	}
	target := u.String()

	onRetry := func(err error, wait time.Duration) {
		f.logger.Warn("retrying fetch", "url", target, "wait", wait, "error", err)
		if f.OnRetry != nil {
			f.OnRetry(u.Host)
		}
	}
	return Do(ctx, f.policy, f.breakers.Get(u.Host), onRetry, func(ctx context.Context) (*Page, error) {
		if err := f.limiter.Wait(ctx); err != nil {
			return nil, err
		}
		return f.do(ctx, target, headers)
	})
}

// GetJSON fetches rawURL and decodes the body as JSON into an untyped value.
func (f *Fetcher) GetJSON(ctx context.Context, rawURL string, params, headers map[string]string) (any, *Page, error) {
	h := map[string]string{"Accept": "application/json"}
	for k, v := range headers {
		h[k] = v
	}
	page, err := f.Get(ctx, rawURL, params, h)
	if err != nil {
		return nil, nil, err
	}
	var v any
	if err := json.Unmarshal(page.Body, &v); err != nil {
		return nil, page, fmt.Errorf("failed to decode JSON from %s: %w", rawURL, err)
	}
	return v, page, nil
}

func (f *Fetcher) do(ctx context.Context, target string, headers map[string]string) (*Page, error) {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, target, nil)
	if err != nil {
		return nil, fmt.Errorf("failed to build request: %w", err)
	}
	req.Header.Set("User-Agent", f.agent)
	for k, v := range headers {
		req.Header.Set(k, v)
	}

	resp, err := f.client.Do(req)
	if err != nil {
		return nil, err
	}
	defer resp.Body.Close()

	if resp.StatusCode < 200 || resp.StatusCode > 299 {
		_, _ = io.Copy(io.Discard, io.LimitReader(resp.Body, maxBodyBytes))
		return nil, &StatusError{URL: target, StatusCode: resp.StatusCode}
	}
	body, err := io.ReadAll(io.LimitReader(resp.Body, maxBodyBytes))
	if err != nil {
		return nil, MarkTransient(fmt.Errorf("failed to read body: %w", err))
	}
	return &Page{
		URL:         target,
		StatusCode:  resp.StatusCode,
		ContentType: resp.Header.Get("Content-Type"),
		Body:        body,
		FetchedAt:   time.Now(),
	}, nil
}
