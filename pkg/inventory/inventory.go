// Package inventory looks up live stock and pricing from the inventory
// spreadsheet web app.
package inventory

import (
	"context"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"time"

	jsoniter "github.com/json-iterator/go"
	"golang.org/x/time/rate"
)

var json = jsoniter.ConfigCompatibleWithStandardLibrary

// Record is the decoded inventory answer for one product.
type Record map[string]any

// Adapter fetches inventory records.
type Adapter interface {
	Lookup(ctx context.Context, productName string) (Record, error)
}

// Config addresses the endpoint and bounds the request rate.
type Config struct {
	URL               string
	Token             string
	RequestsPerSecond float64
	Burst             int
}

// HTTPAdapter queries the endpoint with GET ?product_name=..&token=..
type HTTPAdapter struct {
	endpoint *url.URL
	token    string
	client   *http.Client
	limiter  *rate.Limiter
}

// NewHTTPAdapter validates cfg and builds the adapter. Defaults: 5 req/s,
// burst 10.
func NewHTTPAdapter(cfg Config) (*HTTPAdapter, error) {
	if cfg.URL == "" {
		return nil, fmt.Errorf("inventory: url is required")
	}
	u, err := url.Parse(cfg.URL)
	if err != nil || u.Host == "" {
		return nil, fmt.Errorf("inventory: invalid url %q", cfg.URL)
	}
	if cfg.RequestsPerSecond <= 0 {
		cfg.RequestsPerSecond = 5
	}
	if cfg.Burst <= 0 {
		cfg.Burst = 10
	}

	return &HTTPAdapter{
		endpoint: u,
		token:    cfg.Token,
		// Deadlines come from the request context; this is a backstop.
		client:  &http.Client{Timeout: 60 * time.Second},
		limiter: rate.NewLimiter(rate.Limit(cfg.RequestsPerSecond), cfg.Burst),
	}, nil
}

// Lookup fetches the record of productName. Non-2xx replies and bodies
// that are not JSON objects are errors.
func (a *HTTPAdapter) Lookup(ctx context.Context, productName string) (Record, error) {
	if err := a.limiter.Wait(ctx); err != nil {
		return nil, fmt.Errorf("rate limit: %w", err)
	}

	u := *a.endpoint
	q := u.Query()
	q.Set("product_name", productName)
	if a.token != "" {
		q.Set("token", a.token)
	}
	u.RawQuery = q.Encode()

	req, err := http.NewRequestWithContext(ctx, http.MethodGet, u.String(), nil)
	if err != nil {
		return nil, fmt.Errorf("build request: %w", err)
	}

	resp, err := a.client.Do(req)
	if err != nil {
		return nil, fmt.Errorf("request: %w", err)
	}
	defer resp.Body.Close()

	body, err := io.ReadAll(io.LimitReader(resp.Body, 1<<20))
	if err != nil {
		return nil, fmt.Errorf("read body: %w", err)
	}

	if resp.StatusCode < 200 || resp.StatusCode > 299 {
		return nil, fmt.Errorf("unexpected status %d", resp.StatusCode)
	}

	var rec Record
	if err := json.Unmarshal(body, &rec); err != nil {
		return nil, fmt.Errorf("decode response: %w", err)
	}
	if rec == nil {
		return nil, fmt.Errorf("empty response")
	}
	return rec, nil
}

type disabledAdapter struct {
	cause error
}

// Disabled returns an adapter whose lookups fail with cause, used when the
// endpoint is not configured.
func Disabled(cause error) Adapter {
	return disabledAdapter{cause: cause}
}

func (d disabledAdapter) Lookup(ctx context.Context, productName string) (Record, error) {
	return nil, d.cause
}
