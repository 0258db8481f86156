package sdk

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"strings"
	"time"
)

const defaultTimeout = 30 * time.Second

// Client talks to a recall service over HTTP.
type Client struct {
	baseURL   string
	apiKey    string
	userAgent string
	httpc     *http.Client
	obs       *observer
}

// New creates a Client for the service at baseURL.
func New(baseURL string, opts ...Option) (*Client, error) {
	if baseURL == "" {
		return nil, errors.New("sdk: base url required")
	}
	if _, err := url.Parse(baseURL); err != nil {
		return nil, fmt.Errorf("sdk: parse base url: %w", err)
	}

	cfg := &clientConfig{timeout: defaultTimeout}
	for _, o := range opts {
		o.apply(cfg)
	}

	httpc := cfg.httpClient
	if httpc == nil {
		httpc = &http.Client{Timeout: cfg.timeout}
	}

	obs, err := newObserver(cfg.logger, cfg.metricsReg)
	if err != nil {
		return nil, err
	}

	return &Client{
		baseURL:   strings.TrimRight(baseURL, "/"),
		apiKey:    cfg.apiKey,
		userAgent: cfg.userAgent,
		httpc:     httpc,
		obs:       obs,
	}, nil
}

// Collection returns a handle for one tenant's document category.
// The service provisions the backing collection on first use.
func (c *Client) Collection(tenant, category string) *Collection {
	return &Collection{client: c, tenant: tenant, category: category}
}

// ListCollections returns the collection names owned by tenant, sorted.
func (c *Client) ListCollections(ctx context.Context, tenant string) (names []string, err error) {
	start := time.Now()
	defer func() { c.obs.observe("list_collections", start, err) }()

	var resp listCollectionsResponse
	path := fmt.Sprintf("/api/v1/tenants/%s/collections", url.PathEscape(tenant))
	if err = c.doJSON(ctx, http.MethodGet, path, nil, &resp); err != nil {
		return nil, err
	}
	return resp.Collections, nil
}

// Stats reports totals across the service.
func (c *Client) Stats(ctx context.Context) (stats Stats, err error) {
	start := time.Now()
	defer func() { c.obs.observe("stats", start, err) }()

	err = c.doJSON(ctx, http.MethodGet, "/api/v1/stats", nil, &stats)
	return stats, err
}

// doJSON sends one request and decodes the response into out (when non-nil).
// Responses with status >= 400 become an *APIError.
func (c *Client) doJSON(ctx context.Context, method, path string, body, out any) error {
	var rd io.Reader
	if body != nil {
		buf, err := json.Marshal(body)
		if err != nil {
			return fmt.Errorf("sdk: encode request: %w", err)
		}
		rd = bytes.NewReader(buf)
	}

	req, err := http.NewRequestWithContext(ctx, method, c.baseURL+path, rd)
	if err != nil {
		return fmt.Errorf("sdk: build request: %w", err)
	}
	if body != nil {
		req.Header.Set("Content-Type", "application/json")
	}
	if c.apiKey != "" {
		req.Header.Set("Authorization", "Bearer "+c.apiKey)
	}
	if c.userAgent != "" {
		req.Header.Set("User-Agent", c.userAgent)
	}

	resp, err := c.httpc.Do(req)
	if err != nil {
		return fmt.Errorf("sdk: %s %s: %w", method, path, err)
	}
	defer resp.Body.Close()

	if resp.StatusCode >= http.StatusBadRequest {
		return apiErrorFrom(resp)
	}
	if out == nil {
		return nil
	}
	if err := json.NewDecoder(resp.Body).Decode(out); err != nil {
		return fmt.Errorf("sdk: decode response: %w", err)
	}
	return nil
}

// apiErrorFrom builds an APIError from an error response. Bodies that are
// not the service envelope (proxies, load balancers) keep the status text.
func apiErrorFrom(resp *http.Response) error {
	var envelope errorResponse
	_ = json.NewDecoder(io.LimitReader(resp.Body, 64<<10)).Decode(&envelope)

	apiErr := &APIError{
		StatusCode: resp.StatusCode,
		Code:       envelope.Code,
		Message:    envelope.Message,
	}
	if apiErr.Message == "" {
		apiErr.Message = http.StatusText(resp.StatusCode)
	}
	return apiErr
}
