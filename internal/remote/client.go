// Package remote is the HTTP client for the categorias and gastos collections.
//
// Every call is a single attempt: failures come back as *RemoteError and are
// never retried here. Successful GET bodies may be served from a short-lived
// LRU cache, which any mutation through the same Client empties.
package remote

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"log/slog"
	"net"
	"net/http"
	"net/url"
	"strings"
	"time"

	"github.com/google/uuid"

	"gastos/internal/cache"
	applog "gastos/internal/log"
)

const maxResponseBytes = 4 << 20

// Options configures a Client.
type Options struct {
	BaseURL    string
	Timeout    time.Duration
	HTTPClient *http.Client
	// CacheTTL of zero disables response caching.
	CacheTTL  time.Duration
	CacheSize int
	Logger    *applog.Logger
}

// Client talks to the REST backend. Use Categories and Expenses for the
// per-collection operations.
type Client struct {
	baseURL string
	http    *http.Client
	cache   cache.Cache[[]byte]
	logger  *applog.Logger

	Categories *CategoryClient
	Expenses   *ExpenseClient
}

func NewClient(opts Options) (*Client, error) {
	base := strings.TrimRight(strings.TrimSpace(opts.BaseURL), "/")
	u, err := url.Parse(base)
	if err != nil || u.Scheme == "" || u.Host == "" {
		return nil, fmt.Errorf("invalid base URL %q", opts.BaseURL)
	}

	httpClient := opts.HTTPClient
	if httpClient == nil {
		httpClient = newHTTPClientWithPooling(opts.Timeout)
	}
	logger := opts.Logger
	if logger == nil {
		logger = applog.New(applog.Config{Handler: slog.Default().Handler(), Component: applog.ComponentRemote})
	}

	c := &Client{
		baseURL: base,
		http:    httpClient,
		logger:  logger.WithComponent(applog.ComponentRemote),
	}
	if opts.CacheTTL > 0 && opts.CacheSize > 0 {
		c.cache = cache.NewLRUCache[[]byte](opts.CacheSize, opts.CacheTTL)
	}
	c.Categories = &CategoryClient{c: c}
	c.Expenses = &ExpenseClient{c: c}
	return c, nil
}

// Cache exposes the response cache so a cache.Manager can purge it; nil when disabled.
func (c *Client) Cache() cache.Cleaner {
	if cl, ok := c.cache.(cache.Cleaner); ok {
		return cl
	}
	return nil
}

// InvalidateCache drops every cached response.
func (c *Client) InvalidateCache() {
	if c.cache != nil {
		c.cache.DeletePrefix("")
	}
}

// newHTTPClientWithPooling keeps connections to the backend alive between the
// frequent small list calls a dashboard makes.
func newHTTPClientWithPooling(timeout time.Duration) *http.Client {
	if timeout <= 0 {
		timeout = 10 * time.Second
	}
	dialer := &net.Dialer{
		Timeout:   5 * time.Second,
		KeepAlive: 30 * time.Second,
	}
	transport := &http.Transport{
		Proxy:                 http.ProxyFromEnvironment,
		DialContext:           dialer.DialContext,
		MaxIdleConns:          20,
		MaxIdleConnsPerHost:   10,
		IdleConnTimeout:       90 * time.Second,
		TLSHandshakeTimeout:   5 * time.Second,
		ResponseHeaderTimeout: timeout,
		ExpectContinueTimeout: 1 * time.Second,
		ForceAttemptHTTP2:     true,
	}
	return &http.Client{
		Transport: transport,
		Timeout:   timeout,
	}
}

type freshKey struct{}

// Fresh marks ctx so GET calls made with it skip the response cache. The
// result is still stored for later non-fresh reads.
func Fresh(ctx context.Context) context.Context {
	return context.WithValue(ctx, freshKey{}, true)
}

func isFresh(ctx context.Context) bool {
	fresh, _ := ctx.Value(freshKey{}).(bool)
	return fresh
}

// do performs one request. A nil out discards the body; body is JSON encoded.
func (c *Client) do(ctx context.Context, method, path string, query url.Values, body, out any) error {
	endpoint := c.baseURL + path
	cacheKey := path
	if len(query) > 0 {
		endpoint += "?" + query.Encode()
		cacheKey += "?" + query.Encode()
	}

	cacheable := method == http.MethodGet && c.cache != nil
	if cacheable && !isFresh(ctx) {
		if data, ok := c.cache.Get(cacheKey); ok {
			c.logger.DebugContext(ctx, "Serving cached response", applog.FieldPath, cacheKey)
			return decode(data, out)
		}
	}

	var reader io.Reader
	if body != nil {
		payload, err := json.Marshal(body)
		if err != nil {
			return fmt.Errorf("encode request body: %w", err)
		}
		reader = bytes.NewReader(payload)
	}

	req, err := http.NewRequestWithContext(ctx, method, endpoint, reader)
	if err != nil {
		return fmt.Errorf("build request: %w", err)
	}
	req.Header.Set("Accept", "application/json")
	if body != nil {
		req.Header.Set("Content-Type", "application/json")
	}
	requestID := uuid.NewString()
	req.Header.Set("X-Request-ID", requestID)

	start := time.Now()
	resp, err := c.http.Do(req)
	if err != nil {
		c.logger.WarnContext(ctx, "Remote call failed",
			applog.NewFields().
				WithHTTPRequest(method, path, req.URL.RawQuery, "").
				WithRequestID(requestID).
				WithError(err, applog.ErrorTypeNetwork).
				ToSlice()...)
		return newTransportError(err)
	}
	defer resp.Body.Close()

	data, err := io.ReadAll(io.LimitReader(resp.Body, maxResponseBytes))
	if err != nil {
		return newTransportError(err)
	}

	c.logger.DebugContext(ctx, "Remote call completed",
		applog.NewFields().
			WithHTTPRequest(method, path, req.URL.RawQuery, "").
			WithHTTPResponse(resp.StatusCode, time.Since(start)).
			WithRequestID(requestID).
			ToSlice()...)

	if resp.StatusCode < 200 || resp.StatusCode > 299 {
		return newHTTPError(resp.StatusCode, data)
	}

	if method != http.MethodGet {
		c.InvalidateCache()
	}

	if err := decode(data, out); err != nil {
		return &RemoteError{StatusCode: resp.StatusCode, Message: "invalid response from server", Err: err}
	}
	if cacheable {
		c.cache.Set(cacheKey, data)
	}
	return nil
}

func decode(data []byte, out any) error {
	if out == nil || len(bytes.TrimSpace(data)) == 0 {
		return nil
	}
	return json.Unmarshal(data, out)
}

// envelope is the {data: ...} wrapper most endpoints answer with.
type envelope[T any] struct {
	Data T `json:"data"`
}

// unwrapEntity accepts both a bare entity and one wrapped in {data: ...}.
func unwrapEntity[T any](raw json.RawMessage) (T, error) {
	var peek struct {
		Data json.RawMessage `json:"data"`
	}
	if err := json.Unmarshal(raw, &peek); err == nil {
		if trimmed := bytes.TrimSpace(peek.Data); len(trimmed) > 0 && trimmed[0] == '{' {
			raw = trimmed
		}
	}
	var v T
	if err := json.Unmarshal(raw, &v); err != nil {
		return v, &RemoteError{Message: "invalid response from server", Err: err}
	}
	return v, nil
}
