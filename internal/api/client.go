// Package api provides a typed client for the school REST API.
package api

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"strconv"
	"strings"
	"time"

	"github.com/bissquit/campus/internal/pkg/ctxlog"
	"github.com/bissquit/campus/internal/pkg/metrics"
	"github.com/bissquit/campus/internal/version"
	"github.com/google/uuid"
	"golang.org/x/time/rate"
)

const (
	defaultTimeout   = 15 * time.Second
	defaultRateLimit = 10.0
	defaultBurst     = 5

	// RequestIDHeader carries a per-request id to the server.
	RequestIDHeader = "X-Request-ID"
)

// Config holds API client configuration.
type Config struct {
	BaseURL   string
	Timeout   time.Duration // per-request timeout
	RateLimit float64       // requests per second, 0 uses the default
	Burst     int
	UserAgent string
}

// TokenSource yields the bearer token for outgoing requests.
// An empty token sends no Authorization header.
type TokenSource interface {
	Token() string
}

// StaticToken is a TokenSource returning a fixed token.
type StaticToken string

// Token implements TokenSource.
func (t StaticToken) Token() string { return string(t) }

// Client performs REST calls against the configured base URL.
type Client struct {
	baseURL    *url.URL
	userAgent  string
	httpClient *http.Client
	limiter    *rate.Limiter
	tokens     TokenSource
}

// New creates a new API client.
func New(config Config, tokens TokenSource) (*Client, error) {
	if config.BaseURL == "" {
		return nil, errors.New("api client: base URL is required")
	}
	base, err := url.Parse(strings.TrimRight(config.BaseURL, "/"))
	if err != nil || base.Scheme == "" || base.Host == "" {
		return nil, fmt.Errorf("api client: invalid base URL %q", config.BaseURL)
	}

	if config.Timeout == 0 {
		config.Timeout = defaultTimeout
	}
	if config.RateLimit == 0 {
		config.RateLimit = defaultRateLimit
	}
	if config.Burst == 0 {
		config.Burst = defaultBurst
	}
	if config.UserAgent == "" {
		config.UserAgent = "campus/" + version.Version
	}
	if tokens == nil {
		tokens = StaticToken("")
	}

	return &Client{
		baseURL:   base,
		userAgent: config.UserAgent,
		httpClient: &http.Client{
			Timeout: config.Timeout,
		},
		limiter: rate.NewLimiter(rate.Limit(config.RateLimit), config.Burst),
		tokens:  tokens,
	}, nil
}

// do sends a JSON request and decodes a JSON response into out (if non-nil).
// route is the path template used for metrics, e.g. "/courses/{id}".
func (c *Client) do(ctx context.Context, method, route, path string, query url.Values, body, out interface{}) error {
	if err := c.limiter.Wait(ctx); err != nil {
		return &RequestError{Method: method, Path: path, Err: err}
	}

	target := c.baseURL.String() + path
	if len(query) > 0 {
		target += "?" + query.Encode()
	}

	var bodyReader io.Reader
	if body != nil {
		payload, err := json.Marshal(body)
		if err != nil {
			return fmt.Errorf("marshal body: %w", err)
		}
		bodyReader = bytes.NewReader(payload)
	}

	req, err := http.NewRequestWithContext(ctx, method, target, bodyReader)
	if err != nil {
		return fmt.Errorf("create request: %w", err)
	}

	requestID := uuid.NewString()
	req.Header.Set("Accept", "application/json")
	req.Header.Set("User-Agent", c.userAgent)
	req.Header.Set(RequestIDHeader, requestID)
	if body != nil {
		req.Header.Set("Content-Type", "application/json")
	}
	if token := c.tokens.Token(); token != "" {
		req.Header.Set("Authorization", "Bearer "+token)
	}

	logger := ctxlog.FromContext(ctx).With("method", method, "path", path, "request_id", requestID)

	start := time.Now()
	resp, err := c.httpClient.Do(req)
	if err != nil {
		metrics.APIRequestDuration.WithLabelValues(method, route, "error").Observe(time.Since(start).Seconds())
		logger.Warn("api request failed", "error", err)
		return &RequestError{Method: method, Path: path, Err: err}
	}
	defer func() { _ = resp.Body.Close() }()

	metrics.APIRequestDuration.WithLabelValues(method, route, strconv.Itoa(resp.StatusCode)).
		Observe(time.Since(start).Seconds())

	respBody, err := io.ReadAll(resp.Body)
	if err != nil {
		return &RequestError{Method: method, Path: path, StatusCode: resp.StatusCode, Err: fmt.Errorf("read response: %w", err)}
	}

	logger.Debug("api request",
		"status", resp.StatusCode,
		"duration_ms", time.Since(start).Milliseconds(),
	)

	if resp.StatusCode < 200 || resp.StatusCode >= 300 {
		return &RequestError{
			Method:     method,
			Path:       path,
			StatusCode: resp.StatusCode,
			Message:    extractMessage(respBody),
		}
	}

	if out == nil || len(bytes.TrimSpace(respBody)) == 0 {
		return nil
	}
	if err := json.Unmarshal(respBody, out); err != nil {
		logger.Error("failed to decode api response", "error", err)
		return &RequestError{Method: method, Path: path, StatusCode: resp.StatusCode, Err: fmt.Errorf("decode response: %w", err)}
	}
	return nil
}

func (c *Client) get(ctx context.Context, route, path string, query url.Values, out interface{}) error {
	return c.do(ctx, http.MethodGet, route, path, query, nil, out)
}

func (c *Client) post(ctx context.Context, route, path string, body, out interface{}) error {
	return c.do(ctx, http.MethodPost, route, path, nil, body, out)
}

func (c *Client) put(ctx context.Context, route, path string, body, out interface{}) error {
	return c.do(ctx, http.MethodPut, route, path, nil, body, out)
}

func (c *Client) patch(ctx context.Context, route, path string, body, out interface{}) error {
	return c.do(ctx, http.MethodPatch, route, path, nil, body, out)
}

func (c *Client) delete(ctx context.Context, route, path string, out interface{}) error {
	return c.do(ctx, http.MethodDelete, route, path, nil, nil, out)
}

// segment escapes a single path segment.
func segment(s string) string {
	return url.PathEscape(s)
}
