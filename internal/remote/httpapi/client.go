// Package httpapi talks to a spotpanel agent over HTTP and WebSocket.
package httpapi

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

	"go.uber.org/zap"
)

const (
	// DefaultAddress is where a local agent listens.
	DefaultAddress = "http://127.0.0.1:7655"

	defaultRetries = 3
	baseRetryWait  = 250 * time.Millisecond
)

// Client is an agent API client.
type Client struct {
	base       *url.URL
	httpClient *http.Client
	retries    int
	log        *zap.Logger

	// reconnectWait is the first backoff step of a dropped event stream.
	reconnectWait time.Duration
}

// Option configures a Client.
type Option func(*Client)

// WithHTTPClient replaces the default HTTP client.
func WithHTTPClient(hc *http.Client) Option {
	return func(c *Client) { c.httpClient = hc }
}

// WithRetries sets how often idempotent requests are retried.
func WithRetries(n int) Option {
	return func(c *Client) { c.retries = max(n, 0) }
}

// WithTimeout sets the per-request timeout. The HTTP client is copied so
// that a shared client such as http.DefaultClient is left alone.
func WithTimeout(d time.Duration) Option {
	return func(c *Client) {
		hc := *c.httpClient
		hc.Timeout = d
		c.httpClient = &hc
	}
}

// WithLogger sets the logger for request tracing.
func WithLogger(log *zap.Logger) Option {
	return func(c *Client) {
		if log != nil {
			c.log = log
		}
	}
}

// New creates a client for the agent at address.
func New(address string, opts ...Option) (*Client, error) {
	if address == "" {
		address = DefaultAddress
	}
	if !strings.Contains(address, "://") {
		address = "http://" + address
	}
	base, err := url.Parse(strings.TrimRight(address, "/"))
	if err != nil {
		return nil, fmt.Errorf("invalid agent address %q: %w", address, err)
	}
	if base.Scheme != "http" && base.Scheme != "https" {
		return nil, fmt.Errorf("invalid agent address %q: unsupported scheme %q", address, base.Scheme)
	}

	c := &Client{
		base:       base,
		httpClient: &http.Client{Timeout: 5 * time.Second},
		retries:    defaultRetries,
		log:        zap.NewNop(),

		reconnectWait: minReconnectWait,
	}
	for _, opt := range opts {
		opt(c)
	}
	c.log = c.log.With(zap.String("component", "httpapi"))
	return c, nil
}

// Address returns the agent base URL.
func (c *Client) Address() string {
	return c.base.String()
}

// Get performs a GET request. GETs are retried on network and server errors.
func (c *Client) Get(ctx context.Context, path string, result any) error {
	return c.request(ctx, http.MethodGet, path, nil, result)
}

// Post performs a POST request. POSTs are never retried: a command that
// reached the speaker but lost its response must not run twice.
func (c *Client) Post(ctx context.Context, path string, body any, result any) error {
	return c.request(ctx, http.MethodPost, path, body, result)
}

func (c *Client) request(ctx context.Context, method, path string, body any, result any) error {
	var jsonBody []byte
	if body != nil {
		var err error
		jsonBody, err = json.Marshal(body)
		if err != nil {
			return fmt.Errorf("failed to marshal request body: %w", err)
		}
	}

	fullURL := c.base.String() + path
	c.log.Debug("request", zap.String("method", method), zap.String("url", fullURL), zap.ByteString("body", jsonBody))

	attempts := 1
	if method == http.MethodGet {
		attempts += c.retries
	}

	var lastErr error
	for attempt := 0; attempt < attempts; attempt++ {
		if attempt > 0 {
			wait := baseRetryWait * time.Duration(1<<(attempt-1))
			c.log.Debug("retry", zap.Int("attempt", attempt), zap.Duration("wait", wait), zap.Error(lastErr))
			select {
			case <-ctx.Done():
				return ctx.Err()
			case <-time.After(wait):
			}
		}

		var bodyReader io.Reader
		if jsonBody != nil {
			bodyReader = bytes.NewReader(jsonBody)
		}
		req, err := http.NewRequestWithContext(ctx, method, fullURL, bodyReader)
		if err != nil {
			return fmt.Errorf("failed to create request: %w", err)
		}
		req.Header.Set("Accept", "application/json")
		if jsonBody != nil {
			req.Header.Set("Content-Type", "application/json")
		}

		resp, err := c.httpClient.Do(req)
		if err != nil {
			if ctx.Err() != nil {
				return ctx.Err()
			}
			lastErr = fmt.Errorf("request failed: %w", err)
			c.log.Debug("network error", zap.Error(err))
			continue
		}

		respBody, err := io.ReadAll(resp.Body)
		_ = resp.Body.Close()
		if err != nil {
			lastErr = fmt.Errorf("failed to read response: %w", err)
			continue
		}
		c.log.Debug("response", zap.Int("status", resp.StatusCode))

		if resp.StatusCode >= 500 {
			lastErr = decodeAPIError(resp.StatusCode, respBody)
			continue
		}
		if resp.StatusCode >= 400 {
			return decodeAPIError(resp.StatusCode, respBody)
		}

		if result != nil && len(respBody) > 0 {
			if err := json.Unmarshal(respBody, result); err != nil {
				return fmt.Errorf("failed to parse response: %w", err)
			}
		}
		return nil
	}

	if attempts == 1 {
		return lastErr
	}
	return fmt.Errorf("request failed after %d retries: %w", c.retries, lastErr)
}

// APIError is an error response from the agent.
type APIError struct {
	ErrorInfo struct {
		Status  int    `json:"status"`
		Message string `json:"message"`
	} `json:"error"`
}

// NewAPIError builds an APIError.
func NewAPIError(status int, message string) *APIError {
	e := &APIError{}
	e.ErrorInfo.Status = status
	e.ErrorInfo.Message = message
	return e
}

func (e *APIError) Error() string {
	return fmt.Sprintf("agent error %d: %s", e.ErrorInfo.Status, e.ErrorInfo.Message)
}

// IsNotFound reports whether err is a 404 from the agent.
func IsNotFound(err error) bool {
	var apiErr *APIError
	return errors.As(err, &apiErr) && apiErr.ErrorInfo.Status == http.StatusNotFound
}

func decodeAPIError(status int, body []byte) error {
	var apiErr APIError
	if err := json.Unmarshal(body, &apiErr); err == nil && apiErr.ErrorInfo.Message != "" {
		if apiErr.ErrorInfo.Status == 0 {
			apiErr.ErrorInfo.Status = status
		}
		return &apiErr
	}
	return NewAPIError(status, strings.TrimSpace(string(body)))
}
