// Package http provides the outbound HTTP fetch capability used for page
// metadata and image downloads.
package http

import (
	"compress/gzip"
	"context"
	"crypto/tls"
	"fmt"
	"io"
	"net/http"
	"time"
)

// ClientConfig represents HTTP client configuration
type ClientConfig struct {
	Timeout            time.Duration
	UserAgent          string
	Headers            map[string]string
	InsecureSkipVerify bool
	MaxBodyBytes       int64
}

// DefaultConfig returns default HTTP client configuration
func DefaultConfig() *ClientConfig {
	return &ClientConfig{
		Timeout:      15 * time.Second,
		UserAgent:    "Mozilla/5.0 (compatible; SmartURLView/1.0)",
		Headers:      make(map[string]string),
		MaxBodyBytes: 5 * 1024 * 1024,
	}
}

// RequestOptions overrides client defaults for a single request.
// Zero values fall back to the client configuration.
type RequestOptions struct {
	Timeout      time.Duration
	UserAgent    string
	Headers      map[string]string
	MaxBodyBytes int64
}

// Response is a fully read HTTP response.
type Response struct {
	StatusCode int
	Header     http.Header
	Body       []byte
}

// Fetcher performs bounded GET requests. Implementations must honour the
// timeout and never retry.
type Fetcher interface {
	Get(ctx context.Context, url string, opts RequestOptions) (*Response, error)
}

// Client represents an HTTP client with a per-request timeout
type Client struct {
	client *http.Client
	config *ClientConfig
}

// Ensure Client implements Fetcher
var _ Fetcher = (*Client)(nil)

// NewClient creates a new HTTP client with the given configuration
func NewClient(config *ClientConfig) *Client {
	if config == nil {
		config = DefaultConfig()
	}

	transport := http.DefaultTransport.(*http.Transport).Clone()
	if config.InsecureSkipVerify {
		transport.TLSClientConfig = &tls.Config{InsecureSkipVerify: true} //nolint:gosec // opt-in via configuration
	}

	return &Client{
		client: &http.Client{
			Timeout:   config.Timeout,
			Transport: transport,
			CheckRedirect: func(req *http.Request, via []*http.Request) error {
				if len(via) >= 10 {
					return fmt.Errorf("too many redirects")
				}
				return nil
			},
		},
		config: config,
	}
}

// Get performs a GET request and reads the body up to the configured limit.
// Non-2xx responses are returned as-is; only transport failures are errors.
func (c *Client) Get(ctx context.Context, url string, opts RequestOptions) (*Response, error) {
	timeout := opts.Timeout
	if timeout <= 0 {
		timeout = c.config.Timeout
	}
	if timeout > 0 {
		var cancel context.CancelFunc
		ctx, cancel = context.WithTimeout(ctx, timeout)
		defer cancel()
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodGet, url, nil)
	if err != nil {
		return nil, fmt.Errorf("failed to create GET request: %w", err)
	}

	userAgent := opts.UserAgent
	if userAgent == "" {
		userAgent = c.config.UserAgent
	}
	if userAgent != "" {
		req.Header.Set("User-Agent", userAgent)
	}
	for key, value := range c.config.Headers {
		req.Header.Set(key, value)
	}
	for key, value := range opts.Headers {
		req.Header.Set(key, value)
	}

	resp, err := c.client.Do(req)
	if err != nil {
		return nil, fmt.Errorf("HTTP request failed: %w", err)
	}

	limit := opts.MaxBodyBytes
	if limit <= 0 {
		limit = c.config.MaxBodyBytes
	}

	body, err := readBody(resp, limit)
	if err != nil {
		return nil, err
	}

	return &Response{
		StatusCode: resp.StatusCode,
		Header:     resp.Header,
		Body:       body,
	}, nil
}

// readBody reads and closes the response body, decompressing gzip payloads
// the transport did not already handle.
func readBody(resp *http.Response, limit int64) ([]byte, error) {
	defer resp.Body.Close()

	var reader io.Reader = resp.Body
	if !resp.Uncompressed && resp.Header.Get("Content-Encoding") == "gzip" {
		gz, err := gzip.NewReader(resp.Body)
		if err != nil {
			return nil, fmt.Errorf("failed to create gzip reader: %w", err)
		}
		defer gz.Close()
		reader = gz
	}

	if limit > 0 {
		reader = io.LimitReader(reader, limit)
	}

	body, err := io.ReadAll(reader)
	if err != nil {
		return nil, fmt.Errorf("failed to read response body: %w", err)
	}
	return body, nil
}
