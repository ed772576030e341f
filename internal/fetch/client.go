// Package fetch downloads map extracts over HTTP and keeps a local cache
// of the raw documents.
package fetch

import (
	"context"
	"fmt"
	"net/http"
	"time"
)

const userAgent = "osmworld/1.0"

// Client performs HTTP GETs with retries on network errors and 5xx responses
type Client struct {
	http       *http.Client
	maxRetries int
	retryDelay time.Duration
}

// NewClient creates a new retrying HTTP client
func NewClient(timeout time.Duration, maxRetries int, retryDelay time.Duration) *Client {
	return &Client{
		http: &http.Client{
			Timeout: timeout,
		},
		maxRetries: maxRetries,
		retryDelay: retryDelay,
	}
}

// DefaultClient returns a client with a 60s timeout and 3 retries
func DefaultClient() *Client {
	return NewClient(60*time.Second, 3, 5*time.Second)
}

// Get performs an HTTP GET with retries. Any non-5xx response is returned to
// the caller, which owns the body.
func (c *Client) Get(ctx context.Context, url string) (*http.Response, error) {
	var lastErr error

	for attempt := 0; attempt <= c.maxRetries; attempt++ {
		if attempt > 0 {
			select {
			case <-ctx.Done():
				return nil, ctx.Err()
			case <-time.After(c.retryDelay):
			}
		}

		req, err := http.NewRequestWithContext(ctx, http.MethodGet, url, nil)
		if err != nil {
			return nil, err
		}
		req.Header.Set("User-Agent", userAgent)

		resp, err := c.http.Do(req)
		if err != nil {
			if ctx.Err() != nil {
				return nil, ctx.Err()
			}
			lastErr = err
			continue
		}

		// Retry on server errors
		if resp.StatusCode >= 500 {
			resp.Body.Close()
			lastErr = fmt.Errorf("server error: %d", resp.StatusCode)
			continue
		}

		return resp, nil
	}

	return nil, fmt.Errorf("max retries exceeded: %w", lastErr)
}
