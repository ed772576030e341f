// Package elevation assigns terrain heights to map nodes using a batched
// elevation lookup service.
package elevation

import (
	"bufio"
	"context"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"strconv"
	"strings"
	"time"

	"github.com/wegman-software/osmworld/internal/fetch"
)

// Service looks up the elevation in meters of each lats[i], lngs[i] pair
type Service interface {
	Lookup(ctx context.Context, lats, lngs []float64) ([]int, error)
}

// HTTPService queries a GeoNames-style srtm3 endpoint
type HTTPService struct {
	baseURL  string
	username string
	client   *fetch.Client
}

// DefaultTimeout bounds one lookup request
const DefaultTimeout = 30 * time.Second

// NewClient returns a client that sends each lookup exactly once
func NewClient(timeout time.Duration) *fetch.Client {
	if timeout <= 0 {
		timeout = DefaultTimeout
	}
	return fetch.NewClient(timeout, 0, 0)
}

// NewHTTPService creates a service for baseURL, e.g.
// http://api.geonames.org/srtm3?
// A nil client defaults to NewClient(DefaultTimeout).
func NewHTTPService(baseURL, username string, client *fetch.Client) *HTTPService {
	if client == nil {
		client = NewClient(DefaultTimeout)
	}
	if !strings.HasSuffix(baseURL, "?") && !strings.HasSuffix(baseURL, "&") {
		if strings.Contains(baseURL, "?") {
			baseURL += "&"
		} else {
			baseURL += "?"
		}
	}
	return &HTTPService{baseURL: baseURL, username: username, client: client}
}

// RequestURL returns the lookup URL for one chunk
func (s *HTTPService) RequestURL(lats, lngs []float64) string {
	return s.baseURL + "lats=" + joinCoords(lats) + "&lngs=" + joinCoords(lngs) +
		"&username=" + url.QueryEscape(s.username)
}

// Lookup performs one request for the whole chunk
func (s *HTTPService) Lookup(ctx context.Context, lats, lngs []float64) ([]int, error) {
	resp, err := s.client.Get(ctx, s.RequestURL(lats, lngs))
	if err != nil {
		return nil, fmt.Errorf("failed to fetch elevations: %w", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		return nil, fmt.Errorf("unexpected status code: %d", resp.StatusCode)
	}

	return ParseResponse(resp.Body)
}

// ParseResponse parses a newline-delimited list of integers.
// Blank lines are skipped and CRLF line endings are accepted.
func ParseResponse(r io.Reader) ([]int, error) {
	var values []int
	scanner := bufio.NewScanner(r)

	for scanner.Scan() {
		line := strings.TrimSpace(scanner.Text())
		if line == "" {
			continue
		}
		v, err := strconv.Atoi(line)
		if err != nil {
			return nil, fmt.Errorf("invalid elevation %q: %w", line, err)
		}
		values = append(values, v)
	}

	if err := scanner.Err(); err != nil {
		return nil, fmt.Errorf("failed to read elevations: %w", err)
	}
	return values, nil
}

func joinCoords(values []float64) string {
	parts := make([]string, len(values))
	for i, v := range values {
		parts[i] = strconv.FormatFloat(v, 'f', -1, 64)
	}
	return strings.Join(parts, ",")
}
