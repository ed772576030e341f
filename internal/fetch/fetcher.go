package fetch

import (
	"context"
	"fmt"
	"io"
	"net/http"
	"strconv"
	"strings"

	"github.com/dustin/go-humanize"
	"go.uber.org/zap"

	"github.com/wegman-software/osmworld/internal/logger"
)

// Fetcher downloads map extracts from an OSM API endpoint
type Fetcher struct {
	apiURL string
	client *Client
}

// NewFetcher creates a new map fetcher. apiURL is the API root, e.g.
// https://api.openstreetmap.org/api/0.6/
func NewFetcher(apiURL string, client *Client) *Fetcher {
	if client == nil {
		client = DefaultClient()
	}
	if !strings.HasSuffix(apiURL, "/") {
		apiURL += "/"
	}
	return &Fetcher{apiURL: apiURL, client: client}
}

// MapURL returns the map request URL for a minlon,minlat,maxlon,maxlat box
func (f *Fetcher) MapURL(bbox [4]float64) string {
	parts := make([]string, len(bbox))
	for i, v := range bbox {
		parts[i] = strconv.FormatFloat(v, 'f', -1, 64)
	}
	return f.apiURL + "map?bbox=" + strings.Join(parts, ",")
}

// Fetch downloads the raw XML of the extract covering bbox
func (f *Fetcher) Fetch(ctx context.Context, bbox [4]float64) ([]byte, error) {
	log := logger.Get()
	url := f.MapURL(bbox)

	log.Debug("Fetching map data", zap.String("url", url))

	resp, err := f.client.Get(ctx, url)
	if err != nil {
		return nil, fmt.Errorf("failed to fetch map data: %w", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		return nil, fmt.Errorf("unexpected status code: %d", resp.StatusCode)
	}

	data, err := io.ReadAll(resp.Body)
	if err != nil {
		return nil, fmt.Errorf("failed to read map data: %w", err)
	}

	log.Info("Downloaded map data", zap.String("size", humanize.Bytes(uint64(len(data)))))
	return data, nil
}
