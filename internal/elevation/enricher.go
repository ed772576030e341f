package elevation

import (
	"context"
	"fmt"
	"sync"
	"time"

	"go.uber.org/zap"

	"github.com/wegman-software/osmworld/internal/logger"
	"github.com/wegman-software/osmworld/internal/mapgraph"
)

// DefaultBatchSize is the largest chunk the public srtm3 service accepts
const DefaultBatchSize = 20

// ResponseMismatchError is returned when the service answers a chunk with
// a different number of values than were requested
type ResponseMismatchError struct {
	Expected int
	Got      int
}

func (e *ResponseMismatchError) Error() string {
	return fmt.Sprintf("elevation response has %d values, expected %d", e.Got, e.Expected)
}

// Stats summarizes one enrichment run
type Stats struct {
	Requests int // chunks sent to the service
	Failed   int // chunks that fell back to zero elevation
	Nodes    int
	Duration time.Duration
}

// Enricher assigns elevations to nodes chunk by chunk. Chunks are sent
// strictly one after another in node order.
type Enricher struct {
	service   Service
	batchSize int
	timeout   time.Duration

	mu   sync.Mutex
	last Stats
}

// NewEnricher creates an enricher. batchSize <= 0 selects DefaultBatchSize;
// timeout bounds each chunk request, zero means no limit.
func NewEnricher(service Service, batchSize int, timeout time.Duration) *Enricher {
	if batchSize <= 0 {
		batchSize = DefaultBatchSize
	}
	return &Enricher{
		service:   service,
		batchSize: batchSize,
		timeout:   timeout,
	}
}

// Enrich sets the elevation of every node. A chunk whose request fails, or
// whose response does not match the chunk length, gets elevation 0 for all
// of its nodes; later chunks are still sent.
func (e *Enricher) Enrich(ctx context.Context, nodes []*mapgraph.Node) Stats {
	log := logger.Get()
	start := time.Now()
	stats := Stats{Nodes: len(nodes)}

	lats := make([]float64, 0, e.batchSize)
	lngs := make([]float64, 0, e.batchSize)

	for offset := 0; offset < len(nodes); offset += e.batchSize {
		end := offset + e.batchSize
		if end > len(nodes) {
			end = len(nodes)
		}
		chunk := nodes[offset:end]

		lats, lngs = lats[:0], lngs[:0]
		for _, n := range chunk {
			lats = append(lats, n.Position.Geographic.Lat)
			lngs = append(lngs, n.Position.Geographic.Lon)
		}

		stats.Requests++
		values, err := e.lookup(ctx, lats, lngs)
		if err != nil {
			stats.Failed++
			log.Warn("Elevation chunk failed, using zero elevation",
				zap.Int("offset", offset),
				zap.Int("size", len(chunk)),
				zap.Error(err))
			for _, n := range chunk {
				n.Position.SetElevation(0)
			}
			continue
		}

		for i, n := range chunk {
			n.Position.SetElevation(float64(values[i]))
		}
	}

	stats.Duration = time.Since(start)
	e.mu.Lock()
	e.last = stats
	e.mu.Unlock()

	log.Info("Elevation enrichment complete",
		zap.Int("nodes", stats.Nodes),
		zap.Int("requests", stats.Requests),
		zap.Int("failed", stats.Failed),
		zap.Duration("duration", stats.Duration))

	return stats
}

func (e *Enricher) lookup(ctx context.Context, lats, lngs []float64) ([]int, error) {
	if e.timeout > 0 {
		var cancel context.CancelFunc
		ctx, cancel = context.WithTimeout(ctx, e.timeout)
		defer cancel()
	}

	values, err := e.service.Lookup(ctx, lats, lngs)
	if err != nil {
		return nil, err
	}
	if len(values) != len(lats) {
		return nil, &ResponseMismatchError{Expected: len(lats), Got: len(values)}
	}
	return values, nil
}

// EnrichNodes runs Enrich as a graph build stage. Chunk failures never
// fail the stage; only cancellation of ctx does.
func (e *Enricher) EnrichNodes(ctx context.Context, nodes []*mapgraph.Node) error {
	e.Enrich(ctx, nodes)
	return ctx.Err()
}

// LastStats returns the statistics of the most recent run
func (e *Enricher) LastStats() Stats {
	e.mu.Lock()
	defer e.mu.Unlock()
	return e.last
}
