// Package metrics exposes load counters to Prometheus and samples host
// resource usage while a load runs.
package metrics

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	"go.uber.org/zap"

	"github.com/wegman-software/osmworld/internal/logger"
)

// Load result label values
const (
	ResultOK     = "ok"
	ResultFailed = "failed"
)

// LoadMetrics bundles the Prometheus metrics of the load pipeline. All
// methods are safe on a nil receiver so callers can run without metrics.
type LoadMetrics struct {
	gatherer prometheus.Gatherer

	Loads        *prometheus.CounterVec
	LoadDuration prometheus.Histogram
	Entities     *prometheus.GaugeVec
	Unresolved   prometheus.Gauge

	ElevationRequests prometheus.Counter
	ElevationFailed   prometheus.Counter

	Meshes       prometheus.Counter
	MeshFailures prometheus.Counter
}

// NewLoadMetrics registers the load metrics against reg, defaulting to the
// global Prometheus registry when nil. Registering twice returns the
// already registered collectors.
func NewLoadMetrics(reg prometheus.Registerer) (*LoadMetrics, error) {
	if reg == nil {
		reg = prometheus.DefaultRegisterer
	}
	gatherer := prometheus.DefaultGatherer
	if g, ok := reg.(prometheus.Gatherer); ok {
		gatherer = g
	}

	m := &LoadMetrics{gatherer: gatherer}
	var err error

	if m.Loads, err = register(reg, prometheus.NewCounterVec(prometheus.CounterOpts{
		Name: "osmworld_loads_total",
		Help: "Map loads by result.",
	}, []string{"result"}), "osmworld_loads_total"); err != nil {
		return nil, err
	}
	if m.LoadDuration, err = register(reg, prometheus.NewHistogram(prometheus.HistogramOpts{
		Name:    "osmworld_load_duration_seconds",
		Help:    "Duration of a full map load.",
		Buckets: []float64{0.1, 0.5, 1, 2, 5, 10, 30, 60, 120, 300},
	}), "osmworld_load_duration_seconds"); err != nil {
		return nil, err
	}
	if m.Entities, err = register(reg, prometheus.NewGaugeVec(prometheus.GaugeOpts{
		Name: "osmworld_entities",
		Help: "Entities in the current map, by kind.",
	}, []string{"kind"}), "osmworld_entities"); err != nil {
		return nil, err
	}
	if m.Unresolved, err = register(reg, prometheus.NewGauge(prometheus.GaugeOpts{
		Name: "osmworld_unresolved_references",
		Help: "References of the current map that pointed at missing entities.",
	}), "osmworld_unresolved_references"); err != nil {
		return nil, err
	}
	if m.ElevationRequests, err = register(reg, prometheus.NewCounter(prometheus.CounterOpts{
		Name: "osmworld_elevation_requests_total",
		Help: "Elevation service requests, one per chunk.",
	}), "osmworld_elevation_requests_total"); err != nil {
		return nil, err
	}
	if m.ElevationFailed, err = register(reg, prometheus.NewCounter(prometheus.CounterOpts{
		Name: "osmworld_elevation_failed_chunks_total",
		Help: "Elevation chunks that failed and fell back to zero elevation.",
	}), "osmworld_elevation_failed_chunks_total"); err != nil {
		return nil, err
	}
	if m.Meshes, err = register(reg, prometheus.NewCounter(prometheus.CounterOpts{
		Name: "osmworld_meshes_total",
		Help: "Building meshes built.",
	}), "osmworld_meshes_total"); err != nil {
		return nil, err
	}
	if m.MeshFailures, err = register(reg, prometheus.NewCounter(prometheus.CounterOpts{
		Name: "osmworld_mesh_failures_total",
		Help: "Buildings skipped because their footprint could not be meshed.",
	}), "osmworld_mesh_failures_total"); err != nil {
		return nil, err
	}

	return m, nil
}

// ObserveLoad records one finished load
func (m *LoadMetrics) ObserveLoad(result string, d time.Duration) {
	if m == nil {
		return
	}
	m.Loads.WithLabelValues(result).Inc()
	m.LoadDuration.Observe(d.Seconds())
}

// SetEntities sets the entity count for one kind (nodes, ways, buildings ...)
func (m *LoadMetrics) SetEntities(kind string, n int) {
	if m == nil {
		return
	}
	m.Entities.WithLabelValues(kind).Set(float64(n))
}

// SetUnresolved sets the unresolved reference count of the current map
func (m *LoadMetrics) SetUnresolved(n int) {
	if m == nil {
		return
	}
	m.Unresolved.Set(float64(n))
}

// AddElevation adds the request and failed chunk counts of one enrichment run
func (m *LoadMetrics) AddElevation(requests, failed int) {
	if m == nil {
		return
	}
	m.ElevationRequests.Add(float64(requests))
	m.ElevationFailed.Add(float64(failed))
}

// AddMeshes adds built and failed mesh counts
func (m *LoadMetrics) AddMeshes(built, failed int) {
	if m == nil {
		return
	}
	m.Meshes.Add(float64(built))
	m.MeshFailures.Add(float64(failed))
}

// Handler exposes a /metrics handler for the registry the metrics were registered with
func (m *LoadMetrics) Handler() http.Handler {
	gatherer := prometheus.DefaultGatherer
	if m != nil && m.gatherer != nil {
		gatherer = m.gatherer
	}
	return promhttp.HandlerFor(gatherer, promhttp.HandlerOpts{})
}

// Serve serves /metrics on addr until ctx is cancelled
func (m *LoadMetrics) Serve(ctx context.Context, addr string) error {
	mux := http.NewServeMux()
	mux.Handle("/metrics", m.Handler())
	srv := &http.Server{Addr: addr, Handler: mux, ReadHeaderTimeout: 10 * time.Second}

	go func() {
		<-ctx.Done()
		shutdownCtx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
		defer cancel()
		_ = srv.Shutdown(shutdownCtx)
	}()

	logger.Named("metrics").Info("Serving metrics", zap.String("addr", addr))
	if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
		return fmt.Errorf("failed to serve metrics: %w", err)
	}
	return nil
}

func register[T prometheus.Collector](reg prometheus.Registerer, c T, name string) (T, error) {
	if err := reg.Register(c); err != nil {
		var are prometheus.AlreadyRegisteredError
		if errors.As(err, &are) {
			if existing, ok := are.ExistingCollector.(T); ok {
				return existing, nil
			}
			return c, fmt.Errorf("collector %s already registered with incompatible type", name)
		}
		return c, err
	}
	return c, nil
}
