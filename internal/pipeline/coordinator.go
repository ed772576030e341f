// Package pipeline runs a complete map load: location, source, graph,
// elevation and building meshes.
package pipeline

import (
	"context"
	"fmt"
	"time"

	"go.uber.org/zap"
	"golang.org/x/sync/errgroup"

	"github.com/wegman-software/osmworld/internal/config"
	"github.com/wegman-software/osmworld/internal/elevation"
	"github.com/wegman-software/osmworld/internal/fetch"
	"github.com/wegman-software/osmworld/internal/logger"
	"github.com/wegman-software/osmworld/internal/mapgraph"
	"github.com/wegman-software/osmworld/internal/mesh"
	"github.com/wegman-software/osmworld/internal/metrics"
	"github.com/wegman-software/osmworld/internal/proj"
	"github.com/wegman-software/osmworld/internal/style"
)

// Coordinator orchestrates one map load
type Coordinator struct {
	cfg *config.Config

	source   Source
	location LocationProvider
	service  elevation.Service
	client   *fetch.Client
	elevHTTP *fetch.Client
	heights  *style.Runtime
	filter   *style.Filter
	metrics  *metrics.LoadMetrics
	sampler  *metrics.Sampler
}

// Option configures a Coordinator
type Option func(*Coordinator)

// WithSource overrides the source chosen from the configuration
func WithSource(s Source) Option {
	return func(c *Coordinator) { c.source = s }
}

// WithLocation sets the provider consulted for the map center
func WithLocation(p LocationProvider) Option {
	return func(c *Coordinator) { c.location = p }
}

// WithElevationService overrides the HTTP elevation service
func WithElevationService(s elevation.Service) Option {
	return func(c *Coordinator) { c.service = s }
}

// WithClient sets the HTTP client used for map downloads
func WithClient(client *fetch.Client) Option {
	return func(c *Coordinator) { c.client = client }
}


// WithHeights sets the Lua runtime deciding building extrusion depth
func WithHeights(r *style.Runtime) Option {
	return func(c *Coordinator) { c.heights = r }
}

// WithBuildingFilter restricts which buildings get a mesh
func WithBuildingFilter(f *style.Filter) Option {
	return func(c *Coordinator) { c.filter = f }
}

// WithMetrics records load metrics
func WithMetrics(m *metrics.LoadMetrics) Option {
	return func(c *Coordinator) { c.metrics = m }
}

// WithSampler samples system usage while a load runs
func WithSampler(s *metrics.Sampler) Option {
	return func(c *Coordinator) { c.sampler = s }
}

// NewCoordinator creates a coordinator for cfg
func NewCoordinator(cfg *config.Config, opts ...Option) *Coordinator {
	c := &Coordinator{
		cfg:      cfg,
		location: StaticLocation(cfg.Location()),
	}
	for _, opt := range opts {
		opt(c)
	}
	if c.client == nil {
		c.client = fetch.DefaultClient()
	}
	// elevation lookups are sent once; a failed chunk falls back to zero
	c.elevHTTP = elevation.NewClient(cfg.ElevationTimeout)
	return c
}

// Run performs the load and returns the finished model
func (c *Coordinator) Run(ctx context.Context) (*Model, error) {
	start := time.Now()
	model, err := c.run(ctx)
	if err != nil {
		c.metrics.ObserveLoad(metrics.ResultFailed, time.Since(start))
		return nil, err
	}

	model.Duration = time.Since(start)
	c.metrics.ObserveLoad(metrics.ResultOK, model.Duration)
	c.recordModel(model)
	return model, nil
}

func (c *Coordinator) run(ctx context.Context) (*Model, error) {
	log := logger.Get()

	if c.sampler != nil {
		samplerCtx, cancel := context.WithCancel(ctx)
		defer cancel()
		go c.sampler.Start(samplerCtx)
	}

	zoom, err := proj.ParseZoom(c.cfg.Zoom)
	if err != nil {
		return nil, err
	}
	center := ResolveLocation(ctx, c.location, c.cfg.LocationTimeout, c.cfg.Location())

	src := c.sourceFor(center, zoom.Radius())
	log.Info("Loading map", zap.Stringer("source", src),
		zap.Float64("lon", center.Lon), zap.Float64("lat", center.Lat), zap.Int("zoom", c.cfg.Zoom))

	r, err := src.Open(ctx)
	if err != nil {
		return nil, fmt.Errorf("failed to open map source: %w", err)
	}
	defer r.Close()

	opts := mapgraph.Options{
		Center:     center,
		ZoomRadius: zoom.Radius(),
		Trace:      c.cfg.Trace,
	}
	var enricher *elevation.Enricher
	if svc := c.elevationService(); svc != nil {
		enricher = elevation.NewEnricher(svc, c.cfg.ElevationBatchSize, c.cfg.ElevationTimeout)
		opts.Enricher = enricher
	}

	g, err := mapgraph.Parse(ctx, r, opts)
	if err != nil {
		return nil, fmt.Errorf("failed to build map graph: %w", err)
	}

	model := &Model{
		Graph:  g,
		Source: src.String(),
	}
	if enricher != nil {
		model.Elevation = enricher.LastStats()
	}

	if err := c.buildMeshes(ctx, model); err != nil {
		return nil, err
	}

	model.LoadedAt = time.Now()
	return model, nil
}

func (c *Coordinator) sourceFor(center proj.Location, radius float64) Source {
	if c.source != nil {
		return c.source
	}
	if c.cfg.InputFile != "" {
		return FileSource{Path: c.cfg.InputFile}
	}

	src := FetchSource{
		Fetcher: fetch.NewFetcher(c.cfg.MapAPIURL, c.client),
		BBox:    proj.ComputeBounds(nil, center, radius).BBox(),
	}
	// Validate has already rejected a malformed extent
	if extent, _ := c.cfg.FetchExtent(); extent != nil {
		src.BBox = extent.Array()
		if !extent.Contains(center) {
			logger.Get().Warn("Fetch extent does not contain the projection origin",
				zap.Float64("lon", center.Lon), zap.Float64("lat", center.Lat),
				zap.String("extent", c.cfg.Extent))
		}
	}
	if c.cfg.SaveMap {
		src.Cache = fetch.NewCache(c.cfg.CacheDir, c.cfg.CachePrefix)
	}
	return src
}

func (c *Coordinator) elevationService() elevation.Service {
	if !c.cfg.Elevation {
		return nil
	}
	if c.service != nil {
		return c.service
	}
	return elevation.NewHTTPService(c.cfg.ElevationURL, c.cfg.ElevationUser, c.elevHTTP)
}

// buildMeshes extrudes every building in parallel. A building whose
// footprint cannot be triangulated is recorded and skipped.
func (c *Coordinator) buildMeshes(ctx context.Context, model *Model) error {
	log := logger.Get()
	buildings := model.Graph.Buildings().All()

	meshes := make([]*mesh.Mesh, len(buildings))
	errs := make([]error, len(buildings))

	g, gctx := errgroup.WithContext(ctx)
	workers := c.cfg.Workers
	if workers < 1 {
		workers = 1
	}
	g.SetLimit(workers)

	for i, b := range buildings {
		i, b := i, b
		if !c.filter.Match(b.Tags) {
			continue
		}
		g.Go(func() error {
			if err := gctx.Err(); err != nil {
				return err
			}
			meshes[i], errs[i] = mesh.ForBuilding(b, c.depth(b))
			return nil
		})
	}
	if err := g.Wait(); err != nil {
		return fmt.Errorf("mesh building interrupted: %w", err)
	}

	model.Meshes = make(map[uint32]*mesh.Mesh, len(buildings))
	model.MeshErrors = make(map[uint32]error)
	for i, b := range buildings {
		switch {
		case errs[i] != nil:
			model.MeshErrors[b.ID] = errs[i]
			log.Warn("Skipping building", zap.Uint32("id", b.ID), zap.Error(errs[i]))
		case meshes[i] != nil:
			model.MeshIDs = append(model.MeshIDs, b.ID)
			model.Meshes[b.ID] = meshes[i]
		}
	}

	log.Info("Building meshes built",
		zap.Int("meshes", len(model.Meshes)),
		zap.Int("skipped", len(model.MeshErrors)),
		zap.Int("workers", workers))
	return nil
}

// depth returns the extrusion depth of a building
func (c *Coordinator) depth(b *mapgraph.Building) float64 {
	if c.heights != nil {
		return c.heights.Height(b.Tags)
	}
	return c.cfg.ExtrusionDepth
}

func (c *Coordinator) recordModel(m *Model) {
	if c.metrics == nil {
		return
	}
	g := m.Graph
	c.metrics.SetEntities("nodes", g.Nodes().Len())
	c.metrics.SetEntities("ways", g.Ways().Len())
	c.metrics.SetEntities("relations", g.Relations().Len())
	c.metrics.SetEntities("highways", g.Highways().Len())
	c.metrics.SetEntities("waterways", g.Waterways().Len())
	c.metrics.SetEntities("buildings", g.Buildings().Len())
	c.metrics.SetUnresolved(g.Unresolved())
	c.metrics.AddElevation(m.Elevation.Requests, m.Elevation.Failed)
	c.metrics.AddMeshes(len(m.Meshes), len(m.MeshErrors))
}
