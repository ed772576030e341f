package cmd

import (
	"context"
	"fmt"
	"os"
	"os/signal"
	"syscall"

	"github.com/prometheus/client_golang/prometheus"
	"go.uber.org/zap"

	"github.com/wegman-software/osmworld/internal/export"
	"github.com/wegman-software/osmworld/internal/logger"
	"github.com/wegman-software/osmworld/internal/metrics"
	"github.com/wegman-software/osmworld/internal/pipeline"
	"github.com/wegman-software/osmworld/internal/style"
)

// session bundles what a command needs to run a load
type session struct {
	coordinator *pipeline.Coordinator
	filters     export.Filters
	heights     *style.Runtime
}

func (s *session) Close() {
	if s.heights != nil {
		s.heights.Close()
	}
}

// signalContext is cancelled on SIGINT or SIGTERM
func signalContext() (context.Context, context.CancelFunc) {
	return signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
}

// newSession validates the configuration and wires the coordinator with
// metrics, the height hook and the tag filters it names
func newSession(ctx context.Context) (*session, error) {
	log := logger.Get()

	if err := cfg.Validate(); err != nil {
		return nil, fmt.Errorf("invalid configuration: %w", err)
	}

	s := &session{}
	var opts []pipeline.Option

	loadMetrics, err := metrics.NewLoadMetrics(prometheus.DefaultRegisterer)
	if err != nil {
		return nil, err
	}
	opts = append(opts, pipeline.WithMetrics(loadMetrics))

	if cfg.MetricsAddr != "" {
		go func() {
			if err := loadMetrics.Serve(ctx, cfg.MetricsAddr); err != nil {
				log.Warn("Metrics endpoint stopped", zap.Error(err))
			}
		}()
	}

	if cfg.MetricsInterval > 0 {
		opts = append(opts, pipeline.WithSampler(
			metrics.NewSampler(cfg.MetricsInterval, logger.Named("system"), prometheus.DefaultRegisterer)))
		log.Info("System metrics collection started", zap.Duration("interval", cfg.MetricsInterval))
	}

	if cfg.StyleFile != "" {
		rt := style.NewRuntime(cfg.ExtrusionDepth)
		if err := rt.LoadFile(cfg.StyleFile); err != nil {
			rt.Close()
			return nil, err
		}
		if !rt.HasHeightFunction() {
			log.Warn("Style script defines no building_height, using default depth",
				zap.String("style", cfg.StyleFile))
		}
		s.heights = rt
		opts = append(opts, pipeline.WithHeights(rt))
	}

	if cfg.FilterFile != "" {
		filterCfg, err := style.LoadConfig(cfg.FilterFile)
		if err != nil {
			s.Close()
			return nil, err
		}
		s.filters = export.FiltersFromConfig(filterCfg)
		opts = append(opts, pipeline.WithBuildingFilter(s.filters.Buildings))
	}

	s.coordinator = pipeline.NewCoordinator(cfg, opts...)
	return s, nil
}

// load runs one load through a World so the model is only used once ready
func (s *session) load(ctx context.Context) (*pipeline.Model, error) {
	var world pipeline.World
	if err := world.Load(ctx, s.coordinator); err != nil {
		return nil, err
	}
	return world.Model(), nil
}
