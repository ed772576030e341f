package pipeline

import (
	"context"
	"sync/atomic"

	"go.uber.org/zap"

	"github.com/wegman-software/osmworld/internal/logger"
)

// Loader produces a model; *Coordinator implements it
type Loader interface {
	Run(ctx context.Context) (*Model, error)
}

// World holds the current model. Readers see either no model or a complete
// one, never a partially built graph.
type World struct {
	current atomic.Pointer[Model]
	ready   atomic.Bool
}

// Ready reports whether a load has completed successfully
func (w *World) Ready() bool {
	return w.ready.Load()
}

// Model returns the current model, nil until Ready
func (w *World) Model() *Model {
	if !w.ready.Load() {
		return nil
	}
	return w.current.Load()
}

// Load runs l and publishes its model. On failure the previous model and
// readiness are kept and the error is returned.
func (w *World) Load(ctx context.Context, l Loader) error {
	model, err := l.Run(ctx)
	if err != nil {
		logger.Get().Error("Map load failed", zap.Error(err), zap.Bool("keeping_previous", w.Ready()))
		return err
	}

	w.current.Store(model)
	w.ready.Store(true)
	return nil
}
