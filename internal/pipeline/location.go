package pipeline

import (
	"context"
	"time"

	"go.uber.org/zap"

	"github.com/wegman-software/osmworld/internal/logger"
	"github.com/wegman-software/osmworld/internal/proj"
)

// LocationProvider supplies the map center when the document has no bounds
type LocationProvider interface {
	Location(ctx context.Context) (proj.Location, error)
}

// StaticLocation always returns itself
type StaticLocation proj.Location

// Location implements LocationProvider
func (l StaticLocation) Location(context.Context) (proj.Location, error) {
	return proj.Location(l), nil
}

// ResolveLocation asks p for a location, waiting at most timeout. A failure,
// a timeout or a nil provider yields fallback; the load is never aborted here.
func ResolveLocation(ctx context.Context, p LocationProvider, timeout time.Duration, fallback proj.Location) proj.Location {
	if p == nil {
		return fallback
	}

	if timeout > 0 {
		var cancel context.CancelFunc
		ctx, cancel = context.WithTimeout(ctx, timeout)
		defer cancel()
	}

	type result struct {
		loc proj.Location
		err error
	}
	ch := make(chan result, 1)
	go func() {
		loc, err := p.Location(ctx)
		ch <- result{loc, err}
	}()

	select {
	case r := <-ch:
		if r.err != nil {
			logger.Get().Warn("Location unavailable, using fallback",
				zap.Error(r.err), zap.Float64("lon", fallback.Lon), zap.Float64("lat", fallback.Lat))
			return fallback
		}
		return r.loc
	case <-ctx.Done():
		logger.Get().Warn("Location lookup timed out, using fallback",
			zap.Duration("timeout", timeout), zap.Float64("lon", fallback.Lon), zap.Float64("lat", fallback.Lat))
		return fallback
	}
}
