package pipeline

import (
	"bytes"
	"compress/gzip"
	"context"
	"fmt"
	"io"
	"os"
	"strings"
	"time"

	"go.uber.org/zap"

	"github.com/wegman-software/osmworld/internal/fetch"
	"github.com/wegman-software/osmworld/internal/logger"
)

// Source provides the raw XML of one map load
type Source interface {
	Open(ctx context.Context) (io.ReadCloser, error)
	String() string
}

// FileSource reads a local extract. Plain files are memory-mapped, .gz
// files are decompressed while streaming.
type FileSource struct {
	Path string
}

func (s FileSource) String() string { return s.Path }

// Open opens the extract
func (s FileSource) Open(ctx context.Context) (io.ReadCloser, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}

	if !strings.HasSuffix(s.Path, ".gz") {
		m, err := fetch.Open(s.Path)
		if err != nil {
			return nil, err
		}
		return m, nil
	}

	f, err := os.Open(s.Path)
	if err != nil {
		return nil, fmt.Errorf("failed to open input file: %w", err)
	}
	gz, err := gzip.NewReader(f)
	if err != nil {
		f.Close()
		return nil, fmt.Errorf("failed to create gzip reader: %w", err)
	}
	return &gzipFile{Reader: gz, file: f}, nil
}

type gzipFile struct {
	*gzip.Reader
	file *os.File
}

func (g *gzipFile) Close() error {
	err := g.Reader.Close()
	if cerr := g.file.Close(); err == nil {
		err = cerr
	}
	return err
}

// FetchSource downloads the extract covering BBox and optionally keeps a
// copy in Cache
type FetchSource struct {
	Fetcher *fetch.Fetcher
	BBox    [4]float64
	Cache   *fetch.Cache // nil disables saving
}

func (s FetchSource) String() string { return s.Fetcher.MapURL(s.BBox) }

// Open fetches the document. A failed cache write is logged and does not fail the load.
func (s FetchSource) Open(ctx context.Context) (io.ReadCloser, error) {
	data, err := s.Fetcher.Fetch(ctx, s.BBox)
	if err != nil {
		return nil, err
	}

	if s.Cache != nil {
		path, err := s.Cache.Save(data, time.Now())
		if err != nil {
			logger.Get().Warn("Failed to save map data", zap.Error(err))
		} else {
			logger.Get().Info("Saved map data", zap.String("path", path))
		}
	}

	return io.NopCloser(bytes.NewReader(data)), nil
}
