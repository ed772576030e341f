package fetch

import (
	"bytes"
	"fmt"
	"io"
	"os"
	"path/filepath"
	"sort"
	"strings"
	"time"

	"github.com/edsrzf/mmap-go"
	"go.uber.org/zap"

	"github.com/wegman-software/osmworld/internal/logger"
)

// TimestampFormat is the layout of the timestamp in cached file names
const TimestampFormat = "20060102_150405"

const cacheExt = ".osm"

// Cache stores downloaded documents verbatim as <dir>/<prefix><timestamp>.osm
type Cache struct {
	dir    string
	prefix string
}

// NewCache creates a cache rooted at dir
func NewCache(dir, prefix string) *Cache {
	return &Cache{dir: dir, prefix: prefix}
}

// Path returns the file name used for a document saved at t
func (c *Cache) Path(t time.Time) string {
	return filepath.Join(c.dir, c.prefix+t.Format(TimestampFormat)+cacheExt)
}

// Save writes data to the cache and returns its path
func (c *Cache) Save(data []byte, now time.Time) (string, error) {
	if err := os.MkdirAll(c.dir, 0755); err != nil {
		return "", fmt.Errorf("failed to create cache directory: %w", err)
	}

	path := c.Path(now)
	tmpFile := path + ".tmp"
	if err := os.WriteFile(tmpFile, data, 0644); err != nil {
		os.Remove(tmpFile)
		return "", fmt.Errorf("failed to write cache file: %w", err)
	}

	// Rename to final name
	if err := os.Rename(tmpFile, path); err != nil {
		os.Remove(tmpFile)
		return "", fmt.Errorf("failed to rename cache file: %w", err)
	}

	logger.Get().Debug("Saved map data", zap.String("path", path))
	return path, nil
}

// Latest returns the newest cached document, or "" when the cache is empty
func (c *Cache) Latest() (string, error) {
	entries, err := os.ReadDir(c.dir)
	if err != nil {
		if os.IsNotExist(err) {
			return "", nil
		}
		return "", fmt.Errorf("failed to read cache directory: %w", err)
	}

	var names []string
	for _, e := range entries {
		name := e.Name()
		if e.IsDir() || !strings.HasPrefix(name, c.prefix) || !strings.HasSuffix(name, cacheExt) {
			continue
		}
		names = append(names, name)
	}
	if len(names) == 0 {
		return "", nil
	}

	// Timestamps sort lexically
	sort.Strings(names)
	return filepath.Join(c.dir, names[len(names)-1]), nil
}

// Mapped is a read-only memory mapping of a cached document
type Mapped struct {
	file   *os.File
	data   mmap.MMap
	reader *bytes.Reader
}

// Open memory-maps a cached document
func Open(path string) (*Mapped, error) {
	f, err := os.Open(path)
	if err != nil {
		return nil, fmt.Errorf("failed to open cache file: %w", err)
	}

	info, err := f.Stat()
	if err != nil {
		f.Close()
		return nil, fmt.Errorf("failed to stat cache file: %w", err)
	}

	m := &Mapped{file: f}
	if info.Size() > 0 {
		data, err := mmap.Map(f, mmap.RDONLY, 0)
		if err != nil {
			f.Close()
			return nil, fmt.Errorf("failed to mmap cache file: %w", err)
		}
		m.data = data
	}
	m.reader = bytes.NewReader(m.data)
	return m, nil
}

// Read implements io.Reader over the mapped bytes
func (m *Mapped) Read(p []byte) (int, error) {
	return m.reader.Read(p)
}

// Bytes returns the mapped document. It is invalid after Close.
func (m *Mapped) Bytes() []byte {
	return m.data
}

// Close unmaps the document and closes the file
func (m *Mapped) Close() error {
	var err error
	if m.data != nil {
		err = m.data.Unmap()
		m.data = nil
	}
	if cerr := m.file.Close(); err == nil {
		err = cerr
	}
	return err
}

var _ io.ReadCloser = (*Mapped)(nil)
