package config

import (
	"fmt"
	"os"
	"runtime"
	"strconv"
	"strings"
	"time"

	"gopkg.in/yaml.v3"

	"github.com/wegman-software/osmworld/internal/proj"
)

// Extent is an explicit lon/lat box that replaces location and zoom when
// fetching map data
type Extent struct {
	MinLon, MinLat, MaxLon, MaxLat float64
}

// ParseExtent parses "minlon,minlat,maxlon,maxlat". An empty string yields nil.
func ParseExtent(s string) (*Extent, error) {
	if strings.TrimSpace(s) == "" {
		return nil, nil
	}

	parts := strings.Split(s, ",")
	if len(parts) != 4 {
		return nil, fmt.Errorf("extent needs minlon,minlat,maxlon,maxlat, got %d values", len(parts))
	}

	var v [4]float64
	for i, p := range parts {
		f, err := strconv.ParseFloat(strings.TrimSpace(p), 64)
		if err != nil {
			return nil, fmt.Errorf("invalid extent value %q: %w", p, err)
		}
		v[i] = f
	}

	e := &Extent{MinLon: v[0], MinLat: v[1], MaxLon: v[2], MaxLat: v[3]}
	switch {
	case e.MinLon >= e.MaxLon:
		return nil, fmt.Errorf("extent minlon %g must be below maxlon %g", e.MinLon, e.MaxLon)
	case e.MinLat >= e.MaxLat:
		return nil, fmt.Errorf("extent minlat %g must be below maxlat %g", e.MinLat, e.MaxLat)
	case e.MinLon < -180 || e.MaxLon > 180 || e.MinLat < -90 || e.MaxLat > 90:
		return nil, fmt.Errorf("extent %s outside the world", s)
	}
	return e, nil
}

// Contains reports whether loc lies inside the extent, edges included
func (e *Extent) Contains(loc proj.Location) bool {
	return loc.Lon >= e.MinLon && loc.Lon <= e.MaxLon && loc.Lat >= e.MinLat && loc.Lat <= e.MaxLat
}

// Center returns the midpoint of the extent
func (e *Extent) Center() proj.Location {
	return proj.Location{Lon: (e.MinLon + e.MaxLon) / 2, Lat: (e.MinLat + e.MaxLat) / 2}
}

// Array returns minlon, minlat, maxlon, maxlat
func (e *Extent) Array() [4]float64 {
	return [4]float64{e.MinLon, e.MinLat, e.MaxLon, e.MaxLat}
}

// Config holds the settings of a map load and its exports
type Config struct {
	// Location and extent
	Lon  float64 `yaml:"lon"`
	Lat  float64 `yaml:"lat"`
	Zoom int     `yaml:"zoom"` // 0..10, see proj.Zoom

	// Map source
	InputFile string `yaml:"input_file"` // local extract; fetched from MapAPIURL when empty
	MapAPIURL string `yaml:"map_api_url"`
	Extent    string `yaml:"extent"` // minlon,minlat,maxlon,maxlat; overrides lon/lat/zoom for fetching

	// Elevation service
	Elevation          bool          `yaml:"elevation"`
	ElevationURL       string        `yaml:"elevation_url"`
	ElevationUser      string        `yaml:"elevation_user"`
	ElevationBatchSize int           `yaml:"elevation_batch_size"`
	ElevationTimeout   time.Duration `yaml:"elevation_timeout"`

	// Location lookup
	LocationTimeout time.Duration `yaml:"location_timeout"`

	// Cache of fetched documents
	CacheDir    string `yaml:"cache_dir"`
	CachePrefix string `yaml:"cache_prefix"`
	SaveMap     bool   `yaml:"save_map"`

	// Meshes
	ExtrusionDepth float64 `yaml:"extrusion_depth"`
	StyleFile      string  `yaml:"style_file"`  // Lua script with building_height(tags)
	FilterFile     string  `yaml:"filter_file"` // YAML tag filters for exports and meshes

	// Database settings
	DBHost      string `yaml:"db_host"`
	DBPort      int    `yaml:"db_port"`
	DBName      string `yaml:"db_name"`
	DBUser      string `yaml:"db_user"`
	DBPassword  string `yaml:"db_password"`
	DBSchema    string `yaml:"db_schema"`
	TablePrefix string `yaml:"table_prefix"`

	// Processing settings
	Workers int  `yaml:"workers"`
	Trace   bool `yaml:"trace"` // log every parsed element

	// Logging and metrics
	Verbose         bool          `yaml:"verbose"`
	LogFile         string        `yaml:"log_file"`         // empty = no file logging
	MetricsInterval time.Duration `yaml:"metrics_interval"` // 0 disables system metrics logging
	MetricsAddr     string        `yaml:"metrics_addr"`     // empty = no /metrics endpoint
}

// DefaultConfig returns a configuration with sensible defaults
func DefaultConfig() *Config {
	return &Config{
		Zoom:               0,
		MapAPIURL:          "https://api.openstreetmap.org/api/0.6/",
		ElevationURL:       "http://api.geonames.org/srtm3?",
		ElevationBatchSize: 20,
		ElevationTimeout:   30 * time.Second,
		LocationTimeout:    20 * time.Second,
		CacheDir:           "./osm_data",
		CachePrefix:        "MapData_",
		ExtrusionDepth:     10,
		DBHost:             "localhost",
		DBPort:             5432,
		DBName:             "osm",
		DBUser:             "postgres",
		DBSchema:           "public",
		TablePrefix:        "osmworld",
		Workers:            runtime.NumCPU(),
		MetricsInterval:    30 * time.Second,
	}
}

// Load reads a YAML file over the defaults
func Load(path string) (*Config, error) {
	cfg := DefaultConfig()

	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("failed to read config file: %w", err)
	}
	if err := yaml.Unmarshal(data, cfg); err != nil {
		return nil, fmt.Errorf("failed to parse config file: %w", err)
	}
	return cfg, nil
}

// Location returns the configured map center
func (c *Config) Location() proj.Location {
	return proj.Location{Lon: c.Lon, Lat: c.Lat}
}

// FetchExtent returns the configured extent, nil when unset
func (c *Config) FetchExtent() (*Extent, error) {
	return ParseExtent(c.Extent)
}

// ConnectionString returns a PostgreSQL connection string
func (c *Config) ConnectionString() string {
	connStr := fmt.Sprintf(
		"host=%s port=%d dbname=%s user=%s sslmode=disable",
		c.DBHost, c.DBPort, c.DBName, c.DBUser,
	)
	if c.DBPassword != "" {
		connStr += fmt.Sprintf(" password=%s", c.DBPassword)
	}
	return connStr
}

// Validate checks that the configuration is valid
func (c *Config) Validate() error {
	if _, err := proj.ParseZoom(c.Zoom); err != nil {
		return err
	}
	if c.Lon < -180 || c.Lon > 180 {
		return fmt.Errorf("longitude %f out of range", c.Lon)
	}
	if c.Lat < -90 || c.Lat > 90 {
		return fmt.Errorf("latitude %f out of range", c.Lat)
	}
	if _, err := c.FetchExtent(); err != nil {
		return err
	}
	if c.InputFile == "" && c.MapAPIURL == "" {
		return fmt.Errorf("either an input file or a map API URL is required")
	}
	if c.Elevation && c.ElevationURL == "" {
		return fmt.Errorf("elevation URL is required when elevation is enabled")
	}
	if c.ElevationBatchSize < 1 {
		return fmt.Errorf("elevation batch size must be at least 1")
	}
	if c.ExtrusionDepth <= 0 {
		return fmt.Errorf("extrusion depth must be positive")
	}
	if c.Workers < 1 {
		return fmt.Errorf("workers must be at least 1")
	}
	return nil
}
