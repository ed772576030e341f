package config

import (
	"os"
	"path/filepath"
	"strings"
	"testing"
	"time"

	"github.com/wegman-software/osmworld/internal/proj"
)

func TestParseExtent(t *testing.T) {
	tests := []struct {
		input   string
		wantNil bool
		wantErr bool
	}{
		{"", true, false},
		{"7.4,43.7,7.5,43.8", false, false},
		{" 7.4 , 43.7 , 7.5 , 43.8 ", false, false},
		{"7.4,43.7,7.5", false, true},
		{"a,b,c,d", false, true},
		{"7.5,43.7,7.4,43.8", false, true},
		{"7.4,43.8,7.5,43.7", false, true},
		{"7.4,43.7,7.4,43.8", false, true},
		{"170,0,190,1", false, true},
	}

	for _, tt := range tests {
		t.Run(tt.input, func(t *testing.T) {
			e, err := ParseExtent(tt.input)
			if (err != nil) != tt.wantErr {
				t.Fatalf("ParseExtent(%q) error = %v, wantErr %v", tt.input, err, tt.wantErr)
			}
			if err == nil && (e == nil) != tt.wantNil {
				t.Errorf("ParseExtent(%q) = %v, want nil %v", tt.input, e, tt.wantNil)
			}
		})
	}

	e, _ := ParseExtent("1,2,3,4")
	if e.Array() != [4]float64{1, 2, 3, 4} {
		t.Errorf("Array() = %v", e.Array())
	}
	if c := e.Center(); c.Lon != 2 || c.Lat != 3 {
		t.Errorf("Center() = %v", c)
	}
	if !e.Contains(proj.Location{Lon: 2, Lat: 3}) || e.Contains(proj.Location{Lon: 2, Lat: 5}) {
		t.Error("Contains() returned wrong result")
	}
}

func TestDefaultConfigValid(t *testing.T) {
	cfg := DefaultConfig()
	if err := cfg.Validate(); err != nil {
		t.Fatalf("default config invalid: %v", err)
	}
	if cfg.ElevationBatchSize != 20 {
		t.Errorf("ElevationBatchSize = %d, want 20", cfg.ElevationBatchSize)
	}
	if cfg.CachePrefix != "MapData_" {
		t.Errorf("CachePrefix = %q", cfg.CachePrefix)
	}
}

func TestValidate(t *testing.T) {
	tests := []struct {
		name   string
		modify func(*Config)
		errMsg string
	}{
		{"zoom", func(c *Config) { c.Zoom = 11 }, "zoom"},
		{"longitude", func(c *Config) { c.Lon = 200 }, "longitude"},
		{"latitude", func(c *Config) { c.Lat = -91 }, "latitude"},
		{"source", func(c *Config) { c.MapAPIURL = "" }, "input file"},
		{"elevation url", func(c *Config) { c.Elevation = true; c.ElevationURL = "" }, "elevation URL"},
		{"batch", func(c *Config) { c.ElevationBatchSize = 0 }, "batch size"},
		{"depth", func(c *Config) { c.ExtrusionDepth = 0 }, "extrusion depth"},
		{"workers", func(c *Config) { c.Workers = 0 }, "workers"},
		{"extent", func(c *Config) { c.Extent = "1,2,3" }, "extent"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			cfg := DefaultConfig()
			tt.modify(cfg)
			err := cfg.Validate()
			if err == nil || !strings.Contains(err.Error(), tt.errMsg) {
				t.Errorf("Validate() = %v, want error containing %q", err, tt.errMsg)
			}
		})
	}
}

func TestLoad(t *testing.T) {
	path := filepath.Join(t.TempDir(), "osmworld.yaml")
	data := `
lon: 7.4246
lat: 43.7384
zoom: 3
elevation: true
elevation_user: demo
elevation_timeout: 5s
db_name: monaco
`
	if err := os.WriteFile(path, []byte(data), 0644); err != nil {
		t.Fatal(err)
	}

	cfg, err := Load(path)
	if err != nil {
		t.Fatalf("Load failed: %v", err)
	}

	if cfg.Lon != 7.4246 || cfg.Lat != 43.7384 || cfg.Zoom != 3 {
		t.Errorf("unexpected location: %f,%f zoom %d", cfg.Lon, cfg.Lat, cfg.Zoom)
	}
	if !cfg.Elevation || cfg.ElevationUser != "demo" || cfg.ElevationTimeout != 5*time.Second {
		t.Errorf("unexpected elevation settings: %+v", cfg)
	}
	if cfg.DBName != "monaco" {
		t.Errorf("DBName = %q, want monaco", cfg.DBName)
	}
	// untouched values keep their defaults
	if cfg.DBPort != 5432 || cfg.ElevationBatchSize != 20 {
		t.Errorf("defaults lost: port %d batch %d", cfg.DBPort, cfg.ElevationBatchSize)
	}
	if loc := cfg.Location(); loc.Lon != 7.4246 || loc.Lat != 43.7384 {
		t.Errorf("Location() = %+v", loc)
	}
}

func TestLoadErrors(t *testing.T) {
	if _, err := Load(filepath.Join(t.TempDir(), "missing.yaml")); err == nil {
		t.Error("expected error for missing file")
	}

	path := filepath.Join(t.TempDir(), "bad.yaml")
	os.WriteFile(path, []byte("zoom: [1"), 0644)
	if _, err := Load(path); err == nil {
		t.Error("expected error for invalid YAML")
	}
}

func TestConnectionString(t *testing.T) {
	cfg := DefaultConfig()
	want := "host=localhost port=5432 dbname=osm user=postgres sslmode=disable"
	if got := cfg.ConnectionString(); got != want {
		t.Errorf("ConnectionString() = %q, want %q", got, want)
	}

	cfg.DBPassword = "secret"
	if got := cfg.ConnectionString(); !strings.HasSuffix(got, " password=secret") {
		t.Errorf("ConnectionString() = %q", got)
	}
}
