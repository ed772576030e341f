package style

import "testing"

func TestFilterMatch(t *testing.T) {
	cfg, err := ParseConfig([]byte(`
buildings:
  require_any: [building]
  exclude:
    building: [ruins, construction]
highways:
  include:
    highway: [motorway, primary]
    junction: []
waterways:
  exclude:
    intermittent: ["*"]
`))
	if err != nil {
		t.Fatalf("ParseConfig failed: %v", err)
	}

	tests := []struct {
		name   string
		filter *Filter
		tags   []string
		want   bool
	}{
		{"building kept", NewFilter(cfg.Buildings), []string{"building", "yes"}, true},
		{"building excluded value", NewFilter(cfg.Buildings), []string{"building", "ruins"}, false},
		{"building required", NewFilter(cfg.Buildings), []string{"amenity", "cafe"}, false},
		{"highway included", NewFilter(cfg.Highways), []string{"highway", "primary"}, true},
		{"highway not listed", NewFilter(cfg.Highways), []string{"highway", "footway"}, false},
		{"include any value", NewFilter(cfg.Highways), []string{"highway", "service", "junction", "roundabout"}, true},
		{"wildcard exclude", NewFilter(cfg.Waterways), []string{"waterway", "stream", "intermittent", "yes"}, false},
		{"wildcard exclude absent", NewFilter(cfg.Waterways), []string{"waterway", "stream"}, true},
		{"nil config", NewFilter(nil), []string{"anything", "goes"}, true},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if got := tt.filter.Match(tagsOf(tt.tags...)); got != tt.want {
				t.Errorf("Match() = %v, want %v", got, tt.want)
			}
		})
	}
}

func TestFilterEnabled(t *testing.T) {
	var nilFilter *Filter
	if nilFilter.Enabled() || !nilFilter.Match(nil) {
		t.Error("nil filter should keep everything")
	}
	if NewFilter(&FilterConfig{}).Enabled() {
		t.Error("empty config should not be enabled")
	}
	if !NewFilter(&FilterConfig{RequireAny: []string{"name"}}).Enabled() {
		t.Error("require_any should enable the filter")
	}
}

func TestParseConfigInvalid(t *testing.T) {
	if _, err := ParseConfig([]byte("buildings: [")); err == nil {
		t.Error("expected YAML error")
	}
	if _, err := LoadConfig("/nonexistent/filters.yaml"); err == nil {
		t.Error("expected read error")
	}
}
