package style

import (
	"fmt"
	"os"

	"gopkg.in/yaml.v3"

	"github.com/wegman-software/osmworld/internal/tags"
)

// Config selects which derived records are exported and meshed
type Config struct {
	Highways  *FilterConfig `yaml:"highways,omitempty"`
	Waterways *FilterConfig `yaml:"waterways,omitempty"`
	Buildings *FilterConfig `yaml:"buildings,omitempty"`
}

// FilterConfig defines tag rules for one record kind
type FilterConfig struct {
	// Include keeps records with any listed key (and value, when values are given)
	Include map[string][]string `yaml:"include,omitempty"`
	// Exclude drops records matching a key/value. Applied after Include.
	Exclude map[string][]string `yaml:"exclude,omitempty"`
	// RequireAny keeps only records carrying at least one of these keys
	RequireAny []string `yaml:"require_any,omitempty"`
}

// LoadConfig loads a filter configuration from a YAML file
func LoadConfig(path string) (*Config, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("failed to read filter file: %w", err)
	}
	return ParseConfig(data)
}

// ParseConfig parses a YAML filter configuration
func ParseConfig(data []byte) (*Config, error) {
	var cfg Config
	if err := yaml.Unmarshal(data, &cfg); err != nil {
		return nil, fmt.Errorf("failed to parse filter YAML: %w", err)
	}
	return &cfg, nil
}

// DefaultConfig returns a configuration that keeps everything
func DefaultConfig() *Config {
	return &Config{}
}

// Filter decides whether a record's tags pass a FilterConfig.
// A nil Filter or nil config keeps everything.
type Filter struct {
	cfg *FilterConfig
}

// NewFilter creates a filter from configuration
func NewFilter(cfg *FilterConfig) *Filter {
	return &Filter{cfg: cfg}
}

// Match reports whether a record with tags t is kept
func (f *Filter) Match(t *tags.Tags) bool {
	if f == nil || f.cfg == nil {
		return true
	}
	cfg := f.cfg

	if len(cfg.RequireAny) > 0 {
		found := false
		for _, key := range cfg.RequireAny {
			if t.Has(key) {
				found = true
				break
			}
		}
		if !found {
			return false
		}
	}

	if len(cfg.Include) > 0 && !matchesRules(cfg.Include, t) {
		return false
	}

	if len(cfg.Exclude) > 0 && matchesRules(cfg.Exclude, t) {
		return false
	}

	return true
}

// Enabled returns true if the filter has any rule
func (f *Filter) Enabled() bool {
	if f == nil || f.cfg == nil {
		return false
	}
	return len(f.cfg.Include) > 0 || len(f.cfg.Exclude) > 0 || len(f.cfg.RequireAny) > 0
}

// matchesRules reports whether any rule key is present with an accepted
// value. An empty value list or "*" accepts any value.
func matchesRules(rules map[string][]string, t *tags.Tags) bool {
	for key, values := range rules {
		value, ok := t.Get(key)
		if !ok {
			continue
		}
		if len(values) == 0 {
			return true
		}
		for _, v := range values {
			if v == value || v == "*" {
				return true
			}
		}
	}
	return false
}
