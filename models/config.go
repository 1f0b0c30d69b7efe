// Package models defines data structures for configuration and engine results.
package models

import (
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"time"

	"github.com/pelletier/go-toml/v2"
	"gopkg.in/yaml.v3"
)

// DefaultAnchorAttribute is the reserved attribute holding FallbackAnchor tokens.
const DefaultAnchorAttribute = "data-locator-anchor"

// Config holds runtime configuration. Values come from an optional config
// file (yaml or toml) and are overridden by CLI flags.
type Config struct {
	Engine   EngineConfig   `yaml:"engine" toml:"engine"`
	Viewport ViewportConfig `yaml:"viewport" toml:"viewport"`
	Browser  BrowserConfig  `yaml:"browser" toml:"browser"`
	Cache    CacheConfig    `yaml:"cache" toml:"cache"`
	DB       DBConfig       `yaml:"db" toml:"db"`
}

// EngineConfig bounds every traversal the engine performs.
type EngineConfig struct {
	SeedMinLength        int           `yaml:"seed_min_length" toml:"seed_min_length"`
	OptimizedMinLength   int           `yaml:"optimized_min_length" toml:"optimized_min_length"`
	CombinationThreshold int           `yaml:"combination_threshold" toml:"combination_threshold"`
	MaxOptimizeTries     int           `yaml:"max_optimize_tries" toml:"max_optimize_tries"`
	OptimizeBudget       time.Duration `yaml:"optimize_budget" toml:"optimize_budget"`
	MaxBoundaryCrossings int           `yaml:"max_boundary_crossings" toml:"max_boundary_crossings"`
	MaxAscentDepth       int           `yaml:"max_ascent_depth" toml:"max_ascent_depth"`
	StructuralDepthCap   int           `yaml:"structural_depth_cap" toml:"structural_depth_cap"`
	MaxFieldsPerParent   int           `yaml:"max_fields_per_parent" toml:"max_fields_per_parent"`
	SampleInstances      int           `yaml:"sample_instances" toml:"sample_instances"`
	GroupThreshold       float64       `yaml:"group_threshold" toml:"group_threshold"`
	MaxGroupCandidates   int           `yaml:"max_group_candidates" toml:"max_group_candidates"`
	MaxScanElements      int           `yaml:"max_scan_elements" toml:"max_scan_elements"`
	AnchorAttribute      string        `yaml:"anchor_attribute" toml:"anchor_attribute"`
	NativeXPath          *bool         `yaml:"native_xpath,omitempty" toml:"native_xpath,omitempty"`
}

// ViewportConfig is the size used for layout estimation and live capture.
type ViewportConfig struct {
	Width  int `yaml:"width" toml:"width"`
	Height int `yaml:"height" toml:"height"`
}

// BrowserConfig configures live capture.
type BrowserConfig struct {
	RemoteURL string        `yaml:"remote_url" toml:"remote_url"`
	Headless  *bool         `yaml:"headless,omitempty" toml:"headless,omitempty"`
	Timeout   time.Duration `yaml:"timeout" toml:"timeout"`
}

// CacheConfig configures the on-disk page cache.
type CacheConfig struct {
	Dir    string        `yaml:"dir" toml:"dir"`
	MaxAge time.Duration `yaml:"max_age" toml:"max_age"`
}

// DBConfig configures the warm locator cache.
type DBConfig struct {
	Path string `yaml:"path" toml:"path"`
}

// DefaultConfig returns the configuration used when no file is given.
func DefaultConfig() Config {
	var c Config
	c.Defaults()
	return c
}

// Defaults fills zero values.
func (c *Config) Defaults() {
	c.Engine.Defaults()
	if c.Viewport.Width <= 0 {
		c.Viewport.Width = 1280
	}
	if c.Viewport.Height <= 0 {
		c.Viewport.Height = 800
	}
	if c.Browser.Timeout <= 0 {
		c.Browser.Timeout = 30 * time.Second
	}
	if c.Cache.Dir == "" {
		c.Cache.Dir = ".web-locator-cache"
	}
	if c.Cache.MaxAge <= 0 {
		c.Cache.MaxAge = time.Hour
	}
}

// Defaults fills zero engine values with the tuned bounds.
func (e *EngineConfig) Defaults() {
	if e.SeedMinLength <= 0 {
		e.SeedMinLength = 1
	}
	if e.OptimizedMinLength <= 0 {
		e.OptimizedMinLength = 2
	}
	if e.CombinationThreshold <= 0 {
		e.CombinationThreshold = 1000
	}
	if e.MaxOptimizeTries <= 0 {
		e.MaxOptimizeTries = 2000
	}
	if e.OptimizeBudget <= 0 {
		e.OptimizeBudget = 25 * time.Millisecond
	}
	if e.MaxBoundaryCrossings <= 0 {
		e.MaxBoundaryCrossings = 4
	}
	if e.MaxAscentDepth <= 0 {
		e.MaxAscentDepth = 64
	}
	if e.StructuralDepthCap <= 0 {
		e.StructuralDepthCap = 20
	}
	if e.MaxFieldsPerParent <= 0 {
		e.MaxFieldsPerParent = 250
	}
	if e.SampleInstances <= 0 {
		e.SampleInstances = 12
	}
	if e.GroupThreshold <= 0 {
		e.GroupThreshold = 0.7
	}
	if e.MaxGroupCandidates <= 0 {
		e.MaxGroupCandidates = 2000
	}
	if e.MaxScanElements <= 0 {
		e.MaxScanElements = 20000
	}
	if e.AnchorAttribute == "" {
		e.AnchorAttribute = DefaultAnchorAttribute
	}
	if e.NativeXPath == nil {
		native := true
		e.NativeXPath = &native
	}
}

// UseNativeXPath reports whether XPath goes through the native evaluator.
func (e EngineConfig) UseNativeXPath() bool {
	return e.NativeXPath == nil || *e.NativeXPath
}

// LoadConfig reads a yaml or toml config file. An empty path returns defaults.
func LoadConfig(path string) (Config, error) {
	cfg := Config{}
	if path == "" {
		cfg.Defaults()
		return cfg, nil
	}

	data, err := os.ReadFile(filepath.Clean(path))
	if err != nil {
		return cfg, fmt.Errorf("failed to read config: %w", err)
	}

	switch strings.ToLower(filepath.Ext(path)) {
	case ".toml":
		if err := toml.Unmarshal(data, &cfg); err != nil {
			return cfg, fmt.Errorf("failed to parse toml config: %w", err)
		}
	case ".yaml", ".yml", "":
		if err := yaml.Unmarshal(data, &cfg); err != nil {
			return cfg, fmt.Errorf("failed to parse yaml config: %w", err)
		}
	default:
		return cfg, fmt.Errorf("unsupported config format %q", filepath.Ext(path))
	}

	cfg.Defaults()
	return cfg, nil
}
