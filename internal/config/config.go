// Package config loads pipeline settings from YAML. Fields omitted from the
// file keep their defaults, so partial configs are safe.
package config

import (
	"fmt"
	"path/filepath"

	"gopkg.in/yaml.v3"

	"github.com/svanichkin/hpdec/internal/fsutil"
	"github.com/svanichkin/hpdec/internal/pixgrid"
)

// DefaultStrength is the noise strength used when none is given.
const DefaultStrength = 5

// maxFileSize caps the config file read.
const maxFileSize = 1 << 20

// Config holds every tunable of a pipeline run.
type Config struct {
	// Strength is the perturbation bound; must be >= 0.
	Strength int `yaml:"strength"`
	// Seed fixes the random source; any value, 0 included, is used as is.
	// nil seeds from the clock.
	Seed *uint64 `yaml:"seed,omitempty"`
	// MaxPixels is the allocation budget per grid; 0 uses the default.
	MaxPixels int `yaml:"max_pixels"`

	Report Report `yaml:"report"`

	// MetricsFile receives Prometheus text-format metrics after a run.
	MetricsFile string `yaml:"metrics_file"`
	// LogLevel is one of debug, info, warn, error.
	LogLevel string `yaml:"log_level"`
}

// Report lists the optional histogram outputs.
type Report struct {
	Path      string `yaml:"path"`
	CSV       string `yaml:"csv"`
	ChartPNG  string `yaml:"chart_png"`
	ChartHTML string `yaml:"chart_html"`
}

// Default returns the built-in configuration.
func Default() *Config {
	return &Config{
		Strength:  DefaultStrength,
		MaxPixels: pixgrid.DefaultMaxPixels,
		LogLevel:  "warn",
	}
}

// Load reads a YAML config from path on fsys over the defaults.
func Load(fsys fsutil.FileSystem, path string) (*Config, error) {
	cleanPath := filepath.Clean(path)
	switch ext := filepath.Ext(cleanPath); ext {
	case ".yaml", ".yml":
	default:
		return nil, fmt.Errorf("config file must have .yaml or .yml extension, got %q", ext)
	}

	data, err := fsys.ReadFile(cleanPath)
	if err != nil {
		return nil, fmt.Errorf("failed to read config file: %w", err)
	}
	if len(data) > maxFileSize {
		return nil, fmt.Errorf("config file too large: %d bytes (max %d)", len(data), maxFileSize)
	}

	cfg := Default()
	if err := yaml.Unmarshal(data, cfg); err != nil {
		return nil, fmt.Errorf("failed to parse config YAML: %w", err)
	}
	if err := cfg.Validate(); err != nil {
		return nil, fmt.Errorf("invalid configuration: %w", err)
	}
	return cfg, nil
}

// Validate checks that the configuration values are usable.
func (c *Config) Validate() error {
	if c.Strength < 0 {
		return fmt.Errorf("strength must be non-negative, got %d", c.Strength)
	}
	if c.MaxPixels < 0 {
		return fmt.Errorf("max_pixels must be non-negative, got %d", c.MaxPixels)
	}
	switch c.LogLevel {
	case "", "debug", "info", "warn", "error":
	default:
		return fmt.Errorf("log_level must be one of debug, info, warn, error, got %q", c.LogLevel)
	}
	return nil
}

// Marshal renders c as YAML. Load accepts the result, so the output of
// --print-config can be saved as a config file.
func (c *Config) Marshal() ([]byte, error) {
	return yaml.Marshal(c)
}
