// Package config provides configuration management for the revisit raster
// builder.
package config

import (
	"fmt"
	"time"

	"github.com/caarlos0/env/v10"
)

// Config holds the complete application configuration loaded from environment
// variables. Command-line flags override these values.
type Config struct {
	Catalog CatalogConfig `envPrefix:"CATALOG_"`
	Raster  RasterConfig  `envPrefix:"RASTER_"`
	Runtime RuntimeConfig `envPrefix:"RUNTIME_"`
	Logging LoggingConfig `envPrefix:"LOG_"`
}

// CatalogConfig contains STAC catalog client configuration.
type CatalogConfig struct {
	BaseURL     string        `env:"BASE_URL" envDefault:"https://planetarycomputer.microsoft.com/api/stac/v1"`
	Timeout     time.Duration `env:"TIMEOUT" envDefault:"30s"`
	MaxRetries  int           `env:"MAX_RETRIES" envDefault:"3"`
	PageLimit   int           `env:"PAGE_LIMIT" envDefault:"250"`
	Collections []string      `env:"COLLECTIONS" envSeparator:"," envDefault:"sentinel-2-l2a"`
}

// RasterConfig contains output raster tuning.
type RasterConfig struct {
	// MaxTilePixels caps the pixel count of one work tile.
	MaxTilePixels int `env:"MAX_TILE_PIXELS" envDefault:"4194304"`
}

// RuntimeConfig contains worker pool configuration.
type RuntimeConfig struct {
	Workers int `env:"WORKERS" envDefault:"4"`
}

// LoggingConfig contains logging configuration.
type LoggingConfig struct {
	Level  string `env:"LEVEL" envDefault:"info"`
	Format string `env:"FORMAT" envDefault:"json"`
}

// Load parses configuration from environment variables.
// It returns an error if required fields are missing or invalid.
func Load() (*Config, error) {
	cfg := &Config{}

	opts := env.Options{
		RequiredIfNoDef: true,
	}

	if err := env.ParseWithOptions(cfg, opts); err != nil {
		return nil, fmt.Errorf("failed to parse configuration: %w", err)
	}

	if err := cfg.Validate(); err != nil {
		return nil, fmt.Errorf("invalid configuration: %w", err)
	}

	return cfg, nil
}

// Validate checks that the configuration is valid.
func (c *Config) Validate() error {
	if c.Catalog.BaseURL == "" {
		return fmt.Errorf("catalog base URL is required")
	}

	if c.Catalog.Timeout <= 0 {
		return fmt.Errorf("catalog timeout must be positive, got %s", c.Catalog.Timeout)
	}

	if c.Catalog.MaxRetries < 0 {
		return fmt.Errorf("catalog max retries must not be negative, got %d", c.Catalog.MaxRetries)
	}

	if c.Catalog.PageLimit < 1 {
		return fmt.Errorf("catalog page limit must be at least 1, got %d", c.Catalog.PageLimit)
	}

	if c.Raster.MaxTilePixels < 1 {
		return fmt.Errorf("max tile pixels must be at least 1, got %d", c.Raster.MaxTilePixels)
	}

	if c.Runtime.Workers < 1 {
		return fmt.Errorf("workers must be at least 1, got %d", c.Runtime.Workers)
	}

	validLogLevels := map[string]bool{
		"debug": true,
		"info":  true,
		"warn":  true,
		"error": true,
	}
	if !validLogLevels[c.Logging.Level] {
		return fmt.Errorf("invalid log level %q, must be one of: debug, info, warn, error", c.Logging.Level)
	}

	validLogFormats := map[string]bool{
		"json": true,
		"text": true,
	}
	if !validLogFormats[c.Logging.Format] {
		return fmt.Errorf("invalid log format %q, must be one of: json, text", c.Logging.Format)
	}

	return nil
}
