package config

import (
	"os"
	"testing"
	"time"
)

func TestLoad(t *testing.T) {
	cfg, err := Load()
	if err != nil {
		t.Fatalf("Load() failed: %v", err)
	}

	// Test defaults
	if cfg.Catalog.BaseURL != "https://planetarycomputer.microsoft.com/api/stac/v1" {
		t.Errorf("expected default catalog base URL, got %s", cfg.Catalog.BaseURL)
	}

	if cfg.Catalog.Timeout != 30*time.Second {
		t.Errorf("expected default catalog timeout 30s, got %s", cfg.Catalog.Timeout)
	}

	if cfg.Catalog.PageLimit != 250 {
		t.Errorf("expected default page limit 250, got %d", cfg.Catalog.PageLimit)
	}

	if len(cfg.Catalog.Collections) != 1 || cfg.Catalog.Collections[0] != "sentinel-2-l2a" {
		t.Errorf("expected default collections [sentinel-2-l2a], got %v", cfg.Catalog.Collections)
	}

	if cfg.Raster.MaxTilePixels != 4194304 {
		t.Errorf("expected default max tile pixels 4194304, got %d", cfg.Raster.MaxTilePixels)
	}

	if cfg.Runtime.Workers != 4 {
		t.Errorf("expected default workers 4, got %d", cfg.Runtime.Workers)
	}

	if cfg.Logging.Level != "info" {
		t.Errorf("expected default log level info, got %s", cfg.Logging.Level)
	}
}

func TestLoadWithCustomValues(t *testing.T) {
	os.Setenv("CATALOG_BASE_URL", "https://stac.example.com/v1")
	os.Setenv("CATALOG_TIMEOUT", "45s")
	os.Setenv("CATALOG_COLLECTIONS", "sentinel-2-l2a,landsat-c2-l2")
	os.Setenv("RASTER_MAX_TILE_PIXELS", "1048576")
	os.Setenv("RUNTIME_WORKERS", "8")
	os.Setenv("LOG_LEVEL", "debug")
	os.Setenv("LOG_FORMAT", "text")

	defer func() {
		os.Unsetenv("CATALOG_BASE_URL")
		os.Unsetenv("CATALOG_TIMEOUT")
		os.Unsetenv("CATALOG_COLLECTIONS")
		os.Unsetenv("RASTER_MAX_TILE_PIXELS")
		os.Unsetenv("RUNTIME_WORKERS")
		os.Unsetenv("LOG_LEVEL")
		os.Unsetenv("LOG_FORMAT")
	}()

	cfg, err := Load()
	if err != nil {
		t.Fatalf("Load() failed: %v", err)
	}

	if cfg.Catalog.BaseURL != "https://stac.example.com/v1" {
		t.Errorf("expected catalog base URL https://stac.example.com/v1, got %s", cfg.Catalog.BaseURL)
	}

	if cfg.Catalog.Timeout != 45*time.Second {
		t.Errorf("expected catalog timeout 45s, got %s", cfg.Catalog.Timeout)
	}

	if len(cfg.Catalog.Collections) != 2 || cfg.Catalog.Collections[1] != "landsat-c2-l2" {
		t.Errorf("expected two collections, got %v", cfg.Catalog.Collections)
	}

	if cfg.Raster.MaxTilePixels != 1048576 {
		t.Errorf("expected max tile pixels 1048576, got %d", cfg.Raster.MaxTilePixels)
	}

	if cfg.Runtime.Workers != 8 {
		t.Errorf("expected workers 8, got %d", cfg.Runtime.Workers)
	}

	if cfg.Logging.Level != "debug" {
		t.Errorf("expected log level debug, got %s", cfg.Logging.Level)
	}

	if cfg.Logging.Format != "text" {
		t.Errorf("expected log format text, got %s", cfg.Logging.Format)
	}
}

func validConfig() *Config {
	return &Config{
		Catalog: CatalogConfig{
			BaseURL:     "https://stac.example.com/v1",
			Timeout:     30 * time.Second,
			MaxRetries:  3,
			PageLimit:   250,
			Collections: []string{"sentinel-2-l2a"},
		},
		Raster: RasterConfig{
			MaxTilePixels: 4194304,
		},
		Runtime: RuntimeConfig{
			Workers: 4,
		},
		Logging: LoggingConfig{
			Level:  "info",
			Format: "json",
		},
	}
}

func TestValidate(t *testing.T) {
	tests := []struct {
		name      string
		mutate    func(*Config)
		wantError bool
	}{
		{
			name:      "valid config",
			mutate:    func(c *Config) {},
			wantError: false,
		},
		{
			name:      "missing catalog base URL",
			mutate:    func(c *Config) { c.Catalog.BaseURL = "" },
			wantError: true,
		},
		{
			name:      "zero catalog timeout",
			mutate:    func(c *Config) { c.Catalog.Timeout = 0 },
			wantError: true,
		},
		{
			name:      "negative retries",
			mutate:    func(c *Config) { c.Catalog.MaxRetries = -1 },
			wantError: true,
		},
		{
			name:      "zero page limit",
			mutate:    func(c *Config) { c.Catalog.PageLimit = 0 },
			wantError: true,
		},
		{
			name:      "zero tile pixels",
			mutate:    func(c *Config) { c.Raster.MaxTilePixels = 0 },
			wantError: true,
		},
		{
			name:      "zero workers",
			mutate:    func(c *Config) { c.Runtime.Workers = 0 },
			wantError: true,
		},
		{
			name:      "invalid log level",
			mutate:    func(c *Config) { c.Logging.Level = "invalid" },
			wantError: true,
		},
		{
			name:      "invalid log format",
			mutate:    func(c *Config) { c.Logging.Format = "xml" },
			wantError: true,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			cfg := validConfig()
			tt.mutate(cfg)
			err := cfg.Validate()
			if (err != nil) != tt.wantError {
				t.Errorf("Validate() error = %v, wantError %v", err, tt.wantError)
			}
		})
	}
}
