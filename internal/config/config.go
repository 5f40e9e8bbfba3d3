// Package config loads server configuration from defaults, an optional TOML
// file and DEPUTY_* environment variables, in that order.
package config

import (
	"fmt"
	"os"
	"runtime"
	"strconv"
	"time"

	"github.com/pelletier/go-toml/v2"
)

// Config holds all server configuration.
type Config struct {
	// Library
	LibraryPath  string `toml:"library_path"`
	IDScheme     string `toml:"id_scheme"`
	BrokenPolicy string `toml:"broken_policy"`
	ScanWorkers  int    `toml:"scan_workers"`
	FeedTitle    string `toml:"feed_title"`

	// Server
	ListenAddr  string `toml:"listen_addr"`
	MetricsAddr string `toml:"metrics_addr"` // empty disables the metrics server

	// Logging
	LogLevel  string `toml:"log_level"`
	LogFormat string `toml:"log_format"`

	// Rendering
	RenderWorkers    int     `toml:"render_workers"`
	RenderDPI        float64 `toml:"render_dpi"`
	ThumbnailMaxSize int     `toml:"thumbnail_max_size"` // 0 serves page 0 unscaled

	// Page cache, disabled when CacheDir is empty. CacheSize accepts
	// human-readable sizes such as "256MiB".
	CacheDir  string `toml:"cache_dir"`
	CacheSize string `toml:"cache_size"`

	// Rebuild polling, e.g. "5m". Empty or "0" disables it.
	WatchInterval string `toml:"watch_interval"`

	// Resolved by Normalize.
	CacheMaxBytes int64         `toml:"-"`
	WatchEvery    time.Duration `toml:"-"`
}

// Default returns the built-in configuration.
func Default() Config {
	return Config{
		LibraryPath:   "books",
		IDScheme:      "path",
		BrokenPolicy:  "exclude",
		ScanWorkers:   8,
		FeedTitle:     "Comics",
		ListenAddr:    ":4577",
		MetricsAddr:   ":9090",
		LogLevel:      "info",
		LogFormat:     "auto",
		RenderWorkers: runtime.NumCPU(),
		RenderDPI:     240,
		CacheSize:     "256MiB",
	}
}

// Load builds the configuration from defaults, the TOML file at path (if
// path is not empty) and the environment, then normalizes and validates it.
func Load(path string) (*Config, error) {
	cfg := Default()

	if path != "" {
		file, err := os.Open(path)
		if err != nil {
			return nil, fmt.Errorf("open config: %w", err)
		}
		defer file.Close()

		decoder := toml.NewDecoder(file)
		decoder.DisallowUnknownFields()
		if err := decoder.Decode(&cfg); err != nil {
			return nil, fmt.Errorf("parse config: %w", err)
		}
	}

	cfg.applyEnv()

	if err := cfg.Normalize(); err != nil {
		return nil, err
	}
	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	return &cfg, nil
}

func (c *Config) applyEnv() {
	c.LibraryPath = envOr("DEPUTY_LIBRARY_PATH", c.LibraryPath)
	c.IDScheme = envOr("DEPUTY_ID_SCHEME", c.IDScheme)
	c.BrokenPolicy = envOr("DEPUTY_BROKEN_POLICY", c.BrokenPolicy)
	c.ScanWorkers = envInt("DEPUTY_SCAN_WORKERS", c.ScanWorkers)
	c.FeedTitle = envOr("DEPUTY_FEED_TITLE", c.FeedTitle)
	c.ListenAddr = envOr("DEPUTY_LISTEN_ADDR", c.ListenAddr)
	c.MetricsAddr = envOr("DEPUTY_METRICS_ADDR", c.MetricsAddr)
	c.LogLevel = envOr("DEPUTY_LOG_LEVEL", c.LogLevel)
	c.LogFormat = envOr("DEPUTY_LOG_FORMAT", c.LogFormat)
	c.RenderWorkers = envInt("DEPUTY_RENDER_WORKERS", c.RenderWorkers)
	c.RenderDPI = envFloat("DEPUTY_RENDER_DPI", c.RenderDPI)
	c.ThumbnailMaxSize = envInt("DEPUTY_THUMBNAIL_MAX_SIZE", c.ThumbnailMaxSize)
	c.CacheDir = envOr("DEPUTY_CACHE_DIR", c.CacheDir)
	c.CacheSize = envOr("DEPUTY_CACHE_SIZE", c.CacheSize)
	c.WatchInterval = envOr("DEPUTY_WATCH_INTERVAL", c.WatchInterval)

	// A set but empty DEPUTY_METRICS_ADDR turns the metrics server off.
	if v, ok := os.LookupEnv("DEPUTY_METRICS_ADDR"); ok && v == "" {
		c.MetricsAddr = ""
	}
}

func envOr(key, fallback string) string {
	if v := os.Getenv(key); v != "" {
		return v
	}
	return fallback
}

func envInt(key string, fallback int) int {
	v := os.Getenv(key)
	if v == "" {
		return fallback
	}
	i, err := strconv.Atoi(v)
	if err != nil {
		return fallback
	}
	return i
}

func envFloat(key string, fallback float64) float64 {
	v := os.Getenv(key)
	if v == "" {
		return fallback
	}
	f, err := strconv.ParseFloat(v, 64)
	if err != nil {
		return fallback
	}
	return f
}
