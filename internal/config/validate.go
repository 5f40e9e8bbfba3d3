package config

import (
	"errors"
	"fmt"
	"path/filepath"
	"strings"
	"time"

	"github.com/dustin/go-humanize"

	"github.com/huggablesquare/deputy/internal/archive"
	"github.com/huggablesquare/deputy/internal/catalog"
)

// Normalize cleans paths and resolves the human-readable cache size and
// watch interval. Call it again after changing fields by hand.
func (c *Config) Normalize() error {
	c.LibraryPath = strings.TrimSpace(c.LibraryPath)
	if c.LibraryPath != "" {
		c.LibraryPath = filepath.Clean(c.LibraryPath)
	}
	c.CacheDir = strings.TrimSpace(c.CacheDir)
	c.LogLevel = strings.ToLower(strings.TrimSpace(c.LogLevel))
	c.LogFormat = strings.ToLower(strings.TrimSpace(c.LogFormat))

	c.CacheMaxBytes = 0
	if s := strings.TrimSpace(c.CacheSize); s != "" {
		n, err := humanize.ParseBytes(s)
		if err != nil {
			return fmt.Errorf("cache_size: %w", err)
		}
		c.CacheMaxBytes = int64(n)
	}

	c.WatchEvery = 0
	if s := strings.TrimSpace(c.WatchInterval); s != "" && s != "0" {
		d, err := time.ParseDuration(s)
		if err != nil {
			return fmt.Errorf("watch_interval: %w", err)
		}
		c.WatchEvery = d
	}
	return nil
}

// Validate ensures the configuration is usable.
func (c *Config) Validate() error {
	if c.LibraryPath == "" {
		return errors.New("library_path is required")
	}
	if c.ListenAddr == "" {
		return errors.New("listen_addr is required")
	}
	if c.ScanWorkers <= 0 {
		return fmt.Errorf("scan_workers must be positive, got %d", c.ScanWorkers)
	}
	if c.RenderWorkers <= 0 {
		return fmt.Errorf("render_workers must be positive, got %d", c.RenderWorkers)
	}
	if c.RenderDPI <= 0 {
		return fmt.Errorf("render_dpi must be positive, got %v", c.RenderDPI)
	}
	if c.ThumbnailMaxSize < 0 {
		return fmt.Errorf("thumbnail_max_size must not be negative, got %d", c.ThumbnailMaxSize)
	}
	if c.WatchEvery < 0 {
		return fmt.Errorf("watch_interval must not be negative, got %s", c.WatchEvery)
	}
	if c.CacheDir != "" && c.CacheMaxBytes <= 0 {
		return errors.New("cache_size must be positive when cache_dir is set")
	}
	if _, err := catalog.ParseIDScheme(c.IDScheme); err != nil {
		return fmt.Errorf("id_scheme: %w", err)
	}
	if _, err := catalog.ParseBrokenPolicy(c.BrokenPolicy); err != nil {
		return fmt.Errorf("broken_policy: %w", err)
	}
	switch c.LogFormat {
	case "", "auto", "json", "console":
	default:
		return fmt.Errorf("log_format must be auto, json or console, got %q", c.LogFormat)
	}
	switch c.LogLevel {
	case "debug", "info", "warn", "error":
	default:
		return fmt.Errorf("log_level must be debug, info, warn or error, got %q", c.LogLevel)
	}
	return nil
}

// CatalogOptions converts the library settings for catalog.NewBuilder.
// Call it on a validated Config.
func (c *Config) CatalogOptions() catalog.Options {
	scheme, _ := catalog.ParseIDScheme(c.IDScheme)
	policy, _ := catalog.ParseBrokenPolicy(c.BrokenPolicy)
	return catalog.Options{
		Workers:      c.ScanWorkers,
		IDScheme:     scheme,
		BrokenPolicy: policy,
		ArchiveOptions: []archive.Option{
			archive.WithDPI(c.RenderDPI),
		},
	}
}
