package main

import (
	"context"
	"errors"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/spf13/cobra"
	"go.uber.org/zap"

	"github.com/huggablesquare/deputy/internal/api"
	"github.com/huggablesquare/deputy/internal/config"
	"github.com/huggablesquare/deputy/internal/library"
	"github.com/huggablesquare/deputy/internal/logging"
	"github.com/huggablesquare/deputy/internal/metrics"
	"github.com/huggablesquare/deputy/internal/pagecache"
	"github.com/huggablesquare/deputy/internal/watcher"
)

const shutdownTimeout = 10 * time.Second

func newServeCommand(opts *options) *cobra.Command {
	cmd := &cobra.Command{
		Use:   "serve",
		Short: "Build the catalog and serve it over HTTP (default)",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			return runServe(cmd, opts)
		},
	}
	addServeFlags(cmd.Flags(), opts)
	return cmd
}

func runServe(cmd *cobra.Command, opts *options) error {
	cfg, err := loadConfig(cmd, opts)
	if err != nil {
		return err
	}
	defer logging.Sync()

	logging.Info("deputy starting",
		zap.String("library", cfg.LibraryPath),
		zap.String("listen", cfg.ListenAddr),
		zap.String("metrics", cfg.MetricsAddr))

	ctx, cancel := context.WithCancel(cmd.Context())
	defer cancel()

	var cache *pagecache.Cache
	if cfg.CacheDir != "" {
		cache, err = pagecache.Open(cfg.CacheDir, cfg.CacheMaxBytes)
		if err != nil {
			return err
		}
		defer cache.Close()
		logging.Info("page cache enabled",
			zap.String("dir", cfg.CacheDir),
			zap.Int64("max_bytes", cfg.CacheMaxBytes))
	}

	lib, err := library.Open(ctx, libraryOptions(cfg, cache))
	if err != nil {
		return err
	}

	srv := api.NewServer(lib, cfg.FeedTitle)

	var metricsServer *http.Server
	if cfg.MetricsAddr != "" {
		metricsServer = &http.Server{
			Addr:    cfg.MetricsAddr,
			Handler: metrics.Handler(),
		}
		go func() {
			logging.Info("metrics server listening", zap.String("addr", cfg.MetricsAddr))
			if err := metricsServer.ListenAndServe(); err != http.ErrServerClosed {
				logging.Error("metrics server error", zap.Error(err))
			}
		}()
	}

	httpServer := &http.Server{
		Addr:              cfg.ListenAddr,
		Handler:           srv.Handler(),
		ReadHeaderTimeout: 10 * time.Second,
	}

	if cfg.WatchEvery > 0 {
		w := watcher.New(cfg.LibraryPath, cfg.WatchEvery, func(ctx context.Context, _ []watcher.Event) {
			rebuild(ctx, lib)
		})
		if err := w.Start(ctx); err != nil {
			return err
		}
		defer w.Stop()
		logging.Info("watching library", zap.Duration("interval", cfg.WatchEvery))
	}

	// SIGHUP rebuilds the catalog, SIGINT and SIGTERM shut down.
	go func() {
		sigCh := make(chan os.Signal, 1)
		signal.Notify(sigCh, syscall.SIGHUP, syscall.SIGINT, syscall.SIGTERM)
		defer signal.Stop(sigCh)
		for {
			select {
			case <-ctx.Done():
				return
			case sig := <-sigCh:
				if sig == syscall.SIGHUP {
					go rebuild(ctx, lib)
					continue
				}
				logging.Info("shutting down...", zap.String("signal", sig.String()))
				cancel()
				shutdownCtx, done := context.WithTimeout(context.Background(), shutdownTimeout)
				defer done()
				httpServer.Shutdown(shutdownCtx)
				if metricsServer != nil {
					metricsServer.Shutdown(shutdownCtx)
				}
				return
			}
		}
	}()

	logging.Info("server listening", zap.String("addr", cfg.ListenAddr))
	if err := httpServer.ListenAndServe(); !errors.Is(err, http.ErrServerClosed) {
		return err
	}
	return nil
}

func libraryOptions(cfg *config.Config, cache *pagecache.Cache) library.Options {
	return library.Options{
		Root:             cfg.LibraryPath,
		Catalog:          cfg.CatalogOptions(),
		RenderWorkers:    cfg.RenderWorkers,
		ThumbnailMaxSize: cfg.ThumbnailMaxSize,
		Cache:            cache,
	}
}

func rebuild(ctx context.Context, lib *library.Library) {
	logging.Info("rebuilding catalog")
	if _, err := lib.Rebuild(ctx); err != nil {
		if !errors.Is(err, context.Canceled) {
			logging.Error("catalog rebuild failed, keeping previous catalog", zap.Error(err))
		}
	}
}
