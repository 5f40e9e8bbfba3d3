package main

import (
	"github.com/spf13/cobra"
	"github.com/spf13/pflag"

	"github.com/huggablesquare/deputy/internal/config"
	"github.com/huggablesquare/deputy/internal/logging"
)

// options holds flag values. Flags override the config file and
// environment only when set on the command line.
type options struct {
	configPath string

	library      string
	idScheme     string
	brokenPolicy string
	scanWorkers  int
	logLevel     string
	logFormat    string

	listen        string
	metricsAddr   string
	renderWorkers int
	renderDPI     float64
	thumbnailSize int
	cacheDir      string
	cacheSize     string
	watchInterval string
}

func newRootCommand() *cobra.Command {
	opts := &options{}

	rootCmd := &cobra.Command{
		Use:           "deputy",
		Short:         "Serve a comic library as an OPDS catalog",
		SilenceUsage:  true,
		SilenceErrors: true,
		RunE: func(cmd *cobra.Command, args []string) error {
			return runServe(cmd, opts)
		},
	}

	pf := rootCmd.PersistentFlags()
	pf.StringVarP(&opts.configPath, "config", "c", "", "Configuration file path (TOML)")
	pf.StringVarP(&opts.library, "library", "l", "", "Library directory to catalog")
	pf.StringVar(&opts.idScheme, "id-scheme", "", "Entry identifiers: path or inode")
	pf.StringVar(&opts.brokenPolicy, "broken", "", "Unreadable files: exclude or keep")
	pf.IntVar(&opts.scanWorkers, "scan-workers", 0, "Concurrent file probes per directory")
	pf.StringVar(&opts.logLevel, "log-level", "", "Log level: debug, info, warn or error")
	pf.StringVar(&opts.logFormat, "log-format", "", "Log format: auto, json or console")

	addServeFlags(rootCmd.Flags(), opts)

	rootCmd.AddCommand(newServeCommand(opts))
	rootCmd.AddCommand(newScanCommand(opts))

	return rootCmd
}

func addServeFlags(fs *pflag.FlagSet, opts *options) {
	fs.StringVar(&opts.listen, "listen", "", "HTTP listen address")
	fs.StringVar(&opts.metricsAddr, "metrics-addr", "", "Metrics listen address, empty to disable")
	fs.IntVar(&opts.renderWorkers, "render-workers", 0, "Concurrent PDF page renders")
	fs.Float64Var(&opts.renderDPI, "render-dpi", 0, "PDF render resolution")
	fs.IntVar(&opts.thumbnailSize, "thumbnail-size", 0, "Scale thumbnails to fit this many pixels")
	fs.StringVar(&opts.cacheDir, "cache-dir", "", "Page cache directory, empty to disable")
	fs.StringVar(&opts.cacheSize, "cache-size", "", "Page cache size, e.g. 256MiB")
	fs.StringVar(&opts.watchInterval, "watch-interval", "", "Rescan the library this often, e.g. 5m")
}

// loadConfig resolves the configuration for cmd and initializes logging.
func loadConfig(cmd *cobra.Command, opts *options) (*config.Config, error) {
	cfg, err := config.Load(opts.configPath)
	if err != nil {
		return nil, err
	}

	fs := cmd.Flags()
	setString := func(name string, dst *string, v string) {
		if fs.Changed(name) {
			*dst = v
		}
	}
	setInt := func(name string, dst *int, v int) {
		if fs.Changed(name) {
			*dst = v
		}
	}

	setString("library", &cfg.LibraryPath, opts.library)
	setString("id-scheme", &cfg.IDScheme, opts.idScheme)
	setString("broken", &cfg.BrokenPolicy, opts.brokenPolicy)
	setInt("scan-workers", &cfg.ScanWorkers, opts.scanWorkers)
	setString("log-level", &cfg.LogLevel, opts.logLevel)
	setString("log-format", &cfg.LogFormat, opts.logFormat)
	if fs.Lookup("listen") != nil {
		setString("listen", &cfg.ListenAddr, opts.listen)
		setString("metrics-addr", &cfg.MetricsAddr, opts.metricsAddr)
		setInt("render-workers", &cfg.RenderWorkers, opts.renderWorkers)
		setInt("thumbnail-size", &cfg.ThumbnailMaxSize, opts.thumbnailSize)
		setString("cache-dir", &cfg.CacheDir, opts.cacheDir)
		setString("cache-size", &cfg.CacheSize, opts.cacheSize)
		setString("watch-interval", &cfg.WatchInterval, opts.watchInterval)
		if fs.Changed("render-dpi") {
			cfg.RenderDPI = opts.renderDPI
		}
	}

	if err := cfg.Normalize(); err != nil {
		return nil, err
	}
	if err := cfg.Validate(); err != nil {
		return nil, err
	}

	if err := logging.Init(logging.Config{
		Level:  cfg.LogLevel,
		Format: cfg.LogFormat,
	}); err != nil {
		return nil, err
	}
	return cfg, nil
}
