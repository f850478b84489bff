package main

import (
	"context"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"os"
	"os/signal"
	"path/filepath"
	"sync"
	"syscall"
	"time"

	"github.com/spf13/cobra"

	"github.com/nao1215/gallerywatch/internal/config"
	"github.com/nao1215/gallerywatch/internal/database"
	"github.com/nao1215/gallerywatch/internal/intercept"
	"github.com/nao1215/gallerywatch/internal/model"
	"github.com/nao1215/gallerywatch/internal/pipeline"
	"github.com/nao1215/gallerywatch/internal/report"
	"github.com/nao1215/gallerywatch/internal/site"
	"github.com/nao1215/gallerywatch/internal/surface"
	"github.com/nao1215/gallerywatch/internal/tor"
)

// Report formats accepted by --format.
const (
	formatSimple   = "simple"
	formatJSON     = "json"
	formatMarkdown = "markdown"
)

var (
	// errUnknownFormat is returned for a --format value that is not supported.
	errUnknownFormat = errors.New("unknown report format: must be simple, json or markdown")

	// errBrowseFailed is returned when at least one URL could not be browsed.
	errBrowseFailed = errors.New("some URLs could not be browsed")
)

// NewBrowseCmd creates the browse command.
func NewBrowseCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "browse <url>...",
		Short: "Load URLs under their site rules and store detected galleries",
		Long: `Browse loads each URL on a browsing surface governed by its site rules.

Navigation outside the site's domain is refused, scripts and resources are
judged against the site's lists and clutter elements are removed. The report
lists what was allowed and blocked. Pages matching a gallery pattern are
parsed and stored in the library for the read command.

Examples:
  # Browse a gallery; the site is chosen from the URL's host
  gallerywatch browse https://allporncomic.com/porncomic/some-title/

  # Force a site profile and use headless Chrome
  gallerywatch browse --site allporncomic --surface chrome https://allporncomic.com/

  # Several URLs, two at a time, JSON report to a file
  gallerywatch browse -b 2 -f json -o report.json URL1 URL2 URL3

  # Route everything through an embedded Tor daemon
  gallerywatch browse --tor URL

  # Use an external Tor daemon instead
  gallerywatch browse --tor --external-tor 127.0.0.1:9150 URL`,
		Args: cobra.ArbitraryArgs,
		RunE: runBrowseCmd,
	}

	// Site and surface flags
	cmd.Flags().StringP("site", "s", "",
		"Site profile to use for every URL (default: chosen from each URL's host)")
	cmd.Flags().String("surface", config.SurfaceStatic,
		"Browsing surface: static (HTTP, no scripts) or chrome (headless Chrome)")
	cmd.Flags().String("chrome-path", "",
		"Chrome executable for --surface chrome")
	cmd.Flags().Bool("no-adblock", false,
		"Do not block scripts and resources (navigation rules still apply)")

	// Load behavior flags
	cmd.Flags().DurationP("timeout", "t", config.DefaultTimeout,
		"Timeout for loading one URL, redirects included")
	cmd.Flags().IntP("batch", "b", config.DefaultBatchSize,
		"Number of URLs browsed concurrently")
	cmd.Flags().Float64("rate", config.DefaultRequestsPerSecond,
		"Requests per second per URL (0 disables limiting)")
	cmd.Flags().Int("retry", config.DefaultRetryMax,
		"Retries for transient HTTP failures")
	cmd.Flags().Bool("no-save", false,
		"Do not store galleries or history in the library")

	// Tor flags
	cmd.Flags().Bool("tor", false,
		"Route requests through Tor (starts an embedded daemon)")
	cmd.Flags().StringP("external-tor", "e", "",
		"With --tor, use the Tor proxy at this address (e.g., 127.0.0.1:9150)")
	cmd.Flags().DurationP("tor-timeout", "T", config.DefaultTorStartupTimeout,
		"Timeout for embedded Tor startup")

	// Report flags
	cmd.Flags().StringP("format", "f", formatSimple,
		"Report format: simple, json or markdown")
	cmd.Flags().StringP("output", "o", "",
		"Write report to specified file path (creates directories if needed)")

	return cmd
}

// browseOptions are the browse settings that have no Config field.
type browseOptions struct {
	noSave bool
}

func runBrowseCmd(cmd *cobra.Command, args []string) error {
	cfg, opts, err := buildBrowseConfig(cmd, args)
	if err != nil {
		return err
	}

	if err := cfg.Validate(); err != nil {
		return fmt.Errorf("configuration error: %w", err)
	}

	logger := setupLogger(cfg, cmd.ErrOrStderr())
	slog.SetDefault(logger)

	ctx, stop := signal.NotifyContext(cmd.Context(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	return runBrowse(ctx, cmd, cfg, opts, logger)
}

// buildBrowseConfig creates a Config from the shared configuration and the
// browse flags. Flags override the environment only when set.
func buildBrowseConfig(cmd *cobra.Command, args []string) (*config.Config, browseOptions, error) {
	var opts browseOptions

	cfg, err := loadConfig(cmd)
	if err != nil {
		return nil, opts, err
	}

	flags := cmd.Flags()

	if cfg.Site, err = flags.GetString("site"); err != nil {
		return nil, opts, err
	}
	if flags.Changed("surface") {
		if cfg.Surface, err = flags.GetString("surface"); err != nil {
			return nil, opts, err
		}
	}
	if flags.Changed("chrome-path") {
		if cfg.ChromePath, err = flags.GetString("chrome-path"); err != nil {
			return nil, opts, err
		}
	}
	if flags.Changed("no-adblock") {
		noAdBlock, err := flags.GetBool("no-adblock")
		if err != nil {
			return nil, opts, err
		}
		cfg.AdBlock = !noAdBlock
	}
	if flags.Changed("timeout") {
		if cfg.Timeout, err = flags.GetDuration("timeout"); err != nil {
			return nil, opts, err
		}
	}
	if cfg.BatchSize, err = flags.GetInt("batch"); err != nil {
		return nil, opts, err
	}
	if flags.Changed("rate") {
		if cfg.RequestsPerSecond, err = flags.GetFloat64("rate"); err != nil {
			return nil, opts, err
		}
	}
	if cfg.RetryMax, err = flags.GetInt("retry"); err != nil {
		return nil, opts, err
	}
	if opts.noSave, err = flags.GetBool("no-save"); err != nil {
		return nil, opts, err
	}

	if cfg.UseTor, err = flags.GetBool("tor"); err != nil {
		return nil, opts, err
	}
	externalTor, err := flags.GetString("external-tor")
	if err != nil {
		return nil, opts, err
	}
	if externalTor != "" {
		cfg.UseExternalTor = true
		cfg.TorProxyAddress = externalTor
	}
	if cfg.TorStartupTimeout, err = flags.GetDuration("tor-timeout"); err != nil {
		return nil, opts, err
	}

	format, err := flags.GetString("format")
	if err != nil {
		return nil, opts, err
	}
	switch format {
	case formatSimple:
	case formatJSON:
		cfg.JSONReport = true
	case formatMarkdown:
		cfg.MarkdownReport = true
	default:
		return nil, opts, fmt.Errorf("%w: %q", errUnknownFormat, format)
	}
	if cfg.ReportFile, err = flags.GetString("output"); err != nil {
		return nil, opts, err
	}

	cfg.Targets = args

	return cfg, opts, nil
}

// runBrowse browses cfg.Targets and writes the report.
func runBrowse(ctx context.Context, cmd *cobra.Command, cfg *config.Config, opts browseOptions, logger *slog.Logger) error {
	registry := newRegistry(cfg, logger)
	if cfg.Site != "" {
		if _, ok := registry.Lookup(cfg.Site); !ok {
			return fmt.Errorf("%w: %s (configured: %s)", config.ErrUnknownSite, cfg.Site, siteList(registry.Names()))
		}
	}

	logger.Info("starting browse",
		"targets", len(cfg.Targets),
		"surface", cfg.Surface,
		"site", cfg.Site,
		"adblock", cfg.AdBlock,
		"tor", cfg.UseTor,
	)

	var db *database.LibraryDB
	if !opts.noSave {
		var err error
		db, err = openLibrary(cfg, logger)
		if err != nil {
			return err
		}
		defer db.Close()
	}

	surfaceOpts := []surface.Option{
		surface.WithLogger(logger),
		surface.WithRateLimit(cfg.RequestsPerSecond, cfg.Burst),
		surface.WithRetryMax(cfg.RetryMax),
		surface.WithMaxBodySize(cfg.MaxBodySize),
	}

	if cfg.UseTor {
		client, err := connectTor(ctx, cmd.ErrOrStderr(), cfg, logger)
		if err != nil {
			return err
		}
		defer func() {
			if err := client.Close(); err != nil {
				logger.Error("failed to stop embedded Tor", "error", err)
			}
		}()
		if cfg.Surface == config.SurfaceChrome {
			surfaceOpts = append(surfaceOpts, surface.WithProxyServer(client.ProxyURL()))
		} else {
			surfaceOpts = append(surfaceOpts, surface.WithHTTPClient(client.HTTPClient()))
		}
	}

	var newSurface pipeline.SurfaceFactory
	if cfg.Surface == config.SurfaceChrome {
		if cfg.ChromePath != "" {
			surfaceOpts = append(surfaceOpts, surface.WithChromePath(cfg.ChromePath))
		}
		newSurface = pipeline.ChromeSurfaces(cfg.UserAgent, surfaceOpts...)
	} else {
		newSurface = pipeline.StaticSurfaces(cfg.UserAgent, surfaceOpts...)
	}

	reports, err := browseAll(ctx, cmd.ErrOrStderr(), cfg, registry, newSurface, db, logger)
	if err != nil && !errors.Is(err, context.Canceled) {
		return err
	}

	if werr := writeReport(cmd.OutOrStdout(), cfg, reports); werr != nil {
		return fmt.Errorf("failed to write report: %w", werr)
	}
	if err != nil {
		return err
	}

	if s := model.Summarize(reports); s.Failed > 0 {
		return fmt.Errorf("%w: %d of %d", errBrowseFailed, s.Failed, s.Total)
	}
	return nil
}

// browseAll runs the default pipeline over every target, printing one
// progress line per finished URL to progress.
func browseAll(
	ctx context.Context,
	progress io.Writer,
	cfg *config.Config,
	registry *site.Registry,
	newSurface pipeline.SurfaceFactory,
	db *database.LibraryDB,
	logger *slog.Logger,
) ([]*model.BrowseReport, error) {
	listener := intercept.GalleryListenerFunc(func(_ context.Context, match model.GalleryMatch) {
		logger.Info("gallery detected", "url", match.URL, "pattern", match.Pattern)
	})

	configOpts := []pipeline.DefaultPipelineOption{
		pipeline.WithPipelineSite(cfg.Site),
		pipeline.WithPipelineTimeout(cfg.Timeout),
		pipeline.WithPipelineAdBlock(cfg.AdBlock),
		pipeline.WithPipelineGalleryListener(listener),
	}
	if db != nil {
		configOpts = append(configOpts, pipeline.WithPipelineDB(db))
	}

	bp := pipeline.NewBatchProcessor(
		func() *pipeline.Pipeline {
			// Failed loads still reach the save step so they are recorded
			// in the history.
			return pipeline.DefaultPipeline(registry, newSurface,
				[]pipeline.Option{
					pipeline.WithLogger(logger),
					pipeline.WithContinueOnError(true),
				},
				configOpts...,
			)
		},
		pipeline.WithConcurrency(cfg.BatchSize),
		pipeline.WithBatchLogger(logger),
	)

	startTime := time.Now()
	reports := make([]*model.BrowseReport, len(cfg.Targets))
	var mu sync.Mutex
	done := 0

	err := bp.ProcessBatchWithCallback(ctx, cfg.Targets, func(r *model.BrowseReport, index int) {
		mu.Lock()
		defer mu.Unlock()

		reports[index] = r
		done++
		fmt.Fprintf(progress, "[%d/%d] %s: %s\n", done, len(cfg.Targets), r.URL, progressStatus(r))
	})

	if len(cfg.Targets) > 1 {
		fmt.Fprintf(progress, "Browsed %d URL(s) in %s\n", done, time.Since(startTime).Round(time.Millisecond))
	}
	return reports, err
}

func progressStatus(r *model.BrowseReport) string {
	switch {
	case r.TimedOut:
		return "timed out"
	case !r.Succeeded():
		return "failed"
	case r.Record != nil:
		return fmt.Sprintf("gallery %q (%d images)", r.Record.Title, len(r.Record.Images))
	case r.Gallery.Matched:
		return "gallery"
	default:
		return fmt.Sprintf("ok (%d blocked)", r.Stats.TotalBlocked())
	}
}

// connectTor starts or checks the Tor proxy selected by cfg.
func connectTor(ctx context.Context, progress io.Writer, cfg *config.Config, logger *slog.Logger) (*tor.Client, error) {
	opts := []tor.ConnectOption{
		tor.WithLogger(logger),
		tor.WithEmbeddedStartupTimeout(cfg.TorStartupTimeout),
	}
	if cfg.UseExternalTor {
		opts = append(opts, tor.WithExternalProxy(cfg.TorProxyAddress))
	} else {
		fmt.Fprintln(progress, "Starting embedded Tor daemon...")
		fmt.Fprintln(progress, "This may take 1-3 minutes while Tor bootstraps and connects to the network.")
	}

	client, err := tor.Connect(ctx, opts...)
	if err != nil {
		return nil, fmt.Errorf("tor proxy check failed: %w", err)
	}
	return client, nil
}

// writeReport writes the reports in the format selected by cfg, to
// cfg.ReportFile or out.
func writeReport(out io.Writer, cfg *config.Config, reports []*model.BrowseReport) error {
	if cfg.ReportFile != "" {
		dir := filepath.Dir(cfg.ReportFile)
		if dir != "" && dir != "." {
			if err := os.MkdirAll(dir, 0750); err != nil {
				return fmt.Errorf("failed to create output directory: %w", err)
			}
		}

		// Reports list the sites browsed, so only the owner may read them.
		f, err := os.OpenFile(cfg.ReportFile, os.O_CREATE|os.O_WRONLY|os.O_TRUNC, 0600)
		if err != nil {
			return fmt.Errorf("failed to create output file: %w", err)
		}
		defer f.Close()
		out = f
	}

	var w report.Writer
	switch {
	case cfg.JSONReport:
		w = report.NewJSONWriter(out, report.WithPrettyPrint(), report.WithVersion(getVersion()))
	case cfg.MarkdownReport:
		w = report.NewMarkdownWriter(out)
	default:
		w = report.NewSimpleWriter(out, report.WithVerbose(cfg.Verbose))
	}

	if len(reports) == 1 && reports[0] != nil {
		_, err := w.Write(reports[0])
		return err
	}
	_, err := w.WriteBatch(reports)
	return err
}
