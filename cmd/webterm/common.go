package main

import (
	"context"
	"fmt"
	"io"
	"log/slog"
	"net/http"
	"os"
	"os/signal"
	"path/filepath"
	"syscall"
	"time"

	"github.com/nao1215/webterm/internal/config"
	"github.com/nao1215/webterm/internal/crawler"
	"github.com/nao1215/webterm/internal/database"
	applog "github.com/nao1215/webterm/internal/log"
	"github.com/nao1215/webterm/internal/model"
	"github.com/nao1215/webterm/internal/report"
)

// setupLogger creates the secure structured logger written to stderr.
// Only warnings and errors are shown unless verbose is set.
func setupLogger(verbose bool) *slog.Logger {
	return applog.NewSecureLogger(os.Stderr, verbose)
}

// withSignals returns a context that is cancelled on SIGINT or SIGTERM.
// The returned stop function releases the signal handler.
func withSignals(parent context.Context, logger *slog.Logger) (context.Context, context.CancelFunc) {
	ctx, cancel := context.WithCancel(parent)

	sigCh := make(chan os.Signal, 1)
	signal.Notify(sigCh, os.Interrupt, syscall.SIGTERM)
	go func() {
		select {
		case <-sigCh:
			logger.Warn("received shutdown signal, cancelling...")
			cancel()
		case <-ctx.Done():
		}
	}()

	return ctx, func() {
		signal.Stop(sigCh)
		cancel()
	}
}

// newFetcher builds the HTTP client and fetcher for one site.
// The client is also used for reachability probes.
func newFetcher(cfg *config.Config, site config.SiteConfig) (*crawler.HTTPFetcher, *http.Client, error) {
	client, err := crawler.NewHTTPClient(crawler.ClientConfig{
		ProxyAddress: cfg.ProxyAddress,
		Headers:      site.Headers,
		Cookie:       site.Cookie,
	})
	if err != nil {
		return nil, nil, err
	}

	userAgent := cfg.UserAgent
	if site.UserAgent != "" {
		userAgent = site.UserAgent
	}
	fetcher := crawler.NewHTTPFetcher(
		crawler.WithHTTPClient(client),
		crawler.WithUserAgent(userAgent),
		crawler.WithMaxBodySize(cfg.MaxBodySize),
	)
	return fetcher, client, nil
}

// baseSpiderOptions are the crawl settings a model cannot override:
// fetch timeout, politeness delay and path filters.
func baseSpiderOptions(cfg *config.Config, site config.SiteConfig, logger *slog.Logger) []crawler.SpiderOption {
	return []crawler.SpiderOption{
		crawler.WithFetchTimeout(cfg.Timeout),
		crawler.WithDelay(cfg.CrawlDelay),
		crawler.WithIgnorePatterns(site.IgnorePatterns),
		crawler.WithFollowPatterns(site.FollowPatterns),
		crawler.WithLogger(logger),
	}
}

// spiderOptions are the full crawl settings of one site. Site-specific values
// override the global ones.
func spiderOptions(cfg *config.Config, site config.SiteConfig, logger *slog.Logger) []crawler.SpiderOption {
	depth := cfg.CrawlDepth
	if site.Depth > 0 {
		depth = site.Depth
	}
	maxPages := cfg.MaxPages
	if site.MaxPages > 0 {
		maxPages = site.MaxPages
	}
	restrict := cfg.RestrictToSubpath
	if site.RestrictToSubpath != nil {
		restrict = *site.RestrictToSubpath
	}

	return append(baseSpiderOptions(cfg, site, logger),
		crawler.WithMaxDepth(depth),
		crawler.WithMaxPages(maxPages),
		crawler.WithRestrictToSubpath(restrict),
	)
}

// openStore opens the tree database, or returns nil when it is disabled.
func openStore(cfg *config.Config, logger *slog.Logger) (*database.TreeStore, error) {
	if !cfg.SaveToDB {
		return nil, nil //nolint:nilnil // a disabled store is not an error
	}
	store, err := database.Open(cfg.DBDir, database.DefaultOptions())
	if err != nil {
		return nil, fmt.Errorf("failed to open database: %w", err)
	}
	logger.Debug("database opened", "path", store.Path())
	return store, nil
}

// openExistingStore opens the tree database for reading. It fails when no
// scan has created it yet.
func openExistingStore(dbDir string) (*database.TreeStore, error) {
	store, err := database.Open(dbDir, database.Options{})
	if err != nil {
		return nil, fmt.Errorf("failed to open database: %w", err)
	}
	return store, nil
}

// recordingFetcher stores every page it fetches under one root URL.
// Store failures are logged and never fail the fetch.
type recordingFetcher struct {
	crawler.Fetcher
	store  *database.TreeStore
	root   string
	logger *slog.Logger
}

// Fetch fetches pageURL and records the page.
func (f *recordingFetcher) Fetch(ctx context.Context, pageURL string, timeout time.Duration) (*model.Page, error) {
	page, err := f.Fetcher.Fetch(ctx, pageURL, timeout)
	if err != nil {
		return nil, err
	}
	recordPage(ctx, f.store, f.root, page, f.logger)
	return page, nil
}

// recordPage stores page under root. A nil store does nothing.
func recordPage(ctx context.Context, store *database.TreeStore, root string, page *model.Page, logger *slog.Logger) {
	if store == nil {
		return
	}
	if err := store.InsertPage(ctx, root, page); err != nil {
		logger.Warn("failed to store page", "url", page.URL, "error", err)
	}
}

// openReportOutput returns the report destination: the --output file, or
// stdout when none is set. The close function must always be called.
func openReportOutput(cfg *config.Config, stdout io.Writer) (io.Writer, func() error, error) {
	if cfg.ReportFile == "" {
		return stdout, func() error { return nil }, nil
	}

	dir := filepath.Dir(cfg.ReportFile)
	if dir != "" && dir != "." {
		if err := os.MkdirAll(dir, 0750); err != nil {
			return nil, nil, fmt.Errorf("failed to create output directory: %w", err)
		}
	}

	// Reports may contain authenticated pages, so only the owner can read them.
	f, err := os.OpenFile(cfg.ReportFile, os.O_CREATE|os.O_WRONLY|os.O_TRUNC, 0600)
	if err != nil {
		return nil, nil, fmt.Errorf("failed to create output file: %w", err)
	}
	return f, f.Close, nil
}

// newReportWriter returns the writer for the requested report format.
func newReportWriter(cfg *config.Config, output io.Writer) report.Writer {
	switch {
	case cfg.JSONReport:
		return report.NewFullJSONWriter(output, getVersion(), report.WithPrettyPrint())
	case cfg.MarkdownReport:
		return report.NewMarkdownWriter(output)
	default:
		return report.NewSimpleWriter(output, report.WithVerbose(cfg.Verbose))
	}
}
