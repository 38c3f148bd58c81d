package main

import (
	"context"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"os"
	"path/filepath"
	"time"

	"github.com/spf13/cobra"

	"github.com/nao1215/webterm/internal/agent"
	"github.com/nao1215/webterm/internal/config"
	"github.com/nao1215/webterm/internal/crawler"
	"github.com/nao1215/webterm/internal/database"
	"github.com/nao1215/webterm/internal/model"
	"github.com/nao1215/webterm/internal/service"
	"github.com/nao1215/webterm/internal/tools"
)

// NewScanCmd creates the scan command.
func NewScanCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "scan [url...]",
		Short: "Map a website with a language model",
		Long: `Scan lets a language model map a website. The model calls tools to crawl
the site, read pages, and record a description and the buttons of each page.
The result is a SiteTree that can be saved as JSON and queried with ask.

The model decides crawl depth and page limits per tool call; the fetch
settings (timeout, delay, proxy, headers, cookies, path patterns) come from
flags and the configuration file. Sites are scanned one after another.

The API key is read from OPENAI_API_KEY or ANTHROPIC_API_KEY depending on
the provider.

Examples:
  # Map a site with the default OpenAI model
  webterm scan https://example.com

  # Use Anthropic and allow more tool calls
  webterm scan --provider anthropic --max-tool-calls 12 https://example.com/docs

  # Save the tree as example.json and print a Markdown report
  webterm scan -s -m https://example.com

Configuration file (.webterm) example:
  sites:
    intranet.example.com:
      cookie: "session_id=abc123"
      headers:
        Authorization: "Bearer token"`,
		Args: cobra.ArbitraryArgs,
		RunE: runScanCmd,
	}

	addCrawlFlags(cmd, false)
	addModelFlags(cmd)
	addReportFlags(cmd)
	addDatabaseFlags(cmd, true)
	cmd.Flags().BoolP("save", "s", false,
		"Save each site tree as <site>.json")
	cmd.Flags().String("save-dir", ".",
		"Directory for trees written by --save")

	return cmd
}

// scanOptions are the scan-only settings that do not belong in config.Config.
type scanOptions struct {
	save    bool
	saveDir string
}

// runScanCmd executes the scan command.
func runScanCmd(cmd *cobra.Command, args []string) error {
	cfg, opts, err := buildScanConfig(cmd, args, os.Getenv)
	if err != nil {
		return err
	}

	if err := cfg.Validate(); err != nil {
		return fmt.Errorf("configuration error: %w", err)
	}
	if err := cfg.ValidateModel(); err != nil {
		return fmt.Errorf("configuration error: %w", err)
	}

	logger := setupLogger(cfg.Verbose)
	ctx, stop := withSignals(cmd.Context(), logger)
	defer stop()

	store, err := openStore(cfg, logger)
	if err != nil {
		return err
	}
	if store != nil {
		defer store.Close()
	}

	m, err := agent.NewModel(agent.ProviderConfig{
		Provider: cfg.Provider,
		Model:    cfg.Model,
		APIKey:   cfg.APIKey,
		BaseURL:  cfg.BaseURL,
	})
	if err != nil {
		return err
	}

	return runScan(ctx, cfg, m, store, logger, opts, cmd.OutOrStdout(), cmd.ErrOrStderr())
}

// buildScanConfig creates a Config from the scan flags and the environment.
func buildScanConfig(cmd *cobra.Command, args []string, getenv func(string) string) (*config.Config, scanOptions, error) {
	cfg := config.NewConfig()
	var opts scanOptions

	if err := readCrawlFlags(cmd, cfg, args); err != nil {
		return nil, opts, err
	}
	if err := readModelFlags(cmd, cfg, getenv); err != nil {
		return nil, opts, err
	}
	if err := readReportFlags(cmd, cfg); err != nil {
		return nil, opts, err
	}
	if err := readDatabaseFlags(cmd, cfg); err != nil {
		return nil, opts, err
	}
	cfg.Verbose = getVerboseFlag(cmd)

	var err error
	if opts.save, err = cmd.Flags().GetBool("save"); err != nil {
		return nil, opts, err
	}
	if opts.saveDir, err = cmd.Flags().GetString("save-dir"); err != nil {
		return nil, opts, err
	}
	return cfg, opts, nil
}

// runScan maps every target with m and writes one report per site.
func runScan(ctx context.Context, cfg *config.Config, m agent.Model, store *database.TreeStore, logger *slog.Logger, opts scanOptions, stdout, stderr io.Writer) error {
	logger.Info("starting scan",
		"targets", cfg.Targets,
		"provider", cfg.Provider,
		"maxToolCalls", cfg.MaxToolCalls,
		"saveToDB", store != nil,
	)

	output, closeOutput, err := openReportOutput(cfg, stdout)
	if err != nil {
		return err
	}
	defer closeOutput() //nolint:errcheck // the write error is what matters
	writer := newReportWriter(cfg, output)

	failed := 0
	for _, target := range cfg.Targets {
		if err := ctx.Err(); err != nil {
			return err
		}

		rep, err := scanSite(ctx, cfg, m, target, store, logger, opts, stderr)
		if err != nil {
			logger.Error("scan failed", "target", target, "error", err)
			fmt.Fprintf(stderr, "Scan error for %s: %v\n", target, err)
			failed++
			continue
		}
		if rep.Outcome == model.OutcomeError {
			failed++
		}
		if _, err := writer.Write(rep); err != nil {
			return fmt.Errorf("failed to write report: %w", err)
		}
	}

	if failed > 0 {
		return fmt.Errorf("%d of %d site(s) failed", failed, len(cfg.Targets))
	}
	return nil
}

// scanSite runs one mapping task and waits for it to finish.
func scanSite(ctx context.Context, cfg *config.Config, m agent.Model, target string, store *database.TreeStore, logger *slog.Logger, opts scanOptions, stderr io.Writer) (*model.ScanReport, error) {
	site := cfg.SiteConfigs.ForURL(target)
	httpFetcher, client, err := newFetcher(cfg, site)
	if err != nil {
		return nil, err
	}

	var fetcher crawler.Fetcher = httpFetcher
	if store != nil {
		fetcher = &recordingFetcher{
			Fetcher: httpFetcher,
			store:   store,
			root:    model.NormalizeURL(target),
			logger:  logger,
		}
	}

	registry := tools.NewDefaultRegistry(tools.Options{
		Fetcher:       fetcher,
		FetchTimeout:  cfg.Timeout,
		SpiderOptions: baseSpiderOptions(cfg, site, logger),
	})

	svcOpts := []service.Option{
		service.WithToolCallBudget(cfg.MaxToolCalls),
		service.WithRequestTimeout(cfg.RequestTimeout),
		service.WithReachabilityProbe(client, service.DefaultProbeTimeout),
		service.WithLogger(logger),
	}
	if store != nil {
		svcOpts = append(svcOpts, service.WithStore(store))
	}
	svc := service.New(m, registry, svcOpts...)

	id, err := svc.StartScan(ctx, target)
	if err != nil {
		return nil, err
	}
	fmt.Fprintf(stderr, "Mapping %s (task %s)...\n", svc.RootURL(), id)

	// The task stops by itself when ctx ends, so wait for it unconditionally
	// to keep the partial tree.
	if err := svc.Wait(context.Background()); err != nil {
		return nil, err
	}
	rep := svc.LastReport()
	if rep == nil {
		return nil, fmt.Errorf("scan of %s produced no report", target)
	}
	fmt.Fprintf(stderr, "Scan finished in %s (%s, %d tool calls)\n",
		rep.Duration().Round(time.Millisecond), rep.Outcome, rep.ToolCalls)

	if opts.save {
		path := filepath.Join(opts.saveDir, service.DefaultTreeFile(svc.RootURL()))
		saved, err := svc.Save(path)
		switch {
		case errors.Is(err, service.ErrNoTree):
			fmt.Fprintf(stderr, "No site tree to save for %s\n", svc.RootURL())
		case err != nil:
			return rep, fmt.Errorf("failed to save site tree: %w", err)
		default:
			fmt.Fprintf(stderr, "Saved site tree to %s\n", saved)
		}
	}
	return rep, nil
}
