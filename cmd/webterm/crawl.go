package main

import (
	"context"
	"fmt"
	"io"
	"log/slog"
	"time"

	"github.com/spf13/cobra"

	"github.com/nao1215/webterm/internal/config"
	"github.com/nao1215/webterm/internal/database"
	"github.com/nao1215/webterm/internal/model"
	"github.com/nao1215/webterm/internal/pipeline"
)

// NewCrawlCmd creates the crawl command.
func NewCrawlCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "crawl [url...]",
		Short: "Build site trees without a language model",
		Long: `Crawl builds a SiteTree for each site by following links breadth-first.
No model is involved, so pages get buttons but no descriptions.

Sites are crawled concurrently. Every site is probed first; unreachable
sites are reported as errors without stopping the others. Pages and trees
are stored in the database unless --no-db is set.

Examples:
  # Map the documentation section of a site two levels deep
  webterm crawl -d 2 https://example.com/docs

  # Crawl several sites, four at a time
  webterm crawl -b 4 https://a.example https://b.example

  # Read sites from a file and write a Markdown report
  webterm crawl --list sites.txt -m -o report.md`,
		Args: cobra.ArbitraryArgs,
		RunE: runCrawlCmd,
	}

	addCrawlFlags(cmd, true)
	cmd.Flags().IntP("batch", "b", config.DefaultConcurrency,
		"Number of sites crawled concurrently")
	addReportFlags(cmd)
	addDatabaseFlags(cmd, true)

	return cmd
}

// runCrawlCmd executes the crawl command.
func runCrawlCmd(cmd *cobra.Command, args []string) error {
	cfg := config.NewConfig()
	if err := readCrawlFlags(cmd, cfg, args); err != nil {
		return err
	}
	if err := readReportFlags(cmd, cfg); err != nil {
		return err
	}
	if err := readDatabaseFlags(cmd, cfg); err != nil {
		return err
	}
	var err error
	if cfg.Concurrency, err = cmd.Flags().GetInt("batch"); err != nil {
		return err
	}
	cfg.Verbose = getVerboseFlag(cmd)

	if err := cfg.Validate(); err != nil {
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

	return runCrawl(ctx, cfg, store, logger, cmd.OutOrStdout(), cmd.ErrOrStderr())
}

// runCrawl crawls every target and writes one report per site.
func runCrawl(ctx context.Context, cfg *config.Config, store *database.TreeStore, logger *slog.Logger, stdout, stderr io.Writer) error {
	logger.Info("starting crawl",
		"targets", cfg.Targets,
		"concurrency", cfg.Concurrency,
		"saveToDB", store != nil,
	)

	fmt.Fprintf(stderr, "Crawling %d site(s) (concurrency: %d)...\n", len(cfg.Targets), cfg.Concurrency)
	startTime := time.Now()

	batch := pipeline.NewBatchCrawler(
		func(root string) *pipeline.Pipeline {
			return newSitePipeline(cfg, root, store, logger)
		},
		pipeline.WithConcurrency(cfg.Concurrency),
		pipeline.WithBatchLogger(logger),
	)
	reports, crawlErr := batch.Crawl(ctx, cfg.Targets)

	fmt.Fprintf(stderr, "Crawl completed in %s\n\n", time.Since(startTime).Round(time.Millisecond))

	output, closeOutput, err := openReportOutput(cfg, stdout)
	if err != nil {
		return err
	}
	defer closeOutput() //nolint:errcheck // the write error is what matters

	writer := newReportWriter(cfg, output)
	failed := 0
	for _, rep := range reports {
		if rep == nil {
			continue
		}
		if rep.Outcome == model.OutcomeError {
			failed++
		}
		if _, err := writer.Write(rep); err != nil {
			return fmt.Errorf("failed to write report: %w", err)
		}
	}

	if crawlErr != nil {
		return crawlErr
	}
	if failed > 0 {
		return fmt.Errorf("%d of %d site(s) failed", failed, len(cfg.Targets))
	}
	return nil
}

// newSitePipeline builds the probe, crawl and persist steps for one root,
// with the settings of that site.
func newSitePipeline(cfg *config.Config, root string, store *database.TreeStore, logger *slog.Logger) *pipeline.Pipeline {
	site := cfg.SiteConfigs.ForURL(root)
	opts := []pipeline.Option{pipeline.WithLogger(logger)}

	fetcher, client, err := newFetcher(cfg, site)
	if err != nil {
		return pipeline.New([]pipeline.Step{failedStep{err: err}}, opts...)
	}

	crawlOpts := []pipeline.CrawlStepOption{
		pipeline.WithSpiderOptions(spiderOptions(cfg, site, logger)...),
		pipeline.WithCrawlLogger(logger),
	}
	if store != nil {
		crawlOpts = append(crawlOpts, pipeline.WithPageSink(func(root string, page *model.Page) {
			recordPage(context.Background(), store, root, page, logger)
		}))
	}

	steps := []pipeline.Step{
		pipeline.NewProbeStep(client),
		pipeline.NewCrawlStep(fetcher, crawlOpts...),
	}
	if store != nil {
		steps = append(steps, pipeline.NewPersistStep(store))
	}
	return pipeline.New(steps, opts...)
}

// failedStep fails a pipeline that could not be built, so the error shows
// up in that site's report.
type failedStep struct {
	err error
}

// Name returns the step name.
func (failedStep) Name() string {
	return "setup"
}

// Do returns the setup error.
func (s failedStep) Do(context.Context, *model.ScanReport) error {
	return s.err
}
