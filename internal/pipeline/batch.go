package pipeline

import (
	"context"
	"log/slog"
	"time"

	"github.com/google/uuid"
	"golang.org/x/sync/errgroup"

	"github.com/nao1215/webterm/internal/model"
)

// DefaultConcurrency is the number of sites crawled at once.
const DefaultConcurrency = 4

// BatchCrawler crawls several sites concurrently.
//
// Design decision: We use a factory rather than one shared Pipeline so every
// root gets its own steps, built with the settings of that site (headers,
// depth, patterns). Nothing mutable is shared between goroutines.
type BatchCrawler struct {
	factory     PipelineFactory
	concurrency int
	logger      *slog.Logger
	now         func() time.Time
}

// PipelineFactory builds the pipeline for one normalized root URL.
type PipelineFactory func(root string) *Pipeline

// BatchOption configures a BatchCrawler.
type BatchOption func(*BatchCrawler)

// WithBatchLogger sets a custom logger for batch processing.
func WithBatchLogger(logger *slog.Logger) BatchOption {
	return func(b *BatchCrawler) {
		b.logger = logger
	}
}

// WithConcurrency sets the maximum number of concurrent crawls.
func WithConcurrency(n int) BatchOption {
	return func(b *BatchCrawler) {
		if n > 0 {
			b.concurrency = n
		}
	}
}

// NewBatchCrawler creates a BatchCrawler that builds one pipeline per root
// with factory.
func NewBatchCrawler(factory PipelineFactory, opts ...BatchOption) *BatchCrawler {
	b := &BatchCrawler{
		factory:     factory,
		concurrency: DefaultConcurrency,
		now:         time.Now,
	}
	for _, opt := range opts {
		opt(b)
	}
	if b.logger == nil {
		b.logger = slog.Default()
	}
	return b
}

// Crawl runs the pipeline for every root and returns the reports in input
// order. A failing site does not stop the others; its report carries the
// error. Roots that never started because ctx ended have a nil report, and
// the context error is returned.
func (b *BatchCrawler) Crawl(ctx context.Context, roots []string) ([]*model.ScanReport, error) {
	b.logger.Info("starting batch crawl", "sites", len(roots), "concurrency", b.concurrency)
	start := b.now()

	// Each goroutine writes only its own index.
	reports := make([]*model.ScanReport, len(roots))

	g, gctx := errgroup.WithContext(ctx)
	g.SetLimit(b.concurrency)
	for i, root := range roots {
		g.Go(func() error {
			if err := gctx.Err(); err != nil {
				return err
			}

			report := &model.ScanReport{
				ID:        uuid.NewString(),
				RootURL:   model.NormalizeURL(root),
				StartedAt: b.now(),
			}
			if report.RootURL == "" {
				report.RootURL = root
			}

			err := b.factory(report.RootURL).Execute(gctx, report)
			report.FinishedAt = b.now()
			reports[i] = report

			if err != nil {
				b.logger.Warn("crawl failed", "url", report.RootURL, "error", err)
				return nil
			}
			b.logger.Info("crawl finished", "url", report.RootURL, "index", i+1, "total", len(roots))
			return nil
		})
	}
	err := g.Wait()
	if err == nil {
		err = ctx.Err()
	}

	b.logger.Info("batch crawl complete", "sites", len(roots), "elapsed", b.now().Sub(start))
	return reports, err
}
