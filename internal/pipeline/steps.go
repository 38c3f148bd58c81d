package pipeline

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"net/http"
	"slices"
	"time"

	"github.com/nao1215/webterm/internal/crawler"
	"github.com/nao1215/webterm/internal/model"
)

// ErrUnreachable is returned by ProbeStep when the root does not answer.
var ErrUnreachable = errors.New("site is not reachable")

// ProbeStep checks that the root URL answers before anything is crawled.
type ProbeStep struct {
	client *http.Client
}

// NewProbeStep creates a probe that uses client.
func NewProbeStep(client *http.Client) *ProbeStep {
	if client == nil {
		client = http.DefaultClient
	}
	return &ProbeStep{client: client}
}

// Name returns the step name.
func (s *ProbeStep) Name() string {
	return "probe"
}

// Do sends HEAD, then GET when HEAD fails or is refused, and requires a
// status below 400.
func (s *ProbeStep) Do(ctx context.Context, report *model.ScanReport) error {
	status, err := s.request(ctx, http.MethodHead, report.RootURL)
	if err != nil || status >= http.StatusBadRequest {
		status, err = s.request(ctx, http.MethodGet, report.RootURL)
	}
	if err != nil {
		return fmt.Errorf("%w: %s: %w", ErrUnreachable, report.RootURL, err)
	}
	if status >= http.StatusBadRequest {
		return fmt.Errorf("%w: %s: HTTP status %d", ErrUnreachable, report.RootURL, status)
	}
	return nil
}

func (s *ProbeStep) request(ctx context.Context, method, target string) (int, error) {
	req, err := http.NewRequestWithContext(ctx, method, target, nil)
	if err != nil {
		return 0, err
	}
	resp, err := s.client.Do(req)
	if err != nil {
		return 0, err
	}
	_ = resp.Body.Close() //nolint:errcheck // only the status is used
	return resp.StatusCode, nil
}

// CrawlStep builds the site tree of report.RootURL with a fresh Spider and
// records the clickable elements of every fetched page on its node.
type CrawlStep struct {
	fetcher    crawler.Fetcher
	spiderOpts []crawler.SpiderOption
	sink       crawler.PageObserver
	logger     *slog.Logger
}

// CrawlStepOption configures a CrawlStep.
type CrawlStepOption func(*CrawlStep)

// WithSpiderOptions sets the options of every Spider the step creates.
func WithSpiderOptions(opts ...crawler.SpiderOption) CrawlStepOption {
	return func(s *CrawlStep) {
		s.spiderOpts = append(s.spiderOpts, opts...)
	}
}

// WithPageSink forwards every fetched page, for example to the database.
func WithPageSink(sink crawler.PageObserver) CrawlStepOption {
	return func(s *CrawlStep) {
		s.sink = sink
	}
}

// WithCrawlLogger sets a custom logger for the crawl step.
func WithCrawlLogger(logger *slog.Logger) CrawlStepOption {
	return func(s *CrawlStep) {
		s.logger = logger
	}
}

// NewCrawlStep creates a crawl step that fetches with fetcher.
func NewCrawlStep(fetcher crawler.Fetcher, opts ...CrawlStepOption) *CrawlStep {
	s := &CrawlStep{
		fetcher: fetcher,
		logger:  slog.Default(),
	}
	for _, opt := range opts {
		opt(s)
	}
	return s
}

// Name returns the step name.
func (s *CrawlStep) Name() string {
	return "crawl"
}

// Do executes the crawl. A cancelled crawl still stores its partial tree.
func (s *CrawlStep) Do(ctx context.Context, report *model.ScanReport) error {
	buttons := make(map[string][]model.Button)
	observe := func(root string, page *model.Page) {
		buttons[page.URL] = page.Buttons
		if s.sink != nil {
			s.sink(root, page)
		}
	}

	// The step's observer is applied last so it cannot be replaced.
	opts := append(slices.Clone(s.spiderOpts), crawler.WithPageObserver(observe))
	tree, err := crawler.NewSpider(s.fetcher, opts...).Crawl(ctx, report.RootURL)
	if tree != nil {
		for pageURL, list := range buttons {
			_ = tree.SetButtons(pageURL, list) //nolint:errcheck // every fetched page is a node
		}
		report.RootURL = tree.Root()
		report.Tree = tree
		s.logger.Info("crawl completed",
			"url", tree.Root(),
			"nodes", tree.NodeCount(),
			"pages_fetched", len(buttons),
		)
	}
	return err
}

// SnapshotStore persists finished reports.
type SnapshotStore interface {
	SaveTree(ctx context.Context, report *model.ScanReport) (string, error)
}

// PersistStep saves the report and its tree.
type PersistStep struct {
	store SnapshotStore
}

// NewPersistStep creates a persistence step.
func NewPersistStep(store SnapshotStore) *PersistStep {
	return &PersistStep{store: store}
}

// Name returns the step name.
func (s *PersistStep) Name() string {
	return "persist"
}

// Do stores the report. Reports without a tree are skipped.
func (s *PersistStep) Do(ctx context.Context, report *model.ScanReport) error {
	if report.Tree == nil {
		return nil
	}
	// The outcome is not final until Execute returns; a snapshot taken by
	// this step counts as done.
	saved := *report
	saved.Outcome = model.OutcomeDone
	if saved.FinishedAt.IsZero() {
		saved.FinishedAt = time.Now()
	}
	if _, err := s.store.SaveTree(ctx, &saved); err != nil {
		return fmt.Errorf("failed to persist site tree: %w", err)
	}
	return nil
}
