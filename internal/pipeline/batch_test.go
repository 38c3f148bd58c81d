package pipeline

import (
	"context"
	"errors"
	"sync/atomic"
	"testing"
	"time"

	"github.com/nao1215/webterm/internal/model"
)

// TestBatchCrawler tests concurrent crawls of several sites.
func TestBatchCrawler(t *testing.T) {
	t.Parallel()

	t.Run("keeps input order", func(t *testing.T) {
		t.Parallel()

		factory := func(string) *Pipeline {
			return New([]Step{NewCrawlStep(sampleSite(), WithCrawlLogger(quietLogger()))}, WithLogger(quietLogger()))
		}
		b := NewBatchCrawler(factory, WithConcurrency(2), WithBatchLogger(quietLogger()))

		roots := []string{"https://a.com", "https://b.com", "a.com/docs"}
		reports, err := b.Crawl(context.Background(), roots)
		if err != nil {
			t.Fatalf("Crawl: %v", err)
		}
		if len(reports) != 3 {
			t.Fatalf("reports = %d", len(reports))
		}
		wantRoots := []string{"https://a.com/", "https://b.com/", "https://a.com/docs"}
		for i, r := range reports {
			if r.RootURL != wantRoots[i] {
				t.Errorf("report %d root = %q, want %q", i, r.RootURL, wantRoots[i])
			}
			if r.Outcome != model.OutcomeDone || r.ID == "" || r.FinishedAt.IsZero() {
				t.Errorf("report %d = %+v", i, r)
			}
		}
		if reports[0].Tree.NodeCount() != 3 {
			t.Errorf("a.com nodes = %v", reports[0].Tree.URLs())
		}
		if reports[1].Tree.NodeCount() != 1 {
			t.Errorf("unreachable b.com should keep only its root, got %v", reports[1].Tree.URLs())
		}
	})

	t.Run("one failure does not stop the others", func(t *testing.T) {
		t.Parallel()

		var processed atomic.Int32
		factory := func(string) *Pipeline {
			return New([]Step{&mockStep{
				name: "sometimes-fails",
				doFunc: func(_ context.Context, report *model.ScanReport) error {
					processed.Add(1)
					if report.RootURL == "https://fail.com/" {
						return errors.New("simulated failure")
					}
					return nil
				},
			}}, WithLogger(quietLogger()))
		}
		b := NewBatchCrawler(factory, WithBatchLogger(quietLogger()))

		reports, err := b.Crawl(context.Background(), []string{"ok.com", "fail.com", "fine.com"})
		if err != nil {
			t.Fatalf("Crawl: %v", err)
		}
		if processed.Load() != 3 {
			t.Errorf("processed = %d", processed.Load())
		}
		if reports[1].Outcome != model.OutcomeError || reports[1].Error == "" {
			t.Errorf("failed report = %+v", reports[1])
		}
		if reports[2].Outcome != model.OutcomeDone {
			t.Errorf("third report = %+v", reports[2])
		}
	})

	t.Run("respects the concurrency limit", func(t *testing.T) {
		t.Parallel()

		var running, peak atomic.Int32
		factory := func(string) *Pipeline {
			return New([]Step{&mockStep{
				name: "slow",
				doFunc: func(context.Context, *model.ScanReport) error {
					n := running.Add(1)
					for {
						p := peak.Load()
						if n <= p || peak.CompareAndSwap(p, n) {
							break
						}
					}
					time.Sleep(20 * time.Millisecond)
					running.Add(-1)
					return nil
				},
			}}, WithLogger(quietLogger()))
		}
		b := NewBatchCrawler(factory, WithConcurrency(2), WithBatchLogger(quietLogger()))

		if _, err := b.Crawl(context.Background(), []string{"a.com", "b.com", "c.com", "d.com", "e.com"}); err != nil {
			t.Fatalf("Crawl: %v", err)
		}
		if peak.Load() > 2 {
			t.Errorf("peak concurrency = %d, want <= 2", peak.Load())
		}
	})

	t.Run("handles context cancellation", func(t *testing.T) {
		t.Parallel()

		ctx, cancel := context.WithCancel(context.Background())
		var started atomic.Int32
		factory := func(string) *Pipeline {
			return New([]Step{&mockStep{
				name: "slow",
				doFunc: func(ctx context.Context, _ *model.ScanReport) error {
					started.Add(1)
					select {
					case <-ctx.Done():
						return ctx.Err()
					case <-time.After(time.Second):
						return nil
					}
				},
			}}, WithLogger(quietLogger()))
		}
		b := NewBatchCrawler(factory, WithConcurrency(2), WithBatchLogger(quietLogger()))

		roots := make([]string, 10)
		for i := range roots {
			roots[i] = "site.com"
		}
		go func() {
			time.Sleep(50 * time.Millisecond)
			cancel()
		}()

		reports, err := b.Crawl(ctx, roots)
		if !errors.Is(err, context.Canceled) {
			t.Errorf("expected context.Canceled, got %v", err)
		}
		if started.Load() >= int32(len(roots)) {
			t.Errorf("expected some sites not to start, all %d did", started.Load())
		}
		if reports[0] == nil || reports[0].Outcome != model.OutcomeCancelled {
			t.Errorf("first report = %+v", reports[0])
		}
	})
}
