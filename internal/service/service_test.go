package service

import (
	"context"
	"encoding/json"
	"errors"
	"io"
	"log/slog"
	"net/http"
	"net/http/httptest"
	"os"
	"path/filepath"
	"strings"
	"sync"
	"testing"
	"time"

	"github.com/nao1215/webterm/internal/agent"
	"github.com/nao1215/webterm/internal/crawler"
	"github.com/nao1215/webterm/internal/model"
	"github.com/nao1215/webterm/internal/tools"
)

// script returns a model that answers with turns in order and then with
// its last turn.
func script(turns ...*agent.Response) agent.Model {
	var mu sync.Mutex
	n := 0
	return agent.ModelFunc(func(context.Context, agent.Request) (*agent.Response, error) {
		mu.Lock()
		defer mu.Unlock()
		i := min(n, len(turns)-1)
		n++
		return turns[i], nil
	})
}

// blockingModel waits until released or cancelled.
func blockingModel(release <-chan struct{}) agent.Model {
	return agent.ModelFunc(func(ctx context.Context, _ agent.Request) (*agent.Response, error) {
		select {
		case <-release:
			return &agent.Response{Text: "released"}, nil
		case <-ctx.Done():
			return nil, ctx.Err()
		}
	})
}

// siteFetcher serves a three-page site at https://a.com.
type siteFetcher struct{}

func (siteFetcher) Fetch(_ context.Context, pageURL string, _ time.Duration) (*model.Page, error) {
	if pageURL != "https://a.com/" {
		return nil, &crawler.FetchError{URL: pageURL, StatusCode: http.StatusNotFound}
	}
	return &model.Page{
		URL:   pageURL,
		Links: []string{"/docs/intro", "/shop", "https://elsewhere.com/"},
	}, nil
}

// memoryStore records saved reports.
type memoryStore struct {
	mu      sync.Mutex
	reports []*model.ScanReport
}

func (m *memoryStore) SaveTree(_ context.Context, report *model.ScanReport) (string, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.reports = append(m.reports, report)
	return report.ID, nil
}

func quietLogger() *slog.Logger {
	return slog.New(slog.NewTextHandler(io.Discard, nil))
}

func scanTurns() []*agent.Response {
	return []*agent.Response{
		{ToolCalls: []agent.ToolCall{{
			ID:        "crawl",
			Name:      tools.SitePropagatorName,
			Arguments: json.RawMessage(`{"url":"https://a.com","depth":null,"restrictToSubpath":null,"maxPages":null}`),
		}}},
		{ToolCalls: []agent.ToolCall{{
			ID:        "describe",
			Name:      tools.SetPageDescriptionName,
			Arguments: json.RawMessage(`{"url":"https://a.com/","description":"Home"}`),
		}}},
		{Text: "Mapped a.com."},
	}
}

func waitIdle(t *testing.T, s *Service) {
	t.Helper()
	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()
	if err := s.Wait(ctx); err != nil {
		t.Fatalf("Wait: %v", err)
	}
}

// TestServiceScan tests a complete scan task.
func TestServiceScan(t *testing.T) {
	t.Parallel()

	store := &memoryStore{}
	registry := tools.NewDefaultRegistry(tools.Options{Fetcher: siteFetcher{}})
	s := New(script(scanTurns()...), registry, WithStore(store), WithLogger(quietLogger()))

	id, err := s.StartScan(context.Background(), "a.com")
	if err != nil {
		t.Fatalf("StartScan: %v", err)
	}
	if id == "" {
		t.Error("expected a task ID")
	}
	waitIdle(t, s)

	if s.Busy() {
		t.Error("service should be idle")
	}
	report := s.LastReport()
	if report == nil {
		t.Fatal("expected a report")
	}
	if report.ID != id || report.Outcome != model.OutcomeDone || report.FinalText != "Mapped a.com." {
		t.Errorf("report = %+v", report)
	}
	if report.ToolCalls != 2 {
		t.Errorf("tool calls = %d, want 2", report.ToolCalls)
	}

	tree, err := s.Tree()
	if err != nil {
		t.Fatalf("Tree: %v", err)
	}
	if tree.NodeCount() != 3 {
		t.Errorf("nodes = %v", tree.URLs())
	}
	if s.RootURL() != "https://a.com/" {
		t.Errorf("root = %q", s.RootURL())
	}

	rows := s.Rows()
	want := []Row{
		{Root: "https://a.com/", URL: "https://a.com/", Text: "a", Progress: 1},
		{Root: "https://a.com/", URL: "https://a.com/docs/intro", Text: "a › docs › intro"},
		{Root: "https://a.com/", URL: "https://a.com/shop", Text: "a › shop"},
	}
	if len(rows) != len(want) {
		t.Fatalf("rows = %+v", rows)
	}
	for i := range want {
		if rows[i] != want[i] {
			t.Errorf("row %d = %+v, want %+v", i, rows[i], want[i])
		}
	}

	if len(store.reports) != 1 || store.reports[0].Tree == nil {
		t.Errorf("stored reports = %+v", store.reports)
	}
}

// TestServiceStartScanErrors tests argument and busy checks.
func TestServiceStartScanErrors(t *testing.T) {
	t.Parallel()

	t.Run("empty URL", func(t *testing.T) {
		t.Parallel()

		s := New(script(&agent.Response{Text: "x"}), nil, WithLogger(quietLogger()))
		if _, err := s.StartScan(context.Background(), "  "); !errors.Is(err, ErrEmptyURL) {
			t.Errorf("expected ErrEmptyURL, got %v", err)
		}
	})

	t.Run("busy", func(t *testing.T) {
		t.Parallel()

		release := make(chan struct{})
		s := New(blockingModel(release), nil, WithLogger(quietLogger()))
		if _, err := s.StartScan(context.Background(), "https://a.com"); err != nil {
			t.Fatalf("StartScan: %v", err)
		}
		if !s.Busy() {
			t.Error("expected busy")
		}
		if _, err := s.StartScan(context.Background(), "https://b.com"); !errors.Is(err, ErrBusy) {
			t.Errorf("expected ErrBusy, got %v", err)
		}
		if err := s.Clear(); !errors.Is(err, ErrBusy) {
			t.Errorf("Clear while busy: expected ErrBusy, got %v", err)
		}

		close(release)
		waitIdle(t, s)
		if s.LastReport().FinalText != "released" {
			t.Errorf("report = %+v", s.LastReport())
		}
		if _, err := s.StartScan(context.Background(), "https://b.com"); err != nil {
			t.Errorf("second scan after the first finished: %v", err)
		}
		waitIdle(t, s)
	})

	t.Run("cancel", func(t *testing.T) {
		t.Parallel()

		s := New(blockingModel(make(chan struct{})), nil, WithLogger(quietLogger()))
		if _, err := s.StartScan(context.Background(), "https://a.com"); err != nil {
			t.Fatalf("StartScan: %v", err)
		}
		s.Cancel()
		waitIdle(t, s)

		report := s.LastReport()
		if report.Outcome != model.OutcomeCancelled {
			t.Errorf("outcome = %s", report.Outcome)
		}
		if !strings.Contains(report.Error, context.Canceled.Error()) {
			t.Errorf("error = %q", report.Error)
		}
	})
}

// TestServiceProbe tests the reachability probe.
func TestServiceProbe(t *testing.T) {
	t.Parallel()

	headRejected := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if r.Method == http.MethodHead {
			w.WriteHeader(http.StatusMethodNotAllowed)
			return
		}
		w.WriteHeader(http.StatusOK)
	}))
	t.Cleanup(headRejected.Close)

	broken := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, _ *http.Request) {
		w.WriteHeader(http.StatusInternalServerError)
	}))
	t.Cleanup(broken.Close)

	t.Run("GET fallback", func(t *testing.T) {
		t.Parallel()

		s := New(script(&agent.Response{Text: "ok"}), nil,
			WithReachabilityProbe(headRejected.Client(), time.Second),
			WithLogger(quietLogger()))
		if _, err := s.StartScan(context.Background(), headRejected.URL); err != nil {
			t.Errorf("StartScan: %v", err)
		}
		waitIdle(t, s)
	})

	t.Run("server error", func(t *testing.T) {
		t.Parallel()

		s := New(script(&agent.Response{Text: "ok"}), nil,
			WithReachabilityProbe(broken.Client(), time.Second),
			WithLogger(quietLogger()))
		if _, err := s.StartScan(context.Background(), broken.URL); !errors.Is(err, ErrUnreachable) {
			t.Errorf("expected ErrUnreachable, got %v", err)
		}
		if s.Busy() {
			t.Error("a rejected scan must not mark the service busy")
		}
	})
}

// TestServiceSaveLoad tests tree files.
func TestServiceSaveLoad(t *testing.T) {
	t.Parallel()

	t.Run("nothing to save", func(t *testing.T) {
		t.Parallel()

		s := New(nil, nil)
		if _, err := s.Save(filepath.Join(t.TempDir(), "x.json")); !errors.Is(err, ErrNoTree) {
			t.Errorf("expected ErrNoTree, got %v", err)
		}
		if _, err := s.Tree(); !errors.Is(err, ErrNoTree) {
			t.Errorf("expected ErrNoTree, got %v", err)
		}
		if rows := s.Rows(); len(rows) != 0 {
			t.Errorf("rows = %+v", rows)
		}
	})

	t.Run("load then save", func(t *testing.T) {
		t.Parallel()

		dir := t.TempDir()
		tree := model.NewSiteTree("https://www.example.co.uk/docs")
		tree.Add("https://www.example.co.uk/docs", "https://www.example.co.uk/docs/api")
		src := filepath.Join(dir, "in.json")
		if err := tree.Save(src); err != nil {
			t.Fatalf("Save: %v", err)
		}

		s := New(nil, nil)
		if err := s.Load(src); err != nil {
			t.Fatalf("Load: %v", err)
		}
		rows := s.Rows()
		if len(rows) != 2 || rows[0].Text != "example › docs" || rows[1].Text != "example › docs › api" {
			t.Errorf("rows = %+v", rows)
		}

		dst := filepath.Join(dir, "out.json")
		written, err := s.Save(dst)
		if err != nil || written != dst {
			t.Fatalf("Save = %q, %v", written, err)
		}
		reloaded, err := model.LoadSiteTree(dst)
		if err != nil {
			t.Fatalf("LoadSiteTree: %v", err)
		}
		if reloaded.String() != tree.String() {
			t.Errorf("round trip changed the tree:\n%s\nvs\n%s", reloaded, tree)
		}

		if err := s.Clear(); err != nil {
			t.Fatalf("Clear: %v", err)
		}
		if _, err := s.Tree(); !errors.Is(err, ErrNoTree) {
			t.Errorf("expected ErrNoTree after Clear, got %v", err)
		}
	})

	t.Run("tree without root", func(t *testing.T) {
		t.Parallel()

		path := filepath.Join(t.TempDir(), "rootless.json")
		data := `{"root_url": null, "nodes": {}, "children": {}}`
		if err := os.WriteFile(path, []byte(data), 0o600); err != nil {
			t.Fatal(err)
		}
		s := New(nil, nil)
		if err := s.Load(path); !errors.Is(err, ErrTreeWithoutRoot) {
			t.Errorf("expected ErrTreeWithoutRoot, got %v", err)
		}
		if err := s.Restore(model.NewSiteTree("")); !errors.Is(err, ErrTreeWithoutRoot) {
			t.Errorf("expected ErrTreeWithoutRoot from Restore, got %v", err)
		}
	})

	t.Run("restore keeps a private copy", func(t *testing.T) {
		t.Parallel()

		tree := model.NewSiteTree("https://a.com/")
		tree.Add("https://a.com/", "https://a.com/x")

		s := New(nil, nil)
		if err := s.Restore(tree); err != nil {
			t.Fatalf("Restore: %v", err)
		}
		tree.Add("https://a.com/", "https://a.com/y")

		got, err := s.Tree()
		if err != nil {
			t.Fatalf("Tree: %v", err)
		}
		if got.NodeCount() != 2 {
			t.Errorf("NodeCount = %d, want 2", got.NodeCount())
		}
		if s.RootURL() != "https://a.com/" {
			t.Errorf("RootURL = %q", s.RootURL())
		}
	})
}

// TestServiceAsk tests the site-grounded chat.
func TestServiceAsk(t *testing.T) {
	t.Parallel()

	var mu sync.Mutex
	var systems []string
	m := agent.ModelFunc(func(_ context.Context, req agent.Request) (*agent.Response, error) {
		mu.Lock()
		defer mu.Unlock()
		systems = append(systems, req.Entries[0].Content)
		if len(req.Tools) != 0 {
			t.Errorf("chat should offer no tools, got %d", len(req.Tools))
		}
		return &agent.Response{Text: "The docs are at /docs."}, nil
	})
	s := New(m, nil, WithLogger(quietLogger()))

	reply, err := s.Ask(context.Background(), "where are the docs?")
	if err != nil || reply != NoTreeReply {
		t.Errorf("Ask without tree = %q, %v", reply, err)
	}

	path := filepath.Join(t.TempDir(), "t.json")
	if err := model.NewSiteTree("https://a.com/").Save(path); err != nil {
		t.Fatal(err)
	}
	if err := s.Load(path); err != nil {
		t.Fatal(err)
	}

	for range 2 {
		reply, err = s.Ask(context.Background(), "where are the docs?")
		if err != nil || reply != "The docs are at /docs." {
			t.Errorf("Ask = %q, %v", reply, err)
		}
	}
	if len(systems) != 2 || !strings.Contains(systems[0], `"root_url":"https://a.com/"`) {
		t.Errorf("system prompts = %q", systems)
	}
	if !strings.Contains(systems[0], "related to a.") {
		t.Errorf("system prompt should name the site: %q", systems[0])
	}
}

// TestDefaultTreeFile tests default file names.
func TestDefaultTreeFile(t *testing.T) {
	t.Parallel()

	tests := []struct {
		root string
		want string
	}{
		{"https://www.example.com/", "www.json"},
		{"https://example.com/docs", "example.json"},
		{"https://localhost:8080/", "localhost.json"},
		{"", "site.json"},
	}
	for _, tt := range tests {
		if got := DefaultTreeFile(tt.root); got != tt.want {
			t.Errorf("DefaultTreeFile(%q) = %q, want %q", tt.root, got, tt.want)
		}
	}
}
