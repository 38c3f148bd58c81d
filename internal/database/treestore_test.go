package database

import (
	"context"
	"errors"
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/nao1215/webterm/internal/model"
)

// setupTestDB creates a temporary database for testing.
func setupTestDB(t *testing.T) *TreeStore {
	t.Helper()

	store, err := Open(t.TempDir(), DefaultOptions())
	if err != nil {
		t.Fatalf("failed to open database: %v", err)
	}
	t.Cleanup(func() { _ = store.Close() })
	return store
}

func sampleReport(id, root string, finished time.Time) *model.ScanReport {
	tree := model.NewSiteTree(root)
	tree.Add(root, root+"docs")
	_ = tree.SetDescription(root, "Home") //nolint:errcheck // root exists
	return &model.ScanReport{
		ID:         id,
		RootURL:    root,
		StartedAt:  finished.Add(-time.Minute),
		FinishedAt: finished,
		Outcome:    model.OutcomeDone,
		ToolCalls:  3,
		FinalText:  "done",
		Tree:       tree,
	}
}

// TestOpen tests database opening and creation.
func TestOpen(t *testing.T) {
	t.Parallel()

	t.Run("creates database in new directory", func(t *testing.T) {
		t.Parallel()

		dbDir := filepath.Join(t.TempDir(), "newdir", "subdir")
		store, err := Open(dbDir, DefaultOptions())
		if err != nil {
			t.Fatalf("failed to open database: %v", err)
		}
		defer store.Close()

		if _, err := os.Stat(filepath.Join(dbDir, FileName)); err != nil {
			t.Errorf("database file was not created: %v", err)
		}
		if store.Path() != filepath.Join(dbDir, FileName) {
			t.Errorf("Path = %q", store.Path())
		}
	})

	t.Run("CreateIfNotExists=false returns error when database does not exist", func(t *testing.T) {
		t.Parallel()

		dbDir := filepath.Join(t.TempDir(), "missing")
		_, err := Open(dbDir, Options{CreateIfNotExists: false, EnableWAL: true})
		if !errors.Is(err, ErrDatabaseNotFound) {
			t.Fatalf("expected ErrDatabaseNotFound, got %v", err)
		}
		if _, statErr := os.Stat(dbDir); !os.IsNotExist(statErr) {
			t.Error("database directory should not have been created")
		}
	})

	t.Run("CreateIfNotExists=false opens existing database", func(t *testing.T) {
		t.Parallel()

		dbDir := filepath.Join(t.TempDir(), "existing")
		first, err := Open(dbDir, DefaultOptions())
		if err != nil {
			t.Fatalf("failed to create database: %v", err)
		}
		ctx := context.Background()
		if _, err := first.SaveTree(ctx, sampleReport("r1", "https://a.com/", time.Now())); err != nil {
			t.Fatalf("SaveTree: %v", err)
		}
		first.Close()

		second, err := Open(dbDir, Options{CreateIfNotExists: false})
		if err != nil {
			t.Fatalf("failed to reopen: %v", err)
		}
		defer second.Close()

		report, err := second.TreeByID(ctx, "r1")
		if err != nil || report == nil {
			t.Errorf("expected the snapshot to persist, got %v, %v", report, err)
		}
	})
}

// TestDefaultOptions tests the default options values.
func TestDefaultOptions(t *testing.T) {
	t.Parallel()

	opts := DefaultOptions()
	if !opts.CreateIfNotExists || !opts.EnableWAL {
		t.Errorf("unexpected defaults: %+v", opts)
	}
}

// TestPages tests page upserts and queries.
func TestPages(t *testing.T) {
	t.Parallel()

	store := setupTestDB(t)
	ctx := context.Background()
	root := "https://a.com/"
	fetched := time.Date(2026, 1, 2, 3, 4, 5, 0, time.UTC)

	page := &model.Page{
		URL:         "https://a.com/b",
		StatusCode:  200,
		ContentType: "text/html",
		Hash:        "abc",
		Buttons:     []model.Button{{Selector: "#go", Text: "Go"}},
		FetchedAt:   fetched,
	}
	if err := store.InsertPage(ctx, root, page); err != nil {
		t.Fatalf("InsertPage: %v", err)
	}
	if err := store.InsertPage(ctx, root, &model.Page{URL: "https://a.com/a", StatusCode: 200, FetchedAt: fetched}); err != nil {
		t.Fatalf("InsertPage: %v", err)
	}
	if err := store.InsertPage(ctx, "https://other.com/", &model.Page{URL: "https://other.com/", StatusCode: 200}); err != nil {
		t.Fatalf("InsertPage: %v", err)
	}

	// Refetch replaces the row.
	page.Hash = "def"
	page.Buttons = nil
	if err := store.InsertPage(ctx, root, page); err != nil {
		t.Fatalf("InsertPage: %v", err)
	}

	records, err := store.PagesForRoot(ctx, root)
	if err != nil {
		t.Fatalf("PagesForRoot: %v", err)
	}
	if len(records) != 2 {
		t.Fatalf("records = %+v", records)
	}
	if records[0].URL != "https://a.com/a" || records[1].URL != "https://a.com/b" {
		t.Errorf("order = %s, %s", records[0].URL, records[1].URL)
	}
	b := records[1]
	if b.Hash != "def" || b.ButtonCount != 0 || b.ContentType != "text/html" || b.StatusCode != 200 {
		t.Errorf("record = %+v", b)
	}
	if !b.FetchedAt.Equal(fetched) {
		t.Errorf("FetchedAt = %v, want %v", b.FetchedAt, fetched)
	}
}

// TestTrees tests snapshot storage.
func TestTrees(t *testing.T) {
	t.Parallel()

	store := setupTestDB(t)
	ctx := context.Background()
	base := time.Date(2026, 3, 1, 12, 0, 0, 0, time.UTC)

	older := sampleReport("old", "https://a.com/", base)
	newer := sampleReport("new", "https://a.com/", base.Add(time.Hour))
	newer.Outcome = model.OutcomeBudgetExhausted
	other := sampleReport("", "https://b.com/", base.Add(2*time.Hour))

	for _, r := range []*model.ScanReport{older, newer} {
		if _, err := store.SaveTree(ctx, r); err != nil {
			t.Fatalf("SaveTree: %v", err)
		}
	}
	otherID, err := store.SaveTree(ctx, other)
	if err != nil {
		t.Fatalf("SaveTree: %v", err)
	}
	if otherID == "" {
		t.Error("expected a generated ID")
	}

	t.Run("latest", func(t *testing.T) {
		t.Parallel()

		got, err := store.LatestTree(ctx, "https://a.com/")
		if err != nil {
			t.Fatalf("LatestTree: %v", err)
		}
		if got.ID != "new" || got.Outcome != model.OutcomeBudgetExhausted {
			t.Errorf("got %+v", got)
		}
		if got.Tree == nil || got.Tree.Root() != "https://a.com/" || got.Tree.NodeCount() != 2 {
			t.Fatalf("tree = %v", got.Tree)
		}
		if node, _ := got.Tree.Node("https://a.com/"); node.Description != "Home" {
			t.Errorf("description = %q", node.Description)
		}
	})

	t.Run("missing root", func(t *testing.T) {
		t.Parallel()

		got, err := store.LatestTree(ctx, "https://none.com/")
		if err != nil || got != nil {
			t.Errorf("got %v, %v", got, err)
		}
	})

	t.Run("list", func(t *testing.T) {
		t.Parallel()

		all, err := store.ListTrees(ctx, "")
		if err != nil {
			t.Fatalf("ListTrees: %v", err)
		}
		if len(all) != 3 || all[0].ID != otherID || all[2].ID != "old" {
			t.Errorf("all = %+v", all)
		}
		if all[2].NodeCount != 2 || all[2].ToolCalls != 3 || !all[2].CreatedAt.Equal(base) {
			t.Errorf("record = %+v", all[2])
		}

		forA, err := store.ListTrees(ctx, "https://a.com/")
		if err != nil {
			t.Fatalf("ListTrees: %v", err)
		}
		if len(forA) != 2 {
			t.Errorf("for a.com = %+v", forA)
		}
	})

	t.Run("roots", func(t *testing.T) {
		t.Parallel()

		roots, err := store.ListRoots(ctx)
		if err != nil {
			t.Fatalf("ListRoots: %v", err)
		}
		if len(roots) != 2 || roots[0] != "https://a.com/" || roots[1] != "https://b.com/" {
			t.Errorf("roots = %v", roots)
		}
	})
}

// TestParseTimestamp tests timestamp parsing with multiple formats.
func TestParseTimestamp(t *testing.T) {
	t.Parallel()

	want := time.Date(2024, 1, 15, 10, 30, 0, 0, time.UTC)
	for _, in := range []string{
		"2024-01-15 10:30:00",
		"2024-01-15T10:30:00Z",
		formatTimestamp(want),
	} {
		if got := parseTimestamp(in); !got.Equal(want) {
			t.Errorf("parseTimestamp(%q) = %v", in, got)
		}
	}
	if got := parseTimestamp("garbage"); !got.IsZero() {
		t.Errorf("expected zero time, got %v", got)
	}
}
