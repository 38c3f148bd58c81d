package database

import (
	"context"
	"database/sql"
	"encoding/json"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"time"

	"github.com/google/uuid"
	_ "modernc.org/sqlite" // SQLite driver

	"github.com/nao1215/webterm/internal/model"
)

// FileName is the database file inside the data directory.
const FileName = "webterm.db"

// ErrDatabaseNotFound is returned by Open when the database must exist but does not.
var ErrDatabaseNotFound = errors.New("database not found")

// TreeStore stores fetched pages and site tree snapshots.
// It is safe for concurrent use.
type TreeStore struct {
	db     *sql.DB
	dbPath string
}

// Options configures TreeStore behavior.
type Options struct {
	// CreateIfNotExists creates the directory and database file if needed.
	CreateIfNotExists bool

	// EnableWAL enables Write-Ahead Logging.
	EnableWAL bool
}

// DefaultOptions returns the default database options.
func DefaultOptions() Options {
	return Options{
		CreateIfNotExists: true,
		EnableWAL:         true,
	}
}

// Open opens or creates the store in dbDir.
func Open(dbDir string, opts Options) (*TreeStore, error) {
	dbPath := filepath.Join(dbDir, FileName)

	if !opts.CreateIfNotExists {
		if _, err := os.Stat(dbPath); os.IsNotExist(err) {
			return nil, fmt.Errorf("%w at %s", ErrDatabaseNotFound, dbPath)
		} else if err != nil {
			return nil, fmt.Errorf("failed to check database path: %w", err)
		}
	} else if err := os.MkdirAll(dbDir, 0o750); err != nil {
		return nil, fmt.Errorf("failed to create database directory: %w", err)
	}

	// mode=rw refuses to create a missing file; mode=rwc allows it.
	dsn := dbPath + "?mode=rw"
	if opts.CreateIfNotExists {
		dsn = dbPath + "?mode=rwc"
	}

	db, err := sql.Open("sqlite", dsn)
	if err != nil {
		return nil, fmt.Errorf("failed to open database: %w", err)
	}
	db.SetMaxOpenConns(1) // SQLite only supports one writer
	db.SetMaxIdleConns(1)
	db.SetConnMaxLifetime(time.Hour)

	store := &TreeStore{db: db, dbPath: dbPath}

	if opts.EnableWAL {
		if _, err := db.ExecContext(context.Background(), "PRAGMA journal_mode=WAL"); err != nil {
			_ = db.Close()
			return nil, fmt.Errorf("failed to enable WAL mode: %w", err)
		}
	}
	if err := store.createTables(); err != nil {
		_ = db.Close()
		return nil, fmt.Errorf("failed to create tables: %w", err)
	}
	return store, nil
}

// Path returns the database file path.
func (s *TreeStore) Path() string {
	return s.dbPath
}

// Close closes the database connection.
func (s *TreeStore) Close() error {
	return s.db.Close()
}

func (s *TreeStore) createTables() error {
	schema := `
	-- One row per fetched page within a crawl root
	CREATE TABLE IF NOT EXISTS pages (
		id INTEGER PRIMARY KEY AUTOINCREMENT,
		url TEXT NOT NULL,
		root_url TEXT NOT NULL,
		status_code INTEGER,
		content_type TEXT,
		content_hash TEXT,
		button_count INTEGER DEFAULT 0,
		fetched_at TEXT NOT NULL,
		UNIQUE(url, root_url)
	);

	CREATE INDEX IF NOT EXISTS idx_pages_root ON pages(root_url);

	-- Snapshots of finished scans
	CREATE TABLE IF NOT EXISTS site_trees (
		id TEXT PRIMARY KEY,
		root_url TEXT NOT NULL,
		outcome TEXT NOT NULL,
		tool_calls INTEGER DEFAULT 0,
		node_count INTEGER DEFAULT 0,
		created_at TEXT NOT NULL,
		report_json TEXT NOT NULL
	);

	CREATE INDEX IF NOT EXISTS idx_trees_root ON site_trees(root_url);
	CREATE INDEX IF NOT EXISTS idx_trees_created ON site_trees(created_at);
	`
	_, err := s.db.ExecContext(context.Background(), schema)
	return err
}

// PageRecord is a stored page fetch.
type PageRecord struct {
	ID          int64
	URL         string
	RootURL     string
	StatusCode  int
	ContentType string
	Hash        string
	ButtonCount int
	FetchedAt   time.Time
}

// InsertPage records a page fetched during a crawl of root.
// A page fetched again under the same root replaces the earlier row.
func (s *TreeStore) InsertPage(ctx context.Context, root string, page *model.Page) error {
	fetchedAt := page.FetchedAt
	if fetchedAt.IsZero() {
		fetchedAt = time.Now()
	}

	query := `
	INSERT INTO pages (url, root_url, status_code, content_type, content_hash, button_count, fetched_at)
	VALUES (?, ?, ?, ?, ?, ?, ?)
	ON CONFLICT(url, root_url) DO UPDATE SET
		status_code = excluded.status_code,
		content_type = excluded.content_type,
		content_hash = excluded.content_hash,
		button_count = excluded.button_count,
		fetched_at = excluded.fetched_at
	`
	_, err := s.db.ExecContext(ctx, query,
		page.URL,
		root,
		page.StatusCode,
		page.ContentType,
		page.Hash,
		len(page.Buttons),
		formatTimestamp(fetchedAt),
	)
	if err != nil {
		return fmt.Errorf("failed to insert page %s: %w", page.URL, err)
	}
	return nil
}

// PagesForRoot returns the pages recorded for root, ordered by URL.
func (s *TreeStore) PagesForRoot(ctx context.Context, root string) ([]PageRecord, error) {
	query := `
	SELECT id, url, root_url, status_code, content_type, content_hash, button_count, fetched_at
	FROM pages
	WHERE root_url = ?
	ORDER BY url
	`
	rows, err := s.db.QueryContext(ctx, query, root)
	if err != nil {
		return nil, fmt.Errorf("failed to query pages: %w", err)
	}
	defer rows.Close()

	var records []PageRecord
	for rows.Next() {
		var r PageRecord
		var fetchedAt string
		if err := rows.Scan(&r.ID, &r.URL, &r.RootURL, &r.StatusCode, &r.ContentType,
			&r.Hash, &r.ButtonCount, &fetchedAt); err != nil {
			return nil, fmt.Errorf("failed to scan page: %w", err)
		}
		r.FetchedAt = parseTimestamp(fetchedAt)
		records = append(records, r)
	}
	return records, rows.Err()
}

// TreeRecord is the metadata of a stored snapshot.
type TreeRecord struct {
	ID        string
	RootURL   string
	Outcome   model.Outcome
	ToolCalls int
	NodeCount int
	CreatedAt time.Time
}

// SaveTree stores report, including its tree, and returns the snapshot ID.
// The report ID is used when set; otherwise a new one is generated.
func (s *TreeStore) SaveTree(ctx context.Context, report *model.ScanReport) (string, error) {
	id := report.ID
	if id == "" {
		id = uuid.NewString()
	}
	reportJSON, err := json.Marshal(report)
	if err != nil {
		return "", fmt.Errorf("failed to serialize report: %w", err)
	}

	createdAt := report.FinishedAt
	if createdAt.IsZero() {
		createdAt = time.Now()
	}
	nodes := 0
	if report.Tree != nil {
		nodes = report.Tree.NodeCount()
	}

	query := `
	INSERT OR REPLACE INTO site_trees (id, root_url, outcome, tool_calls, node_count, created_at, report_json)
	VALUES (?, ?, ?, ?, ?, ?, ?)
	`
	_, err = s.db.ExecContext(ctx, query,
		id,
		report.RootURL,
		string(report.Outcome),
		report.ToolCalls,
		nodes,
		formatTimestamp(createdAt),
		string(reportJSON),
	)
	if err != nil {
		return "", fmt.Errorf("failed to save site tree: %w", err)
	}
	return id, nil
}

// LatestTree returns the most recent snapshot for root, or nil if there is none.
func (s *TreeStore) LatestTree(ctx context.Context, root string) (*model.ScanReport, error) {
	query := `
	SELECT report_json FROM site_trees
	WHERE root_url = ?
	ORDER BY created_at DESC
	LIMIT 1
	`
	return s.queryReport(ctx, query, root)
}

// TreeByID returns the snapshot with the given ID, or nil if there is none.
func (s *TreeStore) TreeByID(ctx context.Context, id string) (*model.ScanReport, error) {
	return s.queryReport(ctx, `SELECT report_json FROM site_trees WHERE id = ?`, id)
}

func (s *TreeStore) queryReport(ctx context.Context, query string, arg any) (*model.ScanReport, error) {
	var reportJSON string
	err := s.db.QueryRowContext(ctx, query, arg).Scan(&reportJSON)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, nil //nolint:nilnil // absence is not an error
	}
	if err != nil {
		return nil, fmt.Errorf("failed to get site tree: %w", err)
	}

	var report model.ScanReport
	if err := json.Unmarshal([]byte(reportJSON), &report); err != nil {
		return nil, fmt.Errorf("failed to parse report: %w", err)
	}
	return &report, nil
}

// ListTrees returns snapshot metadata, newest first. An empty root lists all sites.
func (s *TreeStore) ListTrees(ctx context.Context, root string) ([]TreeRecord, error) {
	query := `
	SELECT id, root_url, outcome, tool_calls, node_count, created_at
	FROM site_trees
	`
	args := make([]any, 0, 1)
	if root != "" {
		query += " WHERE root_url = ?"
		args = append(args, root)
	}
	query += " ORDER BY created_at DESC"

	rows, err := s.db.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, fmt.Errorf("failed to list site trees: %w", err)
	}
	defer rows.Close()

	var records []TreeRecord
	for rows.Next() {
		var r TreeRecord
		var outcome, createdAt string
		if err := rows.Scan(&r.ID, &r.RootURL, &outcome, &r.ToolCalls, &r.NodeCount, &createdAt); err != nil {
			return nil, fmt.Errorf("failed to scan site tree: %w", err)
		}
		r.Outcome = model.Outcome(outcome)
		r.CreatedAt = parseTimestamp(createdAt)
		records = append(records, r)
	}
	return records, rows.Err()
}

// ListRoots returns every root URL with at least one snapshot, in lexical order.
func (s *TreeStore) ListRoots(ctx context.Context) ([]string, error) {
	rows, err := s.db.QueryContext(ctx, `SELECT DISTINCT root_url FROM site_trees ORDER BY root_url`)
	if err != nil {
		return nil, fmt.Errorf("failed to list roots: %w", err)
	}
	defer rows.Close()

	var roots []string
	for rows.Next() {
		var root string
		if err := rows.Scan(&root); err != nil {
			return nil, fmt.Errorf("failed to scan root: %w", err)
		}
		roots = append(roots, root)
	}
	return roots, rows.Err()
}

// timestampLayout sorts lexically in time order for UTC values.
const timestampLayout = "2006-01-02T15:04:05.000000000Z"

func formatTimestamp(t time.Time) string {
	return t.UTC().Format(timestampLayout)
}

// timestampFormats are the layouts accepted when reading timestamps back.
var timestampFormats = []string{
	timestampLayout,
	time.RFC3339Nano,
	"2006-01-02 15:04:05",
	"2006-01-02T15:04:05Z",
}

// parseTimestamp returns the zero time when no layout matches.
func parseTimestamp(s string) time.Time {
	for _, format := range timestampFormats {
		if t, err := time.Parse(format, s); err == nil {
			return t
		}
	}
	return time.Time{}
}
