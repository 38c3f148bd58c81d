package main

import (
	"context"
	"errors"
	"fmt"
	"io"
	"strings"

	"github.com/spf13/cobra"

	"github.com/nao1215/webterm/internal/config"
	"github.com/nao1215/webterm/internal/database"
	"github.com/nao1215/webterm/internal/model"
	"github.com/nao1215/webterm/internal/report"
)

// NewHistoryCmd creates the history command.
func NewHistoryCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "history [url]",
		Short: "Browse stored site trees and pages",
		Long: `History shows what scan and crawl stored in the database.

Without a URL it lists every mapped site. With a URL it lists the stored
snapshots of that site, newest first.

Examples:
  # List all mapped sites
  webterm history

  # List snapshots of a site
  webterm history https://example.com

  # Show one snapshot as a Markdown report
  webterm history --id 4f1c... -m

  # List the pages fetched for a site
  webterm history --pages https://example.com

  # Compare the latest two snapshots of a site
  webterm history --compare https://example.com

  # Compare the latest snapshot with a specific one
  webterm history --compare --with 4f1c... https://example.com`,
		Args: cobra.MaximumNArgs(1),
		RunE: runHistoryCmd,
	}

	cmd.Flags().String("id", "",
		"Show the snapshot with this ID as a report")
	cmd.Flags().Bool("pages", false,
		"List the pages fetched for the site")
	cmd.Flags().BoolP("compare", "C", false,
		"Compare the latest snapshot of the site with an earlier one")
	cmd.Flags().String("with", "",
		"Snapshot ID to compare against (default: the previous snapshot)")
	addReportFlags(cmd)
	addDatabaseFlags(cmd, false)

	return cmd
}

// historyOptions are the parsed history flags.
type historyOptions struct {
	root    string
	id      string
	pages   bool
	compare bool
	with    string
}

// runHistoryCmd executes the history command.
func runHistoryCmd(cmd *cobra.Command, args []string) error {
	cfg := config.NewConfig()
	if err := readReportFlags(cmd, cfg); err != nil {
		return err
	}
	if err := readDatabaseFlags(cmd, cfg); err != nil {
		return err
	}
	cfg.Verbose = getVerboseFlag(cmd)
	if cfg.JSONReport && cfg.MarkdownReport {
		return fmt.Errorf("configuration error: %w", config.ErrConflictingReportFormats)
	}

	var opts historyOptions
	if len(args) == 1 {
		opts.root = model.NormalizeURL(args[0])
		if opts.root == "" {
			return fmt.Errorf("%w: %q", model.ErrInvalidURL, args[0])
		}
	}
	var err error
	if opts.id, err = cmd.Flags().GetString("id"); err != nil {
		return err
	}
	if opts.pages, err = cmd.Flags().GetBool("pages"); err != nil {
		return err
	}
	if opts.compare, err = cmd.Flags().GetBool("compare"); err != nil {
		return err
	}
	if opts.with, err = cmd.Flags().GetString("with"); err != nil {
		return err
	}

	store, err := openExistingStore(cfg.DBDir)
	if err != nil {
		if errors.Is(err, database.ErrDatabaseNotFound) {
			fmt.Fprintln(cmd.OutOrStdout(), "No history yet. Use 'webterm scan <url>' or 'webterm crawl <url>' first.")
			return nil
		}
		return err
	}
	defer store.Close()

	output, closeOutput, err := openReportOutput(cfg, cmd.OutOrStdout())
	if err != nil {
		return err
	}
	defer closeOutput() //nolint:errcheck // the write error is what matters

	return runHistory(cmd.Context(), cfg, store, opts, output)
}

// runHistory dispatches to the requested history view.
func runHistory(ctx context.Context, cfg *config.Config, store *database.TreeStore, opts historyOptions, w io.Writer) error {
	switch {
	case opts.id != "":
		return showSnapshot(ctx, cfg, store, opts.id, w)
	case opts.compare:
		if opts.root == "" {
			return errors.New("site URL is required for --compare")
		}
		return compareSnapshots(ctx, cfg, store, opts.root, opts.with, w)
	case opts.pages:
		if opts.root == "" {
			return errors.New("site URL is required for --pages")
		}
		return listPages(ctx, store, opts.root, w)
	case opts.root != "":
		return listSnapshots(ctx, store, opts.root, w)
	default:
		return listSites(ctx, store, w)
	}
}

// listSites prints every root URL with a stored snapshot.
func listSites(ctx context.Context, store *database.TreeStore, w io.Writer) error {
	roots, err := store.ListRoots(ctx)
	if err != nil {
		return err
	}
	if len(roots) == 0 {
		fmt.Fprintln(w, "No mapped sites found in the database.")
		fmt.Fprintln(w, "\nUse 'webterm scan <url>' to map a site.")
		return nil
	}

	fmt.Fprintf(w, "Mapped sites (%d):\n\n", len(roots))
	for _, root := range roots {
		fmt.Fprintf(w, "  • %s\n", root)
	}
	fmt.Fprintln(w, "\nUse 'webterm history <url>' to see the snapshots of a site.")
	return nil
}

// listSnapshots prints the snapshot metadata of root, newest first.
func listSnapshots(ctx context.Context, store *database.TreeStore, root string, w io.Writer) error {
	records, err := store.ListTrees(ctx, root)
	if err != nil {
		return err
	}
	if len(records) == 0 {
		fmt.Fprintf(w, "No snapshots found for %s\n", root)
		return nil
	}

	fmt.Fprintf(w, "Snapshots of %s (%d):\n\n", root, len(records))
	fmt.Fprintf(w, "  %-36s  %-20s  %-16s  %5s  %5s\n", "ID", "Date", "Outcome", "Pages", "Calls")
	fmt.Fprintln(w, "  "+strings.Repeat("-", 89))
	for _, r := range records {
		fmt.Fprintf(w, "  %-36s  %-20s  %-16s  %5d  %5d\n",
			r.ID,
			r.CreatedAt.Format("2006-01-02 15:04:05"),
			r.Outcome,
			r.NodeCount,
			r.ToolCalls,
		)
	}
	fmt.Fprintln(w, "\nUse 'webterm history --id <id>' to show a snapshot.")
	return nil
}

// listPages prints the pages fetched for root.
func listPages(ctx context.Context, store *database.TreeStore, root string, w io.Writer) error {
	records, err := store.PagesForRoot(ctx, root)
	if err != nil {
		return err
	}
	if len(records) == 0 {
		fmt.Fprintf(w, "No pages stored for %s\n", root)
		return nil
	}

	fmt.Fprintf(w, "Pages of %s (%d):\n\n", root, len(records))
	for _, p := range records {
		fmt.Fprintf(w, "  %3d  %-24s  %2d button(s)  %s  %s\n",
			p.StatusCode,
			truncate(p.ContentType, 24),
			p.ButtonCount,
			p.FetchedAt.Format("2006-01-02 15:04:05"),
			p.URL,
		)
	}
	return nil
}

// showSnapshot writes the stored report with the given ID.
func showSnapshot(ctx context.Context, cfg *config.Config, store *database.TreeStore, id string, w io.Writer) error {
	rep, err := store.TreeByID(ctx, id)
	if err != nil {
		return err
	}
	if rep == nil {
		return fmt.Errorf("snapshot %s not found", id)
	}
	_, err = newReportWriter(cfg, w).Write(rep)
	return err
}

// compareSnapshots compares the latest snapshot of root with the one named
// by with, or with the one before it.
func compareSnapshots(ctx context.Context, cfg *config.Config, store *database.TreeStore, root, with string, w io.Writer) error {
	records, err := store.ListTrees(ctx, root)
	if err != nil {
		return err
	}
	if len(records) == 0 {
		return fmt.Errorf("no snapshots found for %s", root)
	}
	if len(records) < 2 && with == "" {
		return fmt.Errorf("at least 2 snapshots are required for comparison (found %d)", len(records))
	}

	current, err := store.TreeByID(ctx, records[0].ID)
	if err != nil {
		return err
	}
	previousID := with
	if previousID == "" {
		previousID = records[1].ID
	}
	previous, err := store.TreeByID(ctx, previousID)
	if err != nil {
		return err
	}
	if current == nil || previous == nil {
		return fmt.Errorf("snapshot %s not found", previousID)
	}
	if previous.RootURL != root {
		return fmt.Errorf("snapshot %s belongs to %s, not %s", previousID, previous.RootURL, root)
	}

	comparison := report.Compare(previous, current)
	switch {
	case cfg.JSONReport:
		return report.WriteComparisonJSON(w, comparison)
	case cfg.MarkdownReport:
		return report.WriteComparisonMarkdown(w, comparison)
	default:
		return report.WriteComparisonText(w, comparison)
	}
}

// truncate shortens s to n bytes for column output.
func truncate(s string, n int) string {
	if len(s) <= n {
		return s
	}
	return s[:n]
}
