package report

import (
	"encoding/json"
	"fmt"
	"io"
	"sort"
	"strconv"
	"time"

	"github.com/nao1215/markdown"

	"github.com/nao1215/webterm/internal/model"
)

// Coverage directions of a comparison.
const (
	CoverageImproved  = "improved"
	CoverageWorsened  = "worsened"
	CoverageUnchanged = "unchanged"
)

// Comparison is the difference between two snapshots of one site.
type Comparison struct {
	// RootURL is the site of the current snapshot.
	RootURL string `json:"root_url"`

	// Previous and Current describe the compared snapshots.
	Previous SnapshotSummary `json:"previous"`
	Current  SnapshotSummary `json:"current"`

	// AddedPages are in Current only, RemovedPages in Previous only.
	AddedPages   []string `json:"added_pages,omitempty"`
	RemovedPages []string `json:"removed_pages,omitempty"`

	// ChangedDescriptions are pages in both whose description differs.
	ChangedDescriptions []DescriptionChange `json:"changed_descriptions,omitempty"`

	// UnchangedCount is the number of pages in both with the same description.
	UnchangedCount int `json:"unchanged_count"`

	// Coverage tells whether the share of described pages went up or down.
	Coverage string `json:"coverage"`
}

// SnapshotSummary identifies one snapshot and its counts.
type SnapshotSummary struct {
	ID         string        `json:"id"`
	FinishedAt time.Time     `json:"finished_at"`
	Outcome    model.Outcome `json:"outcome"`
	Summary
}

// DescriptionChange is one page whose description changed.
type DescriptionChange struct {
	URL      string `json:"url"`
	Previous string `json:"previous"`
	Current  string `json:"current"`
}

// Compare computes the difference between two snapshots. Page lists are
// sorted by URL.
func Compare(previous, current *model.ScanReport) *Comparison {
	c := &Comparison{
		RootURL:  current.RootURL,
		Previous: newSnapshotSummary(previous),
		Current:  newSnapshotSummary(current),
	}

	before := descriptions(previous)
	after := descriptions(current)
	for pageURL, desc := range after {
		old, ok := before[pageURL]
		switch {
		case !ok:
			c.AddedPages = append(c.AddedPages, pageURL)
		case old != desc:
			c.ChangedDescriptions = append(c.ChangedDescriptions, DescriptionChange{
				URL:      pageURL,
				Previous: old,
				Current:  desc,
			})
		default:
			c.UnchangedCount++
		}
	}
	for pageURL := range before {
		if _, ok := after[pageURL]; !ok {
			c.RemovedPages = append(c.RemovedPages, pageURL)
		}
	}

	sort.Strings(c.AddedPages)
	sort.Strings(c.RemovedPages)
	sort.Slice(c.ChangedDescriptions, func(i, j int) bool {
		return c.ChangedDescriptions[i].URL < c.ChangedDescriptions[j].URL
	})
	c.Coverage = coverageDirection(c.Previous.Summary, c.Current.Summary)
	return c
}

func newSnapshotSummary(report *model.ScanReport) SnapshotSummary {
	return SnapshotSummary{
		ID:         report.ID,
		FinishedAt: report.FinishedAt,
		Outcome:    report.Outcome,
		Summary:    NewSummary(report),
	}
}

// descriptions maps every page of report to its description.
func descriptions(report *model.ScanReport) map[string]string {
	m := make(map[string]string)
	for _, node := range pages(report) {
		m[node.URL] = node.Description
	}
	return m
}

// coverageDirection compares the described share of two snapshots without
// floating point: a/b < c/d iff a*d < c*b.
func coverageDirection(previous, current Summary) string {
	if previous.Pages == 0 || current.Pages == 0 {
		switch {
		case previous.DescribedPages < current.DescribedPages:
			return CoverageImproved
		case previous.DescribedPages > current.DescribedPages:
			return CoverageWorsened
		default:
			return CoverageUnchanged
		}
	}
	before := previous.DescribedPages * current.Pages
	after := current.DescribedPages * previous.Pages
	switch {
	case after > before:
		return CoverageImproved
	case after < before:
		return CoverageWorsened
	default:
		return CoverageUnchanged
	}
}

// WriteComparisonJSON writes c as indented JSON.
func WriteComparisonJSON(w io.Writer, c *Comparison) error {
	encoder := json.NewEncoder(w)
	encoder.SetIndent("", "  ")
	return encoder.Encode(c)
}

// WriteComparisonText writes c for the terminal.
func WriteComparisonText(w io.Writer, c *Comparison) error {
	var err error
	printf := func(format string, args ...any) {
		if err == nil {
			_, err = fmt.Fprintf(w, format, args...)
		}
	}

	printf("Tree comparison for %s\n\n", c.RootURL)
	printf("  %-10s  %-20s  %-16s  %s\n", "Snapshot", "Date", "Outcome", "Pages")
	printf("  %-10s  %-20s  %-16s  %d (%d described)\n", "previous",
		formatDate(c.Previous.FinishedAt), c.Previous.Outcome, c.Previous.Pages, c.Previous.DescribedPages)
	printf("  %-10s  %-20s  %-16s  %d (%d described)\n", "current",
		formatDate(c.Current.FinishedAt), c.Current.Outcome, c.Current.Pages, c.Current.DescribedPages)
	printf("\nDescription coverage: %s\n", c.Coverage)

	section := func(title, marker string, urls []string) {
		if len(urls) == 0 {
			return
		}
		printf("\n%s (%d):\n", title, len(urls))
		for _, u := range urls {
			printf("  %s %s\n", marker, u)
		}
	}
	section("Added pages", "+", c.AddedPages)
	section("Removed pages", "-", c.RemovedPages)

	if len(c.ChangedDescriptions) > 0 {
		printf("\nChanged descriptions (%d):\n", len(c.ChangedDescriptions))
		for _, ch := range c.ChangedDescriptions {
			printf("  * %s\n", ch.URL)
			printf("      was: %s\n", orDash(ch.Previous))
			printf("      now: %s\n", orDash(ch.Current))
		}
	}
	printf("\nUnchanged pages: %d\n", c.UnchangedCount)
	return err
}

// WriteComparisonMarkdown writes c as a Markdown document.
func WriteComparisonMarkdown(w io.Writer, c *Comparison) error {
	md := markdown.NewMarkdown(w)

	md.H1(siteTitle(c.RootURL) + " Tree Comparison")
	md.PlainText("")
	md.Table(markdown.TableSet{
		Header: []string{"Metric", "Previous", "Current"},
		Rows: [][]string{
			{"Date", formatDate(c.Previous.FinishedAt), formatDate(c.Current.FinishedAt)},
			{"Outcome", string(c.Previous.Outcome), string(c.Current.Outcome)},
			{"Pages", strconv.Itoa(c.Previous.Pages), strconv.Itoa(c.Current.Pages)},
			{"Described Pages", strconv.Itoa(c.Previous.DescribedPages), strconv.Itoa(c.Current.DescribedPages)},
			{"Buttons", strconv.Itoa(c.Previous.Buttons), strconv.Itoa(c.Current.Buttons)},
		},
	})
	md.PlainText("")

	switch c.Coverage {
	case CoverageWorsened:
		md.Warningf("Description coverage dropped from %d to %d described pages.",
			c.Previous.DescribedPages, c.Current.DescribedPages)
	case CoverageImproved:
		md.Tip("Description coverage improved.")
	default:
		md.Note("Description coverage is unchanged.")
	}
	md.PlainText("")

	if len(c.AddedPages) > 0 {
		md.H2("Added Pages")
		md.BulletList(codeSpans(c.AddedPages)...)
		md.PlainText("")
	}
	if len(c.RemovedPages) > 0 {
		md.H2("Removed Pages")
		md.BulletList(codeSpans(c.RemovedPages)...)
		md.PlainText("")
	}
	if len(c.ChangedDescriptions) > 0 {
		md.H2("Changed Descriptions")
		md.PlainText("")
		rows := make([][]string, len(c.ChangedDescriptions))
		for i, ch := range c.ChangedDescriptions {
			rows[i] = []string{"`" + ch.URL + "`", truncateString(orDash(ch.Previous), 60), truncateString(orDash(ch.Current), 60)}
		}
		md.Table(markdown.TableSet{
			Header: []string{"URL", "Previous", "Current"},
			Rows:   rows,
		})
		md.PlainText("")
	}
	md.PlainTextf("%d page(s) unchanged.", c.UnchangedCount)

	return md.Build()
}

func formatDate(t time.Time) string {
	if t.IsZero() {
		return "-"
	}
	return t.Format("2006-01-02 15:04:05")
}

func orDash(s string) string {
	if s == "" {
		return "-"
	}
	return s
}

func codeSpans(urls []string) []string {
	out := make([]string, len(urls))
	for i, u := range urls {
		out[i] = "`" + u + "`"
	}
	return out
}
