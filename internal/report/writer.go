package report

import (
	"io"
	"net/url"
	"strings"

	"golang.org/x/text/cases"
	"golang.org/x/text/language"

	"github.com/nao1215/webterm/internal/model"
)

// Writer defines the interface for report output.
//
// Design decision: We use an interface to allow different output formats
// and destinations. This enables writing to files, stdout, or network
// connections with the same API.
type Writer interface {
	// Write outputs the report to the configured destination.
	// Returns the number of bytes written and any error encountered.
	Write(report *model.ScanReport) (int, error)
}

// MultiWriter writes to multiple Writers simultaneously.
// This is useful for outputting to both terminal and file.
type MultiWriter struct {
	writers []Writer
}

// NewMultiWriter creates a Writer that writes to all provided Writers.
func NewMultiWriter(writers ...Writer) *MultiWriter {
	return &MultiWriter{writers: writers}
}

// Write outputs the report to all configured Writers.
// Returns the total bytes written across all writers.
// Stops on first error encountered.
func (m *MultiWriter) Write(report *model.ScanReport) (int, error) {
	var total int
	for _, w := range m.writers {
		n, err := w.Write(report)
		total += n
		if err != nil {
			return total, err
		}
	}
	return total, nil
}

// baseWriter provides common functionality for report writers.
type baseWriter struct {
	output io.Writer
}

// newBaseWriter creates a baseWriter with the given output destination.
func newBaseWriter(output io.Writer) baseWriter {
	return baseWriter{output: output}
}

// Summary holds the counts shown at the top of every report.
type Summary struct {
	// Pages is the number of nodes in the tree.
	Pages int `json:"pages"`

	// DescribedPages is the number of nodes with a description.
	DescribedPages int `json:"described_pages"`

	// Buttons is the total number of clickable elements recorded.
	Buttons int `json:"buttons"`

	// LongestBranch is the depth of the tree in edges.
	LongestBranch int `json:"longest_branch"`
}

// NewSummary computes the summary of report. A report without a tree
// yields zero counts.
func NewSummary(report *model.ScanReport) Summary {
	if report.Tree == nil {
		return Summary{}
	}
	s := Summary{
		Pages:          report.Tree.NodeCount(),
		DescribedPages: report.DescribedPages(),
		LongestBranch:  report.Tree.LongestBranch(),
	}
	for _, page := range pages(report) {
		s.Buttons += len(page.Buttons)
	}
	return s
}

// pages returns the tree nodes in URL order.
func pages(report *model.ScanReport) []*model.SiteNode {
	if report.Tree == nil {
		return nil
	}
	urls := report.Tree.URLs()
	nodes := make([]*model.SiteNode, 0, len(urls))
	for _, u := range urls {
		if node, ok := report.Tree.Node(u); ok {
			nodes = append(nodes, node)
		}
	}
	return nodes
}

// siteTitle turns a root URL into a display title: "https://www.example.com/"
// becomes "Example". Input without a host is returned trimmed.
func siteTitle(rootURL string) string {
	u, err := url.Parse(rootURL)
	if err != nil || u.Hostname() == "" {
		return strings.TrimSpace(rootURL)
	}
	host := strings.TrimPrefix(u.Hostname(), "www.")
	label, _, _ := strings.Cut(host, ".")
	return cases.Title(language.English).String(label)
}

// statusText describes the outcome for humans.
func statusText(report *model.ScanReport) string {
	switch report.Outcome {
	case model.OutcomeDone:
		return "Complete"
	case model.OutcomeBudgetExhausted:
		return "Stopped at the tool call limit"
	case model.OutcomeCancelled:
		return "Cancelled (partial results)"
	case model.OutcomeError:
		if report.Error != "" {
			return "Error - " + report.Error
		}
		return "Error"
	default:
		return "Unknown"
	}
}

// truncateString truncates a string to maxLen runes with ellipsis.
func truncateString(s string, maxLen int) string {
	runes := []rune(s)
	if len(runes) <= maxLen {
		return s
	}
	if maxLen <= 3 {
		return string(runes[:maxLen])
	}
	return string(runes[:maxLen-3]) + "..."
}
