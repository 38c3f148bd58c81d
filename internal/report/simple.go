package report

import (
	"fmt"
	"io"
	"strings"
	"time"

	"github.com/nao1215/webterm/internal/model"
)

// SimpleWriter outputs human-readable text reports for terminal display.
//
// Design decision: We use plain text with ASCII formatting rather than
// ANSI colors so the output can be piped to files or other tools unchanged.
type SimpleWriter struct {
	baseWriter

	// showEmpty controls whether pages without a description are listed.
	showEmpty bool

	// verbose adds the clickable elements of every page.
	verbose bool
}

// SimpleWriterOption configures a SimpleWriter.
type SimpleWriterOption func(*SimpleWriter)

// WithShowEmpty configures the writer to list pages without a description.
func WithShowEmpty(show bool) SimpleWriterOption {
	return func(w *SimpleWriter) {
		w.showEmpty = show
	}
}

// WithVerbose enables verbose output with the buttons of each page.
func WithVerbose(verbose bool) SimpleWriterOption {
	return func(w *SimpleWriter) {
		w.verbose = verbose
	}
}

// NewSimpleWriter creates a SimpleWriter that outputs to the given writer.
func NewSimpleWriter(output io.Writer, opts ...SimpleWriterOption) *SimpleWriter {
	w := &SimpleWriter{
		baseWriter: newBaseWriter(output),
	}
	for _, opt := range opts {
		opt(w)
	}
	return w
}

// Write outputs the report in human-readable format.
func (w *SimpleWriter) Write(report *model.ScanReport) (int, error) {
	var sb strings.Builder

	w.writeHeader(&sb, report)
	w.writeTree(&sb, report)
	w.writePages(&sb, report)
	w.writeAnswer(&sb, report)
	w.writeFooter(&sb)

	return w.output.Write([]byte(sb.String()))
}

// writeSection writes a section title between rules.
func writeSection(sb *strings.Builder, title string) {
	sb.WriteString(strings.Repeat("-", 70))
	sb.WriteString("\n")
	sb.WriteString(title + "\n")
	sb.WriteString(strings.Repeat("-", 70))
	sb.WriteString("\n\n")
}

// writeHeader writes the report header with task information.
func (w *SimpleWriter) writeHeader(sb *strings.Builder, report *model.ScanReport) {
	sb.WriteString("\n")
	sb.WriteString(strings.Repeat("=", 70))
	sb.WriteString("\n")
	sb.WriteString("                          WEBTERM SITE MAP\n")
	sb.WriteString(strings.Repeat("=", 70))
	sb.WriteString("\n\n")

	summary := NewSummary(report)
	fmt.Fprintf(sb, "Site:           %s\n", report.RootURL)
	if !report.StartedAt.IsZero() {
		fmt.Fprintf(sb, "Started:        %s\n", report.StartedAt.Format("2006-01-02 15:04:05 MST"))
	}
	if d := report.Duration(); d > 0 {
		fmt.Fprintf(sb, "Duration:       %s\n", d.Round(time.Millisecond))
	}
	fmt.Fprintf(sb, "Pages:          %d (%d described)\n", summary.Pages, summary.DescribedPages)
	fmt.Fprintf(sb, "Tool Calls:     %d\n", report.ToolCalls)
	fmt.Fprintf(sb, "Status:         %s\n", statusText(report))
	sb.WriteString("\n")
}

// writeTree writes the ASCII site tree.
func (w *SimpleWriter) writeTree(sb *strings.Builder, report *model.ScanReport) {
	writeSection(sb, "SITE TREE")
	if report.Tree == nil || report.Tree.Root() == "" {
		sb.WriteString("  No pages mapped\n\n")
		return
	}
	for line := range strings.SplitSeq(report.Tree.String(), "\n") {
		sb.WriteString("  " + line + "\n")
	}
	sb.WriteString("\n")
}

// writePages writes the description of every page.
func (w *SimpleWriter) writePages(sb *strings.Builder, report *model.ScanReport) {
	nodes := pages(report)
	described := 0
	for _, node := range nodes {
		if node.Description != "" {
			described++
		}
	}
	if described == 0 && !w.showEmpty {
		return
	}

	writeSection(sb, "PAGES")
	for _, node := range nodes {
		if node.Description == "" && !w.showEmpty {
			continue
		}
		fmt.Fprintf(sb, "  * %s\n", node.URL)
		if node.Description != "" {
			fmt.Fprintf(sb, "    %s\n", node.Description)
		} else {
			sb.WriteString("    (no description)\n")
		}
		if w.verbose {
			for _, b := range node.Buttons {
				fmt.Fprintf(sb, "    [button] %s (%s)\n", b.Text, b.Selector)
			}
		}
	}
	sb.WriteString("\n")
}

// writeAnswer writes the final message of the dialogue.
func (w *SimpleWriter) writeAnswer(sb *strings.Builder, report *model.ScanReport) {
	if report.FinalText == "" {
		return
	}
	writeSection(sb, "FINAL ANSWER")
	sb.WriteString(report.FinalText)
	sb.WriteString("\n\n")
}

// writeFooter writes the report footer.
func (w *SimpleWriter) writeFooter(sb *strings.Builder) {
	sb.WriteString(strings.Repeat("=", 70))
	sb.WriteString("\n")
	sb.WriteString("Report generated by webterm\n")
	sb.WriteString("https://github.com/nao1215/webterm\n")
	sb.WriteString(strings.Repeat("=", 70))
	sb.WriteString("\n")
}
