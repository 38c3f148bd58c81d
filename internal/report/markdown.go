package report

import (
	"fmt"
	"io"
	"strconv"

	"github.com/nao1215/markdown"
	"github.com/nao1215/markdown/mermaid/piechart"

	"github.com/nao1215/webterm/internal/model"
)

// MarkdownWriter outputs reports in Markdown format for documentation and
// sharing. It uses the nao1215/markdown library for tables, alerts and
// mermaid charts.
type MarkdownWriter struct {
	baseWriter
}

// NewMarkdownWriter creates a MarkdownWriter that outputs to the given writer.
func NewMarkdownWriter(output io.Writer) *MarkdownWriter {
	return &MarkdownWriter{
		baseWriter: newBaseWriter(output),
	}
}

// Write outputs the report in Markdown format.
func (w *MarkdownWriter) Write(report *model.ScanReport) (int, error) {
	md := markdown.NewMarkdown(w.output)

	w.writeHeader(md, report)
	w.writeSummary(md, report)
	w.writeTree(md, report)
	w.writePages(md, report)
	w.writeAnswer(md, report)
	w.writeFooter(md)

	return len(md.String()), md.Build()
}

// writeHeader writes the title and the task table.
func (w *MarkdownWriter) writeHeader(md *markdown.Markdown, report *model.ScanReport) {
	md.H1(siteTitle(report.RootURL) + " Site Map")
	md.PlainText("")

	started := "-"
	if !report.StartedAt.IsZero() {
		started = report.StartedAt.Format("2006-01-02 15:04:05 MST")
	}
	md.Table(markdown.TableSet{
		Header: []string{"Property", "Value"},
		Rows: [][]string{
			{"Site", "`" + report.RootURL + "`"},
			{"Started", started},
			{"Tool Calls", strconv.Itoa(report.ToolCalls)},
			{"Status", w.statusBadge(report)},
		},
	})
	md.PlainText("")
}

// statusBadge returns the status text with an emoji.
func (w *MarkdownWriter) statusBadge(report *model.ScanReport) string {
	switch report.Outcome {
	case model.OutcomeDone:
		return "✅ " + statusText(report)
	case model.OutcomeBudgetExhausted, model.OutcomeCancelled:
		return "⚠️ " + statusText(report)
	default:
		return "❌ " + statusText(report)
	}
}

// writeSummary writes the count table, the coverage chart and an alert.
func (w *MarkdownWriter) writeSummary(md *markdown.Markdown, report *model.ScanReport) {
	summary := NewSummary(report)

	md.H2("Summary")
	md.PlainText("")
	md.Table(markdown.TableSet{
		Header: []string{"Metric", "Count"},
		Rows: [][]string{
			{"Pages", strconv.Itoa(summary.Pages)},
			{"Described Pages", strconv.Itoa(summary.DescribedPages)},
			{"Buttons", strconv.Itoa(summary.Buttons)},
			{"Longest Branch", strconv.Itoa(summary.LongestBranch)},
		},
	})
	md.PlainText("")

	if summary.Pages > 0 {
		w.writePieChart(md, summary)
	}
	w.writeAlert(md, report, summary)
}

// writePieChart writes a mermaid pie chart of description coverage.
func (w *MarkdownWriter) writePieChart(md *markdown.Markdown, summary Summary) {
	chart := piechart.NewPieChart(
		io.Discard,
		piechart.WithTitle("Description Coverage"),
		piechart.WithShowData(true),
	)
	if summary.DescribedPages > 0 {
		chart.LabelAndIntValue("Described", uint64(summary.DescribedPages)) //nolint:gosec // counts are non-negative
	}
	if undescribed := summary.Pages - summary.DescribedPages; undescribed > 0 {
		chart.LabelAndIntValue("Undescribed", uint64(undescribed)) //nolint:gosec // counts are non-negative
	}

	md.PlainText("")
	md.CodeBlocks(markdown.SyntaxHighlightMermaid, chart.String())
	md.PlainText("")
}

// writeAlert writes an alert matching the outcome.
func (w *MarkdownWriter) writeAlert(md *markdown.Markdown, report *model.ScanReport, summary Summary) {
	switch report.Outcome {
	case model.OutcomeError:
		md.Cautionf("The task failed: %s", report.Error)
	case model.OutcomeBudgetExhausted:
		md.Warningf("The task stopped after %d tool calls. Some pages may lack a description.", report.ToolCalls)
	case model.OutcomeCancelled:
		md.Importantf("The task was cancelled. The tree is partial.")
	default:
		if summary.Pages > 0 && summary.DescribedPages == summary.Pages {
			md.Tip("Every page has a description.")
		} else {
			md.Note(fmt.Sprintf("%d of %d pages have a description.", summary.DescribedPages, summary.Pages))
		}
	}
	md.PlainText("")
}

// writeTree writes the ASCII tree in a fenced block.
func (w *MarkdownWriter) writeTree(md *markdown.Markdown, report *model.ScanReport) {
	md.H2("Site Tree")
	md.PlainText("")
	if report.Tree == nil || report.Tree.Root() == "" {
		md.PlainText("No pages mapped.")
		md.PlainText("")
		return
	}
	md.PlainText("```text\n" + report.Tree.String() + "\n```")
	md.PlainText("")
}

// writePages writes one table row per page.
func (w *MarkdownWriter) writePages(md *markdown.Markdown, report *model.ScanReport) {
	nodes := pages(report)
	if len(nodes) == 0 {
		return
	}

	md.H2("Pages")
	md.PlainText("")

	rows := make([][]string, len(nodes))
	for i, node := range nodes {
		desc := node.Description
		if desc == "" {
			desc = "-"
		}
		rows[i] = []string{
			"`" + node.URL + "`",
			truncateString(desc, 80),
			strconv.Itoa(len(node.Buttons)),
		}
	}
	md.Table(markdown.TableSet{
		Header: []string{"URL", "Description", "Buttons"},
		Rows:   rows,
	})
	md.PlainText("")

	for _, node := range nodes {
		if len([]rune(node.Description)) > 80 {
			md.Details(node.URL, node.Description)
		}
	}
}

// writeAnswer writes the final assistant message.
func (w *MarkdownWriter) writeAnswer(md *markdown.Markdown, report *model.ScanReport) {
	if report.FinalText == "" {
		return
	}
	md.H2("Final Answer")
	md.PlainText("")
	md.PlainText(report.FinalText)
	md.PlainText("")
}

// writeFooter writes the report footer.
func (w *MarkdownWriter) writeFooter(md *markdown.Markdown) {
	md.HorizontalRule()
	md.PlainText("")
	md.PlainTextf("*Report generated by [webterm](https://github.com/nao1215/webterm)*")
}
