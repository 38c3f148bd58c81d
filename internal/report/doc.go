// Package report renders the outcome of a mapping task.
//
// This package contains writers for different output formats:
//   - SimpleWriter: human-readable text with the ASCII site tree
//   - JSONWriter: the report as JSON, tree included in its persisted shape
//   - MarkdownWriter: tables for sharing in issues and wikis
//
// Design decision: We separate report writing from report data structures
// (which are in the model package) so new output formats can be added
// without touching the model.
package report
