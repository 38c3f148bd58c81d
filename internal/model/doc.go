// Package model defines the core data structures used throughout webterm.
//
// This package contains the following main types:
//   - SiteTree: The crawled page graph keyed by normalized URL
//   - SiteNode: Per-page metadata (description and clickable elements)
//   - Page: A single fetched page with cleaned content
//   - ScanReport: The outcome of one mapping task
//
// It also owns URL normalization (NormalizeURL), because the URL key is the
// identity of every node in the tree.
//
// Design decision: We separate models into their own package to avoid circular
// dependencies. The crawler, tools, agent, and report packages all need these
// types, so centralizing them prevents import cycles.
package model
