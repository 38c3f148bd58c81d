// Package database provides SQLite-based storage for webterm.
//
// The TreeStore keeps two kinds of records:
//   - pages: one row per fetched page and crawl root (status, content type, hash)
//   - site_trees: one snapshot per finished scan, with the full report as JSON
//
// Design decision: SQLite via modernc.org/sqlite keeps the store a single
// CGO-free file, which is enough for one user's scan history.
package database
