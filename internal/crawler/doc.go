// Package crawler discovers the pages of one website and builds a SiteTree.
//
// # Architecture
//
// The package is built around three pieces:
//
//   - HTTPFetcher: fetches one URL, decodes its charset, and hands the body to the Parser
//   - Parser: cleans HTML (drops invisible markup) and extracts clickable elements and links
//   - Spider: bounded breadth-first traversal that turns fetched pages into a model.SiteTree
//
// The Spider talks to the fetcher through the Fetcher interface, so tests and
// callers can substitute their own page source.
//
// # Bounds
//
// A crawl is limited by depth (root at 0), by the number of tree nodes, by
// same-origin and optional subpath rules, and by glob path filters. Every
// fetch has its own timeout, and cancellation is checked before each fetch.
//
// Design decision: Fetching inside one crawl is strictly sequential. Sibling
// order in the tree follows discovery order in the page source, which a
// parallel crawl could not guarantee. Concurrency across sites lives in the
// pipeline package instead.
//
// # Usage
//
//	fetcher := crawler.NewHTTPFetcher()
//	spider := crawler.NewSpider(fetcher, crawler.WithMaxDepth(2))
//	tree, err := spider.Crawl(ctx, "https://example.com/docs")
package crawler
