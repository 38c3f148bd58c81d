// Package main provides the entry point for the webterm CLI.
//
// webterm maps websites into site trees: it crawls a site, lets a language
// model describe each page and its clickable elements, and stores the
// result so it can be queried later.
//
// Usage:
//
//	webterm scan <url>
//	webterm crawl <url> [url...]
//	webterm ask <tree.json> <question>
//
// See --help for all available options.
package main

// main is the entry point for webterm.
func main() {
	Execute()
}
