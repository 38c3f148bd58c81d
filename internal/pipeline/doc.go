// Package pipeline runs tool-free crawls of one or many sites.
//
// A Pipeline executes Steps in order against a model.ScanReport: a
// reachability probe, the crawl itself (which also records the clickable
// elements of every fetched page), and persistence. BatchCrawler runs one
// fresh Pipeline per root URL with bounded concurrency.
//
// Design decision: We use a pipeline of steps instead of one function so
// the CLI can drop the probe or the store without touching the crawl, and
// every step gets the same cancellation and logging treatment.
package pipeline
