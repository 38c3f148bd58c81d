// Package tools is the fixed catalog of operations the model may call.
//
// Every Tool carries its name, a parameter Schema for the model, and a typed
// Handler. Dispatch is a map lookup in Registry; there is no reflection.
//
// The built-in catalog (NewDefaultRegistry) contains:
//
//   - pageScanner: fetch one page and return its cleaned content and buttons
//   - sitePropagator: crawl a site and return a new SiteTree
//   - setPageDescription: set the description of one node of the working tree
//   - setPageButtons: replace the button list of one node of the working tree
//
// The two setters operate on a tree the model cannot construct itself, so
// they are marked NeedsTree and the caller injects its working tree into
// Call.Tree before invoking them.
package tools
