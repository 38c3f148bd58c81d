package service

import (
	"net"
	"net/url"
	"slices"
	"strings"

	"github.com/nao1215/webterm/internal/model"
)

// labelSeparator joins the parts of a row label.
const labelSeparator = " › "

// Row is one display line of the current tree: the root, then one row per
// distinct leaf of the tree's branches.
type Row struct {
	Root     string  `json:"root"`
	URL      string  `json:"url"`
	Text     string  `json:"text"`
	Progress float64 `json:"progress"`
}

// secondLevelLabels are second-level domains under two-letter country codes
// (example.co.uk); the label is taken one level further left.
var secondLevelLabels = []string{"co", "com", "org", "net", "edu", "gov", "ac"}

// SiteLabel returns a short name for the site of rawURL: the registrable
// label of its host without "www" ("https://www.example.co.uk" gives "example").
// rawURL is returned unchanged when it has no host.
func SiteLabel(rawURL string) string {
	u, err := url.Parse(rawURL)
	if err != nil {
		return rawURL
	}
	host := strings.ToLower(u.Hostname())
	if host == "" {
		return rawURL
	}
	if net.ParseIP(host) != nil {
		return host
	}

	var parts []string
	for _, p := range strings.Split(host, ".") {
		if p != "" {
			parts = append(parts, p)
		}
	}
	if len(parts) > 0 && parts[0] == "www" {
		parts = parts[1:]
	}
	switch {
	case len(parts) >= 2:
		tld, sld := parts[len(parts)-1], parts[len(parts)-2]
		if len(tld) == 2 && slices.Contains(secondLevelLabels, sld) {
			if len(parts) >= 3 {
				return parts[len(parts)-3]
			}
			return sld
		}
		return sld
	case len(parts) == 1:
		return parts[0]
	default:
		return host
	}
}

// pathSegments returns the non-empty path segments of rawURL.
func pathSegments(rawURL string) []string {
	u, err := url.Parse(rawURL)
	if err != nil {
		return nil
	}
	var segments []string
	for _, s := range strings.Split(u.Path, "/") {
		if s != "" {
			segments = append(segments, s)
		}
	}
	return segments
}

// buildRows turns a tree into display rows. Leaf labels are relative to the
// root path when the leaf lies under it.
func buildRows(tree *model.SiteTree, root string) []Row {
	if tree == nil || root == "" {
		return nil
	}

	site := SiteLabel(root)
	rootParts := pathSegments(root)
	rows := []Row{{
		Root:     root,
		URL:      root,
		Text:     strings.Join(append([]string{site}, rootParts...), labelSeparator),
		Progress: progress(tree, root),
	}}

	seen := map[string]bool{root: true}
	for _, branch := range tree.Branches() {
		leaf := branch[len(branch)-1]
		if seen[leaf] {
			continue
		}
		seen[leaf] = true

		rel := pathSegments(leaf)
		if len(rootParts) > 0 && len(rel) >= len(rootParts) && slices.Equal(rel[:len(rootParts)], rootParts) {
			rel = rel[len(rootParts):]
		}
		parts := append(append([]string{site}, rootParts...), rel...)
		rows = append(rows, Row{
			Root:     root,
			URL:      leaf,
			Text:     strings.Join(parts, labelSeparator),
			Progress: progress(tree, leaf),
		})
	}
	return rows
}

// progress is 1 once the page has a description.
func progress(tree *model.SiteTree, key string) float64 {
	if node, ok := tree.Node(key); ok && node.Description != "" {
		return 1
	}
	return 0
}
