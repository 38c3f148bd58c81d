package model

import (
	"errors"
	"fmt"
	"slices"
	"sort"
	"strings"
)

// Site tree errors.
var (
	// ErrNodeNotFound is returned when a URL has no node in the tree.
	ErrNodeNotFound = errors.New("node not found in site tree")

	// ErrRootAlreadySet is returned when SetRoot would replace an existing root.
	// A new crawl creates a new SiteTree instead of re-rooting an old one.
	ErrRootAlreadySet = errors.New("site tree root is already set")
)

// Button is a clickable element found on a page.
type Button struct {
	// Selector is a CSS selector that locates the element.
	Selector string `json:"selector"`

	// Text is the visible label of the element.
	Text string `json:"text"`
}

// SiteNode holds the metadata collected for one page.
// Its identity is the URL key; two nodes with the same key are interchangeable.
type SiteNode struct {
	// URL is the normalized URL key of the page.
	URL string

	// Description is a short summary of the page. Empty until set.
	Description string

	// Buttons are the clickable elements of the page, in discovery order.
	Buttons []Button
}

// SiteTree is the page graph of one site.
// Nodes are keyed by URL key, children is an adjacency map with set semantics
// (insertion order is kept for deterministic traversal).
//
// Design decision: Although the crawler only ever produces a DAG rooted at
// root, a tree loaded from disk may contain cycles. Every traversal in this
// file therefore uses an explicit stack plus a visited set.
//
// SiteTree is not safe for concurrent use; owners guard it themselves.
type SiteTree struct {
	root     string
	nodes    map[string]*SiteNode
	children map[string][]string
}

// NewSiteTree creates a tree. If root is non-empty it becomes the root node.
func NewSiteTree(root string) *SiteTree {
	t := &SiteTree{
		nodes:    make(map[string]*SiteNode),
		children: make(map[string][]string),
	}
	if root != "" {
		_ = t.SetRoot(root) //nolint:errcheck // a fresh tree has no root
	}
	return t
}

// Root returns the root URL key, or "" for an unrooted tree.
func (t *SiteTree) Root() string {
	return t.root
}

// SetRoot designates url as the root and creates its node.
// Setting the same root twice is a no-op; a different root fails with ErrRootAlreadySet.
func (t *SiteTree) SetRoot(url string) error {
	if url == "" {
		return ErrInvalidURL
	}
	if t.root != "" && t.root != url {
		return fmt.Errorf("%w: %s", ErrRootAlreadySet, t.root)
	}
	t.root = url
	t.ensureNode(url)
	return nil
}

// ensureNode returns the node for url, creating it (and its adjacency entry) lazily.
func (t *SiteTree) ensureNode(url string) *SiteNode {
	node, ok := t.nodes[url]
	if !ok {
		node = &SiteNode{URL: url, Buttons: []Button{}}
		t.nodes[url] = node
	}
	if _, ok := t.children[url]; !ok {
		t.children[url] = []string{}
	}
	return node
}

// Add records the edge parent -> child, creating both nodes if needed.
// Adding an existing edge is a no-op.
func (t *SiteTree) Add(parent, child string) {
	t.ensureNode(parent)
	t.ensureNode(child)
	if slices.Contains(t.children[parent], child) {
		return
	}
	t.children[parent] = append(t.children[parent], child)
}

// Node returns the node for url.
func (t *SiteTree) Node(url string) (*SiteNode, bool) {
	node, ok := t.nodes[url]
	return node, ok
}

// Exists reports whether url has a node.
func (t *SiteTree) Exists(url string) bool {
	_, ok := t.nodes[url]
	return ok
}

// IsEmpty reports whether the tree has no nodes.
func (t *SiteTree) IsEmpty() bool {
	return len(t.nodes) == 0
}

// NodeCount returns the number of nodes.
func (t *SiteTree) NodeCount() int {
	return len(t.nodes)
}

// Children returns a copy of the children of url in insertion order.
func (t *SiteTree) Children(url string) []string {
	return slices.Clone(t.children[url])
}

// URLs returns all node keys in lexical order.
func (t *SiteTree) URLs() []string {
	urls := make([]string, 0, len(t.nodes))
	for url := range t.nodes {
		urls = append(urls, url)
	}
	sort.Strings(urls)
	return urls
}

// SetDescription sets the description of the node for NormalizeURL(url).
// Buttons and all other nodes are left untouched.
func (t *SiteTree) SetDescription(url, description string) error {
	node, err := t.lookup(url)
	if err != nil {
		return err
	}
	node.Description = description
	return nil
}

// SetButtons replaces the button list of the node for NormalizeURL(url).
func (t *SiteTree) SetButtons(url string, buttons []Button) error {
	node, err := t.lookup(url)
	if err != nil {
		return err
	}
	node.Buttons = slices.Clone(buttons)
	if node.Buttons == nil {
		node.Buttons = []Button{}
	}
	return nil
}

// lookup finds the node for a raw URL.
func (t *SiteTree) lookup(raw string) (*SiteNode, error) {
	key := NormalizeURL(raw)
	node, ok := t.nodes[key]
	if !ok {
		return nil, fmt.Errorf("%w: %q", ErrNodeNotFound, raw)
	}
	return node, nil
}

// LongestBranch returns the number of edges on the longest acyclic path
// starting at the root. An unrooted or childless tree yields 0.
func (t *SiteTree) LongestBranch() int {
	longest := 0
	for _, branch := range t.Branches() {
		if len(branch)-1 > longest {
			longest = len(branch) - 1
		}
	}
	return longest
}

// Branches enumerates every root-to-leaf path.
// A path ends at a node without children, or where continuing would revisit
// a node already on the path. Children are walked in insertion order.
func (t *SiteTree) Branches() [][]string {
	if t.root == "" {
		return nil
	}

	type frame struct {
		path []string
	}

	var branches [][]string
	stack := []frame{{path: []string{t.root}}}
	for len(stack) > 0 {
		top := stack[len(stack)-1]
		stack = stack[:len(stack)-1]

		current := top.path[len(top.path)-1]
		next := make([]string, 0, len(t.children[current]))
		for _, child := range t.children[current] {
			if !slices.Contains(top.path, child) {
				next = append(next, child)
			}
		}
		if len(next) == 0 {
			branches = append(branches, top.path)
			continue
		}

		// Push in reverse so the first child is visited first.
		for i := len(next) - 1; i >= 0; i-- {
			path := make([]string, len(top.path)+1)
			copy(path, top.path)
			path[len(top.path)] = next[i]
			stack = append(stack, frame{path: path})
		}
	}
	return branches
}

// String renders the tree as an indented ASCII diagram starting at the root.
// Nodes reachable along several paths are printed once; later references
// are marked with "(seen)".
func (t *SiteTree) String() string {
	if t.root == "" {
		return "<empty SiteTree>"
	}

	var b strings.Builder
	b.WriteString(t.root)

	seen := map[string]bool{t.root: true}
	stack := pushChildren(nil, t.sortedChildren(t.root), "")
	for len(stack) > 0 {
		f := stack[len(stack)-1]
		stack = stack[:len(stack)-1]

		connector, extension := "├─ ", "│  "
		if f.last {
			connector, extension = "└─ ", "   "
		}
		b.WriteString("\n" + f.prefix + connector + f.url)
		if seen[f.url] {
			b.WriteString(" (seen)")
			continue
		}
		seen[f.url] = true
		stack = pushChildren(stack, t.sortedChildren(f.url), f.prefix+extension)
	}
	return b.String()
}

// renderFrame is one pending line of String output.
type renderFrame struct {
	url    string
	prefix string
	last   bool
}

// pushChildren pushes children so that the first one is popped first.
func pushChildren(stack []renderFrame, children []string, prefix string) []renderFrame {
	for i := len(children) - 1; i >= 0; i-- {
		stack = append(stack, renderFrame{
			url:    children[i],
			prefix: prefix,
			last:   i == len(children)-1,
		})
	}
	return stack
}

// sortedChildren returns the children of url in lexical order.
func (t *SiteTree) sortedChildren(url string) []string {
	kids := t.Children(url)
	sort.Strings(kids)
	return kids
}

// Clone returns a deep copy of the tree.
func (t *SiteTree) Clone() *SiteTree {
	c := &SiteTree{
		root:     t.root,
		nodes:    make(map[string]*SiteNode, len(t.nodes)),
		children: make(map[string][]string, len(t.children)),
	}
	for url, node := range t.nodes {
		c.nodes[url] = &SiteNode{
			URL:         node.URL,
			Description: node.Description,
			Buttons:     slices.Clone(node.Buttons),
		}
	}
	for url, kids := range t.children {
		c.children[url] = slices.Clone(kids)
	}
	return c
}
