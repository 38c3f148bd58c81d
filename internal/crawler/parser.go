package crawler

import (
	"bytes"
	"io"
	"net/url"
	"strconv"
	"strings"

	"golang.org/x/net/html"

	"github.com/nao1215/webterm/internal/model"
)

// removableTags are elements that never carry visible page content.
// Names are lowercase because the HTML parser lowercases tag names.
var removableTags = map[string]bool{
	"script":         true,
	"style":          true,
	"meta":           true,
	"link":           true,
	"title":          true,
	"head":           true,
	"noscript":       true,
	"template":       true,
	"svg":            true,
	"path":           true,
	"defs":           true,
	"clippath":       true,
	"lineargradient": true,
	"radialgradient": true,
	"pattern":        true,
	"mask":           true,
}

// hiddenClasses are utility classes that CSS frameworks use to hide elements.
var hiddenClasses = map[string]bool{
	"hidden":          true,
	"sr-only":         true,
	"visually-hidden": true,
	"d-none":          true,
	"invisible":       true,
}

// unfollowableSchemes are href prefixes that never point at a page.
var unfollowableSchemes = []string{"javascript:", "mailto:", "tel:", "data:"}

// Parser cleans an HTML document and extracts what the model needs from it.
//
// Design decision: We use golang.org/x/net/html rather than regex because it
// handles the malformed HTML common on the web and gives us a real node tree
// to prune.
type Parser struct {
	// baseURL is the URL of the page being parsed, used for resolving relative URLs.
	baseURL *url.URL
}

// ParseResult contains everything extracted from one page.
type ParseResult struct {
	// Content is the cleaned markup with blank lines removed.
	Content string

	// Buttons are the clickable elements, deduplicated by (selector, text).
	Buttons []model.Button

	// Links are absolute anchor targets in document order.
	// Only anchors that survived cleaning are included.
	Links []string
}

// NewParser creates a parser that resolves relative links against baseURL.
func NewParser(baseURL string) (*Parser, error) {
	u, err := url.Parse(baseURL)
	if err != nil {
		return nil, err
	}
	return &Parser{baseURL: u}, nil
}

// Parse cleans the document and extracts clickable elements and links.
func (p *Parser) Parse(content io.Reader) (*ParseResult, error) {
	doc, err := html.Parse(content)
	if err != nil {
		return nil, err
	}

	clean(doc)

	rendered, err := render(doc)
	if err != nil {
		return nil, err
	}

	return &ParseResult{
		Content: rendered,
		Buttons: extractButtons(doc),
		Links:   p.extractLinks(doc),
	}, nil
}

// clean removes invisible elements and comments from the tree in place.
func clean(n *html.Node) {
	var doomed []*html.Node
	for c := n.FirstChild; c != nil; c = c.NextSibling {
		if isInvisible(c) {
			doomed = append(doomed, c)
			continue
		}
		clean(c)
	}
	for _, c := range doomed {
		n.RemoveChild(c)
	}
}

// isInvisible reports whether a node should be dropped from the cleaned page.
func isInvisible(n *html.Node) bool {
	switch n.Type {
	case html.CommentNode:
		return true
	case html.ElementNode:
	default:
		return false
	}

	if removableTags[strings.ToLower(n.Data)] {
		return true
	}

	style := strings.ToLower(strings.ReplaceAll(getAttr(n, "style"), " ", ""))
	if strings.Contains(style, "display:none") || strings.Contains(style, "visibility:hidden") {
		return true
	}

	for _, class := range strings.Fields(getAttr(n, "class")) {
		if hiddenClasses[class] {
			return true
		}
	}
	return false
}

// render serializes the cleaned tree and drops whitespace-only lines.
func render(doc *html.Node) (string, error) {
	var buf bytes.Buffer
	if err := html.Render(&buf, doc); err != nil {
		return "", err
	}

	lines := strings.Split(buf.String(), "\n")
	kept := lines[:0]
	for _, line := range lines {
		if strings.TrimSpace(line) != "" {
			kept = append(kept, line)
		}
	}
	return strings.Join(kept, "\n"), nil
}

// clickableQueries are evaluated in order; each yields matches in document order.
var clickableQueries = []func(*html.Node) bool{
	func(n *html.Node) bool { return n.Data == "button" },
	func(n *html.Node) bool { return n.Data == "a" },
	func(n *html.Node) bool {
		if n.Data != "input" {
			return false
		}
		t := strings.ToLower(getAttr(n, "type"))
		return t == "button" || t == "submit"
	},
	func(n *html.Node) bool {
		role, ok := lookupAttr(n, "role")
		return ok && role == "button"
	},
}

// extractButtons collects clickable elements.
// An element matched by several queries is reported once per distinct
// (selector, text) pair.
func extractButtons(doc *html.Node) []model.Button {
	buttons := make([]model.Button, 0)
	seen := make(map[model.Button]bool)

	for _, match := range clickableQueries {
		for _, n := range findElements(doc, match) {
			if _, hidden := lookupAttr(n, "hidden"); hidden {
				continue
			}
			b := model.Button{Selector: buildSelector(n), Text: clickableText(n)}
			if seen[b] {
				continue
			}
			seen[b] = true
			buttons = append(buttons, b)
		}
	}
	return buttons
}

// findElements returns the element nodes below n that satisfy match, in document order.
func findElements(n *html.Node, match func(*html.Node) bool) []*html.Node {
	var found []*html.Node
	var walk func(*html.Node)
	walk = func(n *html.Node) {
		if n.Type == html.ElementNode && match(n) {
			found = append(found, n)
		}
		for c := n.FirstChild; c != nil; c = c.NextSibling {
			walk(c)
		}
	}
	walk(n)
	return found
}

// buildSelector returns a CSS selector for n, preferring the most stable handle:
// id, then classes, then href or name, then position among same-tag siblings.
func buildSelector(n *html.Node) string {
	if id := getAttr(n, "id"); id != "" {
		return "#" + id
	}

	if classes := strings.Fields(getAttr(n, "class")); len(classes) > 0 {
		return n.Data + "." + strings.Join(classes, ".")
	}

	if n.Data == "a" {
		if href := getAttr(n, "href"); href != "" {
			return `a[href="` + escapeCSSValue(href) + `"]`
		}
	}

	if n.Data == "input" {
		if name := getAttr(n, "name"); name != "" {
			return `input[name="` + escapeCSSValue(name) + `"]`
		}
	}

	nth := 1
	for s := n.PrevSibling; s != nil; s = s.PrevSibling {
		if s.Type == html.ElementNode && s.Data == n.Data {
			nth++
		}
	}
	return n.Data + ":nth-of-type(" + strconv.Itoa(nth) + ")"
}

// escapeCSSValue escapes double quotes for use inside a quoted attribute selector.
func escapeCSSValue(value string) string {
	return strings.ReplaceAll(value, `"`, `\"`)
}

// clickableText returns the visible label of n: its trimmed text, or the
// first non-empty of value, title, aria-label and alt.
func clickableText(n *html.Node) string {
	var b strings.Builder
	var walk func(*html.Node)
	walk = func(n *html.Node) {
		if n.Type == html.TextNode {
			b.WriteString(strings.TrimSpace(n.Data))
		}
		for c := n.FirstChild; c != nil; c = c.NextSibling {
			walk(c)
		}
	}
	walk(n)
	if text := b.String(); text != "" {
		return text
	}

	for _, attr := range []string{"value", "title", "aria-label", "alt"} {
		if v := strings.TrimSpace(getAttr(n, attr)); v != "" {
			return v
		}
	}
	return ""
}

// extractLinks returns the resolved href of every anchor in document order.
func (p *Parser) extractLinks(doc *html.Node) []string {
	links := make([]string, 0)
	for _, a := range findElements(doc, func(n *html.Node) bool { return n.Data == "a" }) {
		if resolved := p.resolveURL(getAttr(a, "href")); resolved != "" {
			links = append(links, resolved)
		}
	}
	return links
}

// resolveURL resolves href against the page URL.
// Script, mail, phone and data links as well as a bare "#" yield "".
func (p *Parser) resolveURL(href string) string {
	href = strings.TrimSpace(href)
	if href == "" || href == "#" {
		return ""
	}

	lower := strings.ToLower(href)
	for _, scheme := range unfollowableSchemes {
		if strings.HasPrefix(lower, scheme) {
			return ""
		}
	}

	u, err := url.Parse(href)
	if err != nil {
		return ""
	}
	return p.baseURL.ResolveReference(u).String()
}

// getAttr retrieves an attribute value from an HTML node.
func getAttr(n *html.Node, key string) string {
	v, _ := lookupAttr(n, key)
	return v
}

// lookupAttr is getAttr that also reports whether the attribute is present.
func lookupAttr(n *html.Node, key string) (string, bool) {
	for _, attr := range n.Attr {
		if attr.Key == key {
			return attr.Val, true
		}
	}
	return "", false
}
