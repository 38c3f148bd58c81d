package model

import (
	"encoding/hex"
	"strings"
	"time"

	"golang.org/x/crypto/sha3"
)

// MaxPageSize is the maximum number of body bytes read from a page.
// Larger responses are truncated to this size.
const MaxPageSize = 5 * 1024 * 1024 // 5 MB

// Page is the result of fetching one URL.
//
// Design decision: Content holds cleaned markup rather than the raw body.
// The raw body is only needed for the hash, so it is hashed on arrival and
// then dropped, which keeps long crawls from pinning every response in memory.
type Page struct {
	// URL is the URL key of the page.
	URL string `json:"url"`

	// StatusCode is the HTTP response status code.
	StatusCode int `json:"status_code"`

	// ContentType is the MIME type of the response.
	ContentType string `json:"content_type"`

	// Content is the cleaned, visible markup of the page.
	Content string `json:"content"`

	// Buttons are the clickable elements found in Content.
	Buttons []Button `json:"buttons"`

	// Links are the resolved anchor targets in document order.
	// They are absolute but not yet normalized.
	Links []string `json:"links,omitempty"`

	// Hash is the hex SHA3-256 digest of the raw body.
	Hash string `json:"hash"`

	// FetchedAt is when the response was received.
	FetchedAt time.Time `json:"fetched_at"`
}

// ComputeHash sets Hash from the raw response body.
// An empty body yields an empty hash.
func (p *Page) ComputeHash(raw []byte) {
	if len(raw) == 0 {
		p.Hash = ""
		return
	}
	sum := sha3.Sum256(raw)
	p.Hash = hex.EncodeToString(sum[:])
}

// IsHTML reports whether the content type indicates an HTML document.
func (p *Page) IsHTML() bool {
	ct := strings.ToLower(strings.TrimSpace(p.ContentType))
	// No header at all: let the parser sniff it.
	if ct == "" {
		return true
	}
	return strings.HasPrefix(ct, "text/html") || strings.HasPrefix(ct, "application/xhtml+xml")
}

// ScanResult is the payload returned to the model by the page scanner:
// the cleaned content and the clickable elements, nothing else.
type ScanResult struct {
	Content string   `json:"content"`
	Buttons []Button `json:"buttons"`
}

// Result returns the model-facing view of the page.
func (p *Page) Result() ScanResult {
	buttons := p.Buttons
	if buttons == nil {
		buttons = []Button{}
	}
	return ScanResult{Content: p.Content, Buttons: buttons}
}
