package crawler

import (
	"bytes"
	"context"
	"io"
	"net/http"
	"strings"
	"time"

	"golang.org/x/net/html/charset"

	"github.com/nao1215/webterm/internal/model"
)

// DefaultUserAgent identifies the crawler to the sites it visits.
const DefaultUserAgent = "WebTerm-SiteScanner/2.0"

// DefaultFetchTimeout bounds a single page fetch.
const DefaultFetchTimeout = 8 * time.Second

// Fetcher retrieves one page.
// Implementations return a *FetchError (matching ErrFetch) on any failure.
type Fetcher interface {
	Fetch(ctx context.Context, pageURL string, timeout time.Duration) (*model.Page, error)
}

// HTTPFetcher fetches pages over HTTP and cleans them with Parser.
type HTTPFetcher struct {
	// client performs the requests. Its transport carries proxy and site headers.
	client *http.Client

	// userAgent is the User-Agent header to use.
	userAgent string

	// maxBodySize limits the size of response bodies to read.
	maxBodySize int64

	// now is the clock used for FetchedAt.
	now func() time.Time
}

// FetcherOption configures an HTTPFetcher.
type FetcherOption func(*HTTPFetcher)

// WithHTTPClient sets the HTTP client. Use NewHTTPClient to build one with
// a proxy or site-specific headers.
func WithHTTPClient(client *http.Client) FetcherOption {
	return func(f *HTTPFetcher) {
		f.client = client
	}
}

// WithUserAgent sets a custom User-Agent header.
func WithUserAgent(ua string) FetcherOption {
	return func(f *HTTPFetcher) {
		if ua != "" {
			f.userAgent = ua
		}
	}
}

// WithMaxBodySize sets the maximum response body size.
func WithMaxBodySize(size int64) FetcherOption {
	return func(f *HTTPFetcher) {
		if size > 0 {
			f.maxBodySize = size
		}
	}
}

// NewHTTPFetcher creates a fetcher with sensible defaults.
func NewHTTPFetcher(opts ...FetcherOption) *HTTPFetcher {
	f := &HTTPFetcher{
		client:      &http.Client{},
		userAgent:   DefaultUserAgent,
		maxBodySize: model.MaxPageSize,
		now:         time.Now,
	}
	for _, opt := range opts {
		opt(f)
	}
	return f
}

// Fetch retrieves pageURL and returns the cleaned page.
// A timeout of zero or less uses DefaultFetchTimeout.
func (f *HTTPFetcher) Fetch(ctx context.Context, pageURL string, timeout time.Duration) (*model.Page, error) {
	if timeout <= 0 {
		timeout = DefaultFetchTimeout
	}
	ctx, cancel := context.WithTimeout(ctx, timeout)
	defer cancel()

	req, err := http.NewRequestWithContext(ctx, http.MethodGet, pageURL, nil)
	if err != nil {
		return nil, &FetchError{URL: pageURL, Err: err}
	}
	req.Header.Set("User-Agent", f.userAgent)
	req.Header.Set("Accept", "text/html,application/xhtml+xml,application/xml;q=0.9,*/*;q=0.8")
	req.Header.Set("Accept-Language", "en-US,en;q=0.5")

	resp, err := f.client.Do(req)
	if err != nil {
		return nil, &FetchError{URL: pageURL, Err: err}
	}
	defer resp.Body.Close()

	if resp.StatusCode < 200 || resp.StatusCode > 299 {
		return nil, &FetchError{URL: pageURL, StatusCode: resp.StatusCode}
	}

	body, err := io.ReadAll(io.LimitReader(resp.Body, f.maxBodySize))
	if err != nil {
		return nil, &FetchError{URL: pageURL, StatusCode: resp.StatusCode, Err: err}
	}

	page := &model.Page{
		URL:         pageURL,
		StatusCode:  resp.StatusCode,
		ContentType: resp.Header.Get("Content-Type"),
		Buttons:     []model.Button{},
		FetchedAt:   f.now(),
	}
	page.ComputeHash(body)

	// Binary content has nothing to clean and no links to follow.
	if !page.IsHTML() && !strings.HasPrefix(strings.ToLower(page.ContentType), "text/") {
		return page, nil
	}

	decoded, err := charset.NewReader(bytes.NewReader(body), page.ContentType)
	if err != nil {
		return nil, &FetchError{URL: pageURL, StatusCode: resp.StatusCode, Err: err}
	}

	parser, err := NewParser(pageURL)
	if err != nil {
		return nil, &FetchError{URL: pageURL, StatusCode: resp.StatusCode, Err: err}
	}
	result, err := parser.Parse(decoded)
	if err != nil {
		return nil, &FetchError{URL: pageURL, StatusCode: resp.StatusCode, Err: err}
	}

	page.Content = result.Content
	page.Buttons = result.Buttons
	page.Links = result.Links
	return page, nil
}
