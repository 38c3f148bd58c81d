package crawler

import (
	"context"
	"log/slog"
	"net/url"
	"path/filepath"
	"strings"
	"time"

	"github.com/nao1215/webterm/internal/model"
)

// Crawl defaults.
const (
	// DefaultMaxDepth crawls the root and the pages it links to.
	DefaultMaxDepth = 1

	// DefaultMaxPages caps the number of nodes in one tree.
	DefaultMaxPages = 40
)

// PageObserver is called for every page fetched during a crawl.
type PageObserver func(root string, page *model.Page)

// Spider performs a bounded breadth-first crawl of one site.
// Its configuration is read-only after NewSpider, so one Spider may serve
// several crawls; every call to Crawl has its own queue and visited set.
//
// Design decision: We call it "Spider" rather than "Crawler" because it
// distinguishes the component from the package name:
// crawler.NewSpider() reads better than crawler.NewCrawler().
type Spider struct {
	// fetcher retrieves and cleans pages.
	fetcher Fetcher

	// maxDepth limits how deep to crawl from the root.
	// 0 means only the root, 1 means the root plus the pages it links to.
	maxDepth int

	// maxPages caps the number of nodes admitted into the tree, root included.
	maxPages int

	// restrictToSubpath admits only URLs at or below the root path.
	restrictToSubpath bool

	// fetchTimeout bounds each page fetch.
	fetchTimeout time.Duration

	// delay is the time to wait between requests.
	delay time.Duration

	// ignorePatterns are URL path patterns to skip during crawling.
	ignorePatterns []string

	// followPatterns, if set, are the only URL path patterns that are crawled.
	followPatterns []string

	// logger receives per-page debug output.
	logger *slog.Logger

	// observer, if set, sees every successfully fetched page.
	observer PageObserver
}

// SpiderOption configures a Spider.
type SpiderOption func(*Spider)

// WithMaxDepth sets the maximum crawl depth. Negative values become 0.
func WithMaxDepth(depth int) SpiderOption {
	return func(s *Spider) {
		s.maxDepth = max(0, depth)
	}
}

// WithMaxPages sets the maximum number of tree nodes. Values below 1 become 1.
func WithMaxPages(maxPages int) SpiderOption {
	return func(s *Spider) {
		s.maxPages = max(1, maxPages)
	}
}

// WithRestrictToSubpath controls whether links outside the root path are admitted.
func WithRestrictToSubpath(restrict bool) SpiderOption {
	return func(s *Spider) {
		s.restrictToSubpath = restrict
	}
}

// WithFetchTimeout sets the timeout of each page fetch.
func WithFetchTimeout(d time.Duration) SpiderOption {
	return func(s *Spider) {
		if d > 0 {
			s.fetchTimeout = d
		}
	}
}

// WithDelay sets the delay between requests.
func WithDelay(d time.Duration) SpiderOption {
	return func(s *Spider) {
		s.delay = d
	}
}

// WithIgnorePatterns sets URL path patterns to skip during crawling.
// Patterns use glob syntax (e.g., "/admin/*", "*.pdf", "/logout*").
func WithIgnorePatterns(patterns []string) SpiderOption {
	return func(s *Spider) {
		s.ignorePatterns = patterns
	}
}

// WithFollowPatterns sets URL path patterns to follow during crawling.
// If set, only URLs matching at least one pattern are admitted.
func WithFollowPatterns(patterns []string) SpiderOption {
	return func(s *Spider) {
		s.followPatterns = patterns
	}
}

// WithLogger sets the logger.
func WithLogger(logger *slog.Logger) SpiderOption {
	return func(s *Spider) {
		if logger != nil {
			s.logger = logger
		}
	}
}

// WithPageObserver registers a callback for every fetched page.
func WithPageObserver(observer PageObserver) SpiderOption {
	return func(s *Spider) {
		s.observer = observer
	}
}

// NewSpider creates a Spider that fetches pages through fetcher.
func NewSpider(fetcher Fetcher, opts ...SpiderOption) *Spider {
	s := &Spider{
		fetcher:           fetcher,
		maxDepth:          DefaultMaxDepth,
		maxPages:          DefaultMaxPages,
		restrictToSubpath: true,
		fetchTimeout:      DefaultFetchTimeout,
		logger:            slog.Default(),
	}
	for _, opt := range opts {
		opt(s)
	}
	return s
}

// queueItem represents an item in the crawl queue.
type queueItem struct {
	url   string
	depth int
}

// crawlScope holds the admission rules derived from the root URL.
type crawlScope struct {
	scheme   string
	host     string
	basePath string
}

// Crawl builds the site tree rooted at rootURL.
//
// The root is always in the returned tree, even when it cannot be fetched.
// Pages that fail to fetch contribute no children and do not stop the crawl.
// If ctx ends, the partial tree is returned together with ctx.Err().
func (s *Spider) Crawl(ctx context.Context, rootURL string) (*model.SiteTree, error) {
	root := model.NormalizeURL(rootURL)
	if root == "" {
		return nil, ErrEmptyRootURL
	}
	base, err := url.Parse(root)
	if err != nil {
		return nil, ErrEmptyRootURL
	}
	scope := crawlScope{
		scheme:   base.Scheme,
		host:     base.Host,
		basePath: strings.TrimRight(base.Path, "/"),
	}

	tree := model.NewSiteTree(root)
	visited := map[string]bool{root: true}
	queue := []queueItem{{url: root, depth: 0}}
	fetched := 0

	for len(queue) > 0 && len(visited) < s.maxPages {
		if err := ctx.Err(); err != nil {
			return tree, err
		}

		item := queue[0]
		queue = queue[1:]

		if item.depth >= s.maxDepth {
			continue
		}

		// Politeness delay
		if s.delay > 0 && fetched > 0 {
			select {
			case <-ctx.Done():
				return tree, ctx.Err()
			case <-time.After(s.delay):
			}
		}

		fetched++
		page, err := s.fetcher.Fetch(ctx, item.url, s.fetchTimeout)
		if err != nil {
			if ctx.Err() != nil {
				return tree, ctx.Err()
			}
			s.logger.Debug("page fetch failed", "url", item.url, "error", err)
			continue
		}
		if s.observer != nil {
			s.observer(root, page)
		}

		pageURL, _ := url.Parse(item.url) //nolint:errcheck // queued URLs are normalized keys
		for _, link := range page.Links {
			child := s.admit(scope, resolveLink(pageURL, link), visited)
			if child == "" {
				continue
			}

			tree.Add(item.url, child)
			visited[child] = true

			if len(visited) >= s.maxPages {
				break
			}
			queue = append(queue, queueItem{url: child, depth: item.depth + 1})
		}
		s.logger.Debug("page crawled", "url", item.url, "depth", item.depth, "nodes", len(visited))
	}

	return tree, nil
}

// resolveLink resolves link against the page it was found on. Links that do
// not parse are returned unchanged and rejected later by admit.
func resolveLink(page *url.URL, link string) string {
	if page == nil {
		return link
	}
	ref, err := url.Parse(strings.TrimSpace(link))
	if err != nil {
		return link
	}
	return page.ResolveReference(ref).String()
}

// admit returns the URL key of link if it may join the tree, or "".
func (s *Spider) admit(scope crawlScope, link string, visited map[string]bool) string {
	child := model.NormalizeURL(link)
	if child == "" || visited[child] {
		return ""
	}

	u, err := url.Parse(child)
	if err != nil {
		return ""
	}
	if u.Scheme != "http" && u.Scheme != "https" {
		return ""
	}
	if u.Scheme != scope.scheme || u.Host != scope.host {
		return ""
	}
	if s.restrictToSubpath && !isUnderBasePath(u.Path, scope.basePath) {
		return ""
	}
	if !s.shouldCrawl(u.Path) {
		return ""
	}
	return child
}

// isUnderBasePath reports whether path equals basePath or is nested under it.
// Trailing slashes are ignored; an empty basePath admits everything.
func isUnderBasePath(path, basePath string) bool {
	if basePath == "" {
		return true
	}
	path = strings.TrimRight(path, "/")
	return path == basePath || strings.HasPrefix(path, basePath+"/")
}

// shouldCrawl checks a URL path against the ignore and follow patterns.
//
// Logic:
//  1. If the path matches any ignore pattern, skip it
//  2. If follow patterns are set and the path matches none, skip it
//  3. Otherwise, crawl it
func (s *Spider) shouldCrawl(path string) bool {
	if path == "" {
		path = "/"
	}

	for _, pattern := range s.ignorePatterns {
		if matchPattern(pattern, path) {
			return false
		}
	}

	if len(s.followPatterns) == 0 {
		return true
	}
	for _, pattern := range s.followPatterns {
		if matchPattern(pattern, path) {
			return true
		}
	}
	return false
}

// matchPattern checks if a path matches a glob pattern.
//
// Examples:
//   - "/admin/*" matches "/admin", "/admin/dashboard" and "/admin/a/b"
//   - "*.pdf" matches "/docs/file.pdf"
//   - "/api/v?" matches "/api/v1", "/api/v2"
func matchPattern(pattern, path string) bool {
	if prefix, ok := strings.CutSuffix(pattern, "/*"); ok {
		if path == prefix || strings.HasPrefix(path, prefix+"/") {
			return true
		}
	}

	if ext, ok := strings.CutPrefix(pattern, "*"); ok && strings.HasPrefix(ext, ".") {
		if strings.HasSuffix(path, ext) {
			return true
		}
	}

	if matched, err := filepath.Match(pattern, path); err == nil && matched {
		return true
	}

	// Patterns without a slash are matched against the last path segment.
	if strings.Contains(pattern, "*") && !strings.Contains(pattern, "/") {
		if matched, err := filepath.Match(pattern, filepath.Base(path)); err == nil && matched {
			return true
		}
	}
	return false
}
