package config

import (
	"path/filepath"
	"strings"
	"time"

	"github.com/adrg/xdg"
)

// Default configuration values.
const (
	// AppName is the application name used for XDG directory paths.
	AppName = "webterm"

	// DefaultTimeout bounds a single page fetch.
	DefaultTimeout = 8 * time.Second

	// DefaultCrawlDepth fetches the root and records the pages it links to.
	// Deeper crawls are usually left to the model, which can call the
	// propagation tool again on a sub-path.
	DefaultCrawlDepth = 1

	// DefaultMaxPages caps the number of nodes one crawl adds to a tree.
	DefaultMaxPages = 40

	// DefaultConcurrency is the number of sites crawled at once by `webterm crawl`.
	DefaultConcurrency = 4

	// DefaultCrawlDelay is the delay between requests during crawling.
	// Zero means no delay.
	DefaultCrawlDelay = 0 * time.Second

	// DefaultUserAgent identifies webterm in HTTP requests.
	DefaultUserAgent = "WebTerm-SiteScanner/2.0"

	// DefaultMaxBodySize limits the maximum response body size to read.
	DefaultMaxBodySize = 5 * 1024 * 1024 // 5MB

	// DefaultProvider is the LLM provider used when none is configured.
	DefaultProvider = "openai"

	// DefaultMaxToolCalls is the tool-call budget of one mapping task.
	DefaultMaxToolCalls = 5

	// DefaultRequestTimeout bounds one model round trip.
	DefaultRequestTimeout = 2 * time.Minute
)

// Environment variables read by ApplyEnv.
const (
	EnvProvider     = "WEBTERM_PROVIDER"
	EnvModel        = "WEBTERM_MODEL"
	EnvMaxToolCalls = "WEBTERM_MAX_TOOL_CALLS"
	EnvOpenAIKey    = "OPENAI_API_KEY"
	EnvAnthropicKey = "ANTHROPIC_API_KEY"
)

// Config holds all configuration options for webterm.
// This struct is populated from CLI flags, the environment and the config
// file, and is passed through the application rather than held globally.
//
// Design decision: We use a single flat struct instead of nested structs
// (e.g., CrawlConfig, LLMConfig). The number of options is manageable and
// every subcommand reads a different subset of the same flags.
type Config struct {
	// ProxyAddress routes page fetches through a SOCKS5 proxy ("host:port").
	// Empty means direct connections.
	ProxyAddress string

	// Timeout bounds each page fetch.
	Timeout time.Duration

	// CrawlDepth is the maximum link depth for crawling.
	// Depth 0 means only fetch the root page.
	CrawlDepth int

	// MaxPages is the maximum number of nodes one crawl adds to a tree.
	MaxPages int

	// RestrictToSubpath admits only links at or below the root path.
	RestrictToSubpath bool

	// Verbose enables detailed log output using slog.LevelDebug.
	// When false, only warnings and errors are logged.
	Verbose bool

	// Concurrency is the number of sites crawled at once.
	Concurrency int

	// ConfigFilePath is the path to the configuration file.
	// If empty, the tool searches for .webterm in the current directory
	// and then in the user's home directory.
	ConfigFilePath string

	// SiteConfigs holds site-specific configurations loaded from the config file.
	SiteConfigs *File

	// JSONReport enables JSON report output instead of human-readable format.
	// Mutually exclusive with MarkdownReport.
	JSONReport bool

	// MarkdownReport enables Markdown report output instead of human-readable format.
	// Mutually exclusive with JSONReport.
	MarkdownReport bool

	// ReportFile is the output file path for the report.
	// When set, the report is written to this file instead of stdout.
	ReportFile string

	// Targets is the list of site URLs to map.
	Targets []string

	// DBDir is the directory path for storing the SQLite database.
	// Defaults to XDG data directory (~/.local/share/webterm on Linux).
	DBDir string

	// SaveToDB indicates whether pages and trees are stored in the database.
	SaveToDB bool

	// CrawlDelay is the delay between HTTP requests during crawling.
	CrawlDelay time.Duration

	// UserAgent is the User-Agent header sent with HTTP requests.
	UserAgent string

	// MaxBodySize is the maximum response body size in bytes to read.
	// Set to 0 to use the default (5MB).
	MaxBodySize int64

	// Provider selects the LLM backend: "openai" or "anthropic".
	Provider string

	// Model is the model name. Empty means the provider default.
	Model string

	// APIKey authenticates against the provider.
	APIKey string

	// BaseURL overrides the provider endpoint, e.g. for a compatible proxy.
	BaseURL string

	// MaxToolCalls is the tool-call budget of one mapping task.
	MaxToolCalls int

	// RequestTimeout bounds one model round trip.
	RequestTimeout time.Duration
}

// NewConfig creates a new Config with default values.
//
// Design decision: We use a constructor function instead of relying on
// zero values because many defaults are non-zero (e.g., timeout, page cap).
// This also serves as documentation of what the defaults are.
func NewConfig() *Config {
	return &Config{
		Timeout:           DefaultTimeout,
		CrawlDepth:        DefaultCrawlDepth,
		MaxPages:          DefaultMaxPages,
		RestrictToSubpath: true,
		Concurrency:       DefaultConcurrency,
		CrawlDelay:        DefaultCrawlDelay,
		UserAgent:         DefaultUserAgent,
		MaxBodySize:       DefaultMaxBodySize,
		Provider:          DefaultProvider,
		MaxToolCalls:      DefaultMaxToolCalls,
		RequestTimeout:    DefaultRequestTimeout,
	}
}

// XDGDataDir returns the XDG data directory for webterm.
// On Linux: ~/.local/share/webterm
// On macOS: ~/Library/Application Support/webterm
// On Windows: %LOCALAPPDATA%\webterm
func XDGDataDir() string {
	return filepath.Join(xdg.DataHome, AppName)
}

// XDGConfigDir returns the XDG config directory for webterm.
func XDGConfigDir() string {
	return filepath.Join(xdg.ConfigHome, AppName)
}

// XDGCacheDir returns the XDG cache directory for webterm.
func XDGCacheDir() string {
	return filepath.Join(xdg.CacheHome, AppName)
}

// Validate checks if the configuration is valid.
// It returns a specific error describing what is invalid.
//
// Design decision: We validate at the config level rather than at each
// point of use to fail fast and provide clear error messages upfront.
// The first error found is returned because fixing one error often makes
// others irrelevant.
func (c *Config) Validate() error {
	if len(c.Targets) == 0 {
		return ErrNoTarget
	}
	if c.Timeout <= 0 {
		return ErrInvalidTimeout
	}
	if c.CrawlDepth < 0 {
		return ErrInvalidCrawlDepth
	}
	if c.MaxPages <= 0 {
		return ErrInvalidMaxPages
	}
	if c.Concurrency <= 0 {
		return ErrInvalidConcurrency
	}
	if c.JSONReport && c.MarkdownReport {
		return ErrConflictingReportFormats
	}
	if c.CrawlDelay < 0 {
		return ErrInvalidCrawlDelay
	}
	if c.MaxBodySize < 0 {
		return ErrInvalidMaxBodySize
	}
	return nil
}

// ValidateModel checks the LLM settings. It is separate from Validate
// because crawling alone needs no model.
func (c *Config) ValidateModel() error {
	switch strings.ToLower(c.Provider) {
	case "", "openai", "anthropic":
	default:
		return ErrUnknownProvider
	}
	if c.APIKey == "" {
		return ErrMissingAPIKey
	}
	if c.MaxToolCalls < 0 {
		return ErrInvalidMaxToolCalls
	}
	if c.RequestTimeout <= 0 {
		return ErrInvalidRequestTimeout
	}
	return nil
}
