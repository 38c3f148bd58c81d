package config

import "errors"

// Configuration validation errors.
// These errors are returned by Config.Validate, Config.ValidateModel and
// Config.ApplyEnv.
//
// Design decision: We use package-level sentinel errors rather than
// creating new error instances in Validate(). This allows callers to use
// errors.Is() for programmatic error handling while still providing
// human-readable messages.
var (
	// ErrNoTarget is returned when no site URL is specified.
	ErrNoTarget = errors.New("no target specified: provide a site URL or use --list")

	// ErrInvalidTimeout is returned when the fetch timeout is not positive.
	ErrInvalidTimeout = errors.New("invalid timeout: must be positive")

	// ErrInvalidCrawlDepth is returned when the crawl depth is negative.
	ErrInvalidCrawlDepth = errors.New("invalid crawl depth: must be non-negative")

	// ErrInvalidMaxPages is returned when the page cap is not positive.
	ErrInvalidMaxPages = errors.New("invalid max pages: must be positive")

	// ErrInvalidConcurrency is returned when the concurrency is not positive.
	ErrInvalidConcurrency = errors.New("invalid concurrency: must be positive")

	// ErrConflictingReportFormats is returned when both --json and --markdown
	// are specified. Only one output format can be used at a time.
	ErrConflictingReportFormats = errors.New("conflicting report formats: --json and --markdown cannot be used together")

	// ErrInvalidCrawlDelay is returned when the crawl delay is negative.
	// Use 0 for no delay between requests.
	ErrInvalidCrawlDelay = errors.New("invalid crawl delay: must be non-negative")

	// ErrInvalidMaxBodySize is returned when the max body size is negative.
	// Use 0 to use the default limit.
	ErrInvalidMaxBodySize = errors.New("invalid max body size: must be non-negative")

	// ErrUnknownProvider is returned for a provider other than openai or anthropic.
	ErrUnknownProvider = errors.New("unknown LLM provider: use openai or anthropic")

	// ErrMissingAPIKey is returned when no API key is configured for the provider.
	ErrMissingAPIKey = errors.New("missing API key: set OPENAI_API_KEY or ANTHROPIC_API_KEY")

	// ErrInvalidMaxToolCalls is returned when the tool-call budget is negative
	// or not a number.
	ErrInvalidMaxToolCalls = errors.New("invalid max tool calls: must be a non-negative integer")

	// ErrInvalidRequestTimeout is returned when the model request timeout is not positive.
	ErrInvalidRequestTimeout = errors.New("invalid request timeout: must be positive")
)
