package crawler

import (
	"errors"
	"fmt"
)

// Crawler errors.
var (
	// ErrFetch is the common cause of every page fetch failure.
	// Use errors.As with *FetchError to get the URL and status.
	ErrFetch = errors.New("failed to fetch page")

	// ErrEmptyRootURL is returned when the crawl root normalizes to nothing.
	ErrEmptyRootURL = errors.New("crawl requires a non-empty root URL")

	// ErrInvalidProxyAddress is returned when the proxy address is not host:port.
	ErrInvalidProxyAddress = errors.New("invalid proxy address format: expected host:port")
)

// FetchError describes a failed page fetch.
// It matches ErrFetch with errors.Is, and the underlying cause (if any) too.
type FetchError struct {
	// URL is the page that could not be fetched.
	URL string

	// StatusCode is the HTTP status, or 0 when no response was received.
	StatusCode int

	// Err is the transport or decoding error, nil for a bad status.
	Err error
}

// Error implements the error interface.
func (e *FetchError) Error() string {
	if e.Err != nil {
		return fmt.Sprintf("failed to fetch %s: %v", e.URL, e.Err)
	}
	return fmt.Sprintf("failed to fetch %s: HTTP status %d", e.URL, e.StatusCode)
}

// Unwrap exposes both ErrFetch and the underlying cause.
func (e *FetchError) Unwrap() []error {
	if e.Err == nil {
		return []error{ErrFetch}
	}
	return []error{ErrFetch, e.Err}
}
