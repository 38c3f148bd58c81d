package agent

import (
	"errors"
	"fmt"
)

// Agent errors.
var (
	// ErrUnresolvedCall is returned when a model request would carry a tool
	// call that has no result yet.
	ErrUnresolvedCall = errors.New("transcript has a tool call without a result")

	// ErrMissingAPIKey is returned when a provider is configured without a key.
	ErrMissingAPIKey = errors.New("model provider requires an API key")

	// ErrModelRequest wraps every failed provider round trip.
	ErrModelRequest = errors.New("model request failed")
)

// ErrUnsupportedProvider is returned by NewModel for an unknown provider name.
type ErrUnsupportedProvider struct {
	Provider string
}

// Error implements the error interface.
func (e ErrUnsupportedProvider) Error() string {
	return fmt.Sprintf("unsupported LLM provider: %s", e.Provider)
}
