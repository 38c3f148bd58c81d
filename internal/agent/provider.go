package agent

import (
	"strings"
)

// Supported providers.
const (
	ProviderOpenAI    = "openai"
	ProviderAnthropic = "anthropic"
)

// Provider defaults.
const (
	// DefaultOpenAIModel is used when ProviderConfig.Model is empty.
	DefaultOpenAIModel = "gpt-5.2"

	// DefaultAnthropicModel is used when ProviderConfig.Model is empty.
	DefaultAnthropicModel = "claude-sonnet-4-5"

	// DefaultMaxTokens bounds the length of one model turn.
	DefaultMaxTokens = 4096
)

// ProviderConfig selects and configures a model provider.
type ProviderConfig struct {
	// Provider is "openai" (default) or "anthropic".
	Provider string

	// Model is the provider's model name.
	Model string

	// APIKey authenticates the requests.
	APIKey string

	// BaseURL overrides the provider endpoint (proxies, compatible servers, tests).
	BaseURL string

	// MaxTokens bounds the length of one model turn. 0 uses DefaultMaxTokens.
	MaxTokens int

	// MaxRetries is the number of SDK retries for transient failures.
	MaxRetries int
}

// NewModel creates the provider named in cfg.
func NewModel(cfg ProviderConfig) (Model, error) {
	if cfg.APIKey == "" {
		return nil, ErrMissingAPIKey
	}
	if cfg.MaxTokens <= 0 {
		cfg.MaxTokens = DefaultMaxTokens
	}
	if cfg.MaxRetries < 0 {
		cfg.MaxRetries = 0
	}

	switch strings.ToLower(strings.TrimSpace(cfg.Provider)) {
	case "", ProviderOpenAI:
		if cfg.Model == "" {
			cfg.Model = DefaultOpenAIModel
		}
		return NewOpenAIModel(cfg), nil
	case ProviderAnthropic:
		if cfg.Model == "" {
			cfg.Model = DefaultAnthropicModel
		}
		return NewAnthropicModel(cfg), nil
	default:
		return nil, ErrUnsupportedProvider{Provider: cfg.Provider}
	}
}
