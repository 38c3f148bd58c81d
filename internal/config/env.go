package config

import (
	"fmt"
	"strconv"
	"strings"
)

// ApplyEnv overrides LLM settings from the environment. getenv is usually
// os.Getenv; tests pass a map lookup.
//
// The provider is read first because it decides which API key variable is
// used. An API key already set (for example by a flag) is kept. An invalid
// WEBTERM_MAX_TOOL_CALLS is an error rather than silently ignored.
func (c *Config) ApplyEnv(getenv func(string) string) error {
	if v := strings.TrimSpace(getenv(EnvProvider)); v != "" {
		c.Provider = strings.ToLower(v)
	}
	if v := strings.TrimSpace(getenv(EnvModel)); v != "" {
		c.Model = v
	}
	if v := strings.TrimSpace(getenv(EnvMaxToolCalls)); v != "" {
		n, err := strconv.Atoi(v)
		if err != nil || n < 0 {
			return fmt.Errorf("%w: %s=%q", ErrInvalidMaxToolCalls, EnvMaxToolCalls, v)
		}
		c.MaxToolCalls = n
	}

	if c.APIKey == "" {
		c.APIKey = strings.TrimSpace(getenv(c.APIKeyEnv()))
	}
	return nil
}

// APIKeyEnv returns the environment variable that holds the API key of
// the configured provider.
func (c *Config) APIKeyEnv() string {
	if strings.EqualFold(c.Provider, "anthropic") {
		return EnvAnthropicKey
	}
	return EnvOpenAIKey
}
