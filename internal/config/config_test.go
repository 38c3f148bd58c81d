package config

import (
	"errors"
	"os"
	"path/filepath"
	"testing"
	"time"
)

// TestNewConfig verifies that NewConfig returns a Config with all expected default values.
// Changes to defaults should be intentional, so each one is pinned here.
func TestNewConfig(t *testing.T) {
	t.Parallel()

	cfg := NewConfig()

	t.Run("default Timeout is 8 seconds", func(t *testing.T) {
		t.Parallel()
		if cfg.Timeout != 8*time.Second {
			t.Errorf("expected Timeout to be 8s, got %v", cfg.Timeout)
		}
	})

	t.Run("default CrawlDepth is 1", func(t *testing.T) {
		t.Parallel()
		if cfg.CrawlDepth != 1 {
			t.Errorf("expected CrawlDepth to be 1, got %d", cfg.CrawlDepth)
		}
	})

	t.Run("default MaxPages is 40", func(t *testing.T) {
		t.Parallel()
		if cfg.MaxPages != 40 {
			t.Errorf("expected MaxPages to be 40, got %d", cfg.MaxPages)
		}
	})

	t.Run("crawls are restricted to the root path", func(t *testing.T) {
		t.Parallel()
		if !cfg.RestrictToSubpath {
			t.Error("expected RestrictToSubpath to be true")
		}
	})

	t.Run("default provider is openai with a budget of 5", func(t *testing.T) {
		t.Parallel()
		if cfg.Provider != "openai" {
			t.Errorf("expected Provider to be openai, got %q", cfg.Provider)
		}
		if cfg.MaxToolCalls != 5 {
			t.Errorf("expected MaxToolCalls to be 5, got %d", cfg.MaxToolCalls)
		}
		if cfg.RequestTimeout != 2*time.Minute {
			t.Errorf("expected RequestTimeout to be 2m, got %v", cfg.RequestTimeout)
		}
	})

	t.Run("no proxy by default", func(t *testing.T) {
		t.Parallel()
		if cfg.ProxyAddress != "" {
			t.Errorf("expected no proxy, got %q", cfg.ProxyAddress)
		}
	})
}

// TestConfigValidate tests the crawl settings validation.
func TestConfigValidate(t *testing.T) {
	t.Parallel()

	valid := func() *Config {
		cfg := NewConfig()
		cfg.Targets = []string{"https://example.com"}
		return cfg
	}

	tests := []struct {
		name    string
		mutate  func(*Config)
		wantErr error
	}{
		{name: "valid config returns nil", mutate: func(*Config) {}},
		{name: "multiple targets is valid", mutate: func(c *Config) { c.Targets = append(c.Targets, "b.com") }},
		{name: "depth zero is valid", mutate: func(c *Config) { c.CrawlDepth = 0 }},
		{name: "empty targets", mutate: func(c *Config) { c.Targets = nil }, wantErr: ErrNoTarget},
		{name: "zero timeout", mutate: func(c *Config) { c.Timeout = 0 }, wantErr: ErrInvalidTimeout},
		{name: "negative depth", mutate: func(c *Config) { c.CrawlDepth = -1 }, wantErr: ErrInvalidCrawlDepth},
		{name: "zero max pages", mutate: func(c *Config) { c.MaxPages = 0 }, wantErr: ErrInvalidMaxPages},
		{name: "zero concurrency", mutate: func(c *Config) { c.Concurrency = 0 }, wantErr: ErrInvalidConcurrency},
		{
			name:    "json and markdown both enabled",
			mutate:  func(c *Config) { c.JSONReport, c.MarkdownReport = true, true },
			wantErr: ErrConflictingReportFormats,
		},
		{name: "negative delay", mutate: func(c *Config) { c.CrawlDelay = -time.Second }, wantErr: ErrInvalidCrawlDelay},
		{name: "negative body size", mutate: func(c *Config) { c.MaxBodySize = -1 }, wantErr: ErrInvalidMaxBodySize},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			t.Parallel()

			cfg := valid()
			tt.mutate(cfg)
			err := cfg.Validate()
			if tt.wantErr == nil {
				if err != nil {
					t.Errorf("expected nil error, got %v", err)
				}
				return
			}
			if !errors.Is(err, tt.wantErr) {
				t.Errorf("expected %v, got %v", tt.wantErr, err)
			}
		})
	}
}

// TestConfigValidateModel tests the LLM settings validation.
func TestConfigValidateModel(t *testing.T) {
	t.Parallel()

	tests := []struct {
		name    string
		mutate  func(*Config)
		wantErr error
	}{
		{name: "openai with key", mutate: func(c *Config) { c.APIKey = "sk-test" }},
		{name: "anthropic with key", mutate: func(c *Config) { c.Provider, c.APIKey = "Anthropic", "sk-ant" }},
		{name: "missing key", mutate: func(*Config) {}, wantErr: ErrMissingAPIKey},
		{name: "unknown provider", mutate: func(c *Config) { c.Provider, c.APIKey = "gemini", "k" }, wantErr: ErrUnknownProvider},
		{name: "negative budget", mutate: func(c *Config) { c.APIKey, c.MaxToolCalls = "k", -1 }, wantErr: ErrInvalidMaxToolCalls},
		{name: "zero request timeout", mutate: func(c *Config) { c.APIKey, c.RequestTimeout = "k", 0 }, wantErr: ErrInvalidRequestTimeout},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			t.Parallel()

			cfg := NewConfig()
			tt.mutate(cfg)
			err := cfg.ValidateModel()
			if tt.wantErr == nil {
				if err != nil {
					t.Errorf("expected nil error, got %v", err)
				}
				return
			}
			if !errors.Is(err, tt.wantErr) {
				t.Errorf("expected %v, got %v", tt.wantErr, err)
			}
		})
	}
}

// TestApplyEnv tests environment overrides.
func TestApplyEnv(t *testing.T) {
	t.Parallel()

	env := func(vars map[string]string) func(string) string {
		return func(key string) string { return vars[key] }
	}

	t.Run("openai settings", func(t *testing.T) {
		t.Parallel()

		cfg := NewConfig()
		err := cfg.ApplyEnv(env(map[string]string{
			EnvModel:        "gpt-test",
			EnvMaxToolCalls: "12",
			EnvOpenAIKey:    "sk-openai",
			EnvAnthropicKey: "sk-ant",
		}))
		if err != nil {
			t.Fatalf("ApplyEnv: %v", err)
		}
		if cfg.Model != "gpt-test" || cfg.MaxToolCalls != 12 || cfg.APIKey != "sk-openai" {
			t.Errorf("cfg = %+v", cfg)
		}
	})

	t.Run("provider selects the key variable", func(t *testing.T) {
		t.Parallel()

		cfg := NewConfig()
		err := cfg.ApplyEnv(env(map[string]string{
			EnvProvider:     " ANTHROPIC ",
			EnvOpenAIKey:    "sk-openai",
			EnvAnthropicKey: "sk-ant",
		}))
		if err != nil {
			t.Fatalf("ApplyEnv: %v", err)
		}
		if cfg.Provider != "anthropic" || cfg.APIKey != "sk-ant" {
			t.Errorf("provider = %q, key = %q", cfg.Provider, cfg.APIKey)
		}
		if cfg.APIKeyEnv() != EnvAnthropicKey {
			t.Errorf("APIKeyEnv = %q", cfg.APIKeyEnv())
		}
	})

	t.Run("explicit key is kept", func(t *testing.T) {
		t.Parallel()

		cfg := NewConfig()
		cfg.APIKey = "from-flag"
		if err := cfg.ApplyEnv(env(map[string]string{EnvOpenAIKey: "from-env"})); err != nil {
			t.Fatalf("ApplyEnv: %v", err)
		}
		if cfg.APIKey != "from-flag" {
			t.Errorf("APIKey = %q", cfg.APIKey)
		}
	})

	t.Run("unset variables keep defaults", func(t *testing.T) {
		t.Parallel()

		cfg := NewConfig()
		if err := cfg.ApplyEnv(env(nil)); err != nil {
			t.Fatalf("ApplyEnv: %v", err)
		}
		if cfg.Provider != DefaultProvider || cfg.MaxToolCalls != DefaultMaxToolCalls || cfg.APIKey != "" {
			t.Errorf("cfg = %+v", cfg)
		}
	})

	t.Run("invalid budget", func(t *testing.T) {
		t.Parallel()

		for _, v := range []string{"many", "-3"} {
			cfg := NewConfig()
			err := cfg.ApplyEnv(env(map[string]string{EnvMaxToolCalls: v}))
			if !errors.Is(err, ErrInvalidMaxToolCalls) {
				t.Errorf("%q: expected ErrInvalidMaxToolCalls, got %v", v, err)
			}
		}
	})
}

// TestFileGetSiteConfig tests merging of defaults and site overrides.
func TestFileGetSiteConfig(t *testing.T) {
	t.Parallel()

	restrict := false
	cf := &File{
		Defaults: SiteConfig{
			Cookie:         "session=default",
			Headers:        map[string]string{"Accept-Language": "en", "X-Default": "1"},
			Depth:          2,
			IgnorePatterns: []string{"/logout*"},
		},
		Sites: map[string]SiteConfig{
			"docs.example.com": {
				Headers:           map[string]string{"Accept-Language": "ja"},
				UserAgent:         "custom-agent",
				MaxPages:          10,
				RestrictToSubpath: &restrict,
				FollowPatterns:    []string{"/guide/*"},
			},
		},
	}

	t.Run("returns defaults when site not found", func(t *testing.T) {
		t.Parallel()

		sc := cf.GetSiteConfig("other.com")
		if sc.Cookie != "session=default" || sc.Depth != 2 || sc.RestrictToSubpath != nil {
			t.Errorf("sc = %+v", sc)
		}
	})

	t.Run("site overrides defaults", func(t *testing.T) {
		t.Parallel()

		sc := cf.GetSiteConfig("Docs.Example.com")
		if sc.Headers["Accept-Language"] != "ja" || sc.Headers["X-Default"] != "1" {
			t.Errorf("headers = %v", sc.Headers)
		}
		if sc.UserAgent != "custom-agent" || sc.MaxPages != 10 || sc.Depth != 2 {
			t.Errorf("sc = %+v", sc)
		}
		if sc.RestrictToSubpath == nil || *sc.RestrictToSubpath {
			t.Error("expected restrictToSubpath false")
		}
		if len(sc.FollowPatterns) != 1 || len(sc.IgnorePatterns) != 1 {
			t.Errorf("patterns = %v %v", sc.FollowPatterns, sc.IgnorePatterns)
		}
	})

	t.Run("merging does not modify defaults", func(t *testing.T) {
		t.Parallel()

		_ = cf.GetSiteConfig("docs.example.com")
		if cf.Defaults.Headers["Accept-Language"] != "en" {
			t.Error("default headers were modified")
		}
	})

	t.Run("ForURL uses the host", func(t *testing.T) {
		t.Parallel()

		for _, raw := range []string{"https://docs.example.com/guide", "docs.example.com", "http://docs.example.com:8080/"} {
			if sc := cf.ForURL(raw); sc.UserAgent != "custom-agent" {
				t.Errorf("ForURL(%q) = %+v", raw, sc)
			}
		}
	})

	t.Run("nil file", func(t *testing.T) {
		t.Parallel()

		var nilFile *File
		if sc := nilFile.ForURL("https://a.com"); sc.Depth != 0 || sc.Headers != nil {
			t.Errorf("sc = %+v", sc)
		}
	})
}

// TestLoadConfigFile tests reading the YAML file.
func TestLoadConfigFile(t *testing.T) {
	t.Parallel()

	t.Run("returns ErrConfigNotFound for non-existent file", func(t *testing.T) {
		t.Parallel()

		_, err := LoadConfigFile(filepath.Join(t.TempDir(), "missing.yaml"))
		if !errors.Is(err, ErrConfigNotFound) {
			t.Errorf("expected ErrConfigNotFound, got %v", err)
		}
	})

	t.Run("loads valid YAML config", func(t *testing.T) {
		t.Parallel()

		path := filepath.Join(t.TempDir(), DefaultConfigFile)
		content := `defaults:
  depth: 2
  userAgent: yaml-agent
  ignorePatterns:
    - "*.pdf"
sites:
  shop.example.com:
    cookie: "cart=1"
    maxPages: 15
    restrictToSubpath: false
    headers:
      Authorization: "Bearer token"
`
		if err := os.WriteFile(path, []byte(content), 0o600); err != nil {
			t.Fatal(err)
		}

		cf, err := LoadConfigFile(path)
		if err != nil {
			t.Fatalf("LoadConfigFile: %v", err)
		}
		sc := cf.GetSiteConfig("shop.example.com")
		if sc.Depth != 2 || sc.UserAgent != "yaml-agent" || sc.Cookie != "cart=1" || sc.MaxPages != 15 {
			t.Errorf("sc = %+v", sc)
		}
		if sc.RestrictToSubpath == nil || *sc.RestrictToSubpath {
			t.Error("expected restrictToSubpath false")
		}
		if sc.Headers["Authorization"] != "Bearer token" {
			t.Errorf("headers = %v", sc.Headers)
		}
		if len(sc.IgnorePatterns) != 1 || sc.IgnorePatterns[0] != "*.pdf" {
			t.Errorf("ignore = %v", sc.IgnorePatterns)
		}
	})

	t.Run("returns error for invalid YAML", func(t *testing.T) {
		t.Parallel()

		path := filepath.Join(t.TempDir(), "bad.yaml")
		if err := os.WriteFile(path, []byte("sites: [unclosed"), 0o600); err != nil {
			t.Fatal(err)
		}
		if _, err := LoadConfigFile(path); err == nil {
			t.Error("expected an error")
		}
	})

	t.Run("initializes nil Sites map", func(t *testing.T) {
		t.Parallel()

		path := filepath.Join(t.TempDir(), "empty.yaml")
		if err := os.WriteFile(path, []byte("defaults:\n  depth: 1\n"), 0o600); err != nil {
			t.Fatal(err)
		}
		cf, err := LoadConfigFile(path)
		if err != nil {
			t.Fatalf("LoadConfigFile: %v", err)
		}
		if cf.Sites == nil {
			t.Error("expected Sites to be initialized")
		}
	})
}

// TestFindConfigFile tests the search order.
func TestFindConfigFile(t *testing.T) {
	t.Parallel()

	t.Run("returns explicit path if exists", func(t *testing.T) {
		t.Parallel()

		path := filepath.Join(t.TempDir(), "custom.yaml")
		if err := os.WriteFile(path, []byte("{}"), 0o600); err != nil {
			t.Fatal(err)
		}
		if got := FindConfigFile(path); got != path {
			t.Errorf("FindConfigFile = %q, want %q", got, path)
		}
	})

	t.Run("returns empty for non-existent explicit path", func(t *testing.T) {
		t.Parallel()

		if got := FindConfigFile(filepath.Join(t.TempDir(), "nope.yaml")); got != "" {
			t.Errorf("FindConfigFile = %q", got)
		}
	})
}

// TestXDGDirs tests that the XDG helpers end in the application name.
func TestXDGDirs(t *testing.T) {
	t.Parallel()

	for name, dir := range map[string]string{
		"data":   XDGDataDir(),
		"config": XDGConfigDir(),
		"cache":  XDGCacheDir(),
	} {
		if filepath.Base(dir) != AppName {
			t.Errorf("%s dir %q does not end in %q", name, dir, AppName)
		}
	}
}
