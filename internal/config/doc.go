// Package config provides configuration structures and utilities for webterm.
// It defines the crawl settings, the LLM provider settings and report
// preferences, and loads per-site overrides from a YAML file.
package config
