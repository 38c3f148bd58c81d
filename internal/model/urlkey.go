package model

import (
	"errors"
	"net/url"
	"regexp"
	"strings"
)

// ErrInvalidURL is returned when a raw string cannot be turned into a URL key.
var ErrInvalidURL = errors.New("invalid or empty URL")

// defaultScheme is prepended to URLs that do not carry a scheme.
const defaultScheme = "https"

// defaultPorts are the ports a URL key leaves implicit.
var defaultPorts = map[string]string{
	"http":  "80",
	"https": "443",
}

// schemePrefix matches an RFC 3986 scheme followed by a colon.
var schemePrefix = regexp.MustCompile(`^[a-zA-Z][a-zA-Z0-9+.\-]*:`)

// NormalizeURL canonicalizes a raw URL string into a URL key.
// Two URLs refer to the same page if and only if their keys are equal.
//
// Rules:
//   - surrounding whitespace is trimmed; empty input yields ""
//   - input without a scheme gets "https://" ("//host" gets "https:")
//   - the fragment is removed, the query string is kept
//   - scheme and host are lowercased
//   - the scheme's default port is removed ("https://a.com:443" is "https://a.com/")
//   - an empty path becomes "/", any other path loses its trailing slashes
//
// Unparseable input and http(s) URLs without a host yield "".
// NormalizeURL is idempotent.
func NormalizeURL(raw string) string {
	s := strings.TrimSpace(raw)
	if s == "" {
		return ""
	}

	switch {
	case strings.HasPrefix(s, "//"):
		s = defaultScheme + ":" + s
	case !hasScheme(s):
		s = defaultScheme + "://" + s
	}

	u, err := url.Parse(s)
	if err != nil {
		return ""
	}

	u.Fragment = ""
	u.RawFragment = ""
	u.Scheme = strings.ToLower(u.Scheme)

	// mailto:, tel: and friends have no hierarchical part to normalize
	if u.Opaque != "" {
		return u.String()
	}

	if isHTTPScheme(u.Scheme) && u.Host == "" {
		return ""
	}
	u.Host = strings.ToLower(u.Host)
	if port := u.Port(); port != "" && port == defaultPorts[u.Scheme] {
		u.Host = strings.TrimSuffix(u.Host, ":"+port)
	}

	path := strings.TrimRight(u.Path, "/")
	if path == "" {
		path = "/"
	}
	u.Path = path
	if u.RawPath != "" {
		u.RawPath = strings.TrimRight(u.RawPath, "/")
		if u.RawPath == "" {
			u.RawPath = "/"
		}
	}

	return u.String()
}

// ParseURLKey normalizes raw and rejects empty results with ErrInvalidURL.
func ParseURLKey(raw string) (string, error) {
	key := NormalizeURL(raw)
	if key == "" {
		return "", ErrInvalidURL
	}
	return key, nil
}

// hasScheme reports whether s starts with a scheme.
// "host:8080/path" is treated as schemeless because the text after the
// colon is a port number.
func hasScheme(s string) bool {
	loc := schemePrefix.FindStringIndex(s)
	if loc == nil {
		return false
	}
	rest := s[loc[1]:]
	if rest != "" && rest[0] >= '0' && rest[0] <= '9' {
		return false
	}
	return true
}

// isHTTPScheme reports whether scheme is http or https.
func isHTTPScheme(scheme string) bool {
	return scheme == "http" || scheme == "https"
}
