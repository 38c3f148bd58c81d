// Package log provides secure logging functionality with automatic sanitization
// of sensitive information, built on top of the standard slog package.
//
// # Security Features
//
// The SecureHandler sanitizes log output before it reaches the writer:
//   - HTTP headers (Authorization, Cookie, Set-Cookie, X-Api-Key)
//   - attributes whose key names a password, token, secret or credential
//   - LLM provider keys (sk-..., sk-proj-..., sk-ant-...) anywhere in a
//     message, string attribute or error text
//   - bearer tokens and credentials passed in query strings
//
// Even in verbose mode, sensitive values are masked. Site cookies from the
// configuration file and provider keys from the environment both pass
// through code that logs, and logs are often pasted into issues.
//
// # Usage
//
//	logger := log.NewSecureLogger(os.Stderr, true) // verbose=true
//	logger.Error("model request failed", "error", err) // keys in err are masked
//	slog.SetDefault(logger)
package log
