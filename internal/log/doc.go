// Package log provides slog loggers that mask sensitive values.
//
// SecureHandler wraps any slog.Handler and masks:
//   - attributes whose key names a credential (cookie, authorization,
//     password, token, and keys containing those words)
//   - values that look like bearer or basic credentials, JWTs or private keys
//   - the password part of URLs such as http://user:pw@host/
//
// Crawled URLs, session identifiers and seed lists are left intact.
//
// # Usage
//
//	logger := log.NewSecureLogger(os.Stderr, verbose)
//	slog.SetDefault(logger)
//
// Use NewSecureJSONLogger for JSON output.
package log
