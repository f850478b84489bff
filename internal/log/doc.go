// Package log provides slog loggers that mask sensitive information.
//
// Site profiles carry cookies and extra request headers, and the URLs
// gallerywatch browses may hold session tokens in their query string.
// SecureHandler wraps any slog.Handler and masks:
//   - attributes whose key names a cookie, header map, token or session
//   - values that look like bearer tokens, JWTs or private keys
//   - session and token query parameters inside URLs, messages and errors
//
// Masking also applies in verbose mode.
//
// # Usage
//
//	logger := log.NewSecureLogger(os.Stderr, verbose)
//	slog.SetDefault(logger)
//
//	logger.Debug("profile loaded",
//	    "cookie", "age_verified=1",          // masked
//	    "url", "https://example.com/?sid=1", // becomes ?sid=***REDACTED***
//	)
package log
