// Package logging provides structured logging with secret redaction.
//
// # Overview
//
// The logging package wraps Go's standard log/slog package to provide:
//   - Structured logging with JSON, text, and console formats
//   - Automatic redaction of signing keys, tokens, and passwords
//   - Context-aware logging with request IDs and bundle/instance metadata
//   - Synchronous writes to the configured writer
//   - Configurable log levels (debug, info, warn, error)
//
// # Usage
//
//	// Create a logger
//	logger, err := logging.New(logging.Config{
//	    Level:         "info",
//	    Format:        "json",
//	    RedactSecrets: true,
//	})
//
//	// Log structured data
//	logger.Info("bundle pushed",
//	    "request_id", "req-123",
//	    "token", "gho_abc123",  // Automatically redacted
//	    "duration_ms", 1234,
//	)
//
//	// Create context-aware logger
//	ctx := logging.WithBundle(ctx, "checkout-policy")
//	ctxLogger := logger.WithContext(ctx)
//	ctxLogger.Info("compiling")  // Includes bundle automatically
//
// # Secret Redaction
//
// Credential material is automatically redacted from log fields when
// RedactSecrets is enabled:
//
//   - Signing keys: signing_key=dGhpcy... → signing_key=***
//   - Bearer tokens: Bearer abc123xyz → Bearer ***
//   - Basic auth headers: Basic dXNlcjpwYXNz → Basic ***
//   - Password/token fields: password=hunter2 → password: ***
//
// # Performance
//
// A call below the configured level returns before any redaction or
// formatting. An enabled call is formatted and written to the writer on the
// calling goroutine; LogBuffer's entry queue carries no output, so no entry
// is ever dropped and DroppedCount reports zero.
package logging
