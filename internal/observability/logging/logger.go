// Package logging provides the application's structured logging: a console
// JSON logger built on log/slog, and a persisting handler that mirrors every
// record into the telemetry datastore.
package logging

import (
	"context"
	"log/slog"
	"os"

	"devto-news/pkg/requestid"
)

// ParseLevel maps a LOG_LEVEL string to a slog.Level. Unknown values fall
// back to info.
func ParseLevel(s string) slog.Level {
	switch s {
	case "debug":
		return slog.LevelDebug
	case "warn":
		return slog.LevelWarn
	case "error":
		return slog.LevelError
	default:
		return slog.LevelInfo
	}
}

// NewConsoleLogger creates a structured logger with JSON output on stdout.
// Source locations are added for warn and error output.
func NewConsoleLogger(level slog.Level) *slog.Logger {
	return slog.New(NewConsoleHandler(level))
}

// NewConsoleHandler returns the stdout JSON handler used as the inner handler
// of the persisting StoreHandler.
func NewConsoleHandler(level slog.Level) slog.Handler {
	return slog.NewJSONHandler(os.Stdout, &slog.HandlerOptions{
		Level:     level,
		AddSource: level <= slog.LevelWarn,
	})
}

// WithRequestID returns a logger that includes the request ID from the
// context, enabling correlation across log entries of one request.
func WithRequestID(ctx context.Context, logger *slog.Logger) *slog.Logger {
	reqID := requestid.FromContext(ctx)
	if reqID == "" {
		return logger
	}
	return logger.With("request_id", reqID)
}
