package log

import (
	"context"
	"log/slog"
)

// ContextKey is the type used for context keys in this package.
type ContextKey string

// LoggerContextKey is the context key under which the request logger lives.
// The HTTP layer stores a request-scoped logger here so lower layers can
// enrich it without threading a logger parameter through every call.
const LoggerContextKey ContextKey = "logger"

// FromContext extracts the request logger, falling back to slog's default.
func FromContext(ctx context.Context) *Logger {
	if logger, ok := ctx.Value(LoggerContextKey).(*Logger); ok {
		return logger
	}
	return &Logger{
		Logger:    slog.Default(),
		component: ComponentApp,
	}
}
