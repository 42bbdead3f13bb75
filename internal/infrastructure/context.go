package infrastructure

import (
	"context"
	"log/slog"
)

// ContextWithRunID creates a new context with a freshly generated run ID
func ContextWithRunID(ctx context.Context) context.Context {
	return WithRunID(ctx, NewRunID())
}

// EnsureRunID ensures the context has a run ID, generating one if needed.
// Report metadata derives its run id from the context, so entry points that
// build reports call this before doing anything else.
func EnsureRunID(ctx context.Context) context.Context {
	if GetRunID(ctx) == "" {
		return ContextWithRunID(ctx)
	}
	return ctx
}

// WithComponent creates a logger with a component field
func WithComponent(logger *slog.Logger, component string) *slog.Logger {
	return logger.With("component", component)
}

// WithError creates a logger with an error field
func WithError(logger *slog.Logger, err error) *slog.Logger {
	if err == nil {
		return logger
	}
	return logger.With("error", err.Error())
}

// WithFields creates a logger with multiple fields
func WithFields(logger *slog.Logger, fields map[string]interface{}) *slog.Logger {
	args := make([]any, 0, len(fields)*2)
	for k, v := range fields {
		args = append(args, k, v)
	}
	return logger.With(args...)
}
