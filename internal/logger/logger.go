// Package logger builds the slog loggers of a run and hands them to the
// resolver and runner through the context.
package logger

import (
	"context"
	"io"
	"log/slog"
)

type ctxKey struct{}

// New creates a text logger writing to w, at debug level when verbose.
func New(w io.Writer, verbose bool) *slog.Logger {
	level := slog.LevelInfo
	if verbose {
		level = slog.LevelDebug
	}
	return slog.New(slog.NewTextHandler(w, &slog.HandlerOptions{Level: level}))
}

// Discard returns a logger that drops every record.
func Discard() *slog.Logger {
	return slog.New(slog.DiscardHandler)
}

// IntoContext embeds log into ctx.
func IntoContext(ctx context.Context, log *slog.Logger) context.Context {
	return context.WithValue(ctx, ctxKey{}, log)
}

// FromContext extracts the logger from ctx, falling back to slog.Default.
func FromContext(ctx context.Context) *slog.Logger {
	if ctx != nil {
		if l, ok := ctx.Value(ctxKey{}).(*slog.Logger); ok {
			return l
		}
	}
	return slog.Default()
}

// Component returns the context logger with every record tagged by name.
func Component(ctx context.Context, name string) *slog.Logger {
	return FromContext(ctx).With("component", name)
}
