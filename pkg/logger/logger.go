package logger

import (
	"io"
	"log/slog"
)

// Component scopes base to a named component. A nil base yields a logger
// that discards everything.
func Component(base *slog.Logger, component string) *slog.Logger {
	if base == nil {
		base = Discard()
	}
	return base.With("component", component)
}

// Discard returns a logger that drops all records.
func Discard() *slog.Logger {
	return slog.New(slog.NewTextHandler(io.Discard, nil))
}
