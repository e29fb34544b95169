// Package logging configures the process-wide structured logger.
package logging

import (
	"log/slog"
	"os"
)

// New builds a slog.Logger: JSON output by default, or a human-readable
// text handler under pretty (the CLI's --pretty flag).
func New(level string, pretty bool) *slog.Logger {
	var lvl slog.Level
	if err := lvl.UnmarshalText([]byte(level)); err != nil {
		lvl = slog.LevelInfo
	}

	opts := &slog.HandlerOptions{Level: lvl}

	var handler slog.Handler
	if pretty {
		handler = slog.NewTextHandler(os.Stderr, opts)
	} else {
		handler = slog.NewJSONHandler(os.Stderr, opts)
	}
	return slog.New(handler)
}
