// Package logging builds the diagnostics logger used for internal failures
// (sink errors, retention runs, HTTP errors). It is separate from the
// channel loggers that write log records.
package logging

import (
	"fmt"
	"io"
	"log/slog"
	"os"
	"path/filepath"
	"strings"
)

// New returns a slog.Logger writing to w. format is "json" or "text".
func New(w io.Writer, format string, level slog.Level) *slog.Logger {
	opts := &slog.HandlerOptions{Level: level}

	var h slog.Handler
	if strings.EqualFold(format, "json") {
		h = slog.NewJSONHandler(w, opts)
	} else {
		h = slog.NewTextHandler(w, opts)
	}
	return slog.New(h).With("service", "chanlog")
}

// Open returns a writer for diagnostics. An empty path means fallback; any
// other path is created (with parent directories) and appended to.
func Open(path string, fallback io.Writer) (io.Writer, func(), error) {
	if path == "" {
		return fallback, func() {}, nil
	}
	if err := os.MkdirAll(filepath.Dir(path), 0o755); err != nil {
		return fallback, func() {}, fmt.Errorf("creating log directory: %w", err)
	}
	f, err := os.OpenFile(path, os.O_APPEND|os.O_CREATE|os.O_WRONLY, 0o644)
	if err != nil {
		return fallback, func() {}, fmt.Errorf("opening diagnostics log: %w", err)
	}
	return f, func() { _ = f.Close() }, nil
}

// ParseLevel maps debug|info|warn|error to a slog level. Unknown values
// yield info.
func ParseLevel(s string) slog.Level {
	switch strings.ToLower(s) {
	case "debug":
		return slog.LevelDebug
	case "warn", "warning":
		return slog.LevelWarn
	case "error":
		return slog.LevelError
	default:
		return slog.LevelInfo
	}
}
