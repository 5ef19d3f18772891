package logging

import (
	"io"
	"log/slog"
	"os"
)

// SetupJSON sets slog's default logger to use JSON output at the given level.
func SetupJSON(level slog.Level) {
	slog.SetDefault(NewJSON(os.Stdout, level))
}

// NewJSON builds a JSON logger writing to w.
func NewJSON(w io.Writer, level slog.Level) *slog.Logger {
	return slog.New(slog.NewJSONHandler(w, &slog.HandlerOptions{Level: level}))
}

// Component returns the default logger tagged with a component name.
// It resolves slog.Default at call time, so call it after SetupJSON.
func Component(name string) *slog.Logger {
	return slog.Default().With("component", name)
}

// Err is the attribute every error log line uses.
func Err(err error) slog.Attr {
	return slog.Any("error", err)
}
