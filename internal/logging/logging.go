package logging

import (
	"io"
	"log/slog"
	"os"
	"strings"
)

// #region init
// Init configures the process-wide slog default. Format is "text" or "json";
// when w is nil, os.Stderr is used.
func Init(level slog.Level, format string, w io.Writer) {
	if w == nil {
		w = os.Stderr
	}
	opts := &slog.HandlerOptions{Level: level}

	var handler slog.Handler
	switch format {
	case "json":
		handler = slog.NewJSONHandler(w, opts)
	default:
		handler = slog.NewTextHandler(w, opts)
	}
	slog.SetDefault(slog.New(handler))
}

// #endregion init

// #region component-logger
// New returns a logger tagged with the owning component.
func New(component string) *slog.Logger {
	return slog.Default().With(slog.String("component", component))
}

// #endregion component-logger

// #region level
// ParseLevel maps LOG_LEVEL style strings to slog levels. Unknown values yield Info.
func ParseLevel(s string) slog.Level {
	switch strings.ToLower(strings.TrimSpace(s)) {
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

// #endregion level
