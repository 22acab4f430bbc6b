package telemetry

import (
	"io"
	"log/slog"
	"os"
	"strings"
)

// parseLevel maps the case-insensitive level names accepted by LOG_LEVEL to
// a slog.Level, defaulting to info on anything unrecognized.
func parseLevel(level string) slog.Level {
	switch strings.ToLower(level) {
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

// NewLogger creates a structured logger writing to stdout. Format is "json"
// or "text"; level is one of: debug, info, warn, error. The returned logger
// always carries a "component" attribute identifying the cdsctfd process,
// so log aggregation can tell worker, reaper, and seed output apart when
// they share a sink.
func NewLogger(format, level string) *slog.Logger {
	return newLoggerTo(os.Stdout, format, level).With("component", "cdsctfd")
}

func newLoggerTo(w io.Writer, format, level string) *slog.Logger {
	opts := &slog.HandlerOptions{Level: parseLevel(level)}

	var handler slog.Handler
	switch strings.ToLower(format) {
	case "text":
		handler = slog.NewTextHandler(w, opts)
	default:
		handler = slog.NewJSONHandler(w, opts)
	}

	return slog.New(handler)
}
