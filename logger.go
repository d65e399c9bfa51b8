package auth

import (
	"io"
	"log/slog"
	"os"
	"strings"
	"time"

	"github.com/lmittmann/tint"
)

// NewLogger builds the process logger. Production mode emits JSON lines,
// anything else gets the colored tint handler.
func NewLogger(mode, level string) *slog.Logger {
	return newLogger(os.Stderr, mode, level)
}

func newLogger(w io.Writer, mode, level string) *slog.Logger {
	lvl := parseLevel(level)

	if strings.EqualFold(mode, "production") {
		return slog.New(slog.NewJSONHandler(w, &slog.HandlerOptions{Level: lvl}))
	}

	return slog.New(tint.NewHandler(w, &tint.Options{
		Level:      lvl,
		TimeFormat: time.Kitchen,
	}))
}

func parseLevel(level string) slog.Level {
	switch strings.ToLower(strings.TrimSpace(level)) {
	case "debug", "trace":
		return slog.LevelDebug
	case "warn", "warning":
		return slog.LevelWarn
	case "error":
		return slog.LevelError
	default:
		return slog.LevelInfo
	}
}

var defLogger Logger = NewLogger("development", "info").With("component", "auth")

func normalizeLogger(l Logger) Logger {
	if l == nil {
		return defLogger
	}
	return l
}
