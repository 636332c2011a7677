// Package logger builds the diagnostic logger for streamfmt.
//
// Diagnostics never share a stream with the transcript: they go to stderr or
// to a log file. Levels follow the trace/debug/info/warn/error scale, with
// invalid names falling back to info. Colored output is only used when the
// sink is a terminal.
package logger

import (
	"io"
	"log/slog"
	"os"
	"strings"
	"time"

	"github.com/google/uuid"
	"github.com/lmittmann/tint"
	"github.com/mattn/go-colorable"
	"github.com/mattn/go-isatty"
)

// LevelTrace is below slog's debug level.
const LevelTrace = slog.LevelDebug - 4

// normalizeLogLevel converts a log level string to lowercase and validates it.
// Returns "info" as default for empty or invalid levels.
func normalizeLogLevel(level string) string {
	normalized := strings.ToLower(strings.TrimSpace(level))

	validLevels := map[string]bool{
		"trace": true,
		"debug": true,
		"info":  true,
		"warn":  true,
		"error": true,
	}

	if validLevels[normalized] {
		return normalized
	}

	return "info"
}

// ParseLevel maps a level name to its slog level.
func ParseLevel(level string) slog.Level {
	switch normalizeLogLevel(level) {
	case "trace":
		return LevelTrace
	case "debug":
		return slog.LevelDebug
	case "warn":
		return slog.LevelWarn
	case "error":
		return slog.LevelError
	default:
		return slog.LevelInfo
	}
}

// IsTerminal reports whether w is a terminal file.
func IsTerminal(w io.Writer) bool {
	f, ok := w.(*os.File)
	if !ok || f == nil {
		return false
	}
	return isatty.IsTerminal(f.Fd()) || isatty.IsCygwinTerminal(f.Fd())
}

// New creates a logger writing to w at the given level. Every record carries
// the run id.
func New(w io.Writer, level string, runID string) *slog.Logger {
	color := IsTerminal(w)
	if f, ok := w.(*os.File); ok && color {
		w = colorable.NewColorable(f)
	}

	h := tint.NewHandler(w, &tint.Options{
		Level:      ParseLevel(level),
		TimeFormat: time.TimeOnly,
		NoColor:    !color,
		ReplaceAttr: func(groups []string, a slog.Attr) slog.Attr {
			if a.Key == slog.LevelKey && len(groups) == 0 {
				if lvl, ok := a.Value.Any().(slog.Level); ok && lvl <= LevelTrace {
					return slog.String(slog.LevelKey, "TRC")
				}
			}
			return a
		},
	})
	return slog.New(h).With("run", runID)
}

// NewRunID returns a fresh identifier for one streamfmt invocation.
func NewRunID() string {
	return uuid.NewString()
}
