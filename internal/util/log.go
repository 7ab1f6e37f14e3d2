// Package util provides shared helpers for logging, retries, rate limiting,
// and the KRX trading calendar.
package util

import (
	"log/slog"
	"os"
	"strings"
)

// NewLogger builds the slog logger the CLIs install as default. level is one
// of "debug", "info", "warn", "error"; format is "json" or "text". Anything
// unrecognised falls back to info/text, matching the config defaults.
func NewLogger(level, format string) *slog.Logger {
	var slevel slog.Level
	switch strings.ToLower(level) {
	case "debug":
		slevel = slog.LevelDebug
	case "warn":
		slevel = slog.LevelWarn
	case "error":
		slevel = slog.LevelError
	default:
		slevel = slog.LevelInfo
	}

	opts := &slog.HandlerOptions{Level: slevel}
	if strings.ToLower(format) == "json" {
		return slog.New(slog.NewJSONHandler(os.Stdout, opts))
	}
	return slog.New(slog.NewTextHandler(os.Stdout, opts))
}
