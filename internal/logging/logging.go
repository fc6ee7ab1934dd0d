// Package logging provides structured logging setup for the matching service.
package logging

import (
	"fmt"
	"io"
	"log/slog"
	"os"
	"strings"
)

// ParseLevel maps a config level name to a slog level. An empty name is
// info.
func ParseLevel(name string) (slog.Level, error) {
	switch strings.ToLower(strings.TrimSpace(name)) {
	case "debug":
		return slog.LevelDebug, nil
	case "", "info":
		return slog.LevelInfo, nil
	case "warn", "warning":
		return slog.LevelWarn, nil
	case "error":
		return slog.LevelError, nil
	default:
		return 0, fmt.Errorf("unknown log level %q", name)
	}
}

// New builds a logger writing to w.
// Dev mode uses human-readable text; prod uses JSON.
func New(w io.Writer, level slog.Level, devMode bool) *slog.Logger {
	opts := &slog.HandlerOptions{Level: level}
	if devMode {
		return slog.New(slog.NewTextHandler(w, opts))
	}
	return slog.New(slog.NewJSONHandler(w, opts))
}

// Setup initializes the default slog logger on stderr. Dev mode logs at
// debug unless a level is given.
func Setup(level string, devMode bool) error {
	if devMode && level == "" {
		level = "debug"
	}
	lvl, err := ParseLevel(level)
	if err != nil {
		return err
	}
	slog.SetDefault(New(os.Stderr, lvl, devMode))
	return nil
}
