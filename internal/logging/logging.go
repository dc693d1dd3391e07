// Package logging builds the slog loggers used by dxr-index.
//
// Configuration is controlled via environment variables:
//   - DXR_LOG_LEVEL: debug, info, warn, error (default: info)
//   - DXR_LOG_FORMAT: text, json (default: text)
//
// All logging goes to stderr; stdout is left to the command's own output.
package logging

import (
	"io"
	"log/slog"
	"os"
	"strings"
	"time"

	"github.com/lmittmann/tint"
	"golang.org/x/term"
)

const (
	EnvLevel  = "DXR_LOG_LEVEL"
	EnvFormat = "DXR_LOG_FORMAT"
)

// Config holds logging configuration.
type Config struct {
	Level  slog.Level
	Format string // "text" or "json"
	Output io.Writer
	Source string
}

// DefaultConfig returns defaults for the given source component.
func DefaultConfig(source string) Config {
	return Config{
		Level:  slog.LevelInfo,
		Format: "text",
		Output: os.Stderr,
		Source: source,
	}
}

// LoadConfig applies overrides from getenv on top of DefaultConfig.
func LoadConfig(source string, getenv func(string) string) Config {
	cfg := DefaultConfig(source)

	if level := getenv(EnvLevel); level != "" {
		cfg.Level = ParseLevel(level, cfg.Level)
	}
	if format := getenv(EnvFormat); format != "" {
		cfg.Format = strings.ToLower(format)
	}
	return cfg
}

// ParseLevel maps a level name to a slog level, returning def for unknown names.
func ParseLevel(name string, def slog.Level) slog.Level {
	switch strings.ToLower(name) {
	case "debug":
		return slog.LevelDebug
	case "info":
		return slog.LevelInfo
	case "warn", "warning":
		return slog.LevelWarn
	case "error":
		return slog.LevelError
	}
	return def
}

// New creates a logger for cfg. Text output uses tint.
func New(cfg Config) *slog.Logger {
	var handler slog.Handler
	if cfg.Format == "json" {
		handler = slog.NewJSONHandler(cfg.Output, &slog.HandlerOptions{Level: cfg.Level})
	} else {
		handler = tint.NewHandler(cfg.Output, &tint.Options{
			Level:      cfg.Level,
			TimeFormat: time.TimeOnly,
			NoColor:    !isTerminal(cfg.Output),
		})
	}
	return slog.New(handler).With("source", cfg.Source)
}

// Default returns a stderr logger configured from the process environment.
func Default(source string) *slog.Logger {
	return New(LoadConfig(source, os.Getenv))
}

// Nop returns a logger that discards all output.
func Nop() *slog.Logger {
	return slog.New(slog.NewTextHandler(io.Discard, nil))
}

// isTerminal reports whether w is a file attached to a terminal.
func isTerminal(w io.Writer) bool {
	f, ok := w.(*os.File)
	return ok && term.IsTerminal(int(f.Fd()))
}
