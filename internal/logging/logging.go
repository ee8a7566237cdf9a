package logging

import (
	"io"
	"log/slog"
	"os"
	"strings"
)

// Settings is the subset of configuration the logger needs.
type Settings interface {
	GetLogFormat() string
	GetLogLevel() string
	GetAppEnv() string
}

// New builds the process logger from cfg, writes to stdout and sets it as
// the default. LOG_FORMAT "json" selects JSON output; anything else is text
// with source locations for development.
func New(cfg Settings) *slog.Logger {
	return NewWithWriter(cfg, os.Stdout)
}

// NewWithWriter is New with an explicit destination.
func NewWithWriter(cfg Settings, w io.Writer) *slog.Logger {
	level := ParseLevel(cfg.GetLogLevel())

	var handler slog.Handler
	switch strings.ToLower(cfg.GetLogFormat()) {
	case "json":
		handler = slog.NewJSONHandler(w, &slog.HandlerOptions{
			Level: level,
		})
	default:
		handler = slog.NewTextHandler(w, &slog.HandlerOptions{
			Level:     level,
			AddSource: true,
		})
	}

	logger := slog.New(handler).With("service", "signin", "environment", cfg.GetAppEnv())
	slog.SetDefault(logger)
	return logger
}

// ParseLevel maps a LOG_LEVEL value to a slog level, defaulting to info.
func ParseLevel(v string) slog.Level {
	switch strings.ToLower(strings.TrimSpace(v)) {
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
