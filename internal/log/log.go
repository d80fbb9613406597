// Package log provides the shared structured logger for the voice agent.
// It wraps log/slog: text output while developing, JSON when GO_ENV is
// "production".
package log

import (
	"io"
	"log/slog"
	"os"
	"strings"
	"sync"
)

var (
	logger *slog.Logger
	once   sync.Once
)

// Init configures the global logger. Level is one of "debug", "info",
// "warn", "error" (case-insensitive); anything else falls back to info.
// Only the first call has effect.
func Init(level string) {
	once.Do(func() {
		logger = slog.New(newHandler(parseLevel(level), os.Stdout))
		slog.SetDefault(logger)
	})
}

func parseLevel(level string) slog.Level {
	switch strings.ToLower(level) {
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

func newHandler(lvl slog.Level, w io.Writer) slog.Handler {
	opts := &slog.HandlerOptions{Level: lvl}
	if os.Getenv("GO_ENV") == "production" {
		return slog.NewJSONHandler(w, opts)
	}
	return slog.NewTextHandler(w, opts)
}

// L returns the global logger, initializing it at info level if needed.
func L() *slog.Logger {
	if logger == nil {
		Init("info")
	}
	return logger
}

// Debug logs at debug level.
func Debug(msg string, args ...any) {
	L().Debug(msg, args...)
}

// Info logs at info level.
func Info(msg string, args ...any) {
	L().Info(msg, args...)
}

// Warn logs at warn level.
func Warn(msg string, args ...any) {
	L().Warn(msg, args...)
}

// Error logs at error level.
func Error(msg string, args ...any) {
	L().Error(msg, args...)
}

// With returns a logger with the given attributes.
func With(args ...any) *slog.Logger {
	return L().With(args...)
}
