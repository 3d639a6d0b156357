package main

import (
	"fmt"
	"io"
	"log/slog"
	"strings"
)

// LogLevel represents the available logging levels
type LogLevel string

const (
	LogLevelError LogLevel = "error"
	LogLevelWarn  LogLevel = "warn"
	LogLevelInfo  LogLevel = "info"
	LogLevelDebug LogLevel = "debug"
)

var slogLevels = map[LogLevel]slog.Level{
	LogLevelError: slog.LevelError,
	LogLevelWarn:  slog.LevelWarn,
	LogLevelInfo:  slog.LevelInfo,
	LogLevelDebug: slog.LevelDebug,
}

// parseLogLevel converts a config or flag value to a LogLevel
func parseLogLevel(level string) (LogLevel, error) {
	l := strings.ToLower(strings.TrimSpace(level))
	if l == "warning" {
		l = string(LogLevelWarn)
	}
	if _, ok := slogLevels[LogLevel(l)]; !ok {
		return "", fmt.Errorf("invalid log level: %s (must be error, warn, info, or debug)", level)
	}
	return LogLevel(l), nil
}

// setupLogger returns the text logger every component receives.
// Unknown levels fall back to info.
func setupLogger(level LogLevel, w io.Writer) *slog.Logger {
	slogLevel, ok := slogLevels[level]
	if !ok {
		slogLevel = slog.LevelInfo
	}
	handler := slog.NewTextHandler(w, &slog.HandlerOptions{Level: slogLevel})
	return slog.New(handler)
}
