package config

import (
	"log/slog"
	"strings"
)

// LogLevel is the value of log_level.
type LogLevel string

const (
	LogLevelDebug LogLevel = "debug"
	LogLevelInfo  LogLevel = "info"
	LogLevelWarn  LogLevel = "warn"
	LogLevelError LogLevel = "error"
)

var slogLevels = map[LogLevel]slog.Level{
	LogLevelDebug: slog.LevelDebug,
	LogLevelInfo:  slog.LevelInfo,
	LogLevelWarn:  slog.LevelWarn,
	LogLevelError: slog.LevelError,
}

// NormalizeLogLevel maps log_level to a LogLevel. Anything unrecognised is info.
func NormalizeLogLevel(raw string) LogLevel {
	l := LogLevel(strings.ToLower(strings.TrimSpace(raw)))
	if l == "warning" {
		return LogLevelWarn
	}
	if _, ok := slogLevels[l]; ok {
		return l
	}
	return LogLevelInfo
}

func (l LogLevel) SlogLevel() slog.Level {
	return slogLevels[NormalizeLogLevel(string(l))]
}
