package config

import (
	"io"
	"log/slog"
	"os"
	"strings"
)

// Environment variables consulted when a flag is not given.
const (
	EnvLogLevel  = "WORKSYNC_LOG_LEVEL"
	EnvLogFormat = "WORKSYNC_LOG_FORMAT"
)

// Logging selects the slog handler and its minimum level.
type Logging struct {
	Level  string
	Format string
}

// ResolveLogging picks each value from the flag, then the environment, then
// the settings file.
func ResolveLogging(flagLevel, flagFormat string, s *Settings) Logging {
	l := Logging{Level: flagLevel, Format: flagFormat}
	if l.Level == "" {
		l.Level = os.Getenv(EnvLogLevel)
	}
	if l.Format == "" {
		l.Format = os.Getenv(EnvLogFormat)
	}
	if s != nil {
		if l.Level == "" {
			l.Level = s.LogLevel
		}
		if l.Format == "" {
			l.Format = s.LogFormat
		}
	}
	return l
}

// NewLogger builds a logger writing to w. Format "json" selects the JSON
// handler; anything else is text.
func NewLogger(cfg Logging, w io.Writer) *slog.Logger {
	opts := &slog.HandlerOptions{Level: ParseLevel(cfg.Level)}
	if strings.EqualFold(cfg.Format, "json") {
		return slog.New(slog.NewJSONHandler(w, opts))
	}
	return slog.New(slog.NewTextHandler(w, opts))
}

// ParseLevel converts a level name to slog.Level. Unknown names are warn so
// the CLI stays quiet by default.
func ParseLevel(s string) slog.Level {
	switch strings.ToLower(strings.TrimSpace(s)) {
	case "debug":
		return slog.LevelDebug
	case "info":
		return slog.LevelInfo
	case "error":
		return slog.LevelError
	default:
		return slog.LevelWarn
	}
}
