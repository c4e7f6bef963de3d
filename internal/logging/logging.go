package logging

import (
	"io"
	"log/slog"
	"strings"
	"time"

	"github.com/lmittmann/tint"
)

// Options select the handler and level.
type Options struct {
	Level   slog.Level
	AppEnv  string // "dev" selects the colour handler
	Version string
}

// New builds the process logger: tint in dev, JSON otherwise.
func New(w io.Writer, opts Options, appName string) *slog.Logger {
	if opts.AppEnv == "dev" {
		h := tint.NewHandler(w, &tint.Options{
			Level:      opts.Level,
			AddSource:  true,
			TimeFormat: time.Kitchen,
		})
		return slog.New(h).With("app", appName)
	}

	h := slog.NewJSONHandler(w, &slog.HandlerOptions{
		Level: opts.Level,
	})
	return slog.New(h).With(
		"app", appName,
		"version", opts.Version,
		"env", opts.AppEnv,
	)
}

// ParseLevel maps debug|info|warn|error to a level, falling back to def.
func ParseLevel(s string, def slog.Level) slog.Level {
	switch strings.ToLower(strings.TrimSpace(s)) {
	case "debug":
		return slog.LevelDebug
	case "info":
		return slog.LevelInfo
	case "warn", "warning":
		return slog.LevelWarn
	case "error":
		return slog.LevelError
	default:
		return def
	}
}
