// Package logger builds the evaluator's slog logger: JSON or text output,
// a level from config, and service identity on every record.
package logger

import (
	"io"
	"log/slog"
	"os"
	"slices"

	"github.com/rafaeljc/heimdall-evaluator/internal/config"
)

// redactedKeys never reach the output with their value.
var redactedKeys = []string{"api_key", "authorization", "password", "x-api-key"}

// New builds a logger writing to stdout.
func New(cfg *config.AppConfig) *slog.Logger {
	return NewWithWriter(cfg, os.Stdout)
}

// NewWithWriter builds a logger writing to w. Source locations are only added
// outside production. Unknown formats fall back to JSON.
func NewWithWriter(cfg *config.AppConfig, w io.Writer) *slog.Logger {
	if cfg == nil {
		panic("logger: config cannot be nil")
	}

	opts := &slog.HandlerOptions{
		Level:       parseLevel(cfg.LogLevel),
		AddSource:   cfg.Environment != config.EnvironmentProduction,
		ReplaceAttr: redact,
	}

	var handler slog.Handler
	if cfg.LogFormat == "text" {
		handler = slog.NewTextHandler(w, opts)
	} else {
		handler = slog.NewJSONHandler(w, opts)
	}

	return slog.New(handler).With(
		slog.String("service", cfg.Name),
		slog.String("version", cfg.Version),
		slog.String("env", cfg.Environment),
	)
}

// WithComponent tags every record with the emitting component
// (engine, syncer, httpapi, ...).
func WithComponent(l *slog.Logger, component string) *slog.Logger {
	if l == nil {
		l = slog.Default()
	}
	return l.With(slog.String("component", component))
}

// parseLevel accepts any case; anything unparsable is INFO.
func parseLevel(s string) slog.Level {
	var level slog.Level
	if err := level.UnmarshalText([]byte(s)); err != nil {
		return slog.LevelInfo
	}
	return level
}

func redact(_ []string, a slog.Attr) slog.Attr {
	if slices.Contains(redactedKeys, a.Key) {
		return slog.String(a.Key, "[REDACTED]")
	}
	return a
}
