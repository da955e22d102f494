package app

import (
	"log/slog"
	"os"
)

// NewLogger returns a slog.Logger writing JSON when LOG_FORMAT=json and text
// otherwise. Every record carries the process name.
func NewLogger(cfg *Config, process string) *slog.Logger {
	opts := &slog.HandlerOptions{AddSource: true}
	if cfg != nil && !cfg.IsProduction() {
		opts.Level = slog.LevelDebug
	}
	var handler slog.Handler
	if cfg != nil && cfg.LogFormat == "json" {
		handler = slog.NewJSONHandler(os.Stdout, opts)
	} else {
		handler = slog.NewTextHandler(os.Stdout, opts)
	}
	logger := slog.New(handler)
	if process != "" {
		logger = logger.With(slog.String("process", process))
	}
	return logger
}
