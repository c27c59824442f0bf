package config

import (
	"log/slog"
	"os"
)

// NewLogger builds the process-wide logger. Production emits JSON at
// info level for log shipping; any other environment gets a debug text
// handler with source locations.
func NewLogger(env string) *slog.Logger {
	if env == "production" {
		return slog.New(slog.NewJSONHandler(os.Stdout, &slog.HandlerOptions{
			Level: slog.LevelInfo,
		}))
	}

	return slog.New(slog.NewTextHandler(os.Stdout, &slog.HandlerOptions{
		Level:     slog.LevelDebug,
		AddSource: true,
	}))
}
