// Package logger builds the process-wide structured logger. Handlers and
// services receive it by injection; nothing logs through the slog default.
package logger

import (
	"log/slog"
	"os"
)

// New returns a structured JSON logger using slog. The level comes from
// CUSTODIA_LOG_LEVEL (debug, info, warn, error), defaulting to info.
func New() *slog.Logger {
	opts := &slog.HandlerOptions{
		Level: levelFromEnv(),
	}
	handler := slog.NewJSONHandler(os.Stdout, opts)
	return slog.New(handler)
}

func levelFromEnv() slog.Level {
	switch os.Getenv("CUSTODIA_LOG_LEVEL") {
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
