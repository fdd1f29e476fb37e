package logger

import (
	"log/slog"
	"os"
)

// New returns the root structured logger. Level defaults to info;
// COMPLYD_LOG_LEVEL=debug enables debug output.
func New() *slog.Logger {
	level := slog.LevelInfo
	if os.Getenv("COMPLYD_LOG_LEVEL") == "debug" {
		level = slog.LevelDebug
	}
	return slog.New(slog.NewJSONHandler(os.Stdout, &slog.HandlerOptions{Level: level}))
}
