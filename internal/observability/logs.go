package observability

import (
	"log/slog"
	"os"
)

// NewLogger returns the JSON logger used for structured turn events.
// Callers must only log derived flags and identifiers, never raw
// patient text.
func NewLogger() *slog.Logger {
	handler := slog.NewJSONHandler(os.Stdout, &slog.HandlerOptions{
		Level: slog.LevelInfo,
	})
	return slog.New(handler).With("logger", "triage")
}
