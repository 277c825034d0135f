package app

import (
	"log/slog"
	"os"
)

// NewLogger returns the service logger, tagged so worker and API lines
// interleave cleanly in shared aggregation. JSON output is opt-in via
// LOG_FORMAT; everything else gets the readable text handler.
func NewLogger(cfg *Config) *slog.Logger {
	opts := &slog.HandlerOptions{AddSource: true}
	var handler slog.Handler
	if cfg != nil && cfg.LogFormat == "json" {
		handler = slog.NewJSONHandler(os.Stdout, opts)
	} else {
		handler = slog.NewTextHandler(os.Stdout, opts)
	}
	return slog.New(handler).With(slog.String("service", "tawthiq"))
}
