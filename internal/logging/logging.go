// Package logging configures the structured logger shared by every
// pipeline stage, defaulting to a tinted, human-readable handler and
// switching to a JSON handler when PIPELINE_LOG_FORMAT=json, with every
// logger tagged with its owning stage so log lines can be correlated
// back to a component without parsing the message text.
package logging

import (
	"log/slog"
	"os"
	"strings"

	"github.com/lmittmann/tint"
)

// New returns a *slog.Logger for the given pipeline stage name (e.g.
// "gateway", "normalizer"), at the given level ("debug", "info", "warn",
// "error"). When PIPELINE_LOG_FORMAT=json is set, logs are emitted as
// plain slog JSON for ingestion by a log aggregator; otherwise they are
// emitted via tint for readability.
func New(stage, level string) *slog.Logger {
	lvl := parseLevel(level)

	var handler slog.Handler
	if strings.EqualFold(os.Getenv("PIPELINE_LOG_FORMAT"), "json") {
		handler = slog.NewJSONHandler(os.Stdout, &slog.HandlerOptions{Level: lvl})
	} else {
		handler = tint.NewHandler(os.Stdout, &tint.Options{Level: lvl})
	}

	return slog.New(handler).With("stage", stage)
}

func parseLevel(level string) slog.Level {
	switch strings.ToLower(level) {
	case "debug":
		return slog.LevelDebug
	case "warn", "warning":
		return slog.LevelWarn
	case "error":
		return slog.LevelError
	default:
		return slog.LevelInfo
	}
}
