// Package logging builds the slog.Logger shared by scribe binaries.
//
// Two environment variables shape the output:
//
//	LOG_FORMAT  json (default) or text
//	LOG_LEVEL   debug, info (default), warn, error
//
// Every record carries an "app" attribute so aggregated logs from the
// server and its sidecars stay distinguishable.
package logging

import (
	"log/slog"
	"os"
	"strings"
)

// New returns a logger for the named application, configured from the
// environment.
func New(app string) *slog.Logger {
	opts := &slog.HandlerOptions{Level: parseLevel(os.Getenv("LOG_LEVEL"))}

	var h slog.Handler
	if strings.EqualFold(os.Getenv("LOG_FORMAT"), "text") {
		h = slog.NewTextHandler(os.Stdout, opts)
	} else {
		h = slog.NewJSONHandler(os.Stdout, opts)
	}
	return slog.New(h).With("app", app)
}

func parseLevel(s string) slog.Level {
	var l slog.Level
	if err := l.UnmarshalText([]byte(s)); err != nil {
		return slog.LevelInfo
	}
	return l
}
