// Package logger constructs the server's process-wide logger.
package logger

import (
	"log/slog"

	"github.com/openscribe/scribe/pkg/logging"
)

// New returns the server logger. Format and level come from LOG_FORMAT and
// LOG_LEVEL; see pkg/logging.
func New() *slog.Logger {
	return logging.New("scribe-server")
}
