package logging_test

import (
	"context"
	"log/slog"
	"testing"

	"github.com/stretchr/testify/assert"

	"github.com/openscribe/scribe/pkg/logging"
)

func TestNew_LevelFromEnvironment(t *testing.T) {
	t.Setenv("LOG_LEVEL", "debug")
	log := logging.New("scribe-test")
	assert.True(t, log.Enabled(context.Background(), slog.LevelDebug))

	t.Setenv("LOG_LEVEL", "warn")
	log = logging.New("scribe-test")
	assert.False(t, log.Enabled(context.Background(), slog.LevelInfo))
	assert.True(t, log.Enabled(context.Background(), slog.LevelWarn))
}

func TestNew_UnknownLevelDefaultsToInfo(t *testing.T) {
	t.Setenv("LOG_LEVEL", "verbose")
	log := logging.New("scribe-test")
	assert.False(t, log.Enabled(context.Background(), slog.LevelDebug))
	assert.True(t, log.Enabled(context.Background(), slog.LevelInfo))
}
