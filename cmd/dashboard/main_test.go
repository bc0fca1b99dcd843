package main

import (
	"bytes"
	"context"
	"log/slog"
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestSetupLoggerLevelAndFormat(t *testing.T) {
	var buf bytes.Buffer
	logger := setupLogger("warn", &buf)

	logger.Info("hidden")
	logger.Warn("visible", "key", "value")

	out := buf.String()
	assert.NotContains(t, out, "hidden")
	assert.Contains(t, out, "msg=visible key=value")
	assert.Regexp(t, `time="\d{4}-\d{2}-\d{2} \d{2}:\d{2}:\d{2}"`, out)

	assert.True(t, setupLogger("bogus", &buf).Enabled(context.Background(), slog.LevelInfo))
	assert.False(t, setupLogger("ERROR", &buf).Enabled(context.Background(), slog.LevelWarn))
}
