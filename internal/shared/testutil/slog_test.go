package testutil

import (
	"log/slog"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestBufferedSlogHandlerCaptures(t *testing.T) {
	logger, handler := NewTestLogger(t)

	logger.Debug("debug msg")
	logger.Info("dataset loaded", slog.Int("records", 3))
	logger.Error("fetch failed")

	records := handler.Records()
	require.Len(t, records, 3)
	assert.Equal(t, slog.LevelDebug, records[0].Level)

	r := AssertLogContains(t, handler, slog.LevelInfo, "loaded")
	assert.Equal(t, int64(3), r.Attrs["records"])

	_, ok := handler.Find(slog.LevelWarn, "fetch failed")
	assert.False(t, ok)
}

func TestBufferedSlogHandlerWithAttrs(t *testing.T) {
	logger, handler := NewTestLogger(t)
	component := logger.With(slog.String("component", "cache"))

	component.Info("hit")
	logger.Info("plain")

	records := handler.Records()
	require.Len(t, records, 2)
	assert.Equal(t, "cache", records[0].Attrs["component"])
	assert.NotContains(t, records[1].Attrs, "component")
	AssertNoErrors(t, handler)
}
