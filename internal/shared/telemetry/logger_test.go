package telemetry

import (
	"errors"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"
	"go.uber.org/zap/zapcore"
	"go.uber.org/zap/zaptest/observer"
)

func TestInfoWritesFields(t *testing.T) {
	core, logs := observer.New(zapcore.DebugLevel)
	prev := SetLogger(zap.New(core))
	t.Cleanup(func() { SetLogger(prev) })

	Info("webhook.applied", map[string]any{
		"session_id": "S1",
		"attempt":    2,
	})
	Error("webhook.failed", map[string]any{"error": errors.New("boom")})

	entries := logs.All()
	require.Len(t, entries, 2)
	assert.Equal(t, "webhook.applied", entries[0].Message)
	assert.Equal(t, "S1", entries[0].ContextMap()["session_id"])
	assert.EqualValues(t, 2, entries[0].ContextMap()["attempt"])

	assert.Equal(t, zapcore.ErrorLevel, entries[1].Level)
	assert.Equal(t, "boom", entries[1].ContextMap()["error"])
}

func TestSetLoggerNilFallsBackToNop(t *testing.T) {
	prev := SetLogger(nil)
	t.Cleanup(func() { SetLogger(prev) })

	assert.NotPanics(t, func() {
		Warn("noop", nil)
	})
}

func TestNewHonorsLevel(t *testing.T) {
	l := New("warn", "json")
	assert.False(t, l.Core().Enabled(zapcore.InfoLevel))
	assert.True(t, l.Core().Enabled(zapcore.WarnLevel))
}
