package logger

import (
	"errors"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"
	"go.uber.org/zap/zapcore"
	"go.uber.org/zap/zaptest/observer"
)

func TestParseLevel(t *testing.T) {
	assert.Equal(t, zapcore.DebugLevel, ParseLevel("DEBUG"))
	assert.Equal(t, zapcore.WarnLevel, ParseLevel("warning"))
	assert.Equal(t, zapcore.ErrorLevel, ParseLevel("error"))
	assert.Equal(t, zapcore.InfoLevel, ParseLevel(""))
	assert.Equal(t, zapcore.InfoLevel, ParseLevel("verbose"))
}

func TestNew(t *testing.T) {
	l, err := New("debug", "json")
	require.NoError(t, err)
	assert.True(t, l.Core().Enabled(zapcore.DebugLevel))

	l, err = New("error", "console")
	require.NoError(t, err)
	assert.False(t, l.Core().Enabled(zapcore.WarnLevel))
}

func TestWrapperFields(t *testing.T) {
	core, logs := observer.New(zapcore.DebugLevel)
	log := NewZapAdapter(zap.New(core))

	log.With(map[string]interface{}{"runId": uint64(7)}).
		WithError(errors.New("boom")).
		Warn("collaborator failed", map[string]interface{}{"call": "generate"})
	log.Debug("stage entered", nil)

	entries := logs.All()
	require.Len(t, entries, 2)
	assert.Equal(t, "collaborator failed", entries[0].Message)
	fields := entries[0].ContextMap()
	assert.Equal(t, uint64(7), fields["runId"])
	assert.Equal(t, "generate", fields["call"])
	assert.Equal(t, "boom", fields["error"])
	assert.Equal(t, zapcore.DebugLevel, entries[1].Level)
}

func TestNoOpAndTestLoggers(t *testing.T) {
	NewNoOpLogger().Error("ignored", map[string]interface{}{"k": "v"})
	NewTestLogger(t).Info("visible in -v output", nil)
	NewStructured("info", "console").Info("structured", nil)
}
