// internal/common/logger/logger_test.go
package logger

import (
	"errors"
	"testing"

	"github.com/stretchr/testify/assert"
	"go.uber.org/zap"
	"go.uber.org/zap/zapcore"
	"go.uber.org/zap/zaptest/observer"
)

func TestZapWrapper_FieldsAndScopes(t *testing.T) {
	core, logs := observer.New(zapcore.DebugLevel)
	log := NewZapAdapter(zap.New(core)).With(map[string]interface{}{"taskType": "select-comments"})

	log.Warn("triage output unparseable", map[string]interface{}{
		"ticketKey": "DOC-1",
		"cause":     errors.New("not a number"),
	})

	entries := logs.All()
	assert.Len(t, entries, 1)
	ctx := entries[0].ContextMap()
	assert.Equal(t, "select-comments", ctx["taskType"])
	assert.Equal(t, "DOC-1", ctx["ticketKey"])
	assert.Equal(t, "not a number", ctx["cause"])
	assert.Equal(t, zapcore.WarnLevel, entries[0].Level)
}

func TestZapWrapper_WithError(t *testing.T) {
	core, logs := observer.New(zapcore.InfoLevel)
	NewZapAdapter(zap.New(core)).WithError(errors.New("boom")).Error("publish failed", nil)

	assert.Equal(t, "boom", logs.All()[0].ContextMap()["error"])
}

func TestNew_LevelFallback(t *testing.T) {
	l := New(Options{Level: "nonsense", Format: "console"})
	assert.True(t, l.Core().Enabled(zapcore.InfoLevel))
	assert.False(t, l.Core().Enabled(zapcore.DebugLevel))
}
