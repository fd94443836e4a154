package logging

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"
	"go.uber.org/zap/zapcore"
	"go.uber.org/zap/zaptest/observer"
)

func TestLoggerCarriesComponentAndFields(t *testing.T) {
	core, logs := observer.New(zapcore.DebugLevel)
	logger := FromZap(zap.New(core), "PassportProcessor").With("job_id", "job-1")

	logger.Info("Step 1: Loading file", "declared_size", 42)
	logger.Warn("Download attempt failed", "attempt", 2)
	logger.Debug("Processing timeout set")
	logger.Error("Failed to store result")

	entries := logs.All()
	require.Len(t, entries, 4)

	first := entries[0]
	assert.Equal(t, "PassportProcessor", first.LoggerName)
	assert.Equal(t, zapcore.InfoLevel, first.Level)
	assert.Equal(t, "job-1", first.ContextMap()["job_id"])
	assert.EqualValues(t, 42, first.ContextMap()["declared_size"])

	assert.Equal(t, zapcore.WarnLevel, entries[1].Level)
	assert.Equal(t, zapcore.DebugLevel, entries[2].Level)
	assert.Equal(t, zapcore.ErrorLevel, entries[3].Level)
}

func TestGetBeforeInitIsNoop(t *testing.T) {
	if base != nil {
		t.Skip("logger already initialized in this process")
	}
	assert.NotNil(t, Get())
	assert.NoError(t, Sync())
}
