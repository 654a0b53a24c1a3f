package api

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"go.uber.org/zap"
	"go.uber.org/zap/zapcore"
	"go.uber.org/zap/zaptest/observer"
)

func TestParseLogLevel(t *testing.T) {
	assert.Equal(t, LogDebug, ParseLogLevel("DEBUG"))
	assert.Equal(t, LogWarn, ParseLogLevel("warning"))
	assert.Equal(t, LogError, ParseLogLevel(" error "))
	assert.Equal(t, LogInfo, ParseLogLevel("verbose"))
	assert.Equal(t, "WARN", LogWarn.String())
}

func TestZapLogger_Levels(t *testing.T) {
	core, logs := observer.New(zapcore.DebugLevel)
	logger := NewZapLoggerFrom(zap.New(core), LogInfo)

	logger.Debug("hidden %d", 1)
	logger.Info("count %s = %d", "Products", 5)
	logger.Warn("slow")
	logger.Error("failed: %v", assert.AnError)

	entries := logs.All()
	if assert.Len(t, entries, 3) {
		assert.Equal(t, "count Products = 5", entries[0].Message)
		assert.Equal(t, zapcore.InfoLevel, entries[0].Level)
		assert.Equal(t, zapcore.WarnLevel, entries[1].Level)
		assert.Contains(t, entries[2].Message, assert.AnError.Error())
	}

	logger.SetLevel(LogDebug)
	assert.Equal(t, LogDebug, logger.GetLevel())
	logger.Debug("visible")
	assert.Equal(t, 1, logs.FilterMessage("visible").Len())

	logger.SetLevel(LogError)
	logger.Warn("dropped")
	assert.Equal(t, 0, logs.FilterMessage("dropped").Len())
}

func TestNewZapLogger(t *testing.T) {
	for _, format := range []string{"json", "console"} {
		logger, err := NewZapLogger(LogWarn, format)
		assert.NoError(t, err)
		assert.Equal(t, LogWarn, logger.GetLevel())
		assert.NotNil(t, logger.Zap())
	}
}

func TestNoOpLogger(t *testing.T) {
	var logger Logger = NewNoOpLogger()
	logger.Info("nothing")
	logger.SetLevel(LogDebug)
	assert.Equal(t, LogInfo, logger.GetLevel())
}

func TestFormatLogger(t *testing.T) {
	core, logs := observer.New(zapcore.DebugLevel)
	logger := NewFormatLogger(NewZapLoggerFrom(zap.New(core), LogDebug), "[badger] ")

	logger.Errorf("open %s failed\n", "MANIFEST")
	logger.Warningf("slow write")
	logger.Infof("compaction done\n")

	entries := logs.All()
	if assert.Len(t, entries, 3) {
		assert.Equal(t, "[badger] open MANIFEST failed", entries[0].Message)
		assert.Equal(t, zapcore.ErrorLevel, entries[0].Level)
		assert.Equal(t, zapcore.WarnLevel, entries[1].Level)
		assert.Equal(t, zapcore.DebugLevel, entries[2].Level)
	}

	NewFormatLogger(nil, "").Errorf("discarded")
}
