package main

import (
	"bytes"
	"log"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"
	"go.uber.org/zap/zapcore"
	"go.uber.org/zap/zaptest/observer"
)

func TestNewLogger(t *testing.T) {
	var buf bytes.Buffer
	logger := newLogger(&buf, false)
	logger.Debug("hidden")
	logger.Warn("a.txt [claude]: boom")
	_ = logger.Sync()
	assert.Equal(t, "warn: a.txt [claude]: boom\n", buf.String())

	buf.Reset()
	logger = newLogger(&buf, true)
	logger.Debug("visible")
	_ = logger.Sync()
	assert.Contains(t, buf.String(), "debug: visible")
}

func TestNewLoggerFields(t *testing.T) {
	var buf bytes.Buffer
	logger := newLogger(&buf, false)
	logger.Warn("token count failed", zap.String("path", "a.txt"), zap.String("tokenizer", "claude"))
	_ = logger.Sync()
	assert.Equal(t, "warn: token count failed: {\"path\": \"a.txt\", \"tokenizer\": \"claude\"}\n", buf.String())
}

func TestCaptureStdLog(t *testing.T) {
	core, logs := observer.New(zapcore.DebugLevel)
	restore := captureStdLog(zap.New(core))
	log.Print("INFO: CachedDir=/tmp/cache")
	restore()

	require.Equal(t, 1, logs.Len())
	assert.Equal(t, zapcore.DebugLevel, logs.All()[0].Level)
	assert.Equal(t, "INFO: CachedDir=/tmp/cache", logs.All()[0].Message)
}

func TestCaptureStdLogHiddenWithoutDebug(t *testing.T) {
	var buf bytes.Buffer
	restore := captureStdLog(newLogger(&buf, false))
	log.Print("noise")
	restore()
	assert.Empty(t, buf.String())
}
