package main

import (
	"io"

	"go.uber.org/zap"
	"go.uber.org/zap/zapcore"
)

// newLogger builds the diagnostic logger. Warnings land on w (stderr in
// practice) and never on the output stream.
func newLogger(w io.Writer, debug bool) *zap.Logger {
	level := zapcore.WarnLevel
	if debug {
		level = zapcore.DebugLevel
	}

	encCfg := zapcore.EncoderConfig{
		LevelKey:         "level",
		MessageKey:       "msg",
		EncodeLevel:      zapcore.LowercaseLevelEncoder,
		EncodeDuration:   zapcore.StringDurationEncoder,
		ConsoleSeparator: ": ",
	}
	core := zapcore.NewCore(
		zapcore.NewConsoleEncoder(encCfg),
		zapcore.AddSync(w),
		level,
	)
	return zap.New(core)
}

// captureStdLog routes the standard library logger, which some tokenizer
// backends write to, into logger at debug level. The returned func restores
// the previous destination.
func captureStdLog(logger *zap.Logger) func() {
	restore, err := zap.RedirectStdLogAt(logger, zapcore.DebugLevel)
	if err != nil {
		return func() {}
	}
	return restore
}
