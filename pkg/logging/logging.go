// Package logging builds the structured loggers used by every subsystem.
//
// Each subsystem receives a named zap logger so that log lines carry the
// subsystem name alongside free-form key/value context.
package logging

import (
	"go.uber.org/zap"
	"go.uber.org/zap/zapcore"
)

// New creates the root logger for the system. The level string accepts the
// usual zap names ("debug", "info", "warn", "error"); unknown values fall
// back to info. Console output is disabled when console is false, which the
// tests use to keep output quiet.
func New(level string, console bool) *zap.SugaredLogger {
	lvl := zapcore.InfoLevel
	if parsed, err := zapcore.ParseLevel(level); err == nil {
		lvl = parsed
	}

	cfg := zap.NewDevelopmentConfig()
	cfg.Level = zap.NewAtomicLevelAt(lvl)
	if !console {
		cfg.OutputPaths = nil
		cfg.ErrorOutputPaths = nil
	}

	logger, err := cfg.Build()
	if err != nil {
		return zap.NewNop().Sugar()
	}
	return logger.Sugar()
}

// Nop returns a logger that discards everything. Handy default for
// constructors that accept a nil logger.
func Nop() *zap.SugaredLogger {
	return zap.NewNop().Sugar()
}

// Named derives a subsystem logger from the root, falling back to a no-op
// logger when the root is nil.
func Named(root *zap.SugaredLogger, subsystem string) *zap.SugaredLogger {
	if root == nil {
		return Nop()
	}
	return root.Named(subsystem)
}
