// Package logging builds the zap logger used across relpo.
package logging

import (
	"go.uber.org/zap"
	"go.uber.org/zap/zapcore"
)

const (
	// LevelDebug logs every fetch and copy.
	LevelDebug = "debug"
	// LevelInfo logs progress milestones.
	LevelInfo = "info"
	// LevelWarn is the CLI default.
	LevelWarn = "warn"
	// LevelNone disables logging.
	LevelNone = "none"
)

// GetLogger returns a console logger writing to stderr at logLevel.
func GetLogger(logLevel string) (*zap.Logger, error) {
	if logLevel == LevelNone {
		return zap.NewNop(), nil
	}
	var lvl zapcore.Level
	if err := lvl.UnmarshalText([]byte(logLevel)); err != nil {
		return nil, err
	}
	zapConfig := zap.NewProductionConfig()
	zapConfig.Level = zap.NewAtomicLevelAt(lvl)
	zapConfig.Encoding = "console"
	zapConfig.EncoderConfig.EncodeTime = zapcore.ISO8601TimeEncoder
	zapConfig.EncoderConfig.EncodeLevel = zapcore.CapitalLevelEncoder
	zapConfig.DisableStacktrace = true
	zapConfig.Sampling = nil
	return zapConfig.Build()
}

// OrNop returns l, or a no-op logger when l is nil.
func OrNop(l *zap.Logger) *zap.Logger {
	if l == nil {
		return zap.NewNop()
	}
	return l
}
