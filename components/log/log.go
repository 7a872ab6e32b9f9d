package log

import (
	"go.uber.org/zap"
	"go.uber.org/zap/zapcore"
)

var (
	l, _ = zap.NewProduction(zap.AddStacktrace(zapcore.FatalLevel))
)

// UseLogger set cubeclient global logger
func UseLogger(logger *zap.Logger) {
	l = logger
}

// Logger returns the cubeclient global logger
func Logger() *zap.Logger {
	return l
}
