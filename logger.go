package gate

import (
	"go.uber.org/zap"
	"go.uber.org/zap/zapcore"
)

var logger = newDefaultLogger()

func newDefaultLogger() *zap.Logger {
	cfg := zap.NewProductionConfig()
	cfg.EncoderConfig.TimeKey = "ts"
	cfg.EncoderConfig.EncodeTime = zapcore.ISO8601TimeEncoder
	l, err := cfg.Build()
	if err != nil {
		return zap.NewNop()
	}
	return l
}

// SetLogger allows setting a custom logger
func SetLogger(l *zap.Logger) {
	logger = l
}
