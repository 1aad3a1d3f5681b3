// utils/logger.go
package utils

import (
	"strings"

	"go.uber.org/zap"
)

// Logger is a thin sugared wrapper so call sites read like log.Printf with fields.
type Logger struct {
	SugaredLogger *zap.SugaredLogger
}

func NewLogger(mode string) (*Logger, error) {
	var cfg zap.Config
	switch strings.ToLower(mode) {
	case "prod", "production":
		cfg = zap.NewProductionConfig()
	default:
		cfg = zap.NewDevelopmentConfig()
	}
	zapLogger, err := cfg.Build()
	if err != nil {
		return nil, err
	}
	return &Logger{SugaredLogger: zapLogger.Sugar()}, nil
}

// NopLogger discards everything (tests, optional collaborators).
func NopLogger() *Logger {
	return &Logger{SugaredLogger: nopSugar}
}

// sugar lets a nil *Logger be used as a no-op.
func (l *Logger) sugar() *zap.SugaredLogger {
	if l == nil || l.SugaredLogger == nil {
		return nopSugar
	}
	return l.SugaredLogger
}

var nopSugar = zap.NewNop().Sugar()

func (l *Logger) Sync() {
	_ = l.sugar().Sync()
}

func (l *Logger) Debug(msg string, keysAndValues ...interface{}) {
	l.sugar().Debugw(msg, keysAndValues...)
}

func (l *Logger) Info(msg string, keysAndValues ...interface{}) {
	l.sugar().Infow(msg, keysAndValues...)
}

func (l *Logger) Warn(msg string, keysAndValues ...interface{}) {
	l.sugar().Warnw(msg, keysAndValues...)
}

func (l *Logger) Error(msg string, keysAndValues ...interface{}) {
	l.sugar().Errorw(msg, keysAndValues...)
}

func (l *Logger) Fatal(msg string, keysAndValues ...interface{}) {
	l.sugar().Fatalw(msg, keysAndValues...)
}

func (l *Logger) With(keysAndValues ...interface{}) *Logger {
	return &Logger{SugaredLogger: l.sugar().With(keysAndValues...)}
}
