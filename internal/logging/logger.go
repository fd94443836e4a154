package logging

import (
	"sync"

	"go.uber.org/zap"
	"go.uber.org/zap/zapcore"
)

var (
	base *zap.Logger
	once sync.Once
)

// Init builds the process-wide zap logger. Only the first call has effect.
func Init(level string, development bool) error {
	var err error
	once.Do(func() {
		var zapLevel zapcore.Level
		if err = zapLevel.UnmarshalText([]byte(level)); err != nil {
			return
		}

		var cfg zap.Config
		if development {
			cfg = zap.NewDevelopmentConfig()
		} else {
			cfg = zap.NewProductionConfig()
		}
		cfg.Level = zap.NewAtomicLevelAt(zapLevel)
		cfg.EncoderConfig.TimeKey = "timestamp"
		cfg.EncoderConfig.EncodeTime = zapcore.ISO8601TimeEncoder

		base, err = cfg.Build()
	})
	return err
}

// Get returns the process-wide zap logger, or a no-op logger before Init.
func Get() *zap.Logger {
	if base == nil {
		return zap.NewNop()
	}
	return base
}

// Sync flushes buffered entries
func Sync() error {
	if base != nil {
		return base.Sync()
	}
	return nil
}

// Logger provides structured logging for one worker component
type Logger struct {
	sugar *zap.SugaredLogger
}

// NewLogger creates a logger tagged with the component name
func NewLogger(component string) *Logger {
	return FromZap(Get(), component)
}

// FromZap wraps an existing zap logger, used by tests with zaptest.
func FromZap(z *zap.Logger, component string) *Logger {
	return &Logger{sugar: z.Named(component).Sugar()}
}

// Zap exposes the underlying logger for libraries that take one directly
func (l *Logger) Zap() *zap.Logger {
	return l.sugar.Desugar()
}

// With returns a child logger that always carries the given key-value pairs
func (l *Logger) With(keysAndValues ...interface{}) *Logger {
	return &Logger{sugar: l.sugar.With(keysAndValues...)}
}

// Info logs an informational message with key-value pairs
func (l *Logger) Info(msg string, keysAndValues ...interface{}) {
	l.sugar.Infow(msg, keysAndValues...)
}

// Warn logs a warning message with key-value pairs
func (l *Logger) Warn(msg string, keysAndValues ...interface{}) {
	l.sugar.Warnw(msg, keysAndValues...)
}

// Error logs an error message with key-value pairs
func (l *Logger) Error(msg string, keysAndValues ...interface{}) {
	l.sugar.Errorw(msg, keysAndValues...)
}

// Debug logs a debug message with key-value pairs
func (l *Logger) Debug(msg string, keysAndValues ...interface{}) {
	l.sugar.Debugw(msg, keysAndValues...)
}
