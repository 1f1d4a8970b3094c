package logger

import (
	"context"
	"sort"

	"go.uber.org/zap"
)

// ZapLogger implements Logger on top of a zap.Logger.
type ZapLogger struct {
	zl *zap.Logger
}

// Ensure ZapLogger implements Logger.
var _ Logger = (*ZapLogger)(nil)

// NewZapLogger wraps zl.
func NewZapLogger(zl *zap.Logger) *ZapLogger {
	return &ZapLogger{zl: zl}
}

// NewZapLoggerFromLevel builds the production app logger at logLevel and wraps it.
func NewZapLoggerFromLevel(logLevel string) *ZapLogger {
	return NewZapLogger(NewAppLogger(logLevel))
}

func (l *ZapLogger) Info(_ context.Context, message string, fields map[string]interface{}) {
	l.zl.Info(message, toZapFields(fields)...)
}

func (l *ZapLogger) Debug(_ context.Context, message string, fields map[string]interface{}) {
	l.zl.Debug(message, toZapFields(fields)...)
}

func (l *ZapLogger) Warn(_ context.Context, message string, fields map[string]interface{}) {
	l.zl.Warn(message, toZapFields(fields)...)
}

func (l *ZapLogger) Error(_ context.Context, message string, err error, fields map[string]interface{}) {
	zf := toZapFields(fields)
	if err != nil {
		zf = append(zf, zap.Error(err))
	}
	l.zl.Error(message, zf...)
}

// WithFields returns a ZapLogger whose entries all carry fields.
func (l *ZapLogger) WithFields(fields map[string]interface{}) Logger {
	return &ZapLogger{zl: l.zl.With(toZapFields(fields)...)}
}

// Zap returns the underlying zap.Logger.
func (l *ZapLogger) Zap() *zap.Logger {
	return l.zl
}

// Sync flushes any buffered log entries.
// Applications should take care to call Sync before exiting.
func (l *ZapLogger) Sync() error {
	return l.zl.Sync()
}

// toZapFields converts map fields in key order so output is stable.
func toZapFields(fields map[string]interface{}) []zap.Field {
	if len(fields) == 0 {
		return nil
	}
	keys := make([]string, 0, len(fields))
	for k := range fields {
		keys = append(keys, k)
	}
	sort.Strings(keys)

	zf := make([]zap.Field, 0, len(keys))
	for _, k := range keys {
		zf = append(zf, zap.Any(k, fields[k]))
	}
	return zf
}
