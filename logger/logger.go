// Package logger provides the structured logging interface used by the
// GitHub client packages, with a zap-backed and a no-op implementation.
package logger

import (
	"context"
	"os"

	zap "go.uber.org/zap"
	"go.uber.org/zap/zapcore"
)

// Logger constants
const (
	InfoLevel  = "info"
	DebugLevel = "debug"
	WarnLevel  = "warn"
	ErrorLevel = "error"

	defaultLoggerName = "github-client"
)

// Logger is the structured logging sink of the client layer. It is used for
// failure diagnostics only, never for control flow.
type Logger interface {
	// Info logs an informational message with optional structured fields.
	Info(ctx context.Context, message string, fields map[string]interface{})

	// Debug logs a debug message with optional structured fields.
	Debug(ctx context.Context, message string, fields map[string]interface{})

	// Warn logs a warning message with optional structured fields.
	Warn(ctx context.Context, message string, fields map[string]interface{})

	// Error logs an error message with the error and optional structured fields.
	Error(ctx context.Context, message string, err error, fields map[string]interface{})

	// WithFields returns a Logger that adds fields to every message.
	WithFields(fields map[string]interface{}) Logger
}

// NopLogger is a logger that does nothing.
type NopLogger struct{}

// Ensure NopLogger implements Logger.
var _ Logger = (*NopLogger)(nil)

func (l *NopLogger) Info(context.Context, string, map[string]interface{})         {}
func (l *NopLogger) Debug(context.Context, string, map[string]interface{})        {}
func (l *NopLogger) Warn(context.Context, string, map[string]interface{})         {}
func (l *NopLogger) Error(context.Context, string, error, map[string]interface{}) {}

// WithFields returns the same NopLogger.
func (l *NopLogger) WithFields(map[string]interface{}) Logger { return l }

// NewAppLogger builds a production zap logger at logLevel. An empty level
// falls back to the LOG_LEVEL environment variable, then to info.
func NewAppLogger(logLevel string) *zap.Logger {
	if logLevel == "" {
		logLevel = os.Getenv("LOG_LEVEL")
	}
	config := ConfigureLogLevelLogger(logLevel)
	config.EncoderConfig.EncodeTime = zapcore.RFC3339NanoTimeEncoder
	config.OutputPaths = []string{"stdout"}
	logger, err := config.Build()
	if err != nil {
		panic(err)
	}
	return logger.Named(defaultLoggerName)
}

// ConfigureLogLevelLogger returns a production config at the given level.
func ConfigureLogLevelLogger(logLevel string) zap.Config {
	logConfig := zap.NewProductionConfig()
	switch logLevel {
	case DebugLevel:
		logConfig.Level = zap.NewAtomicLevelAt(zap.DebugLevel)
	case WarnLevel:
		logConfig.Level = zap.NewAtomicLevelAt(zap.WarnLevel)
	case ErrorLevel:
		logConfig.Level = zap.NewAtomicLevelAt(zap.ErrorLevel)
	default:
		logConfig.Level = zap.NewAtomicLevelAt(zap.InfoLevel)
	}
	return logConfig
}

type loggerKey struct{}

// WithLogger returns a copy of parent in which the logger key holds logger.
func WithLogger(ctx context.Context, logger Logger) context.Context {
	return context.WithValue(ctx, loggerKey{}, logger)
}

// FromContext returns the logger stored in ctx, or a NopLogger.
func FromContext(ctx context.Context) Logger {
	if logger, ok := ctx.Value(loggerKey{}).(Logger); ok {
		return logger
	}
	return &NopLogger{}
}
