// Package logging provides component-scoped structured loggers backed by logrus.
package logging

import (
	"context"
	"io"
	"os"

	"github.com/sirupsen/logrus"
)

// Fields carries structured key/value pairs attached to a log line.
type Fields map[string]interface{}

type contextKey string

// RequestIDKey is the context key holding the inbound request ID.
const RequestIDKey contextKey = "request_id"

var base = newBase()

func newBase() *logrus.Logger {
	l := logrus.New()
	l.SetOutput(os.Stdout)
	l.SetFormatter(&logrus.JSONFormatter{})
	l.SetLevel(logrus.InfoLevel)
	return l
}

// Configure sets the global level ("debug", "info", ...) and output format
// ("json" or "text").
func Configure(level, format string) {
	if lvl, err := logrus.ParseLevel(level); err == nil {
		base.SetLevel(lvl)
	}
	if format == "text" {
		base.SetFormatter(&logrus.TextFormatter{FullTimestamp: true})
	} else {
		base.SetFormatter(&logrus.JSONFormatter{})
	}
}

// SetOutput redirects every logger. Used by tests to silence output.
func SetOutput(w io.Writer) {
	base.SetOutput(w)
}

// Logger is a logger bound to a service component.
type Logger struct {
	entry *logrus.Entry
}

// NewLogger creates a logger that tags every line with the component name.
func NewLogger(component string) *Logger {
	return &Logger{entry: base.WithField("component", component)}
}

// With returns a child logger with fields attached to every line.
func (l *Logger) With(fields Fields) *Logger {
	return &Logger{entry: l.entry.WithFields(logrus.Fields(fields))}
}

// WithContext attaches the request ID from ctx, when present.
func (l *Logger) WithContext(ctx context.Context) *Logger {
	if id := RequestIDFromContext(ctx); id != "" {
		return &Logger{entry: l.entry.WithField("request_id", id)}
	}
	return l
}

func (l *Logger) Debug(msg string, fields ...Fields) { l.withFields(fields).Debug(msg) }
func (l *Logger) Info(msg string, fields ...Fields)  { l.withFields(fields).Info(msg) }
func (l *Logger) Warn(msg string, fields ...Fields)  { l.withFields(fields).Warn(msg) }
func (l *Logger) Error(msg string, fields ...Fields) { l.withFields(fields).Error(msg) }
func (l *Logger) Fatal(msg string, fields ...Fields) { l.withFields(fields).Fatal(msg) }

func (l *Logger) withFields(fields []Fields) *logrus.Entry {
	entry := l.entry
	for _, f := range fields {
		entry = entry.WithFields(logrus.Fields(f))
	}
	return entry
}

// Infof logs a formatted message on the global logger.
func Infof(format string, args ...interface{}) {
	base.Infof(format, args...)
}

// ContextWithRequestID stores a request ID for loggers and event metadata.
func ContextWithRequestID(ctx context.Context, requestID string) context.Context {
	return context.WithValue(ctx, RequestIDKey, requestID)
}

// RequestIDFromContext returns the request ID stored in ctx, or "".
func RequestIDFromContext(ctx context.Context) string {
	if ctx == nil {
		return ""
	}
	if id, ok := ctx.Value(RequestIDKey).(string); ok {
		return id
	}
	return ""
}
