package logger

import (
	"context"
	"time"
)

// Entry carries metric fields (duration_ms, count, size, status) for a single
// log call.
//
//	logger.With(logger.Fields{"count": 3}).Info(ctx, "chunks embedded")
type Entry struct {
	fields Fields
}

// With starts an Entry with the given metric fields.
func With(fields Fields) *Entry {
	return &Entry{fields: fields}
}

// With returns a new Entry with fields merged in.
func (e *Entry) With(fields Fields) *Entry {
	merged := make(Fields, len(e.fields)+len(fields))
	for k, v := range e.fields {
		merged[k] = v
	}
	for k, v := range fields {
		merged[k] = v
	}
	return &Entry{fields: merged}
}

// WithDuration records the time elapsed since start in milliseconds.
func (e *Entry) WithDuration(start time.Time) *Entry {
	return e.With(Fields{FieldDurationMs: time.Since(start).Milliseconds()})
}

// WithCount records a count.
func (e *Entry) WithCount(n int) *Entry {
	return e.With(Fields{FieldCount: n})
}

// WithStatus records an outcome.
func (e *Entry) WithStatus(status string) *Entry {
	return e.With(Fields{FieldStatus: status})
}

func (e *Entry) target(ctx context.Context) *Logger {
	return FromContext(ctx).WithFields(e.fields)
}

// Debug logs at debug level.
func (e *Entry) Debug(ctx context.Context, format string, args ...interface{}) {
	e.target(ctx).Debugf(format, args...)
}

// Info logs at info level.
func (e *Entry) Info(ctx context.Context, format string, args ...interface{}) {
	e.target(ctx).Infof(format, args...)
}

// Warn logs at warn level.
func (e *Entry) Warn(ctx context.Context, format string, args ...interface{}) {
	e.target(ctx).Warnf(format, args...)
}

// Error logs at error level.
func (e *Entry) Error(ctx context.Context, format string, args ...interface{}) {
	e.target(ctx).Errorf(format, args...)
}
