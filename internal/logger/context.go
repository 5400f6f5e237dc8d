package logger

import (
	"context"
	"strconv"
	"sync"
)

type contextKey struct{}

var loggerKey = contextKey{}

var (
	defaultLogger   = New(nil)
	defaultLoggerMu sync.RWMutex
)

// GetDefault returns the process-wide logger.
func GetDefault() *Logger {
	defaultLoggerMu.RLock()
	defer defaultLoggerMu.RUnlock()
	return defaultLogger
}

// SetDefaultLogger replaces the process-wide logger. Nil is ignored.
func SetDefaultLogger(l *Logger) {
	if l == nil {
		return
	}
	defaultLoggerMu.Lock()
	defaultLogger = l
	defaultLoggerMu.Unlock()
}

// WithContext returns ctx carrying l.
func (l *Logger) WithContext(ctx context.Context) context.Context {
	return context.WithValue(ctx, loggerKey, l)
}

// FromContext returns the logger stored in ctx, or the default logger.
// Parameters:
//   - ctx: context to inspect; may be nil.
// Returns:
//   - *Logger: never nil.
func FromContext(ctx context.Context) *Logger {
	if ctx != nil {
		if l, ok := ctx.Value(loggerKey).(*Logger); ok {
			return l
		}
	}
	return GetDefault()
}

// WithField returns ctx whose logger carries one more field.
func WithField(ctx context.Context, key string, value interface{}) context.Context {
	return FromContext(ctx).WithField(key, value).WithContext(ctx)
}

// WithFields returns ctx whose logger carries the given fields.
func WithFields(ctx context.Context, fields Fields) context.Context {
	return FromContext(ctx).WithFields(fields).WithContext(ctx)
}

// SetRequestID tags ctx with the HTTP request id.
func SetRequestID(ctx context.Context, id string) context.Context {
	return WithField(ctx, FieldRequestID, id)
}

// SetJobID tags ctx with the pipeline job (minutes) id.
func SetJobID(ctx context.Context, id uint) context.Context {
	return WithField(ctx, FieldJobID, strconv.FormatUint(uint64(id), 10))
}

// SetSessionID tags ctx with a chat session id.
func SetSessionID(ctx context.Context, id uint) context.Context {
	return WithField(ctx, FieldSessionID, strconv.FormatUint(uint64(id), 10))
}

// SetUserID tags ctx with the authenticated caller.
func SetUserID(ctx context.Context, id string) context.Context {
	return WithField(ctx, FieldUserID, id)
}

// SetComponent tags ctx with a component name.
func SetComponent(ctx context.Context, name string) context.Context {
	return WithField(ctx, FieldComponent, name)
}

// GetFieldString returns a string field from the context logger, or "".
func GetFieldString(ctx context.Context, key string) string {
	v, ok := FromContext(ctx).Data[key]
	if !ok {
		return ""
	}
	s, _ := v.(string)
	return s
}

// GetRequestID returns the request id carried by ctx.
func GetRequestID(ctx context.Context) string {
	return GetFieldString(ctx, FieldRequestID)
}

// GetJobID returns the job id carried by ctx.
func GetJobID(ctx context.Context) string {
	return GetFieldString(ctx, FieldJobID)
}
