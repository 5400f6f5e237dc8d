// Package apperr defines the error kinds shared by the pipeline, the chat
// service and the HTTP layer.
package apperr

import (
	"errors"
	"fmt"
)

// Kind classifies a failure.
type Kind string

const (
	KindInternal      Kind = "internal"
	KindValidation    Kind = "validation"
	KindUnauthorized  Kind = "unauthorized"
	KindForbidden     Kind = "forbidden"
	KindNotFound      Kind = "not_found"
	KindConflict      Kind = "conflict"
	KindIntegrity     Kind = "integrity"
	KindTranscoding   Kind = "transcoding"
	KindTranscription Kind = "transcription"
	KindEmbedding     Kind = "embedding"
	KindGeneration    Kind = "generation"
)

// Error is a kind-tagged error. Op names the operation that failed.
type Error struct {
	Kind Kind
	Op   string
	Msg  string
	Err  error
}

func (e *Error) Error() string {
	if e == nil {
		return ""
	}
	msg := e.Msg
	if msg == "" && e.Err != nil {
		msg = e.Err.Error()
	} else if e.Err != nil {
		msg = msg + ": " + e.Err.Error()
	}
	if msg == "" {
		msg = string(e.Kind)
	}
	if e.Op != "" {
		return fmt.Sprintf("%s: %s", e.Op, msg)
	}
	return msg
}

func (e *Error) Unwrap() error { return e.Err }

// New returns an Error of kind with a formatted message.
func New(kind Kind, op, format string, args ...interface{}) *Error {
	return &Error{Kind: kind, Op: op, Msg: fmt.Sprintf(format, args...)}
}

// Wrap tags err with kind. A nil err returns nil. An err that already carries
// a kind keeps it, so the innermost classification wins.
func Wrap(kind Kind, op string, err error) error {
	if err == nil {
		return nil
	}
	var ae *Error
	if errors.As(err, &ae) {
		return &Error{Kind: ae.Kind, Op: op, Err: err}
	}
	var kc interface{ ErrorKind() Kind }
	if errors.As(err, &kc) {
		return &Error{Kind: kc.ErrorKind(), Op: op, Err: err}
	}
	return &Error{Kind: kind, Op: op, Err: err}
}

// KindOf reports the kind of err, or KindInternal when none is attached.
func KindOf(err error) Kind {
	if err == nil {
		return ""
	}
	var ae *Error
	if errors.As(err, &ae) {
		return ae.Kind
	}
	var kc interface{ ErrorKind() Kind }
	if errors.As(err, &kc) {
		return kc.ErrorKind()
	}
	return KindInternal
}

// Is reports whether err carries kind.
func Is(err error, kind Kind) bool {
	return err != nil && KindOf(err) == kind
}

// NotFound is shorthand for a not-found error on a named resource.
func NotFound(op, resource string) *Error {
	return New(KindNotFound, op, "%s not found", resource)
}

// Forbidden is shorthand for an ownership mismatch.
func Forbidden(op string) *Error {
	return New(KindForbidden, op, "access denied")
}

// Validation is shorthand for bad input.
func Validation(op, format string, args ...interface{}) *Error {
	return New(KindValidation, op, format, args...)
}
