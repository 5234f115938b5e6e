// Package apperr defines the typed errors raised by the blood-bank domain
// core. Every error carries a Kind that callers branch on and a human-readable
// message. Repositories wrap driver failures as KindStorage and never attempt
// to interpret them further.
package apperr

import (
	"errors"
	"fmt"
	"net/http"
)

// Kind classifies a domain failure.
type Kind string

const (
	KindNotFound          Kind = "not_found"
	KindValidation        Kind = "validation"
	KindInvalidTransition Kind = "invalid_transition"
	KindImmutableRecord   Kind = "immutable_record"
	KindProtectedRecord   Kind = "protected_record"
	KindUnitUnavailable   Kind = "unit_unavailable"
	KindIncompatible      Kind = "incompatible"
	KindStorage           Kind = "storage"
)

// Error is the concrete error type returned by the domain core.
type Error struct {
	Kind    Kind
	Message string
	Err     error
}

func (e *Error) Error() string {
	switch {
	case e.Message != "" && e.Err != nil:
		return e.Message + ": " + e.Err.Error()
	case e.Message != "":
		return e.Message
	case e.Err != nil:
		return e.Err.Error()
	}
	return string(e.Kind)
}

func (e *Error) Unwrap() error { return e.Err }

// Is matches any *Error of the same kind, so the sentinels below work with
// errors.Is regardless of message.
func (e *Error) Is(target error) bool {
	var t *Error
	if !errors.As(target, &t) {
		return false
	}
	return t.Kind == e.Kind && t.Message == "" && t.Err == nil
}

// Sentinels for errors.Is checks.
var (
	ErrNotFound          = &Error{Kind: KindNotFound}
	ErrValidation        = &Error{Kind: KindValidation}
	ErrInvalidTransition = &Error{Kind: KindInvalidTransition}
	ErrImmutableRecord   = &Error{Kind: KindImmutableRecord}
	ErrProtectedRecord   = &Error{Kind: KindProtectedRecord}
	ErrUnitUnavailable   = &Error{Kind: KindUnitUnavailable}
	ErrIncompatible      = &Error{Kind: KindIncompatible}
	ErrStorage           = &Error{Kind: KindStorage}
)

// New builds an error of the given kind with a formatted message.
func New(kind Kind, format string, args ...interface{}) *Error {
	return &Error{Kind: kind, Message: fmt.Sprintf(format, args...)}
}

// Wrap attaches a kind and message to an underlying error. A nil err yields nil.
func Wrap(kind Kind, err error, msg string) error {
	if err == nil {
		return nil
	}
	return &Error{Kind: kind, Message: msg, Err: err}
}

func NotFound(entity string) *Error {
	return New(KindNotFound, "%s not found", entity)
}

func Validation(format string, args ...interface{}) *Error {
	return New(KindValidation, format, args...)
}

// Storage wraps a persistence failure unchanged.
func Storage(err error, op string) error {
	if err == nil {
		return nil
	}
	var ae *Error
	if errors.As(err, &ae) {
		return err
	}
	return &Error{Kind: KindStorage, Message: op, Err: err}
}

// KindOf returns the kind of err, or KindStorage for untyped errors.
func KindOf(err error) Kind {
	var ae *Error
	if errors.As(err, &ae) {
		return ae.Kind
	}
	return KindStorage
}

// HTTPStatus maps an error to the status code the API layer responds with.
func HTTPStatus(err error) int {
	switch KindOf(err) {
	case KindNotFound:
		return http.StatusNotFound
	case KindValidation:
		return http.StatusBadRequest
	case KindInvalidTransition, KindImmutableRecord, KindProtectedRecord, KindUnitUnavailable, KindIncompatible:
		return http.StatusConflict
	default:
		return http.StatusInternalServerError
	}
}
