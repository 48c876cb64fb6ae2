// Package apperror defines the error taxonomy shared by every media component.
// Components classify failures here; only the HTTP boundary turns a Kind into a status.
package apperror

import (
	"errors"
	"fmt"
)

// Kind is the coarse class of a failure.
type Kind string

const (
	KindValidation Kind = "validation"
	KindAuth       Kind = "auth"
	KindNotFound   Kind = "not_found"
	KindStorage    Kind = "storage"
	KindUnknown    Kind = "unknown"
)

// Reasons narrow a Kind for clients that branch on them.
const (
	ReasonNoFile         = "no_file"
	ReasonTypeNotAllowed = "type_not_allowed"
	ReasonTooLarge       = "too_large"
	ReasonInvalidRequest = "invalid_request"
	ReasonInvalidKey     = "invalid_key"

	ReasonMissing   = "missing"
	ReasonMalformed = "malformed"
	ReasonInvalid   = "invalid"
	ReasonForbidden = "forbidden"
)

// Error is a classified failure. Message is safe to show callers; Detail and Err are not
// for storage and unknown kinds.
type Error struct {
	Kind    Kind
	Reason  string
	Message string
	Detail  string
	Err     error
}

func (e *Error) Error() string {
	msg := string(e.Kind)
	if e.Reason != "" {
		msg += "(" + e.Reason + ")"
	}
	msg += ": " + e.Message
	if e.Err != nil {
		msg += ": " + e.Err.Error()
	}
	return msg
}

func (e *Error) Unwrap() error { return e.Err }

// Validation builds a ValidationError.
func Validation(reason, message string) *Error {
	return &Error{Kind: KindValidation, Reason: reason, Message: message}
}

// Validationf builds a ValidationError with a formatted message.
func Validationf(reason, format string, args ...any) *Error {
	return Validation(reason, fmt.Sprintf(format, args...))
}

// Auth builds an AuthError.
func Auth(reason, message string) *Error {
	return &Error{Kind: KindAuth, Reason: reason, Message: message}
}

// NotFound builds a NotFoundError for the given key.
func NotFound(key string) *Error {
	return &Error{Kind: KindNotFound, Message: "media not found", Detail: key}
}

// Storage wraps a backend failure raised while performing op.
func Storage(op string, err error) *Error {
	return &Error{Kind: KindStorage, Message: "storage operation failed", Detail: op, Err: err}
}

// Unknown wraps an unanticipated failure.
func Unknown(err error) *Error {
	return &Error{Kind: KindUnknown, Message: "internal server error", Err: err}
}

// From returns err as an *Error, classifying unrecognised errors as unknown.
func From(err error) *Error {
	if err == nil {
		return nil
	}
	var e *Error
	if errors.As(err, &e) {
		return e
	}
	return Unknown(err)
}

// Is reports whether err carries the given kind.
func Is(err error, kind Kind) bool {
	var e *Error
	return errors.As(err, &e) && e.Kind == kind
}

// HasReason reports whether err carries the given reason.
func HasReason(err error, reason string) bool {
	var e *Error
	return errors.As(err, &e) && e.Reason == reason
}
