// Package domainerrors defines the error type services return across layer
// boundaries. Every error carries a Code that the transport layer maps to a
// status and a public error string; the Message is safe to show to clients,
// the wrapped cause is for logs only.
package domainerrors

import (
	"errors"
	"fmt"
)

// Code classifies a domain error.
type Code string

const (
	// Authentication path. All of these collapse to a single "unauthorized"
	// response at the gate boundary.
	CodeMissingToken          Code = "missing_token"
	CodeTokenMalformed        Code = "token_malformed"
	CodeTokenSignatureInvalid Code = "token_signature_invalid"
	CodeTokenExpired          Code = "token_expired"
	CodeUserNotFound          Code = "user_not_found"
	CodeUnauthorized          Code = "unauthorized"

	CodeOwnershipViolation Code = "ownership_violation"
	CodeBadRequest         Code = "bad_request"
	CodeInvalidInput       Code = "invalid_input"
	CodeNotFound           Code = "not_found"
	CodeConflict           Code = "conflict"
	CodeTimeout            Code = "timeout"
	CodeRateLimited        Code = "rate_limited"
	CodeInternal           Code = "internal_error"
)

// Error is a coded domain error.
type Error struct {
	Code    Code
	Message string
	Err     error
}

func (e *Error) Error() string {
	if e.Err != nil {
		return fmt.Sprintf("%s: %s: %v", e.Code, e.Message, e.Err)
	}
	return fmt.Sprintf("%s: %s", e.Code, e.Message)
}

func (e *Error) Unwrap() error {
	return e.Err
}

// Is matches another *Error with the same code. An empty target message
// matches any message.
func (e *Error) Is(target error) bool {
	t, ok := target.(*Error)
	if !ok {
		return false
	}
	return t.Code == e.Code && (t.Message == "" || t.Message == e.Message)
}

// New creates a coded error.
func New(code Code, msg string) *Error {
	return &Error{Code: code, Message: msg}
}

// Wrap attaches a code and public message to an underlying cause.
func Wrap(err error, code Code, msg string) *Error {
	return &Error{Code: code, Message: msg, Err: err}
}

// HasCode reports whether any error in err's chain is a domain error with code.
func HasCode(err error, code Code) bool {
	var de *Error
	if errors.As(err, &de) {
		return de.Code == code
	}
	return false
}

// Is is shorthand for HasCode.
func Is(err error, code Code) bool {
	return HasCode(err, code)
}

// CodeOf returns the code of the first domain error in err's chain, or
// CodeInternal when err carries none.
func CodeOf(err error) Code {
	var de *Error
	if errors.As(err, &de) {
		return de.Code
	}
	return CodeInternal
}

// IsAuthFailure reports whether code belongs to the authentication path.
func IsAuthFailure(code Code) bool {
	switch code {
	case CodeMissingToken, CodeTokenMalformed, CodeTokenSignatureInvalid,
		CodeTokenExpired, CodeUserNotFound, CodeUnauthorized:
		return true
	default:
		return false
	}
}
