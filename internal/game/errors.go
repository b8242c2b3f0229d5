// internal/game/errors.go
//
// Error taxonomy shared by every layer of the crossword core.
// Expected outcomes (conflict, wrong phase, wrong guess) are *Error values the
// caller branches on; anything without a Code is an unexpected failure.

package game

import (
	"errors"
	"fmt"
)

// Code is a machine-readable error category.
type Code string

const (
	CodeValidation       Code = "validation"
	CodeInvalidArgument  Code = "invalid_argument"
	CodeConflict         Code = "conflict"
	CodeAlreadySolved    Code = "already_solved"
	CodeInvalidState     Code = "invalid_state"
	CodePermissionDenied Code = "permission_denied"
	CodeNotFound         Code = "not_found"
	CodeIncorrect        Code = "incorrect"
	CodeInternal         Code = "internal"
)

// Error is a categorized domain error.
type Error struct {
	Code    Code
	Message string
	Cause   error
}

func (e *Error) Error() string {
	if e.Message == "" {
		return string(e.Code)
	}
	return e.Message
}

func (e *Error) Unwrap() error { return e.Cause }

// Is matches any *Error carrying the same Code, so errors.Is(err, ErrNotFound)
// holds for every not-found error regardless of message.
func (e *Error) Is(target error) bool {
	t, ok := target.(*Error)
	return ok && t.Code == e.Code
}

// Sentinels for errors.Is checks.
var (
	ErrValidation       = &Error{Code: CodeValidation}
	ErrInvalidArgument  = &Error{Code: CodeInvalidArgument}
	ErrConflict         = &Error{Code: CodeConflict}
	ErrAlreadySolved    = &Error{Code: CodeAlreadySolved}
	ErrInvalidState     = &Error{Code: CodeInvalidState}
	ErrPermissionDenied = &Error{Code: CodePermissionDenied}
	ErrNotFound         = &Error{Code: CodeNotFound}
	ErrIncorrect        = &Error{Code: CodeIncorrect}
)

// Errorf builds a coded error with a formatted message.
func Errorf(code Code, format string, args ...any) *Error {
	return &Error{Code: code, Message: fmt.Sprintf(format, args...)}
}

// CodeOf extracts the domain code from err, or CodeInternal when err is not a domain error.
func CodeOf(err error) Code {
	var e *Error
	if errors.As(err, &e) {
		return e.Code
	}
	return CodeInternal
}
