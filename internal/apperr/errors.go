package apperr

import (
	"errors"
	"fmt"
	"net/http"
)

type Code string

const (
	CodeUnauthenticated Code = "unauthenticated"
	CodeForbidden       Code = "forbidden"
	CodeNotFound        Code = "not_found"
	CodeValidation      Code = "validation_failed"
	CodeConflict        Code = "conflict"
	CodeTransient       Code = "transient_store_failure"
	CodeInternal        Code = "internal"
)

type Error struct {
	Code    Code   `json:"code"`
	Message string `json:"message"`
	Details any    `json:"details,omitempty"`
	Cause   error  `json:"-"`
}

func (e *Error) Error() string {
	if e.Cause != nil {
		return fmt.Sprintf("%s: %v", e.Message, e.Cause)
	}
	return e.Message
}

func (e *Error) Unwrap() error { return e.Cause }

// Is matches another *Error by code, so errors.Is(err, apperr.ErrForbidden) works.
func (e *Error) Is(target error) bool {
	t, ok := target.(*Error)
	return ok && t.Message == "" && t.Code == e.Code
}

// Code-only targets for errors.Is.
var (
	ErrUnauthenticated = &Error{Code: CodeUnauthenticated}
	ErrForbidden       = &Error{Code: CodeForbidden}
	ErrNotFound        = &Error{Code: CodeNotFound}
	ErrValidation      = &Error{Code: CodeValidation}
	ErrConflict        = &Error{Code: CodeConflict}
	ErrTransient       = &Error{Code: CodeTransient}
)

func New(code Code, msg string) error {
	return &Error{Code: code, Message: msg}
}

func Wrap(code Code, msg string, cause error) error {
	return &Error{Code: code, Message: msg, Cause: cause}
}

func Unauthenticated(msg string) error { return New(CodeUnauthenticated, msg) }

func Forbidden(msg string) error { return New(CodeForbidden, msg) }

func NotFound(msg string) error { return New(CodeNotFound, msg) }

func Validation(msg string, details any) error {
	return &Error{Code: CodeValidation, Message: msg, Details: details}
}

func Conflict(msg string, details any) error {
	return &Error{Code: CodeConflict, Message: msg, Details: details}
}

func Transient(msg string, cause error) error { return Wrap(CodeTransient, msg, cause) }

func Internal(cause error) error { return Wrap(CodeInternal, "internal error", cause) }

// CodeOf returns the code carried by err, or CodeInternal.
func CodeOf(err error) Code {
	var e *Error
	if errors.As(err, &e) {
		return e.Code
	}
	return CodeInternal
}

func HTTPStatus(code Code) int {
	switch code {
	case CodeUnauthenticated:
		return http.StatusUnauthorized
	case CodeForbidden:
		return http.StatusForbidden
	case CodeNotFound:
		return http.StatusNotFound
	case CodeValidation:
		return http.StatusBadRequest
	case CodeConflict:
		return http.StatusConflict
	default:
		return http.StatusInternalServerError
	}
}
