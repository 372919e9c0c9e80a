// Package apperr defines the error taxonomy shared by every HTTP handler.
package apperr

import (
	"errors"
	"fmt"
	"net/http"

	"github.com/go-playground/validator/v10"
)

// Code is the machine-readable error code carried in the response envelope.
type Code string

const (
	CodeValidation   Code = "VALIDATION_ERROR"
	CodeNotFound     Code = "NOT_FOUND"
	CodeConflict     Code = "CONFLICT"
	CodeUnauthorized Code = "UNAUTHORIZED"
	CodeForbidden    Code = "FORBIDDEN"
	CodeInternal     Code = "INTERNAL_ERROR"
)

// Error is an error that knows how it should be rendered over HTTP.
type Error struct {
	Code    Code
	Message string
	Details []string
	Err     error
}

func (e *Error) Error() string {
	if e.Err != nil {
		return e.Message + ": " + e.Err.Error()
	}
	return e.Message
}

func (e *Error) Unwrap() error { return e.Err }

// Status maps the error code to an HTTP status.
func (e *Error) Status() int {
	switch e.Code {
	case CodeValidation:
		return http.StatusBadRequest
	case CodeNotFound:
		return http.StatusNotFound
	case CodeConflict:
		return http.StatusConflict
	case CodeUnauthorized:
		return http.StatusUnauthorized
	case CodeForbidden:
		return http.StatusForbidden
	default:
		return http.StatusInternalServerError
	}
}

func Validation(msg string, details ...string) *Error {
	return &Error{Code: CodeValidation, Message: msg, Details: details}
}

func NotFound(msg string) *Error { return &Error{Code: CodeNotFound, Message: msg} }

func Conflict(msg string) *Error { return &Error{Code: CodeConflict, Message: msg} }

func Unauthorized(msg string) *Error { return &Error{Code: CodeUnauthorized, Message: msg} }

func Forbidden(msg string) *Error { return &Error{Code: CodeForbidden, Message: msg} }

// Internal wraps an unexpected error. The wrapped error is logged, never sent to clients.
func Internal(msg string, err error) *Error {
	return &Error{Code: CodeInternal, Message: msg, Err: err}
}

// Wrap attaches a cause to an existing error kind.
func (e *Error) Wrap(err error) *Error {
	cp := *e
	cp.Err = err
	return &cp
}

// From converts any error into an *Error. Unknown errors become internal errors.
func From(err error) *Error {
	var ae *Error
	if errors.As(err, &ae) {
		return ae
	}
	var ve validator.ValidationErrors
	if errors.As(err, &ve) {
		return FromValidation(ve)
	}
	return Internal("internal server error", err)
}

// FromValidation turns validator field errors into a validation error with one detail per field.
func FromValidation(ve validator.ValidationErrors) *Error {
	details := make([]string, 0, len(ve))
	for _, fe := range ve {
		if fe.Param() != "" {
			details = append(details, fmt.Sprintf("%s: failed %s=%s", fe.Field(), fe.Tag(), fe.Param()))
			continue
		}
		details = append(details, fmt.Sprintf("%s: failed %s", fe.Field(), fe.Tag()))
	}
	return Validation("invalid request", details...)
}

// Is reports whether err carries the given code.
func Is(err error, code Code) bool {
	var ae *Error
	return errors.As(err, &ae) && ae.Code == code
}

// Binding converts a request binding failure into a validation error.
func Binding(err error) *Error {
	var ve validator.ValidationErrors
	if errors.As(err, &ve) {
		return FromValidation(ve)
	}
	return Validation("invalid request body", err.Error())
}
