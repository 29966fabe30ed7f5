// Package domainerrors provides coded errors shared by services and transports.
//
// Services return *Error values carrying a Code; transports translate the code
// into a status with ToHTTPStatus. Validation-style errors may also carry a list
// of field-level problems so a caller can highlight every offending field at once.
package domainerrors

import (
	"errors"
	"net/http"
	"strings"
)

// Code classifies a domain error.
type Code string

const (
	CodeInternal           Code = "internal_error"
	CodeBadRequest         Code = "bad_request"
	CodeValidation         Code = "validation_error"
	CodeInvalidInput       Code = "invalid_input"
	CodeReferenceIntegrity Code = "reference_integrity_error"
	CodeInvariantViolation Code = "invariant_violation"
	CodeNoOpTransition     Code = "no_op_transition"
	CodeNotFound           Code = "not_found"
	CodeConflict           Code = "conflict"
	CodeAllocationFailure  Code = "allocation_failure"
	CodeUnauthorized       Code = "unauthorized"
	CodeForbidden          Code = "forbidden"
	CodeTimeout            Code = "timeout"
	CodeUnavailable        Code = "unavailable"
)

// Field describes one problem at a field path, e.g. "publications[2].pmid".
type Field struct {
	Path       string `json:"path"`
	Reason     string `json:"reason"`
	Identifier string `json:"identifier,omitempty"`
}

// Error is a coded domain error.
type Error struct {
	Code    Code
	Message string
	Fields  []Field
	Err     error
}

func (e *Error) Error() string {
	if len(e.Fields) == 0 {
		if e.Err != nil {
			return e.Message + ": " + e.Err.Error()
		}
		return e.Message
	}
	parts := make([]string, 0, len(e.Fields))
	for _, f := range e.Fields {
		parts = append(parts, f.Path+": "+f.Reason)
	}
	return e.Message + " (" + strings.Join(parts, "; ") + ")"
}

func (e *Error) Unwrap() error {
	return e.Err
}

// Is matches another *Error with the same code, so errors.Is works against
// freshly constructed values.
func (e *Error) Is(target error) bool {
	var t *Error
	if !errors.As(target, &t) {
		return false
	}
	return t.Code == e.Code
}

// New creates an error with the given code.
func New(code Code, msg string) *Error {
	return &Error{Code: code, Message: msg}
}

// Wrap attaches a code and message to an underlying error.
func Wrap(err error, code Code, msg string) *Error {
	return &Error{Code: code, Message: msg, Err: err}
}

// WithFields creates an error carrying field-level problems.
func WithFields(code Code, msg string, fields []Field) *Error {
	return &Error{Code: code, Message: msg, Fields: fields}
}

// HasCode reports whether err, or any error it wraps, is a domain error with code.
func HasCode(err error, code Code) bool {
	var de *Error
	for err != nil {
		if !errors.As(err, &de) {
			return false
		}
		if de.Code == code {
			return true
		}
		err = de.Err
	}
	return false
}

// Is is an alias for HasCode.
func Is(err error, code Code) bool {
	return HasCode(err, code)
}

// CodeOf returns the outermost domain code, or CodeInternal for foreign errors.
func CodeOf(err error) Code {
	var de *Error
	if errors.As(err, &de) {
		return de.Code
	}
	return CodeInternal
}

// FieldsOf returns the field problems of the outermost domain error.
func FieldsOf(err error) []Field {
	var de *Error
	if errors.As(err, &de) {
		return de.Fields
	}
	return nil
}

// ToHTTPStatus maps a code to an HTTP status.
func ToHTTPStatus(code Code) int {
	switch code {
	case CodeBadRequest, CodeInvalidInput:
		return http.StatusBadRequest
	case CodeValidation, CodeReferenceIntegrity, CodeInvariantViolation:
		return http.StatusUnprocessableEntity
	case CodeNotFound:
		return http.StatusNotFound
	case CodeConflict, CodeNoOpTransition:
		return http.StatusConflict
	case CodeUnauthorized:
		return http.StatusUnauthorized
	case CodeForbidden:
		return http.StatusForbidden
	case CodeTimeout:
		return http.StatusGatewayTimeout
	case CodeUnavailable, CodeAllocationFailure:
		return http.StatusServiceUnavailable
	default:
		return http.StatusInternalServerError
	}
}
