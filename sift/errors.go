package sift

import (
	"errors"
	"fmt"
	"strings"
)

type ErrorKind string

const (
	ErrSchema          ErrorKind = "schema"
	ErrUnknownField    ErrorKind = "unknown_field"
	ErrInvalidOperator ErrorKind = "invalid_operator"
	ErrInvalidValue    ErrorKind = "invalid_value"
	ErrMalformed       ErrorKind = "malformed"
	ErrLimitExceeded   ErrorKind = "limit_exceeded"
	ErrSQL             ErrorKind = "sql"
)

// Error is the module-wide error type. Limit errors carry the exceeded
// budget in Limit and the route from the filter root in Path.
type Error struct {
	Kind    ErrorKind
	Message string
	Field   string
	Limit   LimitKind
	Path    []string
	Cause   error
}

func (e *Error) Error() string {
	if e == nil {
		return ""
	}
	base := fmt.Sprintf("%s: %s", e.Kind, e.Message)
	if e.Field != "" {
		base = fmt.Sprintf("%s (field=%s)", base, e.Field)
	}
	if len(e.Path) > 0 {
		base = fmt.Sprintf("%s (at %s)", base, strings.Join(e.Path, "."))
	}
	if e.Cause != nil {
		return fmt.Sprintf("%s: %v", base, e.Cause)
	}
	return base
}

func (e *Error) Unwrap() error {
	return e.Cause
}

func New(kind ErrorKind, msg string) *Error {
	return &Error{Kind: kind, Message: msg}
}

func Wrap(kind ErrorKind, msg string, cause error) *Error {
	return &Error{Kind: kind, Message: msg, Cause: cause}
}

func SchemaError(msg string) *Error {
	return &Error{Kind: ErrSchema, Message: msg}
}

func UnknownFieldError(field string) *Error {
	return &Error{Kind: ErrUnknownField, Message: "unknown field", Field: field}
}

func InvalidOperatorError(field, msg string) *Error {
	return &Error{Kind: ErrInvalidOperator, Field: field, Message: msg}
}

func InvalidValueError(field, msg string) *Error {
	return &Error{Kind: ErrInvalidValue, Field: field, Message: msg}
}

func MalformedError(msg string) *Error {
	return &Error{Kind: ErrMalformed, Message: msg}
}

func IsKind(err error, kind ErrorKind) bool {
	var e *Error
	if errors.As(err, &e) {
		return e.Kind == kind
	}
	return false
}
