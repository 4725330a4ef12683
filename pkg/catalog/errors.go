package catalog

import (
	"errors"
	"fmt"
)

// ErrorKind classifies query errors.
type ErrorKind int

const (
	KindRuntimeError ErrorKind = iota
	KindParseError
	KindTableNotFound
	KindColumnNotFound
	KindTypeError
	KindNotConstant
)

// String returns the name reported to clients alongside the message.
func (k ErrorKind) String() string {
	switch k {
	case KindParseError:
		return "ParseError"
	case KindTableNotFound:
		return "TableNotFoundError"
	case KindColumnNotFound:
		return "ColumnNotFoundError"
	case KindTypeError:
		return "TypeError"
	case KindNotConstant:
		return "NotConstantError"
	default:
		return "RuntimeError"
	}
}

var (
	// ErrParse matches any ParseError via errors.Is.
	ErrParse = &Error{Kind: KindParseError}

	// ErrTableNotFound matches any TableNotFoundError via errors.Is.
	ErrTableNotFound = &Error{Kind: KindTableNotFound}

	// ErrColumnNotFound matches any ColumnNotFoundError via errors.Is.
	ErrColumnNotFound = &Error{Kind: KindColumnNotFound}

	// ErrType matches any TypeError via errors.Is.
	ErrType = &Error{Kind: KindTypeError}

	// ErrNotConstant matches any NotConstantError via errors.Is.
	ErrNotConstant = &Error{Kind: KindNotConstant}
)

// Error is a query error with a kind.
type Error struct {
	Kind    ErrorKind
	Message string
}

// NewError creates an Error with a formatted message.
func NewError(kind ErrorKind, format string, args ...interface{}) *Error {
	return &Error{Kind: kind, Message: fmt.Sprintf(format, args...)}
}

func (e *Error) Error() string {
	return e.Message
}

// Is matches errors of the same kind.
func (e *Error) Is(target error) bool {
	t, ok := target.(*Error)
	return ok && t.Kind == e.Kind
}

// KindOf returns the kind of err, or KindRuntimeError for foreign errors.
func KindOf(err error) ErrorKind {
	var e *Error
	if errors.As(err, &e) {
		return e.Kind
	}
	return KindRuntimeError
}

// ColumnNotFound returns the error raised for an unresolvable column reference.
func ColumnNotFound(name string) *Error {
	return NewError(KindColumnNotFound, "column(s) not found: %s", name)
}

// TableNotFound returns the error raised for an unknown table.
func TableNotFound(name string) *Error {
	return NewError(KindTableNotFound, "table not found: '%s'", name)
}
