// Package api
// Author: momentics <momentics@gmail.com>
//
// Result codes and structured errors shared by command buffers, packets and pools.

package api

import (
	"errors"
	"fmt"
)

// ErrorCode represents specific error conditions in the library.
type ErrorCode int

const (
	ErrCodeOK ErrorCode = iota
	ErrCodeInvalidArgument
	ErrCodeInvalidState
	ErrCodeOutOfMemory
	ErrCodeOutOfBounds
	ErrCodeUnsupported
	ErrCodeFailed
)

func (c ErrorCode) String() string {
	switch c {
	case ErrCodeOK:
		return "ok"
	case ErrCodeInvalidArgument:
		return "invalid argument"
	case ErrCodeInvalidState:
		return "invalid state"
	case ErrCodeOutOfMemory:
		return "out of memory"
	case ErrCodeOutOfBounds:
		return "out of bounds"
	case ErrCodeUnsupported:
		return "unsupported"
	default:
		return "failed"
	}
}

// Common errors used across the library. Every *Error matches the sentinel of
// its code under errors.Is.
var (
	ErrInvalidArgument = NewError(ErrCodeInvalidArgument, "invalid argument")
	ErrInvalidState    = NewError(ErrCodeInvalidState, "invalid state")
	ErrOutOfMemory     = NewError(ErrCodeOutOfMemory, "out of memory")
	ErrOutOfBounds     = NewError(ErrCodeOutOfBounds, "out of bounds")
	ErrUnsupported     = NewError(ErrCodeUnsupported, "operation not supported")
	ErrFailed          = NewError(ErrCodeFailed, "operation failed")

	// ErrStaleRef is returned when a pool reference outlived its Recycle.
	ErrStaleRef = newRefinedError(ErrCodeInvalidState, "stale buffer reference")
	// ErrOverrun reports a damaged sentinel word past a reserved region.
	ErrOverrun = newRefinedError(ErrCodeFailed, "command buffer overrun")
	// ErrUninitialized reports use of a manager after Uninitialize.
	ErrUninitialized = newRefinedError(ErrCodeInvalidState, "manager not initialized")
)

// Error represents a structured error with code and context.
type Error struct {
	Code    ErrorCode
	Message string
	Context map[string]any

	// refined names the specific sentinel an error derives from. Empty for
	// errors that carry only a code.
	refined string
}

// Error implements the error interface.
func (e *Error) Error() string {
	if len(e.Context) == 0 {
		return e.Message
	}
	return fmt.Sprintf("%s (context: %+v)", e.Message, e.Context)
}

// Is reports whether target is an *Error carrying the same code. A refined
// target such as ErrStaleRef matches only errors derived from it, while the
// code sentinels match every error of their code.
func (e *Error) Is(target error) bool {
	var t *Error
	if !errors.As(target, &t) {
		return false
	}
	return t.Code == e.Code && (t.refined == "" || t.refined == e.refined)
}

// NewError creates a new structured error.
func NewError(code ErrorCode, message string) *Error {
	return &Error{
		Code:    code,
		Message: message,
	}
}

func newRefinedError(code ErrorCode, message string) *Error {
	return &Error{Code: code, Message: message, refined: message}
}

// Errorf creates a structured error with a formatted message.
func Errorf(code ErrorCode, format string, args ...any) *Error {
	return NewError(code, fmt.Sprintf(format, args...))
}

// WithContext returns a copy of the error with an additional context entry.
// Sentinels are shared, so the receiver is never mutated.
func (e *Error) WithContext(key string, value any) *Error {
	ctx := make(map[string]any, len(e.Context)+1)
	for k, v := range e.Context {
		ctx[k] = v
	}
	ctx[key] = value
	return &Error{Code: e.Code, Message: e.Message, Context: ctx, refined: e.refined}
}

// CodeOf extracts the ErrorCode of err. Nil maps to ErrCodeOK and foreign
// errors to ErrCodeFailed.
func CodeOf(err error) ErrorCode {
	if err == nil {
		return ErrCodeOK
	}
	var e *Error
	if errors.As(err, &e) {
		return e.Code
	}
	return ErrCodeFailed
}
