package device

import (
	"errors"
	"fmt"
)

// ErrorCode categorizes store errors.
type ErrorCode string

const (
	// ErrCodeInvalidArgument indicates a seek target or whence outside the
	// legal envelope, or a call on a session the store cannot accept.
	ErrCodeInvalidArgument ErrorCode = "INVALID_ARGUMENT"

	// ErrCodeOutOfSpace indicates a write with no room left at the cursor.
	ErrCodeOutOfSpace ErrorCode = "OUT_OF_SPACE"

	// ErrCodeFault indicates the caller's memory rejected the copy.
	ErrCodeFault ErrorCode = "FAULT"
)

// Error is the error type returned by every Store operation.
//
// Errors are scoped to the call that produced them. The store's buffer and
// cursors are never modified on an error path.
type Error struct {
	// Code identifies the error kind.
	Code ErrorCode

	// Op is the operation that failed ("seek", "read", ...).
	Op string

	// Message is a human-readable description.
	Message string

	// Err is the underlying cause, if any.
	Err error

	// kind marks the package-level sentinels that match by Code.
	kind bool
}

// Sentinels for errors.Is. Any *Error with the same Code matches.
var (
	ErrInvalidArgument = &Error{Code: ErrCodeInvalidArgument, Message: "invalid argument", kind: true}
	ErrOutOfSpace      = &Error{Code: ErrCodeOutOfSpace, Message: "no space left on device", kind: true}
	ErrFault           = &Error{Code: ErrCodeFault, Message: "bad address", kind: true}
)

// NewError creates an Error with a formatted message.
func NewError(code ErrorCode, op, format string, args ...any) *Error {
	return &Error{
		Code:    code,
		Op:      op,
		Message: fmt.Sprintf(format, args...),
	}
}

// Error implements the error interface.
func (e *Error) Error() string {
	msg := fmt.Sprintf("%s: %s", e.Code, e.Message)
	if e.Op != "" {
		msg = e.Op + ": " + msg
	}
	if e.Err != nil {
		msg += ": " + e.Err.Error()
	}
	return msg
}

// Unwrap returns the underlying cause.
func (e *Error) Unwrap() error {
	return e.Err
}

// Is matches the kind sentinels by Code. Other targets compare by identity.
func (e *Error) Is(target error) bool {
	t, ok := target.(*Error)
	if !ok || !t.kind {
		return false
	}
	return t.Code == e.Code
}

// CodeOf returns the ErrorCode carried by err, or "" if err is not a store error.
func CodeOf(err error) ErrorCode {
	var e *Error
	if errors.As(err, &e) {
		return e.Code
	}
	return ""
}

// IsInvalidArgument returns true if err is an INVALID_ARGUMENT error.
func IsInvalidArgument(err error) bool {
	return CodeOf(err) == ErrCodeInvalidArgument
}

// IsOutOfSpace returns true if err is an OUT_OF_SPACE error.
func IsOutOfSpace(err error) bool {
	return CodeOf(err) == ErrCodeOutOfSpace
}

// IsFault returns true if err is a FAULT error.
func IsFault(err error) bool {
	return CodeOf(err) == ErrCodeFault
}

// faultError wraps a boundary copy failure. A FAULT coming back from the
// boundary is propagated unchanged.
func faultError(op string, err error) error {
	if IsFault(err) {
		return err
	}
	return &Error{
		Code:    ErrCodeFault,
		Op:      op,
		Message: "copy across caller boundary failed",
		Err:     err,
	}
}
