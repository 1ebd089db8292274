// Package sdkerr provides the structured error type shared by every SDK
// subsystem, so a caller can errors.Is/As against a single set of error
// codes regardless of which subsystem raised them.
package sdkerr

import (
	"errors"
	"fmt"
)

// Code represents a high-level error category.
type Code string

const (
	CodeInvalidInput   Code = "invalid input"
	CodeNotBooted      Code = "not booted"
	CodeBusy           Code = "busy"
	CodeNoMoreData     Code = "no more data"
	CodeStorageError   Code = "storage error"
	CodeIntegrityError Code = "integrity error"
	CodeTruncated      Code = "truncated"
)

// Error is a structured SDK error with enough context to diagnose a
// failure without string-matching the message.
type Error struct {
	Op    string // operation that failed, e.g. "coredump.Capture"
	Code  Code
	Msg   string
	Inner error
}

func (e *Error) Error() string {
	msg := e.Msg
	if msg == "" {
		msg = string(e.Code)
	}
	if e.Op != "" {
		return fmt.Sprintf("diagsdk: %s: %s (op=%s)", e.Code, msg, e.Op)
	}
	return fmt.Sprintf("diagsdk: %s: %s", e.Code, msg)
}

func (e *Error) Unwrap() error { return e.Inner }

func (e *Error) Is(target error) bool {
	te, ok := target.(*Error)
	if !ok {
		return false
	}
	return e.Code == te.Code
}

// New creates a structured error with no wrapped cause.
func New(op string, code Code, msg string) *Error {
	return &Error{Op: op, Code: code, Msg: msg}
}

// Wrap attaches op/code context to an existing error.
func Wrap(op string, code Code, inner error) *Error {
	if inner == nil {
		return nil
	}
	return &Error{Op: op, Code: code, Msg: inner.Error(), Inner: inner}
}

// Is reports whether err carries the given code.
func Is(err error, code Code) bool {
	var se *Error
	if errors.As(err, &se) {
		return se.Code == code
	}
	return false
}
