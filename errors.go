package diagsdk

import "github.com/memfault/diagsdk/internal/sdkerr"

// Error is the structured error type every SDK call returns failures as.
// It is a type alias (not a wrapper) so callers can errors.As against
// either diagsdk.Error or internal/sdkerr.Error interchangeably.
type Error = sdkerr.Error

// Code categorizes an Error (SPEC_FULL.md §7).
type Code = sdkerr.Code

// Error codes exposed to callers.
const (
	CodeInvalidInput   = sdkerr.CodeInvalidInput
	CodeNotBooted      = sdkerr.CodeNotBooted
	CodeBusy           = sdkerr.CodeBusy
	CodeNoMoreData     = sdkerr.CodeNoMoreData
	CodeStorageError   = sdkerr.CodeStorageError
	CodeIntegrityError = sdkerr.CodeIntegrityError
	CodeTruncated      = sdkerr.CodeTruncated
)

// NewError creates a structured error with no wrapped cause.
func NewError(op string, code Code, msg string) *Error {
	return sdkerr.New(op, code, msg)
}

// WrapError attaches op/code context to an existing error.
func WrapError(op string, code Code, inner error) *Error {
	return sdkerr.Wrap(op, code, inner)
}

// IsCode reports whether err carries the given code.
func IsCode(err error, code Code) bool {
	return sdkerr.Is(err, code)
}
