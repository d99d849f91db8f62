package callback

import (
	"errors"
	"fmt"
	"strings"
)

// ErrorCode categorizes callback errors.
type ErrorCode string

const (
	// ErrCodeInvalidCallback indicates a construction-time binding failure.
	ErrCodeInvalidCallback ErrorCode = "INVALID_CALLBACK"

	// ErrCodeUnknownScope indicates a scope name that does not resolve.
	ErrCodeUnknownScope ErrorCode = "UNKNOWN_SCOPE"

	// ErrCodeMissingCallback indicates a type or method name that does not
	// resolve inside a known scope.
	ErrCodeMissingCallback ErrorCode = "MISSING_CALLBACK"

	// ErrCodeTargetTypeMismatch indicates a restored receiver that does not
	// satisfy the expected receiver type.
	ErrCodeTargetTypeMismatch ErrorCode = "TARGET_TYPE_MISMATCH"

	// ErrCodeNonPublicCallback indicates a resolved method that is not
	// externally callable.
	ErrCodeNonPublicCallback ErrorCode = "NON_PUBLIC_CALLBACK"

	// ErrCodeChainMismatch indicates two segments of one chain with
	// incompatible callback types.
	ErrCodeChainMismatch ErrorCode = "CHAIN_MISMATCH"

	// ErrCodeMalformedRecord indicates a persisted record whose links or
	// targets are structurally invalid.
	ErrCodeMalformedRecord ErrorCode = "MALFORMED_RECORD"

	// ErrCodeRaiseDepthExceeded indicates an event re-raised itself on the
	// same goroutine beyond the configured depth.
	ErrCodeRaiseDepthExceeded ErrorCode = "RAISE_DEPTH_EXCEEDED"
)

// Error is returned by construction, persistence and event operations.
// All errors are terminal for the operation that raised them.
type Error struct {
	// Code identifies the error category.
	Code ErrorCode

	// Message is a human-readable description.
	Message string

	// Scope, Type and Method identify the callback involved, when known.
	Scope  string
	Type   string
	Method string

	// Entry is the record entry index for persistence errors, -1 otherwise.
	Entry int

	// Err is the underlying cause, if any.
	Err error
}

// Error implements the error interface.
func (e *Error) Error() string {
	var b strings.Builder
	fmt.Fprintf(&b, "%s: %s", e.Code, e.Message)

	var ctx []string
	if e.Entry >= 0 {
		ctx = append(ctx, fmt.Sprintf("entry=%d", e.Entry))
	}
	if e.Scope != "" {
		ctx = append(ctx, "scope="+e.Scope)
	}
	if e.Type != "" {
		ctx = append(ctx, "type="+e.Type)
	}
	if e.Method != "" {
		ctx = append(ctx, "method="+e.Method)
	}
	if len(ctx) > 0 {
		fmt.Fprintf(&b, " (%s)", strings.Join(ctx, ", "))
	}
	if e.Err != nil {
		fmt.Fprintf(&b, ": %v", e.Err)
	}
	return b.String()
}

// Unwrap returns the underlying cause.
func (e *Error) Unwrap() error {
	return e.Err
}

// NewError creates an Error with no entry context.
func NewError(code ErrorCode, format string, args ...any) *Error {
	return &Error{Code: code, Message: fmt.Sprintf(format, args...), Entry: -1}
}

// WithMethod sets the callback identity and returns e.
func (e *Error) WithMethod(id MethodID) *Error {
	e.Scope = id.Scope
	e.Type = id.Type
	e.Method = id.Name
	return e
}

// AtEntry sets the record entry index and returns e.
func (e *Error) AtEntry(i int) *Error {
	e.Entry = i
	return e
}

// Wrap sets the underlying cause and returns e.
func (e *Error) Wrap(err error) *Error {
	e.Err = err
	return e
}

// HasCode reports whether err, or any error it wraps, is an *Error with
// the given code.
func HasCode(err error, code ErrorCode) bool {
	var ce *Error
	if errors.As(err, &ce) {
		return ce.Code == code
	}
	return false
}

// CodeOf returns the code of the first *Error in err's chain, or "".
func CodeOf(err error) ErrorCode {
	var ce *Error
	if errors.As(err, &ce) {
		return ce.Code
	}
	return ""
}
