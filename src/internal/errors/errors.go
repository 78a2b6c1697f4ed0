// Package errors provides the error taxonomy of the network state engine.
//
// Every failure surfaced by the engine carries one of a small, stable set of
// kinds. The kind string and its numeric status code are part of the public
// ABI and must not change between releases.
package errors

import (
	stderrors "errors"
	"fmt"
)

// Kind represents a category of error that can occur while reading or
// applying network state.
type Kind string

const (
	// KindInvalidArgument indicates a malformed or inconsistent desired state.
	KindInvalidArgument Kind = "InvalidArgument"

	// KindPermissionDenied indicates missing privileges for a kernel or daemon request.
	KindPermissionDenied Kind = "PermissionDenied"

	// KindVerificationFailure indicates the post-apply state did not match the desired state.
	KindVerificationFailure Kind = "VerificationFailure"

	// KindTimeout indicates a query or apply step exceeded its bound.
	KindTimeout Kind = "Timeout"

	// KindNotSupported indicates an entity kind or feature the backend cannot handle.
	KindNotSupported Kind = "NotSupported"

	// KindKernelRejection indicates the kernel refused a request.
	KindKernelRejection Kind = "KernelRejection"

	// KindInternal indicates an unexpected internal error.
	KindInternal Kind = "Internal"
)

// Status returns the ABI status code of the kind. Zero is reserved for success.
func (k Kind) Status() int {
	switch k {
	case KindInvalidArgument:
		return 1
	case KindPermissionDenied:
		return 2
	case KindVerificationFailure:
		return 3
	case KindTimeout:
		return 4
	case KindNotSupported:
		return 5
	case KindKernelRejection:
		return 6
	default:
		return 7
	}
}

// Error represents an engine error with a kind and optional cause.
type Error struct {
	Kind    Kind
	Message string
	Cause   error
}

// Error implements the error interface.
func (e *Error) Error() string {
	if e.Cause != nil {
		return fmt.Sprintf("[%s] %s: %v", e.Kind, e.Message, e.Cause)
	}
	return fmt.Sprintf("[%s] %s", e.Kind, e.Message)
}

// Unwrap returns the underlying cause of the error for errors.Is and errors.As support.
func (e *Error) Unwrap() error {
	return e.Cause
}

// Is checks if the error matches the target error kind.
func (e *Error) Is(target error) bool {
	if t, ok := target.(*Error); ok {
		return e.Kind == t.Kind
	}
	return false
}

// Detail returns the message followed by the cause, without the kind prefix.
func (e *Error) Detail() string {
	if e.Cause != nil {
		return fmt.Sprintf("%s: %v", e.Message, e.Cause)
	}
	return e.Message
}

// New creates a new error with the specified kind and message.
func New(kind Kind, message string) *Error {
	return &Error{
		Kind:    kind,
		Message: message,
	}
}

// Newf creates a new error with a formatted message.
func Newf(kind Kind, format string, args ...interface{}) *Error {
	return New(kind, fmt.Sprintf(format, args...))
}

// Wrap creates a new error wrapping an existing error.
func Wrap(kind Kind, message string, cause error) *Error {
	return &Error{
		Kind:    kind,
		Message: message,
		Cause:   cause,
	}
}

// NewInvalidArgument creates a new invalid argument error.
func NewInvalidArgument(message string, cause error) *Error {
	return Wrap(KindInvalidArgument, message, cause)
}

// NewPermissionDenied creates a new permission error.
func NewPermissionDenied(message string, cause error) *Error {
	return Wrap(KindPermissionDenied, message, cause)
}

// NewVerificationFailure creates a new verification error.
func NewVerificationFailure(message string, cause error) *Error {
	return Wrap(KindVerificationFailure, message, cause)
}

// NewTimeout creates a new timeout error.
func NewTimeout(message string, cause error) *Error {
	return Wrap(KindTimeout, message, cause)
}

// NewNotSupported creates a new not supported error.
func NewNotSupported(message string, cause error) *Error {
	return Wrap(KindNotSupported, message, cause)
}

// NewKernelRejection creates a new kernel rejection error.
func NewKernelRejection(message string, cause error) *Error {
	return Wrap(KindKernelRejection, message, cause)
}

// NewInternal creates a new internal error.
func NewInternal(message string, cause error) *Error {
	return Wrap(KindInternal, message, cause)
}

// KindOf returns the kind of the first *Error in the chain.
// Errors that carry no kind are reported as internal.
func KindOf(err error) Kind {
	if err == nil {
		return ""
	}
	var e *Error
	if stderrors.As(err, &e) {
		return e.Kind
	}
	return KindInternal
}

// IsKind reports whether err carries the given kind.
func IsKind(err error, kind Kind) bool {
	return err != nil && KindOf(err) == kind
}

// Ensure converts any error into an *Error, keeping an existing kind.
func Ensure(err error, message string) *Error {
	if err == nil {
		return nil
	}
	var e *Error
	if stderrors.As(err, &e) {
		return e
	}
	return NewInternal(message, err)
}
