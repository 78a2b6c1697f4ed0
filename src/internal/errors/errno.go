package errors

import (
	"context"
	stderrors "errors"
	"fmt"

	"golang.org/x/sys/unix"
)

// FromErrno classifies a kernel or syscall error into the taxonomy.
// Errors that already carry a kind are returned unchanged.
func FromErrno(op string, err error) error {
	if err == nil {
		return nil
	}

	var e *Error
	if stderrors.As(err, &e) {
		return err
	}

	switch {
	case stderrors.Is(err, context.DeadlineExceeded), stderrors.Is(err, unix.ETIMEDOUT):
		return NewTimeout(op, err)
	case stderrors.Is(err, context.Canceled):
		return NewTimeout(fmt.Sprintf("%s: cancelled", op), err)
	case stderrors.Is(err, unix.EPERM), stderrors.Is(err, unix.EACCES):
		return NewPermissionDenied(op, err)
	case stderrors.Is(err, unix.EOPNOTSUPP),
		stderrors.Is(err, unix.EAFNOSUPPORT),
		stderrors.Is(err, unix.EPROTONOSUPPORT):
		return NewNotSupported(op, err)
	}

	var errno unix.Errno
	if stderrors.As(err, &errno) {
		return NewKernelRejection(op, err)
	}
	return NewInternal(op, err)
}
