package errors

import (
	"context"
	"errors"
	"fmt"
	"testing"

	"golang.org/x/sys/unix"
)

func TestError_Error(t *testing.T) {
	tests := []struct {
		name     string
		err      *Error
		expected string
	}{
		{
			name:     "error without cause",
			err:      &Error{Kind: KindInvalidArgument, Message: "invalid interface name"},
			expected: "[InvalidArgument] invalid interface name",
		},
		{
			name:     "error with cause",
			err:      Wrap(KindKernelRejection, "failed to add route", errors.New("file exists")),
			expected: "[KernelRejection] failed to add route: file exists",
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if got := tt.err.Error(); got != tt.expected {
				t.Errorf("Error() = %v, want %v", got, tt.expected)
			}
		})
	}
}

func TestError_Unwrap(t *testing.T) {
	cause := errors.New("underlying error")
	err := Wrap(KindInternal, "wrapper", cause)

	if unwrapped := err.Unwrap(); unwrapped != cause {
		t.Errorf("Unwrap() = %v, want %v", unwrapped, cause)
	}
}

func TestError_Is(t *testing.T) {
	err1 := &Error{Kind: KindTimeout, Message: "test error"}
	err2 := &Error{Kind: KindTimeout, Message: "another error"}
	err3 := &Error{Kind: KindInternal, Message: "internal error"}

	if !err1.Is(err2) {
		t.Errorf("Expected errors with same kind to match")
	}

	if err1.Is(err3) {
		t.Errorf("Expected errors with different kinds to not match")
	}

	wrapped := fmt.Errorf("outer: %w", err1)
	if !errors.Is(wrapped, &Error{Kind: KindTimeout}) {
		t.Errorf("Expected errors.Is to see through wrapping")
	}
}

func TestKind_Status(t *testing.T) {
	kinds := []Kind{
		KindInvalidArgument,
		KindPermissionDenied,
		KindVerificationFailure,
		KindTimeout,
		KindNotSupported,
		KindKernelRejection,
		KindInternal,
	}

	seen := make(map[int]Kind)
	for _, k := range kinds {
		status := k.Status()
		if status == 0 {
			t.Errorf("%s: status must be non-zero", k)
		}
		if other, ok := seen[status]; ok {
			t.Errorf("%s and %s share status %d", k, other, status)
		}
		seen[status] = k
	}
}

func TestKindOf(t *testing.T) {
	tests := []struct {
		name string
		err  error
		want Kind
	}{
		{"nil", nil, ""},
		{"plain error", errors.New("boom"), KindInternal},
		{"direct", NewNotSupported("ovs", nil), KindNotSupported},
		{"wrapped", fmt.Errorf("ctx: %w", NewPermissionDenied("netlink", nil)), KindPermissionDenied},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if got := KindOf(tt.err); got != tt.want {
				t.Errorf("KindOf() = %q, want %q", got, tt.want)
			}
		})
	}
}

func TestFromErrno(t *testing.T) {
	tests := []struct {
		name string
		err  error
		want Kind
	}{
		{"eperm", unix.EPERM, KindPermissionDenied},
		{"eacces", fmt.Errorf("open: %w", unix.EACCES), KindPermissionDenied},
		{"eopnotsupp", unix.EOPNOTSUPP, KindNotSupported},
		{"deadline", context.DeadlineExceeded, KindTimeout},
		{"etimedout", unix.ETIMEDOUT, KindTimeout},
		{"eexist", unix.EEXIST, KindKernelRejection},
		{"einval", unix.EINVAL, KindKernelRejection},
		{"plain", errors.New("weird"), KindInternal},
		{"keeps kind", NewVerificationFailure("eth0", nil), KindVerificationFailure},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got := FromErrno("op", tt.err)
			if KindOf(got) != tt.want {
				t.Errorf("FromErrno() kind = %q, want %q", KindOf(got), tt.want)
			}
		})
	}

	if FromErrno("op", nil) != nil {
		t.Errorf("FromErrno(nil) should be nil")
	}
}

func TestEnsure(t *testing.T) {
	if Ensure(nil, "x") != nil {
		t.Fatal("Ensure(nil) should be nil")
	}

	e := Ensure(errors.New("boom"), "wrapping")
	if e.Kind != KindInternal || e.Message != "wrapping" {
		t.Errorf("unexpected ensured error: %+v", e)
	}

	orig := NewTimeout("slow", nil)
	if Ensure(fmt.Errorf("w: %w", orig), "x") != orig {
		t.Errorf("Ensure should return the existing *Error")
	}
}
