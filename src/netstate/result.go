package netstate

import (
	"encoding/json"
	stderrors "errors"

	"github.com/maksimkurb/netstate/src/internal/engine"
	"github.com/maksimkurb/netstate/src/internal/errors"
)

// Flag bits accepted by Retrieve and Apply. Bit 0 is reserved and ignored.
const (
	FlagNone       uint32 = 0
	flagReserved   uint32 = 1 << 0
	FlagKernelOnly uint32 = 1 << 1
)

// ParseFlags converts the ABI bitset into engine flags. Unknown bits are an
// InvalidArgument error.
func ParseFlags(bits uint32) (engine.Flags, error) {
	if unknown := bits &^ (flagReserved | FlagKernelOnly); unknown != 0 {
		return engine.Flags{}, errors.Newf(errors.KindInvalidArgument, "unknown flag bits 0x%x", unknown)
	}
	return engine.Flags{KernelOnly: bits&FlagKernelOnly != 0}, nil
}

// Status is the outcome code of a call: 0 on success, otherwise the code of
// the error kind.
type Status int

const (
	StatusPass                Status = 0
	StatusInvalidArgument     Status = 1
	StatusPermissionDenied    Status = 2
	StatusVerificationFailure Status = 3
	StatusTimeout             Status = 4
	StatusNotSupported        Status = 5
	StatusKernelRejection     Status = 6
	StatusInternal            Status = 7
)

// Result is the outcome of a Retrieve or Apply call.
type Result struct {
	Status Status
	// State is the JSON state document returned by Retrieve.
	State string
	// Log lists the messages recorded during the call, in order.
	Log []string
	// ErrKind and ErrMsg are set when Status is not StatusPass.
	ErrKind string
	ErrMsg  string
}

// LogJSON encodes the log as a JSON array of strings.
func (r *Result) LogJSON() string {
	entries := r.Log
	if entries == nil {
		entries = []string{}
	}
	data, err := json.Marshal(entries)
	if err != nil {
		return "[]"
	}
	return string(data)
}

// Err returns the failure as an error, or nil on success.
func (r *Result) Err() error {
	if r.Status == StatusPass {
		return nil
	}
	return errors.New(errors.Kind(r.ErrKind), r.ErrMsg)
}

func failure(err error, entries []string) *Result {
	kind := errors.KindOf(err)
	msg := err.Error()
	var e *errors.Error
	if stderrors.As(err, &e) {
		msg = e.Detail()
	}
	if msg == "" {
		msg = string(kind)
	}
	if entries == nil {
		entries = []string{}
	}
	return &Result{
		Status:  Status(kind.Status()),
		Log:     entries,
		ErrKind: string(kind),
		ErrMsg:  msg,
	}
}
