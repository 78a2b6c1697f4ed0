package engine

import (
	"context"
	"time"

	"github.com/maksimkurb/netstate/src/internal/diff"
	"github.com/maksimkurb/netstate/src/internal/state"
)

// Flags select how a call is carried out.
type Flags struct {
	// KernelOnly bypasses the network-management daemon.
	KernelOnly bool
}

// Backend reads and mutates some entity kinds.
type Backend interface {
	Name() string
	Kinds() []state.Kind
	// Read returns the current state of one kind. The collection for the
	// kind must be non-nil even when empty.
	Read(ctx context.Context, kind state.Kind) (*state.NetworkState, error)
	ApplyOperation(ctx context.Context, op diff.Operation) error
}

// Checkpointer is implemented by backends that can snapshot and restore
// their own configuration.
type Checkpointer interface {
	CreateCheckpoint(ctx context.Context, timeout time.Duration) (string, error)
	RollbackCheckpoint(ctx context.Context, id string) error
	DestroyCheckpoint(ctx context.Context, id string) error
	// ExtendCheckpoint pushes the automatic rollback back by the given
	// duration.
	ExtendCheckpoint(ctx context.Context, id string, by time.Duration) error
}

func handles(b Backend, kind state.Kind) bool {
	for _, k := range b.Kinds() {
		if k == kind {
			return true
		}
	}
	return false
}
