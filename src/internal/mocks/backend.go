// Package mocks provides mock implementations for testing.
//
// This package should ONLY be imported in test files (_test.go).
// The Go toolchain will automatically exclude this package from production builds
// since it's not imported in any production code.
package mocks

import (
	"context"
	"fmt"
	"sync"
	"time"

	"github.com/maksimkurb/netstate/src/internal/diff"
	"github.com/maksimkurb/netstate/src/internal/state"
)

// Backend is an in-memory engine backend. Operations are applied to State
// the way a real backend would apply them to the system.
//
// Example usage:
//
//	kernel := mocks.NewBackend("kernel", current, state.KindInterfaces, state.KindRoutes)
//	kernel.FailOn = map[int]error{3: errors.NewKernelRejection("boom", nil)}
//	eng, _ := engine.New(cfg, []engine.Backend{kernel}, nil)
type Backend struct {
	// BackendName is returned by Name.
	BackendName string
	// Handled is returned by Kinds.
	Handled []state.Kind

	// State is the simulated system state.
	State *state.NetworkState

	// FailOn fails the n-th ApplyOperation call (1-based) with the error.
	// The failed operation leaves State untouched.
	FailOn map[int]error

	// ConvergeAfterReads makes reads return the state from before the first applied
	// operation for that many reads after it. -1 never shows the changes.
	ConvergeAfterReads int

	// ReadFunc is called by Read if not nil.
	ReadFunc func(ctx context.Context, kind state.Kind) (*state.NetworkState, error)

	// ApplyFunc is called by ApplyOperation before State is changed. A
	// non-nil error fails the operation.
	ApplyFunc func(ctx context.Context, op diff.Operation) error

	// Track calls for verification in tests
	Reads      map[state.Kind]int
	ApplyCalls int
	Applied    []diff.Operation

	mu        sync.Mutex
	stale     *state.NetworkState
	staleLeft int
}

// NewBackend creates a backend named name handling kinds, starting from a
// copy of initial.
func NewBackend(name string, initial *state.NetworkState, kinds ...state.Kind) *Backend {
	if initial == nil {
		initial = state.New()
	}
	return &Backend{
		BackendName: name,
		Handled:     kinds,
		State:       initial.Clone(),
		Reads:       make(map[state.Kind]int),
	}
}

// Name returns the backend name.
func (b *Backend) Name() string {
	return b.BackendName
}

// Kinds returns the kinds the backend handles.
func (b *Backend) Kinds() []state.Kind {
	return b.Handled
}

// Read returns a copy of one kind of the simulated state.
func (b *Backend) Read(ctx context.Context, kind state.Kind) (*state.NetworkState, error) {
	b.mu.Lock()
	if b.Reads == nil {
		b.Reads = make(map[state.Kind]int)
	}
	b.Reads[kind]++
	src := b.State
	if b.stale != nil && (b.ConvergeAfterReads < 0 || b.staleLeft > 0) {
		src = b.stale
		b.staleLeft--
	}
	doc := only(src.Clone(), kind)
	b.mu.Unlock()

	if b.ReadFunc != nil {
		return b.ReadFunc(ctx, kind)
	}
	return doc, nil
}

// ApplyOperation applies op to the simulated state.
func (b *Backend) ApplyOperation(ctx context.Context, op diff.Operation) error {
	b.mu.Lock()
	b.ApplyCalls++
	n := b.ApplyCalls
	b.Applied = append(b.Applied, op)
	if b.stale == nil && b.ConvergeAfterReads != 0 {
		b.stale = b.State.Clone()
		b.staleLeft = b.ConvergeAfterReads
	}
	failure := b.FailOn[n]
	b.mu.Unlock()

	if failure != nil {
		return failure
	}
	if b.ApplyFunc != nil {
		if err := b.ApplyFunc(ctx, op); err != nil {
			return err
		}
	}

	b.mu.Lock()
	defer b.mu.Unlock()
	switch op.Action {
	case diff.ActionDelete:
		b.State.Remove(op.Kind, op.ID)
	case diff.ActionModify:
		b.State.Put(settle(state.Merge(op.Payload, b.State.Lookup(op.Kind, op.ID))))
	default:
		b.State.Put(settle(state.CloneEntity(op.Payload)))
	}
	b.State.Sort()
	return nil
}

// Snapshot returns a copy of the simulated state.
func (b *Backend) Snapshot() *state.NetworkState {
	b.mu.Lock()
	defer b.mu.Unlock()
	return b.State.Clone()
}

// settle makes a written record read back the way the kernel reports it:
// a port without a controller has no controller field.
func settle(e state.Entity) state.Entity {
	if iface, ok := e.(*state.Interface); ok && iface.Controller != nil && *iface.Controller == "" {
		iface.Controller = nil
	}
	return e
}

// only keeps the collection of kind, always present.
func only(s *state.NetworkState, kind state.Kind) *state.NetworkState {
	out := &state.NetworkState{}
	switch kind {
	case state.KindInterfaces:
		out.Interfaces = append([]*state.Interface{}, s.Interfaces...)
	case state.KindRoutes:
		out.Routes = append([]*state.Route{}, s.Routes...)
	case state.KindRouteRules:
		out.RouteRules = append([]*state.RouteRule{}, s.RouteRules...)
	case state.KindDNS:
		out.DNS = s.DNS
		if out.DNS == nil {
			out.DNS = &state.DNSResolver{Config: &state.DNSConfig{Servers: []string{}, Search: []string{}}}
		}
	}
	return out
}

// CheckpointBackend is a Backend that can snapshot and restore its state.
type CheckpointBackend struct {
	*Backend

	// CreateErr fails CreateCheckpoint if not nil.
	CreateErr error

	Created    int
	Extended   int
	RolledBack int
	Destroyed  int

	checkpoints map[string]*state.NetworkState
}

// NewCheckpointBackend wraps a new Backend with checkpoint support.
func NewCheckpointBackend(name string, initial *state.NetworkState, kinds ...state.Kind) *CheckpointBackend {
	return &CheckpointBackend{
		Backend:     NewBackend(name, initial, kinds...),
		checkpoints: make(map[string]*state.NetworkState),
	}
}

// CreateCheckpoint snapshots the simulated state.
func (c *CheckpointBackend) CreateCheckpoint(ctx context.Context, timeout time.Duration) (string, error) {
	if c.CreateErr != nil {
		return "", c.CreateErr
	}
	c.Created++
	id := fmt.Sprintf("/checkpoint/%d", c.Created)
	c.checkpoints[id] = c.Snapshot()
	return id, nil
}

// RollbackCheckpoint restores the snapshot taken by CreateCheckpoint.
func (c *CheckpointBackend) RollbackCheckpoint(ctx context.Context, id string) error {
	snap, ok := c.checkpoints[id]
	if !ok {
		return fmt.Errorf("unknown checkpoint %s", id)
	}
	c.RolledBack++
	c.mu.Lock()
	c.State = snap.Clone()
	c.mu.Unlock()
	delete(c.checkpoints, id)
	return nil
}

// ExtendCheckpoint counts timeout extensions of a live snapshot.
func (c *CheckpointBackend) ExtendCheckpoint(ctx context.Context, id string, by time.Duration) error {
	if _, ok := c.checkpoints[id]; !ok {
		return fmt.Errorf("unknown checkpoint %s", id)
	}
	c.Extended++
	return nil
}

// DestroyCheckpoint drops a snapshot.
func (c *CheckpointBackend) DestroyCheckpoint(ctx context.Context, id string) error {
	if _, ok := c.checkpoints[id]; !ok {
		return fmt.Errorf("unknown checkpoint %s", id)
	}
	c.Destroyed++
	delete(c.checkpoints, id)
	return nil
}
