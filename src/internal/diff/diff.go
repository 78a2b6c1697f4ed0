// Package diff computes the ordered change-set that converges a current
// network state to a desired one.
//
// Desired state is a patch: entities it does not mention are left alone,
// unless their kind is listed in Options.Purge and the desired document
// mentions the kind. Compute is pure; equal inputs give byte-identical
// change-sets.
package diff

import (
	"fmt"

	"github.com/maksimkurb/netstate/src/internal/errors"
	"github.com/maksimkurb/netstate/src/internal/state"
)

// Options tune the diff.
type Options struct {
	// Kinds the caller may mention. Others are NotSupported.
	Kinds []state.Kind
	// Precedence breaks ties between operations the dependency graph leaves
	// unordered. Kinds missing from the table sort last.
	Precedence []state.Kind
	// Purge lists kinds whose unmentioned entities are deleted.
	Purge []state.Kind
}

// DefaultOptions enables every supported kind with the default precedence.
func DefaultOptions() Options {
	return Options{
		Kinds:      append([]state.Kind{}, state.SupportedKinds...),
		Precedence: append([]state.Kind{}, state.SupportedKinds...),
	}
}

// Compute returns the operations converging current to desired.
func Compute(current, desired *state.NetworkState, opts Options) (*ChangeSet, error) {
	if current == nil {
		current = state.New()
	}
	cur := current.Clone()
	cur.Canonicalize()

	want, err := Prepare(cur, desired, opts)
	if err != nil {
		return nil, err
	}

	target := buildTarget(cur, want, opts)
	if err := target.CheckReferences(); err != nil {
		return nil, errors.NewInvalidArgument("desired state leaves a dangling reference", err)
	}
	if err := referenceGraph(target).DetectCycle(); err != nil {
		return nil, err
	}

	ops := collect(cur, want, target, opts)
	ordered, err := order(ops, opts.Precedence)
	if err != nil {
		return nil, err
	}

	return &ChangeSet{Operations: ordered, Desired: want}, nil
}

// buildTarget returns the state that results from applying want to cur.
func buildTarget(cur, want *state.NetworkState, opts Options) *state.NetworkState {
	target := cur.Clone()
	for _, kind := range state.SupportedKinds {
		for _, e := range want.Entities(kind) {
			if e.IsAbsent() {
				target.Remove(kind, e.EntityID())
				continue
			}
			target.Put(state.Merge(e, target.Lookup(kind, e.EntityID())))
		}
	}
	for _, kind := range opts.Purge {
		if !want.Has(kind) {
			continue
		}
		for _, e := range cur.Entities(kind) {
			if want.Lookup(kind, e.EntityID()) == nil && !protected(e) {
				target.Remove(kind, e.EntityID())
			}
		}
	}
	target.Sort()
	return target
}

func protected(e state.Entity) bool {
	iface, ok := e.(*state.Interface)
	return ok && (iface.Type == state.TypeLoopback || iface.Name == "lo")
}

func referenceGraph(s *state.NetworkState) *Graph {
	g := NewGraph()
	for _, kind := range state.SupportedKinds {
		for _, e := range s.Entities(kind) {
			g.AddNode(state.RefOf(e).String())
		}
	}
	for _, kind := range state.SupportedKinds {
		for _, e := range s.Entities(kind) {
			for _, ref := range e.References() {
				g.AddEdge(ref.String(), state.RefOf(e).String())
			}
		}
	}
	return g
}

func collect(cur, want, target *state.NetworkState, opts Options) []Operation {
	var ops []Operation
	for _, kind := range state.SupportedKinds {
		for _, e := range want.Entities(kind) {
			id := e.EntityID()
			prev := cur.Lookup(kind, id)

			if e.IsAbsent() {
				if prev != nil {
					ops = append(ops, Operation{Kind: kind, ID: id, Action: ActionDelete, Previous: prev})
				}
				continue
			}

			next := target.Lookup(kind, id)
			if prev == nil {
				ops = append(ops, Operation{Kind: kind, ID: id, Action: ActionCreate, Payload: next})
				continue
			}
			if !unchanged(next, prev) {
				ops = append(ops, Operation{Kind: kind, ID: id, Action: ActionModify, Payload: next, Previous: prev})
			}
		}
	}

	for _, kind := range opts.Purge {
		if !want.Has(kind) {
			continue
		}
		for _, e := range cur.Entities(kind) {
			if want.Lookup(kind, e.EntityID()) == nil && !protected(e) {
				ops = append(ops, Operation{Kind: kind, ID: e.EntityID(), Action: ActionDelete, Previous: e})
			}
		}
	}
	return ops
}

// unchanged compares records ignoring controller port lists, which are
// applied through the ports themselves.
func unchanged(next, prev state.Entity) bool {
	n, okN := next.(*state.Interface)
	p, okP := prev.(*state.Interface)
	if okN && okP {
		return state.Equal(state.WithoutPorts(n), state.WithoutPorts(p))
	}
	return state.Equal(next, prev)
}

// order sorts operations so that creations and modifications follow the
// operations on what they reference, and deletions follow the operations
// on what referenced the deleted entity.
func order(ops []Operation, precedence []state.Kind) ([]Operation, error) {
	byRef := make(map[string]int, len(ops))
	g := NewGraph()
	for i, op := range ops {
		key := op.Ref().String()
		byRef[key] = i
		g.AddNode(key)
	}

	for _, op := range ops {
		key := op.Ref().String()
		if op.Action != ActionDelete && op.Payload != nil {
			for _, ref := range op.Payload.References() {
				if j, ok := byRef[ref.String()]; ok && ops[j].Action != ActionDelete {
					g.AddEdge(ref.String(), key)
				}
			}
		}
		if op.Action != ActionCreate && op.Previous != nil {
			for _, ref := range op.Previous.References() {
				if j, ok := byRef[ref.String()]; ok && ops[j].Action == ActionDelete {
					g.AddEdge(key, ref.String())
				}
			}
		}
	}

	rank := make(map[state.Kind]int, len(precedence))
	for i, k := range precedence {
		rank[k] = i
	}
	rankOf := func(k state.Kind) int {
		if r, ok := rank[k]; ok {
			return r
		}
		return len(precedence)
	}

	levels, err := g.Levels(func(a, b string) bool {
		oa, ob := ops[byRef[a]], ops[byRef[b]]
		if ra, rb := rankOf(oa.Kind), rankOf(ob.Kind); ra != rb {
			return ra < rb
		}
		return oa.ID < ob.ID
	})
	if err != nil {
		return nil, err
	}

	ordered := make([]Operation, 0, len(ops))
	for _, level := range levels {
		for _, key := range level {
			ordered = append(ordered, ops[byRef[key]])
		}
	}
	if len(ordered) != len(ops) {
		return nil, errors.NewInternal(fmt.Sprintf("ordered %d of %d operations", len(ordered), len(ops)), nil)
	}
	return ordered, nil
}
