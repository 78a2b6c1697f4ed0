package diff

import (
	"encoding/json"
	"fmt"
	"strings"

	"github.com/maksimkurb/netstate/src/internal/state"
)

// Action is the kind of change an operation makes.
type Action string

const (
	ActionCreate Action = "create"
	ActionModify Action = "modify"
	ActionDelete Action = "delete"
)

// Operation is a single change to one entity.
type Operation struct {
	Kind   state.Kind `json:"kind"`
	ID     string     `json:"id"`
	Action Action     `json:"action"`
	// Payload is the full target record; nil for deletes.
	Payload state.Entity `json:"payload,omitempty"`
	// Previous is the record before the change; nil for creates.
	Previous state.Entity `json:"previous,omitempty"`
}

// Ref names the entity the operation changes.
func (o Operation) Ref() state.Ref {
	return state.Ref{Kind: o.Kind, ID: o.ID}
}

// Inverse returns the operation undoing o.
func (o Operation) Inverse() Operation {
	inv := Operation{Kind: o.Kind, ID: o.ID, Payload: o.Previous, Previous: o.Payload}
	switch o.Action {
	case ActionCreate:
		inv.Action = ActionDelete
	case ActionDelete:
		inv.Action = ActionCreate
	default:
		inv.Action = ActionModify
		inv.Payload = undoAttach(o.Payload, o.Previous)
	}
	return inv
}

// undoAttach returns previous with an explicit empty controller when the
// change attached a port that had none. Backends leave an unset controller
// alone, so only the empty one detaches.
func undoAttach(payload, previous state.Entity) state.Entity {
	next, ok := payload.(*state.Interface)
	if !ok || next.Controller == nil {
		return previous
	}
	prev, ok := previous.(*state.Interface)
	if !ok || prev.Controller != nil {
		return previous
	}
	out := state.CloneEntity(prev).(*state.Interface)
	out.Controller = state.String("")
	return out
}

func (o Operation) String() string {
	tag := ""
	switch o.Action {
	case ActionCreate:
		tag = "[ADD]"
	case ActionModify:
		tag = "[MOD]"
	case ActionDelete:
		tag = "[DEL]"
	}
	return fmt.Sprintf("%s %s", tag, o.Ref())
}

// ChangeSet is an ordered list of operations. Dependencies come before
// their dependents; dependents are removed before what they depend on.
type ChangeSet struct {
	Operations []Operation `json:"operations"`

	// Desired is the normalized desired state the operations converge to.
	Desired *state.NetworkState `json:"-"`
}

// IsEmpty returns true if there are no changes.
func (cs *ChangeSet) IsEmpty() bool {
	return cs == nil || len(cs.Operations) == 0
}

func (cs *ChangeSet) Len() int {
	if cs == nil {
		return 0
	}
	return len(cs.Operations)
}

// String returns a human-readable representation of the changes.
func (cs *ChangeSet) String() string {
	if cs.IsEmpty() {
		return "No changes"
	}

	var sb strings.Builder
	for _, op := range cs.Operations {
		sb.WriteString("  ")
		sb.WriteString(op.String())
		sb.WriteString("\n")
	}
	return sb.String()
}

// Marshal encodes the change-set as JSON. Equal change-sets encode to
// identical bytes.
func (cs *ChangeSet) Marshal() ([]byte, error) {
	if cs == nil {
		return json.Marshal(&ChangeSet{Operations: []Operation{}})
	}
	return json.Marshal(cs)
}

// Undo returns the inverse of the first n operations in reverse order.
func (cs *ChangeSet) Undo(n int) []Operation {
	if n > len(cs.Operations) {
		n = len(cs.Operations)
	}
	out := make([]Operation, 0, n)
	for i := n - 1; i >= 0; i-- {
		out = append(out, cs.Operations[i].Inverse())
	}
	return out
}
