package state

import (
	"fmt"

	"github.com/maksimkurb/netstate/src/internal/errors"
)

// Kind is an entity kind, the top-level key of a state document.
type Kind string

const (
	KindInterfaces Kind = "interfaces"
	KindRoutes     Kind = "routes"
	KindRouteRules Kind = "route-rules"
	KindDNS        Kind = "dns-resolver"

	// KindOVSDB is recognized so that documents carrying it fail with
	// NotSupported instead of InvalidArgument.
	KindOVSDB Kind = "ovs-db"
)

// SupportedKinds lists the kinds the engine can read and apply, in
// default precedence order.
var SupportedKinds = []Kind{KindInterfaces, KindRouteRules, KindRoutes, KindDNS}

// Supported reports whether the engine can handle the kind.
func (k Kind) Supported() bool {
	for _, s := range SupportedKinds {
		if s == k {
			return true
		}
	}
	return false
}

// ParseKind validates a kind name.
func ParseKind(s string) (Kind, error) {
	k := Kind(s)
	if k.Supported() {
		return k, nil
	}
	if k == KindOVSDB {
		return "", errors.NewNotSupported(fmt.Sprintf("entity kind %q is not supported", s), nil)
	}
	return "", errors.NewInvalidArgument(fmt.Sprintf("unknown entity kind %q", s), nil)
}

// ParseKinds validates a list of kind names.
func ParseKinds(names []string) ([]Kind, error) {
	kinds := make([]Kind, 0, len(names))
	for _, n := range names {
		k, err := ParseKind(n)
		if err != nil {
			return nil, err
		}
		kinds = append(kinds, k)
	}
	return kinds, nil
}

// Ref is a named reference from one entity to another.
type Ref struct {
	Kind Kind
	ID   string
}

func (r Ref) String() string {
	return string(r.Kind) + "/" + r.ID
}

// Entity is a single record of a state document.
type Entity interface {
	EntityKind() Kind
	// EntityID is unique within the kind.
	EntityID() string
	// References lists the entities this one depends on.
	References() []Ref
	// IsAbsent reports whether the record asks for removal.
	IsAbsent() bool
}

// RefOf returns the reference naming e.
func RefOf(e Entity) Ref {
	return Ref{Kind: e.EntityKind(), ID: e.EntityID()}
}
