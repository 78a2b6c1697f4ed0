package state

import (
	"encoding/json"
	"fmt"
	"sort"

	"github.com/maksimkurb/netstate/src/internal/errors"
)

// New returns an empty document with every supported kind present.
func New() *NetworkState {
	return &NetworkState{
		Interfaces: []*Interface{},
		Routes:     []*Route{},
		RouteRules: []*RouteRule{},
	}
}

// Has reports whether the document mentions the kind.
func (s *NetworkState) Has(kind Kind) bool {
	switch kind {
	case KindInterfaces:
		return s.Interfaces != nil
	case KindRoutes:
		return s.Routes != nil
	case KindRouteRules:
		return s.RouteRules != nil
	case KindDNS:
		return s.DNS != nil
	}
	return false
}

// Kinds returns the kinds mentioned by the document in SupportedKinds order.
func (s *NetworkState) Kinds() []Kind {
	var kinds []Kind
	for _, k := range SupportedKinds {
		if s.Has(k) {
			kinds = append(kinds, k)
		}
	}
	return kinds
}

// Entities returns the records of a kind in document order.
func (s *NetworkState) Entities(kind Kind) []Entity {
	var out []Entity
	switch kind {
	case KindInterfaces:
		for _, e := range s.Interfaces {
			out = append(out, e)
		}
	case KindRoutes:
		for _, e := range s.Routes {
			out = append(out, e)
		}
	case KindRouteRules:
		for _, e := range s.RouteRules {
			out = append(out, e)
		}
	case KindDNS:
		if s.DNS != nil {
			out = append(out, s.DNS)
		}
	}
	return out
}

// Lookup finds a record by kind and identifier.
func (s *NetworkState) Lookup(kind Kind, id string) Entity {
	for _, e := range s.Entities(kind) {
		if e.EntityID() == id {
			return e
		}
	}
	return nil
}

// Interface finds an interface record by name.
func (s *NetworkState) Interface(name string) *Interface {
	for _, i := range s.Interfaces {
		if i.Name == name {
			return i
		}
	}
	return nil
}

// Put inserts e, replacing a record with the same identifier.
func (s *NetworkState) Put(e Entity) {
	id := e.EntityID()
	switch v := e.(type) {
	case *Interface:
		for idx, cur := range s.Interfaces {
			if cur.Name == id {
				s.Interfaces[idx] = v
				return
			}
		}
		s.Interfaces = append(s.Interfaces, v)
	case *Route:
		for idx, cur := range s.Routes {
			if cur.EntityID() == id {
				s.Routes[idx] = v
				return
			}
		}
		s.Routes = append(s.Routes, v)
	case *RouteRule:
		for idx, cur := range s.RouteRules {
			if cur.EntityID() == id {
				s.RouteRules[idx] = v
				return
			}
		}
		s.RouteRules = append(s.RouteRules, v)
	case *DNSResolver:
		s.DNS = v
	}
}

// Remove deletes the record with the given kind and identifier, if any.
func (s *NetworkState) Remove(kind Kind, id string) {
	switch kind {
	case KindInterfaces:
		s.Interfaces = removeWhere(s.Interfaces, func(i *Interface) bool { return i.Name == id })
	case KindRoutes:
		s.Routes = removeWhere(s.Routes, func(r *Route) bool { return r.EntityID() == id })
	case KindRouteRules:
		s.RouteRules = removeWhere(s.RouteRules, func(r *RouteRule) bool { return r.EntityID() == id })
	case KindDNS:
		s.DNS = nil
	}
}

func removeWhere[T any](items []T, match func(T) bool) []T {
	out := items[:0]
	for _, it := range items {
		if !match(it) {
			out = append(out, it)
		}
	}
	return out
}

// Clone returns a deep copy.
func (s *NetworkState) Clone() *NetworkState {
	data, err := json.Marshal(s)
	if err != nil {
		panic(fmt.Sprintf("state: clone marshal: %v", err))
	}
	out := &NetworkState{}
	if err := json.Unmarshal(data, out); err != nil {
		panic(fmt.Sprintf("state: clone unmarshal: %v", err))
	}
	// Empty collections are dropped by omitempty; keep the kind present.
	if s.Interfaces != nil && out.Interfaces == nil {
		out.Interfaces = []*Interface{}
	}
	if s.Routes != nil && out.Routes == nil {
		out.Routes = []*Route{}
	}
	if s.RouteRules != nil && out.RouteRules == nil {
		out.RouteRules = []*RouteRule{}
	}
	return out
}

// CloneEntity returns a deep copy of a single record.
func CloneEntity(e Entity) Entity {
	tmp := &NetworkState{}
	tmp.Put(e)
	return tmp.Clone().Entities(e.EntityKind())[0]
}

// Sort orders every collection by identifier, and addresses and ports
// inside interface records. DNS server order is significant and kept.
func (s *NetworkState) Sort() {
	sort.SliceStable(s.Interfaces, func(a, b int) bool { return s.Interfaces[a].Name < s.Interfaces[b].Name })
	sort.SliceStable(s.Routes, func(a, b int) bool { return s.Routes[a].EntityID() < s.Routes[b].EntityID() })
	sort.SliceStable(s.RouteRules, func(a, b int) bool {
		return s.RouteRules[a].EntityID() < s.RouteRules[b].EntityID()
	})
	for _, iface := range s.Interfaces {
		iface.sortLists()
	}
}

func (i *Interface) sortLists() {
	for _, ip := range []*IPConfig{i.IPv4, i.IPv6} {
		if ip == nil {
			continue
		}
		sort.SliceStable(ip.Addresses, func(a, b int) bool {
			if ip.Addresses[a].IP != ip.Addresses[b].IP {
				return ip.Addresses[a].IP < ip.Addresses[b].IP
			}
			return ip.Addresses[a].PrefixLength < ip.Addresses[b].PrefixLength
		})
	}
	if i.Bridge != nil {
		sort.SliceStable(i.Bridge.Ports, func(a, b int) bool { return i.Bridge.Ports[a].Name < i.Bridge.Ports[b].Name })
	}
	if i.Bond != nil {
		sort.Strings(i.Bond.Ports)
	}
}

// CheckReferences reports the first reference that names a missing record.
// Retrieved snapshots must never contain one. References into a kind the
// document does not carry are not checked.
func (s *NetworkState) CheckReferences() error {
	for _, kind := range SupportedKinds {
		for _, e := range s.Entities(kind) {
			for _, ref := range e.References() {
				if s.Has(ref.Kind) && s.Lookup(ref.Kind, ref.ID) == nil {
					return errors.NewInvalidArgument(
						fmt.Sprintf("%s references missing %s", RefOf(e), ref), nil)
				}
			}
		}
	}
	return nil
}

// FilterInterfaces keeps only the named interface and the records that
// reference it. Used by "show IFNAME".
func (s *NetworkState) FilterInterfaces(name string) *NetworkState {
	out := &NetworkState{Interfaces: []*Interface{}}
	if iface := s.Interface(name); iface != nil {
		out.Interfaces = append(out.Interfaces, iface)
	}
	for _, r := range s.Routes {
		if r.NextHopInterface == name {
			out.Routes = append(out.Routes, r)
		}
	}
	return out
}
