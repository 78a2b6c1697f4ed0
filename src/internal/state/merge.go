package state

import (
	"bytes"
	"encoding/json"
)

// Merge overlays the fields set in desired onto a copy of current.
// Unset fields of desired keep the current value. Routes and rules carry no
// mergeable fields and are returned as copies of desired.
func Merge(desired, current Entity) Entity {
	if current == nil {
		return CloneEntity(desired)
	}
	switch d := desired.(type) {
	case *Interface:
		out := CloneEntity(current).(*Interface)
		out.overlay(CloneEntity(d).(*Interface))
		return out
	case *DNSResolver:
		out := CloneEntity(current).(*DNSResolver)
		src := CloneEntity(d).(*DNSResolver)
		out.State = src.State
		if src.Config != nil {
			if out.Config == nil {
				out.Config = &DNSConfig{}
			}
			if src.Config.Servers != nil {
				out.Config.Servers = src.Config.Servers
			}
			if src.Config.Search != nil {
				out.Config.Search = src.Config.Search
			}
		}
		return out
	}
	return CloneEntity(desired)
}

// overlay copies every field set in src into i.
func (i *Interface) overlay(src *Interface) {
	if src.Type != "" {
		i.Type = src.Type
	}
	if src.State != "" {
		i.State = src.State
	}
	if src.MTU != nil {
		i.MTU = src.MTU
	}
	if src.MACAddress != "" {
		i.MACAddress = src.MACAddress
	}
	if src.Controller != nil {
		i.Controller = src.Controller
	}
	i.IPv4 = overlayIP(i.IPv4, src.IPv4)
	i.IPv6 = overlayIP(i.IPv6, src.IPv6)

	if src.Bridge != nil {
		if i.Bridge == nil {
			i.Bridge = &BridgeConfig{}
		}
		if src.Bridge.Options != nil && src.Bridge.Options.STP != nil && src.Bridge.Options.STP.Enabled != nil {
			if i.Bridge.Options == nil {
				i.Bridge.Options = &BridgeOptions{}
			}
			i.Bridge.Options.STP = &STPOptions{Enabled: src.Bridge.Options.STP.Enabled}
		}
		if src.Bridge.Ports != nil {
			i.Bridge.Ports = src.Bridge.Ports
		}
	}
	if src.Bond != nil {
		if i.Bond == nil {
			i.Bond = &BondConfig{}
		}
		if src.Bond.Mode != "" {
			i.Bond.Mode = src.Bond.Mode
		}
		if src.Bond.Ports != nil {
			i.Bond.Ports = src.Bond.Ports
		}
	}
	if src.VLAN != nil {
		i.VLAN = src.VLAN
	}
	if src.Veth != nil {
		i.Veth = src.Veth
	}
}

func overlayIP(cur, src *IPConfig) *IPConfig {
	if src == nil {
		return cur
	}
	if cur == nil {
		cur = &IPConfig{}
	}
	if src.Enabled != nil {
		cur.Enabled = src.Enabled
	}
	if src.DHCP != nil {
		cur.DHCP = src.DHCP
	}
	if src.Autoconf != nil {
		cur.Autoconf = src.Autoconf
	}
	if src.Addresses != nil {
		cur.Addresses = src.Addresses
	}
	return cur
}

// Update overlays the records of other onto s for the entities both know.
// It is used to lay daemon-reported state over kernel state.
func (s *NetworkState) Update(other *NetworkState) {
	for _, kind := range SupportedKinds {
		for _, e := range other.Entities(kind) {
			cur := s.Lookup(kind, e.EntityID())
			if cur == nil {
				continue
			}
			s.Put(Merge(e, cur))
		}
	}
}

// Equal reports whether two records encode identically after canonicalization.
func Equal(a, b Entity) bool {
	if a == nil || b == nil {
		return a == nil && b == nil
	}
	ja, errA := canonicalJSON(a)
	jb, errB := canonicalJSON(b)
	if errA != nil || errB != nil {
		return false
	}
	return bytes.Equal(ja, jb)
}

func canonicalJSON(e Entity) ([]byte, error) {
	tmp := &NetworkState{}
	tmp.Put(CloneEntity(e))
	tmp.Canonicalize()
	return json.Marshal(tmp.Entities(e.EntityKind())[0])
}

// WithoutPorts returns a copy of an interface record with its port lists
// cleared. Port membership is carried by the ports' controller field.
func WithoutPorts(i *Interface) *Interface {
	out := CloneEntity(i).(*Interface)
	if out.Bridge != nil {
		out.Bridge.Ports = nil
	}
	if out.Bond != nil {
		out.Bond.Ports = nil
	}
	return out
}
