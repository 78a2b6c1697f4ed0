package state

import (
	"fmt"
)

const (
	mainTable = 254
	// Kernel default metric for IPv6 routes added without one.
	ipv6DefaultMetric = 1024
)

func (i *Interface) EntityKind() Kind { return KindInterfaces }
func (i *Interface) EntityID() string { return i.Name }
func (i *Interface) IsAbsent() bool { return i.State == StateAbsent }

func (i *Interface) References() []Ref {
	var refs []Ref
	if i.Controller != nil && *i.Controller != "" {
		refs = append(refs, Ref{Kind: KindInterfaces, ID: *i.Controller})
	}
	if i.VLAN != nil && i.VLAN.BaseIface != "" {
		refs = append(refs, Ref{Kind: KindInterfaces, ID: i.VLAN.BaseIface})
	}
	return refs
}

// ControllerName returns the controller or "" when the interface is not a port.
func (i *Interface) ControllerName() string {
	if i.Controller == nil {
		return ""
	}
	return *i.Controller
}

// PortNames returns the ports listed by a bridge or bond, or nil when unspecified.
func (i *Interface) PortNames() []string {
	switch {
	case i.Bridge != nil && i.Bridge.Ports != nil:
		names := make([]string, 0, len(i.Bridge.Ports))
		for _, p := range i.Bridge.Ports {
			names = append(names, p.Name)
		}
		return names
	case i.Bond != nil && i.Bond.Ports != nil:
		return append([]string{}, i.Bond.Ports...)
	}
	return nil
}

func (r *Route) EntityKind() Kind { return KindRoutes }
func (r *Route) IsAbsent() bool { return r.State == StateAbsentValue }

func (r *Route) EntityID() string {
	return fmt.Sprintf("%d/%s/%s/%s/%d", r.TableID, r.Destination, r.NextHopInterface, r.NextHopAddress, r.Metric)
}

func (r *Route) References() []Ref {
	if r.NextHopInterface == "" {
		return nil
	}
	return []Ref{{Kind: KindInterfaces, ID: r.NextHopInterface}}
}

func (r *RouteRule) EntityKind() Kind { return KindRouteRules }
func (r *RouteRule) IsAbsent() bool { return r.State == StateAbsentValue }
func (r *RouteRule) References() []Ref { return nil }

func (r *RouteRule) EntityID() string {
	return fmt.Sprintf("%s/%d/%s/%s/%d/%d/%d/%s",
		r.Family, r.Priority, r.IPFrom, r.IPTo, r.RouteTable, r.FwMark, r.FwMask, r.Iif)
}

func (d *DNSResolver) EntityKind() Kind { return KindDNS }
func (d *DNSResolver) EntityID() string { return DNSResolverID }
func (d *DNSResolver) IsAbsent() bool { return d.State == StateAbsentValue }
func (d *DNSResolver) References() []Ref { return nil }
