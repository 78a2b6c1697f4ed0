package state

import (
	"net/netip"
	"strings"
)

// Canonicalize rewrites every record into its canonical textual form so that
// equal states compare equal: upper-case MAC addresses, canonical IP text,
// masked prefixes, explicit default tables and metrics, sorted lists.
func (s *NetworkState) Canonicalize() {
	for _, i := range s.Interfaces {
		i.canonicalize()
	}
	for _, r := range s.Routes {
		r.canonicalize()
	}
	for _, r := range s.RouteRules {
		r.canonicalize()
	}
	if s.DNS != nil && s.DNS.Config != nil {
		for idx, srv := range s.DNS.Config.Servers {
			s.DNS.Config.Servers[idx] = canonicalIP(srv)
		}
	}
	s.Sort()
}

// ApplyDesiredDefaults fills in the implicit values of a desired document:
// interfaces default to up, a disabled IP family has no addresses and no DHCP.
func (s *NetworkState) ApplyDesiredDefaults() {
	for _, i := range s.Interfaces {
		if i.State == "" {
			i.State = StateUp
		}
		for _, ip := range []*IPConfig{i.IPv4, i.IPv6} {
			if ip == nil || ip.Enabled == nil || *ip.Enabled {
				continue
			}
			ip.Addresses = []IPAddress{}
			ip.DHCP = Bool(false)
			if ip == i.IPv6 {
				ip.Autoconf = Bool(false)
			}
		}
	}
}

func (i *Interface) canonicalize() {
	i.MACAddress = strings.ToUpper(i.MACAddress)
	for _, ip := range []*IPConfig{i.IPv4, i.IPv6} {
		if ip == nil {
			continue
		}
		for idx := range ip.Addresses {
			ip.Addresses[idx].IP = canonicalIP(ip.Addresses[idx].IP)
		}
	}
	i.sortLists()
}

func (r *Route) canonicalize() {
	r.Destination = canonicalPrefix(r.Destination)
	r.NextHopAddress = canonicalIP(r.NextHopAddress)
	if r.TableID == 0 {
		r.TableID = mainTable
	}
	if r.Metric == 0 && r.IsIPv6() {
		r.Metric = ipv6DefaultMetric
	}
}

// IsIPv6 reports whether the route destination is an IPv6 prefix.
func (r *Route) IsIPv6() bool {
	p, err := netip.ParsePrefix(r.Destination)
	return err == nil && p.Addr().Is6()
}

func (r *RouteRule) canonicalize() {
	r.IPFrom = canonicalPrefix(r.IPFrom)
	r.IPTo = canonicalPrefix(r.IPTo)
	if r.RouteTable == 0 {
		r.RouteTable = mainTable
	}
	if r.Family == "" {
		r.Family = "ipv4"
		for _, p := range []string{r.IPFrom, r.IPTo} {
			if pfx, err := netip.ParsePrefix(p); err == nil && pfx.Addr().Is6() {
				r.Family = "ipv6"
			}
		}
	}
}

func canonicalIP(s string) string {
	if s == "" {
		return s
	}
	addr, err := netip.ParseAddr(s)
	if err != nil {
		return s
	}
	return addr.String()
}

func canonicalPrefix(s string) string {
	if s == "" {
		return s
	}
	p, err := netip.ParsePrefix(s)
	if err != nil {
		return s
	}
	return p.Masked().String()
}
