package networking

import (
	"net"
	"net/netip"
	"strings"

	"github.com/maksimkurb/netstate/src/internal/state"
	"github.com/vishvananda/netlink"
	"golang.org/x/sys/unix"
)

// linkType maps a netlink link to an interface type.
func linkType(link netlink.Link) state.InterfaceType {
	attrs := link.Attrs()
	if attrs.Flags&net.FlagLoopback != 0 || attrs.EncapType == "loopback" {
		return state.TypeLoopback
	}
	switch link.Type() {
	case "bridge":
		return state.TypeBridge
	case "bond":
		return state.TypeBond
	case "vlan":
		return state.TypeVLAN
	case "veth":
		return state.TypeVeth
	case "dummy":
		return state.TypeDummy
	case "tuntap":
		return state.TypeTun
	case "vxlan":
		return state.TypeVXLAN
	case "vrf":
		return state.TypeVRF
	case "macvlan":
		return state.TypeMACVLAN
	case "device":
		if attrs.EncapType == "" || attrs.EncapType == "ether" {
			return state.TypeEthernet
		}
	}
	return state.TypeUnknown
}

// interfaceFromLink converts a link and its addresses. names maps indexes
// to link names; ports lists the links enslaved to this one.
func interfaceFromLink(link netlink.Link, names map[int]string, addrs []netlink.Addr, ports []string) *state.Interface {
	attrs := link.Attrs()
	iface := &state.Interface{
		Name:  attrs.Name,
		Type:  linkType(link),
		State: state.StateDown,
		MTU:   state.Int(attrs.MTU),
	}
	if attrs.Flags&net.FlagUp != 0 {
		iface.State = state.StateUp
	}
	if len(attrs.HardwareAddr) > 0 && iface.Type != state.TypeLoopback {
		iface.MACAddress = strings.ToUpper(attrs.HardwareAddr.String())
	}
	if attrs.MasterIndex > 0 {
		iface.Controller = state.String(names[attrs.MasterIndex])
	}

	switch l := link.(type) {
	case *netlink.Bridge:
		iface.Bridge = &state.BridgeConfig{Ports: make([]state.BridgePort, 0, len(ports))}
		for _, p := range ports {
			iface.Bridge.Ports = append(iface.Bridge.Ports, state.BridgePort{Name: p})
		}
	case *netlink.Bond:
		iface.Bond = &state.BondConfig{Ports: append([]string{}, ports...)}
		if l.Mode != netlink.BOND_MODE_UNKNOWN {
			iface.Bond.Mode = l.Mode.String()
		}
	case *netlink.Vlan:
		iface.VLAN = &state.VLANConfig{BaseIface: names[attrs.ParentIndex], ID: l.VlanId}
	case *netlink.Veth:
		peer := l.PeerName
		if peer == "" {
			peer = names[attrs.ParentIndex]
		}
		if peer != "" {
			iface.Veth = &state.VethConfig{Peer: peer}
		}
	}

	iface.IPv4, iface.IPv6 = ipConfigs(addrs)
	return iface
}

// ipConfigs splits addresses per family. Permanent addresses are listed;
// dynamic ones only set the dhcp (IPv4) or autoconf (IPv6) flag. IPv6
// link-local addresses are ignored.
func ipConfigs(addrs []netlink.Addr) (*state.IPConfig, *state.IPConfig) {
	v4 := &state.IPConfig{DHCP: state.Bool(false), Addresses: []state.IPAddress{}}
	v6 := &state.IPConfig{DHCP: state.Bool(false), Autoconf: state.Bool(false), Addresses: []state.IPAddress{}}

	for _, a := range addrs {
		if a.IPNet == nil {
			continue
		}
		ip, ok := netip.AddrFromSlice(a.IP)
		if !ok {
			continue
		}
		ip = ip.Unmap()
		if ip.Is6() && ip.IsLinkLocalUnicast() {
			continue
		}
		ones, _ := a.Mask.Size()

		cfg := v4
		if ip.Is6() {
			cfg = v6
		}
		if isDynamic(a) {
			if ip.Is6() {
				cfg.Autoconf = state.Bool(true)
			} else {
				cfg.DHCP = state.Bool(true)
			}
			continue
		}
		cfg.Addresses = append(cfg.Addresses, state.IPAddress{IP: ip.String(), PrefixLength: ones})
	}

	for _, cfg := range []*state.IPConfig{v4, v6} {
		on := len(cfg.Addresses) > 0 || *cfg.DHCP || (cfg.Autoconf != nil && *cfg.Autoconf)
		cfg.Enabled = state.Bool(on)
	}
	return v4, v6
}

func isDynamic(a netlink.Addr) bool {
	return a.Flags&unix.IFA_F_PERMANENT == 0
}

// staticAddrs returns the addresses of one family that are not dynamic and
// not IPv6 link-local.
func staticAddrs(addrs []netlink.Addr, v6 bool) []netlink.Addr {
	var out []netlink.Addr
	for _, a := range addrs {
		if a.IPNet == nil || (a.IP.To4() == nil) != v6 {
			continue
		}
		if v6 && a.IP.IsLinkLocalUnicast() {
			continue
		}
		if isDynamic(a) {
			continue
		}
		out = append(out, a)
	}
	return out
}

// addrDelta returns the addresses to add and to delete so that the static
// addresses of one family equal desired.
func addrDelta(desired []state.IPAddress, current []netlink.Addr) (add []*netlink.Addr, del []*netlink.Addr, err error) {
	want := make(map[string]bool, len(desired))
	for _, d := range desired {
		p, perr := d.Prefix()
		if perr != nil {
			return nil, nil, perr
		}
		want[p.String()] = true
	}

	have := make(map[string]bool, len(current))
	for i := range current {
		key := prefixOf(current[i].IPNet)
		have[key] = true
		if !want[key] {
			del = append(del, &current[i])
		}
	}

	for _, d := range desired {
		p, _ := d.Prefix()
		if have[p.String()] {
			continue
		}
		addr, perr := netlink.ParseAddr(p.String())
		if perr != nil {
			return nil, nil, perr
		}
		add = append(add, addr)
		have[p.String()] = true
	}
	return add, del, nil
}

func prefixOf(n *net.IPNet) string {
	ip, ok := netip.AddrFromSlice(n.IP)
	if !ok {
		return n.String()
	}
	ones, _ := n.Mask.Size()
	return netip.PrefixFrom(ip.Unmap(), ones).String()
}
