package networking

import (
	"net"
	"os"
	"path/filepath"
	"testing"

	"github.com/maksimkurb/netstate/src/internal/errors"
	"github.com/maksimkurb/netstate/src/internal/state"
	"github.com/vishvananda/netlink"
	"golang.org/x/sys/unix"
)

func mustAddr(t *testing.T, cidr string, flags int) netlink.Addr {
	t.Helper()
	a, err := netlink.ParseAddr(cidr)
	if err != nil {
		t.Fatalf("ParseAddr(%q): %v", cidr, err)
	}
	a.Flags = flags
	return *a
}

func TestLinkType(t *testing.T) {
	tests := []struct {
		name string
		link netlink.Link
		want state.InterfaceType
	}{
		{"ethernet", &netlink.Device{LinkAttrs: netlink.LinkAttrs{Name: "eth0", EncapType: "ether"}}, state.TypeEthernet},
		{"loopback", &netlink.Device{LinkAttrs: netlink.LinkAttrs{Name: "lo", Flags: net.FlagLoopback, EncapType: "loopback"}}, state.TypeLoopback},
		{"bridge", &netlink.Bridge{LinkAttrs: netlink.LinkAttrs{Name: "br0"}}, state.TypeBridge},
		{"bond", &netlink.Bond{LinkAttrs: netlink.LinkAttrs{Name: "bond0"}}, state.TypeBond},
		{"vlan", &netlink.Vlan{LinkAttrs: netlink.LinkAttrs{Name: "eth0.10"}}, state.TypeVLAN},
		{"veth", &netlink.Veth{LinkAttrs: netlink.LinkAttrs{Name: "v0"}}, state.TypeVeth},
		{"dummy", &netlink.Dummy{LinkAttrs: netlink.LinkAttrs{Name: "d0"}}, state.TypeDummy},
		{"wireguard", &netlink.Wireguard{LinkAttrs: netlink.LinkAttrs{Name: "wg0"}}, state.TypeUnknown},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if got := linkType(tt.link); got != tt.want {
				t.Errorf("linkType() = %q, want %q", got, tt.want)
			}
		})
	}
}

func TestInterfaceFromLink(t *testing.T) {
	names := map[int]string{1: "lo", 2: "eth0", 3: "br0"}
	mac, _ := net.ParseMAC("52:54:00:ab:cd:ef")

	port := &netlink.Device{LinkAttrs: netlink.LinkAttrs{
		Name: "eth0", Index: 2, MTU: 1500, MasterIndex: 3, HardwareAddr: mac,
		Flags: net.FlagUp, EncapType: "ether",
	}}
	addrs := []netlink.Addr{
		mustAddr(t, "192.168.1.10/24", unix.IFA_F_PERMANENT),
		mustAddr(t, "10.1.2.3/16", 0),
		mustAddr(t, "fe80::1/64", unix.IFA_F_PERMANENT),
		mustAddr(t, "2001:db8::5/64", unix.IFA_F_PERMANENT),
	}

	got := interfaceFromLink(port, names, addrs, nil)
	if got.Type != state.TypeEthernet || got.State != state.StateUp || *got.MTU != 1500 {
		t.Errorf("unexpected basics: %+v", got)
	}
	if got.MACAddress != "52:54:00:AB:CD:EF" {
		t.Errorf("MACAddress = %q", got.MACAddress)
	}
	if got.ControllerName() != "br0" {
		t.Errorf("Controller = %q, want br0", got.ControllerName())
	}
	if len(got.IPv4.Addresses) != 1 || got.IPv4.Addresses[0].String() != "192.168.1.10/24" {
		t.Errorf("IPv4 addresses = %v", got.IPv4.Addresses)
	}
	if !*got.IPv4.DHCP || !*got.IPv4.Enabled {
		t.Errorf("dynamic IPv4 address should set dhcp and enabled")
	}
	if len(got.IPv6.Addresses) != 1 || got.IPv6.Addresses[0].String() != "2001:db8::5/64" {
		t.Errorf("IPv6 addresses = %v", got.IPv6.Addresses)
	}
	if *got.IPv6.Autoconf {
		t.Errorf("permanent IPv6 addresses must not set autoconf")
	}

	bridge := &netlink.Bridge{LinkAttrs: netlink.LinkAttrs{Name: "br0", Index: 3, MTU: 1500}}
	br := interfaceFromLink(bridge, names, nil, []string{"eth0"})
	if br.State != state.StateDown || br.Controller != nil {
		t.Errorf("unexpected bridge basics: %+v", br)
	}
	if ports := br.PortNames(); len(ports) != 1 || ports[0] != "eth0" {
		t.Errorf("bridge ports = %v", ports)
	}
	if *br.IPv4.Enabled || br.IPv4.Addresses == nil {
		t.Errorf("address-less link should report ipv4 disabled with an empty list")
	}

	vlan := &netlink.Vlan{LinkAttrs: netlink.LinkAttrs{Name: "eth0.10", ParentIndex: 2}, VlanId: 10}
	if v := interfaceFromLink(vlan, names, nil, nil); v.VLAN == nil || v.VLAN.BaseIface != "eth0" || v.VLAN.ID != 10 {
		t.Errorf("vlan = %+v", v.VLAN)
	}
}

func TestAddrDelta(t *testing.T) {
	current := []netlink.Addr{
		mustAddr(t, "192.168.1.10/24", unix.IFA_F_PERMANENT),
		mustAddr(t, "192.168.2.10/24", unix.IFA_F_PERMANENT),
	}
	desired := []state.IPAddress{
		{IP: "192.168.1.10", PrefixLength: 24},
		{IP: "10.0.0.1", PrefixLength: 8},
	}

	add, del, err := addrDelta(desired, current)
	if err != nil {
		t.Fatalf("addrDelta() error: %v", err)
	}
	if len(add) != 1 || add[0].IPNet.String() != "10.0.0.1/8" {
		t.Errorf("add = %v", add)
	}
	if len(del) != 1 || prefixOf(del[0].IPNet) != "192.168.2.10/24" {
		t.Errorf("del = %v", del)
	}

	add, del, err = addrDelta([]state.IPAddress{}, current)
	if err != nil || len(add) != 0 || len(del) != 2 {
		t.Errorf("empty desired list should remove everything: add=%v del=%v err=%v", add, del, err)
	}
}

func TestStaticAddrs(t *testing.T) {
	addrs := []netlink.Addr{
		mustAddr(t, "192.168.1.10/24", unix.IFA_F_PERMANENT),
		mustAddr(t, "10.1.2.3/16", 0),
		mustAddr(t, "fe80::1/64", unix.IFA_F_PERMANENT),
		mustAddr(t, "2001:db8::5/64", unix.IFA_F_PERMANENT),
	}
	if got := staticAddrs(addrs, false); len(got) != 1 {
		t.Errorf("staticAddrs(v4) = %v", got)
	}
	if got := staticAddrs(addrs, true); len(got) != 1 || prefixOf(got[0].IPNet) != "2001:db8::5/64" {
		t.Errorf("staticAddrs(v6) = %v", got)
	}
}

func TestRouteFromNetlink(t *testing.T) {
	names := map[int]string{2: "eth0"}
	_, dst, _ := net.ParseCIDR("10.10.0.0/16")
	_, ll, _ := net.ParseCIDR("fe80::/64")

	tests := []struct {
		name   string
		route  netlink.Route
		wantID string
	}{
		{
			name: "default via gateway",
			route: netlink.Route{LinkIndex: 2, Gw: net.ParseIP("10.0.0.1"), Table: unix.RT_TABLE_MAIN,
				Type: unix.RTN_UNICAST, Protocol: unix.RTPROT_BOOT, Family: netlink.FAMILY_V4, Priority: 100},
			wantID: "254/0.0.0.0/0/eth0/10.0.0.1/100",
		},
		{
			name: "static prefix",
			route: netlink.Route{LinkIndex: 2, Dst: dst, Table: 100, Type: unix.RTN_UNICAST,
				Protocol: unix.RTPROT_STATIC, Family: netlink.FAMILY_V4},
			wantID: "100/10.10.0.0/16/eth0//0",
		},
		{
			name: "local table",
			route: netlink.Route{LinkIndex: 2, Dst: dst, Table: unix.RT_TABLE_LOCAL, Type: unix.RTN_UNICAST,
				Family: netlink.FAMILY_V4},
		},
		{
			name: "kernel protocol",
			route: netlink.Route{LinkIndex: 2, Dst: dst, Table: unix.RT_TABLE_MAIN, Type: unix.RTN_UNICAST,
				Protocol: unix.RTPROT_KERNEL, Family: netlink.FAMILY_V4},
		},
		{
			name: "link-local",
			route: netlink.Route{LinkIndex: 2, Dst: ll, Table: unix.RT_TABLE_MAIN, Type: unix.RTN_UNICAST,
				Protocol: unix.RTPROT_BOOT, Family: netlink.FAMILY_V6},
		},
		{
			name: "blackhole",
			route: netlink.Route{Dst: dst, Table: unix.RT_TABLE_MAIN, Type: unix.RTN_BLACKHOLE,
				Family: netlink.FAMILY_V4},
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			rec, ok := routeFromNetlink(tt.route, names)
			if tt.wantID == "" {
				if ok {
					t.Errorf("route should be skipped, got %s", rec.EntityID())
				}
				return
			}
			if !ok {
				t.Fatalf("route was skipped")
			}
			if rec.EntityID() != tt.wantID {
				t.Errorf("EntityID() = %q, want %q", rec.EntityID(), tt.wantID)
			}
		})
	}
}

func TestBuildRoute(t *testing.T) {
	index := func(name string) (int, error) {
		if name == "eth0" {
			return 2, nil
		}
		return 0, errors.NewInvalidArgument("interface "+name+" does not exist", nil)
	}

	r, err := buildRoute(nil, &state.Route{Destination: "10.10.1.0/24", NextHopInterface: "eth0", TableID: 100, Metric: 5}, index)
	if err != nil {
		t.Fatalf("buildRoute() error: %v", err)
	}
	if r.Dst.String() != "10.10.1.0/24" || r.LinkIndex != 2 || r.Table != 100 || r.Priority != 5 {
		t.Errorf("unexpected route %v", r)
	}
	if r.Scope != netlink.SCOPE_LINK || r.Family != netlink.FAMILY_V4 {
		t.Errorf("direct route should be link-scoped IPv4, got scope=%v family=%d", r.Scope, r.Family)
	}

	r, err = buildRoute(nil, &state.Route{Destination: "::/0", NextHopAddress: "2001:db8::1"}, index)
	if err != nil {
		t.Fatalf("buildRoute() error: %v", err)
	}
	if r.Family != netlink.FAMILY_V6 || r.Table != unix.RT_TABLE_MAIN || r.Gw.String() != "2001:db8::1" {
		t.Errorf("unexpected route %v", r)
	}

	if _, err := buildRoute(nil, &state.Route{Destination: "10.0.0.0/8", NextHopInterface: "eth9"}, index); errors.KindOf(err) != errors.KindInvalidArgument {
		t.Errorf("missing interface should be InvalidArgument, got %v", err)
	}
	if _, err := buildRoute(nil, &state.Route{Destination: "10.0.0.0/8"}, index); errors.KindOf(err) != errors.KindInvalidArgument {
		t.Errorf("route without next hop should be InvalidArgument, got %v", err)
	}
}

func TestRules(t *testing.T) {
	rec := &state.RouteRule{Family: "ipv4", Priority: 100, IPFrom: "192.168.1.0/24", RouteTable: 100, FwMark: 7, FwMask: 255}
	r, err := BuildRule(nil, rec)
	if err != nil {
		t.Fatalf("BuildRule() error: %v", err)
	}
	if r.Src.String() != "192.168.1.0/24" || r.Mark != 7 || r.Mask == nil || *r.Mask != 255 || r.Table != 100 {
		t.Errorf("unexpected rule %v", r)
	}

	back, ok := ruleFromNetlink(*r.Rule, netlink.FAMILY_V4)
	if !ok {
		t.Fatalf("rule was skipped")
	}
	if back.EntityID() != rec.EntityID() {
		t.Errorf("round trip id = %q, want %q", back.EntityID(), rec.EntityID())
	}

	for _, def := range []netlink.Rule{
		{Priority: 0, Table: unix.RT_TABLE_LOCAL},
		{Priority: 32766, Table: unix.RT_TABLE_MAIN},
		{Priority: 32767, Table: unix.RT_TABLE_DEFAULT},
	} {
		if _, ok := ruleFromNetlink(def, netlink.FAMILY_V4); ok {
			t.Errorf("default rule %d should be skipped", def.Priority)
		}
	}
}

func TestBuildLink(t *testing.T) {
	index := func(name string) (int, error) { return 7, nil }

	tests := []struct {
		name     string
		iface    *state.Interface
		wantType string
		wantKind errors.Kind
	}{
		{"bridge", &state.Interface{Name: "br0", Type: state.TypeBridge}, "bridge", ""},
		{"bond", &state.Interface{Name: "bond0", Type: state.TypeBond, Bond: &state.BondConfig{Mode: "802.3ad"}}, "bond", ""},
		{"vlan", &state.Interface{Name: "eth0.10", Type: state.TypeVLAN, VLAN: &state.VLANConfig{BaseIface: "eth0", ID: 10}}, "vlan", ""},
		{"veth", &state.Interface{Name: "v0", Type: state.TypeVeth, Veth: &state.VethConfig{Peer: "v1"}}, "veth", ""},
		{"dummy", &state.Interface{Name: "d0", Type: state.TypeDummy, MTU: state.Int(9000)}, "dummy", ""},
		{"ethernet", &state.Interface{Name: "eth5", Type: state.TypeEthernet}, "", errors.KindNotSupported},
		{"bad mac", &state.Interface{Name: "d1", Type: state.TypeDummy, MACAddress: "zz"}, "", errors.KindInvalidArgument},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			link, err := buildLink(tt.iface, index)
			if tt.wantKind != "" {
				if errors.KindOf(err) != tt.wantKind {
					t.Fatalf("buildLink() kind = %q, want %q (err %v)", errors.KindOf(err), tt.wantKind, err)
				}
				return
			}
			if err != nil {
				t.Fatalf("buildLink() error: %v", err)
			}
			if link.Type() != tt.wantType {
				t.Errorf("Type() = %q, want %q", link.Type(), tt.wantType)
			}
			switch l := link.(type) {
			case *netlink.Bond:
				if l.Mode != netlink.BOND_MODE_802_3AD {
					t.Errorf("bond mode = %v", l.Mode)
				}
			case *netlink.Vlan:
				if l.VlanId != 10 || l.ParentIndex != 7 {
					t.Errorf("vlan = %+v", l)
				}
			case *netlink.Veth:
				if l.PeerName != "v1" {
					t.Errorf("veth peer = %q", l.PeerName)
				}
			case *netlink.Dummy:
				if l.MTU != 9000 {
					t.Errorf("dummy mtu = %d", l.MTU)
				}
			}
		})
	}
}

func TestRequireStatic(t *testing.T) {
	dhcp := &state.Interface{Name: "eth0", IPv4: &state.IPConfig{DHCP: state.Bool(true)}}
	if err := requireStatic(dhcp, nil); errors.KindOf(err) != errors.KindNotSupported {
		t.Errorf("enabling dhcp should be NotSupported, got %v", err)
	}
	if err := requireStatic(dhcp, dhcp); err != nil {
		t.Errorf("dhcp that is already running should be accepted, got %v", err)
	}
	slaac := &state.Interface{Name: "eth0", IPv6: &state.IPConfig{Autoconf: state.Bool(true)}}
	if err := requireStatic(slaac, &state.Interface{Name: "eth0"}); errors.KindOf(err) != errors.KindNotSupported {
		t.Errorf("enabling autoconf should be NotSupported, got %v", err)
	}
	static := &state.Interface{Name: "eth0", IPv4: &state.IPConfig{Addresses: []state.IPAddress{{IP: "10.0.0.1", PrefixLength: 8}}}}
	if err := requireStatic(static, nil); err != nil {
		t.Errorf("static addressing should be accepted, got %v", err)
	}
}

func TestBridgeSTP(t *testing.T) {
	root := t.TempDir()
	if err := os.MkdirAll(filepath.Join(root, "br0", "bridge"), 0o755); err != nil {
		t.Fatal(err)
	}
	if err := os.WriteFile(filepath.Join(root, "br0", "bridge", "stp_state"), []byte("0\n"), 0o644); err != nil {
		t.Fatal(err)
	}

	if on, ok := bridgeSTP(root, "br0"); !ok || on {
		t.Fatalf("bridgeSTP() = %v, %v; want false, true", on, ok)
	}
	if err := setBridgeSTP(root, "br0", true); err != nil {
		t.Fatalf("setBridgeSTP() error: %v", err)
	}
	if on, _ := bridgeSTP(root, "br0"); !on {
		t.Errorf("STP should be enabled after setBridgeSTP")
	}
	if _, ok := bridgeSTP(root, "br9"); ok {
		t.Errorf("missing bridge should not be readable")
	}
}
