package state

import (
	"fmt"
	"net/netip"
)

// InterfaceType is the type of a network interface.
type InterfaceType string

const (
	TypeEthernet InterfaceType = "ethernet"
	TypeBridge   InterfaceType = "linux-bridge"
	TypeBond     InterfaceType = "bond"
	TypeVLAN     InterfaceType = "vlan"
	TypeVeth     InterfaceType = "veth"
	TypeDummy    InterfaceType = "dummy"
	TypeLoopback InterfaceType = "loopback"
	TypeTun      InterfaceType = "tun"
	TypeVXLAN    InterfaceType = "vxlan"
	TypeVRF      InterfaceType = "vrf"
	TypeMACVLAN  InterfaceType = "mac-vlan"
	TypeUnknown  InterfaceType = "unknown"
)

// IsVirtual reports whether interfaces of this type can be created and deleted.
func (t InterfaceType) IsVirtual() bool {
	switch t {
	case TypeBridge, TypeBond, TypeVLAN, TypeVeth, TypeDummy,
		TypeTun, TypeVXLAN, TypeVRF, TypeMACVLAN:
		return true
	}
	return false
}

// IsController reports whether interfaces of this type accept ports.
func (t InterfaceType) IsController() bool {
	return t == TypeBridge || t == TypeBond
}

// InterfaceState is the administrative state of an interface.
type InterfaceState string

const (
	StateUp      InterfaceState = "up"
	StateDown    InterfaceState = "down"
	StateAbsent  InterfaceState = "absent"
	StateUnknown InterfaceState = "unknown"
)

// StateAbsentValue marks routes, rules and the resolver for removal.
const StateAbsentValue = "absent"

// NetworkState is a state document. A nil collection means the kind is not
// mentioned; an empty one means it is mentioned with no records.
type NetworkState struct {
	Interfaces []*Interface `json:"interfaces,omitempty" validate:"dive"`
	Routes     []*Route     `json:"routes,omitempty" validate:"dive"`
	RouteRules []*RouteRule `json:"route-rules,omitempty" validate:"dive"`
	DNS        *DNSResolver `json:"dns-resolver,omitempty"`
}

// Interface is an interface record.
type Interface struct {
	Name       string         `json:"name" validate:"required,ifname"`
	Type       InterfaceType  `json:"type,omitempty"`
	State      InterfaceState `json:"state,omitempty" validate:"omitempty,oneof=up down absent unknown"`
	MTU        *int           `json:"mtu,omitempty" validate:"omitempty,min=68,max=65536"`
	MACAddress string         `json:"mac-address,omitempty" validate:"omitempty,mac"`
	// Controller names the bridge or bond this interface is a port of.
	// An empty string means "not a port".
	Controller *string       `json:"controller,omitempty" validate:"omitempty,ifname_or_empty"`
	IPv4       *IPConfig     `json:"ipv4,omitempty"`
	IPv6       *IPConfig     `json:"ipv6,omitempty"`
	Bridge     *BridgeConfig `json:"bridge,omitempty"`
	Bond       *BondConfig   `json:"link-aggregation,omitempty"`
	VLAN       *VLANConfig   `json:"vlan,omitempty"`
	Veth       *VethConfig   `json:"veth,omitempty"`
}

type IPConfig struct {
	Enabled  *bool `json:"enabled,omitempty"`
	DHCP     *bool `json:"dhcp,omitempty"`
	Autoconf *bool `json:"autoconf,omitempty"`
	// Addresses is nil when unspecified.
	Addresses []IPAddress `json:"address" validate:"dive"`
}

type IPAddress struct {
	IP           string `json:"ip" validate:"required,ip"`
	PrefixLength int    `json:"prefix-length" validate:"min=0,max=128"`
}

func (a IPAddress) String() string {
	return fmt.Sprintf("%s/%d", a.IP, a.PrefixLength)
}

// Prefix parses the address, keeping the host bits.
func (a IPAddress) Prefix() (netip.Prefix, error) {
	addr, err := netip.ParseAddr(a.IP)
	if err != nil {
		return netip.Prefix{}, err
	}
	p := netip.PrefixFrom(addr, a.PrefixLength)
	if !p.IsValid() {
		return netip.Prefix{}, fmt.Errorf("invalid prefix length %d for %s", a.PrefixLength, a.IP)
	}
	return p, nil
}

type BridgeConfig struct {
	Options *BridgeOptions `json:"options,omitempty"`
	Ports   []BridgePort   `json:"port" validate:"dive"`
}

type BridgeOptions struct {
	STP *STPOptions `json:"stp,omitempty"`
}

type STPOptions struct {
	Enabled *bool `json:"enabled,omitempty"`
}

type BridgePort struct {
	Name string `json:"name" validate:"required,ifname"`
}

type BondConfig struct {
	Mode  string   `json:"mode,omitempty" validate:"omitempty,oneof=balance-rr active-backup balance-xor broadcast 802.3ad balance-tlb balance-alb"`
	Ports []string `json:"port" validate:"dive,ifname"`
}

type VLANConfig struct {
	BaseIface string `json:"base-iface" validate:"required,ifname"`
	ID        int    `json:"id" validate:"min=0,max=4094"`
}

type VethConfig struct {
	Peer string `json:"peer" validate:"required,ifname"`
}

// Route is a static route record. All fields but State form its identity.
type Route struct {
	State            string `json:"state,omitempty" validate:"omitempty,oneof=absent"`
	Destination      string `json:"destination" validate:"required,cidr"`
	NextHopInterface string `json:"next-hop-interface,omitempty" validate:"omitempty,ifname"`
	NextHopAddress   string `json:"next-hop-address,omitempty" validate:"omitempty,ip"`
	Metric           int    `json:"metric,omitempty" validate:"min=0"`
	TableID          int    `json:"table-id,omitempty" validate:"min=0"`
}

// RouteRule is a policy routing rule. All fields but State form its identity.
type RouteRule struct {
	State      string `json:"state,omitempty" validate:"omitempty,oneof=absent"`
	Family     string `json:"family,omitempty" validate:"omitempty,oneof=ipv4 ipv6"`
	Priority   int    `json:"priority" validate:"required,min=1"`
	IPFrom     string `json:"ip-from,omitempty" validate:"omitempty,cidr"`
	IPTo       string `json:"ip-to,omitempty" validate:"omitempty,cidr"`
	RouteTable int    `json:"route-table,omitempty" validate:"min=0"`
	FwMark     int    `json:"fwmark,omitempty" validate:"min=0"`
	FwMask     int    `json:"fwmask,omitempty" validate:"min=0"`
	Iif        string `json:"iif,omitempty" validate:"omitempty,ifname"`
}

// DNSResolver is the singleton resolver record.
type DNSResolver struct {
	State  string     `json:"state,omitempty" validate:"omitempty,oneof=absent"`
	Config *DNSConfig `json:"config,omitempty"`
}

type DNSConfig struct {
	// Servers is nil when unspecified.
	Servers []string `json:"server" validate:"dive,ip"`
	Search  []string `json:"search" validate:"dive,hostname_rfc1123"`
}

// DNSResolverID is the identifier of the only resolver record.
const DNSResolverID = "dns-resolver"

// Bool returns a pointer to b.
func Bool(b bool) *bool {
	return &b
}

// Int returns a pointer to i.
func Int(i int) *int {
	return &i
}

// String returns a pointer to s.
func String(s string) *string {
	return &s
}
