package nm

import (
	"fmt"

	"github.com/godbus/dbus/v5"
	"github.com/google/uuid"
	"github.com/maksimkurb/netstate/src/internal/errors"
	"github.com/maksimkurb/netstate/src/internal/state"
)

// NetworkManager device types.
const (
	DeviceTypeEthernet = 1
	DeviceTypeBond     = 10
	DeviceTypeVLAN     = 11
	DeviceTypeBridge   = 13
	DeviceTypeVeth     = 20
	DeviceTypeDummy    = 22
	DeviceTypeLoopback = 32
)

// NetworkManager device states.
const (
	DeviceStateUnmanaged    = 10
	DeviceStateUnavailable  = 20
	DeviceStateDisconnected = 30
	DeviceStateActivated    = 100
)

// profileNamespace seeds the name-derived profile UUIDs.
var profileNamespace = uuid.MustParse("6f1c7d1e-3c59-4f8a-9a5e-2b7e0c4d9a10")

// ConnectionUUID returns the profile UUID for an interface name.
func ConnectionUUID(name string) string {
	return uuid.NewSHA1(profileNamespace, []byte(name)).String()
}

// ConnectionType returns the NetworkManager connection type of an
// interface type.
func ConnectionType(t state.InterfaceType) (string, error) {
	switch t {
	case state.TypeEthernet:
		return "802-3-ethernet", nil
	case state.TypeBridge:
		return "bridge", nil
	case state.TypeBond:
		return "bond", nil
	case state.TypeVLAN:
		return "vlan", nil
	case state.TypeVeth:
		return "veth", nil
	case state.TypeDummy:
		return "dummy", nil
	case state.TypeLoopback:
		return "loopback", nil
	}
	return "", errors.NewNotSupported(fmt.Sprintf("NetworkManager profiles for %s interfaces", t), nil)
}

// DeviceInterfaceType maps a device type code.
func DeviceInterfaceType(code uint32) state.InterfaceType {
	switch code {
	case DeviceTypeEthernet:
		return state.TypeEthernet
	case DeviceTypeBond:
		return state.TypeBond
	case DeviceTypeVLAN:
		return state.TypeVLAN
	case DeviceTypeBridge:
		return state.TypeBridge
	case DeviceTypeVeth:
		return state.TypeVeth
	case DeviceTypeDummy:
		return state.TypeDummy
	case DeviceTypeLoopback:
		return state.TypeLoopback
	}
	return state.TypeUnknown
}

// IPMethod returns the ipv4 or ipv6 method for an IP configuration.
func IPMethod(cfg *state.IPConfig, v6 bool) string {
	if cfg == nil || (cfg.Enabled != nil && !*cfg.Enabled) {
		return "disabled"
	}
	dhcp := cfg.DHCP != nil && *cfg.DHCP
	autoconf := cfg.Autoconf != nil && *cfg.Autoconf
	switch {
	case v6 && autoconf:
		return "auto"
	case v6 && dhcp:
		return "dhcp"
	case dhcp:
		return "auto"
	case len(cfg.Addresses) > 0:
		return "manual"
	}
	return "disabled"
}

// ToSettings builds the profile for an interface record. controllerType is
// the type of the interface's controller, empty when it is not a port.
func ToSettings(iface *state.Interface, controllerType state.InterfaceType) (Settings, error) {
	connType, err := ConnectionType(iface.Type)
	if err != nil {
		return nil, err
	}

	s := Settings{
		"connection": {
			"id":             dbus.MakeVariant(iface.Name),
			"uuid":           dbus.MakeVariant(ConnectionUUID(iface.Name)),
			"type":           dbus.MakeVariant(connType),
			"interface-name": dbus.MakeVariant(iface.Name),
			"autoconnect":    dbus.MakeVariant(iface.State != state.StateDown),
		},
	}

	if ctrl := iface.ControllerName(); ctrl != "" {
		slaveType, err := ConnectionType(controllerType)
		if err != nil || !controllerType.IsController() {
			return nil, errors.NewInvalidArgument(
				fmt.Sprintf("controller %s of %s is not a bridge or bond", ctrl, iface.Name), err)
		}
		s["connection"]["master"] = dbus.MakeVariant(ctrl)
		s["connection"]["slave-type"] = dbus.MakeVariant(slaveType)
	} else {
		s["ipv4"] = ipSettings(iface.IPv4, false)
		s["ipv6"] = ipSettings(iface.IPv6, true)
	}

	wired := map[string]dbus.Variant{}
	if iface.MTU != nil {
		wired["mtu"] = dbus.MakeVariant(uint32(*iface.MTU))
	}
	if iface.MACAddress != "" {
		wired["cloned-mac-address"] = dbus.MakeVariant(iface.MACAddress)
	}
	if len(wired) > 0 {
		s["802-3-ethernet"] = wired
	}

	switch iface.Type {
	case state.TypeBridge:
		br := map[string]dbus.Variant{}
		if iface.Bridge != nil && iface.Bridge.Options != nil && iface.Bridge.Options.STP != nil &&
			iface.Bridge.Options.STP.Enabled != nil {
			br["stp"] = dbus.MakeVariant(*iface.Bridge.Options.STP.Enabled)
		}
		s["bridge"] = br
	case state.TypeBond:
		opts := map[string]string{}
		if iface.Bond != nil && iface.Bond.Mode != "" {
			opts["mode"] = iface.Bond.Mode
		}
		s["bond"] = map[string]dbus.Variant{"options": dbus.MakeVariant(opts)}
	case state.TypeVLAN:
		if iface.VLAN == nil {
			return nil, errors.NewInvalidArgument(fmt.Sprintf("vlan %s has no vlan section", iface.Name), nil)
		}
		s["vlan"] = map[string]dbus.Variant{
			"parent": dbus.MakeVariant(iface.VLAN.BaseIface),
			"id":     dbus.MakeVariant(uint32(iface.VLAN.ID)),
		}
	case state.TypeVeth:
		if iface.Veth == nil {
			return nil, errors.NewInvalidArgument(fmt.Sprintf("veth %s has no peer", iface.Name), nil)
		}
		s["veth"] = map[string]dbus.Variant{"peer": dbus.MakeVariant(iface.Veth.Peer)}
	}
	return s, nil
}

func ipSettings(cfg *state.IPConfig, v6 bool) map[string]dbus.Variant {
	method := IPMethod(cfg, v6)
	out := map[string]dbus.Variant{"method": dbus.MakeVariant(method)}
	if cfg == nil || method == "disabled" {
		return out
	}

	data := make([]map[string]dbus.Variant, 0, len(cfg.Addresses))
	for _, a := range cfg.Addresses {
		data = append(data, map[string]dbus.Variant{
			"address": dbus.MakeVariant(a.IP),
			"prefix":  dbus.MakeVariant(uint32(a.PrefixLength)),
		})
	}
	out["address-data"] = dbus.MakeVariant(data)
	return out
}

// FromDevice returns the part of an interface record NetworkManager is
// authoritative for: activation state and IP methods.
func FromDevice(d Device, applied Settings) *state.Interface {
	iface := &state.Interface{Name: d.Interface, State: state.StateDown}
	if d.State == DeviceStateActivated {
		iface.State = state.StateUp
	}
	if applied == nil {
		return iface
	}
	iface.IPv4 = ipFromMethod(stringProp(applied, "ipv4", "method"), false)
	iface.IPv6 = ipFromMethod(stringProp(applied, "ipv6", "method"), true)
	return iface
}

func ipFromMethod(method string, v6 bool) *state.IPConfig {
	cfg := &state.IPConfig{}
	switch method {
	case "disabled":
		cfg.Enabled = state.Bool(false)
		cfg.DHCP = state.Bool(false)
	case "manual":
		cfg.Enabled = state.Bool(true)
		cfg.DHCP = state.Bool(false)
	case "auto":
		cfg.Enabled = state.Bool(true)
		cfg.DHCP = state.Bool(true)
	case "dhcp":
		cfg.Enabled = state.Bool(true)
		cfg.DHCP = state.Bool(true)
	default:
		return nil
	}
	if v6 {
		cfg.Autoconf = state.Bool(method == "auto")
	}
	return cfg
}

func stringProp(s Settings, setting, key string) string {
	v, ok := s[setting][key]
	if !ok {
		return ""
	}
	str, _ := v.Value().(string)
	return str
}

func interfaceName(s Settings) string {
	return stringProp(s, "connection", "interface-name")
}
