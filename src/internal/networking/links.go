package networking

import (
	"context"
	"fmt"
	"net"
	"strings"

	"github.com/maksimkurb/netstate/src/internal/diff"
	"github.com/maksimkurb/netstate/src/internal/errors"
	"github.com/maksimkurb/netstate/src/internal/log"
	"github.com/maksimkurb/netstate/src/internal/state"
	"github.com/vishvananda/netlink"
)

func (b *Backend) applyInterface(ctx context.Context, op diff.Operation) error {
	switch op.Action {
	case diff.ActionDelete:
		return b.deleteInterface(op.Previous.(*state.Interface))
	case diff.ActionCreate:
		iface := op.Payload.(*state.Interface)
		if err := requireStatic(iface, nil); err != nil {
			return err
		}
		if err := b.createInterface(iface); err != nil {
			return err
		}
		return b.configure(ctx, iface)
	default:
		iface := op.Payload.(*state.Interface)
		prev, _ := op.Previous.(*state.Interface)
		if err := requireStatic(iface, prev); err != nil {
			return err
		}
		return b.configure(ctx, iface)
	}
}

// requireStatic rejects turning on DHCP or SLAAC: only the daemon can run
// those clients. Flags already on in prev are kept as they are.
func requireStatic(iface, prev *state.Interface) error {
	if prev == nil {
		prev = &state.Interface{}
	}
	for _, f := range []struct {
		family     string
		next, prev *state.IPConfig
	}{
		{"ipv4", iface.IPv4, prev.IPv4},
		{"ipv6", iface.IPv6, prev.IPv6},
	} {
		dhcp, autoconf := dynamicFlags(f.next)
		hadDHCP, hadAutoconf := dynamicFlags(f.prev)
		switch {
		case dhcp && !hadDHCP:
			return errors.NewNotSupported(
				fmt.Sprintf("%s dhcp on %s needs NetworkManager", f.family, iface.Name), nil)
		case autoconf && !hadAutoconf:
			return errors.NewNotSupported(
				fmt.Sprintf("%s autoconf on %s needs NetworkManager", f.family, iface.Name), nil)
		}
	}
	return nil
}

func dynamicFlags(c *state.IPConfig) (dhcp, autoconf bool) {
	if c == nil {
		return false, false
	}
	return c.DHCP != nil && *c.DHCP, c.Autoconf != nil && *c.Autoconf
}

func (b *Backend) createInterface(iface *state.Interface) error {
	// Veth peers come into existence with their other end, and rollback
	// recreates physical links that were only set down.
	if _, err := b.h.LinkByName(iface.Name); err == nil {
		log.Debugf("Link %s already exists", iface.Name)
		return nil
	}

	link, err := buildLink(iface, b.h.linkIndex)
	if err != nil {
		return err
	}
	log.Debugf("Adding link %s (%s)", iface.Name, link.Type())
	if err := b.h.LinkAdd(link); err != nil {
		return errors.FromErrno("create interface "+iface.Name, err)
	}
	return nil
}

// buildLink returns the netlink link creating iface.
func buildLink(iface *state.Interface, index func(string) (int, error)) (netlink.Link, error) {
	attrs := netlink.NewLinkAttrs()
	attrs.Name = iface.Name
	if iface.MTU != nil {
		attrs.MTU = *iface.MTU
	}
	if iface.MACAddress != "" {
		mac, err := net.ParseMAC(iface.MACAddress)
		if err != nil {
			return nil, errors.NewInvalidArgument(fmt.Sprintf("invalid MAC address %q", iface.MACAddress), err)
		}
		attrs.HardwareAddr = mac
	}

	switch iface.Type {
	case state.TypeBridge:
		return &netlink.Bridge{LinkAttrs: attrs}, nil
	case state.TypeBond:
		bond := netlink.NewLinkBond(attrs)
		if iface.Bond != nil && iface.Bond.Mode != "" {
			bond.Mode = netlink.StringToBondMode(iface.Bond.Mode)
		}
		return bond, nil
	case state.TypeVLAN:
		if iface.VLAN == nil {
			return nil, errors.NewInvalidArgument(fmt.Sprintf("vlan %s has no vlan section", iface.Name), nil)
		}
		parent, err := index(iface.VLAN.BaseIface)
		if err != nil {
			return nil, err
		}
		attrs.ParentIndex = parent
		return &netlink.Vlan{LinkAttrs: attrs, VlanId: iface.VLAN.ID}, nil
	case state.TypeVeth:
		if iface.Veth == nil {
			return nil, errors.NewInvalidArgument(fmt.Sprintf("veth %s has no peer", iface.Name), nil)
		}
		return &netlink.Veth{LinkAttrs: attrs, PeerName: iface.Veth.Peer}, nil
	case state.TypeDummy:
		return &netlink.Dummy{LinkAttrs: attrs}, nil
	}
	return nil, errors.NewNotSupported(
		fmt.Sprintf("cannot create interface %s of type %s", iface.Name, iface.Type), nil)
}

// configure brings an existing link to the record. Unspecified fields are
// left alone.
func (b *Backend) configure(ctx context.Context, iface *state.Interface) error {
	link, err := b.h.LinkByName(iface.Name)
	if err != nil {
		return errors.FromErrno("look up "+iface.Name, err)
	}
	attrs := link.Attrs()

	steps := []func() error{
		func() error {
			if iface.MTU == nil || *iface.MTU == attrs.MTU {
				return nil
			}
			log.Debugf("Setting MTU of %s to %d", iface.Name, *iface.MTU)
			return errors.FromErrno("set mtu of "+iface.Name, b.h.LinkSetMTU(link, *iface.MTU))
		},
		func() error {
			if iface.MACAddress == "" || strings.EqualFold(iface.MACAddress, attrs.HardwareAddr.String()) {
				return nil
			}
			mac, err := net.ParseMAC(iface.MACAddress)
			if err != nil {
				return errors.NewInvalidArgument(fmt.Sprintf("invalid MAC address %q", iface.MACAddress), err)
			}
			return errors.FromErrno("set mac of "+iface.Name, b.h.LinkSetHardwareAddr(link, mac))
		},
		func() error { return b.setController(link, iface) },
		func() error { return b.syncAddresses(link, iface.IPv4, false) },
		func() error { return b.syncAddresses(link, iface.IPv6, true) },
		func() error { return b.setSTP(iface) },
		func() error { return b.checkBondMode(link, iface) },
		func() error { return b.setAdminState(link, iface) },
	}

	for _, step := range steps {
		if err := ctx.Err(); err != nil {
			return errors.FromErrno("configure "+iface.Name, err)
		}
		if err := step(); err != nil {
			return err
		}
	}
	return nil
}

func (b *Backend) setController(link netlink.Link, iface *state.Interface) error {
	if iface.Controller == nil {
		return nil
	}
	want := *iface.Controller
	have := ""
	if idx := link.Attrs().MasterIndex; idx > 0 {
		if master, err := b.h.LinkByIndex(idx); err == nil {
			have = master.Attrs().Name
		}
	}
	if want == have {
		return nil
	}

	if want == "" {
		log.Debugf("Detaching %s from %s", iface.Name, have)
		return errors.FromErrno("detach "+iface.Name, b.h.LinkSetNoMaster(link))
	}

	master, err := b.h.LinkByName(want)
	if err != nil {
		return errors.FromErrno("look up controller "+want, err)
	}
	if _, ok := master.(*netlink.Bond); ok {
		// Bonds only enslave links that are down.
		if err := b.h.LinkSetDown(link); err != nil {
			return errors.FromErrno("set "+iface.Name+" down", err)
		}
	}
	log.Debugf("Attaching %s to %s", iface.Name, want)
	return errors.FromErrno("attach "+iface.Name+" to "+want, b.h.LinkSetMaster(link, master))
}

func (b *Backend) syncAddresses(link netlink.Link, cfg *state.IPConfig, v6 bool) error {
	if cfg == nil {
		return nil
	}
	family := netlink.FAMILY_V4
	if v6 {
		family = netlink.FAMILY_V6
	}
	current, err := b.h.AddrList(link, family)
	if err != nil {
		return errors.FromErrno("list addresses of "+link.Attrs().Name, err)
	}

	var add, del []*netlink.Addr
	switch {
	case cfg.Enabled != nil && !*cfg.Enabled:
		for i := range current {
			if v6 && current[i].IP.IsLinkLocalUnicast() {
				continue
			}
			del = append(del, &current[i])
		}
	case cfg.Addresses != nil:
		if add, del, err = addrDelta(cfg.Addresses, staticAddrs(current, v6)); err != nil {
			return errors.NewInvalidArgument("invalid address on "+link.Attrs().Name, err)
		}
	}

	for _, a := range del {
		log.Debugf("Removing address %s from %s", a.IPNet, link.Attrs().Name)
		if err := b.h.AddrDel(link, a); err != nil {
			return errors.FromErrno(fmt.Sprintf("remove %s from %s", a.IPNet, link.Attrs().Name), err)
		}
	}
	for _, a := range add {
		log.Debugf("Adding address %s to %s", a.IPNet, link.Attrs().Name)
		if err := b.h.AddrAdd(link, a); err != nil {
			return errors.FromErrno(fmt.Sprintf("add %s to %s", a.IPNet, link.Attrs().Name), err)
		}
	}
	return nil
}

func (b *Backend) setSTP(iface *state.Interface) error {
	if iface.Bridge == nil || iface.Bridge.Options == nil || iface.Bridge.Options.STP == nil ||
		iface.Bridge.Options.STP.Enabled == nil {
		return nil
	}
	want := *iface.Bridge.Options.STP.Enabled
	if have, ok := bridgeSTP(b.sysfsRoot, iface.Name); ok && have == want {
		return nil
	}
	return setBridgeSTP(b.sysfsRoot, iface.Name, want)
}

func (b *Backend) checkBondMode(link netlink.Link, iface *state.Interface) error {
	bond, ok := link.(*netlink.Bond)
	if !ok || iface.Bond == nil || iface.Bond.Mode == "" {
		return nil
	}
	if bond.Mode.String() != iface.Bond.Mode {
		return errors.NewNotSupported(fmt.Sprintf("changing the mode of bond %s from %s to %s",
			iface.Name, bond.Mode, iface.Bond.Mode), nil)
	}
	return nil
}

func (b *Backend) setAdminState(link netlink.Link, iface *state.Interface) error {
	switch iface.State {
	case state.StateUp:
		log.Debugf("Setting %s up", iface.Name)
		return errors.FromErrno("set "+iface.Name+" up", b.h.LinkSetUp(link))
	case state.StateDown:
		log.Debugf("Setting %s down", iface.Name)
		return errors.FromErrno("set "+iface.Name+" down", b.h.LinkSetDown(link))
	}
	return nil
}

// deleteInterface removes a virtual link. Physical links cannot be removed;
// they are set down and lose their addresses instead.
func (b *Backend) deleteInterface(prev *state.Interface) error {
	link, err := b.h.LinkByName(prev.Name)
	if err != nil {
		if _, ok := err.(netlink.LinkNotFoundError); ok {
			return nil
		}
		return errors.FromErrno("look up "+prev.Name, err)
	}

	if linkType(link).IsVirtual() {
		log.Debugf("Deleting link %s", prev.Name)
		return errors.FromErrno("delete interface "+prev.Name, b.h.LinkDel(link))
	}

	if err := b.h.LinkSetDown(link); err != nil {
		return errors.FromErrno("set "+prev.Name+" down", err)
	}
	disabled := &state.IPConfig{Enabled: state.Bool(false)}
	if err := b.syncAddresses(link, disabled, false); err != nil {
		return err
	}
	return b.syncAddresses(link, disabled, true)
}
