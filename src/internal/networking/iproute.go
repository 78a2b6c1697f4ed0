package networking

import (
	"fmt"
	"net"
	"net/netip"

	"github.com/maksimkurb/netstate/src/internal/errors"
	"github.com/maksimkurb/netstate/src/internal/log"
	"github.com/maksimkurb/netstate/src/internal/state"
	"github.com/vishvananda/netlink"
	"golang.org/x/sys/unix"
)

// IpRoute is a static route bound to a netlink handle.
type IpRoute struct {
	*netlink.Route

	h  *Handle
	id string
}

func (r *IpRoute) String() string {
	return fmt.Sprintf("table %d: dst=%s via=%s dev-idx=%d [metric:%d]",
		r.Table, r.Dst, r.Gw, r.LinkIndex, r.Priority)
}

// BuildRoute converts a route record. Next-hop interface names are resolved
// through h.
func BuildRoute(h *Handle, rec *state.Route) (*IpRoute, error) {
	return buildRoute(h, rec, h.linkIndex)
}

func buildRoute(h *Handle, rec *state.Route, index func(string) (int, error)) (*IpRoute, error) {
	dst, err := netip.ParsePrefix(rec.Destination)
	if err != nil {
		return nil, errors.NewInvalidArgument(fmt.Sprintf("invalid route destination %q", rec.Destination), err)
	}
	dst = dst.Masked()

	r := &netlink.Route{
		Dst:      &net.IPNet{IP: dst.Addr().AsSlice(), Mask: net.CIDRMask(dst.Bits(), dst.Addr().BitLen())},
		Priority: rec.Metric,
		Table:    rec.TableID,
		Family:   netlink.FAMILY_V4,
		Type:     unix.RTN_UNICAST,
	}
	if dst.Addr().Is6() {
		r.Family = netlink.FAMILY_V6
	}
	if r.Table == 0 {
		r.Table = unix.RT_TABLE_MAIN
	}
	if rec.NextHopAddress != "" {
		gw, err := netip.ParseAddr(rec.NextHopAddress)
		if err != nil {
			return nil, errors.NewInvalidArgument(fmt.Sprintf("invalid next-hop address %q", rec.NextHopAddress), err)
		}
		r.Gw = gw.AsSlice()
	}
	if rec.NextHopInterface != "" {
		idx, err := index(rec.NextHopInterface)
		if err != nil {
			return nil, err
		}
		r.LinkIndex = idx
	}
	if r.Gw == nil && r.LinkIndex == 0 {
		return nil, errors.NewInvalidArgument(
			fmt.Sprintf("route %s needs a next-hop interface or address", rec.Destination), nil)
	}
	if r.Gw == nil {
		r.Scope = netlink.SCOPE_LINK
	}

	return &IpRoute{Route: r, h: h, id: rec.EntityID()}, nil
}

// routeFromNetlink converts a kernel route. Routes the kernel manages on its
// own (local table, kernel protocol, link-local, multicast, multipath,
// non-unicast) are skipped.
func routeFromNetlink(r netlink.Route, names map[int]string) (*state.Route, bool) {
	if r.Table == unix.RT_TABLE_LOCAL || r.Protocol == unix.RTPROT_KERNEL {
		return nil, false
	}
	if r.Type != unix.RTN_UNICAST || len(r.MultiPath) > 0 {
		return nil, false
	}

	var dst netip.Prefix
	if r.Dst == nil {
		if r.Family == netlink.FAMILY_V6 {
			dst = netip.MustParsePrefix("::/0")
		} else {
			dst = netip.MustParsePrefix("0.0.0.0/0")
		}
	} else {
		ip, ok := netip.AddrFromSlice(r.Dst.IP)
		if !ok {
			return nil, false
		}
		ones, _ := r.Dst.Mask.Size()
		dst = netip.PrefixFrom(ip.Unmap(), ones).Masked()
	}
	if dst.Addr().IsLinkLocalUnicast() || dst.Addr().IsMulticast() {
		return nil, false
	}

	rec := &state.Route{
		Destination:      dst.String(),
		NextHopInterface: names[r.LinkIndex],
		Metric:           r.Priority,
		TableID:          r.Table,
	}
	if r.Gw != nil {
		if gw, ok := netip.AddrFromSlice(r.Gw); ok {
			rec.NextHopAddress = gw.Unmap().String()
		}
	}
	return rec, true
}

func (ipr *IpRoute) Add() error {
	log.Debugf("Adding IP route [%v]", ipr)
	if err := ipr.h.RouteAdd(ipr.Route); err != nil {
		log.Warnf("Failed to add IP route [%v]: %v", ipr, err)
		return errors.FromErrno("add route "+ipr.id, err)
	}

	return nil
}

func (ipr *IpRoute) AddIfNotExists() (bool, error) {
	exists, err := ipr.IsExists()
	if err != nil {
		return false, err
	}
	if exists {
		return false, nil
	}
	if err := ipr.Add(); err != nil {
		return false, err
	}
	return true, nil
}

// IsExists compares route identities, so a route differing only in an
// attribute the record does not carry still counts as existing.
func (ipr *IpRoute) IsExists() (bool, error) {
	filtered, err := ipr.h.RouteListFiltered(ipr.Family, &netlink.Route{Table: ipr.Table}, netlink.RT_FILTER_TABLE)
	if err != nil {
		log.Warnf("Checking if IP route exists [%v] is failed: %v", ipr, err)
		return false, errors.FromErrno("list routes", err)
	}

	names, err := ipr.h.linkNames()
	if err != nil {
		return false, err
	}
	for _, r := range filtered {
		rec, ok := routeFromNetlink(r, names)
		if !ok {
			continue
		}
		normalizeRoute(rec)
		if rec.EntityID() == ipr.id {
			log.Debugf("Checking if IP route exists [%v]: YES", ipr)
			ipr.Route = &r
			return true, nil
		}
	}

	log.Debugf("Checking if IP route exists [%v]: NO", ipr)
	return false, nil
}

func (ipr *IpRoute) Del() error {
	log.Debugf("Deleting IP route [%v]", ipr)
	if err := ipr.h.RouteDel(ipr.Route); err != nil {
		log.Warnf("Failed to delete IP route [%v]: %v", ipr, err)
		return errors.FromErrno("delete route "+ipr.id, err)
	}

	return nil
}

func (ipr *IpRoute) DelIfExists() (bool, error) {
	exists, err := ipr.IsExists()
	if err != nil {
		return false, err
	}
	if !exists {
		return false, nil
	}
	if err := ipr.Del(); err != nil {
		return false, err
	}
	return true, nil
}

// normalizeRoute applies the same defaults the document model uses so that
// kernel routes and records compare by id.
func normalizeRoute(rec *state.Route) {
	s := &state.NetworkState{Routes: []*state.Route{rec}}
	s.Canonicalize()
}
