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

const (
	rulePriorityMain    = 32766
	rulePriorityDefault = 32767
)

// IpRule is a policy routing rule bound to a netlink handle.
type IpRule struct {
	*netlink.Rule

	h  *Handle
	id string
}

func (r *IpRule) String() string {
	from := "all"
	if r.Src != nil {
		from = r.Src.String()
	}

	to := "all"
	if r.Dst != nil {
		to = r.Dst.String()
	}

	return fmt.Sprintf("rule %d: from %s to %s fwmark=%d iif=%s -> table %d",
		r.Priority, from, to, r.Mark, r.IifName, r.Table)
}

// BuildRule converts a rule record.
func BuildRule(h *Handle, rec *state.RouteRule) (*IpRule, error) {
	ipr := netlink.NewRule()

	ipr.Priority = rec.Priority
	ipr.Table = rec.RouteTable
	if ipr.Table == 0 {
		ipr.Table = unix.RT_TABLE_MAIN
	}
	ipr.Family = netlink.FAMILY_V4
	if rec.Family == "ipv6" {
		ipr.Family = netlink.FAMILY_V6
	}
	if rec.FwMark != 0 {
		ipr.Mark = uint32(rec.FwMark)
	}
	if rec.FwMask != 0 {
		mask := uint32(rec.FwMask)
		ipr.Mask = &mask
	}
	ipr.IifName = rec.Iif

	var err error
	if ipr.Src, err = ipNet(rec.IPFrom); err != nil {
		return nil, err
	}
	if ipr.Dst, err = ipNet(rec.IPTo); err != nil {
		return nil, err
	}
	return &IpRule{Rule: ipr, h: h, id: rec.EntityID()}, nil
}

func ipNet(s string) (*net.IPNet, error) {
	if s == "" {
		return nil, nil
	}
	p, err := netip.ParsePrefix(s)
	if err != nil {
		return nil, errors.NewInvalidArgument(fmt.Sprintf("invalid prefix %q", s), err)
	}
	p = p.Masked()
	return &net.IPNet{IP: p.Addr().AsSlice(), Mask: net.CIDRMask(p.Bits(), p.Addr().BitLen())}, nil
}

func prefixString(n *net.IPNet) string {
	if n == nil {
		return ""
	}
	return prefixOf(n)
}

// ruleFromNetlink converts a kernel rule, skipping the three rules the kernel
// installs on its own.
func ruleFromNetlink(r netlink.Rule, family int) (*state.RouteRule, bool) {
	if isDefaultRule(r) {
		return nil, false
	}
	rec := &state.RouteRule{
		Family:     "ipv4",
		Priority:   r.Priority,
		IPFrom:     prefixString(r.Src),
		IPTo:       prefixString(r.Dst),
		RouteTable: r.Table,
		FwMark:     int(r.Mark),
		Iif:        r.IifName,
	}
	if family == netlink.FAMILY_V6 {
		rec.Family = "ipv6"
	}
	if r.Mask != nil && *r.Mask != 0xffffffff {
		rec.FwMask = int(*r.Mask)
	}
	return rec, true
}

func isDefaultRule(r netlink.Rule) bool {
	if r.Src != nil || r.Dst != nil || r.Mark != 0 || r.IifName != "" || r.OifName != "" {
		return false
	}
	switch {
	case r.Priority == 0 && r.Table == unix.RT_TABLE_LOCAL:
		return true
	case r.Priority == rulePriorityMain && r.Table == unix.RT_TABLE_MAIN:
		return true
	case r.Priority == rulePriorityDefault && r.Table == unix.RT_TABLE_DEFAULT:
		return true
	}
	return false
}

func (ipr *IpRule) Add() error {
	log.Debugf("Adding IP rule [%v]", ipr)
	if err := ipr.h.RuleAdd(ipr.Rule); err != nil {
		log.Warnf("Failed to add IP rule [%v]: %v", ipr, err)
		return errors.FromErrno("add rule "+ipr.id, err)
	}

	return nil
}

func (ipr *IpRule) AddIfNotExists() (bool, error) {
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

func (ipr *IpRule) IsExists() (bool, error) {
	rules, err := ipr.h.RuleList(ipr.Family)
	if err != nil {
		log.Warnf("Checking if IP rule exists [%v] is failed: %v", ipr, err)
		return false, errors.FromErrno("list rules", err)
	}

	for _, r := range rules {
		rec, ok := ruleFromNetlink(r, ipr.Family)
		if !ok {
			continue
		}
		normalizeRule(rec)
		if rec.EntityID() == ipr.id {
			log.Debugf("Checking if IP rule exists [%v]: YES", ipr)
			return true, nil
		}
	}

	log.Debugf("Checking if IP rule exists [%v]: NO", ipr)
	return false, nil
}

func (ipr *IpRule) Del() error {
	log.Debugf("Deleting IP rule [%v]", ipr)
	if err := ipr.h.RuleDel(ipr.Rule); err != nil {
		log.Warnf("Failed to delete IP rule [%v]: %v", ipr, err)
		return errors.FromErrno("delete rule "+ipr.id, err)
	}

	return nil
}

func (ipr *IpRule) DelIfExists() (bool, error) {
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

func normalizeRule(rec *state.RouteRule) {
	s := &state.NetworkState{RouteRules: []*state.RouteRule{rec}}
	s.Canonicalize()
}
