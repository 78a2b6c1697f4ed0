package networking

import (
	"context"
	"fmt"

	"github.com/maksimkurb/netstate/src/internal/diff"
	"github.com/maksimkurb/netstate/src/internal/errors"
	"github.com/maksimkurb/netstate/src/internal/log"
	"github.com/maksimkurb/netstate/src/internal/state"
	"github.com/vishvananda/netlink"
	"golang.org/x/sys/unix"
)

// Backend reads and applies interfaces, routes and route rules through
// netlink.
type Backend struct {
	h         *Handle
	sysfsRoot string
}

// NewBackend creates a kernel backend over h.
func NewBackend(h *Handle) *Backend {
	return &Backend{h: h, sysfsRoot: DefaultSysfsRoot}
}

func (b *Backend) Name() string {
	return "kernel"
}

func (b *Backend) Kinds() []state.Kind {
	return []state.Kind{state.KindInterfaces, state.KindRoutes, state.KindRouteRules}
}

// Read returns the canonical current state of one entity kind.
func (b *Backend) Read(ctx context.Context, kind state.Kind) (*state.NetworkState, error) {
	if err := ctx.Err(); err != nil {
		return nil, errors.FromErrno("read "+string(kind), err)
	}

	out := state.New()
	var err error
	switch kind {
	case state.KindInterfaces:
		out.Interfaces, err = b.readInterfaces(ctx)
	case state.KindRoutes:
		out.Routes, err = b.readRoutes()
	case state.KindRouteRules:
		out.RouteRules, err = b.readRules()
	default:
		return nil, errors.NewNotSupported(fmt.Sprintf("kernel backend cannot read %s", kind), nil)
	}
	if err != nil {
		return nil, err
	}
	out.Canonicalize()
	return out, nil
}

func (b *Backend) readInterfaces(ctx context.Context) ([]*state.Interface, error) {
	links, err := b.h.LinkList()
	if err != nil {
		return nil, errors.FromErrno("list links", err)
	}

	names := make(map[int]string, len(links))
	ports := make(map[int][]string)
	for _, l := range links {
		attrs := l.Attrs()
		names[attrs.Index] = attrs.Name
		if attrs.MasterIndex > 0 {
			ports[attrs.MasterIndex] = append(ports[attrs.MasterIndex], attrs.Name)
		}
	}

	ifaces := make([]*state.Interface, 0, len(links))
	for _, l := range links {
		if err := ctx.Err(); err != nil {
			return nil, errors.FromErrno("read interfaces", err)
		}
		addrs, err := b.h.AddrList(l, netlink.FAMILY_ALL)
		if err != nil {
			return nil, errors.FromErrno("list addresses of "+l.Attrs().Name, err)
		}
		iface := interfaceFromLink(l, names, addrs, ports[l.Attrs().Index])
		if iface.Bridge != nil {
			if stp, ok := bridgeSTP(b.sysfsRoot, iface.Name); ok {
				iface.Bridge.Options = &state.BridgeOptions{STP: &state.STPOptions{Enabled: state.Bool(stp)}}
			}
		}
		ifaces = append(ifaces, iface)
	}
	return ifaces, nil
}

func (b *Backend) readRoutes() ([]*state.Route, error) {
	names, err := b.h.linkNames()
	if err != nil {
		return nil, err
	}
	routes, err := b.h.RouteListFiltered(netlink.FAMILY_ALL,
		&netlink.Route{Table: unix.RT_TABLE_UNSPEC}, netlink.RT_FILTER_TABLE)
	if err != nil {
		return nil, errors.FromErrno("list routes", err)
	}

	out := make([]*state.Route, 0, len(routes))
	seen := make(map[string]bool, len(routes))
	for _, r := range routes {
		rec, ok := routeFromNetlink(r, names)
		if !ok {
			continue
		}
		normalizeRoute(rec)
		if seen[rec.EntityID()] {
			continue
		}
		seen[rec.EntityID()] = true
		out = append(out, rec)
	}
	return out, nil
}

func (b *Backend) readRules() ([]*state.RouteRule, error) {
	out := make([]*state.RouteRule, 0)
	seen := make(map[string]bool)
	for _, family := range []int{netlink.FAMILY_V4, netlink.FAMILY_V6} {
		rules, err := b.h.RuleList(family)
		if err != nil {
			return nil, errors.FromErrno("list rules", err)
		}
		for _, r := range rules {
			rec, ok := ruleFromNetlink(r, family)
			if !ok {
				continue
			}
			normalizeRule(rec)
			if seen[rec.EntityID()] {
				continue
			}
			seen[rec.EntityID()] = true
			out = append(out, rec)
		}
	}
	return out, nil
}

// ApplyOperation performs one operation of a change-set.
func (b *Backend) ApplyOperation(ctx context.Context, op diff.Operation) error {
	if err := ctx.Err(); err != nil {
		return errors.FromErrno(op.String(), err)
	}
	log.Debugf("kernel: %s", op)

	switch op.Kind {
	case state.KindInterfaces:
		return b.applyInterface(ctx, op)
	case state.KindRoutes:
		return b.applyRoute(op)
	case state.KindRouteRules:
		return b.applyRule(op)
	}
	return errors.NewNotSupported(fmt.Sprintf("kernel backend cannot apply %s", op.Kind), nil)
}

func (b *Backend) applyRoute(op diff.Operation) error {
	if op.Action != diff.ActionCreate {
		prev, err := buildRoute(b.h, op.Previous.(*state.Route), b.lenientIndex)
		if err != nil {
			return err
		}
		if _, err := prev.DelIfExists(); err != nil {
			return err
		}
	}
	if op.Action == diff.ActionDelete {
		return nil
	}

	next, err := BuildRoute(b.h, op.Payload.(*state.Route))
	if err != nil {
		return err
	}
	_, err = next.AddIfNotExists()
	return err
}

func (b *Backend) applyRule(op diff.Operation) error {
	if op.Action != diff.ActionCreate {
		prev, err := BuildRule(b.h, op.Previous.(*state.RouteRule))
		if err != nil {
			return err
		}
		if _, err := prev.DelIfExists(); err != nil {
			return err
		}
	}
	if op.Action == diff.ActionDelete {
		return nil
	}

	next, err := BuildRule(b.h, op.Payload.(*state.RouteRule))
	if err != nil {
		return err
	}
	_, err = next.AddIfNotExists()
	return err
}

// lenientIndex resolves names for routes being removed: a missing interface
// yields a route that cannot match anything, so deleting it is a no-op.
func (b *Backend) lenientIndex(name string) (int, error) {
	idx, err := b.h.linkIndex(name)
	if errors.IsKind(err, errors.KindInvalidArgument) {
		return -1, nil
	}
	return idx, err
}
