package networking

import (
	"fmt"

	"github.com/maksimkurb/netstate/src/internal/errors"
	"github.com/maksimkurb/netstate/src/internal/log"
	"github.com/vishvananda/netlink"
	"github.com/vishvananda/netns"
)

// Handle is a netlink socket bound to one network namespace.
type Handle struct {
	*netlink.Handle

	nsPath string
	ns     netns.NsHandle
}

// NewHandle opens a netlink handle. An empty nsPath means the namespace of
// the calling process.
func NewHandle(nsPath string) (*Handle, error) {
	if nsPath == "" {
		nh, err := netlink.NewHandle()
		if err != nil {
			return nil, errors.FromErrno("open netlink socket", err)
		}
		return &Handle{Handle: nh, ns: netns.None()}, nil
	}

	ns, err := netns.GetFromPath(nsPath)
	if err != nil {
		return nil, errors.NewInvalidArgument(fmt.Sprintf("cannot open network namespace %s", nsPath), err)
	}
	nh, err := netlink.NewHandleAt(ns)
	if err != nil {
		_ = ns.Close()
		return nil, errors.FromErrno(fmt.Sprintf("open netlink socket in %s", nsPath), err)
	}
	log.Debugf("Opened netlink handle in network namespace %s", nsPath)
	return &Handle{Handle: nh, nsPath: nsPath, ns: ns}, nil
}

// Namespace returns the namespace path, empty for the caller's namespace.
func (h *Handle) Namespace() string {
	return h.nsPath
}

// Close releases the socket and the namespace reference.
func (h *Handle) Close() {
	h.Handle.Delete()
	if h.ns.IsOpen() {
		_ = h.ns.Close()
	}
}

// linkNames maps interface indexes to names.
func (h *Handle) linkNames() (map[int]string, error) {
	links, err := h.LinkList()
	if err != nil {
		return nil, errors.FromErrno("list links", err)
	}
	names := make(map[int]string, len(links))
	for _, l := range links {
		names[l.Attrs().Index] = l.Attrs().Name
	}
	return names, nil
}

func (h *Handle) linkIndex(name string) (int, error) {
	link, err := h.LinkByName(name)
	if err != nil {
		if _, ok := err.(netlink.LinkNotFoundError); ok {
			return 0, errors.NewInvalidArgument(fmt.Sprintf("interface %s does not exist", name), nil)
		}
		return 0, errors.FromErrno("look up "+name, err)
	}
	return link.Attrs().Index, nil
}
