// Package networking is the kernel backend: it reads and mutates links,
// addresses, routes and policy rules through netlink.
//
// # Architecture
//
//   - Handle: a netlink socket, optionally bound to a network namespace
//   - Backend: reads entity kinds into state documents and applies diff operations
//   - IpRoute / IpRule: mutation primitives with Add, Del, IsExists,
//     AddIfNotExists and DelIfExists
//
// # Example Usage
//
//	h, err := networking.NewHandle("/var/run/netns/lab")
//	if err != nil {
//	    log.Fatalf("%v", err)
//	}
//	defer h.Close()
//
//	b := networking.NewBackend(h)
//	current, err := b.Read(ctx, state.KindRoutes)
//
// Addresses obtained from DHCP or SLAAC are reported through the dhcp and
// autoconf flags, not in the static address list. The kernel backend cannot
// start DHCP or SLAAC itself; such requests fail with NotSupported.
package networking
