// Package nm talks to NetworkManager over the system D-Bus.
//
// The daemon backend owns the interfaces kind when a call is not
// kernel-only: it reads the activation state and IP methods of managed
// devices, and applies interface changes as connection profiles. Routes,
// rules and the resolver stay with the kernel and resolver backends.
//
// # Features
//
//   - Device listing and applied-connection lookup
//   - Connection profile add, update, delete and activation
//   - Checkpoints for transactional rollback
//
// # Example Usage
//
//	client, err := nm.Connect(ctx)
//	if err != nil {
//	    return err // NetworkManager is not running
//	}
//	defer client.Close()
//
//	version, err := client.Version(ctx)
//
// Profiles created here get a UUID derived from the interface name, so
// generating keyfiles and applying the same document yield the same ids.
package nm
