package core

import (
	"context"
	"time"

	"github.com/maksimkurb/netstate/src/internal/config"
	"github.com/maksimkurb/netstate/src/internal/engine"
	"github.com/maksimkurb/netstate/src/internal/log"
	"github.com/maksimkurb/netstate/src/internal/networking"
	"github.com/maksimkurb/netstate/src/internal/nm"
	"github.com/maksimkurb/netstate/src/internal/resolver"
)

// daemonProbeTimeout bounds the NetworkManager reachability check.
const daemonProbeTimeout = 3 * time.Second

// AppDependencies is a dependency injection container that holds all application dependencies.
//
// This container provides a centralized place to manage dependencies and enables:
//   - Easy testing with mock backends
//   - Configuration-driven backend creation
//   - Explicit dependency management instead of global state
//
// Usage:
//
//	deps, err := core.NewAppDependencies(core.AppConfig{Config: cfg})
//	if err != nil {
//	    return err
//	}
//	defer deps.Close()
//	res, err := deps.Engine().Retrieve(ctx, engine.Flags{})
type AppDependencies struct {
	config *config.Config

	handle *networking.Handle
	daemon *nm.Client

	engine *engine.Engine
}

// AppConfig holds configuration for creating application dependencies.
type AppConfig struct {
	// Config is the loaded configuration. Nil means config.Default().
	Config *config.Config

	// DisableDaemon skips connecting to NetworkManager even when the
	// configuration enables it.
	DisableDaemon bool
}

// NewAppDependencies creates the kernel, resolver and (when enabled and
// reachable) NetworkManager backends and the engine on top of them.
func NewAppDependencies(cfg AppConfig) (*AppDependencies, error) {
	c := cfg.Config
	if c == nil {
		c = config.Default()
	}

	handle, err := networking.NewHandle(c.Kernel.Netns)
	if err != nil {
		return nil, err
	}
	deps := &AppDependencies{config: c, handle: handle}

	backends := []engine.Backend{
		networking.NewBackend(handle),
		resolver.NewBackend(c.DNS.ResolvConf),
	}

	var daemon engine.Backend
	if c.Daemon.Enabled && !cfg.DisableDaemon {
		ctx, cancel := context.WithTimeout(context.Background(), daemonProbeTimeout)
		client, err := nm.Connect(ctx)
		cancel()
		if err != nil {
			// Calls behave as kernel-only without the daemon.
			log.Warnf("NetworkManager is not available, using kernel backends only: %v", err)
		} else {
			deps.daemon = client
			daemon = nm.NewBackend(client)
		}
	}

	deps.engine, err = engine.New(c, backends, daemon)
	if err != nil {
		deps.Close()
		return nil, err
	}
	return deps, nil
}

// NewTestDependencies builds a container around caller-provided backends.
// Nothing is opened, so Close is a no-op.
func NewTestDependencies(c *config.Config, backends []engine.Backend, daemon engine.Backend) (*AppDependencies, error) {
	if c == nil {
		c = config.Default()
	}
	e, err := engine.New(c, backends, daemon)
	if err != nil {
		return nil, err
	}
	return &AppDependencies{config: c, engine: e}, nil
}

// Config returns the configuration the container was built with.
func (d *AppDependencies) Config() *config.Config {
	return d.config
}

// Engine returns the reconciliation engine.
func (d *AppDependencies) Engine() *engine.Engine {
	return d.engine
}

// Close releases the netlink handle and the bus connection.
func (d *AppDependencies) Close() {
	if d.daemon != nil {
		if err := d.daemon.Close(); err != nil {
			log.Debugf("Failed to close the system bus connection: %v", err)
		}
		d.daemon = nil
	}
	if d.handle != nil {
		d.handle.Close()
		d.handle = nil
	}
}
