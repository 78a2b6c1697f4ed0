package nm

import (
	"context"
	"fmt"
	"sync"

	"github.com/godbus/dbus/v5"
	"github.com/maksimkurb/netstate/src/internal/errors"
	"github.com/maksimkurb/netstate/src/internal/log"
)

const (
	busName      = "org.freedesktop.NetworkManager"
	rootPath     = dbus.ObjectPath("/org/freedesktop/NetworkManager")
	settingsPath = dbus.ObjectPath("/org/freedesktop/NetworkManager/Settings")

	ifaceManager    = "org.freedesktop.NetworkManager"
	ifaceDevice     = ifaceManager + ".Device"
	ifaceSettings   = ifaceManager + ".Settings"
	ifaceConnection = ifaceManager + ".Settings.Connection"
	ifaceProperties = "org.freedesktop.DBus.Properties"

	// Checkpoint flag destroying older checkpoints before creating a new one.
	checkpointDestroyAll = 0x01

	noObject = dbus.ObjectPath("/")
)

// Settings is a connection profile: setting name to property map.
type Settings map[string]map[string]dbus.Variant

// Device is a network device known to NetworkManager.
type Device struct {
	Path      dbus.ObjectPath
	Interface string
	Type      uint32
	State     uint32
	Managed   bool
}

// API is the subset of NetworkManager the backend uses. *Client implements it.
type API interface {
	Devices(ctx context.Context) ([]Device, error)
	AppliedConnection(ctx context.Context, device dbus.ObjectPath) (Settings, error)
	ConnectionsByInterface(ctx context.Context, name string) ([]dbus.ObjectPath, error)
	ConnectionSettings(ctx context.Context, conn dbus.ObjectPath) (Settings, error)
	AddConnection(ctx context.Context, settings Settings) (dbus.ObjectPath, error)
	UpdateConnection(ctx context.Context, conn dbus.ObjectPath, settings Settings) error
	DeleteConnection(ctx context.Context, conn dbus.ObjectPath) error
	ActivateConnection(ctx context.Context, conn, device dbus.ObjectPath) error
	DisconnectDevice(ctx context.Context, device dbus.ObjectPath) error
	DeleteDevice(ctx context.Context, device dbus.ObjectPath) error
	CheckpointCreate(ctx context.Context, timeoutSec uint32) (dbus.ObjectPath, error)
	CheckpointRollback(ctx context.Context, checkpoint dbus.ObjectPath) error
	CheckpointDestroy(ctx context.Context, checkpoint dbus.ObjectPath) error
	CheckpointAdjustTimeout(ctx context.Context, checkpoint dbus.ObjectPath, addSec uint32) error
}

// Client is a NetworkManager D-Bus client. All methods are safe for
// concurrent use.
type Client struct {
	conn *dbus.Conn

	mu      sync.Mutex
	version string
}

// Connect opens a private connection to the system bus and checks that
// NetworkManager answers on it.
func Connect(ctx context.Context) (*Client, error) {
	conn, err := dbus.ConnectSystemBus()
	if err != nil {
		return nil, classify("connect to the system bus", err)
	}
	c := &Client{conn: conn}
	if _, err := c.Version(ctx); err != nil {
		_ = conn.Close()
		return nil, err
	}
	return c, nil
}

// Close closes the bus connection.
func (c *Client) Close() error {
	return c.conn.Close()
}

func (c *Client) object(path dbus.ObjectPath) dbus.BusObject {
	return c.conn.Object(busName, path)
}

func (c *Client) call(ctx context.Context, path dbus.ObjectPath, method string, args []interface{}, out ...interface{}) error {
	call := c.object(path).CallWithContext(ctx, method, 0, args...)
	if call.Err != nil {
		return classify(method, call.Err)
	}
	if len(out) == 0 {
		return nil
	}
	if err := call.Store(out...); err != nil {
		return classify(method, err)
	}
	return nil
}

func (c *Client) properties(ctx context.Context, path dbus.ObjectPath, iface string) (map[string]dbus.Variant, error) {
	var props map[string]dbus.Variant
	err := c.call(ctx, path, ifaceProperties+".GetAll", []interface{}{iface}, &props)
	return props, err
}

// Version returns the NetworkManager version. It is cached after the first
// successful call.
func (c *Client) Version(ctx context.Context) (string, error) {
	c.mu.Lock()
	defer c.mu.Unlock()
	if c.version != "" {
		return c.version, nil
	}

	var v dbus.Variant
	if err := c.call(ctx, rootPath, ifaceProperties+".Get", []interface{}{ifaceManager, "Version"}, &v); err != nil {
		return "", err
	}
	s, ok := v.Value().(string)
	if !ok {
		return "", errors.NewInternal(fmt.Sprintf("unexpected Version property %v", v), nil)
	}
	c.version = s
	log.Debugf("Connected to NetworkManager %s", s)
	return s, nil
}

// Devices lists all devices with their basic properties.
func (c *Client) Devices(ctx context.Context) ([]Device, error) {
	var paths []dbus.ObjectPath
	if err := c.call(ctx, rootPath, ifaceManager+".GetDevices", nil, &paths); err != nil {
		return nil, err
	}

	devices := make([]Device, 0, len(paths))
	for _, p := range paths {
		props, err := c.properties(ctx, p, ifaceDevice)
		if err != nil {
			return nil, err
		}
		d := Device{Path: p}
		if v, ok := props["Interface"].Value().(string); ok {
			d.Interface = v
		}
		if v, ok := props["DeviceType"].Value().(uint32); ok {
			d.Type = v
		}
		if v, ok := props["State"].Value().(uint32); ok {
			d.State = v
		}
		if v, ok := props["Managed"].Value().(bool); ok {
			d.Managed = v
		}
		devices = append(devices, d)
	}
	return devices, nil
}

// AppliedConnection returns the profile currently applied to a device.
func (c *Client) AppliedConnection(ctx context.Context, device dbus.ObjectPath) (Settings, error) {
	var (
		settings Settings
		version  uint64
	)
	err := c.call(ctx, device, ifaceDevice+".GetAppliedConnection", []interface{}{uint32(0)}, &settings, &version)
	return settings, err
}

// ConnectionsByInterface returns the stored profiles bound to an interface name.
func (c *Client) ConnectionsByInterface(ctx context.Context, name string) ([]dbus.ObjectPath, error) {
	var paths []dbus.ObjectPath
	if err := c.call(ctx, settingsPath, ifaceSettings+".ListConnections", nil, &paths); err != nil {
		return nil, err
	}

	var out []dbus.ObjectPath
	for _, p := range paths {
		s, err := c.ConnectionSettings(ctx, p)
		if err != nil {
			return nil, err
		}
		if interfaceName(s) == name {
			out = append(out, p)
		}
	}
	return out, nil
}

func (c *Client) ConnectionSettings(ctx context.Context, conn dbus.ObjectPath) (Settings, error) {
	var s Settings
	err := c.call(ctx, conn, ifaceConnection+".GetSettings", nil, &s)
	return s, err
}

func (c *Client) AddConnection(ctx context.Context, settings Settings) (dbus.ObjectPath, error) {
	var path dbus.ObjectPath
	err := c.call(ctx, settingsPath, ifaceSettings+".AddConnection", []interface{}{settings}, &path)
	return path, err
}

func (c *Client) UpdateConnection(ctx context.Context, conn dbus.ObjectPath, settings Settings) error {
	return c.call(ctx, conn, ifaceConnection+".Update", []interface{}{settings})
}

func (c *Client) DeleteConnection(ctx context.Context, conn dbus.ObjectPath) error {
	return c.call(ctx, conn, ifaceConnection+".Delete", nil)
}

func (c *Client) ActivateConnection(ctx context.Context, conn, device dbus.ObjectPath) error {
	var active dbus.ObjectPath
	return c.call(ctx, rootPath, ifaceManager+".ActivateConnection",
		[]interface{}{conn, device, noObject}, &active)
}

func (c *Client) DisconnectDevice(ctx context.Context, device dbus.ObjectPath) error {
	return c.call(ctx, device, ifaceDevice+".Disconnect", nil)
}

func (c *Client) DeleteDevice(ctx context.Context, device dbus.ObjectPath) error {
	return c.call(ctx, device, ifaceDevice+".Delete", nil)
}

// CheckpointCreate snapshots all devices. NetworkManager rolls back on its
// own when timeoutSec passes without a destroy; zero disables that.
func (c *Client) CheckpointCreate(ctx context.Context, timeoutSec uint32) (dbus.ObjectPath, error) {
	var cp dbus.ObjectPath
	err := c.call(ctx, rootPath, ifaceManager+".CheckpointCreate",
		[]interface{}{[]dbus.ObjectPath{}, timeoutSec, uint32(checkpointDestroyAll)}, &cp)
	return cp, err
}

func (c *Client) CheckpointRollback(ctx context.Context, checkpoint dbus.ObjectPath) error {
	var results map[string]uint32
	if err := c.call(ctx, rootPath, ifaceManager+".CheckpointRollback", []interface{}{checkpoint}, &results); err != nil {
		return err
	}
	for dev, res := range results {
		if res != 0 {
			log.Warnf("Checkpoint rollback of %s returned %d", dev, res)
		}
	}
	return nil
}

func (c *Client) CheckpointDestroy(ctx context.Context, checkpoint dbus.ObjectPath) error {
	return c.call(ctx, rootPath, ifaceManager+".CheckpointDestroy", []interface{}{checkpoint})
}

// CheckpointAdjustTimeout extends the automatic rollback timeout.
func (c *Client) CheckpointAdjustTimeout(ctx context.Context, checkpoint dbus.ObjectPath, addSec uint32) error {
	return c.call(ctx, rootPath, ifaceManager+".CheckpointAdjustRollbackTimeout",
		[]interface{}{checkpoint, addSec})
}
