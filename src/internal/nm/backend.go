package nm

import (
	"context"
	"fmt"
	"time"

	"github.com/godbus/dbus/v5"
	"github.com/maksimkurb/netstate/src/internal/diff"
	"github.com/maksimkurb/netstate/src/internal/errors"
	"github.com/maksimkurb/netstate/src/internal/log"
	"github.com/maksimkurb/netstate/src/internal/state"
)

// Backend applies interface records as NetworkManager profiles.
type Backend struct {
	api API
}

// NewBackend creates a daemon backend over api.
func NewBackend(api API) *Backend {
	return &Backend{api: api}
}

func (b *Backend) Name() string {
	return "nm"
}

func (b *Backend) Kinds() []state.Kind {
	return []state.Kind{state.KindInterfaces}
}

// Read returns the managed devices with their activation state and IP
// methods. The result is an overlay for the kernel view.
func (b *Backend) Read(ctx context.Context, kind state.Kind) (*state.NetworkState, error) {
	if kind != state.KindInterfaces {
		return nil, errors.NewNotSupported(fmt.Sprintf("daemon backend cannot read %s", kind), nil)
	}
	devices, err := b.api.Devices(ctx)
	if err != nil {
		return nil, err
	}

	out := state.New()
	out.Interfaces = make([]*state.Interface, 0, len(devices))
	for _, d := range devices {
		if !d.Managed || d.State <= DeviceStateUnmanaged || d.Interface == "" {
			continue
		}
		var applied Settings
		if d.State == DeviceStateActivated {
			if applied, err = b.api.AppliedConnection(ctx, d.Path); err != nil {
				log.Debugf("No applied connection for %s: %v", d.Interface, err)
				applied = nil
			}
		}
		out.Interfaces = append(out.Interfaces, FromDevice(d, applied))
	}
	out.Sort()
	return out, nil
}

// ApplyOperation applies one interface operation.
func (b *Backend) ApplyOperation(ctx context.Context, op diff.Operation) error {
	if op.Kind != state.KindInterfaces {
		return errors.NewNotSupported(fmt.Sprintf("daemon backend cannot apply %s", op.Kind), nil)
	}
	log.Debugf("nm: %s", op)

	devices, err := b.api.Devices(ctx)
	if err != nil {
		return err
	}
	byName := make(map[string]Device, len(devices))
	for _, d := range devices {
		byName[d.Interface] = d
	}

	if op.Action == diff.ActionDelete {
		return b.remove(ctx, op.Previous.(*state.Interface), byName)
	}
	return b.put(ctx, op.Payload.(*state.Interface), byName)
}

func (b *Backend) put(ctx context.Context, iface *state.Interface, byName map[string]Device) error {
	var ctrlType state.InterfaceType
	if ctrl := iface.ControllerName(); ctrl != "" {
		t, err := b.typeOf(ctx, ctrl, byName)
		if err != nil {
			return err
		}
		ctrlType = t
	}

	settings, err := ToSettings(iface, ctrlType)
	if err != nil {
		return err
	}

	profiles, err := b.api.ConnectionsByInterface(ctx, iface.Name)
	if err != nil {
		return err
	}
	var conn dbus.ObjectPath
	if len(profiles) > 0 {
		conn = profiles[0]
		existing, err := b.api.ConnectionSettings(ctx, conn)
		if err != nil {
			return err
		}
		// Profiles keep their identity across updates.
		for _, key := range []string{"uuid", "id"} {
			if v, ok := existing["connection"][key]; ok {
				settings["connection"][key] = v
			}
		}
		log.Debugf("Updating profile %s for %s", conn, iface.Name)
		if err := b.api.UpdateConnection(ctx, conn, settings); err != nil {
			return err
		}
	} else {
		log.Debugf("Adding profile for %s", iface.Name)
		if conn, err = b.api.AddConnection(ctx, settings); err != nil {
			return err
		}
	}

	dev, exists := byName[iface.Name]
	if iface.State == state.StateDown {
		if exists && dev.State == DeviceStateActivated {
			return b.api.DisconnectDevice(ctx, dev.Path)
		}
		return nil
	}

	target := noObject
	if exists {
		target = dev.Path
	}
	return b.api.ActivateConnection(ctx, conn, target)
}

// typeOf returns the type of an interface from its device or, before the
// device exists, from its profile.
func (b *Backend) typeOf(ctx context.Context, name string, byName map[string]Device) (state.InterfaceType, error) {
	if d, ok := byName[name]; ok {
		return DeviceInterfaceType(d.Type), nil
	}
	profiles, err := b.api.ConnectionsByInterface(ctx, name)
	if err != nil {
		return "", err
	}
	for _, p := range profiles {
		s, err := b.api.ConnectionSettings(ctx, p)
		if err != nil {
			return "", err
		}
		switch stringProp(s, "connection", "type") {
		case "bridge":
			return state.TypeBridge, nil
		case "bond":
			return state.TypeBond, nil
		}
	}
	return "", errors.NewInvalidArgument(fmt.Sprintf("controller %s is not known to NetworkManager", name), nil)
}

func (b *Backend) remove(ctx context.Context, prev *state.Interface, byName map[string]Device) error {
	profiles, err := b.api.ConnectionsByInterface(ctx, prev.Name)
	if err != nil {
		return err
	}
	for _, p := range profiles {
		log.Debugf("Deleting profile %s of %s", p, prev.Name)
		if err := b.api.DeleteConnection(ctx, p); err != nil {
			return err
		}
	}

	dev, ok := byName[prev.Name]
	if !ok {
		return nil
	}
	if DeviceInterfaceType(dev.Type).IsVirtual() {
		return b.api.DeleteDevice(ctx, dev.Path)
	}
	if dev.State == DeviceStateActivated {
		return b.api.DisconnectDevice(ctx, dev.Path)
	}
	return nil
}

// CreateCheckpoint snapshots the daemon's configuration. timeout is the
// daemon-side automatic rollback timeout.
func (b *Backend) CreateCheckpoint(ctx context.Context, timeout time.Duration) (string, error) {
	cp, err := b.api.CheckpointCreate(ctx, uint32(timeout/time.Second))
	if err != nil {
		return "", err
	}
	log.Debugf("Created checkpoint %s", cp)
	return string(cp), nil
}

func (b *Backend) RollbackCheckpoint(ctx context.Context, id string) error {
	log.Debugf("Rolling back to checkpoint %s", id)
	return b.api.CheckpointRollback(ctx, dbus.ObjectPath(id))
}

func (b *Backend) DestroyCheckpoint(ctx context.Context, id string) error {
	return b.api.CheckpointDestroy(ctx, dbus.ObjectPath(id))
}

func (b *Backend) ExtendCheckpoint(ctx context.Context, id string, by time.Duration) error {
	sec := uint32((by + time.Second - 1) / time.Second)
	return b.api.CheckpointAdjustTimeout(ctx, dbus.ObjectPath(id), sec)
}
