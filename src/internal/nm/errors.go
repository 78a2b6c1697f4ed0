package nm

import (
	stderrors "errors"
	"strings"

	"github.com/godbus/dbus/v5"
	"github.com/maksimkurb/netstate/src/internal/errors"
)

// classify maps D-Bus errors onto error kinds. Rejections by the daemon
// count as KernelRejection: the mutation was refused below the engine.
func classify(op string, err error) error {
	if err == nil {
		return nil
	}

	name := dbusErrorName(err)
	switch {
	case name == "":
		return errors.FromErrno(op, err)
	case strings.HasSuffix(name, ".PermissionDenied"), name == "org.freedesktop.DBus.Error.AccessDenied":
		return errors.NewPermissionDenied(op, err)
	case name == "org.freedesktop.DBus.Error.ServiceUnknown", name == "org.freedesktop.DBus.Error.NameHasNoOwner":
		return errors.NewNotSupported(op+": NetworkManager is not running", err)
	case name == "org.freedesktop.DBus.Error.NoReply", name == "org.freedesktop.DBus.Error.Timeout":
		return errors.NewTimeout(op, err)
	case strings.HasPrefix(name, ifaceManager+"."):
		return errors.NewKernelRejection(op, err)
	}
	return errors.NewInternal(op, err)
}

func dbusErrorName(err error) string {
	var value dbus.Error
	if stderrors.As(err, &value) {
		return value.Name
	}
	var ptr *dbus.Error
	if stderrors.As(err, &ptr) && ptr != nil {
		return ptr.Name
	}
	return ""
}
