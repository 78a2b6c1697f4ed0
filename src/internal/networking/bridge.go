package networking

import (
	"os"
	"path/filepath"
	"strings"

	"github.com/maksimkurb/netstate/src/internal/errors"
)

// DefaultSysfsRoot is where bridge attributes are read from and written to.
const DefaultSysfsRoot = "/sys/class/net"

// bridgeSTP reads the STP state of a bridge. ok is false when the attribute
// cannot be read.
func bridgeSTP(root, bridge string) (enabled bool, ok bool) {
	data, err := os.ReadFile(filepath.Join(root, bridge, "bridge", "stp_state"))
	if err != nil {
		return false, false
	}
	return strings.TrimSpace(string(data)) != "0", true
}

func setBridgeSTP(root, bridge string, enabled bool) error {
	value := "0"
	if enabled {
		value = "1"
	}
	path := filepath.Join(root, bridge, "bridge", "stp_state")
	if err := os.WriteFile(path, []byte(value+"\n"), 0o644); err != nil {
		if os.IsPermission(err) {
			return errors.NewPermissionDenied("set STP on "+bridge, err)
		}
		return errors.NewKernelRejection("set STP on "+bridge, err)
	}
	return nil
}
