// Package gen renders a desired state document as NetworkManager keyfiles
// without touching the system.
package gen

import (
	"fmt"
	"sort"
	"strconv"
	"strings"

	"github.com/valyala/fasttemplate"

	"github.com/maksimkurb/netstate/src/internal/errors"
	"github.com/maksimkurb/netstate/src/internal/nm"
	"github.com/maksimkurb/netstate/src/internal/state"
)

// Template tags for the keyfile skeleton.
const (
	TmplID          = "id"
	TmplUUID        = "uuid"
	TmplType        = "type"
	TmplName        = "interface_name"
	TmplAutoconnect = "autoconnect"
	TmplPort        = "port"
	TmplSections    = "sections"
)

const keyfileTemplate = `[connection]
id={{id}}
uuid={{uuid}}
type={{type}}
interface-name={{interface_name}}
autoconnect={{autoconnect}}
{{port}}{{sections}}`

// Keyfile is one generated connection profile.
type Keyfile struct {
	// Name is the file name, "<interface>.nmconnection".
	Name    string
	Content string
}

// Generate renders one keyfile per interface of the document, sorted by
// file name. Interfaces marked absent produce nothing. The output only
// depends on the document.
func Generate(desired *state.NetworkState) ([]Keyfile, error) {
	if desired == nil {
		return nil, errors.NewInvalidArgument("no state document", nil)
	}

	byName := make(map[string]*state.Interface, len(desired.Interfaces))
	for _, iface := range desired.Interfaces {
		byName[iface.Name] = iface
	}

	tpl := fasttemplate.New(keyfileTemplate, "{{", "}}")

	var files []Keyfile
	for _, iface := range desired.Interfaces {
		if iface.IsAbsent() {
			continue
		}
		content, err := render(tpl, iface, byName)
		if err != nil {
			return nil, err
		}
		files = append(files, Keyfile{Name: iface.Name + ".nmconnection", Content: content})
	}

	sort.Slice(files, func(i, j int) bool { return files[i].Name < files[j].Name })
	return files, nil
}

// Files returns the keyfiles keyed by file name.
func Files(keyfiles []Keyfile) map[string]string {
	out := make(map[string]string, len(keyfiles))
	for _, k := range keyfiles {
		out[k.Name] = k.Content
	}
	return out
}

func render(tpl *fasttemplate.Template, iface *state.Interface, byName map[string]*state.Interface) (string, error) {
	connType, err := nm.ConnectionType(iface.Type)
	if err != nil {
		return "", err
	}

	port := ""
	var sections []string
	if ctrl := iface.ControllerName(); ctrl != "" {
		c, ok := byName[ctrl]
		if !ok || !c.Type.IsController() {
			return "", errors.NewInvalidArgument(
				fmt.Sprintf("controller %s of %s is not a bridge or bond in the document", ctrl, iface.Name), nil)
		}
		slaveType, err := nm.ConnectionType(c.Type)
		if err != nil {
			return "", err
		}
		port = "master=" + ctrl + "\nslave-type=" + slaveType + "\n"
	} else {
		sections = append(sections,
			section("ipv4", ipKeys(iface.IPv4, false)),
			section("ipv6", ipKeys(iface.IPv6, true)))
	}

	var wired [][2]string
	if iface.MTU != nil {
		wired = append(wired, [2]string{"mtu", strconv.Itoa(*iface.MTU)})
	}
	if iface.MACAddress != "" {
		wired = append(wired, [2]string{"cloned-mac-address", iface.MACAddress})
	}
	if len(wired) > 0 {
		sections = append([]string{section("ethernet", wired)}, sections...)
	}

	typed, err := typeSection(iface)
	if err != nil {
		return "", err
	}
	if typed != "" {
		sections = append([]string{typed}, sections...)
	}

	return tpl.ExecuteString(map[string]interface{}{
		TmplID:          iface.Name,
		TmplUUID:        nm.ConnectionUUID(iface.Name),
		TmplType:        connType,
		TmplName:        iface.Name,
		TmplAutoconnect: strconv.FormatBool(iface.State != state.StateDown),
		TmplPort:        port,
		TmplSections:    strings.Join(sections, ""),
	}), nil
}

func typeSection(iface *state.Interface) (string, error) {
	switch iface.Type {
	case state.TypeBridge:
		var keys [][2]string
		if iface.Bridge != nil && iface.Bridge.Options != nil && iface.Bridge.Options.STP != nil &&
			iface.Bridge.Options.STP.Enabled != nil {
			keys = append(keys, [2]string{"stp", strconv.FormatBool(*iface.Bridge.Options.STP.Enabled)})
		}
		return section("bridge", keys), nil
	case state.TypeBond:
		var keys [][2]string
		if iface.Bond != nil && iface.Bond.Mode != "" {
			keys = append(keys, [2]string{"mode", iface.Bond.Mode})
		}
		return section("bond", keys), nil
	case state.TypeVLAN:
		if iface.VLAN == nil {
			return "", errors.NewInvalidArgument(fmt.Sprintf("vlan %s has no vlan section", iface.Name), nil)
		}
		return section("vlan", [][2]string{
			{"id", strconv.Itoa(iface.VLAN.ID)},
			{"parent", iface.VLAN.BaseIface},
		}), nil
	case state.TypeVeth:
		if iface.Veth == nil {
			return "", errors.NewInvalidArgument(fmt.Sprintf("veth %s has no peer", iface.Name), nil)
		}
		return section("veth", [][2]string{{"peer", iface.Veth.Peer}}), nil
	}
	return "", nil
}

func ipKeys(cfg *state.IPConfig, v6 bool) [][2]string {
	method := nm.IPMethod(cfg, v6)
	keys := [][2]string{{"method", method}}
	if cfg == nil || method == "disabled" {
		return keys
	}
	for i, a := range cfg.Addresses {
		keys = append(keys, [2]string{
			"address" + strconv.Itoa(i+1),
			a.IP + "/" + strconv.Itoa(a.PrefixLength),
		})
	}
	return keys
}

// section renders "[name]" followed by one key=value line per pair, preceded
// by a blank line.
func section(name string, keys [][2]string) string {
	var b strings.Builder
	b.WriteString("\n[" + name + "]\n")
	for _, kv := range keys {
		b.WriteString(kv[0] + "=" + kv[1] + "\n")
	}
	return b.String()
}
