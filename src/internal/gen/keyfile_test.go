package gen

import (
	"strings"
	"testing"

	"github.com/maksimkurb/netstate/src/internal/errors"
	"github.com/maksimkurb/netstate/src/internal/nm"
	"github.com/maksimkurb/netstate/src/internal/state"
)

func TestGenerate_Ethernet(t *testing.T) {
	doc := &state.NetworkState{Interfaces: []*state.Interface{{
		Name:  "eth0",
		Type:  state.TypeEthernet,
		State: state.StateUp,
		MTU:   state.Int(9000),
		IPv4: &state.IPConfig{
			Enabled:   state.Bool(true),
			Addresses: []state.IPAddress{{IP: "192.0.2.10", PrefixLength: 24}},
		},
	}}}

	files, err := Generate(doc)
	if err != nil {
		t.Fatalf("Generate() error: %v", err)
	}
	if len(files) != 1 || files[0].Name != "eth0.nmconnection" {
		t.Fatalf("unexpected files: %+v", files)
	}

	want := "[connection]\n" +
		"id=eth0\n" +
		"uuid=" + nm.ConnectionUUID("eth0") + "\n" +
		"type=802-3-ethernet\n" +
		"interface-name=eth0\n" +
		"autoconnect=true\n" +
		"\n[ethernet]\nmtu=9000\n" +
		"\n[ipv4]\nmethod=manual\naddress1=192.0.2.10/24\n" +
		"\n[ipv6]\nmethod=disabled\n"
	if files[0].Content != want {
		t.Errorf("content mismatch\ngot:\n%s\nwant:\n%s", files[0].Content, want)
	}
}

func TestGenerate_BridgeWithPort(t *testing.T) {
	doc := &state.NetworkState{Interfaces: []*state.Interface{
		{
			Name: "br0",
			Type: state.TypeBridge,
			Bridge: &state.BridgeConfig{
				Options: &state.BridgeOptions{STP: &state.STPOptions{Enabled: state.Bool(false)}},
				Ports:   []state.BridgePort{{Name: "eth1"}},
			},
			IPv6: &state.IPConfig{Enabled: state.Bool(true), Autoconf: state.Bool(true)},
		},
		{Name: "eth1", Type: state.TypeEthernet, State: state.StateDown, Controller: state.String("br0")},
		{Name: "old0", Type: state.TypeDummy, State: state.StateAbsent},
	}}

	files, err := Generate(doc)
	if err != nil {
		t.Fatalf("Generate() error: %v", err)
	}
	if len(files) != 2 || files[0].Name != "br0.nmconnection" || files[1].Name != "eth1.nmconnection" {
		t.Fatalf("unexpected files: %+v", files)
	}

	br := files[0].Content
	for _, line := range []string{"type=bridge\n", "\n[bridge]\nstp=false\n", "\n[ipv6]\nmethod=auto\n"} {
		if !strings.Contains(br, line) {
			t.Errorf("bridge keyfile is missing %q:\n%s", line, br)
		}
	}

	port := files[1].Content
	for _, line := range []string{"autoconnect=false\n", "master=br0\nslave-type=bridge\n"} {
		if !strings.Contains(port, line) {
			t.Errorf("port keyfile is missing %q:\n%s", line, port)
		}
	}
	if strings.Contains(port, "[ipv4]") {
		t.Errorf("ports carry no IP sections:\n%s", port)
	}
}

func TestGenerate_VLAN(t *testing.T) {
	doc := &state.NetworkState{Interfaces: []*state.Interface{{
		Name: "eth0.10",
		Type: state.TypeVLAN,
		VLAN: &state.VLANConfig{BaseIface: "eth0", ID: 10},
	}}}

	files, err := Generate(doc)
	if err != nil {
		t.Fatalf("Generate() error: %v", err)
	}
	if !strings.Contains(files[0].Content, "\n[vlan]\nid=10\nparent=eth0\n") {
		t.Errorf("unexpected vlan keyfile:\n%s", files[0].Content)
	}
}

func TestGenerate_Errors(t *testing.T) {
	tests := []struct {
		name string
		doc  *state.NetworkState
		kind errors.Kind
	}{
		{"nil document", nil, errors.KindInvalidArgument},
		{
			"unsupported type",
			&state.NetworkState{Interfaces: []*state.Interface{{Name: "x0", Type: state.TypeUnknown}}},
			errors.KindNotSupported,
		},
		{
			"controller missing",
			&state.NetworkState{Interfaces: []*state.Interface{
				{Name: "eth1", Type: state.TypeEthernet, Controller: state.String("br9")},
			}},
			errors.KindInvalidArgument,
		},
		{
			"vlan without section",
			&state.NetworkState{Interfaces: []*state.Interface{{Name: "v1", Type: state.TypeVLAN}}},
			errors.KindInvalidArgument,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, err := Generate(tt.doc)
			if !errors.IsKind(err, tt.kind) {
				t.Errorf("Generate() error = %v, want kind %s", err, tt.kind)
			}
		})
	}
}

func TestGenerate_Deterministic(t *testing.T) {
	doc := &state.NetworkState{Interfaces: []*state.Interface{
		{Name: "dummy1", Type: state.TypeDummy},
		{Name: "dummy0", Type: state.TypeDummy},
	}}

	first, err := Generate(doc)
	if err != nil {
		t.Fatalf("Generate() error: %v", err)
	}
	second, _ := Generate(doc)
	if Files(first)["dummy0.nmconnection"] != Files(second)["dummy0.nmconnection"] || first[0].Name != "dummy0.nmconnection" {
		t.Errorf("output is not stable: %+v vs %+v", first, second)
	}
}
