package diff

import (
	"bytes"
	"strings"
	"testing"

	"github.com/maksimkurb/netstate/src/internal/errors"
	"github.com/maksimkurb/netstate/src/internal/state"
)

func sampleCurrent() *state.NetworkState {
	return &state.NetworkState{
		Interfaces: []*state.Interface{
			{
				Name: "lo", Type: state.TypeLoopback, State: state.StateUp, MTU: state.Int(65536),
				IPv4: &state.IPConfig{Enabled: state.Bool(true), DHCP: state.Bool(false),
					Addresses: []state.IPAddress{{IP: "127.0.0.1", PrefixLength: 8}}},
			},
			{
				Name: "eth0", Type: state.TypeEthernet, State: state.StateUp, MTU: state.Int(1500),
				MACAddress: "52:54:00:00:00:01",
				IPv4: &state.IPConfig{Enabled: state.Bool(true), DHCP: state.Bool(false),
					Addresses: []state.IPAddress{{IP: "10.0.0.2", PrefixLength: 24}}},
			},
			{Name: "eth1", Type: state.TypeEthernet, State: state.StateDown, MTU: state.Int(1500)},
		},
		Routes: []*state.Route{
			{Destination: "0.0.0.0/0", NextHopInterface: "eth0", NextHopAddress: "10.0.0.1", TableID: 254},
		},
		RouteRules: []*state.RouteRule{
			{Family: "ipv4", Priority: 100, IPFrom: "10.0.0.0/24", RouteTable: 100},
		},
		DNS: &state.DNSResolver{Config: &state.DNSConfig{
			Servers: []string{"10.0.0.53"}, Search: []string{"example.com"},
		}},
	}
}

// withBridge adds br0 with eth1 as its port and a route through it.
func withBridge(s *state.NetworkState) *state.NetworkState {
	s.Interfaces = append(s.Interfaces, &state.Interface{
		Name: "br0", Type: state.TypeBridge, State: state.StateUp, MTU: state.Int(1500),
		Bridge: &state.BridgeConfig{Ports: []state.BridgePort{{Name: "eth1"}}},
	})
	s.Interface("eth1").Controller = state.String("br0")
	s.Routes = append(s.Routes, &state.Route{Destination: "192.168.5.0/24", NextHopInterface: "br0", TableID: 254})
	return s
}

func refs(cs *ChangeSet) []string {
	var out []string
	for _, op := range cs.Operations {
		out = append(out, string(op.Action)+" "+op.Ref().String())
	}
	return out
}

func assertOps(t *testing.T, cs *ChangeSet, want []string) {
	t.Helper()
	got := refs(cs)
	if len(got) != len(want) {
		t.Fatalf("operations = %v, want %v", got, want)
	}
	for i := range want {
		if got[i] != want[i] {
			t.Errorf("operation %d = %q, want %q (all: %v)", i, got[i], want[i], got)
		}
	}
}

func TestCompute_Idempotent(t *testing.T) {
	for name, current := range map[string]*state.NetworkState{
		"plain":  sampleCurrent(),
		"bridge": withBridge(sampleCurrent()),
	} {
		t.Run(name, func(t *testing.T) {
			cs, err := Compute(current, current.Clone(), DefaultOptions())
			if err != nil {
				t.Fatalf("Compute() error: %v", err)
			}
			if !cs.IsEmpty() {
				t.Errorf("expected empty change-set, got:\n%s", cs)
			}
		})
	}
}

func TestCompute_InterfaceUp(t *testing.T) {
	current := sampleCurrent()
	current.Interface("eth0").State = state.StateDown

	desired := &state.NetworkState{Interfaces: []*state.Interface{{Name: "eth0", State: state.StateUp}}}

	cs, err := Compute(current, desired, DefaultOptions())
	if err != nil {
		t.Fatalf("Compute() error: %v", err)
	}
	assertOps(t, cs, []string{"modify interfaces/eth0"})

	payload := cs.Operations[0].Payload.(*state.Interface)
	if payload.State != state.StateUp || *payload.MTU != 1500 {
		t.Errorf("payload should be the full merged record, got %+v", payload)
	}
	if prev := cs.Operations[0].Previous.(*state.Interface); prev.State != state.StateDown {
		t.Errorf("previous should hold the current record, got %+v", prev)
	}
}

func TestCompute_PatchLeavesOthersAlone(t *testing.T) {
	desired := &state.NetworkState{Interfaces: []*state.Interface{{Name: "eth1", MTU: state.Int(9000)}}}

	cs, err := Compute(sampleCurrent(), desired, DefaultOptions())
	if err != nil {
		t.Fatalf("Compute() error: %v", err)
	}
	// eth1 defaults to up, so both MTU and state change in one operation.
	assertOps(t, cs, []string{"modify interfaces/eth1"})
}

func TestCompute_CreateOrdering(t *testing.T) {
	desired := &state.NetworkState{
		Interfaces: []*state.Interface{
			{Name: "vlan10", Type: state.TypeVLAN, VLAN: &state.VLANConfig{BaseIface: "br0", ID: 10}},
			{Name: "br0", Type: state.TypeBridge, Bridge: &state.BridgeConfig{Ports: []state.BridgePort{{Name: "eth1"}}}},
		},
		Routes: []*state.Route{{Destination: "192.168.10.0/24", NextHopInterface: "vlan10"}},
	}

	cs, err := Compute(sampleCurrent(), desired, DefaultOptions())
	if err != nil {
		t.Fatalf("Compute() error: %v", err)
	}
	assertOps(t, cs, []string{
		"create interfaces/br0",
		"modify interfaces/eth1",
		"create interfaces/vlan10",
		"create routes/254/192.168.10.0/24/vlan10//0",
	})

	eth1 := cs.Operations[1].Payload.(*state.Interface)
	if eth1.ControllerName() != "br0" {
		t.Errorf("eth1 should be attached to br0, got %q", eth1.ControllerName())
	}
}

func TestCompute_DeleteOrdering(t *testing.T) {
	desired := &state.NetworkState{Interfaces: []*state.Interface{{Name: "br0", State: state.StateAbsent}}}

	cs, err := Compute(withBridge(sampleCurrent()), desired, DefaultOptions())
	if err != nil {
		t.Fatalf("Compute() error: %v", err)
	}
	assertOps(t, cs, []string{
		"modify interfaces/eth1",
		"delete routes/254/192.168.5.0/24/br0//0",
		"delete interfaces/br0",
	})
}

func TestCompute_AbsentMissingIsNoop(t *testing.T) {
	desired := &state.NetworkState{Interfaces: []*state.Interface{{Name: "dummy9", State: state.StateAbsent}}}

	cs, err := Compute(sampleCurrent(), desired, DefaultOptions())
	if err != nil {
		t.Fatalf("Compute() error: %v", err)
	}
	if !cs.IsEmpty() {
		t.Errorf("expected no operations, got:\n%s", cs)
	}
}

func TestCompute_Purge(t *testing.T) {
	opts := DefaultOptions()
	opts.Purge = []state.Kind{state.KindRoutes, state.KindInterfaces}

	desired := &state.NetworkState{Routes: []*state.Route{}}
	cs, err := Compute(sampleCurrent(), desired, opts)
	if err != nil {
		t.Fatalf("Compute() error: %v", err)
	}
	// Interfaces are not mentioned, so only routes are purged.
	assertOps(t, cs, []string{"delete routes/254/0.0.0.0/0/eth0/10.0.0.1/0"})
}

func TestCompute_Errors(t *testing.T) {
	tests := []struct {
		name    string
		current *state.NetworkState
		desired *state.NetworkState
		opts    func(*Options)
		kind    errors.Kind
		msg     string
	}{
		{
			name: "cycle between bridges",
			current: func() *state.NetworkState {
				s := sampleCurrent()
				s.Interfaces = append(s.Interfaces,
					&state.Interface{Name: "br0", Type: state.TypeBridge, State: state.StateUp},
					&state.Interface{Name: "br1", Type: state.TypeBridge, State: state.StateUp})
				return s
			}(),
			desired: &state.NetworkState{Interfaces: []*state.Interface{
				{Name: "br0", Type: state.TypeBridge, Bridge: &state.BridgeConfig{Ports: []state.BridgePort{{Name: "br1"}}}},
				{Name: "br1", Type: state.TypeBridge, Bridge: &state.BridgeConfig{Ports: []state.BridgePort{{Name: "br0"}}}},
			}},
			kind: errors.KindInvalidArgument,
			msg:  "interfaces/br0 -> interfaces/br1 -> interfaces/br0",
		},
		{
			name:    "dangling route",
			current: sampleCurrent(),
			desired: &state.NetworkState{Routes: []*state.Route{{Destination: "10.9.0.0/16", NextHopInterface: "eth9"}}},
			kind:    errors.KindInvalidArgument,
			msg:     "references missing interfaces/eth9",
		},
		{
			name:    "unknown port",
			current: sampleCurrent(),
			desired: &state.NetworkState{Interfaces: []*state.Interface{
				{Name: "br0", Type: state.TypeBridge, Bridge: &state.BridgeConfig{Ports: []state.BridgePort{{Name: "eth7"}}}},
			}},
			kind: errors.KindInvalidArgument,
			msg:  "port eth7 of br0 does not exist",
		},
		{
			name:    "type change",
			current: sampleCurrent(),
			desired: &state.NetworkState{Interfaces: []*state.Interface{{Name: "eth0", Type: state.TypeBond}}},
			kind:    errors.KindInvalidArgument,
			msg:     "cannot change type",
		},
		{
			name:    "create without type",
			current: sampleCurrent(),
			desired: &state.NetworkState{Interfaces: []*state.Interface{{Name: "new0"}}},
			kind:    errors.KindInvalidArgument,
			msg:     "no type",
		},
		{
			name:    "disabled kind",
			current: sampleCurrent(),
			desired: &state.NetworkState{Routes: []*state.Route{}},
			opts:    func(o *Options) { o.Kinds = []state.Kind{state.KindInterfaces} },
			kind:    errors.KindNotSupported,
			msg:     "routes is disabled",
		},
		{
			name:    "port of two controllers",
			current: sampleCurrent(),
			desired: &state.NetworkState{Interfaces: []*state.Interface{
				{Name: "br0", Type: state.TypeBridge, Bridge: &state.BridgeConfig{Ports: []state.BridgePort{{Name: "eth1"}}}},
				{Name: "bond0", Type: state.TypeBond, Bond: &state.BondConfig{Mode: "active-backup", Ports: []string{"eth1"}}},
			}},
			kind: errors.KindInvalidArgument,
			msg:  "listed as a port of both",
		},
		{
			name:    "nil desired",
			current: sampleCurrent(),
			desired: nil,
			kind:    errors.KindInvalidArgument,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			opts := DefaultOptions()
			if tt.opts != nil {
				tt.opts(&opts)
			}
			_, err := Compute(tt.current, tt.desired, opts)
			if errors.KindOf(err) != tt.kind {
				t.Fatalf("Compute() kind = %q, want %q (err=%v)", errors.KindOf(err), tt.kind, err)
			}
			if tt.msg != "" && !strings.Contains(err.Error(), tt.msg) {
				t.Errorf("Compute() error %q does not contain %q", err, tt.msg)
			}
		})
	}
}

func TestCompute_Deterministic(t *testing.T) {
	desired := func(reverse bool) *state.NetworkState {
		ifaces := []*state.Interface{
			{Name: "dummy1", Type: state.TypeDummy},
			{Name: "dummy0", Type: state.TypeDummy},
			{Name: "br0", Type: state.TypeBridge, Bridge: &state.BridgeConfig{Ports: []state.BridgePort{{Name: "eth1"}}}},
		}
		if reverse {
			ifaces[0], ifaces[2] = ifaces[2], ifaces[0]
		}
		return &state.NetworkState{
			Interfaces: ifaces,
			Routes: []*state.Route{
				{Destination: "172.16.0.0/12", NextHopInterface: "dummy0"},
				{Destination: "172.16.0.0/12", NextHopInterface: "dummy1", Metric: 10},
			},
			DNS: &state.DNSResolver{Config: &state.DNSConfig{Servers: []string{"1.1.1.1"}}},
		}
	}

	var first []byte
	for i, reverse := range []bool{false, true, false} {
		cs, err := Compute(sampleCurrent(), desired(reverse), DefaultOptions())
		if err != nil {
			t.Fatalf("Compute() error: %v", err)
		}
		data, err := cs.Marshal()
		if err != nil {
			t.Fatalf("Marshal() error: %v", err)
		}
		if i == 0 {
			first = data
			continue
		}
		if !bytes.Equal(first, data) {
			t.Errorf("change-set differs between runs:\n%s\n%s", first, data)
		}
	}
}

func TestCompute_DoesNotMutateInputs(t *testing.T) {
	current := sampleCurrent()
	desired := &state.NetworkState{Interfaces: []*state.Interface{{Name: "eth1"}}}

	before, _ := current.Marshal()
	desiredBefore, _ := desired.Marshal()
	if _, err := Compute(current, desired, DefaultOptions()); err != nil {
		t.Fatalf("Compute() error: %v", err)
	}
	after, _ := current.Marshal()
	desiredAfter, _ := desired.Marshal()

	if !bytes.Equal(before, after) || !bytes.Equal(desiredBefore, desiredAfter) {
		t.Errorf("Compute() must not modify its inputs")
	}
}
