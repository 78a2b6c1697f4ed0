package commands

import (
	"bytes"
	"encoding/json"
	"os"
	"path/filepath"
	"strings"
	"testing"

	"gopkg.in/yaml.v3"

	"github.com/maksimkurb/netstate/src/internal/config"
	"github.com/maksimkurb/netstate/src/internal/core"
	"github.com/maksimkurb/netstate/src/internal/engine"
	"github.com/maksimkurb/netstate/src/internal/errors"
	"github.com/maksimkurb/netstate/src/internal/mocks"
	"github.com/maksimkurb/netstate/src/internal/state"
)

const testConfig = `
[verify]
interval_ms = 1
max_interval_ms = 2
`

type fixture struct {
	ctx      *AppContext
	kernel   *mocks.Backend
	resolver *mocks.Backend
	dir      string
	cfgPath  string
}

func newFixture(t *testing.T) *fixture {
	t.Helper()
	dir := t.TempDir()
	cfgPath := filepath.Join(dir, "netstate.toml")
	if err := os.WriteFile(cfgPath, []byte(testConfig), 0o644); err != nil {
		t.Fatalf("write config: %v", err)
	}

	current := state.New()
	current.Interfaces = []*state.Interface{
		{Name: "eth0", Type: state.TypeEthernet, State: state.StateDown, MTU: state.Int(1500)},
		{Name: "lo", Type: state.TypeLoopback, State: state.StateUp, MTU: state.Int(65536)},
	}
	current.Routes = []*state.Route{
		{Destination: "10.0.0.0/8", NextHopInterface: "eth0", TableID: 254},
	}

	f := &fixture{
		kernel:   mocks.NewBackend("kernel", current, state.KindInterfaces, state.KindRoutes, state.KindRouteRules),
		resolver: mocks.NewBackend("resolver", current, state.KindDNS),
		dir:      dir,
		cfgPath:  cfgPath,
	}
	f.ctx = &AppContext{
		NewDependencies: func(cfg *config.Config, kernelOnly bool) (*core.AppDependencies, error) {
			return core.NewTestDependencies(cfg, []engine.Backend{f.kernel, f.resolver}, nil)
		},
	}
	return f
}

func (f *fixture) run(t *testing.T, args ...string) (string, error) {
	t.Helper()
	root := NewRootCommand(f.ctx, "test")
	args = append([]string{"--config", f.cfgPath}, args...)
	root.SetArgs(args)

	var out bytes.Buffer
	root.SetOut(&out)
	root.SetErr(&bytes.Buffer{})
	err := root.Execute()
	return out.String(), err
}

func (f *fixture) writeFile(t *testing.T, name, content string) string {
	t.Helper()
	path := filepath.Join(f.dir, name)
	if err := os.WriteFile(path, []byte(content), 0o644); err != nil {
		t.Fatalf("write %s: %v", name, err)
	}
	return path
}

func TestShow_YAML(t *testing.T) {
	f := newFixture(t)

	out, err := f.run(t, "show", "-k")
	if err != nil {
		t.Fatalf("show failed: %v", err)
	}

	name := strings.Index(out, "name: eth0")
	typ := strings.Index(out, "type: ethernet")
	if name < 0 || typ < 0 || typ < name {
		t.Errorf("interface records must start with name and type:\n%s", out)
	}

	doc, err := state.ParseYAML([]byte(out))
	if err != nil {
		t.Fatalf("show output does not parse: %v\n%s", err, out)
	}
	if len(doc.Interfaces) != 2 || len(doc.Routes) != 1 {
		t.Errorf("unexpected document: %s", out)
	}
}

func TestShow_InterfaceJSON(t *testing.T) {
	f := newFixture(t)

	out, err := f.run(t, "show", "eth0", "--json")
	if err != nil {
		t.Fatalf("show failed: %v", err)
	}

	var doc struct {
		Interfaces []struct {
			Name string `json:"name"`
		} `json:"interfaces"`
		Routes []json.RawMessage `json:"routes"`
	}
	if err := json.Unmarshal([]byte(out), &doc); err != nil {
		t.Fatalf("output is not JSON: %v\n%s", err, out)
	}
	if len(doc.Interfaces) != 1 || doc.Interfaces[0].Name != "eth0" || len(doc.Routes) != 1 {
		t.Errorf("unexpected filtered output:\n%s", out)
	}

	_, err = f.run(t, "show", "nope0")
	if !errors.IsKind(err, errors.KindInvalidArgument) {
		t.Errorf("unknown interface error = %v, want InvalidArgument", err)
	}
}

func TestApply(t *testing.T) {
	f := newFixture(t)
	path := f.writeFile(t, "up.yml", "interfaces:\n  - name: eth0\n    state: up\n")

	out, err := f.run(t, "apply", path, "-k")
	if err != nil {
		t.Fatalf("apply failed: %v", err)
	}
	if !strings.HasPrefix(out, "Desired state applied:") {
		t.Errorf("unexpected output:\n%s", out)
	}
	if got := f.kernel.Snapshot().Interface("eth0").State; got != state.StateUp {
		t.Errorf("eth0 state = %s, want up", got)
	}
}

func TestApply_DryRun(t *testing.T) {
	f := newFixture(t)
	path := f.writeFile(t, "up.json", `{"interfaces":[{"name":"eth0","state":"up"}]}`)

	out, err := f.run(t, "apply", "--dry-run", path)
	if err != nil {
		t.Fatalf("dry run failed: %v", err)
	}
	if !strings.Contains(out, "[MOD] interfaces/eth0") {
		t.Errorf("unexpected dry run output:\n%s", out)
	}
	if f.kernel.ApplyCalls != 0 {
		t.Errorf("dry run applied %d operations", f.kernel.ApplyCalls)
	}
}

func TestApply_Errors(t *testing.T) {
	tests := []struct {
		name    string
		content string
		failOn  map[int]error
		kind    errors.Kind
	}{
		{"malformed", "interfaces: [", nil, errors.KindInvalidArgument},
		{"unsupported kind", "ovs-db: {}\n", nil, errors.KindNotSupported},
		{
			"kernel rejection",
			"interfaces:\n  - name: eth0\n    mtu: 9000\n",
			map[int]error{1: errors.NewKernelRejection("mtu out of range", nil)},
			errors.KindKernelRejection,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			f := newFixture(t)
			f.kernel.FailOn = tt.failOn
			path := f.writeFile(t, "state.yml", tt.content)

			_, err := f.run(t, "apply", "-k", path)
			if !errors.IsKind(err, tt.kind) {
				t.Fatalf("apply error = %v, want %s", err, tt.kind)
			}
			if ExitCode(err) != tt.kind.Status() {
				t.Errorf("ExitCode() = %d, want %d", ExitCode(err), tt.kind.Status())
			}
		})
	}
}

func TestGenerate(t *testing.T) {
	f := newFixture(t)
	path := f.writeFile(t, "gen.yml", "interfaces:\n  - name: dummy0\n    type: dummy\n")

	out, err := f.run(t, "gc", path)
	if err != nil {
		t.Fatalf("gc failed: %v", err)
	}

	var files map[string]string
	if err := yaml.Unmarshal([]byte(out), &files); err != nil {
		t.Fatalf("gc output is not a YAML map: %v\n%s", err, out)
	}
	content, ok := files["dummy0.nmconnection"]
	if !ok || !strings.Contains(content, "type=dummy\n") {
		t.Errorf("unexpected keyfiles: %v", files)
	}
	if f.kernel.ApplyCalls != 0 || len(f.kernel.Reads) != 0 {
		t.Errorf("gc must not touch the system")
	}
}

func TestVersion(t *testing.T) {
	f := newFixture(t)
	out, err := f.run(t, "version")
	if err != nil || !strings.HasPrefix(out, "netstatectl test") {
		t.Errorf("version output %q, err %v", out, err)
	}
}

func TestExitCode(t *testing.T) {
	tests := []struct {
		err  error
		want int
	}{
		{nil, 0},
		{errors.NewTimeout("slow", nil), 4},
		{errors.NewInternal("bug", nil), 7},
		{os.ErrNotExist, 1},
	}
	for _, tt := range tests {
		if got := ExitCode(tt.err); got != tt.want {
			t.Errorf("ExitCode(%v) = %d, want %d", tt.err, got, tt.want)
		}
	}
}
