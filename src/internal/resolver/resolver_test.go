package resolver

import (
	"context"
	"os"
	"path/filepath"
	"strings"
	"testing"

	"github.com/maksimkurb/netstate/src/internal/diff"
	"github.com/maksimkurb/netstate/src/internal/errors"
	"github.com/maksimkurb/netstate/src/internal/state"
)

const sample = `# managed by someone else
domain corp.example
search example.com lab.example.
nameserver 192.0.2.53
nameserver 2001:db8::53
options ndots:2 timeout:1
`

func TestParse(t *testing.T) {
	cfg, err := Parse([]byte(sample))
	if err != nil {
		t.Fatalf("Parse() error: %v", err)
	}
	if strings.Join(cfg.Servers, ",") != "192.0.2.53,2001:db8::53" {
		t.Errorf("Servers = %v", cfg.Servers)
	}
	if strings.Join(cfg.Search, ",") != "example.com,lab.example" {
		t.Errorf("Search = %v", cfg.Search)
	}
}

func TestBackend_ReadMissingFile(t *testing.T) {
	b := NewBackend(filepath.Join(t.TempDir(), "resolv.conf"))
	got, err := b.Read(context.Background(), state.KindDNS)
	if err != nil {
		t.Fatalf("Read() error: %v", err)
	}
	if got.DNS == nil || got.DNS.Config == nil || len(got.DNS.Config.Servers) != 0 || got.DNS.Config.Servers == nil {
		t.Errorf("missing file should read as an empty, present configuration: %+v", got.DNS)
	}
}

func TestBackend_ReadWrongKind(t *testing.T) {
	b := NewBackend("/nonexistent")
	if _, err := b.Read(context.Background(), state.KindRoutes); errors.KindOf(err) != errors.KindNotSupported {
		t.Errorf("Read(routes) kind = %q, want NotSupported", errors.KindOf(err))
	}
}

func TestBackend_ApplyKeepsOptions(t *testing.T) {
	path := filepath.Join(t.TempDir(), "resolv.conf")
	if err := os.WriteFile(path, []byte(sample), 0o644); err != nil {
		t.Fatal(err)
	}
	b := NewBackend(path)

	op := diff.Operation{
		Kind:   state.KindDNS,
		ID:     state.DNSResolverID,
		Action: diff.ActionModify,
		Payload: &state.DNSResolver{Config: &state.DNSConfig{
			Servers: []string{"198.51.100.1"},
			Search:  []string{"example.org"},
		}},
	}
	if err := b.ApplyOperation(context.Background(), op); err != nil {
		t.Fatalf("ApplyOperation() error: %v", err)
	}

	data, err := os.ReadFile(path)
	if err != nil {
		t.Fatal(err)
	}
	text := string(data)
	for _, want := range []string{"nameserver 198.51.100.1", "search example.org", "options ndots:2 timeout:1", "# managed by someone else"} {
		if !strings.Contains(text, want) {
			t.Errorf("written file lacks %q:\n%s", want, text)
		}
	}
	for _, gone := range []string{"192.0.2.53", "domain corp.example", "lab.example"} {
		if strings.Contains(text, gone) {
			t.Errorf("written file still has %q:\n%s", gone, text)
		}
	}

	got, err := b.Read(context.Background(), state.KindDNS)
	if err != nil {
		t.Fatalf("Read() error: %v", err)
	}
	if err := state.Verify(&state.NetworkState{DNS: op.Payload.(*state.DNSResolver)}, got); err != nil {
		t.Errorf("read back state does not match: %v", err)
	}
}

func TestBackend_ApplyDelete(t *testing.T) {
	path := filepath.Join(t.TempDir(), "resolv.conf")
	if err := os.WriteFile(path, []byte(sample), 0o644); err != nil {
		t.Fatal(err)
	}
	b := NewBackend(path)

	op := diff.Operation{Kind: state.KindDNS, ID: state.DNSResolverID, Action: diff.ActionDelete,
		Previous: &state.DNSResolver{}}
	if err := b.ApplyOperation(context.Background(), op); err != nil {
		t.Fatalf("ApplyOperation() error: %v", err)
	}
	cfg, err := b.load()
	if err != nil {
		t.Fatal(err)
	}
	if len(cfg.Servers) != 0 || len(cfg.Search) != 0 {
		t.Errorf("delete should clear servers and search, got %+v", cfg)
	}
}

func TestValidate(t *testing.T) {
	tests := []struct {
		name    string
		cfg     *state.DNSConfig
		wantErr bool
	}{
		{"valid", &state.DNSConfig{Servers: []string{"192.0.2.1", "2001:db8::1"}, Search: []string{"example.com"}}, false},
		{"bad server", &state.DNSConfig{Servers: []string{"dns.example"}}, true},
		{"bad domain", &state.DNSConfig{Search: []string{"a..b"}}, true},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			err := Validate(tt.cfg)
			if (err != nil) != tt.wantErr {
				t.Errorf("Validate() error = %v, wantErr %v", err, tt.wantErr)
			}
			if err != nil && errors.KindOf(err) != errors.KindInvalidArgument {
				t.Errorf("Validate() kind = %q", errors.KindOf(err))
			}
		})
	}
}
