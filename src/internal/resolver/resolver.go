// Package resolver reads and writes the DNS resolver configuration file.
package resolver

import (
	"bufio"
	"bytes"
	"context"
	"fmt"
	"net/netip"
	"os"
	"path/filepath"
	"strings"

	"github.com/maksimkurb/netstate/src/internal/diff"
	"github.com/maksimkurb/netstate/src/internal/errors"
	"github.com/maksimkurb/netstate/src/internal/log"
	"github.com/maksimkurb/netstate/src/internal/state"
	"github.com/miekg/dns"
)

const header = "# Generated by netstate\n"

// Backend manages the dns-resolver entity through a resolv.conf file.
type Backend struct {
	path string
}

// NewBackend creates a resolver backend for the file at path.
func NewBackend(path string) *Backend {
	return &Backend{path: path}
}

func (b *Backend) Name() string {
	return "resolver"
}

func (b *Backend) Kinds() []state.Kind {
	return []state.Kind{state.KindDNS}
}

// Read parses the resolver file. A missing file reads as an empty
// configuration.
func (b *Backend) Read(ctx context.Context, kind state.Kind) (*state.NetworkState, error) {
	if kind != state.KindDNS {
		return nil, errors.NewNotSupported(fmt.Sprintf("resolver backend cannot read %s", kind), nil)
	}
	if err := ctx.Err(); err != nil {
		return nil, errors.FromErrno("read "+b.path, err)
	}

	cfg, err := b.load()
	if err != nil {
		return nil, err
	}
	out := state.New()
	out.DNS = &state.DNSResolver{Config: cfg}
	out.Canonicalize()
	return out, nil
}

func (b *Backend) load() (*state.DNSConfig, error) {
	data, err := os.ReadFile(b.path)
	if os.IsNotExist(err) {
		return &state.DNSConfig{Servers: []string{}, Search: []string{}}, nil
	}
	if err != nil {
		return nil, fileError("read "+b.path, err)
	}
	return Parse(data)
}

// Parse extracts name servers and search domains from resolv.conf content.
func Parse(data []byte) (*state.DNSConfig, error) {
	cc, err := dns.ClientConfigFromReader(bytes.NewReader(data))
	if err != nil {
		return nil, errors.NewInternal("parse resolver configuration", err)
	}
	cfg := &state.DNSConfig{Servers: []string{}, Search: []string{}}
	for _, s := range cc.Servers {
		addr, err := netip.ParseAddr(s)
		if err != nil {
			log.Warnf("Ignoring invalid name server %q", s)
			continue
		}
		cfg.Servers = append(cfg.Servers, addr.String())
	}
	for _, d := range cc.Search {
		cfg.Search = append(cfg.Search, strings.TrimSuffix(d, "."))
	}
	return cfg, nil
}

// ApplyOperation writes the resolver file. Deleting the resolver entity
// leaves a file without name servers or search domains.
func (b *Backend) ApplyOperation(ctx context.Context, op diff.Operation) error {
	if op.Kind != state.KindDNS {
		return errors.NewNotSupported(fmt.Sprintf("resolver backend cannot apply %s", op.Kind), nil)
	}
	if err := ctx.Err(); err != nil {
		return errors.FromErrno(op.String(), err)
	}

	cfg := &state.DNSConfig{}
	if op.Action != diff.ActionDelete {
		if rec, ok := op.Payload.(*state.DNSResolver); ok && rec.Config != nil {
			cfg = rec.Config
		}
	}
	if err := Validate(cfg); err != nil {
		return err
	}

	existing, err := os.ReadFile(b.path)
	if err != nil && !os.IsNotExist(err) {
		return fileError("read "+b.path, err)
	}
	log.Debugf("Writing %s: servers=%v search=%v", b.path, cfg.Servers, cfg.Search)
	return writeAtomic(b.path, Render(cfg, existing))
}

// Validate checks name server literals and search domains.
func Validate(cfg *state.DNSConfig) error {
	for _, s := range cfg.Servers {
		if _, err := netip.ParseAddr(s); err != nil {
			return errors.NewInvalidArgument(fmt.Sprintf("invalid name server %q", s), err)
		}
	}
	for _, d := range cfg.Search {
		if _, ok := dns.IsDomainName(d); !ok {
			return errors.NewInvalidArgument(fmt.Sprintf("invalid search domain %q", d), nil)
		}
	}
	return nil
}

// Render produces resolv.conf content. Lines of existing other than
// nameserver, search and domain are carried over.
func Render(cfg *state.DNSConfig, existing []byte) []byte {
	var buf bytes.Buffer
	buf.WriteString(header)
	if len(cfg.Search) > 0 {
		fmt.Fprintf(&buf, "search %s\n", strings.Join(cfg.Search, " "))
	}
	for _, s := range cfg.Servers {
		fmt.Fprintf(&buf, "nameserver %s\n", s)
	}

	sc := bufio.NewScanner(bytes.NewReader(existing))
	for sc.Scan() {
		line := sc.Text()
		fields := strings.Fields(line)
		if line == strings.TrimSuffix(header, "\n") {
			continue
		}
		if len(fields) > 0 {
			switch fields[0] {
			case "nameserver", "search", "domain":
				continue
			}
		}
		if len(fields) == 0 {
			continue
		}
		buf.WriteString(line)
		buf.WriteByte('\n')
	}
	return buf.Bytes()
}

// writeAtomic replaces path through a temporary file in the same directory.
func writeAtomic(path string, data []byte) error {
	dir := filepath.Dir(path)
	tmp, err := os.CreateTemp(dir, ".resolv.conf.*")
	if err != nil {
		return fileError("create temporary file in "+dir, err)
	}
	defer os.Remove(tmp.Name())

	if _, err := tmp.Write(data); err != nil {
		tmp.Close()
		return fileError("write "+tmp.Name(), err)
	}
	if err := tmp.Chmod(0o644); err != nil {
		tmp.Close()
		return fileError("chmod "+tmp.Name(), err)
	}
	if err := tmp.Close(); err != nil {
		return fileError("close "+tmp.Name(), err)
	}
	if err := os.Rename(tmp.Name(), path); err != nil {
		return fileError("replace "+path, err)
	}
	return nil
}

func fileError(op string, err error) error {
	if os.IsPermission(err) {
		return errors.NewPermissionDenied(op, err)
	}
	return errors.NewInternal(op, err)
}
