package engine

import (
	"bytes"
	"context"
	stderrors "errors"
	"fmt"
	"time"

	"github.com/maksimkurb/netstate/src/internal/errors"
	"github.com/maksimkurb/netstate/src/internal/log"
	"github.com/maksimkurb/netstate/src/internal/state"
	"golang.org/x/sync/errgroup"
)

// Retrieve reads the current state of every enabled kind.
func (e *Engine) Retrieve(ctx context.Context, flags Flags) (*Result, error) {
	rec, done := e.begin("retrieve")
	res := &Result{TxnID: rec.Txn()}

	current, err := e.read(ctx, flags, rec)
	if err != nil {
		rec.Errorf("retrieve failed: %v", err)
	} else {
		res.State = current
	}
	res.Log = rec.Entries()
	done(err)
	return res, err
}

// read queries every kind in parallel, each bounded by the query timeout,
// and lays the daemon view of interfaces over the kernel view.
func (e *Engine) read(ctx context.Context, flags Flags, rec *log.Recorder) (*state.NetworkState, error) {
	parts := make([]*state.NetworkState, len(e.kinds))
	var overlay *state.NetworkState

	g, gctx := errgroup.WithContext(ctx)
	for i, kind := range e.kinds {
		i, kind := i, kind
		b := e.kernelBackend(kind)
		g.Go(func() error {
			doc, err := e.readKind(gctx, b, kind)
			parts[i] = doc
			return err
		})
		if kind == state.KindInterfaces && e.useDaemon(flags, kind) {
			g.Go(func() error {
				doc, err := e.readKind(gctx, e.daemon, kind)
				overlay = doc
				return err
			})
		}
	}
	if err := g.Wait(); err != nil {
		return nil, err
	}

	out := &state.NetworkState{}
	for i, kind := range e.kinds {
		take(out, parts[i], kind)
	}
	if overlay != nil {
		out.Update(overlay)
	}
	out.Canonicalize()

	if err := checkConsistency(out); err != nil {
		return nil, err
	}
	rec.Debugf("read %d interfaces, %d routes, %d route rules", len(out.Interfaces), len(out.Routes), len(out.RouteRules))
	return out, nil
}

func (e *Engine) readKind(ctx context.Context, b Backend, kind state.Kind) (*state.NetworkState, error) {
	timeout := e.cfg.Engine.QueryTimeout()
	kctx, cancel := context.WithTimeout(ctx, timeout)
	defer cancel()

	start := time.Now()
	doc, err := b.Read(kctx, kind)
	e.metrics.readTime.WithLabelValues(string(kind), b.Name()).Observe(time.Since(start).Seconds())

	if err != nil {
		if stderrors.Is(kctx.Err(), context.DeadlineExceeded) && ctx.Err() == nil {
			return nil, errors.NewTimeout(fmt.Sprintf("reading %s took longer than %s", kind, timeout), err)
		}
		return nil, errors.Ensure(err, fmt.Sprintf("%s: read %s", b.Name(), kind))
	}
	if doc == nil {
		return nil, errors.NewInternal(fmt.Sprintf("%s returned no %s", b.Name(), kind), nil)
	}
	return doc, nil
}

// take copies the collection of kind from part into out, keeping the kind
// present even when the backend found nothing.
func take(out, part *state.NetworkState, kind state.Kind) {
	switch kind {
	case state.KindInterfaces:
		out.Interfaces = append([]*state.Interface{}, part.Interfaces...)
	case state.KindRoutes:
		out.Routes = append([]*state.Route{}, part.Routes...)
	case state.KindRouteRules:
		out.RouteRules = append([]*state.RouteRule{}, part.RouteRules...)
	case state.KindDNS:
		out.DNS = part.DNS
		if out.DNS == nil {
			out.DNS = &state.DNSResolver{Config: &state.DNSConfig{Servers: []string{}, Search: []string{}}}
		}
	}
}

// checkConsistency makes sure the retrieved document survives its own
// text round trip, has no duplicate identifiers and no dangling references.
func checkConsistency(s *state.NetworkState) error {
	for _, kind := range state.SupportedKinds {
		seen := make(map[string]bool)
		for _, ent := range s.Entities(kind) {
			if seen[ent.EntityID()] {
				return errors.NewInternal(fmt.Sprintf("retrieved state has duplicate %s", state.RefOf(ent)), nil)
			}
			seen[ent.EntityID()] = true
		}
	}
	if err := s.CheckReferences(); err != nil {
		return errors.NewInternal("retrieved state has a dangling reference", err)
	}

	data, err := s.Marshal()
	if err != nil {
		return errors.NewInternal("retrieved state cannot be encoded", err)
	}
	back, err := state.Parse(data)
	if err != nil {
		return errors.NewInternal("retrieved state does not parse back", err)
	}
	again, err := back.Marshal()
	if err != nil || !bytes.Equal(data, again) {
		return errors.NewInternal("retrieved state does not round-trip", err)
	}
	return nil
}
