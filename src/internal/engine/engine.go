// Package engine reads the current network state, converges it to a desired
// state and rolls back when that fails.
//
// An Engine is built once with its configuration and backends and is safe
// for concurrent use. Kernel backends serve every call; the optional daemon
// backend takes over the kinds it handles unless a call is kernel-only.
package engine

import (
	"fmt"
	"time"

	"github.com/google/uuid"
	"github.com/maksimkurb/netstate/src/internal/config"
	"github.com/maksimkurb/netstate/src/internal/diff"
	"github.com/maksimkurb/netstate/src/internal/errors"
	"github.com/maksimkurb/netstate/src/internal/log"
	"github.com/maksimkurb/netstate/src/internal/state"
)

// Engine is the reconciliation engine.
type Engine struct {
	cfg      *config.Config
	kinds    []state.Kind
	opts     diff.Options
	backends []Backend
	daemon   Backend
	metrics  *Metrics
}

// Result is the outcome of one engine call. It is returned even when the
// call fails so that the log is never lost.
type Result struct {
	// TxnID identifies the call in log output.
	TxnID string
	// State is the retrieved state.
	State *state.NetworkState
	// ChangeSet is the computed change-set of a diff or apply.
	ChangeSet *diff.ChangeSet
	// Log is the ordered list of messages recorded during the call.
	Log []string
}

// New builds an engine. backends serve every call; daemon may be nil.
func New(cfg *config.Config, backends []Backend, daemon Backend) (*Engine, error) {
	if cfg == nil {
		cfg = config.Default()
	}
	kinds, err := state.ParseKinds(cfg.Engine.Kinds)
	if err != nil {
		return nil, err
	}
	precedence, err := state.ParseKinds(cfg.Engine.Precedence)
	if err != nil {
		return nil, err
	}
	purge, err := state.ParseKinds(cfg.Engine.PurgeKinds)
	if err != nil {
		return nil, err
	}

	e := &Engine{
		cfg:      cfg,
		opts:     diff.Options{Kinds: kinds, Precedence: precedence, Purge: purge},
		backends: backends,
		metrics:  newMetrics(),
	}
	if daemon != nil && cfg.Daemon.Enabled {
		e.daemon = daemon
	}

	// Keep kinds in the canonical order so reads merge deterministically.
	for _, k := range state.SupportedKinds {
		for _, enabled := range kinds {
			if k != enabled {
				continue
			}
			if e.kernelBackend(k) == nil {
				return nil, errors.NewInternal(fmt.Sprintf("no backend handles %s", k), nil)
			}
			e.kinds = append(e.kinds, k)
		}
	}
	return e, nil
}

// Metrics returns the engine metrics.
func (e *Engine) Metrics() *Metrics {
	return e.metrics
}

// Kinds returns the enabled entity kinds.
func (e *Engine) Kinds() []state.Kind {
	return append([]state.Kind{}, e.kinds...)
}

// DaemonAvailable reports whether a daemon backend is configured.
func (e *Engine) DaemonAvailable() bool {
	return e.daemon != nil
}

func (e *Engine) kernelBackend(kind state.Kind) Backend {
	for _, b := range e.backends {
		if handles(b, kind) {
			return b
		}
	}
	return nil
}

func (e *Engine) useDaemon(flags Flags, kind state.Kind) bool {
	return !flags.KernelOnly && e.daemon != nil && handles(e.daemon, kind)
}

// backendFor returns the backend that mutates kind.
func (e *Engine) backendFor(kind state.Kind, flags Flags) (Backend, error) {
	if e.useDaemon(flags, kind) {
		return e.daemon, nil
	}
	if b := e.kernelBackend(kind); b != nil {
		return b, nil
	}
	return nil, errors.NewNotSupported(fmt.Sprintf("no backend handles %s", kind), nil)
}

func (e *Engine) begin(method string) (*log.Recorder, func(err error)) {
	txn := uuid.NewString()
	rec := log.NewRecorder(txn)
	start := time.Now()
	return rec, func(err error) {
		result := "pass"
		if err != nil {
			result = string(errors.KindOf(err))
		}
		e.metrics.calls.WithLabelValues(method, result).Inc()
		e.metrics.duration.WithLabelValues(method).Observe(time.Since(start).Seconds())
	}
}
