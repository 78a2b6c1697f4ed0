// Package netstate is the public entry point of the reconciliation engine.
//
// A Library wraps one engine. Retrieve returns the current network state as
// a JSON document; Apply converges the system to a desired JSON document.
// Both return a Result that owns its data: a status code, the state or the
// error kind and message, and the call's log.
//
// # Example Usage
//
//	lib, err := netstate.Open("/etc/netstate/netstate.toml")
//	if err != nil {
//	    return err
//	}
//	defer lib.Close()
//
//	res := lib.Apply(ctx, netstate.FlagKernelOnly, []byte(`{"interfaces":[{"name":"eth0","state":"up"}]}`))
//	if res.Status != netstate.StatusPass {
//	    return res.Err()
//	}
package netstate

import (
	"context"
	"fmt"

	"github.com/maksimkurb/netstate/src/internal/config"
	"github.com/maksimkurb/netstate/src/internal/core"
	"github.com/maksimkurb/netstate/src/internal/engine"
	"github.com/maksimkurb/netstate/src/internal/errors"
	"github.com/maksimkurb/netstate/src/internal/log"
	"github.com/maksimkurb/netstate/src/internal/state"
)

// Library is an opened engine. It is safe for concurrent use; callers that
// need calls not to overlap must serialize them themselves.
type Library struct {
	engine *engine.Engine
	deps   *core.AppDependencies
}

// Open loads the configuration at configPath (defaults when it does not
// exist) and connects the backends it enables.
func Open(configPath string) (*Library, error) {
	cfg, err := config.LoadConfig(configPath)
	if err != nil {
		return nil, errors.NewInvalidArgument("cannot load configuration", err)
	}
	if err := log.SetLevel(cfg.General.LogLevel); err != nil {
		return nil, errors.NewInvalidArgument(fmt.Sprintf("bad log level %q", cfg.General.LogLevel), err)
	}
	log.SetFormat(cfg.General.LogFormat)

	deps, err := core.NewAppDependencies(core.AppConfig{Config: cfg})
	if err != nil {
		return nil, err
	}
	return &Library{engine: deps.Engine(), deps: deps}, nil
}

// New wraps an existing engine. Close is then a no-op.
func New(e *engine.Engine) *Library {
	return &Library{engine: e}
}

// Close releases the resources acquired by Open.
func (l *Library) Close() {
	if l.deps != nil {
		l.deps.Close()
		l.deps = nil
	}
}

// Engine returns the wrapped engine.
func (l *Library) Engine() *engine.Engine {
	return l.engine
}

// Retrieve reads the current state. flags is the ABI bitset.
func (l *Library) Retrieve(ctx context.Context, flags uint32) *Result {
	f, err := ParseFlags(flags)
	if err != nil {
		return failure(err, nil)
	}

	res, err := l.engine.Retrieve(ctx, f)
	if err != nil {
		return failure(err, res.Log)
	}
	data, err := res.State.Marshal()
	if err != nil {
		return failure(errors.NewInternal("cannot encode the retrieved state", err), res.Log)
	}
	return &Result{Status: StatusPass, State: string(data), Log: res.Log}
}

// Apply converges the system to the desired state document.
func (l *Library) Apply(ctx context.Context, flags uint32, stateJSON []byte) *Result {
	f, err := ParseFlags(flags)
	if err != nil {
		return failure(err, nil)
	}
	desired, err := state.Parse(stateJSON)
	if err != nil {
		return failure(err, nil)
	}

	res, err := l.engine.Apply(ctx, desired, f)
	if err != nil {
		return failure(err, res.Log)
	}
	return &Result{Status: StatusPass, Log: res.Log}
}
