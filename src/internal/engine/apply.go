package engine

import (
	"context"
	stderrors "errors"
	"fmt"
	"time"

	"github.com/maksimkurb/netstate/src/internal/diff"
	"github.com/maksimkurb/netstate/src/internal/errors"
	"github.com/maksimkurb/netstate/src/internal/log"
	"github.com/maksimkurb/netstate/src/internal/state"
)

const noChanges = "no changes needed"

// Diff computes the change-set that Apply would execute, without mutating
// anything.
func (e *Engine) Diff(ctx context.Context, desired *state.NetworkState, flags Flags) (*Result, error) {
	rec, done := e.begin("diff")
	res := &Result{TxnID: rec.Txn()}

	cs, current, err := e.plan(ctx, desired, flags, rec)
	res.State = current
	res.ChangeSet = cs
	if err != nil {
		rec.Errorf("diff failed: %v", err)
	} else if cs.IsEmpty() {
		rec.Infof(noChanges)
	}
	res.Log = rec.Entries()
	done(err)
	return res, err
}

// Apply converges the current state to desired. On failure every applied
// operation is rolled back and the original error is returned.
func (e *Engine) Apply(ctx context.Context, desired *state.NetworkState, flags Flags) (*Result, error) {
	rec, done := e.begin("apply")
	res := &Result{TxnID: rec.Txn()}

	err := e.apply(ctx, desired, flags, rec, res)
	if err != nil {
		rec.Errorf("apply failed: %v", err)
	}
	res.Log = rec.Entries()
	done(err)
	return res, err
}

func (e *Engine) plan(ctx context.Context, desired *state.NetworkState, flags Flags, rec *log.Recorder) (*diff.ChangeSet, *state.NetworkState, error) {
	if desired == nil {
		return nil, nil, errors.NewInvalidArgument("desired state is empty", nil)
	}
	if err := desired.Validate(); err != nil {
		return nil, nil, err
	}

	current, err := e.read(ctx, flags, rec)
	if err != nil {
		return nil, nil, err
	}
	cs, err := diff.Compute(current, desired, e.opts)
	if err != nil {
		return nil, current, err
	}
	return cs, current, nil
}

func (e *Engine) apply(ctx context.Context, desired *state.NetworkState, flags Flags, rec *log.Recorder, res *Result) error {
	cs, snapshot, err := e.plan(ctx, desired, flags, rec)
	res.State = snapshot
	res.ChangeSet = cs
	if err != nil {
		return err
	}
	if cs.IsEmpty() {
		rec.Infof(noChanges)
		return nil
	}

	// Once the first operation runs the transaction is finished or rolled
	// back regardless of the caller going away.
	if err := ctx.Err(); err != nil {
		return errors.NewTimeout("cancelled before the first operation", err)
	}
	actx := context.WithoutCancel(ctx)

	rec.Infof("applying %d operations", cs.Len())
	cp := e.checkpoint(actx, flags, cs, rec)

	for i, op := range cs.Operations {
		if err := e.applyOne(actx, op, flags); err != nil {
			rec.Errorf("operation %d/%d %s failed: %v", i+1, cs.Len(), op, err)
			e.rollback(actx, cs, i, flags, cp, rec)
			return err
		}
		rec.Infof("%s", op)
	}

	if cp != nil {
		// The daemon must not roll back on its own while we verify.
		if err := cp.cp.ExtendCheckpoint(actx, cp.id, e.cfg.Verify.Deadline()); err != nil {
			rec.Warnf("cannot extend checkpoint %s: %v", cp.id, err)
		}
	}

	if err := e.verify(actx, cs.Desired, flags, rec); err != nil {
		e.rollback(actx, cs, cs.Len(), flags, cp, rec)
		return err
	}

	if cp != nil {
		if err := cp.destroy(actx); err != nil {
			rec.Warnf("failed to release checkpoint %s: %v", cp.id, err)
		}
	}
	rec.Infof("applied %d operations", cs.Len())
	return nil
}

func (e *Engine) applyOne(ctx context.Context, op diff.Operation, flags Flags) error {
	b, err := e.backendFor(op.Kind, flags)
	if err != nil {
		return err
	}

	timeout := e.cfg.Engine.OperationTimeout()
	octx, cancel := context.WithTimeout(ctx, timeout)
	defer cancel()

	err = b.ApplyOperation(octx, op)
	if err != nil && stderrors.Is(octx.Err(), context.DeadlineExceeded) && !errors.IsKind(err, errors.KindTimeout) {
		err = errors.NewTimeout(fmt.Sprintf("%s took longer than %s", op, timeout), err)
	} else if err != nil {
		err = errors.Ensure(err, op.String())
	}

	result := "pass"
	if err != nil {
		result = string(errors.KindOf(err))
	}
	e.metrics.operations.WithLabelValues(string(op.Kind), string(op.Action), result).Inc()
	return err
}

// daemonCheckpoint is an open daemon checkpoint.
type daemonCheckpoint struct {
	id string
	cp Checkpointer
}

func (c *daemonCheckpoint) destroy(ctx context.Context) error {
	return c.cp.DestroyCheckpoint(ctx, c.id)
}

// checkpoint opens a daemon checkpoint when the change-set touches a kind
// the daemon owns. Failing to open one falls back to inverse operations.
func (e *Engine) checkpoint(ctx context.Context, flags Flags, cs *diff.ChangeSet, rec *log.Recorder) *daemonCheckpoint {
	cp, ok := e.daemon.(Checkpointer)
	if !ok {
		return nil
	}
	needed := false
	for _, op := range cs.Operations {
		if e.useDaemon(flags, op.Kind) {
			needed = true
			break
		}
	}
	if !needed {
		return nil
	}

	timeout := time.Duration(e.cfg.Daemon.CheckpointTimeoutSec) * time.Second
	id, err := cp.CreateCheckpoint(ctx, timeout)
	if err != nil {
		rec.Warnf("cannot create daemon checkpoint, rollback will replay inverse operations: %v", err)
		return nil
	}
	rec.Debugf("created daemon checkpoint %s", id)
	return &daemonCheckpoint{id: id, cp: cp}
}
