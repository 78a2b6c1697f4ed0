package engine

import (
	"context"

	"github.com/maksimkurb/netstate/src/internal/diff"
	"github.com/maksimkurb/netstate/src/internal/log"
)

// rollback undoes the first n operations of cs. A daemon checkpoint covers
// the kinds the daemon applied; everything else is reverted by applying
// inverse operations in reverse order. Rollback is best effort: failures
// are logged and never replace the error that triggered it.
func (e *Engine) rollback(ctx context.Context, cs *diff.ChangeSet, n int, flags Flags, cp *daemonCheckpoint, rec *log.Recorder) {
	rec.Warnf("rolling back %d operations", n)

	if cp != nil {
		if err := cp.cp.RollbackCheckpoint(ctx, cp.id); err != nil {
			rec.Errorf("daemon checkpoint rollback failed, replaying inverse operations: %v", err)
			cp = nil
		} else {
			e.metrics.rollbacks.WithLabelValues("checkpoint").Inc()
			rec.Infof("restored daemon checkpoint %s", cp.id)
		}
	}

	undone, failed := 0, 0
	for _, op := range cs.Undo(n) {
		if cp != nil && e.useDaemon(flags, op.Kind) {
			continue
		}
		undone++
		if err := e.applyOne(ctx, op, flags); err != nil {
			failed++
			rec.Warnf("rollback of %s failed: %v", op, err)
		}
	}
	if undone > 0 {
		e.metrics.rollbacks.WithLabelValues("inverse").Inc()
	}

	if failed > 0 {
		rec.Errorf("rollback incomplete: %d of %d inverse operations failed", failed, undone)
		return
	}
	rec.Infof("rolled back")
}
