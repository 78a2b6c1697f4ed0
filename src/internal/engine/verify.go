package engine

import (
	"context"
	"fmt"
	"time"

	"github.com/maksimkurb/netstate/src/internal/errors"
	"github.com/maksimkurb/netstate/src/internal/log"
	"github.com/maksimkurb/netstate/src/internal/state"
)

// verify re-reads the state until it covers desired. Attempts are spaced by
// a growing interval and bounded by the overall verification deadline.
func (e *Engine) verify(ctx context.Context, desired *state.NetworkState, flags Flags, rec *log.Recorder) error {
	v := e.cfg.Verify
	attempts := v.Attempts(flags.KernelOnly)
	interval := v.Interval()

	vctx, cancel := context.WithTimeout(ctx, v.Deadline())
	defer cancel()

	var last error
	attempt := 0
	for attempt < attempts {
		attempt++
		current, err := e.read(vctx, flags, rec)
		if err == nil {
			err = state.Verify(desired, current)
		}
		if err == nil {
			e.metrics.verifies.Observe(float64(attempt))
			rec.Debugf("verified after %d attempts", attempt)
			return nil
		}
		last = err
		rec.Debugf("verification attempt %d/%d: %v", attempt, attempts, err)

		if attempt == attempts || !sleep(vctx, interval) {
			break
		}
		interval = time.Duration(float64(interval) * v.Backoff)
		if max := v.MaxInterval(); interval > max {
			interval = max
		}
	}
	e.metrics.verifies.Observe(float64(attempt))

	rec.Errorf("desired state not reached after %d verification attempts", attempt)
	if errors.IsKind(last, errors.KindVerificationFailure) {
		return last
	}
	return errors.NewVerificationFailure(fmt.Sprintf("cannot read back the state after %d attempts", attempt), last)
}

// sleep waits for d and reports false if ctx ended first.
func sleep(ctx context.Context, d time.Duration) bool {
	t := time.NewTimer(d)
	defer t.Stop()
	select {
	case <-t.C:
		return true
	case <-ctx.Done():
		return false
	}
}
