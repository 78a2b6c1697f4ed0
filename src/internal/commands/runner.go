package commands

import (
	"context"
	"fmt"
	"time"

	"github.com/maksimkurb/netstate/src/internal/log"
)

// RunnerConfig controls how a crashed task is restarted.
type RunnerConfig struct {
	Name           string
	MaxRestarts    int           // 0 = unlimited restarts
	RestartBackoff time.Duration // Initial backoff (default: 1s)
	MaxBackoff     time.Duration // Max backoff (default: 30s)
}

// RestartableRunner runs a task until its context is cancelled, restarting
// it with exponential backoff when it returns an error or panics.
type RestartableRunner struct {
	cfg     RunnerConfig
	runFunc func(ctx context.Context) error

	restarts int
}

// NewRestartableRunner creates a runner for runFunc.
func NewRestartableRunner(cfg RunnerConfig, runFunc func(ctx context.Context) error) *RestartableRunner {
	if cfg.RestartBackoff == 0 {
		cfg.RestartBackoff = time.Second
	}
	if cfg.MaxBackoff == 0 {
		cfg.MaxBackoff = 30 * time.Second
	}
	return &RestartableRunner{cfg: cfg, runFunc: runFunc}
}

// Run blocks until the task exits cleanly, ctx is cancelled or the restart
// budget is spent. The last task error is returned in the latter case.
func (r *RestartableRunner) Run(ctx context.Context) error {
	backoff := r.cfg.RestartBackoff

	for {
		err := r.runOnce(ctx)
		if err == nil {
			log.Infof("%s: exited cleanly", r.cfg.Name)
			return nil
		}
		if ctx.Err() != nil {
			log.Infof("%s: stopped", r.cfg.Name)
			return nil
		}

		r.restarts++
		if r.cfg.MaxRestarts > 0 && r.restarts >= r.cfg.MaxRestarts {
			log.Errorf("%s: max restarts (%d) reached, giving up. Last error: %v", r.cfg.Name, r.cfg.MaxRestarts, err)
			return err
		}
		log.Errorf("%s: crashed with error: %v. Restarting in %v (restart #%d)", r.cfg.Name, err, backoff, r.restarts)

		select {
		case <-ctx.Done():
			return nil
		case <-time.After(backoff):
		}

		backoff *= 2
		if backoff > r.cfg.MaxBackoff {
			backoff = r.cfg.MaxBackoff
		}
	}
}

// Restarts returns how many times the task has been restarted.
func (r *RestartableRunner) Restarts() int {
	return r.restarts
}

func (r *RestartableRunner) runOnce(ctx context.Context) (err error) {
	defer func() {
		if recovered := recover(); recovered != nil {
			err = fmt.Errorf("panic: %v", recovered)
		}
	}()
	return r.runFunc(ctx)
}
