package commands

import (
	"context"
	"fmt"
	"testing"
	"time"
)

func TestRestartableRunner_GivesUp(t *testing.T) {
	calls := 0
	r := NewRestartableRunner(RunnerConfig{
		Name:           "test",
		MaxRestarts:    3,
		RestartBackoff: time.Millisecond,
		MaxBackoff:     2 * time.Millisecond,
	}, func(ctx context.Context) error {
		calls++
		return fmt.Errorf("listen failed")
	})

	err := r.Run(context.Background())
	if err == nil || err.Error() != "listen failed" {
		t.Errorf("Run() error = %v, want the last task error", err)
	}
	if calls != 3 || r.Restarts() != 3 {
		t.Errorf("calls = %d, restarts = %d, want 3 and 3", calls, r.Restarts())
	}
}

func TestRestartableRunner_RecoversPanic(t *testing.T) {
	calls := 0
	r := NewRestartableRunner(RunnerConfig{Name: "test", RestartBackoff: time.Millisecond},
		func(ctx context.Context) error {
			calls++
			if calls == 1 {
				panic("boom")
			}
			return nil
		})

	if err := r.Run(context.Background()); err != nil {
		t.Errorf("Run() error = %v", err)
	}
	if calls != 2 || r.Restarts() != 1 {
		t.Errorf("calls = %d, restarts = %d, want 2 and 1", calls, r.Restarts())
	}
}

func TestRestartableRunner_StopsOnCancel(t *testing.T) {
	ctx, cancel := context.WithCancel(context.Background())
	r := NewRestartableRunner(RunnerConfig{Name: "test", RestartBackoff: time.Hour},
		func(ctx context.Context) error {
			cancel()
			return fmt.Errorf("interrupted")
		})

	done := make(chan error, 1)
	go func() { done <- r.Run(ctx) }()

	select {
	case err := <-done:
		if err != nil {
			t.Errorf("Run() error = %v, want nil after cancel", err)
		}
	case <-time.After(5 * time.Second):
		t.Fatal("Run() did not return after cancel")
	}
}
