package schedule

import (
	"context"
	"errors"
	"sync"
	"testing"
	"time"

	"dispatchdesk.io/internal/access"
)

type countingSweeper struct {
	mu    sync.Mutex
	calls int
	err   error
}

func (c *countingSweeper) ReconcileExpiredSuspensions(context.Context) (access.SweepResult, error) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.calls++
	return access.SweepResult{Reactivated: 1}, c.err
}

func (c *countingSweeper) Calls() int {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.calls
}

func TestNewRejectsBadSpec(t *testing.T) {
	if _, err := New("every so often", &countingSweeper{}); err == nil {
		t.Fatalf("expected parse error")
	}
	if _, err := New("@every 1m", nil); err == nil {
		t.Fatalf("expected missing job error")
	}
}

func TestRunOnceReportsResult(t *testing.T) {
	job := &countingSweeper{err: errors.New("db down")}
	var (
		gotRes access.SweepResult
		gotErr error
	)
	s, err := New("@every 1m", job, WithResultHook(func(res access.SweepResult, err error) {
		gotRes, gotErr = res, err
	}))
	if err != nil {
		t.Fatalf("New: %v", err)
	}
	if _, err := s.RunOnce(context.Background()); err == nil {
		t.Fatalf("expected job error to propagate")
	}
	if gotRes.Reactivated != 1 || gotErr == nil {
		t.Fatalf("hook not called with result: %+v %v", gotRes, gotErr)
	}
}

func TestStartAndStop(t *testing.T) {
	job := &countingSweeper{}
	s, err := New("@every 1s", job)
	if err != nil {
		t.Fatalf("New: %v", err)
	}
	ctx := context.Background()
	if err := s.StartWithContext(ctx); err != nil {
		t.Fatalf("start: %v", err)
	}
	if err := s.StartWithContext(ctx); err != nil {
		t.Fatalf("second start should be a no-op: %v", err)
	}
	deadline := time.Now().Add(5 * time.Second)
	for job.Calls() == 0 && time.Now().Before(deadline) {
		time.Sleep(50 * time.Millisecond)
	}
	stopCtx, cancel := context.WithTimeout(ctx, 5*time.Second)
	defer cancel()
	if err := s.StopWithContext(stopCtx); err != nil {
		t.Fatalf("stop: %v", err)
	}
	if job.Calls() == 0 {
		t.Fatalf("expected at least one scheduled run")
	}
	if err := s.StopWithContext(stopCtx); err != nil {
		t.Fatalf("second stop should be a no-op: %v", err)
	}
}
