// Package schedule runs the reconciler sweep on a cron schedule.
package schedule

import (
	"context"
	"errors"
	"fmt"
	"io"
	"sync"

	"github.com/robfig/cron/v3"
	"github.com/sirupsen/logrus"

	"dispatchdesk.io/internal/access"
)

// Sweeper is the job the scheduler triggers.
type Sweeper interface {
	ReconcileExpiredSuspensions(ctx context.Context) (access.SweepResult, error)
}

// Scheduler triggers a Sweeper on a cron spec. A run still in progress when
// the next one is due causes that tick to be skipped.
type Scheduler struct {
	spec     string
	job      Sweeper
	log      logrus.FieldLogger
	onResult func(access.SweepResult, error)

	mu      sync.Mutex
	cron    *cron.Cron
	cancel  context.CancelFunc
	running bool
}

// Option configures Scheduler.
type Option func(*Scheduler)

// WithLogger sets the logger for run results.
func WithLogger(l logrus.FieldLogger) Option {
	return func(s *Scheduler) {
		if l != nil {
			s.log = l
		}
	}
}

// WithResultHook is called after every run, successful or not.
func WithResultHook(fn func(access.SweepResult, error)) Option {
	return func(s *Scheduler) { s.onResult = fn }
}

// New returns a Scheduler for job. spec accepts standard five-field cron
// expressions and descriptors such as "@every 1m".
func New(spec string, job Sweeper, opts ...Option) (*Scheduler, error) {
	if job == nil {
		return nil, errors.New("schedule: job is required")
	}
	if _, err := cron.ParseStandard(spec); err != nil {
		return nil, fmt.Errorf("schedule: parse %q: %w", spec, err)
	}
	discard := logrus.New()
	discard.SetOutput(io.Discard)
	s := &Scheduler{spec: spec, job: job, log: discard}
	for _, opt := range opts {
		opt(s)
	}
	return s, nil
}

// StartWithContext starts the cron loop. Runs receive a context derived
// from ctx that is cancelled on stop.
func (s *Scheduler) StartWithContext(ctx context.Context) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.running {
		return nil
	}
	runCtx, cancel := context.WithCancel(ctx)
	logger := cronLogger{log: s.log}
	c := cron.New(cron.WithLogger(logger), cron.WithChain(cron.Recover(logger), cron.SkipIfStillRunning(logger)))
	if _, err := c.AddFunc(s.spec, func() { _, _ = s.RunOnce(runCtx) }); err != nil {
		cancel()
		return fmt.Errorf("schedule: %w", err)
	}
	c.Start()
	s.cron, s.cancel, s.running = c, cancel, true
	s.log.WithField("schedule", s.spec).Info("reconciler scheduled")
	return nil
}

// StopWithContext stops scheduling and waits for a run in progress, or for
// ctx to end.
func (s *Scheduler) StopWithContext(ctx context.Context) error {
	s.mu.Lock()
	c, cancel, wasRunning := s.cron, s.cancel, s.running
	s.cron, s.cancel, s.running = nil, nil, false
	s.mu.Unlock()
	if !wasRunning {
		return nil
	}
	done := c.Stop()
	cancel()
	select {
	case <-done.Done():
		return nil
	case <-ctx.Done():
		return ctx.Err()
	}
}

// RunOnce performs one sweep immediately.
func (s *Scheduler) RunOnce(ctx context.Context) (access.SweepResult, error) {
	res, err := s.job.ReconcileExpiredSuspensions(ctx)
	if s.onResult != nil {
		s.onResult(res, err)
	}
	if err != nil {
		s.log.WithError(err).Error("reconciler sweep failed")
	}
	return res, err
}

type cronLogger struct {
	log logrus.FieldLogger
}

func (l cronLogger) Info(msg string, keysAndValues ...any) {
	l.log.WithFields(fields(keysAndValues)).Debug("cron: " + msg)
}

func (l cronLogger) Error(err error, msg string, keysAndValues ...any) {
	l.log.WithFields(fields(keysAndValues)).WithError(err).Error("cron: " + msg)
}

func fields(kv []any) logrus.Fields {
	out := make(logrus.Fields, len(kv)/2)
	for i := 0; i+1 < len(kv); i += 2 {
		out[fmt.Sprint(kv[i])] = kv[i+1]
	}
	return out
}
