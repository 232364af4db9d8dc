package access

import (
	"io"
	"time"

	"github.com/sirupsen/logrus"

	"dispatchdesk.io/internal/clock"
)

const (
	// DefaultLockoutThreshold is the number of consecutive failures that lock an account.
	DefaultLockoutThreshold = 5
	// DefaultLockoutDuration is how long a lock holds.
	DefaultLockoutDuration = time.Hour
	// DefaultSweepBatch bounds the candidates fetched per reconciler query.
	DefaultSweepBatch = 100
)

type settings struct {
	clock            clock.Clock
	observer         Observer
	log              logrus.FieldLogger
	lockoutThreshold int
	lockoutDuration  time.Duration
	sweepBatch       int
}

// Option configures services in this package.
type Option func(*settings)

// WithClock overrides the time source.
func WithClock(c clock.Clock) Option {
	return func(s *settings) {
		if c != nil {
			s.clock = c
		}
	}
}

// WithObserver routes decision and transition events to o.
func WithObserver(o Observer) Option {
	return func(s *settings) {
		if o != nil {
			s.observer = o
		}
	}
}

// WithLogger sets the logger used for internal diagnostics.
func WithLogger(l logrus.FieldLogger) Option {
	return func(s *settings) {
		if l != nil {
			s.log = l
		}
	}
}

// WithLockout overrides the failed-login threshold and lock duration.
// Non-positive values keep the defaults.
func WithLockout(threshold int, d time.Duration) Option {
	return func(s *settings) {
		if threshold > 0 {
			s.lockoutThreshold = threshold
		}
		if d > 0 {
			s.lockoutDuration = d
		}
	}
}

// WithSweepBatch sets the reconciler page size.
func WithSweepBatch(n int) Option {
	return func(s *settings) {
		if n > 0 {
			s.sweepBatch = n
		}
	}
}

func newSettings(opts []Option) settings {
	discard := logrus.New()
	discard.SetOutput(io.Discard)
	s := settings{
		clock:            clock.Real(),
		observer:         NopObserver{},
		log:              discard,
		lockoutThreshold: DefaultLockoutThreshold,
		lockoutDuration:  DefaultLockoutDuration,
		sweepBatch:       DefaultSweepBatch,
	}
	for _, opt := range opts {
		if opt != nil {
			opt(&s)
		}
	}
	return s
}
