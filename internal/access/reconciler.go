package access

import (
	"context"
	"time"
)

// SweepResult counts the outcome of one reconciliation sweep.
type SweepResult struct {
	Reactivated int `json:"reactivated"`
	Released    int `json:"released"`
	// Skipped counts candidates whose conditional write matched nothing,
	// usually because a concurrent writer got there first.
	Skipped int `json:"skipped"`
}

// Reconciler returns accounts to ACTIVE once their temporary suspension or
// lock has run out. Every write is conditional on the row still being
// expired, so concurrent sweeps and just-in-time calls are safe to overlap.
type Reconciler struct {
	accounts AccountStore
	settings
}

// NewReconciler returns a Reconciler over accounts.
func NewReconciler(accounts AccountStore, opts ...Option) *Reconciler {
	return &Reconciler{accounts: accounts, settings: newSettings(opts)}
}

// ReconcileExpiredSuspensions reactivates every account whose temporary
// suspension has expired and releases every expired lock.
func (r *Reconciler) ReconcileExpiredSuspensions(ctx context.Context) (SweepResult, error) {
	now := r.clock.Now()
	var res SweepResult

	err := r.sweep(ctx, now, r.accounts.ListExpiredSuspensions, r.accounts.ReactivateExpiredSuspension, func(id string) {
		res.Reactivated++
		r.emit(ctx, id, StatusSuspended, now)
	}, &res.Skipped)
	if err != nil {
		return res, infra("sweep suspensions", err)
	}

	err = r.sweep(ctx, now, r.accounts.ListExpiredLocks, r.accounts.ReleaseExpiredLock, func(id string) {
		res.Released++
		r.emit(ctx, id, StatusLocked, now)
	}, &res.Skipped)
	if err != nil {
		return res, infra("sweep locks", err)
	}

	entry := r.log.WithField("reactivated", res.Reactivated).
		WithField("released", res.Released).
		WithField("skipped", res.Skipped)
	if res.Reactivated+res.Released > 0 {
		entry.Info("reconciler sweep complete")
	} else {
		entry.Debug("reconciler sweep complete")
	}
	return res, nil
}

type listFunc func(ctx context.Context, now time.Time, limit int) ([]string, error)
type writeFunc func(ctx context.Context, id string, now time.Time) (bool, error)

func (r *Reconciler) sweep(ctx context.Context, now time.Time, list listFunc, write writeFunc, onWrite func(string), skipped *int) error {
	seen := make(map[string]struct{})
	for {
		if err := ctx.Err(); err != nil {
			return err
		}
		ids, err := list(ctx, now, r.sweepBatch)
		if err != nil {
			return err
		}
		wrote, fresh := 0, 0
		for _, id := range ids {
			if _, dup := seen[id]; !dup {
				seen[id] = struct{}{}
				fresh++
			}
			ok, err := write(ctx, id, now)
			if err != nil {
				return err
			}
			if !ok {
				*skipped++
				continue
			}
			wrote++
			onWrite(id)
		}
		// Rows taken by a concurrent sweep drop out of the next listing; a
		// full page of already seen ids means the listing stopped moving.
		if len(ids) < r.sweepBatch || (wrote == 0 && fresh == 0) {
			return nil
		}
	}
}

// ReconcileAccount applies any due expiry to acc and returns the row as it
// stands afterwards. It is a no-op when nothing has expired.
func (r *Reconciler) ReconcileAccount(ctx context.Context, acc Account) (Account, error) {
	now := r.clock.Now()
	var (
		write writeFunc
		from  Status
	)
	switch {
	case acc.SuspensionExpired(now):
		write, from = r.accounts.ReactivateExpiredSuspension, StatusSuspended
	case acc.LockExpired(now):
		write, from = r.accounts.ReleaseExpiredLock, StatusLocked
	default:
		return acc, nil
	}

	ok, err := write(ctx, acc.ID, now)
	if err != nil {
		return acc, infra("reconcile account", err)
	}
	if ok {
		r.emit(ctx, acc.ID, from, now)
	}
	fresh, err := r.accounts.Get(ctx, acc.ID)
	if err != nil {
		return acc, infra("reload account", err)
	}
	return fresh, nil
}

func (r *Reconciler) emit(ctx context.Context, id string, from Status, now time.Time) {
	r.observer.ObserveTransition(ctx, TransitionEvent{
		AccountID: id,
		From:      from,
		To:        StatusActive,
		Cause:     CauseReconciler,
		At:        now,
	})
}
