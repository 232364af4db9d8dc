package access

import (
	"context"
	"errors"
	"sync"
	"testing"
	"time"
)

func suspendFor(t *testing.T, f *fixture, acc Account, d time.Duration) {
	t.Helper()
	exp := f.clock.Now().Add(d)
	if _, err := f.status.ChangeStatus(f.ctx, StatusChange{
		AccountID: acc.ID, Status: StatusSuspended, Reason: "x", Temporary: true, ExpiresAt: &exp,
	}); err != nil {
		t.Fatalf("suspend: %v", err)
	}
}

func TestTemporarySuspensionRoundTrip(t *testing.T) {
	f := newFixture(t)
	acc := f.active(t, "a@example.com", RoleAnalyst)
	suspendFor(t, f, acc, time.Hour)

	res, err := f.recon.ReconcileExpiredSuspensions(f.ctx)
	if err != nil || res.Reactivated != 0 {
		t.Fatalf("premature reactivation: %+v %v", res, err)
	}

	f.clock.Advance(time.Hour + time.Second)
	res, err = f.recon.ReconcileExpiredSuspensions(f.ctx)
	if err != nil {
		t.Fatalf("sweep: %v", err)
	}
	if res.Reactivated != 1 {
		t.Fatalf("expected one reactivation, got %+v", res)
	}
	got, _ := f.status.Get(f.ctx, acc.ID)
	if got.Status != StatusActive || got.StatusReason != nil || got.SuspensionExpiresAt != nil {
		t.Fatalf("unexpected state after reconcile: %+v", got)
	}
}

func TestReconcileReactivationClearsCounter(t *testing.T) {
	f := newFixture(t)
	acc := f.active(t, "a@example.com", RoleAnalyst)
	suspendFor(t, f, acc, time.Hour)
	for i := 0; i < DefaultLockoutThreshold-1; i++ {
		f.status.RecordFailedLogin(f.ctx, acc.ID)
	}
	f.clock.Advance(2 * time.Hour)
	if res, err := f.recon.ReconcileExpiredSuspensions(f.ctx); err != nil || res.Reactivated != 1 {
		t.Fatalf("sweep: %+v %v", res, err)
	}
	got, _ := f.status.RecordFailedLogin(f.ctx, acc.ID)
	if got.Status != StatusActive || got.FailedLoginAttempts != 1 || got.AccountLockedUntil != nil {
		t.Fatalf("reactivated account locked on first failure: %+v", got)
	}
}

func TestReconcileIsIdempotent(t *testing.T) {
	f := newFixture(t)
	acc := f.active(t, "a@example.com", RoleAnalyst)
	suspendFor(t, f, acc, time.Minute)
	f.clock.Advance(time.Minute)

	first, err := f.recon.ReconcileExpiredSuspensions(f.ctx)
	if err != nil {
		t.Fatalf("first sweep: %v", err)
	}
	after1, _ := f.status.Get(f.ctx, acc.ID)
	second, err := f.recon.ReconcileExpiredSuspensions(f.ctx)
	if err != nil {
		t.Fatalf("second sweep: %v", err)
	}
	after2, _ := f.status.Get(f.ctx, acc.ID)

	if first.Reactivated != 1 || second.Reactivated != 0 {
		t.Fatalf("expected one transition then a no-op, got %+v then %+v", first, second)
	}
	if after1.Status != after2.Status || !after1.UpdatedAt.Equal(after2.UpdatedAt) {
		t.Fatalf("second sweep changed state: %+v vs %+v", after1, after2)
	}
	reconciled := 0
	for _, ev := range f.rec.Transitions() {
		if ev.Cause == CauseReconciler {
			reconciled++
		}
	}
	if reconciled != 1 {
		t.Fatalf("expected one reconciler transition, got %d", reconciled)
	}
}

func TestReconcileLeavesIndefiniteSuspension(t *testing.T) {
	f := newFixture(t)
	acc := f.active(t, "a@example.com", RoleAnalyst)
	f.status.ChangeStatus(f.ctx, StatusChange{AccountID: acc.ID, Status: StatusSuspended, Reason: "x"})
	f.clock.Advance(1000 * time.Hour)
	res, _ := f.recon.ReconcileExpiredSuspensions(f.ctx)
	if res.Reactivated != 0 {
		t.Fatalf("indefinite suspension must stay: %+v", res)
	}
}

func TestReconcileReleasesExpiredLocks(t *testing.T) {
	f := newFixture(t)
	acc := f.active(t, "a@example.com", RoleAnalyst)
	for i := 0; i < 5; i++ {
		f.status.RecordFailedLogin(f.ctx, acc.ID)
	}
	f.clock.Advance(time.Hour)
	res, err := f.recon.ReconcileExpiredSuspensions(f.ctx)
	if err != nil || res.Released != 1 {
		t.Fatalf("expected one lock release, got %+v %v", res, err)
	}
	got, _ := f.status.Get(f.ctx, acc.ID)
	if got.Status != StatusActive || got.FailedLoginAttempts != 0 {
		t.Fatalf("lock not released: %+v", got)
	}
}

func TestReconcilePagesThroughBatches(t *testing.T) {
	f := newFixture(t)
	recon := NewReconciler(f.store.Accounts(), WithClock(f.clock), WithSweepBatch(2))
	for _, email := range []string{"a@x.io", "b@x.io", "c@x.io", "d@x.io", "e@x.io"} {
		suspendFor(t, f, f.active(t, email, RoleAnalyst), time.Minute)
	}
	f.clock.Advance(time.Minute)
	res, err := recon.ReconcileExpiredSuspensions(f.ctx)
	if err != nil || res.Reactivated != 5 {
		t.Fatalf("expected all five reactivated, got %+v %v", res, err)
	}
}

func TestConcurrentSweepsTransitionOnce(t *testing.T) {
	f := newFixture(t)
	acc := f.active(t, "a@example.com", RoleAnalyst)
	suspendFor(t, f, acc, time.Minute)
	f.clock.Advance(time.Minute)

	const n = 8
	var (
		wg    sync.WaitGroup
		mu    sync.Mutex
		total int
	)
	wg.Add(n)
	for i := 0; i < n; i++ {
		go func() {
			defer wg.Done()
			res, err := f.recon.ReconcileExpiredSuspensions(f.ctx)
			if err != nil {
				t.Errorf("sweep: %v", err)
				return
			}
			mu.Lock()
			total += res.Reactivated
			mu.Unlock()
		}()
	}
	wg.Wait()
	if total != 1 {
		t.Fatalf("expected one reactivation across sweeps, got %d", total)
	}
}

func TestReconcileLosesRaceToAdmin(t *testing.T) {
	f := newFixture(t)
	acc := f.active(t, "a@example.com", RoleAnalyst)
	suspendFor(t, f, acc, time.Minute)
	f.clock.Advance(time.Minute)

	// An admin disables the account between listing and the conditional write.
	store := racingAccounts{AccountStore: f.store.Accounts(), before: func() {
		f.status.ChangeStatus(f.ctx, StatusChange{AccountID: acc.ID, Status: StatusActive})
		f.status.ChangeStatus(f.ctx, StatusChange{AccountID: acc.ID, Status: StatusDisabled, Reason: "offboarded"})
	}}
	recon := NewReconciler(store, WithClock(f.clock))
	res, err := recon.ReconcileExpiredSuspensions(f.ctx)
	if err != nil {
		t.Fatalf("sweep: %v", err)
	}
	if res.Reactivated != 0 || res.Skipped != 1 {
		t.Fatalf("expected a skipped candidate, got %+v", res)
	}
	got, _ := f.status.Get(f.ctx, acc.ID)
	if got.Status != StatusDisabled {
		t.Fatalf("reconciler overwrote a newer admin decision: %s", got.Status)
	}
}

type racingAccounts struct {
	AccountStore
	before func()
}

func (r racingAccounts) ReactivateExpiredSuspension(ctx context.Context, id string, now time.Time) (bool, error) {
	r.before()
	return r.AccountStore.ReactivateExpiredSuspension(ctx, id, now)
}

// competingAccounts lets another sweeper win the first n conditional writes.
type competingAccounts struct {
	AccountStore
	mu   *sync.Mutex
	lost *int
	n    int
}

func (c competingAccounts) ReactivateExpiredSuspension(ctx context.Context, id string, now time.Time) (bool, error) {
	c.mu.Lock()
	defer c.mu.Unlock()
	if *c.lost < c.n {
		*c.lost++
		if _, err := c.AccountStore.ReactivateExpiredSuspension(ctx, id, now); err != nil {
			return false, err
		}
		return false, nil
	}
	return c.AccountStore.ReactivateExpiredSuspension(ctx, id, now)
}

func TestReconcileContinuesPastPageTakenByCompetitor(t *testing.T) {
	f := newFixture(t)
	var ids []string
	for _, email := range []string{"a@x.io", "b@x.io", "c@x.io", "d@x.io"} {
		acc := f.active(t, email, RoleAnalyst)
		suspendFor(t, f, acc, time.Minute)
		ids = append(ids, acc.ID)
	}
	f.clock.Advance(time.Minute)

	lost := 0
	store := competingAccounts{AccountStore: f.store.Accounts(), mu: &sync.Mutex{}, lost: &lost, n: 2}
	recon := NewReconciler(store, WithClock(f.clock), WithSweepBatch(2))
	res, err := recon.ReconcileExpiredSuspensions(f.ctx)
	if err != nil {
		t.Fatalf("sweep: %v", err)
	}
	if res.Reactivated != 2 || res.Skipped != 2 {
		t.Fatalf("expected two reactivated and two skipped, got %+v", res)
	}
	for _, id := range ids {
		got, _ := f.status.Get(f.ctx, id)
		if got.Status != StatusActive {
			t.Fatalf("account %s left %s behind a full page", id, got.Status)
		}
	}
}

// stuckAccounts lists the same candidates forever and never writes them.
type stuckAccounts struct {
	AccountStore
	ids []string
}

func (s stuckAccounts) ListExpiredSuspensions(context.Context, time.Time, int) ([]string, error) {
	return s.ids, nil
}

func (s stuckAccounts) ReactivateExpiredSuspension(context.Context, string, time.Time) (bool, error) {
	return false, nil
}

func TestReconcileStopsWhenListingDoesNotMove(t *testing.T) {
	f := newFixture(t)
	store := stuckAccounts{AccountStore: f.store.Accounts(), ids: []string{"x", "y"}}
	recon := NewReconciler(store, WithClock(f.clock), WithSweepBatch(2))
	res, err := recon.ReconcileExpiredSuspensions(f.ctx)
	if err != nil {
		t.Fatalf("sweep: %v", err)
	}
	if res.Reactivated != 0 || res.Skipped != 4 {
		t.Fatalf("expected one repeat page before stopping, got %+v", res)
	}
}

func TestReconcileListFailureIsInfrastructure(t *testing.T) {
	f := newFixture(t)
	recon := NewReconciler(flakyAccounts{AccountStore: f.store.Accounts(), failList: true}, WithClock(f.clock))
	if _, err := recon.ReconcileExpiredSuspensions(f.ctx); !errors.Is(err, ErrInfrastructure) || !errors.Is(err, errBoom) {
		t.Fatalf("expected wrapped infrastructure error, got %v", err)
	}
}

func TestJustInTimeReconcileOnCheckUsable(t *testing.T) {
	f := newFixture(t)
	acc := f.active(t, "a@example.com", RoleAnalyst)
	suspendFor(t, f, acc, time.Minute)
	f.clock.Advance(2 * time.Minute)

	stale, _ := f.status.Get(f.ctx, acc.ID)
	usable, fresh, err := f.status.CheckUsable(f.ctx, stale)
	if err != nil {
		t.Fatalf("check usable: %v", err)
	}
	if !usable || fresh.Status != StatusActive {
		t.Fatalf("expected just-in-time reactivation, got usable=%v %+v", usable, fresh)
	}
	stored, _ := f.status.Get(f.ctx, acc.ID)
	if stored.Status != StatusActive || stored.SuspensionExpiresAt != nil {
		t.Fatalf("reactivation not written back: %+v", stored)
	}
}
