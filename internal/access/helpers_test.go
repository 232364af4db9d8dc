package access

import (
	"context"
	"errors"
	"sync"
	"testing"
	"time"

	"dispatchdesk.io/internal/clock"
)

var epoch = time.Date(2026, 3, 1, 9, 0, 0, 0, time.UTC)

type recorder struct {
	mu          sync.Mutex
	decisions   []DecisionEvent
	transitions []TransitionEvent
}

func (r *recorder) ObserveDecision(_ context.Context, ev DecisionEvent) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.decisions = append(r.decisions, ev)
}

func (r *recorder) ObserveTransition(_ context.Context, ev TransitionEvent) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.transitions = append(r.transitions, ev)
}

func (r *recorder) Transitions() []TransitionEvent {
	r.mu.Lock()
	defer r.mu.Unlock()
	return append([]TransitionEvent(nil), r.transitions...)
}

func (r *recorder) Decisions() []DecisionEvent {
	r.mu.Lock()
	defer r.mu.Unlock()
	return append([]DecisionEvent(nil), r.decisions...)
}

type fixture struct {
	ctx    context.Context
	clock  *clock.Fake
	store  *Memory
	rec    *recorder
	status *StatusService
	index  *Index
	engine *Engine
	recon  *Reconciler
}

func newFixture(t *testing.T) *fixture {
	t.Helper()
	f := &fixture{
		ctx:   context.Background(),
		clock: clock.NewFake(epoch),
		store: NewMemory(),
		rec:   &recorder{},
	}
	opts := []Option{WithClock(f.clock), WithObserver(f.rec)}
	f.status = NewStatusService(f.store.Accounts(), opts...)
	f.index = NewIndex(f.store.Grants(), opts...)
	f.recon = NewReconciler(f.store.Accounts(), opts...)
	f.engine = NewEngine(NewResolver(f.store.Accounts()), f.status, f.index, opts...)
	return f
}

// active creates an account and activates it.
func (f *fixture) active(t *testing.T, email string, role Role) Account {
	t.Helper()
	acc, err := f.status.Create(f.ctx, NewAccount{Email: email, Role: role})
	if err != nil {
		t.Fatalf("create %s: %v", email, err)
	}
	acc, err = f.status.Activate(f.ctx, acc.ID, "approver")
	if err != nil {
		t.Fatalf("activate %s: %v", email, err)
	}
	return acc
}

func (f *fixture) grant(t *testing.T, accountID string, d DashboardType, g AccessPointGroup, ctx map[string]string, actions ...ActionType) {
	t.Helper()
	if _, err := f.index.GrantDashboard(f.ctx, DashboardGrant{AccountID: accountID, Dashboard: d, AccessLevel: "standard", IsActive: true}); err != nil {
		t.Fatalf("grant dashboard: %v", err)
	}
	if _, err := f.index.GrantAccessPoint(f.ctx, AccessPointGrant{
		AccountID: accountID, Dashboard: d, Group: g, AllowedActions: actions, Context: ctx, IsActive: true,
	}); err != nil {
		t.Fatalf("grant access point: %v", err)
	}
}

var errBoom = errors.New("connection reset")

// flakyAccounts fails selected operations with errBoom.
type flakyAccounts struct {
	AccountStore
	failGet, failRef, failEmail, failFold, failList bool
}

func (f flakyAccounts) Get(ctx context.Context, id string) (Account, error) {
	if f.failGet {
		return Account{}, errBoom
	}
	return f.AccountStore.Get(ctx, id)
}

func (f flakyAccounts) FindByExternalRef(ctx context.Context, ref string) (Account, error) {
	if f.failRef {
		return Account{}, errBoom
	}
	return f.AccountStore.FindByExternalRef(ctx, ref)
}

func (f flakyAccounts) FindByEmail(ctx context.Context, email string) (Account, error) {
	if f.failEmail {
		return Account{}, errBoom
	}
	return f.AccountStore.FindByEmail(ctx, email)
}

func (f flakyAccounts) FindByEmailFold(ctx context.Context, email string) (Account, error) {
	if f.failFold {
		return Account{}, errBoom
	}
	return f.AccountStore.FindByEmailFold(ctx, email)
}

func (f flakyAccounts) ListExpiredSuspensions(ctx context.Context, now time.Time, limit int) ([]string, error) {
	if f.failList {
		return nil, errBoom
	}
	return f.AccountStore.ListExpiredSuspensions(ctx, now, limit)
}

// flakyGrants fails every read with errBoom.
type flakyGrants struct {
	GrantStore
	failHas, failPoints bool
}

func (f flakyGrants) HasActiveDashboard(ctx context.Context, accountID string, d DashboardType) (bool, error) {
	if f.failHas {
		return false, errBoom
	}
	return f.GrantStore.HasActiveDashboard(ctx, accountID, d)
}

func (f flakyGrants) ActiveAccessPoints(ctx context.Context, accountID string, d DashboardType) ([]AccessPointGrant, error) {
	if f.failPoints {
		return nil, errBoom
	}
	return f.GrantStore.ActiveAccessPoints(ctx, accountID, d)
}
