package access

import (
	"testing"
	"time"
)

func TestCancelGrantAllowsCancelOnly(t *testing.T) {
	f := newFixture(t)
	acc := f.active(t, "agent@example.com", RoleSupportAgent)
	f.grant(t, acc.ID, DashboardOrdersFood, GroupOrderCancelAssign, map[string]string{}, ActionCancel)
	id := Identity{Email: "agent@example.com"}

	if !f.engine.CanPerform(f.ctx, id, Query{Dashboard: DashboardOrdersFood, Action: ActionCancel}) {
		t.Fatalf("expected CANCEL allowed")
	}
	res := f.engine.Decide(f.ctx, id, Query{Dashboard: DashboardOrdersFood, Action: ActionRefund})
	if res.Allowed() || res.Reason != ReasonNoMatchingGrant {
		t.Fatalf("expected REFUND denied with no matching grant, got %+v", res)
	}
}

func TestTicketGrantsScopedByContext(t *testing.T) {
	f := newFixture(t)
	acc := f.active(t, "agent@example.com", RoleSupportAgent)
	f.grant(t, acc.ID, DashboardTickets, GroupTicketRideView, map[string]string{ContextTicketCategory: "RIDER"}, ActionView)
	f.grant(t, acc.ID, DashboardTickets, GroupTicketShopView, map[string]string{ContextTicketCategory: "MERCHANT"}, ActionView)
	id := Identity{Email: "agent@example.com"}

	rider := f.engine.Decide(f.ctx, id, Query{Dashboard: DashboardTickets, Action: ActionView, Context: map[string]string{ContextTicketCategory: "RIDER"}})
	if !rider.Allowed() || rider.Group != GroupTicketRideView {
		t.Fatalf("expected RIDER view allowed via ride group, got %+v", rider)
	}
	if f.engine.CanPerform(f.ctx, id, Query{Dashboard: DashboardTickets, Action: ActionView, Context: map[string]string{ContextTicketCategory: "CUSTOMER"}}) {
		t.Fatalf("expected CUSTOMER view denied")
	}
	if f.engine.CanPerform(f.ctx, id, Query{Dashboard: DashboardTickets, Action: ActionView}) {
		t.Fatalf("scoped grants must not match a query without context")
	}
}

func TestNonActiveAccountsAreDeniedRegardlessOfGrants(t *testing.T) {
	f := newFixture(t)
	mk := func(email string) Account {
		acc := f.active(t, email, RoleSuperAdmin)
		f.grant(t, acc.ID, DashboardPayments, GroupPaymentView, nil, ActionView)
		return acc
	}
	suspended := mk("s@example.com")
	f.status.ChangeStatus(f.ctx, StatusChange{AccountID: suspended.ID, Status: StatusSuspended, Reason: "x"})
	disabled := mk("d@example.com")
	f.status.ChangeStatus(f.ctx, StatusChange{AccountID: disabled.ID, Status: StatusDisabled, Reason: "x"})
	locked := mk("l@example.com")
	for i := 0; i < 5; i++ {
		f.status.RecordFailedLogin(f.ctx, locked.ID)
	}
	f.status.Create(f.ctx, NewAccount{Email: "p@example.com", Role: RoleSuperAdmin})

	q := Query{Dashboard: DashboardPayments, Action: ActionView}
	for _, email := range []string{"s@example.com", "d@example.com", "l@example.com", "p@example.com"} {
		res := f.engine.Decide(f.ctx, Identity{Email: email}, q)
		if res.Allowed() || res.Reason != ReasonAccountUnusable {
			t.Fatalf("%s: expected account unusable deny, got %+v", email, res)
		}
	}
}

func TestExpiredLockReadsAsActive(t *testing.T) {
	f := newFixture(t)
	acc := f.active(t, "a@example.com", RoleAnalyst)
	f.grant(t, acc.ID, DashboardAnalytics, GroupAnalyticsReports, nil, ActionView)
	for i := 0; i < 5; i++ {
		f.status.RecordFailedLogin(f.ctx, acc.ID)
	}
	q := Query{Dashboard: DashboardAnalytics, Action: ActionView}
	id := Identity{Email: "a@example.com"}
	if f.engine.CanPerform(f.ctx, id, q) {
		t.Fatalf("locked account must be denied")
	}
	f.clock.Advance(time.Hour)
	if !f.engine.CanPerform(f.ctx, id, q) {
		t.Fatalf("expired lock must allow")
	}
}

func TestExpiredSuspensionAllowsJustInTime(t *testing.T) {
	f := newFixture(t)
	acc := f.active(t, "a@example.com", RoleAnalyst)
	f.grant(t, acc.ID, DashboardAnalytics, GroupAnalyticsExport, nil, ActionExport)
	exp := f.clock.Now().Add(30 * time.Minute)
	f.status.ChangeStatus(f.ctx, StatusChange{AccountID: acc.ID, Status: StatusSuspended, Reason: "x", Temporary: true, ExpiresAt: &exp})
	q := Query{Dashboard: DashboardAnalytics, Action: ActionExport}
	id := Identity{Email: "a@example.com"}
	if f.engine.CanPerform(f.ctx, id, q) {
		t.Fatalf("suspended account must be denied")
	}
	f.clock.Advance(30 * time.Minute)
	if !f.engine.CanPerform(f.ctx, id, q) {
		t.Fatalf("expired suspension must allow without waiting for a sweep")
	}
}

func TestSuperAdminBypassesGrants(t *testing.T) {
	f := newFixture(t)
	f.active(t, "root@example.com", RoleSuperAdmin)
	id := Identity{Email: "root@example.com"}
	for _, d := range Dashboards() {
		for a := range actions {
			res := f.engine.Decide(f.ctx, id, Query{Dashboard: d, Action: a})
			if !res.Allowed() || res.Reason != ReasonSuperAdmin {
				t.Fatalf("super admin denied %s/%s: %+v", d, a, res)
			}
		}
	}
	vis, err := f.engine.VisibleDashboards(f.ctx, id)
	if err != nil || len(vis) != len(Dashboards()) {
		t.Fatalf("super admin should see every dashboard, got %v %v", vis, err)
	}
}

func TestDashboardGrantGatesAccessPoints(t *testing.T) {
	f := newFixture(t)
	acc := f.active(t, "a@example.com", RoleFinance)
	f.grant(t, acc.ID, DashboardPayments, GroupPaymentPayouts, nil, ActionApprove)
	if err := f.index.SetDashboardActive(f.ctx, acc.ID, DashboardPayments, false); err != nil {
		t.Fatalf("deactivate: %v", err)
	}
	res := f.engine.Decide(f.ctx, Identity{Email: "a@example.com"}, Query{Dashboard: DashboardPayments, Action: ActionApprove})
	if res.Allowed() || res.Reason != ReasonNoDashboardAccess {
		t.Fatalf("expected no dashboard access, got %+v", res)
	}
}

func TestInactiveAccessPointIgnored(t *testing.T) {
	f := newFixture(t)
	acc := f.active(t, "a@example.com", RoleFinance)
	f.grant(t, acc.ID, DashboardPayments, GroupPaymentPayouts, nil, ActionApprove)
	f.index.SetAccessPointActive(f.ctx, acc.ID, DashboardPayments, GroupPaymentPayouts, false)
	if f.engine.CanPerform(f.ctx, Identity{Email: "a@example.com"}, Query{Dashboard: DashboardPayments, Action: ActionApprove}) {
		t.Fatalf("inactive access point must not allow")
	}
}

func TestDecideRejectsInvalidQuery(t *testing.T) {
	f := newFixture(t)
	f.active(t, "root@example.com", RoleSuperAdmin)
	id := Identity{Email: "root@example.com"}
	for _, q := range []Query{{Dashboard: "WAREHOUSE", Action: ActionView}, {Dashboard: DashboardRiders, Action: "FLY"}} {
		res := f.engine.Decide(f.ctx, id, q)
		if res.Allowed() || res.Reason != ReasonInvalidQuery {
			t.Fatalf("expected invalid query deny for %+v, got %+v", q, res)
		}
	}
}

func TestUnknownCallerDenied(t *testing.T) {
	f := newFixture(t)
	res := f.engine.Decide(f.ctx, Identity{Email: "ghost@example.com"}, Query{Dashboard: DashboardRiders, Action: ActionView})
	if res.Allowed() || res.Reason != ReasonAccountNotFound {
		t.Fatalf("expected account not found, got %+v", res)
	}
	vis, err := f.engine.VisibleDashboards(f.ctx, Identity{Email: "ghost@example.com"})
	if err != nil || len(vis) != 0 {
		t.Fatalf("unknown caller sees nothing, got %v %v", vis, err)
	}
}

func TestDecideFailsClosedOnStorageErrors(t *testing.T) {
	f := newFixture(t)
	acc := f.active(t, "a@example.com", RoleAnalyst)
	f.grant(t, acc.ID, DashboardAnalytics, GroupAnalyticsReports, nil, ActionView)
	q := Query{Dashboard: DashboardAnalytics, Action: ActionView}
	id := Identity{Email: "a@example.com"}
	opts := []Option{WithClock(f.clock), WithObserver(f.rec)}

	engines := map[string]*Engine{
		"resolve": NewEngine(NewResolver(flakyAccounts{AccountStore: f.store.Accounts(), failEmail: true}), f.status, f.index, opts...),
		"has access": NewEngine(NewResolver(f.store.Accounts()), f.status,
			NewIndex(flakyGrants{GrantStore: f.store.Grants(), failHas: true}, opts...), opts...),
		"access points": NewEngine(NewResolver(f.store.Accounts()), f.status,
			NewIndex(flakyGrants{GrantStore: f.store.Grants(), failPoints: true}, opts...), opts...),
	}
	for name, e := range engines {
		res := e.Decide(f.ctx, id, q)
		if res.Allowed() || res.Reason != ReasonError {
			t.Fatalf("%s: expected error deny, got %+v", name, res)
		}
	}
}

func TestDecideFailsClosedWhenReconcileFails(t *testing.T) {
	f := newFixture(t)
	acc := f.active(t, "a@example.com", RoleAnalyst)
	f.grant(t, acc.ID, DashboardAnalytics, GroupAnalyticsReports, nil, ActionView)
	exp := f.clock.Now().Add(time.Minute)
	f.status.ChangeStatus(f.ctx, StatusChange{AccountID: acc.ID, Status: StatusSuspended, Reason: "x", Temporary: true, ExpiresAt: &exp})
	f.clock.Advance(time.Minute)

	flaky := flakyAccounts{AccountStore: f.store.Accounts(), failGet: true}
	status := NewStatusService(flaky, WithClock(f.clock))
	e := NewEngine(NewResolver(f.store.Accounts()), status, f.index, WithClock(f.clock))
	res := e.Decide(f.ctx, Identity{Email: "a@example.com"}, Query{Dashboard: DashboardAnalytics, Action: ActionView})
	if res.Allowed() || res.Reason != ReasonError {
		t.Fatalf("expected error deny, got %+v", res)
	}
}

func TestDecisionsAreObserved(t *testing.T) {
	f := newFixture(t)
	f.active(t, "a@example.com", RoleAnalyst)
	f.engine.Decide(f.ctx, Identity{Email: "A@example.com"}, Query{Dashboard: DashboardRiders, Action: ActionView, ResourceType: "rider"})
	evs := f.rec.Decisions()
	if len(evs) != 1 {
		t.Fatalf("expected one decision event, got %d", len(evs))
	}
	ev := evs[0]
	if ev.Decision != Deny || ev.Reason != ReasonNoDashboardAccess || ev.ResourceType != "rider" || ev.Email != "a@example.com" {
		t.Fatalf("unexpected decision event: %+v", ev)
	}
}

func TestVisibleDashboardsFollowsGrants(t *testing.T) {
	f := newFixture(t)
	acc := f.active(t, "a@example.com", RoleOperationsManager)
	f.grant(t, acc.ID, DashboardRiders, GroupRiderProfile, nil, ActionView)
	f.grant(t, acc.ID, DashboardMerchants, GroupMerchantProfile, nil, ActionView)
	id := Identity{Email: "a@example.com"}
	vis, err := f.engine.VisibleDashboards(f.ctx, id)
	if err != nil {
		t.Fatalf("visible: %v", err)
	}
	if len(vis) != 2 || vis[0] != DashboardMerchants || vis[1] != DashboardRiders {
		t.Fatalf("unexpected dashboards: %v", vis)
	}
	f.status.ChangeStatus(f.ctx, StatusChange{AccountID: acc.ID, Status: StatusDisabled, Reason: "x"})
	vis, _ = f.engine.VisibleDashboards(f.ctx, id)
	if len(vis) != 0 {
		t.Fatalf("unusable account must see nothing, got %v", vis)
	}
}
