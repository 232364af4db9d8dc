package access

import (
	"context"
	"fmt"
	"strings"
)

// Index answers dashboard and access-point grant questions and maintains
// the grant rows.
type Index struct {
	grants GrantStore
	settings
}

// NewIndex returns an Index over grants.
func NewIndex(grants GrantStore, opts ...Option) *Index {
	return &Index{grants: grants, settings: newSettings(opts)}
}

// HasAccess reports whether an active dashboard grant exists.
func (x *Index) HasAccess(ctx context.Context, accountID string, d DashboardType) (bool, error) {
	ok, err := x.grants.HasActiveDashboard(ctx, accountID, d)
	if err != nil {
		return false, infra("has access", err)
	}
	return ok, nil
}

// ListAccess returns every dashboard with an active grant, sorted.
func (x *Index) ListAccess(ctx context.Context, accountID string) ([]DashboardType, error) {
	ds, err := x.grants.ActiveDashboards(ctx, accountID)
	if err != nil {
		return nil, infra("list access", err)
	}
	sortDashboards(ds)
	return ds, nil
}

// CanSeeLanding reports whether the account holds any active dashboard grant.
func (x *Index) CanSeeLanding(ctx context.Context, accountID string) (bool, error) {
	ds, err := x.ListAccess(ctx, accountID)
	if err != nil {
		return false, err
	}
	return len(ds) > 0, nil
}

// ListAccessPoints returns the active access-point grants on d.
func (x *Index) ListAccessPoints(ctx context.Context, accountID string, d DashboardType) ([]AccessPointGrant, error) {
	gs, err := x.grants.ActiveAccessPoints(ctx, accountID, d)
	if err != nil {
		return nil, infra("list access points", err)
	}
	return gs, nil
}

// GrantDashboard creates or replaces the dashboard grant for (account, d).
func (x *Index) GrantDashboard(ctx context.Context, g DashboardGrant) (DashboardGrant, error) {
	g.AccountID = strings.TrimSpace(g.AccountID)
	if g.AccountID == "" {
		return DashboardGrant{}, fmt.Errorf("%w: account is required", ErrInvalidConstraint)
	}
	if !g.Dashboard.Valid() {
		return DashboardGrant{}, fmt.Errorf("%w: unknown dashboard %q", ErrInvalidConstraint, g.Dashboard)
	}
	if g.GrantedAt.IsZero() {
		g.GrantedAt = x.clock.Now()
	}
	out, err := x.grants.UpsertDashboardGrant(ctx, g)
	if err != nil {
		return DashboardGrant{}, infra("grant dashboard", err)
	}
	return out, nil
}

// SetDashboardActive toggles an existing dashboard grant.
func (x *Index) SetDashboardActive(ctx context.Context, accountID string, d DashboardType, active bool) error {
	if err := x.grants.SetDashboardGrantActive(ctx, accountID, d, active); err != nil {
		return infra("set dashboard active", err)
	}
	return nil
}

// GrantAccessPoint creates or replaces the access-point grant for
// (account, dashboard, group).
func (x *Index) GrantAccessPoint(ctx context.Context, g AccessPointGrant) (AccessPointGrant, error) {
	g.AccountID = strings.TrimSpace(g.AccountID)
	if g.AccountID == "" {
		return AccessPointGrant{}, fmt.Errorf("%w: account is required", ErrInvalidConstraint)
	}
	if !g.Dashboard.Valid() {
		return AccessPointGrant{}, fmt.Errorf("%w: unknown dashboard %q", ErrInvalidConstraint, g.Dashboard)
	}
	if !ValidGroup(g.Dashboard, g.Group) {
		return AccessPointGrant{}, fmt.Errorf("%w: group %q does not belong to %s", ErrInvalidConstraint, g.Group, g.Dashboard)
	}
	seen := make(map[ActionType]struct{}, len(g.AllowedActions))
	actions := make([]ActionType, 0, len(g.AllowedActions))
	for _, a := range g.AllowedActions {
		if !a.Valid() {
			return AccessPointGrant{}, fmt.Errorf("%w: unknown action %q", ErrInvalidConstraint, a)
		}
		if _, dup := seen[a]; dup {
			continue
		}
		seen[a] = struct{}{}
		actions = append(actions, a)
	}
	g.AllowedActions = actions
	if g.GrantedAt.IsZero() {
		g.GrantedAt = x.clock.Now()
	}
	out, err := x.grants.UpsertAccessPointGrant(ctx, g)
	if err != nil {
		return AccessPointGrant{}, infra("grant access point", err)
	}
	return out, nil
}

// SetAccessPointActive toggles an existing access-point grant.
func (x *Index) SetAccessPointActive(ctx context.Context, accountID string, d DashboardType, g AccessPointGroup, active bool) error {
	if err := x.grants.SetAccessPointActive(ctx, accountID, d, g, active); err != nil {
		return infra("set access point active", err)
	}
	return nil
}
