package access

import (
	"context"
	"fmt"
	"strings"
)

// Admin wraps the mutating entry points with the acting account. No actor
// may change their own status, role, grants or lockout counter, super-admins
// included.
type Admin struct {
	status *StatusService
	index  *Index
}

// NewAdmin returns an Admin guarding status and index.
func NewAdmin(status *StatusService, index *Index) *Admin {
	return &Admin{status: status, index: index}
}

func checkActor(actorID, targetID string) error {
	actorID = strings.TrimSpace(actorID)
	if actorID == "" {
		return fmt.Errorf("%w: actor is required", ErrInvalidConstraint)
	}
	if actorID == strings.TrimSpace(targetID) {
		return ErrSelfModification
	}
	return nil
}

// Activate approves a pending account.
func (a *Admin) Activate(ctx context.Context, actorID, targetID string) (Account, error) {
	if err := checkActor(actorID, targetID); err != nil {
		return Account{}, err
	}
	return a.status.Activate(ctx, targetID, actorID)
}

// ChangeStatus applies ch on behalf of actorID.
func (a *Admin) ChangeStatus(ctx context.Context, actorID string, ch StatusChange) (Account, error) {
	if err := checkActor(actorID, ch.AccountID); err != nil {
		return Account{}, err
	}
	ch.Actor = actorID
	return a.status.ChangeStatus(ctx, ch)
}

// SetPrimaryRole changes the target's role on behalf of actorID.
func (a *Admin) SetPrimaryRole(ctx context.Context, actorID, targetID string, role Role) (Account, error) {
	if err := checkActor(actorID, targetID); err != nil {
		return Account{}, err
	}
	return a.status.SetPrimaryRole(ctx, targetID, role)
}

// RecordFailedLogin reports a failed login for another account.
func (a *Admin) RecordFailedLogin(ctx context.Context, actorID, targetID string) (Account, error) {
	if err := checkActor(actorID, targetID); err != nil {
		return Account{}, err
	}
	return a.status.RecordFailedLogin(ctx, targetID)
}

// RecordSuccessfulLogin reports a successful login for another account.
func (a *Admin) RecordSuccessfulLogin(ctx context.Context, actorID, targetID string) (Account, error) {
	if err := checkActor(actorID, targetID); err != nil {
		return Account{}, err
	}
	return a.status.RecordSuccessfulLogin(ctx, targetID)
}

// GrantDashboard upserts a dashboard grant for another account.
func (a *Admin) GrantDashboard(ctx context.Context, actorID string, g DashboardGrant) (DashboardGrant, error) {
	if err := checkActor(actorID, g.AccountID); err != nil {
		return DashboardGrant{}, err
	}
	g.GrantedBy = strings.TrimSpace(actorID)
	return a.index.GrantDashboard(ctx, g)
}

// GrantAccessPoint upserts an access-point grant for another account.
func (a *Admin) GrantAccessPoint(ctx context.Context, actorID string, g AccessPointGrant) (AccessPointGrant, error) {
	if err := checkActor(actorID, g.AccountID); err != nil {
		return AccessPointGrant{}, err
	}
	g.GrantedBy = strings.TrimSpace(actorID)
	return a.index.GrantAccessPoint(ctx, g)
}
