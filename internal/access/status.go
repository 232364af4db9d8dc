package access

import (
	"context"
	"fmt"
	"strings"
	"time"

	"dispatchdesk.io/internal/ids"
)

// NewAccount is the input to StatusService.Create.
type NewAccount struct {
	ExternalRef string
	Email       string
	Role        Role
}

// StatusChange is an administrative status transition request.
type StatusChange struct {
	AccountID string
	Status    Status
	Reason    string
	Temporary bool
	ExpiresAt *time.Time
	Actor     string
}

// StatusService owns the account lifecycle state machine.
type StatusService struct {
	accounts   AccountStore
	reconciler *Reconciler
	settings
}

// NewStatusService returns a StatusService over accounts. The just-in-time
// reconciliation in CheckUsable shares the same options.
func NewStatusService(accounts AccountStore, opts ...Option) *StatusService {
	return &StatusService{
		accounts:   accounts,
		reconciler: NewReconciler(accounts, opts...),
		settings:   newSettings(opts),
	}
}

// IsUsable reports whether acc may act at now: effectively ACTIVE, no lock
// in force and not soft-deleted.
func IsUsable(acc Account, now time.Time) bool {
	if acc.DeletedAt != nil {
		return false
	}
	if acc.LockedAt(now) {
		return false
	}
	return acc.EffectiveStatus(now) == StatusActive
}

// CheckUsable applies any due expiry to acc before evaluating IsUsable. The
// returned account reflects the reconciled row.
func (s *StatusService) CheckUsable(ctx context.Context, acc Account) (bool, Account, error) {
	fresh, err := s.reconciler.ReconcileAccount(ctx, acc)
	if err != nil {
		return false, acc, err
	}
	return IsUsable(fresh, s.clock.Now()), fresh, nil
}

// Get returns the account with id.
func (s *StatusService) Get(ctx context.Context, id string) (Account, error) {
	acc, err := s.accounts.Get(ctx, strings.TrimSpace(id))
	if err != nil {
		return Account{}, infra("get account", err)
	}
	return acc, nil
}

// Create registers a new account in PENDING_ACTIVATION.
func (s *StatusService) Create(ctx context.Context, in NewAccount) (Account, error) {
	email := NormalizeEmail(in.Email)
	if email == "" || !strings.Contains(email, "@") {
		return Account{}, fmt.Errorf("%w: email is required", ErrInvalidConstraint)
	}
	role := in.Role
	if role == "" {
		return Account{}, fmt.Errorf("%w: role is required", ErrInvalidConstraint)
	}
	if !role.Valid() {
		return Account{}, fmt.Errorf("%w: unknown role %q", ErrInvalidConstraint, role)
	}
	now := s.clock.Now()
	acc := Account{
		ID:          ids.NewAt(now),
		Email:       email,
		PrimaryRole: role,
		Status:      StatusPendingActivation,
		CreatedAt:   now,
		UpdatedAt:   now,
	}
	if ref := strings.TrimSpace(in.ExternalRef); ref != "" {
		acc.ExternalRef = &ref
	}
	created, err := s.accounts.Create(ctx, acc)
	if err != nil {
		return Account{}, infra("create account", err)
	}
	return created, nil
}

// Activate moves a pending account to ACTIVE on behalf of approverID.
func (s *StatusService) Activate(ctx context.Context, accountID, approverID string) (Account, error) {
	now := s.clock.Now()
	approverID = strings.TrimSpace(approverID)
	var events []TransitionEvent
	acc, err := s.accounts.Update(ctx, accountID, func(a *Account) error {
		events = events[:0]
		if a.Status != StatusPendingActivation {
			return fmt.Errorf("%w: cannot activate account in %s", ErrIllegalTransition, a.Status)
		}
		a.Status = StatusActive
		a.StatusReason = nil
		a.SuspensionExpiresAt = nil
		a.ActivatedAt = timePtr(now)
		if approverID != "" {
			a.ActivatedBy = stringPtr(approverID)
		}
		a.UpdatedAt = now
		events = append(events, TransitionEvent{
			AccountID: a.ID, From: StatusPendingActivation, To: StatusActive,
			Actor: approverID, Cause: CauseAdmin, At: now,
		})
		return nil
	})
	if err != nil {
		return Account{}, infra("activate account", err)
	}
	s.emit(ctx, events)
	return acc, nil
}

var legalTransitions = map[Status]map[Status]bool{
	StatusActive:    {StatusSuspended: true, StatusDisabled: true},
	StatusSuspended: {StatusActive: true},
	StatusDisabled:  {StatusActive: true},
	StatusLocked:    {StatusActive: true},
}

// ChangeStatus applies an administrative transition as one atomic row update.
func (s *StatusService) ChangeStatus(ctx context.Context, ch StatusChange) (Account, error) {
	if !ch.Status.Valid() {
		return Account{}, fmt.Errorf("%w: unknown status %q", ErrInvalidConstraint, ch.Status)
	}
	now := s.clock.Now()
	if ch.Temporary {
		if ch.Status != StatusSuspended {
			return Account{}, fmt.Errorf("%w: only suspensions can be temporary", ErrInvalidConstraint)
		}
		if ch.ExpiresAt == nil {
			return Account{}, fmt.Errorf("%w: temporary suspension requires an expiry", ErrInvalidConstraint)
		}
		if !ch.ExpiresAt.After(now) {
			return Account{}, fmt.Errorf("%w: expiry must be in the future", ErrInvalidConstraint)
		}
	} else if ch.ExpiresAt != nil {
		return Account{}, fmt.Errorf("%w: expiry is only valid for temporary suspensions", ErrInvalidConstraint)
	}
	reason := strings.TrimSpace(ch.Reason)
	actor := strings.TrimSpace(ch.Actor)

	var events []TransitionEvent
	acc, err := s.accounts.Update(ctx, ch.AccountID, func(a *Account) error {
		events = events[:0]
		current := a.EffectiveStatus(now)
		if !legalTransitions[current][ch.Status] {
			return fmt.Errorf("%w: %s to %s", ErrIllegalTransition, current, ch.Status)
		}
		if current == StatusActive && reason == "" {
			return fmt.Errorf("%w: reason is required when leaving %s", ErrIllegalTransition, StatusActive)
		}

		from := a.Status
		if ch.Status == StatusActive || a.Status == StatusLocked || a.LockExpired(now) {
			a.AccountLockedUntil = nil
			a.FailedLoginAttempts = 0
		}
		a.Status = ch.Status
		a.SuspensionExpiresAt = nil
		if ch.Temporary {
			a.SuspensionExpiresAt = timePtr(ch.ExpiresAt.UTC())
		}
		if reason != "" {
			a.StatusReason = stringPtr(reason)
		} else {
			a.StatusReason = nil
		}
		a.UpdatedAt = now
		events = append(events, TransitionEvent{
			AccountID: a.ID, From: from, To: a.Status, Reason: reason,
			Actor: actor, Cause: CauseAdmin, At: now,
		})
		return nil
	})
	if err != nil {
		return Account{}, infra("change status", err)
	}
	s.emit(ctx, events)
	return acc, nil
}

// RecordFailedLogin counts one failed authentication. The increment and the
// threshold check share one atomic update so concurrent failures lock the
// account exactly once. Accounts that are not active only accumulate the
// count.
func (s *StatusService) RecordFailedLogin(ctx context.Context, accountID string) (Account, error) {
	now := s.clock.Now()
	var events []TransitionEvent
	acc, err := s.accounts.Update(ctx, accountID, func(a *Account) error {
		events = events[:0]
		if a.AccountLockedUntil != nil && !a.LockedAt(now) {
			if a.Status == StatusLocked {
				a.Status = StatusActive
				events = append(events, TransitionEvent{
					AccountID: a.ID, From: StatusLocked, To: StatusActive, Cause: CauseLogin, At: now,
				})
			}
			a.AccountLockedUntil = nil
			a.FailedLoginAttempts = 0
		}
		a.FailedLoginAttempts++
		if a.Status == StatusActive && a.FailedLoginAttempts >= s.lockoutThreshold {
			a.Status = StatusLocked
			a.AccountLockedUntil = timePtr(now.Add(s.lockoutDuration))
			events = append(events, TransitionEvent{
				AccountID: a.ID, From: StatusActive, To: StatusLocked,
				Reason: "too many failed login attempts", Cause: CauseLogin, At: now,
			})
		}
		a.UpdatedAt = now
		return nil
	})
	if err != nil {
		return Account{}, infra("record failed login", err)
	}
	s.emit(ctx, events)
	return acc, nil
}

// RecordSuccessfulLogin resets the failure counter and clears any lock.
func (s *StatusService) RecordSuccessfulLogin(ctx context.Context, accountID string) (Account, error) {
	now := s.clock.Now()
	var events []TransitionEvent
	acc, err := s.accounts.Update(ctx, accountID, func(a *Account) error {
		events = events[:0]
		if a.Status == StatusLocked {
			a.Status = StatusActive
			events = append(events, TransitionEvent{
				AccountID: a.ID, From: StatusLocked, To: StatusActive, Cause: CauseLogin, At: now,
			})
		}
		a.AccountLockedUntil = nil
		a.FailedLoginAttempts = 0
		a.LastLoginAt = timePtr(now)
		a.UpdatedAt = now
		return nil
	})
	if err != nil {
		return Account{}, infra("record successful login", err)
	}
	s.emit(ctx, events)
	return acc, nil
}

// SetPrimaryRole replaces the account's role tag.
func (s *StatusService) SetPrimaryRole(ctx context.Context, accountID string, role Role) (Account, error) {
	if !role.Valid() {
		return Account{}, fmt.Errorf("%w: unknown role %q", ErrInvalidConstraint, role)
	}
	now := s.clock.Now()
	acc, err := s.accounts.Update(ctx, accountID, func(a *Account) error {
		a.PrimaryRole = role
		a.UpdatedAt = now
		return nil
	})
	if err != nil {
		return Account{}, infra("set primary role", err)
	}
	return acc, nil
}

func (s *StatusService) emit(ctx context.Context, events []TransitionEvent) {
	for _, ev := range events {
		s.observer.ObserveTransition(ctx, ev)
	}
}
