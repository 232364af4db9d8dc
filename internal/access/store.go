package access

import (
	"context"
	"time"
)

// Store describes persistence operations required by the access core.
type Store interface {
	Accounts() AccountStore
	Grants() GrantStore
}

// AccountStore manages account rows.
type AccountStore interface {
	Create(ctx context.Context, acc Account) (Account, error)
	Get(ctx context.Context, id string) (Account, error)
	FindByExternalRef(ctx context.Context, ref string) (Account, error)
	// FindByEmail matches the stored email exactly.
	FindByEmail(ctx context.Context, email string) (Account, error)
	// FindByEmailFold matches ignoring case and surrounding whitespace.
	FindByEmailFold(ctx context.Context, email string) (Account, error)

	// Update is an atomic read-modify-write of one row. fn sees the current
	// row and mutates it in place; returning an error aborts the write.
	Update(ctx context.Context, id string, fn func(*Account) error) (Account, error)

	// ReactivateExpiredSuspension sets the row ACTIVE only if it is still
	// SUSPENDED with an expiry at or before now, and zeroes the failed login
	// count. It reports whether the row was written.
	ReactivateExpiredSuspension(ctx context.Context, id string, now time.Time) (bool, error)
	// ReleaseExpiredLock sets the row ACTIVE only if it is still LOCKED with
	// a lock expiry at or before now.
	ReleaseExpiredLock(ctx context.Context, id string, now time.Time) (bool, error)

	ListExpiredSuspensions(ctx context.Context, now time.Time, limit int) ([]string, error)
	ListExpiredLocks(ctx context.Context, now time.Time, limit int) ([]string, error)
}

// GrantStore manages dashboard and access-point grants.
type GrantStore interface {
	UpsertDashboardGrant(ctx context.Context, g DashboardGrant) (DashboardGrant, error)
	HasActiveDashboard(ctx context.Context, accountID string, d DashboardType) (bool, error)
	ActiveDashboards(ctx context.Context, accountID string) ([]DashboardType, error)
	SetDashboardGrantActive(ctx context.Context, accountID string, d DashboardType, active bool) error

	UpsertAccessPointGrant(ctx context.Context, g AccessPointGrant) (AccessPointGrant, error)
	ActiveAccessPoints(ctx context.Context, accountID string, d DashboardType) ([]AccessPointGrant, error)
	SetAccessPointActive(ctx context.Context, accountID string, d DashboardType, g AccessPointGroup, active bool) error
}
