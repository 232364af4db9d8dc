package access

import (
	"strings"
	"time"
)

// Status is the lifecycle state of an operator account.
type Status string

const (
	StatusPendingActivation Status = "PENDING_ACTIVATION"
	StatusActive            Status = "ACTIVE"
	StatusSuspended         Status = "SUSPENDED"
	StatusDisabled          Status = "DISABLED"
	StatusLocked            Status = "LOCKED"
)

// Valid reports whether s is a known status.
func (s Status) Valid() bool {
	switch s {
	case StatusPendingActivation, StatusActive, StatusSuspended, StatusDisabled, StatusLocked:
		return true
	}
	return false
}

// Role is the primary role tag of an account. Only RoleSuperAdmin carries
// meaning for decisions; every other capability comes from grants.
type Role string

const (
	RoleSuperAdmin        Role = "SUPER_ADMIN"
	RoleAdmin             Role = "ADMIN"
	RoleOperationsManager Role = "OPERATIONS_MANAGER"
	RoleSupportAgent      Role = "SUPPORT_AGENT"
	RoleFinance           Role = "FINANCE"
	RoleAnalyst           Role = "ANALYST"
)

// Valid reports whether r is a known role.
func (r Role) Valid() bool {
	switch r {
	case RoleSuperAdmin, RoleAdmin, RoleOperationsManager, RoleSupportAgent, RoleFinance, RoleAnalyst:
		return true
	}
	return false
}

// Account is one human operator of the dashboard.
type Account struct {
	ID                  string     `json:"id"`
	ExternalRef         *string    `json:"external_ref,omitempty"`
	Email               string     `json:"email"`
	PrimaryRole         Role       `json:"primary_role"`
	Status              Status     `json:"status"`
	StatusReason        *string    `json:"status_reason,omitempty"`
	SuspensionExpiresAt *time.Time `json:"suspension_expires_at,omitempty"`
	FailedLoginAttempts int        `json:"failed_login_attempts"`
	AccountLockedUntil  *time.Time `json:"account_locked_until,omitempty"`
	ActivatedBy         *string    `json:"activated_by,omitempty"`
	ActivatedAt         *time.Time `json:"activated_at,omitempty"`
	LastLoginAt         *time.Time `json:"last_login_at,omitempty"`
	DeletedAt           *time.Time `json:"deleted_at,omitempty"`
	CreatedAt           time.Time  `json:"created_at"`
	UpdatedAt           time.Time  `json:"updated_at"`
}

// EffectiveStatus returns the status as decisions see it at now: a LOCKED
// account whose lock has run out reads as ACTIVE even before anything
// writes the release back.
func (a Account) EffectiveStatus(now time.Time) Status {
	if a.Status == StatusLocked && a.AccountLockedUntil != nil && !a.AccountLockedUntil.After(now) {
		return StatusActive
	}
	return a.Status
}

// LockedAt reports whether an unexpired lock is in force at now.
func (a Account) LockedAt(now time.Time) bool {
	return a.AccountLockedUntil != nil && a.AccountLockedUntil.After(now)
}

// SuspensionExpired reports whether a temporary suspension has run out at now.
func (a Account) SuspensionExpired(now time.Time) bool {
	return a.Status == StatusSuspended && a.SuspensionExpiresAt != nil && !a.SuspensionExpiresAt.After(now)
}

// LockExpired reports whether a lock has run out at now while the stored
// status still reads LOCKED.
func (a Account) LockExpired(now time.Time) bool {
	return a.Status == StatusLocked && a.AccountLockedUntil != nil && !a.AccountLockedUntil.After(now)
}

// Clone returns a deep copy so stores never share pointers with callers.
func (a Account) Clone() Account {
	out := a
	out.ExternalRef = cloneString(a.ExternalRef)
	out.StatusReason = cloneString(a.StatusReason)
	out.ActivatedBy = cloneString(a.ActivatedBy)
	out.SuspensionExpiresAt = cloneTime(a.SuspensionExpiresAt)
	out.AccountLockedUntil = cloneTime(a.AccountLockedUntil)
	out.ActivatedAt = cloneTime(a.ActivatedAt)
	out.LastLoginAt = cloneTime(a.LastLoginAt)
	out.DeletedAt = cloneTime(a.DeletedAt)
	return out
}

// DashboardGrant is coarse access to one dashboard.
type DashboardGrant struct {
	AccountID   string        `json:"account_id"`
	Dashboard   DashboardType `json:"dashboard_type"`
	AccessLevel string        `json:"access_level"`
	IsActive    bool          `json:"is_active"`
	GrantedBy   string        `json:"granted_by,omitempty"`
	GrantedAt   time.Time     `json:"granted_at"`
}

// AccessPointGrant is a fine-grained capability bundle within a dashboard.
type AccessPointGrant struct {
	AccountID      string            `json:"account_id"`
	Dashboard      DashboardType     `json:"dashboard_type"`
	Group          AccessPointGroup  `json:"access_point_group"`
	AllowedActions []ActionType      `json:"allowed_actions"`
	Context        map[string]string `json:"context,omitempty"`
	IsActive       bool              `json:"is_active"`
	GrantedBy      string            `json:"granted_by,omitempty"`
	GrantedAt      time.Time         `json:"granted_at"`
}

// Allows reports whether action is in the grant's action set.
func (g AccessPointGrant) Allows(action ActionType) bool {
	for _, a := range g.AllowedActions {
		if a == action {
			return true
		}
	}
	return false
}

// Permits reports whether the grant satisfies action under the query
// context. A grant with no actions never permits anything.
func (g AccessPointGrant) Permits(action ActionType, queryContext map[string]string) bool {
	if len(g.AllowedActions) == 0 {
		return false
	}
	return g.Allows(action) && ContextMatches(g.Context, queryContext)
}

// Clone returns a deep copy.
func (g AccessPointGrant) Clone() AccessPointGrant {
	out := g
	if g.AllowedActions != nil {
		out.AllowedActions = append([]ActionType(nil), g.AllowedActions...)
	}
	if g.Context != nil {
		out.Context = make(map[string]string, len(g.Context))
		for k, v := range g.Context {
			out.Context[k] = v
		}
	}
	return out
}

// Identity is the verified caller handed over by the authentication
// collaborator. Either field may be empty.
type Identity struct {
	ExternalRef string `json:"external_ref,omitempty"`
	Email       string `json:"email,omitempty"`
}

// Query is a single permission question.
type Query struct {
	Dashboard    DashboardType     `json:"dashboard"`
	Action       ActionType        `json:"action"`
	ResourceType string            `json:"resource_type,omitempty"`
	Context      map[string]string `json:"context,omitempty"`
}

// NormalizeEmail trims and lower-cases an email for lookup and storage.
func NormalizeEmail(email string) string {
	return strings.ToLower(strings.TrimSpace(email))
}

func cloneString(s *string) *string {
	if s == nil {
		return nil
	}
	v := *s
	return &v
}

func cloneTime(t *time.Time) *time.Time {
	if t == nil {
		return nil
	}
	v := *t
	return &v
}

func stringPtr(s string) *string { return &s }

func timePtr(t time.Time) *time.Time { return &t }
