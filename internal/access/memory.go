package access

import (
	"context"
	"sort"
	"strings"
	"sync"
	"time"
)

// Memory is an in-process Store. All rows sit behind one mutex, which makes
// Update and the conditional writes atomic per row.
type Memory struct {
	mu       sync.Mutex
	accounts map[string]*Account
	boards   map[boardKey]DashboardGrant
	points   map[pointKey]AccessPointGrant
}

type boardKey struct {
	account   string
	dashboard DashboardType
}

type pointKey struct {
	account   string
	dashboard DashboardType
	group     AccessPointGroup
}

// NewMemory returns an empty in-memory store.
func NewMemory() *Memory {
	return &Memory{
		accounts: make(map[string]*Account),
		boards:   make(map[boardKey]DashboardGrant),
		points:   make(map[pointKey]AccessPointGrant),
	}
}

func (m *Memory) Accounts() AccountStore { return memoryAccounts{m} }
func (m *Memory) Grants() GrantStore     { return memoryGrants{m} }

type memoryAccounts struct{ m *Memory }

func (s memoryAccounts) Create(_ context.Context, acc Account) (Account, error) {
	m := s.m
	m.mu.Lock()
	defer m.mu.Unlock()
	if _, ok := m.accounts[acc.ID]; ok {
		return Account{}, ErrConflict
	}
	for _, existing := range m.accounts {
		if existing.Email == acc.Email {
			return Account{}, ErrConflict
		}
		if acc.ExternalRef != nil && existing.ExternalRef != nil && *existing.ExternalRef == *acc.ExternalRef {
			return Account{}, ErrConflict
		}
	}
	stored := acc.Clone()
	m.accounts[acc.ID] = &stored
	return stored.Clone(), nil
}

func (s memoryAccounts) Get(_ context.Context, id string) (Account, error) {
	m := s.m
	m.mu.Lock()
	defer m.mu.Unlock()
	acc, ok := m.accounts[id]
	if !ok {
		return Account{}, ErrNotFound
	}
	return acc.Clone(), nil
}

func (s memoryAccounts) find(match func(*Account) bool) (Account, error) {
	m := s.m
	m.mu.Lock()
	defer m.mu.Unlock()
	ids := make([]string, 0, len(m.accounts))
	for id := range m.accounts {
		ids = append(ids, id)
	}
	sort.Strings(ids)
	for _, id := range ids {
		if acc := m.accounts[id]; match(acc) {
			return acc.Clone(), nil
		}
	}
	return Account{}, ErrNotFound
}

func (s memoryAccounts) FindByExternalRef(_ context.Context, ref string) (Account, error) {
	return s.find(func(a *Account) bool { return a.ExternalRef != nil && *a.ExternalRef == ref })
}

func (s memoryAccounts) FindByEmail(_ context.Context, email string) (Account, error) {
	return s.find(func(a *Account) bool { return a.Email == email })
}

func (s memoryAccounts) FindByEmailFold(_ context.Context, email string) (Account, error) {
	want := NormalizeEmail(email)
	return s.find(func(a *Account) bool { return NormalizeEmail(a.Email) == want })
}

func (s memoryAccounts) Update(_ context.Context, id string, fn func(*Account) error) (Account, error) {
	m := s.m
	m.mu.Lock()
	defer m.mu.Unlock()
	acc, ok := m.accounts[id]
	if !ok {
		return Account{}, ErrNotFound
	}
	next := acc.Clone()
	if err := fn(&next); err != nil {
		return Account{}, err
	}
	next.ID = id
	m.accounts[id] = &next
	return next.Clone(), nil
}

func (s memoryAccounts) ReactivateExpiredSuspension(_ context.Context, id string, now time.Time) (bool, error) {
	m := s.m
	m.mu.Lock()
	defer m.mu.Unlock()
	acc, ok := m.accounts[id]
	if !ok || !acc.SuspensionExpired(now) {
		return false, nil
	}
	acc.Status = StatusActive
	acc.StatusReason = nil
	acc.SuspensionExpiresAt = nil
	acc.FailedLoginAttempts = 0
	acc.UpdatedAt = now
	return true, nil
}

func (s memoryAccounts) ReleaseExpiredLock(_ context.Context, id string, now time.Time) (bool, error) {
	m := s.m
	m.mu.Lock()
	defer m.mu.Unlock()
	acc, ok := m.accounts[id]
	if !ok || !acc.LockExpired(now) {
		return false, nil
	}
	acc.Status = StatusActive
	acc.AccountLockedUntil = nil
	acc.FailedLoginAttempts = 0
	acc.UpdatedAt = now
	return true, nil
}

func (s memoryAccounts) list(limit int, match func(*Account) bool) []string {
	m := s.m
	m.mu.Lock()
	defer m.mu.Unlock()
	out := make([]string, 0)
	for id, acc := range m.accounts {
		if match(acc) {
			out = append(out, id)
		}
	}
	sort.Strings(out)
	if limit > 0 && len(out) > limit {
		out = out[:limit]
	}
	return out
}

func (s memoryAccounts) ListExpiredSuspensions(_ context.Context, now time.Time, limit int) ([]string, error) {
	return s.list(limit, func(a *Account) bool { return a.SuspensionExpired(now) }), nil
}

func (s memoryAccounts) ListExpiredLocks(_ context.Context, now time.Time, limit int) ([]string, error) {
	return s.list(limit, func(a *Account) bool { return a.LockExpired(now) }), nil
}

type memoryGrants struct{ m *Memory }

func (s memoryGrants) UpsertDashboardGrant(_ context.Context, g DashboardGrant) (DashboardGrant, error) {
	m := s.m
	m.mu.Lock()
	defer m.mu.Unlock()
	if _, ok := m.accounts[g.AccountID]; !ok {
		return DashboardGrant{}, ErrNotFound
	}
	m.boards[boardKey{g.AccountID, g.Dashboard}] = g
	return g, nil
}

func (s memoryGrants) HasActiveDashboard(_ context.Context, accountID string, d DashboardType) (bool, error) {
	m := s.m
	m.mu.Lock()
	defer m.mu.Unlock()
	g, ok := m.boards[boardKey{accountID, d}]
	return ok && g.IsActive, nil
}

func (s memoryGrants) ActiveDashboards(_ context.Context, accountID string) ([]DashboardType, error) {
	m := s.m
	m.mu.Lock()
	defer m.mu.Unlock()
	out := make([]DashboardType, 0)
	for k, g := range m.boards {
		if k.account == accountID && g.IsActive {
			out = append(out, k.dashboard)
		}
	}
	sortDashboards(out)
	return out, nil
}

func (s memoryGrants) SetDashboardGrantActive(_ context.Context, accountID string, d DashboardType, active bool) error {
	m := s.m
	m.mu.Lock()
	defer m.mu.Unlock()
	k := boardKey{accountID, d}
	g, ok := m.boards[k]
	if !ok {
		return ErrNotFound
	}
	g.IsActive = active
	m.boards[k] = g
	return nil
}

func (s memoryGrants) UpsertAccessPointGrant(_ context.Context, g AccessPointGrant) (AccessPointGrant, error) {
	m := s.m
	m.mu.Lock()
	defer m.mu.Unlock()
	if _, ok := m.accounts[g.AccountID]; !ok {
		return AccessPointGrant{}, ErrNotFound
	}
	m.points[pointKey{g.AccountID, g.Dashboard, g.Group}] = g.Clone()
	return g.Clone(), nil
}

func (s memoryGrants) ActiveAccessPoints(_ context.Context, accountID string, d DashboardType) ([]AccessPointGrant, error) {
	m := s.m
	m.mu.Lock()
	defer m.mu.Unlock()
	out := make([]AccessPointGrant, 0)
	for k, g := range m.points {
		if k.account == accountID && k.dashboard == d && g.IsActive {
			out = append(out, g.Clone())
		}
	}
	sort.Slice(out, func(i, j int) bool { return strings.Compare(string(out[i].Group), string(out[j].Group)) < 0 })
	return out, nil
}

func (s memoryGrants) SetAccessPointActive(_ context.Context, accountID string, d DashboardType, group AccessPointGroup, active bool) error {
	m := s.m
	m.mu.Lock()
	defer m.mu.Unlock()
	k := pointKey{accountID, d, group}
	g, ok := m.points[k]
	if !ok {
		return ErrNotFound
	}
	g.IsActive = active
	m.points[k] = g
	return nil
}
