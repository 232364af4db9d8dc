package access

import (
	"context"
	"errors"
)

// Decision is the outcome of a permission query.
type Decision int

const (
	Deny Decision = iota
	Allow
)

// String returns "allow" or "deny".
func (d Decision) String() string {
	if d == Allow {
		return "allow"
	}
	return "deny"
}

// Reason explains a decision.
type Reason int

const (
	ReasonNoMatchingGrant Reason = iota
	ReasonInvalidQuery
	ReasonAccountNotFound
	ReasonAccountUnusable
	ReasonNoDashboardAccess
	ReasonError
	ReasonSuperAdmin
	ReasonGrant
)

// String returns a stable label suitable for logs and metrics.
func (r Reason) String() string {
	switch r {
	case ReasonNoMatchingGrant:
		return "no_matching_grant"
	case ReasonInvalidQuery:
		return "invalid_query"
	case ReasonAccountNotFound:
		return "account_not_found"
	case ReasonAccountUnusable:
		return "account_unusable"
	case ReasonNoDashboardAccess:
		return "no_dashboard_access"
	case ReasonError:
		return "error"
	case ReasonSuperAdmin:
		return "super_admin"
	case ReasonGrant:
		return "grant"
	default:
		return "unknown"
	}
}

// Result is a decision together with what produced it.
type Result struct {
	Decision  Decision
	Reason    Reason
	AccountID string
	// Group is the access-point group that allowed the query, if any.
	Group AccessPointGroup
}

// Allowed reports whether the result permits the query.
func (r Result) Allowed() bool { return r.Decision == Allow }

// Engine evaluates permission queries. It holds no mutable state of its
// own and is safe for concurrent use.
type Engine struct {
	resolver *Resolver
	status   *StatusService
	index    *Index
	settings
}

// NewEngine assembles an Engine from its collaborators.
func NewEngine(resolver *Resolver, status *StatusService, index *Index, opts ...Option) *Engine {
	return &Engine{resolver: resolver, status: status, index: index, settings: newSettings(opts)}
}

// CanPerform reports whether the caller may run q. Every failure denies.
func (e *Engine) CanPerform(ctx context.Context, id Identity, q Query) bool {
	return e.Decide(ctx, id, q).Allowed()
}

// Decide evaluates q for the caller and reports the outcome. It never
// returns an error; storage failures deny with ReasonError.
func (e *Engine) Decide(ctx context.Context, id Identity, q Query) Result {
	res := e.decide(ctx, id, q)
	e.observer.ObserveDecision(ctx, DecisionEvent{
		AccountID:    res.AccountID,
		ExternalRef:  id.ExternalRef,
		Email:        NormalizeEmail(id.Email),
		Dashboard:    q.Dashboard,
		Action:       q.Action,
		ResourceType: q.ResourceType,
		Decision:     res.Decision,
		Reason:       res.Reason,
		Group:        res.Group,
		At:           e.clock.Now(),
	})
	return res
}

func (e *Engine) decide(ctx context.Context, id Identity, q Query) Result {
	if !q.Dashboard.Valid() || !q.Action.Valid() {
		return Result{Decision: Deny, Reason: ReasonInvalidQuery}
	}

	acc, err := e.resolver.Resolve(ctx, id)
	if err != nil {
		if errors.Is(err, ErrNotFound) {
			return Result{Decision: Deny, Reason: ReasonAccountNotFound}
		}
		e.log.WithError(err).Warn("access decision: resolve failed")
		return Result{Decision: Deny, Reason: ReasonError}
	}
	res := Result{Decision: Deny, AccountID: acc.ID}

	usable, acc, err := e.status.CheckUsable(ctx, acc)
	if err != nil {
		e.log.WithError(err).WithField("account_id", res.AccountID).Warn("access decision: usability check failed")
		res.Reason = ReasonError
		return res
	}
	if !usable {
		res.Reason = ReasonAccountUnusable
		return res
	}

	if acc.PrimaryRole == RoleSuperAdmin {
		res.Decision, res.Reason = Allow, ReasonSuperAdmin
		return res
	}

	ok, err := e.index.HasAccess(ctx, acc.ID, q.Dashboard)
	if err != nil {
		e.log.WithError(err).WithField("account_id", acc.ID).Warn("access decision: dashboard lookup failed")
		res.Reason = ReasonError
		return res
	}
	if !ok {
		res.Reason = ReasonNoDashboardAccess
		return res
	}

	grants, err := e.index.ListAccessPoints(ctx, acc.ID, q.Dashboard)
	if err != nil {
		e.log.WithError(err).WithField("account_id", acc.ID).Warn("access decision: access point lookup failed")
		res.Reason = ReasonError
		return res
	}
	for _, g := range grants {
		if g.Permits(q.Action, q.Context) {
			res.Decision, res.Reason, res.Group = Allow, ReasonGrant, g.Group
			return res
		}
	}
	res.Reason = ReasonNoMatchingGrant
	return res
}

// VisibleDashboards lists the dashboards the caller may navigate to. An
// unknown or unusable caller sees nothing; a super-admin sees the whole
// catalog. Only storage failures return an error.
func (e *Engine) VisibleDashboards(ctx context.Context, id Identity) ([]DashboardType, error) {
	acc, err := e.resolver.Resolve(ctx, id)
	if err != nil {
		if errors.Is(err, ErrNotFound) {
			return []DashboardType{}, nil
		}
		return nil, err
	}
	usable, acc, err := e.status.CheckUsable(ctx, acc)
	if err != nil {
		return nil, err
	}
	if !usable {
		return []DashboardType{}, nil
	}
	if acc.PrimaryRole == RoleSuperAdmin {
		return Dashboards(), nil
	}
	return e.index.ListAccess(ctx, acc.ID)
}
