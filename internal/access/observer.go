package access

import (
	"context"
	"time"
)

// Cause identifies what drove a status transition.
type Cause string

const (
	CauseAdmin      Cause = "admin"
	CauseReconciler Cause = "reconciler"
	CauseLogin      Cause = "login"
)

// DecisionEvent describes one evaluated permission query.
type DecisionEvent struct {
	AccountID    string
	ExternalRef  string
	Email        string
	Dashboard    DashboardType
	Action       ActionType
	ResourceType string
	Decision     Decision
	Reason       Reason
	Group        AccessPointGroup
	At           time.Time
}

// TransitionEvent describes one committed status change.
type TransitionEvent struct {
	AccountID string
	From      Status
	To        Status
	Reason    string
	Actor     string
	Cause     Cause
	At        time.Time
}

// Observer receives decision and transition events. Implementations must
// not block and must be safe for concurrent use.
type Observer interface {
	ObserveDecision(ctx context.Context, ev DecisionEvent)
	ObserveTransition(ctx context.Context, ev TransitionEvent)
}

// Observers fans events out to each member in order.
type Observers []Observer

func (os Observers) ObserveDecision(ctx context.Context, ev DecisionEvent) {
	for _, o := range os {
		if o != nil {
			o.ObserveDecision(ctx, ev)
		}
	}
}

func (os Observers) ObserveTransition(ctx context.Context, ev TransitionEvent) {
	for _, o := range os {
		if o != nil {
			o.ObserveTransition(ctx, ev)
		}
	}
}

// NopObserver discards events.
type NopObserver struct{}

func (NopObserver) ObserveDecision(context.Context, DecisionEvent)     {}
func (NopObserver) ObserveTransition(context.Context, TransitionEvent) {}
