package audit

import (
	"context"
	"strings"

	"github.com/sirupsen/logrus"

	"dispatchdesk.io/internal/access"
	"dispatchdesk.io/internal/auth"
)

type ctxKey string

const requestIDKey ctxKey = "audit_request_id"

// WithRequestID attaches the request identifier to the context for audit logging.
func WithRequestID(ctx context.Context, requestID string) context.Context {
	requestID = strings.TrimSpace(requestID)
	if requestID == "" {
		return ctx
	}
	return context.WithValue(ctx, requestIDKey, requestID)
}

// RequestIDFromContext returns the request id attached by WithRequestID.
func RequestIDFromContext(ctx context.Context) string {
	if ctx == nil {
		return ""
	}
	if v, ok := ctx.Value(requestIDKey).(string); ok {
		return v
	}
	return ""
}

// Logger writes audit entries for access decisions and status transitions.
// Denials are logged at info, allows at debug.
type Logger struct {
	log logrus.FieldLogger
}

var _ access.Observer = (*Logger)(nil)

// New returns a Logger writing through l.
func New(l logrus.FieldLogger) *Logger {
	return &Logger{log: l}
}

func (a *Logger) entry(ctx context.Context, event string) *logrus.Entry {
	e := a.log.WithField("type", "audit").WithField("event", event)
	if rid := RequestIDFromContext(ctx); rid != "" {
		e = e.WithField("request_id", rid)
	}
	if c, ok := auth.CallerFromContext(ctx); ok && c.TokenID != "" {
		e = e.WithField("token_id", c.TokenID)
	}
	return e
}

func (a *Logger) ObserveDecision(ctx context.Context, ev access.DecisionEvent) {
	e := a.entry(ctx, "access.decision").WithFields(logrus.Fields{
		"decision":  ev.Decision.String(),
		"reason":    ev.Reason.String(),
		"dashboard": string(ev.Dashboard),
		"action":    string(ev.Action),
	})
	if ev.AccountID != "" {
		e = e.WithField("account_id", ev.AccountID)
	} else {
		e = e.WithField("external_ref", ev.ExternalRef).WithField("email", ev.Email)
	}
	if ev.ResourceType != "" {
		e = e.WithField("resource_type", ev.ResourceType)
	}
	if ev.Group != "" {
		e = e.WithField("access_point_group", string(ev.Group))
	}
	if ev.Decision == access.Allow {
		e.Debug("access allowed")
		return
	}
	e.Info("access denied")
}

func (a *Logger) ObserveTransition(ctx context.Context, ev access.TransitionEvent) {
	e := a.entry(ctx, "account.status").WithFields(logrus.Fields{
		"account_id": ev.AccountID,
		"from":       string(ev.From),
		"to":         string(ev.To),
		"cause":      string(ev.Cause),
	})
	if ev.Actor != "" {
		e = e.WithField("actor_id", ev.Actor)
	}
	if ev.Reason != "" {
		e = e.WithField("reason", ev.Reason)
	}
	e.Info("account status changed")
}
