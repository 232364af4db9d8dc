package httpapi

import (
	"context"
	"net/http"
	"strings"
	"time"

	"github.com/go-chi/chi/v5"

	"dispatchdesk.io/internal/access"
)

type actorKey struct{}

func actorFromContext(ctx context.Context) string {
	id, _ := ctx.Value(actorKey{}).(string)
	return id
}

// requireSystem gates administrative routes on the SYSTEM dashboard and
// records the acting account for the self-modification guard.
func (a *API) requireSystem(action access.ActionType) func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			res := a.engine.Decide(r.Context(), callerIdentity(r), access.Query{
				Dashboard: access.DashboardSystem,
				Action:    action,
			})
			if !res.Allowed() {
				if res.Reason == access.ReasonError {
					w.Header().Set("Retry-After", "5")
					respondError(w, r, http.StatusServiceUnavailable, "temporarily unavailable")
					return
				}
				respondError(w, r, http.StatusForbidden, "forbidden")
				return
			}
			ctx := context.WithValue(r.Context(), actorKey{}, res.AccountID)
			next.ServeHTTP(w, r.WithContext(ctx))
		})
	}
}

type createAccountRequest struct {
	ExternalRef string      `json:"external_ref,omitempty"`
	Email       string      `json:"email"`
	Role        access.Role `json:"role"`
}

func (a *API) createAccount(w http.ResponseWriter, r *http.Request) {
	var req createAccountRequest
	if err := decodeJSON(r, &req); err != nil {
		respondError(w, r, http.StatusBadRequest, "invalid request body")
		return
	}
	acc, err := a.status.Create(r.Context(), access.NewAccount{
		ExternalRef: req.ExternalRef,
		Email:       req.Email,
		Role:        req.Role,
	})
	if err != nil {
		respondServiceError(w, r, err)
		return
	}
	writeJSON(w, http.StatusCreated, acc)
}

func (a *API) getAccount(w http.ResponseWriter, r *http.Request) {
	acc, err := a.status.Get(r.Context(), chi.URLParam(r, "id"))
	if err != nil {
		respondServiceError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, acc)
}

func (a *API) activateAccount(w http.ResponseWriter, r *http.Request) {
	acc, err := a.admin.Activate(r.Context(), actorFromContext(r.Context()), chi.URLParam(r, "id"))
	if err != nil {
		respondServiceError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, acc)
}

type statusRequest struct {
	Status    access.Status `json:"status"`
	Reason    string        `json:"reason,omitempty"`
	Temporary bool          `json:"temporary,omitempty"`
	ExpiresAt *time.Time    `json:"expires_at,omitempty"`
}

func (a *API) changeStatus(w http.ResponseWriter, r *http.Request) {
	var req statusRequest
	if err := decodeJSON(r, &req); err != nil {
		respondError(w, r, http.StatusBadRequest, "invalid request body")
		return
	}
	acc, err := a.admin.ChangeStatus(r.Context(), actorFromContext(r.Context()), access.StatusChange{
		AccountID: chi.URLParam(r, "id"),
		Status:    req.Status,
		Reason:    req.Reason,
		Temporary: req.Temporary,
		ExpiresAt: req.ExpiresAt,
	})
	if err != nil {
		respondServiceError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, acc)
}

type roleRequest struct {
	Role access.Role `json:"role"`
}

func (a *API) setRole(w http.ResponseWriter, r *http.Request) {
	var req roleRequest
	if err := decodeJSON(r, &req); err != nil {
		respondError(w, r, http.StatusBadRequest, "invalid request body")
		return
	}
	acc, err := a.admin.SetPrimaryRole(r.Context(), actorFromContext(r.Context()), chi.URLParam(r, "id"), req.Role)
	if err != nil {
		respondServiceError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, acc)
}

type loginEventRequest struct {
	Outcome string `json:"outcome"`
}

// loginEvent records a login attempt reported by the identity provider.
func (a *API) loginEvent(w http.ResponseWriter, r *http.Request) {
	var req loginEventRequest
	if err := decodeJSON(r, &req); err != nil {
		respondError(w, r, http.StatusBadRequest, "invalid request body")
		return
	}
	id, actor := chi.URLParam(r, "id"), actorFromContext(r.Context())
	var (
		acc access.Account
		err error
	)
	switch strings.ToLower(strings.TrimSpace(req.Outcome)) {
	case "failure":
		acc, err = a.admin.RecordFailedLogin(r.Context(), actor, id)
	case "success":
		acc, err = a.admin.RecordSuccessfulLogin(r.Context(), actor, id)
	default:
		respondError(w, r, http.StatusUnprocessableEntity, `outcome must be "success" or "failure"`)
		return
	}
	if err != nil {
		respondServiceError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, acc)
}

type dashboardGrantRequest struct {
	AccessLevel string `json:"access_level,omitempty"`
	Active      *bool  `json:"active,omitempty"`
}

func (a *API) grantDashboard(w http.ResponseWriter, r *http.Request) {
	var req dashboardGrantRequest
	if err := decodeJSON(r, &req); err != nil {
		respondError(w, r, http.StatusBadRequest, "invalid request body")
		return
	}
	g, err := a.admin.GrantDashboard(r.Context(), actorFromContext(r.Context()), access.DashboardGrant{
		AccountID:   chi.URLParam(r, "id"),
		Dashboard:   access.DashboardType(chi.URLParam(r, "dashboard")),
		AccessLevel: req.AccessLevel,
		IsActive:    req.Active == nil || *req.Active,
	})
	if err != nil {
		respondServiceError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, g)
}

type accessPointGrantRequest struct {
	Actions []access.ActionType `json:"allowed_actions"`
	Context map[string]string   `json:"context,omitempty"`
	Active  *bool               `json:"active,omitempty"`
}

func (a *API) grantAccessPoint(w http.ResponseWriter, r *http.Request) {
	var req accessPointGrantRequest
	if err := decodeJSON(r, &req); err != nil {
		respondError(w, r, http.StatusBadRequest, "invalid request body")
		return
	}
	g, err := a.admin.GrantAccessPoint(r.Context(), actorFromContext(r.Context()), access.AccessPointGrant{
		AccountID:      chi.URLParam(r, "id"),
		Dashboard:      access.DashboardType(chi.URLParam(r, "dashboard")),
		Group:          access.AccessPointGroup(chi.URLParam(r, "group")),
		AllowedActions: req.Actions,
		Context:        req.Context,
		IsActive:       req.Active == nil || *req.Active,
	})
	if err != nil {
		respondServiceError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, g)
}
