package httpapi

import (
	"errors"
	"net/http"

	"github.com/go-chi/chi/v5"

	"dispatchdesk.io/internal/access"
	"dispatchdesk.io/internal/auth"
)

type checkRequest struct {
	Dashboard    access.DashboardType `json:"dashboard"`
	Action       access.ActionType    `json:"action"`
	ResourceType string               `json:"resource_type,omitempty"`
	Context      map[string]string    `json:"context,omitempty"`
}

type checkResponse struct {
	Allowed bool   `json:"allowed"`
	Reason  string `json:"reason"`
	Group   string `json:"access_point_group,omitempty"`
}

func callerIdentity(r *http.Request) access.Identity {
	c, _ := auth.CallerFromContext(r.Context())
	return c.Identity()
}

// checkAccess answers a permission query for the caller. Every outcome,
// including storage failure, is a 200 with allowed=false; only malformed
// bodies are rejected.
func (a *API) checkAccess(w http.ResponseWriter, r *http.Request) {
	var req checkRequest
	if err := decodeJSON(r, &req); err != nil {
		respondError(w, r, http.StatusBadRequest, "invalid request body")
		return
	}
	res := a.engine.Decide(r.Context(), callerIdentity(r), access.Query{
		Dashboard:    req.Dashboard,
		Action:       req.Action,
		ResourceType: req.ResourceType,
		Context:      req.Context,
	})
	writeJSON(w, http.StatusOK, checkResponse{
		Allowed: res.Allowed(),
		Reason:  res.Reason.String(),
		Group:   string(res.Group),
	})
}

func (a *API) visibleDashboards(w http.ResponseWriter, r *http.Request) {
	ds, err := a.engine.VisibleDashboards(r.Context(), callerIdentity(r))
	if err != nil {
		respondServiceError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, map[string]any{"dashboards": ds})
}

// accessPoints lists the caller's own active access-point grants on a
// dashboard. Unknown or unusable callers get an empty list.
func (a *API) accessPoints(w http.ResponseWriter, r *http.Request) {
	d := access.DashboardType(chi.URLParam(r, "dashboard"))
	if !d.Valid() {
		respondError(w, r, http.StatusNotFound, "unknown dashboard")
		return
	}
	empty := map[string]any{"access_points": []access.AccessPointGrant{}}
	acc, err := a.resolver.Resolve(r.Context(), callerIdentity(r))
	if errors.Is(err, access.ErrNotFound) {
		writeJSON(w, http.StatusOK, empty)
		return
	}
	if err != nil {
		respondServiceError(w, r, err)
		return
	}
	usable, acc, err := a.status.CheckUsable(r.Context(), acc)
	if err != nil {
		respondServiceError(w, r, err)
		return
	}
	if !usable {
		writeJSON(w, http.StatusOK, empty)
		return
	}
	gs, err := a.index.ListAccessPoints(r.Context(), acc.ID, d)
	if err != nil {
		respondServiceError(w, r, err)
		return
	}
	if gs == nil {
		gs = []access.AccessPointGrant{}
	}
	writeJSON(w, http.StatusOK, map[string]any{"access_points": gs})
}
