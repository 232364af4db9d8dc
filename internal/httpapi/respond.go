package httpapi

import (
	"encoding/json"
	"errors"
	"io"
	"net/http"

	"dispatchdesk.io/internal/access"
	"dispatchdesk.io/internal/audit"
)

type errorBody struct {
	Error     string `json:"error"`
	RequestID string `json:"request_id,omitempty"`
}

func writeJSON(w http.ResponseWriter, code int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(code)
	_ = json.NewEncoder(w).Encode(v)
}

func respondError(w http.ResponseWriter, r *http.Request, code int, msg string) {
	writeJSON(w, code, errorBody{Error: msg, RequestID: audit.RequestIDFromContext(r.Context())})
}

// respondServiceError maps access errors to HTTP statuses. Infrastructure
// failures surface as 503 so callers retry instead of treating them as a
// final answer.
func respondServiceError(w http.ResponseWriter, r *http.Request, err error) {
	switch {
	case errors.Is(err, access.ErrInfrastructure):
		w.Header().Set("Retry-After", "5")
		respondError(w, r, http.StatusServiceUnavailable, "temporarily unavailable")
	case errors.Is(err, access.ErrNotFound):
		respondError(w, r, http.StatusNotFound, "not found")
	case errors.Is(err, access.ErrSelfModification):
		respondError(w, r, http.StatusForbidden, err.Error())
	case errors.Is(err, access.ErrConflict):
		respondError(w, r, http.StatusConflict, err.Error())
	case errors.Is(err, access.ErrIllegalTransition), errors.Is(err, access.ErrInvalidConstraint):
		respondError(w, r, http.StatusUnprocessableEntity, err.Error())
	default:
		respondError(w, r, http.StatusInternalServerError, "internal error")
	}
}

// decodeJSON reads a single JSON object into dst, rejecting unknown fields.
func decodeJSON(r *http.Request, dst any) error {
	dec := json.NewDecoder(r.Body)
	dec.DisallowUnknownFields()
	if err := dec.Decode(dst); err != nil {
		return err
	}
	if err := dec.Decode(&struct{}{}); !errors.Is(err, io.EOF) {
		return errors.New("request body must contain a single object")
	}
	return nil
}
