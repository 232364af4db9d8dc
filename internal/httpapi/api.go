// Package httpapi exposes the access engine and the account lifecycle over
// HTTP, plus a gRPC health service for orchestrators.
package httpapi

import (
	"context"
	"io"
	"net/http"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"
	"github.com/go-chi/cors"
	"github.com/sirupsen/logrus"

	"dispatchdesk.io/internal/access"
	"dispatchdesk.io/internal/auth"
	"dispatchdesk.io/internal/obs"
	"dispatchdesk.io/internal/stream"
)

const maxBodyBytes = 1 << 20

// Pinger is satisfied by storage backends that can report liveness.
type Pinger interface {
	Ping(ctx context.Context) error
}

// ReadyProbe reports whether the service can take traffic.
type ReadyProbe struct {
	DB Pinger
}

func (rp ReadyProbe) Check(ctx context.Context) error {
	if rp.DB == nil {
		return nil
	}
	return rp.DB.Ping(ctx)
}

// Deps wires the API to the access services.
type Deps struct {
	Engine   *access.Engine
	Resolver *access.Resolver
	Status   *access.StatusService
	Index    *access.Index
	Admin    *access.Admin
	Verifier *auth.Verifier
	Events   *stream.Hub
	Ready    ReadyProbe
	Log      logrus.FieldLogger
	Version  string

	RateLimitRPS   float64
	RateLimitBurst int
	// AllowedOrigins enables CORS for the listed browser origins.
	AllowedOrigins []string
}

// API is the HTTP layer.
type API struct {
	router   chi.Router
	engine   *access.Engine
	resolver *access.Resolver
	status   *access.StatusService
	index    *access.Index
	admin    *access.Admin
	verifier *auth.Verifier
	events   *stream.Hub
	ready    ReadyProbe
	log      logrus.FieldLogger
	version  string
}

// New builds the router.
func New(d Deps) *API {
	log := d.Log
	if log == nil {
		l := logrus.New()
		l.SetOutput(io.Discard)
		log = l
	}
	a := &API{
		engine:   d.Engine,
		resolver: d.Resolver,
		status:   d.Status,
		index:    d.Index,
		admin:    d.Admin,
		verifier: d.Verifier,
		events:   d.Events,
		ready:    d.Ready,
		log:      log,
		version:  d.Version,
	}

	r := chi.NewRouter()
	r.Use(RequestID, Logging(log), obs.Instrument, middleware.Recoverer, SecurityHeaders)
	if len(d.AllowedOrigins) > 0 {
		r.Use(cors.Handler(cors.Options{
			AllowedOrigins: d.AllowedOrigins,
			AllowedMethods: []string{http.MethodGet, http.MethodPost, http.MethodPut, http.MethodOptions},
			AllowedHeaders: []string{"Accept", "Authorization", "Content-Type", requestIDHeader},
			ExposedHeaders: []string{requestIDHeader, "Retry-After"},
			MaxAge:         600,
		}))
	}
	r.Use(MaxBodyBytes(maxBodyBytes))

	r.Get("/healthz", a.healthz)
	r.Get("/readyz", a.readyz)
	r.Handle("/metrics", obs.Handler())

	r.Route("/v1", func(r chi.Router) {
		if d.RateLimitRPS > 0 && d.RateLimitBurst > 0 {
			r.Use(func(next http.Handler) http.Handler {
				return RateLimit(next, d.RateLimitBurst, d.RateLimitRPS)
			})
		}
		r.Use(a.withAuth)

		r.Post("/access/check", a.checkAccess)
		r.Get("/access/dashboards", a.visibleDashboards)
		r.Get("/access/dashboards/{dashboard}/access-points", a.accessPoints)

		r.Group(func(r chi.Router) {
			r.Use(a.requireSystem(access.ActionCreate))
			r.Post("/accounts", a.createAccount)
		})
		r.Group(func(r chi.Router) {
			r.Use(a.requireSystem(access.ActionView))
			r.Get("/accounts/{id}", a.getAccount)
			r.Get("/events/status", a.statusEvents)
		})
		r.Group(func(r chi.Router) {
			r.Use(a.requireSystem(access.ActionUpdate))
			r.Post("/accounts/{id}/activate", a.activateAccount)
			r.Post("/accounts/{id}/status", a.changeStatus)
			r.Put("/accounts/{id}/role", a.setRole)
			r.Post("/accounts/{id}/login-events", a.loginEvent)
			r.Put("/accounts/{id}/dashboards/{dashboard}", a.grantDashboard)
			r.Put("/accounts/{id}/dashboards/{dashboard}/access-points/{group}", a.grantAccessPoint)
		})
	})
	a.router = r
	return a
}

// Handler returns the root http.Handler.
func (a *API) Handler() http.Handler {
	return a.router
}

func (a *API) healthz(w http.ResponseWriter, r *http.Request) {
	writeJSON(w, http.StatusOK, map[string]any{
		"status":  "ok",
		"service": "dispatchdesk-api",
		"version": a.version,
	})
}

func (a *API) readyz(w http.ResponseWriter, r *http.Request) {
	if err := a.ready.Check(r.Context()); err != nil {
		a.log.WithError(err).Warn("readiness check failed")
		writeJSON(w, http.StatusServiceUnavailable, map[string]any{"status": "not_ready"})
		return
	}
	writeJSON(w, http.StatusOK, map[string]any{"status": "ready"})
}
