package httpapi

import (
	"bytes"
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"dispatchdesk.io/internal/access"
	"dispatchdesk.io/internal/auth"
	"dispatchdesk.io/internal/clock"
	"dispatchdesk.io/internal/stream"
)

var epoch = time.Date(2026, 3, 1, 9, 0, 0, 0, time.UTC)

type harness struct {
	t        *testing.T
	ctx      context.Context
	clock    *clock.Fake
	status   *access.StatusService
	index    *access.Index
	verifier *auth.Verifier
	events   *stream.Hub
	handler  http.Handler
}

type pingFunc func(ctx context.Context) error

func (f pingFunc) Ping(ctx context.Context) error { return f(ctx) }

func newHarness(t *testing.T, ready ReadyProbe) *harness {
	t.Helper()
	h := &harness{t: t, ctx: context.Background(), clock: clock.NewFake(epoch), events: stream.New(8)}
	store := access.NewMemory()
	opts := []access.Option{access.WithClock(h.clock), access.WithObserver(h.events)}
	h.status = access.NewStatusService(store.Accounts(), opts...)
	h.index = access.NewIndex(store.Grants(), opts...)
	resolver := access.NewResolver(store.Accounts())
	verifier, err := auth.NewVerifier("test-secret", auth.WithClock(h.clock))
	if err != nil {
		t.Fatalf("verifier: %v", err)
	}
	h.verifier = verifier
	h.handler = New(Deps{
		Engine:   access.NewEngine(resolver, h.status, h.index, opts...),
		Resolver: resolver,
		Status:   h.status,
		Index:    h.index,
		Admin:    access.NewAdmin(h.status, h.index),
		Verifier: verifier,
		Events:   h.events,
		Ready:    ready,
		Version:  "test",
	}).Handler()
	return h
}

// account creates and activates an operator.
func (h *harness) account(email string, role access.Role) access.Account {
	h.t.Helper()
	acc, err := h.status.Create(h.ctx, access.NewAccount{Email: email, Role: role})
	if err != nil {
		h.t.Fatalf("create %s: %v", email, err)
	}
	acc, err = h.status.Activate(h.ctx, acc.ID, "bootstrap")
	if err != nil {
		h.t.Fatalf("activate %s: %v", email, err)
	}
	return acc
}

func (h *harness) token(email string) string {
	h.t.Helper()
	tok, err := h.verifier.GenerateToken("", email, time.Hour)
	if err != nil {
		h.t.Fatalf("token: %v", err)
	}
	return tok
}

func (h *harness) do(method, path, token string, body any) *httptest.ResponseRecorder {
	h.t.Helper()
	var buf bytes.Buffer
	if body != nil {
		if err := json.NewEncoder(&buf).Encode(body); err != nil {
			h.t.Fatalf("encode body: %v", err)
		}
	}
	req := httptest.NewRequest(method, path, &buf)
	req.Header.Set("Content-Type", "application/json")
	if token != "" {
		req.Header.Set(authHeader, bearer+token)
	}
	rr := httptest.NewRecorder()
	h.handler.ServeHTTP(rr, req)
	return rr
}

func decode[T any](t *testing.T, rr *httptest.ResponseRecorder) T {
	t.Helper()
	var out T
	if err := json.Unmarshal(rr.Body.Bytes(), &out); err != nil {
		t.Fatalf("decode %q: %v", rr.Body.String(), err)
	}
	return out
}
