package httpapi

import (
	"bufio"
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"dispatchdesk.io/internal/access"
	"dispatchdesk.io/internal/stream"
)

func TestStatusEventStream(t *testing.T) {
	h := newHarness(t, ReadyProbe{})
	h.account("root@example.com", access.RoleSuperAdmin)
	agent := h.account("agent@example.com", access.RoleSupportAgent)

	srv := httptest.NewServer(h.handler)
	defer srv.Close()

	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, srv.URL+"/v1/events/status", nil)
	if err != nil {
		t.Fatalf("request: %v", err)
	}
	req.Header.Set(authHeader, bearer+h.token("root@example.com"))
	resp, err := srv.Client().Do(req)
	if err != nil {
		t.Fatalf("subscribe: %v", err)
	}
	defer resp.Body.Close()
	if resp.StatusCode != http.StatusOK || !strings.HasPrefix(resp.Header.Get("Content-Type"), "text/event-stream") {
		t.Fatalf("unexpected response %d %q", resp.StatusCode, resp.Header.Get("Content-Type"))
	}

	reader := bufio.NewReader(resp.Body)
	line, err := reader.ReadString('\n')
	if err != nil || !strings.HasPrefix(line, ": stream started") {
		t.Fatalf("expected stream preamble, got %q %v", line, err)
	}

	go func() {
		// The subscription is registered before the preamble is written.
		if _, err := h.status.ChangeStatus(h.ctx, access.StatusChange{
			AccountID: agent.ID, Status: access.StatusDisabled, Reason: "offboarded", Actor: "ops",
		}); err != nil {
			t.Errorf("change status: %v", err)
		}
	}()

	for {
		line, err = reader.ReadString('\n')
		if err != nil {
			t.Fatalf("read stream: %v", err)
		}
		if !strings.HasPrefix(line, "data: ") {
			continue
		}
		var ev stream.Event
		if err := json.Unmarshal([]byte(strings.TrimPrefix(strings.TrimSpace(line), "data: ")), &ev); err != nil {
			t.Fatalf("decode event: %v", err)
		}
		if ev.AccountID != agent.ID || ev.To != access.StatusDisabled || ev.Cause != access.CauseAdmin {
			t.Fatalf("unexpected event %+v", ev)
		}
		return
	}
}

func TestStatusEventStreamRequiresSystemView(t *testing.T) {
	h := newHarness(t, ReadyProbe{})
	h.account("agent@example.com", access.RoleSupportAgent)
	rr := h.do(http.MethodGet, "/v1/events/status", h.token("agent@example.com"), nil)
	if rr.Code != http.StatusForbidden {
		t.Fatalf("expected 403, got %d", rr.Code)
	}
}
