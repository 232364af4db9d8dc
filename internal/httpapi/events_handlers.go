package httpapi

import (
	"encoding/json"
	"net/http"
	"time"
)

// statusEvents streams committed status transitions as Server-Sent Events
// until the client goes away.
func (a *API) statusEvents(w http.ResponseWriter, r *http.Request) {
	if a.events == nil {
		respondError(w, r, http.StatusServiceUnavailable, "streaming disabled")
		return
	}
	rc := http.NewResponseController(w)
	// The server write timeout would otherwise cut the stream.
	_ = rc.SetWriteDeadline(time.Time{})

	w.Header().Set("Content-Type", "text/event-stream")
	w.Header().Set("Cache-Control", "no-cache")
	w.Header().Set("Connection", "keep-alive")
	w.WriteHeader(http.StatusOK)

	ch := a.events.Subscribe(r.Context())

	// Send an initial comment to establish the stream
	_, _ = w.Write([]byte(": stream started\n\n"))
	if err := rc.Flush(); err != nil {
		a.log.WithError(err).Warn("event stream: flush unsupported")
		return
	}

	for ev := range ch {
		payload, err := json.Marshal(ev)
		if err != nil {
			continue
		}
		_, _ = w.Write([]byte("event: account.status\ndata: "))
		_, _ = w.Write(payload)
		_, _ = w.Write([]byte("\n\n"))
		if err := rc.Flush(); err != nil {
			return
		}
	}
}
