// Package stream fans committed account status transitions out to live
// subscribers such as the admin console's event feed.
package stream

import (
	"context"
	"sync"
	"sync/atomic"
	"time"

	"dispatchdesk.io/internal/access"
)

const defaultBuffer = 16

// Event is the wire form of one status transition.
type Event struct {
	AccountID string        `json:"account_id"`
	From      access.Status `json:"from"`
	To        access.Status `json:"to"`
	Cause     access.Cause  `json:"cause"`
	Actor     string        `json:"actor_id,omitempty"`
	Reason    string        `json:"reason,omitempty"`
	At        time.Time     `json:"at"`
}

// Hub delivers events to every subscriber. Slow subscribers lose events
// rather than block the writer that committed the transition.
type Hub struct {
	mu      sync.RWMutex
	subs    map[int]chan Event
	next    int
	buffer  int
	dropped atomic.Uint64
}

var _ access.Observer = (*Hub)(nil)

// New returns an empty Hub. buffer <= 0 uses the default channel size.
func New(buffer int) *Hub {
	if buffer <= 0 {
		buffer = defaultBuffer
	}
	return &Hub{subs: make(map[int]chan Event), buffer: buffer}
}

// Subscribe registers a subscriber and returns a channel which will receive events.
// The channel is closed when the provided context ends.
func (h *Hub) Subscribe(ctx context.Context) <-chan Event {
	ch := make(chan Event, h.buffer)

	h.mu.Lock()
	id := h.next
	h.next++
	h.subs[id] = ch
	h.mu.Unlock()

	go func() {
		<-ctx.Done()
		h.mu.Lock()
		delete(h.subs, id)
		close(ch)
		h.mu.Unlock()
	}()

	return ch
}

// Publish fans ev out to all subscribers.
func (h *Hub) Publish(ev Event) {
	h.mu.RLock()
	defer h.mu.RUnlock()
	for _, ch := range h.subs {
		select {
		case ch <- ev:
		default:
			h.dropped.Add(1)
		}
	}
}

// Subscribers reports the number of live subscribers.
func (h *Hub) Subscribers() int {
	h.mu.RLock()
	defer h.mu.RUnlock()
	return len(h.subs)
}

// Dropped reports how many deliveries were skipped for slow subscribers.
func (h *Hub) Dropped() uint64 {
	return h.dropped.Load()
}

func (h *Hub) ObserveDecision(context.Context, access.DecisionEvent) {}

func (h *Hub) ObserveTransition(_ context.Context, ev access.TransitionEvent) {
	h.Publish(Event{
		AccountID: ev.AccountID,
		From:      ev.From,
		To:        ev.To,
		Cause:     ev.Cause,
		Actor:     ev.Actor,
		Reason:    ev.Reason,
		At:        ev.At,
	})
}
