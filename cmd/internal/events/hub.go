// Package events fans IRN lifecycle notifications out to WebSocket
// subscribers. Delivery is best-effort: a slow consumer drops events rather
// than blocking the IRN core.
package events

import (
	"context"
	"log/slog"
	"sync"

	"firsgate/cmd/internal/irn"
)

const defaultSubscriberBuffer = 64

// Hub is the in-process fan-out point. It implements irn.Publisher.
type Hub struct {
	log *slog.Logger

	mu   sync.RWMutex
	subs map[*subscriber]struct{}
}

type subscriber struct {
	ch chan irn.Event
}

// NewHub constructs a Hub instance.
func NewHub(log *slog.Logger) *Hub {
	if log == nil {
		log = slog.Default()
	}
	return &Hub{
		log:  log,
		subs: make(map[*subscriber]struct{}),
	}
}

// Publish delivers an event to every subscriber without blocking.
func (h *Hub) Publish(_ context.Context, ev irn.Event) {
	if h == nil {
		return
	}

	h.mu.RLock()
	defer h.mu.RUnlock()

	for sub := range h.subs {
		select {
		case sub.ch <- ev:
		default:
			// Slow consumer: drop rather than stall the publisher.
			h.log.Debug("events.drop", "kind", ev.Kind)
		}
	}
}

// Subscribe registers a new subscriber and returns its channel plus a
// cancel function. The channel is closed on cancel.
func (h *Hub) Subscribe(buffer int) (<-chan irn.Event, func()) {
	if buffer <= 0 {
		buffer = defaultSubscriberBuffer
	}
	sub := &subscriber{ch: make(chan irn.Event, buffer)}

	h.mu.Lock()
	h.subs[sub] = struct{}{}
	h.mu.Unlock()

	var once sync.Once
	cancel := func() {
		once.Do(func() {
			h.mu.Lock()
			delete(h.subs, sub)
			h.mu.Unlock()
			close(sub.ch)
		})
	}
	return sub.ch, cancel
}

// Subscribers reports the current subscriber count.
func (h *Hub) Subscribers() int {
	h.mu.RLock()
	defer h.mu.RUnlock()
	return len(h.subs)
}
