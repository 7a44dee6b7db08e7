// Package realtime fans ticket transition events out to live subscribers
// (SSE streams and WebSocket dashboards). Delivery is best-effort per
// subscriber: a full buffer drops the event for that subscriber only, and a
// disconnected subscriber is pruned on unsubscribe.
package realtime

import (
	"log/slog"
	"sync"

	"github.com/google/uuid"

	"github.com/lorrc/front-desk-backend/internal/core/domain"
	"github.com/lorrc/front-desk-backend/internal/core/ports"
)

const defaultSendBuffer = 64

// Subscriber is one live consumer of the event stream.
type Subscriber struct {
	ID string

	events    chan domain.Event
	closeOnce sync.Once
}

// Events returns the subscriber's receive channel. It is closed when the
// subscriber is removed from the hub.
func (s *Subscriber) Events() <-chan domain.Event {
	return s.events
}

func (s *Subscriber) close() {
	s.closeOnce.Do(func() {
		close(s.events)
	})
}

// Hub maintains the set of active subscribers and broadcasts events to them.
type Hub struct {
	mu          sync.RWMutex
	subscribers map[string]*Subscriber
	sendBuffer  int
	logger      *slog.Logger
}

// Ensure Hub implements the EventBroadcaster interface.
var _ ports.EventBroadcaster = (*Hub)(nil)

// NewHub creates a new event hub. sendBuffer is the per-subscriber channel
// capacity; zero selects the default.
func NewHub(logger *slog.Logger, sendBuffer int) *Hub {
	if sendBuffer <= 0 {
		sendBuffer = defaultSendBuffer
	}
	return &Hub{
		subscribers: make(map[string]*Subscriber),
		sendBuffer:  sendBuffer,
		logger:      logger.With("component", "realtime_hub"),
	}
}

// Subscribe registers a new subscriber and returns its handle.
func (h *Hub) Subscribe() *Subscriber {
	sub := &Subscriber{
		ID:     uuid.NewString(),
		events: make(chan domain.Event, h.sendBuffer),
	}

	h.mu.Lock()
	h.subscribers[sub.ID] = sub
	total := len(h.subscribers)
	h.mu.Unlock()

	h.logger.Info("subscriber connected", "subscriber_id", sub.ID, "total", total)
	return sub
}

// Unsubscribe removes a subscriber and closes its channel.
func (h *Hub) Unsubscribe(id string) {
	h.mu.Lock()
	sub, ok := h.subscribers[id]
	if ok {
		delete(h.subscribers, id)
	}
	total := len(h.subscribers)
	h.mu.Unlock()

	if !ok {
		return
	}
	sub.close()
	h.logger.Info("subscriber disconnected", "subscriber_id", id, "remaining", total)
}

// Broadcast delivers an event to every subscriber. A subscriber whose buffer
// is full misses the event; it never blocks emission to the others.
func (h *Hub) Broadcast(event domain.Event) error {
	// Sends stay under the read lock so Unsubscribe cannot close a channel
	// mid-broadcast. Sends never block, so the lock is held only briefly.
	h.mu.RLock()
	defer h.mu.RUnlock()

	for _, sub := range h.subscribers {
		select {
		case sub.events <- event:
		default:
			h.logger.Warn("subscriber buffer full, dropping event",
				"subscriber_id", sub.ID,
				"event_type", event.Type,
				"ticket_id", event.TicketID,
			)
		}
	}

	return nil
}

// SubscriberCount returns the number of connected subscribers.
func (h *Hub) SubscriberCount() int {
	h.mu.RLock()
	defer h.mu.RUnlock()
	return len(h.subscribers)
}
