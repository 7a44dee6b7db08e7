package domain

import "time"

// EventType names a completed state transition pushed to live subscribers.
type EventType string

const (
	EventCreated         EventType = "created"
	EventCalled          EventType = "called"
	EventMoved           EventType = "moved"
	EventServed          EventType = "served"
	EventHold            EventType = "hold"
	EventRecalled        EventType = "recalled"
	EventReassigned      EventType = "reassigned"
	EventDeleted         EventType = "deleted"
	EventCancelRequested EventType = "cancel_requested"
	EventCancelCleared   EventType = "cancel_cleared"
)

// Event is the payload pushed over the notification stream. Consumers treat
// it as a change hint and re-fetch state rather than trusting the payload as
// the sole source of truth.
type Event struct {
	Type     EventType `json:"type"`
	TicketID int64     `json:"ticketId"`
	Payload  any       `json:"payload,omitempty"`
}

// CreatedPayload accompanies EventCreated.
type CreatedPayload struct {
	ID           int64     `json:"id"`
	Token        string    `json:"token"`
	Name         string    `json:"name,omitempty"`
	Category     string    `json:"category,omitempty"`
	Services     []string  `json:"services"`
	ServiceIndex int       `json:"serviceIndex"`
	Status       string    `json:"status"`
	CreatedAt    time.Time `json:"createdAt"`
}

// CalledPayload accompanies EventCalled and EventRecalled.
type CalledPayload struct {
	ID           int64     `json:"id"`
	Token        string    `json:"token"`
	DisplayToken string    `json:"displayToken"`
	Station      string    `json:"station"`
	Name         string    `json:"name,omitempty"`
	Category     string    `json:"category,omitempty"`
	ServiceIndex int       `json:"serviceIndex"`
	CalledAt     time.Time `json:"calledAt"`
}

// MovedPayload accompanies EventMoved: the ticket advanced a step and is
// waiting again, not done.
type MovedPayload struct {
	ID           int64     `json:"id"`
	From         string    `json:"from"`
	To           string    `json:"to"`
	ServiceIndex int       `json:"serviceIndex"`
	MovedAt      time.Time `json:"movedAt"`
}

// ServedPayload accompanies EventServed: the last step was served and the
// ticket is terminal.
type ServedPayload struct {
	ID        int64     `json:"id"`
	Station   string    `json:"station"`
	ServedAt  time.Time `json:"servedAt"`
	Completed bool      `json:"completed"`
}

// StatusPayload accompanies EventHold and EventCancelCleared.
type StatusPayload struct {
	ID int64     `json:"id"`
	At time.Time `json:"at"`
}

// ReassignedPayload accompanies EventReassigned.
type ReassignedPayload struct {
	ID           int64     `json:"id"`
	Station      string    `json:"station"`
	ServiceIndex int       `json:"serviceIndex"`
	At           time.Time `json:"at"`
}

// DeletedPayload accompanies EventDeleted; the token lets displays drop the
// ticket without a lookup.
type DeletedPayload struct {
	ID      int64  `json:"id"`
	Token   string `json:"token"`
	Station string `json:"station,omitempty"`
}

// CancelRequestedPayload accompanies EventCancelRequested.
type CancelRequestedPayload struct {
	ID          int64     `json:"id"`
	Reason      string    `json:"reason,omitempty"`
	RequestedAt time.Time `json:"requestedAt"`
}

// QueueStats is a read-only projection over ticket state.
type QueueStats struct {
	Waiting int64 `json:"waiting"`
	Served  int64 `json:"served"`
}
