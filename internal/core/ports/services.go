package ports

import (
	"context"
	"io"

	"github.com/lorrc/front-desk-backend/internal/core/domain"
)

// CreateTicketParams defines the required input for taking a new ticket.
type CreateTicketParams struct {
	Name     string
	Services []string
	Category string
}

// ServeParams defines the input for serving a ticket's current step. Station
// identifies the counter confirming the serve.
type ServeParams struct {
	TicketID int64
	Station  string
}

// ReassignParams defines the input for the staff reassign override.
type ReassignParams struct {
	TicketID int64
	Station  string
}

// RequestCancelParams defines the input for a visitor cancellation request.
type RequestCancelParams struct {
	TicketID int64
	Reason   string
}

// CallNextResult is the outcome of a dispatch attempt. Found is false when
// the station's queue is empty.
type CallNextResult struct {
	Ticket *domain.Ticket
	Found  bool
}

// ServeResult reports whether the ticket advanced to another station or
// completed its plan.
type ServeResult struct {
	Completed    bool
	NextStation  string
	ServiceIndex int
}

// QueueService owns every ticket state transition and emits one notification
// event per applied transition.
type QueueService interface {
	Create(ctx context.Context, params CreateTicketParams) (*domain.Ticket, error)
	GetTicket(ctx context.Context, id int64) (*domain.Ticket, error)
	CallNext(ctx context.Context, station string) (*CallNextResult, error)
	Serve(ctx context.Context, params ServeParams) (*ServeResult, error)
	Hold(ctx context.Context, id int64) error
	Recall(ctx context.Context, id int64) error
	Reassign(ctx context.Context, params ReassignParams) (*domain.Ticket, error)
	Delete(ctx context.Context, id int64) error
	RequestCancel(ctx context.Context, params RequestCancelParams) error
	ClearCancel(ctx context.Context, id int64) error

	// Shutdown drains in-flight event broadcasts.
	Shutdown()
}

// SnapshotService serves the derived read-only projections.
type SnapshotService interface {
	Queue(ctx context.Context) ([]*domain.Ticket, error)
	Stats(ctx context.Context) (*domain.QueueStats, error)
	ExportCSV(ctx context.Context, w io.Writer) error
}

// EventBroadcaster defines the port for pushing transition events to live
// subscribers. Delivery is best-effort; a slow subscriber never fails the
// triggering operation.
type EventBroadcaster interface {
	Broadcast(event domain.Event) error
}
