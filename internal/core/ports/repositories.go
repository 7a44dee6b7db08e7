package ports

import (
	"context"
	"time"

	"github.com/lorrc/front-desk-backend/internal/core/domain"
)

// TicketRepository is the port for ticket persistence. All reads return the
// current row version so callers can perform conditional writes.
type TicketRepository interface {
	// Create persists a new ticket and returns it with its assigned id.
	Create(ctx context.Context, ticket *domain.Ticket) (*domain.Ticket, error)

	// GetByID returns a ticket or errors.ErrTicketNotFound.
	GetByID(ctx context.Context, id int64) (*domain.Ticket, error)

	// Update persists changes conditionally on the ticket's Version and
	// bumps it. A stale version yields errors.ErrVersionConflict.
	Update(ctx context.Context, ticket *domain.Ticket) (*domain.Ticket, error)

	// Delete removes the ticket unconditionally and returns its last
	// snapshot for downstream display cleanup.
	Delete(ctx context.Context, id int64) (*domain.Ticket, error)

	// ClaimNext atomically selects and calls the oldest waiting ticket whose
	// current step is station. The bool is false when the station's queue is
	// empty; that is a normal condition, not an error. Two concurrent claims
	// for one station never win the same ticket.
	ClaimNext(ctx context.Context, station string, now time.Time) (*domain.Ticket, bool, error)

	// ListAll returns every ticket ordered by id ascending.
	ListAll(ctx context.Context) ([]*domain.Ticket, error)

	// CountByStatus computes the waiting/served projection.
	CountByStatus(ctx context.Context) (*domain.QueueStats, error)
}

// TransactionManager defines the port for running atomic operations.
type TransactionManager interface {
	WithTransaction(ctx context.Context, fn func(ctx context.Context) error) error
}
