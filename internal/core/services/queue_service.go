package services

import (
	"context"
	"sync"
	"time"

	"github.com/lorrc/front-desk-backend/internal/core/domain"
	"github.com/lorrc/front-desk-backend/internal/core/ports"
)

// QueueService implements the ticket lifecycle: it is the sole mutator of
// ticket state and emits one notification event per applied transition.
type QueueService struct {
	ticketRepo  ports.TicketRepository
	txManager   ports.TransactionManager
	broadcaster ports.EventBroadcaster
	now         func() time.Time
	wg          sync.WaitGroup
}

var _ ports.QueueService = (*QueueService)(nil)

// NewQueueService creates a new queue service.
func NewQueueService(
	ticketRepo ports.TicketRepository,
	txManager ports.TransactionManager,
	broadcaster ports.EventBroadcaster,
) *QueueService {
	return &QueueService{
		ticketRepo:  ticketRepo,
		txManager:   txManager,
		broadcaster: broadcaster,
		now:         func() time.Time { return time.Now().UTC() },
	}
}

// Create handles the public take-a-ticket use case.
func (s *QueueService) Create(ctx context.Context, params ports.CreateTicketParams) (*domain.Ticket, error) {
	ticket, err := domain.NewTicket(params.Name, params.Services, params.Category)
	if err != nil {
		return nil, err // Validation errors are returned here
	}

	created, err := s.ticketRepo.Create(ctx, ticket)
	if err != nil {
		return nil, err
	}

	s.publish(domain.Event{
		Type:     domain.EventCreated,
		TicketID: created.ID,
		Payload: domain.CreatedPayload{
			ID:           created.ID,
			Token:        created.Token(),
			Name:         created.Name,
			Category:     created.Category,
			Services:     created.Services,
			ServiceIndex: created.ServiceIndex,
			Status:       string(created.Status),
			CreatedAt:    created.CreatedAt,
		},
	})
	return created, nil
}

// GetTicket returns the authoritative record for a single ticket.
func (s *QueueService) GetTicket(ctx context.Context, id int64) (*domain.Ticket, error) {
	return s.ticketRepo.GetByID(ctx, id)
}

// CallNext dispatches the oldest waiting ticket for station. An empty queue
// is a normal outcome reported through CallNextResult.Found, not an error.
// The claim is a single atomic store operation, so concurrent calls for the
// same station cannot win the same ticket.
func (s *QueueService) CallNext(ctx context.Context, station string) (*ports.CallNextResult, error) {
	ticket, found, err := s.ticketRepo.ClaimNext(ctx, station, s.now())
	if err != nil {
		return nil, err
	}
	if !found {
		return &ports.CallNextResult{Found: false}, nil
	}

	s.publish(calledEvent(domain.EventCalled, ticket))
	return &ports.CallNextResult{Ticket: ticket, Found: true}, nil
}

// Serve confirms the ticket's current step was handled at params.Station and
// either advances the ticket to its next step or completes it.
func (s *QueueService) Serve(ctx context.Context, params ports.ServeParams) (*ports.ServeResult, error) {
	var result *ports.ServeResult
	var event domain.Event

	err := s.txManager.WithTransaction(ctx, func(ctx context.Context) error {
		ticket, err := s.ticketRepo.GetByID(ctx, params.TicketID)
		if err != nil {
			return err
		}

		from, _ := ticket.CurrentStation()
		now := s.now()
		completed, err := ticket.Advance(params.Station, now)
		if err != nil {
			return err
		}

		if _, err := s.ticketRepo.Update(ctx, ticket); err != nil {
			return err
		}

		if completed {
			result = &ports.ServeResult{Completed: true}
			event = domain.Event{
				Type:     domain.EventServed,
				TicketID: ticket.ID,
				Payload: domain.ServedPayload{
					ID:        ticket.ID,
					Station:   from,
					ServedAt:  now,
					Completed: true,
				},
			}
			return nil
		}

		next, _ := ticket.CurrentStation()
		result = &ports.ServeResult{NextStation: next, ServiceIndex: ticket.ServiceIndex}
		// A mid-plan serve is a move, never a terminal served event:
		// subscribers must not mistake an advancing ticket for a done one.
		event = domain.Event{
			Type:     domain.EventMoved,
			TicketID: ticket.ID,
			Payload: domain.MovedPayload{
				ID:           ticket.ID,
				From:         from,
				To:           next,
				ServiceIndex: ticket.ServiceIndex,
				MovedAt:      now,
			},
		}
		return nil
	})
	if err != nil {
		return nil, err
	}

	s.publish(event)
	return result, nil
}

// Hold parks a ticket from any non-terminal status.
func (s *QueueService) Hold(ctx context.Context, id int64) error {
	return s.transition(ctx, id, func(t *domain.Ticket, now time.Time) (domain.Event, error) {
		if err := t.Hold(now); err != nil {
			return domain.Event{}, err
		}
		return domain.Event{
			Type:     domain.EventHold,
			TicketID: t.ID,
			Payload:  domain.StatusPayload{ID: t.ID, At: now},
		}, nil
	})
}

// Recall calls a held ticket again at its current step.
func (s *QueueService) Recall(ctx context.Context, id int64) error {
	return s.transition(ctx, id, func(t *domain.Ticket, now time.Time) (domain.Event, error) {
		if err := t.Recall(now); err != nil {
			return domain.Event{}, err
		}
		return calledEvent(domain.EventRecalled, t), nil
	})
}

// Reassign is the staff override that jumps the cursor to station, which
// must already occur in the ticket's plan.
func (s *QueueService) Reassign(ctx context.Context, params ports.ReassignParams) (*domain.Ticket, error) {
	var reassigned *domain.Ticket

	err := s.txManager.WithTransaction(ctx, func(ctx context.Context) error {
		ticket, err := s.ticketRepo.GetByID(ctx, params.TicketID)
		if err != nil {
			return err
		}
		if err := ticket.ReassignTo(params.Station, s.now()); err != nil {
			return err
		}
		if _, err := s.ticketRepo.Update(ctx, ticket); err != nil {
			return err
		}
		reassigned = ticket
		return nil
	})
	if err != nil {
		return nil, err
	}

	now := s.now()
	s.publish(domain.Event{
		Type:     domain.EventReassigned,
		TicketID: reassigned.ID,
		Payload: domain.ReassignedPayload{
			ID:           reassigned.ID,
			Station:      reassigned.CalledService,
			ServiceIndex: reassigned.ServiceIndex,
			At:           now,
		},
	})
	s.publish(calledEvent(domain.EventCalled, reassigned))
	return reassigned, nil
}

// Delete removes a ticket unconditionally, whatever its status.
func (s *QueueService) Delete(ctx context.Context, id int64) error {
	ticket, err := s.ticketRepo.Delete(ctx, id)
	if err != nil {
		return err
	}

	s.publish(domain.Event{
		Type:     domain.EventDeleted,
		TicketID: ticket.ID,
		Payload: domain.DeletedPayload{
			ID:      ticket.ID,
			Token:   ticket.Token(),
			Station: ticket.CalledService,
		},
	})
	return nil
}

// RequestCancel records a visitor's out-of-band cancellation request. It
// flags the ticket for staff attention; it does not terminate it.
func (s *QueueService) RequestCancel(ctx context.Context, params ports.RequestCancelParams) error {
	return s.transition(ctx, params.TicketID, func(t *domain.Ticket, now time.Time) (domain.Event, error) {
		if err := t.FlagCancel(params.Reason, now); err != nil {
			return domain.Event{}, err
		}
		return domain.Event{
			Type:     domain.EventCancelRequested,
			TicketID: t.ID,
			Payload: domain.CancelRequestedPayload{
				ID:          t.ID,
				Reason:      t.CancelReason,
				RequestedAt: now,
			},
		}, nil
	})
}

// ClearCancel resolves a cancellation request, returning the ticket to the
// waiting pool.
func (s *QueueService) ClearCancel(ctx context.Context, id int64) error {
	return s.transition(ctx, id, func(t *domain.Ticket, now time.Time) (domain.Event, error) {
		if err := t.ClearCancel(now); err != nil {
			return domain.Event{}, err
		}
		return domain.Event{
			Type:     domain.EventCancelCleared,
			TicketID: t.ID,
			Payload:  domain.StatusPayload{ID: t.ID, At: now},
		}, nil
	})
}

// transition runs the fetch -> domain mutation -> conditional persist cycle
// shared by the simpler operations and publishes the resulting event only
// after the transaction committed.
func (s *QueueService) transition(ctx context.Context, id int64, apply func(*domain.Ticket, time.Time) (domain.Event, error)) error {
	var event domain.Event

	err := s.txManager.WithTransaction(ctx, func(ctx context.Context) error {
		ticket, err := s.ticketRepo.GetByID(ctx, id)
		if err != nil {
			return err
		}
		event, err = apply(ticket, s.now())
		if err != nil {
			return err
		}
		_, err = s.ticketRepo.Update(ctx, ticket)
		return err
	})
	if err != nil {
		return err
	}

	s.publish(event)
	return nil
}

// publish hands an event to the broadcaster without blocking the caller's
// request. Delivery failures to individual subscribers are the hub's
// concern and never fail the operation.
func (s *QueueService) publish(event domain.Event) {
	s.wg.Add(1)
	go func() {
		defer s.wg.Done()
		_ = s.broadcaster.Broadcast(event)
	}()
}

// Shutdown waits for in-flight broadcasts to drain.
func (s *QueueService) Shutdown() {
	s.wg.Wait()
}

func calledEvent(eventType domain.EventType, t *domain.Ticket) domain.Event {
	calledAt := t.ServiceArrival
	if t.UpdatedAt != nil {
		calledAt = *t.UpdatedAt
	}
	return domain.Event{
		Type:     eventType,
		TicketID: t.ID,
		Payload: domain.CalledPayload{
			ID:           t.ID,
			Token:        t.Token(),
			DisplayToken: t.DisplayToken(),
			Station:      t.CalledService,
			Name:         t.Name,
			Category:     t.Category,
			ServiceIndex: t.ServiceIndex,
			CalledAt:     calledAt,
		},
	}
}
