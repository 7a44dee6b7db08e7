package postgres

import (
	"context"
	"database/sql"
	"encoding/json"
	"errors"
	"log/slog"
	"time"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"

	"github.com/lorrc/front-desk-backend/internal/core/domain"
	apperrors "github.com/lorrc/front-desk-backend/internal/core/errors"
	"github.com/lorrc/front-desk-backend/internal/core/ports"
)

// TicketRepository is the secondary adapter for ticket persistence.
type TicketRepository struct {
	pool   *pgxpool.Pool
	logger *slog.Logger
}

// Ensure TicketRepository implements the ports.TicketRepository interface.
var _ ports.TicketRepository = (*TicketRepository)(nil)

// NewTicketRepository creates a new ticket repository.
func NewTicketRepository(pool *pgxpool.Pool, logger *slog.Logger) *TicketRepository {
	return &TicketRepository{
		pool:   pool,
		logger: logger.With("component", "ticket_repository"),
	}
}

const ticketColumns = `
	id, name, category, services, service_index, status, called_service,
	service_arrival, created_at, updated_at, served_at,
	cancel_requested, cancel_reason, cancel_requested_at, version`

// scanTicket maps one row onto the domain entity. A services column holding
// invalid JSON yields an empty plan and a warning; the read path never
// fails on a corrupt plan.
func (r *TicketRepository) scanTicket(row pgx.Row) (*domain.Ticket, error) {
	var (
		t            domain.Ticket
		name         sql.NullString
		category     sql.NullString
		servicesRaw  []byte
		calledSvc    sql.NullString
		arrival      sql.NullTime
		updatedAt    sql.NullTime
		servedAt     sql.NullTime
		cancelReason sql.NullString
		cancelAt     sql.NullTime
	)

	err := row.Scan(
		&t.ID, &name, &category, &servicesRaw, &t.ServiceIndex, &t.Status, &calledSvc,
		&arrival, &t.CreatedAt, &updatedAt, &servedAt,
		&t.CancelRequested, &cancelReason, &cancelAt, &t.Version,
	)
	if err != nil {
		return nil, err
	}

	t.Name = name.String
	t.Category = category.String
	t.CalledService = calledSvc.String
	t.CancelReason = cancelReason.String
	if arrival.Valid {
		t.ServiceArrival = arrival.Time
	}
	if updatedAt.Valid {
		t.UpdatedAt = &updatedAt.Time
	}
	if servedAt.Valid {
		t.ServedAt = &servedAt.Time
	}
	if cancelAt.Valid {
		t.CancelRequestedAt = &cancelAt.Time
	}

	if len(servicesRaw) > 0 {
		if err := json.Unmarshal(servicesRaw, &t.Services); err != nil {
			r.logger.Warn("ticket has unparseable services plan, treating as empty",
				"ticket_id", t.ID,
				"error", err,
			)
			t.Services = []string{}
		}
	} else {
		t.Services = []string{}
	}

	return &t, nil
}

// Create persists a new ticket entity.
func (r *TicketRepository) Create(ctx context.Context, ticket *domain.Ticket) (*domain.Ticket, error) {
	services, err := json.Marshal(ticket.Services)
	if err != nil {
		return nil, err
	}

	q := GetDBTX(ctx, r.pool)
	row := q.QueryRow(ctx, `
		INSERT INTO tickets (name, category, services, service_index, status, service_arrival, created_at)
		VALUES ($1, $2, $3, $4, $5, $6, $7)
		RETURNING `+ticketColumns,
		ticket.Name, ticket.Category, services, ticket.ServiceIndex,
		string(ticket.Status), ticket.ServiceArrival, ticket.CreatedAt,
	)
	return r.scanTicket(row)
}

// GetByID retrieves a single ticket by its ID.
func (r *TicketRepository) GetByID(ctx context.Context, id int64) (*domain.Ticket, error) {
	q := GetDBTX(ctx, r.pool)
	row := q.QueryRow(ctx, `SELECT `+ticketColumns+` FROM tickets WHERE id = $1`, id)

	ticket, err := r.scanTicket(row)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, apperrors.ErrTicketNotFound
		}
		return nil, err
	}
	return ticket, nil
}

// Update persists changes to an existing ticket conditionally on the
// version the caller read. Zero rows updated means either the ticket is
// gone or someone else won the write.
func (r *TicketRepository) Update(ctx context.Context, ticket *domain.Ticket) (*domain.Ticket, error) {
	q := GetDBTX(ctx, r.pool)
	row := q.QueryRow(ctx, `
		UPDATE tickets
		SET service_index = $1,
		    status = $2,
		    called_service = $3,
		    service_arrival = $4,
		    updated_at = $5,
		    served_at = $6,
		    cancel_requested = $7,
		    cancel_reason = $8,
		    cancel_requested_at = $9,
		    version = version + 1
		WHERE id = $10 AND version = $11
		RETURNING `+ticketColumns,
		ticket.ServiceIndex, string(ticket.Status), ticket.CalledService,
		ticket.ServiceArrival, ticket.UpdatedAt, ticket.ServedAt,
		ticket.CancelRequested, ticket.CancelReason, ticket.CancelRequestedAt,
		ticket.ID, ticket.Version,
	)

	updated, err := r.scanTicket(row)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			// Distinguish a vanished row from a lost race.
			if _, getErr := r.GetByID(ctx, ticket.ID); getErr != nil {
				return nil, getErr
			}
			return nil, apperrors.ErrVersionConflict
		}
		return nil, err
	}

	ticket.Version = updated.Version
	return updated, nil
}

// Delete removes the ticket unconditionally and returns its last snapshot.
func (r *TicketRepository) Delete(ctx context.Context, id int64) (*domain.Ticket, error) {
	q := GetDBTX(ctx, r.pool)
	row := q.QueryRow(ctx, `DELETE FROM tickets WHERE id = $1 RETURNING `+ticketColumns, id)

	ticket, err := r.scanTicket(row)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, apperrors.ErrTicketNotFound
		}
		return nil, err
	}
	return ticket, nil
}

// ClaimNext atomically claims the oldest waiting ticket whose current plan
// step is station. The subselect locks the candidate row with SKIP LOCKED,
// so two concurrent claims for one station can never transition the same
// ticket: the loser either claims the next-oldest or finds the queue empty.
func (r *TicketRepository) ClaimNext(ctx context.Context, station string, now time.Time) (*domain.Ticket, bool, error) {
	q := GetDBTX(ctx, r.pool)
	row := q.QueryRow(ctx, `
		UPDATE tickets
		SET status = $1,
		    called_service = $2,
		    updated_at = $3,
		    version = version + 1
		WHERE id = (
			SELECT id FROM tickets
			WHERE status = $4 AND services ->> service_index = $2
			ORDER BY service_arrival ASC, id ASC
			FOR UPDATE SKIP LOCKED
			LIMIT 1
		)
		RETURNING `+ticketColumns,
		string(domain.StatusCalled), station, now, string(domain.StatusWaiting),
	)

	ticket, err := r.scanTicket(row)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, false, nil
		}
		return nil, false, err
	}
	return ticket, true, nil
}

// ListAll retrieves every ticket ordered by id ascending.
func (r *TicketRepository) ListAll(ctx context.Context) ([]*domain.Ticket, error) {
	q := GetDBTX(ctx, r.pool)
	rows, err := q.Query(ctx, `SELECT `+ticketColumns+` FROM tickets ORDER BY id ASC`)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var tickets []*domain.Ticket
	for rows.Next() {
		ticket, err := r.scanTicket(rows)
		if err != nil {
			return nil, err
		}
		tickets = append(tickets, ticket)
	}
	if err := rows.Err(); err != nil {
		return nil, err
	}
	return tickets, nil
}

// CountByStatus computes the waiting/served projection.
func (r *TicketRepository) CountByStatus(ctx context.Context) (*domain.QueueStats, error) {
	q := GetDBTX(ctx, r.pool)
	row := q.QueryRow(ctx, `
		SELECT
			COUNT(*) FILTER (WHERE status = $1),
			COUNT(*) FILTER (WHERE status = $2)
		FROM tickets`,
		string(domain.StatusWaiting), string(domain.StatusServed),
	)

	var stats domain.QueueStats
	if err := row.Scan(&stats.Waiting, &stats.Served); err != nil {
		return nil, err
	}
	return &stats, nil
}
