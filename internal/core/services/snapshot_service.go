package services

import (
	"context"
	"encoding/csv"
	"encoding/json"
	"io"
	"strconv"
	"time"

	"github.com/lorrc/front-desk-backend/internal/core/domain"
	"github.com/lorrc/front-desk-backend/internal/core/ports"
)

// SnapshotService serves the derived read-only projections: the full queue
// listing, waiting/served counts, and the CSV dump. Nothing here mutates
// ticket state.
type SnapshotService struct {
	ticketRepo ports.TicketRepository
}

var _ ports.SnapshotService = (*SnapshotService)(nil)

// NewSnapshotService creates a new snapshot service.
func NewSnapshotService(ticketRepo ports.TicketRepository) *SnapshotService {
	return &SnapshotService{ticketRepo: ticketRepo}
}

// Queue returns all tickets ordered by id.
func (s *SnapshotService) Queue(ctx context.Context) ([]*domain.Ticket, error) {
	return s.ticketRepo.ListAll(ctx)
}

// Stats computes the waiting/served counts.
func (s *SnapshotService) Stats(ctx context.Context) (*domain.QueueStats, error) {
	return s.ticketRepo.CountByStatus(ctx)
}

var csvHeader = []string{
	"id", "token", "name", "services", "category", "called_service",
	"status", "cancel_requested", "cancel_reason",
	"created_at", "updated_at", "served_at",
}

// ExportCSV writes the full ticket table as CSV.
func (s *SnapshotService) ExportCSV(ctx context.Context, w io.Writer) error {
	tickets, err := s.ticketRepo.ListAll(ctx)
	if err != nil {
		return err
	}

	cw := csv.NewWriter(w)
	if err := cw.Write(csvHeader); err != nil {
		return err
	}

	for _, t := range tickets {
		services, err := json.Marshal(t.Services)
		if err != nil {
			return err
		}
		record := []string{
			strconv.FormatInt(t.ID, 10),
			t.Token(),
			t.Name,
			string(services),
			t.Category,
			t.CalledService,
			string(t.Status),
			strconv.FormatBool(t.CancelRequested),
			t.CancelReason,
			formatTime(&t.CreatedAt),
			formatTime(t.UpdatedAt),
			formatTime(t.ServedAt),
		}
		if err := cw.Write(record); err != nil {
			return err
		}
	}

	cw.Flush()
	return cw.Error()
}

func formatTime(t *time.Time) string {
	if t == nil || t.IsZero() {
		return ""
	}
	return t.UTC().Format(time.RFC3339)
}
