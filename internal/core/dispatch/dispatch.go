// Package dispatch decides which waiting ticket a station calls next.
//
// Selection is a pure function over a ticket snapshot so the ordering rules
// can be tested without a store; the postgres adapter runs the same rules in
// SQL when claiming a ticket atomically.
package dispatch

import "github.com/lorrc/front-desk-backend/internal/core/domain"

// Eligible reports whether a ticket is in the waiting pool for station:
// waiting status and the plan cursor pointing at station. A plan listing the
// same station twice yields two independent dispatch opportunities, one per
// cursor position.
func Eligible(t *domain.Ticket, station string) bool {
	if t.Status != domain.StatusWaiting {
		return false
	}
	current, ok := t.CurrentStation()
	return ok && current == station
}

// SelectNext picks the single best-next ticket for station: strict FIFO per
// station by ServiceArrival ascending, ties broken by lowest id. Returns nil
// when no ticket is eligible. Selection never mutates.
func SelectNext(tickets []*domain.Ticket, station string) *domain.Ticket {
	var best *domain.Ticket
	for _, t := range tickets {
		if !Eligible(t, station) {
			continue
		}
		if best == nil || arrivesBefore(t, best) {
			best = t
		}
	}
	return best
}

func arrivesBefore(a, b *domain.Ticket) bool {
	if a.ServiceArrival.Equal(b.ServiceArrival) {
		return a.ID < b.ID
	}
	return a.ServiceArrival.Before(b.ServiceArrival)
}
