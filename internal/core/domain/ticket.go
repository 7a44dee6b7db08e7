package domain

import (
	"errors"
	"fmt"
	"strings"
	"time"
)

// Pre-defined errors for lifecycle rule violations.
var (
	ErrServicesRequired = errors.New("at least one service is required")
	ErrTicketServed     = errors.New("ticket is already served")
	ErrNoCurrentStep    = errors.New("ticket has no current service step")
	ErrWrongStation     = errors.New("ticket is not currently at this station")
	ErrNotCalled        = errors.New("ticket is not called at this station")
	ErrStationNotInPlan = errors.New("ticket plan does not include the target station")
)

// TicketStatus represents the possible states of a ticket.
type TicketStatus string

const (
	StatusWaiting         TicketStatus = "waiting"
	StatusCalled          TicketStatus = "called"
	StatusHold            TicketStatus = "hold"
	StatusServed          TicketStatus = "served"
	StatusCancelRequested TicketStatus = "cancel_requested"
)

// Ticket is the core domain entity: a visitor's request carrying an ordered
// multi-station service plan and a cursor into it.
type Ticket struct {
	ID           int64
	Name         string
	Category     string
	Services     []string
	ServiceIndex int
	Status       TicketStatus

	// CalledService is set exactly while Status is StatusCalled and always
	// equals Services[ServiceIndex].
	CalledService string

	// ServiceArrival marks when the ticket entered the waiting pool for its
	// current step. It is the dispatch ordering key and restarts on every
	// cursor advance.
	ServiceArrival time.Time

	CreatedAt time.Time
	UpdatedAt *time.Time
	ServedAt  *time.Time

	CancelRequested   bool
	CancelReason      string
	CancelRequestedAt *time.Time

	// Version guards concurrent updates; the store rejects writes carrying a
	// stale version.
	Version int64
}

// NewTicket is a factory function to create a valid new ticket in the
// waiting state at step 0.
func NewTicket(name string, services []string, category string) (*Ticket, error) {
	plan := make([]string, 0, len(services))
	for _, s := range services {
		if trimmed := strings.TrimSpace(s); trimmed != "" {
			plan = append(plan, trimmed)
		}
	}
	if len(plan) == 0 {
		return nil, ErrServicesRequired
	}

	now := time.Now().UTC()
	return &Ticket{
		Name:           name,
		Category:       category,
		Services:       plan,
		ServiceIndex:   0,
		Status:         StatusWaiting,
		ServiceArrival: now,
		CreatedAt:      now,
	}, nil
}

// CurrentStation returns the station named at the ticket's plan cursor, or
// false when the cursor is out of bounds (served or corrupt plan).
func (t *Ticket) CurrentStation() (string, bool) {
	if t.Status == StatusServed {
		return "", false
	}
	if t.ServiceIndex < 0 || t.ServiceIndex >= len(t.Services) {
		return "", false
	}
	return t.Services[t.ServiceIndex], true
}

// IsTerminal reports whether no further transitions are permitted.
func (t *Ticket) IsTerminal() bool {
	return t.Status == StatusServed
}

// Call marks the ticket as called at its current step. The dispatch claim
// normally performs this in the store; the method exists for recall and for
// exercising the lifecycle in memory.
func (t *Ticket) Call(now time.Time) error {
	station, ok := t.CurrentStation()
	if !ok {
		return ErrNoCurrentStep
	}
	t.Status = StatusCalled
	t.CalledService = station
	t.touch(now)
	return nil
}

// Advance serves the ticket's current step on behalf of station. It either
// moves the cursor to the next step (re-entering the waiting pool with a
// fresh arrival stamp) or completes the ticket when the last step was
// served. The returned bool is true on completion.
//
// Preconditions are checked in order and fail with distinct errors: the
// ticket must have a current step, station must equal it, and the ticket
// must have been called there first.
func (t *Ticket) Advance(station string, now time.Time) (bool, error) {
	current, ok := t.CurrentStation()
	if !ok {
		return false, ErrNoCurrentStep
	}
	if station != current {
		return false, ErrWrongStation
	}
	if t.Status != StatusCalled || t.CalledService != current {
		return false, ErrNotCalled
	}

	next := t.ServiceIndex + 1
	if next < len(t.Services) {
		t.ServiceIndex = next
		t.Status = StatusWaiting
		t.CalledService = ""
		t.ServiceArrival = now
		t.touch(now)
		return false, nil
	}

	t.Status = StatusServed
	t.CalledService = ""
	served := now
	t.ServedAt = &served
	t.touch(now)
	return true, nil
}

// Hold parks the ticket, relinquishing any active call.
func (t *Ticket) Hold(now time.Time) error {
	if t.IsTerminal() {
		return ErrTicketServed
	}
	t.Status = StatusHold
	t.CalledService = ""
	t.touch(now)
	return nil
}

// Recall reverses Hold: the ticket is called again at its current step
// without moving the cursor.
func (t *Ticket) Recall(now time.Time) error {
	return t.Call(now)
}

// ReassignTo moves the cursor directly to where station occurs in the
// existing plan and calls the ticket there. Stations outside the plan are
// rejected.
func (t *Ticket) ReassignTo(station string, now time.Time) error {
	if t.IsTerminal() {
		return ErrTicketServed
	}
	idx := -1
	for i, s := range t.Services {
		if s == station {
			idx = i
			break
		}
	}
	if idx == -1 {
		return ErrStationNotInPlan
	}
	t.ServiceIndex = idx
	t.Status = StatusCalled
	t.CalledService = station
	t.ServiceArrival = now
	t.touch(now)
	return nil
}

// FlagCancel records a visitor's cancellation request. The flag is advisory:
// staff can still call, serve, hold, or delete the ticket. An active call is
// released so the called/calledService pairing stays consistent.
func (t *Ticket) FlagCancel(reason string, now time.Time) error {
	if t.IsTerminal() {
		return ErrTicketServed
	}
	t.CancelRequested = true
	t.CancelReason = strings.TrimSpace(reason)
	requested := now
	t.CancelRequestedAt = &requested
	t.Status = StatusCancelRequested
	t.CalledService = ""
	t.touch(now)
	return nil
}

// ClearCancel resolves a cancellation request without deleting the ticket.
// The ticket rejoins the waiting pool at the back of its station's queue.
func (t *Ticket) ClearCancel(now time.Time) error {
	if t.IsTerminal() {
		return ErrTicketServed
	}
	t.CancelRequested = false
	t.CancelReason = ""
	t.CancelRequestedAt = nil
	t.Status = StatusWaiting
	t.CalledService = ""
	t.ServiceArrival = now
	t.touch(now)
	return nil
}

func (t *Ticket) touch(now time.Time) {
	updated := now
	t.UpdatedAt = &updated
}

// Token returns the numeric display token, zero-padded to three digits.
func (t *Ticket) Token() string {
	return fmt.Sprintf("%03d", t.ID)
}

// stationPrefixes maps well-known stations to their display prefix.
var stationPrefixes = map[string]string{
	"registrar":  "R",
	"cashier":    "C",
	"admissions": "A",
	"records":    "D",
}

// StationPrefix returns the display prefix for a station, falling back to
// its upper-cased first letter.
func StationPrefix(station string) string {
	if p, ok := stationPrefixes[station]; ok {
		return p
	}
	if station == "" {
		return ""
	}
	return strings.ToUpper(station[:1])
}

// DisplayToken combines the current station's prefix with the numeric token,
// e.g. "C014" for a ticket waiting at the cashier.
func (t *Ticket) DisplayToken() string {
	station, ok := t.CurrentStation()
	if !ok {
		return t.Token()
	}
	return StationPrefix(station) + t.Token()
}
