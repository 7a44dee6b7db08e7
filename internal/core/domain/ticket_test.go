package domain_test

import (
	"testing"
	"time"

	"github.com/lorrc/front-desk-backend/internal/core/domain"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestNewTicket(t *testing.T) {
	tests := []struct {
		name         string
		ticketName   string
		services     []string
		category     string
		expectError  error
		wantServices []string
	}{
		{
			name:         "valid single-step plan",
			ticketName:   "Ana",
			services:     []string{"registrar"},
			wantServices: []string{"registrar"},
		},
		{
			name:         "valid multi-step plan",
			ticketName:   "Ben",
			services:     []string{"registrar", "cashier", "records"},
			category:     "enrollment",
			wantServices: []string{"registrar", "cashier", "records"},
		},
		{
			name:         "whitespace entries are dropped",
			ticketName:   "Cara",
			services:     []string{"  registrar  ", "", "   ", "cashier"},
			wantServices: []string{"registrar", "cashier"},
		},
		{
			name:        "empty plan is rejected",
			ticketName:  "Dan",
			services:    []string{},
			expectError: domain.ErrServicesRequired,
		},
		{
			name:        "all-blank plan is rejected",
			ticketName:  "Eve",
			services:    []string{"", "   "},
			expectError: domain.ErrServicesRequired,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			ticket, err := domain.NewTicket(tt.ticketName, tt.services, tt.category)

			if tt.expectError != nil {
				require.ErrorIs(t, err, tt.expectError)
				assert.Nil(t, ticket)
				return
			}

			require.NoError(t, err)
			require.NotNil(t, ticket)
			assert.Equal(t, tt.ticketName, ticket.Name)
			assert.Equal(t, tt.category, ticket.Category)
			assert.Equal(t, tt.wantServices, ticket.Services)
			assert.Equal(t, 0, ticket.ServiceIndex)
			assert.Equal(t, domain.StatusWaiting, ticket.Status)
			assert.False(t, ticket.ServiceArrival.IsZero())
			assert.False(t, ticket.CancelRequested)
		})
	}
}

func TestTicket_CurrentStation(t *testing.T) {
	ticket, err := domain.NewTicket("Ana", []string{"registrar", "cashier"}, "")
	require.NoError(t, err)

	station, ok := ticket.CurrentStation()
	require.True(t, ok)
	assert.Equal(t, "registrar", station)

	ticket.ServiceIndex = 1
	station, ok = ticket.CurrentStation()
	require.True(t, ok)
	assert.Equal(t, "cashier", station)

	ticket.Status = domain.StatusServed
	_, ok = ticket.CurrentStation()
	assert.False(t, ok)
}

func TestTicket_FullLifecycle(t *testing.T) {
	now := time.Date(2026, 3, 14, 9, 0, 0, 0, time.UTC)

	ticket, err := domain.NewTicket("Ana", []string{"registrar", "cashier"}, "enrollment")
	require.NoError(t, err)
	ticket.ID = 7

	// Call at the first station
	require.NoError(t, ticket.Call(now))
	assert.Equal(t, domain.StatusCalled, ticket.Status)
	assert.Equal(t, "registrar", ticket.CalledService)

	// Serving the first step advances the cursor and re-enters the pool
	later := now.Add(2 * time.Minute)
	completed, err := ticket.Advance("registrar", later)
	require.NoError(t, err)
	assert.False(t, completed)
	assert.Equal(t, 1, ticket.ServiceIndex)
	assert.Equal(t, domain.StatusWaiting, ticket.Status)
	assert.Empty(t, ticket.CalledService)
	assert.Equal(t, later, ticket.ServiceArrival)
	assert.Nil(t, ticket.ServedAt)

	// Call and serve the final step
	require.NoError(t, ticket.Call(later))
	completed, err = ticket.Advance("cashier", later.Add(time.Minute))
	require.NoError(t, err)
	assert.True(t, completed)
	assert.Equal(t, domain.StatusServed, ticket.Status)
	require.NotNil(t, ticket.ServedAt)
	assert.True(t, ticket.IsTerminal())

	// No further transitions on a served ticket
	assert.ErrorIs(t, ticket.Hold(later), domain.ErrTicketServed)
	assert.ErrorIs(t, ticket.ReassignTo("registrar", later), domain.ErrTicketServed)
	assert.ErrorIs(t, ticket.FlagCancel("", later), domain.ErrTicketServed)
	_, err = ticket.Advance("cashier", later)
	assert.ErrorIs(t, err, domain.ErrNoCurrentStep)
}

func TestTicket_Advance_Preconditions(t *testing.T) {
	now := time.Now().UTC()

	t.Run("wrong station", func(t *testing.T) {
		ticket, err := domain.NewTicket("Ana", []string{"registrar", "cashier"}, "")
		require.NoError(t, err)
		require.NoError(t, ticket.Call(now))

		_, err = ticket.Advance("cashier", now)
		assert.ErrorIs(t, err, domain.ErrWrongStation)
		assert.Equal(t, 0, ticket.ServiceIndex)
	})

	t.Run("not called", func(t *testing.T) {
		ticket, err := domain.NewTicket("Ana", []string{"registrar"}, "")
		require.NoError(t, err)

		_, err = ticket.Advance("registrar", now)
		assert.ErrorIs(t, err, domain.ErrNotCalled)
		assert.Equal(t, domain.StatusWaiting, ticket.Status)
	})

	t.Run("on hold counts as not called", func(t *testing.T) {
		ticket, err := domain.NewTicket("Ana", []string{"registrar"}, "")
		require.NoError(t, err)
		require.NoError(t, ticket.Call(now))
		require.NoError(t, ticket.Hold(now))

		_, err = ticket.Advance("registrar", now)
		assert.ErrorIs(t, err, domain.ErrNotCalled)
	})
}

func TestTicket_HoldAndRecall(t *testing.T) {
	now := time.Now().UTC()

	ticket, err := domain.NewTicket("Ana", []string{"registrar", "cashier"}, "")
	require.NoError(t, err)
	require.NoError(t, ticket.Call(now))

	require.NoError(t, ticket.Hold(now))
	assert.Equal(t, domain.StatusHold, ticket.Status)
	assert.Empty(t, ticket.CalledService)
	assert.Equal(t, 0, ticket.ServiceIndex)

	require.NoError(t, ticket.Recall(now))
	assert.Equal(t, domain.StatusCalled, ticket.Status)
	assert.Equal(t, "registrar", ticket.CalledService)
	assert.Equal(t, 0, ticket.ServiceIndex)
}

func TestTicket_ReassignTo(t *testing.T) {
	now := time.Now().UTC()

	ticket, err := domain.NewTicket("Ana", []string{"registrar", "cashier", "records"}, "")
	require.NoError(t, err)

	// Jump forward in the plan
	require.NoError(t, ticket.ReassignTo("records", now))
	assert.Equal(t, 2, ticket.ServiceIndex)
	assert.Equal(t, domain.StatusCalled, ticket.Status)
	assert.Equal(t, "records", ticket.CalledService)

	// Jump back again
	require.NoError(t, ticket.ReassignTo("registrar", now))
	assert.Equal(t, 0, ticket.ServiceIndex)

	// Stations outside the plan are rejected
	err = ticket.ReassignTo("admissions", now)
	assert.ErrorIs(t, err, domain.ErrStationNotInPlan)
	assert.Equal(t, 0, ticket.ServiceIndex)
}

func TestTicket_CancelFlow(t *testing.T) {
	now := time.Now().UTC()

	ticket, err := domain.NewTicket("Ana", []string{"registrar"}, "")
	require.NoError(t, err)
	require.NoError(t, ticket.Call(now))

	// Flagging a called ticket releases the call
	require.NoError(t, ticket.FlagCancel("changed my mind", now))
	assert.True(t, ticket.CancelRequested)
	assert.Equal(t, "changed my mind", ticket.CancelReason)
	assert.Equal(t, domain.StatusCancelRequested, ticket.Status)
	assert.Empty(t, ticket.CalledService)
	require.NotNil(t, ticket.CancelRequestedAt)

	// Clearing the flag re-enters the waiting pool with a fresh arrival
	arrivalBefore := ticket.ServiceArrival
	require.NoError(t, ticket.ClearCancel(now.Add(time.Minute)))
	assert.False(t, ticket.CancelRequested)
	assert.Empty(t, ticket.CancelReason)
	assert.Nil(t, ticket.CancelRequestedAt)
	assert.Equal(t, domain.StatusWaiting, ticket.Status)
	assert.True(t, ticket.ServiceArrival.After(arrivalBefore))
}

func TestTicket_DuplicateStationsInPlan(t *testing.T) {
	now := time.Now().UTC()

	// A plan can visit the same station twice
	ticket, err := domain.NewTicket("Ana", []string{"cashier", "registrar", "cashier"}, "")
	require.NoError(t, err)

	require.NoError(t, ticket.Call(now))
	completed, err := ticket.Advance("cashier", now)
	require.NoError(t, err)
	assert.False(t, completed)

	require.NoError(t, ticket.Call(now))
	completed, err = ticket.Advance("registrar", now)
	require.NoError(t, err)
	assert.False(t, completed)

	// Second cashier visit completes the plan
	require.NoError(t, ticket.Call(now))
	completed, err = ticket.Advance("cashier", now)
	require.NoError(t, err)
	assert.True(t, completed)
}

func TestTicket_Tokens(t *testing.T) {
	ticket, err := domain.NewTicket("Ana", []string{"cashier"}, "")
	require.NoError(t, err)
	ticket.ID = 14

	assert.Equal(t, "014", ticket.Token())
	assert.Equal(t, "C014", ticket.DisplayToken())

	// Served tickets fall back to the bare token
	ticket.Status = domain.StatusServed
	assert.Equal(t, "014", ticket.DisplayToken())
}

func TestStationPrefix(t *testing.T) {
	tests := []struct {
		station string
		want    string
	}{
		{"registrar", "R"},
		{"cashier", "C"},
		{"admissions", "A"},
		{"records", "D"},
		{"pharmacy", "P"},
		{"", ""},
	}

	for _, tt := range tests {
		t.Run(tt.station, func(t *testing.T) {
			assert.Equal(t, tt.want, domain.StationPrefix(tt.station))
		})
	}
}
