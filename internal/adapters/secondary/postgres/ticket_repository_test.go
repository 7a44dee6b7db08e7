package postgres

import (
	"context"
	"io"
	"log/slog"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/lorrc/front-desk-backend/internal/core/domain"
	apperrors "github.com/lorrc/front-desk-backend/internal/core/errors"
)

func newTestRepo() *TicketRepository {
	logger := slog.New(slog.NewTextHandler(io.Discard, nil))
	return NewTicketRepository(testPool, logger)
}

func resetTickets(t *testing.T) {
	t.Helper()
	_, err := testPool.Exec(context.Background(), "TRUNCATE tickets RESTART IDENTITY")
	require.NoError(t, err)
}

// seedTicket inserts a waiting ticket with a controlled arrival stamp so
// dispatch ordering is deterministic.
func seedTicket(t *testing.T, repo *TicketRepository, name string, services []string, arrival time.Time) *domain.Ticket {
	t.Helper()

	ticket, err := domain.NewTicket(name, services, "")
	require.NoError(t, err)
	ticket.ServiceArrival = arrival
	ticket.CreatedAt = arrival

	created, err := repo.Create(context.Background(), ticket)
	require.NoError(t, err)
	return created
}

func TestTicketRepository_CreateAndGet(t *testing.T) {
	resetTickets(t)
	repo := newTestRepo()
	ctx := context.Background()

	arrival := time.Now().UTC().Truncate(time.Microsecond)
	created := seedTicket(t, repo, "Ana", []string{"registrar", "cashier"}, arrival)

	assert.Positive(t, created.ID)
	assert.Equal(t, domain.StatusWaiting, created.Status)
	assert.Equal(t, []string{"registrar", "cashier"}, created.Services)
	assert.Equal(t, int64(0), created.Version)

	fetched, err := repo.GetByID(ctx, created.ID)
	require.NoError(t, err)
	assert.Equal(t, created.ID, fetched.ID)
	assert.Equal(t, "Ana", fetched.Name)
	assert.Equal(t, []string{"registrar", "cashier"}, fetched.Services)
	assert.True(t, fetched.ServiceArrival.Equal(arrival))
	assert.Nil(t, fetched.ServedAt)
	assert.False(t, fetched.CancelRequested)
}

func TestTicketRepository_GetByID_NotFound(t *testing.T) {
	resetTickets(t)
	repo := newTestRepo()

	_, err := repo.GetByID(context.Background(), 9999)
	assert.ErrorIs(t, err, apperrors.ErrTicketNotFound)
}

func TestTicketRepository_Update(t *testing.T) {
	resetTickets(t)
	repo := newTestRepo()
	ctx := context.Background()

	created := seedTicket(t, repo, "Ana", []string{"registrar"}, time.Now().UTC())
	readVersion := created.Version

	now := time.Now().UTC()
	require.NoError(t, created.Call(now))

	updated, err := repo.Update(ctx, created)
	require.NoError(t, err)
	assert.Equal(t, domain.StatusCalled, updated.Status)
	assert.Equal(t, "registrar", updated.CalledService)
	assert.Equal(t, readVersion+1, updated.Version)
}

func TestTicketRepository_Update_VersionConflict(t *testing.T) {
	resetTickets(t)
	repo := newTestRepo()
	ctx := context.Background()

	created := seedTicket(t, repo, "Ana", []string{"registrar"}, time.Now().UTC())

	// Two staff screens load the same ticket
	first, err := repo.GetByID(ctx, created.ID)
	require.NoError(t, err)
	second, err := repo.GetByID(ctx, created.ID)
	require.NoError(t, err)

	now := time.Now().UTC()
	require.NoError(t, first.Hold(now))
	_, err = repo.Update(ctx, first)
	require.NoError(t, err)

	// The stale copy loses
	require.NoError(t, second.Hold(now))
	_, err = repo.Update(ctx, second)
	assert.ErrorIs(t, err, apperrors.ErrVersionConflict)
}

func TestTicketRepository_Update_DeletedTicket(t *testing.T) {
	resetTickets(t)
	repo := newTestRepo()
	ctx := context.Background()

	created := seedTicket(t, repo, "Ana", []string{"registrar"}, time.Now().UTC())
	_, err := repo.Delete(ctx, created.ID)
	require.NoError(t, err)

	require.NoError(t, created.Hold(time.Now().UTC()))
	_, err = repo.Update(ctx, created)
	assert.ErrorIs(t, err, apperrors.ErrTicketNotFound)
}

func TestTicketRepository_Delete(t *testing.T) {
	resetTickets(t)
	repo := newTestRepo()
	ctx := context.Background()

	created := seedTicket(t, repo, "Ana", []string{"registrar"}, time.Now().UTC())

	snapshot, err := repo.Delete(ctx, created.ID)
	require.NoError(t, err)
	assert.Equal(t, created.ID, snapshot.ID)
	assert.Equal(t, "Ana", snapshot.Name)

	_, err = repo.Delete(ctx, created.ID)
	assert.ErrorIs(t, err, apperrors.ErrTicketNotFound)
}

func TestTicketRepository_ClaimNext_FIFO(t *testing.T) {
	resetTickets(t)
	repo := newTestRepo()
	ctx := context.Background()

	base := time.Now().UTC().Truncate(time.Microsecond)

	// Out-of-order inserts; arrival decides
	seedTicket(t, repo, "late", []string{"cashier"}, base.Add(2*time.Minute))
	oldest := seedTicket(t, repo, "early", []string{"cashier"}, base)
	seedTicket(t, repo, "middle", []string{"cashier"}, base.Add(time.Minute))
	seedTicket(t, repo, "elsewhere", []string{"registrar"}, base.Add(-time.Hour))

	now := time.Now().UTC()
	claimed, found, err := repo.ClaimNext(ctx, "cashier", now)
	require.NoError(t, err)
	require.True(t, found)
	assert.Equal(t, oldest.ID, claimed.ID)
	assert.Equal(t, domain.StatusCalled, claimed.Status)
	assert.Equal(t, "cashier", claimed.CalledService)

	// A claimed ticket is no longer dispatchable
	next, found, err := repo.ClaimNext(ctx, "cashier", now)
	require.NoError(t, err)
	require.True(t, found)
	assert.Equal(t, "middle", next.Name)
}

func TestTicketRepository_ClaimNext_TieBreaksByID(t *testing.T) {
	resetTickets(t)
	repo := newTestRepo()
	ctx := context.Background()

	arrival := time.Now().UTC().Truncate(time.Microsecond)
	first := seedTicket(t, repo, "a", []string{"cashier"}, arrival)
	seedTicket(t, repo, "b", []string{"cashier"}, arrival)

	claimed, found, err := repo.ClaimNext(ctx, "cashier", time.Now().UTC())
	require.NoError(t, err)
	require.True(t, found)
	assert.Equal(t, first.ID, claimed.ID)
}

func TestTicketRepository_ClaimNext_Empty(t *testing.T) {
	resetTickets(t)
	repo := newTestRepo()

	ticket, found, err := repo.ClaimNext(context.Background(), "cashier", time.Now().UTC())
	require.NoError(t, err)
	assert.False(t, found)
	assert.Nil(t, ticket)
}

func TestTicketRepository_ClaimNext_RespectsCursor(t *testing.T) {
	resetTickets(t)
	repo := newTestRepo()
	ctx := context.Background()

	// A ticket waiting at its second step is dispatchable only there
	created := seedTicket(t, repo, "Ana", []string{"registrar", "cashier"}, time.Now().UTC())
	created.ServiceIndex = 1
	_, err := repo.Update(ctx, created)
	require.NoError(t, err)

	_, found, err := repo.ClaimNext(ctx, "registrar", time.Now().UTC())
	require.NoError(t, err)
	assert.False(t, found)

	claimed, found, err := repo.ClaimNext(ctx, "cashier", time.Now().UTC())
	require.NoError(t, err)
	require.True(t, found)
	assert.Equal(t, created.ID, claimed.ID)
}

func TestTicketRepository_ClaimNext_ConcurrentSingleWinner(t *testing.T) {
	resetTickets(t)
	repo := newTestRepo()
	ctx := context.Background()

	const tickets = 5
	const claimers = 10

	base := time.Now().UTC().Truncate(time.Microsecond)
	for i := 0; i < tickets; i++ {
		seedTicket(t, repo, "visitor", []string{"cashier"}, base.Add(time.Duration(i)*time.Second))
	}

	var (
		mu      sync.Mutex
		claimed = make(map[int64]int)
		misses  int
		errs    []error
		wg      sync.WaitGroup
	)

	for i := 0; i < claimers; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			ticket, found, err := repo.ClaimNext(ctx, "cashier", time.Now().UTC())

			mu.Lock()
			defer mu.Unlock()
			switch {
			case err != nil:
				errs = append(errs, err)
			case found:
				claimed[ticket.ID]++
			default:
				misses++
			}
		}()
	}
	wg.Wait()

	require.Empty(t, errs)

	// Every ticket was claimed exactly once; surplus claimers found nothing
	assert.Len(t, claimed, tickets)
	for id, count := range claimed {
		assert.Equal(t, 1, count, "ticket %d claimed more than once", id)
	}
	assert.Equal(t, claimers-tickets, misses)
}

func TestTicketRepository_ListAllAndCount(t *testing.T) {
	resetTickets(t)
	repo := newTestRepo()
	ctx := context.Background()

	base := time.Now().UTC()
	seedTicket(t, repo, "a", []string{"registrar"}, base)
	seedTicket(t, repo, "b", []string{"cashier"}, base)
	served := seedTicket(t, repo, "c", []string{"registrar"}, base)

	// Walk one ticket to completion
	now := time.Now().UTC()
	require.NoError(t, served.Call(now))
	called, err := repo.Update(ctx, served)
	require.NoError(t, err)
	completed, err := called.Advance("registrar", now)
	require.NoError(t, err)
	require.True(t, completed)
	_, err = repo.Update(ctx, called)
	require.NoError(t, err)

	all, err := repo.ListAll(ctx)
	require.NoError(t, err)
	require.Len(t, all, 3)
	assert.Equal(t, "a", all[0].Name)
	assert.Equal(t, "c", all[2].Name)
	assert.Equal(t, domain.StatusServed, all[2].Status)

	stats, err := repo.CountByStatus(ctx)
	require.NoError(t, err)
	assert.Equal(t, int64(2), stats.Waiting)
	assert.Equal(t, int64(1), stats.Served)
}

func TestTransactionManager_RollsBackOnError(t *testing.T) {
	resetTickets(t)
	repo := newTestRepo()
	txManager := NewTransactionManager(testPool)
	ctx := context.Background()

	created := seedTicket(t, repo, "Ana", []string{"registrar"}, time.Now().UTC())

	sentinel := assert.AnError
	err := txManager.WithTransaction(ctx, func(txCtx context.Context) error {
		ticket, err := repo.GetByID(txCtx, created.ID)
		if err != nil {
			return err
		}
		if err := ticket.Hold(time.Now().UTC()); err != nil {
			return err
		}
		if _, err := repo.Update(txCtx, ticket); err != nil {
			return err
		}
		return sentinel
	})
	require.ErrorIs(t, err, sentinel)

	// The hold never became visible
	fetched, err := repo.GetByID(ctx, created.ID)
	require.NoError(t, err)
	assert.Equal(t, domain.StatusWaiting, fetched.Status)
}

func TestTransactionManager_Commits(t *testing.T) {
	resetTickets(t)
	repo := newTestRepo()
	txManager := NewTransactionManager(testPool)
	ctx := context.Background()

	created := seedTicket(t, repo, "Ana", []string{"registrar"}, time.Now().UTC())

	err := txManager.WithTransaction(ctx, func(txCtx context.Context) error {
		ticket, err := repo.GetByID(txCtx, created.ID)
		if err != nil {
			return err
		}
		if err := ticket.Hold(time.Now().UTC()); err != nil {
			return err
		}
		_, err = repo.Update(txCtx, ticket)
		return err
	})
	require.NoError(t, err)

	fetched, err := repo.GetByID(ctx, created.ID)
	require.NoError(t, err)
	assert.Equal(t, domain.StatusHold, fetched.Status)
}
