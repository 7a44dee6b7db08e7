package http

import (
	"encoding/json"
	stdhttp "net/http"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/mock"
	"github.com/stretchr/testify/require"

	"github.com/lorrc/front-desk-backend/internal/core/domain"
)

func TestHandleCallNext(t *testing.T) {
	t.Run("requires the staff key", func(t *testing.T) {
		env := newTestEnv()

		recorder := env.do(stdhttp.MethodPost, "/api/v1/next", CallNextRequest{Station: "cashier"}, false)

		require.Equal(t, stdhttp.StatusUnauthorized, recorder.Code)
		env.repo.AssertNotCalled(t, "ClaimNext", mock.Anything, mock.Anything, mock.Anything)
	})

	t.Run("claims the next ticket", func(t *testing.T) {
		env := newTestEnv()

		claimed := storedTicket(14, "cashier")
		claimed.Status = domain.StatusCalled
		claimed.CalledService = "cashier"
		env.repo.On("ClaimNext", mock.Anything, "cashier", mock.AnythingOfType("time.Time")).Return(claimed, true, nil)

		recorder := env.do(stdhttp.MethodPost, "/api/v1/next", CallNextRequest{Station: "cashier"}, true)

		require.Equal(t, stdhttp.StatusOK, recorder.Code)

		var response CallNextResponse
		require.NoError(t, json.NewDecoder(recorder.Body).Decode(&response))
		assert.True(t, response.Found)
		require.NotNil(t, response.Ticket)
		assert.Equal(t, int64(14), response.Ticket.ID)
		assert.Equal(t, "called", response.Ticket.Status)
	})

	t.Run("empty queue", func(t *testing.T) {
		env := newTestEnv()

		env.repo.On("ClaimNext", mock.Anything, "cashier", mock.AnythingOfType("time.Time")).Return(nil, false, nil)

		recorder := env.do(stdhttp.MethodPost, "/api/v1/next", CallNextRequest{Station: "cashier"}, true)

		require.Equal(t, stdhttp.StatusOK, recorder.Code)

		var response CallNextResponse
		require.NoError(t, json.NewDecoder(recorder.Body).Decode(&response))
		assert.False(t, response.Found)
		assert.Nil(t, response.Ticket)
	})

	t.Run("missing station", func(t *testing.T) {
		env := newTestEnv()

		recorder := env.do(stdhttp.MethodPost, "/api/v1/next", CallNextRequest{}, true)

		require.Equal(t, stdhttp.StatusUnprocessableEntity, recorder.Code)
	})
}

func TestHandleQueue(t *testing.T) {
	env := newTestEnv()

	tickets := []*domain.Ticket{
		storedTicket(1, "registrar"),
		storedTicket(2, "cashier"),
	}
	env.repo.On("ListAll", mock.Anything).Return(tickets, nil)

	recorder := env.do(stdhttp.MethodGet, "/api/v1/queue", nil, false)

	require.Equal(t, stdhttp.StatusOK, recorder.Code)

	var response ListResponse[TicketDTO]
	require.NoError(t, json.NewDecoder(recorder.Body).Decode(&response))
	assert.Equal(t, 2, response.Count)
	require.Len(t, response.Data, 2)
	assert.Equal(t, int64(1), response.Data[0].ID)
	assert.Equal(t, int64(2), response.Data[1].ID)
}

func TestHandleStats(t *testing.T) {
	env := newTestEnv()

	env.repo.On("CountByStatus", mock.Anything).Return(&domain.QueueStats{Waiting: 5, Served: 23}, nil)

	recorder := env.do(stdhttp.MethodGet, "/api/v1/stats", nil, false)

	require.Equal(t, stdhttp.StatusOK, recorder.Code)

	var stats StatsDTO
	require.NoError(t, json.NewDecoder(recorder.Body).Decode(&stats))
	assert.Equal(t, int64(5), stats.Waiting)
	assert.Equal(t, int64(23), stats.Served)
}

func TestHandleExportCSV(t *testing.T) {
	env := newTestEnv()

	env.repo.On("ListAll", mock.Anything).Return([]*domain.Ticket{storedTicket(1, "registrar")}, nil)

	recorder := env.do(stdhttp.MethodGet, "/api/v1/export.csv", nil, false)

	require.Equal(t, stdhttp.StatusOK, recorder.Code)
	assert.Equal(t, "text/csv; charset=utf-8", recorder.Header().Get("Content-Type"))
	assert.Contains(t, recorder.Header().Get("Content-Disposition"), "tickets.csv")

	lines := strings.Split(strings.TrimSpace(recorder.Body.String()), "\n")
	require.Len(t, lines, 2)
	assert.True(t, strings.HasPrefix(lines[0], "id,token,name,services"))
	assert.True(t, strings.HasPrefix(lines[1], "1,001,Ana"))
}
