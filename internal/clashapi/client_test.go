package clashapi

import (
	"context"
	"errors"
	"net/http"
	"net/http/httptest"
	"sync/atomic"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func newTestClient(t *testing.T, h http.HandlerFunc) *Client {
	t.Helper()
	srv := httptest.NewServer(h)
	t.Cleanup(srv.Close)
	return NewClient("secret", Options{
		BaseURL:           srv.URL,
		RequestsPerSecond: 1000,
		Backoff:           time.Millisecond,
	})
}

func TestTopPlayers(t *testing.T) {
	c := newTestClient(t, func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, "Bearer secret", r.Header.Get("Authorization"))
		assert.Equal(t, DefaultRankingPath, r.URL.Path)
		assert.Equal(t, "20", r.URL.Query().Get("limit"))
		w.Write([]byte(`{"items":[
			{"tag":"#AAA","name":"Alice","eloRating":2900,"rank":1},
			{"tag":"#BBB","name":"Bob","trophies":9000,"rank":2}
		]}`))
	})

	players, err := c.TopPlayers(context.Background(), 20)
	require.NoError(t, err)
	require.Len(t, players, 2)
	assert.Equal(t, "#AAA", players[0].Tag)
	assert.Equal(t, 2900, players[0].Trophies, "elo rating stands in for trophies")
	assert.Equal(t, 9000, players[1].Trophies)
	assert.Equal(t, 2, players[1].Rank)
}

func TestBattleLogEscapesTag(t *testing.T) {
	c := newTestClient(t, func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, "/players/%23ABC/battlelog", r.URL.EscapedPath())
		w.Write([]byte(`[{"type":"pathOfLegend","battleTime":"20250101T100000.000Z",
			"gameMode":{"id":72000464,"name":"Ranked1v1_NewArena"},
			"team":[{"tag":"#ABC","crowns":2,"cards":[{"id":26000000,"name":"Knight","evolutionLevel":1}]}],
			"opponent":[{"tag":"#DEF","crowns":1,"cards":[{"name":"Mystery"}]}]}]`))
	})

	battles, err := c.BattleLog(context.Background(), "abc")
	require.NoError(t, err)
	require.Len(t, battles, 1)

	b := battles[0]
	assert.Equal(t, int64(72000464), b.GameMode.ID)
	require.NotNil(t, b.Team[0].Cards[0].ID)
	assert.Equal(t, int64(26000000), *b.Team[0].Cards[0].ID)
	assert.Equal(t, 1, b.Team[0].Cards[0].EvolutionLevel)
	assert.Nil(t, b.Opponent[0].Cards[0].ID, "a missing id must stay distinguishable from 0")
}

func TestRetriesServerErrors(t *testing.T) {
	var calls atomic.Int32
	c := newTestClient(t, func(w http.ResponseWriter, r *http.Request) {
		if calls.Add(1) < 3 {
			w.WriteHeader(http.StatusServiceUnavailable)
			return
		}
		w.Write([]byte(`[]`))
	})

	_, err := c.BattleLog(context.Background(), "#ABC")
	require.NoError(t, err)
	assert.Equal(t, int32(3), calls.Load())
}

func TestRetriesRateLimit(t *testing.T) {
	var calls atomic.Int32
	c := newTestClient(t, func(w http.ResponseWriter, r *http.Request) {
		if calls.Add(1) == 1 {
			w.WriteHeader(http.StatusTooManyRequests)
			return
		}
		w.Write([]byte(`{"items":[]}`))
	})

	_, err := c.TopPlayers(context.Background(), 5)
	require.NoError(t, err)
	assert.Equal(t, int32(2), calls.Load())
}

func TestClientErrorIsNotRetried(t *testing.T) {
	var calls atomic.Int32
	c := newTestClient(t, func(w http.ResponseWriter, r *http.Request) {
		calls.Add(1)
		w.WriteHeader(http.StatusNotFound)
		w.Write([]byte(`{"reason":"notFound"}`))
	})

	_, err := c.BattleLog(context.Background(), "#NOPE")
	require.Error(t, err)

	var apiErr *APIError
	require.True(t, errors.As(err, &apiErr))
	assert.Equal(t, http.StatusNotFound, apiErr.Status)
	assert.Equal(t, "notFound", apiErr.Reason)
	assert.Equal(t, int32(1), calls.Load())
}

func TestRetriesExhausted(t *testing.T) {
	var calls atomic.Int32
	c := newTestClient(t, func(w http.ResponseWriter, r *http.Request) {
		calls.Add(1)
		w.WriteHeader(http.StatusBadGateway)
	})

	_, err := c.BattleLog(context.Background(), "#ABC")
	require.Error(t, err)
	assert.Equal(t, int32(maxRetries+1), calls.Load())
}

func TestEscapeTag(t *testing.T) {
	assert.Equal(t, "%23ABC", EscapeTag(" abc "))
	assert.Equal(t, "%23ABC", EscapeTag("#ABC"))
}
