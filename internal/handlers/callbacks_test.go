// internal/handlers/callbacks_test.go
package handlers

import (
	"net/http"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/jason-s-yu/matchhost/internal/match"
)

const roundEndBody = `{"id":"match-1","team1":{"name":"team_a","stats":{"score":3}},"team2":{"name":"team_b","stats":{"score":1}},
"finished":false,"rounds_played":4,"players":[{"steam_id_64":"76561190000000001","team":"team1","stats":{"kills":5,"kills_with_headshot":2,"2ks":1}}]}`

func TestRoundEndCallback(t *testing.T) {
	s := newServer(t)
	w := s.do(t, http.MethodPost, match.RoundEndPath, "KEY", roundEndBody)
	assert.Equal(t, http.StatusOK, w.Code)

	calls := s.callbacks.recorded()
	require.Len(t, calls, 1)
	assert.Equal(t, CallbackRoundEnd, calls[0].kind)
	assert.Equal(t, "match-1", calls[0].match.ID)
	assert.Equal(t, 3, calls[0].payload.Team1.Stats.Score)
	assert.Equal(t, 4, calls[0].payload.RoundsPlayed)
	require.Len(t, calls[0].payload.Players, 1)
	assert.Equal(t, 2, calls[0].payload.Players[0].Stats.Headshots)
	assert.Equal(t, 1, calls[0].payload.Players[0].Stats.K2)
	assert.Equal(t, 1, s.metrics.count(CallbackRoundEnd, resultOK))
}

func TestMatchEndCallback(t *testing.T) {
	s := newServer(t)
	w := s.do(t, http.MethodPost, match.MatchEndPath, "KEY", `{"id":"match-1","finished":true}`)
	assert.Equal(t, http.StatusOK, w.Code)

	calls := s.callbacks.recorded()
	require.Len(t, calls, 1)
	assert.Equal(t, CallbackMatchEnd, calls[0].kind)
	assert.True(t, calls[0].payload.Finished)
	assert.Equal(t, 1, s.metrics.count(CallbackMatchEnd, resultOK))
}

func TestCallbacksDropBadDeliveries(t *testing.T) {
	cases := []struct {
		name   string
		token  string
		body   string
		result string
	}{
		{"missing token", "", roundEndBody, resultUnauthorized},
		{"unknown token", "NOPE", roundEndBody, resultUnauthorized},
		{"malformed body", "KEY", `{"id":`, resultMalformed},
		{"other match", "KEY", `{"id":"match-2"}`, resultMismatch},
	}
	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			s := newServer(t)
			w := s.do(t, http.MethodPost, match.RoundEndPath, tc.token, tc.body)
			assert.Equal(t, http.StatusOK, w.Code)
			assert.Empty(t, w.Body.String())
			assert.Empty(t, s.callbacks.recorded())
			assert.Equal(t, 1, s.metrics.count(CallbackRoundEnd, tc.result))
		})
	}
}

func TestCallbackFailuresAreAcknowledged(t *testing.T) {
	s := newServer(t)
	s.callbacks.err = assert.AnError
	w := s.do(t, http.MethodPost, match.MatchEndPath, "KEY", `{"id":"match-1"}`)
	assert.Equal(t, http.StatusOK, w.Code)
	assert.Equal(t, 1, s.metrics.count(CallbackMatchEnd, resultFailed))
}

func TestCallbackPanicIsRecovered(t *testing.T) {
	s := newServer(t)
	s.callbacks.panicky = true
	w := s.do(t, http.MethodPost, match.MatchEndPath, "KEY", `{"id":"match-1"}`)
	assert.Equal(t, http.StatusOK, w.Code)
	assert.Equal(t, 1, s.metrics.count(CallbackMatchEnd, resultPanic))
}

func TestCallbackRoutesRequirePost(t *testing.T) {
	s := newServer(t)
	w := s.do(t, http.MethodGet, match.MatchEndPath, "KEY", nil)
	assert.Equal(t, http.StatusMethodNotAllowed, w.Code)
}
