// internal/handlers/admin_test.go
package handlers

import (
	"context"
	"encoding/json"
	"net/http"
	"testing"

	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/jason-s-yu/matchhost/internal/lobby"
	"github.com/jason-s-yu/matchhost/internal/match"
	"github.com/jason-s-yu/matchhost/internal/models"
)

func TestLogin(t *testing.T) {
	s := newServer(t)

	w := s.do(t, http.MethodPost, "/admin/login", "", loginRequest{Password: adminPassword})
	require.Equal(t, http.StatusOK, w.Code, w.Body.String())
	var resp loginResponse
	require.NoError(t, json.Unmarshal(w.Body.Bytes(), &resp))
	require.NotEmpty(t, resp.Token)

	w = s.do(t, http.MethodGet, "/admin/guilds/g1/spectators", resp.Token, nil)
	assert.Equal(t, http.StatusOK, w.Code)

	w = s.do(t, http.MethodPost, "/admin/login", "", loginRequest{Password: "wrong"})
	assert.Equal(t, http.StatusUnauthorized, w.Code)

	w = s.do(t, http.MethodPost, "/admin/login", "", "not json")
	assert.Equal(t, http.StatusBadRequest, w.Code)
}

func TestAdminRoutesRequireToken(t *testing.T) {
	s := newServer(t)
	routes := []struct{ method, path string }{
		{http.MethodPut, "/admin/guilds/g1"},
		{http.MethodPost, "/admin/lobbies"},
		{http.MethodDelete, "/admin/lobbies/" + uuid.NewString()},
		{http.MethodPost, "/admin/guilds/g1/spectators/u1"},
		{http.MethodPost, "/admin/matches/m1/cancel"},
	}
	for _, rt := range routes {
		w := s.do(t, rt.method, rt.path, "", nil)
		assert.Equal(t, http.StatusUnauthorized, w.Code, rt.path)
	}
	assert.Empty(t, s.lobbies.deleted)
	assert.Empty(t, s.matches.canceled)
}

func TestPutGuild(t *testing.T) {
	s := newServer(t)
	token := s.adminToken(t)

	w := s.do(t, http.MethodPut, "/admin/guilds/g1", token, models.Guild{
		ID:               "ignored",
		CategoryID:       "cat",
		WaitingChannelID: "waiting",
		ResultsChannelID: "results",
	})
	require.Equal(t, http.StatusOK, w.Code, w.Body.String())

	g, err := s.store.GetGuild(context.Background(), "g1")
	require.NoError(t, err)
	assert.Equal(t, "waiting", g.WaitingChannelID)
	assert.Equal(t, "cat", g.CategoryID)

	w = s.do(t, http.MethodGet, "/admin/guilds/g1", token, nil)
	assert.Equal(t, http.StatusOK, w.Code)
	w = s.do(t, http.MethodGet, "/admin/guilds/missing", token, nil)
	assert.Equal(t, http.StatusNotFound, w.Code)

	w = s.do(t, http.MethodPut, "/admin/guilds/g2", token, models.Guild{CategoryID: "cat"})
	assert.Equal(t, http.StatusBadRequest, w.Code)
}

func TestCreateLobbyRoute(t *testing.T) {
	s := newServer(t)
	token := s.adminToken(t)

	w := s.do(t, http.MethodPost, "/admin/lobbies", token, `{"guild_id":"g1","capacity":4,"map_method":"random"}`)
	require.Equal(t, http.StatusCreated, w.Code, w.Body.String())
	require.Len(t, s.lobbies.created, 1)
	assert.Equal(t, 4, s.lobbies.created[0].Capacity)
	assert.Equal(t, models.MapMethodRandom, s.lobbies.created[0].MapMethod)

	w = s.do(t, http.MethodPost, "/admin/lobbies", token, `{"capacity":4}`)
	assert.Equal(t, http.StatusBadRequest, w.Code)

	s.lobbies.err = lobby.ErrInvalidLobby
	w = s.do(t, http.MethodPost, "/admin/lobbies", token, `{"guild_id":"g1","capacity":3}`)
	assert.Equal(t, http.StatusBadRequest, w.Code)
}

func TestLobbyActions(t *testing.T) {
	s := newServer(t)
	token := s.adminToken(t)
	id := uuid.New()

	w := s.do(t, http.MethodPost, "/admin/lobbies/"+id.String()+"/empty", token, nil)
	assert.Equal(t, http.StatusNoContent, w.Code)
	assert.Equal(t, []uuid.UUID{id}, s.lobbies.emptied)

	w = s.do(t, http.MethodDelete, "/admin/lobbies/"+id.String(), token, nil)
	assert.Equal(t, http.StatusNoContent, w.Code)
	assert.Equal(t, []uuid.UUID{id}, s.lobbies.deleted)

	w = s.do(t, http.MethodDelete, "/admin/lobbies/not-a-uuid", token, nil)
	assert.Equal(t, http.StatusBadRequest, w.Code)

	s.lobbies.err = lobby.ErrLobbyBusy
	w = s.do(t, http.MethodDelete, "/admin/lobbies/"+id.String(), token, nil)
	assert.Equal(t, http.StatusConflict, w.Code)

	s.lobbies.err = lobby.ErrLobbyNotFound
	w = s.do(t, http.MethodPost, "/admin/lobbies/"+id.String()+"/empty", token, nil)
	assert.Equal(t, http.StatusNotFound, w.Code)
}

func TestSpectatorRoutes(t *testing.T) {
	s := newServer(t)
	token := s.adminToken(t)

	assert.Equal(t, http.StatusNoContent, s.do(t, http.MethodPost, "/admin/guilds/g1/spectators/u2", token, nil).Code)
	assert.Equal(t, http.StatusNoContent, s.do(t, http.MethodPost, "/admin/guilds/g1/spectators/u1", token, nil).Code)
	assert.Equal(t, http.StatusConflict, s.do(t, http.MethodPost, "/admin/guilds/g1/spectators/u1", token, nil).Code)

	w := s.do(t, http.MethodGet, "/admin/guilds/g1/spectators", token, nil)
	require.Equal(t, http.StatusOK, w.Code)
	var users []string
	require.NoError(t, json.Unmarshal(w.Body.Bytes(), &users))
	assert.Equal(t, []string{"u1", "u2"}, users)

	assert.Equal(t, http.StatusNoContent, s.do(t, http.MethodDelete, "/admin/guilds/g1/spectators/u1", token, nil).Code)
	spectator, err := s.store.IsSpectator(context.Background(), "g1", "u1")
	require.NoError(t, err)
	assert.False(t, spectator)
}

func TestMatchAdminRoutes(t *testing.T) {
	s := newServer(t)
	token := s.adminToken(t)

	assert.Equal(t, http.StatusNoContent, s.do(t, http.MethodPost, "/admin/matches/m1/cancel", token, nil).Code)
	assert.Equal(t, []string{"m1"}, s.matches.canceled)

	w := s.do(t, http.MethodPost, "/admin/matches/m1/players", token, addPlayerRequest{UserID: "u9", Team: "team2"})
	assert.Equal(t, http.StatusNoContent, w.Code)
	require.Len(t, s.matches.added, 1)
	assert.Equal(t, addedPlayer{"m1", "u9", models.Team2}, s.matches.added[0])

	w = s.do(t, http.MethodPost, "/admin/matches/m1/players", token, addPlayerRequest{UserID: "u9", Team: "blue"})
	assert.Equal(t, http.StatusBadRequest, w.Code)

	cases := map[error]int{
		match.ErrMatchOver:     http.StatusConflict,
		match.ErrMatchNotFound: http.StatusNotFound,
		match.ErrNotLinked:     http.StatusBadRequest,
		assert.AnError:         http.StatusInternalServerError,
	}
	for err, want := range cases {
		s.matches.err = err
		w := s.do(t, http.MethodPost, "/admin/matches/m1/players", token, addPlayerRequest{UserID: "u9", Team: "team1"})
		assert.Equal(t, want, w.Code, err.Error())
	}
}
