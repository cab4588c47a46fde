package match

import (
	"context"
	"errors"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/jason-s-yu/matchhost/internal/models"
	"github.com/jason-s-yu/matchhost/internal/provider"
)

func TestFinalizeIsIdempotent(t *testing.T) {
	ctx := context.Background()
	h := newHarness(t, testConfig())
	m := h.startMatch(t, 4)
	snap := h.finished(t, m, 16, 10)

	require.NoError(t, h.lc.Finalize(ctx, m, snap))
	moves := len(h.delivery.Moves())

	stored, err := h.store.GetMatch(ctx, m.ID)
	require.NoError(t, err)
	assert.True(t, stored.Finished)
	assert.False(t, stored.Canceled)
	assert.Equal(t, models.Team1, stored.Winner)
	assert.Equal(t, 16, stored.Team1Score)
	assert.Equal(t, 26, stored.RoundsPlayed)

	for _, id := range []string{m.CategoryID, m.Team1ChannelID, m.Team2ChannelID} {
		ch, ok := h.delivery.Channel(id)
		require.True(t, ok)
		assert.True(t, ch.Deleted, "channel %s", ch.Name)
	}
	status, _ := h.delivery.Message(m.MessageID)
	assert.True(t, status.Deleted)

	assignments, err := h.store.GetTeamAssignments(ctx, m.ID)
	require.NoError(t, err)
	for _, a := range assignments {
		assert.Equal(t, "waiting", h.delivery.Location(a.UserID))
		assert.GreaterOrEqual(t, a.Kills, 20)
		assert.Equal(t, 10, a.Headshots)
	}

	results := h.delivery.Messages("results")
	require.Len(t, results, 1)
	assert.Contains(t, results[0].Status.Title, "[ 16 : 10 ]")

	// A repeated end shows nothing new.
	require.NoError(t, h.lc.Finalize(ctx, m, snap))
	require.NoError(t, h.lc.HandleMatchEnd(ctx, stored, snap))
	assert.Len(t, h.delivery.Moves(), moves)
	assert.Len(t, h.delivery.Messages("results"), 1)
	assert.Equal(t, 1, h.events.count(EventMatchFinalized))
}

func TestHandleMatchEndPrefersProviderSnapshot(t *testing.T) {
	ctx := context.Background()
	h := newHarness(t, testConfig())
	m := h.startMatch(t, 4)
	h.provider.SetMatch(h.finished(t, m, 13, 16))

	stale, _ := h.provider.Match(m.ID)
	stale.Finished = false
	stale.Team1.Stats.Score, stale.Team2.Stats.Score = 0, 0

	require.NoError(t, h.lc.HandleMatchEnd(ctx, m, stale))
	assert.Equal(t, []string{"s1"}, h.provider.Stopped)

	stored, err := h.store.GetMatch(ctx, m.ID)
	require.NoError(t, err)
	assert.True(t, stored.Finished)
	assert.Equal(t, models.Team2, stored.Winner)
	assert.Equal(t, 16, stored.Team2Score)
}

func TestHandleMatchEndFallsBackToPayload(t *testing.T) {
	ctx := context.Background()
	h := newHarness(t, testConfig())
	m := h.startMatch(t, 4)
	payload := h.finished(t, m, 8, 8)
	h.provider.GetMatchErr = errors.New("provider unavailable")

	require.NoError(t, h.lc.HandleMatchEnd(ctx, m, payload))

	stored, err := h.store.GetMatch(ctx, m.ID)
	require.NoError(t, err)
	assert.True(t, stored.Finished)
	assert.Equal(t, models.TeamNone, stored.Winner)
	assert.Equal(t, 16, stored.RoundsPlayed)
}

func TestHandleRoundEndSkipsUnknownPlayers(t *testing.T) {
	ctx := context.Background()
	h := newHarness(t, testConfig())
	m := h.startMatch(t, 4)

	snap, _ := h.provider.Match(m.ID)
	snap.Team1.Stats.Score, snap.Team2.Stats.Score, snap.RoundsPlayed = 5, 3, 8
	snap.Players = append([]provider.MatchPlayer{{
		SteamID: steamID(500),
		Team:    string(models.Team1),
		Stats:   &provider.PlayerStats{Kills: 99},
	}}, snap.Players...)
	for i := range snap.Players[1:] {
		snap.Players[i+1].Stats = &provider.PlayerStats{Kills: 4, Deaths: 2}
	}

	require.NoError(t, h.lc.HandleRoundEnd(ctx, m, snap))

	stored, err := h.store.GetMatch(ctx, m.ID)
	require.NoError(t, err)
	assert.Equal(t, 5, stored.Team1Score)
	assert.Equal(t, 3, stored.Team2Score)
	assert.Equal(t, 8, stored.RoundsPlayed)
	assert.False(t, stored.Finalized())

	assignments, err := h.store.GetTeamAssignments(ctx, m.ID)
	require.NoError(t, err)
	require.Len(t, assignments, 4)
	for _, a := range assignments {
		assert.Equal(t, 4, a.Kills)
	}

	live, _ := h.delivery.Message(m.MessageID)
	assert.Contains(t, live.Status.Title, "[ 5 : 3 ]")
	assert.Equal(t, 1, h.events.count(EventRoundEnd))
}

func TestCancel(t *testing.T) {
	ctx := context.Background()
	h := newHarness(t, testConfig())
	m := h.startMatch(t, 4)

	require.NoError(t, h.lc.Cancel(ctx, m.ID))
	assert.Equal(t, []string{m.ID}, h.provider.Canceled)
	assert.Equal(t, []string{"s1"}, h.provider.Stopped)

	stored, err := h.store.GetMatch(ctx, m.ID)
	require.NoError(t, err)
	assert.True(t, stored.Canceled)
	assert.False(t, stored.Finished)
	assert.Equal(t, models.TeamNone, stored.Winner)
	assert.Empty(t, h.delivery.Messages("results"))
	assert.Equal(t, 1, h.events.count(EventMatchCanceled))

	assert.ErrorIs(t, h.lc.Cancel(ctx, m.ID), ErrMatchOver)
	assert.ErrorIs(t, h.lc.Cancel(ctx, "missing"), ErrMatchNotFound)
}

func TestCancelWithoutProviderSnapshot(t *testing.T) {
	ctx := context.Background()
	h := newHarness(t, testConfig())
	m := h.startMatch(t, 4)
	h.provider.GetMatchErr = errors.New("provider unavailable")

	require.NoError(t, h.lc.Cancel(ctx, m.ID))
	stored, err := h.store.GetMatch(ctx, m.ID)
	require.NoError(t, err)
	assert.True(t, stored.Canceled)
}

func TestAddPlayer(t *testing.T) {
	ctx := context.Background()
	h := newHarness(t, testConfig())
	m := h.startMatch(t, 4)

	assert.ErrorIs(t, h.lc.AddPlayer(ctx, m.ID, "stranger", models.Team2), ErrNotLinked)
	assert.ErrorIs(t, h.lc.AddPlayer(ctx, "missing", "stranger", models.Team2), ErrMatchNotFound)

	require.NoError(t, h.store.UpsertPlayer(ctx, models.Player{UserID: "late", SteamID: steamID(42)}))
	require.NoError(t, h.lc.AddPlayer(ctx, m.ID, "late", models.Team2))

	require.Len(t, h.provider.Added, 1)
	assert.Equal(t, steamID(42), h.provider.Added[0].SteamID)
	assert.Equal(t, string(models.Team2), h.provider.Added[0].Team)

	assignments, err := h.store.GetTeamAssignments(ctx, m.ID)
	require.NoError(t, err)
	assert.Len(t, assignments, 5)
	assert.Equal(t, m.Team2ChannelID, h.delivery.Location("late"))
	ch, _ := h.delivery.Channel(m.Team2ChannelID)
	assert.Contains(t, ch.Allowed, "late")

	require.NoError(t, h.lc.Cancel(ctx, m.ID))
	assert.ErrorIs(t, h.lc.AddPlayer(ctx, m.ID, "late", models.Team1), ErrMatchOver)
}
