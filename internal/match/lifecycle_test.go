// internal/match/lifecycle_test.go
package match

import (
	"context"
	"fmt"
	"testing"
	"time"

	"github.com/elliotchance/pie/v2"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/jason-s-yu/matchhost/internal/database"
	"github.com/jason-s-yu/matchhost/internal/interaction"
	"github.com/jason-s-yu/matchhost/internal/models"
	"github.com/jason-s-yu/matchhost/internal/provider"
)

var randomSettings = models.LobbySettings{
	Capacity:   4,
	TeamMethod: models.TeamMethodRandom,
	MapMethod:  models.MapMethodRandom,
}

func TestStartProvisionsLiveMatch(t *testing.T) {
	ctx := context.Background()
	h := newHarness(t, testConfig())
	participants := h.link(t, 4)
	require.NoError(t, h.store.UpsertPlayer(ctx, models.Player{UserID: "caster", SteamID: steamID(99)}))
	require.NoError(t, h.store.InsertSpectator(ctx, "g1", "caster"))
	require.NoError(t, h.store.InsertSpectator(ctx, "g1", participants[0].UserID))

	req := h.request(t, randomSettings, participants)
	done := h.run(req)
	h.chooseRegion(t, "stockholm")
	require.True(t, waitResult(t, done))

	require.Len(t, h.provider.Created, 1)
	created := h.provider.Created[0]
	assert.Equal(t, "s1", created.GameServerID)
	assert.Contains(t, testMaps, created.Settings.Map)
	assert.Equal(t, 15, created.Settings.MatchBeginCountdown)
	assert.Equal(t, "https://bot.example.com/cs2bot-api/match-end", created.Webhooks.MatchEndURL)
	assert.Equal(t, "https://bot.example.com/cs2bot-api/round-end", created.Webhooks.RoundEndURL)

	// Two players per team, then the one spectator who is not playing.
	require.Len(t, created.Players, 5)
	assert.Equal(t, "team_"+created.Players[0].NicknameOverride, created.Team1.Name)
	assert.Equal(t, "team_"+created.Players[2].NicknameOverride, created.Team2.Name)
	assert.Equal(t, string(models.TeamSpectator), created.Players[4].Team)
	assert.Equal(t, steamID(99), created.Players[4].SteamID)

	m, err := h.store.GetMatch(ctx, "match-1")
	require.NoError(t, err)
	assert.False(t, m.Finalized())
	assert.Equal(t, "Bearer "+m.APIKey, created.Webhooks.AuthorizationHeader)
	assert.Len(t, m.APIKey, 32)
	assert.Equal(t, req.MessageID, m.MessageID)
	assert.Equal(t, []string{"s1"}, h.provider.Updated)
	assert.Equal(t, 1, h.provider.Polls)

	category, ok := h.delivery.Channel(m.CategoryID)
	require.True(t, ok)
	assert.Equal(t, "Match #match-1", category.Name)

	assignments, err := h.store.GetTeamAssignments(ctx, m.ID)
	require.NoError(t, err)
	require.Len(t, assignments, 4)
	for _, a := range assignments {
		assert.Equal(t, m.TeamChannel(a.Team), h.delivery.Location(a.UserID), "user %s", a.UserID)
		ch, ok := h.delivery.Channel(m.TeamChannel(a.Team))
		require.True(t, ok)
		assert.Contains(t, ch.Allowed, a.UserID)
		assert.Equal(t, m.CategoryID, ch.ParentID)
	}

	live, ok := h.delivery.Message(req.MessageID)
	require.True(t, ok)
	assert.Contains(t, live.Status.Title, "Match is live")
	assert.Contains(t, live.Status.Description, "connect 10.0.0.1:27015")
	assert.Nil(t, live.Status.Prompt)
	assert.Equal(t, 1, h.events.count(EventMatchCreated))

	got, err := h.lc.Authenticate(ctx, m.APIKey)
	require.NoError(t, err)
	assert.Equal(t, m.ID, got.ID)
}

func TestStartCaptainsDraftAndVeto(t *testing.T) {
	h := newHarness(t, testConfig())
	participants := h.link(t, 6)
	req := h.request(t, models.LobbySettings{
		Capacity:      6,
		TeamMethod:    models.TeamMethodCaptains,
		CaptainMethod: models.CaptainMethodRandom,
		MapMethod:     models.MapMethodVeto,
	}, participants)
	done := h.run(req)
	ctx := context.Background()

	for picks := 0; picks < 4; picks++ {
		p := waitPrompt(t, h.delivery, h.router, "draft")
		require.Len(t, p.Actors, 1)
		require.NotEmpty(t, p.Options)
		pick := p.Options[0].Value
		require.NoError(t, h.router.Dispatch(ctx, interaction.Action{PromptID: p.ID, UserID: p.Actors[0], Value: pick}))
		waitGone(t, h, "draft", pick)
	}

	var banned []string
	for bans := 0; bans < len(testMaps)-1; bans++ {
		p := waitPrompt(t, h.delivery, h.router, "veto")
		require.NotEmpty(t, p.Options)
		ban := p.Options[0].Value
		require.NoError(t, h.router.Dispatch(ctx, interaction.Action{PromptID: p.ID, UserID: p.Actors[0], Value: ban}))
		banned = append(banned, ban)
		waitGone(t, h, "veto", ban)
	}

	h.chooseRegion(t, "warsaw")
	require.True(t, waitResult(t, done))

	require.Len(t, h.provider.Created, 1)
	created := h.provider.Created[0]
	assert.NotContains(t, banned, created.Settings.Map)
	assert.Contains(t, testMaps, created.Settings.Map)
	assert.Len(t, created.Players, 6)

	m, err := h.store.GetMatch(ctx, "match-1")
	require.NoError(t, err)
	assert.Equal(t, created.Settings.Map, m.MapName)
	assignments, err := h.store.GetTeamAssignments(ctx, m.ID)
	require.NoError(t, err)
	team1 := pie.Filter(assignments, func(a models.TeamAssignment) bool { return a.Team == models.Team1 })
	assert.Len(t, team1, 3)
}

// waitGone waits until the active prompt of kind stops offering value.
func waitGone(t *testing.T, h *harness, kind, value string) {
	t.Helper()
	require.Eventually(t, func() bool {
		p, ok := h.delivery.ActivePrompt(kind)
		return !ok || !pie.Contains(pie.Map(p.Options, func(o interaction.Option) string { return o.Value }), value)
	}, 5*time.Second, 2*time.Millisecond)
}

func TestStartUnreachableServerRollsBack(t *testing.T) {
	cfg := testConfig()
	cfg.ReachabilityAttempts = 3
	h := newHarness(t, cfg)
	h.provider.ReachableAfter = 100

	req := h.request(t, randomSettings, h.link(t, 4))
	done := h.run(req)
	h.chooseRegion(t, "stockholm")
	require.False(t, waitResult(t, done))

	assert.Equal(t, 3, h.provider.Polls)
	assert.Equal(t, []string{"match-1"}, h.provider.Canceled)
	assert.Equal(t, []string{"s1"}, h.provider.Stopped)
	assert.Empty(t, h.delivery.Channels())

	_, err := h.store.GetMatch(context.Background(), "match-1")
	assert.ErrorIs(t, err, database.ErrNotFound)

	status, ok := h.delivery.Message(req.MessageID)
	require.True(t, ok)
	assert.Equal(t, "Match Setup Failed", status.Status.Title)
	assert.Equal(t, "Something went wrong on game server.", status.Status.Description)
	assert.Equal(t, 1, h.events.count(EventSetupFailed))
}

func TestStartSetupFailures(t *testing.T) {
	tests := []struct {
		name    string
		prepare func(h *harness)
		reason  string
		stopped []string
	}{
		{
			name: "no idle server",
			prepare: func(h *harness) {
				h.provider.AddServer(provider.GameServer{ID: "s1", MatchID: "other", IP: "10.0.0.1"})
			},
			reason: "No game server available at the moment.",
		},
		{
			name: "credentials rejected",
			prepare: func(h *harness) {
				h.provider.CreateErr = fmt.Errorf("create match: %w", provider.ErrUnauthorized)
			},
			reason: "Game server provider rejected our credentials",
		},
		{
			name: "create fails",
			prepare: func(h *harness) {
				h.provider.CreateErr = &provider.APIError{Method: "POST", Path: "/matches", StatusCode: 500}
			},
			reason: "Failed to create match on game server",
		},
		{
			name: "create fails on a running server",
			prepare: func(h *harness) {
				h.provider.AddServer(provider.GameServer{ID: "s1", On: true, IP: "10.0.0.1"})
				h.provider.CreateErr = &provider.APIError{Method: "POST", Path: "/matches", StatusCode: 500}
			},
			reason:  "Failed to create match on game server",
			stopped: []string{"s1"},
		},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			h := newHarness(t, testConfig())
			tt.prepare(h)
			req := h.request(t, randomSettings, h.link(t, 4))
			done := h.run(req)
			h.chooseRegion(t, "stockholm")
			require.False(t, waitResult(t, done))

			assert.Empty(t, h.delivery.Channels())
			status, _ := h.delivery.Message(req.MessageID)
			assert.Equal(t, "Match Setup Failed", status.Status.Title)
			assert.Equal(t, tt.reason, status.Status.Description)
			assert.Equal(t, tt.stopped, h.provider.Stopped)
		})
	}
}

func TestStartUnlinkedPlayer(t *testing.T) {
	h := newHarness(t, testConfig())
	participants := append(h.link(t, 3), models.Participant{UserID: "ghost", Name: "Ghost"})
	req := h.request(t, randomSettings, participants)

	require.False(t, h.lc.Start(context.Background(), req))
	status, _ := h.delivery.Message(req.MessageID)
	assert.Equal(t, "Match Setup Failed", status.Status.Title)
	assert.Contains(t, status.Status.Description, "<@ghost>")
	assert.Empty(t, h.provider.Updated)
}

func TestStartVetoTimeout(t *testing.T) {
	cfg := testConfig()
	cfg.VetoTimeout = 30 * time.Millisecond
	h := newHarness(t, cfg)
	req := h.request(t, models.LobbySettings{
		Capacity:   4,
		TeamMethod: models.TeamMethodRandom,
		MapMethod:  models.MapMethodVeto,
	}, h.link(t, 4))

	require.False(t, h.lc.Start(context.Background(), req))
	status, _ := h.delivery.Message(req.MessageID)
	assert.Equal(t, "Match Setup Failed", status.Status.Title)
	assert.Equal(t, "Setup took too long!", status.Status.Description)
	assert.Nil(t, status.Status.Prompt)
	assert.False(t, h.router.Active(req.SetupID+":veto"))
	assert.Empty(t, h.provider.Created)
}

func TestAuthenticateUnknownKey(t *testing.T) {
	h := newHarness(t, testConfig())
	_, err := h.lc.Authenticate(context.Background(), "")
	assert.ErrorIs(t, err, ErrMatchNotFound)
	_, err = h.lc.Authenticate(context.Background(), "NOPE")
	assert.ErrorIs(t, err, ErrMatchNotFound)
}
