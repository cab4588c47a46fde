// internal/match/helpers_test.go
package match

import (
	"context"
	"fmt"
	"io"
	"sync"
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/sirupsen/logrus"
	"github.com/stretchr/testify/require"

	"github.com/jason-s-yu/matchhost/internal/database"
	"github.com/jason-s-yu/matchhost/internal/interaction"
	"github.com/jason-s-yu/matchhost/internal/interaction/interactiontest"
	"github.com/jason-s-yu/matchhost/internal/models"
	"github.com/jason-s-yu/matchhost/internal/provider"
	"github.com/jason-s-yu/matchhost/internal/provider/providertest"
)

var testMaps = []string{"de_dust2", "de_mirage", "de_inferno", "de_nuke", "de_overpass", "de_vertigo", "de_ancient"}

type recordingPublisher struct {
	mu     sync.Mutex
	events []models.MatchEvent
}

func (p *recordingPublisher) Publish(_ context.Context, ev models.MatchEvent) error {
	p.mu.Lock()
	p.events = append(p.events, ev)
	p.mu.Unlock()
	return nil
}

func (p *recordingPublisher) count(typ string) int {
	p.mu.Lock()
	defer p.mu.Unlock()
	n := 0
	for _, ev := range p.events {
		if ev.Type == typ {
			n++
		}
	}
	return n
}

type harness struct {
	store    *database.MemoryStore
	delivery *interactiontest.Delivery
	provider *providertest.Provider
	router   *interaction.Router
	events   *recordingPublisher
	lc       *Lifecycle
}

func testConfig() Config {
	return Config{
		MapPool:              testMaps,
		DraftTimeout:         5 * time.Second,
		VetoTimeout:          5 * time.Second,
		RegionTimeout:        5 * time.Second,
		ReachabilityAttempts: 5,
		ReachabilityDelay:    time.Millisecond,
		MatchBeginCountdown:  15,
		PublicBaseURL:        "https://bot.example.com/",
		Seed:                 7,
	}
}

func newHarness(t *testing.T, cfg Config) *harness {
	t.Helper()
	logger := logrus.New()
	logger.SetOutput(io.Discard)

	h := &harness{
		store:    database.NewMemoryStore(),
		delivery: interactiontest.New(),
		provider: providertest.New(),
		router:   interaction.NewRouter(),
		events:   &recordingPublisher{},
	}
	require.NoError(t, h.store.UpsertGuild(context.Background(), models.Guild{
		ID:               "g1",
		WaitingChannelID: "waiting",
		ResultsChannelID: "results",
	}))
	h.provider.AddServer(provider.GameServer{ID: "s1", IP: "10.0.0.1", Ports: provider.ServerPorts{Game: 27015, GOTV: 27020}})
	h.lc = New(cfg, Deps{
		Store:     h.store,
		Provider:  h.provider,
		Delivery:  h.delivery,
		Router:    h.router,
		Publisher: h.events,
		Logger:    logger,
	})
	return h
}

func steamID(i int) string {
	return fmt.Sprintf("7656119%010d", i)
}

// link stores n linked players and returns them as participants.
func (h *harness) link(t *testing.T, n int) []models.Participant {
	t.Helper()
	out := make([]models.Participant, n)
	for i := range out {
		out[i] = models.Participant{UserID: fmt.Sprintf("u%d", i), Name: fmt.Sprintf("Player%d", i)}
		require.NoError(t, h.store.UpsertPlayer(context.Background(), models.Player{UserID: out[i].UserID, SteamID: steamID(i)}))
	}
	return out
}

func (h *harness) request(t *testing.T, settings models.LobbySettings, participants []models.Participant) SetupRequest {
	t.Helper()
	s := settings.WithDefaults()
	l := models.Lobby{
		ID:            uuid.New(),
		GuildID:       "g1",
		ChannelID:     "lobby-vc",
		Capacity:      s.Capacity,
		TeamMethod:    s.TeamMethod,
		CaptainMethod: s.CaptainMethod,
		MapMethod:     s.MapMethod,
		GameMode:      s.GameMode,
		ConnectTime:   s.ConnectTime,
	}
	messageID, err := h.delivery.SendStatus(context.Background(), l.ChannelID, interaction.Status{Title: "Everyone is ready"})
	require.NoError(t, err)
	guild, err := h.store.GetGuild(context.Background(), "g1")
	require.NoError(t, err)
	return SetupRequest{
		SetupID:      uuid.NewString(),
		Lobby:        l,
		Guild:        guild,
		Participants: participants,
		ChannelID:    l.ChannelID,
		MessageID:    messageID,
	}
}

// run starts setup in the background and returns a channel with its result.
func (h *harness) run(req SetupRequest) <-chan bool {
	done := make(chan bool, 1)
	go func() { done <- h.lc.Start(context.Background(), req) }()
	return done
}

func waitPrompt(t *testing.T, d *interactiontest.Delivery, r *interaction.Router, kind string) interaction.Prompt {
	t.Helper()
	var p interaction.Prompt
	require.Eventually(t, func() bool {
		var ok bool
		p, ok = d.ActivePrompt(kind)
		return ok && r.Active(p.ID)
	}, 5*time.Second, 2*time.Millisecond, "prompt %s never appeared", kind)
	return p
}

func waitResult(t *testing.T, done <-chan bool) bool {
	t.Helper()
	select {
	case ok := <-done:
		return ok
	case <-time.After(10 * time.Second):
		t.Fatal("setup did not finish")
		return false
	}
}

func (h *harness) chooseRegion(t *testing.T, region string) {
	t.Helper()
	p := waitPrompt(t, h.delivery, h.router, "region")
	require.Len(t, p.Actors, 2)
	for _, captain := range p.Actors {
		require.NoError(t, h.router.Dispatch(context.Background(), interaction.Action{PromptID: p.ID, UserID: captain, Value: region}))
	}
}

// startMatch runs a random-teams random-map setup to a live match.
func (h *harness) startMatch(t *testing.T, n int) models.Match {
	t.Helper()
	participants := h.link(t, n)
	req := h.request(t, models.LobbySettings{
		Capacity:   n,
		TeamMethod: models.TeamMethodRandom,
		MapMethod:  models.MapMethodRandom,
	}, participants)
	done := h.run(req)
	h.chooseRegion(t, "stockholm")
	require.True(t, waitResult(t, done))

	m, err := h.store.GetUserCurrentMatch(context.Background(), participants[0].UserID)
	require.NoError(t, err)
	return m
}

// finished returns the provider snapshot of m as a finished match.
func (h *harness) finished(t *testing.T, m models.Match, score1, score2 int) provider.Match {
	t.Helper()
	snap, ok := h.provider.Match(m.ID)
	require.True(t, ok)
	snap.Finished = true
	snap.Team1.Stats.Score = score1
	snap.Team2.Stats.Score = score2
	snap.RoundsPlayed = score1 + score2
	for i := range snap.Players {
		snap.Players[i].Stats = &provider.PlayerStats{Kills: 20 + i, Deaths: 10, Assists: 3, Headshots: 10, MVPs: 2, Score: 50}
	}
	return snap
}
