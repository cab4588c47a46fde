// internal/lobby/flow_test.go
package lobby

import (
	"context"
	"sync"
	"testing"
	"time"

	"github.com/elliotchance/pie/v2"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/jason-s-yu/matchhost/internal/interaction"
	"github.com/jason-s-yu/matchhost/internal/match"
	"github.com/jason-s-yu/matchhost/internal/models"
	"github.com/jason-s-yu/matchhost/internal/provider"
	"github.com/jason-s-yu/matchhost/internal/provider/providertest"
)

var mapPool = []string{"de_dust2", "de_mirage", "de_inferno", "de_nuke", "de_overpass", "de_vertigo", "de_ancient"}

type eventLog struct {
	mu    sync.Mutex
	types []string
}

func (e *eventLog) Publish(_ context.Context, ev models.MatchEvent) error {
	e.mu.Lock()
	e.types = append(e.types, ev.Type)
	e.mu.Unlock()
	return nil
}

func (e *eventLog) seen() []string {
	e.mu.Lock()
	defer e.mu.Unlock()
	return append([]string(nil), e.types...)
}

type flow struct {
	*fixture
	provider *providertest.Provider
	events   *eventLog
}

func newFlow(t *testing.T, cfg match.Config) *flow {
	t.Helper()
	fl := &flow{provider: providertest.New(), events: &eventLog{}}
	fl.provider.AddServer(provider.GameServer{ID: "s1", IP: "10.0.0.7", Ports: provider.ServerPorts{Game: 27015, GOTV: 27020}})

	starter := &lateStarter{}
	fl.fixture = newFixture(t, starter, 5*time.Second)
	starter.lc = match.New(cfg, match.Deps{
		Store:     fl.store,
		Provider:  fl.provider,
		Delivery:  fl.delivery,
		Router:    fl.router,
		Publisher: fl.events,
		Logger:    quietLogger(),
	})
	return fl
}

// lateStarter lets the lifecycle be built after the fixture's store.
type lateStarter struct {
	lc *match.Lifecycle
}

func (s *lateStarter) Start(ctx context.Context, req match.SetupRequest) bool {
	return s.lc.Start(ctx, req)
}

func flowConfig() match.Config {
	return match.Config{
		MapPool:              mapPool,
		DraftTimeout:         5 * time.Second,
		VetoTimeout:          5 * time.Second,
		RegionTimeout:        5 * time.Second,
		ReachabilityAttempts: 5,
		ReachabilityDelay:    time.Millisecond,
		PublicBaseURL:        "https://bot.example.com",
		Seed:                 42,
	}
}

func (fl *flow) dispatch(t *testing.T, p interaction.Prompt, user, value string) {
	t.Helper()
	require.NoError(t, fl.router.Dispatch(context.Background(), interaction.Action{PromptID: p.ID, UserID: user, Value: value}))
}

// withdrawn waits until the active prompt of kind no longer offers value.
func (fl *flow) withdrawn(t *testing.T, kind, value string) {
	t.Helper()
	require.Eventually(t, func() bool {
		p, ok := fl.delivery.ActivePrompt(kind)
		return !ok || !pie.Contains(pie.Map(p.Options, func(o interaction.Option) string { return o.Value }), value)
	}, 5*time.Second, 2*time.Millisecond)
}

func TestFullLobbyBecomesLiveMatch(t *testing.T) {
	ctx := context.Background()
	fl := newFlow(t, flowConfig())
	users := fl.link(t, 10)
	l := fl.lobby(t, models.LobbySettings{
		Capacity:      10,
		TeamMethod:    models.TeamMethodCaptains,
		CaptainMethod: models.CaptainMethodRandom,
		MapMethod:     models.MapMethodVeto,
		GameMode:      models.GameModeCompetitive,
		ConnectTime:   300,
	})

	for i, u := range users {
		fl.delivery.Connect(u.UserID, l.ChannelID)
		_, err := fl.queue.Join(ctx, l.ID, u)
		require.NoError(t, err)
		assert.Equal(t, i == len(users)-1, fl.queue.Registry().InProgress(l.ID))
	}

	fl.confirmAll(t, pie.Map(users, func(p models.Participant) string { return p.UserID })...)

	for i := 0; i < 8; i++ {
		p := waitPrompt(t, fl.delivery, fl.router, "draft")
		require.Len(t, p.Actors, 1)
		require.NotEmpty(t, p.Options)
		pick := p.Options[0].Value
		fl.dispatch(t, p, p.Actors[0], pick)
		fl.withdrawn(t, "draft", pick)
	}

	var banned []string
	for i := 0; i < len(mapPool)-1; i++ {
		p := waitPrompt(t, fl.delivery, fl.router, "veto")
		ban := p.Options[0].Value
		fl.dispatch(t, p, p.Actors[0], ban)
		banned = append(banned, ban)
		fl.withdrawn(t, "veto", ban)
	}

	p := waitPrompt(t, fl.delivery, fl.router, "region")
	require.Len(t, p.Actors, 2)
	captains := p.Actors
	for _, c := range captains {
		fl.dispatch(t, p, c, "stockholm")
	}
	fl.queue.Wait()

	require.Len(t, fl.provider.Created, 1)
	created := fl.provider.Created[0]
	assert.NotContains(t, banned, created.Settings.Map)
	assert.Equal(t, 1, fl.provider.Polls)

	m, err := fl.store.GetMatch(ctx, "match-1")
	require.NoError(t, err)
	assert.False(t, m.Finished)
	assert.False(t, m.Canceled)
	assert.Equal(t, created.Settings.Map, m.MapName)

	assignments, err := fl.store.GetTeamAssignments(ctx, m.ID)
	require.NoError(t, err)
	require.Len(t, assignments, 10)
	team1 := pie.Filter(assignments, func(a models.TeamAssignment) bool { return a.Team == models.Team1 })
	assert.Len(t, team1, 5)
	for _, a := range assignments {
		assert.Equal(t, m.TeamChannel(a.Team), fl.delivery.Location(a.UserID))
	}
	for _, c := range captains {
		assert.Contains(t, pie.Map(assignments, func(a models.TeamAssignment) string { return a.UserID }), c)
	}

	roster, err := fl.queue.Roster(ctx, l.ID)
	require.NoError(t, err)
	assert.Empty(t, roster)
	assert.False(t, fl.queue.Registry().InProgress(l.ID))

	live, ok := fl.delivery.Message(m.MessageID)
	require.True(t, ok)
	assert.Contains(t, live.Status.Title, "Match is live")
	assert.Contains(t, live.Status.Description, "connect 10.0.0.7:27015")
	assert.Contains(t, fl.events.seen(), match.EventMatchCreated)

	// The lobby takes a new roster while the match runs, but not its players.
	_, err = fl.queue.Join(ctx, l.ID, users[0])
	assert.ErrorIs(t, err, ErrInMatch)
}

func TestRegionTimeoutReleasesLobby(t *testing.T) {
	ctx := context.Background()
	cfg := flowConfig()
	cfg.RegionTimeout = 60 * time.Millisecond
	fl := newFlow(t, cfg)
	users := fl.link(t, 4)
	l := fl.lobby(t, models.LobbySettings{
		Capacity:   4,
		TeamMethod: models.TeamMethodRandom,
		MapMethod:  models.MapMethodRandom,
	})

	for _, u := range users {
		fl.delivery.Connect(u.UserID, l.ChannelID)
		_, err := fl.queue.Join(ctx, l.ID, u)
		require.NoError(t, err)
	}
	fl.confirmAll(t, pie.Map(users, func(p models.Participant) string { return p.UserID })...)

	p := waitPrompt(t, fl.delivery, fl.router, "region")
	fl.dispatch(t, p, p.Actors[0], "warsaw")
	fl.queue.Wait()

	assert.Empty(t, fl.provider.Created)
	for _, u := range users {
		assert.Equal(t, "waiting", fl.delivery.Location(u.UserID))
	}
	roster, err := fl.queue.Roster(ctx, l.ID)
	require.NoError(t, err)
	assert.Empty(t, roster)
	assert.False(t, fl.queue.Registry().InProgress(l.ID))

	var failed bool
	for _, msg := range fl.delivery.Messages(l.ChannelID) {
		if msg.Status.Title == "Match Setup Failed" {
			failed = true
			assert.Equal(t, "Setup took too long!", msg.Status.Description)
		}
	}
	assert.True(t, failed)
	assert.Contains(t, fl.events.seen(), match.EventSetupFailed)

	// The lobby accepts players again.
	_, err = fl.queue.Join(ctx, l.ID, users[0])
	assert.NoError(t, err)
}
