package lobby

import (
	"context"
	"fmt"
	"io"
	"sync"
	"testing"
	"time"

	"github.com/sirupsen/logrus"
	"github.com/stretchr/testify/require"

	"github.com/jason-s-yu/matchhost/internal/database"
	"github.com/jason-s-yu/matchhost/internal/interaction"
	"github.com/jason-s-yu/matchhost/internal/interaction/interactiontest"
	"github.com/jason-s-yu/matchhost/internal/match"
	"github.com/jason-s-yu/matchhost/internal/models"
)

// fakeStarter records setup requests. When block is set, Start waits on it.
type fakeStarter struct {
	mu       sync.Mutex
	requests []match.SetupRequest
	result   bool
	block    chan struct{}
}

func (s *fakeStarter) Start(_ context.Context, req match.SetupRequest) bool {
	s.mu.Lock()
	s.requests = append(s.requests, req)
	block, result := s.block, s.result
	s.mu.Unlock()
	if block != nil {
		<-block
	}
	return result
}

func (s *fakeStarter) calls() []match.SetupRequest {
	s.mu.Lock()
	defer s.mu.Unlock()
	return append([]match.SetupRequest(nil), s.requests...)
}

func quietLogger() *logrus.Logger {
	logger := logrus.New()
	logger.SetOutput(io.Discard)
	return logger
}

type fixture struct {
	store    *database.MemoryStore
	delivery *interactiontest.Delivery
	router   *interaction.Router
	queue    *Queue
}

// newFixture wires a queue for guild g1 with a waiting and a results channel.
func newFixture(t *testing.T, starter Starter, readyTimeout time.Duration) *fixture {
	t.Helper()
	f := &fixture{
		store:    database.NewMemoryStore(),
		delivery: interactiontest.New(),
		router:   interaction.NewRouter(),
	}
	require.NoError(t, f.store.UpsertGuild(context.Background(), models.Guild{
		ID:               "g1",
		CategoryID:       "lobbies",
		WaitingChannelID: "waiting",
		ResultsChannelID: "results",
	}))
	f.queue = NewQueue(Deps{
		Store:        f.store,
		Delivery:     f.delivery,
		Router:       f.router,
		Starter:      starter,
		Logger:       quietLogger(),
		ReadyTimeout: readyTimeout,
	})
	t.Cleanup(f.queue.Close)
	return f
}

func (f *fixture) link(t *testing.T, n int) []models.Participant {
	t.Helper()
	out := make([]models.Participant, n)
	for i := range out {
		out[i] = models.Participant{UserID: fmt.Sprintf("u%d", i), Name: fmt.Sprintf("Player%d", i)}
		require.NoError(t, f.store.UpsertPlayer(context.Background(), models.Player{
			UserID:  out[i].UserID,
			SteamID: fmt.Sprintf("7656119%010d", i),
		}))
	}
	return out
}

func (f *fixture) lobby(t *testing.T, settings models.LobbySettings) models.Lobby {
	t.Helper()
	l, err := f.queue.CreateLobby(context.Background(), "g1", settings)
	require.NoError(t, err)
	return l
}

// queueMessage returns the live queue artifact of a lobby.
func (f *fixture) queueMessage(t *testing.T, l models.Lobby) interactiontest.Message {
	t.Helper()
	stored, err := f.store.GetLobby(context.Background(), l.ID)
	require.NoError(t, err)
	require.NotEmpty(t, stored.MessageID)
	msg, ok := f.delivery.Message(stored.MessageID)
	require.True(t, ok)
	require.False(t, msg.Deleted)
	return msg
}

func (f *fixture) confirmAll(t *testing.T, users ...string) {
	t.Helper()
	p := waitPrompt(t, f.delivery, f.router, "ready")
	for _, u := range users {
		require.NoError(t, f.router.Dispatch(context.Background(), interaction.Action{PromptID: p.ID, UserID: u, Value: "ready"}))
	}
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
