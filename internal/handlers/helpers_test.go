// internal/handlers/helpers_test.go
package handlers

import (
	"bytes"
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"sync"
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/sirupsen/logrus/hooks/test"
	"github.com/stretchr/testify/require"

	"github.com/jason-s-yu/matchhost/internal/auth"
	"github.com/jason-s-yu/matchhost/internal/database"
	"github.com/jason-s-yu/matchhost/internal/feed"
	"github.com/jason-s-yu/matchhost/internal/lobby"
	"github.com/jason-s-yu/matchhost/internal/match"
	"github.com/jason-s-yu/matchhost/internal/metrics"
	"github.com/jason-s-yu/matchhost/internal/models"
	"github.com/jason-s-yu/matchhost/internal/provider"
)

const adminPassword = "correct horse"

type callbackCall struct {
	kind    string
	match   models.Match
	payload provider.Match
}

// fakeCallbacks resolves one API key to one match.
type fakeCallbacks struct {
	mu      sync.Mutex
	apiKey  string
	match   models.Match
	calls   []callbackCall
	err     error
	panicky bool
}

func (f *fakeCallbacks) Authenticate(_ context.Context, apiKey string) (models.Match, error) {
	if apiKey == "" || apiKey != f.apiKey {
		return models.Match{}, match.ErrMatchNotFound
	}
	return f.match, nil
}

func (f *fakeCallbacks) record(kind string, m models.Match, p provider.Match) error {
	if f.panicky {
		panic("boom")
	}
	f.mu.Lock()
	defer f.mu.Unlock()
	f.calls = append(f.calls, callbackCall{kind: kind, match: m, payload: p})
	return f.err
}

func (f *fakeCallbacks) HandleRoundEnd(_ context.Context, m models.Match, p provider.Match) error {
	return f.record(CallbackRoundEnd, m, p)
}

func (f *fakeCallbacks) HandleMatchEnd(_ context.Context, m models.Match, p provider.Match) error {
	return f.record(CallbackMatchEnd, m, p)
}

func (f *fakeCallbacks) recorded() []callbackCall {
	f.mu.Lock()
	defer f.mu.Unlock()
	return append([]callbackCall(nil), f.calls...)
}

type fakeLobbies struct {
	created []models.LobbySettings
	deleted []uuid.UUID
	emptied []uuid.UUID
	err     error
}

func (f *fakeLobbies) CreateLobby(_ context.Context, guildID string, s models.LobbySettings) (models.Lobby, error) {
	if f.err != nil {
		return models.Lobby{}, f.err
	}
	f.created = append(f.created, s)
	return models.Lobby{ID: uuid.New(), GuildID: guildID, Capacity: s.Capacity}, nil
}

func (f *fakeLobbies) Lobbies(context.Context, string) ([]models.Lobby, error) {
	return nil, f.err
}

func (f *fakeLobbies) DeleteLobby(_ context.Context, id uuid.UUID) error {
	f.deleted = append(f.deleted, id)
	return f.err
}

func (f *fakeLobbies) EmptyLobby(_ context.Context, id uuid.UUID) error {
	f.emptied = append(f.emptied, id)
	return f.err
}

var _ LobbyAdmin = (*lobby.Queue)(nil)

type addedPlayer struct {
	matchID, userID string
	team            models.Team
}

type fakeMatches struct {
	canceled []string
	added    []addedPlayer
	err      error
}

func (f *fakeMatches) Cancel(_ context.Context, id string) error {
	f.canceled = append(f.canceled, id)
	return f.err
}

func (f *fakeMatches) AddPlayer(_ context.Context, matchID, userID string, team models.Team) error {
	f.added = append(f.added, addedPlayer{matchID, userID, team})
	return f.err
}

var (
	_ MatchAdmin       = (*match.Lifecycle)(nil)
	_ CallbackReceiver = (*match.Lifecycle)(nil)
	_ Store            = (*database.MemoryStore)(nil)
)

// recordingMetrics keeps the callback counters.
type recordingMetrics struct {
	metrics.Nop
	mu        sync.Mutex
	callbacks map[string]int
}

func (m *recordingMetrics) CallbackReceived(kind, result string) {
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.callbacks == nil {
		m.callbacks = make(map[string]int)
	}
	m.callbacks[kind+"/"+result]++
}

func (m *recordingMetrics) count(kind, result string) int {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.callbacks[kind+"/"+result]
}

type server struct {
	handler   http.Handler
	store     *database.MemoryStore
	callbacks *fakeCallbacks
	lobbies   *fakeLobbies
	matches   *fakeMatches
	metrics   *recordingMetrics
	hub       *feed.Hub
	sessions  *auth.Sessions
}

func newServer(t *testing.T) *server {
	t.Helper()
	logger, _ := test.NewNullLogger()
	sessions, err := auth.NewSessions(time.Hour)
	require.NoError(t, err)
	hash, err := auth.HashPassword(adminPassword, auth.HashParams{
		Memory: 8 * 1024, Iterations: 1, Parallelism: 1, SaltLength: 16, KeyLength: 32,
	})
	require.NoError(t, err)

	s := &server{
		store:     database.NewMemoryStore(),
		callbacks: &fakeCallbacks{apiKey: "KEY", match: models.Match{ID: "match-1", GuildID: "g1"}},
		lobbies:   &fakeLobbies{},
		matches:   &fakeMatches{},
		metrics:   &recordingMetrics{},
		hub:       feed.NewHub(logger),
		sessions:  sessions,
	}
	s.handler = NewRouter(Deps{
		Logger:            logger,
		Store:             s.store,
		Lobbies:           s.lobbies,
		Matches:           s.matches,
		Callbacks:         s.callbacks,
		Sessions:          sessions,
		AdminPasswordHash: hash,
		Hub:               s.hub,
		Metrics:           s.metrics,
	})
	return s
}

// do sends a request with an optional JSON body and bearer token.
func (s *server) do(t *testing.T, method, path, token string, body interface{}) *httptest.ResponseRecorder {
	t.Helper()
	var buf bytes.Buffer
	if body != nil {
		if raw, ok := body.(string); ok {
			buf.WriteString(raw)
		} else {
			require.NoError(t, json.NewEncoder(&buf).Encode(body))
		}
	}
	req := httptest.NewRequest(method, path, &buf)
	if token != "" {
		req.Header.Set("Authorization", "Bearer "+token)
	}
	w := httptest.NewRecorder()
	s.handler.ServeHTTP(w, req)
	return w
}

func (s *server) adminToken(t *testing.T) string {
	t.Helper()
	token, err := s.sessions.Issue(auth.AdminSubject)
	require.NoError(t, err)
	return token
}
