// internal/match/lifecycle.go

// Package match drives a confirmed roster through team formation, map and
// region negotiation, server provisioning, and finally teardown when the
// provider reports the end of the match.
package match

import (
	"context"
	"errors"
	"fmt"
	"math/rand"
	"sync"
	"time"

	"github.com/sirupsen/logrus"

	"github.com/jason-s-yu/matchhost/internal/interaction"
	"github.com/jason-s-yu/matchhost/internal/metrics"
	"github.com/jason-s-yu/matchhost/internal/models"
	"github.com/jason-s-yu/matchhost/internal/provider"
)

var (
	ErrNoServerAvailable = errors.New("no game server available at the moment")
	ErrServerUnreachable = errors.New("game server did not report an address")
	ErrMatchNotFound     = errors.New("match not found")
	ErrMatchOver         = errors.New("match is already over")
	ErrNotLinked         = errors.New("user has not linked a game account")
	ErrSetupTimeout      = errors.New("setup took too long")
)

// Setup failure kinds, used as metric labels.
const (
	KindTimeout      = "timeout"
	KindCanceled     = "canceled"
	KindNoServer     = "no_server"
	KindUnauthorized = "unauthorized"
	KindProvider     = "provider"
	KindUnreachable  = "unreachable"
	KindNotLinked    = "not_linked"
	KindInternal     = "internal"
)

// SetupError is a named setup failure. Reason is shown on the setup status.
type SetupError struct {
	Kind   string
	Reason string
	Err    error
}

func (e *SetupError) Error() string {
	if e.Err == nil {
		return e.Reason
	}
	return e.Reason + ": " + e.Err.Error()
}

func (e *SetupError) Unwrap() error { return e.Err }

// Provider is the game-server provider API.
type Provider interface {
	ListGameServers(ctx context.Context) ([]provider.GameServer, error)
	GetGameServer(ctx context.Context, id string) (provider.GameServer, error)
	UpdateGameServer(ctx context.Context, id string, mode models.GameMode, location string) error
	StopGameServer(ctx context.Context, id string) error
	CreateMatch(ctx context.Context, req provider.CreateMatchRequest) (provider.Match, error)
	GetMatch(ctx context.Context, id string) (provider.Match, error)
	CancelMatch(ctx context.Context, id string) error
	AddMatchPlayer(ctx context.Context, matchID string, p provider.MatchPlayer) error
}

// Publisher receives the match event stream.
type Publisher interface {
	Publish(ctx context.Context, ev models.MatchEvent) error
}

// Store is the persistence the lifecycle needs.
type Store interface {
	GetGuild(ctx context.Context, id string) (models.Guild, error)
	GetPlayer(ctx context.Context, userID string) (models.Player, error)
	GetPlayerBySteamID(ctx context.Context, steamID string) (models.Player, error)
	GetPlayers(ctx context.Context, userIDs []string) ([]models.Player, error)
	GetPlayerStats(ctx context.Context, userIDs []string) ([]models.PlayerStats, error)
	GetSpectators(ctx context.Context, guildID string) ([]string, error)
	InsertMatch(ctx context.Context, m models.Match, assignments []models.TeamAssignment) error
	InsertTeamAssignment(ctx context.Context, a models.TeamAssignment) error
	GetMatch(ctx context.Context, id string) (models.Match, error)
	GetMatchByAPIKey(ctx context.Context, key string) (models.Match, error)
	GetTeamAssignments(ctx context.Context, matchID string) ([]models.TeamAssignment, error)
	UpdateMatchProgress(ctx context.Context, id string, team1Score, team2Score, rounds int) error
	FinalizeMatch(ctx context.Context, id string, res models.MatchResult) (bool, error)
	UpdatePlayerMatchStats(ctx context.Context, matchID, userID string, st models.RoundStats) error
}

// Config holds the setup rules.
type Config struct {
	MapPool              []string
	Regions              []models.Region
	DraftTimeout         time.Duration
	VetoTimeout          time.Duration
	RegionTimeout        time.Duration
	ReachabilityAttempts int
	ReachabilityDelay    time.Duration
	MatchBeginCountdown  int
	// PublicBaseURL is where the provider reaches the callback routes.
	PublicBaseURL string
	// Seed fixes the random source; zero seeds from the clock.
	Seed int64
}

type Deps struct {
	Store     Store
	Provider  Provider
	Delivery  interaction.Delivery
	Router    *interaction.Router
	Publisher Publisher
	Metrics   metrics.Recorder
	Logger    *logrus.Logger
}

// SetupRequest is a confirmed roster handed over by a lobby. ChannelID and
// MessageID locate the status artifact the players are watching.
type SetupRequest struct {
	SetupID      string
	Lobby        models.Lobby
	Guild        models.Guild
	Participants []models.Participant
	ChannelID    string
	MessageID    string
}

// Lifecycle owns match setup and teardown.
type Lifecycle struct {
	cfg       Config
	store     Store
	provider  Provider
	delivery  interaction.Delivery
	router    *interaction.Router
	publisher Publisher
	metrics   metrics.Recorder
	logger    *logrus.Logger

	rngMu sync.Mutex
	rng   *rand.Rand

	// locks serializes teardown per match ID.
	locksMu sync.Mutex
	locks   map[string]*sync.Mutex
}

func New(cfg Config, d Deps) *Lifecycle {
	if len(cfg.Regions) == 0 {
		cfg.Regions = models.Regions
	}
	if cfg.ReachabilityAttempts < 1 {
		cfg.ReachabilityAttempts = 1
	}
	seed := cfg.Seed
	if seed == 0 {
		seed = time.Now().UnixNano()
	}
	if d.Metrics == nil {
		d.Metrics = metrics.Nop{}
	}
	if d.Logger == nil {
		d.Logger = logrus.New()
	}
	return &Lifecycle{
		cfg:       cfg,
		store:     d.Store,
		provider:  d.Provider,
		delivery:  d.Delivery,
		router:    d.Router,
		publisher: d.Publisher,
		metrics:   d.Metrics,
		logger:    d.Logger,
		rng:       rand.New(rand.NewSource(seed)),
		locks:     make(map[string]*sync.Mutex),
	}
}

// Start runs the whole setup. It never panics past its boundary; a false
// return means no match was created and the players should be released.
func (lc *Lifecycle) Start(ctx context.Context, req SetupRequest) (started bool) {
	begin := time.Now()
	log := lc.logger.WithFields(logrus.Fields{"lobby_id": req.Lobby.ID, "setup_id": req.SetupID})
	board := interaction.NewBoard(lc.delivery, req.ChannelID, req.MessageID)

	defer func() {
		if r := recover(); r != nil {
			log.WithField("panic", r).Error("match setup panicked")
			lc.fail(ctx, board, req, fmt.Errorf("panic: %v", r))
			started = false
		}
	}()

	m, err := lc.setup(ctx, req, board)
	if err != nil {
		lc.fail(ctx, board, req, err)
		return false
	}
	lc.metrics.MatchStarted(time.Since(begin))
	log.WithField("match_id", m.ID).Info("match is live")
	return true
}

// fail reports a setup failure on the status artifact.
func (lc *Lifecycle) fail(ctx context.Context, board *interaction.Board, req SetupRequest, err error) {
	var se *SetupError
	if !errors.As(err, &se) {
		se = &SetupError{Kind: KindInternal, Reason: "Something went wrong! See logs for details", Err: err}
	}
	lc.metrics.SetupFailed(se.Kind)
	lc.logger.WithFields(logrus.Fields{
		"lobby_id": req.Lobby.ID,
		"setup_id": req.SetupID,
		"kind":     se.Kind,
	}).WithError(se.Err).Warn("match setup failed")

	ctx = context.WithoutCancel(ctx)
	if err := board.Set(ctx, renderFailure(se.Reason)); err != nil {
		lc.logger.WithError(err).Warn("failed to show setup failure")
	}
	lc.publish(ctx, models.MatchEvent{
		LobbyID: req.Lobby.ID.String(),
		Type:    EventSetupFailed,
		Payload: map[string]interface{}{"kind": se.Kind, "reason": se.Reason},
	})
}

// Authenticate resolves the match a callback token belongs to.
func (lc *Lifecycle) Authenticate(ctx context.Context, apiKey string) (models.Match, error) {
	if apiKey == "" {
		return models.Match{}, ErrMatchNotFound
	}
	m, err := lc.store.GetMatchByAPIKey(ctx, apiKey)
	if err != nil {
		return models.Match{}, fmt.Errorf("%w: %v", ErrMatchNotFound, err)
	}
	return m, nil
}

func (lc *Lifecycle) newRand() *rand.Rand {
	lc.rngMu.Lock()
	defer lc.rngMu.Unlock()
	return rand.New(rand.NewSource(lc.rng.Int63()))
}

// lockMatch serializes teardown of one match.
func (lc *Lifecycle) lockMatch(id string) *sync.Mutex {
	lc.locksMu.Lock()
	mu, ok := lc.locks[id]
	if !ok {
		mu = &sync.Mutex{}
		lc.locks[id] = mu
	}
	lc.locksMu.Unlock()
	mu.Lock()
	return mu
}

func (lc *Lifecycle) forgetMatch(id string) {
	lc.locksMu.Lock()
	delete(lc.locks, id)
	lc.locksMu.Unlock()
}
