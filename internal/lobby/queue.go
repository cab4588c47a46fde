// internal/lobby/queue.go

// Package lobby implements the voice-channel queues that collect players
// until a lobby is full and then hand the roster to match setup.
package lobby

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"time"

	"github.com/elliotchance/pie/v2"
	"github.com/google/uuid"
	"github.com/sirupsen/logrus"
	"golang.org/x/sync/errgroup"

	"github.com/jason-s-yu/matchhost/internal/database"
	"github.com/jason-s-yu/matchhost/internal/interaction"
	"github.com/jason-s-yu/matchhost/internal/match"
	"github.com/jason-s-yu/matchhost/internal/metrics"
	"github.com/jason-s-yu/matchhost/internal/models"
	"github.com/jason-s-yu/matchhost/internal/setup"
)

var (
	ErrAlreadyQueued = errors.New("user is already in the queue")
	ErrNotLinked     = errors.New("user has not linked a game account")
	ErrInMatch       = errors.New("user is in a live match")
	ErrLobbyFull     = errors.New("lobby is full")
	ErrStoreConflict = errors.New("please try again (database error)")
	ErrLobbyNotFound = errors.New("lobby not found")
	ErrInvalidLobby  = errors.New("invalid lobby settings")
	ErrLobbyBusy     = errors.New("lobby is starting a match")
)

// Store is the persistence the queue needs.
type Store interface {
	GetGuild(ctx context.Context, id string) (models.Guild, error)
	InsertLobby(ctx context.Context, l models.Lobby) error
	GetLobby(ctx context.Context, id uuid.UUID) (models.Lobby, error)
	GetLobbyByChannel(ctx context.Context, channelID string) (models.Lobby, error)
	GetGuildLobbies(ctx context.Context, guildID string) ([]models.Lobby, error)
	UpdateLobbyMessage(ctx context.Context, id uuid.UUID, messageID string) error
	DeleteLobby(ctx context.Context, id uuid.UUID) error
	GetLobbyUsers(ctx context.Context, lobbyID uuid.UUID) ([]string, error)
	InsertLobbyUser(ctx context.Context, lobbyID uuid.UUID, userID string) error
	DeleteLobbyUsers(ctx context.Context, lobbyID uuid.UUID, userIDs ...string) (int, error)
	ClearLobbyUsers(ctx context.Context, lobbyID uuid.UUID) error
	GetPlayer(ctx context.Context, userID string) (models.Player, error)
	GetUserCurrentMatch(ctx context.Context, userID string) (models.Match, error)
}

// Starter runs match setup for a confirmed roster. A false return means the
// players go back to the waiting channel.
type Starter interface {
	Start(ctx context.Context, req match.SetupRequest) bool
}

type Deps struct {
	Store    Store
	Delivery interaction.Delivery
	Router   *interaction.Router
	Starter  Starter
	Metrics  metrics.Recorder
	Logger   *logrus.Logger

	ReadyTimeout time.Duration
}

// Queue serializes joins and leaves per lobby and promotes full lobbies.
type Queue struct {
	store        Store
	delivery     interaction.Delivery
	router       *interaction.Router
	starter      Starter
	metrics      metrics.Recorder
	logger       *logrus.Logger
	readyTimeout time.Duration
	registry     *RuntimeRegistry

	// promotions outlive the join that triggered them; they run on ctx.
	ctx    context.Context
	cancel context.CancelFunc
	wg     sync.WaitGroup
}

func NewQueue(d Deps) *Queue {
	if d.Metrics == nil {
		d.Metrics = metrics.Nop{}
	}
	if d.Logger == nil {
		d.Logger = logrus.New()
	}
	ctx, cancel := context.WithCancel(context.Background())
	return &Queue{
		store:        d.Store,
		delivery:     d.Delivery,
		router:       d.Router,
		starter:      d.Starter,
		metrics:      d.Metrics,
		logger:       d.Logger,
		readyTimeout: d.ReadyTimeout,
		registry:     NewRuntimeRegistry(),
		ctx:          ctx,
		cancel:       cancel,
	}
}

// Registry exposes the per-lobby runtime state.
func (q *Queue) Registry() *RuntimeRegistry {
	return q.registry
}

// Close cancels running promotions and waits for them to tear down.
func (q *Queue) Close() {
	q.cancel()
	q.wg.Wait()
}

// Wait blocks until every running promotion has finished.
func (q *Queue) Wait() {
	q.wg.Wait()
}

// Join adds p to the lobby roster and returns the roster. While the lobby is
// being promoted the call is ignored and returns a nil roster and no error.
func (q *Queue) Join(ctx context.Context, lobbyID uuid.UUID, p models.Participant) ([]string, error) {
	rt := q.registry.get(lobbyID)
	rt.mu.Lock()
	defer rt.mu.Unlock()

	if rt.inProgress {
		q.logger.WithFields(logrus.Fields{"lobby_id": lobbyID, "user_id": p.UserID}).Debug("join ignored, lobby in progress")
		return nil, nil
	}

	l, err := q.getLobby(ctx, lobbyID)
	if err != nil {
		q.forgetMissing(lobbyID, err)
		return nil, err
	}

	roster, err := q.admitUnsafe(ctx, l, p)
	if err != nil {
		if isRejection(err) {
			q.refreshQueueMessage(ctx, l, rt, fmt.Sprintf("%s: %v", p.Name, err))
		}
		return nil, err
	}
	if p.Name != "" {
		rt.names[p.UserID] = p.Name
	}

	if len(roster) < l.Capacity {
		q.refreshQueueMessage(ctx, l, rt, fmt.Sprintf("%s joined the queue", displayName(p)))
		return roster, nil
	}

	rt.inProgress = true
	members := participantsUnsafe(rt, roster)
	q.wg.Add(1)
	go q.promote(l, members, rt)
	return roster, nil
}

// admitUnsafe checks the join preconditions in order and inserts the member.
func (q *Queue) admitUnsafe(ctx context.Context, l models.Lobby, p models.Participant) ([]string, error) {
	if _, err := q.store.GetPlayer(ctx, p.UserID); err != nil {
		if errors.Is(err, database.ErrNotFound) {
			return nil, ErrNotLinked
		}
		return nil, fmt.Errorf("failed to get player: %w", err)
	}
	if _, err := q.store.GetUserCurrentMatch(ctx, p.UserID); err == nil {
		return nil, ErrInMatch
	} else if !errors.Is(err, database.ErrNotFound) {
		return nil, fmt.Errorf("failed to get current match: %w", err)
	}

	roster, err := q.store.GetLobbyUsers(ctx, l.ID)
	if err != nil {
		return nil, fmt.Errorf("failed to get lobby users: %w", err)
	}
	if pie.Contains(roster, p.UserID) {
		return nil, ErrAlreadyQueued
	}
	if len(roster) >= l.Capacity {
		return nil, ErrLobbyFull
	}
	if err := q.store.InsertLobbyUser(ctx, l.ID, p.UserID); err != nil {
		if errors.Is(err, database.ErrConflict) {
			return nil, ErrStoreConflict
		}
		return nil, fmt.Errorf("failed to insert lobby user: %w", err)
	}
	return append(roster, p.UserID), nil
}

// Leave removes a member. Leaving a lobby one is not queued in is a no-op,
// and leaves during promotion are ignored.
func (q *Queue) Leave(ctx context.Context, lobbyID uuid.UUID, userID string) error {
	rt := q.registry.get(lobbyID)
	rt.mu.Lock()
	defer rt.mu.Unlock()

	if rt.inProgress {
		q.logger.WithFields(logrus.Fields{"lobby_id": lobbyID, "user_id": userID}).Debug("leave ignored, lobby in progress")
		return nil
	}
	l, err := q.getLobby(ctx, lobbyID)
	if err != nil {
		q.forgetMissing(lobbyID, err)
		return err
	}
	n, err := q.store.DeleteLobbyUsers(ctx, lobbyID, userID)
	if err != nil {
		return fmt.Errorf("failed to delete lobby user: %w", err)
	}
	if n == 0 {
		return nil
	}
	name := rt.names[userID]
	delete(rt.names, userID)
	q.refreshQueueMessage(ctx, l, rt, fmt.Sprintf("%s left the queue", displayName(models.Participant{UserID: userID, Name: name})))
	return nil
}

// Roster returns the queued members in join order.
func (q *Queue) Roster(ctx context.Context, lobbyID uuid.UUID) ([]string, error) {
	if _, err := q.getLobby(ctx, lobbyID); err != nil {
		return nil, err
	}
	return q.store.GetLobbyUsers(ctx, lobbyID)
}

// HandleVoiceState routes a voice channel change to Leave and Join. Users
// rejected by Join are moved back to the waiting channel.
func (q *Queue) HandleVoiceState(ctx context.Context, guildID string, p models.Participant, before, after string) {
	if before == after {
		return
	}
	log := q.logger.WithFields(logrus.Fields{"guild_id": guildID, "user_id": p.UserID})

	if before != "" {
		if l, err := q.store.GetLobbyByChannel(ctx, before); err == nil {
			if err := q.Leave(ctx, l.ID, p.UserID); err != nil {
				log.WithError(err).Error("failed to leave lobby")
			}
		}
	}
	if after == "" {
		return
	}
	l, err := q.store.GetLobbyByChannel(ctx, after)
	if err != nil {
		return
	}
	if _, err := q.Join(ctx, l.ID, p); err != nil {
		log = log.WithField("lobby_id", l.ID)
		if !isRejection(err) {
			log.WithError(err).Error("failed to join lobby")
			return
		}
		log.WithError(err).Info("join rejected")
		if errors.Is(err, ErrAlreadyQueued) {
			return
		}
		guild, gerr := q.store.GetGuild(ctx, guildID)
		if gerr != nil || guild.WaitingChannelID == "" {
			return
		}
		if err := q.delivery.MoveUser(ctx, guildID, p.UserID, guild.WaitingChannelID); err != nil {
			log.WithError(err).Warn("failed to move rejected user")
		}
	}
}

// promote runs the ready check and match setup for a full roster. The lobby
// reopens whatever happens. A timed out check evicts only the unready
// members; every other outcome clears the roster.
func (q *Queue) promote(l models.Lobby, members []models.Participant, rt *runtime) {
	defer q.wg.Done()
	ctx := q.ctx
	log := q.logger.WithFields(logrus.Fields{"lobby_id": l.ID, "guild_id": l.GuildID})
	users := pie.Map(members, func(p models.Participant) string { return p.UserID })

	guild, err := q.store.GetGuild(ctx, l.GuildID)
	if err != nil {
		log.WithError(err).Warn("guild not configured, users will not be moved")
	}

	var evict []string
	defer func() {
		if r := recover(); r != nil {
			log.WithField("panic", r).Error("lobby promotion panicked")
			evict = nil
		}
		q.release(l.ID, rt, evict)
	}()

	q.metrics.LobbyPromoted()
	log.Info("lobby full, starting ready check")

	if l.MessageID != "" {
		if err := q.delivery.DeleteStatus(ctx, l.ChannelID, l.MessageID); err != nil {
			log.WithError(err).Warn("failed to delete queue message")
		}
		if err := q.store.UpdateLobbyMessage(ctx, l.ID, ""); err != nil {
			log.WithError(err).Warn("failed to reset queue message")
		}
	}

	setupID := uuid.NewString()
	res, messageID, err := q.readyCheck(ctx, l, setupID, users)
	if err != nil {
		log.WithError(err).Error("failed to run ready check")
		q.moveUsers(ctx, guild, users)
		return
	}

	if res.State != setup.ReadyAll {
		log.WithField("unready", res.Unready).Info("ready check timed out")
		q.moveUsers(ctx, guild, res.Unready)
		evict = res.Unready
		return
	}

	started := q.starter.Start(ctx, match.SetupRequest{
		SetupID:      setupID,
		Lobby:        l,
		Guild:        guild,
		Participants: members,
		ChannelID:    l.ChannelID,
		MessageID:    messageID,
	})
	if !started {
		q.moveUsers(ctx, guild, users)
	}
}

// readyCheck sends the ready prompt and blocks until the check is terminal.
func (q *Queue) readyCheck(ctx context.Context, l models.Lobby, setupID string, users []string) (setup.ReadyResult, string, error) {
	promptID := setupID + ":ready"
	rc := setup.NewReadyCheck(users, q.readyTimeout)

	messageID, err := q.delivery.SendStatus(ctx, l.ChannelID, renderReady(setup.ReadyEvent{Pending: users}, promptID, q.readyTimeout))
	if err != nil {
		return setup.ReadyResult{}, "", fmt.Errorf("failed to send ready check: %w", err)
	}
	board := interaction.NewBoard(q.delivery, l.ChannelID, messageID)
	stage := board.Stage()
	rc.OnUpdate = func(ev setup.ReadyEvent) {
		if err := stage.Show(ctx, ev.Seq, renderReady(ev, promptID, q.readyTimeout)); err != nil {
			q.logger.WithError(err).WithField("lobby_id", l.ID).Warn("failed to update ready check")
		}
	}
	unregister := q.router.Register(promptID, func(_ context.Context, a interaction.Action) error {
		return rc.Confirm(a.UserID)
	})
	defer unregister()

	rc.Start()
	res := rc.Wait(ctx)
	q.metrics.ReadyCheckEnded(res.State.String())

	final := setup.ReadyEvent{State: res.State, Ready: res.Ready, Pending: res.Unready}
	if err := board.Set(context.WithoutCancel(ctx), renderReady(final, promptID, q.readyTimeout)); err != nil {
		q.logger.WithError(err).WithField("lobby_id", l.ID).Warn("failed to update ready check")
	}
	return res, messageID, nil
}

// release reopens the lobby. With evict set only those members leave the
// roster, otherwise it is cleared.
func (q *Queue) release(lobbyID uuid.UUID, rt *runtime, evict []string) {
	ctx := context.WithoutCancel(q.ctx)
	rt.mu.Lock()
	defer rt.mu.Unlock()

	log := q.logger.WithField("lobby_id", lobbyID)
	if len(evict) > 0 {
		if _, err := q.store.DeleteLobbyUsers(ctx, lobbyID, evict...); err != nil {
			log.WithError(err).Error("failed to evict unready users")
		}
		for _, user := range evict {
			delete(rt.names, user)
		}
	} else {
		if err := q.store.ClearLobbyUsers(ctx, lobbyID); err != nil {
			log.WithError(err).Error("failed to clear lobby users")
		}
		rt.names = make(map[string]string)
	}
	rt.inProgress = false

	l, err := q.store.GetLobby(ctx, lobbyID)
	if err != nil {
		// deleted while promoting
		return
	}
	q.refreshQueueMessage(ctx, l, rt, "")
}

// refreshQueueMessage edits the queue artifact, sending a new one when it is
// missing. Assumes rt.mu is held.
func (q *Queue) refreshQueueMessage(ctx context.Context, l models.Lobby, rt *runtime, title string) {
	log := q.logger.WithField("lobby_id", l.ID)
	roster, err := q.store.GetLobbyUsers(ctx, l.ID)
	if err != nil {
		log.WithError(err).Warn("failed to load roster for queue message")
		return
	}
	st := renderQueue(l, participantsUnsafe(rt, roster), title)
	if l.MessageID != "" {
		if err := q.delivery.EditStatus(ctx, l.ChannelID, l.MessageID, st); err == nil {
			return
		}
	}
	messageID, err := q.delivery.SendStatus(ctx, l.ChannelID, st)
	if err != nil {
		log.WithError(err).Warn("failed to send queue message")
		return
	}
	if err := q.store.UpdateLobbyMessage(ctx, l.ID, messageID); err != nil {
		log.WithError(err).Warn("failed to store queue message")
	}
}

// moveUsers sends users to the waiting channel in parallel. Failures are
// logged per user.
func (q *Queue) moveUsers(ctx context.Context, guild models.Guild, users []string) {
	if guild.WaitingChannelID == "" || len(users) == 0 {
		return
	}
	var g errgroup.Group
	for _, user := range users {
		g.Go(func() error {
			if err := q.delivery.MoveUser(ctx, guild.ID, user, guild.WaitingChannelID); err != nil {
				q.logger.WithError(err).WithField("user_id", user).Warn("failed to move user to waiting channel")
			}
			return nil
		})
	}
	_ = g.Wait()
}

func (q *Queue) getLobby(ctx context.Context, id uuid.UUID) (models.Lobby, error) {
	l, err := q.store.GetLobby(ctx, id)
	if errors.Is(err, database.ErrNotFound) {
		return models.Lobby{}, ErrLobbyNotFound
	}
	if err != nil {
		return models.Lobby{}, fmt.Errorf("failed to get lobby: %w", err)
	}
	return l, nil
}

// forgetMissing drops a runtime entry created for a lobby that no longer
// exists.
func (q *Queue) forgetMissing(lobbyID uuid.UUID, err error) {
	if errors.Is(err, ErrLobbyNotFound) {
		q.registry.Remove(lobbyID)
	}
}

// isRejection reports whether err is a join precondition failure.
func isRejection(err error) bool {
	for _, target := range []error{ErrAlreadyQueued, ErrNotLinked, ErrInMatch, ErrLobbyFull, ErrStoreConflict} {
		if errors.Is(err, target) {
			return true
		}
	}
	return false
}

func participantsUnsafe(rt *runtime, roster []string) []models.Participant {
	return pie.Map(roster, func(u string) models.Participant {
		return models.Participant{UserID: u, Name: rt.names[u]}
	})
}

func displayName(p models.Participant) string {
	if p.Name != "" {
		return p.Name
	}
	return interaction.Mention(p.UserID)
}
