// internal/lobby/admin.go
package lobby

import (
	"context"
	"errors"
	"fmt"

	"github.com/elliotchance/pie/v2"
	"github.com/google/uuid"
	"github.com/sirupsen/logrus"

	"github.com/jason-s-yu/matchhost/internal/database"
	"github.com/jason-s-yu/matchhost/internal/interaction"
	"github.com/jason-s-yu/matchhost/internal/models"
)

// CreateLobby validates the settings, creates the queue voice channel and
// posts the queue message.
func (q *Queue) CreateLobby(ctx context.Context, guildID string, settings models.LobbySettings) (models.Lobby, error) {
	s := settings.WithDefaults()
	if err := s.Validate(); err != nil {
		return models.Lobby{}, fmt.Errorf("%w: %v", ErrInvalidLobby, err)
	}
	guild, err := q.store.GetGuild(ctx, guildID)
	if err != nil {
		return models.Lobby{}, fmt.Errorf("failed to get guild %s: %w", guildID, err)
	}

	l := models.Lobby{
		ID:            uuid.New(),
		GuildID:       guildID,
		Capacity:      s.Capacity,
		TeamMethod:    s.TeamMethod,
		CaptainMethod: s.CaptainMethod,
		MapMethod:     s.MapMethod,
		GameMode:      s.GameMode,
		ConnectTime:   s.ConnectTime,
	}
	channelID, err := q.delivery.CreateVoiceChannel(ctx, guildID, interaction.VoiceChannel{
		Name:      "Lobby " + l.ID.String()[:8],
		ParentID:  guild.CategoryID,
		UserLimit: s.Capacity,
	})
	if err != nil {
		return models.Lobby{}, fmt.Errorf("failed to create lobby channel: %w", err)
	}
	l.ChannelID = channelID

	if err := q.store.InsertLobby(ctx, l); err != nil {
		if derr := q.delivery.DeleteChannel(ctx, channelID); derr != nil {
			q.logger.WithError(derr).Warn("failed to delete orphaned lobby channel")
		}
		return models.Lobby{}, fmt.Errorf("failed to insert lobby: %w", err)
	}

	rt := q.registry.get(l.ID)
	rt.mu.Lock()
	q.refreshQueueMessage(ctx, l, rt, "Lobby created")
	rt.mu.Unlock()

	q.logger.WithFields(logrus.Fields{"lobby_id": l.ID, "guild_id": guildID}).Info("lobby created")
	return q.store.GetLobby(ctx, l.ID)
}

// Lobbies lists the lobbies of a guild.
func (q *Queue) Lobbies(ctx context.Context, guildID string) ([]models.Lobby, error) {
	return q.store.GetGuildLobbies(ctx, guildID)
}

// DeleteLobby moves members out, removes the lobby with its channel and
// queue message, and forgets its runtime state.
func (q *Queue) DeleteLobby(ctx context.Context, lobbyID uuid.UUID) error {
	rt := q.registry.get(lobbyID)
	rt.mu.Lock()
	defer rt.mu.Unlock()

	if rt.inProgress {
		return ErrLobbyBusy
	}
	l, err := q.getLobby(ctx, lobbyID)
	if err != nil {
		return err
	}
	log := q.logger.WithFields(logrus.Fields{"lobby_id": lobbyID, "guild_id": l.GuildID})

	q.evictUnsafe(ctx, l)
	if err := q.store.DeleteLobby(ctx, lobbyID); err != nil && !errors.Is(err, database.ErrNotFound) {
		return fmt.Errorf("failed to delete lobby: %w", err)
	}
	if l.MessageID != "" {
		if err := q.delivery.DeleteStatus(ctx, l.ChannelID, l.MessageID); err != nil {
			log.WithError(err).Warn("failed to delete queue message")
		}
	}
	if err := q.delivery.DeleteChannel(ctx, l.ChannelID); err != nil {
		log.WithError(err).Warn("failed to delete lobby channel")
	}
	q.registry.Remove(lobbyID)
	log.Info("lobby deleted")
	return nil
}

// EmptyLobby moves every member to the waiting channel and clears the roster.
func (q *Queue) EmptyLobby(ctx context.Context, lobbyID uuid.UUID) error {
	rt := q.registry.get(lobbyID)
	rt.mu.Lock()
	defer rt.mu.Unlock()

	if rt.inProgress {
		return ErrLobbyBusy
	}
	l, err := q.getLobby(ctx, lobbyID)
	if err != nil {
		return err
	}
	q.evictUnsafe(ctx, l)
	if err := q.store.ClearLobbyUsers(ctx, lobbyID); err != nil {
		return fmt.Errorf("failed to clear lobby users: %w", err)
	}
	rt.names = make(map[string]string)
	q.refreshQueueMessage(ctx, l, rt, "Lobby emptied")
	return nil
}

// evictUnsafe moves queued members and anyone else in the lobby channel to
// the waiting channel.
func (q *Queue) evictUnsafe(ctx context.Context, l models.Lobby) {
	guild, err := q.store.GetGuild(ctx, l.GuildID)
	if err != nil {
		return
	}
	users, err := q.store.GetLobbyUsers(ctx, l.ID)
	if err != nil {
		q.logger.WithError(err).WithField("lobby_id", l.ID).Warn("failed to load lobby users")
	}
	if present, err := q.delivery.ChannelMembers(ctx, l.GuildID, l.ChannelID); err == nil {
		users = append(users, present...)
	}
	q.moveUsers(ctx, guild, pie.Unique(users))
}
