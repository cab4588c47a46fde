// internal/database/lobby.go
package database

import (
	"context"
	"fmt"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"

	"github.com/jason-s-yu/matchhost/internal/models"
)

// UpsertGuild creates or replaces a guild's channel configuration.
func (s *PostgresStore) UpsertGuild(ctx context.Context, g models.Guild) error {
	q := `
	INSERT INTO guilds (id, linked_role_id, category_id, waiting_channel_id, results_channel_id)
	VALUES ($1, $2, $3, $4, $5)
	ON CONFLICT (id) DO UPDATE SET
		linked_role_id = EXCLUDED.linked_role_id,
		category_id = EXCLUDED.category_id,
		waiting_channel_id = EXCLUDED.waiting_channel_id,
		results_channel_id = EXCLUDED.results_channel_id
	`
	if _, err := s.exec(ctx, q, g.ID, g.LinkedRoleID, g.CategoryID, g.WaitingChannelID, g.ResultsChannelID); err != nil {
		return fmt.Errorf("failed to upsert guild: %w", err)
	}
	return nil
}

func (s *PostgresStore) GetGuild(ctx context.Context, id string) (models.Guild, error) {
	var g models.Guild
	q := `SELECT id, linked_role_id, category_id, waiting_channel_id, results_channel_id FROM guilds WHERE id = $1`
	err := s.db.QueryRow(ctx, q, id).Scan(&g.ID, &g.LinkedRoleID, &g.CategoryID, &g.WaitingChannelID, &g.ResultsChannelID)
	return g, mapErr(err)
}

const lobbyColumns = `id, guild_id, channel_id, message_id, capacity, team_method, captain_method, map_method, game_mode, connect_time`

func scanLobby(row pgx.Row) (models.Lobby, error) {
	var l models.Lobby
	err := row.Scan(
		&l.ID,
		&l.GuildID,
		&l.ChannelID,
		&l.MessageID,
		&l.Capacity,
		&l.TeamMethod,
		&l.CaptainMethod,
		&l.MapMethod,
		&l.GameMode,
		&l.ConnectTime,
	)
	return l, mapErr(err)
}

func (s *PostgresStore) InsertLobby(ctx context.Context, l models.Lobby) error {
	q := `INSERT INTO lobbies (` + lobbyColumns + `) VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10)`
	_, err := s.exec(ctx, q,
		l.ID,
		l.GuildID,
		l.ChannelID,
		l.MessageID,
		l.Capacity,
		l.TeamMethod,
		l.CaptainMethod,
		l.MapMethod,
		l.GameMode,
		l.ConnectTime,
	)
	if err != nil {
		return fmt.Errorf("failed to insert lobby: %w", err)
	}
	return nil
}

func (s *PostgresStore) GetLobby(ctx context.Context, id uuid.UUID) (models.Lobby, error) {
	return scanLobby(s.db.QueryRow(ctx, `SELECT `+lobbyColumns+` FROM lobbies WHERE id = $1`, id))
}

// GetLobbyByChannel resolves the lobby queued in a voice channel.
func (s *PostgresStore) GetLobbyByChannel(ctx context.Context, channelID string) (models.Lobby, error) {
	return scanLobby(s.db.QueryRow(ctx, `SELECT `+lobbyColumns+` FROM lobbies WHERE channel_id = $1`, channelID))
}

func (s *PostgresStore) GetGuildLobbies(ctx context.Context, guildID string) ([]models.Lobby, error) {
	rows, err := s.db.Query(ctx, `SELECT `+lobbyColumns+` FROM lobbies WHERE guild_id = $1 ORDER BY channel_id`, guildID)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var out []models.Lobby
	for rows.Next() {
		l, err := scanLobby(rows)
		if err != nil {
			return nil, err
		}
		out = append(out, l)
	}
	return out, rows.Err()
}

func (s *PostgresStore) UpdateLobbyMessage(ctx context.Context, id uuid.UUID, messageID string) error {
	n, err := s.exec(ctx, `UPDATE lobbies SET message_id = $2 WHERE id = $1`, id, messageID)
	if err != nil {
		return err
	}
	if n == 0 {
		return ErrNotFound
	}
	return nil
}

func (s *PostgresStore) DeleteLobby(ctx context.Context, id uuid.UUID) error {
	n, err := s.exec(ctx, `DELETE FROM lobbies WHERE id = $1`, id)
	if err != nil {
		return err
	}
	if n == 0 {
		return ErrNotFound
	}
	return nil
}

// GetLobbyUsers returns members in join order.
func (s *PostgresStore) GetLobbyUsers(ctx context.Context, lobbyID uuid.UUID) ([]string, error) {
	rows, err := s.db.Query(ctx, `SELECT user_id FROM lobby_users WHERE lobby_id = $1 ORDER BY joined_at, user_id`, lobbyID)
	if err != nil {
		return nil, err
	}
	return pgx.CollectRows(rows, pgx.RowTo[string])
}

// InsertLobbyUser adds a member. A user already queued in any lobby yields
// ErrConflict.
func (s *PostgresStore) InsertLobbyUser(ctx context.Context, lobbyID uuid.UUID, userID string) error {
	_, err := s.exec(ctx, `INSERT INTO lobby_users (lobby_id, user_id) VALUES ($1, $2)`, lobbyID, userID)
	return err
}

// DeleteLobbyUsers removes the given members and reports how many were present.
func (s *PostgresStore) DeleteLobbyUsers(ctx context.Context, lobbyID uuid.UUID, userIDs ...string) (int, error) {
	if len(userIDs) == 0 {
		return 0, nil
	}
	n, err := s.exec(ctx, `DELETE FROM lobby_users WHERE lobby_id = $1 AND user_id = ANY($2)`, lobbyID, userIDs)
	return int(n), err
}

func (s *PostgresStore) ClearLobbyUsers(ctx context.Context, lobbyID uuid.UUID) error {
	_, err := s.exec(ctx, `DELETE FROM lobby_users WHERE lobby_id = $1`, lobbyID)
	return err
}
