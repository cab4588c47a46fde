// internal/database/player.go
package database

import (
	"context"
	"fmt"

	"github.com/jackc/pgx/v5"

	"github.com/jason-s-yu/matchhost/internal/models"
)

// UpsertPlayer links or relinks a user. A steam id owned by another user
// yields ErrConflict.
func (s *PostgresStore) UpsertPlayer(ctx context.Context, p models.Player) error {
	q := `
	INSERT INTO players (user_id, steam_id) VALUES ($1, $2)
	ON CONFLICT (user_id) DO UPDATE SET steam_id = EXCLUDED.steam_id
	`
	if _, err := s.exec(ctx, q, p.UserID, p.SteamID); err != nil {
		return fmt.Errorf("failed to link player: %w", err)
	}
	return nil
}

func (s *PostgresStore) GetPlayer(ctx context.Context, userID string) (models.Player, error) {
	var p models.Player
	err := s.db.QueryRow(ctx, `SELECT user_id, steam_id FROM players WHERE user_id = $1`, userID).Scan(&p.UserID, &p.SteamID)
	return p, mapErr(err)
}

func (s *PostgresStore) GetPlayerBySteamID(ctx context.Context, steamID string) (models.Player, error) {
	var p models.Player
	err := s.db.QueryRow(ctx, `SELECT user_id, steam_id FROM players WHERE steam_id = $1`, steamID).Scan(&p.UserID, &p.SteamID)
	return p, mapErr(err)
}

// GetPlayers returns the linked players among userIDs, in input order.
func (s *PostgresStore) GetPlayers(ctx context.Context, userIDs []string) ([]models.Player, error) {
	rows, err := s.db.Query(ctx, `SELECT user_id, steam_id FROM players WHERE user_id = ANY($1)`, userIDs)
	if err != nil {
		return nil, err
	}
	found, err := pgx.CollectRows(rows, pgx.RowToStructByPos[models.Player])
	if err != nil {
		return nil, err
	}
	byID := make(map[string]models.Player, len(found))
	for _, p := range found {
		byID[p.UserID] = p
	}
	out := make([]models.Player, 0, len(found))
	for _, id := range userIDs {
		if p, ok := byID[id]; ok {
			out = append(out, p)
		}
	}
	return out, nil
}

// GetPlayerStats aggregates every non-canceled match of each user. Users
// without history get a zero row.
func (s *PostgresStore) GetPlayerStats(ctx context.Context, userIDs []string) ([]models.PlayerStats, error) {
	q := `
	SELECT mp.user_id,
	       COALESCE(SUM(mp.kills), 0), COALESCE(SUM(mp.deaths), 0), COALESCE(SUM(mp.assists), 0),
	       COALESCE(SUM(mp.mvps), 0), COALESCE(SUM(mp.headshots), 0),
	       COALESCE(SUM(mp.k2), 0), COALESCE(SUM(mp.k3), 0), COALESCE(SUM(mp.k4), 0), COALESCE(SUM(mp.k5), 0),
	       COALESCE(SUM(mp.score), 0), COALESCE(SUM(m.rounds_played), 0),
	       COUNT(*) FILTER (WHERE m.winner = mp.team),
	       COUNT(*)
	FROM match_players mp
	JOIN matches m ON m.id = mp.match_id
	WHERE mp.user_id = ANY($1) AND mp.team <> 'spectator' AND NOT m.canceled
	GROUP BY mp.user_id
	`
	rows, err := s.db.Query(ctx, q, userIDs)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	byID := make(map[string]models.PlayerStats, len(userIDs))
	for rows.Next() {
		var st models.PlayerStats
		if err := rows.Scan(
			&st.UserID,
			&st.Kills, &st.Deaths, &st.Assists,
			&st.MVPs, &st.Headshots,
			&st.K2, &st.K3, &st.K4, &st.K5,
			&st.Score, &st.RoundsPlayed,
			&st.Wins,
			&st.TotalMatches,
		); err != nil {
			return nil, err
		}
		byID[st.UserID] = st
	}
	if err := rows.Err(); err != nil {
		return nil, err
	}

	players, err := s.GetPlayers(ctx, userIDs)
	if err != nil {
		return nil, err
	}
	steam := make(map[string]string, len(players))
	for _, p := range players {
		steam[p.UserID] = p.SteamID
	}

	out := make([]models.PlayerStats, 0, len(userIDs))
	for _, id := range userIDs {
		st := byID[id]
		st.UserID = id
		st.SteamID = steam[id]
		out = append(out, st)
	}
	return out, nil
}

func (s *PostgresStore) GetSpectators(ctx context.Context, guildID string) ([]string, error) {
	rows, err := s.db.Query(ctx, `SELECT user_id FROM spectators WHERE guild_id = $1 ORDER BY user_id`, guildID)
	if err != nil {
		return nil, err
	}
	return pgx.CollectRows(rows, pgx.RowTo[string])
}

func (s *PostgresStore) IsSpectator(ctx context.Context, guildID, userID string) (bool, error) {
	var exists bool
	err := s.db.QueryRow(ctx, `SELECT EXISTS (SELECT 1 FROM spectators WHERE guild_id = $1 AND user_id = $2)`, guildID, userID).Scan(&exists)
	return exists, mapErr(err)
}

func (s *PostgresStore) InsertSpectator(ctx context.Context, guildID, userID string) error {
	_, err := s.exec(ctx, `INSERT INTO spectators (guild_id, user_id) VALUES ($1, $2)`, guildID, userID)
	return err
}

func (s *PostgresStore) DeleteSpectator(ctx context.Context, guildID, userID string) error {
	n, err := s.exec(ctx, `DELETE FROM spectators WHERE guild_id = $1 AND user_id = $2`, guildID, userID)
	if err != nil {
		return err
	}
	if n == 0 {
		return ErrNotFound
	}
	return nil
}
