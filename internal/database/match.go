// internal/database/match.go
package database

import (
	"context"
	"encoding/json"
	"fmt"
	"time"

	"github.com/jackc/pgx/v5"

	"github.com/jason-s-yu/matchhost/internal/models"
)

const matchColumns = `
	id, guild_id, lobby_id, game_server_id, channel_id, message_id,
	category_id, team1_channel_id, team2_channel_id,
	team1_name, team2_name, map_name, connect_time,
	team1_score, team2_score, rounds_played,
	canceled, finished, winner, api_key`

func scanMatch(row pgx.Row) (models.Match, error) {
	var m models.Match
	err := row.Scan(
		&m.ID, &m.GuildID, &m.LobbyID, &m.GameServerID, &m.ChannelID, &m.MessageID,
		&m.CategoryID, &m.Team1ChannelID, &m.Team2ChannelID,
		&m.Team1Name, &m.Team2Name, &m.MapName, &m.ConnectTime,
		&m.Team1Score, &m.Team2Score, &m.RoundsPlayed,
		&m.Canceled, &m.Finished, &m.Winner, &m.APIKey,
	)
	return m, mapErr(err)
}

// InsertMatch persists a match and its team assignments in one transaction.
func (s *PostgresStore) InsertMatch(ctx context.Context, m models.Match, assignments []models.TeamAssignment) error {
	q := `INSERT INTO matches (` + matchColumns + `)
	VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10, $11, $12, $13, $14, $15, $16, $17, $18, $19, $20)`

	err := pgx.BeginTxFunc(ctx, s.db, pgx.TxOptions{}, func(tx pgx.Tx) error {
		if _, err := tx.Exec(ctx, q,
			m.ID, m.GuildID, m.LobbyID, m.GameServerID, m.ChannelID, m.MessageID,
			m.CategoryID, m.Team1ChannelID, m.Team2ChannelID,
			m.Team1Name, m.Team2Name, m.MapName, m.ConnectTime,
			m.Team1Score, m.Team2Score, m.RoundsPlayed,
			m.Canceled, m.Finished, m.Winner, m.APIKey,
		); err != nil {
			return err
		}
		for _, a := range assignments {
			if err := insertAssignmentTx(ctx, tx, a); err != nil {
				return err
			}
		}
		return nil
	})
	if err != nil {
		return fmt.Errorf("failed to insert match: %w", mapErr(err))
	}
	return nil
}

func insertAssignmentTx(ctx context.Context, tx pgx.Tx, a models.TeamAssignment) error {
	q := `
	INSERT INTO match_players (match_id, user_id, steam_id, team)
	VALUES ($1, $2, $3, $4)
	ON CONFLICT (match_id, user_id) DO UPDATE SET team = EXCLUDED.team, steam_id = EXCLUDED.steam_id
	`
	_, err := tx.Exec(ctx, q, a.MatchID, a.UserID, a.SteamID, a.Team)
	return err
}

// InsertTeamAssignment adds a player to an existing match.
func (s *PostgresStore) InsertTeamAssignment(ctx context.Context, a models.TeamAssignment) error {
	err := pgx.BeginTxFunc(ctx, s.db, pgx.TxOptions{}, func(tx pgx.Tx) error {
		return insertAssignmentTx(ctx, tx, a)
	})
	return mapErr(err)
}

func (s *PostgresStore) GetMatch(ctx context.Context, id string) (models.Match, error) {
	return scanMatch(s.db.QueryRow(ctx, `SELECT `+matchColumns+` FROM matches WHERE id = $1`, id))
}

// GetMatchByAPIKey resolves the match a callback token belongs to.
func (s *PostgresStore) GetMatchByAPIKey(ctx context.Context, key string) (models.Match, error) {
	return scanMatch(s.db.QueryRow(ctx, `SELECT `+matchColumns+` FROM matches WHERE api_key = $1`, key))
}

// GetUserCurrentMatch returns the live match the user is assigned to.
func (s *PostgresStore) GetUserCurrentMatch(ctx context.Context, userID string) (models.Match, error) {
	q := `SELECT ` + matchColumns + ` FROM matches
	WHERE NOT finished AND NOT canceled
	  AND id IN (SELECT match_id FROM match_players WHERE user_id = $1)
	ORDER BY created_at DESC
	LIMIT 1`
	return scanMatch(s.db.QueryRow(ctx, q, userID))
}

func (s *PostgresStore) GetTeamAssignments(ctx context.Context, matchID string) ([]models.TeamAssignment, error) {
	q := `
	SELECT match_id, user_id, steam_id, team, kills, deaths, assists, mvps, headshots, k2, k3, k4, k5, score
	FROM match_players WHERE match_id = $1 ORDER BY team, user_id
	`
	rows, err := s.db.Query(ctx, q, matchID)
	if err != nil {
		return nil, err
	}
	return pgx.CollectRows(rows, pgx.RowToStructByPos[models.TeamAssignment])
}

// UpdateMatchProgress records the running score.
func (s *PostgresStore) UpdateMatchProgress(ctx context.Context, id string, team1Score, team2Score, rounds int) error {
	q := `UPDATE matches SET team1_score = $2, team2_score = $3, rounds_played = $4
	WHERE id = $1 AND NOT finished AND NOT canceled`
	_, err := s.exec(ctx, q, id, team1Score, team2Score, rounds)
	return err
}

// FinalizeMatch writes the terminal fields once. It reports false when the
// match was already finished or canceled.
func (s *PostgresStore) FinalizeMatch(ctx context.Context, id string, res models.MatchResult) (bool, error) {
	q := `
	UPDATE matches
	SET team1_score = $2, team2_score = $3, rounds_played = $4, canceled = $5, finished = $6, winner = $7
	WHERE id = $1 AND NOT finished AND NOT canceled
	`
	n, err := s.exec(ctx, q, id, res.Team1Score, res.Team2Score, res.RoundsPlayed, res.Canceled, res.Finished, res.Winner)
	if err != nil {
		return false, fmt.Errorf("failed to finalize match %s: %w", id, err)
	}
	return n == 1, nil
}

// UpdatePlayerMatchStats replaces a player's stat line for a match.
func (s *PostgresStore) UpdatePlayerMatchStats(ctx context.Context, matchID, userID string, st models.RoundStats) error {
	q := `
	UPDATE match_players
	SET kills = $3, deaths = $4, assists = $5, mvps = $6, headshots = $7,
	    k2 = $8, k3 = $9, k4 = $10, k5 = $11, score = $12
	WHERE match_id = $1 AND user_id = $2
	`
	n, err := s.exec(ctx, q, matchID, userID,
		st.Kills, st.Deaths, st.Assists, st.MVPs, st.Headshots,
		st.K2, st.K3, st.K4, st.K5, st.Score,
	)
	if err != nil {
		return err
	}
	if n == 0 {
		return ErrNotFound
	}
	return nil
}

// InsertMatchEvents stores a batch of stream entries in a single transaction.
func (s *PostgresStore) InsertMatchEvents(ctx context.Context, events []models.MatchEvent) error {
	q := `INSERT INTO match_events (match_id, lobby_id, event_type, payload, created_at) VALUES ($1, $2, $3, $4, $5)`
	return pgx.BeginTxFunc(ctx, s.db, pgx.TxOptions{}, func(tx pgx.Tx) error {
		for _, ev := range events {
			payload, err := json.Marshal(ev.Payload)
			if err != nil {
				return fmt.Errorf("marshal payload of %s: %w", ev.Type, err)
			}
			if _, err := tx.Exec(ctx, q, ev.MatchID, ev.LobbyID, ev.Type, payload, time.UnixMilli(ev.Timestamp)); err != nil {
				return fmt.Errorf("insert %s event: %w", ev.Type, err)
			}
		}
		return nil
	})
}
