// internal/match/finalize.go
package match

import (
	"context"
	"errors"
	"fmt"

	"github.com/sirupsen/logrus"
	"golang.org/x/sync/errgroup"

	"github.com/jason-s-yu/matchhost/internal/database"
	"github.com/jason-s-yu/matchhost/internal/models"
	"github.com/jason-s-yu/matchhost/internal/provider"
)

// HandleRoundEnd merges the per-player stats of a round-end snapshot and
// refreshes the live status. One player's failure does not stop the others.
func (lc *Lifecycle) HandleRoundEnd(ctx context.Context, m models.Match, snap provider.Match) error {
	if m.Finalized() {
		return nil
	}
	log := lc.logger.WithField("match_id", m.ID)
	lc.recordStats(ctx, m, snap)

	m.Team1Score, m.Team2Score, m.RoundsPlayed = snap.Team1.Stats.Score, snap.Team2.Stats.Score, snap.RoundsPlayed
	if err := lc.store.UpdateMatchProgress(ctx, m.ID, m.Team1Score, m.Team2Score, m.RoundsPlayed); err != nil {
		return fmt.Errorf("failed to update match progress: %w", err)
	}

	server, err := lc.provider.GetGameServer(ctx, m.GameServerID)
	if err != nil {
		log.WithError(err).Warn("failed to refresh game server")
	}
	assignments, err := lc.store.GetTeamAssignments(ctx, m.ID)
	if err != nil {
		log.WithError(err).Warn("failed to load team assignments")
	}
	if m.MessageID != "" {
		if err := lc.delivery.EditStatus(ctx, m.ChannelID, m.MessageID, renderLive(m, server, assignments)); err != nil {
			log.WithError(err).Warn("failed to refresh live status")
		}
	}

	lc.publish(ctx, matchEvent(m, EventRoundEnd, map[string]interface{}{
		"team1_score":   m.Team1Score,
		"team2_score":   m.Team2Score,
		"rounds_played": m.RoundsPlayed,
	}))
	return nil
}

// HandleMatchEnd stops the server and finalizes with the provider's current
// snapshot, falling back to the callback payload when the fetch fails.
func (lc *Lifecycle) HandleMatchEnd(ctx context.Context, m models.Match, payload provider.Match) error {
	if m.Finalized() {
		return nil
	}
	log := lc.logger.WithField("match_id", m.ID)
	if err := lc.provider.StopGameServer(ctx, m.GameServerID); err != nil {
		log.WithError(err).Warn("failed to stop game server")
	}
	snap, err := lc.provider.GetMatch(ctx, m.ID)
	if err != nil {
		log.WithError(err).Warn("failed to fetch match snapshot, using callback payload")
		snap = payload
	}
	return lc.Finalize(ctx, m, snap)
}

// Cancel stops a live match on the provider and finalizes it as canceled.
func (lc *Lifecycle) Cancel(ctx context.Context, matchID string) error {
	m, err := lc.getMatch(ctx, matchID)
	if err != nil {
		return err
	}
	if m.Finalized() {
		return ErrMatchOver
	}
	log := lc.logger.WithField("match_id", m.ID)
	if err := lc.provider.CancelMatch(ctx, m.ID); err != nil {
		log.WithError(err).Warn("failed to cancel remote match")
	}
	if err := lc.provider.StopGameServer(ctx, m.GameServerID); err != nil {
		log.WithError(err).Warn("failed to stop game server")
	}
	snap, err := lc.provider.GetMatch(ctx, m.ID)
	if err != nil {
		log.WithError(err).Warn("failed to fetch match snapshot, using stored match")
		snap = provider.Match{
			ID:           m.ID,
			GameServerID: m.GameServerID,
			Team1:        provider.MatchTeam{Name: m.Team1Name, Stats: provider.TeamStats{Score: m.Team1Score}},
			Team2:        provider.MatchTeam{Name: m.Team2Name, Stats: provider.TeamStats{Score: m.Team2Score}},
			RoundsPlayed: m.RoundsPlayed,
		}
	}
	if !snap.Canceled() {
		reason := "canceled by admin"
		snap.CancelReason = &reason
	}
	return lc.Finalize(ctx, m, snap)
}

// Finalize tears a match down and writes its final state. A match that is
// already finished or canceled is left untouched.
func (lc *Lifecycle) Finalize(ctx context.Context, m models.Match, snap provider.Match) error {
	mu := lc.lockMatch(m.ID)
	defer mu.Unlock()

	current, err := lc.getMatch(ctx, m.ID)
	if err != nil {
		return err
	}
	if current.Finalized() {
		return nil
	}
	log := lc.logger.WithFields(logrus.Fields{"match_id": current.ID, "guild_id": current.GuildID})
	ctx = context.WithoutCancel(ctx)

	guild, err := lc.store.GetGuild(ctx, current.GuildID)
	if err != nil {
		log.WithError(err).Warn("guild not configured, players stay in team channels")
	}
	lc.evacuate(ctx, guild, current)

	for _, ch := range []string{current.Team2ChannelID, current.Team1ChannelID, current.CategoryID} {
		if ch == "" {
			continue
		}
		if err := lc.delivery.DeleteChannel(ctx, ch); err != nil {
			log.WithError(err).WithField("channel_id", ch).Warn("failed to delete match channel")
		}
	}
	if current.MessageID != "" {
		if err := lc.delivery.DeleteStatus(ctx, current.ChannelID, current.MessageID); err != nil {
			log.WithError(err).Warn("failed to delete match status")
		}
	}

	res := snap.Result()
	applied, err := lc.store.FinalizeMatch(ctx, current.ID, res)
	if err != nil {
		return fmt.Errorf("failed to finalize match: %w", err)
	}
	if !applied {
		return nil
	}
	lc.forgetMatch(current.ID)

	current.Team1Score, current.Team2Score, current.RoundsPlayed = res.Team1Score, res.Team2Score, res.RoundsPlayed
	current.Finished, current.Canceled, current.Winner = res.Finished, res.Canceled, res.Winner
	payload := map[string]interface{}{
		"team1_score":   res.Team1Score,
		"team2_score":   res.Team2Score,
		"rounds_played": res.RoundsPlayed,
		"winner":        string(res.Winner),
	}

	if res.Canceled {
		lc.metrics.MatchFinalized("canceled")
		if snap.CancelReason != nil {
			payload["cancel_reason"] = *snap.CancelReason
		}
		lc.publish(ctx, matchEvent(current, EventMatchCanceled, payload))
		log.Info("match canceled")
		return nil
	}

	lc.metrics.MatchFinalized("finished")
	lc.recordStats(ctx, current, snap)
	lc.publish(ctx, matchEvent(current, EventMatchFinalized, payload))
	lc.postResults(ctx, guild, current)
	log.WithField("winner", res.Winner).Info("match finished")
	return nil
}

// AddPlayer puts a linked user into a live match.
func (lc *Lifecycle) AddPlayer(ctx context.Context, matchID, userID string, team models.Team) error {
	m, err := lc.getMatch(ctx, matchID)
	if err != nil {
		return err
	}
	if m.Finalized() {
		return ErrMatchOver
	}
	player, err := lc.store.GetPlayer(ctx, userID)
	if errors.Is(err, database.ErrNotFound) {
		return ErrNotLinked
	}
	if err != nil {
		return fmt.Errorf("failed to get player: %w", err)
	}

	if err := lc.provider.AddMatchPlayer(ctx, m.ID, provider.MatchPlayer{SteamID: player.SteamID, Team: string(team)}); err != nil {
		return fmt.Errorf("failed to add player to remote match: %w", err)
	}
	if err := lc.store.InsertTeamAssignment(ctx, models.TeamAssignment{
		MatchID: m.ID,
		UserID:  userID,
		SteamID: player.SteamID,
		Team:    team,
	}); err != nil {
		return fmt.Errorf("failed to insert team assignment: %w", err)
	}

	if ch := m.TeamChannel(team); ch != "" {
		log := lc.logger.WithFields(logrus.Fields{"match_id": m.ID, "user_id": userID})
		if err := lc.delivery.GrantConnect(ctx, ch, userID); err != nil {
			log.WithError(err).Warn("failed to grant team channel access")
		} else if err := lc.delivery.MoveUser(ctx, m.GuildID, userID, ch); err != nil {
			log.WithError(err).Debug("failed to move added player")
		}
	}
	return nil
}

// recordStats writes the per-player stat lines of a snapshot. Players that
// are not linked or fail to persist are skipped.
func (lc *Lifecycle) recordStats(ctx context.Context, m models.Match, snap provider.Match) {
	for _, p := range snap.Players {
		if p.Stats == nil {
			continue
		}
		if team, ok := models.ParseTeam(p.Team); !ok || team == models.TeamSpectator {
			continue
		}
		log := lc.logger.WithFields(logrus.Fields{"match_id": m.ID, "steam_id": p.SteamID})
		player, err := lc.store.GetPlayerBySteamID(ctx, p.SteamID)
		if err != nil {
			log.WithError(err).Debug("stats for unknown player dropped")
			continue
		}
		if err := lc.store.UpdatePlayerMatchStats(ctx, m.ID, player.UserID, p.Stats.RoundStats()); err != nil {
			log.WithError(err).Warn("failed to update player stats")
		}
	}
}

// evacuate moves everyone left in the team channels to the waiting channel.
func (lc *Lifecycle) evacuate(ctx context.Context, guild models.Guild, m models.Match) {
	if guild.WaitingChannelID == "" {
		return
	}
	var g errgroup.Group
	for _, ch := range []string{m.Team1ChannelID, m.Team2ChannelID} {
		if ch == "" {
			continue
		}
		members, err := lc.delivery.ChannelMembers(ctx, m.GuildID, ch)
		if err != nil {
			lc.logger.WithError(err).WithField("channel_id", ch).Warn("failed to list team channel")
			continue
		}
		for _, u := range members {
			g.Go(func() error {
				_ = lc.delivery.MoveUser(ctx, m.GuildID, u, guild.WaitingChannelID)
				return nil
			})
		}
	}
	_ = g.Wait()
}

// postResults sends the scoreboard to the results channel.
func (lc *Lifecycle) postResults(ctx context.Context, guild models.Guild, m models.Match) {
	if guild.ResultsChannelID == "" {
		return
	}
	assignments, err := lc.store.GetTeamAssignments(ctx, m.ID)
	if err != nil {
		lc.logger.WithError(err).WithField("match_id", m.ID).Warn("failed to load results")
		return
	}
	if _, err := lc.delivery.SendStatus(ctx, guild.ResultsChannelID, renderResults(m, assignments)); err != nil {
		lc.logger.WithError(err).WithField("match_id", m.ID).Warn("failed to post results")
	}
}

func (lc *Lifecycle) getMatch(ctx context.Context, id string) (models.Match, error) {
	m, err := lc.store.GetMatch(ctx, id)
	if errors.Is(err, database.ErrNotFound) {
		return models.Match{}, ErrMatchNotFound
	}
	if err != nil {
		return models.Match{}, fmt.Errorf("failed to get match: %w", err)
	}
	return m, nil
}
