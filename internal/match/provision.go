// internal/match/provision.go
package match

import (
	"context"
	"errors"
	"fmt"
	"sort"
	"strings"

	"github.com/cenkalti/backoff/v4"
	"github.com/elliotchance/pie/v2"
	"github.com/sirupsen/logrus"
	"golang.org/x/sync/errgroup"

	"github.com/jason-s-yu/matchhost/internal/auth"
	"github.com/jason-s-yu/matchhost/internal/interaction"
	"github.com/jason-s-yu/matchhost/internal/models"
	"github.com/jason-s-yu/matchhost/internal/provider"
)

// Callback routes the provider posts to.
const (
	MatchEndPath = "/cs2bot-api/match-end"
	RoundEndPath = "/cs2bot-api/round-end"
)

// plan is everything negotiated before provisioning.
type plan struct {
	roster  roster
	mapName string
	region  string
	players map[string]models.Player
	names   map[string]string
}

func (p plan) name(user string) string {
	if n := p.names[user]; n != "" {
		return n
	}
	return user
}

// rollback undoes provisioning steps in reverse order.
type rollback struct {
	lc       *Lifecycle
	log      *logrus.Entry
	matchID  string
	serverID string
	channels []string
}

func (rb *rollback) run(ctx context.Context) {
	ctx = context.WithoutCancel(ctx)
	for i := len(rb.channels) - 1; i >= 0; i-- {
		if err := rb.lc.delivery.DeleteChannel(ctx, rb.channels[i]); err != nil {
			rb.log.WithError(err).Warn("rollback: failed to delete channel")
		}
	}
	if rb.matchID != "" {
		if err := rb.lc.provider.CancelMatch(ctx, rb.matchID); err != nil {
			rb.log.WithError(err).Warn("rollback: failed to cancel remote match")
		}
	}
	if rb.serverID != "" {
		if err := rb.lc.provider.StopGameServer(ctx, rb.serverID); err != nil {
			rb.log.WithError(err).Warn("rollback: failed to stop game server")
		}
	}
}

// provision acquires a server, creates the remote match, waits for it to
// come online, opens team channels and persists the match.
func (lc *Lifecycle) provision(ctx context.Context, req SetupRequest, board *interaction.Board, p plan) (models.Match, error) {
	log := lc.logger.WithFields(logrus.Fields{"lobby_id": req.Lobby.ID, "setup_id": req.SetupID})
	status := func(text string) {
		if err := board.Set(ctx, renderProgress(text)); err != nil {
			log.WithError(err).Warn("failed to update setup status")
		}
	}

	status("Searching for available game servers...")
	server, err := lc.acquireServer(ctx, req.Lobby.GameMode, p.region)
	if err != nil {
		return models.Match{}, err
	}
	log = log.WithField("game_server_id", server.ID)

	status("Setting up match on game server...")
	apiKey, err := auth.GenerateAPIKey()
	if err != nil {
		return models.Match{}, fmt.Errorf("failed to generate api key: %w", err)
	}
	createReq, err := lc.createRequest(ctx, req, server.ID, apiKey, p)
	if err != nil {
		return models.Match{}, err
	}
	created, err := lc.provider.CreateMatch(ctx, createReq)
	if err != nil {
		log.WithError(err).Warn("failed to create match on claimed game server")
		if server.On {
			(&rollback{lc: lc, log: log, serverID: server.ID}).run(ctx)
		}
		return models.Match{}, providerFailure("Failed to create match on game server", err)
	}
	log = log.WithField("match_id", created.ID)
	rb := &rollback{lc: lc, log: log, matchID: created.ID, serverID: server.ID}

	server, err = lc.awaitReachable(ctx, server.ID)
	if err != nil {
		rb.run(ctx)
		if errors.Is(err, provider.ErrUnauthorized) {
			return models.Match{}, providerFailure("", err)
		}
		return models.Match{}, &SetupError{Kind: KindUnreachable, Reason: "Something went wrong on game server.", Err: err}
	}

	status("Setting up teams channels...")
	m := models.Match{
		ID:           created.ID,
		GuildID:      req.Lobby.GuildID,
		LobbyID:      req.Lobby.ID,
		GameServerID: server.ID,
		ChannelID:    req.ChannelID,
		MessageID:    req.MessageID,
		Team1Name:    createReq.Team1.Name,
		Team2Name:    createReq.Team2.Name,
		MapName:      p.mapName,
		ConnectTime:  req.Lobby.ConnectTime,
		Winner:       models.TeamNone,
		APIKey:       apiKey,
	}
	if created.Settings.ConnectTime > 0 {
		m.ConnectTime = created.Settings.ConnectTime
	}
	if err := lc.openChannels(ctx, &m, p.roster, rb); err != nil {
		rb.run(ctx)
		return models.Match{}, err
	}
	lc.moveTeams(ctx, m, p.roster)

	assignments := make([]models.TeamAssignment, 0, len(p.players))
	for i, team := range []models.Team{models.Team1, models.Team2} {
		for _, u := range p.roster.teams[i] {
			assignments = append(assignments, models.TeamAssignment{
				MatchID: m.ID,
				UserID:  u,
				SteamID: p.players[u].SteamID,
				Team:    team,
			})
		}
	}
	if err := lc.store.InsertMatch(ctx, m, assignments); err != nil {
		rb.run(ctx)
		return models.Match{}, fmt.Errorf("failed to persist match: %w", err)
	}

	lc.publish(ctx, matchEvent(m, EventMatchCreated, map[string]interface{}{
		"game_server_id": m.GameServerID,
		"map":            m.MapName,
		"region":         p.region,
		"team1":          p.roster.teams[0],
		"team2":          p.roster.teams[1],
	}))
	if err := board.Set(ctx, renderLive(m, server, assignments)); err != nil {
		log.WithError(err).Warn("failed to show live match")
	}
	return m, nil
}

// acquireServer claims the first idle server and switches it to the game
// mode and region. Servers already in the region are tried first.
func (lc *Lifecycle) acquireServer(ctx context.Context, mode models.GameMode, region string) (provider.GameServer, error) {
	servers, err := lc.provider.ListGameServers(ctx)
	if err != nil {
		return provider.GameServer{}, providerFailure("Failed to list game servers", err)
	}
	idle := pie.Filter(servers, func(s provider.GameServer) bool { return s.Idle() })
	sort.SliceStable(idle, func(i, j int) bool {
		return idle[i].Location == region && idle[j].Location != region
	})
	for _, s := range idle {
		err := lc.provider.UpdateGameServer(ctx, s.ID, mode, region)
		if err == nil {
			s.Location = region
			return s, nil
		}
		if errors.Is(err, provider.ErrUnauthorized) {
			return provider.GameServer{}, providerFailure("", err)
		}
		lc.logger.WithError(err).WithField("game_server_id", s.ID).Warn("failed to claim game server")
	}
	return provider.GameServer{}, &SetupError{Kind: KindNoServer, Reason: "No game server available at the moment.", Err: ErrNoServerAvailable}
}

// createRequest builds the remote match body: both rosters, then any guild
// spectator not already playing.
func (lc *Lifecycle) createRequest(ctx context.Context, req SetupRequest, serverID, apiKey string, p plan) (provider.CreateMatchRequest, error) {
	var players []provider.MatchPlayer
	for i, team := range []models.Team{models.Team1, models.Team2} {
		for _, u := range p.roster.teams[i] {
			players = append(players, provider.MatchPlayer{
				SteamID:          p.players[u].SteamID,
				Team:             string(team),
				NicknameOverride: provider.Nickname(p.name(u)),
			})
		}
	}

	spectators, err := lc.store.GetSpectators(ctx, req.Lobby.GuildID)
	if err != nil {
		lc.logger.WithError(err).Warn("failed to load spectators")
	}
	spectators = pie.Filter(spectators, func(u string) bool { return p.roster.team(u) == models.TeamNone })
	if len(spectators) > 0 {
		linked, err := lc.store.GetPlayers(ctx, spectators)
		if err != nil {
			lc.logger.WithError(err).Warn("failed to load spectator players")
		}
		for _, s := range linked {
			players = append(players, provider.MatchPlayer{SteamID: s.SteamID, Team: string(models.TeamSpectator)})
		}
	}

	base := strings.TrimRight(lc.cfg.PublicBaseURL, "/")
	return provider.CreateMatchRequest{
		GameServerID: serverID,
		Team1:        provider.TeamName{Name: "team_" + p.name(p.roster.captains[0])},
		Team2:        provider.TeamName{Name: "team_" + p.name(p.roster.captains[1])},
		Players:      players,
		Settings: provider.MatchSettings{
			Map:                 p.mapName,
			ConnectTime:         req.Lobby.ConnectTime,
			MatchBeginCountdown: lc.cfg.MatchBeginCountdown,
		},
		Webhooks: provider.Webhooks{
			MatchEndURL:         base + MatchEndPath,
			RoundEndURL:         base + RoundEndPath,
			AuthorizationHeader: "Bearer " + apiKey,
		},
	}, nil
}

// awaitReachable polls the server until it reports an address.
func (lc *Lifecycle) awaitReachable(ctx context.Context, serverID string) (provider.GameServer, error) {
	var server provider.GameServer
	attempts := 0
	policy := backoff.WithContext(
		backoff.WithMaxRetries(backoff.NewConstantBackOff(lc.cfg.ReachabilityDelay), uint64(lc.cfg.ReachabilityAttempts-1)),
		ctx,
	)
	err := backoff.Retry(func() error {
		attempts++
		s, err := lc.provider.GetGameServer(ctx, serverID)
		if errors.Is(err, provider.ErrUnauthorized) {
			return backoff.Permanent(err)
		}
		if err != nil {
			return err
		}
		if !s.Reachable() {
			return ErrServerUnreachable
		}
		server = s
		return nil
	}, policy)
	if err != nil {
		if errors.Is(err, provider.ErrUnauthorized) {
			return provider.GameServer{}, err
		}
		return provider.GameServer{}, fmt.Errorf("%w after %d attempts: %v", ErrServerUnreachable, attempts, err)
	}
	return server, nil
}

// openChannels creates the match category and one voice channel per team,
// open only to that team's players.
func (lc *Lifecycle) openChannels(ctx context.Context, m *models.Match, r roster, rb *rollback) error {
	category, err := lc.delivery.CreateCategory(ctx, m.GuildID, "Match #"+m.ID)
	if err != nil {
		return fmt.Errorf("failed to create match category: %w", err)
	}
	rb.channels = append(rb.channels, category)
	m.CategoryID = category

	for i, dst := range []*string{&m.Team1ChannelID, &m.Team2ChannelID} {
		id, err := lc.delivery.CreateVoiceChannel(ctx, m.GuildID, interaction.VoiceChannel{
			Name:     fmt.Sprintf("Team %d", i+1),
			ParentID: category,
			Allowed:  r.teams[i],
		})
		if err != nil {
			return fmt.Errorf("failed to create team channel: %w", err)
		}
		rb.channels = append(rb.channels, id)
		*dst = id
	}
	return nil
}

// moveTeams moves every player into their team channel. Failures are
// per player and never fatal.
func (lc *Lifecycle) moveTeams(ctx context.Context, m models.Match, r roster) {
	var g errgroup.Group
	for i, channelID := range []string{m.Team1ChannelID, m.Team2ChannelID} {
		for _, u := range r.teams[i] {
			g.Go(func() error {
				if err := lc.delivery.MoveUser(ctx, m.GuildID, u, channelID); err != nil {
					lc.logger.WithError(err).WithFields(logrus.Fields{"match_id": m.ID, "user_id": u}).Debug("failed to move player to team channel")
				}
				return nil
			})
		}
	}
	_ = g.Wait()
}

func providerFailure(reason string, err error) *SetupError {
	if errors.Is(err, provider.ErrUnauthorized) {
		return &SetupError{Kind: KindUnauthorized, Reason: "Game server provider rejected our credentials", Err: err}
	}
	return &SetupError{Kind: KindProvider, Reason: reason, Err: err}
}
