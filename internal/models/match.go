// internal/models/match.go
package models

import (
	"github.com/google/uuid"
)

// Team labels a roster. The string values are the provider's team labels.
type Team string

const (
	TeamNone      Team = "none"
	Team1         Team = "team1"
	Team2         Team = "team2"
	TeamSpectator Team = "spectator"
)

// ParseTeam accepts the provider labels.
func ParseTeam(s string) (Team, bool) {
	switch Team(s) {
	case Team1, Team2, TeamSpectator:
		return Team(s), true
	}
	return TeamNone, false
}

// Match is a provider-hosted match as persisted by the lifecycle.
type Match struct {
	ID             string    `json:"id"`
	GuildID        string    `json:"guild_id"`
	LobbyID        uuid.UUID `json:"lobby_id"`
	GameServerID   string    `json:"game_server_id"`
	ChannelID      string    `json:"channel_id"`
	MessageID      string    `json:"message_id"`
	CategoryID     string    `json:"category_id"`
	Team1ChannelID string    `json:"team1_channel_id"`
	Team2ChannelID string    `json:"team2_channel_id"`
	Team1Name      string    `json:"team1_name"`
	Team2Name      string    `json:"team2_name"`
	MapName        string    `json:"map_name"`
	ConnectTime    int       `json:"connect_time"`
	Team1Score     int       `json:"team1_score"`
	Team2Score     int       `json:"team2_score"`
	RoundsPlayed   int       `json:"rounds_played"`
	Canceled       bool      `json:"canceled"`
	Finished       bool      `json:"finished"`
	Winner         Team      `json:"winner"`
	APIKey         string    `json:"-"`
}

// Finalized reports whether teardown already ran for the match.
func (m Match) Finalized() bool {
	return m.Finished || m.Canceled
}

// TeamChannel returns the voice channel of the given team.
func (m Match) TeamChannel(t Team) string {
	switch t {
	case Team1:
		return m.Team1ChannelID
	case Team2:
		return m.Team2ChannelID
	}
	return ""
}

// MatchResult is the terminal state written by finalization.
type MatchResult struct {
	Team1Score   int
	Team2Score   int
	RoundsPlayed int
	Canceled     bool
	Finished     bool
	Winner       Team
}

// TeamAssignment is a player's membership and running stat line in one match.
type TeamAssignment struct {
	MatchID   string `json:"match_id"`
	UserID    string `json:"user_id"`
	SteamID   string `json:"steam_id"`
	Team      Team   `json:"team"`
	Kills     int    `json:"kills"`
	Deaths    int    `json:"deaths"`
	Assists   int    `json:"assists"`
	MVPs      int    `json:"mvps"`
	Headshots int    `json:"headshots"`
	K2        int    `json:"k2"`
	K3        int    `json:"k3"`
	K4        int    `json:"k4"`
	K5        int    `json:"k5"`
	Score     int    `json:"score"`
}

// RoundStats is a per-player stat line as reported by the provider.
type RoundStats struct {
	Kills     int `json:"kills"`
	Deaths    int `json:"deaths"`
	Assists   int `json:"assists"`
	MVPs      int `json:"mvps"`
	Headshots int `json:"headshots"`
	K2        int `json:"k2"`
	K3        int `json:"k3"`
	K4        int `json:"k4"`
	K5        int `json:"k5"`
	Score     int `json:"score"`
}

// MatchEvent is one entry of the match event stream.
type MatchEvent struct {
	MatchID   string                 `json:"match_id"`
	LobbyID   string                 `json:"lobby_id,omitempty"`
	Type      string                 `json:"event_type"`
	Payload   map[string]interface{} `json:"payload,omitempty"`
	Timestamp int64                  `json:"timestamp"`
}
