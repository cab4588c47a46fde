package provider

import (
	"fmt"

	"github.com/jason-s-yu/matchhost/internal/models"
)

// GameServer is a rentable server as reported by the provider.
type GameServer struct {
	ID          string      `json:"id"`
	Name        string      `json:"name"`
	Game        string      `json:"game"`
	Location    string      `json:"location"`
	IP          string      `json:"ip"`
	RawIP       string      `json:"raw_ip"`
	On          bool        `json:"on"`
	Booting     bool        `json:"booting"`
	MatchID     string      `json:"match_id"`
	Ports       ServerPorts `json:"ports"`
	CS2Settings CS2Settings `json:"cs2_settings"`
}

type ServerPorts struct {
	Game int `json:"game"`
	GOTV int `json:"gotv"`
}

type CS2Settings struct {
	GameMode string `json:"game_mode"`
}

// Idle reports whether the server can be claimed for a new match.
func (s GameServer) Idle() bool {
	return !s.Booting && s.MatchID == ""
}

// Reachable reports whether the server has an address players can join.
func (s GameServer) Reachable() bool {
	return s.IP != ""
}

// Address is the game address, empty until the server is reachable.
func (s GameServer) Address() string {
	if s.IP == "" {
		return ""
	}
	return fmt.Sprintf("%s:%d", s.IP, s.Ports.Game)
}

// MatchTeam is a team as reported in a match snapshot.
type MatchTeam struct {
	Name  string    `json:"name"`
	Stats TeamStats `json:"stats"`
}

type TeamStats struct {
	Score int `json:"score"`
}

type MatchSettings struct {
	Map                 string `json:"map"`
	ConnectTime         int    `json:"connect_time"`
	MatchBeginCountdown int    `json:"match_begin_countdown,omitempty"`
}

// PlayerStats is a player's stat line inside a match snapshot.
type PlayerStats struct {
	Kills     int `json:"kills"`
	Deaths    int `json:"deaths"`
	Assists   int `json:"assists"`
	Headshots int `json:"kills_with_headshot"`
	MVPs      int `json:"mvps"`
	K2        int `json:"2ks"`
	K3        int `json:"3ks"`
	K4        int `json:"4ks"`
	K5        int `json:"5ks"`
	Score     int `json:"score"`
}

// RoundStats converts to the engine's stat line.
func (s PlayerStats) RoundStats() models.RoundStats {
	return models.RoundStats{
		Kills:     s.Kills,
		Deaths:    s.Deaths,
		Assists:   s.Assists,
		MVPs:      s.MVPs,
		Headshots: s.Headshots,
		K2:        s.K2,
		K3:        s.K3,
		K4:        s.K4,
		K5:        s.K5,
		Score:     s.Score,
	}
}

type MatchPlayer struct {
	MatchID          string       `json:"match_id,omitempty"`
	SteamID          string       `json:"steam_id_64"`
	Team             string       `json:"team"`
	NicknameOverride string       `json:"nickname_override,omitempty"`
	Stats            *PlayerStats `json:"stats,omitempty"`
}

// Match is the full match state the provider reports, both from the REST
// API and in callback payloads.
type Match struct {
	ID           string        `json:"id"`
	GameServerID string        `json:"game_server_id"`
	Team1        MatchTeam     `json:"team1"`
	Team2        MatchTeam     `json:"team2"`
	CancelReason *string       `json:"cancel_reason"`
	Finished     bool          `json:"finished"`
	RoundsPlayed int           `json:"rounds_played"`
	Settings     MatchSettings `json:"settings"`
	Players      []MatchPlayer `json:"players"`
}

func (m Match) Canceled() bool {
	return m.CancelReason != nil && *m.CancelReason != ""
}

// Winner is none when the match did not finish normally or ended level.
func (m Match) Winner() models.Team {
	if m.Canceled() || !m.Finished {
		return models.TeamNone
	}
	switch {
	case m.Team1.Stats.Score > m.Team2.Stats.Score:
		return models.Team1
	case m.Team2.Stats.Score > m.Team1.Stats.Score:
		return models.Team2
	}
	return models.TeamNone
}

// Result is the terminal state to persist for this snapshot. A snapshot
// that is neither finished nor canceled is treated as canceled.
func (m Match) Result() models.MatchResult {
	res := models.MatchResult{
		Team1Score:   m.Team1.Stats.Score,
		Team2Score:   m.Team2.Stats.Score,
		RoundsPlayed: m.RoundsPlayed,
		Canceled:     m.Canceled(),
		Finished:     m.Finished,
		Winner:       m.Winner(),
	}
	if !res.Finished && !res.Canceled {
		res.Canceled = true
	}
	return res
}

// TeamPlayers returns the players reported on one team.
func (m Match) TeamPlayers(team models.Team) []MatchPlayer {
	var out []MatchPlayer
	for _, p := range m.Players {
		if p.Team == string(team) {
			out = append(out, p)
		}
	}
	return out
}

type TeamName struct {
	Name string `json:"name"`
}

type Webhooks struct {
	MatchEndURL         string `json:"match_end_url"`
	RoundEndURL         string `json:"round_end_url"`
	AuthorizationHeader string `json:"authorization_header"`
}

// CreateMatchRequest is the body of a match creation.
type CreateMatchRequest struct {
	GameServerID string        `json:"game_server_id"`
	Team1        TeamName      `json:"team1"`
	Team2        TeamName      `json:"team2"`
	Players      []MatchPlayer `json:"players"`
	Settings     MatchSettings `json:"settings"`
	Webhooks     Webhooks      `json:"webhooks"`
}

// MaxNicknameLength is the provider's limit for nickname overrides.
const MaxNicknameLength = 32

// Nickname truncates a display name to the provider limit.
func Nickname(name string) string {
	r := []rune(name)
	if len(r) > MaxNicknameLength {
		return string(r[:MaxNicknameLength])
	}
	return name
}
