// internal/models/lobby.go
package models

import (
	"fmt"

	"github.com/google/uuid"
)

// TeamMethod decides how a full lobby is split into two rosters.
type TeamMethod string

const (
	TeamMethodCaptains    TeamMethod = "captains"
	TeamMethodAutobalance TeamMethod = "autobalance"
	TeamMethodRandom      TeamMethod = "random"
)

// CaptainMethod decides how the two captains of a draft are chosen.
type CaptainMethod string

const (
	CaptainMethodRandom    CaptainMethod = "random"
	CaptainMethodRank      CaptainMethod = "rank"
	CaptainMethodVolunteer CaptainMethod = "volunteer"
)

// MapMethod decides how the map is resolved.
type MapMethod string

const (
	MapMethodRandom MapMethod = "random"
	MapMethodVeto   MapMethod = "veto"
)

// GameMode is the provider game mode a server is switched to.
type GameMode string

const (
	GameModeCompetitive GameMode = "competitive"
	GameModeWingman     GameMode = "wingman"
)

const (
	MinLobbyCapacity = 2
	MaxLobbyCapacity = 12
	MinConnectTime   = 60
	MaxConnectTime   = 600
)

// Lobby is a row in the lobbies table. ChannelID is the voice channel members
// queue in; MessageID is the queue status artifact posted in that channel.
type Lobby struct {
	ID            uuid.UUID     `json:"id"`
	GuildID       string        `json:"guild_id"`
	ChannelID     string        `json:"channel_id"`
	MessageID     string        `json:"message_id,omitempty"`
	Capacity      int           `json:"capacity"`
	TeamMethod    TeamMethod    `json:"team_method"`
	CaptainMethod CaptainMethod `json:"captain_method"`
	MapMethod     MapMethod     `json:"map_method"`
	GameMode      GameMode      `json:"game_mode"`
	ConnectTime   int           `json:"connect_time"`
}

// LobbySettings are the admin-supplied options for a new lobby.
type LobbySettings struct {
	Capacity      int           `json:"capacity"`
	TeamMethod    TeamMethod    `json:"team_method"`
	CaptainMethod CaptainMethod `json:"captain_method"`
	MapMethod     MapMethod     `json:"map_method"`
	GameMode      GameMode      `json:"game_mode"`
	ConnectTime   int           `json:"connect_time"`
}

// WithDefaults fills zero-valued fields.
func (s LobbySettings) WithDefaults() LobbySettings {
	if s.Capacity == 0 {
		s.Capacity = 10
	}
	if s.TeamMethod == "" {
		s.TeamMethod = TeamMethodAutobalance
	}
	if s.CaptainMethod == "" {
		s.CaptainMethod = CaptainMethodRank
	}
	if s.MapMethod == "" {
		s.MapMethod = MapMethodVeto
	}
	if s.GameMode == "" {
		s.GameMode = GameModeCompetitive
	}
	if s.ConnectTime == 0 {
		s.ConnectTime = 300
	}
	return s
}

func (s LobbySettings) Validate() error {
	if s.Capacity < MinLobbyCapacity || s.Capacity > MaxLobbyCapacity || s.Capacity%2 != 0 {
		return fmt.Errorf("capacity must be an even number between %d and %d", MinLobbyCapacity, MaxLobbyCapacity)
	}
	switch s.TeamMethod {
	case TeamMethodCaptains, TeamMethodAutobalance, TeamMethodRandom:
	default:
		return fmt.Errorf("unknown team method %q", s.TeamMethod)
	}
	switch s.CaptainMethod {
	case CaptainMethodRandom, CaptainMethodRank, CaptainMethodVolunteer:
	default:
		return fmt.Errorf("unknown captain method %q", s.CaptainMethod)
	}
	switch s.MapMethod {
	case MapMethodRandom, MapMethodVeto:
	default:
		return fmt.Errorf("unknown map method %q", s.MapMethod)
	}
	switch s.GameMode {
	case GameModeCompetitive, GameModeWingman:
	default:
		return fmt.Errorf("unknown game mode %q", s.GameMode)
	}
	if s.ConnectTime < MinConnectTime || s.ConnectTime > MaxConnectTime {
		return fmt.Errorf("connect time must be between %d and %d seconds", MinConnectTime, MaxConnectTime)
	}
	return nil
}

// Settings returns the configurable part of the lobby.
func (l Lobby) Settings() LobbySettings {
	return LobbySettings{
		Capacity:      l.Capacity,
		TeamMethod:    l.TeamMethod,
		CaptainMethod: l.CaptainMethod,
		MapMethod:     l.MapMethod,
		GameMode:      l.GameMode,
		ConnectTime:   l.ConnectTime,
	}
}

// Guild holds the per-server channel configuration.
type Guild struct {
	ID               string `json:"id"`
	LinkedRoleID     string `json:"linked_role_id,omitempty"`
	CategoryID       string `json:"category_id,omitempty"`
	WaitingChannelID string `json:"waiting_channel_id"`
	ResultsChannelID string `json:"results_channel_id,omitempty"`
}
