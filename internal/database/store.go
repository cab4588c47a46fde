package database

import (
	"context"

	"github.com/google/uuid"

	"github.com/jason-s-yu/matchhost/internal/models"
)

// Store is the full persistence surface. Consumers declare the subset they use.
type Store interface {
	UpsertGuild(ctx context.Context, g models.Guild) error
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

	UpsertPlayer(ctx context.Context, p models.Player) error
	GetPlayer(ctx context.Context, userID string) (models.Player, error)
	GetPlayerBySteamID(ctx context.Context, steamID string) (models.Player, error)
	GetPlayers(ctx context.Context, userIDs []string) ([]models.Player, error)
	GetPlayerStats(ctx context.Context, userIDs []string) ([]models.PlayerStats, error)

	GetSpectators(ctx context.Context, guildID string) ([]string, error)
	IsSpectator(ctx context.Context, guildID, userID string) (bool, error)
	InsertSpectator(ctx context.Context, guildID, userID string) error
	DeleteSpectator(ctx context.Context, guildID, userID string) error

	InsertMatch(ctx context.Context, m models.Match, assignments []models.TeamAssignment) error
	InsertTeamAssignment(ctx context.Context, a models.TeamAssignment) error
	GetMatch(ctx context.Context, id string) (models.Match, error)
	GetMatchByAPIKey(ctx context.Context, key string) (models.Match, error)
	GetUserCurrentMatch(ctx context.Context, userID string) (models.Match, error)
	GetTeamAssignments(ctx context.Context, matchID string) ([]models.TeamAssignment, error)
	UpdateMatchProgress(ctx context.Context, id string, team1Score, team2Score, rounds int) error
	FinalizeMatch(ctx context.Context, id string, res models.MatchResult) (bool, error)
	UpdatePlayerMatchStats(ctx context.Context, matchID, userID string, st models.RoundStats) error

	InsertMatchEvents(ctx context.Context, events []models.MatchEvent) error
}

var (
	_ Store = (*PostgresStore)(nil)
	_ Store = (*MemoryStore)(nil)
)
