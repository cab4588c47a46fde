// internal/database/memory.go
package database

import (
	"context"
	"fmt"
	"sort"
	"sync"

	"github.com/elliotchance/pie/v2"
	"github.com/google/uuid"

	"github.com/jason-s-yu/matchhost/internal/models"
)

type lobbyMember struct {
	lobbyID uuid.UUID
	seq     int
}

// MemoryStore is an in-process store with the same semantics as
// PostgresStore, including the uniqueness rules.
type MemoryStore struct {
	mu          sync.Mutex
	guilds      map[string]models.Guild
	lobbies     map[uuid.UUID]models.Lobby
	members     map[string]lobbyMember
	memberSeq   int
	players     map[string]models.Player
	spectators  map[string]map[string]bool
	matches     map[string]models.Match
	assignments map[string][]models.TeamAssignment
	events      []models.MatchEvent
}

func NewMemoryStore() *MemoryStore {
	return &MemoryStore{
		guilds:      make(map[string]models.Guild),
		lobbies:     make(map[uuid.UUID]models.Lobby),
		members:     make(map[string]lobbyMember),
		players:     make(map[string]models.Player),
		spectators:  make(map[string]map[string]bool),
		matches:     make(map[string]models.Match),
		assignments: make(map[string][]models.TeamAssignment),
	}
}

func (s *MemoryStore) UpsertGuild(_ context.Context, g models.Guild) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.guilds[g.ID] = g
	return nil
}

func (s *MemoryStore) GetGuild(_ context.Context, id string) (models.Guild, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	g, ok := s.guilds[id]
	if !ok {
		return models.Guild{}, ErrNotFound
	}
	return g, nil
}

func (s *MemoryStore) InsertLobby(_ context.Context, l models.Lobby) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if _, ok := s.lobbies[l.ID]; ok {
		return fmt.Errorf("%w: lobbies_pkey", ErrConflict)
	}
	for _, other := range s.lobbies {
		if other.ChannelID == l.ChannelID {
			return fmt.Errorf("%w: lobbies_channel_id_key", ErrConflict)
		}
	}
	s.lobbies[l.ID] = l
	return nil
}

func (s *MemoryStore) GetLobby(_ context.Context, id uuid.UUID) (models.Lobby, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	l, ok := s.lobbies[id]
	if !ok {
		return models.Lobby{}, ErrNotFound
	}
	return l, nil
}

func (s *MemoryStore) GetLobbyByChannel(_ context.Context, channelID string) (models.Lobby, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	for _, l := range s.lobbies {
		if l.ChannelID == channelID {
			return l, nil
		}
	}
	return models.Lobby{}, ErrNotFound
}

func (s *MemoryStore) GetGuildLobbies(_ context.Context, guildID string) ([]models.Lobby, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	var out []models.Lobby
	for _, l := range s.lobbies {
		if l.GuildID == guildID {
			out = append(out, l)
		}
	}
	sort.Slice(out, func(i, j int) bool { return out[i].ChannelID < out[j].ChannelID })
	return out, nil
}

func (s *MemoryStore) UpdateLobbyMessage(_ context.Context, id uuid.UUID, messageID string) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	l, ok := s.lobbies[id]
	if !ok {
		return ErrNotFound
	}
	l.MessageID = messageID
	s.lobbies[id] = l
	return nil
}

func (s *MemoryStore) DeleteLobby(_ context.Context, id uuid.UUID) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if _, ok := s.lobbies[id]; !ok {
		return ErrNotFound
	}
	delete(s.lobbies, id)
	for user, m := range s.members {
		if m.lobbyID == id {
			delete(s.members, user)
		}
	}
	return nil
}

func (s *MemoryStore) GetLobbyUsers(_ context.Context, lobbyID uuid.UUID) ([]string, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	var users []string
	for user, m := range s.members {
		if m.lobbyID == lobbyID {
			users = append(users, user)
		}
	}
	sort.Slice(users, func(i, j int) bool { return s.members[users[i]].seq < s.members[users[j]].seq })
	return users, nil
}

func (s *MemoryStore) InsertLobbyUser(_ context.Context, lobbyID uuid.UUID, userID string) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if _, ok := s.lobbies[lobbyID]; !ok {
		return ErrNotFound
	}
	if _, ok := s.members[userID]; ok {
		return fmt.Errorf("%w: lobby_users_user_id_key", ErrConflict)
	}
	s.memberSeq++
	s.members[userID] = lobbyMember{lobbyID: lobbyID, seq: s.memberSeq}
	return nil
}

func (s *MemoryStore) DeleteLobbyUsers(_ context.Context, lobbyID uuid.UUID, userIDs ...string) (int, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	n := 0
	for _, user := range userIDs {
		if m, ok := s.members[user]; ok && m.lobbyID == lobbyID {
			delete(s.members, user)
			n++
		}
	}
	return n, nil
}

func (s *MemoryStore) ClearLobbyUsers(_ context.Context, lobbyID uuid.UUID) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	for user, m := range s.members {
		if m.lobbyID == lobbyID {
			delete(s.members, user)
		}
	}
	return nil
}

func (s *MemoryStore) UpsertPlayer(_ context.Context, p models.Player) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	for _, other := range s.players {
		if other.SteamID == p.SteamID && other.UserID != p.UserID {
			return fmt.Errorf("failed to link player: %w: players_steam_id_key", ErrConflict)
		}
	}
	s.players[p.UserID] = p
	return nil
}

func (s *MemoryStore) GetPlayer(_ context.Context, userID string) (models.Player, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	p, ok := s.players[userID]
	if !ok {
		return models.Player{}, ErrNotFound
	}
	return p, nil
}

func (s *MemoryStore) GetPlayerBySteamID(_ context.Context, steamID string) (models.Player, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	for _, p := range s.players {
		if p.SteamID == steamID {
			return p, nil
		}
	}
	return models.Player{}, ErrNotFound
}

func (s *MemoryStore) GetPlayers(_ context.Context, userIDs []string) ([]models.Player, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	out := make([]models.Player, 0, len(userIDs))
	for _, id := range userIDs {
		if p, ok := s.players[id]; ok {
			out = append(out, p)
		}
	}
	return out, nil
}

func (s *MemoryStore) GetPlayerStats(_ context.Context, userIDs []string) ([]models.PlayerStats, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	out := make([]models.PlayerStats, 0, len(userIDs))
	for _, id := range userIDs {
		st := models.PlayerStats{UserID: id, SteamID: s.players[id].SteamID}
		for matchID, list := range s.assignments {
			m := s.matches[matchID]
			if m.Canceled {
				continue
			}
			for _, a := range list {
				if a.UserID != id || a.Team == models.TeamSpectator {
					continue
				}
				st.Kills += a.Kills
				st.Deaths += a.Deaths
				st.Assists += a.Assists
				st.MVPs += a.MVPs
				st.Headshots += a.Headshots
				st.K2 += a.K2
				st.K3 += a.K3
				st.K4 += a.K4
				st.K5 += a.K5
				st.Score += a.Score
				st.RoundsPlayed += m.RoundsPlayed
				st.TotalMatches++
				if m.Winner == a.Team {
					st.Wins++
				}
			}
		}
		out = append(out, st)
	}
	return out, nil
}

func (s *MemoryStore) GetSpectators(_ context.Context, guildID string) ([]string, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	users := pie.Keys(s.spectators[guildID])
	sort.Strings(users)
	return users, nil
}

func (s *MemoryStore) IsSpectator(_ context.Context, guildID, userID string) (bool, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.spectators[guildID][userID], nil
}

func (s *MemoryStore) InsertSpectator(_ context.Context, guildID, userID string) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.spectators[guildID] == nil {
		s.spectators[guildID] = make(map[string]bool)
	}
	if s.spectators[guildID][userID] {
		return fmt.Errorf("%w: spectators_pkey", ErrConflict)
	}
	s.spectators[guildID][userID] = true
	return nil
}

func (s *MemoryStore) DeleteSpectator(_ context.Context, guildID, userID string) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if !s.spectators[guildID][userID] {
		return ErrNotFound
	}
	delete(s.spectators[guildID], userID)
	return nil
}

func (s *MemoryStore) InsertMatch(_ context.Context, m models.Match, assignments []models.TeamAssignment) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if _, ok := s.matches[m.ID]; ok {
		return fmt.Errorf("failed to insert match: %w: matches_pkey", ErrConflict)
	}
	for _, other := range s.matches {
		if other.APIKey == m.APIKey {
			return fmt.Errorf("failed to insert match: %w: matches_api_key_key", ErrConflict)
		}
	}
	if m.Winner == "" {
		m.Winner = models.TeamNone
	}
	s.matches[m.ID] = m
	s.assignments[m.ID] = nil
	for _, a := range assignments {
		s.upsertAssignmentUnsafe(a)
	}
	return nil
}

func (s *MemoryStore) upsertAssignmentUnsafe(a models.TeamAssignment) {
	list := s.assignments[a.MatchID]
	for i := range list {
		if list[i].UserID == a.UserID {
			list[i].Team = a.Team
			list[i].SteamID = a.SteamID
			return
		}
	}
	s.assignments[a.MatchID] = append(list, models.TeamAssignment{
		MatchID: a.MatchID,
		UserID:  a.UserID,
		SteamID: a.SteamID,
		Team:    a.Team,
	})
}

func (s *MemoryStore) InsertTeamAssignment(_ context.Context, a models.TeamAssignment) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if _, ok := s.matches[a.MatchID]; !ok {
		return ErrNotFound
	}
	s.upsertAssignmentUnsafe(a)
	return nil
}

func (s *MemoryStore) GetMatch(_ context.Context, id string) (models.Match, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	m, ok := s.matches[id]
	if !ok {
		return models.Match{}, ErrNotFound
	}
	return m, nil
}

func (s *MemoryStore) GetMatchByAPIKey(_ context.Context, key string) (models.Match, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	for _, m := range s.matches {
		if m.APIKey == key {
			return m, nil
		}
	}
	return models.Match{}, ErrNotFound
}

func (s *MemoryStore) GetUserCurrentMatch(_ context.Context, userID string) (models.Match, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	for id, list := range s.assignments {
		m := s.matches[id]
		if m.Finalized() {
			continue
		}
		for _, a := range list {
			if a.UserID == userID {
				return m, nil
			}
		}
	}
	return models.Match{}, ErrNotFound
}

func (s *MemoryStore) GetTeamAssignments(_ context.Context, matchID string) ([]models.TeamAssignment, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	list := append([]models.TeamAssignment(nil), s.assignments[matchID]...)
	sort.Slice(list, func(i, j int) bool {
		if list[i].Team != list[j].Team {
			return list[i].Team < list[j].Team
		}
		return list[i].UserID < list[j].UserID
	})
	return list, nil
}

func (s *MemoryStore) UpdateMatchProgress(_ context.Context, id string, team1Score, team2Score, rounds int) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	m, ok := s.matches[id]
	if !ok || m.Finalized() {
		return nil
	}
	m.Team1Score, m.Team2Score, m.RoundsPlayed = team1Score, team2Score, rounds
	s.matches[id] = m
	return nil
}

func (s *MemoryStore) FinalizeMatch(_ context.Context, id string, res models.MatchResult) (bool, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	m, ok := s.matches[id]
	if !ok || m.Finalized() {
		return false, nil
	}
	m.Team1Score = res.Team1Score
	m.Team2Score = res.Team2Score
	m.RoundsPlayed = res.RoundsPlayed
	m.Canceled = res.Canceled
	m.Finished = res.Finished
	m.Winner = res.Winner
	s.matches[id] = m
	return true, nil
}

func (s *MemoryStore) UpdatePlayerMatchStats(_ context.Context, matchID, userID string, st models.RoundStats) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	list := s.assignments[matchID]
	for i := range list {
		if list[i].UserID != userID {
			continue
		}
		a := &list[i]
		a.Kills, a.Deaths, a.Assists, a.MVPs, a.Headshots = st.Kills, st.Deaths, st.Assists, st.MVPs, st.Headshots
		a.K2, a.K3, a.K4, a.K5, a.Score = st.K2, st.K3, st.K4, st.K5, st.Score
		return nil
	}
	return ErrNotFound
}

func (s *MemoryStore) InsertMatchEvents(_ context.Context, events []models.MatchEvent) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.events = append(s.events, events...)
	return nil
}

// MatchEvents returns the stored event stream.
func (s *MemoryStore) MatchEvents() []models.MatchEvent {
	s.mu.Lock()
	defer s.mu.Unlock()
	return append([]models.MatchEvent(nil), s.events...)
}
