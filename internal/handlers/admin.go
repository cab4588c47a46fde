// internal/handlers/admin.go
package handlers

import (
	"context"
	"errors"
	"net/http"

	"github.com/go-chi/chi/v5"
	"github.com/google/uuid"
	"github.com/sirupsen/logrus"

	"github.com/jason-s-yu/matchhost/internal/auth"
	"github.com/jason-s-yu/matchhost/internal/database"
	"github.com/jason-s-yu/matchhost/internal/lobby"
	"github.com/jason-s-yu/matchhost/internal/match"
	"github.com/jason-s-yu/matchhost/internal/models"
)

// LobbyAdmin is the lobby administration of the queue.
type LobbyAdmin interface {
	CreateLobby(ctx context.Context, guildID string, settings models.LobbySettings) (models.Lobby, error)
	Lobbies(ctx context.Context, guildID string) ([]models.Lobby, error)
	DeleteLobby(ctx context.Context, lobbyID uuid.UUID) error
	EmptyLobby(ctx context.Context, lobbyID uuid.UUID) error
}

// MatchAdmin is the match administration of the lifecycle.
type MatchAdmin interface {
	Cancel(ctx context.Context, matchID string) error
	AddPlayer(ctx context.Context, matchID, userID string, team models.Team) error
}

// GuildStore holds guild settings and spectator lists.
type GuildStore interface {
	UpsertGuild(ctx context.Context, g models.Guild) error
	GetGuild(ctx context.Context, id string) (models.Guild, error)
	GetSpectators(ctx context.Context, guildID string) ([]string, error)
	InsertSpectator(ctx context.Context, guildID, userID string) error
	DeleteSpectator(ctx context.Context, guildID, userID string) error
}

// statusFor maps engine errors to HTTP status codes.
func statusFor(err error) int {
	switch {
	case errors.Is(err, lobby.ErrLobbyNotFound),
		errors.Is(err, match.ErrMatchNotFound),
		errors.Is(err, database.ErrNotFound):
		return http.StatusNotFound
	case errors.Is(err, lobby.ErrInvalidLobby),
		errors.Is(err, match.ErrNotLinked):
		return http.StatusBadRequest
	case errors.Is(err, lobby.ErrLobbyBusy),
		errors.Is(err, match.ErrMatchOver),
		errors.Is(err, database.ErrConflict):
		return http.StatusConflict
	}
	return http.StatusInternalServerError
}

func writeEngineError(w http.ResponseWriter, log *logrus.Entry, err error) {
	status := statusFor(err)
	if status == http.StatusInternalServerError {
		log.WithError(err).Error("admin request failed")
		writeError(w, status, "internal error")
		return
	}
	writeError(w, status, err.Error())
}

type loginRequest struct {
	Password string `json:"password"`
}

type loginResponse struct {
	Token string `json:"token"`
}

// LoginHandler exchanges the admin password for a session token. An empty
// passwordHash disables login.
func LoginHandler(logger *logrus.Logger, sessions *auth.Sessions, passwordHash string) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		var req loginRequest
		if err := decodeJSON(w, r, &req); err != nil {
			writeError(w, http.StatusBadRequest, "invalid login payload")
			return
		}
		if passwordHash == "" {
			writeError(w, http.StatusForbidden, "admin login is disabled")
			return
		}
		ok, err := auth.CheckPassword(req.Password, passwordHash)
		if err != nil {
			logger.WithError(err).Error("failed to check admin password")
			writeError(w, http.StatusInternalServerError, "internal error")
			return
		}
		if !ok {
			writeError(w, http.StatusUnauthorized, "invalid password")
			return
		}
		token, err := sessions.Issue(auth.AdminSubject)
		if err != nil {
			logger.WithError(err).Error("failed to issue admin token")
			writeError(w, http.StatusInternalServerError, "internal error")
			return
		}
		writeJSON(w, http.StatusOK, loginResponse{Token: token})
	}
}

// PutGuildHandler upserts the settings of the guild in the path.
func PutGuildHandler(logger *logrus.Logger, store GuildStore) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		var g models.Guild
		if err := decodeJSON(w, r, &g); err != nil {
			writeError(w, http.StatusBadRequest, "invalid guild payload")
			return
		}
		g.ID = chi.URLParam(r, "id")
		if g.WaitingChannelID == "" {
			writeError(w, http.StatusBadRequest, "waiting_channel_id is required")
			return
		}
		if err := store.UpsertGuild(r.Context(), g); err != nil {
			writeEngineError(w, logger.WithField("guild_id", g.ID), err)
			return
		}
		writeJSON(w, http.StatusOK, g)
	}
}

func GetGuildHandler(logger *logrus.Logger, store GuildStore) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		id := chi.URLParam(r, "id")
		g, err := store.GetGuild(r.Context(), id)
		if err != nil {
			writeEngineError(w, logger.WithField("guild_id", id), err)
			return
		}
		writeJSON(w, http.StatusOK, g)
	}
}

type createLobbyRequest struct {
	GuildID string `json:"guild_id"`
	models.LobbySettings
}

func CreateLobbyHandler(logger *logrus.Logger, lobbies LobbyAdmin) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		var req createLobbyRequest
		if err := decodeJSON(w, r, &req); err != nil || req.GuildID == "" {
			writeError(w, http.StatusBadRequest, "invalid lobby payload")
			return
		}
		l, err := lobbies.CreateLobby(r.Context(), req.GuildID, req.LobbySettings)
		if err != nil {
			writeEngineError(w, logger.WithField("guild_id", req.GuildID), err)
			return
		}
		writeJSON(w, http.StatusCreated, l)
	}
}

func ListLobbiesHandler(logger *logrus.Logger, lobbies LobbyAdmin) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		id := chi.URLParam(r, "id")
		ls, err := lobbies.Lobbies(r.Context(), id)
		if err != nil {
			writeEngineError(w, logger.WithField("guild_id", id), err)
			return
		}
		if ls == nil {
			ls = []models.Lobby{}
		}
		writeJSON(w, http.StatusOK, ls)
	}
}

// lobbyAction runs fn on the lobby id in the path and answers 204.
func lobbyAction(logger *logrus.Logger, fn func(context.Context, uuid.UUID) error) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		id, err := uuid.Parse(chi.URLParam(r, "id"))
		if err != nil {
			writeError(w, http.StatusBadRequest, "invalid lobby id")
			return
		}
		if err := fn(r.Context(), id); err != nil {
			writeEngineError(w, logger.WithField("lobby_id", id), err)
			return
		}
		w.WriteHeader(http.StatusNoContent)
	}
}

func DeleteLobbyHandler(logger *logrus.Logger, lobbies LobbyAdmin) http.HandlerFunc {
	return lobbyAction(logger, lobbies.DeleteLobby)
}

func EmptyLobbyHandler(logger *logrus.Logger, lobbies LobbyAdmin) http.HandlerFunc {
	return lobbyAction(logger, lobbies.EmptyLobby)
}

func ListSpectatorsHandler(logger *logrus.Logger, store GuildStore) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		id := chi.URLParam(r, "id")
		users, err := store.GetSpectators(r.Context(), id)
		if err != nil {
			writeEngineError(w, logger.WithField("guild_id", id), err)
			return
		}
		if users == nil {
			users = []string{}
		}
		writeJSON(w, http.StatusOK, users)
	}
}

func AddSpectatorHandler(logger *logrus.Logger, store GuildStore) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		guildID, userID := chi.URLParam(r, "id"), chi.URLParam(r, "user")
		if err := store.InsertSpectator(r.Context(), guildID, userID); err != nil {
			writeEngineError(w, logger.WithFields(logrus.Fields{"guild_id": guildID, "user_id": userID}), err)
			return
		}
		w.WriteHeader(http.StatusNoContent)
	}
}

func RemoveSpectatorHandler(logger *logrus.Logger, store GuildStore) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		guildID, userID := chi.URLParam(r, "id"), chi.URLParam(r, "user")
		if err := store.DeleteSpectator(r.Context(), guildID, userID); err != nil {
			writeEngineError(w, logger.WithFields(logrus.Fields{"guild_id": guildID, "user_id": userID}), err)
			return
		}
		w.WriteHeader(http.StatusNoContent)
	}
}

func CancelMatchHandler(logger *logrus.Logger, matches MatchAdmin) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		id := chi.URLParam(r, "id")
		if err := matches.Cancel(r.Context(), id); err != nil {
			writeEngineError(w, logger.WithField("match_id", id), err)
			return
		}
		w.WriteHeader(http.StatusNoContent)
	}
}

type addPlayerRequest struct {
	UserID string `json:"user_id"`
	Team   string `json:"team"`
}

func AddMatchPlayerHandler(logger *logrus.Logger, matches MatchAdmin) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		var req addPlayerRequest
		if err := decodeJSON(w, r, &req); err != nil || req.UserID == "" {
			writeError(w, http.StatusBadRequest, "invalid player payload")
			return
		}
		team, ok := models.ParseTeam(req.Team)
		if !ok {
			writeError(w, http.StatusBadRequest, "team must be team1, team2 or spectator")
			return
		}
		id := chi.URLParam(r, "id")
		if err := matches.AddPlayer(r.Context(), id, req.UserID, team); err != nil {
			writeEngineError(w, logger.WithFields(logrus.Fields{"match_id": id, "user_id": req.UserID}), err)
			return
		}
		w.WriteHeader(http.StatusNoContent)
	}
}
