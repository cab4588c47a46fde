// internal/handlers/players.go
package handlers

import (
	"context"
	"errors"
	"net/http"

	"github.com/go-chi/chi/v5"
	"github.com/sirupsen/logrus"

	"github.com/jason-s-yu/matchhost/internal/database"
	"github.com/jason-s-yu/matchhost/internal/models"
	"github.com/jason-s-yu/matchhost/internal/rating"
)

// PlayerStore links chat users to game accounts.
type PlayerStore interface {
	UpsertPlayer(ctx context.Context, p models.Player) error
	GetPlayer(ctx context.Context, userID string) (models.Player, error)
	GetUserCurrentMatch(ctx context.Context, userID string) (models.Match, error)
	IsSpectator(ctx context.Context, guildID, userID string) (bool, error)
	GetPlayerStats(ctx context.Context, userIDs []string) ([]models.PlayerStats, error)
}

type linkRequest struct {
	GuildID string `json:"guild_id,omitempty"`
	UserID  string `json:"user_id"`
	SteamID string `json:"steam_id"`
}

// LinkPlayerHandler links or relinks a user's SteamID64. Users in a live
// match, and spectators of the given guild, cannot change their link.
func LinkPlayerHandler(logger *logrus.Logger, store PlayerStore) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		var req linkRequest
		if err := decodeJSON(w, r, &req); err != nil || req.UserID == "" {
			writeError(w, http.StatusBadRequest, "invalid link payload")
			return
		}
		if !models.ValidSteamID(req.SteamID) {
			writeError(w, http.StatusBadRequest, "steam_id must be a 17 digit SteamID64")
			return
		}
		ctx := r.Context()
		log := logger.WithField("user_id", req.UserID)

		_, err := store.GetUserCurrentMatch(ctx, req.UserID)
		switch {
		case err == nil:
			writeError(w, http.StatusConflict, "cannot link while in a live match")
			return
		case !errors.Is(err, database.ErrNotFound):
			writeEngineError(w, log, err)
			return
		}

		if req.GuildID != "" {
			spectator, err := store.IsSpectator(ctx, req.GuildID, req.UserID)
			if err != nil {
				writeEngineError(w, log, err)
				return
			}
			if spectator {
				writeError(w, http.StatusForbidden, "spectators cannot link a game account")
				return
			}
		}

		p := models.Player{UserID: req.UserID, SteamID: req.SteamID}
		if err := store.UpsertPlayer(ctx, p); err != nil {
			if errors.Is(err, database.ErrConflict) {
				writeError(w, http.StatusConflict, "steam_id is linked to another user")
				return
			}
			writeEngineError(w, log, err)
			return
		}
		log.WithField("steam_id", p.SteamID).Info("player linked")
		writeJSON(w, http.StatusOK, p)
	}
}

type statsResponse struct {
	models.PlayerStats
	rating.Breakdown
}

// PlayerStatsHandler returns the aggregated stats of a linked user along with
// the derived rates and rating.
func PlayerStatsHandler(logger *logrus.Logger, store PlayerStore) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		userID := chi.URLParam(r, "user")
		log := logger.WithField("user_id", userID)
		if _, err := store.GetPlayer(r.Context(), userID); err != nil {
			writeEngineError(w, log, err)
			return
		}
		stats, err := store.GetPlayerStats(r.Context(), []string{userID})
		if err != nil {
			writeEngineError(w, log, err)
			return
		}
		if len(stats) == 0 {
			writeError(w, http.StatusNotFound, "not found")
			return
		}
		writeJSON(w, http.StatusOK, statsResponse{PlayerStats: stats[0], Breakdown: rating.Compute(stats[0])})
	}
}
