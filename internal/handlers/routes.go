// internal/handlers/routes.go
package handlers

import (
	"net/http"

	"github.com/go-chi/chi/v5"
	chimw "github.com/go-chi/chi/v5/middleware"
	"github.com/go-chi/cors"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	"github.com/sirupsen/logrus"

	"github.com/jason-s-yu/matchhost/internal/auth"
	"github.com/jason-s-yu/matchhost/internal/feed"
	"github.com/jason-s-yu/matchhost/internal/match"
	"github.com/jason-s-yu/matchhost/internal/metrics"
	"github.com/jason-s-yu/matchhost/internal/middleware"
)

// Store is what the HTTP surface reads and writes directly.
type Store interface {
	GuildStore
	PlayerStore
}

type Deps struct {
	Logger    *logrus.Logger
	Store     Store
	Lobbies   LobbyAdmin
	Matches   MatchAdmin
	Callbacks CallbackReceiver
	Sessions  *auth.Sessions
	// AdminPasswordHash is the argon2id hash admins log in with.
	AdminPasswordHash string
	Hub               *feed.Hub
	Metrics           metrics.Recorder
	// Gatherer serves /metrics; nil leaves the route out.
	Gatherer prometheus.Gatherer
	// AllowedOrigins are the browser origins of the admin UI and web feed.
	AllowedOrigins []string
}

// NewRouter registers every route behind request logging, panic recovery
// and CORS.
func NewRouter(d Deps) http.Handler {
	logger := d.Logger
	if d.Metrics == nil {
		d.Metrics = metrics.Nop{}
	}
	if len(d.AllowedOrigins) == 0 {
		d.AllowedOrigins = []string{"https://*", "http://*"}
	}

	r := chi.NewRouter()
	r.Use(middleware.LogMiddleware(logger))
	r.Use(chimw.Recoverer)
	r.Use(chimw.Heartbeat("/ping"))
	r.Use(cors.Handler(cors.Options{
		AllowedOrigins:   d.AllowedOrigins,
		AllowedMethods:   []string{"GET", "POST", "PUT", "DELETE", "OPTIONS"},
		AllowedHeaders:   []string{"Accept", "Authorization", "Content-Type"},
		AllowCredentials: false,
		MaxAge:           300,
	}))

	// provider webhooks
	r.Post(match.RoundEndPath, RoundEndHandler(logger, d.Callbacks, d.Metrics))
	r.Post(match.MatchEndPath, MatchEndHandler(logger, d.Callbacks, d.Metrics))

	r.Route("/players", func(r chi.Router) {
		r.Post("/link", LinkPlayerHandler(logger, d.Store))
		r.Get("/{user}/stats", PlayerStatsHandler(logger, d.Store))
	})

	r.Route("/admin", func(r chi.Router) {
		r.Post("/login", LoginHandler(logger, d.Sessions, d.AdminPasswordHash))
		r.Group(func(r chi.Router) {
			r.Use(middleware.RequireAdmin(logger, d.Sessions))

			r.Get("/guilds/{id}", GetGuildHandler(logger, d.Store))
			r.Put("/guilds/{id}", PutGuildHandler(logger, d.Store))
			r.Get("/guilds/{id}/lobbies", ListLobbiesHandler(logger, d.Lobbies))
			r.Get("/guilds/{id}/spectators", ListSpectatorsHandler(logger, d.Store))
			r.Post("/guilds/{id}/spectators/{user}", AddSpectatorHandler(logger, d.Store))
			r.Delete("/guilds/{id}/spectators/{user}", RemoveSpectatorHandler(logger, d.Store))

			r.Post("/lobbies", CreateLobbyHandler(logger, d.Lobbies))
			r.Delete("/lobbies/{id}", DeleteLobbyHandler(logger, d.Lobbies))
			r.Post("/lobbies/{id}/empty", EmptyLobbyHandler(logger, d.Lobbies))

			r.Post("/matches/{id}/cancel", CancelMatchHandler(logger, d.Matches))
			r.Post("/matches/{id}/players", AddMatchPlayerHandler(logger, d.Matches))
		})
	})

	if d.Hub != nil {
		r.Get("/feed/ws/{channel}", FeedWSHandler(logger, d.Hub))
	}
	if d.Gatherer != nil {
		r.Method(http.MethodGet, "/metrics", promhttp.HandlerFor(d.Gatherer, promhttp.HandlerOpts{}))
	}
	return r
}
