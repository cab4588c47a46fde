// cmd/server/main.go
package main

import (
	"context"
	"errors"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	_ "github.com/joho/godotenv/autoload"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/collectors"
	"github.com/sirupsen/logrus"
	"golang.org/x/sync/errgroup"

	"github.com/jason-s-yu/matchhost/internal/auth"
	"github.com/jason-s-yu/matchhost/internal/cache"
	"github.com/jason-s-yu/matchhost/internal/config"
	"github.com/jason-s-yu/matchhost/internal/database"
	"github.com/jason-s-yu/matchhost/internal/discord"
	"github.com/jason-s-yu/matchhost/internal/feed"
	"github.com/jason-s-yu/matchhost/internal/handlers"
	"github.com/jason-s-yu/matchhost/internal/interaction"
	"github.com/jason-s-yu/matchhost/internal/lobby"
	"github.com/jason-s-yu/matchhost/internal/match"
	"github.com/jason-s-yu/matchhost/internal/metrics"
	"github.com/jason-s-yu/matchhost/internal/models"
	"github.com/jason-s-yu/matchhost/internal/provider"
)

const shutdownTimeout = 10 * time.Second

func main() {
	cfg, err := config.Load()
	if err != nil {
		logrus.WithError(err).Fatal("invalid configuration")
	}
	logger := cfg.Logger()

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	store, closeStore := openStore(ctx, cfg, logger)
	defer closeStore()

	var publisher match.Publisher = cache.Nop{}
	if cfg.RedisAddr != "" {
		rdb, err := cache.Connect(ctx, cfg.RedisAddr, cfg.RedisDB)
		if err != nil {
			logger.WithError(err).Fatal("failed to connect to Redis")
		}
		defer rdb.Close()
		publisher = cache.NewPublisher(rdb, cfg.EventQueue)
		logger.WithField("queue", cfg.EventQueue).Info("match events enabled")
	}

	registry := prometheus.NewRegistry()
	registry.MustRegister(collectors.NewGoCollector(), collectors.NewProcessCollector(collectors.ProcessCollectorOpts{}))
	recorder := metrics.New(registry)

	sessions, err := auth.NewSessions(cfg.TokenExpire)
	if err != nil {
		logger.WithError(err).Fatal("failed to create admin sessions")
	}

	hub := feed.NewHub(logger)
	var adapter *discord.Adapter
	var base interaction.Delivery = feed.NewStandalone()
	if cfg.DiscordToken != "" {
		adapter, err = discord.New(cfg.DiscordToken, logger)
		if err != nil {
			logger.WithError(err).Fatal("failed to create discord adapter")
		}
		base = adapter
	} else {
		logger.Warn("DISCORD_TOKEN is empty, running with the web feed only")
	}
	delivery := feed.NewMirror(base, hub)
	router := interaction.NewRouter()

	lc := match.New(match.Config{
		MapPool:              cfg.MapPool,
		Regions:              models.Regions,
		DraftTimeout:         cfg.DraftTimeout,
		VetoTimeout:          cfg.VetoTimeout,
		RegionTimeout:        cfg.RegionTimeout,
		ReachabilityAttempts: cfg.ReachabilityAttempts,
		ReachabilityDelay:    cfg.ReachabilityDelay,
		MatchBeginCountdown:  cfg.MatchBeginCountdown,
		PublicBaseURL:        cfg.PublicBaseURL,
	}, match.Deps{
		Store: store,
		Provider: provider.NewClient(provider.Config{
			BaseURL:  cfg.ProviderBaseURL,
			Email:    cfg.ProviderEmail,
			Password: cfg.ProviderPassword,
		}, logger),
		Delivery:  delivery,
		Router:    router,
		Publisher: publisher,
		Metrics:   recorder,
		Logger:    logger,
	})

	queue := lobby.NewQueue(lobby.Deps{
		Store:        store,
		Delivery:     delivery,
		Router:       router,
		Starter:      lc,
		Metrics:      recorder,
		Logger:       logger,
		ReadyTimeout: cfg.ReadyTimeout,
	})
	defer queue.Close()

	if adapter != nil {
		if err := adapter.Open(ctx, router, queue); err != nil {
			logger.WithError(err).Fatal("failed to connect to discord")
		}
		defer adapter.Close()
	}

	srv := &http.Server{
		Addr: ":" + cfg.Port,
		Handler: handlers.NewRouter(handlers.Deps{
			Logger:            logger,
			Store:             store,
			Lobbies:           queue,
			Matches:           lc,
			Callbacks:         lc,
			Sessions:          sessions,
			AdminPasswordHash: cfg.AdminPasswordHash,
			Hub:               hub,
			Metrics:           recorder,
			Gatherer:          registry,
			AllowedOrigins:    cfg.AllowedOrigins,
		}),
		ReadHeaderTimeout: 10 * time.Second,
	}

	g, gctx := errgroup.WithContext(ctx)
	g.Go(func() error {
		logger.Infof("Running on %s", srv.Addr)
		if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			return err
		}
		return nil
	})
	g.Go(func() error {
		<-gctx.Done()
		shutdownCtx, cancel := context.WithTimeout(context.Background(), shutdownTimeout)
		defer cancel()
		return srv.Shutdown(shutdownCtx)
	})
	if err := g.Wait(); err != nil {
		logger.WithError(err).Error("server exited")
	}
	logger.Info("server shutdown complete")
}

// openStore connects Postgres when configured and falls back to the
// in-memory store otherwise.
func openStore(ctx context.Context, cfg config.Config, logger *logrus.Logger) (database.Store, func()) {
	if cfg.DatabaseURL == "" {
		logger.Warn("DATABASE_URL is empty, state will not survive a restart")
		return database.NewMemoryStore(), func() {}
	}
	store, err := database.Connect(ctx, cfg.DatabaseURL)
	if err != nil {
		logger.WithError(err).Fatal("failed to connect to Postgres")
	}
	if err := store.Migrate(ctx); err != nil {
		logger.WithError(err).Fatal("failed to migrate schema")
	}
	return store, store.Close
}
