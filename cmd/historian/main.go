// cmd/historian/main.go
package main

import (
	"context"
	"errors"
	"os"
	"os/signal"
	"syscall"

	_ "github.com/joho/godotenv/autoload"
	"github.com/sirupsen/logrus"

	"github.com/jason-s-yu/matchhost/internal/cache"
	"github.com/jason-s-yu/matchhost/internal/config"
	"github.com/jason-s-yu/matchhost/internal/database"
	"github.com/jason-s-yu/matchhost/internal/historian"
)

func main() {
	cfg, err := config.Load()
	if err != nil {
		logrus.WithError(err).Fatal("invalid configuration")
	}
	logger := cfg.Logger()
	if cfg.DatabaseURL == "" || cfg.RedisAddr == "" {
		logger.Fatal("historian needs DATABASE_URL and REDIS_ADDR")
	}

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	store, err := database.Connect(ctx, cfg.DatabaseURL)
	if err != nil {
		logger.WithError(err).Fatal("failed to connect to Postgres")
	}
	defer store.Close()
	if err := store.Migrate(ctx); err != nil {
		logger.WithError(err).Fatal("failed to migrate schema")
	}

	rdb, err := cache.Connect(ctx, cfg.RedisAddr, cfg.RedisDB)
	if err != nil {
		logger.WithError(err).Fatal("failed to connect to Redis")
	}
	defer rdb.Close()

	hs := historian.New(rdb, store, historian.Config{
		Queue:         cfg.EventQueue,
		BatchSize:     cfg.HistorianBatchSize,
		FlushInterval: cfg.HistorianFlushInterval,
	}, logger)

	logger.WithField("queue", cfg.EventQueue).Info("historian started")
	if err := hs.Run(ctx); err != nil && !errors.Is(err, context.Canceled) {
		logger.WithError(err).Error("historian stopped")
		return
	}
	logger.Info("historian shutdown complete")
}
