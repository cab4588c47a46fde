// internal/historian/historian.go

// Package historian drains the match event queue from Redis into the store.
package historian

import (
	"context"
	"encoding/json"
	"errors"
	"sync"
	"time"

	"github.com/redis/go-redis/v9"
	"github.com/sirupsen/logrus"

	"github.com/jason-s-yu/matchhost/internal/cache"
	"github.com/jason-s-yu/matchhost/internal/models"
)

// Sink persists a batch of events atomically.
type Sink interface {
	InsertMatchEvents(ctx context.Context, events []models.MatchEvent) error
}

type Config struct {
	Queue         string
	BatchSize     int
	FlushInterval time.Duration
	// PopTimeout bounds each blocking pop so the loop can observe the flush
	// ticker and cancellation. Redis accepts whole seconds only.
	PopTimeout time.Duration
}

// Service pops events with BLPop and flushes them in batches, by size or
// when the flush interval elapses.
type Service struct {
	rdb    *redis.Client
	sink   Sink
	cfg    Config
	logger *logrus.Logger

	batchMu sync.Mutex
	batch   []models.MatchEvent
}

func New(rdb *redis.Client, sink Sink, cfg Config, logger *logrus.Logger) *Service {
	if cfg.Queue == "" {
		cfg.Queue = cache.DefaultQueueName
	}
	if cfg.BatchSize < 1 {
		cfg.BatchSize = 100
	}
	if cfg.FlushInterval <= 0 {
		cfg.FlushInterval = 2 * time.Second
	}
	if cfg.PopTimeout < time.Second {
		cfg.PopTimeout = time.Second
	}
	if logger == nil {
		logger = logrus.New()
	}
	return &Service{
		rdb:    rdb,
		sink:   sink,
		cfg:    cfg,
		logger: logger,
		batch:  make([]models.MatchEvent, 0, cfg.BatchSize),
	}
}

// Run blocks until ctx is canceled. Whatever is still batched is flushed
// before it returns.
func (s *Service) Run(ctx context.Context) error {
	ticker := time.NewTicker(s.cfg.FlushInterval)
	defer ticker.Stop()
	defer s.flush(context.WithoutCancel(ctx))

	s.logger.WithField("queue", s.cfg.Queue).Info("historian started")
	for {
		select {
		case <-ctx.Done():
			s.logger.Info("historian shutting down")
			return nil

		case <-ticker.C:
			s.flush(ctx)

		default:
			res, err := s.rdb.BLPop(ctx, s.cfg.PopTimeout, s.cfg.Queue).Result()
			if err != nil {
				if !errors.Is(err, redis.Nil) && ctx.Err() == nil {
					s.logger.WithError(err).Error("BLPop failed")
					time.Sleep(s.cfg.FlushInterval)
				}
				continue
			}
			// res[0] is the queue name and res[1] the payload.
			if len(res) < 2 {
				continue
			}
			var ev models.MatchEvent
			if err := json.Unmarshal([]byte(res[1]), &ev); err != nil {
				s.logger.WithError(err).Warn("invalid match event dropped")
				continue
			}
			s.append(ctx, ev)
		}
	}
}

func (s *Service) append(ctx context.Context, ev models.MatchEvent) {
	s.batchMu.Lock()
	s.batch = append(s.batch, ev)
	full := len(s.batch) >= s.cfg.BatchSize
	s.batchMu.Unlock()
	if full {
		s.flush(ctx)
	}
}

// flush writes the pending batch in one call. A failed batch is logged and
// dropped.
func (s *Service) flush(ctx context.Context) {
	s.batchMu.Lock()
	if len(s.batch) == 0 {
		s.batchMu.Unlock()
		return
	}
	pending := make([]models.MatchEvent, len(s.batch))
	copy(pending, s.batch)
	s.batch = s.batch[:0]
	s.batchMu.Unlock()

	if err := s.sink.InsertMatchEvents(ctx, pending); err != nil {
		s.logger.WithError(err).WithField("events", len(pending)).Error("failed to flush match events")
		return
	}
	s.logger.WithField("events", len(pending)).Debug("flushed match events")
}
