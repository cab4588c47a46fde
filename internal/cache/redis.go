// internal/cache/redis.go
package cache

import (
	"context"
	"encoding/json"
	"fmt"
	"time"

	"github.com/redis/go-redis/v9"

	"github.com/jason-s-yu/matchhost/internal/models"
)

// DefaultQueueName is the Redis list the historian drains.
const DefaultQueueName = "match_events"

// Connect opens a client and verifies it with a ping.
func Connect(ctx context.Context, addr string, db int) (*redis.Client, error) {
	rdb := redis.NewClient(&redis.Options{
		Addr: addr,
		DB:   db,
	})

	ctx, cancel := context.WithTimeout(ctx, 5*time.Second)
	defer cancel()
	if err := rdb.Ping(ctx).Err(); err != nil {
		rdb.Close()
		return nil, fmt.Errorf("failed to connect to Redis at %s: %w", addr, err)
	}
	return rdb, nil
}

// Publisher pushes match events onto the historian queue.
type Publisher struct {
	rdb   *redis.Client
	queue string
}

func NewPublisher(rdb *redis.Client, queue string) *Publisher {
	if queue == "" {
		queue = DefaultQueueName
	}
	return &Publisher{rdb: rdb, queue: queue}
}

// Publish serializes the event and RPushes it.
func (p *Publisher) Publish(ctx context.Context, ev models.MatchEvent) error {
	if ev.Timestamp == 0 {
		ev.Timestamp = time.Now().UnixMilli()
	}
	data, err := json.Marshal(ev)
	if err != nil {
		return fmt.Errorf("failed to marshal match event: %w", err)
	}
	if err := p.rdb.RPush(ctx, p.queue, data).Err(); err != nil {
		return fmt.Errorf("failed to RPush to Redis list '%s': %w", p.queue, err)
	}
	return nil
}

// Queue is the list name events are pushed to.
func (p *Publisher) Queue() string {
	return p.queue
}

// Nop discards events; used when Redis is not configured.
type Nop struct{}

func (Nop) Publish(context.Context, models.MatchEvent) error { return nil }
