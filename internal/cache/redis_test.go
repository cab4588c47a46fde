// internal/cache/redis_test.go
package cache

import (
	"context"
	"encoding/json"
	"testing"

	"github.com/alicebob/miniredis/v2"
	"github.com/redis/go-redis/v9"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/jason-s-yu/matchhost/internal/models"
)

func TestPublishPushesJSON(t *testing.T) {
	mr := miniredis.RunT(t)
	rdb := redis.NewClient(&redis.Options{Addr: mr.Addr()})
	defer rdb.Close()

	p := NewPublisher(rdb, "")
	require.NoError(t, p.Publish(context.Background(), models.MatchEvent{
		MatchID: "m1",
		Type:    "round_end",
		Payload: map[string]interface{}{"team1_score": 3},
	}))

	items, err := mr.List(DefaultQueueName)
	require.NoError(t, err)
	require.Len(t, items, 1)

	var ev models.MatchEvent
	require.NoError(t, json.Unmarshal([]byte(items[0]), &ev))
	assert.Equal(t, "m1", ev.MatchID)
	assert.Equal(t, "round_end", ev.Type)
	assert.NotZero(t, ev.Timestamp)
}

func TestConnectPings(t *testing.T) {
	mr := miniredis.RunT(t)
	rdb, err := Connect(context.Background(), mr.Addr(), 0)
	require.NoError(t, err)
	rdb.Close()

	addr := mr.Addr()
	mr.Close()
	_, err = Connect(context.Background(), addr, 0)
	assert.Error(t, err)
}
