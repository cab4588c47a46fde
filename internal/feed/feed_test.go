package feed

import (
	"context"
	"io"
	"testing"

	"github.com/sirupsen/logrus"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/jason-s-yu/matchhost/internal/interaction"
	"github.com/jason-s-yu/matchhost/internal/interaction/interactiontest"
)

func quiet() *logrus.Logger {
	logger := logrus.New()
	logger.SetOutput(io.Discard)
	return logger
}

func TestMirrorPublishesStatusChanges(t *testing.T) {
	ctx := context.Background()
	hub := NewHub(quiet())
	m := NewMirror(interactiontest.New(), hub)
	sub, snapshot := hub.Subscribe("lobby-1")
	assert.Empty(t, snapshot)

	id, err := m.SendStatus(ctx, "lobby-1", interaction.Status{Title: "Lobby queue"})
	require.NoError(t, err)
	require.NoError(t, m.EditStatus(ctx, "lobby-1", id, interaction.Status{Title: "Lobby has filled up!"}))
	require.NoError(t, m.DeleteStatus(ctx, "lobby-1", id))

	first := <-sub.C
	assert.Equal(t, FrameStatus, first.Type)
	assert.Equal(t, id, first.MessageID)
	assert.Equal(t, "Lobby queue", first.Status.Title)
	assert.Equal(t, "Lobby has filled up!", (<-sub.C).Status.Title)
	gone := <-sub.C
	assert.Equal(t, FrameDeleted, gone.Type)
	assert.Nil(t, gone.Status)
}

func TestMirrorSkipsFailedCalls(t *testing.T) {
	ctx := context.Background()
	hub := NewHub(quiet())
	m := NewMirror(interactiontest.New(), hub)
	sub, _ := hub.Subscribe("lobby-1")

	err := m.EditStatus(ctx, "lobby-1", "missing", interaction.Status{Title: "x"})
	assert.ErrorIs(t, err, interactiontest.ErrUnknownMessage)
	assert.Len(t, sub.C, 0)
}

func TestLateSubscriberGetsLiveArtifacts(t *testing.T) {
	ctx := context.Background()
	hub := NewHub(quiet())
	m := NewMirror(interactiontest.New(), hub)

	keep, err := m.SendStatus(ctx, "lobby-1", interaction.Status{Title: "Match is live"})
	require.NoError(t, err)
	drop, err := m.SendStatus(ctx, "lobby-1", interaction.Status{Title: "Lobby queue"})
	require.NoError(t, err)
	require.NoError(t, m.DeleteStatus(ctx, "lobby-1", drop))
	_, err = m.SendStatus(ctx, "lobby-2", interaction.Status{Title: "other"})
	require.NoError(t, err)

	_, snapshot := hub.Subscribe("lobby-1")
	require.Len(t, snapshot, 1)
	assert.Equal(t, keep, snapshot[0].MessageID)
}

func TestSlowSubscriberDropsFrames(t *testing.T) {
	hub := NewHub(quiet())
	slow, _ := hub.Subscribe("c")
	for i := 0; i < 40; i++ {
		hub.Publish(Frame{Type: FrameStatus, ChannelID: "c", MessageID: "m", Status: &interaction.Status{}})
	}
	assert.Len(t, slow.C, cap(slow.C))

	hub.Unsubscribe(slow)
	hub.Unsubscribe(slow)
	for range slow.C {
	}
	hub.Publish(Frame{Type: FrameStatus, ChannelID: "c", MessageID: "m"})
}
