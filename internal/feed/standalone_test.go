package feed

import (
	"context"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/jason-s-yu/matchhost/internal/interaction"
)

func TestStandaloneTracksPresence(t *testing.T) {
	ctx := context.Background()
	s := NewStandalone()

	team, err := s.CreateVoiceChannel(ctx, "g1", interaction.VoiceChannel{Name: "Team 1"})
	require.NoError(t, err)
	require.NoError(t, s.MoveUser(ctx, "g1", "u2", team))
	require.NoError(t, s.MoveUser(ctx, "g1", "u1", team))
	require.NoError(t, s.MoveUser(ctx, "g1", "u3", "waiting"))

	members, err := s.ChannelMembers(ctx, "g1", team)
	require.NoError(t, err)
	assert.Equal(t, []string{"u1", "u2"}, members)

	require.NoError(t, s.DeleteChannel(ctx, team))
	members, err = s.ChannelMembers(ctx, "g1", team)
	require.NoError(t, err)
	assert.Empty(t, members)
}

func TestStandaloneThroughMirror(t *testing.T) {
	hub := NewHub(quiet())
	m := NewMirror(NewStandalone(), hub)
	sub, _ := hub.Subscribe("lobby-1")

	id, err := m.SendStatus(context.Background(), "lobby-1", interaction.Status{Title: "Lobby queue"})
	require.NoError(t, err)
	assert.NotEmpty(t, id)

	f := <-sub.C
	assert.Equal(t, id, f.MessageID)
	assert.Equal(t, "Lobby queue", f.Status.Title)
}
