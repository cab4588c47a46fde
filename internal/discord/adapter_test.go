// internal/discord/adapter_test.go
package discord

import (
	"context"
	"io"
	"testing"

	"github.com/bwmarrin/discordgo"
	"github.com/sirupsen/logrus"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/jason-s-yu/matchhost/internal/models"
)

type voiceCall struct {
	guild, user, name, before, after string
}

type recordingVoice struct {
	calls []voiceCall
}

func (r *recordingVoice) HandleVoiceState(_ context.Context, guildID string, p models.Participant, before, after string) {
	r.calls = append(r.calls, voiceCall{guildID, p.UserID, p.Name, before, after})
}

func TestVoiceStateTracksPreviousChannel(t *testing.T) {
	logger := logrus.New()
	logger.SetOutput(io.Discard)
	a, err := New("token", logger)
	require.NoError(t, err)
	voice := &recordingVoice{}
	member := &discordgo.Member{Nick: "Sam", User: &discordgo.User{ID: "u1"}}

	for _, ch := range []string{"lobby-a", "lobby-b", ""} {
		a.onVoiceState(context.Background(), voice, &discordgo.VoiceStateUpdate{
			VoiceState: &discordgo.VoiceState{GuildID: "g1", UserID: "u1", ChannelID: ch, Member: member},
		})
	}

	assert.Equal(t, []voiceCall{
		{"g1", "u1", "Sam", "", "lobby-a"},
		{"g1", "u1", "Sam", "lobby-a", "lobby-b"},
		{"g1", "u1", "Sam", "lobby-b", ""},
	}, voice.calls)
}

func TestVoiceStatePrefersGatewayBeforeState(t *testing.T) {
	a, err := New("token", nil)
	require.NoError(t, err)
	voice := &recordingVoice{}

	a.onVoiceState(context.Background(), voice, &discordgo.VoiceStateUpdate{
		VoiceState:   &discordgo.VoiceState{GuildID: "g1", UserID: "u1", ChannelID: "lobby-b"},
		BeforeUpdate: &discordgo.VoiceState{ChannelID: "lobby-a"},
	})
	require.Len(t, voice.calls, 1)
	assert.Equal(t, "lobby-a", voice.calls[0].before)
	assert.Equal(t, "", voice.calls[0].name)
}
