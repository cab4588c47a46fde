// internal/discord/adapter.go

// Package discord connects the engine to Discord: it implements the
// interaction Delivery and feeds voice and component events back in.
package discord

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"time"

	"github.com/bwmarrin/discordgo"
	"github.com/sirupsen/logrus"

	"github.com/jason-s-yu/matchhost/internal/interaction"
	"github.com/jason-s-yu/matchhost/internal/models"
)

// VoiceHandler receives voice channel changes, typically a lobby.Queue.
type VoiceHandler interface {
	HandleVoiceState(ctx context.Context, guildID string, p models.Participant, before, after string)
}

// Adapter is a Delivery backed by a bot session.
type Adapter struct {
	session *discordgo.Session
	logger  *logrus.Logger

	// voiceStates remembers the last channel per user; the gateway only
	// sends the before state when it is cached.
	mu          sync.Mutex
	voiceStates map[string]string
}

func New(token string, logger *logrus.Logger) (*Adapter, error) {
	s, err := discordgo.New("Bot " + token)
	if err != nil {
		return nil, fmt.Errorf("failed to create discord session: %w", err)
	}
	s.Identify.Intents = discordgo.IntentsGuilds | discordgo.IntentsGuildVoiceStates | discordgo.IntentsGuildMembers
	if logger == nil {
		logger = logrus.New()
	}
	return &Adapter{session: s, logger: logger, voiceStates: make(map[string]string)}, nil
}

// Open installs the event handlers and connects. Events are handled with a
// context detached from ctx so in-flight work survives shutdown signals.
func (a *Adapter) Open(ctx context.Context, router *interaction.Router, voice VoiceHandler) error {
	base := context.WithoutCancel(ctx)
	a.session.AddHandler(func(_ *discordgo.Session, v *discordgo.VoiceStateUpdate) {
		a.onVoiceState(base, voice, v)
	})
	a.session.AddHandler(func(s *discordgo.Session, i *discordgo.InteractionCreate) {
		a.onInteraction(base, router, i)
	})
	a.session.AddHandler(func(_ *discordgo.Session, r *discordgo.Ready) {
		a.logger.WithField("user", r.User.Username).Info("discord session ready")
	})
	if err := a.session.Open(); err != nil {
		return fmt.Errorf("failed to open discord session: %w", err)
	}
	return nil
}

func (a *Adapter) Close() error {
	return a.session.Close()
}

func (a *Adapter) onVoiceState(ctx context.Context, voice VoiceHandler, v *discordgo.VoiceStateUpdate) {
	if v.VoiceState == nil {
		return
	}
	a.mu.Lock()
	before := a.voiceStates[v.UserID]
	if v.ChannelID == "" {
		delete(a.voiceStates, v.UserID)
	} else {
		a.voiceStates[v.UserID] = v.ChannelID
	}
	a.mu.Unlock()
	if v.BeforeUpdate != nil {
		before = v.BeforeUpdate.ChannelID
	}
	defer func() {
		if r := recover(); r != nil {
			a.logger.WithFields(logrus.Fields{"guild_id": v.GuildID, "user_id": v.UserID, "panic": r}).Error("voice state handler panicked")
		}
	}()
	p := models.Participant{UserID: v.UserID, Name: memberName(v.Member)}
	voice.HandleVoiceState(ctx, v.GuildID, p, before, v.ChannelID)
}

func (a *Adapter) onInteraction(ctx context.Context, router *interaction.Router, i *discordgo.InteractionCreate) {
	act, ok := action(i)
	if !ok {
		return
	}
	log := a.logger.WithFields(logrus.Fields{"prompt_id": act.PromptID, "user_id": act.UserID})
	err := router.Dispatch(ctx, act)
	if err == nil {
		err = a.session.InteractionRespond(i.Interaction, &discordgo.InteractionResponse{
			Type: discordgo.InteractionResponseDeferredMessageUpdate,
		})
		if err != nil {
			log.WithError(err).Debug("failed to acknowledge interaction")
		}
		return
	}
	if !errors.Is(err, interaction.ErrUnknownPrompt) {
		log.WithError(err).Debug("action rejected")
	}
	err = a.session.InteractionRespond(i.Interaction, &discordgo.InteractionResponse{
		Type: discordgo.InteractionResponseChannelMessageWithSource,
		Data: &discordgo.InteractionResponseData{
			Content: err.Error(),
			Flags:   discordgo.MessageFlagsEphemeral,
		},
	})
	if err != nil {
		log.WithError(err).Debug("failed to reply to interaction")
	}
}

func (a *Adapter) SendStatus(ctx context.Context, channelID string, st interaction.Status) (string, error) {
	msg, err := a.session.ChannelMessageSendComplex(channelID, &discordgo.MessageSend{
		Content:    content(st),
		Embeds:     []*discordgo.MessageEmbed{embed(st)},
		Components: components(st.Prompt),
	}, discordgo.WithContext(ctx))
	if err != nil {
		return "", fmt.Errorf("failed to send message to %s: %w", channelID, err)
	}
	return msg.ID, nil
}

func (a *Adapter) EditStatus(ctx context.Context, channelID, messageID string, st interaction.Status) error {
	text := content(st)
	embeds := []*discordgo.MessageEmbed{embed(st)}
	comps := components(st.Prompt)
	_, err := a.session.ChannelMessageEditComplex(&discordgo.MessageEdit{
		ID:         messageID,
		Channel:    channelID,
		Content:    &text,
		Embeds:     &embeds,
		Components: &comps,
	}, discordgo.WithContext(ctx))
	if err != nil {
		return fmt.Errorf("failed to edit message %s: %w", messageID, err)
	}
	return nil
}

func (a *Adapter) DeleteStatus(ctx context.Context, channelID, messageID string) error {
	if err := a.session.ChannelMessageDelete(channelID, messageID, discordgo.WithContext(ctx)); err != nil {
		return fmt.Errorf("failed to delete message %s: %w", messageID, err)
	}
	return nil
}

func (a *Adapter) CreateCategory(ctx context.Context, guildID, name string) (string, error) {
	ch, err := a.session.GuildChannelCreateComplex(guildID, discordgo.GuildChannelCreateData{
		Name: name,
		Type: discordgo.ChannelTypeGuildCategory,
	}, discordgo.WithContext(ctx))
	if err != nil {
		return "", fmt.Errorf("failed to create category %q: %w", name, err)
	}
	return ch.ID, nil
}

func (a *Adapter) CreateVoiceChannel(ctx context.Context, guildID string, vc interaction.VoiceChannel) (string, error) {
	ch, err := a.session.GuildChannelCreateComplex(guildID, discordgo.GuildChannelCreateData{
		Name:                 vc.Name,
		Type:                 discordgo.ChannelTypeGuildVoice,
		ParentID:             vc.ParentID,
		UserLimit:            vc.UserLimit,
		PermissionOverwrites: overwrites(guildID, vc.Allowed),
	}, discordgo.WithContext(ctx))
	if err != nil {
		return "", fmt.Errorf("failed to create voice channel %q: %w", vc.Name, err)
	}
	return ch.ID, nil
}

// overwrites denies connect to everyone but the allowed users. The
// @everyone role shares the guild id.
func overwrites(guildID string, allowed []string) []*discordgo.PermissionOverwrite {
	if len(allowed) == 0 {
		return nil
	}
	out := []*discordgo.PermissionOverwrite{{
		ID:   guildID,
		Type: discordgo.PermissionOverwriteTypeRole,
		Deny: discordgo.PermissionVoiceConnect,
	}}
	for _, u := range allowed {
		out = append(out, &discordgo.PermissionOverwrite{
			ID:    u,
			Type:  discordgo.PermissionOverwriteTypeMember,
			Allow: discordgo.PermissionVoiceConnect | discordgo.PermissionViewChannel,
		})
	}
	return out
}

func (a *Adapter) DeleteChannel(ctx context.Context, channelID string) error {
	if _, err := a.session.ChannelDelete(channelID, discordgo.WithContext(ctx)); err != nil {
		return fmt.Errorf("failed to delete channel %s: %w", channelID, err)
	}
	return nil
}

func (a *Adapter) GrantConnect(ctx context.Context, channelID, userID string) error {
	err := a.session.ChannelPermissionSet(channelID, userID, discordgo.PermissionOverwriteTypeMember,
		discordgo.PermissionVoiceConnect|discordgo.PermissionViewChannel, 0, discordgo.WithContext(ctx))
	if err != nil {
		return fmt.Errorf("failed to grant %s on %s: %w", userID, channelID, err)
	}
	return nil
}

func (a *Adapter) MoveUser(ctx context.Context, guildID, userID, channelID string) error {
	ctx, cancel := context.WithTimeout(ctx, 10*time.Second)
	defer cancel()
	if err := a.session.GuildMemberMove(guildID, userID, &channelID, discordgo.WithContext(ctx)); err != nil {
		return fmt.Errorf("failed to move %s: %w", userID, err)
	}
	return nil
}

// ChannelMembers reads the voice states cached by the gateway.
func (a *Adapter) ChannelMembers(_ context.Context, guildID, channelID string) ([]string, error) {
	g, err := a.session.State.Guild(guildID)
	if err != nil {
		return nil, fmt.Errorf("guild %s not in state: %w", guildID, err)
	}
	a.session.State.RLock()
	defer a.session.State.RUnlock()
	var users []string
	for _, vs := range g.VoiceStates {
		if vs.ChannelID == channelID {
			users = append(users, vs.UserID)
		}
	}
	return users, nil
}

var _ interaction.Delivery = (*Adapter)(nil)
