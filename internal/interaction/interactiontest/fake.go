// internal/interaction/interactiontest/fake.go

// Package interactiontest provides an in-memory Delivery for tests.
package interactiontest

import (
	"context"
	"errors"
	"fmt"
	"sort"
	"strings"
	"sync"

	"github.com/jason-s-yu/matchhost/internal/interaction"
)

var ErrUnknownMessage = errors.New("unknown message")

// Message is a status artifact as seen by the fake.
type Message struct {
	ID        string
	ChannelID string
	Status    interaction.Status
	History   []interaction.Status
	Deleted   bool
}

// Channel is a created category or voice channel.
type Channel struct {
	ID       string
	GuildID  string
	Name     string
	ParentID string
	Limit    int
	Allowed  []string
	Deleted  bool
}

// Move records a MoveUser call.
type Move struct {
	UserID    string
	ChannelID string
}

// Delivery records every call and keeps a voice presence map that MoveUser
// and ChannelMembers operate on.
type Delivery struct {
	mu       sync.Mutex
	seq      int
	messages map[string]*Message
	order    []string
	channels map[string]*Channel
	presence map[string]string
	moves    []Move

	// FailMoves makes MoveUser fail for these users.
	FailMoves map[string]bool
	// FailDeletes makes DeleteChannel fail for these channels.
	FailDeletes map[string]bool
}

func New() *Delivery {
	return &Delivery{
		messages:    make(map[string]*Message),
		channels:    make(map[string]*Channel),
		presence:    make(map[string]string),
		FailMoves:   make(map[string]bool),
		FailDeletes: make(map[string]bool),
	}
}

func (d *Delivery) nextIDUnsafe(prefix string) string {
	d.seq++
	return fmt.Sprintf("%s-%d", prefix, d.seq)
}

func (d *Delivery) SendStatus(_ context.Context, channelID string, st interaction.Status) (string, error) {
	d.mu.Lock()
	defer d.mu.Unlock()
	id := d.nextIDUnsafe("msg")
	d.messages[id] = &Message{ID: id, ChannelID: channelID, Status: st, History: []interaction.Status{st}}
	d.order = append(d.order, id)
	return id, nil
}

func (d *Delivery) EditStatus(_ context.Context, channelID, messageID string, st interaction.Status) error {
	d.mu.Lock()
	defer d.mu.Unlock()
	m, ok := d.messages[messageID]
	if !ok || m.Deleted || m.ChannelID != channelID {
		return ErrUnknownMessage
	}
	m.Status = st
	m.History = append(m.History, st)
	return nil
}

func (d *Delivery) DeleteStatus(_ context.Context, channelID, messageID string) error {
	d.mu.Lock()
	defer d.mu.Unlock()
	m, ok := d.messages[messageID]
	if !ok || m.Deleted || m.ChannelID != channelID {
		return ErrUnknownMessage
	}
	m.Deleted = true
	return nil
}

func (d *Delivery) CreateCategory(_ context.Context, guildID, name string) (string, error) {
	d.mu.Lock()
	defer d.mu.Unlock()
	id := d.nextIDUnsafe("cat")
	d.channels[id] = &Channel{ID: id, GuildID: guildID, Name: name}
	return id, nil
}

func (d *Delivery) CreateVoiceChannel(_ context.Context, guildID string, ch interaction.VoiceChannel) (string, error) {
	d.mu.Lock()
	defer d.mu.Unlock()
	id := d.nextIDUnsafe("vc")
	d.channels[id] = &Channel{
		ID:       id,
		GuildID:  guildID,
		Name:     ch.Name,
		ParentID: ch.ParentID,
		Limit:    ch.UserLimit,
		Allowed:  append([]string(nil), ch.Allowed...),
	}
	return id, nil
}

func (d *Delivery) DeleteChannel(_ context.Context, channelID string) error {
	d.mu.Lock()
	defer d.mu.Unlock()
	if d.FailDeletes[channelID] {
		return fmt.Errorf("delete %s: forbidden", channelID)
	}
	c, ok := d.channels[channelID]
	if !ok || c.Deleted {
		return fmt.Errorf("delete %s: unknown channel", channelID)
	}
	c.Deleted = true
	return nil
}

func (d *Delivery) GrantConnect(_ context.Context, channelID, userID string) error {
	d.mu.Lock()
	defer d.mu.Unlock()
	c, ok := d.channels[channelID]
	if !ok {
		return fmt.Errorf("grant on %s: unknown channel", channelID)
	}
	c.Allowed = append(c.Allowed, userID)
	return nil
}

func (d *Delivery) MoveUser(_ context.Context, _ string, userID, channelID string) error {
	d.mu.Lock()
	defer d.mu.Unlock()
	if d.FailMoves[userID] {
		return fmt.Errorf("move %s: user not connected", userID)
	}
	d.presence[userID] = channelID
	d.moves = append(d.moves, Move{UserID: userID, ChannelID: channelID})
	return nil
}

func (d *Delivery) ChannelMembers(_ context.Context, _ string, channelID string) ([]string, error) {
	d.mu.Lock()
	defer d.mu.Unlock()
	var users []string
	for user, ch := range d.presence {
		if ch == channelID {
			users = append(users, user)
		}
	}
	sort.Strings(users)
	return users, nil
}

// Connect places a user in a voice channel without recording a move.
func (d *Delivery) Connect(userID, channelID string) {
	d.mu.Lock()
	d.presence[userID] = channelID
	d.mu.Unlock()
}

// Location returns the voice channel a user is in.
func (d *Delivery) Location(userID string) string {
	d.mu.Lock()
	defer d.mu.Unlock()
	return d.presence[userID]
}

func (d *Delivery) Moves() []Move {
	d.mu.Lock()
	defer d.mu.Unlock()
	return append([]Move(nil), d.moves...)
}

func (d *Delivery) Message(id string) (Message, bool) {
	d.mu.Lock()
	defer d.mu.Unlock()
	m, ok := d.messages[id]
	if !ok {
		return Message{}, false
	}
	cp := *m
	cp.History = append([]interaction.Status(nil), m.History...)
	return cp, true
}

// Messages returns the artifacts sent to a channel, oldest first.
func (d *Delivery) Messages(channelID string) []Message {
	d.mu.Lock()
	defer d.mu.Unlock()
	var out []Message
	for _, id := range d.order {
		m := d.messages[id]
		if m.ChannelID == channelID {
			cp := *m
			cp.History = append([]interaction.Status(nil), m.History...)
			out = append(out, cp)
		}
	}
	return out
}

func (d *Delivery) Channel(id string) (Channel, bool) {
	d.mu.Lock()
	defer d.mu.Unlock()
	c, ok := d.channels[id]
	if !ok {
		return Channel{}, false
	}
	return *c, true
}

// Channels returns every channel created so far.
func (d *Delivery) Channels() []Channel {
	d.mu.Lock()
	defer d.mu.Unlock()
	out := make([]Channel, 0, len(d.channels))
	for _, c := range d.channels {
		out = append(out, *c)
	}
	sort.Slice(out, func(i, j int) bool { return out[i].ID < out[j].ID })
	return out
}

// ActivePrompt returns the prompt of the most recently updated live artifact
// whose prompt ID ends with ":"+kind.
func (d *Delivery) ActivePrompt(kind string) (interaction.Prompt, bool) {
	d.mu.Lock()
	defer d.mu.Unlock()
	for i := len(d.order) - 1; i >= 0; i-- {
		m := d.messages[d.order[i]]
		if m.Deleted || m.Status.Prompt == nil {
			continue
		}
		if strings.HasSuffix(m.Status.Prompt.ID, ":"+kind) {
			return *m.Status.Prompt, true
		}
	}
	return interaction.Prompt{}, false
}
