package feed

import (
	"context"
	"sort"
	"sync"

	"github.com/google/uuid"

	"github.com/jason-s-yu/matchhost/internal/interaction"
)

// Standalone is a Delivery for running without a chat platform. Artifacts
// and channels only get ids; wrapped in a Mirror the web feed is their
// only surface. Voice presence is tracked from MoveUser calls.
type Standalone struct {
	mu       sync.Mutex
	presence map[string]string
}

func NewStandalone() *Standalone {
	return &Standalone{presence: make(map[string]string)}
}

func (s *Standalone) SendStatus(context.Context, string, interaction.Status) (string, error) {
	return uuid.NewString(), nil
}

func (s *Standalone) EditStatus(context.Context, string, string, interaction.Status) error {
	return nil
}

func (s *Standalone) DeleteStatus(context.Context, string, string) error {
	return nil
}

func (s *Standalone) CreateCategory(context.Context, string, string) (string, error) {
	return uuid.NewString(), nil
}

func (s *Standalone) CreateVoiceChannel(context.Context, string, interaction.VoiceChannel) (string, error) {
	return uuid.NewString(), nil
}

func (s *Standalone) DeleteChannel(_ context.Context, channelID string) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	for user, ch := range s.presence {
		if ch == channelID {
			delete(s.presence, user)
		}
	}
	return nil
}

func (s *Standalone) GrantConnect(context.Context, string, string) error {
	return nil
}

func (s *Standalone) MoveUser(_ context.Context, _, userID, channelID string) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.presence[userID] = channelID
	return nil
}

func (s *Standalone) ChannelMembers(_ context.Context, _, channelID string) ([]string, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	var users []string
	for user, ch := range s.presence {
		if ch == channelID {
			users = append(users, user)
		}
	}
	sort.Strings(users)
	return users, nil
}

var _ interaction.Delivery = (*Standalone)(nil)
