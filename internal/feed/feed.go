// internal/feed/feed.go

// Package feed mirrors status artifacts to web spectators.
package feed

import (
	"context"
	"sync"

	"github.com/sirupsen/logrus"

	"github.com/jason-s-yu/matchhost/internal/interaction"
)

const (
	FrameStatus  = "status"
	FrameDeleted = "deleted"
)

// Frame is one update on a channel topic.
type Frame struct {
	Type      string              `json:"type"`
	ChannelID string              `json:"channel_id"`
	MessageID string              `json:"message_id"`
	Status    *interaction.Status `json:"status,omitempty"`
}

// Subscriber receives the frames of one topic on C.
type Subscriber struct {
	C     chan Frame
	topic string
}

// Hub fans frames out per channel and remembers the live artifacts so late
// subscribers start from the current state.
type Hub struct {
	mu     sync.Mutex
	topics map[string]map[*Subscriber]struct{}
	live   map[string]map[string]Frame
	buffer int
	logger *logrus.Logger
}

func NewHub(logger *logrus.Logger) *Hub {
	if logger == nil {
		logger = logrus.New()
	}
	return &Hub{
		topics: make(map[string]map[*Subscriber]struct{}),
		live:   make(map[string]map[string]Frame),
		buffer: 16,
		logger: logger,
	}
}

// Subscribe registers a subscriber and returns the live artifacts of the
// topic.
func (h *Hub) Subscribe(topic string) (*Subscriber, []Frame) {
	h.mu.Lock()
	defer h.mu.Unlock()
	s := &Subscriber{C: make(chan Frame, h.buffer), topic: topic}
	subs, ok := h.topics[topic]
	if !ok {
		subs = make(map[*Subscriber]struct{})
		h.topics[topic] = subs
	}
	subs[s] = struct{}{}

	snapshot := make([]Frame, 0, len(h.live[topic]))
	for _, f := range h.live[topic] {
		snapshot = append(snapshot, f)
	}
	return s, snapshot
}

func (h *Hub) Unsubscribe(s *Subscriber) {
	h.mu.Lock()
	defer h.mu.Unlock()
	subs := h.topics[s.topic]
	if _, ok := subs[s]; !ok {
		return
	}
	delete(subs, s)
	if len(subs) == 0 {
		delete(h.topics, s.topic)
	}
	close(s.C)
}

// Publish delivers f to every subscriber of its channel. Subscribers whose
// buffer is full miss the frame.
func (h *Hub) Publish(f Frame) {
	h.mu.Lock()
	defer h.mu.Unlock()
	h.rememberUnsafe(f)
	for s := range h.topics[f.ChannelID] {
		select {
		case s.C <- f:
		default:
			h.logger.WithFields(logrus.Fields{"channel_id": f.ChannelID, "type": f.Type}).Debug("feed subscriber is full, frame dropped")
		}
	}
}

func (h *Hub) rememberUnsafe(f Frame) {
	live, ok := h.live[f.ChannelID]
	if f.Type == FrameDeleted {
		if ok {
			delete(live, f.MessageID)
			if len(live) == 0 {
				delete(h.live, f.ChannelID)
			}
		}
		return
	}
	if !ok {
		live = make(map[string]Frame)
		h.live[f.ChannelID] = live
	}
	live[f.MessageID] = f
}

// Mirror is a Delivery that also publishes every status change to a Hub.
type Mirror struct {
	interaction.Delivery
	hub *Hub
}

func NewMirror(d interaction.Delivery, hub *Hub) *Mirror {
	return &Mirror{Delivery: d, hub: hub}
}

func (m *Mirror) SendStatus(ctx context.Context, channelID string, st interaction.Status) (string, error) {
	id, err := m.Delivery.SendStatus(ctx, channelID, st)
	if err != nil {
		return "", err
	}
	m.hub.Publish(Frame{Type: FrameStatus, ChannelID: channelID, MessageID: id, Status: &st})
	return id, nil
}

func (m *Mirror) EditStatus(ctx context.Context, channelID, messageID string, st interaction.Status) error {
	if err := m.Delivery.EditStatus(ctx, channelID, messageID, st); err != nil {
		return err
	}
	m.hub.Publish(Frame{Type: FrameStatus, ChannelID: channelID, MessageID: messageID, Status: &st})
	return nil
}

func (m *Mirror) DeleteStatus(ctx context.Context, channelID, messageID string) error {
	if err := m.Delivery.DeleteStatus(ctx, channelID, messageID); err != nil {
		return err
	}
	m.hub.Publish(Frame{Type: FrameDeleted, ChannelID: channelID, MessageID: messageID})
	return nil
}
