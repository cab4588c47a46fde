package interaction

import (
	"context"
	"sync"
)

// Board is a single status artifact that a sequence of negotiations edits
// in place. Each negotiation renders through its own Stage; updates from a
// stage that is no longer current, or with a sequence number at or below
// the last one shown, are dropped.
type Board struct {
	mu        sync.Mutex
	delivery  Delivery
	channelID string
	messageID string
	stage     int
	lastSeq   int
}

func NewBoard(delivery Delivery, channelID, messageID string) *Board {
	return &Board{delivery: delivery, channelID: channelID, messageID: messageID}
}

// Stage is the rendering handle of one negotiation.
type Stage struct {
	board *Board
	id    int
}

// Stage starts a new stage, retiring the previous one.
func (b *Board) Stage() *Stage {
	b.mu.Lock()
	defer b.mu.Unlock()
	b.stage++
	b.lastSeq = 0
	return &Stage{board: b, id: b.stage}
}

// Show edits the artifact if the stage is current and seq is newer than the
// last update shown.
func (s *Stage) Show(ctx context.Context, seq int, st Status) error {
	b := s.board
	b.mu.Lock()
	defer b.mu.Unlock()
	if s.id != b.stage || seq <= b.lastSeq {
		return nil
	}
	b.lastSeq = seq
	return b.delivery.EditStatus(ctx, b.channelID, b.messageID, st)
}

// Set retires the current stage and edits the artifact.
func (b *Board) Set(ctx context.Context, st Status) error {
	b.mu.Lock()
	defer b.mu.Unlock()
	b.stage++
	b.lastSeq = 0
	return b.delivery.EditStatus(ctx, b.channelID, b.messageID, st)
}

func (b *Board) ChannelID() string { return b.channelID }
func (b *Board) MessageID() string { return b.messageID }
