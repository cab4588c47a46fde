// internal/setup/setup.go

// Package setup holds the negotiations that run between a full lobby and a
// provisioned match: the ready check, the captain draft, the map veto and
// the region selection.
//
// Each negotiation is a small state machine guarded by its own mutex. Actions
// are validated against the current state and either accepted or rejected
// with one of the errors below; rejected actions never change state. Every
// machine ends in exactly one terminal state, reported by Wait as a result
// value. Timeouts and cancellation produce an Abandoned result instead of an
// error.
package setup

import (
	"context"
	"errors"
)

var (
	ErrClosed          = errors.New("negotiation is over")
	ErrNotParticipant  = errors.New("user is not part of this negotiation")
	ErrNotCaptain      = errors.New("only captains can do that")
	ErrNotYourTurn     = errors.New("it is not your turn")
	ErrWrongPhase      = errors.New("action not allowed in the current phase")
	ErrAlreadyDrafted  = errors.New("player has already been drafted")
	ErrAlreadyCaptain  = errors.New("user is already a captain")
	ErrTeamFull        = errors.New("team is full")
	ErrMapUnavailable  = errors.New("map is not available")
	ErrUnknownRegion   = errors.New("unknown region")
	ErrAlreadySelected = errors.New("region already selected")
	ErrEmptyPool       = errors.New("map pool is empty")
	ErrRosterTooSmall  = errors.New("roster is too small")
)

// Outcome is the terminal state of a negotiation.
type Outcome int

const (
	Pending Outcome = iota
	Completed
	Abandoned
)

func (o Outcome) String() string {
	switch o {
	case Completed:
		return "completed"
	case Abandoned:
		return "abandoned"
	}
	return "pending"
}

// Reasons attached to abandoned results.
const (
	ReasonTimeout  = "timeout"
	ReasonCanceled = "canceled"
)

// await blocks until done is closed or ctx ends. On ctx end it calls cancel
// and then waits for done, so the returned result is always terminal.
func await(ctx context.Context, done <-chan struct{}, cancel func()) {
	select {
	case <-done:
	case <-ctx.Done():
		cancel()
		<-done
	}
}
