// internal/setup/readycheck.go
package setup

import (
	"context"
	"sync"
	"time"

	"github.com/elliotchance/pie/v2"
)

// ReadyState is the state of a ReadyCheck.
type ReadyState int

const (
	ReadyOpen ReadyState = iota
	ReadyAll
	ReadyTimedOut
)

func (s ReadyState) String() string {
	switch s {
	case ReadyAll:
		return "all_ready"
	case ReadyTimedOut:
		return "timed_out"
	}
	return "open"
}

// ReadyEvent is a snapshot emitted after every state change.
type ReadyEvent struct {
	Seq     int
	State   ReadyState
	Actor   string
	Ready   []string
	Pending []string
}

// ReadyResult is the terminal output of a ReadyCheck.
type ReadyResult struct {
	State   ReadyState
	Ready   []string
	Unready []string
}

// ReadyCheck confirms that every queued member is present. Members confirm
// once; the check completes the moment all have confirmed or times out after
// a fixed duration.
type ReadyCheck struct {
	mu      sync.Mutex
	users   []string
	ready   map[string]bool
	state   ReadyState
	timeout time.Duration
	timer   *time.Timer
	started bool
	seq     int
	done    chan struct{}

	// OnUpdate is called outside the lock after each state change.
	OnUpdate func(ReadyEvent)
}

func NewReadyCheck(users []string, timeout time.Duration) *ReadyCheck {
	return &ReadyCheck{
		users:   pie.Unique(append([]string(nil), users...)),
		ready:   make(map[string]bool, len(users)),
		timeout: timeout,
		done:    make(chan struct{}),
	}
}

// Start broadcasts the initial pending set and arms the timeout.
func (rc *ReadyCheck) Start() {
	rc.mu.Lock()
	if rc.started {
		rc.mu.Unlock()
		return
	}
	rc.started = true
	if len(rc.users) == 0 {
		rc.finishUnsafe(ReadyAll)
	} else {
		var timer *time.Timer
		timer = time.AfterFunc(rc.timeout, func() {
			rc.mu.Lock()
			if rc.timer != timer || rc.state != ReadyOpen {
				rc.mu.Unlock()
				return
			}
			rc.finishUnsafe(ReadyTimedOut)
			ev := rc.eventUnsafe("")
			rc.mu.Unlock()
			rc.emit(ev)
		})
		rc.timer = timer
	}
	ev := rc.eventUnsafe("")
	rc.mu.Unlock()
	rc.emit(ev)
}

// Confirm marks a member as ready. Repeat confirmations are ignored.
func (rc *ReadyCheck) Confirm(userID string) error {
	rc.mu.Lock()
	if rc.state != ReadyOpen {
		rc.mu.Unlock()
		return ErrClosed
	}
	if !pie.Contains(rc.users, userID) {
		rc.mu.Unlock()
		return ErrNotParticipant
	}
	if rc.ready[userID] {
		rc.mu.Unlock()
		return nil
	}
	rc.ready[userID] = true
	if len(rc.ready) == len(rc.users) {
		rc.finishUnsafe(ReadyAll)
	}
	ev := rc.eventUnsafe(userID)
	rc.mu.Unlock()
	rc.emit(ev)
	return nil
}

// Cancel ends an open check as timed out.
func (rc *ReadyCheck) Cancel() {
	rc.mu.Lock()
	if rc.state != ReadyOpen {
		rc.mu.Unlock()
		return
	}
	rc.finishUnsafe(ReadyTimedOut)
	ev := rc.eventUnsafe("")
	rc.mu.Unlock()
	rc.emit(ev)
}

// Wait blocks until the check is terminal. A finished context cancels it.
func (rc *ReadyCheck) Wait(ctx context.Context) ReadyResult {
	await(ctx, rc.done, rc.Cancel)
	return rc.Result()
}

// Done is closed once the check is terminal.
func (rc *ReadyCheck) Done() <-chan struct{} {
	return rc.done
}

// Result returns the current partition of members.
func (rc *ReadyCheck) Result() ReadyResult {
	rc.mu.Lock()
	defer rc.mu.Unlock()
	ready, pending := rc.partitionUnsafe()
	return ReadyResult{State: rc.state, Ready: ready, Unready: pending}
}

// finishUnsafe moves to a terminal state. Assumes lock is held.
func (rc *ReadyCheck) finishUnsafe(state ReadyState) {
	rc.state = state
	if rc.timer != nil {
		rc.timer.Stop()
		rc.timer = nil
	}
	close(rc.done)
}

func (rc *ReadyCheck) partitionUnsafe() (ready, pending []string) {
	ready = pie.Filter(rc.users, func(u string) bool { return rc.ready[u] })
	pending = pie.FilterNot(rc.users, func(u string) bool { return rc.ready[u] })
	return ready, pending
}

func (rc *ReadyCheck) eventUnsafe(actor string) ReadyEvent {
	rc.seq++
	ready, pending := rc.partitionUnsafe()
	return ReadyEvent{Seq: rc.seq, State: rc.state, Actor: actor, Ready: ready, Pending: pending}
}

func (rc *ReadyCheck) emit(ev ReadyEvent) {
	if rc.OnUpdate != nil {
		rc.OnUpdate(ev)
	}
}
