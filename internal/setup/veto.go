// internal/setup/veto.go
package setup

import (
	"context"
	"sync"
	"time"

	"github.com/elliotchance/pie/v2"
)

// Ban is one irreversible map elimination.
type Ban struct {
	Captain string
	Map     string
}

// VetoEvent is a snapshot emitted after every ban and on termination.
type VetoEvent struct {
	Seq       int
	Outcome   Outcome
	Remaining []string
	Bans      []Ban
	// Turn is the captain index on turn while banning.
	Turn    int
	Captain string
	LastBan *Ban
}

// VetoResult is the terminal output of a Veto.
type VetoResult struct {
	Outcome Outcome
	Map     string
	Bans    []Ban
	Reason  string
}

// Veto alternates bans between two captains until one map is left.
type Veto struct {
	mu        sync.Mutex
	captains  [2]string
	remaining []string
	bans      []Ban
	outcome   Outcome
	reason    string
	timeout   time.Duration
	timer     *time.Timer
	turnID    int
	started   bool
	seq       int
	done      chan struct{}

	// OnUpdate is called outside the lock after each state change.
	OnUpdate func(VetoEvent)
}

func NewVeto(pool []string, captains [2]string, timeout time.Duration) (*Veto, error) {
	remaining := pie.Unique(append([]string(nil), pool...))
	if len(remaining) == 0 {
		return nil, ErrEmptyPool
	}
	return &Veto{
		captains:  captains,
		remaining: remaining,
		timeout:   timeout,
		done:      make(chan struct{}),
	}, nil
}

// Start announces the pool and arms the stall timer. A single-map pool
// completes immediately.
func (v *Veto) Start() {
	v.mu.Lock()
	if v.started {
		v.mu.Unlock()
		return
	}
	v.started = true
	if len(v.remaining) == 1 {
		v.finishUnsafe(Completed, "")
	} else {
		v.armTimerUnsafe()
	}
	ev := v.eventUnsafe(nil)
	v.mu.Unlock()
	v.emit(ev)
}

// Ban removes a map on behalf of the captain on turn.
func (v *Veto) Ban(captainID, mapID string) error {
	v.mu.Lock()
	if v.outcome != Pending {
		v.mu.Unlock()
		return ErrClosed
	}
	turn := len(v.bans) % 2
	switch {
	case captainID != v.captains[0] && captainID != v.captains[1]:
		v.mu.Unlock()
		return ErrNotCaptain
	case captainID != v.captains[turn]:
		v.mu.Unlock()
		return ErrNotYourTurn
	case !pie.Contains(v.remaining, mapID):
		v.mu.Unlock()
		return ErrMapUnavailable
	}

	ban := Ban{Captain: captainID, Map: mapID}
	v.bans = append(v.bans, ban)
	v.remaining = pie.FilterNot(v.remaining, func(m string) bool { return m == mapID })
	if len(v.remaining) == 1 {
		v.finishUnsafe(Completed, "")
	} else {
		v.armTimerUnsafe()
	}
	ev := v.eventUnsafe(&ban)
	v.mu.Unlock()
	v.emit(ev)
	return nil
}

// Cancel abandons an unfinished veto.
func (v *Veto) Cancel(reason string) {
	v.mu.Lock()
	if v.outcome != Pending {
		v.mu.Unlock()
		return
	}
	v.finishUnsafe(Abandoned, reason)
	ev := v.eventUnsafe(nil)
	v.mu.Unlock()
	v.emit(ev)
}

// Wait blocks until the veto is terminal. A finished context abandons it.
func (v *Veto) Wait(ctx context.Context) VetoResult {
	await(ctx, v.done, func() { v.Cancel(ReasonCanceled) })
	return v.Result()
}

func (v *Veto) Done() <-chan struct{} {
	return v.done
}

func (v *Veto) Result() VetoResult {
	v.mu.Lock()
	defer v.mu.Unlock()
	res := VetoResult{
		Outcome: v.outcome,
		Bans:    append([]Ban(nil), v.bans...),
		Reason:  v.reason,
	}
	if v.outcome == Completed {
		res.Map = v.remaining[0]
	}
	return res
}

func (v *Veto) armTimerUnsafe() {
	if v.timeout <= 0 {
		return
	}
	if v.timer != nil {
		v.timer.Stop()
	}
	v.turnID++
	turnID := v.turnID
	v.timer = time.AfterFunc(v.timeout, func() {
		v.mu.Lock()
		if v.turnID != turnID || v.outcome != Pending {
			v.mu.Unlock()
			return
		}
		v.finishUnsafe(Abandoned, ReasonTimeout)
		ev := v.eventUnsafe(nil)
		v.mu.Unlock()
		v.emit(ev)
	})
}

func (v *Veto) finishUnsafe(outcome Outcome, reason string) {
	v.outcome = outcome
	v.reason = reason
	if v.timer != nil {
		v.timer.Stop()
		v.timer = nil
	}
	close(v.done)
}

func (v *Veto) eventUnsafe(last *Ban) VetoEvent {
	v.seq++
	turn := len(v.bans) % 2
	return VetoEvent{
		Seq:       v.seq,
		Outcome:   v.outcome,
		Remaining: append([]string(nil), v.remaining...),
		Bans:      append([]Ban(nil), v.bans...),
		Turn:      turn,
		Captain:   v.captains[turn],
		LastBan:   last,
	}
}

func (v *Veto) emit(ev VetoEvent) {
	if v.OnUpdate != nil {
		v.OnUpdate(ev)
	}
}
