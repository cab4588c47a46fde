// internal/setup/region.go
package setup

import (
	"context"
	"math/rand"
	"sync"
	"time"

	"github.com/elliotchance/pie/v2"

	"github.com/jason-s-yu/matchhost/internal/models"
)

// RegionEvent is a snapshot emitted after every selection and on termination.
type RegionEvent struct {
	Seq     int
	Outcome Outcome
	Choices [2]string
	Actor   string
	Region  string
}

// RegionResult is the terminal output of a RegionSelect.
type RegionResult struct {
	Outcome Outcome
	Region  string
	Choices [2]string
	Reason  string
}

// RegionSelect lets each captain pick one hosting region. Once both have
// chosen, one of the two choices is drawn at random.
type RegionSelect struct {
	mu       sync.Mutex
	captains [2]string
	regions  []string
	choices  [2]string
	outcome  Outcome
	region   string
	reason   string
	rng      *rand.Rand
	timeout  time.Duration
	timer    *time.Timer
	started  bool
	seq      int
	done     chan struct{}

	// OnUpdate is called outside the lock after each state change.
	OnUpdate func(RegionEvent)
}

func NewRegionSelect(captains [2]string, regions []models.Region, timeout time.Duration, rng *rand.Rand) *RegionSelect {
	if rng == nil {
		rng = rand.New(rand.NewSource(time.Now().UnixNano()))
	}
	return &RegionSelect{
		captains: captains,
		regions:  pie.Map(regions, func(r models.Region) string { return r.ID }),
		rng:      rng,
		timeout:  timeout,
		done:     make(chan struct{}),
	}
}

// Start arms the fixed timeout.
func (rs *RegionSelect) Start() {
	rs.mu.Lock()
	if rs.started {
		rs.mu.Unlock()
		return
	}
	rs.started = true
	if rs.timeout > 0 {
		var timer *time.Timer
		timer = time.AfterFunc(rs.timeout, func() {
			rs.mu.Lock()
			if rs.timer != timer || rs.outcome != Pending {
				rs.mu.Unlock()
				return
			}
			rs.finishUnsafe(Abandoned, ReasonTimeout)
			ev := rs.eventUnsafe("")
			rs.mu.Unlock()
			rs.emit(ev)
		})
		rs.timer = timer
	}
	ev := rs.eventUnsafe("")
	rs.mu.Unlock()
	rs.emit(ev)
}

// Select records a captain's region. Each captain selects once.
func (rs *RegionSelect) Select(captainID, regionID string) error {
	rs.mu.Lock()
	if rs.outcome != Pending {
		rs.mu.Unlock()
		return ErrClosed
	}
	idx := -1
	for i, c := range rs.captains {
		if c == captainID {
			idx = i
		}
	}
	switch {
	case idx < 0:
		rs.mu.Unlock()
		return ErrNotCaptain
	case !pie.Contains(rs.regions, regionID):
		rs.mu.Unlock()
		return ErrUnknownRegion
	case rs.choices[idx] != "":
		rs.mu.Unlock()
		return ErrAlreadySelected
	}

	rs.choices[idx] = regionID
	if rs.choices[0] != "" && rs.choices[1] != "" {
		rs.region = rs.choices[0]
		if rs.choices[0] != rs.choices[1] {
			rs.region = rs.choices[rs.rng.Intn(2)]
		}
		rs.finishUnsafe(Completed, "")
	}
	ev := rs.eventUnsafe(captainID)
	rs.mu.Unlock()
	rs.emit(ev)
	return nil
}

// Cancel abandons an unfinished selection.
func (rs *RegionSelect) Cancel(reason string) {
	rs.mu.Lock()
	if rs.outcome != Pending {
		rs.mu.Unlock()
		return
	}
	rs.finishUnsafe(Abandoned, reason)
	ev := rs.eventUnsafe("")
	rs.mu.Unlock()
	rs.emit(ev)
}

// Wait blocks until the selection is terminal. A finished context abandons it.
func (rs *RegionSelect) Wait(ctx context.Context) RegionResult {
	await(ctx, rs.done, func() { rs.Cancel(ReasonCanceled) })
	return rs.Result()
}

func (rs *RegionSelect) Done() <-chan struct{} {
	return rs.done
}

func (rs *RegionSelect) Result() RegionResult {
	rs.mu.Lock()
	defer rs.mu.Unlock()
	return RegionResult{Outcome: rs.outcome, Region: rs.region, Choices: rs.choices, Reason: rs.reason}
}

func (rs *RegionSelect) finishUnsafe(outcome Outcome, reason string) {
	rs.outcome = outcome
	rs.reason = reason
	if rs.timer != nil {
		rs.timer.Stop()
		rs.timer = nil
	}
	close(rs.done)
}

func (rs *RegionSelect) eventUnsafe(actor string) RegionEvent {
	rs.seq++
	return RegionEvent{Seq: rs.seq, Outcome: rs.outcome, Choices: rs.choices, Actor: actor, Region: rs.region}
}

func (rs *RegionSelect) emit(ev RegionEvent) {
	if rs.OnUpdate != nil {
		rs.OnUpdate(ev)
	}
}
