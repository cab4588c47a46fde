// internal/setup/draft.go
package setup

import (
	"context"
	"math/rand"
	"sort"
	"sync"
	"time"

	"github.com/elliotchance/pie/v2"

	"github.com/jason-s-yu/matchhost/internal/models"
)

// DraftPhase is the phase of a captain draft.
type DraftPhase int

const (
	PhaseSelectingCaptains DraftPhase = iota
	PhaseDrafting
	PhaseComplete
	PhaseAbandoned
)

func (p DraftPhase) String() string {
	switch p {
	case PhaseSelectingCaptains:
		return "selecting_captains"
	case PhaseDrafting:
		return "drafting"
	case PhaseComplete:
		return "complete"
	}
	return "abandoned"
}

// PickTeam returns the team index (0 or 1) owning the n-th pick of the
// snake pattern 1,2,2,1,1,2,2,1,...
func PickTeam(n int) int {
	if n == 0 {
		return 0
	}
	if (n-1)%4 < 2 {
		return 1
	}
	return 0
}

// DraftConfig configures a Draft.
type DraftConfig struct {
	Users   []string
	Method  models.CaptainMethod
	Ratings map[string]float64
	// Timeout is the longest the draft may stall without an accepted action.
	Timeout time.Duration
	Rand    *rand.Rand
}

// DraftEvent is a snapshot emitted after every state change.
type DraftEvent struct {
	Seq      int
	Phase    DraftPhase
	Captains [2]string
	Teams    [2][]string
	Pool     []string
	// Turn is the team on turn during drafting, -1 otherwise.
	Turn   int
	Actor  string
	Target string
}

// DraftResult is the terminal output of a Draft.
type DraftResult struct {
	Outcome  Outcome
	Captains [2]string
	Teams    [2][]string
	Reason   string
}

// Draft is a two-captain player draft.
type Draft struct {
	mu       sync.Mutex
	users    []string
	method   models.CaptainMethod
	ratings  map[string]float64
	rng      *rand.Rand
	timeout  time.Duration
	phase    DraftPhase
	captains [2]string
	teams    [2][]string
	pool     []string
	picks    int
	teamCap  int
	reason   string
	started  bool
	timer    *time.Timer
	turnID   int
	seq      int
	done     chan struct{}

	// OnUpdate is called outside the lock after each state change.
	OnUpdate func(DraftEvent)
}

func NewDraft(cfg DraftConfig) (*Draft, error) {
	users := pie.Unique(append([]string(nil), cfg.Users...))
	if len(users) < 2 {
		return nil, ErrRosterTooSmall
	}
	rng := cfg.Rand
	if rng == nil {
		rng = rand.New(rand.NewSource(time.Now().UnixNano()))
	}
	ratings := cfg.Ratings
	if ratings == nil {
		ratings = map[string]float64{}
	}
	return &Draft{
		users:   users,
		method:  cfg.Method,
		ratings: ratings,
		rng:     rng,
		timeout: cfg.Timeout,
		phase:   PhaseSelectingCaptains,
		teamCap: (len(users) + 1) / 2,
		done:    make(chan struct{}),
	}, nil
}

// Start selects captains for the random and rank methods and arms the stall
// timer. Volunteer drafts stay in captain selection until two users volunteer.
func (d *Draft) Start() {
	d.mu.Lock()
	if d.started {
		d.mu.Unlock()
		return
	}
	d.started = true
	switch d.method {
	case models.CaptainMethodRank:
		ranked := append([]string(nil), d.users...)
		sort.SliceStable(ranked, func(i, j int) bool {
			return d.ratings[ranked[i]] > d.ratings[ranked[j]]
		})
		d.lockCaptainsUnsafe(ranked[0], ranked[1])
	case models.CaptainMethodVolunteer:
	default:
		perm := d.rng.Perm(len(d.users))
		d.lockCaptainsUnsafe(d.users[perm[0]], d.users[perm[1]])
	}
	d.armTimerUnsafe()
	ev := d.eventUnsafe("", "")
	d.mu.Unlock()
	d.emit(ev)
}

// Volunteer registers a user as captain. The first volunteer captains team
// one, the second team two.
func (d *Draft) Volunteer(userID string) error {
	d.mu.Lock()
	if err := d.checkOpenUnsafe(); err != nil {
		d.mu.Unlock()
		return err
	}
	if d.phase != PhaseSelectingCaptains || d.method != models.CaptainMethodVolunteer {
		d.mu.Unlock()
		return ErrWrongPhase
	}
	if !pie.Contains(d.users, userID) {
		d.mu.Unlock()
		return ErrNotParticipant
	}
	if d.captains[0] == userID {
		d.mu.Unlock()
		return ErrAlreadyCaptain
	}
	if d.captains[0] == "" {
		d.captains[0] = userID
	} else {
		d.lockCaptainsUnsafe(d.captains[0], userID)
	}
	d.armTimerUnsafe()
	ev := d.eventUnsafe(userID, "")
	d.mu.Unlock()
	d.emit(ev)
	return nil
}

// Pick drafts target onto the team of the captain on turn.
func (d *Draft) Pick(captainID, target string) error {
	d.mu.Lock()
	if err := d.checkOpenUnsafe(); err != nil {
		d.mu.Unlock()
		return err
	}
	if d.phase != PhaseDrafting {
		d.mu.Unlock()
		return ErrWrongPhase
	}
	team := d.turnUnsafe()
	switch {
	case captainID != d.captains[0] && captainID != d.captains[1]:
		d.mu.Unlock()
		return ErrNotCaptain
	case captainID != d.captains[team]:
		d.mu.Unlock()
		return ErrNotYourTurn
	case !pie.Contains(d.pool, target):
		d.mu.Unlock()
		if pie.Contains(d.users, target) {
			return ErrAlreadyDrafted
		}
		return ErrNotParticipant
	case len(d.teams[team]) >= d.teamCap:
		d.mu.Unlock()
		return ErrTeamFull
	}

	d.teams[team] = append(d.teams[team], target)
	d.pool = pie.FilterNot(d.pool, func(u string) bool { return u == target })
	d.picks++
	if len(d.pool) == 0 {
		d.finishUnsafe(PhaseComplete, "")
	} else {
		d.armTimerUnsafe()
	}
	ev := d.eventUnsafe(captainID, target)
	d.mu.Unlock()
	d.emit(ev)
	return nil
}

// Cancel abandons an unfinished draft.
func (d *Draft) Cancel(reason string) {
	d.mu.Lock()
	if d.phase == PhaseComplete || d.phase == PhaseAbandoned {
		d.mu.Unlock()
		return
	}
	d.finishUnsafe(PhaseAbandoned, reason)
	ev := d.eventUnsafe("", "")
	d.mu.Unlock()
	d.emit(ev)
}

// Wait blocks until the draft is terminal. A finished context abandons it.
func (d *Draft) Wait(ctx context.Context) DraftResult {
	await(ctx, d.done, func() { d.Cancel(ReasonCanceled) })
	return d.Result()
}

// Done is closed once the draft is terminal.
func (d *Draft) Done() <-chan struct{} {
	return d.done
}

func (d *Draft) Result() DraftResult {
	d.mu.Lock()
	defer d.mu.Unlock()
	res := DraftResult{
		Captains: d.captains,
		Teams:    [2][]string{append([]string(nil), d.teams[0]...), append([]string(nil), d.teams[1]...)},
		Reason:   d.reason,
	}
	switch d.phase {
	case PhaseComplete:
		res.Outcome = Completed
	case PhaseAbandoned:
		res.Outcome = Abandoned
	}
	return res
}

// Turn returns the team index and captain currently on turn. ok is false
// outside the drafting phase.
func (d *Draft) Turn() (team int, captainID string, ok bool) {
	d.mu.Lock()
	defer d.mu.Unlock()
	if d.phase != PhaseDrafting {
		return -1, "", false
	}
	team = d.turnUnsafe()
	return team, d.captains[team], true
}

// turnUnsafe applies the pick pattern, passing the turn when the team on
// turn is already full. Assumes lock is held.
func (d *Draft) turnUnsafe() int {
	team := PickTeam(d.picks)
	if len(d.teams[team]) >= d.teamCap {
		return 1 - team
	}
	return team
}

func (d *Draft) checkOpenUnsafe() error {
	if d.phase == PhaseComplete || d.phase == PhaseAbandoned {
		return ErrClosed
	}
	return nil
}

// lockCaptainsUnsafe seats both captains and opens drafting.
func (d *Draft) lockCaptainsUnsafe(c1, c2 string) {
	d.captains = [2]string{c1, c2}
	d.teams = [2][]string{{c1}, {c2}}
	d.pool = pie.FilterNot(d.users, func(u string) bool { return u == c1 || u == c2 })
	d.phase = PhaseDrafting
	if len(d.pool) == 0 {
		d.finishUnsafe(PhaseComplete, "")
	}
}

func (d *Draft) armTimerUnsafe() {
	if d.phase == PhaseComplete || d.phase == PhaseAbandoned || d.timeout <= 0 {
		return
	}
	if d.timer != nil {
		d.timer.Stop()
	}
	d.turnID++
	turnID := d.turnID
	d.timer = time.AfterFunc(d.timeout, func() {
		d.mu.Lock()
		if d.turnID != turnID || d.phase == PhaseComplete || d.phase == PhaseAbandoned {
			d.mu.Unlock()
			return
		}
		d.finishUnsafe(PhaseAbandoned, ReasonTimeout)
		ev := d.eventUnsafe("", "")
		d.mu.Unlock()
		d.emit(ev)
	})
}

func (d *Draft) finishUnsafe(phase DraftPhase, reason string) {
	d.phase = phase
	d.reason = reason
	if d.timer != nil {
		d.timer.Stop()
		d.timer = nil
	}
	close(d.done)
}

func (d *Draft) eventUnsafe(actor, target string) DraftEvent {
	d.seq++
	turn := -1
	if d.phase == PhaseDrafting {
		turn = d.turnUnsafe()
	}
	return DraftEvent{
		Seq:      d.seq,
		Phase:    d.phase,
		Captains: d.captains,
		Teams:    [2][]string{append([]string(nil), d.teams[0]...), append([]string(nil), d.teams[1]...)},
		Pool:     append([]string(nil), d.pool...),
		Turn:     turn,
		Actor:    actor,
		Target:   target,
	}
}

func (d *Draft) emit(ev DraftEvent) {
	if d.OnUpdate != nil {
		d.OnUpdate(ev)
	}
}
