package wincond

import (
	"context"
	"sync"
	"time"

	"github.com/jonboulle/clockwork"

	"github.com/ErenAtasun/MaskHeist/internal/engine"
)

type Reason string

const (
	ReasonObjectiveFound    Reason = "objective_found"
	ReasonDeadline          Reason = "deadline"
	ReasonHiderLeft         Reason = "hider_left"
	ReasonSeekersEliminated Reason = "seekers_eliminated"
)

type Outcome struct {
	Winner engine.Role
	Reason Reason
	At     time.Time
}

// Race decides one seeking phase: Seekers win if the objective is found
// strictly before the deadline, the Hider wins otherwise. Once decided the
// outcome never changes. Safe for concurrent use.
type Race struct {
	deadline time.Time
	done     chan struct{} // closed by the first Signal or Forfeit

	mu       sync.Mutex
	closed   bool
	foundAt  time.Time
	found    bool
	forfeit  *Outcome
	decision *Outcome
}

func NewRace(deadline time.Time) *Race {
	return &Race{deadline: deadline, done: make(chan struct{})}
}

// Signal records that the objective was found at at. Only the first signal
// counts; it reports whether this one did.
func (r *Race) Signal(at time.Time) bool {
	r.mu.Lock()
	defer r.mu.Unlock()
	if r.found || r.decision != nil {
		return false
	}
	r.found = true
	r.foundAt = at
	r.closeLocked()
	return true
}

// Forfeit ends the race early for winner.
func (r *Race) Forfeit(winner engine.Role, reason Reason, at time.Time) bool {
	r.mu.Lock()
	defer r.mu.Unlock()
	if r.decision != nil || r.forfeit != nil {
		return false
	}
	r.forfeit = &Outcome{Winner: winner, Reason: reason, At: at}
	r.closeLocked()
	return true
}

// Decide reports the outcome as of now, latching it on first success.
func (r *Race) Decide(now time.Time) (Outcome, bool) {
	r.mu.Lock()
	defer r.mu.Unlock()
	if r.decision != nil {
		return *r.decision, true
	}
	var o Outcome
	switch {
	case r.forfeit != nil:
		o = *r.forfeit
	case r.found && r.foundAt.Before(r.deadline):
		o = Outcome{Winner: engine.RoleSeeker, Reason: ReasonObjectiveFound, At: r.foundAt}
	case r.found || !now.Before(r.deadline):
		o = Outcome{Winner: engine.RoleHider, Reason: ReasonDeadline, At: r.deadline}
	default:
		return Outcome{}, false
	}
	r.decision = &o
	return o, true
}

// Await blocks until the race is decided or ctx ends.
func (r *Race) Await(ctx context.Context, clock clockwork.Clock) (Outcome, error) {
	if o, ok := r.Decide(clock.Now()); ok {
		return o, nil
	}
	timer := clock.NewTimer(r.deadline.Sub(clock.Now()))
	defer timer.Stop()
	select {
	case <-ctx.Done():
		return Outcome{}, ctx.Err()
	case <-r.done:
		o, _ := r.Decide(clock.Now())
		return o, nil
	case <-timer.Chan():
		o, _ := r.Decide(r.deadline)
		return o, nil
	}
}

func (r *Race) closeLocked() {
	if !r.closed {
		r.closed = true
		close(r.done)
	}
}

// Await races found against deadline on clock. A signal observed at or after
// the deadline counts for the Hider.
func Await(ctx context.Context, clock clockwork.Clock, deadline time.Time, found <-chan struct{}) (engine.Role, error) {
	timer := clock.NewTimer(deadline.Sub(clock.Now()))
	defer timer.Stop()
	select {
	case <-ctx.Done():
		return engine.RoleNone, ctx.Err()
	case <-found:
		if clock.Now().Before(deadline) {
			return engine.RoleSeeker, nil
		}
		return engine.RoleHider, nil
	case <-timer.Chan():
		return engine.RoleHider, nil
	}
}
