package capability

import (
	"sort"
	"time"

	"github.com/google/uuid"

	"github.com/ErenAtasun/MaskHeist/internal/sched"
)

type Kind string

const (
	KindInvisibility Kind = "invisibility"
	KindSprint       Kind = "sprint"
	KindTracker      Kind = "tracker"
	KindScanner      Kind = "scanner"
	KindSilent       Kind = "silent"
	KindDisruptor    Kind = "disruptor"
	KindTrap         Kind = "trap"
	KindWeapon       Kind = "weapon"
	KindStun         Kind = "stun"
	KindReveal       Kind = "reveal"
)

// ClientActivatable reports whether participants may trigger the kind
// directly. The others are driven by the server (trap arming, weapon fire,
// status effects).
func (k Kind) ClientActivatable() bool {
	switch k {
	case KindInvisibility, KindSprint, KindTracker, KindScanner, KindSilent, KindDisruptor:
		return true
	}
	return false
}

type State string

const (
	StateIdle     State = "idle"
	StateActive   State = "active"
	StateCooldown State = "cooldown"
)

type Reason string

const (
	ReasonNone            Reason = ""
	ReasonAlreadyActive   Reason = "already_active"
	ReasonOnCooldown      Reason = "on_cooldown"
	ReasonUnauthorized    Reason = "unauthorized"
	ReasonUnknownInstance Reason = "unknown_instance"
)

type Spec struct {
	Duration time.Duration
	Cooldown time.Duration
}

// Scheduler is the deadline queue the engine books auto-deactivations on.
type Scheduler interface {
	Schedule(at time.Time, fn func(at time.Time)) sched.Token
	Cancel(t sched.Token) bool
}

// Hooks observes state changes. Each successful transition calls exactly one
// hook.
type Hooks interface {
	Activated(at time.Time, inst *Instance)
	Deactivated(at time.Time, inst *Instance)
	Removed(inst *Instance)
}

type Instance struct {
	ID    string
	Kind  Kind
	Owner string
	Spec  Spec

	activatedAt time.Time
	activeUntil time.Time
	readyAt     time.Time
	active      bool // deactivation not yet delivered
	gen         uint64
	token       sched.Token
}

// State is derived from the recorded times, so it is correct between the
// expiry instant and the moment the scheduler gets to run.
func (i *Instance) State(now time.Time) State {
	switch {
	case i.activatedAt.IsZero():
		return StateIdle
	case now.Before(i.activeUntil):
		return StateActive
	case now.Before(i.readyAt):
		return StateCooldown
	}
	return StateIdle
}

func (i *Instance) ActivatedAt() time.Time { return i.activatedAt }
func (i *Instance) ActiveUntil() time.Time { return i.activeUntil }
func (i *Instance) ReadyAt() time.Time     { return i.readyAt }

type Engine struct {
	sched     Scheduler
	hooks     Hooks
	instances map[string]*Instance
}

func New(s Scheduler, h Hooks) *Engine {
	if h == nil {
		h = nopHooks{}
	}
	return &Engine{sched: s, hooks: h, instances: map[string]*Instance{}}
}

// Add registers an Idle instance. An empty id gets a fresh uuid; an existing
// id is replaced.
func (e *Engine) Add(id string, kind Kind, owner string, spec Spec) *Instance {
	if id == "" {
		id = uuid.NewString()
	}
	if _, ok := e.instances[id]; ok {
		e.Remove(id)
	}
	inst := &Instance{ID: id, Kind: kind, Owner: owner, Spec: spec}
	e.instances[id] = inst
	return inst
}

func (e *Engine) Get(id string) (*Instance, bool) {
	inst, ok := e.instances[id]
	return inst, ok
}

// OwnedBy lists the owner's instances ordered by id.
func (e *Engine) OwnedBy(owner string) []*Instance {
	var out []*Instance
	for _, inst := range e.instances {
		if inst.Owner == owner {
			out = append(out, inst)
		}
	}
	sort.Slice(out, func(a, b int) bool { return out[a].ID < out[b].ID })
	return out
}

// Find returns the first instance of kind held by owner.
func (e *Engine) Find(owner string, kind Kind) (*Instance, bool) {
	for _, inst := range e.OwnedBy(owner) {
		if inst.Kind == kind {
			return inst, true
		}
	}
	return nil, false
}

func (e *Engine) Len() int { return len(e.instances) }

// Remove discards an instance and any pending deactivation for it.
func (e *Engine) Remove(id string) bool {
	inst, ok := e.instances[id]
	if !ok {
		return false
	}
	e.invalidate(inst)
	delete(e.instances, id)
	e.hooks.Removed(inst)
	return true
}

// Reset removes every instance. Timers booked before the reset never fire
// into the new round.
func (e *Engine) Reset() {
	ids := make([]string, 0, len(e.instances))
	for id := range e.instances {
		ids = append(ids, id)
	}
	sort.Strings(ids)
	for _, id := range ids {
		e.Remove(id)
	}
}

func (e *Engine) TryActivate(now time.Time, caller, id string) (bool, Reason) {
	inst, ok := e.instances[id]
	if !ok {
		return false, ReasonUnknownInstance
	}
	if inst.Owner != caller {
		return false, ReasonUnauthorized
	}
	e.settle(inst, now)
	switch inst.State(now) {
	case StateActive:
		return false, ReasonAlreadyActive
	case StateCooldown:
		return false, ReasonOnCooldown
	}

	inst.gen++
	inst.active = true
	inst.activatedAt = now
	inst.activeUntil = now.Add(inst.Spec.Duration)
	inst.readyAt = inst.activeUntil.Add(inst.Spec.Cooldown)
	e.hooks.Activated(now, inst)

	if inst.Spec.Duration <= 0 {
		e.deactivate(inst, now)
		return true, ReasonNone
	}
	gen := inst.gen
	inst.token = e.sched.Schedule(inst.activeUntil, func(at time.Time) {
		cur, ok := e.instances[id]
		if !ok || cur != inst || inst.gen != gen {
			return
		}
		inst.token = 0
		e.deactivate(inst, at)
	})
	return true, ReasonNone
}

// Deactivate ends an active instance early. The cooldown runs from now.
func (e *Engine) Deactivate(now time.Time, id string) bool {
	inst, ok := e.instances[id]
	if !ok {
		return false
	}
	e.settle(inst, now)
	if !inst.active {
		return false
	}
	e.invalidate(inst)
	inst.activeUntil = now
	inst.readyAt = now.Add(inst.Spec.Cooldown)
	e.deactivate(inst, now)
	return true
}

func (e *Engine) IsReady(now time.Time, id string) bool {
	inst, ok := e.instances[id]
	return ok && inst.State(now) == StateIdle
}

func (e *Engine) IsActive(now time.Time, id string) bool {
	inst, ok := e.instances[id]
	return ok && inst.State(now) == StateActive
}

func (e *Engine) RemainingCooldown(now time.Time, id string) time.Duration {
	inst, ok := e.instances[id]
	if !ok || inst.State(now) != StateCooldown {
		return 0
	}
	return inst.readyAt.Sub(now)
}

// settle delivers a deactivation whose deadline passed before the scheduler
// got to it, so hooks always see Active then Cooldown in order.
func (e *Engine) settle(inst *Instance, now time.Time) {
	if inst.active && !now.Before(inst.activeUntil) {
		e.invalidate(inst)
		e.deactivate(inst, inst.activeUntil)
	}
}

func (e *Engine) invalidate(inst *Instance) {
	inst.gen++
	if inst.token != 0 {
		e.sched.Cancel(inst.token)
		inst.token = 0
	}
}

func (e *Engine) deactivate(inst *Instance, at time.Time) {
	inst.active = false
	e.hooks.Deactivated(at, inst)
}

type nopHooks struct{}

func (nopHooks) Activated(time.Time, *Instance)   {}
func (nopHooks) Deactivated(time.Time, *Instance) {}
func (nopHooks) Removed(*Instance)                {}
