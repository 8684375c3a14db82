package session

import (
	"sort"
	"time"

	"github.com/ErenAtasun/MaskHeist/internal/capability"
	"github.com/ErenAtasun/MaskHeist/internal/engine"
	"github.com/ErenAtasun/MaskHeist/internal/replication"
	"github.com/ErenAtasun/MaskHeist/pkg/types"
)

// capHooks turns capability transitions into one replicated update each and
// runs the per-kind effect. An instant activation is already in cooldown, so
// only its deactivation is published.
type capHooks struct{ m *Machine }

func (h capHooks) Activated(at time.Time, inst *capability.Instance) {
	if inst.Spec.Duration > 0 {
		h.m.publishCapability(at, inst)
	}
	if fx := effects[inst.Kind]; fx.activate != nil {
		fx.activate(h.m, at, inst)
	}
}

func (h capHooks) Deactivated(at time.Time, inst *capability.Instance) {
	h.m.publishCapability(at, inst)
	if fx := effects[inst.Kind]; fx.deactivate != nil {
		fx.deactivate(h.m, at, inst)
	}
}

func (h capHooks) Removed(inst *capability.Instance) {
	h.m.out.Broadcast(replication.CapabilityField(inst.ID), nil)
	if fx := effects[inst.Kind]; fx.removed != nil {
		fx.removed(h.m, inst)
	}
}

type effect struct {
	activate   func(m *Machine, at time.Time, inst *capability.Instance)
	deactivate func(m *Machine, at time.Time, inst *capability.Instance)
	removed    func(m *Machine, inst *capability.Instance)
}

// Invisibility, silent and sprint need nothing beyond the replicated state;
// sprint is read back when a move is checked.
var effects = map[capability.Kind]effect{
	capability.KindScanner: {activate: scan},
	capability.KindTracker: {activate: track},
	capability.KindDisruptor: {
		activate:   startDisruptor,
		deactivate: func(m *Machine, _ time.Time, inst *capability.Instance) { delete(m.disruptors, inst.ID) },
		removed:    func(m *Machine, inst *capability.Instance) { delete(m.disruptors, inst.ID) },
	},
	capability.KindTrap: {deactivate: armTrap, removed: dropTrap},
	capability.KindStun: {deactivate: expireStatus},
	capability.KindReveal: {
		activate:   reveal,
		deactivate: expireStatus,
		removed: func(m *Machine, inst *capability.Instance) {
			m.out.Broadcast(replication.RevealField(inst.ID), nil)
		},
	},
}

func scan(m *Machine, _ time.Time, inst *capability.Instance) {
	p, ok := m.participants[inst.Owner]
	if !ok {
		return
	}
	view := types.ScanView{}
	if obj := m.objective; obj != nil && !obj.Found {
		if d := engine.Distance(p.Pose.Position, obj.Position); d <= m.cfg.Effects.ScanRadius {
			view = types.ScanView{InRange: true, Distance: d}
		}
	}
	m.out.Send(p.ID, replication.FieldScan, view)
}

func track(m *Machine, _ time.Time, inst *capability.Instance) {
	p, ok := m.participants[inst.Owner]
	if !ok {
		return
	}
	view := types.TrackView{Targets: []types.TrackedView{}}
	for _, id := range m.order {
		other := m.participants[id]
		if id == p.ID || other.Role == engine.RoleNone || !other.Alive {
			continue
		}
		if engine.Distance(p.Pose.Position, other.Pose.Position) <= m.cfg.Effects.TrackRadius {
			view.Targets = append(view.Targets, types.TrackedView{ParticipantID: id, Position: vecView(other.Pose.Position)})
		}
	}
	sort.Slice(view.Targets, func(a, b int) bool { return view.Targets[a].ParticipantID < view.Targets[b].ParticipantID })
	m.out.Send(p.ID, replication.FieldTrack, view)
}

func startDisruptor(m *Machine, _ time.Time, inst *capability.Instance) {
	if p, ok := m.participants[inst.Owner]; ok {
		m.disruptors[inst.ID] = p.Pose.Position
	}
}

func armTrap(m *Machine, _ time.Time, inst *capability.Instance) {
	t, ok := m.traps[inst.ID]
	if !ok {
		return
	}
	m.out.Broadcast(replication.TrapField(t.ID), types.TrapView{ID: t.ID, Kind: string(t.Kind), Armed: true})
}

func dropTrap(m *Machine, inst *capability.Instance) {
	if _, ok := m.traps[inst.ID]; !ok {
		return
	}
	delete(m.traps, inst.ID)
	m.out.Broadcast(replication.TrapField(inst.ID), nil)
}

func reveal(m *Machine, _ time.Time, inst *capability.Instance) {
	p, ok := m.participants[inst.Owner]
	if !ok {
		return
	}
	m.out.Broadcast(replication.RevealField(inst.ID), types.RevealView{
		ParticipantID: p.ID,
		Position:      vecView(p.Pose.Position),
		Until:         inst.ActiveUntil(),
	})
}

// Status effects are one-shot; once they run out the instance goes away.
func expireStatus(m *Machine, _ time.Time, inst *capability.Instance) {
	m.caps.Remove(inst.ID)
}

func (m *Machine) applyStatus(now time.Time, owner string, kind capability.Kind) {
	inst := m.caps.Add(m.newID(), kind, owner, m.cfg.Spec(kind))
	m.caps.TryActivate(now, owner, inst.ID)
}

func (m *Machine) hasActive(now time.Time, owner string, kind capability.Kind) bool {
	for _, inst := range m.caps.OwnedBy(owner) {
		if inst.Kind == kind && inst.State(now) == capability.StateActive {
			return true
		}
	}
	return false
}

func (m *Machine) disrupted(now time.Time, pos engine.Vec3) bool {
	for id, center := range m.disruptors {
		if m.caps.IsActive(now, id) && engine.Distance(center, pos) <= m.cfg.Effects.DisruptRadius {
			return true
		}
	}
	return false
}

// checkTraps fires the first armed trap within reach of a moving Seeker.
func (m *Machine) checkTraps(now time.Time, p *engine.Participant) {
	if !p.Living(engine.RoleSeeker) {
		return
	}
	for _, id := range m.sortedTrapIDs() {
		t := m.traps[id]
		inst, ok := m.caps.Get(id)
		if !ok || inst.State(now) != capability.StateIdle {
			continue
		}
		if engine.Distance(t.Position, p.Pose.Position) > m.cfg.Traps.TriggerRadius {
			continue
		}
		if m.disrupted(now, t.Position) {
			continue
		}
		m.trigger(now, t, p)
		return
	}
}

func (m *Machine) trigger(now time.Time, t *trap, victim *engine.Participant) {
	victims := []string{}
	switch t.Kind {
	case engine.TrapMine:
		for _, id := range m.order {
			s := m.participants[id]
			if s.Living(engine.RoleSeeker) && engine.Distance(s.Pose.Position, t.Position) <= m.cfg.Traps.MineRadius {
				victims = append(victims, id)
				m.applyStatus(now, id, capability.KindStun)
			}
		}
	case engine.TrapLaser:
		victims = append(victims, victim.ID)
		m.applyStatus(now, victim.ID, capability.KindReveal)
	}
	m.out.Broadcast(replication.FieldTrapFired, types.TrapFiredView{TrapID: t.ID, Kind: string(t.Kind), Victims: victims})
	m.caps.Remove(t.ID)
}
