package session

import (
	"slices"
	"time"

	"go.uber.org/zap"

	"github.com/ErenAtasun/MaskHeist/internal/capability"
	"github.com/ErenAtasun/MaskHeist/internal/engine"
	"github.com/ErenAtasun/MaskHeist/internal/replication"
	"github.com/ErenAtasun/MaskHeist/pkg/types"
)

// Handle validates cmd against the current state and applies it. Anything
// due before now runs first, so a command arriving at a deadline sees the
// phase that deadline produced.
func (m *Machine) Handle(now time.Time, participantID string, cmd engine.Command) error {
	m.Advance(now)
	p, ok := m.participants[participantID]
	if !ok {
		return engine.Invalid(engine.ReasonUnknownParticipant, "participant %s is not in this session", participantID)
	}
	if err := cmd.Validate(); err != nil {
		return err
	}

	var err error
	switch cmd.Kind {
	case engine.CmdSelectMask:
		err = m.selectMask(p, cmd.Mask)
	case engine.CmdActivateCapability:
		err = m.activate(now, p, cmd.InstanceID)
	case engine.CmdPlaceObjective:
		err = m.placeObjective(p, cmd.Pose)
	case engine.CmdPickupObjective:
		err = m.pickupObjective(now, p, cmd.ObjectID)
	case engine.CmdPickupAmmo:
		err = m.pickupAmmo(p, cmd.ObjectID)
	case engine.CmdFireWeapon:
		err = m.fireWeapon(now, p, cmd.Aim)
	case engine.CmdPlaceTrap:
		err = m.placeTrap(now, p, cmd.Trap, cmd.Pose)
	case engine.CmdMove:
		err = m.move(now, p, cmd.Pose)
	}
	if err != nil {
		m.log.Debug("command rejected",
			zap.String("participant", p.ID),
			zap.String("command", string(cmd.Kind)),
			zap.Error(err))
	}
	return err
}

func (m *Machine) requirePhase(allowed ...engine.Phase) error {
	if slices.Contains(allowed, m.phase) {
		return nil
	}
	return engine.Precondition(engine.ReasonWrongPhase, "not allowed during %s", m.phase)
}

func requireLiving(p *engine.Participant, role engine.Role) error {
	if p.Role != role {
		return engine.Precondition(engine.ReasonWrongRole, "only the %s can do that", role)
	}
	if !p.Alive {
		return engine.Precondition(engine.ReasonEliminated, "participant %s is eliminated", p.ID)
	}
	return nil
}

func (m *Machine) selectMask(p *engine.Participant, name string) error {
	if err := m.requirePhase(engine.PhaseWaiting, engine.PhaseRoundEnd); err != nil {
		return err
	}
	if _, ok := engine.LookupMask(name); !ok {
		return engine.Invalid(engine.ReasonUnknownMask, "unknown mask %q", name)
	}
	p.Mask = name
	m.publishParticipant(p)
	return nil
}

func (m *Machine) activate(now time.Time, p *engine.Participant, id string) error {
	if err := m.requirePhase(engine.PhaseHiding, engine.PhaseBriefing, engine.PhaseSeeking); err != nil {
		return err
	}
	inst, ok := m.caps.Get(id)
	if !ok {
		return engine.Invalid(engine.ReasonUnknownInstance, "unknown capability %s", id)
	}
	if !inst.Kind.ClientActivatable() {
		return engine.Invalid(engine.ReasonUnauthorized, "%s cannot be activated directly", inst.Kind)
	}
	if !p.Alive {
		return engine.Precondition(engine.ReasonEliminated, "participant %s is eliminated", p.ID)
	}
	if ok, reason := m.caps.TryActivate(now, p.ID, id); !ok {
		return m.capabilityError(now, id, reason)
	}
	return nil
}

func (m *Machine) capabilityError(now time.Time, id string, reason capability.Reason) error {
	switch reason {
	case capability.ReasonAlreadyActive:
		return engine.Precondition(engine.ReasonAlreadyActive, "capability %s is active", id)
	case capability.ReasonOnCooldown:
		return engine.Precondition(engine.ReasonOnCooldown, "capability %s ready in %s", id, m.caps.RemainingCooldown(now, id))
	case capability.ReasonUnauthorized:
		return engine.Invalid(engine.ReasonUnauthorized, "capability %s belongs to someone else", id)
	}
	return engine.Invalid(engine.ReasonUnknownInstance, "unknown capability %s", id)
}

func (m *Machine) placeObjective(p *engine.Participant, pose engine.Pose) error {
	if err := m.requirePhase(engine.PhaseHiding); err != nil {
		return err
	}
	if err := requireLiving(p, engine.RoleHider); err != nil {
		return err
	}
	obj := m.objective
	if obj == nil {
		return engine.Precondition(engine.ReasonUnknownObject, "no objective this round")
	}
	if d := engine.Distance(p.Pose.Position, pose.Position); d > m.cfg.PlaceReach {
		return engine.Precondition(engine.ReasonOutOfRange, "placement %.1f away, reach is %.1f", d, m.cfg.PlaceReach)
	}
	obj.Position = pose.Position
	first := !obj.Placed
	obj.Placed = true
	m.publishObjective()
	if first {
		m.award(engine.ScoreHide)
	}
	return nil
}

func (m *Machine) pickupObjective(now time.Time, p *engine.Participant, objectID string) error {
	if err := m.requirePhase(engine.PhaseSeeking); err != nil {
		return err
	}
	if err := requireLiving(p, engine.RoleSeeker); err != nil {
		return err
	}
	obj := m.objective
	if obj == nil || obj.ID != objectID {
		return engine.Invalid(engine.ReasonUnknownObject, "unknown object %s", objectID)
	}
	if obj.Found {
		return engine.Precondition(engine.ReasonAlreadyFound, "objective already found")
	}
	limit := m.cfg.FindDistance * m.cfg.FindTolerance
	if d := engine.Distance(p.Pose.Position, obj.Position); d > limit {
		return engine.Precondition(engine.ReasonOutOfRange, "objective %.1f away, reach is %.1f", d, limit)
	}

	obj.Found = true
	m.race.Signal(now)
	m.publishObjective()
	m.award(engine.ScoreFind)
	m.log.Info("objective found",
		zap.String("participant", p.ID),
		zap.Int("round", m.round))
	m.resolve(now)
	return nil
}

func (m *Machine) fireWeapon(now time.Time, p *engine.Participant, aim engine.Ray) error {
	if err := m.requirePhase(engine.PhaseSeeking); err != nil {
		return err
	}
	if err := requireLiving(p, engine.RoleHider); err != nil {
		return err
	}
	weapon, ok := m.caps.Find(p.ID, capability.KindWeapon)
	if !ok {
		return engine.Precondition(engine.ReasonUnknownInstance, "no weapon")
	}
	if p.Ammo <= 0 {
		return engine.Precondition(engine.ReasonNoAmmo, "out of ammo")
	}
	if ok, reason := m.caps.TryActivate(now, p.ID, weapon.ID); !ok {
		return m.capabilityError(now, weapon.ID, reason)
	}
	p.Ammo--
	m.sendInventory(p)

	// The shot leaves from the authoritative position; only the direction
	// comes from the client.
	ray := engine.Ray{Origin: p.Pose.Position, Dir: aim.Dir}
	victim := m.firstHit(ray)
	shot := types.ShotView{Shooter: p.ID, Aim: rayView(ray)}
	if victim != nil {
		shot.Victim = victim.ID
	}
	m.out.Broadcast(replication.FieldShot, shot)
	if victim == nil {
		return nil
	}

	victim.Alive = false
	m.publishParticipant(victim)
	m.award(engine.ScoreCatch)
	m.log.Info("seeker eliminated",
		zap.String("hider", p.ID),
		zap.String("seeker", victim.ID))
	m.checkSeekers(now)
	return nil
}

func (m *Machine) pickupAmmo(p *engine.Participant, id string) error {
	if err := m.requirePhase(engine.PhaseHiding, engine.PhaseBriefing, engine.PhaseSeeking); err != nil {
		return err
	}
	if err := requireLiving(p, engine.RoleHider); err != nil {
		return err
	}
	pos, ok := m.pickups[id]
	if !ok {
		return engine.Invalid(engine.ReasonUnknownObject, "unknown ammo pickup %s", id)
	}
	if p.Ammo >= m.cfg.Weapon.MaxAmmo {
		return engine.Precondition(engine.ReasonAmmoFull, "ammo is full")
	}
	if d := engine.Distance(p.Pose.Position, pos); d > m.cfg.Weapon.PickupReach {
		return engine.Precondition(engine.ReasonOutOfRange, "pickup %.1f away, reach is %.1f", d, m.cfg.Weapon.PickupReach)
	}
	delete(m.pickups, id)
	p.Ammo = min(p.Ammo+m.cfg.Weapon.PickupAmount, m.cfg.Weapon.MaxAmmo)
	m.out.Broadcast(replication.AmmoPickupField(id), nil)
	m.sendInventory(p)
	return nil
}

func (m *Machine) firstHit(ray engine.Ray) *engine.Participant {
	var (
		hit  *engine.Participant
		best float64
	)
	for _, id := range m.order {
		s := m.participants[id]
		if !s.Living(engine.RoleSeeker) {
			continue
		}
		along, off := ray.Closest(s.Pose.Position)
		if along < 0 || along > m.cfg.Weapon.Range || off > m.cfg.Weapon.HitRadius {
			continue
		}
		if hit == nil || along < best {
			hit, best = s, along
		}
	}
	return hit
}

func (m *Machine) placeTrap(now time.Time, p *engine.Participant, kind engine.TrapKind, pose engine.Pose) error {
	if err := m.requirePhase(engine.PhaseHiding, engine.PhaseSeeking); err != nil {
		return err
	}
	if err := requireLiving(p, engine.RoleHider); err != nil {
		return err
	}
	if p.Traps <= 0 {
		return engine.Precondition(engine.ReasonNoTraps, "no traps left")
	}
	if d := engine.Distance(p.Pose.Position, pose.Position); d > m.cfg.PlaceReach {
		return engine.Precondition(engine.ReasonOutOfRange, "placement %.1f away, reach is %.1f", d, m.cfg.PlaceReach)
	}

	t := &trap{ID: m.newID(), Kind: kind, Position: pose.Position, PlacedBy: p.ID}
	m.traps[t.ID] = t
	p.Traps--
	m.sendInventory(p)
	m.out.Broadcast(replication.TrapField(t.ID), types.TrapView{ID: t.ID, Kind: string(kind)})

	// The trap owns its arming timer: Active while arming, Idle once armed.
	m.caps.Add(t.ID, capability.KindTrap, t.ID, m.cfg.Spec(capability.KindTrap))
	m.caps.TryActivate(now, t.ID, t.ID)
	return nil
}

func (m *Machine) move(now time.Time, p *engine.Participant, pose engine.Pose) error {
	switch {
	case m.phase == engine.PhaseSetup:
		return engine.Precondition(engine.ReasonWrongPhase, "movement is locked during setup")
	case m.phase == engine.PhaseHiding && p.Role == engine.RoleSeeker:
		return engine.Precondition(engine.ReasonWrongPhase, "seekers wait while the hider hides")
	case p.Role != engine.RoleNone && !p.Alive:
		return engine.Precondition(engine.ReasonEliminated, "participant %s is eliminated", p.ID)
	case m.hasActive(now, p.ID, capability.KindStun):
		return engine.Precondition(engine.ReasonStunned, "participant %s is stunned", p.ID)
	}
	limit := m.cfg.MaxMoveStep
	if m.hasActive(now, p.ID, capability.KindSprint) {
		limit *= m.cfg.Effects.SprintMultiplier
	}
	if d := engine.Distance(p.Pose.Position, pose.Position); d > limit {
		return engine.Precondition(engine.ReasonOutOfRange, "step of %.1f exceeds %.1f", d, limit)
	}
	p.Pose = pose
	m.checkTraps(now, p)
	return nil
}
