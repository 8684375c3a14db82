package session

import (
	"time"

	"github.com/ErenAtasun/MaskHeist/internal/capability"
	"github.com/ErenAtasun/MaskHeist/internal/engine"
	"github.com/ErenAtasun/MaskHeist/internal/replication"
	"github.com/ErenAtasun/MaskHeist/pkg/types"
)

func (m *Machine) publishPhase() {
	m.out.Broadcast(replication.FieldPhase, types.PhaseView{
		Phase:    string(m.phase),
		Deadline: m.deadline,
		Round:    m.round,
	})
}

func (m *Machine) publishScore() {
	m.out.Broadcast(replication.FieldScore, scoreView(m.ledger))
}

func (m *Machine) publishParticipant(p *engine.Participant) {
	m.out.Broadcast(replication.ParticipantField(p.ID), participantView(p))
}

func (m *Machine) publishCapability(at time.Time, inst *capability.Instance) {
	m.out.Broadcast(replication.CapabilityField(inst.ID), capabilityView(at, inst))
}

// publishObjective broadcasts that the objective exists. Only the Hider
// learns where it is.
func (m *Machine) publishObjective() {
	obj := m.objective
	if obj == nil {
		return
	}
	m.out.Broadcast(replication.FieldObjective, types.ObjectiveView{
		ID:        obj.ID,
		Name:      obj.Name,
		Found:     obj.Found,
		OwnerHint: obj.OwnerHint,
	})
	if _, ok := m.participants[obj.OwnerHint]; ok {
		m.out.Send(obj.OwnerHint, replication.FieldObjectivePosition, vecView(obj.Position))
	}
}

func (m *Machine) sendInventory(p *engine.Participant) {
	m.out.Send(p.ID, replication.FieldAmmo, types.AmmoView{Ammo: p.Ammo, Traps: p.Traps})
}

func scoreView(l engine.ScoreLedger) types.ScoreView {
	return types.ScoreView{Hider: l.Hider, Seekers: l.Seekers}
}

func participantView(p *engine.Participant) types.ParticipantView {
	return types.ParticipantView{
		ID:          p.ID,
		DisplayName: p.DisplayName,
		Role:        string(p.Role),
		Alive:       p.Alive,
		Mask:        p.Mask,
	}
}

func capabilityView(at time.Time, inst *capability.Instance) types.CapabilityView {
	return types.CapabilityView{
		ID:          inst.ID,
		Kind:        string(inst.Kind),
		Owner:       inst.Owner,
		State:       string(inst.State(at)),
		ActivatedAt: inst.ActivatedAt(),
		ActiveUntil: inst.ActiveUntil(),
		ReadyAt:     inst.ReadyAt(),
	}
}

func vecView(v engine.Vec3) types.Vec3 {
	return types.Vec3{X: v.X, Y: v.Y, Z: v.Z}
}

func poseView(p engine.Pose) types.Pose {
	return types.Pose{Position: vecView(p.Position), Yaw: p.Yaw}
}

func rayView(r engine.Ray) types.Ray {
	return types.Ray{Origin: vecView(r.Origin), Dir: vecView(r.Dir)}
}
