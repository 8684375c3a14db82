package ws

import (
	"github.com/ErenAtasun/MaskHeist/internal/engine"
	"github.com/ErenAtasun/MaskHeist/pkg/types"
)

var commandKinds = map[string]engine.CommandKind{
	types.MsgSelectMask:         engine.CmdSelectMask,
	types.MsgActivateCapability: engine.CmdActivateCapability,
	types.MsgPlaceObjective:     engine.CmdPlaceObjective,
	types.MsgPickupObjective:    engine.CmdPickupObjective,
	types.MsgPickupAmmo:         engine.CmdPickupAmmo,
	types.MsgFireWeapon:         engine.CmdFireWeapon,
	types.MsgPlaceTrap:          engine.CmdPlaceTrap,
	types.MsgMove:               engine.CmdMove,
}

// ToEngineCommand maps a wire message onto a command. Only the shape is
// checked here; the session decides whether it may run.
func ToEngineCommand(m types.ClientMessage) (engine.Command, error) {
	kind, ok := commandKinds[m.Type]
	if !ok {
		return engine.Command{}, engine.Invalid(engine.ReasonMalformed, "unknown message type %q", m.Type)
	}
	cmd := engine.Command{
		Kind:       kind,
		InstanceID: m.InstanceID,
		ObjectID:   m.ObjectID,
		Mask:       m.Mask,
		Trap:       engine.TrapKind(m.TrapKind),
	}
	switch kind {
	case engine.CmdPlaceObjective, engine.CmdPlaceTrap, engine.CmdMove:
		if m.Pose == nil {
			return engine.Command{}, engine.Invalid(engine.ReasonMalformed, "%s needs a pose", m.Type)
		}
		cmd.Pose = poseFromWire(*m.Pose)
	case engine.CmdFireWeapon:
		if m.Aim == nil {
			return engine.Command{}, engine.Invalid(engine.ReasonMalformed, "%s needs an aim", m.Type)
		}
		cmd.Aim = engine.Ray{Origin: vecFromWire(m.Aim.Origin), Dir: vecFromWire(m.Aim.Dir)}
	}
	return cmd, cmd.Validate()
}

func vecFromWire(v types.Vec3) engine.Vec3 {
	return engine.Vec3{X: v.X, Y: v.Y, Z: v.Z}
}

func poseFromWire(p types.Pose) engine.Pose {
	return engine.Pose{Position: vecFromWire(p.Position), Yaw: p.Yaw}
}
