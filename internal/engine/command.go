package engine

type CommandKind string

const (
	CmdSelectMask         CommandKind = "select_mask"
	CmdActivateCapability CommandKind = "activate_capability"
	CmdPlaceObjective     CommandKind = "place_objective"
	CmdPickupObjective    CommandKind = "pickup_objective"
	CmdPickupAmmo         CommandKind = "pickup_ammo"
	CmdFireWeapon         CommandKind = "fire_weapon"
	CmdPlaceTrap          CommandKind = "place_trap"
	CmdMove               CommandKind = "move"
)

type TrapKind string

const (
	TrapMine  TrapKind = "mine"
	TrapLaser TrapKind = "laser"
)

func (k TrapKind) Valid() bool {
	return k == TrapMine || k == TrapLaser
}

// Command is a participant request. Which fields matter depends on Kind;
// positions are client claims that the session re-checks.
type Command struct {
	Kind       CommandKind
	InstanceID string
	ObjectID   string
	Mask       string
	Trap       TrapKind
	Pose       Pose
	Aim        Ray
}

// Validate checks the shape of c without looking at session state.
func (c Command) Validate() error {
	switch c.Kind {
	case CmdSelectMask:
		if c.Mask == "" {
			return Invalid(ReasonMalformed, "mask name is required")
		}
	case CmdActivateCapability:
		if c.InstanceID == "" {
			return Invalid(ReasonMalformed, "instance id is required")
		}
	case CmdPickupObjective, CmdPickupAmmo:
		if c.ObjectID == "" {
			return Invalid(ReasonMalformed, "object id is required")
		}
	case CmdPlaceObjective, CmdMove:
		if !c.Pose.Finite() {
			return Invalid(ReasonMalformed, "pose is not finite")
		}
	case CmdPlaceTrap:
		if !c.Trap.Valid() {
			return Invalid(ReasonMalformed, "unknown trap kind %q", c.Trap)
		}
		if !c.Pose.Finite() {
			return Invalid(ReasonMalformed, "pose is not finite")
		}
	case CmdFireWeapon:
		if !c.Aim.Dir.Finite() || c.Aim.Dir.Len() == 0 {
			return Invalid(ReasonMalformed, "aim direction is required")
		}
	default:
		return Invalid(ReasonMalformed, "unsupported command %q", c.Kind)
	}
	return nil
}
