package types

// Client -> Server
// select_mask:          mask: string (only while waiting or at round end)
// activate_capability:  instance_id: string
// place_objective:      pose: Pose (hider, hiding phase)
// pickup_objective:     object_id: string (seeker, seeking phase)
// pickup_ammo:          object_id: string (hider, while the round runs)
// fire_weapon:          aim: Ray (hider, seeking phase)
// place_trap:           trap_kind: "mine" | "laser", pose: Pose
// move:                 pose: Pose
//
// Every client message may carry ref; the reply ack/reject echoes it.

// Server -> Client
// welcome:   participant_id (empty for spectators), observer_id
// snapshot:  seq, fields: { [field]: value } (all replicated fields at seq)
// update:    seq, field, value | deleted
// ack:       ref
// reject:    ref, error: { code, reason, message }

const (
	MsgSelectMask         = "select_mask"
	MsgActivateCapability = "activate_capability"
	MsgPlaceObjective     = "place_objective"
	MsgPickupObjective    = "pickup_objective"
	MsgPickupAmmo         = "pickup_ammo"
	MsgFireWeapon         = "fire_weapon"
	MsgPlaceTrap          = "place_trap"
	MsgMove               = "move"

	MsgWelcome  = "welcome"
	MsgSnapshot = "snapshot"
	MsgUpdate   = "update"
	MsgAck      = "ack"
	MsgReject   = "reject"
)

type ClientMessage struct {
	Type       string `json:"type"`
	Ref        uint64 `json:"ref,omitempty"`
	InstanceID string `json:"instance_id,omitempty"`
	ObjectID   string `json:"object_id,omitempty"`
	Mask       string `json:"mask,omitempty"`
	TrapKind   string `json:"trap_kind,omitempty"`
	Pose       *Pose  `json:"pose,omitempty"`
	Aim        *Ray   `json:"aim,omitempty"`
}

type ServerMessage struct {
	Type          string         `json:"type"`
	Seq           uint64         `json:"seq,omitempty"`
	Field         string         `json:"field,omitempty"`
	Value         any            `json:"value,omitempty"`
	Deleted       bool           `json:"deleted,omitempty"`
	Fields        map[string]any `json:"fields,omitempty"`
	Ref           uint64         `json:"ref,omitempty"`
	ParticipantID string         `json:"participant_id,omitempty"`
	ObserverID    string         `json:"observer_id,omitempty"`
	Error         *ErrorBody     `json:"error,omitempty"`
}

type ErrorBody struct {
	Code    string `json:"code"`
	Reason  string `json:"reason,omitempty"`
	Message string `json:"message,omitempty"`
}

type Vec3 struct {
	X float64 `json:"x"`
	Y float64 `json:"y"`
	Z float64 `json:"z"`
}

type Pose struct {
	Position Vec3    `json:"position"`
	Yaw      float64 `json:"yaw"`
}

type Ray struct {
	Origin Vec3 `json:"origin"`
	Dir    Vec3 `json:"dir"`
}
