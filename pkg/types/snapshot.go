package types

import "time"

// Values carried by replicated fields.
//
// phase:                PhaseView
// score:                ScoreView
// objective:            ObjectiveView (no position)
// outcome:              OutcomeView
// shot:                 ShotView
// trap.fired:           TrapFiredView
// participant/<id>:     ParticipantView
// capability/<id>:      CapabilityView
// trap/<id>:            TrapView
// reveal/<id>:          RevealView
// ammo_pickup/<id>:     AmmoPickupView
//
// Targeted: objective.position (Vec3), result (ResultView), scan (ScanView),
// track (TrackView), ammo (AmmoView), spawn (Pose).

type PhaseView struct {
	Phase    string    `json:"phase"`
	Deadline time.Time `json:"deadline,omitempty"`
	Round    int       `json:"round"`
}

type ScoreView struct {
	Hider   int `json:"hider"`
	Seekers int `json:"seekers"`
}

type ParticipantView struct {
	ID          string `json:"id"`
	DisplayName string `json:"display_name"`
	Role        string `json:"role"`
	Alive       bool   `json:"alive"`
	Mask        string `json:"mask"`
}

type ObjectiveView struct {
	ID        string `json:"id"`
	Name      string `json:"name"`
	Found     bool   `json:"found"`
	OwnerHint string `json:"owner_hint"`
}

type CapabilityView struct {
	ID          string    `json:"id"`
	Kind        string    `json:"kind"`
	Owner       string    `json:"owner"`
	State       string    `json:"state"`
	ActivatedAt time.Time `json:"activated_at,omitempty"`
	ActiveUntil time.Time `json:"active_until,omitempty"`
	ReadyAt     time.Time `json:"ready_at,omitempty"`
}

type OutcomeView struct {
	Round  int    `json:"round"`
	Winner string `json:"winner"`
	Reason string `json:"reason"`
}

type ResultView struct {
	Round  int  `json:"round"`
	DidWin bool `json:"did_win"`
}

type TrapView struct {
	ID    string `json:"id"`
	Kind  string `json:"kind"`
	Armed bool   `json:"armed"`
}

type TrapFiredView struct {
	TrapID  string   `json:"trap_id"`
	Kind    string   `json:"kind"`
	Victims []string `json:"victims"`
}

type ShotView struct {
	Shooter string `json:"shooter"`
	Victim  string `json:"victim,omitempty"`
	Aim     Ray    `json:"aim"`
}

type RevealView struct {
	ParticipantID string    `json:"participant_id"`
	Position      Vec3      `json:"position"`
	Until         time.Time `json:"until"`
}

type ScanView struct {
	InRange  bool    `json:"in_range"`
	Distance float64 `json:"distance,omitempty"`
}

type TrackedView struct {
	ParticipantID string `json:"participant_id"`
	Position      Vec3   `json:"position"`
}

type TrackView struct {
	Targets []TrackedView `json:"targets"`
}

type AmmoPickupView struct {
	ID       string `json:"id"`
	Position Vec3   `json:"position"`
	Amount   int    `json:"amount"`
}

type AmmoView struct {
	Ammo  int `json:"ammo"`
	Traps int `json:"traps"`
}

// SessionView is the HTTP summary of one session.
type SessionView struct {
	Code         string            `json:"code"`
	Phase        PhaseView         `json:"phase"`
	Score        ScoreView         `json:"score"`
	Participants []ParticipantView `json:"participants"`
	Observers    int               `json:"observers"`
	Seq          uint64            `json:"seq"`
}
