package engine

import (
	"time"
)

type Role string

const (
	RoleNone   Role = "none"
	RoleHider  Role = "hider"
	RoleSeeker Role = "seeker"
)

type Participant struct {
	ID          string
	DisplayName string
	Role        Role
	Alive       bool
	Conn        string // observer id the replication layer delivers to
	Pose        Pose
	Mask        string
	Ammo        int
	Traps       int
	JoinedAt    time.Time
}

func NewParticipant(id, name string, joinedAt time.Time) *Participant {
	return &Participant{
		ID:          id,
		DisplayName: name,
		Role:        RoleNone,
		Conn:        id,
		Mask:        DefaultMask,
		JoinedAt:    joinedAt,
	}
}

// Living reports whether p currently plays the given role and is not eliminated.
func (p *Participant) Living(role Role) bool {
	return p != nil && p.Role == role && p.Alive
}

type Objective struct {
	ID        string
	Name      string
	Position  Vec3
	Found     bool
	Placed    bool
	OwnerHint string
}

type ScoreEvent string

const (
	ScoreHide    ScoreEvent = "hide"
	ScoreFind    ScoreEvent = "find"
	ScoreCatch   ScoreEvent = "catch"
	ScoreSurvive ScoreEvent = "survive"
)

type Points struct {
	Hide           int
	Find           int
	Catch          int
	SurvivePerTick int
}

// ScoreLedger holds the per-round team totals. It only moves through Apply.
type ScoreLedger struct {
	Hider   int
	Seekers int
}

// Apply credits the team a named event belongs to and returns that team with
// the points added. Negative configured values count as zero so totals never
// decrease within a round.
func (l *ScoreLedger) Apply(ev ScoreEvent, p Points) (Role, int) {
	var (
		team Role
		pts  int
	)
	switch ev {
	case ScoreHide:
		team, pts = RoleHider, p.Hide
	case ScoreSurvive:
		team, pts = RoleHider, p.SurvivePerTick
	case ScoreCatch:
		team, pts = RoleHider, p.Catch
	case ScoreFind:
		team, pts = RoleSeeker, p.Find
	default:
		return RoleNone, 0
	}
	if pts < 0 {
		pts = 0
	}
	if team == RoleHider {
		l.Hider += pts
	} else {
		l.Seekers += pts
	}
	return team, pts
}

func (l *ScoreLedger) Reset() {
	*l = ScoreLedger{}
}

// RoundSummary is what a finished round leaves behind for the history log.
type RoundSummary struct {
	SessionCode  string
	Round        int
	Winner       Role
	Reason       string
	HiderID      string
	HiderScore   int
	SeekerScore  int
	Participants int
	StartedAt    time.Time
	EndedAt      time.Time
}
