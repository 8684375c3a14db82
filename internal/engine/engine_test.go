package engine

import (
	"errors"
	"math"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestPhaseTransitions(t *testing.T) {
	cases := []struct {
		name string
		from Phase
		to   Phase
		want bool
	}{
		{"waiting starts setup", PhaseWaiting, PhaseSetup, true},
		{"setup to hiding", PhaseSetup, PhaseHiding, true},
		{"hiding to briefing", PhaseHiding, PhaseBriefing, true},
		{"briefing to seeking", PhaseBriefing, PhaseSeeking, true},
		{"seeking to round end", PhaseSeeking, PhaseRoundEnd, true},
		{"round end loops to setup", PhaseRoundEnd, PhaseSetup, true},
		{"setup falls back to waiting", PhaseSetup, PhaseWaiting, true},
		{"hider loss during hiding", PhaseHiding, PhaseRoundEnd, true},
		{"hider loss during briefing", PhaseBriefing, PhaseRoundEnd, true},
		{"no skipping hiding", PhaseSetup, PhaseSeeking, false},
		{"no going back", PhaseSeeking, PhaseHiding, false},
		{"round end never waits", PhaseRoundEnd, PhaseWaiting, false},
		{"waiting never jumps to seeking", PhaseWaiting, PhaseSeeking, false},
		{"seeking does not restart", PhaseSeeking, PhaseSetup, false},
	}

	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			assert.Equal(t, tc.want, tc.from.CanTransitionTo(tc.to))
		})
	}
}

func TestPhaseValid(t *testing.T) {
	for _, p := range append([]Phase{PhaseWaiting}, RoundOrder...) {
		assert.True(t, p.Valid(), p)
	}
	assert.False(t, Phase("intermission").Valid())
}

func TestInFrontUsesHeading(t *testing.T) {
	cases := []struct {
		name string
		pose Pose
		want Vec3
	}{
		{"facing +z", Pose{Position: Vec3{1, 0, 1}}, Vec3{1, 0, 3}},
		{"facing +x", Pose{Position: Vec3{0, 2, 0}, Yaw: math.Pi / 2}, Vec3{2, 2, 0}},
		{"facing -z", Pose{Yaw: math.Pi}, Vec3{0, 0, -2}},
	}

	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			got := InFront(tc.pose, 2)
			assert.InDelta(t, tc.want.X, got.X, 1e-9)
			assert.InDelta(t, tc.want.Y, got.Y, 1e-9)
			assert.InDelta(t, tc.want.Z, got.Z, 1e-9)
			assert.InDelta(t, 2, Distance(tc.pose.Position, got), 1e-9)
		})
	}
}

func TestRayClosest(t *testing.T) {
	r := Ray{Origin: Vec3{}, Dir: Vec3{0, 0, 5}}

	along, off := r.Closest(Vec3{1, 0, 10})
	assert.InDelta(t, 10, along, 1e-9)
	assert.InDelta(t, 1, off, 1e-9)

	along, _ = r.Closest(Vec3{0, 0, -3})
	assert.Less(t, along, 0.0, "points behind the origin project negative")
}

func TestScoreLedger(t *testing.T) {
	pts := Points{Hide: 100, Find: 200, Catch: 150, SurvivePerTick: 5}
	var l ScoreLedger

	team, n := l.Apply(ScoreHide, pts)
	assert.Equal(t, RoleHider, team)
	assert.Equal(t, 100, n)
	l.Apply(ScoreSurvive, pts)
	l.Apply(ScoreCatch, pts)
	team, _ = l.Apply(ScoreFind, pts)
	assert.Equal(t, RoleSeeker, team)

	assert.Equal(t, ScoreLedger{Hider: 255, Seekers: 200}, l)

	team, n = l.Apply(ScoreEvent("bonus"), pts)
	assert.Equal(t, RoleNone, team)
	assert.Zero(t, n)

	l.Apply(ScoreFind, Points{Find: -50})
	assert.Equal(t, 200, l.Seekers, "negative values never lower a total")

	l.Reset()
	assert.Equal(t, ScoreLedger{}, l)
}

func TestCommandValidate(t *testing.T) {
	cases := []struct {
		name    string
		cmd     Command
		wantErr bool
	}{
		{"select mask", Command{Kind: CmdSelectMask, Mask: "shadow"}, false},
		{"select mask without name", Command{Kind: CmdSelectMask}, true},
		{"activate without instance", Command{Kind: CmdActivateCapability}, true},
		{"pickup", Command{Kind: CmdPickupObjective, ObjectID: "o"}, false},
		{"move with NaN", Command{Kind: CmdMove, Pose: Pose{Position: Vec3{X: math.NaN()}}}, true},
		{"trap with bad kind", Command{Kind: CmdPlaceTrap, Trap: "bear"}, true},
		{"trap", Command{Kind: CmdPlaceTrap, Trap: TrapMine}, false},
		{"fire without aim", Command{Kind: CmdFireWeapon}, true},
		{"fire", Command{Kind: CmdFireWeapon, Aim: Ray{Dir: Vec3{Z: 1}}}, false},
		{"unknown", Command{Kind: "dance"}, true},
	}

	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			err := tc.cmd.Validate()
			if tc.wantErr {
				require.Error(t, err)
				assert.ErrorIs(t, err, ErrInvalidCommand)
				return
			}
			assert.NoError(t, err)
		})
	}
}

func TestErrorMatching(t *testing.T) {
	err := Precondition(ReasonOnCooldown, "instance %s", "abc")

	assert.ErrorIs(t, err, ErrPreconditionFailed)
	assert.ErrorIs(t, err, &Error{Code: CodePreconditionFailed, Reason: ReasonOnCooldown})
	assert.NotErrorIs(t, err, &Error{Code: CodePreconditionFailed, Reason: ReasonNoAmmo})
	assert.NotErrorIs(t, err, ErrInvalidCommand)

	wrapped := errors.Join(errors.New("context"), err)
	assert.Equal(t, CodePreconditionFailed, CodeOf(wrapped))
	assert.Equal(t, ReasonOnCooldown, ReasonOf(wrapped))
	assert.Equal(t, "precondition_failed: on_cooldown: instance abc", err.Error())
	assert.Equal(t, Code(""), CodeOf(errors.New("plain")))
}

func TestLookupMask(t *testing.T) {
	m, ok := LookupMask("shadow")
	require.True(t, ok)
	assert.NotZero(t, m.Invisibility)

	_, ok = LookupMask("clown")
	assert.False(t, ok)

	_, ok = LookupMask(DefaultMask)
	assert.True(t, ok)
}
