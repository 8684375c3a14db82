package spawn

import (
	"math/rand"
	"testing"

	"github.com/stretchr/testify/assert"

	"github.com/ErenAtasun/MaskHeist/internal/engine"
)

func pose(x float64) engine.Pose {
	return engine.Pose{Position: engine.Vec3{X: x}}
}

func TestRoundRobinCycles(t *testing.T) {
	p := New(ModeRoundRobin, DefaultFallback, nil)
	p.Register(engine.RoleSeeker, pose(1))
	p.Register(engine.RoleSeeker, pose(2))

	var got []float64
	for i := 0; i < 5; i++ {
		ps, ok := p.GetSpawnPose(engine.RoleSeeker)
		assert.True(t, ok)
		got = append(got, ps.Position.X)
	}
	assert.Equal(t, []float64{1, 2, 1, 2, 1}, got)
}

func TestFallbackWhenRoleHasNoPoints(t *testing.T) {
	p := New(ModeRoundRobin, DefaultFallback, nil)
	p.Register(engine.RoleSeeker, pose(1))

	ps, ok := p.GetSpawnPose(engine.RoleHider)
	assert.False(t, ok)
	assert.Equal(t, DefaultFallback, ps)
}

func TestRandomStaysWithinRegistered(t *testing.T) {
	p := New(ModeRandom, DefaultFallback, rand.New(rand.NewSource(9)))
	for i := 1; i <= 3; i++ {
		p.Register(engine.RoleHider, pose(float64(i)))
	}
	seen := map[float64]bool{}
	for i := 0; i < 100; i++ {
		ps, ok := p.GetSpawnPose(engine.RoleHider)
		assert.True(t, ok)
		seen[ps.Position.X] = true
	}
	assert.Len(t, seen, 3)
}

func TestRandomWithoutRngFallsBackToRoundRobin(t *testing.T) {
	p := New(ModeRandom, DefaultFallback, nil)
	p.Register(engine.RoleHider, pose(1))
	p.Register(engine.RoleHider, pose(2))

	a, _ := p.GetSpawnPose(engine.RoleHider)
	b, _ := p.GetSpawnPose(engine.RoleHider)
	assert.NotEqual(t, a, b)
}
