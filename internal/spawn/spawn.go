package spawn

import (
	"math/rand"

	"github.com/ErenAtasun/MaskHeist/internal/engine"
)

type Mode string

const (
	ModeRoundRobin Mode = "round_robin"
	ModeRandom     Mode = "random"
)

// Provider hands out spawn poses per role. When it has nothing for a role it
// returns its fallback pose and false.
type Provider interface {
	GetSpawnPose(role engine.Role) (engine.Pose, bool)
}

var DefaultFallback = engine.Pose{Position: engine.Vec3{Y: 1}}

type Points struct {
	mode     Mode
	rng      *rand.Rand
	fallback engine.Pose
	byRole   map[engine.Role][]engine.Pose
	next     map[engine.Role]int
}

// New builds an empty set. rng is only consulted in ModeRandom.
func New(mode Mode, fallback engine.Pose, rng *rand.Rand) *Points {
	if mode == ModeRandom && rng == nil {
		mode = ModeRoundRobin
	}
	return &Points{
		mode:     mode,
		rng:      rng,
		fallback: fallback,
		byRole:   map[engine.Role][]engine.Pose{},
		next:     map[engine.Role]int{},
	}
}

func (p *Points) Register(role engine.Role, pose engine.Pose) {
	p.byRole[role] = append(p.byRole[role], pose)
}

func (p *Points) GetSpawnPose(role engine.Role) (engine.Pose, bool) {
	poses := p.byRole[role]
	if len(poses) == 0 {
		return p.fallback, false
	}
	if p.mode == ModeRandom {
		return poses[p.rng.Intn(len(poses))], true
	}
	i := p.next[role] % len(poses)
	p.next[role] = i + 1
	return poses[i], true
}
