package roles

import (
	crand "crypto/rand"
	"encoding/binary"
	"errors"
	"fmt"
	"math/rand"

	"github.com/ErenAtasun/MaskHeist/internal/engine"
)

var ErrNoParticipants = errors.New("roles: no participants to assign")

type Assignment struct {
	Hider   string
	Seekers []string
}

func (a Assignment) RoleOf(id string) engine.Role {
	if id == a.Hider {
		return engine.RoleHider
	}
	for _, s := range a.Seekers {
		if s == id {
			return engine.RoleSeeker
		}
	}
	return engine.RoleNone
}

// Assigner picks the Hider uniformly at random. It is owned by one session
// goroutine.
type Assigner struct {
	rng *rand.Rand
}

func NewAssigner(rng *rand.Rand) *Assigner {
	return &Assigner{rng: rng}
}

// NewRandomAssigner seeds an Assigner from crypto/rand.
func NewRandomAssigner() (*Assigner, error) {
	seed, err := NewSeed()
	if err != nil {
		return nil, err
	}
	return NewAssigner(rand.New(rand.NewSource(seed))), nil
}

// Assign shuffles a copy of ids and makes the first one the Hider. ids is not
// modified.
func (a *Assigner) Assign(ids []string) (Assignment, error) {
	if len(ids) == 0 {
		return Assignment{}, ErrNoParticipants
	}
	order := append([]string(nil), ids...)
	for i := len(order) - 1; i > 0; i-- {
		j := a.rng.Intn(i + 1)
		order[i], order[j] = order[j], order[i]
	}
	return Assignment{Hider: order[0], Seekers: order[1:]}, nil
}

func NewSeed() (int64, error) {
	var b [8]byte
	if _, err := crand.Read(b[:]); err != nil {
		return 0, fmt.Errorf("read random seed: %w", err)
	}
	return int64(binary.LittleEndian.Uint64(b[:])), nil
}
