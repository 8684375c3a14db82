package roles

import (
	"math/rand"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/ErenAtasun/MaskHeist/internal/engine"
)

func TestAssignEmpty(t *testing.T) {
	a := NewAssigner(rand.New(rand.NewSource(1)))
	_, err := a.Assign(nil)
	assert.ErrorIs(t, err, ErrNoParticipants)
}

func TestAssignPartitionsEveryone(t *testing.T) {
	a := NewAssigner(rand.New(rand.NewSource(7)))
	ids := []string{"a", "b", "c", "d"}

	got, err := a.Assign(ids)
	require.NoError(t, err)
	require.Len(t, got.Seekers, 3)
	assert.ElementsMatch(t, ids, append([]string{got.Hider}, got.Seekers...))
	assert.Equal(t, []string{"a", "b", "c", "d"}, ids, "input is not reordered")

	assert.Equal(t, engine.RoleHider, got.RoleOf(got.Hider))
	assert.Equal(t, engine.RoleSeeker, got.RoleOf(got.Seekers[0]))
	assert.Equal(t, engine.RoleNone, got.RoleOf("z"))
}

func TestAssignSingleParticipantHides(t *testing.T) {
	a := NewAssigner(rand.New(rand.NewSource(3)))
	got, err := a.Assign([]string{"solo"})
	require.NoError(t, err)
	assert.Equal(t, "solo", got.Hider)
	assert.Empty(t, got.Seekers)
}

// Over many draws each of four participants should be the Hider about a
// quarter of the time. 16.27 is the chi-square critical value for 3 degrees
// of freedom at p = 0.001.
func TestAssignIsUniform(t *testing.T) {
	a := NewAssigner(rand.New(rand.NewSource(42)))
	ids := []string{"a", "b", "c", "d"}
	const draws = 20000

	counts := map[string]int{}
	for i := 0; i < draws; i++ {
		got, err := a.Assign(ids)
		require.NoError(t, err)
		counts[got.Hider]++
	}

	expected := float64(draws) / float64(len(ids))
	chi := 0.0
	for _, id := range ids {
		d := float64(counts[id]) - expected
		chi += d * d / expected
	}
	assert.Less(t, chi, 16.27, "counts %v", counts)
}

func TestNewRandomAssigner(t *testing.T) {
	a, err := NewRandomAssigner()
	require.NoError(t, err)
	_, err = a.Assign([]string{"x", "y"})
	assert.NoError(t, err)
}
