package sched

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

var t0 = time.Date(2026, 1, 1, 12, 0, 0, 0, time.UTC)

func TestRunDueOrdersByTimeThenInsertion(t *testing.T) {
	q := New()
	var got []string
	rec := func(name string) func(time.Time) {
		return func(time.Time) { got = append(got, name) }
	}

	q.Schedule(t0.Add(2*time.Second), rec("c"))
	q.Schedule(t0.Add(time.Second), rec("a"))
	q.Schedule(t0.Add(time.Second), rec("b"))
	q.Schedule(t0.Add(5*time.Second), rec("late"))

	n := q.RunDue(t0.Add(2 * time.Second))
	assert.Equal(t, 3, n)
	assert.Equal(t, []string{"a", "b", "c"}, got)
	assert.Equal(t, 1, q.Len())

	next, ok := q.Next()
	require.True(t, ok)
	assert.True(t, next.Equal(t0.Add(5*time.Second)))
}

func TestCallbackReceivesScheduledTime(t *testing.T) {
	q := New()
	var at time.Time
	q.Schedule(t0.Add(time.Second), func(t time.Time) { at = t })

	q.RunDue(t0.Add(10 * time.Second))
	assert.True(t, at.Equal(t0.Add(time.Second)))
}

func TestCancel(t *testing.T) {
	q := New()
	ran := false
	tok := q.Schedule(t0, func(time.Time) { ran = true })

	assert.True(t, q.Cancel(tok))
	assert.False(t, q.Cancel(tok), "second cancel is a no-op")
	assert.False(t, q.Cancel(0))

	q.RunDue(t0.Add(time.Hour))
	assert.False(t, ran)
	_, ok := q.Next()
	assert.False(t, ok)
}

func TestCancelAfterRunIsNoop(t *testing.T) {
	q := New()
	tok := q.Schedule(t0, func(time.Time) {})
	q.RunDue(t0)
	assert.False(t, q.Cancel(tok))
}

func TestEntriesScheduledDuringRunAreDrained(t *testing.T) {
	q := New()
	var got []time.Time
	var tick func(at time.Time)
	tick = func(at time.Time) {
		got = append(got, at)
		if len(got) < 3 {
			q.Schedule(at.Add(time.Second), tick)
		}
	}
	q.Schedule(t0.Add(time.Second), tick)

	q.RunDue(t0.Add(10 * time.Second))
	require.Len(t, got, 3)
	assert.True(t, got[2].Equal(t0.Add(3*time.Second)))
}

func TestCancelFromCallback(t *testing.T) {
	q := New()
	ran := false
	var victim Token
	q.Schedule(t0, func(time.Time) { q.Cancel(victim) })
	victim = q.Schedule(t0, func(time.Time) { ran = true })

	q.RunDue(t0)
	assert.False(t, ran)
}
