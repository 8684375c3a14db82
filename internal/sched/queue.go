package sched

import (
	"container/heap"
	"time"
)

// Token identifies a scheduled entry. The zero token is never issued, so
// callers can keep a zero value to mean "nothing scheduled".
type Token uint64

type entry struct {
	at    time.Time
	seq   uint64
	token Token
	fn    func(at time.Time)
	index int
}

// Queue runs callbacks at or after their due time, in (time, insertion)
// order. It is not safe for concurrent use; its owner drives it from one
// goroutine through RunDue.
type Queue struct {
	items   entries
	byToken map[Token]*entry
	seq     uint64
}

func New() *Queue {
	return &Queue{byToken: map[Token]*entry{}}
}

// Schedule registers fn to run at at. fn receives the scheduled time, not the
// time the queue was drained.
func (q *Queue) Schedule(at time.Time, fn func(at time.Time)) Token {
	q.seq++
	e := &entry{at: at, seq: q.seq, token: Token(q.seq), fn: fn}
	heap.Push(&q.items, e)
	q.byToken[e.token] = e
	return e.token
}

// Cancel drops a pending entry. It reports false when the entry already ran
// or was cancelled.
func (q *Queue) Cancel(t Token) bool {
	e, ok := q.byToken[t]
	if !ok {
		return false
	}
	heap.Remove(&q.items, e.index)
	delete(q.byToken, t)
	return true
}

// Next returns the earliest due time.
func (q *Queue) Next() (time.Time, bool) {
	if len(q.items) == 0 {
		return time.Time{}, false
	}
	return q.items[0].at, true
}

func (q *Queue) Len() int { return len(q.items) }

// RunDue runs every entry due at or before now, including entries scheduled
// by the callbacks themselves, and returns how many ran.
func (q *Queue) RunDue(now time.Time) int {
	n := 0
	for len(q.items) > 0 && !q.items[0].at.After(now) {
		e := heap.Pop(&q.items).(*entry)
		delete(q.byToken, e.token)
		e.fn(e.at)
		n++
	}
	return n
}

type entries []*entry

func (h entries) Len() int { return len(h) }

func (h entries) Less(i, j int) bool {
	if h[i].at.Equal(h[j].at) {
		return h[i].seq < h[j].seq
	}
	return h[i].at.Before(h[j].at)
}

func (h entries) Swap(i, j int) {
	h[i], h[j] = h[j], h[i]
	h[i].index = i
	h[j].index = j
}

func (h *entries) Push(x any) {
	e := x.(*entry)
	e.index = len(*h)
	*h = append(*h, e)
}

func (h *entries) Pop() any {
	old := *h
	n := len(old)
	e := old[n-1]
	old[n-1] = nil
	e.index = -1
	*h = old[:n-1]
	return e
}
