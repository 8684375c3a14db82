package replication

import (
	"sort"

	"go.uber.org/zap"
)

type Field string

const (
	FieldPhase     Field = "phase"
	FieldScore     Field = "score"
	FieldObjective Field = "objective"
	FieldOutcome   Field = "outcome"
	FieldShot      Field = "shot"
	FieldTrapFired Field = "trap.fired"

	// Targeted fields, sent to one participant only.
	FieldObjectivePosition Field = "objective.position"
	FieldResult            Field = "result"
	FieldScan              Field = "scan"
	FieldTrack             Field = "track"
	FieldAmmo              Field = "ammo"
	FieldSpawn             Field = "spawn"
)

func ParticipantField(id string) Field { return Field("participant/" + id) }
func CapabilityField(id string) Field  { return Field("capability/" + id) }
func TrapField(id string) Field        { return Field("trap/" + id) }
func RevealField(id string) Field      { return Field("reveal/" + id) }
func AmmoPickupField(id string) Field  { return Field("ammo_pickup/" + id) }

// Adapter is how session state reaches observers. A nil value removes the
// field.
type Adapter interface {
	Broadcast(field Field, value any)
	Send(participantID string, field Field, value any)
}

type Update struct {
	Seq      uint64
	Field    Field
	Value    any
	Targeted bool
}

func (u Update) Deleted() bool { return u.Value == nil }

type Snapshot struct {
	Seq    uint64
	Fields map[Field]any
}

// Message is one element of an observer outbox: exactly one of the two is
// set.
type Message struct {
	Snapshot *Snapshot
	Update   *Update
}

// Fanout is the in-process Adapter. It keeps the latest value of every
// broadcast field so late subscribers start from a snapshot, and it numbers
// every update. An observer sees increasing numbers after its snapshot, with
// gaps only where a targeted update went to someone else.
// Owned by a single session goroutine.
type Fanout struct {
	log       *zap.Logger
	seq       uint64
	board     map[Field]any
	observers map[string]chan<- Message
}

func NewFanout(log *zap.Logger) *Fanout {
	if log == nil {
		log = zap.NewNop()
	}
	return &Fanout{
		log:       log,
		board:     map[Field]any{},
		observers: map[string]chan<- Message{},
	}
}

// Subscribe registers out under id and delivers the current snapshot. An
// outbox with no room for the snapshot is closed and not registered.
func (f *Fanout) Subscribe(id string, out chan<- Message) bool {
	f.Unsubscribe(id)
	fields := make(map[Field]any, len(f.board))
	for k, v := range f.board {
		fields[k] = v
	}
	select {
	case out <- Message{Snapshot: &Snapshot{Seq: f.seq, Fields: fields}}:
	default:
		f.log.Warn("observer outbox full at subscribe", zap.String("observer", id))
		close(out)
		return false
	}
	f.observers[id] = out
	return true
}

// Unsubscribe closes the observer's outbox.
func (f *Fanout) Unsubscribe(id string) bool {
	out, ok := f.observers[id]
	if !ok {
		return false
	}
	delete(f.observers, id)
	close(out)
	return true
}

func (f *Fanout) Broadcast(field Field, value any) {
	f.seq++
	if value == nil {
		delete(f.board, field)
	} else {
		f.board[field] = value
	}
	u := &Update{Seq: f.seq, Field: field, Value: value}
	for _, id := range f.ids() {
		f.deliver(id, u)
	}
}

// Send delivers a targeted update. Targeted values are not kept for
// snapshots.
func (f *Fanout) Send(id string, field Field, value any) {
	if _, ok := f.observers[id]; !ok {
		return
	}
	f.seq++
	f.deliver(id, &Update{Seq: f.seq, Field: field, Value: value, Targeted: true})
}

func (f *Fanout) Seq() uint64    { return f.seq }
func (f *Fanout) Observers() int { return len(f.observers) }

func (f *Fanout) Close() {
	for _, id := range f.ids() {
		f.Unsubscribe(id)
	}
}

func (f *Fanout) deliver(id string, u *Update) {
	out := f.observers[id]
	select {
	case out <- Message{Update: u}:
	default:
		f.log.Warn("dropping slow observer", zap.String("observer", id), zap.Uint64("seq", u.Seq))
		f.Unsubscribe(id)
	}
}

func (f *Fanout) ids() []string {
	ids := make([]string, 0, len(f.observers))
	for id := range f.observers {
		ids = append(ids, id)
	}
	sort.Strings(ids)
	return ids
}
