package session

import (
	"context"
	"errors"
	"sync"
	"time"

	"github.com/google/uuid"
	"github.com/jonboulle/clockwork"
	"go.uber.org/zap"

	"github.com/ErenAtasun/MaskHeist/internal/config"
	"github.com/ErenAtasun/MaskHeist/internal/engine"
	"github.com/ErenAtasun/MaskHeist/internal/replication"
	"github.com/ErenAtasun/MaskHeist/internal/spawn"
	"github.com/ErenAtasun/MaskHeist/pkg/types"
)

var ErrClosed = errors.New("session closed")

type Msg interface{ isSessionMsg() }

type Join struct {
	Name      string
	Spectator bool
	Outbox    chan replication.Message // where this observer receives the snapshot and updates
	Reply     chan JoinResult
}

func (Join) isSessionMsg() {}

type JoinResult struct {
	ObserverID    string
	ParticipantID string // empty for spectators
	Err           error
}

type Leave struct{ ObserverID string }

func (Leave) isSessionMsg() {}

type FromClient struct {
	ParticipantID string
	Cmd           engine.Command
	Reply         chan error
}

func (FromClient) isSessionMsg() {}

type GetState struct {
	Reply chan types.SessionView
}

func (GetState) isSessionMsg() {}

type Shutdown struct{}

func (Shutdown) isSessionMsg() {}

// Recorder keeps finished rounds.
type Recorder interface {
	RecordRound(ctx context.Context, s engine.RoundSummary) error
}

type Options struct {
	Code     string
	Config   config.Game
	Clock    clockwork.Clock
	Log      *zap.Logger
	Spawns   spawn.Provider
	Roles    RoleAssigner
	Recorder Recorder
}

// Session runs one Machine on its own goroutine. Everything reaches it
// through the inbox; observers only ever read their outbox.
type Session struct {
	code     string
	inbox    chan Msg
	clock    clockwork.Clock
	timer    clockwork.Timer
	log      *zap.Logger
	recorder Recorder
	records  sync.WaitGroup
	fanout   *replication.Fanout
	machine  *Machine
	ctx      context.Context
	cancel   context.CancelFunc
	done     chan struct{}
}

func New(parent context.Context, opts Options) (*Session, error) {
	if opts.Clock == nil {
		opts.Clock = clockwork.NewRealClock()
	}
	if opts.Log == nil {
		opts.Log = zap.NewNop()
	}
	log := opts.Log.With(zap.String("session", opts.Code))
	fanout := replication.NewFanout(log)

	s := &Session{
		code:     opts.Code,
		inbox:    make(chan Msg, 64),
		clock:    opts.Clock,
		log:      log,
		recorder: opts.Recorder,
		fanout:   fanout,
		done:     make(chan struct{}),
	}
	m, err := NewMachine(Deps{
		Config:  opts.Config,
		Log:     log,
		Out:     fanout,
		Spawns:  opts.Spawns,
		Roles:   opts.Roles,
		OnRound: s.record,
	}, s.clock.Now())
	if err != nil {
		return nil, err
	}
	s.machine = m
	s.ctx, s.cancel = context.WithCancel(parent)
	s.timer = s.clock.NewTimer(time.Hour)
	s.timer.Stop()

	go s.loop()
	return s, nil
}

func (s *Session) loop() {
	defer close(s.done)
	s.rearm()
	for {
		select {
		case <-s.ctx.Done():
			s.shutdown()
			return

		case <-s.timer.Chan():
			s.machine.Advance(s.clock.Now())

		case m := <-s.inbox:
			now := s.clock.Now()
			switch msg := m.(type) {
			case Join:
				res := s.join(now, msg)
				if msg.Reply != nil {
					msg.Reply <- res
				}

			case Leave:
				s.fanout.Unsubscribe(msg.ObserverID)
				s.machine.Leave(now, msg.ObserverID)

			case FromClient:
				err := s.machine.Handle(now, msg.ParticipantID, msg.Cmd)
				if msg.Reply != nil {
					msg.Reply <- err
				}

			case GetState:
				s.machine.Advance(now)
				msg.Reply <- s.view()

			case Shutdown:
				s.shutdown()
				return
			}
		}
		s.rearm()
	}
}

func (s *Session) join(now time.Time, msg Join) JoinResult {
	id := uuid.NewString()
	if !s.fanout.Subscribe(id, msg.Outbox) {
		return JoinResult{Err: engine.Invalid(engine.ReasonMalformed, "outbox has no room for the snapshot")}
	}
	if msg.Spectator {
		s.log.Info("spectator joined", zap.String("observer", id))
		return JoinResult{ObserverID: id}
	}
	if _, err := s.machine.Join(now, id, msg.Name); err != nil {
		s.fanout.Unsubscribe(id)
		return JoinResult{Err: err}
	}
	return JoinResult{ObserverID: id, ParticipantID: id}
}

// rearm points the single timer at the machine's next deadline. A stale
// fire left in the channel only causes an Advance with nothing due.
func (s *Session) rearm() {
	s.timer.Stop()
	at, ok := s.machine.NextDeadline()
	if !ok {
		return
	}
	s.timer.Reset(max(at.Sub(s.clock.Now()), 0))
}

func (s *Session) record(sum engine.RoundSummary) {
	if s.recorder == nil {
		return
	}
	sum.SessionCode = s.code
	s.records.Add(1)
	go func() {
		defer s.records.Done()
		ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
		defer cancel()
		if err := s.recorder.RecordRound(ctx, sum); err != nil {
			s.log.Warn("record round", zap.Int("round", sum.Round), zap.Error(err))
		}
	}()
}

func (s *Session) view() types.SessionView {
	v := s.machine.View()
	out := types.SessionView{
		Code: s.code,
		Phase: types.PhaseView{
			Phase:    string(v.Phase),
			Deadline: v.Deadline,
			Round:    v.Round,
		},
		Score:        scoreView(v.Score),
		Participants: []types.ParticipantView{},
		Observers:    s.fanout.Observers(),
		Seq:          s.fanout.Seq(),
	}
	for i := range v.Participants {
		out.Participants = append(out.Participants, participantView(&v.Participants[i]))
	}
	return out
}

// shutdown returns once rounds still being recorded are written, so Done
// also means the recorder is no longer in use.
func (s *Session) shutdown() {
	s.timer.Stop()
	s.fanout.Close() // tell observers nothing more is coming
	s.records.Wait()
	s.cancel()
}

func (s *Session) Code() string { return s.code }

// Inbox exposes the inbox so the transport layer can send messages.
func (s *Session) Inbox() chan<- Msg { return s.inbox }

// Done is closed once the loop has exited.
func (s *Session) Done() <-chan struct{} { return s.done }

func (s *Session) send(ctx context.Context, m Msg) error {
	select {
	case s.inbox <- m:
		return nil
	case <-s.done:
		return ErrClosed
	case <-ctx.Done():
		return ctx.Err()
	}
}

// JoinObserver registers outbox and, unless spectator is set, a participant.
func (s *Session) JoinObserver(ctx context.Context, name string, spectator bool, outbox chan replication.Message) (JoinResult, error) {
	reply := make(chan JoinResult, 1)
	if err := s.send(ctx, Join{Name: name, Spectator: spectator, Outbox: outbox, Reply: reply}); err != nil {
		return JoinResult{}, err
	}
	select {
	case res := <-reply:
		return res, res.Err
	case <-s.done:
		return JoinResult{}, ErrClosed
	case <-ctx.Done():
		return JoinResult{}, ctx.Err()
	}
}

func (s *Session) LeaveObserver(ctx context.Context, observerID string) error {
	return s.send(ctx, Leave{ObserverID: observerID})
}

// ReceiveCommand hands cmd to the session and waits for the verdict: nil
// when it was applied, a coded engine.Error when it was rejected.
func (s *Session) ReceiveCommand(ctx context.Context, participantID string, cmd engine.Command) error {
	reply := make(chan error, 1)
	if err := s.send(ctx, FromClient{ParticipantID: participantID, Cmd: cmd, Reply: reply}); err != nil {
		return err
	}
	select {
	case err := <-reply:
		return err
	case <-s.done:
		return ErrClosed
	case <-ctx.Done():
		return ctx.Err()
	}
}

func (s *Session) State(ctx context.Context) (types.SessionView, error) {
	reply := make(chan types.SessionView, 1)
	if err := s.send(ctx, GetState{Reply: reply}); err != nil {
		return types.SessionView{}, err
	}
	select {
	case v := <-reply:
		return v, nil
	case <-s.done:
		return types.SessionView{}, ErrClosed
	case <-ctx.Done():
		return types.SessionView{}, ctx.Err()
	}
}
