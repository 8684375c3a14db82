package hub

import (
	"context"
	"errors"
	"sort"

	"go.uber.org/zap"

	"github.com/ErenAtasun/MaskHeist/internal/session"
)

var (
	ErrCodeTaken = errors.New("session code already in use")
	ErrClosed    = errors.New("hub closed")
)

// Factory builds the session for code. The session must stop when ctx is
// cancelled.
type Factory func(ctx context.Context, code string) (*session.Session, error)

type HubMsg interface{ isHubMsg() }

type Result struct {
	Session *session.Session
	Created bool
	Err     error
}

type CreateSession struct {
	Code  string
	Reply chan Result
}

type GetSession struct {
	Code  string
	Reply chan *session.Session
}

type EnsureSession struct {
	Code  string
	Reply chan Result
}

type RemoveSession struct {
	Code string
	// Session, when set, only removes the entry if it still points at it.
	Session *session.Session
}

type ListSessions struct {
	Reply chan []string
}

type ShutdownHub struct{}

func (CreateSession) isHubMsg() {}
func (GetSession) isHubMsg()    {}
func (EnsureSession) isHubMsg() {}
func (RemoveSession) isHubMsg() {}
func (ListSessions) isHubMsg()  {}
func (ShutdownHub) isHubMsg()   {}

// Hub owns every live session by code.
type Hub struct {
	inbox    chan HubMsg
	sessions map[string]*session.Session
	factory  Factory
	log      *zap.Logger
	ctx      context.Context
	cancel   context.CancelFunc
	done     chan struct{}
}

func NewHub(parent context.Context, factory Factory, log *zap.Logger) *Hub {
	if log == nil {
		log = zap.NewNop()
	}
	ctx, cancel := context.WithCancel(parent)
	h := &Hub{
		inbox:    make(chan HubMsg, 64),
		sessions: make(map[string]*session.Session),
		factory:  factory,
		log:      log,
		ctx:      ctx,
		cancel:   cancel,
		done:     make(chan struct{}),
	}
	go h.loop()
	return h
}

func (h *Hub) Inbox() chan<- HubMsg { return h.inbox }

// Done is closed once the hub and all its sessions have stopped.
func (h *Hub) Done() <-chan struct{} { return h.done }

func (h *Hub) loop() {
	defer close(h.done)
	for {
		select {
		case <-h.ctx.Done():
			h.shutdown()
			return

		case m := <-h.inbox:
			switch msg := m.(type) {
			case CreateSession:
				if h.sessions[msg.Code] != nil {
					msg.Reply <- Result{Err: ErrCodeTaken}
					break
				}
				msg.Reply <- h.create(msg.Code)

			case GetSession:
				msg.Reply <- h.sessions[msg.Code] // may be nil

			case EnsureSession:
				if s := h.sessions[msg.Code]; s != nil {
					msg.Reply <- Result{Session: s}
					break
				}
				msg.Reply <- h.create(msg.Code)

			case RemoveSession:
				s := h.sessions[msg.Code]
				if s == nil || (msg.Session != nil && msg.Session != s) {
					break
				}
				delete(h.sessions, msg.Code)
				go stop(s)
				h.log.Info("session removed", zap.String("session", msg.Code))

			case ListSessions:
				codes := make([]string, 0, len(h.sessions))
				for code := range h.sessions {
					codes = append(codes, code)
				}
				sort.Strings(codes)
				msg.Reply <- codes

			case ShutdownHub:
				h.shutdown()
				return
			}
		}
	}
}

func (h *Hub) create(code string) Result {
	s, err := h.factory(h.ctx, code)
	if err != nil {
		h.log.Error("create session", zap.String("session", code), zap.Error(err))
		return Result{Err: err}
	}
	h.sessions[code] = s
	h.log.Info("session created", zap.String("session", code))
	go h.watch(code, s)
	return Result{Session: s, Created: true}
}

// watch drops a session from the registry once its loop exits.
func (h *Hub) watch(code string, s *session.Session) {
	select {
	case <-s.Done():
	case <-h.ctx.Done():
		return
	}
	select {
	case h.inbox <- RemoveSession{Code: code, Session: s}:
	case <-h.ctx.Done():
	}
}

func stop(s *session.Session) {
	select {
	case s.Inbox() <- session.Shutdown{}:
	case <-s.Done():
	}
}

func (h *Hub) shutdown() {
	for _, s := range h.sessions {
		stop(s)
	}
	for code, s := range h.sessions {
		<-s.Done()
		delete(h.sessions, code)
	}
	h.cancel()
	h.log.Info("hub stopped")
}

func (h *Hub) send(ctx context.Context, m HubMsg) error {
	select {
	case h.inbox <- m:
		return nil
	case <-h.done:
		return ErrClosed
	case <-ctx.Done():
		return ctx.Err()
	}
}

func recv[T any](ctx context.Context, h *Hub, reply chan T) (T, error) {
	var zero T
	select {
	case v := <-reply:
		return v, nil
	case <-h.done:
		return zero, ErrClosed
	case <-ctx.Done():
		return zero, ctx.Err()
	}
}

// Create starts a session under code, failing with ErrCodeTaken when the
// code is in use.
func (h *Hub) Create(ctx context.Context, code string) (*session.Session, error) {
	reply := make(chan Result, 1)
	if err := h.send(ctx, CreateSession{Code: code, Reply: reply}); err != nil {
		return nil, err
	}
	res, err := recv(ctx, h, reply)
	if err != nil {
		return nil, err
	}
	return res.Session, res.Err
}

// Ensure returns the session under code, starting it if needed.
func (h *Hub) Ensure(ctx context.Context, code string) (*session.Session, bool, error) {
	reply := make(chan Result, 1)
	if err := h.send(ctx, EnsureSession{Code: code, Reply: reply}); err != nil {
		return nil, false, err
	}
	res, err := recv(ctx, h, reply)
	if err != nil {
		return nil, false, err
	}
	return res.Session, res.Created, res.Err
}

// Get returns the session under code, or nil.
func (h *Hub) Get(ctx context.Context, code string) (*session.Session, error) {
	reply := make(chan *session.Session, 1)
	if err := h.send(ctx, GetSession{Code: code, Reply: reply}); err != nil {
		return nil, err
	}
	return recv(ctx, h, reply)
}

func (h *Hub) List(ctx context.Context) ([]string, error) {
	reply := make(chan []string, 1)
	if err := h.send(ctx, ListSessions{Reply: reply}); err != nil {
		return nil, err
	}
	return recv(ctx, h, reply)
}

// Remove stops the session under code and forgets it.
func (h *Hub) Remove(ctx context.Context, code string) error {
	return h.send(ctx, RemoveSession{Code: code})
}

// Shutdown stops every session and waits for the hub to exit.
func (h *Hub) Shutdown(ctx context.Context) error {
	if err := h.send(ctx, ShutdownHub{}); err != nil && !errors.Is(err, ErrClosed) {
		return err
	}
	select {
	case <-h.done:
		return nil
	case <-ctx.Done():
		return ctx.Err()
	}
}
