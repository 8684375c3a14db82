package ws

import (
	"context"
	"errors"
	"net/http"
	"strconv"
	"time"

	"github.com/coder/websocket"
	"go.uber.org/zap"

	"github.com/ErenAtasun/MaskHeist/internal/engine"
	"github.com/ErenAtasun/MaskHeist/internal/hub"
	"github.com/ErenAtasun/MaskHeist/internal/replication"
	"github.com/ErenAtasun/MaskHeist/internal/session"
	"github.com/ErenAtasun/MaskHeist/pkg/types"
)

type Options struct {
	OutboxSize   int
	WriteTimeout time.Duration
	Log          *zap.Logger
	// OriginPatterns loosens the same-origin check, e.g. "localhost:*" in dev.
	OriginPatterns []string
	// AutoCreate starts a session for an unknown code instead of answering
	// 404. Codes must still be 4 to 16 upper-case letters or digits.
	AutoCreate bool
}

func validCode(code string) bool {
	if len(code) < 4 || len(code) > 16 {
		return false
	}
	for _, c := range code {
		if (c < 'A' || c > 'Z') && (c < '0' || c > '9') {
			return false
		}
	}
	return true
}

// Handler upgrades /ws?code=&name=&spectate= to an observer connection on
// the session with that code.
func Handler(h *hub.Hub, opts Options) http.HandlerFunc {
	if opts.OutboxSize <= 0 {
		opts.OutboxSize = 64
	}
	if opts.WriteTimeout <= 0 {
		opts.WriteTimeout = 3 * time.Second
	}
	if opts.Log == nil {
		opts.Log = zap.NewNop()
	}
	return func(w http.ResponseWriter, r *http.Request) {
		code := r.URL.Query().Get("code")
		if code == "" {
			http.Error(w, "missing code", http.StatusBadRequest)
			return
		}
		spectate, _ := strconv.ParseBool(r.URL.Query().Get("spectate"))

		var (
			s   *session.Session
			err error
		)
		if opts.AutoCreate && validCode(code) {
			var created bool
			s, created, err = h.Ensure(r.Context(), code)
			if created {
				opts.Log.Info("session created on connect", zap.String("session", code))
			}
		} else {
			s, err = h.Get(r.Context(), code)
		}
		if errors.Is(err, hub.ErrClosed) {
			http.Error(w, "server shutting down", http.StatusServiceUnavailable)
			return
		}
		if err != nil {
			opts.Log.Warn("session lookup failed", zap.String("session", code), zap.Error(err))
			http.Error(w, "session unavailable", http.StatusInternalServerError)
			return
		}
		if s == nil {
			http.Error(w, "session not found", http.StatusNotFound)
			return
		}

		conn, err := websocket.Accept(w, r, &websocket.AcceptOptions{
			Subprotocols:   types.Subprotocols,
			OriginPatterns: opts.OriginPatterns,
		})
		if err != nil {
			return
		}
		defer conn.Close(websocket.StatusNormalClosure, "bye")

		c := &client{
			conn:    conn,
			codec:   types.CodecFor(conn.Subprotocol()),
			timeout: opts.WriteTimeout,
		}
		log := opts.Log.With(zap.String("session", code), zap.String("codec", c.codec.Name()))

		out := make(chan replication.Message, opts.OutboxSize)
		res, err := s.JoinObserver(r.Context(), r.URL.Query().Get("name"), spectate, out)
		if err != nil {
			log.Info("join rejected", zap.Error(err))
			conn.Close(websocket.StatusPolicyViolation, truncate(err.Error()))
			return
		}
		log = log.With(zap.String("observer", res.ObserverID))
		log.Info("observer connected", zap.Bool("spectator", spectate))
		defer func() {
			ctx, cancel := context.WithTimeout(context.Background(), time.Second)
			defer cancel()
			_ = s.LeaveObserver(ctx, res.ObserverID)
			log.Info("observer disconnected")
		}()

		ctx, cancel := context.WithCancel(r.Context())
		defer cancel()

		// Writer goroutine: welcome first, then the snapshot and updates in
		// order. A closed outbox means the session dropped us.
		go func() {
			if err := c.write(ctx, types.ServerMessage{
				Type:          types.MsgWelcome,
				ParticipantID: res.ParticipantID,
				ObserverID:    res.ObserverID,
			}); err != nil {
				cancel()
				return
			}
			for msg := range out {
				if err := c.write(ctx, encodeMessage(msg)); err != nil {
					log.Debug("write failed", zap.Error(err))
					cancel()
					return
				}
			}
			conn.Close(websocket.StatusGoingAway, "stream ended")
		}()

		// Reader loop
		for {
			_, data, err := conn.Read(ctx)
			if err != nil {
				switch websocket.CloseStatus(err) {
				case websocket.StatusNormalClosure, websocket.StatusGoingAway:
				default:
					log.Debug("read failed", zap.Error(err))
				}
				return
			}

			var cm types.ClientMessage
			if err := c.codec.Unmarshal(data, &cm); err != nil {
				_ = c.write(ctx, reject(0, engine.Invalid(engine.ReasonMalformed, "undecodable message")))
				continue
			}
			if res.ParticipantID == "" {
				_ = c.write(ctx, reject(cm.Ref, engine.Invalid(engine.ReasonSpectator, "spectators cannot send commands")))
				continue
			}
			cmd, err := ToEngineCommand(cm)
			if err == nil {
				err = s.ReceiveCommand(ctx, res.ParticipantID, cmd)
			}
			if err != nil && engine.CodeOf(err) == "" {
				// session gone or connection closing
				log.Debug("command not delivered", zap.Error(err))
				return
			}
			reply := types.ServerMessage{Type: types.MsgAck, Ref: cm.Ref}
			if err != nil {
				reply = reject(cm.Ref, err)
			}
			_ = c.write(ctx, reply)
		}
	}
}

type client struct {
	conn    *websocket.Conn
	codec   types.Codec
	timeout time.Duration
}

// write is safe to call from the reader and the writer goroutine.
func (c *client) write(ctx context.Context, msg types.ServerMessage) error {
	payload, err := c.codec.Marshal(msg)
	if err != nil {
		return err
	}
	typ := websocket.MessageText
	if c.codec.Binary() {
		typ = websocket.MessageBinary
	}
	ctx, cancel := context.WithTimeout(ctx, c.timeout)
	defer cancel()
	return c.conn.Write(ctx, typ, payload)
}

func encodeMessage(m replication.Message) types.ServerMessage {
	if m.Snapshot != nil {
		fields := make(map[string]any, len(m.Snapshot.Fields))
		for k, v := range m.Snapshot.Fields {
			fields[string(k)] = v
		}
		return types.ServerMessage{Type: types.MsgSnapshot, Seq: m.Snapshot.Seq, Fields: fields}
	}
	u := m.Update
	return types.ServerMessage{
		Type:    types.MsgUpdate,
		Seq:     u.Seq,
		Field:   string(u.Field),
		Value:   u.Value,
		Deleted: u.Deleted(),
	}
}

func reject(ref uint64, err error) types.ServerMessage {
	body := &types.ErrorBody{Code: "internal", Message: err.Error()}
	var e *engine.Error
	if errors.As(err, &e) {
		body = &types.ErrorBody{Code: string(e.Code), Reason: e.Reason, Message: e.Message}
	}
	return types.ServerMessage{Type: types.MsgReject, Ref: ref, Error: body}
}

// close reasons are limited to 123 bytes
func truncate(s string) string {
	if len(s) > 120 {
		return s[:120]
	}
	return s
}
