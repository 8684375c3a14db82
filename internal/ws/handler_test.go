package ws

import (
	"context"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/coder/websocket"
	"github.com/jonboulle/clockwork"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"

	"github.com/ErenAtasun/MaskHeist/internal/config"
	"github.com/ErenAtasun/MaskHeist/internal/engine"
	"github.com/ErenAtasun/MaskHeist/internal/hub"
	"github.com/ErenAtasun/MaskHeist/internal/replication"
	"github.com/ErenAtasun/MaskHeist/internal/session"
	"github.com/ErenAtasun/MaskHeist/pkg/types"
)

// Handlers outlive the test once the client hangs up, so nothing here logs
// through t.
func newServer(t *testing.T) *httptest.Server {
	t.Helper()
	srv, _ := newServerWith(t, Options{Log: zap.NewNop()})
	return srv
}

func newServerWith(t *testing.T, opts Options) (*httptest.Server, *hub.Hub) {
	t.Helper()
	factory := func(ctx context.Context, code string) (*session.Session, error) {
		return session.New(ctx, session.Options{
			Code:   code,
			Config: config.Default().Game,
			Clock:  clockwork.NewFakeClock(),
			Log:    zap.NewNop(),
		})
	}
	h := hub.NewHub(context.Background(), factory, zap.NewNop())
	_, err := h.Create(context.Background(), "ROOM")
	require.NoError(t, err)

	srv := httptest.NewServer(Handler(h, opts))
	t.Cleanup(func() {
		srv.Close()
		ctx, cancel := context.WithTimeout(context.Background(), time.Second)
		defer cancel()
		_ = h.Shutdown(ctx)
	})
	return srv, h
}

func dial(t *testing.T, srv *httptest.Server, query string, subprotocol string) (*websocket.Conn, types.Codec) {
	t.Helper()
	ctx, cancel := context.WithTimeout(context.Background(), 2*time.Second)
	defer cancel()
	url := "ws" + strings.TrimPrefix(srv.URL, "http") + "/?" + query
	var opts websocket.DialOptions
	if subprotocol != "" {
		opts.Subprotocols = []string{subprotocol}
	}
	conn, _, err := websocket.Dial(ctx, url, &opts)
	require.NoError(t, err)
	t.Cleanup(func() { conn.Close(websocket.StatusNormalClosure, "") })
	return conn, types.CodecFor(conn.Subprotocol())
}

func read(t *testing.T, conn *websocket.Conn, codec types.Codec) types.ServerMessage {
	t.Helper()
	ctx, cancel := context.WithTimeout(context.Background(), 2*time.Second)
	defer cancel()
	_, data, err := conn.Read(ctx)
	require.NoError(t, err)
	var msg types.ServerMessage
	require.NoError(t, codec.Unmarshal(data, &msg))
	return msg
}

// readUntil skips replicated updates until a message of type typ arrives.
func readUntil(t *testing.T, conn *websocket.Conn, codec types.Codec, typ string) types.ServerMessage {
	t.Helper()
	for {
		if msg := read(t, conn, codec); msg.Type == typ {
			return msg
		}
	}
}

func send(t *testing.T, conn *websocket.Conn, codec types.Codec, msg types.ClientMessage) {
	t.Helper()
	payload, err := codec.Marshal(msg)
	require.NoError(t, err)
	typ := websocket.MessageText
	if codec.Binary() {
		typ = websocket.MessageBinary
	}
	ctx, cancel := context.WithTimeout(context.Background(), time.Second)
	defer cancel()
	require.NoError(t, conn.Write(ctx, typ, payload))
}

func TestHandler_RejectsMissingOrUnknownCode(t *testing.T) {
	srv := newServer(t)

	resp, err := http.Get(srv.URL + "/")
	require.NoError(t, err)
	resp.Body.Close()
	assert.Equal(t, http.StatusBadRequest, resp.StatusCode)

	resp, err = http.Get(srv.URL + "/?code=NOPE")
	require.NoError(t, err)
	resp.Body.Close()
	assert.Equal(t, http.StatusNotFound, resp.StatusCode)
}

func TestHandler_AutoCreate(t *testing.T) {
	srv, h := newServerWith(t, Options{Log: zap.NewNop(), AutoCreate: true})

	conn, codec := dial(t, srv, "code=NEW1&name=ana", "")
	assert.Equal(t, types.MsgWelcome, read(t, conn, codec).Type)

	ctx, cancel := context.WithTimeout(context.Background(), time.Second)
	defer cancel()
	codes, err := h.List(ctx)
	require.NoError(t, err)
	assert.Equal(t, []string{"NEW1", "ROOM"}, codes)

	resp, err := http.Get(srv.URL + "/?code=bad-code")
	require.NoError(t, err)
	resp.Body.Close()
	assert.Equal(t, http.StatusNotFound, resp.StatusCode, "malformed codes are never created")
}

func TestHandler_WelcomeSnapshotAndCommands(t *testing.T) {
	srv := newServer(t)
	conn, codec := dial(t, srv, "code=ROOM&name=ana", "json")
	assert.Equal(t, "json", codec.Name())

	welcome := read(t, conn, codec)
	assert.Equal(t, types.MsgWelcome, welcome.Type)
	assert.NotEmpty(t, welcome.ParticipantID)

	snap := read(t, conn, codec)
	assert.Equal(t, types.MsgSnapshot, snap.Type)
	assert.Contains(t, snap.Fields, string(replication.FieldPhase))

	send(t, conn, codec, types.ClientMessage{Type: types.MsgSelectMask, Ref: 7, Mask: "tracker"})
	ack := readUntil(t, conn, codec, types.MsgAck)
	assert.Equal(t, uint64(7), ack.Ref)

	send(t, conn, codec, types.ClientMessage{Type: types.MsgSelectMask, Ref: 8, Mask: "clown"})
	rej := readUntil(t, conn, codec, types.MsgReject)
	assert.Equal(t, uint64(8), rej.Ref)
	require.NotNil(t, rej.Error)
	assert.Equal(t, string(engine.CodeInvalidCommand), rej.Error.Code)
	assert.Equal(t, engine.ReasonUnknownMask, rej.Error.Reason)

	send(t, conn, codec, types.ClientMessage{Type: types.MsgMove, Ref: 9})
	rej = readUntil(t, conn, codec, types.MsgReject)
	assert.Equal(t, engine.ReasonMalformed, rej.Error.Reason)
}

func TestHandler_SpectatorCannotCommand(t *testing.T) {
	srv := newServer(t)
	conn, codec := dial(t, srv, "code=ROOM&spectate=true", "")
	assert.Equal(t, "json", codec.Name(), "json when nothing is negotiated")

	welcome := read(t, conn, codec)
	assert.Empty(t, welcome.ParticipantID)
	assert.NotEmpty(t, welcome.ObserverID)

	send(t, conn, codec, types.ClientMessage{Type: types.MsgSelectMask, Ref: 1, Mask: "shadow"})
	rej := readUntil(t, conn, codec, types.MsgReject)
	assert.Equal(t, engine.ReasonSpectator, rej.Error.Reason)
}

func TestHandler_MsgPackSubprotocol(t *testing.T) {
	srv := newServer(t)
	conn, codec := dial(t, srv, "code=ROOM&name=ben", "msgpack")
	require.Equal(t, "msgpack", codec.Name())

	welcome := read(t, conn, codec)
	assert.Equal(t, types.MsgWelcome, welcome.Type)

	send(t, conn, codec, types.ClientMessage{Type: types.MsgSelectMask, Ref: 3, Mask: "scanner"})
	ack := readUntil(t, conn, codec, types.MsgAck)
	assert.Equal(t, uint64(3), ack.Ref)
}

func TestToEngineCommand(t *testing.T) {
	pose := &types.Pose{Position: types.Vec3{X: 1, Z: 2}, Yaw: 0.5}
	tests := []struct {
		name    string
		in      types.ClientMessage
		want    engine.Command
		wantErr bool
	}{
		{"mask", types.ClientMessage{Type: "select_mask", Mask: "shadow"}, engine.Command{Kind: engine.CmdSelectMask, Mask: "shadow"}, false},
		{"move", types.ClientMessage{Type: "move", Pose: pose}, engine.Command{Kind: engine.CmdMove, Pose: engine.Pose{Position: engine.Vec3{X: 1, Z: 2}, Yaw: 0.5}}, false},
		{"trap", types.ClientMessage{Type: "place_trap", TrapKind: "laser", Pose: pose}, engine.Command{Kind: engine.CmdPlaceTrap, Trap: engine.TrapLaser, Pose: engine.Pose{Position: engine.Vec3{X: 1, Z: 2}, Yaw: 0.5}}, false},
		{"fire", types.ClientMessage{Type: "fire_weapon", Aim: &types.Ray{Dir: types.Vec3{Z: 1}}}, engine.Command{Kind: engine.CmdFireWeapon, Aim: engine.Ray{Dir: engine.Vec3{Z: 1}}}, false},
		{"ammo", types.ClientMessage{Type: "pickup_ammo", ObjectID: "box"}, engine.Command{Kind: engine.CmdPickupAmmo, ObjectID: "box"}, false},
		{"unknown type", types.ClientMessage{Type: "dance"}, engine.Command{}, true},
		{"move without pose", types.ClientMessage{Type: "move"}, engine.Command{}, true},
		{"fire without aim", types.ClientMessage{Type: "fire_weapon"}, engine.Command{}, true},
		{"pickup without id", types.ClientMessage{Type: "pickup_objective"}, engine.Command{Kind: engine.CmdPickupObjective}, true},
	}
	for _, tc := range tests {
		t.Run(tc.name, func(t *testing.T) {
			got, err := ToEngineCommand(tc.in)
			if tc.wantErr {
				assert.ErrorIs(t, err, engine.ErrInvalidCommand)
				return
			}
			require.NoError(t, err)
			assert.Equal(t, tc.want, got)
		})
	}
}
