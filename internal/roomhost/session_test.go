package roomhost

import (
	"context"
	"encoding/binary"
	"io"
	"net"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap/zaptest"

	"github.com/DoyleJ11/duel-room-server/internal/hub"
	"github.com/DoyleJ11/duel-room-server/internal/room"
	"github.com/DoyleJ11/duel-room-server/internal/ygopro"
)

type fixture struct {
	t   *testing.T
	hub *hub.Hub
	srv *Server
	ctx context.Context
}

func newFixture(t *testing.T, maxConns int) *fixture {
	t.Helper()
	ctx, cancel := context.WithCancel(context.Background())
	t.Cleanup(cancel)
	log := zaptest.NewLogger(t)
	h := hub.NewHub(ctx, hub.Deps{Log: log, MaxConnectionsPerIP: maxConns})
	return &fixture{
		t:   t,
		hub: h,
		srv: NewServer(h, nil, Options{HandshakeTimeout: time.Second, WriteTimeout: time.Second}, log),
		ctx: ctx,
	}
}

// dial starts a session on one end of a pipe and returns the other.
func (f *fixture) dial() net.Conn {
	f.t.Helper()
	client, server := net.Pipe()
	go f.srv.Serve(f.ctx, NewTCPConn(server))
	f.t.Cleanup(func() { _ = client.Close() })
	return client
}

func send(t *testing.T, c net.Conn, typ ygopro.CTOSType, body []byte) {
	t.Helper()
	_ = c.SetWriteDeadline(time.Now().Add(time.Second))
	if _, err := c.Write(ygopro.EncodeCTOS(typ, body)); err != nil {
		t.Fatalf("write %#x: %v", typ, err)
	}
}

func recv(t *testing.T, c net.Conn) ygopro.STOCMsg {
	t.Helper()
	_ = c.SetReadDeadline(time.Now().Add(time.Second))
	var hdr [2]byte
	if _, err := io.ReadFull(c, hdr[:]); err != nil {
		t.Fatalf("read header: %v", err)
	}
	n := binary.LittleEndian.Uint16(hdr[:])
	body := make([]byte, n)
	if _, err := io.ReadFull(c, body); err != nil {
		t.Fatalf("read body: %v", err)
	}
	return ygopro.STOCMsg(append(hdr[:], body...))
}

// recvType reads frames until one of type typ arrives.
func recvType(t *testing.T, c net.Conn, typ ygopro.STOCType) ygopro.STOCMsg {
	t.Helper()
	for range 16 {
		if m := recv(t, c); m.Type() == typ {
			return m
		}
	}
	t.Fatalf("no %#x frame", typ)
	return nil
}

func playerInfo(name string) []byte {
	return ygopro.EncodeUTF16(name, 20)
}

func createBody(pass string) []byte {
	info := ygopro.HostInfo{T0Count: 1, T1Count: 1, BestOf: 1, ServerHandshake: ygopro.ServerHandshake}
	return ygopro.EncodeCreateGame(ygopro.CreateGameRequest{Info: info, Name: "room", Pass: pass})
}

func (f *fixture) host(pass string) (net.Conn, uint32) {
	f.t.Helper()
	c := f.dial()
	send(f.t, c, ygopro.CTOSPlayerInfo, playerInfo("host"))
	send(f.t, c, ygopro.CTOSCreateGame, createBody(pass))
	m := recvType(f.t, c, ygopro.STOCCreateGame)
	return c, binary.LittleEndian.Uint32(m.Body())
}

func joinError(t *testing.T, m ygopro.STOCMsg) (kind uint8, code uint32) {
	t.Helper()
	require.Equal(t, ygopro.STOCErrorMsg, m.Type())
	return m.Body()[0], binary.LittleEndian.Uint32(m.Body()[4:])
}

func TestServe_CreateThenJoin(t *testing.T) {
	f := newFixture(t, -1)
	hostConn, id := f.host("")
	recvType(t, hostConn, ygopro.STOCTypeChange)

	guest := f.dial()
	send(t, guest, ygopro.CTOSPlayerInfo, playerInfo("guest"))
	send(t, guest, ygopro.CTOSJoinGame, ygopro.EncodeJoinGame(ygopro.JoinGameRequest{Version: ygopro.ServerVersion, ID: id}))
	recvType(t, guest, ygopro.STOCJoinGame)

	enter := recvType(t, hostConn, ygopro.STOCPlayerEnter)
	assert.Equal(t, "guest", ygopro.DecodeUTF16(enter.Body()[:40]))

	ctx, cancel := context.WithTimeout(context.Background(), time.Second)
	defer cancel()
	in := f.hub.Get(ctx, id)
	require.NotNil(t, in)
	require.Eventually(t, func() bool {
		p, ok := in.Props(ctx)
		return ok && len(p.Duelists) == 2
	}, time.Second, 10*time.Millisecond)
}

func TestServe_JoinRefusals(t *testing.T) {
	f := newFixture(t, -1)
	_, id := f.host("secret")

	tests := []struct {
		name string
		req  ygopro.JoinGameRequest
		kind uint8
		code uint32
	}{
		{"wrong version", ygopro.JoinGameRequest{Version: 1, ID: id, Pass: "secret"}, ygopro.ErrorKindVersion, uint32(ygopro.ServerVersion)},
		{"no such room", ygopro.JoinGameRequest{Version: ygopro.ServerVersion, ID: id + 10}, ygopro.ErrorKindJoin, ygopro.JoinErrorNotFound},
		{"wrong password", ygopro.JoinGameRequest{Version: ygopro.ServerVersion, ID: id, Pass: "nope"}, ygopro.ErrorKindJoin, ygopro.JoinErrorWrongPass},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			c := f.dial()
			send(t, c, ygopro.CTOSPlayerInfo, playerInfo("guest"))
			send(t, c, ygopro.CTOSJoinGame, ygopro.EncodeJoinGame(tt.req))
			kind, code := joinError(t, recvType(t, c, ygopro.STOCErrorMsg))
			if kind != tt.kind || code != tt.code {
				t.Fatalf("got error %d/%d, want %d/%d", kind, code, tt.kind, tt.code)
			}
		})
	}
}

func TestServe_CreateHandshakeMismatch(t *testing.T) {
	f := newFixture(t, -1)
	c := f.dial()
	send(t, c, ygopro.CTOSPlayerInfo, playerInfo("host"))
	body := ygopro.EncodeCreateGame(ygopro.CreateGameRequest{Info: ygopro.HostInfo{T0Count: 1, T1Count: 1}})
	send(t, c, ygopro.CTOSCreateGame, body)

	kind, _ := joinError(t, recv(t, c))
	assert.Equal(t, ygopro.ErrorKindVersion, kind)
}

func TestServe_EmptyNameRefused(t *testing.T) {
	f := newFixture(t, -1)
	c := f.dial()
	send(t, c, ygopro.CTOSPlayerInfo, playerInfo(""))

	chat := recv(t, c)
	require.Equal(t, ygopro.STOCChat, chat.Type())
	assert.Equal(t, ygopro.ChatError, binary.LittleEndian.Uint16(chat.Body()))
	kind, code := joinError(t, recv(t, c))
	assert.Equal(t, ygopro.ErrorKindJoin, kind)
	assert.Equal(t, ygopro.JoinErrorInvalidName, code)
}

func TestServe_UnexpectedFirstFrame(t *testing.T) {
	f := newFixture(t, -1)
	c := f.dial()
	send(t, c, ygopro.CTOSChat, ygopro.EncodeUTF16("hi", 256))

	kind, code := joinError(t, recvType(t, c, ygopro.STOCErrorMsg))
	assert.Equal(t, ygopro.ErrorKindJoin, kind)
	assert.Equal(t, ygopro.JoinErrorNotFound, code)
}

func TestServe_LeaveRemovesRoom(t *testing.T) {
	f := newFixture(t, -1)
	c, id := f.host("")
	recvType(t, c, ygopro.STOCTypeChange)
	send(t, c, ygopro.CTOSLeaveGame, nil)

	ctx, cancel := context.WithTimeout(context.Background(), 2*time.Second)
	defer cancel()
	require.Eventually(t, func() bool { return f.hub.Get(ctx, id) == nil }, 2*time.Second, 10*time.Millisecond)
}

func TestServe_ConnectionLimit(t *testing.T) {
	f := newFixture(t, 1)
	first, _ := f.host("")
	recvType(t, first, ygopro.STOCTypeChange)

	second := f.dial()
	_ = second.SetReadDeadline(time.Now().Add(time.Second))
	_, err := second.Read(make([]byte, 1))
	if err == nil {
		t.Fatalf("expected the second connection from the same address to be closed")
	}
}

func TestToEvent(t *testing.T) {
	c := room.NewClient("p", "ip", 1)
	tests := []struct {
		name string
		msg  ygopro.CTOSMsg
		want room.Event
	}{
		{"hand", ygopro.CTOSMsg{Type: ygopro.CTOSHandResult, Body: []byte{2}}, room.ChooseRPS{Client: c, Value: 2}},
		{"turn first", ygopro.CTOSMsg{Type: ygopro.CTOSTPResult, Body: []byte{1}}, room.ChooseTurn{Client: c, GoingFirst: true}},
		{"turn second", ygopro.CTOSMsg{Type: ygopro.CTOSTPResult, Body: []byte{0}}, room.ChooseTurn{Client: c}},
		{"ready", ygopro.CTOSMsg{Type: ygopro.CTOSReady}, room.Ready{Client: c, Value: true}},
		{"not ready", ygopro.CTOSMsg{Type: ygopro.CTOSNotReady}, room.Ready{Client: c}},
		{"kick", ygopro.CTOSMsg{Type: ygopro.CTOSTryKick, Body: []byte{1}}, room.TryKick{Client: c, Pos: 1}},
		{"rematch", ygopro.CTOSMsg{Type: ygopro.CTOSRematchResponse, Body: []byte{1}}, room.Rematch{Client: c, Answer: true}},
		{"surrender", ygopro.CTOSMsg{Type: ygopro.CTOSSurrender}, room.Surrender{Client: c}},
		{"start", ygopro.CTOSMsg{Type: ygopro.CTOSTryStart}, room.TryStart{Client: c}},
		{"response", ygopro.CTOSMsg{Type: ygopro.CTOSResponse, Body: []byte{9, 9}}, room.Response{Client: c, Data: []byte{9, 9}}},
		{"deck", ygopro.CTOSMsg{Type: ygopro.CTOSUpdateDeck, Body: ygopro.EncodeUpdateDeck([]uint32{1}, []uint32{2})}, room.UpdateDeck{Client: c, Main: []uint32{1}, Side: []uint32{2}}},
		{"short deck", ygopro.CTOSMsg{Type: ygopro.CTOSUpdateDeck, Body: []byte{1}}, nil},
		{"short hand", ygopro.CTOSMsg{Type: ygopro.CTOSHandResult}, nil},
		{"time confirm", ygopro.CTOSMsg{Type: ygopro.CTOSTimeConfirm}, nil},
		{"unknown", ygopro.CTOSMsg{Type: 0x77}, nil},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Equal(t, tt.want, toEvent(c, tt.msg))
		})
	}
}
