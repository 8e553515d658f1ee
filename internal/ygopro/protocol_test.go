package ygopro

import (
	"bytes"
	"encoding/binary"
	"errors"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestReadCTOS(t *testing.T) {
	frame := EncodeCTOS(CTOSTryKick, []byte{3})
	msg, err := ReadCTOS(bytes.NewReader(frame))
	require.NoError(t, err)
	assert.Equal(t, CTOSTryKick, msg.Type)
	pos, err := msg.Byte()
	require.NoError(t, err)
	assert.Equal(t, uint8(3), pos)
}

func TestReadCTOS_RejectsOversized(t *testing.T) {
	hdr := make([]byte, 3)
	binary.LittleEndian.PutUint16(hdr, CTOSMaxBody+2)
	_, err := ReadCTOS(bytes.NewReader(hdr))
	if !errors.Is(err, ErrBadHeader) {
		t.Fatalf("want ErrBadHeader, got %v", err)
	}
}

func TestDecodeCTOS_LengthMismatch(t *testing.T) {
	frame := EncodeCTOS(CTOSChat, []byte{1, 0})
	_, err := DecodeCTOS(frame[:len(frame)-1])
	assert.ErrorIs(t, err, ErrBadHeader)
}

func TestUpdateDeck(t *testing.T) {
	cases := []struct {
		name    string
		body    []byte
		wantErr bool
	}{
		{name: "valid", body: EncodeUpdateDeck([]uint32{1, 2, 3}, []uint32{4})},
		{name: "empty", body: EncodeUpdateDeck(nil, nil)},
		{name: "counts exceed body", body: EncodeUpdateDeck([]uint32{1}, nil)[:8], wantErr: true},
		{name: "huge counts", body: []byte{0xff, 0xff, 0xff, 0xff, 0xff, 0xff, 0xff, 0xff}, wantErr: true},
		{name: "no header", body: []byte{1}, wantErr: true},
	}
	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			main, side, err := CTOSMsg{Type: CTOSUpdateDeck, Body: tc.body}.UpdateDeck()
			if tc.wantErr {
				require.Error(t, err)
				return
			}
			require.NoError(t, err)
			if tc.name == "valid" {
				assert.Equal(t, []uint32{1, 2, 3}, main)
				assert.Equal(t, []uint32{4}, side)
			}
		})
	}
}

func TestCreateGameDecode(t *testing.T) {
	req := CreateGameRequest{
		Info:  HostInfo{StartingLP: 8000, T0Count: 2, T1Count: 2, BestOf: 3, ExtraRules: RuleDoubleDeck},
		Name:  "host",
		Pass:  "secret",
		Notes: "casual",
	}
	got, err := CTOSMsg{Type: CTOSCreateGame, Body: EncodeCreateGame(req)}.CreateGame()
	require.NoError(t, err)
	assert.Equal(t, req, got)
}

func TestJoinGameDecode(t *testing.T) {
	body := EncodeJoinGame(JoinGameRequest{Version: ServerVersion, ID: 42, Pass: "pw"})
	got, err := CTOSMsg{Type: CTOSJoinGame, Body: body}.JoinGame()
	require.NoError(t, err)
	assert.Equal(t, uint32(42), got.ID)
	assert.Equal(t, ServerVersion, got.Version)
	assert.Equal(t, "pw", got.Pass)
}

func TestHostInfoNormalize(t *testing.T) {
	h := HostInfo{T0Count: 0, T1Count: 9, BestOf: -1, DontShuffleDeck: 1}.Normalize()
	assert.Equal(t, int32(1), h.T0Count)
	assert.Equal(t, int32(3), h.T1Count)
	assert.Equal(t, int32(1), h.BestOf)
	assert.NotZero(t, uint64(h.DuelFlags)&DuelPseudoShuffle)
	assert.Equal(t, ServerHandshake, h.ServerHandshake)
}

func TestNeededWins(t *testing.T) {
	for bestOf, want := range map[int32]int{1: 1, 2: 1, 3: 2, 5: 3} {
		if got := (HostInfo{BestOf: bestOf}).NeededWins(); got != want {
			t.Fatalf("best of %d: want %d wins, got %d", bestOf, want, got)
		}
	}
}

func TestUTF16(t *testing.T) {
	b := EncodeUTF16("Yugi", 20)
	require.Len(t, b, 40)
	assert.Equal(t, "Yugi", DecodeUTF16(b))

	long := EncodeUTF16("abcdefghijklmnopqrstuvwxyz", 5)
	assert.Equal(t, "abcd", DecodeUTF16(long), "must keep room for the terminator")
}

func TestPositionEncoding(t *testing.T) {
	cases := []struct {
		pos  Position
		t0   int32
		want uint8
	}{
		{Position{0, 0}, 1, 0},
		{Position{1, 0}, 1, 1},
		{Position{1, 1}, 2, 3},
		{Position{0, 2}, 3, 2},
	}
	for _, tc := range cases {
		got := EncodePosition(tc.pos, tc.t0)
		assert.Equal(t, tc.want, got)
		assert.Equal(t, tc.pos, DecodePosition(got, tc.t0))
	}
}

func TestSTOCBuilders(t *testing.T) {
	m := PlayerChange(3, PChangeReady)
	assert.Equal(t, STOCPlayerChange, m.Type())
	assert.Equal(t, []byte{0x39}, m.Body())

	tc := TypeChange(true, SpectatorTypeChangePos)
	assert.Equal(t, []byte{0x17}, tc.Body())

	chat := Chat(ChatSpectator, "hi")
	typ, body, ok := DecodeSTOC(chat)
	require.True(t, ok)
	assert.Equal(t, STOCChat, typ)
	assert.Equal(t, []byte{10, 0, 'h', 0, 'i', 0, 0, 0}, body)

	de := DeckErrorMsg(&DeckError{Kind: DeckBadMainCount, Got: 39, Min: 40, Max: 60})
	assert.Equal(t, ErrorKindDeck, de.Body()[0])
	assert.Equal(t, uint32(DeckBadMainCount), binary.LittleEndian.Uint32(de.Body()[4:]))
	assert.Equal(t, uint32(39), binary.LittleEndian.Uint32(de.Body()[8:]))
}

func TestReplaySerialize(t *testing.T) {
	r := NewReplay(100, 7, HostInfo{StartingLP: 8000}, nil)
	r.AddDuelist(0, 0, ReplayDuelist{Name: "a", Main: []uint32{1, 2}})
	r.AddDuelist(1, 0, ReplayDuelist{Name: "b"})
	r.RecordMsg([]byte{MsgNewTurn, 0})
	r.RecordResponse([]byte{1})
	r.RecordResponse([]byte{2})
	r.PopBackResponse()

	assert.Equal(t, 1, r.MessageCount())
	assert.Equal(t, 1, r.ResponseCount())
	b := r.Serialize()
	assert.Equal(t, []byte("YRPX"), b[:4])
	assert.Equal(t, uint32(8000), binary.LittleEndian.Uint32(b[16:]))
}
