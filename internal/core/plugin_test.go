package core

import (
	"os"
	"path/filepath"
	"testing"
	"unsafe"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/DoyleJ11/duel-room-server/internal/ygopro"
)

type cardMap map[uint32]ygopro.CardData

func (m cardMap) DataFromCode(code uint32) (ygopro.CardData, bool) {
	c, ok := m[code]
	return c, ok
}

func TestCLayouts(t *testing.T) {
	cases := []struct {
		name string
		got  uintptr
		want uintptr
	}{
		{"OCG_DuelOptions size", unsafe.Sizeof(cDuelOptions{}), 136},
		{"OCG_DuelOptions.cardReader", unsafe.Offsetof(cDuelOptions{}.CardReader), 64},
		{"OCG_DuelOptions.enableUnsafeLibraries", unsafe.Offsetof(cDuelOptions{}.EnableUnsafeLibraries), 128},
		{"OCG_NewCardInfo size", unsafe.Sizeof(cNewCardInfo{}), 24},
		{"OCG_NewCardInfo.code", unsafe.Offsetof(cNewCardInfo{}.Code), 4},
		{"OCG_NewCardInfo.loc", unsafe.Offsetof(cNewCardInfo{}.Loc), 12},
		{"OCG_QueryInfo size", unsafe.Sizeof(cQueryInfo{}), 20},
		{"OCG_QueryInfo.loc", unsafe.Offsetof(cQueryInfo{}.Loc), 8},
		{"OCG_CardData size", unsafe.Sizeof(cCardData{}), 64},
		{"OCG_CardData.setcodes", unsafe.Offsetof(cCardData{}.Setcodes), 8},
		{"OCG_CardData.race", unsafe.Offsetof(cCardData{}.Race), 32},
		{"OCG_CardData.link_marker", unsafe.Offsetof(cCardData{}.LinkMarker), 56},
	}
	for _, tc := range cases {
		if tc.got != tc.want {
			t.Fatalf("%s: got %d, want %d", tc.name, tc.got, tc.want)
		}
	}
}

func TestOpenPlugin_NotALibrary(t *testing.T) {
	path := filepath.Join(t.TempDir(), "libocgcore.so")
	require.NoError(t, os.WriteFile(path, []byte("not an elf"), 0o644))
	_, err := OpenPlugin(path)
	assert.Error(t, err)
}

func TestPlugin_UnknownDuelIsFault(t *testing.T) {
	p := &Plugin{duels: make(map[Duel]*nativeDuel)}
	_, err := p.Process(42)
	assert.True(t, IsFault(err))

	p.closed = true
	_, err = p.CreateDuel(DuelOptions{})
	var f *EngineFault
	require.ErrorAs(t, err, &f)
	assert.ErrorIs(t, f, ErrBindingClosed)
}

func TestDataReaderCallback(t *testing.T) {
	nd := &nativeDuel{
		opts: DuelOptions{Cards: cardMap{
			100: {Code: 100, Alias: 7, Setcodes: []uint16{0x10, 0x20}, Race: 1 << 40, Attack: -2, LinkMarker: 5},
		}},
		setcodes: make(map[uint32][]uint16),
	}
	id := callbacks.add(nd)
	t.Cleanup(func() {
		callbacks.remove(id)
		nd.pinner.Unpin()
	})

	var out cCardData
	cbDataReader(id, 100, &out)
	assert.Equal(t, uint32(7), out.Alias)
	assert.Equal(t, uint64(1<<40), out.Race)
	assert.Equal(t, int32(-2), out.Attack)
	require.NotNil(t, out.Setcodes)
	assert.Equal(t, []uint16{0x10, 0x20, 0}, unsafe.Slice(out.Setcodes, 3))

	// the same array is handed out again
	first := out.Setcodes
	cbDataReader(id, 100, &out)
	assert.Same(t, first, out.Setcodes)

	cbDataReader(id, 999, &out)
	assert.Equal(t, cCardData{Code: 999}, out)
	cbDataReader(id+1000, 100, &out)
	assert.Equal(t, cCardData{Code: 100}, out)
}

func TestLogHandlerCallback(t *testing.T) {
	var got []string
	nd := &nativeDuel{opts: DuelOptions{Log: func(kind LogKind, text string) {
		if kind == LogFromScript {
			got = append(got, text)
		}
	}}}
	id := callbacks.add(nd)
	t.Cleanup(func() { callbacks.remove(id) })

	msg := []byte("hello\x00")
	cbLogHandler(id, &msg[0], int32(LogFromScript))
	cbLogHandler(id, nil, int32(LogFromScript))
	assert.Equal(t, []string{"hello", ""}, got)
}

func TestCopyOut(t *testing.T) {
	src := []byte{1, 2, 3}
	got := copyOut(unsafe.Pointer(&src[0]), 2)
	src[0] = 9
	assert.Equal(t, []byte{1, 2}, got)
	assert.Nil(t, copyOut(nil, 4))
	assert.Nil(t, firstByte(nil))
}
