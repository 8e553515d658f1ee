package core

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/DoyleJ11/duel-room-server/internal/ygopro"
)

func TestDecodeCardData_Short(t *testing.T) {
	c := ygopro.CardData{Code: 1, Setcodes: []uint16{1, 2, 3}}
	b := EncodeCardData(nil, c)

	got, err := DecodeCardData(b)
	require.NoError(t, err)
	assert.Equal(t, c.Setcodes, got.Setcodes)

	for _, n := range []int{0, 11, len(b) - 1} {
		_, err := DecodeCardData(b[:n])
		assert.ErrorIs(t, err, errShortCardData, "truncated to %d", n)
	}
}

func TestMailboxRejectsOversizedPayload(t *testing.T) {
	m := mailbox{mem: make([]byte, MailboxSize)}
	require.NoError(t, m.put(ActQuery, []byte{1, 2, 3}))
	assert.Equal(t, ActQuery, m.action())
	assert.Equal(t, []byte{1, 2, 3}, m.payload())

	err := m.put(ActQuery, make([]byte, MailboxSize))
	assert.ErrorIs(t, err, ErrPayloadTooLarge)
}

func TestReaderStopsAtFirstShortRead(t *testing.T) {
	var w writer
	w.u32(7)
	w.str("abc")
	r := reader{b: w.b}
	assert.Equal(t, uint32(7), r.u32())
	assert.Equal(t, "abc", r.str())
	assert.Equal(t, uint64(0), r.u64())
	assert.ErrorIs(t, r.err, errShortPayload)
	assert.Equal(t, uint8(0), r.u8())
}
