package core

import (
	"encoding/binary"
	"errors"

	"github.com/DoyleJ11/duel-room-server/internal/ygopro"
)

var errShortCardData = errors.New("short card data")

// EncodeCardData is the byte form card data takes when it crosses into the
// engine, both through the plugin ABI and the mailbox.
func EncodeCardData(b []byte, c ygopro.CardData) []byte {
	le := binary.LittleEndian
	b = le.AppendUint32(b, c.Code)
	b = le.AppendUint32(b, c.Alias)
	b = le.AppendUint32(b, uint32(len(c.Setcodes)))
	for _, s := range c.Setcodes {
		b = le.AppendUint16(b, s)
	}
	b = le.AppendUint32(b, c.Type)
	b = le.AppendUint32(b, c.Level)
	b = le.AppendUint32(b, c.Attribute)
	b = le.AppendUint64(b, c.Race)
	b = le.AppendUint32(b, uint32(c.Attack))
	b = le.AppendUint32(b, uint32(c.Defense))
	b = le.AppendUint32(b, c.LScale)
	b = le.AppendUint32(b, c.RScale)
	return le.AppendUint32(b, c.LinkMarker)
}

func DecodeCardData(b []byte) (ygopro.CardData, error) {
	r := reader{b: b}
	var c ygopro.CardData
	c.Code = r.u32()
	c.Alias = r.u32()
	n := r.u32()
	if uint64(n)*2 > uint64(len(r.b)) {
		return c, errShortCardData
	}
	c.Setcodes = make([]uint16, n)
	for i := range c.Setcodes {
		c.Setcodes[i] = r.u16()
	}
	c.Type = r.u32()
	c.Level = r.u32()
	c.Attribute = r.u32()
	c.Race = r.u64()
	c.Attack = int32(r.u32())
	c.Defense = int32(r.u32())
	c.LScale = r.u32()
	c.RScale = r.u32()
	c.LinkMarker = r.u32()
	if r.err != nil {
		return c, errShortCardData
	}
	return c, nil
}
