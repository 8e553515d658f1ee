package distributor

import (
	"fmt"

	"github.com/DoyleJ11/duel-room-server/internal/ygopro"
)

// StripForTeam returns a copy of msg with the card codes team may not see
// cleared. Only the types classified as stripped have a rule; any other
// type, and any truncated message, is a *MalformedError.
func StripForTeam(msg []byte, team uint8) ([]byte, error) {
	if len(msg) == 0 {
		return nil, &MalformedError{Reason: "empty message"}
	}
	out := append([]byte(nil), msg...)
	c := &cursor{b: out, off: 1}
	switch out[0] {
	case ygopro.MsgSet:
		c.zero32()
	case ygopro.MsgShuffleHand, ygopro.MsgShuffleExtra:
		if c.u8() == team {
			break
		}
		n := c.u32()
		if !c.need(int(n) * 4) {
			break
		}
		for i := uint32(0); i < n; i++ {
			c.zero32()
		}
	case ygopro.MsgMove:
		code := c.off
		c.skip(4 + locInfoSize)
		cur := c.locInfo()
		if c.err != nil || cur.con == team || cur.public() {
			break
		}
		c.off = code
		c.zero32()
	case ygopro.MsgDraw:
		if c.u8() == team {
			break
		}
		clearHidden(c, c.u32())
	case ygopro.MsgTagSwap:
		if c.u8() == team {
			break
		}
		c.skip(4) // main deck count
		n := c.u32()
		c.skip(4) // face-up pendulum count
		n += c.u32()
		c.skip(4) // top of deck
		clearHidden(c, n)
	case ygopro.MsgSelectCard:
		c.skip(1 + 1 + 4 + 4)
		clearForeign(c, c.u32(), team)
	case ygopro.MsgSelectTribute:
		c.skip(1 + 1 + 4 + 4)
		n := c.u32()
		for i := uint32(0); i < n && c.err == nil; i++ {
			code := c.off
			c.skip(4)
			con := c.u8()
			c.skip(1 + 4 + 1) // location, sequence, release param
			if c.err == nil && con != team {
				zeroAt(c, code)
			}
		}
	case ygopro.MsgSelectUnselect:
		c.skip(1 + 1 + 1 + 4 + 4)
		clearForeign(c, c.u32(), team)
		clearForeign(c, c.u32(), team)
	default:
		return nil, malformed(msg, fmt.Sprintf("no stripping rule for type %d", out[0]))
	}
	if c.err != nil {
		return nil, malformed(msg, "truncated")
	}
	return out, nil
}

func zeroAt(c *cursor, off int) {
	save := c.off
	c.off = off
	c.zero32()
	c.off = save
}

// clearHidden walks n (code, position) pairs clearing codes of face-down
// cards.
func clearHidden(c *cursor, n uint32) {
	for i := uint32(0); i < n && c.err == nil; i++ {
		code := c.off
		c.skip(4)
		pos := c.u32()
		if c.err == nil && pos&ygopro.PosFaceUp == 0 {
			zeroAt(c, code)
		}
	}
}

// clearForeign walks n (code, location) pairs clearing codes of cards
// team does not control.
func clearForeign(c *cursor, n uint32, team uint8) {
	for i := uint32(0); i < n && c.err == nil; i++ {
		code := c.off
		c.skip(4)
		info := c.locInfo()
		if c.err == nil && info.con != team {
			zeroAt(c, code)
		}
	}
}
