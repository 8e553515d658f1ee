package distributor

import (
	"encoding/binary"

	"github.com/DoyleJ11/duel-room-server/internal/ygopro"
)

// cursor walks a message in place. The first out of range access sets err;
// every later access is a no-op.
type cursor struct {
	b   []byte
	off int
	err error
}

var errTruncated = &MalformedError{Reason: "truncated"}

func (c *cursor) need(n int) bool {
	if c.err != nil {
		return false
	}
	if c.off+n > len(c.b) {
		c.err = errTruncated
		return false
	}
	return true
}

func (c *cursor) skip(n int) {
	if c.need(n) {
		c.off += n
	}
}

func (c *cursor) u8() uint8 {
	if !c.need(1) {
		return 0
	}
	v := c.b[c.off]
	c.off++
	return v
}

func (c *cursor) u32() uint32 {
	if !c.need(4) {
		return 0
	}
	v := binary.LittleEndian.Uint32(c.b[c.off:])
	c.off += 4
	return v
}

// zero32 clears the u32 at the cursor and moves past it.
func (c *cursor) zero32() {
	if c.need(4) {
		binary.LittleEndian.PutUint32(c.b[c.off:], 0)
		c.off += 4
	}
}

// locInfo is the engine's card location: controller, location, sequence
// and position.
type locInfo struct {
	con uint8
	loc uint8
	seq uint32
	pos uint32
}

const locInfoSize = 1 + 1 + 4 + 4

func (c *cursor) locInfo() locInfo {
	return locInfo{con: c.u8(), loc: c.u8(), seq: c.u32(), pos: c.u32()}
}

func (l locInfo) public() bool {
	if l.loc&(ygopro.LocationGrave|ygopro.LocationOverlay) != 0 &&
		l.loc&(ygopro.LocationDeck|ygopro.LocationHand) == 0 {
		return true
	}
	return l.pos&ygopro.PosFaceDown == 0
}
