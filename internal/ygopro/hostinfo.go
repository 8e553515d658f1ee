package ygopro

import (
	"encoding/binary"
	"errors"
)

// HostInfoSize is the encoded size of HostInfo.
const HostInfoSize = 56

var ErrShortHostInfo = errors.New("host info too short")

// HostInfo is the room configuration chosen by the host. It does not change
// for the lifetime of a room.
type HostInfo struct {
	BanlistHash        uint32
	Allowed            AllowedCards
	Mode               uint8
	DuelRule           uint8
	DontCheckDeck      uint8
	DontShuffleDeck    uint8
	StartingLP         uint32
	StartingDrawCount  uint8
	DrawCountPerTurn   uint8
	TimeLimitInSeconds uint16
	ServerHandshake    uint64
	T0Count            int32
	T1Count            int32
	BestOf             int32
	DuelFlags          uint32
	Forb               int32 // forbidden card types
	ExtraRules         uint16
}

func DecodeHostInfo(b []byte) (HostInfo, error) {
	if len(b) < HostInfoSize {
		return HostInfo{}, ErrShortHostInfo
	}
	le := binary.LittleEndian
	return HostInfo{
		BanlistHash:        le.Uint32(b[0:]),
		Allowed:            AllowedCards(b[4]),
		Mode:               b[5],
		DuelRule:           b[6],
		DontCheckDeck:      b[7],
		DontShuffleDeck:    b[8],
		StartingLP:         le.Uint32(b[12:]),
		StartingDrawCount:  b[16],
		DrawCountPerTurn:   b[17],
		TimeLimitInSeconds: le.Uint16(b[18:]),
		ServerHandshake:    le.Uint64(b[24:]),
		T0Count:            int32(le.Uint32(b[32:])),
		T1Count:            int32(le.Uint32(b[36:])),
		BestOf:             int32(le.Uint32(b[40:])),
		DuelFlags:          le.Uint32(b[44:]),
		Forb:               int32(le.Uint32(b[48:])),
		ExtraRules:         le.Uint16(b[52:]),
	}, nil
}

func (h HostInfo) Encode() []byte {
	b := make([]byte, HostInfoSize)
	le := binary.LittleEndian
	le.PutUint32(b[0:], h.BanlistHash)
	b[4] = uint8(h.Allowed)
	b[5] = h.Mode
	b[6] = h.DuelRule
	b[7] = h.DontCheckDeck
	b[8] = h.DontShuffleDeck
	le.PutUint32(b[12:], h.StartingLP)
	b[16] = h.StartingDrawCount
	b[17] = h.DrawCountPerTurn
	le.PutUint16(b[18:], h.TimeLimitInSeconds)
	le.PutUint64(b[24:], h.ServerHandshake)
	le.PutUint32(b[32:], uint32(h.T0Count))
	le.PutUint32(b[36:], uint32(h.T1Count))
	le.PutUint32(b[40:], uint32(h.BestOf))
	le.PutUint32(b[44:], h.DuelFlags)
	le.PutUint32(b[48:], uint32(h.Forb))
	le.PutUint16(b[52:], h.ExtraRules)
	return b
}

// Normalize applies the server side constraints to a host's request:
// team sizes are clamped to 1..3 and at least one game is played.
func (h HostInfo) Normalize() HostInfo {
	h.T0Count = clamp(h.T0Count, 1, 3)
	h.T1Count = clamp(h.T1Count, 1, 3)
	if h.BestOf < 1 {
		h.BestOf = 1
	}
	if h.DontShuffleDeck != 0 {
		h.DuelFlags |= uint32(DuelPseudoShuffle)
	}
	h.ServerHandshake = ServerHandshake
	return h
}

// NeededWins is how many duels a team must win to take the match.
func (h HostInfo) NeededWins() int {
	return int(h.BestOf/2 + h.BestOf&1)
}

func (h HostInfo) IsRelay() bool { return uint64(h.DuelFlags)&DuelRelay != 0 }

func clamp(v, lo, hi int32) int32 {
	return max(lo, min(v, hi))
}
