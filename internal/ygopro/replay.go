package ygopro

import (
	"encoding/binary"
	"slices"
)

const replayVersion = 1

var replayMagic = []byte("YRPX")

// ReplayDuelist is a duelist as recorded at duel start.
type ReplayDuelist struct {
	Name  string
	Main  []uint32
	Extra []uint32
}

// Replay accumulates everything needed to replay a duel: the starting
// conditions, every engine message and every accepted response.
type Replay struct {
	Timestamp  uint32
	Seed       uint32
	Info       HostInfo
	ExtraCards []uint32

	duelists  [2]map[uint8]ReplayDuelist
	messages  [][]byte
	responses [][]byte
}

func NewReplay(timestamp, seed uint32, info HostInfo, extraCards []uint32) *Replay {
	return &Replay{
		Timestamp:  timestamp,
		Seed:       seed,
		Info:       info,
		ExtraCards: slices.Clone(extraCards),
		duelists:   [2]map[uint8]ReplayDuelist{{}, {}},
	}
}

func (r *Replay) AddDuelist(team, slot uint8, d ReplayDuelist) {
	r.duelists[team&1][slot] = d
}

func (r *Replay) RecordMsg(msg []byte) { r.messages = append(r.messages, slices.Clone(msg)) }

func (r *Replay) RecordResponse(resp []byte) {
	r.responses = append(r.responses, slices.Clone(resp))
}

// PopBackResponse drops the last response, used when the engine asked for a retry.
func (r *Replay) PopBackResponse() {
	if n := len(r.responses); n > 0 {
		r.responses = r.responses[:n-1]
	}
}

func (r *Replay) MessageCount() int  { return len(r.messages) }
func (r *Replay) ResponseCount() int { return len(r.responses) }

// Serialize encodes the replay in little endian order.
func (r *Replay) Serialize() []byte {
	le := binary.LittleEndian
	b := slices.Clone(replayMagic)
	b = le.AppendUint32(b, replayVersion)
	b = le.AppendUint32(b, r.Timestamp)
	b = le.AppendUint32(b, r.Seed)
	b = le.AppendUint32(b, r.Info.StartingLP)
	b = le.AppendUint32(b, uint32(r.Info.StartingDrawCount))
	b = le.AppendUint32(b, uint32(r.Info.DrawCountPerTurn))
	b = le.AppendUint64(b, uint64(r.Info.DuelFlags))
	b = appendCodes(b, r.ExtraCards)
	for team := range r.duelists {
		slots := make([]uint8, 0, len(r.duelists[team]))
		for slot := range r.duelists[team] {
			slots = append(slots, slot)
		}
		slices.Sort(slots)
		b = le.AppendUint32(b, uint32(len(slots)))
		for _, slot := range slots {
			d := r.duelists[team][slot]
			b = append(b, EncodeUTF16(d.Name, nameUnits)...)
			b = appendCodes(b, d.Main)
			b = appendCodes(b, d.Extra)
		}
	}
	b = appendBlobs(b, r.messages)
	return appendBlobs(b, r.responses)
}

func appendCodes(b []byte, codes []uint32) []byte {
	b = binary.LittleEndian.AppendUint32(b, uint32(len(codes)))
	for _, c := range codes {
		b = binary.LittleEndian.AppendUint32(b, c)
	}
	return b
}

func appendBlobs(b []byte, blobs [][]byte) []byte {
	b = binary.LittleEndian.AppendUint32(b, uint32(len(blobs)))
	for _, blob := range blobs {
		b = binary.LittleEndian.AppendUint32(b, uint32(len(blob)))
		b = append(b, blob...)
	}
	return b
}
