package distributor

import (
	"encoding/binary"

	"github.com/DoyleJ11/duel-room-server/internal/ygopro"
)

// Query flags, one per field of a card query.
const (
	QueryCode       uint32 = 0x1
	QueryPosition   uint32 = 0x2
	QueryAlias      uint32 = 0x4
	QueryType       uint32 = 0x8
	QueryLevel      uint32 = 0x10
	QueryRank       uint32 = 0x20
	QueryAttribute  uint32 = 0x40
	QueryRace       uint32 = 0x80
	QueryAttack     uint32 = 0x100
	QueryDefense    uint32 = 0x200
	QueryBaseAttack uint32 = 0x400
	QueryBaseDef    uint32 = 0x800
	QueryReason     uint32 = 0x1000
	QueryReasonCard uint32 = 0x2000
	QueryEquipCard  uint32 = 0x4000
	QueryTargetCard uint32 = 0x8000
	QueryOverlay    uint32 = 0x10000
	QueryCounters   uint32 = 0x20000
	QueryOwner      uint32 = 0x40000
	QueryStatus     uint32 = 0x80000
	QueryIsPublic   uint32 = 0x100000
	QueryLScale     uint32 = 0x200000
	QueryRScale     uint32 = 0x400000
	QueryLink       uint32 = 0x800000
	QueryIsHidden   uint32 = 0x1000000
	QueryCover      uint32 = 0x2000000
	QueryEnd        uint32 = 0x80000000
)

// hiddenFields are withheld from a card that is not known to the viewer.
const hiddenFields = QueryCode | QueryAlias | QueryType | QueryLevel | QueryRank |
	QueryAttribute | QueryRace | QueryAttack | QueryDefense | QueryBaseAttack |
	QueryBaseDef | QueryStatus | QueryLScale | QueryRScale | QueryLink

// Flag sets requested per location.
const (
	flagsDeck   uint32 = 0x1181FFF
	flagsHand   uint32 = 0x3781FFF
	flagsMZone  uint32 = 0x3881FFF
	flagsSZone  uint32 = 0x3E81FFF
	flagsPile   uint32 = 0x381FFF
	flagsSingle uint32 = 0x3F81FFF
	flagsSets   uint32 = 0x3181FFF
)

// Refresh asks the room to re-query part of the field and send the result
// as MSG_UPDATE_CARD (Single) or MSG_UPDATE_DATA.
type Refresh struct {
	Single bool
	Con    uint8
	Loc    uint8
	Seq    uint32
	Flags  uint32
}

func location(con, loc uint8, flags uint32) Refresh {
	return Refresh{Con: con, Loc: loc, Flags: flags}
}

func both(loc uint8, flags uint32) []Refresh {
	return []Refresh{location(0, loc, flags), location(1, loc, flags)}
}

// PreRefresh lists the queries to send before msg is distributed.
func PreRefresh(msg []byte) ([]Refresh, error) {
	if len(msg) == 0 {
		return nil, &MalformedError{Reason: "empty message"}
	}
	var out []Refresh
	switch msg[0] {
	case ygopro.MsgSelectBattleCmd, ygopro.MsgSelectIdleCmd:
		out = append(out, both(ygopro.LocationHand, flagsHand)...)
		out = append(out, both(ygopro.LocationMZone, flagsMZone)...)
		out = append(out, both(ygopro.LocationSZone, flagsSZone)...)
	case ygopro.MsgSelectChain, ygopro.MsgNewTurn:
		out = append(out, both(ygopro.LocationMZone, flagsMZone)...)
		out = append(out, both(ygopro.LocationSZone, flagsSZone)...)
	case ygopro.MsgFlipSummoning:
		c := cursor{b: msg, off: 1 + 4}
		info := c.locInfo()
		if c.err != nil {
			return nil, malformed(msg, "truncated")
		}
		out = append(out, Refresh{Single: true, Con: info.con, Loc: info.loc, Seq: info.seq, Flags: flagsSingle})
	}
	return out, nil
}

// PostRefresh lists the queries to send after msg is distributed.
func PostRefresh(msg []byte) ([]Refresh, error) {
	if len(msg) == 0 {
		return nil, &MalformedError{Reason: "empty message"}
	}
	c := cursor{b: msg, off: 1}
	var out []Refresh
	switch msg[0] {
	case ygopro.MsgShuffleHand, ygopro.MsgDraw:
		out = append(out, location(c.u8(), ygopro.LocationHand, flagsHand))
	case ygopro.MsgShuffleExtra:
		out = append(out, location(c.u8(), ygopro.LocationExtra, flagsPile))
	case ygopro.MsgSwapGraveDeck:
		out = append(out, location(c.u8(), ygopro.LocationGrave, flagsPile))
	case ygopro.MsgReverseDeck:
		out = append(out, both(ygopro.LocationDeck, flagsDeck)...)
	case ygopro.MsgShuffleSetCard:
		out = append(out, both(c.u8(), flagsSets)...)
	case ygopro.MsgDamageStepStart, ygopro.MsgDamageStepEnd:
		out = append(out, both(ygopro.LocationMZone, flagsMZone)...)
	case ygopro.MsgSummoned, ygopro.MsgSpSummoned, ygopro.MsgFlipSummoned:
		out = append(out, both(ygopro.LocationMZone, flagsMZone)...)
		out = append(out, both(ygopro.LocationSZone, flagsSZone)...)
	case ygopro.MsgNewPhase, ygopro.MsgChained:
		out = append(out, both(ygopro.LocationMZone, flagsMZone)...)
		out = append(out, both(ygopro.LocationSZone, flagsSZone)...)
		out = append(out, both(ygopro.LocationHand, flagsHand)...)
	case ygopro.MsgChainEnd:
		out = append(out, both(ygopro.LocationDeck, flagsDeck)...)
		out = append(out, both(ygopro.LocationMZone, flagsMZone)...)
		out = append(out, both(ygopro.LocationSZone, flagsSZone)...)
		out = append(out, both(ygopro.LocationHand, flagsHand)...)
	case ygopro.MsgMove:
		c.skip(4)
		prev := c.locInfo()
		cur := c.locInfo()
		if c.err == nil && (prev.con != cur.con || prev.loc != cur.loc) &&
			cur.loc != 0 && cur.loc&ygopro.LocationOverlay == 0 {
			out = append(out, Refresh{Single: true, Con: cur.con, Loc: cur.loc, Seq: cur.seq, Flags: flagsSingle})
		}
	case ygopro.MsgPosChange:
		c.skip(4)
		con, loc, seq := c.u8(), c.u8(), c.u8()
		prevPos, curPos := c.u8(), c.u8()
		if c.err == nil && uint32(prevPos)&ygopro.PosFaceDown != 0 && uint32(curPos)&ygopro.PosFaceUp != 0 {
			out = append(out, Refresh{Single: true, Con: con, Loc: loc, Seq: uint32(seq), Flags: flagsSingle})
		}
	case ygopro.MsgSwap:
		c.skip(4)
		p := c.locInfo()
		c.skip(4)
		q := c.locInfo()
		out = append(out,
			Refresh{Single: true, Con: p.con, Loc: p.loc, Seq: p.seq, Flags: flagsSingle},
			Refresh{Single: true, Con: q.con, Loc: q.loc, Seq: q.seq, Flags: flagsSingle})
	case ygopro.MsgTagSwap:
		player := c.u8()
		out = append(out,
			location(player, ygopro.LocationDeck, flagsDeck),
			location(player, ygopro.LocationExtra, flagsPile),
			location(player, ygopro.LocationHand, flagsHand))
		out = append(out, both(ygopro.LocationMZone, flagsMZone)...)
		out = append(out, both(ygopro.LocationSZone, flagsSZone)...)
	case ygopro.MsgReloadField:
		out = append(out, both(ygopro.LocationExtra, flagsPile)...)
	}
	if c.err != nil {
		return nil, malformed(msg, "truncated")
	}
	return out, nil
}

// UpdateCard wraps a single card query into MSG_UPDATE_CARD.
func UpdateCard(con, loc uint8, seq uint32, query []byte) []byte {
	b := make([]byte, 0, 4+len(query))
	b = append(b, ygopro.MsgUpdateCard, con, loc, uint8(seq))
	return append(b, query...)
}

// UpdateData wraps a location query into MSG_UPDATE_DATA.
func UpdateData(con, loc uint8, query []byte) []byte {
	b := make([]byte, 0, 3+len(query))
	b = append(b, ygopro.MsgUpdateData, con, loc)
	return append(b, query...)
}

// PublicCard filters a single card query down to what an opponent may
// see. The query is a run of (u16 size, u32 flag, value) fields ending in a
// QueryEnd field; a lone zero u16 is an empty slot.
func PublicCard(q []byte) ([]byte, error) { return filterSingle(q, true) }

// OwnCard filters a single card query for the card's owner, who still
// does not see the identity of a card flagged hidden.
func OwnCard(q []byte) ([]byte, error) { return filterSingle(q, false) }

// PublicLocation filters a location query: a u32 total size followed by
// one card query per slot.
func PublicLocation(q []byte) ([]byte, error) { return filterLocation(q, true) }

// OwnLocation is OwnCard for every slot of a location query.
func OwnLocation(q []byte) ([]byte, error) { return filterLocation(q, false) }

func filterSingle(q []byte, opponent bool) ([]byte, error) {
	out, rest, err := filterCard(q, opponent)
	if err != nil {
		return nil, err
	}
	if len(rest) != 0 {
		return nil, &MalformedError{Tag: ygopro.MsgUpdateCard, Reason: "trailing query bytes"}
	}
	return out, nil
}

func filterLocation(q []byte, opponent bool) ([]byte, error) {
	if len(q) < 4 {
		return nil, &MalformedError{Tag: ygopro.MsgUpdateData, Reason: "truncated query size"}
	}
	n := binary.LittleEndian.Uint32(q)
	if uint64(n) > uint64(len(q)) || n < 4 {
		return nil, &MalformedError{Tag: ygopro.MsgUpdateData, Reason: "query size out of range"}
	}
	body := q[4:n]
	out := make([]byte, 4, n)
	for len(body) > 0 {
		card, rest, err := filterCard(body, opponent)
		if err != nil {
			return nil, err
		}
		out = append(out, card...)
		body = rest
	}
	binary.LittleEndian.PutUint32(out, uint32(len(out)))
	return out, nil
}

type queryField struct {
	flag uint32
	raw  []byte // the whole field, header included
	val  []byte
}

func filterCard(b []byte, opponent bool) (out, rest []byte, err error) {
	bad := func(reason string) ([]byte, []byte, error) {
		return nil, nil, &MalformedError{Tag: ygopro.MsgUpdateCard, Reason: reason}
	}
	if len(b) < 2 {
		return bad("truncated query")
	}
	if binary.LittleEndian.Uint16(b) == 0 {
		return b[:2], b[2:], nil
	}
	var fields []queryField
	for {
		if len(b) < 6 {
			return bad("truncated field header")
		}
		size := int(binary.LittleEndian.Uint16(b))
		if size < 4 || 2+size > len(b) {
			return bad("field size out of range")
		}
		f := queryField{flag: binary.LittleEndian.Uint32(b[2:]), raw: b[:2+size], val: b[6 : 2+size]}
		fields = append(fields, f)
		b = b[2+size:]
		if f.flag == QueryEnd {
			break
		}
	}
	var public, hidden bool
	for _, f := range fields {
		switch f.flag {
		case QueryIsPublic:
			public = public || nonZero(f.val)
		case QueryIsHidden:
			hidden = nonZero(f.val)
		case QueryPosition:
			if len(f.val) >= 4 && binary.LittleEndian.Uint32(f.val)&ygopro.PosFaceUp != 0 {
				public = true
			}
		}
	}
	// A public card shows everything. Otherwise identity fields go to the
	// owner only, and not even to them while the card is hidden.
	for _, f := range fields {
		if f.flag&hiddenFields != 0 && !public && (hidden || opponent) {
			continue
		}
		out = append(out, f.raw...)
	}
	return out, b, nil
}

func nonZero(b []byte) bool {
	for _, v := range b {
		if v != 0 {
			return true
		}
	}
	return false
}

// StartInfo is what MSG_START announces to each side.
type StartInfo struct {
	LP        uint32
	DeckCount [2]uint16
	ExtraSize [2]uint16
}

// StartMsg synthesizes MSG_START as seen by engine team team.
func StartMsg(team uint8, info StartInfo) []byte {
	b := make([]byte, 0, 18)
	b = append(b, ygopro.MsgStart, team)
	b = binary.LittleEndian.AppendUint32(b, info.LP)
	b = binary.LittleEndian.AppendUint32(b, info.LP)
	for t := 0; t < 2; t++ {
		b = binary.LittleEndian.AppendUint16(b, info.DeckCount[t])
		b = binary.LittleEndian.AppendUint16(b, info.ExtraSize[t])
	}
	return b
}
