package ygopro

import "encoding/binary"

// STOCType tags server to client frames.
type STOCType uint8

const (
	STOCGameMsg      STOCType = 0x01
	STOCErrorMsg     STOCType = 0x02
	STOCChooseRPS    STOCType = 0x03
	STOCSelectTP     STOCType = 0x04
	STOCHandResult   STOCType = 0x05
	STOCTPResult     STOCType = 0x06
	STOCChangeSide   STOCType = 0x07
	STOCWaitingSide  STOCType = 0x08
	STOCCreateGame   STOCType = 0x11
	STOCJoinGame     STOCType = 0x12
	STOCTypeChange   STOCType = 0x13
	STOCLeaveGame    STOCType = 0x14
	STOCDuelStart    STOCType = 0x15
	STOCDuelEnd      STOCType = 0x16
	STOCReplay       STOCType = 0x17
	STOCTimeLimit    STOCType = 0x18
	STOCChat         STOCType = 0x19
	STOCPlayerEnter  STOCType = 0x20
	STOCPlayerChange STOCType = 0x21
	STOCWatchChange  STOCType = 0x22

	STOCCatchUp        STOCType = 0xF0
	STOCRematch        STOCType = 0xF1
	STOCWaitingRematch STOCType = 0xF2
)

// Error message kinds carried by STOC_ERROR_MSG.
const (
	ErrorKindJoin    uint8 = 1
	ErrorKindDeck    uint8 = 2
	ErrorKindSide    uint8 = 3
	ErrorKindVersion uint8 = 4
)

// Join error codes.
const (
	JoinErrorNotFound    uint32 = 0
	JoinErrorWrongPass   uint32 = 1
	JoinErrorInvalidName uint32 = 2
)

// Player change codes, the low nibble of PLAYER_CHANGE.
const (
	PChangeSpectate uint8 = 0x8
	PChangeReady    uint8 = 0x9
	PChangeNotReady uint8 = 0xA
	PChangeLeave    uint8 = 0xB
)

// Chat originators that are not a seat.
const (
	ChatSystem    uint16 = 8
	ChatError     uint16 = 9
	ChatSpectator uint16 = 10
)

// SpectatorTypeChangePos is the seat reported to spectators in TYPE_CHANGE.
const SpectatorTypeChangePos uint8 = 7

// STOCMsg is a complete server frame, header included.
type STOCMsg []byte

func NewSTOC(t STOCType, body []byte) STOCMsg {
	b := make([]byte, 3+len(body))
	binary.LittleEndian.PutUint16(b, uint16(len(body)+1))
	b[2] = uint8(t)
	copy(b[3:], body)
	return b
}

func (m STOCMsg) Type() STOCType { return STOCType(m[2]) }
func (m STOCMsg) Body() []byte   { return m[3:] }

// DecodeSTOC splits a received server frame, used by clients and tests.
func DecodeSTOC(frame []byte) (STOCType, []byte, bool) {
	if len(frame) < 3 {
		return 0, nil, false
	}
	n := int(binary.LittleEndian.Uint16(frame))
	if n < 1 || len(frame) != n+2 {
		return 0, nil, false
	}
	return STOCType(frame[2]), frame[3:], true
}

// signal is a frame with no meaningful payload.
func signal(t STOCType) STOCMsg { return NewSTOC(t, []byte{0}) }

func GameMsg(engineMsg []byte) STOCMsg { return NewSTOC(STOCGameMsg, engineMsg) }

func DuelStart() STOCMsg   { return signal(STOCDuelStart) }
func DuelEnd() STOCMsg     { return signal(STOCDuelEnd) }
func ChooseRPS() STOCMsg   { return signal(STOCChooseRPS) }
func SelectTP() STOCMsg    { return signal(STOCSelectTP) }
func ChangeSide() STOCMsg  { return signal(STOCChangeSide) }
func WaitingSide() STOCMsg { return signal(STOCWaitingSide) }

func AskRematch() STOCMsg  { return signal(STOCRematch) }
func RematchWait() STOCMsg { return signal(STOCWaitingRematch) }

// CatchUp brackets the cached messages replayed to a late spectator.
func CatchUp(start bool) STOCMsg {
	var b uint8
	if start {
		b = 1
	}
	return NewSTOC(STOCCatchUp, []byte{b})
}

func errorMsg(kind uint8, code uint32) STOCMsg {
	b := make([]byte, 8)
	b[0] = kind
	binary.LittleEndian.PutUint32(b[4:], code)
	return NewSTOC(STOCErrorMsg, b)
}

func JoinError(code uint32) STOCMsg { return errorMsg(ErrorKindJoin, code) }

func VersionError() STOCMsg { return errorMsg(ErrorKindVersion, uint32(ServerVersion)) }

func SideError() STOCMsg { return errorMsg(ErrorKindSide, 0) }

// DeckErrorMsg reports a refused deck: kind, counts (got, min, max) and code.
func DeckErrorMsg(e *DeckError) STOCMsg {
	b := make([]byte, 24)
	le := binary.LittleEndian
	b[0] = ErrorKindDeck
	le.PutUint32(b[4:], uint32(e.Kind))
	le.PutUint32(b[8:], uint32(e.Got))
	le.PutUint32(b[12:], uint32(e.Min))
	le.PutUint32(b[16:], uint32(e.Max))
	le.PutUint32(b[20:], e.Code)
	return NewSTOC(STOCErrorMsg, b)
}

func CreateGame(id uint32) STOCMsg {
	return NewSTOC(STOCCreateGame, binary.LittleEndian.AppendUint32(nil, id))
}

func JoinGame(info HostInfo) STOCMsg { return NewSTOC(STOCJoinGame, info.Encode()) }

func TypeChange(isHost bool, pos uint8) STOCMsg {
	var host uint8
	if isHost {
		host = 1
	}
	return NewSTOC(STOCTypeChange, []byte{host<<4 | pos})
}

func PlayerEnter(name string, pos uint8) STOCMsg {
	b := EncodeUTF16(name, nameUnits)
	return NewSTOC(STOCPlayerEnter, append(b, pos))
}

func PlayerChange(pos, code uint8) STOCMsg {
	return NewSTOC(STOCPlayerChange, []byte{pos<<4 | code})
}

// PlayerMove tells clients a duelist moved from seat p1 to seat p2.
func PlayerMove(p1, p2 uint8) STOCMsg {
	return NewSTOC(STOCPlayerChange, []byte{p1<<4 | p2})
}

func WatchChange(count int) STOCMsg {
	return NewSTOC(STOCWatchChange, binary.LittleEndian.AppendUint16(nil, uint16(count)))
}

// Chat is sized to the text plus its terminator.
func Chat(posOrType uint16, text string) STOCMsg {
	u := EncodeUTF16(text, chatUnits)
	n := 0
	for n+1 < len(u) && (u[n] != 0 || u[n+1] != 0) {
		n += 2
	}
	b := binary.LittleEndian.AppendUint16(nil, posOrType)
	return NewSTOC(STOCChat, append(b, u[:n+2]...))
}

func HandResult(own, other uint8) STOCMsg {
	return NewSTOC(STOCHandResult, []byte{own, other})
}

func ReplayMsg(data []byte) STOCMsg { return NewSTOC(STOCReplay, data) }

func TimeLimit(team uint8, left uint16) STOCMsg {
	b := []byte{team, 0, 0}
	binary.LittleEndian.PutUint16(b[1:], left)
	return NewSTOC(STOCTimeLimit, b)
}
