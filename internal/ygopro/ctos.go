package ygopro

import (
	"encoding/binary"
	"errors"
	"fmt"
	"io"
)

// CTOSType tags client to server frames.
type CTOSType uint8

const (
	CTOSResponse    CTOSType = 0x01
	CTOSUpdateDeck  CTOSType = 0x02
	CTOSHandResult  CTOSType = 0x03
	CTOSTPResult    CTOSType = 0x04
	CTOSPlayerInfo  CTOSType = 0x10
	CTOSCreateGame  CTOSType = 0x11
	CTOSJoinGame    CTOSType = 0x12
	CTOSLeaveGame   CTOSType = 0x13
	CTOSSurrender   CTOSType = 0x14
	CTOSTimeConfirm CTOSType = 0x15
	CTOSChat        CTOSType = 0x16
	CTOSToDuelist   CTOSType = 0x20
	CTOSToObserver  CTOSType = 0x21
	CTOSReady       CTOSType = 0x22
	CTOSNotReady    CTOSType = 0x23
	CTOSTryKick     CTOSType = 0x24
	CTOSTryStart    CTOSType = 0x25

	CTOSRematchResponse CTOSType = 0xF0
)

func (t CTOSType) Known() bool {
	switch t {
	case CTOSResponse, CTOSUpdateDeck, CTOSHandResult, CTOSTPResult,
		CTOSPlayerInfo, CTOSCreateGame, CTOSJoinGame, CTOSLeaveGame,
		CTOSSurrender, CTOSTimeConfirm, CTOSChat, CTOSToDuelist,
		CTOSToObserver, CTOSReady, CTOSNotReady, CTOSTryKick, CTOSTryStart,
		CTOSRematchResponse:
		return true
	}
	return false
}

const (
	CTOSHeaderLength = 3
	CTOSMaxBody      = 1021
)

const (
	nameUnits  = 20
	notesBytes = 200
	chatUnits  = 256
)

var (
	ErrBadHeader = errors.New("bad frame header")
	ErrShortBody = errors.New("frame body too short")
)

// CTOSMsg is one decoded client frame.
type CTOSMsg struct {
	Type CTOSType
	Body []byte
}

// ReadCTOS reads one frame. A declared length of zero or beyond the
// maximum body size is ErrBadHeader and the stream can not be resynced.
func ReadCTOS(r io.Reader) (CTOSMsg, error) {
	var hdr [CTOSHeaderLength]byte
	if _, err := io.ReadFull(r, hdr[:]); err != nil {
		return CTOSMsg{}, err
	}
	n := int(int16(binary.LittleEndian.Uint16(hdr[:2])))
	if n < 1 || n-1 > CTOSMaxBody {
		return CTOSMsg{}, ErrBadHeader
	}
	body := make([]byte, n-1)
	if _, err := io.ReadFull(r, body); err != nil {
		return CTOSMsg{}, err
	}
	return CTOSMsg{Type: CTOSType(hdr[2]), Body: body}, nil
}

// DecodeCTOS decodes a frame delivered as a single datagram.
func DecodeCTOS(frame []byte) (CTOSMsg, error) {
	if len(frame) < CTOSHeaderLength {
		return CTOSMsg{}, ErrBadHeader
	}
	n := int(int16(binary.LittleEndian.Uint16(frame[:2])))
	if n < 1 || n-1 > CTOSMaxBody || len(frame) != n+2 {
		return CTOSMsg{}, ErrBadHeader
	}
	return CTOSMsg{Type: CTOSType(frame[2]), Body: frame[3:]}, nil
}

// EncodeCTOS builds a client frame, used by clients and tests.
func EncodeCTOS(t CTOSType, body []byte) []byte {
	b := make([]byte, 3+len(body))
	binary.LittleEndian.PutUint16(b, uint16(len(body)+1))
	b[2] = uint8(t)
	copy(b[3:], body)
	return b
}

func (m CTOSMsg) PlayerName() (string, error) {
	if len(m.Body) < nameUnits*2 {
		return "", ErrShortBody
	}
	return DecodeUTF16(m.Body[:nameUnits*2]), nil
}

// CreateGameRequest is the host's room request.
type CreateGameRequest struct {
	Info  HostInfo
	Name  string
	Pass  string
	Notes string
}

const createGameSize = HostInfoSize + nameUnits*2*2 + notesBytes

func (m CTOSMsg) CreateGame() (CreateGameRequest, error) {
	if len(m.Body) < createGameSize {
		return CreateGameRequest{}, ErrShortBody
	}
	info, err := DecodeHostInfo(m.Body)
	if err != nil {
		return CreateGameRequest{}, err
	}
	b := m.Body[HostInfoSize:]
	notes := b[nameUnits*4 : nameUnits*4+notesBytes]
	for i, c := range notes {
		if c == 0 {
			notes = notes[:i]
			break
		}
	}
	return CreateGameRequest{
		Info:  info,
		Name:  DecodeUTF16(b[:nameUnits*2]),
		Pass:  DecodeUTF16(b[nameUnits*2 : nameUnits*4]),
		Notes: string(notes),
	}, nil
}

// EncodeCreateGame is the inverse of CreateGame.
func EncodeCreateGame(req CreateGameRequest) []byte {
	b := make([]byte, 0, createGameSize)
	b = append(b, req.Info.Encode()...)
	b = append(b, EncodeUTF16(req.Name, nameUnits)...)
	b = append(b, EncodeUTF16(req.Pass, nameUnits)...)
	notes := make([]byte, notesBytes)
	copy(notes[:notesBytes-1], req.Notes)
	return append(b, notes...)
}

// JoinGameRequest asks to enter an existing room.
type JoinGameRequest struct {
	Version uint16
	ID      uint32
	Pass    string
}

const joinGameSize = 8 + nameUnits*2

func (m CTOSMsg) JoinGame() (JoinGameRequest, error) {
	if len(m.Body) < joinGameSize {
		return JoinGameRequest{}, ErrShortBody
	}
	le := binary.LittleEndian
	return JoinGameRequest{
		Version: le.Uint16(m.Body[0:]),
		ID:      le.Uint32(m.Body[4:]),
		Pass:    DecodeUTF16(m.Body[8 : 8+nameUnits*2]),
	}, nil
}

func EncodeJoinGame(req JoinGameRequest) []byte {
	b := make([]byte, 8, joinGameSize)
	binary.LittleEndian.PutUint16(b[0:], req.Version)
	binary.LittleEndian.PutUint32(b[4:], req.ID)
	return append(b, EncodeUTF16(req.Pass, nameUnits)...)
}

// UpdateDeck decodes main_count, side_count and the codes that follow.
func (m CTOSMsg) UpdateDeck() (main, side []uint32, err error) {
	if len(m.Body) < 8 {
		return nil, nil, ErrShortBody
	}
	le := binary.LittleEndian
	mainCount := uint64(le.Uint32(m.Body[0:]))
	sideCount := uint64(le.Uint32(m.Body[4:]))
	if (mainCount+sideCount)*4 > uint64(len(m.Body)-8) {
		return nil, nil, fmt.Errorf("%w: %d+%d codes declared", ErrShortBody, mainCount, sideCount)
	}
	p := m.Body[8:]
	main = make([]uint32, mainCount)
	for i := range main {
		main[i] = le.Uint32(p)
		p = p[4:]
	}
	side = make([]uint32, sideCount)
	for i := range side {
		side[i] = le.Uint32(p)
		p = p[4:]
	}
	return main, side, nil
}

func EncodeUpdateDeck(main, side []uint32) []byte {
	b := binary.LittleEndian.AppendUint32(nil, uint32(len(main)))
	b = binary.LittleEndian.AppendUint32(b, uint32(len(side)))
	for _, c := range main {
		b = binary.LittleEndian.AppendUint32(b, c)
	}
	for _, c := range side {
		b = binary.LittleEndian.AppendUint32(b, c)
	}
	return b
}

// Byte returns the single byte body of HAND_RESULT, TP_RESULT, TRY_KICK
// and REMATCH_RESPONSE.
func (m CTOSMsg) Byte() (uint8, error) {
	if len(m.Body) < 1 {
		return 0, ErrShortBody
	}
	return m.Body[0], nil
}

func (m CTOSMsg) ChatText() string {
	b := m.Body
	if len(b) > chatUnits*2 {
		b = b[:chatUnits*2]
	}
	return DecodeUTF16(b)
}
