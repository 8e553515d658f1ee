package ygopro

import "fmt"

// Position identifies a duelist seat. Spectators hold SpectatorPos.
type Position struct {
	Team uint8
	Slot uint8
}

var SpectatorPos = Position{Team: 0xFF, Slot: 0xFF}

func (p Position) IsSpectator() bool { return p == SpectatorPos }

func (p Position) String() string {
	if p.IsSpectator() {
		return "spectator"
	}
	return fmt.Sprintf("%d:%d", p.Team, p.Slot)
}

// EncodePosition returns the one byte seat used on the wire: team 1 seats
// come after every team 0 seat.
func EncodePosition(p Position, t0Count int32) uint8 {
	return uint8(int32(p.Team)*t0Count + int32(p.Slot))
}

// DecodePosition is the inverse of EncodePosition.
func DecodePosition(b uint8, t0Count int32) Position {
	if int32(b) >= t0Count {
		return Position{Team: 1, Slot: uint8(int32(b) - t0Count)}
	}
	return Position{Team: 0, Slot: b}
}
