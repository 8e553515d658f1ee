package room

import (
	"time"

	"github.com/DoyleJ11/duel-room-server/internal/core"
	"github.com/DoyleJ11/duel-room-server/internal/ygopro"
)

// State is the room's session state. Exactly one is active at a time.
type State interface{ isState() }

type Waiting struct {
	Host *Client
}

type RockPaperScissor struct {
	Choices [2]uint8
}

type ChoosingTurn struct {
	Chooser *Client
}

type Dueling struct {
	engine core.Binding
	duel   core.Duel
	live   bool // duel handle not yet destroyed
	replay *ygopro.Replay

	current     [2]uint8 // acting slot per team
	retries     [2]int
	lastHint    []byte
	lastRequest []byte
	replier     *Client
	matchKill   bool
	lost        map[*Client]bool

	spectatorCache []ygopro.STOCMsg
	timeLeft       [2]time.Duration
}

type Sidedecking struct {
	Chooser    *Client
	Sidedecked map[*Client]bool
}

type Rematching struct {
	Chooser  *Client
	Answered map[*Client]bool
}

type Closing struct{}

func (*Waiting) isState()          {}
func (*RockPaperScissor) isState() {}
func (*ChoosingTurn) isState()     {}
func (*Dueling) isState()          {}
func (*Sidedecking) isState()      {}
func (*Rematching) isState()       {}
func (*Closing) isState()          {}

func stateName(s State) string {
	switch s.(type) {
	case *Waiting:
		return "waiting"
	case *RockPaperScissor:
		return "rock_paper_scissor"
	case *ChoosingTurn:
		return "choosing_turn"
	case *Dueling:
		return "dueling"
	case *Sidedecking:
		return "sidedecking"
	case *Rematching:
		return "rematching"
	case *Closing:
		return "closing"
	}
	return "unknown"
}
