// Package room runs one duel room: its membership, its session state
// machine and, while a duel is on, the engine duel it drives.
package room

import (
	"context"
	"math/rand/v2"
	"slices"
	"time"

	"go.uber.org/zap"

	"github.com/DoyleJ11/duel-room-server/internal/core"
	"github.com/DoyleJ11/duel-room-server/internal/logging"
	"github.com/DoyleJ11/duel-room-server/internal/ygopro"
)

// Engines hands out an engine binding for one duel. Closing the binding
// returns it.
type Engines interface {
	GetEngine() (core.Binding, error)
}

// ReplaySink stores finished duels.
type ReplaySink interface {
	Save(ctx context.Context, room uint32, data []byte) (uint64, error)
}

// Owner is told when a room has no clients left.
type Owner interface {
	Remove(id uint32)
}

// Config is everything a room is created with.
type Config struct {
	ID       uint32
	Seed     uint64
	Info     ygopro.HostInfo
	Name     string
	Notes    string
	Password string

	Engines Engines
	Cards   ygopro.CardSource
	Scripts core.ScriptSupplier
	Banlist *ygopro.Banlist
	Replays ReplaySink // optional
	Owner   Owner      // optional

	Sink *logging.Sink
	Log  *zap.Logger

	// Clock defaults to time.Now.
	Clock func() time.Time
}

// Room is the state a room keeps across session states. It is only
// touched from the room strand.
type Room struct {
	ctx  context.Context
	cfg  Config
	info ygopro.HostInfo
	log  *zap.Logger
	sink *logging.Sink

	state      State
	duelists   map[ygopro.Position]*Client
	spectators map[*Client]struct{}

	team1First bool
	wins       [2]int
	rng        *rand.Rand
	timers     *Timers
	scripts    *scriptLogger
}

func newRoom(ctx context.Context, cfg Config, post func(Event)) *Room {
	if cfg.Log == nil {
		cfg.Log = zap.NewNop()
	}
	if cfg.Sink == nil {
		cfg.Sink = logging.NewSink(cfg.Log)
	}
	if cfg.Clock == nil {
		cfg.Clock = time.Now
	}
	sink := cfg.Sink.With(zap.Uint32("room", cfg.ID))
	return &Room{
		ctx:        ctx,
		cfg:        cfg,
		info:       cfg.Info,
		log:        cfg.Log.With(zap.Uint32("room", cfg.ID)),
		sink:       sink,
		state:      &Waiting{},
		duelists:   make(map[ygopro.Position]*Client),
		spectators: make(map[*Client]struct{}),
		timers:     NewTimers(post),
		scripts:    newScriptLogger(sink),
	}
}

// State is the active session state.
func (r *Room) State() State { return r.state }

// Dispatch runs ev through the active state, then installs every state it
// leads to, running each one's enter handler.
func (r *Room) Dispatch(ev Event) {
	if c, ok := ev.(Chat); ok {
		r.chat(c)
		return
	}
	if cl, ok := ev.(Close); ok {
		switch r.state.(type) {
		case *Waiting, *Closing:
		default:
			if cl.Reply != nil {
				cl.Reply <- false
			}
			return
		}
	}
	next := r.handle(ev)
	for next != nil {
		r.log.Debug("state change",
			zap.String("from", stateName(r.state)),
			zap.String("to", stateName(next)))
		r.state = next
		next = r.enter(next)
	}
}

func (r *Room) handle(ev Event) State {
	switch s := r.state.(type) {
	case *Waiting:
		return r.onWaiting(s, ev)
	case *RockPaperScissor:
		return r.onRPS(s, ev)
	case *ChoosingTurn:
		return r.onChoosingTurn(s, ev)
	case *Dueling:
		return r.onDueling(s, ev)
	case *Sidedecking:
		return r.onSidedecking(s, ev)
	case *Rematching:
		return r.onRematching(s, ev)
	case *Closing:
		return r.onClosing(s, ev)
	}
	return nil
}

func (r *Room) enter(s State) State {
	switch s := s.(type) {
	case *RockPaperScissor:
		return r.enterRPS(s)
	case *ChoosingTurn:
		return r.enterChoosingTurn(s)
	case *Dueling:
		return r.enterDueling(s)
	case *Sidedecking:
		return r.enterSidedecking(s)
	case *Rematching:
		return r.enterRematching(s)
	case *Closing:
		return r.enterClosing(s)
	}
	return nil
}

// Membership.

func (r *Room) isDuelist(c *Client) bool {
	return !c.pos.IsSpectator() && r.duelists[c.pos] == c
}

func (r *Room) isSpectator(c *Client) bool {
	_, ok := r.spectators[c]
	return ok
}

func (r *Room) enc(p ygopro.Position) uint8 {
	return ygopro.EncodePosition(p, r.info.T0Count)
}

func (r *Room) teamSize(team uint8) int {
	n := 0
	for p := range r.duelists {
		if p.Team == team {
			n++
		}
	}
	return n
}

// seats lists the occupied seats in team then slot order.
func (r *Room) seats() []ygopro.Position {
	out := make([]ygopro.Position, 0, len(r.duelists))
	for p := range r.duelists {
		out = append(out, p)
	}
	slices.SortFunc(out, func(a, b ygopro.Position) int {
		if a.Team != b.Team {
			return int(a.Team) - int(b.Team)
		}
		return int(a.Slot) - int(b.Slot)
	})
	return out
}

// tryEmplaceDuelist seats c at the first free seat at or after hint,
// wrapping to the first seat of the room when hint was not the start.
func (r *Room) tryEmplaceDuelist(c *Client, hint ygopro.Position) bool {
	fill := func(team, from uint8, count int32) bool {
		for s := from; int32(s) < count; s++ {
			p := ygopro.Position{Team: team, Slot: s}
			if _, taken := r.duelists[p]; !taken {
				r.duelists[p] = c
				c.pos = p
				return true
			}
		}
		return false
	}
	if hint.Team == 0 && fill(0, hint.Slot, r.info.T0Count) {
		return true
	}
	var from uint8
	if hint.Team == 1 {
		from = hint.Slot
	}
	if hint.Team <= 1 && fill(1, from, r.info.T1Count) {
		return true
	}
	if hint != (ygopro.Position{}) {
		return r.tryEmplaceDuelist(c, ygopro.Position{})
	}
	return false
}

func (r *Room) addSpectator(c *Client) {
	c.pos = ygopro.SpectatorPos
	r.spectators[c] = struct{}{}
}

// Sending.

func (r *Room) sendToTeam(team uint8, m ygopro.STOCMsg) {
	for p, c := range r.duelists {
		if p.Team == team {
			c.Send(m)
		}
	}
}

func (r *Room) sendToSpectators(m ygopro.STOCMsg) {
	if d, ok := r.state.(*Dueling); ok {
		d.spectatorCache = append(d.spectatorCache, m)
	}
	for c := range r.spectators {
		c.Send(m)
	}
}

func (r *Room) sendToDuelists(m ygopro.STOCMsg) {
	for _, c := range r.duelists {
		c.Send(m)
	}
}

func (r *Room) sendToAll(m ygopro.STOCMsg) {
	r.sendToDuelists(m)
	r.sendToSpectators(m)
}

// Engine and room teams differ when team 1 goes first.

func (r *Room) engineTeam(team uint8) uint8 {
	if r.team1First {
		return team ^ 1
	}
	return team
}

func (r *Room) roomTeam(engineTeam uint8) uint8 { return r.engineTeam(engineTeam) }

// forfeit ends a match that lost a duelist outside of a duel: the other
// team is told it won by connection loss.
func (r *Room) forfeit(lost uint8) State {
	win := []byte{ygopro.MsgWin, r.engineTeam(lost ^ 1), ygopro.WinReasonConnectionLost}
	r.sendToAll(ygopro.GameMsg(win))
	r.sendToAll(ygopro.DuelEnd())
	return &Closing{}
}

// shutdown releases everything the room holds. Used when the room is torn
// down from outside.
func (r *Room) shutdown() {
	r.timers.Stop()
	if d, ok := r.state.(*Dueling); ok {
		r.releaseEngine(d)
	}
	for _, c := range r.duelists {
		c.Disconnect()
	}
	for c := range r.spectators {
		c.Disconnect()
	}
	clear(r.duelists)
	clear(r.spectators)
	r.state = &Closing{}
}
