package room

import (
	"context"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap/zaptest"

	"github.com/DoyleJ11/duel-room-server/internal/core"
	"github.com/DoyleJ11/duel-room-server/internal/core/coretest"
	"github.com/DoyleJ11/duel-room-server/internal/ygopro"
)

// testCards knows codes 1..20 as main deck monsters and 100 as a fusion.
type testCards struct{}

func (testCards) DataFromCode(code uint32) (ygopro.CardData, bool) {
	switch {
	case code >= 1 && code <= 20:
		return ygopro.CardData{Code: code, Type: ygopro.TypeMonster | ygopro.TypeNormal}, true
	case code == 100:
		return ygopro.CardData{Code: code, Type: ygopro.TypeMonster | ygopro.TypeFusion}, true
	}
	return ygopro.CardData{}, false
}

func (c testCards) ExtraFromCode(code uint32) (ygopro.CardExtra, bool) {
	_, ok := c.DataFromCode(code)
	return ygopro.CardExtra{Scope: ygopro.ScopeOCGTCG}, ok
}

// testMain is a legal 40 card main deck.
func testMain() []uint32 {
	var main []uint32
	for code := uint32(1); code <= 13; code++ {
		main = append(main, code, code, code)
	}
	return append(main, 14)
}

type engines struct {
	mu      sync.Mutex
	steps   []coretest.Step
	prepare func(*coretest.Fake)
	made    []*coretest.Fake
}

func (e *engines) GetEngine() (core.Binding, error) {
	e.mu.Lock()
	defer e.mu.Unlock()
	f := coretest.New(e.steps...)
	if e.prepare != nil {
		e.prepare(f)
	}
	e.made = append(e.made, f)
	return f, nil
}

func (e *engines) last() *coretest.Fake {
	e.mu.Lock()
	defer e.mu.Unlock()
	return e.made[len(e.made)-1]
}

type replays struct {
	mu    sync.Mutex
	saved [][]byte
}

func (s *replays) Save(_ context.Context, _ uint32, data []byte) (uint64, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.saved = append(s.saved, data)
	return uint64(len(s.saved)), nil
}

func defaultInfo() ygopro.HostInfo {
	return ygopro.HostInfo{
		StartingLP:        8000,
		StartingDrawCount: 5,
		DrawCountPerTurn:  1,
		T0Count:           1,
		T1Count:           1,
		BestOf:            1,
	}.Normalize()
}

type fixture struct {
	t       *testing.T
	room    *Room
	eng     *engines
	replays *replays
}

func newFixture(t *testing.T, info ygopro.HostInfo, steps ...coretest.Step) *fixture {
	t.Helper()
	f := &fixture{t: t, eng: &engines{steps: steps}, replays: &replays{}}
	f.room = newRoom(context.Background(), Config{
		ID:      7,
		Seed:    42,
		Info:    info,
		Engines: f.eng,
		Cards:   testCards{},
		Replays: f.replays,
		Log:     zaptest.NewLogger(t),
	}, func(Event) {})
	t.Cleanup(f.room.timers.Stop)
	return f
}

func (f *fixture) join(name string) *Client {
	c := NewClient(name, "127.0.0.1", 512)
	f.room.Dispatch(Join{Client: c})
	return c
}

func (f *fixture) ready(cs ...*Client) {
	for _, c := range cs {
		f.room.Dispatch(UpdateDeck{Client: c, Main: append(testMain(), 100), Side: []uint32{15}})
		f.room.Dispatch(Ready{Client: c, Value: true})
	}
}

// toDueling plays a 1v1 room up to the duel: host wins rock paper
// scissors and chooses whether to go first.
func (f *fixture) toDueling(goFirst bool) (host, guest *Client) {
	host, guest = f.join("host"), f.join("guest")
	f.ready(host, guest)
	f.room.Dispatch(TryStart{Client: host})
	f.room.Dispatch(ChooseRPS{Client: host, Value: ygopro.RPSRock})
	f.room.Dispatch(ChooseRPS{Client: guest, Value: ygopro.RPSScissor})
	f.room.Dispatch(ChooseTurn{Client: host, GoingFirst: goFirst})
	return host, guest
}

func (f *fixture) requireDueling() *Dueling {
	f.t.Helper()
	d, ok := f.room.state.(*Dueling)
	if !ok {
		f.t.Fatalf("want dueling, got %s", stateName(f.room.state))
	}
	return d
}

// drain returns every frame queued for c without blocking.
func drain(c *Client) []ygopro.STOCMsg {
	var out []ygopro.STOCMsg
	for {
		select {
		case m, ok := <-c.out:
			if !ok {
				return out
			}
			out = append(out, m)
		default:
			return out
		}
	}
}

func types(ms []ygopro.STOCMsg) []ygopro.STOCType {
	out := make([]ygopro.STOCType, len(ms))
	for i, m := range ms {
		out[i] = m.Type()
	}
	return out
}

// gameMsgs returns the engine messages carried by GAME_MSG frames.
func gameMsgs(ms []ygopro.STOCMsg) [][]byte {
	var out [][]byte
	for _, m := range ms {
		if m.Type() == ygopro.STOCGameMsg {
			out = append(out, m.Body())
		}
	}
	return out
}

func findGameMsg(ms []ygopro.STOCMsg, tag uint8) []byte {
	for _, b := range gameMsgs(ms) {
		if len(b) > 0 && b[0] == tag {
			return b
		}
	}
	return nil
}

func isClosed(ch <-chan struct{}) bool {
	select {
	case <-ch:
		return true
	default:
		return false
	}
}

func TestWaiting_JoinSeatsAreUnique(t *testing.T) {
	f := newFixture(t, defaultInfo())
	host := f.join("host")
	guest := f.join("guest")
	late := f.join("late")

	assert.Equal(t, ygopro.Position{Team: 0, Slot: 0}, host.pos)
	assert.Equal(t, ygopro.Position{Team: 1, Slot: 0}, guest.pos)
	assert.True(t, late.pos.IsSpectator())
	assert.Len(t, f.room.duelists, 2)
	assert.Len(t, f.room.spectators, 1)

	hostMsgs := types(drain(host))
	require.GreaterOrEqual(t, len(hostMsgs), 2)
	assert.Equal(t, ygopro.STOCCreateGame, hostMsgs[0])
	assert.Equal(t, ygopro.STOCJoinGame, hostMsgs[1])
	assert.NotContains(t, types(drain(guest))[:1], ygopro.STOCCreateGame)

	// a full room has no seat for the spectator
	f.room.Dispatch(ToDuelist{Client: late})
	assert.True(t, late.pos.IsSpectator())

	f.room.Dispatch(ToObserver{Client: guest})
	f.room.Dispatch(ToDuelist{Client: late})
	assert.Equal(t, ygopro.Position{Team: 1, Slot: 0}, late.pos)
	assert.True(t, guest.pos.IsSpectator())

	seen := map[*Client]bool{}
	for p, c := range f.room.duelists {
		assert.Equal(t, p, c.pos)
		assert.False(t, seen[c], "client seated twice")
		seen[c] = true
	}
}

func TestWaiting_ToDuelistMovesToNextFreeSeat(t *testing.T) {
	info := defaultInfo()
	info.T0Count, info.T1Count = 2, 2
	f := newFixture(t, info)
	host := f.join("host")
	f.join("second")
	require.Equal(t, ygopro.Position{Team: 0, Slot: 1}, f.room.duelists[ygopro.Position{Team: 0, Slot: 1}].pos)
	drain(host)

	f.room.Dispatch(ToDuelist{Client: host})
	assert.Equal(t, ygopro.Position{Team: 1, Slot: 0}, host.pos)
	assert.Contains(t, types(drain(host)), ygopro.STOCTypeChange)
}

func TestWaiting_ReadyChecksDeck(t *testing.T) {
	f := newFixture(t, defaultInfo())
	host := f.join("host")
	drain(host)

	f.room.Dispatch(UpdateDeck{Client: host, Main: []uint32{1, 2, 3}})
	f.room.Dispatch(Ready{Client: host, Value: true})
	assert.False(t, host.ready)
	msgs := drain(host)
	require.Len(t, msgs, 1)
	assert.Equal(t, ygopro.STOCErrorMsg, msgs[0].Type())
	assert.Equal(t, ygopro.ErrorKindDeck, msgs[0].Body()[0])

	f.ready(host)
	assert.True(t, host.ready)
}

func TestWaiting_UpdateDeckWhileReadyIsStored(t *testing.T) {
	f := newFixture(t, defaultInfo())
	host := f.join("host")
	f.ready(host)
	require.True(t, host.ready)

	main := append(testMain(), 15)
	f.room.Dispatch(UpdateDeck{Client: host, Main: main, Side: []uint32{16}})
	assert.True(t, host.ready)
	require.NotNil(t, host.original)
	assert.Equal(t, main, host.original.Main)
	assert.Equal(t, []uint32{16}, host.original.Side)
	assert.Empty(t, host.original.Extra)
}

func TestWaiting_KickAndStart(t *testing.T) {
	f := newFixture(t, defaultInfo())
	host, guest := f.join("host"), f.join("guest")

	// only the host kicks, and never itself
	f.room.Dispatch(TryKick{Client: guest, Pos: 0})
	f.room.Dispatch(TryKick{Client: host, Pos: 0})
	require.Len(t, f.room.duelists, 2)

	// not everyone is ready yet
	f.ready(host)
	f.room.Dispatch(TryStart{Client: host})
	_, waiting := f.room.state.(*Waiting)
	require.True(t, waiting)

	f.room.Dispatch(TryKick{Client: host, Pos: 1})
	assert.Len(t, f.room.duelists, 1)
	assert.True(t, isClosed(guest.Killed()))

	// an incomplete room does not start
	f.room.Dispatch(TryStart{Client: host})
	_, waiting = f.room.state.(*Waiting)
	assert.True(t, waiting)
}

func TestWaiting_HostLeavingClosesRoom(t *testing.T) {
	f := newFixture(t, defaultInfo())
	host, guest := f.join("host"), f.join("guest")
	f.room.Dispatch(ConnectionLost{Client: host})

	_, closing := f.room.state.(*Closing)
	require.True(t, closing)
	assert.Empty(t, f.room.duelists)
	// the guest is hung up only after its queue drains
	assert.False(t, isClosed(guest.Killed()))
	drain(guest)
	_, open := <-guest.Outbox()
	assert.False(t, open)

	late := NewClient("late", "", 4)
	f.room.Dispatch(Join{Client: late})
	assert.True(t, isClosed(late.Killed()))
}

func TestRelayStartCompactsTeams(t *testing.T) {
	info := defaultInfo()
	info.T0Count, info.T1Count = 2, 2
	info.DuelFlags |= uint32(ygopro.DuelRelay)
	f := newFixture(t, info)
	host := f.join("host")
	second := f.join("second")
	third := f.join("third")
	f.room.Dispatch(ToObserver{Client: second})
	require.Equal(t, ygopro.Position{Team: 1, Slot: 0}, third.pos)
	f.room.Dispatch(ToDuelist{Client: third})
	require.Equal(t, ygopro.Position{Team: 1, Slot: 1}, third.pos)

	f.ready(host, third)
	f.room.Dispatch(TryStart{Client: host})
	_, rps := f.room.state.(*RockPaperScissor)
	require.True(t, rps)
	assert.Equal(t, ygopro.Position{Team: 1, Slot: 0}, third.pos)
}

func TestMatchScenario(t *testing.T) {
	f := newFixture(t, defaultInfo(),
		coretest.Step{Messages: [][]byte{{ygopro.MsgSelectIdleCmd, 0}}, Status: core.StatusAwaiting},
		coretest.Step{Messages: [][]byte{{ygopro.MsgWin, 0, 0}}, Status: core.StatusEnd},
	)
	host, guest := f.join("host"), f.join("guest")
	f.ready(host, guest)
	drain(host)
	drain(guest)

	f.room.Dispatch(TryStart{Client: host})
	_, ok := f.room.state.(*RockPaperScissor)
	require.True(t, ok)
	assert.Equal(t, []ygopro.STOCType{ygopro.STOCDuelStart, ygopro.STOCChooseRPS}, types(drain(host)))
	drain(guest)

	// an out of range choice is ignored
	f.room.Dispatch(ChooseRPS{Client: host, Value: 9})
	f.room.Dispatch(ChooseRPS{Client: host, Value: ygopro.RPSRock})
	f.room.Dispatch(ChooseRPS{Client: guest, Value: ygopro.RPSScissor})
	ct, ok := f.room.state.(*ChoosingTurn)
	require.True(t, ok)
	assert.Same(t, host, ct.Chooser)
	hostMsgs := drain(host)
	require.Equal(t, []ygopro.STOCType{ygopro.STOCHandResult, ygopro.STOCSelectTP}, types(hostMsgs))
	assert.Equal(t, []byte{ygopro.RPSRock, ygopro.RPSScissor}, hostMsgs[0].Body())
	assert.Equal(t, []byte{ygopro.RPSScissor, ygopro.RPSRock}, drain(guest)[0].Body())

	f.room.Dispatch(ChooseTurn{Client: guest, GoingFirst: true})
	_, ok = f.room.state.(*ChoosingTurn)
	require.True(t, ok, "only the chooser answers")

	f.room.Dispatch(ChooseTurn{Client: host, GoingFirst: true})
	d, ok := f.room.state.(*Dueling)
	require.True(t, ok)
	assert.False(t, f.room.team1First)
	assert.Same(t, host, d.replier)

	eng := f.eng.last()
	assert.True(t, eng.Started())
	assert.Len(t, eng.Cards(), 82)

	hostMsgs = drain(host)
	start := findGameMsg(hostMsgs, ygopro.MsgStart)
	require.NotNil(t, start)
	assert.Equal(t, uint8(0), start[1])
	assert.Equal(t, []byte{ygopro.MsgSelectIdleCmd, 0}, findGameMsg(hostMsgs, ygopro.MsgSelectIdleCmd))
	guestMsgs := drain(guest)
	assert.Equal(t, uint8(1), findGameMsg(guestMsgs, ygopro.MsgStart)[1])
	assert.Nil(t, findGameMsg(guestMsgs, ygopro.MsgSelectIdleCmd))

	// only the replier may answer
	f.room.Dispatch(Response{Client: guest, Data: []byte{9}})
	assert.Empty(t, eng.Responses())

	f.room.Dispatch(Response{Client: host, Data: []byte{1, 0, 0, 0}})
	assert.Equal(t, [][]byte{{1, 0, 0, 0}}, eng.Responses())

	_, ok = f.room.state.(*Rematching)
	require.True(t, ok)
	assert.Equal(t, [2]int{1, 0}, f.room.wins)
	assert.True(t, eng.Closed())
	assert.Equal(t, 1, eng.Destroyed())
	require.Len(t, f.replays.saved, 1)

	for _, c := range []*Client{host, guest} {
		got := types(drain(c))
		assert.Contains(t, got, ygopro.STOCDuelEnd)
		assert.Contains(t, got, ygopro.STOCReplay)
		assert.Contains(t, got, ygopro.STOCRematch)
	}

	f.room.Dispatch(Rematch{Client: host, Answer: true})
	f.room.Dispatch(Rematch{Client: guest, Answer: true})
	ct, ok = f.room.state.(*ChoosingTurn)
	require.True(t, ok)
	assert.Same(t, guest, ct.Chooser)
	assert.Equal(t, [2]int{}, f.room.wins)
}

func TestDueling_TeamsSwapWhenTeamOneGoesFirst(t *testing.T) {
	f := newFixture(t, defaultInfo())
	host, guest := f.toDueling(false)
	d := f.requireDueling()
	require.True(t, f.room.team1First)
	assert.Equal(t, [2]uint8{0, 0}, d.current)

	assert.Equal(t, uint8(1), findGameMsg(drain(host), ygopro.MsgStart)[1])
	assert.Equal(t, uint8(0), findGameMsg(drain(guest), ygopro.MsgStart)[1])
}

func TestDueling_EngineFaultCrashesToSidedecking(t *testing.T) {
	f := newFixture(t, defaultInfo())
	f.eng.prepare = func(fk *coretest.Fake) { fk.Fail("process") }
	host, guest := f.toDueling(true)

	_, ok := f.room.state.(*Sidedecking)
	require.True(t, ok, "got %s", stateName(f.room.state))
	assert.Equal(t, [2]int{}, f.room.wins)
	assert.True(t, f.eng.last().Closed())

	for _, c := range []*Client{host, guest} {
		msgs := drain(c)
		assert.Equal(t, []byte{ygopro.MsgWin, draw, ygopro.WinReasonInternalError},
			findGameMsg(msgs, ygopro.MsgWin))
		assert.Contains(t, types(msgs), ygopro.STOCDuelEnd)
		assert.Contains(t, types(msgs), ygopro.STOCChangeSide)
	}
}

func TestDueling_Surrender(t *testing.T) {
	f := newFixture(t, defaultInfo(),
		coretest.Step{Messages: [][]byte{{ygopro.MsgSelectIdleCmd, 0}}, Status: core.StatusAwaiting})
	host, guest := f.toDueling(true)
	f.requireDueling()
	drain(guest)

	f.room.Dispatch(Surrender{Client: host})
	assert.Equal(t, []byte{ygopro.MsgWin, 1, ygopro.WinReasonSurrendered},
		findGameMsg(drain(guest), ygopro.MsgWin))
	assert.Equal(t, [2]int{0, 1}, f.room.wins)
	_, ok := f.room.state.(*Rematching)
	assert.True(t, ok)
}

func TestDueling_TimerGenerations(t *testing.T) {
	info := defaultInfo()
	info.TimeLimitInSeconds = 180
	f := newFixture(t, info,
		coretest.Step{Messages: [][]byte{{ygopro.MsgSelectIdleCmd, 0}}, Status: core.StatusAwaiting})
	host, _ := f.toDueling(true)
	f.requireDueling()
	assert.Contains(t, types(drain(host)), ygopro.STOCTimeLimit)

	gen := f.room.timers.gen[0]
	require.True(t, f.room.timers.Current(0, gen))

	// stale and wrong-team expiries are dropped
	f.room.Dispatch(TimerExpired{Team: 0, Gen: gen - 1})
	f.room.Dispatch(TimerExpired{Team: 1, Gen: f.room.timers.gen[1]})
	_, ok := f.room.state.(*Dueling)
	require.True(t, ok)
	assert.Empty(t, drain(host))

	f.room.Dispatch(TimerExpired{Team: 0, Gen: gen})
	assert.Equal(t, []byte{ygopro.MsgWin, 1, ygopro.WinReasonTimedOut},
		findGameMsg(drain(host), ygopro.MsgWin))
}

func TestDueling_RetryLimit(t *testing.T) {
	steps := []coretest.Step{{Messages: [][]byte{{ygopro.MsgSelectIdleCmd, 0}}, Status: core.StatusAwaiting}}
	for i := 0; i <= maxRetries; i++ {
		steps = append(steps, coretest.Step{Messages: [][]byte{{ygopro.MsgRetry}}, Status: core.StatusAwaiting})
	}
	f := newFixture(t, defaultInfo(), steps...)
	host, _ := f.toDueling(true)
	f.requireDueling()
	drain(host)

	for i := 0; i < maxRetries; i++ {
		f.room.Dispatch(Response{Client: host, Data: []byte{0xFF}})
		msgs := gameMsgs(drain(host))
		require.Len(t, msgs, 2, "retry %d", i)
		assert.Equal(t, []byte{ygopro.MsgRetry}, msgs[0])
		assert.Equal(t, []byte{ygopro.MsgSelectIdleCmd, 0}, msgs[1])
	}
	f.room.Dispatch(Response{Client: host, Data: []byte{0xFF}})
	assert.Equal(t, []byte{ygopro.MsgWin, 1, ygopro.WinReasonWrongResponse},
		findGameMsg(drain(host), ygopro.MsgWin))
}

func TestDueling_StrippedAndSpectatorCatchUp(t *testing.T) {
	// player 0 draws two cards, face-down for the opponent
	drawMsg := []byte{ygopro.MsgDraw, 0, 2, 0, 0, 0,
		5, 0, 0, 0, 0x0A, 0, 0, 0,
		6, 0, 0, 0, 0x0A, 0, 0, 0}
	f := newFixture(t, defaultInfo(),
		coretest.Step{Messages: [][]byte{drawMsg, {ygopro.MsgSelectIdleCmd, 0}}, Status: core.StatusAwaiting})
	host, guest := f.toDueling(true)
	f.requireDueling()

	assert.Equal(t, drawMsg, findGameMsg(drain(host), ygopro.MsgDraw))
	stripped := findGameMsg(drain(guest), ygopro.MsgDraw)
	require.NotNil(t, stripped)
	assert.Equal(t, []byte{0, 0, 0, 0}, stripped[6:10])

	late := f.join("late")
	msgs := drain(late)
	got := types(msgs)
	require.GreaterOrEqual(t, len(got), 3)
	assert.Equal(t, ygopro.STOCDuelStart, got[0])
	assert.Equal(t, ygopro.CatchUp(true), msgs[1])
	assert.Equal(t, ygopro.CatchUp(false), msgs[len(msgs)-1])
	assert.NotNil(t, findGameMsg(msgs, ygopro.MsgStart))
	specDraw := findGameMsg(msgs, ygopro.MsgDraw)
	require.NotNil(t, specDraw)
	assert.Equal(t, []byte{0, 0, 0, 0}, specDraw[6:10])
	assert.Nil(t, findGameMsg(msgs, ygopro.MsgSelectIdleCmd))
}

func TestDueling_ConnectionLostEndsMatch(t *testing.T) {
	f := newFixture(t, defaultInfo())
	host, guest := f.toDueling(true)
	f.requireDueling()
	drain(host)

	f.room.Dispatch(ConnectionLost{Client: guest})
	assert.Equal(t, []byte{ygopro.MsgWin, 0, ygopro.WinReasonConnectionLost},
		findGameMsg(drain(host), ygopro.MsgWin))
	_, closing := f.room.state.(*Closing)
	assert.True(t, closing)
}

func TestSidedecking_Equivalence(t *testing.T) {
	f := newFixture(t, defaultInfo())
	f.eng.prepare = func(fk *coretest.Fake) { fk.Fail("process") }
	host, guest := f.toDueling(true)
	_, ok := f.room.state.(*Sidedecking)
	require.True(t, ok)
	drain(host)
	drain(guest)

	// a card that was never in the deck
	bad := append(testMain()[:39], 20, 100)
	f.room.Dispatch(UpdateDeck{Client: host, Main: bad, Side: []uint32{15}})
	assert.Equal(t, []ygopro.STOCType{ygopro.STOCErrorMsg}, types(drain(host)))

	// swapping a main card with the side card keeps the pool
	swapped := append(testMain()[:39], 15, 100)
	f.room.Dispatch(UpdateDeck{Client: host, Main: swapped, Side: []uint32{14}})
	assert.Equal(t, []ygopro.STOCType{ygopro.STOCDuelStart}, types(drain(host)))
	require.NotNil(t, host.current)
	assert.Contains(t, host.current.Main, uint32(15))

	// a second submission is a no-op
	f.room.Dispatch(UpdateDeck{Client: host, Main: bad, Side: []uint32{15}})
	assert.Empty(t, drain(host))

	f.room.Dispatch(UpdateDeck{Client: guest, Main: append(testMain(), 100), Side: []uint32{15}})
	ct, ok := f.room.state.(*ChoosingTurn)
	require.True(t, ok)
	// a drawn duel lets the team that went second choose
	assert.Same(t, guest, ct.Chooser)
}

func TestUnhandledEventsAreNoOps(t *testing.T) {
	f := newFixture(t, defaultInfo())
	host, guest := f.join("host"), f.join("guest")
	drain(host)
	drain(guest)

	events := []Event{
		ChooseRPS{Client: host, Value: 1},
		ChooseTurn{Client: host},
		Response{Client: host},
		Surrender{Client: guest},
		Rematch{Client: guest, Answer: true},
		TimerExpired{Team: 0, Gen: 1},
	}
	for _, ev := range events {
		f.room.Dispatch(ev)
		_, waiting := f.room.state.(*Waiting)
		require.True(t, waiting, "%T changed state", ev)
	}
	assert.Empty(t, drain(host))
	assert.Empty(t, drain(guest))

	f.room.Dispatch(TryStart{Client: host})
	f.ready(host, guest)
	f.room.Dispatch(TryStart{Client: host})
	drain(host)
	for _, ev := range []Event{Ready{Client: host, Value: false}, TryKick{Client: host, Pos: 1}, Surrender{Client: host}} {
		f.room.Dispatch(ev)
		_, rps := f.room.state.(*RockPaperScissor)
		require.True(t, rps, "%T changed state", ev)
	}
	assert.Empty(t, drain(host))
}

func TestChat(t *testing.T) {
	f := newFixture(t, defaultInfo())
	host, guest, obs := f.join("host"), f.join("guest"), f.join("obs")
	drain(host)
	drain(guest)
	drain(obs)

	f.room.Dispatch(Chat{Client: guest, Text: "gl"})
	want := ygopro.Chat(1, "gl")
	for _, c := range []*Client{host, guest, obs} {
		assert.Equal(t, []ygopro.STOCMsg{want}, drain(c))
	}

	f.room.Dispatch(Chat{Client: obs, Text: "hi"})
	assert.Equal(t, []ygopro.STOCMsg{ygopro.Chat(ygopro.ChatSpectator, "[obs]: hi")}, drain(host))
}

func TestClient_SlowClientIsDropped(t *testing.T) {
	c := NewClient("slow", "", 1)
	c.Send(ygopro.DuelStart())
	c.Send(ygopro.DuelEnd())

	if !isClosed(c.Killed()) {
		t.Fatalf("full outbox should kill the client")
	}
	msgs := drain(c)
	if len(msgs) != 1 {
		t.Fatalf("want the one queued frame, got %d", len(msgs))
	}
	c.Send(ygopro.DuelStart())
	c.Disconnect()
}

func TestTimers_ExpiryCarriesGeneration(t *testing.T) {
	fired := make(chan Event, 4)
	tm := NewTimers(func(ev Event) { fired <- ev })
	defer tm.Stop()

	first := tm.Arm(1, time.Hour)
	second := tm.Arm(1, 5*time.Millisecond)
	if first == second {
		t.Fatalf("re-arming must bump the generation")
	}
	select {
	case ev := <-fired:
		te := ev.(TimerExpired)
		if te.Team != 1 || te.Gen != second {
			t.Fatalf("unexpected expiry %+v", te)
		}
		if !tm.Current(1, te.Gen) || tm.Current(1, first) {
			t.Fatalf("generation check is wrong")
		}
	case <-time.After(time.Second):
		t.Fatalf("timer never fired")
	}

	tm.Cancel(1)
	tm.Cancel(1)
	if tm.Current(1, second) {
		t.Fatalf("cancelled arm is still current")
	}
	if tm.Remaining(1) != 0 {
		t.Fatalf("cancelled timer has time left")
	}
}

func TestDuelSeed_FollowsRoomSeed(t *testing.T) {
	seedOf := func(seed uint64) [4]uint64 {
		f := newFixture(t, defaultInfo())
		f.room.cfg.Seed = seed
		var got [4]uint64
		f.eng.prepare = func(fk *coretest.Fake) {
			fk.OnCreate = func(o core.DuelOptions) { got = o.Seed }
		}
		f.toDueling(true)
		f.requireDueling()
		return got
	}
	assert.Equal(t, seedOf(42), seedOf(42))
	// same room id, fresh seed: a recycled id does not repeat shuffles
	assert.NotEqual(t, seedOf(42), seedOf(43))
}

func TestDueling_RelayReplierLostHandsOver(t *testing.T) {
	info := defaultInfo()
	info.T0Count, info.T1Count = 2, 2
	info.DuelFlags |= uint32(ygopro.DuelRelay)
	request := []byte{ygopro.MsgSelectIdleCmd, 0}
	f := newFixture(t, info,
		coretest.Step{Messages: [][]byte{request}, Status: core.StatusAwaiting},
		coretest.Step{Messages: [][]byte{request}, Status: core.StatusAwaiting})
	cs := []*Client{f.join("host"), f.join("a"), f.join("b"), f.join("c")}
	f.ready(cs...)
	seat := func(team, slot uint8) *Client {
		t.Helper()
		c := f.room.duelists[ygopro.Position{Team: team, Slot: slot}]
		require.NotNil(t, c, "seat %d/%d", team, slot)
		return c
	}
	actor, mate, rival := seat(0, 0), seat(0, 1), seat(1, 0)

	f.room.Dispatch(TryStart{Client: cs[0]})
	f.room.Dispatch(ChooseRPS{Client: actor, Value: ygopro.RPSRock})
	f.room.Dispatch(ChooseRPS{Client: rival, Value: ygopro.RPSScissor})
	f.room.Dispatch(ChooseTurn{Client: actor, GoingFirst: true})
	d := f.requireDueling()
	require.Same(t, actor, d.replier)
	drain(mate)

	f.room.Dispatch(ConnectionLost{Client: actor})
	d = f.requireDueling()
	assert.Equal(t, uint8(1), d.current[0])
	assert.Same(t, mate, d.replier)
	assert.Equal(t, [][]byte{request}, gameMsgs(drain(mate)))

	f.room.Dispatch(Response{Client: mate, Data: []byte{7}})
	assert.Equal(t, [][]byte{{7}}, f.eng.last().Responses())
}
