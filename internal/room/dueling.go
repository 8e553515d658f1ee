package room

import (
	"errors"
	"math/rand/v2"
	"slices"
	"time"

	"go.uber.org/zap"

	"github.com/DoyleJ11/duel-room-server/internal/core"
	"github.com/DoyleJ11/duel-room-server/internal/distributor"
	"github.com/DoyleJ11/duel-room-server/internal/logging"
	"github.com/DoyleJ11/duel-room-server/internal/ygopro"
)

// maxRetries is how many invalid responses a duelist gets per request.
const maxRetries = 5

const hintSelectMsg uint8 = 3

// finishReason is why a duel ended.
type finishReason uint8

const (
	reasonWon finishReason = iota
	reasonSurrendered
	reasonTimedOut
	reasonConnectionLost
	reasonWrongResponse
	reasonCoreCrashed
)

func (f finishReason) String() string {
	return [...]string{"won", "surrendered", "timed_out", "connection_lost", "wrong_response", "core_crashed"}[f]
}

func (f finishReason) winReason() uint8 {
	switch f {
	case reasonSurrendered:
		return ygopro.WinReasonSurrendered
	case reasonTimedOut:
		return ygopro.WinReasonTimedOut
	case reasonConnectionLost:
		return ygopro.WinReasonConnectionLost
	case reasonWrongResponse:
		return ygopro.WinReasonWrongResponse
	}
	return ygopro.WinReasonInternalError
}

const draw uint8 = 2

var errNoEngine = errors.New("no engine available")

func (r *Room) enterDueling(d *Dueling) State {
	if r.rng == nil {
		r.rng = rand.New(rand.NewPCG(r.cfg.Seed, uint64(r.cfg.ID)))
	}
	d.lost = make(map[*Client]bool)
	n0, n1 := uint8(r.teamSize(0)), uint8(r.teamSize(1))
	if r.team1First {
		d.current = [2]uint8{n0 - 1, 0}
	} else {
		d.current = [2]uint8{0, n1 - 1}
	}
	limit := time.Duration(r.info.TimeLimitInSeconds) * time.Second
	d.timeLeft = [2]time.Duration{limit, limit}

	if err := r.startDuel(d); err != nil {
		return r.crash(d, err)
	}
	return r.process(d)
}

func (r *Room) startDuel(d *Dueling) error {
	if r.cfg.Engines == nil {
		return errNoEngine
	}
	engine, err := r.cfg.Engines.GetEngine()
	if err != nil {
		return err
	}
	d.engine = engine

	player := core.PlayerOptions{
		StartingLP:        r.info.StartingLP,
		StartingDrawCount: uint32(r.info.StartingDrawCount),
		DrawCountPerTurn:  uint32(r.info.DrawCountPerTurn),
	}
	opts := core.DuelOptions{
		Flags:   uint64(r.info.DuelFlags),
		Team1:   player,
		Team2:   player,
		Cards:   r.cfg.Cards,
		Scripts: r.cfg.Scripts,
		Log:     r.scripts.handle,
	}
	for i := range opts.Seed {
		opts.Seed[i] = r.rng.Uint64()
	}
	if d.duel, err = engine.CreateDuel(opts); err != nil {
		return err
	}
	d.live = true

	if r.cfg.Scripts != nil {
		for _, name := range []string{"constant.lua", "utility.lua"} {
			src, ok := r.cfg.Scripts.Script(name)
			if !ok {
				continue
			}
			if err := engine.LoadScript(d.duel, name, src); err != nil {
				return err
			}
		}
	}

	var extra []uint32
	for _, rc := range ygopro.ExtraRuleCards {
		if r.info.ExtraRules&rc.Rule == 0 {
			continue
		}
		extra = append(extra, rc.Code)
		card := core.NewCardInfo{Code: rc.Code, Pos: ygopro.PosFaceDownDefense}
		if err := engine.AddCard(d.duel, card); err != nil {
			return err
		}
	}
	now := r.cfg.Clock()
	d.replay = ygopro.NewReplay(uint32(now.Unix()), uint32(r.cfg.Seed), r.info, extra)

	for _, p := range r.seats() {
		c := r.duelists[p]
		deck := c.deck()
		if deck == nil {
			deck = &ygopro.Deck{}
		}
		team := r.engineTeam(p.Team)
		main := slices.Clone(deck.Main)
		if r.info.DontShuffleDeck != 0 {
			slices.Reverse(main)
		} else {
			r.rng.Shuffle(len(main), func(i, j int) { main[i], main[j] = main[j], main[i] })
		}
		add := func(codes []uint32, loc uint8) error {
			for _, code := range codes {
				err := engine.AddCard(d.duel, core.NewCardInfo{
					Team:    team,
					Duelist: p.Slot,
					Code:    code,
					Con:     team,
					Loc:     uint32(loc),
					Pos:     ygopro.PosFaceDownDefense,
				})
				if err != nil {
					return err
				}
			}
			return nil
		}
		if err := add(main, ygopro.LocationDeck); err != nil {
			return err
		}
		if err := add(deck.Extra, ygopro.LocationExtra); err != nil {
			return err
		}
		d.replay.AddDuelist(team, p.Slot, ygopro.ReplayDuelist{
			Name:  c.name,
			Main:  main,
			Extra: slices.Clone(deck.Extra),
		})
	}

	if err := engine.StartDuel(d.duel); err != nil {
		return err
	}

	info := distributor.StartInfo{LP: r.info.StartingLP}
	for t := uint8(0); t < 2; t++ {
		deckCount, err := engine.QueryCount(d.duel, t, uint32(ygopro.LocationDeck))
		if err != nil {
			return err
		}
		extraCount, err := engine.QueryCount(d.duel, t, uint32(ygopro.LocationExtra))
		if err != nil {
			return err
		}
		info.DeckCount[t] = uint16(deckCount)
		info.ExtraSize[t] = uint16(extraCount)
	}
	for t := uint8(0); t < 2; t++ {
		r.sendToTeam(t, ygopro.GameMsg(distributor.StartMsg(r.engineTeam(t), info)))
	}
	start := distributor.StartMsg(0, info)
	d.replay.RecordMsg(start)
	r.sendToSpectators(ygopro.GameMsg(start))
	r.log.Info("duel started",
		zap.Int("duelists", len(r.duelists)),
		zap.Bool("team1_first", r.team1First))
	return nil
}

// process advances the engine until it waits for a response or the duel
// ends, distributing everything it produces.
func (r *Room) process(d *Dueling) State {
	for {
		status, err := d.engine.Process(d.duel)
		if err != nil {
			return r.crash(d, err)
		}
		buf, err := d.engine.GetMessages(d.duel)
		if err != nil {
			return r.crash(d, err)
		}
		msgs, err := distributor.Split(buf)
		if err != nil {
			return r.crash(d, err)
		}
		for _, msg := range msgs {
			next, err := r.route(d, msg)
			if err != nil {
				return r.crash(d, err)
			}
			if next != nil {
				return next
			}
		}
		switch status {
		case core.StatusEnd:
			return r.crash(d, errors.New("duel ended without a winner"))
		case core.StatusAwaiting:
			r.armReplier(d)
			return nil
		}
	}
}

func (r *Room) armReplier(d *Dueling) {
	if d.replier == nil || r.info.TimeLimitInSeconds == 0 {
		return
	}
	team := d.replier.pos.Team
	left := d.timeLeft[team]
	r.timers.Arm(team, left)
	r.sendToAll(ygopro.TimeLimit(r.engineTeam(team), uint16(left/time.Second)))
}

// acting is the duelist currently playing for an engine team.
func (r *Room) acting(d *Dueling, engineTeam uint8) *Client {
	team := r.roomTeam(engineTeam)
	return r.duelists[ygopro.Position{Team: team, Slot: d.current[team]}]
}

func (r *Room) route(d *Dueling, msg []byte) (State, error) {
	if len(msg) == 0 {
		return nil, &distributor.MalformedError{Reason: "empty message"}
	}
	tag := msg[0]
	switch tag {
	case ygopro.MsgRetry:
		return r.retry(d), nil
	case ygopro.MsgMatchKill:
		d.replay.RecordMsg(msg)
		d.matchKill = true
		return nil, nil
	}
	d.replay.RecordMsg(msg)

	pre, err := distributor.PreRefresh(msg)
	if err != nil {
		return nil, err
	}
	if err := r.refresh(d, pre); err != nil {
		return nil, err
	}
	if err := r.distribute(d, msg); err != nil {
		return nil, err
	}

	switch {
	case distributor.RequiresAnswer(tag):
		_, team, _ := distributor.Classify(msg)
		d.replier = r.acting(d, team)
		req, err := sentRequest(msg, team)
		if err != nil {
			return nil, err
		}
		d.lastRequest = req
		d.retries[r.roomTeam(team)] = 0
	case tag == ygopro.MsgHint && len(msg) > 1 && msg[1] == hintSelectMsg:
		d.lastHint = slices.Clone(msg)
	case tag == ygopro.MsgTagSwap && len(msg) > 1:
		team := r.roomTeam(msg[1] & 1)
		if next, ok := r.nextLive(d, team); ok {
			d.current[team] = next
		}
	case tag == ygopro.MsgWin && len(msg) > 1:
		return r.finish(d, reasonWon, msg[1]), nil
	}

	post, err := distributor.PostRefresh(msg)
	if err != nil {
		return nil, err
	}
	return nil, r.refresh(d, post)
}

func (r *Room) distribute(d *Dueling, msg []byte) error {
	class, team, err := distributor.Classify(msg)
	if err != nil {
		return err
	}
	switch class {
	case distributor.EveryoneAsIs:
		r.sendToAll(ygopro.GameMsg(msg))
	case distributor.EveryoneStripped:
		for t := uint8(0); t < 2; t++ {
			s, err := distributor.StripForTeam(msg, r.engineTeam(t))
			if err != nil {
				return err
			}
			r.sendToTeam(t, ygopro.GameMsg(s))
		}
		s, err := distributor.StripForTeam(msg, 0)
		if err == nil {
			s, err = distributor.StripForTeam(s, 1)
		}
		if err != nil {
			return err
		}
		r.sendToSpectators(ygopro.GameMsg(s))
	case distributor.SpecificTeam:
		r.sendToTeam(r.roomTeam(team), ygopro.GameMsg(msg))
	case distributor.SpecificTeamDuelist:
		if c := r.acting(d, team); c != nil {
			c.Send(ygopro.GameMsg(msg))
		}
	case distributor.SpecificTeamDuelistStripped:
		s, err := distributor.StripForTeam(msg, team)
		if err != nil {
			return err
		}
		if c := r.acting(d, team); c != nil {
			c.Send(ygopro.GameMsg(s))
		}
	case distributor.EveryoneExceptTeamDuelist:
		m := ygopro.GameMsg(msg)
		skip := r.acting(d, team)
		for _, c := range r.duelists {
			if c != skip {
				c.Send(m)
			}
		}
		r.sendToSpectators(m)
	}
	return nil
}

// refresh runs the queries and sends each result to the owning team with
// hidden cards masked, and filtered further to everyone else. Deck
// contents get the opponent's view for everyone.
func (r *Room) refresh(d *Dueling, refreshes []distributor.Refresh) error {
	for _, rf := range refreshes {
		qi := core.QueryInfo{Flags: rf.Flags, Con: rf.Con, Loc: uint32(rf.Loc), Seq: rf.Seq}
		var full, public []byte
		if rf.Single {
			q, err := d.engine.Query(d.duel, qi)
			if err != nil {
				return err
			}
			if len(q) == 0 {
				continue
			}
			pq, err := distributor.PublicCard(q)
			if err != nil {
				return err
			}
			oq, err := distributor.OwnCard(q)
			if err != nil {
				return err
			}
			full = distributor.UpdateCard(rf.Con, rf.Loc, rf.Seq, oq)
			public = distributor.UpdateCard(rf.Con, rf.Loc, rf.Seq, pq)
		} else {
			q, err := d.engine.QueryLocation(d.duel, qi)
			if err != nil {
				return err
			}
			if len(q) == 0 {
				continue
			}
			pq, err := distributor.PublicLocation(q)
			if err != nil {
				return err
			}
			oq, err := distributor.OwnLocation(q)
			if err != nil {
				return err
			}
			full = distributor.UpdateData(rf.Con, rf.Loc, oq)
			public = distributor.UpdateData(rf.Con, rf.Loc, pq)
		}
		owner := r.roomTeam(rf.Con & 1)
		if rf.Loc == ygopro.LocationDeck {
			full = public
		}
		r.sendToTeam(owner, ygopro.GameMsg(full))
		r.sendToTeam(owner^1, ygopro.GameMsg(public))
		r.sendToSpectators(ygopro.GameMsg(public))
	}
	return nil
}

func (r *Room) retry(d *Dueling) State {
	if d.replier == nil {
		return r.crash(d, errors.New("retry without a pending request"))
	}
	d.replay.PopBackResponse()
	team := d.replier.pos.Team
	d.retries[team]++
	if d.retries[team] > maxRetries {
		return r.finish(d, reasonWrongResponse, r.engineTeam(team^1))
	}
	d.replier.Send(ygopro.GameMsg([]byte{ygopro.MsgRetry}))
	r.resendRequest(d)
	return nil
}

func (r *Room) resendRequest(d *Dueling) {
	if d.lastHint != nil {
		d.replier.Send(ygopro.GameMsg(d.lastHint))
	}
	d.replier.Send(ygopro.GameMsg(d.lastRequest))
}

// sentRequest is the request as its replier received it.
func sentRequest(msg []byte, team uint8) ([]byte, error) {
	if class, _, _ := distributor.Classify(msg); class == distributor.SpecificTeamDuelistStripped {
		return distributor.StripForTeam(msg, team)
	}
	return slices.Clone(msg), nil
}

// nextLive is the slot after the acting one, wrapping, of the first duelist
// on room team team still connected. It may be the acting slot itself.
func (r *Room) nextLive(d *Dueling, team uint8) (uint8, bool) {
	n := r.teamSize(team)
	for i := 1; i <= n; i++ {
		slot := uint8((int(d.current[team]) + i) % n)
		if c := r.duelists[ygopro.Position{Team: team, Slot: slot}]; c != nil && !d.lost[c] {
			return slot, true
		}
	}
	return 0, false
}

func (r *Room) onDueling(d *Dueling, ev Event) State {
	switch e := ev.(type) {
	case Join:
		c := e.Client
		r.addSpectator(c)
		c.Send(ygopro.DuelStart())
		c.Send(ygopro.CatchUp(true))
		for _, m := range d.spectatorCache {
			c.Send(m)
		}
		c.Send(ygopro.CatchUp(false))
	case ConnectionLost:
		c := e.Client
		if r.isSpectator(c) {
			delete(r.spectators, c)
			return nil
		}
		if !r.isDuelist(c) {
			return nil
		}
		d.lost[c] = true
		team := c.pos.Team
		next, ok := r.nextLive(d, team)
		if !ok {
			return r.finish(d, reasonConnectionLost, r.engineTeam(team^1))
		}
		if d.current[team] == c.pos.Slot {
			d.current[team] = next
			if d.replier == c {
				d.replier = r.duelists[ygopro.Position{Team: team, Slot: next}]
				r.resendRequest(d)
			}
		}
		return nil
	case Response:
		if e.Client != d.replier {
			return nil
		}
		team := e.Client.pos.Team
		if r.info.TimeLimitInSeconds != 0 {
			d.timeLeft[team] = r.timers.Remaining(team)
			r.timers.Cancel(team)
		}
		d.replay.RecordResponse(e.Data)
		if err := d.engine.SetResponse(d.duel, e.Data); err != nil {
			return r.crash(d, err)
		}
		return r.process(d)
	case Surrender:
		if !r.isDuelist(e.Client) {
			return nil
		}
		return r.finish(d, reasonSurrendered, r.engineTeam(e.Client.pos.Team^1))
	case TimerExpired:
		if !r.timers.Current(e.Team, e.Gen) || d.replier == nil || d.replier.pos.Team != e.Team {
			return nil
		}
		return r.finish(d, reasonTimedOut, r.engineTeam(e.Team^1))
	}
	return nil
}

func (r *Room) crash(d *Dueling, err error) State {
	r.log.Error("duel aborted", zap.Error(err))
	r.sink.Log(logging.CategoryCoreError, err.Error())
	if dbg := r.scripts.flushDebug(); dbg != "" {
		r.sink.Log(logging.CategoryCoreError, dbg)
	}
	return r.finish(d, reasonCoreCrashed, draw)
}

// finish ends the duel. winner is an engine team, or draw.
func (r *Room) finish(d *Dueling, reason finishReason, winner uint8) State {
	r.timers.Stop()
	if reason == reasonCoreCrashed {
		winner = draw
	}
	if reason != reasonWon {
		win := []byte{ygopro.MsgWin, winner, reason.winReason()}
		if d.replay != nil {
			d.replay.RecordMsg(win)
		}
		r.sendToAll(ygopro.GameMsg(win))
	}
	r.sendToAll(ygopro.DuelEnd())
	r.releaseEngine(d)

	if d.replay != nil {
		data := d.replay.Serialize()
		if r.cfg.Replays != nil {
			id, err := r.cfg.Replays.Save(r.ctx, r.cfg.ID, data)
			if err != nil {
				r.log.Warn("replay not saved", zap.Error(err))
			} else {
				r.log.Debug("replay saved", zap.Uint64("replay", id))
			}
		}
		r.sendToAll(ygopro.ReplayMsg(data))
	}

	loser := uint8(1)
	if r.team1First {
		loser = 0
	}
	if winner < draw {
		w := r.roomTeam(winner)
		r.wins[w]++
		loser = w ^ 1
	}
	r.log.Info("duel finished",
		zap.Stringer("reason", reason),
		zap.Uint8("winner", winner),
		zap.Ints("wins", r.wins[:]))

	if reason == reasonConnectionLost {
		return &Closing{}
	}
	chooser := r.duelists[ygopro.Position{Team: loser}]
	needed := r.info.NeededWins()
	if d.matchKill || r.wins[0] >= needed || r.wins[1] >= needed {
		return &Rematching{Chooser: chooser}
	}
	return &Sidedecking{Chooser: chooser}
}

func (r *Room) releaseEngine(d *Dueling) {
	if d.engine == nil {
		return
	}
	if d.live {
		if err := d.engine.DestroyDuel(d.duel); err != nil {
			r.log.Warn("destroy duel", zap.Error(err))
		}
		d.live = false
	}
	if err := d.engine.Close(); err != nil {
		r.log.Warn("release engine", zap.Error(err))
	}
	d.engine = nil
}
