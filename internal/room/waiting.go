package room

import (
	"github.com/DoyleJ11/duel-room-server/internal/ygopro"
)

func (r *Room) onWaiting(s *Waiting, ev Event) State {
	switch e := ev.(type) {
	case Join:
		return r.waitingJoin(s, e.Client)
	case ConnectionLost:
		return r.waitingLeave(s, e.Client)
	case ToDuelist:
		r.waitingToDuelist(s, e.Client)
	case ToObserver:
		r.waitingToObserver(s, e.Client)
	case Ready:
		r.waitingReady(e.Client, e.Value)
	case TryKick:
		r.waitingKick(s, e.Client, e.Pos)
	case TryStart:
		return r.waitingStart(s, e.Client)
	case UpdateDeck:
		if !r.isDuelist(e.Client) {
			return nil
		}
		deck := ygopro.LoadDeck(e.Main, e.Side, r.cfg.Cards)
		e.Client.original = &deck
		e.Client.current = nil
	case Close:
		if e.Reply != nil {
			e.Reply <- true
		}
		return &Closing{}
	}
	return nil
}

func (r *Room) typeChange(s *Waiting, c *Client) ygopro.STOCMsg {
	pos := ygopro.SpectatorTypeChangePos
	if !c.pos.IsSpectator() {
		pos = r.enc(c.pos)
	}
	return ygopro.TypeChange(c == s.Host, pos)
}

func (r *Room) waitingJoin(s *Waiting, c *Client) State {
	if s.Host == nil {
		s.Host = c
		c.Send(ygopro.CreateGame(r.cfg.ID))
	}
	c.Send(ygopro.JoinGame(r.info))
	if r.tryEmplaceDuelist(c, ygopro.Position{}) {
		r.sendToAll(ygopro.PlayerEnter(c.name, r.enc(c.pos)))
	} else {
		r.addSpectator(c)
		r.sendToAll(ygopro.WatchChange(len(r.spectators)))
	}
	c.Send(r.typeChange(s, c))
	for _, p := range r.seats() {
		other := r.duelists[p]
		if other == c {
			continue
		}
		c.Send(ygopro.PlayerEnter(other.name, r.enc(p)))
		if other.ready {
			c.Send(ygopro.PlayerChange(r.enc(p), ygopro.PChangeReady))
		}
	}
	if len(r.spectators) > 0 && !r.isSpectator(c) {
		c.Send(ygopro.WatchChange(len(r.spectators)))
	}
	return nil
}

func (r *Room) waitingLeave(s *Waiting, c *Client) State {
	if c == s.Host {
		return &Closing{}
	}
	switch {
	case r.isDuelist(c):
		delete(r.duelists, c.pos)
		r.sendToAll(ygopro.PlayerChange(r.enc(c.pos), ygopro.PChangeLeave))
	case r.isSpectator(c):
		delete(r.spectators, c)
		r.sendToAll(ygopro.WatchChange(len(r.spectators)))
	}
	return nil
}

func (r *Room) waitingToDuelist(s *Waiting, c *Client) {
	switch {
	case r.isSpectator(c):
		if !r.tryEmplaceDuelist(c, ygopro.Position{}) {
			return
		}
		delete(r.spectators, c)
		c.ready = false
		r.sendToAll(ygopro.PlayerEnter(c.name, r.enc(c.pos)))
		r.sendToAll(ygopro.WatchChange(len(r.spectators)))
		c.Send(r.typeChange(s, c))
	case r.isDuelist(c):
		old := c.pos
		delete(r.duelists, old)
		hint := ygopro.Position{Team: old.Team, Slot: old.Slot + 1}
		if !r.tryEmplaceDuelist(c, hint) {
			r.duelists[old] = c
			return
		}
		if c.pos == old {
			return
		}
		c.ready = false
		r.sendToAll(ygopro.PlayerMove(r.enc(old), r.enc(c.pos)))
		r.sendToAll(ygopro.PlayerChange(r.enc(c.pos), ygopro.PChangeNotReady))
		c.Send(r.typeChange(s, c))
	}
}

func (r *Room) waitingToObserver(s *Waiting, c *Client) {
	if !r.isDuelist(c) {
		return
	}
	old := c.pos
	delete(r.duelists, old)
	r.addSpectator(c)
	c.ready = false
	r.sendToAll(ygopro.PlayerChange(r.enc(old), ygopro.PChangeSpectate))
	c.Send(r.typeChange(s, c))
}

func (r *Room) waitingReady(c *Client, value bool) {
	if !r.isDuelist(c) || c.ready == value {
		return
	}
	if value {
		if c.original == nil {
			return
		}
		if r.info.DontCheckDeck == 0 {
			rules := ygopro.RulesFromHostInfo(r.info, r.cfg.Banlist)
			if derr := ygopro.CheckDeck(*c.original, rules, r.cfg.Cards); derr != nil {
				c.Send(ygopro.DeckErrorMsg(derr))
				return
			}
		}
	}
	c.ready = value
	code := ygopro.PChangeNotReady
	if value {
		code = ygopro.PChangeReady
	}
	r.sendToAll(ygopro.PlayerChange(r.enc(c.pos), code))
}

func (r *Room) waitingKick(s *Waiting, c *Client, pos uint8) {
	if c != s.Host {
		return
	}
	p := ygopro.DecodePosition(pos, r.info.T0Count)
	target, ok := r.duelists[p]
	if !ok || target == s.Host {
		return
	}
	delete(r.duelists, p)
	target.Disconnect()
	r.sendToAll(ygopro.PlayerChange(pos, ygopro.PChangeLeave))
}

func (r *Room) waitingStart(s *Waiting, c *Client) State {
	if c != s.Host {
		return nil
	}
	for _, d := range r.duelists {
		if !d.ready {
			return nil
		}
	}
	n0, n1 := r.teamSize(0), r.teamSize(1)
	if r.info.IsRelay() {
		if n0 == 0 || n1 == 0 {
			return nil
		}
		r.compactTeam(s, 0)
		r.compactTeam(s, 1)
	} else if int32(n0) != r.info.T0Count || int32(n1) != r.info.T1Count {
		return nil
	}
	r.sendToAll(ygopro.DuelStart())
	return &RockPaperScissor{}
}

// compactTeam moves a relay team's duelists down to the lowest slots.
func (r *Room) compactTeam(s *Waiting, team uint8) {
	var slot uint8
	for _, p := range r.seats() {
		if p.Team != team {
			continue
		}
		to := ygopro.Position{Team: team, Slot: slot}
		slot++
		if p == to {
			continue
		}
		c := r.duelists[p]
		delete(r.duelists, p)
		r.duelists[to] = c
		c.pos = to
		r.sendToAll(ygopro.PlayerMove(r.enc(p), r.enc(to)))
		c.Send(r.typeChange(s, c))
	}
}
