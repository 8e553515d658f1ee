package room

import "github.com/DoyleJ11/duel-room-server/internal/ygopro"

func (r *Room) enterSidedecking(s *Sidedecking) State {
	s.Sidedecked = make(map[*Client]bool)
	r.sendToDuelists(ygopro.ChangeSide())
	r.sendToSpectators(ygopro.WaitingSide())
	return nil
}

func (r *Room) onSidedecking(s *Sidedecking, ev Event) State {
	switch e := ev.(type) {
	case Join:
		r.addSpectator(e.Client)
		e.Client.Send(ygopro.WaitingSide())
	case ConnectionLost:
		if r.isDuelist(e.Client) {
			r.sendToAll(ygopro.DuelStart())
		}
		return r.leaveBeforeDuel(e.Client)
	case UpdateDeck:
		c := e.Client
		if !r.isDuelist(c) || s.Sidedecked[c] || c.original == nil {
			return nil
		}
		deck := ygopro.LoadDeck(e.Main, e.Side, r.cfg.Cards)
		if !c.original.SameComposition(deck) {
			c.Send(ygopro.SideError())
			return nil
		}
		c.current = &deck
		s.Sidedecked[c] = true
		c.Send(ygopro.DuelStart())
		if len(s.Sidedecked) < len(r.duelists) {
			return nil
		}
		r.sendToSpectators(ygopro.DuelStart())
		return &ChoosingTurn{Chooser: s.Chooser}
	}
	return nil
}
