package room

import "github.com/DoyleJ11/duel-room-server/internal/ygopro"

func (r *Room) enterRematching(s *Rematching) State {
	s.Answered = make(map[*Client]bool)
	r.sendToDuelists(ygopro.AskRematch())
	r.sendToSpectators(ygopro.RematchWait())
	return nil
}

func (r *Room) onRematching(s *Rematching, ev Event) State {
	switch e := ev.(type) {
	case Join:
		r.addSpectator(e.Client)
		e.Client.Send(ygopro.DuelStart())
	case ConnectionLost:
		if r.isDuelist(e.Client) {
			delete(r.duelists, e.Client.pos)
			return &Closing{}
		}
		delete(r.spectators, e.Client)
	case Rematch:
		c := e.Client
		if !r.isDuelist(c) || s.Answered[c] {
			return nil
		}
		if !e.Answer {
			return &Closing{}
		}
		s.Answered[c] = true
		c.Send(ygopro.RematchWait())
		if len(s.Answered) < len(r.duelists) {
			return nil
		}
		r.wins = [2]int{}
		for _, d := range r.duelists {
			d.current = nil
		}
		r.sendToAll(ygopro.DuelStart())
		return &ChoosingTurn{Chooser: s.Chooser}
	}
	return nil
}
