package room

import "github.com/DoyleJ11/duel-room-server/internal/ygopro"

func (r *Room) enterChoosingTurn(s *ChoosingTurn) State {
	if s.Chooser == nil {
		return &Closing{}
	}
	s.Chooser.Send(ygopro.SelectTP())
	return nil
}

func (r *Room) onChoosingTurn(s *ChoosingTurn, ev Event) State {
	switch e := ev.(type) {
	case Join:
		r.addSpectator(e.Client)
		e.Client.Send(ygopro.DuelStart())
	case ConnectionLost:
		return r.leaveBeforeDuel(e.Client)
	case ChooseTurn:
		if e.Client != s.Chooser {
			return nil
		}
		team := s.Chooser.pos.Team
		r.team1First = (team == 0 && !e.GoingFirst) || (team == 1 && e.GoingFirst)
		return &Dueling{}
	}
	return nil
}
