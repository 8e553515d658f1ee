package room

import "github.com/DoyleJ11/duel-room-server/internal/ygopro"

func (r *Room) enterRPS(s *RockPaperScissor) State {
	for team := uint8(0); team < 2; team++ {
		if c, ok := r.duelists[ygopro.Position{Team: team}]; ok {
			c.Send(ygopro.ChooseRPS())
		}
	}
	return nil
}

func (r *Room) onRPS(s *RockPaperScissor, ev Event) State {
	switch e := ev.(type) {
	case Join:
		r.addSpectator(e.Client)
		e.Client.Send(ygopro.DuelStart())
	case ConnectionLost:
		return r.leaveBeforeDuel(e.Client)
	case ChooseRPS:
		c := e.Client
		if !r.isDuelist(c) || c.pos.Slot != 0 || e.Value < ygopro.RPSScissor || e.Value > ygopro.RPSPaper {
			return nil
		}
		if s.Choices[c.pos.Team] != 0 {
			return nil
		}
		s.Choices[c.pos.Team] = e.Value
		if s.Choices[0] == 0 || s.Choices[1] == 0 {
			return nil
		}
		return r.resolveRPS(s)
	}
	return nil
}

func (r *Room) resolveRPS(s *RockPaperScissor) State {
	c0, c1 := s.Choices[0], s.Choices[1]
	r.sendToTeam(0, ygopro.HandResult(c0, c1))
	r.sendToTeam(1, ygopro.HandResult(c1, c0))
	r.sendToSpectators(ygopro.HandResult(c0, c1))
	if c0 == c1 {
		return &RockPaperScissor{}
	}
	var winner uint8
	if (c1 == ygopro.RPSRock && c0 == ygopro.RPSScissor) ||
		(c1 == ygopro.RPSPaper && c0 == ygopro.RPSRock) ||
		(c1 == ygopro.RPSScissor && c0 == ygopro.RPSPaper) {
		winner = 1
	}
	return &ChoosingTurn{Chooser: r.duelists[ygopro.Position{Team: winner}]}
}

// leaveBeforeDuel handles a disconnect while no duel is running.
func (r *Room) leaveBeforeDuel(c *Client) State {
	switch {
	case r.isDuelist(c):
		delete(r.duelists, c.pos)
		return r.forfeit(c.pos.Team)
	case r.isSpectator(c):
		delete(r.spectators, c)
	}
	return nil
}
