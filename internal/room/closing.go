package room

func (r *Room) enterClosing(*Closing) State {
	r.timers.Stop()
	for _, c := range r.duelists {
		c.DeferredDisconnect()
	}
	for c := range r.spectators {
		c.DeferredDisconnect()
	}
	clear(r.duelists)
	clear(r.spectators)
	return nil
}

func (r *Room) onClosing(_ *Closing, ev Event) State {
	switch e := ev.(type) {
	case Join:
		e.Client.Disconnect()
	case ConnectionLost:
		e.Client.Disconnect()
	case Close:
		if e.Reply != nil {
			e.Reply <- true
		}
	}
	return nil
}
