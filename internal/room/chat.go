package room

import (
	"fmt"

	"github.com/DoyleJ11/duel-room-server/internal/ygopro"
)

// chat relays a message the same way in every state. Duelists speak from
// their seat, spectators through the spectator channel with their name
// inlined.
func (r *Room) chat(e Chat) {
	if e.Text == "" {
		return
	}
	c := e.Client
	switch {
	case r.isDuelist(c):
		r.sendToAll(ygopro.Chat(uint16(r.enc(c.pos)), e.Text))
	case r.isSpectator(c):
		r.sendToAll(ygopro.Chat(ygopro.ChatSpectator, fmt.Sprintf("[%s]: %s", c.name, e.Text)))
	}
}
