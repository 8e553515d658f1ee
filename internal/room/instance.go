package room

import (
	"context"

	"go.uber.org/zap"

	"github.com/DoyleJ11/duel-room-server/internal/ygopro"
)

// Props is what the lobby listing shows for a room.
type Props struct {
	ID         uint32
	Name       string
	Notes      string
	Info       ygopro.HostInfo
	Passworded bool
	Started    bool
	Duelists   map[uint8]string // by wire seat
}

// Instance serializes every event of one room onto a single goroutine.
type Instance struct {
	id       uint32
	password string
	inbox    chan Event
	room     *Room
	clients  map[*Client]struct{}
	owner    Owner
	log      *zap.Logger
	ctx      context.Context
	cancel   context.CancelFunc
	done     chan struct{}
}

func New(parent context.Context, cfg Config) *Instance {
	ctx, cancel := context.WithCancel(parent)
	in := &Instance{
		id:       cfg.ID,
		password: cfg.Password,
		inbox:    make(chan Event, 64),
		clients:  make(map[*Client]struct{}),
		owner:    cfg.Owner,
		ctx:      ctx,
		cancel:   cancel,
		done:     make(chan struct{}),
	}
	in.room = newRoom(ctx, cfg, func(ev Event) { in.Post(ev) })
	in.log = in.room.log

	go in.loop()
	return in
}

func (in *Instance) ID() uint32 { return in.id }

// Done is closed once the room goroutine has exited.
func (in *Instance) Done() <-chan struct{} { return in.done }

func (in *Instance) CheckPassword(pass string) bool {
	return in.password == "" || in.password == pass
}

// Post queues ev. It reports false once the room has stopped.
func (in *Instance) Post(ev Event) bool {
	if in.ctx.Err() != nil {
		return false
	}
	select {
	case in.inbox <- ev:
		return true
	case <-in.ctx.Done():
		return false
	}
}

// Props asks the room for its listing properties.
func (in *Instance) Props(ctx context.Context) (Props, bool) {
	reply := make(chan Props, 1)
	if !in.Post(GetProps{Reply: reply}) {
		return Props{}, false
	}
	select {
	case p := <-reply:
		return p, true
	case <-ctx.Done():
		return Props{}, false
	case <-in.done:
		return Props{}, false
	}
}

// TryClose closes the room if no duel has started yet.
func (in *Instance) TryClose(ctx context.Context) bool {
	reply := make(chan bool, 1)
	if !in.Post(Close{Reply: reply}) {
		return true
	}
	select {
	case ok := <-reply:
		return ok
	case <-ctx.Done():
		return false
	case <-in.done:
		return true
	}
}

// Stop tears the room down regardless of its state.
func (in *Instance) Stop() { in.cancel() }

func (in *Instance) loop() {
	defer close(in.done)
	for {
		select {
		case <-in.ctx.Done():
			in.room.shutdown()
			return

		case ev := <-in.inbox:
			switch e := ev.(type) {
			case GetProps:
				e.Reply <- in.props()
				continue
			case Join:
				in.clients[e.Client] = struct{}{}
			}

			in.room.Dispatch(ev)

			lost, isLeave := ev.(ConnectionLost)
			if isLeave {
				delete(in.clients, lost.Client)
			}
			_, closing := in.room.state.(*Closing)
			if len(in.clients) == 0 && (isLeave || closing) {
				in.log.Info("room empty, removing")
				if in.owner != nil {
					in.owner.Remove(in.id)
				}
				in.room.shutdown()
				in.cancel()
				return
			}
		}
	}
}

func (in *Instance) props() Props {
	r := in.room
	_, waiting := r.state.(*Waiting)
	p := Props{
		ID:         in.id,
		Name:       r.cfg.Name,
		Notes:      r.cfg.Notes,
		Info:       r.info,
		Passworded: in.password != "",
		Started:    !waiting,
		Duelists:   make(map[uint8]string, len(r.duelists)),
	}
	for pos, c := range r.duelists {
		p.Duelists[r.enc(pos)] = c.name
	}
	return p
}
