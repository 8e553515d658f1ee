// Package hub is the process-wide room registry.
package hub

import (
	"context"
	"errors"
	"math/rand/v2"
	"slices"
	"sync"

	"go.uber.org/zap"

	"github.com/DoyleJ11/duel-room-server/internal/core"
	"github.com/DoyleJ11/duel-room-server/internal/logging"
	"github.com/DoyleJ11/duel-room-server/internal/room"
	"github.com/DoyleJ11/duel-room-server/internal/ygopro"
)

var ErrStopped = errors.New("hub stopped")

// BanlistSource resolves a banlist by hash.
type BanlistSource interface {
	Get(hash uint32) (*ygopro.Banlist, bool)
}

// Deps are the collaborators every room is created with.
type Deps struct {
	Engines  room.Engines
	Cards    ygopro.CardSource
	Scripts  core.ScriptSupplier
	Banlists BanlistSource
	Replays  room.ReplaySink
	Sink     *logging.Sink
	Log      *zap.Logger

	// MaxConnectionsPerIP below zero means unlimited.
	MaxConnectionsPerIP int
}

// CreateInfo is what a host asks a room to be created with.
type CreateInfo struct {
	Info     ygopro.HostInfo
	Name     string
	Notes    string
	Password string
}

type HubMsg interface{ isHubMsg() }

type CreateRoom struct {
	Info  CreateInfo
	Reply chan *room.Instance
}

type GetRoom struct {
	ID    uint32
	Reply chan *room.Instance
}

type ListRooms struct {
	Reply chan []*room.Instance
}

type RemoveRoom struct {
	ID uint32
}

type ShutdownHub struct{}

func (CreateRoom) isHubMsg()  {}
func (GetRoom) isHubMsg()     {}
func (ListRooms) isHubMsg()   {}
func (RemoveRoom) isHubMsg()  {}
func (ShutdownHub) isHubMsg() {}

type Hub struct {
	deps   Deps
	log    *zap.Logger
	inbox  chan HubMsg
	rooms  map[uint32]*room.Instance
	ctx    context.Context
	cancel context.CancelFunc

	connMu sync.Mutex
	conns  map[string]int
}

func NewHub(parent context.Context, deps Deps) *Hub {
	if deps.Log == nil {
		deps.Log = zap.NewNop()
	}
	ctx, cancel := context.WithCancel(parent)
	h := &Hub{
		deps:   deps,
		log:    deps.Log,
		inbox:  make(chan HubMsg, 64),
		rooms:  make(map[uint32]*room.Instance),
		ctx:    ctx,
		cancel: cancel,
		conns:  make(map[string]int),
	}
	go h.loop()
	return h
}

func (h *Hub) Inbox() chan<- HubMsg { return h.inbox }

func (h *Hub) loop() {
	for {
		select {
		case <-h.ctx.Done():
			return

		case m := <-h.inbox:
			switch msg := m.(type) {
			case CreateRoom:
				msg.Reply <- h.create(msg.Info)

			case GetRoom:
				msg.Reply <- h.rooms[msg.ID] // May be nil

			case ListRooms:
				out := make([]*room.Instance, 0, len(h.rooms))
				for _, in := range h.rooms {
					out = append(out, in)
				}
				slices.SortFunc(out, func(a, b *room.Instance) int { return int(a.ID()) - int(b.ID()) })
				msg.Reply <- out

			case RemoveRoom:
				delete(h.rooms, msg.ID)
				h.log.Debug("room removed", zap.Uint32("room", msg.ID), zap.Int("rooms", len(h.rooms)))

			case ShutdownHub:
				for _, in := range h.rooms {
					in.Stop()
				}
				clear(h.rooms)
				h.cancel()
			}
		}
	}
}

// create allocates the lowest free id, starting at 1.
func (h *Hub) create(ci CreateInfo) *room.Instance {
	id := uint32(1)
	for h.rooms[id] != nil {
		id++
	}
	var banlist *ygopro.Banlist
	if h.deps.Banlists != nil && ci.Info.BanlistHash != 0 {
		banlist, _ = h.deps.Banlists.Get(ci.Info.BanlistHash)
	}
	in := room.New(h.ctx, room.Config{
		ID:       id,
		Seed:     rand.Uint64(),
		Info:     ci.Info,
		Name:     ci.Name,
		Notes:    ci.Notes,
		Password: ci.Password,
		Engines:  h.deps.Engines,
		Cards:    h.deps.Cards,
		Scripts:  h.deps.Scripts,
		Banlist:  banlist,
		Replays:  h.deps.Replays,
		Owner:    h,
		Sink:     h.deps.Sink,
		Log:      h.log,
	})
	h.rooms[id] = in
	h.log.Info("room created", zap.Uint32("room", id), zap.String("name", ci.Name))
	return in
}

func (h *Hub) post(ctx context.Context, m HubMsg) error {
	select {
	case h.inbox <- m:
		return nil
	case <-h.ctx.Done():
		return ErrStopped
	case <-ctx.Done():
		return ctx.Err()
	}
}

func recv[T any](ctx context.Context, h *Hub, reply chan T) (T, error) {
	select {
	case v := <-reply:
		return v, nil
	case <-h.ctx.Done():
		var zero T
		return zero, ErrStopped
	case <-ctx.Done():
		var zero T
		return zero, ctx.Err()
	}
}

func (h *Hub) Create(ctx context.Context, ci CreateInfo) (*room.Instance, error) {
	reply := make(chan *room.Instance, 1)
	if err := h.post(ctx, CreateRoom{Info: ci, Reply: reply}); err != nil {
		return nil, err
	}
	return recv(ctx, h, reply)
}

// Get returns nil when no room has id.
func (h *Hub) Get(ctx context.Context, id uint32) *room.Instance {
	reply := make(chan *room.Instance, 1)
	if h.post(ctx, GetRoom{ID: id, Reply: reply}) != nil {
		return nil
	}
	in, _ := recv(ctx, h, reply)
	return in
}

// Remove forgets a room. Rooms call it themselves once empty.
func (h *Hub) Remove(id uint32) {
	_ = h.post(context.Background(), RemoveRoom{ID: id})
}

func (h *Hub) snapshot(ctx context.Context) []*room.Instance {
	reply := make(chan []*room.Instance, 1)
	if h.post(ctx, ListRooms{Reply: reply}) != nil {
		return nil
	}
	out, _ := recv(ctx, h, reply)
	return out
}

// List collects the listing properties of every room. Rooms that do not
// answer before ctx ends are left out.
func (h *Hub) List(ctx context.Context) []room.Props {
	var out []room.Props
	for _, in := range h.snapshot(ctx) {
		if p, ok := in.Props(ctx); ok {
			out = append(out, p)
		}
	}
	return out
}

// Close closes every room that has not started a duel and returns how many
// rooms are still running.
func (h *Hub) Close(ctx context.Context) int {
	running := 0
	for _, in := range h.snapshot(ctx) {
		if !in.TryClose(ctx) {
			running++
		}
	}
	return running
}

// Shutdown stops every room and the hub itself.
func (h *Hub) Shutdown() {
	_ = h.post(context.Background(), ShutdownHub{})
}

func (h *Hub) AddConnection(ip string) {
	h.connMu.Lock()
	defer h.connMu.Unlock()
	h.conns[ip]++
}

func (h *Hub) RemoveConnection(ip string) {
	h.connMu.Lock()
	defer h.connMu.Unlock()
	if h.conns[ip] <= 1 {
		delete(h.conns, ip)
		return
	}
	h.conns[ip]--
}

func (h *Hub) HasMaxConnections(ip string) bool {
	if h.deps.MaxConnectionsPerIP < 0 {
		return false
	}
	h.connMu.Lock()
	defer h.connMu.Unlock()
	return h.conns[ip] >= h.deps.MaxConnectionsPerIP
}
