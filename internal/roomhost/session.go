package roomhost

import (
	"context"
	"errors"
	"fmt"
	"time"

	"go.uber.org/zap"

	"github.com/DoyleJ11/duel-room-server/internal/hub"
	"github.com/DoyleJ11/duel-room-server/internal/room"
	"github.com/DoyleJ11/duel-room-server/internal/ygopro"
)

var errHandshake = errors.New("handshake refused")

// Shown in the client's chat box ahead of the join error.
const (
	textRoomNotFound = "Room not found. Try refreshing the list!"
	textInvalidName  = "Invalid name. Try filling in your name."
	textInvalidMsg   = "Invalid message before connecting to room. Please report this error!"
)

func chatError(text string) ygopro.STOCMsg { return ygopro.Chat(ygopro.ChatError, text) }

// Rooms is the part of the hub a session needs.
type Rooms interface {
	Create(ctx context.Context, ci hub.CreateInfo) (*room.Instance, error)
	Get(ctx context.Context, id uint32) *room.Instance
	AddConnection(ip string)
	RemoveConnection(ip string)
	HasMaxConnections(ip string) bool
}

type Options struct {
	HandshakeTimeout time.Duration
	WriteTimeout     time.Duration
	Outbox           int
}

func (o *Options) defaults() {
	if o.HandshakeTimeout <= 0 {
		o.HandshakeTimeout = 10 * time.Second
	}
	if o.WriteTimeout <= 0 {
		o.WriteTimeout = 5 * time.Second
	}
	if o.Outbox <= 0 {
		o.Outbox = 256
	}
}

type Server struct {
	rooms    Rooms
	banlists hub.BanlistSource
	opts     Options
	log      *zap.Logger
}

func NewServer(rooms Rooms, banlists hub.BanlistSource, opts Options, log *zap.Logger) *Server {
	opts.defaults()
	return &Server{rooms: rooms, banlists: banlists, opts: opts, log: log}
}

// Serve runs one connection to completion and closes it.
func (s *Server) Serve(ctx context.Context, conn FrameConn) {
	defer conn.Close()
	ip := conn.RemoteIP()
	if s.rooms.HasMaxConnections(ip) {
		s.log.Debug("connection limit reached", zap.String("ip", ip))
		return
	}
	s.rooms.AddConnection(ip)
	defer s.rooms.RemoveConnection(ip)

	in, client, err := s.handshake(ctx, conn, ip)
	if err != nil {
		s.log.Debug("handshake failed", zap.String("ip", ip), zap.Error(err))
		return
	}
	s.log.Debug("client joined",
		zap.Uint32("room", in.ID()),
		zap.Stringer("client", client.ID),
		zap.String("name", client.Name()))
	s.run(ctx, conn, in, client)
}

func (s *Server) readHandshake(ctx context.Context, conn FrameConn) (ygopro.CTOSMsg, error) {
	ctx, cancel := context.WithTimeout(ctx, s.opts.HandshakeTimeout)
	defer cancel()
	return conn.ReadFrame(ctx)
}

// refuse writes msgs and reports why the handshake ended.
func (s *Server) refuse(ctx context.Context, conn FrameConn, why string, msgs ...ygopro.STOCMsg) error {
	ctx, cancel := context.WithTimeout(ctx, s.opts.WriteTimeout)
	defer cancel()
	for _, m := range msgs {
		if err := conn.WriteFrame(ctx, m); err != nil {
			break
		}
	}
	return fmt.Errorf("%w: %s", errHandshake, why)
}

func (s *Server) unexpected(ctx context.Context, conn FrameConn) error {
	return s.refuse(ctx, conn, "unexpected frame",
		chatError(textInvalidMsg), ygopro.JoinError(ygopro.JoinErrorNotFound))
}

func (s *Server) handshake(ctx context.Context, conn FrameConn, ip string) (*room.Instance, *room.Client, error) {
	msg, err := s.readHandshake(ctx, conn)
	if err != nil {
		return nil, nil, err
	}
	if msg.Type != ygopro.CTOSPlayerInfo {
		return nil, nil, s.unexpected(ctx, conn)
	}
	name, err := msg.PlayerName()
	if err != nil || name == "" {
		return nil, nil, s.refuse(ctx, conn, "invalid name",
			chatError(textInvalidName), ygopro.JoinError(ygopro.JoinErrorInvalidName))
	}

	msg, err = s.readHandshake(ctx, conn)
	if err != nil {
		return nil, nil, err
	}
	var in *room.Instance
	switch msg.Type {
	case ygopro.CTOSCreateGame:
		req, err := msg.CreateGame()
		if err != nil || req.Info.ServerHandshake != ygopro.ServerHandshake {
			return nil, nil, s.refuse(ctx, conn, "server handshake mismatch", ygopro.VersionError())
		}
		info := req.Info.Normalize()
		if info.BanlistHash != 0 && (s.banlists == nil || !hasBanlist(s.banlists, info.BanlistHash)) {
			info.BanlistHash = 0
		}
		in, err = s.rooms.Create(ctx, hub.CreateInfo{
			Info:     info,
			Name:     req.Name,
			Notes:    req.Notes,
			Password: req.Pass,
		})
		if err != nil {
			return nil, nil, err
		}
	case ygopro.CTOSJoinGame:
		req, err := msg.JoinGame()
		if err != nil || req.Version != ygopro.ServerVersion {
			return nil, nil, s.refuse(ctx, conn, "client version mismatch", ygopro.VersionError())
		}
		in = s.rooms.Get(ctx, req.ID)
		if in == nil {
			return nil, nil, s.refuse(ctx, conn, "room not found",
				chatError(textRoomNotFound), ygopro.JoinError(ygopro.JoinErrorNotFound))
		}
		if !in.CheckPassword(req.Pass) {
			return nil, nil, s.refuse(ctx, conn, "wrong password", ygopro.JoinError(ygopro.JoinErrorWrongPass))
		}
	default:
		return nil, nil, s.unexpected(ctx, conn)
	}

	client := room.NewClient(name, ip, s.opts.Outbox)
	if !in.Post(room.Join{Client: client}) {
		return nil, nil, s.refuse(ctx, conn, "room stopped",
			chatError(textRoomNotFound), ygopro.JoinError(ygopro.JoinErrorNotFound))
	}
	return in, client, nil
}

func hasBanlist(b hub.BanlistSource, hash uint32) bool {
	_, ok := b.Get(hash)
	return ok
}

func (s *Server) run(ctx context.Context, conn FrameConn, in *room.Instance, client *room.Client) {
	ctx, cancel := context.WithCancel(ctx)
	defer cancel()

	// Writer goroutine
	go func() {
		defer conn.Close()
		for {
			select {
			case m, ok := <-client.Outbox():
				if !ok {
					return
				}
				wctx, wcancel := context.WithTimeout(ctx, s.opts.WriteTimeout)
				err := conn.WriteFrame(wctx, m)
				wcancel()
				if err != nil {
					client.Disconnect()
					return
				}
			case <-client.Killed():
				return
			case <-ctx.Done():
				return
			}
		}
	}()

	// Reader loop
	for {
		msg, err := conn.ReadFrame(ctx)
		if errors.Is(err, ErrBadFrame) {
			continue
		}
		if err != nil {
			break
		}
		if msg.Type == ygopro.CTOSLeaveGame {
			break
		}
		if ev := toEvent(client, msg); ev != nil {
			in.Post(ev)
		}
	}
	in.Post(room.ConnectionLost{Client: client})
	client.Disconnect()
}

// toEvent maps a client frame to a room event. Frames that are not
// understood map to nil.
func toEvent(c *room.Client, m ygopro.CTOSMsg) room.Event {
	switch m.Type {
	case ygopro.CTOSResponse:
		return room.Response{Client: c, Data: append([]byte(nil), m.Body...)}
	case ygopro.CTOSUpdateDeck:
		main, side, err := m.UpdateDeck()
		if err != nil {
			return nil
		}
		return room.UpdateDeck{Client: c, Main: main, Side: side}
	case ygopro.CTOSHandResult:
		v, err := m.Byte()
		if err != nil {
			return nil
		}
		return room.ChooseRPS{Client: c, Value: v}
	case ygopro.CTOSTPResult:
		v, err := m.Byte()
		if err != nil {
			return nil
		}
		return room.ChooseTurn{Client: c, GoingFirst: v != 0}
	case ygopro.CTOSSurrender:
		return room.Surrender{Client: c}
	case ygopro.CTOSChat:
		return room.Chat{Client: c, Text: m.ChatText()}
	case ygopro.CTOSToDuelist:
		return room.ToDuelist{Client: c}
	case ygopro.CTOSToObserver:
		return room.ToObserver{Client: c}
	case ygopro.CTOSReady:
		return room.Ready{Client: c, Value: true}
	case ygopro.CTOSNotReady:
		return room.Ready{Client: c, Value: false}
	case ygopro.CTOSTryKick:
		v, err := m.Byte()
		if err != nil {
			return nil
		}
		return room.TryKick{Client: c, Pos: v}
	case ygopro.CTOSTryStart:
		return room.TryStart{Client: c}
	case ygopro.CTOSRematchResponse:
		v, err := m.Byte()
		if err != nil {
			return nil
		}
		return room.Rematch{Client: c, Answer: v != 0}
	}
	return nil
}
