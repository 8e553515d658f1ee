package core

import (
	"errors"
	"fmt"
	"io"

	"github.com/DoyleJ11/duel-room-server/internal/ygopro"
)

// hornetServer is the child side of the mailbox. Callbacks the engine
// makes while serving a request are forwarded to the parent and block
// until it answers with ActCBDone.
type hornetServer struct {
	b    Binding
	box  mailbox
	bell doorbell
	err  error
}

// ServeHornet answers requests from the parent until it asks to exit or
// the doorbell breaks. req carries the parent's rings, resp carries ours.
func ServeHornet(b Binding, mem []byte, req io.Reader, resp io.Writer) error {
	s := &hornetServer{b: b, box: mailbox{mem: mem}, bell: doorbell{r: req, w: resp}}
	for {
		if err := s.bell.wait(0); err != nil {
			if errors.Is(err, io.EOF) {
				return nil
			}
			return err
		}
		act := s.box.action()
		if act == ActExit {
			if err := s.box.put(ActExitConfirmed, nil); err != nil {
				return err
			}
			return s.bell.ring()
		}
		out, err := s.handle(act, reader{b: s.box.payload()})
		if s.err != nil {
			return s.err
		}
		if err != nil {
			var w writer
			w.str(err.Error())
			out, act = w.b, ActError
		} else {
			act = ActNoWork
		}
		if err := s.box.put(act, out); err != nil {
			return err
		}
		if err := s.bell.ring(); err != nil {
			return err
		}
	}
}

func (s *hornetServer) handle(act Action, r reader) ([]byte, error) {
	var w writer
	var err error
	switch act {
	case ActHeartbeat:
	case ActGetVersion:
		var major, minor int32
		major, minor, err = s.b.Version()
		w.u32(uint32(major))
		w.u32(uint32(minor))
	case ActCreateDuel:
		var opts DuelOptions
		for i := range opts.Seed {
			opts.Seed[i] = r.u64()
		}
		opts.Flags = r.u64()
		for _, p := range []*PlayerOptions{&opts.Team1, &opts.Team2} {
			p.StartingLP = r.u32()
			p.StartingDrawCount = r.u32()
			p.DrawCountPerTurn = r.u32()
		}
		if r.err != nil {
			return nil, r.err
		}
		opts.Cards = remoteCards{s}
		opts.Scripts = remoteScripts{s}
		opts.Log = s.log
		d, cerr := s.b.CreateDuel(opts)
		status := 0
		var ce *EngineCreationError
		switch {
		case errors.As(cerr, &ce):
			status = ce.Status
		case cerr != nil:
			return nil, cerr
		}
		w.u32(uint32(int32(status)))
		w.u64(uint64(d))
	default:
		d := Duel(r.u64())
		if r.err != nil {
			return nil, r.err
		}
		err = s.handleDuel(act, d, &r, &w)
	}
	if r.err != nil {
		return nil, r.err
	}
	return w.b, err
}

func (s *hornetServer) handleDuel(act Action, d Duel, r *reader, w *writer) error {
	switch act {
	case ActDestroyDuel:
		return s.b.DestroyDuel(d)
	case ActAddCard:
		info := NewCardInfo{
			Team:    r.u8(),
			Duelist: r.u8(),
			Code:    r.u32(),
			Con:     r.u8(),
			Loc:     r.u32(),
			Seq:     r.u32(),
			Pos:     r.u32(),
		}
		return s.b.AddCard(d, info)
	case ActStartDuel:
		return s.b.StartDuel(d)
	case ActProcess:
		st, err := s.b.Process(d)
		w.u32(uint32(st))
		return err
	case ActGetMessages:
		b, err := s.b.GetMessages(d)
		w.bytes(b)
		return err
	case ActSetResponse:
		return s.b.SetResponse(d, r.bytes())
	case ActLoadScript:
		name := r.str()
		src := r.bytes()
		ok := uint32(1)
		if err := s.b.LoadScript(d, name, src); err != nil {
			ok = 0
		}
		w.u32(ok)
	case ActQueryCount:
		team := r.u8()
		loc := r.u32()
		n, err := s.b.QueryCount(d, team, loc)
		w.u32(n)
		return err
	case ActQuery:
		info := QueryInfo{Flags: r.u32(), Con: r.u8(), Loc: r.u32(), Seq: r.u32(), OverlaySeq: r.u32()}
		b, err := s.b.Query(d, info)
		w.bytes(b)
		return err
	case ActQueryLocation:
		info := QueryInfo{Flags: r.u32(), Con: r.u8(), Loc: r.u32()}
		b, err := s.b.QueryLocation(d, info)
		w.bytes(b)
		return err
	case ActQueryField:
		b, err := s.b.QueryField(d)
		w.bytes(b)
		return err
	default:
		return fmt.Errorf("unknown action %d", act)
	}
	return nil
}

// roundTrip hands the mailbox to the parent for one callback and returns
// its answer. A broken doorbell ends the serve loop.
func (s *hornetServer) roundTrip(act Action, payload []byte) (reader, bool) {
	if s.err != nil {
		return reader{}, false
	}
	if err := s.box.put(act, payload); err != nil {
		s.err = err
		return reader{}, false
	}
	if err := s.bell.ring(); err != nil {
		s.err = err
		return reader{}, false
	}
	if err := s.bell.wait(0); err != nil {
		s.err = err
		return reader{}, false
	}
	if got := s.box.action(); got != ActCBDone {
		s.err = fmt.Errorf("expected callback answer, got action %d", got)
		return reader{}, false
	}
	return reader{b: s.box.payload()}, true
}

func (s *hornetServer) log(kind LogKind, text string) {
	var w writer
	w.u8(uint8(kind))
	w.str(text)
	s.roundTrip(ActCBLogHandler, w.b)
}

type remoteCards struct{ s *hornetServer }

func (c remoteCards) DataFromCode(code uint32) (ygopro.CardData, bool) {
	var w writer
	w.u32(code)
	r, ok := c.s.roundTrip(ActCBDataReader, w.b)
	if !ok || r.u8() == 0 {
		return ygopro.CardData{Code: code}, false
	}
	data, err := DecodeCardData(r.b)
	return data, err == nil
}

type remoteScripts struct{ s *hornetServer }

func (c remoteScripts) Script(name string) ([]byte, bool) {
	var w writer
	w.str(name)
	r, ok := c.s.roundTrip(ActCBScriptReader, w.b)
	if !ok || r.u8() == 0 {
		return nil, false
	}
	src := r.bytes()
	return src, r.err == nil
}
