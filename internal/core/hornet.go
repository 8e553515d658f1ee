package core

import (
	"errors"
	"fmt"
	"io"
	"os"
	"os/exec"
	"sync"
	"time"

	"go.uber.org/zap"
	"golang.org/x/sys/unix"

	"github.com/DoyleJ11/duel-room-server/internal/ygopro"
)

// Hornet is the isolated backend: the engine runs in a child process and
// every call is a round trip through the shared mailbox. A crash in the
// child surfaces here as an *EngineFault.
type Hornet struct {
	mu      sync.Mutex // one outstanding call
	box     mailbox
	bell    doorbell
	timeout time.Duration
	log     *zap.Logger

	dead  error
	duels map[Duel]DuelOptions

	// set only when the child was spawned by SpawnHornet
	cmd     *exec.Cmd
	closers []io.Closer
	unmap   func() error
	shmPath string
}

var _ Binding = (*Hornet)(nil)

// SpawnHornet starts exe as the engine host for the build at corePath.
// The child receives the mailbox file and the two doorbell pipes as
// file descriptors 3, 4 and 5.
func SpawnHornet(exe, corePath string, timeout time.Duration, log *zap.Logger) (*Hornet, error) {
	shm, err := os.CreateTemp("", "hornet-*.shm")
	if err != nil {
		return nil, fmt.Errorf("create mailbox: %w", err)
	}
	cleanup := []func(){func() { shm.Close(); os.Remove(shm.Name()) }}
	fail := func(err error) (*Hornet, error) {
		for i := len(cleanup) - 1; i >= 0; i-- {
			cleanup[i]()
		}
		return nil, err
	}
	if err := shm.Truncate(MailboxSize); err != nil {
		return fail(fmt.Errorf("size mailbox: %w", err))
	}
	mem, err := unix.Mmap(int(shm.Fd()), 0, MailboxSize, unix.PROT_READ|unix.PROT_WRITE, unix.MAP_SHARED)
	if err != nil {
		return fail(fmt.Errorf("map mailbox: %w", err))
	}
	cleanup = append(cleanup, func() { unix.Munmap(mem) })

	// parent -> child
	reqR, reqW, err := os.Pipe()
	if err != nil {
		return fail(err)
	}
	cleanup = append(cleanup, func() { reqR.Close(); reqW.Close() })
	// child -> parent
	respR, respW, err := os.Pipe()
	if err != nil {
		return fail(err)
	}
	cleanup = append(cleanup, func() { respR.Close(); respW.Close() })

	cmd := exec.Command(exe, corePath)
	cmd.ExtraFiles = []*os.File{shm, reqR, respW}
	cmd.Stdout = os.Stdout
	cmd.Stderr = os.Stderr
	if err := cmd.Start(); err != nil {
		return fail(fmt.Errorf("start hornet: %w", err))
	}
	// the child owns its ends now
	reqR.Close()
	respW.Close()

	h := newHornet(mem, respR, reqW, timeout, log)
	h.cmd = cmd
	h.closers = []io.Closer{reqW, respR, shm}
	h.unmap = func() error { return unix.Munmap(mem) }
	h.shmPath = shm.Name()
	return h, nil
}

// newHornet attaches to an already running host.
func newHornet(mem []byte, resp io.Reader, req io.Writer, timeout time.Duration, log *zap.Logger) *Hornet {
	return &Hornet{
		box:     mailbox{mem: mem},
		bell:    doorbell{r: resp, w: req},
		timeout: timeout,
		log:     log,
		duels:   make(map[Duel]DuelOptions),
	}
}

// call runs one request to completion, servicing callbacks on the way.
// opts supplies the callbacks for the duel the call concerns.
func (h *Hornet) call(op string, act Action, args []byte, opts *DuelOptions) (reader, error) {
	if h.dead != nil {
		return reader{}, &EngineFault{Op: op, Err: h.dead}
	}
	if err := h.box.put(act, args); err != nil {
		return reader{}, fault(op, err)
	}
	for {
		if err := h.bell.ring(); err != nil {
			return reader{}, h.kill(op, err)
		}
		if err := h.bell.wait(h.timeout); err != nil {
			if errors.Is(err, os.ErrDeadlineExceeded) {
				err = ErrTimeout
			}
			return reader{}, h.kill(op, err)
		}
		switch got := h.box.action(); got {
		case ActNoWork:
			return reader{b: h.box.payload()}, nil
		case ActError:
			r := reader{b: h.box.payload()}
			return reader{}, h.kill(op, errors.New(r.str()))
		case ActCBDataReader, ActCBScriptReader, ActCBLogHandler:
			res := h.callback(got, reader{b: h.box.payload()}, opts)
			if err := h.box.put(ActCBDone, res); err != nil {
				return reader{}, h.kill(op, err)
			}
		default:
			return reader{}, h.kill(op, fmt.Errorf("unexpected action %d", got))
		}
	}
}

func (h *Hornet) callback(act Action, r reader, opts *DuelOptions) []byte {
	var w writer
	switch act {
	case ActCBDataReader:
		code := r.u32()
		if opts != nil && opts.Cards != nil {
			if c, ok := opts.Cards.DataFromCode(code); ok {
				w.u8(1)
				w.b = EncodeCardData(w.b, c)
				break
			}
		}
		w.u8(0)
		w.b = EncodeCardData(w.b, ygopro.CardData{Code: code})
	case ActCBScriptReader:
		name := r.str()
		if opts != nil && opts.Scripts != nil {
			if src, ok := opts.Scripts.Script(name); ok {
				w.u8(1)
				w.bytes(src)
				break
			}
		}
		w.u8(0)
	case ActCBLogHandler:
		kind := LogKind(r.u8())
		text := r.str()
		if opts != nil && opts.Log != nil {
			opts.Log(kind, text)
		}
	}
	return w.b
}

// kill marks the binding dead; nothing further is sent to the child.
func (h *Hornet) kill(op string, err error) error {
	h.dead = err
	if h.log != nil {
		h.log.Error("hornet call failed", zap.String("op", op), zap.Error(err))
	}
	if h.cmd != nil && h.cmd.Process != nil {
		_ = h.cmd.Process.Kill()
	}
	return &EngineFault{Op: op, Err: err}
}

func (h *Hornet) optsFor(d Duel) *DuelOptions {
	if o, ok := h.duels[d]; ok {
		return &o
	}
	return nil
}

func (h *Hornet) done(op string, r reader) error {
	if r.err != nil {
		return h.kill(op, r.err)
	}
	return nil
}

func (h *Hornet) Version() (int32, int32, error) {
	h.mu.Lock()
	defer h.mu.Unlock()
	r, err := h.call("version", ActGetVersion, nil, nil)
	if err != nil {
		return 0, 0, err
	}
	major, minor := int32(r.u32()), int32(r.u32())
	return major, minor, h.done("version", r)
}

func (h *Hornet) CreateDuel(opts DuelOptions) (Duel, error) {
	h.mu.Lock()
	defer h.mu.Unlock()
	var w writer
	for _, s := range opts.Seed {
		w.u64(s)
	}
	w.u64(opts.Flags)
	for _, p := range []PlayerOptions{opts.Team1, opts.Team2} {
		w.u32(p.StartingLP)
		w.u32(p.StartingDrawCount)
		w.u32(p.DrawCountPerTurn)
	}
	r, err := h.call("create_duel", ActCreateDuel, w.b, &opts)
	if err != nil {
		return 0, err
	}
	status := int(int32(r.u32()))
	d := Duel(r.u64())
	if err := h.done("create_duel", r); err != nil {
		return 0, err
	}
	if status != 0 {
		return 0, &EngineCreationError{Status: status}
	}
	h.duels[d] = opts
	return d, nil
}

func (h *Hornet) duelCall(op string, act Action, d Duel, fill func(*writer)) (reader, error) {
	h.mu.Lock()
	defer h.mu.Unlock()
	var w writer
	w.u64(uint64(d))
	if fill != nil {
		fill(&w)
	}
	r, err := h.call(op, act, w.b, h.optsFor(d))
	if err != nil {
		return reader{}, err
	}
	// copy out of shared memory before the lock is released
	r.b = append([]byte(nil), r.b...)
	return r, nil
}

func (h *Hornet) DestroyDuel(d Duel) error {
	_, err := h.duelCall("destroy_duel", ActDestroyDuel, d, nil)
	h.mu.Lock()
	delete(h.duels, d)
	h.mu.Unlock()
	return err
}

func (h *Hornet) AddCard(d Duel, info NewCardInfo) error {
	_, err := h.duelCall("add_card", ActAddCard, d, func(w *writer) {
		w.u8(info.Team)
		w.u8(info.Duelist)
		w.u32(info.Code)
		w.u8(info.Con)
		w.u32(info.Loc)
		w.u32(info.Seq)
		w.u32(info.Pos)
	})
	return err
}

func (h *Hornet) StartDuel(d Duel) error {
	_, err := h.duelCall("start_duel", ActStartDuel, d, nil)
	return err
}

func (h *Hornet) Process(d Duel) (Status, error) {
	r, err := h.duelCall("process", ActProcess, d, nil)
	if err != nil {
		return StatusEnd, err
	}
	st := Status(r.u32())
	if r.err != nil {
		return StatusEnd, h.lockedKill("process", r.err)
	}
	return st, nil
}

func (h *Hornet) GetMessages(d Duel) ([]byte, error) {
	return h.bytesCall("get_messages", ActGetMessages, d, nil)
}

func (h *Hornet) SetResponse(d Duel, resp []byte) error {
	_, err := h.duelCall("set_response", ActSetResponse, d, func(w *writer) { w.bytes(resp) })
	return err
}

func (h *Hornet) LoadScript(d Duel, name string, src []byte) error {
	r, err := h.duelCall("load_script", ActLoadScript, d, func(w *writer) {
		w.str(name)
		w.bytes(src)
	})
	if err != nil {
		return err
	}
	if ok := r.u32(); r.err != nil {
		return h.lockedKill("load_script", r.err)
	} else if ok == 0 {
		return &EngineFault{Op: "load_script", Err: fmt.Errorf("%w: %q", ErrScriptRejected, name)}
	}
	return nil
}

func (h *Hornet) QueryCount(d Duel, team uint8, loc uint32) (uint32, error) {
	r, err := h.duelCall("query_count", ActQueryCount, d, func(w *writer) {
		w.u8(team)
		w.u32(loc)
	})
	if err != nil {
		return 0, err
	}
	n := r.u32()
	if r.err != nil {
		return 0, h.lockedKill("query_count", r.err)
	}
	return n, nil
}

func (h *Hornet) Query(d Duel, info QueryInfo) ([]byte, error) {
	return h.bytesCall("query", ActQuery, d, func(w *writer) {
		w.u32(info.Flags)
		w.u8(info.Con)
		w.u32(info.Loc)
		w.u32(info.Seq)
		w.u32(info.OverlaySeq)
	})
}

func (h *Hornet) QueryLocation(d Duel, info QueryInfo) ([]byte, error) {
	return h.bytesCall("query_location", ActQueryLocation, d, func(w *writer) {
		w.u32(info.Flags)
		w.u8(info.Con)
		w.u32(info.Loc)
	})
}

func (h *Hornet) QueryField(d Duel) ([]byte, error) {
	return h.bytesCall("query_field", ActQueryField, d, nil)
}

func (h *Hornet) bytesCall(op string, act Action, d Duel, fill func(*writer)) ([]byte, error) {
	r, err := h.duelCall(op, act, d, fill)
	if err != nil {
		return nil, err
	}
	b := r.bytes()
	if r.err != nil {
		return nil, h.lockedKill(op, r.err)
	}
	return b, nil
}

func (h *Hornet) lockedKill(op string, err error) error {
	h.mu.Lock()
	defer h.mu.Unlock()
	return h.kill(op, err)
}

// Close asks the child to exit and releases the mailbox.
func (h *Hornet) Close() error {
	h.mu.Lock()
	defer h.mu.Unlock()
	if h.dead == nil {
		if err := h.box.put(ActExit, nil); err == nil && h.bell.ring() == nil {
			if h.bell.wait(h.timeout) == nil && h.box.action() != ActExitConfirmed && h.log != nil {
				h.log.Warn("hornet did not confirm exit")
			}
		}
		h.dead = ErrBindingClosed
	}
	if h.cmd != nil {
		waited := make(chan error, 1)
		go func() { waited <- h.cmd.Wait() }()
		select {
		case <-waited:
		case <-time.After(h.timeout):
			_ = h.cmd.Process.Kill()
			<-waited
		}
	}
	var errs []error
	for _, c := range h.closers {
		errs = append(errs, c.Close())
	}
	if h.unmap != nil {
		errs = append(errs, h.unmap())
	}
	if h.shmPath != "" {
		errs = append(errs, os.Remove(h.shmPath))
	}
	return errors.Join(errs...)
}
