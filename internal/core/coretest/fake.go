// Package coretest provides a scripted in-memory engine for tests.
package coretest

import (
	"encoding/binary"
	"errors"
	"fmt"
	"sync"

	"github.com/DoyleJ11/duel-room-server/internal/core"
)

// Step is what one Process call produces.
type Step struct {
	Messages [][]byte
	Status   core.Status
}

// Fake is a core.Binding that replays Steps. Once the steps run out every
// Process call reports StatusAwaiting with no messages.
type Fake struct {
	Major, Minor int32

	// CreateErr is returned by CreateDuel when set.
	CreateErr error
	// OnCreate runs inside CreateDuel with the options the caller passed.
	OnCreate func(core.DuelOptions)
	// OnProcess runs at the top of every Process call, outside the lock.
	OnProcess func()
	// QueryResult is what Query returns.
	QueryResult []byte

	mu        sync.Mutex
	steps     []Step
	step      int
	pending   [][]byte
	failOn    map[string]bool
	cards     []core.NewCardInfo
	responses [][]byte
	scripts   []string
	started   bool
	destroyed int
	next      core.Duel
	opts      core.DuelOptions
	closed    bool
}

var _ core.Binding = (*Fake)(nil)

func New(steps ...Step) *Fake {
	return &Fake{Major: 10, Minor: 0, steps: steps, failOn: map[string]bool{}}
}

// Push appends steps to the script.
func (f *Fake) Push(steps ...Step) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.steps = append(f.steps, steps...)
}

// Fail makes every later call of op return an *core.EngineFault.
func (f *Fake) Fail(op string) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.failOn[op] = true
}

func (f *Fake) check(op string) error {
	if f.closed {
		return &core.EngineFault{Op: op, Err: core.ErrBindingClosed}
	}
	if f.failOn[op] {
		if op == "load_script" {
			return &core.EngineFault{Op: op, Err: fmt.Errorf("%w: injected", core.ErrScriptRejected)}
		}
		return &core.EngineFault{Op: op, Err: errors.New("injected fault")}
	}
	return nil
}

func (f *Fake) Version() (int32, int32, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	if err := f.check("version"); err != nil {
		return 0, 0, err
	}
	return f.Major, f.Minor, nil
}

func (f *Fake) CreateDuel(opts core.DuelOptions) (core.Duel, error) {
	if f.OnCreate != nil {
		f.OnCreate(opts)
	}
	f.mu.Lock()
	defer f.mu.Unlock()
	if err := f.check("create_duel"); err != nil {
		return 0, err
	}
	if f.CreateErr != nil {
		return 0, f.CreateErr
	}
	f.next++
	f.opts = opts
	return f.next, nil
}

func (f *Fake) DestroyDuel(core.Duel) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.destroyed++
	return f.check("destroy_duel")
}

func (f *Fake) AddCard(_ core.Duel, info core.NewCardInfo) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	if err := f.check("add_card"); err != nil {
		return err
	}
	f.cards = append(f.cards, info)
	return nil
}

func (f *Fake) StartDuel(core.Duel) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	if err := f.check("start_duel"); err != nil {
		return err
	}
	f.started = true
	return nil
}

func (f *Fake) Process(core.Duel) (core.Status, error) {
	if f.OnProcess != nil {
		f.OnProcess()
	}
	f.mu.Lock()
	defer f.mu.Unlock()
	if err := f.check("process"); err != nil {
		return core.StatusEnd, err
	}
	if f.step >= len(f.steps) {
		return core.StatusAwaiting, nil
	}
	s := f.steps[f.step]
	f.step++
	f.pending = append(f.pending, s.Messages...)
	return s.Status, nil
}

// GetMessages frames the pending messages the way the engine does:
// u32 length then the message.
func (f *Fake) GetMessages(core.Duel) ([]byte, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	if err := f.check("get_messages"); err != nil {
		return nil, err
	}
	var out []byte
	for _, m := range f.pending {
		out = binary.LittleEndian.AppendUint32(out, uint32(len(m)))
		out = append(out, m...)
	}
	f.pending = nil
	return out, nil
}

func (f *Fake) SetResponse(_ core.Duel, resp []byte) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	if err := f.check("set_response"); err != nil {
		return err
	}
	f.responses = append(f.responses, append([]byte(nil), resp...))
	return nil
}

func (f *Fake) LoadScript(_ core.Duel, name string, _ []byte) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	if err := f.check("load_script"); err != nil {
		return err
	}
	f.scripts = append(f.scripts, name)
	return nil
}

func (f *Fake) QueryCount(_ core.Duel, team uint8, loc uint32) (uint32, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	if err := f.check("query_count"); err != nil {
		return 0, err
	}
	var n uint32
	for _, c := range f.cards {
		if c.Team == team && c.Loc == loc {
			n++
		}
	}
	return n, nil
}

func (f *Fake) Query(core.Duel, core.QueryInfo) ([]byte, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	if err := f.check("query"); err != nil {
		return nil, err
	}
	return f.QueryResult, nil
}

func (f *Fake) QueryLocation(core.Duel, core.QueryInfo) ([]byte, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	return nil, f.check("query_location")
}

func (f *Fake) QueryField(core.Duel) ([]byte, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	return nil, f.check("query_field")
}

func (f *Fake) Close() error {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.closed = true
	return nil
}

// Cards returns the placements made so far.
func (f *Fake) Cards() []core.NewCardInfo {
	f.mu.Lock()
	defer f.mu.Unlock()
	return append([]core.NewCardInfo(nil), f.cards...)
}

func (f *Fake) Responses() [][]byte {
	f.mu.Lock()
	defer f.mu.Unlock()
	return append([][]byte(nil), f.responses...)
}

func (f *Fake) Scripts() []string {
	f.mu.Lock()
	defer f.mu.Unlock()
	return append([]string(nil), f.scripts...)
}

func (f *Fake) Started() bool {
	f.mu.Lock()
	defer f.mu.Unlock()
	return f.started
}

func (f *Fake) Destroyed() int {
	f.mu.Lock()
	defer f.mu.Unlock()
	return f.destroyed
}

func (f *Fake) Closed() bool {
	f.mu.Lock()
	defer f.mu.Unlock()
	return f.closed
}

// Options returns the options of the most recent CreateDuel.
func (f *Fake) Options() core.DuelOptions {
	f.mu.Lock()
	defer f.mu.Unlock()
	return f.opts
}
