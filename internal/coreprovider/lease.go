package coreprovider

import (
	"errors"
	"sync"

	"github.com/DoyleJ11/duel-room-server/internal/core"
)

// shared counts the rooms holding a build so a swap never closes a
// binding with duels still running on it.
type shared struct {
	b core.Binding

	mu      sync.Mutex
	refs    int
	retired bool
	faulted bool
}

func (s *shared) acquire() core.Binding {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.refs++
	return &lease{b: s.b, s: s}
}

func (s *shared) release() {
	s.mu.Lock()
	s.refs--
	done := s.retired && s.refs == 0
	s.mu.Unlock()
	if done {
		_ = s.b.Close()
	}
}

func (s *shared) retire() {
	s.mu.Lock()
	s.retired = true
	done := s.refs == 0
	s.mu.Unlock()
	if done {
		_ = s.b.Close()
	}
}

// observe marks the binding faulted once any holder sees an engine fault.
// A faulted binding is never handed to another room.
func (s *shared) observe(err error) error {
	if core.IsFault(err) && !errors.Is(err, core.ErrScriptRejected) {
		s.mu.Lock()
		s.faulted = true
		s.mu.Unlock()
	}
	return err
}

func (s *shared) healthy() bool {
	s.mu.Lock()
	defer s.mu.Unlock()
	return !s.faulted
}

// lease forwards every call to the shared binding, watching for faults.
// Close only releases the holder's reference.
type lease struct {
	b    core.Binding
	s    *shared
	once sync.Once
}

func (l *lease) Version() (int32, int32, error) {
	major, minor, err := l.b.Version()
	return major, minor, l.s.observe(err)
}

func (l *lease) CreateDuel(opts core.DuelOptions) (core.Duel, error) {
	d, err := l.b.CreateDuel(opts)
	return d, l.s.observe(err)
}

func (l *lease) DestroyDuel(d core.Duel) error { return l.s.observe(l.b.DestroyDuel(d)) }

func (l *lease) AddCard(d core.Duel, info core.NewCardInfo) error {
	return l.s.observe(l.b.AddCard(d, info))
}

func (l *lease) StartDuel(d core.Duel) error { return l.s.observe(l.b.StartDuel(d)) }

func (l *lease) Process(d core.Duel) (core.Status, error) {
	st, err := l.b.Process(d)
	return st, l.s.observe(err)
}

func (l *lease) GetMessages(d core.Duel) ([]byte, error) {
	b, err := l.b.GetMessages(d)
	return b, l.s.observe(err)
}

func (l *lease) SetResponse(d core.Duel, resp []byte) error {
	return l.s.observe(l.b.SetResponse(d, resp))
}

func (l *lease) LoadScript(d core.Duel, name string, src []byte) error {
	return l.s.observe(l.b.LoadScript(d, name, src))
}

func (l *lease) QueryCount(d core.Duel, team uint8, loc uint32) (uint32, error) {
	n, err := l.b.QueryCount(d, team, loc)
	return n, l.s.observe(err)
}

func (l *lease) Query(d core.Duel, info core.QueryInfo) ([]byte, error) {
	b, err := l.b.Query(d, info)
	return b, l.s.observe(err)
}

func (l *lease) QueryLocation(d core.Duel, info core.QueryInfo) ([]byte, error) {
	b, err := l.b.QueryLocation(d, info)
	return b, l.s.observe(err)
}

func (l *lease) QueryField(d core.Duel) ([]byte, error) {
	b, err := l.b.QueryField(d)
	return b, l.s.observe(err)
}

func (l *lease) Close() error {
	l.once.Do(l.s.release)
	return nil
}
