package core

import (
	"bytes"
	"fmt"
	"runtime"
	"slices"
	"sync"
	"unsafe"

	"github.com/ebitengine/purego"

	"github.com/DoyleJ11/duel-room-server/internal/ygopro"
)

// C layouts of the engine API structs. Field order and widths follow
// ocgapi_types.h; Go's natural alignment matches the C one for these.
type cPlayer struct {
	StartingLP        uint32
	StartingDrawCount uint32
	DrawCountPerTurn  uint32
}

type cDuelOptions struct {
	Seed                  [4]uint64
	Flags                 uint64
	Team1                 cPlayer
	Team2                 cPlayer
	CardReader            uintptr
	Payload1              uintptr
	ScriptReader          uintptr
	Payload2              uintptr
	LogHandler            uintptr
	Payload3              uintptr
	CardReaderDone        uintptr
	Payload4              uintptr
	EnableUnsafeLibraries uint8
}

type cNewCardInfo struct {
	Team    uint8
	Duelist uint8
	Code    uint32
	Con     uint8
	Loc     uint32
	Seq     uint32
	Pos     uint32
}

type cQueryInfo struct {
	Flags      uint32
	Con        uint8
	Loc        uint32
	Seq        uint32
	OverlaySeq uint32
}

type cCardData struct {
	Code       uint32
	Alias      uint32
	Setcodes   *uint16 // zero terminated
	Type       uint32
	Level      uint32
	Attribute  uint32
	Race       uint64
	Attack     int32
	Defense    int32
	LScale     uint32
	RScale     uint32
	LinkMarker uint32
}

// Plugin runs a native engine build inside this process, bound through
// purego without cgo. A crash in the engine takes the process with it;
// the hornet backend exists to contain that.
type Plugin struct {
	path string
	lib  uintptr

	getVersion    func(major, minor *int32)
	createDuel    func(out *uintptr, opts *cDuelOptions) int32
	destroyDuel   func(d uintptr)
	newCard       func(d uintptr, info *cNewCardInfo)
	startDuel     func(d uintptr)
	process       func(d uintptr) int32
	getMessage    func(d uintptr, length *uint32) unsafe.Pointer
	setResponse   func(d uintptr, buf *byte, length uint32)
	loadScript    func(d uintptr, buf *byte, length uint32, name string) int32
	queryCount    func(d uintptr, team uint8, loc uint32) uint32
	query         func(d uintptr, length *uint32, info *cQueryInfo) unsafe.Pointer
	queryLocation func(d uintptr, length *uint32, info *cQueryInfo) unsafe.Pointer
	queryField    func(d uintptr, length *uint32) unsafe.Pointer

	mu     sync.Mutex
	duels  map[Duel]*nativeDuel
	closed bool
}

var _ Binding = (*Plugin)(nil)

// OpenPlugin loads the engine build at path and resolves every symbol up
// front so a bad build fails here rather than mid duel.
func OpenPlugin(path string) (*Plugin, error) {
	lib, err := purego.Dlopen(path, purego.RTLD_NOW|purego.RTLD_LOCAL)
	if err != nil {
		return nil, fmt.Errorf("open engine %s: %w", path, err)
	}
	p := &Plugin{path: path, lib: lib, duels: make(map[Duel]*nativeDuel)}
	syms := []struct {
		name string
		fn   any
	}{
		{"OCG_GetVersion", &p.getVersion},
		{"OCG_CreateDuel", &p.createDuel},
		{"OCG_DestroyDuel", &p.destroyDuel},
		{"OCG_DuelNewCard", &p.newCard},
		{"OCG_StartDuel", &p.startDuel},
		{"OCG_DuelProcess", &p.process},
		{"OCG_DuelGetMessage", &p.getMessage},
		{"OCG_DuelSetResponse", &p.setResponse},
		{"OCG_LoadScript", &p.loadScript},
		{"OCG_DuelQueryCount", &p.queryCount},
		{"OCG_DuelQuery", &p.query},
		{"OCG_DuelQueryLocation", &p.queryLocation},
		{"OCG_DuelQueryField", &p.queryField},
	}
	for _, s := range syms {
		addr, err := purego.Dlsym(lib, s.name)
		if err != nil {
			_ = purego.Dlclose(lib)
			return nil, fmt.Errorf("engine %s: %w", path, err)
		}
		purego.RegisterFunc(s.fn, addr)
	}
	registerCallbacks()
	return p, nil
}

func (p *Plugin) Path() string { return p.path }

func (p *Plugin) duel(op string, d Duel) (*nativeDuel, error) {
	p.mu.Lock()
	defer p.mu.Unlock()
	if p.closed {
		return nil, &EngineFault{Op: op, Err: ErrBindingClosed}
	}
	nd, ok := p.duels[d]
	if !ok {
		return nil, &EngineFault{Op: op, Err: fmt.Errorf("unknown duel %d", d)}
	}
	return nd, nil
}

func (p *Plugin) Version() (int32, int32, error) {
	var major, minor int32
	p.getVersion(&major, &minor)
	return major, minor, nil
}

func (p *Plugin) CreateDuel(opts DuelOptions) (Duel, error) {
	p.mu.Lock()
	closed := p.closed
	p.mu.Unlock()
	if closed {
		return 0, &EngineFault{Op: "create_duel", Err: ErrBindingClosed}
	}

	nd := &nativeDuel{p: p, opts: opts, setcodes: make(map[uint32][]uint16)}
	id := callbacks.add(nd)
	team := func(o PlayerOptions) cPlayer {
		return cPlayer{o.StartingLP, o.StartingDrawCount, o.DrawCountPerTurn}
	}
	copts := cDuelOptions{
		Seed:           opts.Seed,
		Flags:          opts.Flags,
		Team1:          team(opts.Team1),
		Team2:          team(opts.Team2),
		CardReader:     callbacks.dataReader,
		Payload1:       id,
		ScriptReader:   callbacks.scriptReader,
		Payload2:       id,
		LogHandler:     callbacks.logHandler,
		Payload3:       id,
		CardReaderDone: callbacks.dataReaderDone,
		Payload4:       id,
	}
	var h uintptr
	if status := p.createDuel(&h, &copts); status != 0 {
		callbacks.remove(id)
		nd.pinner.Unpin()
		return 0, &EngineCreationError{Status: int(status)}
	}
	nd.h = h

	p.mu.Lock()
	defer p.mu.Unlock()
	p.duels[Duel(id)] = nd
	return Duel(id), nil
}

func (p *Plugin) DestroyDuel(d Duel) error {
	nd, err := p.duel("destroy_duel", d)
	if err != nil {
		return err
	}
	p.mu.Lock()
	delete(p.duels, d)
	p.mu.Unlock()
	p.release(d, nd)
	return nil
}

func (p *Plugin) release(d Duel, nd *nativeDuel) {
	p.destroyDuel(nd.h)
	callbacks.remove(uintptr(d))
	nd.pinner.Unpin()
}

func (p *Plugin) AddCard(d Duel, info NewCardInfo) error {
	nd, err := p.duel("add_card", d)
	if err != nil {
		return err
	}
	p.newCard(nd.h, &cNewCardInfo{
		Team:    info.Team,
		Duelist: info.Duelist,
		Code:    info.Code,
		Con:     info.Con,
		Loc:     info.Loc,
		Seq:     info.Seq,
		Pos:     info.Pos,
	})
	return nil
}

func (p *Plugin) StartDuel(d Duel) error {
	nd, err := p.duel("start_duel", d)
	if err != nil {
		return err
	}
	p.startDuel(nd.h)
	return nil
}

func (p *Plugin) Process(d Duel) (Status, error) {
	nd, err := p.duel("process", d)
	if err != nil {
		return StatusEnd, err
	}
	return Status(p.process(nd.h)), nil
}

func (p *Plugin) GetMessages(d Duel) ([]byte, error) {
	nd, err := p.duel("get_messages", d)
	if err != nil {
		return nil, err
	}
	var n uint32
	ptr := p.getMessage(nd.h, &n)
	return copyOut(ptr, n), nil
}

func (p *Plugin) SetResponse(d Duel, resp []byte) error {
	nd, err := p.duel("set_response", d)
	if err != nil {
		return err
	}
	p.setResponse(nd.h, firstByte(resp), uint32(len(resp)))
	return nil
}

func (p *Plugin) LoadScript(d Duel, name string, src []byte) error {
	nd, err := p.duel("load_script", d)
	if err != nil {
		return err
	}
	if p.loadScript(nd.h, firstByte(src), uint32(len(src)), name) == 0 {
		return &EngineFault{Op: "load_script", Err: fmt.Errorf("%w: %q", ErrScriptRejected, name)}
	}
	return nil
}

func (p *Plugin) QueryCount(d Duel, team uint8, loc uint32) (uint32, error) {
	nd, err := p.duel("query_count", d)
	if err != nil {
		return 0, err
	}
	return p.queryCount(nd.h, team, loc), nil
}

func toCQuery(info QueryInfo) *cQueryInfo {
	return &cQueryInfo{Flags: info.Flags, Con: info.Con, Loc: info.Loc, Seq: info.Seq, OverlaySeq: info.OverlaySeq}
}

func (p *Plugin) Query(d Duel, info QueryInfo) ([]byte, error) {
	nd, err := p.duel("query", d)
	if err != nil {
		return nil, err
	}
	var n uint32
	ptr := p.query(nd.h, &n, toCQuery(info))
	return copyOut(ptr, n), nil
}

func (p *Plugin) QueryLocation(d Duel, info QueryInfo) ([]byte, error) {
	nd, err := p.duel("query_location", d)
	if err != nil {
		return nil, err
	}
	var n uint32
	ptr := p.queryLocation(nd.h, &n, toCQuery(info))
	return copyOut(ptr, n), nil
}

func (p *Plugin) QueryField(d Duel) ([]byte, error) {
	nd, err := p.duel("query_field", d)
	if err != nil {
		return nil, err
	}
	var n uint32
	ptr := p.queryField(nd.h, &n)
	return copyOut(ptr, n), nil
}

// Close destroys any duel still open and unloads the library.
func (p *Plugin) Close() error {
	p.mu.Lock()
	if p.closed {
		p.mu.Unlock()
		return nil
	}
	p.closed = true
	open := p.duels
	p.duels = nil
	p.mu.Unlock()
	for d, nd := range open {
		p.release(d, nd)
	}
	return purego.Dlclose(p.lib)
}

// copyOut copies an engine owned buffer, valid only until the next call on
// the duel, into Go memory.
func copyOut(ptr unsafe.Pointer, n uint32) []byte {
	if ptr == nil || n == 0 {
		return nil
	}
	return bytes.Clone(unsafe.Slice((*byte)(ptr), n))
}

func firstByte(b []byte) *byte {
	if len(b) == 0 {
		return nil
	}
	return &b[0]
}

func goString(p *byte) string {
	if p == nil {
		return ""
	}
	n := 0
	for *(*byte)(unsafe.Add(unsafe.Pointer(p), n)) != 0 {
		n++
	}
	return string(unsafe.Slice(p, n))
}

// nativeDuel is what the engine callbacks see of a duel. The engine keeps
// the setcode arrays it is handed, so they stay pinned until the duel is
// destroyed.
type nativeDuel struct {
	p        *Plugin
	h        uintptr
	opts     DuelOptions
	pinner   runtime.Pinner
	setcodes map[uint32][]uint16
}

func (nd *nativeDuel) setcodesFor(c ygopro.CardData) *uint16 {
	s, ok := nd.setcodes[c.Code]
	if !ok {
		s = append(slices.Clone(c.Setcodes), 0)
		nd.pinner.Pin(&s[0])
		nd.setcodes[c.Code] = s
	}
	return &s[0]
}

// The engine calls back through C function pointers. purego never frees a
// callback, so there is one set per process and the payload the engine
// passes back is a registry id, not a Go pointer.
var callbacks = &callbackTable{duels: make(map[uintptr]*nativeDuel)}

type callbackTable struct {
	once           sync.Once
	dataReader     uintptr
	scriptReader   uintptr
	logHandler     uintptr
	dataReaderDone uintptr

	mu    sync.Mutex
	next  uintptr
	duels map[uintptr]*nativeDuel
}

func registerCallbacks() {
	callbacks.once.Do(func() {
		callbacks.dataReader = purego.NewCallback(cbDataReader)
		callbacks.scriptReader = purego.NewCallback(cbScriptReader)
		callbacks.logHandler = purego.NewCallback(cbLogHandler)
		callbacks.dataReaderDone = purego.NewCallback(cbDataReaderDone)
	})
}

func (t *callbackTable) add(nd *nativeDuel) uintptr {
	t.mu.Lock()
	defer t.mu.Unlock()
	t.next++
	t.duels[t.next] = nd
	return t.next
}

func (t *callbackTable) remove(id uintptr) {
	t.mu.Lock()
	defer t.mu.Unlock()
	delete(t.duels, id)
}

func (t *callbackTable) get(id uintptr) *nativeDuel {
	t.mu.Lock()
	defer t.mu.Unlock()
	return t.duels[id]
}

func cbDataReader(payload uintptr, code uint32, out *cCardData) {
	*out = cCardData{Code: code}
	nd := callbacks.get(payload)
	if nd == nil || nd.opts.Cards == nil {
		return
	}
	c, ok := nd.opts.Cards.DataFromCode(code)
	if !ok {
		return
	}
	*out = cCardData{
		Code:       c.Code,
		Alias:      c.Alias,
		Setcodes:   nd.setcodesFor(c),
		Type:       c.Type,
		Level:      c.Level,
		Attribute:  c.Attribute,
		Race:       c.Race,
		Attack:     c.Attack,
		Defense:    c.Defense,
		LScale:     c.LScale,
		RScale:     c.RScale,
		LinkMarker: c.LinkMarker,
	}
}

func cbScriptReader(payload uintptr, duel uintptr, name *byte) int32 {
	nd := callbacks.get(payload)
	if nd == nil || nd.opts.Scripts == nil {
		return 0
	}
	file := goString(name)
	src, ok := nd.opts.Scripts.Script(file)
	if !ok {
		return 0
	}
	return nd.p.loadScript(duel, firstByte(src), uint32(len(src)), file)
}

func cbLogHandler(payload uintptr, text *byte, kind int32) {
	nd := callbacks.get(payload)
	if nd == nil || nd.opts.Log == nil {
		return
	}
	nd.opts.Log(LogKind(kind), goString(text))
}

// Setcode arrays are released with the duel.
func cbDataReaderDone(payload uintptr, data *cCardData) {}
