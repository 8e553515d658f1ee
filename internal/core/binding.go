// Package core wraps the duel engine behind a single Binding interface with
// two backends: an in-process plugin and an isolated child process talking
// over a shared memory mailbox.
package core

import (
	"errors"
	"fmt"

	"github.com/DoyleJ11/duel-room-server/internal/ygopro"
)

// Duel is an engine duel handle. It is only meaningful to the binding that
// created it.
type Duel uint64

// Status is the result of advancing a duel.
type Status uint8

const (
	StatusEnd Status = iota
	StatusAwaiting
	StatusContinue
)

func (s Status) String() string {
	switch s {
	case StatusEnd:
		return "end"
	case StatusAwaiting:
		return "awaiting"
	case StatusContinue:
		return "continue"
	}
	return fmt.Sprintf("status(%d)", uint8(s))
}

// LogKind is the severity the engine attaches to its log messages.
type LogKind uint8

const (
	LogError LogKind = iota
	LogFromScript
	LogForDebug
	LogUndefined
)

// CardSupplier answers the engine's card data lookups.
type CardSupplier interface {
	DataFromCode(code uint32) (ygopro.CardData, bool)
}

// ScriptSupplier answers the engine's script lookups.
type ScriptSupplier interface {
	Script(name string) ([]byte, bool)
}

// LogHandler receives the engine's diagnostics.
type LogHandler func(kind LogKind, text string)

type PlayerOptions struct {
	StartingLP        uint32
	StartingDrawCount uint32
	DrawCountPerTurn  uint32
}

// DuelOptions configures a new duel. Callbacks run synchronously on the
// goroutine that made the binding call which triggered them.
type DuelOptions struct {
	Seed    [4]uint64
	Flags   uint64
	Team1   PlayerOptions
	Team2   PlayerOptions
	Cards   CardSupplier
	Scripts ScriptSupplier
	Log     LogHandler
}

// NewCardInfo places a card before the duel starts.
type NewCardInfo struct {
	Team    uint8
	Duelist uint8
	Code    uint32
	Con     uint8
	Loc     uint32
	Seq     uint32
	Pos     uint32
}

type QueryInfo struct {
	Flags      uint32
	Con        uint8
	Loc        uint32
	Seq        uint32
	OverlaySeq uint32
}

// Binding is the engine call surface. Any error other than a creation
// failure is an *EngineFault and poisons the duel it concerned.
type Binding interface {
	Version() (major, minor int32, err error)
	CreateDuel(opts DuelOptions) (Duel, error)
	DestroyDuel(d Duel) error
	AddCard(d Duel, info NewCardInfo) error
	StartDuel(d Duel) error
	Process(d Duel) (Status, error)
	GetMessages(d Duel) ([]byte, error)
	SetResponse(d Duel, resp []byte) error
	LoadScript(d Duel, name string, src []byte) error
	QueryCount(d Duel, team uint8, loc uint32) (uint32, error)
	Query(d Duel, info QueryInfo) ([]byte, error)
	QueryLocation(d Duel, info QueryInfo) ([]byte, error)
	QueryField(d Duel) ([]byte, error)
	Close() error
}

var (
	ErrBindingClosed  = errors.New("engine binding closed")
	ErrTimeout        = errors.New("engine call timed out")
	// ErrScriptRejected concerns the duel that loaded the script, not the
	// binding.
	ErrScriptRejected = errors.New("script rejected")
)

// EngineFault is a non-retryable engine failure: a crash, a protocol
// violation or a lost isolated process.
type EngineFault struct {
	Op  string
	Err error
}

func (e *EngineFault) Error() string { return fmt.Sprintf("engine fault in %s: %v", e.Op, e.Err) }
func (e *EngineFault) Unwrap() error { return e.Err }

// EngineCreationError reports that the engine refused to create a duel.
type EngineCreationError struct {
	Status int
}

func (e *EngineCreationError) Error() string {
	return fmt.Sprintf("engine could not create duel (status %d)", e.Status)
}

// IsFault reports whether err is, or wraps, an *EngineFault.
func IsFault(err error) bool {
	var f *EngineFault
	return errors.As(err, &f)
}

func fault(op string, err error) error {
	if err == nil || IsFault(err) {
		return err
	}
	return &EngineFault{Op: op, Err: err}
}
