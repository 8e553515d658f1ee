package core

import (
	"encoding/binary"
	"errors"
	"fmt"
	"io"
	"time"
)

// Action is the tag at the head of the shared mailbox.
type Action uint32

const (
	ActNoWork Action = iota
	ActHeartbeat
	ActExit
	ActGetVersion
	ActCreateDuel
	ActDestroyDuel
	ActAddCard
	ActStartDuel
	ActProcess
	ActGetMessages
	ActSetResponse
	ActLoadScript
	ActQueryCount
	ActQuery
	ActQueryLocation
	ActQueryField
	ActCBDataReader
	ActCBScriptReader
	ActCBLogHandler
	ActCBDone
	ActExitConfirmed
	ActError
)

const (
	mailboxHeader  = 8
	mailboxPayload = 65535 * 2
	// MailboxSize is the size of the shared memory segment.
	MailboxSize = mailboxHeader + mailboxPayload
)

var (
	ErrPayloadTooLarge = errors.New("mailbox payload too large")
	errShortPayload    = errors.New("short mailbox payload")
)

// mailbox is the shared segment: u32 action, u32 payload length, payload.
// Only the side holding the doorbell token touches it.
type mailbox struct {
	mem []byte
}

func (m mailbox) action() Action { return Action(binary.LittleEndian.Uint32(m.mem[0:])) }

func (m mailbox) payload() []byte {
	n := binary.LittleEndian.Uint32(m.mem[4:])
	if n > mailboxPayload {
		n = mailboxPayload
	}
	return m.mem[mailboxHeader : mailboxHeader+n]
}

func (m mailbox) put(act Action, payload []byte) error {
	if len(payload) > mailboxPayload {
		return fmt.Errorf("%w: %d bytes", ErrPayloadTooLarge, len(payload))
	}
	binary.LittleEndian.PutUint32(m.mem[0:], uint32(act))
	binary.LittleEndian.PutUint32(m.mem[4:], uint32(len(payload)))
	copy(m.mem[mailboxHeader:], payload)
	return nil
}

// deadliner is satisfied by pipe ends created with os.Pipe.
type deadliner interface {
	SetReadDeadline(t time.Time) error
}

// doorbell passes the mailbox token between the two processes: a single
// byte written means "your turn".
type doorbell struct {
	r io.Reader
	w io.Writer
}

func (d doorbell) ring() error {
	_, err := d.w.Write([]byte{1})
	return err
}

// wait blocks until the other side rings. A zero timeout waits forever.
func (d doorbell) wait(timeout time.Duration) error {
	if dl, ok := d.r.(deadliner); ok && timeout > 0 {
		if err := dl.SetReadDeadline(time.Now().Add(timeout)); err != nil {
			return err
		}
	}
	var b [1]byte
	_, err := io.ReadFull(d.r, b[:])
	return err
}

// writer builds a payload.
type writer struct {
	b []byte
}

func (w *writer) u8(v uint8)   { w.b = append(w.b, v) }
func (w *writer) u16(v uint16) { w.b = binary.LittleEndian.AppendUint16(w.b, v) }
func (w *writer) u32(v uint32) { w.b = binary.LittleEndian.AppendUint32(w.b, v) }
func (w *writer) u64(v uint64) { w.b = binary.LittleEndian.AppendUint64(w.b, v) }

func (w *writer) bytes(v []byte) {
	w.u32(uint32(len(v)))
	w.b = append(w.b, v...)
}

func (w *writer) str(s string) { w.bytes([]byte(s)) }

// reader consumes a payload. The first short read sets err and every
// later read returns zero.
type reader struct {
	b   []byte
	err error
}

func (r *reader) take(n int) []byte {
	if r.err != nil {
		return nil
	}
	if len(r.b) < n {
		r.err = errShortPayload
		return nil
	}
	v := r.b[:n]
	r.b = r.b[n:]
	return v
}

func (r *reader) u8() uint8 {
	if v := r.take(1); v != nil {
		return v[0]
	}
	return 0
}

func (r *reader) u16() uint16 {
	if v := r.take(2); v != nil {
		return binary.LittleEndian.Uint16(v)
	}
	return 0
}

func (r *reader) u32() uint32 {
	if v := r.take(4); v != nil {
		return binary.LittleEndian.Uint32(v)
	}
	return 0
}

func (r *reader) u64() uint64 {
	if v := r.take(8); v != nil {
		return binary.LittleEndian.Uint64(v)
	}
	return 0
}

func (r *reader) bytes() []byte {
	n := r.u32()
	v := r.take(int(n))
	if v == nil {
		return nil
	}
	out := make([]byte, len(v))
	copy(out, v)
	return out
}

func (r *reader) str() string { return string(r.bytes()) }
