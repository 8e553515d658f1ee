// Package roomhost turns a connection into a room client: it runs the
// hosting handshake, then pumps frames between the connection and the
// room.
package roomhost

import (
	"bufio"
	"context"
	"errors"
	"net"
	"time"

	"github.com/DoyleJ11/duel-room-server/internal/ygopro"
)

// ErrBadFrame is a frame that could not be decoded but did not break the
// stream. Sessions skip it.
var ErrBadFrame = errors.New("bad frame")

// FrameConn carries whole protocol frames.
type FrameConn interface {
	ReadFrame(ctx context.Context) (ygopro.CTOSMsg, error)
	WriteFrame(ctx context.Context, m ygopro.STOCMsg) error
	RemoteIP() string
	Close() error
}

// TCPConn frames a byte stream. A bad length prefix can not be skipped, so
// it ends the connection.
type TCPConn struct {
	conn net.Conn
	r    *bufio.Reader
}

func NewTCPConn(c net.Conn) *TCPConn {
	return &TCPConn{conn: c, r: bufio.NewReader(c)}
}

func (c *TCPConn) ReadFrame(ctx context.Context) (ygopro.CTOSMsg, error) {
	dl, _ := ctx.Deadline()
	if err := c.conn.SetReadDeadline(dl); err != nil {
		return ygopro.CTOSMsg{}, err
	}
	stop := context.AfterFunc(ctx, func() { _ = c.conn.SetReadDeadline(time.Unix(1, 0)) })
	defer stop()
	return ygopro.ReadCTOS(c.r)
}

func (c *TCPConn) WriteFrame(ctx context.Context, m ygopro.STOCMsg) error {
	dl, _ := ctx.Deadline()
	if err := c.conn.SetWriteDeadline(dl); err != nil {
		return err
	}
	_, err := c.conn.Write(m)
	return err
}

func (c *TCPConn) RemoteIP() string {
	host, _, err := net.SplitHostPort(c.conn.RemoteAddr().String())
	if err != nil {
		return c.conn.RemoteAddr().String()
	}
	return host
}

func (c *TCPConn) Close() error { return c.conn.Close() }
