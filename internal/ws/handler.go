// Package ws carries room hosting frames over websocket, one frame per
// binary message.
package ws

import (
	"context"
	"net"
	"net/http"

	"nhooyr.io/websocket"

	"github.com/DoyleJ11/duel-room-server/internal/roomhost"
	"github.com/DoyleJ11/duel-room-server/internal/ygopro"
)

// Conn adapts a websocket to roomhost.FrameConn.
type Conn struct {
	conn *websocket.Conn
	ip   string
}

func NewConn(c *websocket.Conn, remoteAddr string) *Conn {
	ip, _, err := net.SplitHostPort(remoteAddr)
	if err != nil {
		ip = remoteAddr
	}
	return &Conn{conn: c, ip: ip}
}

// ReadFrame returns roomhost.ErrBadFrame for a text message or a binary
// message that is not exactly one frame; the socket stays usable.
func (c *Conn) ReadFrame(ctx context.Context) (ygopro.CTOSMsg, error) {
	typ, data, err := c.conn.Read(ctx)
	if err != nil {
		return ygopro.CTOSMsg{}, err
	}
	if typ != websocket.MessageBinary {
		return ygopro.CTOSMsg{}, roomhost.ErrBadFrame
	}
	msg, err := ygopro.DecodeCTOS(data)
	if err != nil {
		return ygopro.CTOSMsg{}, roomhost.ErrBadFrame
	}
	return msg, nil
}

func (c *Conn) WriteFrame(ctx context.Context, m ygopro.STOCMsg) error {
	return c.conn.Write(ctx, websocket.MessageBinary, m)
}

func (c *Conn) RemoteIP() string { return c.ip }

func (c *Conn) Close() error {
	return c.conn.Close(websocket.StatusNormalClosure, "bye")
}

// Handler upgrades the request and hands the socket to srv. An empty
// origins list accepts same-host origins only.
func Handler(srv *roomhost.Server, origins []string) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		conn, err := websocket.Accept(w, r, &websocket.AcceptOptions{
			OriginPatterns: origins,
		})
		if err != nil {
			return
		}
		srv.Serve(r.Context(), NewConn(conn, r.RemoteAddr))
	}
}
