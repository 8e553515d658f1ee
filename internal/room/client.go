package room

import (
	"sync"

	"github.com/google/uuid"

	"github.com/DoyleJ11/duel-room-server/internal/ygopro"
)

// Client is one connected participant. The seat, ready flag and decks are
// owned by the room strand; the outbox is drained by the client's writer.
type Client struct {
	ID   uuid.UUID
	name string
	ip   string

	pos      ygopro.Position
	ready    bool
	original *ygopro.Deck
	current  *ygopro.Deck

	mu     sync.Mutex
	out    chan ygopro.STOCMsg
	closed bool
	kill   chan struct{}
	once   sync.Once
}

func NewClient(name, ip string, outbox int) *Client {
	return &Client{
		ID:   uuid.New(),
		name: name,
		ip:   ip,
		pos:  ygopro.SpectatorPos,
		out:  make(chan ygopro.STOCMsg, outbox),
		kill: make(chan struct{}),
	}
}

func (c *Client) Name() string { return c.name }
func (c *Client) IP() string   { return c.ip }

// Position is only meaningful on the room strand.
func (c *Client) Position() ygopro.Position { return c.pos }

// Outbox is closed once the client is disconnected. Frames queued before a
// deferred disconnect are still delivered.
func (c *Client) Outbox() <-chan ygopro.STOCMsg { return c.out }

// Killed is closed on an immediate disconnect.
func (c *Client) Killed() <-chan struct{} { return c.kill }

// Send queues a frame. A client whose outbox is full is dropped.
func (c *Client) Send(m ygopro.STOCMsg) {
	c.mu.Lock()
	defer c.mu.Unlock()
	if c.closed {
		return
	}
	select {
	case c.out <- m:
	default:
		c.closeOutbox()
		c.once.Do(func() { close(c.kill) })
	}
}

// DeferredDisconnect lets the writer drain what is queued, then hang up.
func (c *Client) DeferredDisconnect() {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.closeOutbox()
}

// Disconnect hangs up without draining.
func (c *Client) Disconnect() {
	c.mu.Lock()
	c.closeOutbox()
	c.mu.Unlock()
	c.once.Do(func() { close(c.kill) })
}

func (c *Client) closeOutbox() {
	if !c.closed {
		c.closed = true
		close(c.out)
	}
}

func (c *Client) deck() *ygopro.Deck {
	if c.current != nil {
		return c.current
	}
	return c.original
}
