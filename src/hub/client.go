package hub

import (
	"errors"
	"sync"
	"time"

	"github.com/mentorhub/realtime/src/types"
)

// Client wraps one authenticated WebSocket connection. A user may hold
// several at once (tabs, devices); each gets its own Client.
type Client struct {
	ID     string
	UserID string

	conn        types.Conn
	hub         *Hub
	Send        chan any
	connectedAt time.Time
	channels    map[string]bool

	mu     sync.RWMutex
	alive  bool
	closed bool
	done   chan struct{}
}

// NewClient creates a client wrapper for a verified connection.
func NewClient(id, userID string, conn types.Conn, h *Hub) *Client {
	return &Client{
		ID:          id,
		UserID:      userID,
		conn:        conn,
		hub:         h,
		Send:        make(chan any, 256),
		connectedAt: time.Now(),
		channels:    make(map[string]bool),
		alive:       true,
		done:        make(chan struct{}),
	}
}

// Info returns metadata about this connection.
func (c *Client) Info() types.ConnectionInfo {
	return types.ConnectionInfo{
		ID:          c.ID,
		UserID:      c.UserID,
		ConnectedAt: c.connectedAt,
		Channels:    c.Channels(),
	}
}

// Channels returns the channels this connection has joined.
func (c *Client) Channels() []string {
	c.mu.RLock()
	defer c.mu.RUnlock()
	channels := make([]string, 0, len(c.channels))
	for ch := range c.channels {
		channels = append(channels, ch)
	}
	return channels
}

// InChannel reports whether this connection has joined the channel.
func (c *Client) InChannel(channel string) bool {
	c.mu.RLock()
	defer c.mu.RUnlock()
	return c.channels[channel]
}

// AddChannel records a joined channel.
func (c *Client) AddChannel(channel string) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.channels[channel] = true
}

// RemoveChannel forgets a joined channel.
func (c *Client) RemoveChannel(channel string) {
	c.mu.Lock()
	defer c.mu.Unlock()
	delete(c.channels, channel)
}

// Alive reports whether the connection answered the last heartbeat probe.
func (c *Client) Alive() bool {
	c.mu.RLock()
	defer c.mu.RUnlock()
	return c.alive
}

// SetAlive updates the heartbeat flag.
func (c *Client) SetAlive(v bool) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.alive = v
}

// trySend queues an outbound frame without blocking. Returns false when
// the connection is closed or its buffer is full.
func (c *Client) trySend(v any) bool {
	c.mu.RLock()
	defer c.mu.RUnlock()
	if c.closed {
		return false
	}
	select {
	case c.Send <- v:
		return true
	default:
		return false
	}
}

// ReadPump reads frames from the socket and routes them to the hub.
// A malformed frame earns an error reply; anything else ends the pump
// and converges on the normal close path.
func (c *Client) ReadPump() {
	defer func() {
		c.hub.Unregister(c)
		c.conn.Close()
	}()

	for {
		var env types.Envelope
		if err := c.conn.ReadJSON(&env); err != nil {
			if errors.Is(err, types.ErrMalformedFrame) {
				c.trySend(types.NewErrorFrame("malformed frame"))
				continue
			}
			return
		}
		select {
		case c.hub.incoming <- inboundFrame{client: c, env: env}:
		case <-c.hub.done:
			return
		}
	}
}

// WritePump writes frames from the send channel to the socket.
func (c *Client) WritePump() {
	defer c.conn.Close()

	for {
		select {
		case v, ok := <-c.Send:
			if !ok {
				return
			}
			if err := c.conn.WriteJSON(v); err != nil {
				return
			}
		case <-c.done:
			return
		}
	}
}

// Close signals the client to stop its pumps. Idempotent.
func (c *Client) Close() {
	c.mu.Lock()
	defer c.mu.Unlock()
	if !c.closed {
		c.closed = true
		close(c.done)
		close(c.Send)
	}
}
