package hub

import (
	"context"
	"sync"
	"time"

	"github.com/rs/zerolog"

	"github.com/mentorhub/realtime/src/bridge"
	"github.com/mentorhub/realtime/src/types"
)

const sideEffectTimeout = 2 * time.Second

// Broker is the slice of the broker adapter the hub drives: one upstream
// subscription per channel with at least one local member.
type Broker interface {
	Publish(channel string, env types.Envelope) error
	Subscribe(channel string, h bridge.Handler) error
	Unsubscribe(channel string) error
	Available() bool
}

// PresenceTracker mirrors join/leave transitions into the shared store.
type PresenceTracker interface {
	MarkOnline(ctx context.Context, channel, userID string) error
	MarkOffline(ctx context.Context, channel, userID string) error
	MarkOnlineGlobal(ctx context.Context, userID string) error
	MarkOfflineGlobal(ctx context.Context, userID string) error
}

// TypingTracker records typing signals in the shared store.
type TypingTracker interface {
	SetTyping(ctx context.Context, channel, userID string) error
	ClearTyping(ctx context.Context, channel, userID string) error
}

// Hub owns every live connection on this instance. It is the connection
// registry (user -> connections), the channel subscription manager
// (channel -> connections, reference-counting the upstream broker
// subscription), and the heartbeat monitor. Frame handling, delivery,
// and heartbeats run on the hub's event loop; registry and subscription
// maps are lock-guarded.
type Hub struct {
	clients  map[string]*Client         // connection id -> client
	users    map[string]map[string]bool // user id -> set of connection ids
	channels map[string]map[string]bool // channel -> set of connection ids

	unregister chan *Client
	incoming   chan inboundFrame
	deliver    chan deliverMsg

	broker   Broker
	presence PresenceTracker
	typing   TypingTracker

	pingInterval time.Duration
	onEvict      []func(connID string)

	// transMu serializes registry and subscription transitions together
	// with the broker and presence side effects they trigger. Without it a
	// 1->0 unsubscribe could land after a concurrent 0->1 subscribe and
	// leave a populated channel with no upstream subscription.
	transMu sync.Mutex

	mu       sync.RWMutex
	logger   zerolog.Logger
	stopOnce sync.Once
	done     chan struct{}
}

type inboundFrame struct {
	client *Client
	env    types.Envelope
}

type deliverMsg struct {
	channel string
	env     types.Envelope
}

// Options configures a Hub.
type Options struct {
	Broker       Broker
	Presence     PresenceTracker
	Typing       TypingTracker
	PingInterval time.Duration
}

// New creates a Hub. Broker, presence, and typing are injected up front;
// the hub never reaches for ambient singletons.
func New(opts Options, logger zerolog.Logger) *Hub {
	if opts.PingInterval <= 0 {
		opts.PingInterval = 30 * time.Second
	}
	return &Hub{
		clients:      make(map[string]*Client),
		users:        make(map[string]map[string]bool),
		channels:     make(map[string]map[string]bool),
		unregister:   make(chan *Client),
		incoming:     make(chan inboundFrame, 256),
		deliver:      make(chan deliverMsg, 256),
		broker:       opts.Broker,
		presence:     opts.Presence,
		typing:       opts.Typing,
		pingInterval: opts.PingInterval,
		logger:       logger.With().Str("component", "hub").Logger(),
		done:         make(chan struct{}),
	}
}

// Run starts the hub event loop. Call in a goroutine.
func (h *Hub) Run() {
	ticker := time.NewTicker(h.pingInterval)
	defer ticker.Stop()

	for {
		select {
		case client := <-h.unregister:
			h.removeClient(client)
		case frame := <-h.incoming:
			h.handleFrame(frame.client, frame.env)
		case dm := <-h.deliver:
			h.fanout(dm.channel, dm.env)
		case <-ticker.C:
			h.checkHeartbeats()
		case <-h.done:
			return
		}
	}
}

// Stop halts the hub event loop. Idempotent.
func (h *Hub) Stop() {
	h.stopOnce.Do(func() { close(h.done) })
}

// Shutdown closes every live connection and stops the loop.
func (h *Hub) Shutdown() {
	h.mu.RLock()
	clients := make([]*Client, 0, len(h.clients))
	for _, c := range h.clients {
		clients = append(clients, c)
	}
	h.mu.RUnlock()

	for _, c := range clients {
		c.Close()
	}
	h.Stop()
}

// Register adds a client to the registry. Synchronous, so the caller can
// join channels immediately after.
func (h *Hub) Register(c *Client) {
	h.addClient(c)
}

// OnEviction registers a callback fired when the heartbeat monitor
// terminates a connection. Call before Run.
func (h *Hub) OnEviction(cb func(connID string)) {
	h.onEvict = append(h.onEvict, cb)
}

// Unregister hands a client to the event loop for removal. Returns
// without queueing once the hub has stopped, so pump teardown never
// blocks on a dead loop.
func (h *Hub) Unregister(c *Client) {
	select {
	case h.unregister <- c:
	case <-h.done:
	}
}

func (h *Hub) addClient(c *Client) {
	h.transMu.Lock()
	defer h.transMu.Unlock()

	h.mu.Lock()
	h.clients[c.ID] = c
	conns := h.users[c.UserID]
	firstConn := len(conns) == 0
	if conns == nil {
		conns = make(map[string]bool)
		h.users[c.UserID] = conns
	}
	conns[c.ID] = true
	h.mu.Unlock()

	h.logger.Info().Str("conn_id", c.ID).Str("user_id", c.UserID).Msg("connection registered")

	// Global presence fires only on the user's first connection.
	if firstConn {
		h.withTimeout(func(ctx context.Context) error {
			return h.presence.MarkOnlineGlobal(ctx, c.UserID)
		}, "mark online global")
	}
}

// removeClient is the single cleanup routine every close path converges
// on: socket close, heartbeat eviction, and shutdown all end here. It is
// idempotent; a second pass for the same client is a no-op.
func (h *Hub) removeClient(c *Client) {
	h.transMu.Lock()
	defer h.transMu.Unlock()

	h.mu.Lock()
	if _, ok := h.clients[c.ID]; !ok {
		h.mu.Unlock()
		return
	}
	delete(h.clients, c.ID)
	h.mu.Unlock()

	// Tear down every channel this connection had joined.
	for _, channel := range c.Channels() {
		h.detach(c, channel)
	}

	h.mu.Lock()
	lastConn := false
	if conns, ok := h.users[c.UserID]; ok {
		delete(conns, c.ID)
		if len(conns) == 0 {
			delete(h.users, c.UserID)
			lastConn = true
		}
	}
	h.mu.Unlock()

	c.Close()
	h.logger.Info().Str("conn_id", c.ID).Str("user_id", c.UserID).Msg("connection unregistered")

	// The transition to an empty set fires the offline side effect exactly
	// once, however many sockets of this user close concurrently.
	if lastConn {
		h.withTimeout(func(ctx context.Context) error {
			return h.presence.MarkOfflineGlobal(ctx, c.UserID)
		}, "mark offline global")
	}
}

// withTimeout runs a best-effort store side effect. Failures are logged
// and swallowed; the registry itself stays consistent.
func (h *Hub) withTimeout(fn func(ctx context.Context) error, op string) {
	ctx, cancel := context.WithTimeout(context.Background(), sideEffectTimeout)
	defer cancel()
	if err := fn(ctx); err != nil {
		h.logger.Warn().Err(err).Str("op", op).Msg("presence store call failed")
	}
}
