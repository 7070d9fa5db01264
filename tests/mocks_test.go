package tests

import (
	"context"
	"sync"
	"testing"
	"time"

	"github.com/rs/zerolog"

	"github.com/mentorhub/realtime/src/bridge"
	"github.com/mentorhub/realtime/src/hub"
	"github.com/mentorhub/realtime/src/types"
)

// mockConn implements types.Conn for testing without a real WebSocket.
type mockConn struct {
	mu       sync.Mutex
	written  []any
	readCh   chan types.Envelope
	errCh    chan error
	closed   bool
	closedCh chan struct{}
}

func newMockConn() *mockConn {
	return &mockConn{
		readCh:   make(chan types.Envelope, 16),
		errCh:    make(chan error, 4),
		closedCh: make(chan struct{}),
	}
}

func (m *mockConn) WriteJSON(v any) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.written = append(m.written, v)
	return nil
}

func (m *mockConn) ReadJSON(v any) error {
	select {
	case env := <-m.readCh:
		if ptr, ok := v.(*types.Envelope); ok {
			*ptr = env
		}
		return nil
	case err := <-m.errCh:
		return err
	case <-m.closedCh:
		return &closeError{}
	}
}

func (m *mockConn) Close() error {
	m.mu.Lock()
	defer m.mu.Unlock()
	if !m.closed {
		m.closed = true
		close(m.closedCh)
	}
	return nil
}

func (m *mockConn) getWritten() []any {
	m.mu.Lock()
	defer m.mu.Unlock()
	cp := make([]any, len(m.written))
	copy(cp, m.written)
	return cp
}

// envelopesOfType filters written frames down to envelopes of one type.
func (m *mockConn) envelopesOfType(t types.EnvelopeType) []types.Envelope {
	var out []types.Envelope
	for _, v := range m.getWritten() {
		if env, ok := v.(types.Envelope); ok && env.Type == t {
			out = append(out, env)
		}
	}
	return out
}

// errorFrames filters written frames down to error replies.
func (m *mockConn) errorFrames() []types.ErrorFrame {
	var out []types.ErrorFrame
	for _, v := range m.getWritten() {
		if ef, ok := v.(types.ErrorFrame); ok {
			out = append(out, ef)
		}
	}
	return out
}

type closeError struct{}

func (e *closeError) Error() string { return "connection closed" }

// mockBroker records publishes and keeps a handler dispatch table, like
// the Redis broker but in-process. deliver simulates the broker round
// trip back into the subscribed handler.
type mockBroker struct {
	mu        sync.Mutex
	handlers  map[string]bridge.Handler
	published []publishedEnv
	available bool
	failPub   bool
}

type publishedEnv struct {
	channel string
	env     types.Envelope
}

func newMockBroker() *mockBroker {
	return &mockBroker{handlers: make(map[string]bridge.Handler), available: true}
}

func (b *mockBroker) Publish(channel string, env types.Envelope) error {
	b.mu.Lock()
	defer b.mu.Unlock()
	if b.failPub {
		return types.ErrBrokerUnavailable
	}
	b.published = append(b.published, publishedEnv{channel: channel, env: env})
	return nil
}

func (b *mockBroker) Subscribe(channel string, h bridge.Handler) error {
	b.mu.Lock()
	defer b.mu.Unlock()
	b.handlers[channel] = h
	return nil
}

func (b *mockBroker) Unsubscribe(channel string) error {
	b.mu.Lock()
	defer b.mu.Unlock()
	delete(b.handlers, channel)
	return nil
}

func (b *mockBroker) Start() error                      { return nil }
func (b *mockBroker) Stop() error                       { return nil }
func (b *mockBroker) Available() bool                   { return b.available }
func (b *mockBroker) HealthCheck(context.Context) error { return nil }

func (b *mockBroker) subscribedTo(channel string) bool {
	b.mu.Lock()
	defer b.mu.Unlock()
	_, ok := b.handlers[channel]
	return ok
}

// deliver pushes an envelope through the subscribed handler, as the real
// broker does on message receipt.
func (b *mockBroker) deliver(channel string, env types.Envelope) bool {
	b.mu.Lock()
	h, ok := b.handlers[channel]
	b.mu.Unlock()
	if !ok {
		return false
	}
	h(channel, env)
	return true
}

func (b *mockBroker) publishedOfType(t types.EnvelopeType) []publishedEnv {
	b.mu.Lock()
	defer b.mu.Unlock()
	var out []publishedEnv
	for _, p := range b.published {
		if p.env.Type == t {
			out = append(out, p)
		}
	}
	return out
}

// mockPresence records online sets in memory.
type mockPresence struct {
	mu     sync.Mutex
	online map[string]map[string]bool // channel -> user set
	global map[string]bool
}

func newMockPresence() *mockPresence {
	return &mockPresence{online: make(map[string]map[string]bool), global: make(map[string]bool)}
}

func (p *mockPresence) MarkOnline(_ context.Context, channel, userID string) error {
	p.mu.Lock()
	defer p.mu.Unlock()
	if p.online[channel] == nil {
		p.online[channel] = make(map[string]bool)
	}
	p.online[channel][userID] = true
	return nil
}

func (p *mockPresence) MarkOffline(_ context.Context, channel, userID string) error {
	p.mu.Lock()
	defer p.mu.Unlock()
	delete(p.online[channel], userID)
	return nil
}

func (p *mockPresence) MarkOnlineGlobal(_ context.Context, userID string) error {
	p.mu.Lock()
	defer p.mu.Unlock()
	p.global[userID] = true
	return nil
}

func (p *mockPresence) MarkOfflineGlobal(_ context.Context, userID string) error {
	p.mu.Lock()
	defer p.mu.Unlock()
	delete(p.global, userID)
	return nil
}

func (p *mockPresence) onlineIn(channel string) []string {
	p.mu.Lock()
	defer p.mu.Unlock()
	var out []string
	for u := range p.online[channel] {
		out = append(out, u)
	}
	return out
}

func (p *mockPresence) globalOnline(userID string) bool {
	p.mu.Lock()
	defer p.mu.Unlock()
	return p.global[userID]
}

// mockTyping records typing entries in memory.
type mockTyping struct {
	mu      sync.Mutex
	entries map[string]map[string]bool // channel -> user set
}

func newMockTyping() *mockTyping {
	return &mockTyping{entries: make(map[string]map[string]bool)}
}

func (t *mockTyping) SetTyping(_ context.Context, channel, userID string) error {
	t.mu.Lock()
	defer t.mu.Unlock()
	if t.entries[channel] == nil {
		t.entries[channel] = make(map[string]bool)
	}
	t.entries[channel][userID] = true
	return nil
}

func (t *mockTyping) ClearTyping(_ context.Context, channel, userID string) error {
	t.mu.Lock()
	defer t.mu.Unlock()
	delete(t.entries[channel], userID)
	return nil
}

func (t *mockTyping) typingIn(channel, userID string) bool {
	t.mu.Lock()
	defer t.mu.Unlock()
	return t.entries[channel][userID]
}

// testEnv bundles a hub with its mocks, loop already running.
type testEnv struct {
	hub      *hub.Hub
	broker   *mockBroker
	presence *mockPresence
	typing   *mockTyping
}

func newTestEnv(t *testing.T, pingInterval time.Duration) *testEnv {
	t.Helper()
	env := &testEnv{
		broker:   newMockBroker(),
		presence: newMockPresence(),
		typing:   newMockTyping(),
	}
	env.hub = hub.New(hub.Options{
		Broker:       env.broker,
		Presence:     env.presence,
		Typing:       env.typing,
		PingInterval: pingInterval,
	}, zerolog.Nop())
	go env.hub.Run()
	t.Cleanup(func() { env.hub.Stop() })
	return env
}

// connect registers a client for the user and starts both pumps.
func (e *testEnv) connect(t *testing.T, connID, userID string) (*hub.Client, *mockConn) {
	t.Helper()
	conn := newMockConn()
	client := hub.NewClient(connID, userID, conn, e.hub)
	e.hub.Register(client)
	go client.WritePump()
	go client.ReadPump()
	// Allow the pumps to settle.
	time.Sleep(20 * time.Millisecond)
	return client, conn
}
