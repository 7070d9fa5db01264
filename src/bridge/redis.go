package bridge

import (
	"context"
	"encoding/json"
	"fmt"
	"sync"
	"time"

	"github.com/redis/go-redis/v9"
	"github.com/rs/zerolog"

	"github.com/mentorhub/realtime/src/types"
)

const (
	probeInterval  = 15 * time.Second
	backoffInitial = time.Second
	backoffMax     = 30 * time.Second
)

// RedisBroker fans envelopes out across server instances via Redis
// pub/sub. It holds two independent handles: one only publishes, one only
// subscribes, because a Redis connection in subscribe mode blocks all
// other commands.
type RedisBroker struct {
	pub    *redis.Client
	sub    *redis.Client
	prefix string
	logger zerolog.Logger

	ctx    context.Context
	cancel context.CancelFunc
	wg     sync.WaitGroup

	mu       sync.RWMutex
	pubsub   *redis.PubSub
	handlers map[string]Handler
	active   bool
	lastErr  error
}

// NewRedisBroker creates a broker adapter over Redis pub/sub.
func NewRedisBroker(cfg *RedisConfig, logger zerolog.Logger) *RedisBroker {
	opts := &redis.Options{
		Addr:     cfg.Addr,
		Password: cfg.Password,
		DB:       cfg.DB,
	}
	ctx, cancel := context.WithCancel(context.Background())

	return &RedisBroker{
		pub:      redis.NewClient(opts),
		sub:      redis.NewClient(opts),
		prefix:   cfg.Prefix,
		logger:   logger.With().Str("component", "redis-broker").Logger(),
		ctx:      ctx,
		cancel:   cancel,
		handlers: make(map[string]Handler),
	}
}

// Start pings both handles, opens the subscriber connection, and begins
// dispatching inbound messages.
func (b *RedisBroker) Start() error {
	if err := b.pub.Ping(b.ctx).Err(); err != nil {
		return err
	}
	if err := b.sub.Ping(b.ctx).Err(); err != nil {
		return err
	}

	ps := b.sub.Subscribe(b.ctx)

	b.mu.Lock()
	b.pubsub = ps
	b.active = true
	b.lastErr = nil
	b.mu.Unlock()

	b.wg.Add(2)
	go b.listen(ps)
	go b.supervise()

	b.logger.Info().Str("addr", b.pub.Options().Addr).Msg("redis broker started")
	return nil
}

// Publish serializes the envelope and sends it on the channel topic.
// A failure here is the caller's cue to log and move on, never to fail
// the operation that triggered the publish.
func (b *RedisBroker) Publish(channel string, env types.Envelope) error {
	data, err := json.Marshal(env)
	if err != nil {
		return err
	}
	if err := b.pub.Publish(b.ctx, b.prefix+channel, data).Err(); err != nil {
		b.recordError(err)
		return fmt.Errorf("%w: publish %s: %v", types.ErrBrokerUnavailable, channel, err)
	}
	return nil
}

// Subscribe registers the handler and opens the upstream subscription for
// the channel topic. The handler stays registered even if the upstream
// call fails; the reconnect loop resubscribes from the handler table.
func (b *RedisBroker) Subscribe(channel string, h Handler) error {
	b.mu.Lock()
	b.handlers[channel] = h
	ps := b.pubsub
	b.mu.Unlock()

	if ps == nil {
		return nil
	}
	if err := ps.Subscribe(b.ctx, b.prefix+channel); err != nil {
		b.recordError(err)
		return fmt.Errorf("%w: subscribe %s: %v", types.ErrBrokerUnavailable, channel, err)
	}
	b.logger.Debug().Str("channel", channel).Msg("subscribed")
	return nil
}

// Unsubscribe drops the channel topic and its handler.
func (b *RedisBroker) Unsubscribe(channel string) error {
	b.mu.Lock()
	delete(b.handlers, channel)
	ps := b.pubsub
	b.mu.Unlock()

	if ps == nil {
		return nil
	}
	if err := ps.Unsubscribe(b.ctx, b.prefix+channel); err != nil {
		b.recordError(err)
		return fmt.Errorf("%w: unsubscribe %s: %v", types.ErrBrokerUnavailable, channel, err)
	}
	b.logger.Debug().Str("channel", channel).Msg("unsubscribed")
	return nil
}

// Stop closes the subscriber connection and both client handles.
func (b *RedisBroker) Stop() error {
	b.mu.Lock()
	b.active = false
	ps := b.pubsub
	b.pubsub = nil
	b.mu.Unlock()

	b.cancel()
	if ps != nil {
		ps.Close()
	}
	b.wg.Wait()

	if err := b.sub.Close(); err != nil {
		b.pub.Close()
		return err
	}
	return b.pub.Close()
}

// Available reports whether the broker is connected.
func (b *RedisBroker) Available() bool {
	b.mu.RLock()
	defer b.mu.RUnlock()
	return b.active
}

// LastError returns the most recent broker failure, or nil.
func (b *RedisBroker) LastError() error {
	b.mu.RLock()
	defer b.mu.RUnlock()
	return b.lastErr
}

// SubscribedChannels returns the channels with a registered handler.
func (b *RedisBroker) SubscribedChannels() []string {
	b.mu.RLock()
	defer b.mu.RUnlock()
	channels := make([]string, 0, len(b.handlers))
	for ch := range b.handlers {
		channels = append(channels, ch)
	}
	return channels
}

// HealthCheck round-trips a ping on both handles.
func (b *RedisBroker) HealthCheck(ctx context.Context) error {
	if err := b.pub.Ping(ctx).Err(); err != nil {
		return fmt.Errorf("%w: publisher: %v", types.ErrBrokerUnavailable, err)
	}
	if err := b.sub.Ping(ctx).Err(); err != nil {
		return fmt.Errorf("%w: subscriber: %v", types.ErrBrokerUnavailable, err)
	}
	return nil
}

// listen reads messages from the subscriber connection and dispatches
// them to the channel's handler. Returns when the connection closes.
func (b *RedisBroker) listen(ps *redis.PubSub) {
	defer b.wg.Done()

	ch := ps.Channel()
	for {
		select {
		case msg, ok := <-ch:
			if !ok {
				return
			}
			b.dispatch(msg)
		case <-b.ctx.Done():
			return
		}
	}
}

// dispatch decodes an envelope and invokes the channel's handler. A panic
// in one handler is caught so it cannot break delivery on other channels.
func (b *RedisBroker) dispatch(msg *redis.Message) {
	channel := msg.Channel
	if len(channel) >= len(b.prefix) && channel[:len(b.prefix)] == b.prefix {
		channel = channel[len(b.prefix):]
	}

	b.mu.RLock()
	h, ok := b.handlers[channel]
	b.mu.RUnlock()
	if !ok {
		return
	}

	var env types.Envelope
	if err := json.Unmarshal([]byte(msg.Payload), &env); err != nil {
		b.logger.Error().Err(err).Str("channel", channel).Msg("failed to decode broker message")
		return
	}

	defer func() {
		if r := recover(); r != nil {
			err := fmt.Errorf("%w: %v", types.ErrHandlerFailure, r)
			b.logger.Error().Err(err).Str("channel", channel).Msg("handler panic recovered")
		}
	}()
	h(channel, env)
}

// supervise probes the subscriber handle periodically and drives the
// reconnect loop when it stops answering.
func (b *RedisBroker) supervise() {
	defer b.wg.Done()

	ticker := time.NewTicker(probeInterval)
	defer ticker.Stop()

	for {
		select {
		case <-ticker.C:
			if err := b.sub.Ping(b.ctx).Err(); err != nil {
				b.recordError(err)
				b.logger.Warn().Err(err).Msg("broker probe failed, reconnecting")
				b.reconnect()
			}
		case <-b.ctx.Done():
			return
		}
	}
}

// reconnect retries with bounded exponential backoff until the subscriber
// connection is reestablished or the broker is stopped.
func (b *RedisBroker) reconnect() {
	delay := backoffInitial
	for {
		select {
		case <-time.After(delay):
		case <-b.ctx.Done():
			return
		}

		if err := b.reestablish(); err != nil {
			b.recordError(err)
			b.logger.Warn().Err(err).Dur("retry_in", delay).Msg("broker reconnect failed")
			delay *= 2
			if delay > backoffMax {
				delay = backoffMax
			}
			continue
		}

		b.mu.Lock()
		b.active = true
		b.lastErr = nil
		b.mu.Unlock()
		b.logger.Info().Msg("broker reconnected")
		return
	}
}

// reestablish opens a fresh subscriber connection covering every channel
// in the handler table and swaps it in.
func (b *RedisBroker) reestablish() error {
	if err := b.sub.Ping(b.ctx).Err(); err != nil {
		return err
	}

	b.mu.Lock()
	topics := make([]string, 0, len(b.handlers))
	for ch := range b.handlers {
		topics = append(topics, b.prefix+ch)
	}
	old := b.pubsub
	ps := b.sub.Subscribe(b.ctx, topics...)
	b.pubsub = ps
	b.mu.Unlock()

	if old != nil {
		old.Close()
	}

	b.wg.Add(1)
	go b.listen(ps)
	return nil
}

// recordError notes a broker failure for the health surface.
func (b *RedisBroker) recordError(err error) {
	b.mu.Lock()
	b.active = false
	b.lastErr = err
	b.mu.Unlock()
}
