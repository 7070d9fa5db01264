package hub

import (
	"context"

	"github.com/mentorhub/realtime/src/types"
)

// Join adds the connection to the channel's local set. The first local
// joiner opens the upstream broker subscription; multiple local members
// share that one subscription. The first connection of a given user in
// the channel marks presence and announces USER_JOINED.
func (h *Hub) Join(c *Client, channel string) bool {
	h.transMu.Lock()
	defer h.transMu.Unlock()

	h.mu.Lock()
	if _, ok := h.clients[c.ID]; !ok {
		h.mu.Unlock()
		return false
	}
	subs := h.channels[channel]
	firstLocal := len(subs) == 0
	if subs == nil {
		subs = make(map[string]bool)
		h.channels[channel] = subs
	}
	userAlready := h.userInChannelLocked(c.UserID, channel, c.ID)
	subs[c.ID] = true
	c.AddChannel(channel)
	h.mu.Unlock()

	if firstLocal {
		if err := h.broker.Subscribe(channel, h.brokerHandler); err != nil {
			h.logger.Warn().Err(err).Str("channel", channel).Msg("broker subscribe failed")
		}
	}
	if !userAlready {
		h.withTimeout(func(ctx context.Context) error {
			return h.presence.MarkOnline(ctx, channel, c.UserID)
		}, "mark online")
		h.announce(channel, types.EnvelopeUserJoined, c.UserID)
	}

	h.logger.Debug().Str("conn_id", c.ID).Str("channel", channel).Msg("joined")
	return true
}

// Leave removes the connection from the channel's local set. The last
// local leaver drops the upstream broker subscription.
func (h *Hub) Leave(c *Client, channel string) bool {
	h.transMu.Lock()
	defer h.transMu.Unlock()
	return h.detach(c, channel)
}

// detach drops one connection from one channel. Caller holds h.transMu,
// which keeps the 1->0 unsubscribe atomic with the set transition that
// computed it.
func (h *Hub) detach(c *Client, channel string) bool {
	h.mu.Lock()
	subs, ok := h.channels[channel]
	if !ok || !subs[c.ID] {
		h.mu.Unlock()
		return false
	}
	delete(subs, c.ID)
	lastLocal := len(subs) == 0
	if lastLocal {
		delete(h.channels, channel)
	}
	c.RemoveChannel(channel)
	userStill := h.userInChannelLocked(c.UserID, channel, c.ID)
	h.mu.Unlock()

	if lastLocal {
		if err := h.broker.Unsubscribe(channel); err != nil {
			h.logger.Warn().Err(err).Str("channel", channel).Msg("broker unsubscribe failed")
		}
	}
	if !userStill {
		h.withTimeout(func(ctx context.Context) error {
			return h.presence.MarkOffline(ctx, channel, c.UserID)
		}, "mark offline")
		h.announce(channel, types.EnvelopeUserLeft, c.UserID)
	}

	h.logger.Debug().Str("conn_id", c.ID).Str("channel", channel).Msg("left")
	return true
}

// userInChannelLocked reports whether any other connection of the user is
// in the channel. Caller holds h.mu.
func (h *Hub) userInChannelLocked(userID, channel, exceptConnID string) bool {
	subs := h.channels[channel]
	for connID := range h.users[userID] {
		if connID != exceptConnID && subs[connID] {
			return true
		}
	}
	return false
}

// announce publishes a presence envelope on the channel. Best effort: a
// broker failure degrades the live signal, nothing more.
func (h *Hub) announce(channel string, typ types.EnvelopeType, userID string) {
	kind, id, ok := types.SplitChannel(channel)
	if !ok {
		return
	}
	env := types.Envelope{
		Type:    typ,
		Payload: map[string]any{kind + "Id": id, "userId": userID},
	}
	if err := h.broker.Publish(channel, env); err != nil {
		h.logger.Warn().Err(err).Str("channel", channel).Msg("presence publish failed")
	}
}

// brokerHandler receives envelopes from the broker subscriber and queues
// them for local fanout on the hub loop.
func (h *Hub) brokerHandler(channel string, env types.Envelope) {
	select {
	case h.deliver <- deliverMsg{channel: channel, env: env}:
	default:
		h.logger.Warn().Str("channel", channel).Msg("deliver buffer full, dropping")
	}
}

// fanout writes the envelope to every local connection in the channel.
// Connections mid-teardown are skipped; cleanup runs asynchronously
// relative to delivery.
func (h *Hub) fanout(channel string, env types.Envelope) {
	h.mu.RLock()
	subs, ok := h.channels[channel]
	if !ok {
		h.mu.RUnlock()
		return
	}
	ids := make([]string, 0, len(subs))
	for id := range subs {
		ids = append(ids, id)
	}
	h.mu.RUnlock()

	for _, id := range ids {
		h.mu.RLock()
		client, exists := h.clients[id]
		h.mu.RUnlock()
		if !exists {
			continue
		}
		if !client.trySend(env) {
			h.logger.Warn().Str("conn_id", id).Msg("send buffer full, dropping")
		}
	}
}
