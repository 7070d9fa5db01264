package hub

import (
	"context"

	"github.com/mentorhub/realtime/src/types"
)

// handleFrame dispatches one inbound frame by its declared type. The set
// is closed: chat writes are deliberately not accepted here, they go
// through the authorized persistence API which publishes on the sender's
// behalf.
func (h *Hub) handleFrame(c *Client, env types.Envelope) {
	switch env.Type {
	case types.EnvelopePing:
		c.trySend(types.Envelope{Type: types.EnvelopePong})
	case types.EnvelopePong:
		c.SetAlive(true)
	case types.EnvelopeTyping:
		h.handleTyping(c, env)
	case types.EnvelopeChatMessage, types.EnvelopeMessageEdit,
		types.EnvelopeMessageDelete, types.EnvelopeUserJoined,
		types.EnvelopeUserLeft:
		c.trySend(types.NewErrorFrame("unsupported inbound type: " + string(env.Type)))
	default:
		c.trySend(types.NewErrorFrame("unknown frame type"))
	}
}

// handleTyping records the signal in the shared store and republishes it
// so subscribers on every instance see it.
func (h *Hub) handleTyping(c *Client, env types.Envelope) {
	channel, err := env.Channel()
	if err != nil {
		c.trySend(types.NewErrorFrame("typing frame needs exactly one of roomId or groupId"))
		return
	}
	if !c.InChannel(channel) {
		c.trySend(types.NewErrorFrame("not joined to " + channel))
		return
	}

	if env.Payload == nil {
		env.Payload = map[string]any{}
	}
	// The sender identity is server-assigned, never client-supplied.
	env.Payload["userId"] = c.UserID

	isTyping := true
	if v, ok := env.Payload["isTyping"].(bool); ok {
		isTyping = v
	}
	if isTyping {
		h.withTimeout(func(ctx context.Context) error {
			return h.typing.SetTyping(ctx, channel, c.UserID)
		}, "set typing")
	} else {
		h.withTimeout(func(ctx context.Context) error {
			return h.typing.ClearTyping(ctx, channel, c.UserID)
		}, "clear typing")
	}

	if err := h.broker.Publish(channel, env); err != nil {
		h.logger.Warn().Err(err).Str("channel", channel).Msg("typing publish failed")
	}
}
