package bridge

import (
	"context"

	"github.com/mentorhub/realtime/src/types"
)

// Handler consumes an envelope delivered by the broker for a channel.
type Handler func(channel string, env types.Envelope)

// Broker is the cross-instance publish/subscribe surface. A publish on one
// instance is delivered to the subscribed handler of every instance,
// including the publisher's own.
type Broker interface {
	// Publish serializes the envelope and sends it on the channel topic.
	Publish(channel string, env types.Envelope) error

	// Subscribe registers a handler for a channel topic and opens the
	// upstream subscription. One handler per channel.
	Subscribe(channel string, h Handler) error

	// Unsubscribe drops the channel topic and its handler.
	Unsubscribe(channel string) error

	// Start connects both broker handles and begins dispatching.
	Start() error

	// Stop tears down both handles.
	Stop() error

	// Available reports whether the broker is connected and operational.
	Available() bool

	// HealthCheck round-trips a ping on both the publisher and the
	// subscriber handle.
	HealthCheck(ctx context.Context) error
}
