package types

import "errors"

// Error taxonomy shared across the realtime core. Callers wrap these with
// fmt.Errorf("...: %w", err) and test with errors.Is.
var (
	// ErrUnauthenticated rejects a connection attempt with a missing,
	// malformed, expired, or badly signed token. The upgrade is refused
	// before any connection state exists.
	ErrUnauthenticated = errors.New("unauthenticated")

	// ErrMalformedFrame marks inbound data that could not be parsed or
	// carries an unsupported type. The connection stays open; the client
	// gets an error frame.
	ErrMalformedFrame = errors.New("malformed frame")

	// ErrInvalidChannelTarget marks an envelope naming zero or both of a
	// room and a group. It is never published.
	ErrInvalidChannelTarget = errors.New("invalid channel target")

	// ErrBrokerUnavailable marks a failed broker operation. Publishes
	// degrade to local-only silence; the caller's own operation succeeds.
	ErrBrokerUnavailable = errors.New("broker unavailable")

	// ErrHandlerFailure marks a panic recovered inside a broker message
	// handler. Delivery on other channels is unaffected.
	ErrHandlerFailure = errors.New("handler failure")
)
