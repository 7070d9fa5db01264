package service

import (
	"context"
	"fmt"

	"github.com/rs/zerolog"

	"github.com/mentorhub/realtime/src/bridge"
	"github.com/mentorhub/realtime/src/hub"
	"github.com/mentorhub/realtime/src/types"
)

// PresenceReader exposes the online sets for the stats surface.
type PresenceReader interface {
	ListOnline(ctx context.Context, channel string) ([]string, error)
}

// TypingReader exposes live typing entries for the stats surface.
type TypingReader interface {
	ListTyping(ctx context.Context, channel string) ([]string, error)
}

// Service is the high-level API the rest of the platform talks to. The
// persistence/write API calls Publish after storing a message; operators
// read Stats and Health. The service trusts its callers completely.
type Service struct {
	hub      *hub.Hub
	broker   bridge.Broker
	presence PresenceReader
	typing   TypingReader
	logger   zerolog.Logger
}

// New creates a service over the given hub and broker.
func New(h *hub.Hub, b bridge.Broker, p PresenceReader, t TypingReader, logger zerolog.Logger) *Service {
	return &Service{
		hub:      h,
		broker:   b,
		presence: p,
		typing:   t,
		logger:   logger.With().Str("component", "service").Logger(),
	}
}

// Hub returns the underlying hub.
func (s *Service) Hub() *hub.Hub { return s.hub }

// Publish validates the envelope's channel target and fans it out through
// the broker. An invalid envelope is the caller's bug and comes back as
// an error; a broker failure is logged and swallowed so the caller's own
// operation (the already-persisted write) never fails because of it.
func (s *Service) Publish(env types.Envelope) error {
	if !env.Type.Known() {
		return fmt.Errorf("%w: unknown type %q", types.ErrMalformedFrame, env.Type)
	}
	channel, err := env.Channel()
	if err != nil {
		s.logger.Warn().Err(err).Str("type", string(env.Type)).Msg("rejected publish")
		return err
	}
	if err := s.broker.Publish(channel, env); err != nil {
		s.logger.Warn().Err(err).Str("channel", channel).Msg("publish degraded, dropping realtime delivery")
	}
	return nil
}

// PublishChatMessage fans out an already-persisted chat message.
func (s *Service) PublishChatMessage(payload map[string]any) error {
	return s.Publish(types.Envelope{Type: types.EnvelopeChatMessage, Payload: payload})
}

// PublishMessageEdit fans out an already-persisted message edit.
func (s *Service) PublishMessageEdit(payload map[string]any) error {
	return s.Publish(types.Envelope{Type: types.EnvelopeMessageEdit, Payload: payload})
}

// PublishMessageDelete fans out an already-persisted message deletion.
func (s *Service) PublishMessageDelete(payload map[string]any) error {
	return s.Publish(types.Envelope{Type: types.EnvelopeMessageDelete, Payload: payload})
}

// Stats is the operational snapshot served on the info route.
type Stats struct {
	ActiveConnections  int            `json:"active_connections"`
	ActiveUsers        int            `json:"active_users"`
	Channels           map[string]int `json:"channels"`
	SubscribedChannels int            `json:"subscribed_channels"`
	BrokerAvailable    bool           `json:"broker_available"`
}

// Stats returns current connection and subscription counts.
func (s *Service) Stats() Stats {
	channels := s.hub.Channels()
	return Stats{
		ActiveConnections:  s.hub.Count(),
		ActiveUsers:        s.hub.UserCount(),
		Channels:           channels,
		SubscribedChannels: len(channels),
		BrokerAvailable:    s.broker.Available(),
	}
}

// Health round-trips a ping on both broker handles.
func (s *Service) Health(ctx context.Context) error {
	return s.broker.HealthCheck(ctx)
}

// ConnectionInfo returns metadata for a live connection, or nil when the
// id is unknown on this instance.
func (s *Service) ConnectionInfo(connID string) *types.ConnectionInfo {
	return s.hub.ConnectionInfo(connID)
}

// OnlineUsers returns the channel's current online set.
func (s *Service) OnlineUsers(ctx context.Context, channel string) ([]string, error) {
	return s.presence.ListOnline(ctx, channel)
}

// TypingUsers returns the users currently typing in the channel.
func (s *Service) TypingUsers(ctx context.Context, channel string) ([]string, error) {
	return s.typing.ListTyping(ctx, channel)
}
