package types

import (
	"fmt"
	"strconv"
	"strings"
	"time"
)

// EnvelopeType enumerates every frame kind exchanged over a connection
// or through the broker. The set is closed: dispatch switches over it
// exhaustively and anything else is rejected as malformed.
type EnvelopeType string

const (
	EnvelopeChatMessage   EnvelopeType = "CHAT_MESSAGE"
	EnvelopeTyping        EnvelopeType = "TYPING"
	EnvelopeUserJoined    EnvelopeType = "USER_JOINED"
	EnvelopeUserLeft      EnvelopeType = "USER_LEFT"
	EnvelopeMessageEdit   EnvelopeType = "MESSAGE_EDIT"
	EnvelopeMessageDelete EnvelopeType = "MESSAGE_DELETE"
	EnvelopePing          EnvelopeType = "PING"
	EnvelopePong          EnvelopeType = "PONG"
)

// Known reports whether t is one of the recognized envelope types.
func (t EnvelopeType) Known() bool {
	switch t {
	case EnvelopeChatMessage, EnvelopeTyping, EnvelopeUserJoined,
		EnvelopeUserLeft, EnvelopeMessageEdit, EnvelopeMessageDelete,
		EnvelopePing, EnvelopePong:
		return true
	}
	return false
}

// Envelope is the unit of communication: a type tag plus a payload.
type Envelope struct {
	Type    EnvelopeType   `json:"type"`
	Payload map[string]any `json:"payload,omitempty"`
}

// RoomChannel returns the broker channel name for a room.
func RoomChannel(roomID string) string { return "room:" + roomID }

// GroupChannel returns the broker channel name for a group.
func GroupChannel(groupID string) string { return "group:" + groupID }

// SplitChannel breaks a channel name into its kind ("room" or "group")
// and identifier.
func SplitChannel(channel string) (kind, id string, ok bool) {
	if rest, found := strings.CutPrefix(channel, "room:"); found && rest != "" {
		return "room", rest, true
	}
	if rest, found := strings.CutPrefix(channel, "group:"); found && rest != "" {
		return "group", rest, true
	}
	return "", "", false
}

// Channel derives the broadcast channel from the payload's room or group
// identifier. An envelope naming zero or both of them is invalid.
func (e Envelope) Channel() (string, error) {
	roomID, hasRoom := payloadID(e.Payload["roomId"])
	groupID, hasGroup := payloadID(e.Payload["groupId"])

	switch {
	case hasRoom && hasGroup:
		return "", fmt.Errorf("%w: both roomId and groupId set", ErrInvalidChannelTarget)
	case hasRoom:
		return RoomChannel(roomID), nil
	case hasGroup:
		return GroupChannel(groupID), nil
	}
	return "", fmt.Errorf("%w: neither roomId nor groupId set", ErrInvalidChannelTarget)
}

// payloadID normalizes a payload identifier value. JSON numbers arrive as
// float64; ids are integral, so they format without a fraction.
func payloadID(v any) (string, bool) {
	switch id := v.(type) {
	case string:
		return id, id != ""
	case float64:
		return strconv.FormatFloat(id, 'f', -1, 64), true
	case int:
		return strconv.Itoa(id), true
	case int64:
		return strconv.FormatInt(id, 10), true
	}
	return "", false
}

// ErrorFrame is the local reply to an unusable inbound frame. It never
// travels through the broker and never closes the connection.
type ErrorFrame struct {
	Type  string `json:"type"` // always "ERROR"
	Error string `json:"error"`
}

// NewErrorFrame builds an error reply with the given message.
func NewErrorFrame(msg string) ErrorFrame {
	return ErrorFrame{Type: "ERROR", Error: msg}
}

// ConnectionInfo holds metadata about a live connection.
type ConnectionInfo struct {
	ID          string    `json:"id"`
	UserID      string    `json:"user_id"`
	ConnectedAt time.Time `json:"connected_at"`
	Channels    []string  `json:"channels"`
}

// Conn abstracts a WebSocket connection for testability.
type Conn interface {
	WriteJSON(v any) error
	ReadJSON(v any) error
	Close() error
}
