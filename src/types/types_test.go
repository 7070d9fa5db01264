package types

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestChannelFromRoomPayload(t *testing.T) {
	env := Envelope{Type: EnvelopeChatMessage, Payload: map[string]any{"roomId": "17"}}
	ch, err := env.Channel()
	require.NoError(t, err)
	assert.Equal(t, "room:17", ch)
}

func TestChannelFromGroupPayload(t *testing.T) {
	env := Envelope{Type: EnvelopeChatMessage, Payload: map[string]any{"groupId": "9"}}
	ch, err := env.Channel()
	require.NoError(t, err)
	assert.Equal(t, "group:9", ch)
}

func TestChannelFromNumericID(t *testing.T) {
	// JSON numbers decode as float64.
	env := Envelope{Type: EnvelopeTyping, Payload: map[string]any{"roomId": float64(42)}}
	ch, err := env.Channel()
	require.NoError(t, err)
	assert.Equal(t, "room:42", ch)
}

func TestChannelRejectsBothTargets(t *testing.T) {
	env := Envelope{Payload: map[string]any{"roomId": "1", "groupId": "2"}}
	_, err := env.Channel()
	assert.ErrorIs(t, err, ErrInvalidChannelTarget)
}

func TestChannelRejectsNoTarget(t *testing.T) {
	env := Envelope{Payload: map[string]any{"body": "hi"}}
	_, err := env.Channel()
	assert.ErrorIs(t, err, ErrInvalidChannelTarget)

	env = Envelope{}
	_, err = env.Channel()
	assert.ErrorIs(t, err, ErrInvalidChannelTarget)
}

func TestChannelRejectsEmptyID(t *testing.T) {
	env := Envelope{Payload: map[string]any{"roomId": ""}}
	_, err := env.Channel()
	assert.ErrorIs(t, err, ErrInvalidChannelTarget)
}

func TestSplitChannel(t *testing.T) {
	kind, id, ok := SplitChannel("room:12")
	require.True(t, ok)
	assert.Equal(t, "room", kind)
	assert.Equal(t, "12", id)

	kind, id, ok = SplitChannel("group:g7")
	require.True(t, ok)
	assert.Equal(t, "group", kind)
	assert.Equal(t, "g7", id)

	_, _, ok = SplitChannel("bogus:1")
	assert.False(t, ok)
	_, _, ok = SplitChannel("room:")
	assert.False(t, ok)
}

func TestEnvelopeTypeKnown(t *testing.T) {
	for _, typ := range []EnvelopeType{
		EnvelopeChatMessage, EnvelopeTyping, EnvelopeUserJoined,
		EnvelopeUserLeft, EnvelopeMessageEdit, EnvelopeMessageDelete,
		EnvelopePing, EnvelopePong,
	} {
		assert.True(t, typ.Known(), "type %s", typ)
	}
	assert.False(t, EnvelopeType("JOIN_ROOM").Known())
	assert.False(t, EnvelopeType("").Known())
}
