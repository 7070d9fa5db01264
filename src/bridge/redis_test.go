package bridge

import (
	"encoding/json"
	"testing"

	"github.com/redis/go-redis/v9"
	"github.com/rs/zerolog"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/mentorhub/realtime/src/types"
)

func testLogger() zerolog.Logger {
	return zerolog.Nop()
}

func redisMsg(channel, payload string) *redis.Message {
	return &redis.Message{Channel: channel, Payload: payload}
}

func TestDefaultRedisConfig(t *testing.T) {
	cfg := DefaultRedisConfig()
	assert.Equal(t, "localhost:6379", cfg.Addr)
	assert.Empty(t, cfg.Password)
	assert.Equal(t, 0, cfg.DB)
	assert.Equal(t, "mentorhub:rt:", cfg.Prefix)
}

func TestRedisConfigFromEnv(t *testing.T) {
	t.Setenv("REDIS_ADDR", "redis.example.com:6380")
	t.Setenv("REDIS_PASSWORD", "secret")
	t.Setenv("REDIS_DB", "3")
	t.Setenv("REDIS_RT_PREFIX", "test:rt:")

	cfg := RedisConfigFromEnv()
	assert.Equal(t, "redis.example.com:6380", cfg.Addr)
	assert.Equal(t, "secret", cfg.Password)
	assert.Equal(t, 3, cfg.DB)
	assert.Equal(t, "test:rt:", cfg.Prefix)
}

func TestRedisConfigFromEnvInvalidDB(t *testing.T) {
	t.Setenv("REDIS_DB", "not-a-number")

	cfg := RedisConfigFromEnv()
	assert.Equal(t, 0, cfg.DB)
}

func TestEnvelopeWireFormat(t *testing.T) {
	env := types.Envelope{
		Type: types.EnvelopeChatMessage,
		Payload: map[string]any{
			"roomId": "r1",
			"body":   "hello",
		},
	}

	data, err := json.Marshal(env)
	require.NoError(t, err)

	var decoded types.Envelope
	require.NoError(t, json.Unmarshal(data, &decoded))
	assert.Equal(t, types.EnvelopeChatMessage, decoded.Type)
	assert.Equal(t, "r1", decoded.Payload["roomId"])
	assert.Equal(t, "hello", decoded.Payload["body"])
}

func TestBrokerUnavailableBeforeStart(t *testing.T) {
	b := NewRedisBroker(DefaultRedisConfig(), testLogger())
	assert.False(t, b.Available())
	assert.NoError(t, b.LastError())
}

func TestHandlerTableTracksSubscriptions(t *testing.T) {
	b := NewRedisBroker(DefaultRedisConfig(), testLogger())

	// Before Start there is no subscriber connection; registration is
	// table-only and must not error.
	require.NoError(t, b.Subscribe("room:1", func(string, types.Envelope) {}))
	require.NoError(t, b.Subscribe("group:2", func(string, types.Envelope) {}))
	assert.ElementsMatch(t, []string{"room:1", "group:2"}, b.SubscribedChannels())

	require.NoError(t, b.Unsubscribe("room:1"))
	assert.Equal(t, []string{"group:2"}, b.SubscribedChannels())
}

func TestDispatchInvokesRegisteredHandler(t *testing.T) {
	b := NewRedisBroker(DefaultRedisConfig(), testLogger())

	var gotChannel string
	var gotEnv types.Envelope
	require.NoError(t, b.Subscribe("room:7", func(ch string, env types.Envelope) {
		gotChannel = ch
		gotEnv = env
	}))

	payload, err := json.Marshal(types.Envelope{
		Type:    types.EnvelopeTyping,
		Payload: map[string]any{"roomId": "7", "userId": "u1"},
	})
	require.NoError(t, err)

	b.dispatch(redisMsg("mentorhub:rt:room:7", string(payload)))

	assert.Equal(t, "room:7", gotChannel)
	assert.Equal(t, types.EnvelopeTyping, gotEnv.Type)
	assert.Equal(t, "u1", gotEnv.Payload["userId"])
}

func TestDispatchSurvivesHandlerPanic(t *testing.T) {
	b := NewRedisBroker(DefaultRedisConfig(), testLogger())

	require.NoError(t, b.Subscribe("room:1", func(string, types.Envelope) {
		panic("broken recipient")
	}))

	payload, _ := json.Marshal(types.Envelope{Type: types.EnvelopePing})
	assert.NotPanics(t, func() {
		b.dispatch(redisMsg("mentorhub:rt:room:1", string(payload)))
	})
}

func TestDispatchIgnoresUnknownChannel(t *testing.T) {
	b := NewRedisBroker(DefaultRedisConfig(), testLogger())
	payload, _ := json.Marshal(types.Envelope{Type: types.EnvelopePing})
	assert.NotPanics(t, func() {
		b.dispatch(redisMsg("mentorhub:rt:room:unknown", string(payload)))
	})
}
