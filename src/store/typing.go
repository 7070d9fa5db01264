package store

import (
	"context"
	"strconv"
	"time"

	"github.com/redis/go-redis/v9"
)

// DefaultTypingTTL is how long a typing entry survives without a refresh.
const DefaultTypingTTL = 5 * time.Second

// Typing records who is typing in a channel, as a per-channel Redis hash
// keyed by user id. The whole hash expires after a short window, so a
// client that disconnects mid-keystroke vanishes on its own.
type Typing struct {
	client *redis.Client
	prefix string
	ttl    time.Duration
}

// NewTyping creates a typing adapter. A non-positive ttl falls back to
// DefaultTypingTTL.
func NewTyping(client *redis.Client, prefix string, ttl time.Duration) *Typing {
	if ttl <= 0 {
		ttl = DefaultTypingTTL
	}
	return &Typing{client: client, prefix: prefix, ttl: ttl}
}

func (t *Typing) key(channel string) string {
	return t.prefix + "typing:" + channel
}

// SetTyping writes the user's typing timestamp and refreshes the hash
// expiry in one pipeline round-trip.
func (t *Typing) SetTyping(ctx context.Context, channel, userID string) error {
	key := t.key(channel)
	pipe := t.client.Pipeline()
	pipe.HSet(ctx, key, userID, strconv.FormatInt(time.Now().Unix(), 10))
	pipe.Expire(ctx, key, t.ttl)
	_, err := pipe.Exec(ctx)
	return err
}

// ClearTyping removes the user's typing entry.
func (t *Typing) ClearTyping(ctx context.Context, channel, userID string) error {
	return t.client.HDel(ctx, t.key(channel), userID).Err()
}

// ListTyping returns the user ids with a live typing entry in the channel.
func (t *Typing) ListTyping(ctx context.Context, channel string) ([]string, error) {
	return t.client.HKeys(ctx, t.key(channel)).Result()
}

// TTL exposes the configured expiry window.
func (t *Typing) TTL() time.Duration { return t.ttl }
