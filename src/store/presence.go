package store

import (
	"context"

	"github.com/redis/go-redis/v9"
)

// Presence tracks which users are online per channel, plus one global
// set, in shared Redis sets. Every mutation is a single atomic command,
// so instances never need to coordinate. The sets are best-effort
// signals, not authoritative room membership.
type Presence struct {
	client *redis.Client
	prefix string
}

// NewPresence creates a presence adapter using the given client and key
// prefix.
func NewPresence(client *redis.Client, prefix string) *Presence {
	return &Presence{client: client, prefix: prefix}
}

func (p *Presence) channelKey(channel string) string {
	return p.prefix + "online:" + channel
}

func (p *Presence) globalKey() string {
	return p.prefix + "online:global"
}

// MarkOnline adds the user to the channel's online set.
func (p *Presence) MarkOnline(ctx context.Context, channel, userID string) error {
	return p.client.SAdd(ctx, p.channelKey(channel), userID).Err()
}

// MarkOffline removes the user from the channel's online set.
func (p *Presence) MarkOffline(ctx context.Context, channel, userID string) error {
	return p.client.SRem(ctx, p.channelKey(channel), userID).Err()
}

// MarkOnlineGlobal adds the user to the instance-spanning online set.
func (p *Presence) MarkOnlineGlobal(ctx context.Context, userID string) error {
	return p.client.SAdd(ctx, p.globalKey(), userID).Err()
}

// MarkOfflineGlobal removes the user from the global online set.
func (p *Presence) MarkOfflineGlobal(ctx context.Context, userID string) error {
	return p.client.SRem(ctx, p.globalKey(), userID).Err()
}

// ListOnline returns the user ids currently in the channel's online set.
func (p *Presence) ListOnline(ctx context.Context, channel string) ([]string, error) {
	return p.client.SMembers(ctx, p.channelKey(channel)).Result()
}
