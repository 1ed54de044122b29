package cache

import (
	"context"
	"fmt"

	"github.com/redis/go-redis/v9"
)

// TempChannels is the registry of voice channels created by the bot. Only
// registered channels are deleted when they become empty.
type TempChannels struct {
	client redis.UniversalClient
	ns     keyspace
}

func NewTempChannels(client redis.UniversalClient, prefix string) *TempChannels {
	return &TempChannels{client: client, ns: keyspace(prefix + "tempvoice:")}
}

func (t *TempChannels) Add(ctx context.Context, guildID, channelID string) error {
	if err := t.client.SAdd(ctx, t.ns.key(guildID), channelID).Err(); err != nil {
		return fmt.Errorf("failed to register temp channel %s: %w", channelID, err)
	}
	return nil
}

// Remove unregisters channelID and reports whether it was registered.
func (t *TempChannels) Remove(ctx context.Context, guildID, channelID string) (bool, error) {
	n, err := t.client.SRem(ctx, t.ns.key(guildID), channelID).Result()
	if err != nil {
		return false, fmt.Errorf("failed to unregister temp channel %s: %w", channelID, err)
	}
	return n > 0, nil
}

func (t *TempChannels) Contains(ctx context.Context, guildID, channelID string) (bool, error) {
	ok, err := t.client.SIsMember(ctx, t.ns.key(guildID), channelID).Result()
	if err != nil {
		return false, fmt.Errorf("failed to check temp channel %s: %w", channelID, err)
	}
	return ok, nil
}

// List returns the registered channels of a guild.
func (t *TempChannels) List(ctx context.Context, guildID string) ([]string, error) {
	ids, err := t.client.SMembers(ctx, t.ns.key(guildID)).Result()
	if err != nil {
		return nil, fmt.Errorf("failed to list temp channels of %s: %w", guildID, err)
	}
	return ids, nil
}
