package cache

import (
	"context"
	"fmt"
	"time"

	"github.com/redis/go-redis/v9"
)

// Cooldowns limits how often a user may run a command.
type Cooldowns struct {
	client redis.UniversalClient
	ns     keyspace
}

func NewCooldowns(client redis.UniversalClient, prefix string) *Cooldowns {
	return &Cooldowns{client: client, ns: keyspace(prefix + "cooldown:")}
}

// Acquire starts a cooldown of ttl for user in scope. It returns false when a
// cooldown is already running.
func (c *Cooldowns) Acquire(ctx context.Context, scope, userID string, ttl time.Duration) (bool, error) {
	ok, err := c.client.SetNX(ctx, c.ns.key(scope, userID), time.Now().Unix(), ttl).Result()
	if err != nil {
		return false, fmt.Errorf("failed to acquire cooldown %s for %s: %w", scope, userID, err)
	}
	return ok, nil
}

// Remaining returns how long the cooldown still runs; zero when none.
func (c *Cooldowns) Remaining(ctx context.Context, scope, userID string) (time.Duration, error) {
	ttl, err := c.client.PTTL(ctx, c.ns.key(scope, userID)).Result()
	if err != nil {
		return 0, fmt.Errorf("failed to read cooldown %s for %s: %w", scope, userID, err)
	}
	if ttl < 0 {
		return 0, nil
	}
	return ttl, nil
}

// Release ends a cooldown early, e.g. when the command failed before doing
// anything visible.
func (c *Cooldowns) Release(ctx context.Context, scope, userID string) error {
	if err := c.client.Del(ctx, c.ns.key(scope, userID)).Err(); err != nil {
		return fmt.Errorf("failed to release cooldown %s for %s: %w", scope, userID, err)
	}
	return nil
}
