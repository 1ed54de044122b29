package cache

import (
	"context"
	"sort"
	"testing"
	"time"

	"github.com/alicebob/miniredis/v2"
	"github.com/redis/go-redis/v9"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/Hongsc0125/donggle-bot/internal/config"
	"github.com/Hongsc0125/donggle-bot/internal/logger"
)

func newTestRedis(t *testing.T) (*miniredis.Miniredis, *redis.Client) {
	t.Helper()
	mr := miniredis.RunT(t)
	client := redis.NewClient(&redis.Options{Addr: mr.Addr()})
	t.Cleanup(func() { _ = client.Close() })
	return mr, client
}

func TestConnect(t *testing.T) {
	mr := miniredis.RunT(t)

	client, err := Connect(context.Background(), config.RedisConfig{Addr: mr.Addr()}, logger.Nop())
	require.NoError(t, err)
	defer client.Close()

	assert.NoError(t, Healthcheck(client)(context.Background()))
}

func TestConnect_Cancelled(t *testing.T) {
	ctx, cancel := context.WithCancel(context.Background())
	cancel()

	_, err := Connect(ctx, config.RedisConfig{Addr: "127.0.0.1:1"}, logger.Nop())
	assert.ErrorIs(t, err, ErrRedisNotReady)
}

func TestHealthcheck_Down(t *testing.T) {
	mr, client := newTestRedis(t)
	mr.Close()

	assert.ErrorIs(t, Healthcheck(client)(context.Background()), ErrHealthcheckFailed)
}

func TestCooldowns(t *testing.T) {
	mr, client := newTestRedis(t)
	cd := NewCooldowns(client, "donggle:")
	ctx := context.Background()

	ok, err := cd.Acquire(ctx, "auth", "u1", time.Minute)
	require.NoError(t, err)
	assert.True(t, ok)
	assert.True(t, mr.Exists("donggle:cooldown:auth:u1"))

	ok, err = cd.Acquire(ctx, "auth", "u1", time.Minute)
	require.NoError(t, err)
	assert.False(t, ok, "second acquire inside the window")

	ok, err = cd.Acquire(ctx, "recruit", "u1", time.Minute)
	require.NoError(t, err)
	assert.True(t, ok, "scopes are independent")

	left, err := cd.Remaining(ctx, "auth", "u1")
	require.NoError(t, err)
	assert.Greater(t, left, 50*time.Second)

	mr.FastForward(time.Minute + time.Second)

	ok, err = cd.Acquire(ctx, "auth", "u1", time.Minute)
	require.NoError(t, err)
	assert.True(t, ok, "acquire after expiry")
}

func TestCooldowns_Release(t *testing.T) {
	_, client := newTestRedis(t)
	cd := NewCooldowns(client, "donggle:")
	ctx := context.Background()

	_, err := cd.Acquire(ctx, "auth", "u1", time.Hour)
	require.NoError(t, err)
	require.NoError(t, cd.Release(ctx, "auth", "u1"))

	left, err := cd.Remaining(ctx, "auth", "u1")
	require.NoError(t, err)
	assert.Zero(t, left)

	ok, err := cd.Acquire(ctx, "auth", "u1", time.Hour)
	require.NoError(t, err)
	assert.True(t, ok)
}

func TestTempChannels(t *testing.T) {
	_, client := newTestRedis(t)
	reg := NewTempChannels(client, "donggle:")
	ctx := context.Background()

	require.NoError(t, reg.Add(ctx, "g1", "v1"))
	require.NoError(t, reg.Add(ctx, "g1", "v2"))
	require.NoError(t, reg.Add(ctx, "g2", "v3"))

	ok, err := reg.Contains(ctx, "g1", "v1")
	require.NoError(t, err)
	assert.True(t, ok)

	ok, err = reg.Contains(ctx, "g1", "v3")
	require.NoError(t, err)
	assert.False(t, ok, "channels are per guild")

	ids, err := reg.List(ctx, "g1")
	require.NoError(t, err)
	sort.Strings(ids)
	assert.Equal(t, []string{"v1", "v2"}, ids)

	removed, err := reg.Remove(ctx, "g1", "v1")
	require.NoError(t, err)
	assert.True(t, removed)

	removed, err = reg.Remove(ctx, "g1", "v1")
	require.NoError(t, err)
	assert.False(t, removed, "second remove is a no-op")
}

func TestKeyspace(t *testing.T) {
	tests := []struct {
		ns    keyspace
		parts []string
		want  string
	}{
		{ns: "p:", parts: []string{"a"}, want: "p:a"},
		{ns: "p:", parts: []string{"a", "b", "c"}, want: "p:a:b:c"},
		{ns: "", parts: []string{"x", "y"}, want: "x:y"},
	}
	for _, tt := range tests {
		assert.Equal(t, tt.want, tt.ns.key(tt.parts...))
	}
}
