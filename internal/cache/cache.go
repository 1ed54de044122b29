// Package cache keeps short-lived bot state in Redis: command cooldowns and
// the registry of temporary voice channels.
package cache

import (
	"context"
	"errors"
	"strings"
	"time"

	"github.com/redis/go-redis/v9"

	"github.com/Hongsc0125/donggle-bot/internal/config"
	"github.com/Hongsc0125/donggle-bot/internal/logger"
	"github.com/Hongsc0125/donggle-bot/internal/retry"
)

var (
	ErrRedisNotReady     = errors.New("redis is not ready")
	ErrHealthcheckFailed = errors.New("redis healthcheck failed")
)

// Connect creates a client and pings the server, retrying while it starts up.
func Connect(ctx context.Context, cfg config.RedisConfig, log *logger.Logger) (*redis.Client, error) {
	client := redis.NewClient(&redis.Options{
		Addr:     cfg.Addr,
		Password: cfg.Password,
		DB:       cfg.DB,
	})

	_, err := retry.Do(ctx, retry.Config{
		MaxAttempts: 5,
		Backoff:     retry.Backoff{Initial: time.Second, Max: 10 * time.Second},
		Logger:      log,
	}, func(ctx context.Context) (struct{}, error) {
		pingCtx, cancel := context.WithTimeout(ctx, 5*time.Second)
		defer cancel()
		return struct{}{}, client.Ping(pingCtx).Err()
	})
	if err != nil {
		_ = client.Close()
		return nil, errors.Join(ErrRedisNotReady, err)
	}

	log.Info("connected to redis",
		logger.Field{Key: "addr", Value: cfg.Addr},
		logger.Field{Key: "db", Value: cfg.DB})
	return client, nil
}

// Healthcheck returns a ping function for the ops endpoint.
func Healthcheck(client redis.UniversalClient) func(context.Context) error {
	return func(ctx context.Context) error {
		if err := client.Ping(ctx).Err(); err != nil {
			return errors.Join(ErrHealthcheckFailed, err)
		}
		return nil
	}
}

// keyspace prefixes every key so several bots can share one database.
type keyspace string

func (k keyspace) key(parts ...string) string {
	return string(k) + strings.Join(parts, ":")
}
