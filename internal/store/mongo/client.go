// Package mongo holds the document state of the bot: recruitment member
// lists, verified users and link reports.
package mongo

import (
	"context"
	"errors"
	"fmt"
	"time"

	"go.mongodb.org/mongo-driver/v2/mongo"
	"go.mongodb.org/mongo-driver/v2/mongo/options"

	"github.com/Hongsc0125/donggle-bot/internal/config"
	"github.com/Hongsc0125/donggle-bot/internal/logger"
	"github.com/Hongsc0125/donggle-bot/internal/retry"
)

var (
	ErrFailedToConnect   = errors.New("failed to connect to mongo")
	ErrHealthcheckFailed = errors.New("mongo healthcheck failed")
	ErrNotFound          = errors.New("document not found")
)

// Connect creates a client and pings the primary, retrying while the server
// starts up.
func Connect(ctx context.Context, cfg config.MongoConfig, log *logger.Logger) (*mongo.Client, error) {
	client, err := mongo.Connect(
		options.Client().
			ApplyURI(cfg.URI).
			SetConnectTimeout(cfg.ConnectTimeout()).
			SetRetryWrites(true).
			SetRetryReads(true),
	)
	if err != nil {
		return nil, errors.Join(ErrFailedToConnect, err)
	}

	_, err = retry.Do(ctx, retry.Config{
		MaxAttempts: 5,
		Backoff:     retry.Backoff{Initial: time.Second, Max: 10 * time.Second},
		Logger:      log,
	}, func(ctx context.Context) (struct{}, error) {
		pingCtx, cancel := context.WithTimeout(ctx, cfg.ConnectTimeout())
		defer cancel()
		if err := client.Ping(pingCtx, nil); err != nil {
			// ошибки выбора сервера при старте считаются временными
			return struct{}{}, fmt.Errorf("%w: %w", context.DeadlineExceeded, err)
		}
		return struct{}{}, nil
	})
	if err != nil {
		_ = client.Disconnect(context.Background())
		return nil, errors.Join(ErrFailedToConnect, err)
	}

	log.Info("connected to mongo", logger.Field{Key: "database", Value: cfg.Database})
	return client, nil
}

// Healthcheck returns a ping function for the ops endpoint.
func Healthcheck(client *mongo.Client) func(context.Context) error {
	return func(ctx context.Context) error {
		if err := client.Ping(ctx, nil); err != nil {
			return errors.Join(ErrHealthcheckFailed, err)
		}
		return nil
	}
}

func notFound(err error) error {
	if errors.Is(err, mongo.ErrNoDocuments) {
		return ErrNotFound
	}
	return err
}
