package builders

import (
	"context"
	"errors"
	"fmt"

	"github.com/jmoiron/sqlx"
	"github.com/redis/go-redis/v9"
	"go.mongodb.org/mongo-driver/v2/mongo"

	"github.com/Hongsc0125/donggle-bot/internal/cache"
	"github.com/Hongsc0125/donggle-bot/internal/config"
	"github.com/Hongsc0125/donggle-bot/internal/httpserver"
	"github.com/Hongsc0125/donggle-bot/internal/logger"
	mongostore "github.com/Hongsc0125/donggle-bot/internal/store/mongo"
	"github.com/Hongsc0125/donggle-bot/internal/store/postgres"
)

// Stores holds the open storage clients.
type Stores struct {
	DB      *sqlx.DB
	Mongo   *mongo.Client
	MongoDB *mongo.Database
	Redis   *redis.Client
}

type StoresBuilder struct {
	config *config.Config
	logger *logger.Logger
}

func NewStoresBuilder(cfg *config.Config, log *logger.Logger) *StoresBuilder {
	return &StoresBuilder{config: cfg, logger: log}
}

// Build connects postgres, mongo and redis in that order. On failure the
// clients opened so far are closed.
func (b *StoresBuilder) Build(ctx context.Context) (*Stores, error) {
	s := &Stores{}

	db, err := postgres.Connect(ctx, b.config.Database, b.logger.Component("postgres"))
	if err != nil {
		return nil, err
	}
	s.DB = db

	if b.config.Database.AutoMigrate {
		if err := postgres.Migrate(ctx, db, b.logger); err != nil {
			return nil, errors.Join(err, s.Close(ctx))
		}
	}

	client, err := mongostore.Connect(ctx, b.config.Mongo, b.logger.Component("mongo"))
	if err != nil {
		return nil, errors.Join(err, s.Close(ctx))
	}
	s.Mongo = client
	s.MongoDB = client.Database(b.config.Mongo.Database)

	if err := mongostore.NewUserAuth(s.MongoDB).EnsureIndexes(ctx); err != nil {
		return nil, errors.Join(err, s.Close(ctx))
	}

	rdb, err := cache.Connect(ctx, b.config.Redis, b.logger.Component("redis"))
	if err != nil {
		return nil, errors.Join(err, s.Close(ctx))
	}
	s.Redis = rdb

	return s, nil
}

// Checks returns the dependency probes for /healthz.
func (s *Stores) Checks() map[string]httpserver.Check {
	checks := map[string]httpserver.Check{}
	if s.DB != nil {
		checks["postgres"] = postgres.Healthcheck(s.DB)
	}
	if s.Mongo != nil {
		checks["mongo"] = mongostore.Healthcheck(s.Mongo)
	}
	if s.Redis != nil {
		checks["redis"] = cache.Healthcheck(s.Redis)
	}
	return checks
}

// Close closes every open client.
func (s *Stores) Close(ctx context.Context) error {
	var errs []error
	if s.Redis != nil {
		if err := s.Redis.Close(); err != nil {
			errs = append(errs, fmt.Errorf("failed to close redis: %w", err))
		}
	}
	if s.Mongo != nil {
		if err := s.Mongo.Disconnect(ctx); err != nil {
			errs = append(errs, fmt.Errorf("failed to disconnect mongo: %w", err))
		}
	}
	if s.DB != nil {
		if err := s.DB.Close(); err != nil {
			errs = append(errs, fmt.Errorf("failed to close postgres: %w", err))
		}
	}
	return errors.Join(errs...)
}
