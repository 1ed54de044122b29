// Package postgres holds the relational state of the bot: per-guild settings,
// party recruitments and scheduled alerts.
package postgres

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"time"

	"github.com/jmoiron/sqlx"
	_ "github.com/lib/pq"

	"github.com/Hongsc0125/donggle-bot/internal/config"
	"github.com/Hongsc0125/donggle-bot/internal/logger"
	"github.com/Hongsc0125/donggle-bot/internal/retry"
)

// ErrNotFound is returned when a row does not exist.
var ErrNotFound = errors.New("not found")

// Connect opens the pool and pings it, retrying while the database starts up.
func Connect(ctx context.Context, cfg config.DatabaseConfig, log *logger.Logger) (*sqlx.DB, error) {
	db, err := sqlx.Open("postgres", cfg.DSN)
	if err != nil {
		return nil, fmt.Errorf("failed to open database connection: %w", err)
	}

	db.SetMaxOpenConns(cfg.MaxOpenConns)
	db.SetMaxIdleConns(cfg.MaxIdleConns)
	db.SetConnMaxLifetime(cfg.ConnMaxLifetime())

	_, err = retry.Do(ctx, retry.Config{
		MaxAttempts: 5,
		Backoff:     retry.Backoff{Initial: time.Second, Max: 10 * time.Second},
		Logger:      log,
	}, func(ctx context.Context) (struct{}, error) {
		pingCtx, cancel := context.WithTimeout(ctx, 5*time.Second)
		defer cancel()
		// Сетевые ошибки и таймауты повторяются, ошибки аутентификации нет
		return struct{}{}, db.PingContext(pingCtx)
	})
	if err != nil {
		_ = db.Close()
		return nil, fmt.Errorf("failed to ping database: %w", err)
	}

	log.Info("connected to postgres",
		logger.Field{Key: "max_open_conns", Value: cfg.MaxOpenConns})
	return db, nil
}

// Healthcheck returns a ping function for the ops endpoint.
func Healthcheck(db *sqlx.DB) func(context.Context) error {
	return func(ctx context.Context) error {
		return db.PingContext(ctx)
	}
}

func notFound(err error) error {
	if errors.Is(err, sql.ErrNoRows) {
		return ErrNotFound
	}
	return err
}
