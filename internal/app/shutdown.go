package app

import (
	"context"
	"errors"
	"time"

	"github.com/Hongsc0125/donggle-bot/internal/logger"
)

// shutdownTimeout bounds the wait for queued tasks and alert callbacks.
const shutdownTimeout = 30 * time.Second

// Shutdown performs graceful shutdown of all components.
// It stops the application in the following order:
//  1. Cancels the application context (monitor, ops server)
//  2. Removes the gateway event handlers
//  3. Stops the alert scheduler
//  4. Drains the task scheduler
//  5. Stops the batcher, flushing pending channel work
//  6. Stops the scheduler workers
//  7. Closes the discord session
//  8. Closes the stores
//
// Pending tasks and batches still need the session, so it closes after them.
// The method is thread-safe and can be called from multiple goroutines.
func (a *App) Shutdown() error {
	a.mu.Lock()
	defer a.mu.Unlock()

	if !a.started {
		return nil
	}
	a.started = false

	a.cancel()

	for _, remove := range a.removers {
		remove()
	}
	a.removers = nil

	ctx, cancel := context.WithTimeout(context.Background(), shutdownTimeout)
	defer cancel()

	if a.alerts != nil {
		a.alerts.Stop(ctx)
	}

	if a.scheduler != nil {
		if err := a.scheduler.Drain(ctx); err != nil {
			a.logger.Warn("scheduler drain interrupted",
				logger.Field{Key: "error", Value: err})
		}
	}

	if a.batcher != nil {
		a.batcher.Stop()
	}

	if a.scheduler != nil {
		a.scheduler.Stop()
	}

	var errs []error
	if a.conn != nil {
		if err := a.conn.Close(); err != nil {
			a.logger.Error("failed to close discord session", err)
			errs = append(errs, err)
		}
	}

	if a.stores != nil {
		if err := a.stores.Close(ctx); err != nil {
			a.logger.Error("failed to close stores", err)
			errs = append(errs, err)
		}
	}

	a.logger.Info("application shutdown complete")
	return errors.Join(errs...)
}
