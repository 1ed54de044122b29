package scheduler

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/Hongsc0125/donggle-bot/internal/logger"
)

// worker pops tasks from its tier until ctx is cancelled or the queue closes.
// A failing task never ends the loop.
func (p *Pool) worker(ctx context.Context, id int, tier Priority) {
	defer p.wg.Done()

	p.logger.DebugCtx(ctx, "worker started",
		logger.Field{Key: "worker_id", Value: id},
		logger.Field{Key: "priority", Value: tier.String()})

	for {
		task, err := p.queues.Pop(ctx, tier)
		if err != nil {
			p.logger.DebugCtx(ctx, "worker stopping",
				logger.Field{Key: "worker_id", Value: id},
				logger.Field{Key: "reason", Value: err.Error()})
			return
		}

		p.processTask(ctx, id, task)
		p.queues.TaskDone()
	}
}

// processTask runs one task with metrics, logging and observer reporting.
func (p *Pool) processTask(ctx context.Context, workerID int, task Task) {
	start := time.Now()
	err := p.execute(ctx, task)
	d := time.Since(start)

	p.record(err, d)

	fields := []logger.Field{
		{Key: "worker_id", Value: workerID},
		{Key: "task_id", Value: task.ID},
		{Key: "task", Value: task.Name},
		{Key: "priority", Value: task.Priority.String()},
		{Key: "duration_ms", Value: d.Milliseconds()},
		{Key: "queued_ms", Value: start.Sub(task.EnqueuedAt).Milliseconds()},
	}

	if err != nil {
		p.logger.ErrorCtx(ctx, "task failed", err, fields...)
		p.observer.TaskFailed(task, err, d)
		return
	}

	p.logger.DebugCtx(ctx, "task processed", fields...)
	p.observer.TaskSucceeded(task, d)
}

// execute runs task.Fn in its own goroutine under a cancellable scope. The
// worker is released when the task returns, panics, times out or the pool
// stops, whichever comes first.
func (p *Pool) execute(ctx context.Context, task Task) error {
	if task.Fn == nil {
		return fmt.Errorf("%w: nil task function", ErrTaskFailed)
	}

	execCtx, cancel := ctx, context.CancelFunc(func() {})
	if p.timeout > 0 {
		execCtx, cancel = context.WithTimeout(ctx, p.timeout)
	}
	defer cancel()

	done := make(chan error, 1)
	go func() {
		defer func() {
			if r := recover(); r != nil {
				done <- fmt.Errorf("%w: %w: %v", ErrTaskFailed, ErrTaskPanic, r)
			}
		}()
		done <- task.Fn(execCtx)
	}()

	select {
	case err := <-done:
		return classify(execCtx, err)
	case <-execCtx.Done():
		return classify(execCtx, execCtx.Err())
	}
}

func classify(execCtx context.Context, err error) error {
	switch {
	case err == nil:
		return nil
	case errors.Is(err, ErrTaskFailed):
		return err
	case errors.Is(execCtx.Err(), context.DeadlineExceeded):
		return fmt.Errorf("%w: %w", ErrTaskTimeout, err)
	default:
		return fmt.Errorf("%w: %w", ErrTaskFailed, err)
	}
}
