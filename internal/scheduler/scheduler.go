// Package scheduler is the bot's background work core: three priority tiers of
// unbounded FIFO queues, a fixed pool of workers per tier, a per-channel
// batcher for coalesced side effects and a concurrent executor that isolates
// per-item failures.
//
// Submission is fire-and-forget. Callers never observe the outcome of a task;
// failures are logged and reported to an Observer.
package scheduler

import (
	"context"
	"fmt"
	"sync"
	"time"

	"github.com/Hongsc0125/donggle-bot/internal/logger"
)

// Dispatcher is the submission side of a Scheduler, accepted by every
// component that hands off background work.
type Dispatcher interface {
	Schedule(p Priority, name string, fn TaskFunc)
}

// Config configures a Scheduler.
type Config struct {
	Workers     WorkerCounts
	TaskTimeout time.Duration // 0 disables the per-task deadline
}

// Scheduler is the public submission API over a QueueSet and its Pool.
type Scheduler struct {
	queues   *QueueSet
	pool     *Pool
	observer Observer
	logger   *logger.Logger

	mu      sync.RWMutex
	stopped bool
}

// New creates a scheduler. Tasks may be scheduled before Start; they wait in
// their queue until workers are running.
func New(cfg Config, observer Observer, log *logger.Logger) *Scheduler {
	if observer == nil {
		observer = NopObserver{}
	}
	queues := NewQueueSet()
	return &Scheduler{
		queues:   queues,
		pool:     NewPool(queues, cfg.Workers, cfg.TaskTimeout, observer, log),
		observer: observer,
		logger:   log.Component("scheduler"),
	}
}

// Start launches the worker pool.
func (s *Scheduler) Start(ctx context.Context) error {
	s.mu.RLock()
	stopped := s.stopped
	s.mu.RUnlock()
	if stopped {
		return ErrSchedulerStopped
	}
	if err := s.pool.Start(ctx); err != nil {
		return fmt.Errorf("failed to start worker pool: %w", err)
	}
	return nil
}

// Schedule enqueues fn on tier p and returns immediately. It never blocks and
// never reports an error to the caller: rejected tasks are logged and passed
// to the observer as dropped.
func (s *Scheduler) Schedule(p Priority, name string, fn TaskFunc) {
	task := NewTask(p, name, fn)

	s.mu.RLock()
	stopped := s.stopped
	s.mu.RUnlock()

	var err error
	if stopped {
		err = ErrSchedulerStopped
	} else {
		err = s.queues.Push(task)
	}
	if err != nil {
		s.logger.Warn("task dropped",
			logger.Field{Key: "task", Value: name},
			logger.Field{Key: "priority", Value: p.String()},
			logger.Field{Key: "error", Value: err.Error()})
		s.observer.TaskDropped(task, err)
		return
	}

	s.logger.Debug("task scheduled",
		logger.Field{Key: "task_id", Value: task.ID},
		logger.Field{Key: "task", Value: name},
		logger.Field{Key: "priority", Value: p.String()})
}

// Drain waits until every scheduled task has finished executing.
func (s *Scheduler) Drain(ctx context.Context) error {
	return s.queues.Join(ctx)
}

// Stop cancels the workers, waits for them and drops whatever is still
// queued. Further Schedule calls are rejected.
func (s *Scheduler) Stop() {
	s.mu.Lock()
	if s.stopped {
		s.mu.Unlock()
		return
	}
	s.stopped = true
	s.mu.Unlock()

	s.pool.Stop()

	abandoned := s.queues.Close()
	for _, t := range abandoned {
		s.observer.TaskDropped(t, ErrSchedulerStopped)
	}
	if len(abandoned) > 0 {
		s.logger.Warn("abandoned queued tasks on shutdown",
			logger.Field{Key: "count", Value: len(abandoned)})
	}
}

// QueueDepth returns the number of tasks waiting on tier p.
func (s *Scheduler) QueueDepth(p Priority) int {
	return s.queues.Len(p)
}

// Metrics returns the pool counters.
func (s *Scheduler) Metrics() PoolMetrics {
	return s.pool.Metrics()
}

// WorkerCount returns the number of workers bound to tier p.
func (s *Scheduler) WorkerCount(p Priority) int {
	return s.pool.WorkerCount(p)
}
