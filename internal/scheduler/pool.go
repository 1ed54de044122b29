package scheduler

import (
	"context"
	"errors"
	"sync"
	"time"

	"github.com/Hongsc0125/donggle-bot/internal/logger"
)

// Default worker distribution: the most urgent tier gets the largest share and
// every tier keeps at least one dedicated worker.
const (
	DefaultHighWorkers   = 4
	DefaultMediumWorkers = 2
	DefaultLowWorkers    = 1
	DefaultTaskTimeout   = 2 * time.Minute
)

// WorkerCounts is the number of workers bound to each tier.
type WorkerCounts struct {
	High   int
	Medium int
	Low    int
}

// For returns the worker count for tier p.
func (w WorkerCounts) For(p Priority) int {
	switch p {
	case PriorityHigh:
		return w.High
	case PriorityMedium:
		return w.Medium
	case PriorityLow:
		return w.Low
	default:
		return 0
	}
}

func (w WorkerCounts) withDefaults() WorkerCounts {
	if w.High <= 0 {
		w.High = DefaultHighWorkers
	}
	if w.Medium <= 0 {
		w.Medium = DefaultMediumWorkers
	}
	if w.Low <= 0 {
		w.Low = DefaultLowWorkers
	}
	return w
}

// PoolMetrics tracks execution counters for the pool.
type PoolMetrics struct {
	TasksCompleted uint64
	TasksFailed    uint64
	TasksTimedOut  uint64
	TotalDuration  time.Duration
}

// Pool runs a fixed set of long-lived workers, each bound to one tier of a
// QueueSet.
type Pool struct {
	queues   *QueueSet
	workers  WorkerCounts
	timeout  time.Duration
	observer Observer
	logger   *logger.Logger

	mu      sync.Mutex
	metrics PoolMetrics
	started bool
	ctx     context.Context
	cancel  context.CancelFunc
	wg      sync.WaitGroup
}

// NewPool creates a pool over queues. A zero timeout disables the per-task
// deadline.
func NewPool(queues *QueueSet, workers WorkerCounts, timeout time.Duration, observer Observer, log *logger.Logger) *Pool {
	if observer == nil {
		observer = NopObserver{}
	}
	return &Pool{
		queues:   queues,
		workers:  workers.withDefaults(),
		timeout:  timeout,
		observer: observer,
		logger:   log.Component("worker_pool"),
	}
}

// Start launches every worker. Workers stop when ctx is cancelled or Stop is
// called.
func (p *Pool) Start(ctx context.Context) error {
	p.mu.Lock()
	defer p.mu.Unlock()

	if p.started {
		return errors.New("worker pool already started")
	}
	p.ctx, p.cancel = context.WithCancel(ctx)
	p.started = true

	p.logger.Info("starting worker pool",
		logger.Field{Key: "high", Value: p.workers.High},
		logger.Field{Key: "medium", Value: p.workers.Medium},
		logger.Field{Key: "low", Value: p.workers.Low},
		logger.Field{Key: "task_timeout", Value: p.timeout})

	id := 0
	for _, tier := range Priorities() {
		for i := 0; i < p.workers.For(tier); i++ {
			p.wg.Add(1)
			go p.worker(p.ctx, id, tier)
			id++
		}
	}
	return nil
}

// Stop cancels every worker and waits for them to exit. The in-flight task of
// each worker sees its context cancelled.
func (p *Pool) Stop() {
	p.mu.Lock()
	if !p.started {
		p.mu.Unlock()
		return
	}
	p.started = false
	cancel := p.cancel
	p.mu.Unlock()

	cancel()
	p.wg.Wait()

	m := p.Metrics()
	p.logger.Info("worker pool stopped",
		logger.Field{Key: "tasks_completed", Value: m.TasksCompleted},
		logger.Field{Key: "tasks_failed", Value: m.TasksFailed},
		logger.Field{Key: "tasks_timed_out", Value: m.TasksTimedOut})
}

// WorkerCount returns the number of workers bound to tier p.
func (p *Pool) WorkerCount(tier Priority) int {
	return p.workers.For(tier)
}

// Metrics returns a snapshot of the pool counters.
func (p *Pool) Metrics() PoolMetrics {
	p.mu.Lock()
	defer p.mu.Unlock()
	return p.metrics
}

func (p *Pool) record(err error, d time.Duration) {
	p.mu.Lock()
	defer p.mu.Unlock()

	p.metrics.TotalDuration += d
	switch {
	case err == nil:
		p.metrics.TasksCompleted++
	case errors.Is(err, ErrTaskTimeout):
		p.metrics.TasksTimedOut++
	default:
		p.metrics.TasksFailed++
	}
}
