package scheduler

import (
	"context"
	"fmt"
	"sync"
)

// compactThreshold bounds how many consumed slots a fifo keeps before it
// shifts the live items to the front of its slice.
const compactThreshold = 1024

// fifo is an unbounded FIFO with a blocking, cancellable pop.
type fifo struct {
	mu     sync.Mutex
	items  []Task
	head   int
	closed bool

	// ready carries at most one pending wakeup. A consumer that takes an item
	// while more remain passes the wakeup on, so no waiter is stranded.
	ready chan struct{}
}

func newFIFO() *fifo {
	return &fifo{ready: make(chan struct{}, 1)}
}

func (q *fifo) signal() {
	select {
	case q.ready <- struct{}{}:
	default:
	}
}

func (q *fifo) push(t Task) bool {
	q.mu.Lock()
	if q.closed {
		q.mu.Unlock()
		return false
	}
	q.items = append(q.items, t)
	q.mu.Unlock()

	q.signal()
	return true
}

func (q *fifo) pop(ctx context.Context) (Task, error) {
	for {
		q.mu.Lock()
		if q.head < len(q.items) {
			t := q.items[q.head]
			q.items[q.head] = Task{}
			q.head++
			q.compact()
			more := q.head < len(q.items)
			q.mu.Unlock()

			if more {
				q.signal()
			}
			return t, nil
		}
		if q.closed {
			q.mu.Unlock()
			q.signal()
			return Task{}, ErrQueueClosed
		}
		q.mu.Unlock()

		select {
		case <-q.ready:
		case <-ctx.Done():
			return Task{}, ctx.Err()
		}
	}
}

// compact must be called with q.mu held.
func (q *fifo) compact() {
	switch {
	case q.head == len(q.items):
		q.items = q.items[:0]
		q.head = 0
	case q.head >= compactThreshold && q.head*2 >= len(q.items):
		n := copy(q.items, q.items[q.head:])
		clear(q.items[n:])
		q.items = q.items[:n]
		q.head = 0
	}
}

func (q *fifo) len() int {
	q.mu.Lock()
	defer q.mu.Unlock()
	return len(q.items) - q.head
}

// close stops accepting pushes and returns the tasks that were never popped.
func (q *fifo) close() []Task {
	q.mu.Lock()
	q.closed = true
	rest := append([]Task(nil), q.items[q.head:]...)
	q.items = nil
	q.head = 0
	q.mu.Unlock()

	q.signal()
	return rest
}

// QueueSet holds one unbounded FIFO per priority tier and tracks unfinished
// work so callers can wait for the queues to drain.
type QueueSet struct {
	queues [numPriorities]*fifo

	mu         sync.Mutex
	unfinished int
	drained    chan struct{}
}

// NewQueueSet creates the three tier queues.
func NewQueueSet() *QueueSet {
	qs := &QueueSet{}
	for i := range qs.queues {
		qs.queues[i] = newFIFO()
	}
	return qs
}

// Push enqueues t on its tier. It never blocks.
func (qs *QueueSet) Push(t Task) error {
	if !t.Priority.Valid() {
		return fmt.Errorf("%w: %d", ErrInvalidPriority, int(t.Priority))
	}

	qs.mu.Lock()
	qs.unfinished++
	if qs.unfinished == 1 {
		qs.drained = make(chan struct{})
	}
	qs.mu.Unlock()

	if !qs.queues[t.Priority].push(t) {
		qs.TaskDone()
		return ErrQueueClosed
	}
	return nil
}

// Pop blocks until a task is available on tier p or ctx is done.
func (qs *QueueSet) Pop(ctx context.Context, p Priority) (Task, error) {
	if !p.Valid() {
		return Task{}, fmt.Errorf("%w: %d", ErrInvalidPriority, int(p))
	}
	return qs.queues[p].pop(ctx)
}

// TaskDone marks one popped task as finished.
func (qs *QueueSet) TaskDone() {
	qs.mu.Lock()
	defer qs.mu.Unlock()

	if qs.unfinished == 0 {
		return
	}
	qs.unfinished--
	if qs.unfinished == 0 {
		close(qs.drained)
	}
}

// Join waits until every pushed task has been marked done.
func (qs *QueueSet) Join(ctx context.Context) error {
	qs.mu.Lock()
	if qs.unfinished == 0 {
		qs.mu.Unlock()
		return nil
	}
	drained := qs.drained
	qs.mu.Unlock()

	select {
	case <-drained:
		return nil
	case <-ctx.Done():
		return ctx.Err()
	}
}

// Len returns the number of tasks waiting on tier p.
func (qs *QueueSet) Len(p Priority) int {
	if !p.Valid() {
		return 0
	}
	return qs.queues[p].len()
}

// Unfinished returns the number of pushed tasks not yet marked done.
func (qs *QueueSet) Unfinished() int {
	qs.mu.Lock()
	defer qs.mu.Unlock()
	return qs.unfinished
}

// Close rejects further pushes and returns the abandoned tasks of every tier.
// Abandoned tasks are marked done.
func (qs *QueueSet) Close() []Task {
	var abandoned []Task
	for _, q := range qs.queues {
		abandoned = append(abandoned, q.close()...)
	}
	for range abandoned {
		qs.TaskDone()
	}
	return abandoned
}
