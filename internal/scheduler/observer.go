package scheduler

import (
	"errors"
	"sync"
	"sync/atomic"
	"time"
)

// Observer receives the outcome of fire-and-forget work so failures can be
// counted or forwarded without parsing logs.
type Observer interface {
	TaskSucceeded(task Task, d time.Duration)
	TaskFailed(task Task, err error, d time.Duration)
	// TaskDropped is called for tasks that were never executed (invalid
	// priority, scheduler stopped, abandoned at shutdown).
	TaskDropped(task Task, err error)
	BatchItemFailed(channelID string, err error)
}

// NopObserver ignores everything.
type NopObserver struct{}

func (NopObserver) TaskSucceeded(Task, time.Duration) {}
func (NopObserver) TaskFailed(Task, error, time.Duration) {}
func (NopObserver) TaskDropped(Task, error) {}
func (NopObserver) BatchItemFailed(string, error) {}

// CountingObserver keeps atomic counters of every outcome.
type CountingObserver struct {
	Succeeded     atomic.Int64
	Failed        atomic.Int64
	TimedOut      atomic.Int64
	Dropped       atomic.Int64
	BatchFailures atomic.Int64
}

func (c *CountingObserver) TaskSucceeded(Task, time.Duration) {
	c.Succeeded.Add(1)
}

func (c *CountingObserver) TaskFailed(_ Task, err error, _ time.Duration) {
	if errors.Is(err, ErrTaskTimeout) {
		c.TimedOut.Add(1)
		return
	}
	c.Failed.Add(1)
}

func (c *CountingObserver) TaskDropped(Task, error) {
	c.Dropped.Add(1)
}

func (c *CountingObserver) BatchItemFailed(string, error) {
	c.BatchFailures.Add(1)
}

// MultiObserver fans every event out to its members. Members can be added
// after construction, which lets components that depend on the scheduler
// register themselves as observers.
type MultiObserver struct {
	mu        sync.RWMutex
	observers []Observer
}

func NewMultiObserver(observers ...Observer) *MultiObserver {
	return &MultiObserver{observers: observers}
}

func (m *MultiObserver) Add(o Observer) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.observers = append(m.observers, o)
}

func (m *MultiObserver) each(fn func(Observer)) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	for _, o := range m.observers {
		fn(o)
	}
}

func (m *MultiObserver) TaskSucceeded(t Task, d time.Duration) {
	m.each(func(o Observer) { o.TaskSucceeded(t, d) })
}

func (m *MultiObserver) TaskFailed(t Task, err error, d time.Duration) {
	m.each(func(o Observer) { o.TaskFailed(t, err, d) })
}

func (m *MultiObserver) TaskDropped(t Task, err error) {
	m.each(func(o Observer) { o.TaskDropped(t, err) })
}

func (m *MultiObserver) BatchItemFailed(channelID string, err error) {
	m.each(func(o Observer) { o.BatchItemFailed(channelID, err) })
}
