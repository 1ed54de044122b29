package scheduler

import (
	"context"
	"time"

	"github.com/google/uuid"
)

// TaskFunc is a unit of background work. Arguments are captured by the closure
// at submission time.
type TaskFunc func(ctx context.Context) error

// Task is owned by its queue from Push until a worker pops it.
type Task struct {
	ID         string
	Name       string
	Priority   Priority
	Fn         TaskFunc
	EnqueuedAt time.Time
}

// NewTask builds a task with a fresh ID.
func NewTask(p Priority, name string, fn TaskFunc) Task {
	return Task{
		ID:         uuid.NewString(),
		Name:       name,
		Priority:   p,
		Fn:         fn,
		EnqueuedAt: time.Now(),
	}
}
