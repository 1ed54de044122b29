package scheduler

import "errors"

var (
	ErrInvalidPriority  = errors.New("invalid priority")
	ErrSchedulerStopped = errors.New("scheduler is stopped")
	ErrQueueClosed      = errors.New("queue is closed")
	ErrBatcherStopped   = errors.New("batcher is stopped")

	// ErrTaskFailed wraps every error returned (or panic raised) by a task body.
	ErrTaskFailed = errors.New("task failed")
	// ErrTaskTimeout is reported when a task exceeds the configured timeout.
	ErrTaskTimeout = errors.New("task timed out")
	ErrTaskPanic   = errors.New("task panicked")
)
