package wheel

import "sync/atomic"

var nextTaskID atomic.Uint64

// TaskNotify is the Go stand-in for the task-handle/notify primitive the
// core borrows from an external async task system. It
// wraps a buffered wakeup channel plus a monotonically increasing identity:
// two TaskNotify values compare as "the same waiter" when their IDs match,
// letting a producer cheaply decide whether a stored registration already
// targets the task currently polling it, without re-registering on every
// poll.
type TaskNotify struct {
	id   uint64
	wake chan struct{}
}

// NewTaskNotify creates a fresh, independently identified wakeup handle.
func NewTaskNotify() TaskNotify {
	return TaskNotify{
		id:   nextTaskID.Add(1),
		wake: make(chan struct{}, 1),
	}
}

// Notify wakes the task, if it is not already marked ready. Sending never
// blocks: a task that hasn't consumed a prior wakeup yet simply stays
// marked ready.
func (t TaskNotify) Notify() {
	select {
	case t.wake <- struct{}{}:
	default:
	}
}

// C returns the channel a waiter selects on to learn it has been woken.
func (t TaskNotify) C() <-chan struct{} {
	return t.wake
}

// Is reports whether t and other identify the same logical waiter.
func (t TaskNotify) Is(other TaskNotify) bool {
	return t.id == other.id
}

// IsZero reports whether t is the unset zero value.
func (t TaskNotify) IsZero() bool {
	return t.id == 0
}
