// Package timingwheel is a hashed timing-wheel timer core: a single
// dedicated worker goroutine drives deadline expiration for any number of
// concurrent producers, communicating with them only through lock-free
// exchange queues. Sleep, Timeout, TimeoutStream, and Interval are thin
// wrappers over that core built for idiomatic Go use (channels and
// context.Context in place of the original's futures/tasks).
package timingwheel

import (
	"sync"
	"time"

	"github.com/chris-alexander-pop/timingwheel/internal/worker"
	"github.com/chris-alexander-pop/timingwheel/pkg/concurrency"
	"github.com/chris-alexander-pop/timingwheel/pkg/logger"
	"github.com/chris-alexander-pop/timingwheel/wheel"
)

// Timer is the public handle to a running timer core.
type Timer struct {
	wk *worker.Worker

	closeMu *concurrency.SmartMutex
	closed  bool

	afterFuncOnce sync.Once
	pool          *concurrency.WorkerPool
}

func newTimer(w *wheel.Wheel, tickDuration, maxTimeout time.Duration, channelCapacity int) (*Timer, error) {
	wk := worker.Spawn(w, tickDuration, maxTimeout, channelCapacity)
	logger.L().Debug("timer core started",
		"tick_duration", tickDuration,
		"max_timeout", maxTimeout,
		"channel_capacity", channelCapacity,
	)
	return &Timer{
		wk:      wk,
		closeMu: concurrency.NewSmartMutex(concurrency.MutexConfig{Name: "timer-close"}),
	}, nil
}

// Tolerance is the allowed early-fire window: a deadline may fire up to
// one tick before the instant requested, never later than is otherwise
// guaranteed.
func (t *Timer) Tolerance() time.Duration { return t.wk.Tolerance() }

// MaxTimeout is the largest delay this Timer accepts before rejecting a
// request as TooLong.
func (t *Timer) MaxTimeout() time.Duration { return t.wk.MaxTimeout() }

// snapWhen pre-computes the tick-boundary instant the wheel will settle
// on for at, so producer-held state can later present an exact-matching
// `when` to Cancel or MoveTimeout.
func (t *Timer) snapWhen(at time.Time) time.Time {
	return wheel.SnapToTick(t.wk.Epoch(), t.wk.Tolerance(), at)
}

// Close stops the underlying worker goroutine. Safe to call more than
// once; subsequent calls are no-ops.
func (t *Timer) Close() error {
	t.closeMu.Lock()
	defer t.closeMu.Unlock()
	if t.closed {
		return nil
	}
	t.closed = true
	t.wk.Stop()
	if t.pool != nil {
		t.pool.Stop()
	}
	return nil
}
