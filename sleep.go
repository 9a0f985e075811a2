package timingwheel

import (
	"context"
	"fmt"
	"sync"
	"time"

	appErrors "github.com/chris-alexander-pop/timingwheel/pkg/errors"
	"github.com/chris-alexander-pop/timingwheel/pkg/resilience"
	"github.com/chris-alexander-pop/timingwheel/wheel"
)

// Sleep is a single deadline registered against a Timer's core. Use C()
// for channel-based readiness or Wait(ctx) to block with cancellation
// support. Stop releases the deadline if it has not yet fired.
type Sleep struct {
	timer *Timer
	when  time.Time
	task  wheel.TaskNotify

	ready chan struct{}
	stop  chan struct{}

	mu       sync.Mutex
	token    wheel.Token
	hasToken bool
	canceled bool
	fired    bool
}

// NewSleep registers a deadline d from now. It fails with TooLong if d
// exceeds the Timer's configured MaxTimeout.
func (t *Timer) NewSleep(d time.Duration) (*Sleep, error) {
	return t.NewSleepAt(time.Now().Add(d))
}

// NewSleepAt registers a deadline at a specific instant.
func (t *Timer) NewSleepAt(at time.Time) (*Sleep, error) {
	if d := time.Until(at); d > t.MaxTimeout() {
		return nil, appErrors.TooLong(fmt.Sprintf("requested deadline %s from now exceeds max_timeout %s", d, t.MaxTimeout()))
	}

	s := &Sleep{
		timer: t,
		when:  t.snapWhen(at),
		task:  wheel.NewTaskNotify(),
		ready: make(chan struct{}),
		stop:  make(chan struct{}),
	}
	go s.arm()
	return s, nil
}

// arm retries SetTimeout against the worker's set-queue until it is
// accepted, backing off between attempts with the same
// jittered-exponential strategy the producer side uses for any
// queue-full condition - this generalizes the "re-notify self, return
// not-ready" rule from a poll-driven retry into a plain backoff loop,
// since nothing here is polled by an external executor.
func (s *Sleep) arm() {
	attempt := 0
	for {
		s.mu.Lock()
		canceled := s.canceled
		s.mu.Unlock()
		if canceled {
			return
		}

		token, ok := s.timer.wk.SetTimeout(s.when, s.task)
		if ok {
			s.mu.Lock()
			s.token = token
			s.hasToken = true
			wasCanceled := s.canceled
			s.mu.Unlock()
			if wasCanceled {
				s.timer.wk.CancelTimeout(token, s.when)
			}
			break
		}

		d := resilience.ExponentialBackoff(attempt, time.Millisecond, 50*time.Millisecond, 0.2)
		select {
		case <-time.After(d):
		case <-s.stop:
			return
		}
		attempt++
	}

	s.watch()
}

func (s *Sleep) watch() {
	select {
	case <-s.task.C():
		s.mu.Lock()
		if !s.canceled {
			s.fired = true
			close(s.ready)
		}
		s.mu.Unlock()
	case <-s.stop:
	}
}

// C returns the channel that closes once this Sleep's deadline fires.
func (s *Sleep) C() <-chan struct{} { return s.ready }

// Wait blocks until the deadline fires or ctx is done, whichever happens
// first.
func (s *Sleep) Wait(ctx context.Context) error {
	select {
	case <-s.ready:
		return nil
	case <-ctx.Done():
		return ctx.Err()
	}
}

// Stop cancels the deadline if it has not already fired. Safe to call
// more than once and safe to call after the deadline has already fired
// (a no-op in that case). Mirrors the original's cancel-on-drop behavior,
// made explicit since Go has no destructors.
func (s *Sleep) Stop() {
	s.mu.Lock()
	if s.canceled || s.fired {
		s.mu.Unlock()
		return
	}
	s.canceled = true
	token, hasToken := s.token, s.hasToken
	s.mu.Unlock()

	close(s.stop)
	if hasToken {
		s.timer.wk.CancelTimeout(token, s.when)
	}
}
