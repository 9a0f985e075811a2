// Package worker runs the single dedicated goroutine that owns a Wheel
// and drives it forward: draining expirations, pulling new requests off
// the exchange queues, and parking until the next deadline or a producer
// kick.
package worker

import (
	"context"
	"sync"
	"sync/atomic"
	"time"

	"github.com/chris-alexander-pop/timingwheel/internal/exchange"
	"github.com/chris-alexander-pop/timingwheel/pkg/concurrency"
	"github.com/chris-alexander-pop/timingwheel/pkg/logger"
	"github.com/chris-alexander-pop/timingwheel/wheel"
)

// notifyFanOut bounds how many TaskNotify deliveries a single drain pass
// runs concurrently. Firings within one tick have no specified ordering
// between producers, so delivering them off the
// worker goroutine - bounded, so a slow or panicking consumer can't pile
// up unbounded goroutines - is a legitimate strategy, not just a
// performance tweak.
const notifyFanOut = 64

// Worker owns a *wheel.Wheel exclusively from its own goroutine. All
// producer-facing methods communicate with that goroutine only through
// the exchange queues and a buffered wakeup channel - the Go analogue of
// thread park/unpark.
type Worker struct {
	setQueue *exchange.SetQueue
	modQueue *exchange.ModQueue[exchange.ModMessage]

	wake chan struct{}
	stop chan struct{}

	tolerance  time.Duration
	maxTimeout time.Duration
	epoch      time.Time

	notifySem *concurrency.Semaphore

	stopOnce sync.Once
	wg       sync.WaitGroup
	stopped  atomic.Bool
}

// Spawn reserves capacity tokens from w, builds the exchange queues
// around them, and starts the worker goroutine. It panics if w does not
// have at least capacity tokens available, mirroring the precondition the
// original implementation asserts at spawn time - a configuration error,
// not a runtime condition callers should expect to recover from.
func Spawn(w *wheel.Wheel, tolerance, maxTimeout time.Duration, capacity int) *Worker {
	if w.Available() < capacity {
		panic("worker: wheel does not have enough capacity for the requested channel capacity")
	}

	setQueue := exchange.NewSetQueue(capacity, func() wheel.Token {
		token, ok := w.Reserve()
		if !ok {
			panic("worker: failed to reserve initial exchange token")
		}
		return token
	})
	modQueue := exchange.NewModQueue[exchange.ModMessage](capacity)

	wk := &Worker{
		setQueue:   setQueue,
		modQueue:   modQueue,
		wake:       make(chan struct{}, 1),
		stop:       make(chan struct{}),
		tolerance:  tolerance,
		maxTimeout: maxTimeout,
		epoch:      w.Start(),
		notifySem:  concurrency.NewSemaphore(notifyFanOut),
	}

	wk.wg.Add(1)
	go wk.run(w)

	return wk
}

// Tolerance is the largest amount of time a deadline may fire early,
// equal to the wheel's tick duration.
func (wk *Worker) Tolerance() time.Duration { return wk.tolerance }

// MaxTimeout is the largest delay a caller may request before SetTimeout
// should be rejected as TooLong by the caller.
func (wk *Worker) MaxTimeout() time.Duration { return wk.maxTimeout }

// Epoch is the wheel's tick-arithmetic origin, fixed at spawn time. Callers
// use it together with Tolerance (the tick duration) to pre-compute the
// same tick-snapped deadline the wheel will itself settle on, so that a
// later Cancel or MoveTimeout can present a matching `when`.
func (wk *Worker) Epoch() time.Time { return wk.epoch }

func (wk *Worker) kick() {
	select {
	case wk.wake <- struct{}{}:
	default:
	}
}

// SetTimeout hands a new deadline request to the worker via the
// set-queue, returning the token the caller now owns. The actual wheel
// insertion (and its tick-snapping) happens later, asynchronously, on the
// worker goroutine - callers that need to Cancel or MoveTimeout later
// should pre-snap their own `when` with SnapToTick so it matches what the
// wheel eventually stores. ok is false if the exchange queue is
// momentarily full; the caller should back off and retry.
func (wk *Worker) SetTimeout(when time.Time, task wheel.TaskNotify) (wheel.Token, bool) {
	token, ok := wk.setQueue.PushExch(when, task)
	if !ok {
		return wheel.Empty, false
	}
	wk.kick()
	return token, true
}

// MoveTimeout re-tasks an in-flight timeout via the mod-queue. ok is
// false if the mod-queue is momentarily full.
func (wk *Worker) MoveTimeout(token wheel.Token, when time.Time, task wheel.TaskNotify) bool {
	_, ok := wk.modQueue.Push(exchange.ModMessage{
		Kind:  exchange.ModMove,
		Token: token,
		When:  when,
		Task:  task,
	})
	if ok {
		wk.kick()
	}
	return ok
}

// CancelTimeout requests best-effort cancellation of token via the
// mod-queue, kicking the worker awake on a successful push so the cancel
// is applied before Poll can fire the entry while the worker sits parked
// on its deadline. A full queue is silently ignored: the caller's Sleep
// simply never has its cancellation applied, same as a dropped MoveTimeout.
func (wk *Worker) CancelTimeout(token wheel.Token, when time.Time) {
	_, ok := wk.modQueue.Push(exchange.ModMessage{
		Kind:  exchange.ModCancel,
		Token: token,
		When:  when,
	})
	if ok {
		wk.kick()
	}
}

// Stop signals the worker goroutine to exit and waits for it to do so.
// Safe to call more than once.
func (wk *Worker) Stop() {
	wk.stopOnce.Do(func() {
		wk.stopped.Store(true)
		close(wk.stop)
	})
	wk.wg.Wait()
}

func (wk *Worker) run(w *wheel.Wheel) {
	defer wk.wg.Done()

	var parkTimer *time.Timer

	for {
		select {
		case <-wk.stop:
			return
		default:
		}

		now := time.Now()
		fired := 0
		setDrained := 0
		modDrained := 0

		for {
			task, ok := w.Poll(now)
			if !ok {
				break
			}
			fired++
			t := task
			_ = wk.notifySem.Acquire(context.Background(), 1)
			concurrency.SafeGo(context.Background(), func() {
				defer wk.notifySem.Release(1)
				t.Notify()
			})
		}

		for {
			token, ok := w.Reserve()
			if !ok {
				logger.L().WarnContext(context.Background(), "worker: wheel at max_capacity, deferring set-queue drain",
					"available", w.Available())
				break
			}
			gotToken, when, task, ok := wk.setQueue.PopExch(token)
			if !ok {
				w.Release(token)
				break
			}
			w.SetTimeout(gotToken, when, task)
			setDrained++
		}

		for {
			msg, ok := wk.modQueue.Pop()
			if !ok {
				break
			}
			switch msg.Kind {
			case exchange.ModMove:
				w.MoveTimeout(msg.Token, msg.When, msg.Task)
			case exchange.ModCancel:
				w.Cancel(msg.Token, msg.When)
			}
			modDrained++
		}

		if fired > 0 || setDrained > 0 || modDrained > 0 {
			logger.L().Debug("worker: drain pass", "fired", fired, "set_drained", setDrained, "mod_drained", modDrained)
		}

		now = time.Now()

		var wakeC <-chan time.Time
		if next, ok := w.NextTimeout(); ok {
			d := next.Sub(now)
			if d < 0 {
				d = 0
			}
			parkTimer = time.NewTimer(d)
			wakeC = parkTimer.C
		}

		select {
		case <-wk.stop:
			stopTimer(parkTimer)
			return
		case <-wk.wake:
			stopTimer(parkTimer)
		case <-wakeC:
		}
	}
}

func stopTimer(t *time.Timer) {
	if t == nil {
		return
	}
	if !t.Stop() {
		select {
		case <-t.C:
		default:
		}
	}
}
