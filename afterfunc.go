package timingwheel

import (
	"context"
	"time"

	"github.com/chris-alexander-pop/timingwheel/pkg/concurrency"
)

const afterFuncPoolSize = 32

// afterFuncPool lazily starts the bounded pool AfterFunc callbacks run on;
// Timer's afterFuncOnce/pool fields are declared in timer.go.
func (t *Timer) afterFuncPool() *concurrency.WorkerPool {
	t.afterFuncOnce.Do(func() {
		pool := concurrency.NewWorkerPool(afterFuncPoolSize, afterFuncPoolSize)
		pool.Start(context.Background())
		t.pool = pool
	})
	return t.pool
}

// AfterFunc schedules fn to run, on a bounded worker pool rather than
// directly on the core's single worker goroutine, once d has elapsed.
// The returned Sleep's Stop cancels the call if it has not yet run.
func (t *Timer) AfterFunc(d time.Duration, fn func()) (*Sleep, error) {
	sl, err := t.NewSleep(d)
	if err != nil {
		return nil, err
	}
	go func() {
		select {
		case <-sl.C():
			t.afterFuncPool().Submit(func(context.Context) { fn() })
		case <-sl.stop:
		}
	}()
	return sl, nil
}
