// Package wheel is the original hashed-wheel-timer sketch this module grew
// out of. Legacy keeps its old New/Start/Stop/Schedule surface so existing
// callers are unaffected, but underneath it now wraps the spec-conformant
// core engine (the root engine's own Wheel plus a dedicated worker) instead
// of the original container/list-backed loop.
package wheel

import (
	"sync"
	"time"

	core "github.com/chris-alexander-pop/timingwheel/wheel"
	"github.com/chris-alexander-pop/timingwheel/internal/worker"
)

const legacyChannelCapacity = 128

// Legacy is a Hashed Wheel Timer for O(1) scheduling of callbacks, now
// backed by the core engine.
type Legacy struct {
	tickDuration time.Duration
	wheelSize    int

	w  *core.Wheel
	wk *worker.Worker

	mu      sync.Mutex
	started bool
}

// New creates a new Legacy timer. wheelSize is rounded up to the nearest
// power of two, since the underlying engine requires it.
func New(tickDuration time.Duration, wheelSize int) *Legacy {
	numSlots := nextPowerOfTwo(wheelSize)

	w, err := core.New(core.Config{
		NumSlots:        numSlots,
		TickDuration:    tickDuration,
		InitialCapacity: legacyChannelCapacity,
		MaxCapacity:     4_194_304,
	})
	if err != nil {
		// The original constructor had no error return; a bad
		// tick_duration/wheel_size here is a caller programming error.
		panic(err)
	}

	return &Legacy{
		tickDuration: tickDuration,
		wheelSize:    numSlots,
		w:            w,
	}
}

// Start spawns the worker goroutine that drives the wheel forward.
func (t *Legacy) Start() {
	t.mu.Lock()
	defer t.mu.Unlock()
	if t.started {
		return
	}
	maxTimeout := time.Duration(t.wheelSize) * t.tickDuration
	t.wk = worker.Spawn(t.w, t.tickDuration, maxTimeout, legacyChannelCapacity)
	t.started = true
}

// Stop halts the worker goroutine.
func (t *Legacy) Stop() {
	t.mu.Lock()
	wk := t.wk
	t.started = false
	t.mu.Unlock()
	if wk != nil {
		wk.Stop()
	}
}

// Schedule runs callback once, after delay d, on its own goroutine - the
// same fire-and-forget semantics the original provided.
func (t *Legacy) Schedule(d time.Duration, callback func()) {
	t.mu.Lock()
	wk := t.wk
	t.mu.Unlock()
	if wk == nil {
		return
	}

	task := core.NewTaskNotify()
	go func() {
		for {
			_, ok := wk.SetTimeout(time.Now().Add(d), task)
			if ok {
				break
			}
			time.Sleep(time.Millisecond)
		}
		<-task.C()
		callback()
	}()
}

func nextPowerOfTwo(n int) int {
	if n < 2 {
		return 2
	}
	if n&(n-1) == 0 {
		return n
	}
	p := 2
	for p < n {
		p <<= 1
	}
	return p
}
