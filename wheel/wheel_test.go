package wheel

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/chris-alexander-pop/timingwheel/pkg/datastructures/heap"
)

func newTestWheel(t *testing.T, numSlots int, tick time.Duration) *Wheel {
	t.Helper()
	w, err := New(Config{
		NumSlots:        numSlots,
		TickDuration:    tick,
		InitialCapacity: 16,
		MaxCapacity:     1024,
	})
	require.NoError(t, err)
	return w
}

func TestNewRejectsNonPowerOfTwoSlots(t *testing.T) {
	_, err := New(Config{NumSlots: 10, TickDuration: time.Millisecond, InitialCapacity: 4, MaxCapacity: 16})
	assert.Error(t, err)
}

func TestNewRejectsNonPositiveTick(t *testing.T) {
	_, err := New(Config{NumSlots: 8, TickDuration: 0, InitialCapacity: 4, MaxCapacity: 16})
	assert.Error(t, err)
}

func TestSetTimeoutAndPollFiresAtTick(t *testing.T) {
	w := newTestWheel(t, 8, 100*time.Millisecond)

	tok, ok := w.Reserve()
	require.True(t, ok)

	task := NewTaskNotify()
	at := w.Start().Add(250 * time.Millisecond)
	snapped := w.SetTimeout(tok, at, task)

	// 250ms lands mid-tick-2; snapping floors to the tick boundary.
	assert.Equal(t, w.Start().Add(200*time.Millisecond), snapped)

	// Polling before the tick is due yields nothing.
	_, ok = w.Poll(w.Start().Add(150 * time.Millisecond))
	assert.False(t, ok)

	got, ok := w.Poll(w.Start().Add(200 * time.Millisecond))
	require.True(t, ok)
	assert.True(t, got.Is(task))

	// Already drained; a second poll at or after the same instant finds nothing.
	_, ok = w.Poll(w.Start().Add(300 * time.Millisecond))
	assert.False(t, ok)
}

func TestDeferToNextTickRule(t *testing.T) {
	w := newTestWheel(t, 8, 100*time.Millisecond)

	// Advance the wheel's own cursor past tick 0 by polling.
	_, ok := w.Poll(w.Start().Add(250 * time.Millisecond))
	assert.False(t, ok)

	tok, ok := w.Reserve()
	require.True(t, ok)
	task := NewTaskNotify()

	// Requesting a deadline at/behind the current tick must defer to the
	// next tick rather than being considered already due.
	snapped := w.SetTimeout(tok, w.Start(), task)
	assert.True(t, snapped.After(w.Start().Add(200*time.Millisecond)))
}

func TestCancelRequiresExactWhenMatch(t *testing.T) {
	w := newTestWheel(t, 8, 100*time.Millisecond)
	tok, _ := w.Reserve()
	task := NewTaskNotify()
	snapped := w.SetTimeout(tok, w.Start().Add(300*time.Millisecond), task)

	// Wrong `when`: silent no-op, the timeout is left live.
	w.Cancel(tok, snapped.Add(time.Millisecond))
	got, ok := w.Poll(w.Start().Add(300 * time.Millisecond))
	require.True(t, ok)
	assert.True(t, got.Is(task))
}

func TestCancelWithMatchingWhenRemovesEntry(t *testing.T) {
	w := newTestWheel(t, 8, 100*time.Millisecond)
	tok, _ := w.Reserve()
	task := NewTaskNotify()
	snapped := w.SetTimeout(tok, w.Start().Add(300*time.Millisecond), task)

	w.Cancel(tok, snapped)
	_, ok := w.Poll(w.Start().Add(300 * time.Millisecond))
	assert.False(t, ok)
}

func TestMoveTimeoutRetasksLiveEntry(t *testing.T) {
	w := newTestWheel(t, 8, 100*time.Millisecond)
	tok, _ := w.Reserve()
	oldTask := NewTaskNotify()
	snapped := w.SetTimeout(tok, w.Start().Add(300*time.Millisecond), oldTask)

	newTask := NewTaskNotify()
	w.MoveTimeout(tok, snapped, newTask)

	got, ok := w.Poll(w.Start().Add(300 * time.Millisecond))
	require.True(t, ok)
	assert.True(t, got.Is(newTask))
	assert.False(t, got.Is(oldTask))
}

func TestWheelWrapCollision(t *testing.T) {
	// 8 slots * 100ms = 800ms wheel period; a deadline one full period
	// later lands in the same slot as an earlier, shorter deadline.
	w := newTestWheel(t, 8, 100*time.Millisecond)

	shortTok, _ := w.Reserve()
	shortTask := NewTaskNotify()
	w.SetTimeout(shortTok, w.Start().Add(200*time.Millisecond), shortTask)

	longTok, _ := w.Reserve()
	longTask := NewTaskNotify()
	w.SetTimeout(longTok, w.Start().Add(1000*time.Millisecond), longTask)

	got, ok := w.Poll(w.Start().Add(200 * time.Millisecond))
	require.True(t, ok)
	assert.True(t, got.Is(shortTask))

	_, ok = w.Poll(w.Start().Add(200 * time.Millisecond))
	assert.False(t, ok)

	got, ok = w.Poll(w.Start().Add(1000 * time.Millisecond))
	require.True(t, ok)
	assert.True(t, got.Is(longTask))
}

func TestLIFOFiringOrderWithinASlot(t *testing.T) {
	w := newTestWheel(t, 8, 100*time.Millisecond)

	var tasks []TaskNotify
	for i := 0; i < 3; i++ {
		tok, _ := w.Reserve()
		task := NewTaskNotify()
		w.SetTimeout(tok, w.Start().Add(200*time.Millisecond), task)
		tasks = append(tasks, task)
	}

	// Most-recently-inserted fires first: insertion threads new heads onto
	// the front of each slot's list.
	for i := len(tasks) - 1; i >= 0; i-- {
		got, ok := w.Poll(w.Start().Add(200 * time.Millisecond))
		require.True(t, ok)
		assert.True(t, got.Is(tasks[i]))
	}
	_, ok := w.Poll(w.Start().Add(200 * time.Millisecond))
	assert.False(t, ok)
}

func TestNextTimeoutReflectsEarliestAcrossSlots(t *testing.T) {
	w := newTestWheel(t, 8, 100*time.Millisecond)
	_, found := w.NextTimeout()
	assert.False(t, found)

	tokA, _ := w.Reserve()
	w.SetTimeout(tokA, w.Start().Add(500*time.Millisecond), NewTaskNotify())
	tokB, _ := w.Reserve()
	w.SetTimeout(tokB, w.Start().Add(200*time.Millisecond), NewTaskNotify())

	next, found := w.NextTimeout()
	require.True(t, found)
	assert.Equal(t, w.Start().Add(200*time.Millisecond), next)
}

func TestSnapToTickMatchesSetTimeoutForNonImminentDeadlines(t *testing.T) {
	w := newTestWheel(t, 8, 100*time.Millisecond)
	epoch := w.Start()
	tick := w.TickDuration()

	at := epoch.Add(1250 * time.Millisecond)
	want := SnapToTick(epoch, tick, at)

	tok, _ := w.Reserve()
	got := w.SetTimeout(tok, at, NewTaskNotify())
	assert.Equal(t, want, got)
}

func TestSnapToTickFloorsToOrigin(t *testing.T) {
	epoch := time.Now()
	assert.Equal(t, epoch, SnapToTick(epoch, 100*time.Millisecond, epoch.Add(-time.Second)))
}

// TestPollOrderMatchesIndependentOracle cross-checks Poll's firing order
// against a min-heap of expected (deadline, task) pairs built
// independently of the wheel itself, guarding against the ring/slab
// bookkeeping silently reordering or dropping entries across many
// insertions spanning several wheel revolutions.
func TestPollOrderMatchesIndependentOracle(t *testing.T) {
	const numSlots = 16
	const tick = 10 * time.Millisecond
	w := newTestWheel(t, numSlots, tick)
	oracle := heap.NewMinHeap[TaskNotify]()
	scoreOf := make(map[uint64]float64)

	deadlinesMs := []int64{30, 30, 70, 10, 200, 200, 5, 160}
	for _, ms := range deadlinesMs {
		tok, ok := w.Reserve()
		require.True(t, ok)
		task := NewTaskNotify()
		at := w.Start().Add(time.Duration(ms) * time.Millisecond)
		snapped := w.SetTimeout(tok, at, task)
		scoreOf[task.id] = float64(snapped.UnixNano())
		oracle.PushItem(task, float64(snapped.UnixNano()))
	}

	// Advance the poll instant one tick at a time, as the worker does, so
	// each tick's due entries are drained before the cursor moves on.
	end := w.Start().Add(500 * time.Millisecond)
	var gotScores []float64
	for now := w.Start(); !now.After(end); now = now.Add(tick) {
		for {
			task, ok := w.Poll(now)
			if !ok {
				break
			}
			gotScores = append(gotScores, scoreOf[task.id])
		}
	}

	// The oracle gives earliest-deadline-first order; within equal
	// deadlines the wheel's own LIFO rule governs, so the two orders are
	// compared by deadline rather than by task identity.
	var wantScores []float64
	for {
		_, score, ok := oracle.PopItem()
		if !ok {
			break
		}
		wantScores = append(wantScores, score)
	}
	require.Len(t, gotScores, len(wantScores))
	assert.Equal(t, wantScores, gotScores)
}
