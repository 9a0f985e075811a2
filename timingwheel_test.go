package timingwheel_test

import (
	"context"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	timingwheel "github.com/chris-alexander-pop/timingwheel"
	appErrors "github.com/chris-alexander-pop/timingwheel/pkg/errors"
)

func newTestTimer(t *testing.T, tick time.Duration, numSlots int) *timingwheel.Timer {
	t.Helper()
	tm, err := timingwheel.NewBuilder().
		TickDuration(tick).
		NumSlots(numSlots).
		ChannelCapacity(32).
		Build()
	require.NoError(t, err)
	t.Cleanup(func() { _ = tm.Close() })
	return tm
}

func TestImmediateSleep(t *testing.T) {
	tm := newTestTimer(t, 10*time.Millisecond, 64)

	sl, err := tm.NewSleep(0)
	require.NoError(t, err)

	select {
	case <-sl.C():
	case <-time.After(200 * time.Millisecond):
		t.Fatal("immediate sleep never fired")
	}
}

func TestDelayedSleepFiresWithinTolerance(t *testing.T) {
	tm := newTestTimer(t, 10*time.Millisecond, 64)

	start := time.Now()
	sl, err := tm.NewSleep(200 * time.Millisecond)
	require.NoError(t, err)

	select {
	case <-sl.C():
		elapsed := time.Since(start)
		assert.GreaterOrEqual(t, elapsed, 200*time.Millisecond-tm.Tolerance())
		assert.Less(t, elapsed, 200*time.Millisecond+100*time.Millisecond)
	case <-time.After(time.Second):
		t.Fatal("delayed sleep never fired")
	}
}

func TestOutOfOrderDeadlinesFireInDeadlineOrder(t *testing.T) {
	tm := newTestTimer(t, 10*time.Millisecond, 64)

	slLong, err := tm.NewSleep(500 * time.Millisecond)
	require.NoError(t, err)
	slShort, err := tm.NewSleep(200 * time.Millisecond)
	require.NoError(t, err)

	select {
	case <-slShort.C():
	case <-slLong.C():
		t.Fatal("longer deadline fired before shorter one")
	case <-time.After(time.Second):
		t.Fatal("neither deadline fired")
	}

	select {
	case <-slLong.C():
	case <-time.After(time.Second):
		t.Fatal("longer deadline never fired")
	}
}

func TestWheelWrapCollisionAcrossRevolutions(t *testing.T) {
	// 8 slots * 100ms tick = 800ms period, so the 1000ms deadline lands one
	// full revolution after the 200ms one, in the same slot, and must still
	// fire on its own revolution.
	tm, err := timingwheel.NewBuilder().
		TickDuration(100 * time.Millisecond).
		NumSlots(8).
		MaxTimeout(10 * time.Second).
		ChannelCapacity(32).
		Build()
	require.NoError(t, err)
	defer tm.Close()

	slShort, err := tm.NewSleep(200 * time.Millisecond)
	require.NoError(t, err)
	slLong, err := tm.NewSleep(1000 * time.Millisecond)
	require.NoError(t, err)

	select {
	case <-slShort.C():
	case <-time.After(time.Second):
		t.Fatal("short deadline never fired")
	}
	select {
	case <-slLong.C():
	case <-time.After(2 * time.Second):
		t.Fatal("long deadline never fired")
	}
}

func TestTooLongDeadlineRejected(t *testing.T) {
	tm, err := timingwheel.NewBuilder().
		TickDuration(10 * time.Millisecond).
		NumSlots(64).
		MaxTimeout(500 * time.Millisecond).
		ChannelCapacity(16).
		Build()
	require.NoError(t, err)
	defer tm.Close()

	_, err = tm.NewSleep(600 * time.Millisecond)
	require.Error(t, err)
	var appErr *appErrors.AppError
	require.True(t, appErrors.As(err, &appErr))
	assert.Equal(t, appErrors.CodeTooLong, appErr.Code)

	sl, err := tm.NewSleep(500 * time.Millisecond)
	require.NoError(t, err)
	sl.Stop()
}

func TestSleepStopPreventsFiring(t *testing.T) {
	tm := newTestTimer(t, 10*time.Millisecond, 64)

	sl, err := tm.NewSleep(150 * time.Millisecond)
	require.NoError(t, err)
	sl.Stop()

	select {
	case <-sl.C():
		t.Fatal("stopped sleep fired")
	case <-time.After(300 * time.Millisecond):
	}
}

func TestTimeoutRunReturnsOpResultBeforeDeadline(t *testing.T) {
	tm := newTestTimer(t, 10*time.Millisecond, 64)

	to := timingwheel.NewTimeout[string](tm, 300*time.Millisecond, func(ctx context.Context) (string, error) {
		time.Sleep(100 * time.Millisecond)
		return "done", nil
	})

	v, err := to.Run(context.Background())
	require.NoError(t, err)
	assert.Equal(t, "done", v)
}

func TestTimeoutRunFiresTimedOutWhenOpNeverResolves(t *testing.T) {
	tm := newTestTimer(t, 10*time.Millisecond, 64)

	block := make(chan struct{})
	t.Cleanup(func() { close(block) })

	to := timingwheel.NewTimeout[int](tm, 150*time.Millisecond, func(ctx context.Context) (int, error) {
		select {
		case <-block:
		case <-ctx.Done():
		}
		return 0, ctx.Err()
	})

	_, err := to.Run(context.Background())
	require.Error(t, err)

	var timeoutErr *timingwheel.TimeoutError[int]
	require.ErrorAs(t, err, &timeoutErr)
	assert.True(t, timeoutErr.TimedOut)
}

func TestTimeoutStreamResetsDeadlinePerItem(t *testing.T) {
	tm := newTestTimer(t, 10*time.Millisecond, 64)

	ch := make(chan int)
	ts := timingwheel.NewTimeoutStream[int](tm, 300*time.Millisecond, ch)

	go func() {
		for i := 0; i < 3; i++ {
			time.Sleep(100 * time.Millisecond)
			ch <- i
		}
		// then go silent past the stream's per-item deadline
	}()

	ctx := context.Background()
	for i := 0; i < 3; i++ {
		v, err := ts.Next(ctx)
		require.NoError(t, err)
		assert.Equal(t, i, v)
	}

	_, err := ts.Next(ctx)
	require.Error(t, err)
	var timeoutErr *timingwheel.TimeoutError[int]
	require.ErrorAs(t, err, &timeoutErr)
	assert.True(t, timeoutErr.TimedOut)
}

func TestTimeoutStreamReturnsErrStreamClosed(t *testing.T) {
	tm := newTestTimer(t, 10*time.Millisecond, 64)

	ch := make(chan int)
	ts := timingwheel.NewTimeoutStream[int](tm, 300*time.Millisecond, ch)
	close(ch)

	_, err := ts.Next(context.Background())
	assert.ErrorIs(t, err, timingwheel.ErrStreamClosed)
}

func TestIntervalTicksAtFixedSpacing(t *testing.T) {
	tm := newTestTimer(t, 10*time.Millisecond, 64)
	iv := tm.NewInterval(50 * time.Millisecond)

	ctx := context.Background()
	var prev time.Time
	for i := 0; i < 3; i++ {
		got, err := iv.Next(ctx)
		require.NoError(t, err)
		if i > 0 {
			assert.InDelta(t, 50*time.Millisecond, got.Sub(prev), float64(30*time.Millisecond))
		}
		prev = got
	}
}

func TestAfterFuncRunsCallback(t *testing.T) {
	tm := newTestTimer(t, 10*time.Millisecond, 64)

	done := make(chan struct{})
	_, err := tm.AfterFunc(50*time.Millisecond, func() { close(done) })
	require.NoError(t, err)

	select {
	case <-done:
	case <-time.After(time.Second):
		t.Fatal("AfterFunc callback never ran")
	}
}

func TestAfterFuncStopPreventsCallback(t *testing.T) {
	tm := newTestTimer(t, 10*time.Millisecond, 64)

	called := make(chan struct{})
	sl, err := tm.AfterFunc(150*time.Millisecond, func() { close(called) })
	require.NoError(t, err)
	sl.Stop()

	select {
	case <-called:
		t.Fatal("stopped AfterFunc still ran")
	case <-time.After(300 * time.Millisecond):
	}
}

func TestCloseIsIdempotent(t *testing.T) {
	tm, err := timingwheel.NewBuilder().ChannelCapacity(8).Build()
	require.NoError(t, err)

	require.NoError(t, tm.Close())
	assert.NoError(t, tm.Close())
}
