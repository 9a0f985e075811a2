package timingwheel

import (
	"context"
	"time"
)

// Interval yields at fixed spacing, scheduling each next Sleep only
// after the previous one fires. Ticks are not buffered: a consumer that
// falls behind gets the missed ticks back to back, one per Next call, each
// reporting its originally scheduled instant.
type Interval struct {
	timer    *Timer
	duration time.Duration
	next     time.Time
}

// NewInterval builds an Interval whose first tick fires d from now, and
// every subsequent tick fires d after the previous one.
func (t *Timer) NewInterval(d time.Duration) *Interval {
	return t.NewIntervalAt(time.Now().Add(d), d)
}

// NewIntervalAt builds an Interval whose first tick fires at the given
// instant, and every subsequent tick fires d after the previous one.
func (t *Timer) NewIntervalAt(first time.Time, d time.Duration) *Interval {
	return &Interval{timer: t, duration: d, next: first}
}

// Next blocks until the next tick fires, returning the instant it was
// scheduled for, or ctx's error if ctx is done first.
func (iv *Interval) Next(ctx context.Context) (time.Time, error) {
	sl, err := iv.timer.NewSleepAt(iv.next)
	if err != nil {
		return time.Time{}, err
	}
	defer sl.Stop()

	select {
	case <-sl.C():
		fired := iv.next
		iv.next = iv.next.Add(iv.duration)
		return fired, nil
	case <-ctx.Done():
		return time.Time{}, ctx.Err()
	}
}
