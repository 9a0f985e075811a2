// Package wheel implements the hashed timing wheel that is the scheduling
// heart of the timer core: a ring of slots, each holding an intrusive
// doubly-linked list of pending timeouts threaded through a slab, plus a
// tick cursor that advances wall-clock time across the ring.
//
// Every exported method here is meant to be called from exactly one
// goroutine (the worker, see package worker) - the Wheel holds no internal
// locks, by design; see the design note on single-writer confinement.
package wheel

import (
	"math/bits"
	"time"

	"github.com/chris-alexander-pop/timingwheel/internal/slab"
	appErrors "github.com/chris-alexander-pop/timingwheel/pkg/errors"
)

// Token identifies a slab cell holding a Reserved placeholder or a live
// Timeout entry. Token 0 is an ordinary slab cell; use Empty for "no entry".
type Token = slab.Token

// Empty is the sentinel Token meaning "no entry".
const Empty Token = slab.Empty

type entryKind uint8

const (
	kindReserved entryKind = iota
	kindTimeout
)

type entry struct {
	kind     entryKind
	task     TaskNotify
	when     time.Time // tick-snapped fire instant; this is what callers must echo back to Cancel/MoveTimeout
	wheelIdx uint64
	prev     Token
	next     Token
}

type slotT struct {
	head           Token
	nextTimeout    time.Time
	hasNextTimeout bool
}

// Config controls a Wheel's dimensions. NumSlots must be a power of two.
type Config struct {
	NumSlots        int
	TickDuration    time.Duration
	InitialCapacity int
	MaxCapacity     int
}

// Wheel is the ring of slots plus its backing slab store. See the package
// doc: all methods are single-writer, confined to the worker goroutine.
type Wheel struct {
	slots []slotT
	store *slab.Store[entry]

	start        time.Time
	curWheelTick uint64
	curSlabIdx   Token

	tickMs int64
	mask   uint64
}

// New constructs a Wheel with its origin instant set to now.
func New(cfg Config) (*Wheel, error) {
	if cfg.NumSlots <= 0 || bits.OnesCount(uint(cfg.NumSlots)) != 1 {
		return nil, appErrors.InvalidArgument("num_slots must be a power of two", nil)
	}
	if cfg.TickDuration <= 0 {
		return nil, appErrors.InvalidArgument("tick_duration must be positive", nil)
	}

	slots := make([]slotT, cfg.NumSlots)
	for i := range slots {
		slots[i].head = Empty
	}

	tickMs := cfg.TickDuration.Milliseconds()
	if tickMs <= 0 {
		tickMs = 1
	}

	w := &Wheel{
		slots:      slots,
		store:      slab.New[entry](cfg.InitialCapacity, cfg.MaxCapacity),
		start:      time.Now(),
		curSlabIdx: Empty,
		tickMs:     tickMs,
		mask:       uint64(cfg.NumSlots - 1),
	}
	return w, nil
}

// Start returns the instant used as the origin for all of this wheel's
// tick arithmetic. It is fixed at construction and safe to read from any
// goroutine.
func (w *Wheel) Start() time.Time { return w.start }

// TickDuration returns the wheel's tick resolution. Fixed at construction
// and safe to read from any goroutine.
func (w *Wheel) TickDuration() time.Duration {
	return time.Duration(w.tickMs) * time.Millisecond
}

// Available reports how many more entries the wheel's slab can hold
// before it reaches its configured maximum capacity.
func (w *Wheel) Available() int {
	return w.store.Available()
}

// Reserve allocates a vacant slab cell as a placeholder, for use by the
// exchange queue's initializer and drain loop.
func (w *Wheel) Reserve() (Token, bool) {
	return w.store.Insert(entry{kind: kindReserved})
}

// Release returns a previously reserved token to the free list without
// ever having become a live timeout.
func (w *Wheel) Release(token Token) {
	w.store.Remove(token)
}

// timeToTicks converts an instant to a tick count relative to the wheel's
// origin, truncating toward zero. time.Time.Sub already saturates the
// resulting duration at the representable extremes, which gives us the
// saturating-on-overflow behavior the tick arithmetic requires for free.
func (w *Wheel) timeToTicks(at time.Time) uint64 {
	d := at.Sub(w.start)
	if d <= 0 {
		return 0
	}
	return uint64(d.Milliseconds()) / uint64(w.tickMs)
}

func (w *Wheel) ticksToWheelIdx(tick uint64) uint64 {
	return tick & w.mask
}

// SnapToTick computes, for a given origin and tick duration, the same
// tick-boundary snap SetTimeout applies internally - without the
// defer-to-next-tick adjustment, which depends on the wheel's current
// tick and so cannot be replicated outside the worker goroutine. Callers
// that schedule a deadline comfortably ahead of now (anything that is not
// itself already due or imminent at the moment the worker drains its
// request) get back the exact value the wheel will store, and so can use
// it for a later exact-match Cancel or MoveTimeout.
func SnapToTick(epoch time.Time, tick time.Duration, at time.Time) time.Time {
	tickMs := tick.Milliseconds()
	if tickMs <= 0 {
		tickMs = 1
	}
	d := at.Sub(epoch)
	if d <= 0 {
		return epoch
	}
	ticks := int64(d.Milliseconds()) / tickMs
	return epoch.Add(time.Duration(ticks) * time.Duration(tickMs) * time.Millisecond)
}

// SetTimeout fills a previously reserved token with a live timeout. The
// requested instant is deferred to the next tick if it would otherwise
// land on or before the tick the worker is currently processing (the
// defer-to-next-tick rule), then snapped to its tick's exact boundary.
// The snapped instant is returned; callers must pass it back, unchanged,
// to MoveTimeout or Cancel for the match to succeed.
func (w *Wheel) SetTimeout(token Token, at time.Time, task TaskNotify) time.Time {
	tick := w.timeToTicks(at)
	if tick <= w.curWheelTick {
		tick = w.curWheelTick + 1
	}
	idx := w.ticksToWheelIdx(tick)
	snapped := w.start.Add(time.Duration(tick) * time.Duration(w.tickMs) * time.Millisecond)

	slot := &w.slots[idx]
	prevHead := slot.head
	slot.head = token

	*w.store.Get(token) = entry{
		kind:     kindTimeout,
		task:     task,
		when:     snapped,
		wheelIdx: idx,
		prev:     Empty,
		next:     prevHead,
	}
	if prevHead != Empty {
		w.store.Get(prevHead).prev = token
	}

	if !slot.hasNextTimeout || !snapped.After(slot.nextTimeout) {
		slot.nextTimeout = snapped
		slot.hasNextTimeout = true
	}

	return snapped
}

// MoveTimeout reassigns the task handle of the live timeout at token, but
// only if its stored deadline matches when exactly; otherwise it is a
// silent no-op (the token is stale, already fired, or was repurposed).
func (w *Wheel) MoveTimeout(token Token, when time.Time, task TaskNotify) {
	e := w.store.Get(token)
	if e.kind != kindTimeout || !e.when.Equal(when) {
		return
	}
	e.task = task
}

// Cancel unlinks and frees the live timeout at token, but only if its
// stored deadline matches when exactly; a mismatch is a silent no-op.
func (w *Wheel) Cancel(token Token, when time.Time) {
	e := w.store.Get(token)
	if e.kind != kindTimeout || !e.when.Equal(when) {
		return
	}
	w.removeEntry(token, e)
}

// removeEntry unlinks token from its slot's doubly-linked list, fixes up
// the in-progress poll cursor if it pointed at token, and frees the cell.
func (w *Wheel) removeEntry(token Token, e *entry) {
	if e.prev == Empty {
		w.slots[e.wheelIdx].head = e.next
	} else {
		w.store.Get(e.prev).next = e.next
	}
	if e.next != Empty {
		w.store.Get(e.next).prev = e.prev
	}
	if w.curSlabIdx == token {
		w.curSlabIdx = e.next
	}
	w.store.Remove(token)
}

// Poll advances the wheel's tick cursor through every tick up to and
// including time_to_ticks(at), returning the next expired task's notify
// handle. The caller (the worker) must call Poll in a loop until it
// returns false, to drain everything due at the given instant.
func (w *Wheel) Poll(at time.Time) (TaskNotify, bool) {
	target := w.timeToTicks(at)

	for w.curWheelTick <= target {
		idx := w.ticksToWheelIdx(w.curWheelTick)
		head := w.curSlabIdx

		if head == Empty {
			if head == w.slots[idx].head {
				w.slots[idx].hasNextTimeout = false
			}
			w.curWheelTick++
			nextIdx := w.ticksToWheelIdx(w.curWheelTick)
			w.curSlabIdx = w.slots[nextIdx].head
			continue
		}

		if head == w.slots[idx].head {
			w.slots[idx].hasNextTimeout = false
		}

		e := w.store.Get(head)
		w.curSlabIdx = e.next
		headWhen := e.when

		if w.timeToTicks(headWhen) <= target {
			task := e.task
			w.removeEntry(head, e)
			return task, true
		}

		slot := &w.slots[idx]
		if !slot.hasNextTimeout || !headWhen.After(slot.nextTimeout) {
			slot.nextTimeout = headWhen
			slot.hasNextTimeout = true
		}
	}

	return TaskNotify{}, false
}

// NextTimeout returns the minimum cached next-fire instant across all
// slots, or false if the wheel currently holds no live timeouts.
func (w *Wheel) NextTimeout() (time.Time, bool) {
	var min time.Time
	found := false
	for i := range w.slots {
		if !w.slots[i].hasNextTimeout {
			continue
		}
		if !found || w.slots[i].nextTimeout.Before(min) {
			min = w.slots[i].nextTimeout
			found = true
		}
	}
	return min, found
}
