package exchange

import (
	"sync/atomic"
	"time"

	"github.com/chris-alexander-pop/timingwheel/wheel"
)

// setSlot holds either a Reserved token awaiting a request, or a Pending
// request awaiting a worker to drain it. Only one of the two is
// meaningful at a time; which one is governed entirely by the slot's
// position in the push/pop protocol, not by a discriminant read under the
// sequence lock, so we just keep both fields and let the disciplined
// access pattern of PushExch/PopExch guarantee only the live one is ever
// read.
type setSlot struct {
	_        [64]byte
	sequence atomic.Uint64
	token    wheel.Token
	when     time.Time
	task     wheel.TaskNotify
	_        [64]byte
}

// SetQueue is the exchange-semantics ring: each PushExch trades a task's
// deadline request for a pre-reserved Token, and each PopExch trades a
// drained request back for a freshly reserved Token, so the two sides
// never need a separate round trip to hand tokens back and forth.
type SetQueue struct {
	_ [64]byte

	buffer []setSlot
	mask   uint64

	_          [64]byte
	enqueuePos atomic.Uint64
	_          [64]byte
	dequeuePos atomic.Uint64
	_          [64]byte
}

// NewSetQueue creates a SetQueue with capacity rounded up to a power of
// two no smaller than 2, with every slot initialized to Reserved(init()).
func NewSetQueue(capacity int, init func() wheel.Token) *SetQueue {
	capacity = roundCapacity(capacity)
	q := &SetQueue{
		buffer: make([]setSlot, capacity),
		mask:   uint64(capacity - 1),
	}
	for i := range q.buffer {
		q.buffer[i].sequence.Store(uint64(i))
		q.buffer[i].token = init()
	}
	return q
}

// PushExch acquires a slot currently holding a Reserved token, reads that
// token out, writes Pending(token, when, task) in its place, and returns
// the token the caller now owns. On a full queue it returns (Empty, false)
// and the task is not stored, so the caller can retry with it.
func (q *SetQueue) PushExch(when time.Time, task wheel.TaskNotify) (wheel.Token, bool) {
	pos := q.enqueuePos.Load()

	for {
		slot := &q.buffer[pos&q.mask]
		seq := slot.sequence.Load()
		diff := int64(seq) - int64(pos)

		switch {
		case diff == 0:
			if q.enqueuePos.CompareAndSwap(pos, pos+1) {
				token := slot.token
				slot.token = wheel.Empty
				slot.when = when
				slot.task = task
				slot.sequence.Store(pos + 1)
				return token, true
			}
			pos = q.enqueuePos.Load()
		case diff < 0:
			return wheel.Empty, false
		default:
			pos = q.enqueuePos.Load()
		}
	}
}

// PopExch acquires a slot currently holding a Pending request, reads the
// (token, when, task) triple out, writes Reserved(nextToken) in its
// place, and returns the triple. On an empty queue it returns nextToken
// back unchanged so the caller (the worker) can release it.
func (q *SetQueue) PopExch(nextToken wheel.Token) (wheel.Token, time.Time, wheel.TaskNotify, bool) {
	pos := q.dequeuePos.Load()

	for {
		slot := &q.buffer[pos&q.mask]
		seq := slot.sequence.Load()
		diff := int64(seq) - int64(pos+1)

		switch {
		case diff == 0:
			if q.dequeuePos.CompareAndSwap(pos, pos+1) {
				token, when, task := slot.token, slot.when, slot.task
				slot.token = nextToken
				slot.when = time.Time{}
				slot.task = wheel.TaskNotify{}
				slot.sequence.Store(pos + q.mask + 1)
				return token, when, task, true
			}
			pos = q.dequeuePos.Load()
		case diff < 0:
			return nextToken, time.Time{}, wheel.TaskNotify{}, false
		default:
			pos = q.dequeuePos.Load()
		}
	}
}
