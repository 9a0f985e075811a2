// Package disruptor implements a single-producer-friendly ring buffer whose
// slots are mutated in place through caller-supplied closures, in the style
// of the LMAX Disruptor: Publish hands the caller a pointer directly into
// the backing array to fill in place, and Consume hands it the slot's value.
package disruptor

import "sync"

const defaultSize = 1024

// RingBuffer is a fixed-size circular buffer of T, guarded by a single
// mutex and a pair of condition variables. It trades the Disruptor's
// classic lock-free sequencing for straightforward correctness; callers
// that need true lock-free MPMC semantics should use the exchange package
// instead.
type RingBuffer[T any] struct {
	buffer []T
	head   int
	tail   int
	count  int

	mu       sync.Mutex
	notEmpty *sync.Cond
	notFull  *sync.Cond
}

// New creates a RingBuffer with the given size. A non-positive size, or
// one that is not a power of two, falls back to 1024.
func New[T any](size int) *RingBuffer[T] {
	if size <= 0 || nextPowerOfTwo(size) != size {
		size = defaultSize
	}

	rb := &RingBuffer[T]{
		buffer: make([]T, size),
	}
	rb.notEmpty = sync.NewCond(&rb.mu)
	rb.notFull = sync.NewCond(&rb.mu)
	return rb
}

func nextPowerOfTwo(n int) int {
	p := 1
	for p < n {
		p <<= 1
	}
	return p
}

// Publish reserves the next slot, blocking until space is available, and
// lets fn mutate it in place before making it visible to Consume.
func (rb *RingBuffer[T]) Publish(fn func(slot *T)) {
	rb.mu.Lock()
	defer rb.mu.Unlock()

	for rb.count == len(rb.buffer) {
		rb.notFull.Wait()
	}

	fn(&rb.buffer[rb.tail])
	rb.tail = (rb.tail + 1) % len(rb.buffer)
	rb.count++
	rb.notEmpty.Signal()
}

// Consume blocks until a published slot is available, then hands its
// current value to fn before freeing the slot for reuse.
func (rb *RingBuffer[T]) Consume(fn func(val T)) {
	rb.mu.Lock()
	defer rb.mu.Unlock()

	for rb.count == 0 {
		rb.notEmpty.Wait()
	}

	fn(rb.buffer[rb.head])
	rb.head = (rb.head + 1) % len(rb.buffer)
	rb.count--
	rb.notFull.Signal()
}

// Len returns the number of published, unconsumed slots.
func (rb *RingBuffer[T]) Len() int {
	rb.mu.Lock()
	defer rb.mu.Unlock()
	return rb.count
}

// Cap returns the buffer's fixed capacity.
func (rb *RingBuffer[T]) Cap() int {
	return len(rb.buffer)
}
