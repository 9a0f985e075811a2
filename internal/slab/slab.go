// Package slab implements a growable slot allocator that hands out stable
// Token handles instead of pointers, so that entries can be moved or
// reallocated internally without invalidating outstanding references.
package slab

import (
	"github.com/chris-alexander-pop/timingwheel/pkg/datastructures/stack"
)

// Token is an opaque handle into a Store. Token 0 is the first slot; use
// Empty to represent "no token".
type Token uint32

// Empty is the sentinel Token value meaning "absent", mirroring the
// wheel's doubly-linked lists where a slot's head/next/prev can point at
// nothing.
const Empty Token = ^Token(0)

// Store is a generic slab allocator: entries are stored in a growable
// slice, and freed slots are tracked on a free list so Insert can reuse
// them in O(1) instead of compacting the slice.
type Store[T any] struct {
	entries []T
	free    *stack.Stack[Token]
	len     int
	max     int
}

// New creates a Store with the given initial capacity and a hard upper
// bound (maxCapacity) on how large it will ever grow. A maxCapacity of 0
// means unbounded.
func New[T any](initialCapacity, maxCapacity int) *Store[T] {
	if initialCapacity < 0 {
		initialCapacity = 0
	}
	return &Store[T]{
		entries: make([]T, 0, initialCapacity),
		free:    stack.New[Token](),
		max:     maxCapacity,
	}
}

// Len returns the number of occupied slots.
func (s *Store[T]) Len() int { return s.len }

// Cap returns the current backing capacity (occupied + free).
func (s *Store[T]) Cap() int { return cap(s.entries) }

// Available reports how many more entries can be inserted before the
// store would need to grow past its configured maximum capacity.
func (s *Store[T]) Available() int {
	if s.max <= 0 {
		return int(^uint(0) >> 1) // effectively unbounded
	}
	return s.max - s.len
}

// Reserve ensures the store can grow to hold at least n more entries
// without exceeding maxCapacity, doubling its backing storage as needed.
// It returns the number of additional entries that can actually be
// accommodated, which may be less than n if maxCapacity is reached.
func (s *Store[T]) Reserve(n int) int {
	avail := s.Available()
	if n > avail {
		n = avail
	}
	if n <= 0 {
		return avail
	}

	need := s.len + n
	if cap(s.entries) >= need {
		return avail
	}

	newCap := cap(s.entries)
	if newCap == 0 {
		newCap = 1
	}
	for newCap < need {
		newCap *= 2
	}
	if s.max > 0 && newCap > s.max {
		newCap = s.max
	}

	grown := make([]T, len(s.entries), newCap)
	copy(grown, s.entries)
	s.entries = grown
	return avail
}

// Insert stores value in a free slot (reused from a prior Remove, or a
// freshly grown one) and returns its Token.
func (s *Store[T]) Insert(value T) (Token, bool) {
	if tok, ok := s.free.Pop(); ok {
		s.entries[tok] = value
		s.len++
		return tok, true
	}

	if len(s.entries) == cap(s.entries) {
		if s.Reserve(1) <= 0 {
			return Empty, false
		}
	}

	s.entries = append(s.entries, value)
	s.len++
	return Token(len(s.entries) - 1), true
}

// Get returns a pointer to the entry behind tok for in-place mutation.
// The caller must only call this with tokens known to be occupied.
func (s *Store[T]) Get(tok Token) *T {
	return &s.entries[tok]
}

// Remove frees the slot behind tok and returns its value.
func (s *Store[T]) Remove(tok Token) T {
	value := s.entries[tok]
	var zero T
	s.entries[tok] = zero
	s.free.Push(tok)
	s.len--
	return value
}
