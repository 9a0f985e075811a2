// Package testutil provides an independent reference oracle for stress
// tests against the lock-free exchange queues. It wraps the condvar-based
// datastructures/queue/ring.Buffer - a deliberately simple, obviously
// correct blocking queue - so a stress test can cross-check the lock-free
// SetQueue/ModQueue against a second implementation with a different
// concurrency strategy, rather than only against itself.
package testutil

import "github.com/chris-alexander-pop/timingwheel/pkg/datastructures/queue/ring"

// Oracle records each set-queue request a producer successfully pushed,
// so a concurrent stress test can compare the lock-free queue's drained
// count against this independently-synchronized reference.
type Oracle struct {
	buf *ring.Buffer[uint64]
}

// NewOracle builds an Oracle with room for capacity in-flight sequence
// numbers.
func NewOracle(capacity int) *Oracle {
	return &Oracle{buf: ring.New[uint64](capacity)}
}

// Observe records that sequence number seq was pushed.
func (o *Oracle) Observe(seq uint64) {
	o.buf.Enqueue(seq)
}

// TryObserve is the non-blocking form, used when the stress test wants to
// detect the oracle itself being saturated rather than block the producer.
func (o *Oracle) TryObserve(seq uint64) bool {
	return o.buf.TryEnqueue(seq) == nil
}

// Drain removes and returns the oldest sequence number observed, blocking
// until one is available.
func (o *Oracle) Drain() uint64 {
	return o.buf.Dequeue()
}

// Len reports how many observations are currently buffered.
func (o *Oracle) Len() int {
	return o.buf.Len()
}
