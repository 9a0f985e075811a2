package timingwheel

import (
	"math/bits"
	"time"

	appErrors "github.com/chris-alexander-pop/timingwheel/pkg/errors"
	"github.com/chris-alexander-pop/timingwheel/wheel"
)

const (
	defaultTickDuration    = 100 * time.Millisecond
	defaultNumSlots        = 4096
	defaultMinInitialCap   = 256
	defaultMaxCapacity     = 4_194_304
	defaultChannelCapacity = 128
)

// Builder assembles a Timer's configuration with functional-options style
// setters, validating everything only once, at Build.
type Builder struct {
	tickDuration    time.Duration
	numSlots        int
	initialCapacity int
	maxCapacity     int
	maxTimeout      time.Duration
	channelCapacity int

	initialCapacitySet bool
	maxTimeoutSet       bool
}

// NewBuilder returns a Builder seeded with this package's defaults: a
// 100ms tick, a 4096-slot ring, a slab capped at ~4M entries, and a
// 128-capacity exchange channel. MaxTimeout and InitialCapacity default
// lazily in Build, since they derive from other fields unless overridden.
func NewBuilder() *Builder {
	return &Builder{
		tickDuration:    defaultTickDuration,
		numSlots:        defaultNumSlots,
		maxCapacity:     defaultMaxCapacity,
		channelCapacity: defaultChannelCapacity,
	}
}

// TickDuration sets the ring's resolution and the producer-visible
// tolerance window.
func (b *Builder) TickDuration(d time.Duration) *Builder {
	b.tickDuration = d
	return b
}

// NumSlots sets the ring size. Must be a power of two.
func (b *Builder) NumSlots(n int) *Builder {
	b.numSlots = n
	return b
}

// InitialCapacity sets the slab's starting size. If left unset it
// defaults to max(256, ChannelCapacity).
func (b *Builder) InitialCapacity(n int) *Builder {
	b.initialCapacity = n
	b.initialCapacitySet = true
	return b
}

// MaxCapacity sets the hard ceiling on slab growth.
func (b *Builder) MaxCapacity(n int) *Builder {
	b.maxCapacity = n
	return b
}

// MaxTimeout sets the largest delay accepted before a request is
// rejected as TooLong. If left unset it defaults to NumSlots * TickDuration.
func (b *Builder) MaxTimeout(d time.Duration) *Builder {
	b.maxTimeout = d
	b.maxTimeoutSet = true
	return b
}

// ChannelCapacity sets the capacity of both exchange queues, rounded up
// to a power of two no smaller than 2 by the queues themselves.
func (b *Builder) ChannelCapacity(n int) *Builder {
	b.channelCapacity = n
	return b
}

// Build validates the accumulated configuration and constructs a Timer,
// spawning its dedicated worker goroutine.
func (b *Builder) Build() (*Timer, error) {
	if b.tickDuration <= 0 {
		return nil, appErrors.InvalidArgument("tick_duration must be positive", nil)
	}
	if b.numSlots <= 0 || bits.OnesCount(uint(b.numSlots)) != 1 {
		return nil, appErrors.InvalidArgument("num_slots must be a power of two", nil)
	}
	if b.channelCapacity <= 0 {
		return nil, appErrors.InvalidArgument("channel_capacity must be positive", nil)
	}

	channelCapacity := b.channelCapacity

	initialCapacity := b.initialCapacity
	if !b.initialCapacitySet {
		initialCapacity = defaultMinInitialCap
		if channelCapacity > initialCapacity {
			initialCapacity = channelCapacity
		}
	}

	maxTimeout := b.maxTimeout
	if !b.maxTimeoutSet {
		maxTimeout = time.Duration(b.numSlots) * b.tickDuration
	}

	w, err := wheel.New(wheel.Config{
		NumSlots:        b.numSlots,
		TickDuration:    b.tickDuration,
		InitialCapacity: initialCapacity,
		MaxCapacity:     b.maxCapacity,
	})
	if err != nil {
		return nil, err
	}

	return newTimer(w, b.tickDuration, maxTimeout, channelCapacity)
}
