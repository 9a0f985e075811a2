package timingwheel

import "time"

// TimerEnvConfig is an example environment-loadable configuration a host
// service can populate with config.Load and feed into a Builder, so the
// timer core's dimensions can be tuned per-environment without the core
// itself reaching into os.Getenv.
type TimerEnvConfig struct {
	TickDurationMs  int64 `env:"TIMER_TICK_DURATION_MS" env-default:"100" validate:"gt=0"`
	NumSlots        int   `env:"TIMER_NUM_SLOTS" env-default:"4096" validate:"gt=0"`
	InitialCapacity int   `env:"TIMER_INITIAL_CAPACITY" env-default:"0"`
	MaxCapacity     int   `env:"TIMER_MAX_CAPACITY" env-default:"4194304" validate:"gt=0"`
	MaxTimeoutMs    int64 `env:"TIMER_MAX_TIMEOUT_MS" env-default:"0"`
	ChannelCapacity int   `env:"TIMER_CHANNEL_CAPACITY" env-default:"128" validate:"gt=0"`
}

// Builder converts an env-loaded TimerEnvConfig into a Builder seeded
// with its values. A zero InitialCapacity/MaxTimeoutMs leaves those
// Builder fields at their derived defaults (max(256, channel_capacity)
// and num_slots*tick_duration respectively) rather than forcing zero.
func (c TimerEnvConfig) Builder() *Builder {
	b := NewBuilder().
		TickDuration(time.Duration(c.TickDurationMs) * time.Millisecond).
		NumSlots(c.NumSlots).
		MaxCapacity(c.MaxCapacity).
		ChannelCapacity(c.ChannelCapacity)

	if c.InitialCapacity > 0 {
		b = b.InitialCapacity(c.InitialCapacity)
	}
	if c.MaxTimeoutMs > 0 {
		b = b.MaxTimeout(time.Duration(c.MaxTimeoutMs) * time.Millisecond)
	}
	return b
}
