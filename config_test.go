package timingwheel_test

import (
	"testing"
	"time"

	"github.com/stretchr/testify/require"

	timingwheel "github.com/chris-alexander-pop/timingwheel"
	"github.com/chris-alexander-pop/timingwheel/pkg/config"
)

// TestTimerEnvConfigLoadsFromEnvironment exercises config.Load end to end
// (cleanenv's env-var reader plus go-playground/validator), the same path a
// host service takes to tune this timer core's dimensions without the core
// itself reaching into os.Getenv.
func TestTimerEnvConfigLoadsFromEnvironment(t *testing.T) {
	t.Setenv("TIMER_TICK_DURATION_MS", "20")
	t.Setenv("TIMER_NUM_SLOTS", "128")
	t.Setenv("TIMER_MAX_CAPACITY", "4096")
	t.Setenv("TIMER_CHANNEL_CAPACITY", "32")

	var cfg timingwheel.TimerEnvConfig
	require.NoError(t, config.Load(&cfg))

	require.Equal(t, int64(20), cfg.TickDurationMs)
	require.Equal(t, 128, cfg.NumSlots)
	require.Equal(t, 32, cfg.ChannelCapacity)

	tm, err := cfg.Builder().Build()
	require.NoError(t, err)
	defer tm.Close()

	require.Equal(t, 20*time.Millisecond, tm.Tolerance())
}

// TestTimerEnvConfigRejectsInvalidValues confirms config.Load's validator
// pass rejects a non-positive value the struct tags mark invalid, rather
// than silently handing Builder a broken configuration.
func TestTimerEnvConfigRejectsInvalidValues(t *testing.T) {
	t.Setenv("TIMER_TICK_DURATION_MS", "0")

	var cfg timingwheel.TimerEnvConfig
	require.Error(t, config.Load(&cfg))
}
