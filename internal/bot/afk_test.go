package bot

import (
	"sync/atomic"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestAfkTimerPulses(t *testing.T) {
	timers := newAfkTimers()
	defer timers.stopAll()

	var pulses atomic.Int32
	timers.start("bot1", 10*time.Millisecond, func() { pulses.Add(1) })

	require.Eventually(t, func() bool {
		return pulses.Load() >= 3
	}, time.Second, 5*time.Millisecond)
	assert.True(t, timers.active("bot1"))
}

func TestAfkStartReplacesExistingTimer(t *testing.T) {
	timers := newAfkTimers()
	defer timers.stopAll()

	var first, second atomic.Int32
	timers.start("bot1", 5*time.Millisecond, func() { first.Add(1) })
	timers.start("bot1", 5*time.Millisecond, func() { second.Add(1) })

	require.Eventually(t, func() bool {
		return second.Load() >= 2
	}, time.Second, 5*time.Millisecond)

	// The first timer was cancelled on replacement; at most one tick could
	// have slipped in before the swap.
	got := first.Load()
	time.Sleep(30 * time.Millisecond)
	assert.Equal(t, got, first.Load(), "replaced timer must not keep pulsing")
	assert.Equal(t, 1, timers.count())
}

func TestAfkStopEndsPulses(t *testing.T) {
	timers := newAfkTimers()

	var pulses atomic.Int32
	timers.start("bot1", 5*time.Millisecond, func() { pulses.Add(1) })

	require.Eventually(t, func() bool {
		return pulses.Load() >= 1
	}, time.Second, time.Millisecond)

	require.True(t, timers.stop("bot1"))
	assert.False(t, timers.active("bot1"))

	seen := pulses.Load()
	time.Sleep(30 * time.Millisecond)
	assert.Equal(t, seen, pulses.Load())

	assert.False(t, timers.stop("bot1"), "second stop finds nothing")
}

func TestAfkTimersAreIndependent(t *testing.T) {
	timers := newAfkTimers()
	defer timers.stopAll()

	var a, b atomic.Int32
	timers.start("bot-a", 5*time.Millisecond, func() { a.Add(1) })
	timers.start("bot-b", 5*time.Millisecond, func() { b.Add(1) })
	require.Equal(t, 2, timers.count())

	require.True(t, timers.stop("bot-a"))

	require.Eventually(t, func() bool {
		return b.Load() >= 3
	}, time.Second, 5*time.Millisecond)

	seen := a.Load()
	time.Sleep(20 * time.Millisecond)
	assert.Equal(t, seen, a.Load())
	assert.Equal(t, 1, timers.count())
}

func TestAfkStopAll(t *testing.T) {
	timers := newAfkTimers()
	timers.start("a", time.Minute, func() {})
	timers.start("b", time.Minute, func() {})

	timers.stopAll()
	assert.Equal(t, 0, timers.count())
	assert.False(t, timers.active("a"))
	assert.False(t, timers.active("b"))
}
