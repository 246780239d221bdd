package main

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestCountdownTicksAndExpires(t *testing.T) {
	r := setupRoom(t, testConfig(t))
	c := testClient("p1")
	r.handleRegister(c)
	drain(c)

	fired := 0
	r.startTimer(3, func() { fired++ })
	assert.Equal(t, 3, r.state.Timer)

	r.tickTimer()
	r.tickTimer()
	assert.Equal(t, 0, fired)
	assert.Equal(t, 1, r.state.Timer)

	r.tickTimer()
	assert.Equal(t, 1, fired)
	assert.False(t, r.timer.active)

	// A disarmed timer ignores further ticks.
	r.tickTimer()
	assert.Equal(t, 1, fired)

	ticks := 0
	for _, msg := range drain(c) {
		if _, ok := msg.(TimerMessage); ok {
			ticks++
		}
	}
	assert.Equal(t, 3, ticks)
}

func TestCountdownCancel(t *testing.T) {
	r := setupRoom(t, testConfig(t))

	fired := false
	r.startTimer(1, func() { fired = true })
	r.cancelTimer()

	r.tickTimer()
	assert.False(t, fired)
	assert.Equal(t, 0, r.state.Timer)
}

func TestCountdownExpiryCanArmNextTimer(t *testing.T) {
	r := setupRoom(t, testConfig(t))

	second := false
	r.startTimer(1, func() {
		r.startTimer(1, func() { second = true })
	})

	r.tickTimer()
	require.True(t, r.timer.active)

	r.tickTimer()
	assert.True(t, second)
}

func TestStartTimerReplacesRunningTimer(t *testing.T) {
	r := setupRoom(t, testConfig(t))

	stale := false
	r.startTimer(5, func() { stale = true })
	r.startTimer(1, func() {})

	r.tickTimer()
	assert.False(t, stale)
	assert.False(t, r.timer.active)
}
