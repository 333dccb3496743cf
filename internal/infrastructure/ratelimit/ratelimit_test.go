package ratelimit

import (
	"testing"
	"time"

	"github.com/benbjohnson/clock"
	"github.com/stretchr/testify/assert"
)

func TestAllowWithinLimit(t *testing.T) {
	clk := clock.NewMock()
	limiter := NewFixedWindow(3, time.Minute, clk)

	for i := 0; i < 3; i++ {
		assert.True(t, limiter.Allow("p1"))
	}
	assert.False(t, limiter.Allow("p1"))
}

func TestPrincipalsAreIndependent(t *testing.T) {
	clk := clock.NewMock()
	limiter := NewFixedWindow(1, time.Minute, clk)

	assert.True(t, limiter.Allow("p1"))
	assert.False(t, limiter.Allow("p1"))
	assert.True(t, limiter.Allow("p2"))
}

func TestWindowResets(t *testing.T) {
	clk := clock.NewMock()
	limiter := NewFixedWindow(2, time.Minute, clk)

	assert.True(t, limiter.Allow("p1"))
	assert.True(t, limiter.Allow("p1"))
	assert.False(t, limiter.Allow("p1"))

	clk.Add(time.Minute)
	assert.True(t, limiter.Allow("p1"))
}

func TestRemaining(t *testing.T) {
	clk := clock.NewMock()
	limiter := NewFixedWindow(3, time.Minute, clk)

	assert.Equal(t, 3, limiter.Remaining("p1"))
	limiter.Allow("p1")
	assert.Equal(t, 2, limiter.Remaining("p1"))

	clk.Add(time.Minute)
	assert.Equal(t, 3, limiter.Remaining("p1"))
}

func TestSweepDropsElapsedWindows(t *testing.T) {
	clk := clock.NewMock()
	limiter := NewFixedWindow(3, time.Minute, clk)

	limiter.Allow("p1")
	limiter.Allow("p2")
	assert.Equal(t, 0, limiter.Sweep())

	clk.Add(2 * time.Minute)
	assert.Equal(t, 2, limiter.Sweep())
}
