package server

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
)

func TestRateLimiterAllowsWithinLimit(t *testing.T) {
	rl := NewRateLimiter(3)
	defer rl.Stop()

	for i := 0; i < 3; i++ {
		allowed, _ := rl.Allow("10.0.0.1")
		assert.True(t, allowed)
	}

	allowed, retryAfter := rl.Allow("10.0.0.1")
	assert.False(t, allowed)
	assert.Greater(t, retryAfter, time.Duration(0))
	assert.LessOrEqual(t, retryAfter, time.Minute)

	allowed, _ = rl.Allow("10.0.0.2")
	assert.True(t, allowed, "other clients are unaffected")
}

func TestRateLimiterSlidingWindow(t *testing.T) {
	rl := NewRateLimiter(2)
	defer rl.Stop()

	now := time.Date(2024, 1, 1, 12, 0, 0, 0, time.UTC)
	rl.now = func() time.Time { return now }

	allowed, _ := rl.Allow("ip")
	assert.True(t, allowed)

	now = now.Add(30 * time.Second)
	allowed, _ = rl.Allow("ip")
	assert.True(t, allowed)

	allowed, retryAfter := rl.Allow("ip")
	assert.False(t, allowed)
	assert.Equal(t, 30*time.Second, retryAfter)

	now = now.Add(30 * time.Second)
	allowed, _ = rl.Allow("ip")
	assert.True(t, allowed, "oldest request left the window")
}

func TestRateLimiterDisabled(t *testing.T) {
	rl := NewRateLimiter(-1)
	defer rl.Stop()

	for i := 0; i < 1000; i++ {
		allowed, _ := rl.Allow("ip")
		assert.True(t, allowed)
	}
	assert.Equal(t, 0, rl.tracked())
}

func TestRateLimiterCleanup(t *testing.T) {
	rl := NewRateLimiter(5)
	defer rl.Stop()

	now := time.Now()
	rl.now = func() time.Time { return now }
	rl.Allow("a")
	rl.Allow("b")
	assert.Equal(t, 2, rl.tracked())

	now = now.Add(2 * time.Minute)
	rl.cleanup()
	assert.Equal(t, 0, rl.tracked())
}

func TestRateLimiterStopIsIdempotent(t *testing.T) {
	rl := NewRateLimiter(1)
	rl.Stop()
	assert.NotPanics(t, rl.Stop)
}
