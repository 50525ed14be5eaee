package server

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
)

// limiterClock is a manual clock so refill accounting can be driven without
// sleeping.
type limiterClock struct {
	t time.Time
}

func (c *limiterClock) now() time.Time { return c.t }

func (c *limiterClock) advance(d time.Duration) { c.t = c.t.Add(d) }

func newTestLimiter(burst int, interval time.Duration) (*rateLimiter, *limiterClock) {
	clock := &limiterClock{t: time.Unix(1_700_000_000, 0)}
	rl := newRateLimiter(burst, interval)
	rl.now = clock.now
	rl.updated = clock.t
	return rl, clock
}

func TestRateLimiterAllowsBurst(t *testing.T) {
	rl, _ := newTestLimiter(3, time.Minute)

	for i := 0; i < 3; i++ {
		assert.True(t, rl.allow(), "frame %d within burst should pass", i)
	}
	assert.False(t, rl.allow(), "frame beyond burst should be limited")
}

func TestRateLimiterRefills(t *testing.T) {
	rl, clock := newTestLimiter(2, 100*time.Millisecond)

	assert.True(t, rl.allow())
	assert.True(t, rl.allow())
	assert.False(t, rl.allow())

	clock.advance(50 * time.Millisecond)
	assert.True(t, rl.allow(), "half the interval refills one of two tokens")
	assert.False(t, rl.allow())

	clock.advance(100 * time.Millisecond)
	assert.True(t, rl.allow())
	assert.True(t, rl.allow(), "a full interval restores the full burst")
	assert.False(t, rl.allow())
}

func TestRateLimiterRefillClampsToCapacity(t *testing.T) {
	rl, clock := newTestLimiter(2, 100*time.Millisecond)

	clock.advance(time.Hour)
	assert.InDelta(t, 2.0, rl.tokens(), 1e-9, "idle time never banks more than the burst")
}

func TestRateLimiterTokensReportsLevel(t *testing.T) {
	rl, clock := newTestLimiter(4, time.Second)

	assert.InDelta(t, 4.0, rl.tokens(), 1e-9)
	assert.True(t, rl.allow())
	assert.InDelta(t, 3.0, rl.tokens(), 1e-9)

	clock.advance(250 * time.Millisecond)
	assert.InDelta(t, 4.0, rl.tokens(), 1e-9, "a quarter second refills the spent token")
}

func TestRateLimiterClockGoingBackward(t *testing.T) {
	rl, clock := newTestLimiter(1, time.Second)

	assert.True(t, rl.allow())
	clock.advance(-time.Minute)
	assert.False(t, rl.allow(), "a backward clock step must not mint tokens")
}

func TestRateLimiterSanitizesParameters(t *testing.T) {
	rl := newRateLimiter(0, 0)
	assert.True(t, rl.allow(), "limiter with bad parameters still admits one frame")
}
