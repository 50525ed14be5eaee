// Package server throttles inbound frames per connection so a single noisy
// client cannot monopolize the relay.
package server

import (
	"sync"
	"time"
)

// rateLimiter is a token bucket: a connection may burst up to capacity
// frames, then is held to the refill rate. The clock is injectable so the
// refill accounting can be tested without sleeping.
type rateLimiter struct {
	mu       sync.Mutex
	level    float64
	capacity float64
	perSec   float64
	updated  time.Time
	now      func() time.Time
}

func newRateLimiter(burst int, interval time.Duration) *rateLimiter {
	if burst <= 0 {
		burst = 1
	}
	if interval <= 0 {
		interval = time.Second
	}

	rl := &rateLimiter{
		level:    float64(burst),
		capacity: float64(burst),
		perSec:   float64(burst) / interval.Seconds(),
		now:      time.Now,
	}
	rl.updated = rl.now()
	return rl
}

// allow consumes one token if available.
func (rl *rateLimiter) allow() bool {
	rl.mu.Lock()
	defer rl.mu.Unlock()

	rl.refillLocked(rl.now())
	if rl.level < 1 {
		return false
	}
	rl.level--
	return true
}

// refillLocked credits tokens for the time elapsed since the last update,
// clamped to capacity. Callers must hold mu.
func (rl *rateLimiter) refillLocked(now time.Time) {
	elapsed := now.Sub(rl.updated)
	rl.updated = now
	if elapsed <= 0 {
		return
	}

	rl.level += elapsed.Seconds() * rl.perSec
	if rl.level > rl.capacity {
		rl.level = rl.capacity
	}
}

// tokens reports the current token level after refill, for logging.
func (rl *rateLimiter) tokens() float64 {
	rl.mu.Lock()
	defer rl.mu.Unlock()

	rl.refillLocked(rl.now())
	return rl.level
}
