package chat

import "time"

// rateLimiter is a token bucket over the inbound frames of one session. It is
// owned by the session's read loop and is not safe for concurrent use.
type rateLimiter struct {
	tokens float64
	burst  float64
	// tokens regained per second
	refill float64
	last   time.Time
}

func newRateLimiter(burst int, interval time.Duration, now time.Time) *rateLimiter {
	if burst <= 0 {
		burst = 1
	}
	if interval <= 0 {
		interval = time.Second
	}
	return &rateLimiter{
		tokens: float64(burst),
		burst:  float64(burst),
		refill: float64(burst) / interval.Seconds(),
		last:   now,
	}
}

// allow spends one token for a frame read at now.
func (rl *rateLimiter) allow(now time.Time) bool {
	if elapsed := now.Sub(rl.last).Seconds(); elapsed > 0 {
		rl.tokens = min(rl.burst, rl.tokens+elapsed*rl.refill)
		rl.last = now
	}
	if rl.tokens < 1 {
		return false
	}
	rl.tokens--
	return true
}
