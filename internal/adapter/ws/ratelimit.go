package ws

import "time"

// rateLimiter is a sliding-window counter for inbound control frames.
// It is owned by a single connection's reader loop and needs no locking.
type rateLimiter struct {
	events []time.Time
	max    int
	window time.Duration
}

func newRateLimiter(max int, window time.Duration) *rateLimiter {
	return &rateLimiter{max: max, window: window}
}

// record registers one frame and reports whether it is within budget.
// Rejected frames still count toward the window.
func (r *rateLimiter) record() bool {
	now := time.Now()
	i := 0
	for i < len(r.events) && now.Sub(r.events[i]) > r.window {
		i++
	}
	r.events = append(r.events[i:], now)
	return len(r.events) <= r.max
}
