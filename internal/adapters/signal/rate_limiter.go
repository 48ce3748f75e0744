package signal

import (
	"golang.org/x/time/rate"
)

// eventThrottle caps how fast one connection may send events. It is owned by
// a single read pump.
type eventThrottle struct {
	limiter *rate.Limiter
}

func newEventThrottle(limit rate.Limit, burst int) *eventThrottle {
	if limit <= 0 {
		limit = rate.Inf
	}
	if burst <= 0 {
		burst = 1
	}
	return &eventThrottle{limiter: rate.NewLimiter(limit, burst)}
}

func (t *eventThrottle) Allow() bool {
	return t.limiter.Allow()
}
